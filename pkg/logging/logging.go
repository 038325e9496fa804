package logging

import (
	"go.uber.org/zap"
)

// New builds the process logger. Development mode gets console output with
// human timestamps, production mode gets JSON.
func New(development bool) (*zap.Logger, error) {
	if development {
		cfg := zap.NewDevelopmentConfig()
		return cfg.Build()
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// MustNew is New for main() wiring.
func MustNew(development bool) *zap.Logger {
	logger, err := New(development)
	if err != nil {
		panic(err)
	}
	return logger
}
