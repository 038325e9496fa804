package utils

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTDuration time.Duration
}

type ServerConfig struct {
	HTTPAddr      string
	EventTCPAddr  string
	Development   bool
	GeminiAPIKey  string
	GeminiModel   string
	ManifestURL   string
	IngestTimeout time.Duration
}

// LoadEnvFile loads a .env file if one is present in the working directory.
// Missing file is not an error.
func LoadEnvFile() {
	_ = godotenv.Load()
}

func LoadAuthConfig() AuthConfig {
	secret := os.Getenv("GRANTHALAYA_JWT_SECRET")
	if secret == "" {
		// dev default (change for demo / production)
		secret = "dev-secret-change-me"
	}

	issuer := os.Getenv("GRANTHALAYA_JWT_ISSUER")
	if issuer == "" {
		issuer = "granthalaya"
	}

	dur := 24 * time.Hour
	if ttl := os.Getenv("GRANTHALAYA_JWT_TTL_HOURS"); ttl != "" {
		if hours, err := strconv.Atoi(ttl); err == nil && hours > 0 {
			dur = time.Duration(hours) * time.Hour
		}
	}

	return AuthConfig{
		JWTSecret:   secret,
		JWTIssuer:   issuer,
		JWTDuration: dur,
	}
}

func LoadServerConfig() ServerConfig {
	cfg := ServerConfig{
		HTTPAddr:      getenvDefault("GRANTHALAYA_HTTP_ADDR", ":8080"),
		EventTCPAddr:  getenvDefault("GRANTHALAYA_EVENT_TCP_ADDR", ":7070"),
		Development:   os.Getenv("GRANTHALAYA_ENV") != "production",
		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiModel:   getenvDefault("GRANTHALAYA_GEMINI_MODEL", "gemini-2.0-flash"),
		ManifestURL:   getenvDefault("GRANTHALAYA_MANIFEST_URL", "http://127.0.0.1:5001"),
		IngestTimeout: 30 * time.Second,
	}

	if raw := os.Getenv("GRANTHALAYA_INGEST_TIMEOUT_SECONDS"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			cfg.IngestTimeout = time.Duration(secs) * time.Second
		}
	}

	return cfg
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
