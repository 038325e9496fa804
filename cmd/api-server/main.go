package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"granthalaya/internal/auth"
	"granthalaya/internal/catalog"
	"granthalaya/internal/events"
	"granthalaya/internal/ingest"
	"granthalaya/internal/report"
	"granthalaya/internal/search"
	"granthalaya/pkg/database"
	"granthalaya/pkg/logging"
	"granthalaya/pkg/utils"
)

func main() {
	utils.LoadEnvFile()
	srvCfg := utils.LoadServerConfig()

	logger := logging.MustNew(srvCfg.Development)
	defer logger.Sync()

	dbCfg := database.DefaultConfig()
	db := database.MustOpen(dbCfg)
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logger.Fatal("db migrate failed", zap.Error(err))
	}

	if !srvCfg.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	// Event feed first so binding errors show up early.
	hub := events.NewHub()
	router.GET("/ws", events.WSHandler(hub, logger))
	tcpSrv := events.NewServer(srvCfg.EventTCPAddr, hub, logger)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": dbCfg.Path})
	})

	router.GET("/ready", func(c *gin.Context) {
		stats := hub.Stats()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":      "not_ready",
				"db_error":    err.Error(),
				"tcp_clients": stats.TCPClients,
				"ws_clients":  stats.WSClients,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":      "ready",
			"db":          "ok",
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
		})
	})

	// Auth
	authCfg := utils.LoadAuthConfig()
	tokenSvc := auth.TokenService{
		Secret:   []byte(authCfg.JWTSecret),
		Issuer:   authCfg.JWTIssuer,
		Duration: authCfg.JWTDuration,
	}
	authRepo := auth.NewRepo(db)
	authHandler := auth.NewHandler(authRepo, tokenSvc, logger)
	authHandler.RegisterRoutes(router.Group("/auth"))

	protected := router.Group("/")
	protected.Use(auth.AuthMiddleware(tokenSvc, authRepo))

	protected.GET("/users/me", func(c *gin.Context) {
		claims := auth.MustGetClaims(c)
		c.JSON(http.StatusOK, gin.H{
			"id":       claims.UserID,
			"username": claims.Username,
			"email":    claims.Email,
		})
	})

	// Catalogue
	catalogRepo := catalog.NewRepo(db)
	catalogHandler := catalog.NewHandler(catalogRepo, hub, logger)
	catalogHandler.RegisterRoutes(router.Group("/catalog"), protected.Group("/catalog"))

	// Ingestion
	coordinator := ingest.NewCoordinator(db, logger, srvCfg.IngestTimeout)
	manifests := ingest.NewManifestClient(srvCfg.ManifestURL)
	ingestHandler := ingest.NewHandler(coordinator, manifests, hub, logger)
	ingestHandler.RegisterRoutes(protected.Group("/ingest"))

	// Search: without an API key the planner stays nil and every query that
	// reaches tier 2 lands in the substring fallback.
	var planner search.Planner
	if srvCfg.GeminiAPIKey != "" {
		p, err := search.NewGeminiPlanner(context.Background(), srvCfg.GeminiAPIKey, srvCfg.GeminiModel)
		if err != nil {
			logger.Fatal("gemini planner init failed", zap.Error(err))
		}
		planner = p
	} else {
		logger.Warn("GEMINI_API_KEY not set, model-assisted search disabled")
		planner = search.DisabledPlanner{}
	}
	resolver := search.NewResolver(db, catalogRepo, planner, logger)
	searchHandler := search.NewHandler(resolver, logger)
	searchHandler.RegisterRoutes(router.Group("/search"))

	// Reports
	reportHandler := report.NewHandler(report.NewGenerator(db), logger)
	reportHandler.RegisterRoutes(router.Group("/reports"))

	httpSrv := &http.Server{
		Addr:    srvCfg.HTTPAddr,
		Handler: router,
	}

	errCh := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := tcpSrv.Run(); err != nil {
			errCh <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("HTTP API server listening", zap.String("addr", srvCfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	logger.Info("shutting down servers")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", zap.Error(err))
	}
	if err := tcpSrv.Close(); err != nil {
		logger.Error("tcp shutdown error", zap.Error(err))
	}

	wg.Wait()
	logger.Info("servers stopped")
}
