package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"

	"procedure-review/internal/render"
	"procedure-review/internal/reviewstub"
	"procedure-review/shared/logger"
	"procedure-review/shared/middleware"
)

func main() {
	cfg, err := reviewstub.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	appLogger, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: "json"})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()
	zap.ReplaceGlobals(appLogger)

	renderer, err := render.NewDocument(appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize renderer", zap.Error(err))
	}

	// --- HTTP Server Setup (Gin) ---
	gin.SetMode(gin.ReleaseMode)
	if cfg.Env == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(middleware.ZapLoggingMiddlewareForGin(appLogger))
	router.Use(gin.Recovery())

	p := ginprometheus.NewPrometheus("gin")
	p.Use(router)

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	reviewstub.NewHandler(renderer, appLogger).RegisterRoutes(router)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.Info("Review stub listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP Server forced to shutdown", zap.Error(err))
	}
	appLogger.Info("Server exiting")
}
