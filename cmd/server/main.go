package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pharma-erp/backend/internal/api"
	"github.com/pharma-erp/backend/internal/cache"
	"github.com/pharma-erp/backend/internal/config"
	"github.com/pharma-erp/backend/internal/pricing"
	"github.com/pharma-erp/backend/internal/storage"
	"github.com/pharma-erp/backend/internal/store/postgres"
	"github.com/pharma-erp/backend/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.SetLevel(cfg.Server.Mode)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	documentStore := postgres.NewDocumentStore(db)

	orderCache, err := cache.NewOrderCache(cfg.Cache)
	if err != nil {
		log.Fatalf("Failed to initialize order cache: %v", err)
	}

	var objects storage.ObjectStorage
	if cfg.Storage.Enabled {
		objects, err = storage.NewMinioClient(cfg.Storage)
		if err != nil {
			log.Fatalf("Failed to initialize object storage: %v", err)
		}
	}

	propagator := pricing.NewPropagator(documentStore, orderCache)

	router := api.NewRouter(&api.Services{
		Store:      documentStore,
		Propagator: propagator,
		OrderCache: orderCache,
		Objects:    objects,
	}, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
