// internal/api/api.go
package api

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/pharma-erp/backend/internal/api/handlers"
	"github.com/pharma-erp/backend/internal/api/middleware"
	"github.com/pharma-erp/backend/internal/cache"
	"github.com/pharma-erp/backend/internal/pricing"
	"github.com/pharma-erp/backend/internal/storage"
	"github.com/pharma-erp/backend/internal/store"
)

type Services struct {
	Store      store.Store
	Propagator *pricing.Propagator
	OrderCache cache.OrderCache
	Objects    storage.ObjectStorage
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	// Add middleware
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api/v1")

	if services != nil {
		orderHandler := handlers.NewPurchaseOrderHandler(services.Store, services.Propagator, services.OrderCache)
		orderGroup := apiGroup.Group("/purchase-orders")
		{
			orderGroup.GET("/:id", orderHandler.GetOrder)
			orderGroup.PUT("/:id", orderHandler.UpdateOrder)
			orderGroup.POST("/:id/resync", orderHandler.ResyncOrder)
			orderGroup.GET("/:id/batches", orderHandler.GetOrderBatches)
		}

		if services.Objects != nil {
			certHandler := handlers.NewBatchCertificateHandler(services.Store, services.Objects)
			batchGroup := apiGroup.Group("/batches")
			{
				batchGroup.PUT("/:id/certificate", certHandler.UploadCertificate)
				batchGroup.GET("/:id/certificate", certHandler.DownloadCertificate)
			}
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
