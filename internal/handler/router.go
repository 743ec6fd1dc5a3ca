package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterConfig ルーター構築に必要な依存関係
type RouterConfig struct {
	Amenity        *AmenityHandler
	Heatmap        *HeatmapHandler
	Cell           *CellHandler
	Metrics        HTTPMetrics
	MetricsHandler http.Handler
	HealthCheck    func(ctx context.Context) error
	Logger         *zap.Logger
}

// NewRouter はAPIのルーティングを設定したgin.Engineを返す
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), AccessLog(logger, cfg.Metrics))

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Welcome to Heatmap-App!")
	})

	api := r.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		if cfg.HealthCheck != nil {
			if err := cfg.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": "Heatmap-App",
					"details": err.Error(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "Heatmap-App"})
	})

	if cfg.Amenity != nil {
		api.POST("/places/query", cfg.Amenity.PostQuery)
		api.GET("/places/query", cfg.Amenity.GetQuery)
	}
	if cfg.Heatmap != nil {
		api.POST("/heatmap/scan", cfg.Heatmap.PostScan)
	}
	if cfg.Cell != nil {
		api.GET("/cells/:geohash", cfg.Cell.GetCell)
	}
	if cfg.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}
	return r
}
