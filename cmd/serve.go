package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"Heatmap-App/internal/config"
	"Heatmap-App/internal/domain/geo"
	"Heatmap-App/internal/domain/service"
	"Heatmap-App/internal/handler"
	"Heatmap-App/internal/infrastructure/maps"
	"Heatmap-App/internal/infrastructure/metrics"
	"Heatmap-App/internal/logger"
	"Heatmap-App/internal/usecase"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.GooglePlacesAPIKey == "" {
		return fmt.Errorf("GOOGLE_PLACES_API_KEY環境変数が設定されていません")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := openCacheBackend(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("キャッシュバックエンドの初期化に失敗: %w", err)
	}
	defer func() {
		if err := backend.close(); err != nil {
			log.Warn("キャッシュバックエンドのクローズに失敗", zap.Error(err))
		}
	}()

	collector := metrics.NewCollector("heatmap")

	// 外部検索: Google Places + 遮断器
	provider := maps.NewCircuitBreakerProvider(
		maps.NewGooglePlacesProvider(cfg.GooglePlacesAPIKey, cfg.PlacesBaseURL, cfg.ProviderTimeout),
		maps.DefaultCircuitBreakerConfig("google-places"),
		log,
	)

	cache := service.NewGridCache(backend.repo, cfg.CacheTTL, log, service.WithCacheMetrics(collector))
	coordinator := service.NewFetchCoordinator(cache, provider, geo.NewIndexer(cfg.GeohashPrecision), log, collector)
	engine := service.NewScoringEngine(cfg.Scoring())

	gin.SetMode(cfg.GinMode)
	router := handler.NewRouter(handler.RouterConfig{
		Amenity:        handler.NewAmenityHandler(usecase.NewAmenityQueryUseCase(coordinator, log)),
		Heatmap:        handler.NewHeatmapHandler(usecase.NewHeatmapScanUseCase(coordinator, engine, cfg.CommodityTypes, log, collector)),
		Cell:           handler.NewCellHandler(cache),
		Metrics:        collector,
		MetricsHandler: collector.Handler(),
		HealthCheck:    backend.healthCheck,
		Logger:         log,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Heatmap-App server starting",
			zap.String("addr", srv.Addr),
			zap.String("backend", cfg.CacheBackend),
			zap.Strings("commodity_types", cfg.CommodityTypes),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("サーバーを停止します")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
