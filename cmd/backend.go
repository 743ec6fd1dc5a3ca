package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"Heatmap-App/internal/config"
	domainrepo "Heatmap-App/internal/domain/repository"
	"Heatmap-App/internal/infrastructure/database"
	"Heatmap-App/internal/infrastructure/firestore"
	"Heatmap-App/internal/repository"
)

// cacheBackend 選択したキャッシュ保存先と後始末
type cacheBackend struct {
	repo        domainrepo.GridCacheRepository
	healthCheck func(ctx context.Context) error
	close       func() error
}

func noopClose() error { return nil }

// openCacheBackend CACHE_BACKEND に応じてリポジトリを作る
func openCacheBackend(ctx context.Context, cfg *config.Config, log *zap.Logger) (*cacheBackend, error) {
	switch cfg.CacheBackend {
	case config.BackendMemory:
		return &cacheBackend{repo: repository.NewMemoryGridCacheRepository(), close: noopClose}, nil

	case config.BackendSQLite:
		client, err := database.NewSQLiteClient(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info("SQLiteキャッシュを使用します", zap.String("path", cfg.SQLitePath))
		return &cacheBackend{
			repo:        repository.NewSQLiteGridCacheRepository(client),
			healthCheck: client.HealthCheck,
			close:       client.Close,
		}, nil

	case config.BackendPostgres:
		client, err := database.NewPostgreSQLClient(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		log.Info("PostgreSQLキャッシュを使用します")
		return &cacheBackend{
			repo:        repository.NewPostgresGridCacheRepository(client),
			healthCheck: client.HealthCheck,
			close:       client.Close,
		}, nil

	case config.BackendSupabase:
		client, err := database.NewSupabaseClient(cfg.SupabaseURL, cfg.SupabaseAnonKey)
		if err != nil {
			return nil, err
		}
		if err := client.HealthCheck(ctx); err != nil {
			return nil, fmt.Errorf("Supabaseヘルスチェック失敗: %w", err)
		}
		log.Info("Supabaseキャッシュを使用します", zap.String("url", client.URL()))
		return &cacheBackend{
			repo:        repository.NewSupabaseGridCacheRepository(client),
			healthCheck: client.HealthCheck,
			close:       noopClose,
		}, nil

	case config.BackendFirestore:
		client, err := firestore.NewFirestoreClient(ctx, cfg.FirestoreProjectID, cfg.GoogleCredentialFile, log)
		if err != nil {
			return nil, err
		}
		return &cacheBackend{
			repo:  repository.NewFirestoreGridCacheRepository(client.GetClient()),
			close: client.Close,
		}, nil
	}
	return nil, fmt.Errorf("不明なキャッシュバックエンド: %s", cfg.CacheBackend)
}
