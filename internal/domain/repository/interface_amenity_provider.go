package repository

import (
	"context"

	"Heatmap-App/internal/domain/model"
)

// AmenityProvider 外部の施設検索サービス
type AmenityProvider interface {
	SearchNearby(ctx context.Context, query model.ProviderQuery) ([]model.ProviderPlace, error)
}
