package repository

import (
	"context"
	"time"

	"Heatmap-App/internal/domain/model"
)

// GridCacheRepository グリッドキャッシュの永続化層
//
// UpsertPlace は external_id が既に保存済みの場合 model.ErrDuplicateKey を返す。
// その場合でもセルとの所属関係は記録される。
type GridCacheRepository interface {
	UpsertPlace(ctx context.Context, place model.AmenityRecord) error
	UpsertCell(ctx context.Context, cell model.GridCell) error
	FindCellsByIDsWithExpiry(ctx context.Context, ids []string, now time.Time) ([]model.GridCell, error)
	FindPlacesByCellsAndType(ctx context.Context, cellIDs []string, commodityType string) ([]model.AmenityRecord, error)
	// GetCell は存在しない場合 nil, nil を返す
	GetCell(ctx context.Context, geohash string) (*model.GridCell, error)
}
