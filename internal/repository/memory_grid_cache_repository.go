package repository

import (
	"context"
	"sync"
	"time"

	"Heatmap-App/internal/domain/helper"
	"Heatmap-App/internal/domain/model"
	"Heatmap-App/internal/domain/repository"
)

// MemoryGridCacheRepository プロセス内のマップで保持するグリッドキャッシュ
//
// places は external_id ごとに1件、members は cell_id → external_id の所属関係を持つ。
// 返す値はすべてコピーで、呼び出し側の変更は保存内容に影響しない。
type MemoryGridCacheRepository struct {
	mu      sync.RWMutex
	places  map[string]model.AmenityRecord
	members map[string]map[string]struct{}
	cells   map[string]model.GridCell
}

func NewMemoryGridCacheRepository() *MemoryGridCacheRepository {
	return &MemoryGridCacheRepository{
		places:  make(map[string]model.AmenityRecord),
		members: make(map[string]map[string]struct{}),
		cells:   make(map[string]model.GridCell),
	}
}

var _ repository.GridCacheRepository = (*MemoryGridCacheRepository)(nil)

func (r *MemoryGridCacheRepository) UpsertPlace(ctx context.Context, place model.AmenityRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if place.CellID != "" {
		if _, ok := r.members[place.CellID]; !ok {
			r.members[place.CellID] = make(map[string]struct{})
		}
		r.members[place.CellID][place.ExternalID] = struct{}{}
	}

	if existing, exists := r.places[place.ExternalID]; exists {
		existing.CommodityTypes = helper.MergeTypes(existing.CommodityTypes, place.CommodityTypes)
		r.places[place.ExternalID] = existing
		return model.ErrDuplicateKey
	}
	r.places[place.ExternalID] = copyRecord(place)
	return nil
}

func (r *MemoryGridCacheRepository) UpsertCell(ctx context.Context, cell model.GridCell) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cells[cell.Geohash] = copyCell(cell)
	return nil
}

func (r *MemoryGridCacheRepository) FindCellsByIDsWithExpiry(ctx context.Context, ids []string, now time.Time) ([]model.GridCell, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var cells []model.GridCell
	for _, id := range ids {
		cell, ok := r.cells[id]
		if !ok || !cell.IsValidAt(now) {
			continue
		}
		cells = append(cells, copyCell(cell))
	}
	return cells, nil
}

func (r *MemoryGridCacheRepository) FindPlacesByCellsAndType(ctx context.Context, cellIDs []string, commodityType string) ([]model.AmenityRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	var records []model.AmenityRecord
	for _, cellID := range cellIDs {
		for externalID := range r.members[cellID] {
			if _, ok := seen[externalID]; ok {
				continue
			}
			place, ok := r.places[externalID]
			if !ok {
				continue
			}
			if commodityType != "" && !place.HasType(commodityType) {
				continue
			}
			seen[externalID] = struct{}{}
			records = append(records, copyRecord(place))
		}
	}
	return records, nil
}

// GetCell returns (nil, nil) when the cell has never been stored.
func (r *MemoryGridCacheRepository) GetCell(ctx context.Context, geohash string) (*model.GridCell, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cell, ok := r.cells[geohash]
	if !ok {
		return nil, nil
	}
	c := copyCell(cell)
	return &c, nil
}

func copyRecord(rec model.AmenityRecord) model.AmenityRecord {
	rec.CommodityTypes = append([]string(nil), rec.CommodityTypes...)
	return rec
}

func copyCell(cell model.GridCell) model.GridCell {
	if cell.FetchedAt != nil {
		t := *cell.FetchedAt
		cell.FetchedAt = &t
	}
	if cell.ExpiresAt != nil {
		t := *cell.ExpiresAt
		cell.ExpiresAt = &t
	}
	cell.FetchedTypes = append([]string(nil), cell.FetchedTypes...)
	return cell
}
