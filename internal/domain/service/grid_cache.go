package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"Heatmap-App/internal/domain/geo"
	"Heatmap-App/internal/domain/helper"
	"Heatmap-App/internal/domain/model"
	"Heatmap-App/internal/domain/repository"
)

// DefaultCacheTTL セルキャッシュの既定の有効期間
const DefaultCacheTTL = 24 * time.Hour

// GridCache セルが今使えるかどうかの唯一の判断元であり、施設レコードの保存・取得を担う
//
// 永続化層の障害はすべてキャッシュミスとして扱い、呼び出し側には伝播しない。
type GridCache struct {
	repo    repository.GridCacheRepository
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger
	metrics Metrics
}

// GridCacheOption GridCacheの任意設定
type GridCacheOption func(*GridCache)

// WithClock 現在時刻の取得方法を差し替える
func WithClock(now func() time.Time) GridCacheOption {
	return func(c *GridCache) {
		c.now = now
	}
}

// WithCacheMetrics 指標の記録先を設定する
func WithCacheMetrics(m Metrics) GridCacheOption {
	return func(c *GridCache) {
		c.metrics = metricsOrNop(m)
	}
}

// NewGridCache 新しいGridCacheを作成
func NewGridCache(repo repository.GridCacheRepository, ttl time.Duration, logger *zap.Logger, opts ...GridCacheOption) *GridCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &GridCache{
		repo:    repo,
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
		metrics: nopMetrics{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL キャッシュの有効期間
func (c *GridCache) TTL() time.Duration {
	return c.ttl
}

// StoreResult Store の結果
type StoreResult struct {
	CellID      string `json:"cell_id"`
	Inserted    int    `json:"inserted"`
	Duplicates  int    `json:"duplicates"`
	Failed      int    `json:"failed"`
	CellUpdated bool   `json:"cell_updated"`
}

// ValidCellsAround 中心セルと8近傍のうち、commodityType について現在有効なキャッシュを持つセルIDを返す
//
// commodityType が空の場合はタイプを問わずセルの有効性だけで判定する。
func (c *GridCache) ValidCellsAround(ctx context.Context, centerID, commodityType string) map[string]struct{} {
	valid := make(map[string]struct{})

	ids, err := geo.Footprint(centerID, false)
	if err != nil {
		c.logger.Warn("近傍セルの計算に失敗", zap.String("cell", centerID), zap.Error(err))
		return valid
	}

	now := c.now()
	cells, err := c.repo.FindCellsByIDsWithExpiry(ctx, ids, now)
	if err != nil {
		// 読み取り失敗はキャッシュミス扱い
		c.logger.Warn("キャッシュセルの取得に失敗、キャッシュミスとして扱います", zap.String("cell", centerID), zap.Error(err))
		c.metrics.ObserveCellLookup(0, len(ids))
		return valid
	}

	requested := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		requested[id] = struct{}{}
	}
	for i := range cells {
		if _, ok := requested[cells[i].Geohash]; !ok {
			continue
		}
		if cells[i].IsValidAt(now) && cells[i].CoversType(commodityType) {
			valid[cells[i].Geohash] = struct{}{}
		}
	}

	c.metrics.ObserveCellLookup(len(valid), len(ids)-len(valid))
	return valid
}

// RecordsFor 指定セルに保存されたレコードを返す（commodityType が空なら全タイプ）
func (c *GridCache) RecordsFor(ctx context.Context, cellIDs []string, commodityType string) []model.AmenityRecord {
	if len(cellIDs) == 0 {
		return nil
	}
	records, err := c.repo.FindPlacesByCellsAndType(ctx, cellIDs, commodityType)
	if err != nil {
		c.logger.Warn("キャッシュ済みレコードの取得に失敗", zap.Strings("cells", cellIDs), zap.String("type", commodityType), zap.Error(err))
		return nil
	}
	return helper.DedupeByExternalID(helper.FilterByType(records, commodityType))
}

// Store レコードをexternal_idで冪等に保存し、セルをcachedとして有効期限を更新する
//
// 1件の失敗は他のレコードやセル更新を妨げない。トランザクションは使わない。
func (c *GridCache) Store(ctx context.Context, cellID string, records []model.AmenityRecord, commodityType string, centerLat, centerLng float64) StoreResult {
	now := c.now()
	result := StoreResult{CellID: cellID}

	for _, rec := range records {
		if rec.ExternalID == "" {
			result.Failed++
			c.metrics.ObserveStoredRecord(StoreOutcomeFailed)
			continue
		}
		rec.CellID = cellID
		rec.FetchedAt = now
		rec.CommodityTypes = helper.EnsureType(rec.CommodityTypes, commodityType)

		err := c.repo.UpsertPlace(ctx, rec)
		switch {
		case err == nil:
			result.Inserted++
			c.metrics.ObserveStoredRecord(StoreOutcomeInserted)
		case errors.Is(err, model.ErrDuplicateKey):
			result.Duplicates++
			c.metrics.ObserveStoredRecord(StoreOutcomeDuplicate)
		default:
			result.Failed++
			c.metrics.ObserveStoredRecord(StoreOutcomeFailed)
			c.logger.Warn("施設レコードの保存に失敗", zap.String("external_id", rec.ExternalID), zap.String("cell", cellID), zap.Error(err))
		}
	}

	expiresAt := now.Add(c.ttl)
	fetchedAt := now
	cell := model.GridCell{
		Geohash:      cellID,
		CenterLat:    centerLat,
		CenterLng:    centerLng,
		FetchStatus:  model.FetchStatusCached,
		FetchedAt:    &fetchedAt,
		ExpiresAt:    &expiresAt,
		LastUpdated:  now,
		FetchedTypes: c.fetchedTypes(ctx, cellID, commodityType, now),
	}
	if err := c.repo.UpsertCell(ctx, cell); err != nil {
		c.logger.Warn("セルメタデータの保存に失敗", zap.String("cell", cellID), zap.Error(err))
	} else {
		result.CellUpdated = true
	}

	c.logger.Debug("セルを保存",
		zap.String("cell", cellID),
		zap.String("type", commodityType),
		zap.Int("inserted", result.Inserted),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("failed", result.Failed),
	)
	return result
}

// fetchedTypes 有効期間内なら既存の取得済みタイプに追加し、期限切れなら新しく始める
func (c *GridCache) fetchedTypes(ctx context.Context, cellID, commodityType string, now time.Time) []string {
	existing, err := c.repo.GetCell(ctx, cellID)
	if err != nil {
		c.logger.Debug("既存セルの取得に失敗", zap.String("cell", cellID), zap.Error(err))
		existing = nil
	}
	if existing == nil || !existing.IsValidAt(now) {
		return helper.EnsureType(nil, commodityType)
	}
	return helper.EnsureType(existing.FetchedTypes, commodityType)
}

// CellStatus セルの状態を読み取り時点で解釈して返す
func (c *GridCache) CellStatus(ctx context.Context, cellID string) (*model.CellStatusView, error) {
	center, err := geo.Decode(cellID)
	if err != nil {
		return nil, err
	}
	neighbors, err := geo.Neighbors(cellID)
	if err != nil {
		return nil, err
	}
	region, err := geo.RegionHash(center.Lat, center.Lng, len(cellID))
	if err != nil {
		return nil, err
	}

	now := c.now()
	view := &model.CellStatusView{
		Geohash:   cellID,
		Center:    center,
		Region:    region,
		Neighbors: neighbors,
		Status:    model.FetchStatusPending,
		CheckedAt: now,
	}

	stored, err := c.repo.GetCell(ctx, cellID)
	if err != nil {
		c.logger.Warn("セルの取得に失敗", zap.String("cell", cellID), zap.Error(err))
		return view, nil
	}
	if stored != nil {
		view.StoredCell = stored
		view.Status = stored.EffectiveStatus(now)
	}
	return view, nil
}
