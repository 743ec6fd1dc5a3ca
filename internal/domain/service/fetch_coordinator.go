package service

import (
	"context"
	"math"

	"go.uber.org/zap"

	"Heatmap-App/internal/domain/geo"
	"Heatmap-App/internal/domain/helper"
	"Heatmap-App/internal/domain/model"
	"Heatmap-App/internal/domain/repository"
)

// SecondRingRadiusMeters この半径を超える問い合わせでは2周目の近傍セルまで対象にする
const SecondRingRadiusMeters = 10000

// FetchCoordinator 問い合わせのセル範囲をキャッシュ済み・未取得に分け、未取得分だけ外部プロバイダに問い合わせる
type FetchCoordinator struct {
	cache    *GridCache
	provider repository.AmenityProvider
	indexer  geo.Indexer
	logger   *zap.Logger
	metrics  Metrics
}

// NewFetchCoordinator 新しいFetchCoordinatorを作成
func NewFetchCoordinator(cache *GridCache, provider repository.AmenityProvider, indexer geo.Indexer, logger *zap.Logger, metrics Metrics) *FetchCoordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FetchCoordinator{
		cache:    cache,
		provider: provider,
		indexer:  indexer,
		logger:   logger,
		metrics:  metricsOrNop(metrics),
	}
}

// Fetch 単一の施設タイプについてキャッシュと外部プロバイダを組み合わせて施設を取得する
//
// プロバイダが失敗した場合はキャッシュ分だけを含む結果と *model.ProviderError を返す。
// 入力不正の場合は *model.ValidationError を返す。
func (f *FetchCoordinator) Fetch(ctx context.Context, req model.FetchRequest) (*model.FetchResult, error) {
	if err := validateFetchRequest(req); err != nil {
		return nil, err
	}

	// 1. 中心セル
	centerID, err := f.indexer.Encode(req.Lat, req.Lng)
	if err != nil {
		return nil, &model.ValidationError{Field: "lat/lng", Message: err.Error()}
	}

	// 2. 対象セル範囲
	footprint, err := geo.Footprint(centerID, req.RadiusMeters > SecondRingRadiusMeters)
	if err != nil {
		return nil, &model.ValidationError{Field: "lat/lng", Message: err.Error()}
	}

	// 3. このタイプについて有効なキャッシュを持つセル
	valid := f.cache.ValidCellsAround(ctx, centerID, req.CommodityType)
	var cachedIDs []string
	for _, id := range footprint {
		if _, ok := valid[id]; ok {
			cachedIDs = append(cachedIDs, id)
		}
	}
	uncachedIDs := helper.SubtractIDs(footprint, valid)

	// 4. キャッシュ済みセルのレコード
	cached := f.cache.RecordsFor(ctx, cachedIDs, req.CommodityType)

	result := &model.FetchResult{
		CellsUsed:     footprint,
		CachedCellIDs: nonNil(cachedIDs),
		NewCellIDs:    []string{},
	}

	// 5. 未取得セルがあればプロバイダへ1回だけ問い合わせる
	var fresh []model.AmenityRecord
	if len(uncachedIDs) > 0 {
		places, err := f.provider.SearchNearby(ctx, model.ProviderQuery{
			Center:       model.LatLng{Lat: req.Lat, Lng: req.Lng},
			RadiusMeters: req.RadiusMeters,
			Type:         req.CommodityType,
		})
		f.metrics.ObserveProviderCall(req.CommodityType, err)
		if err != nil {
			f.logger.Warn("施設検索プロバイダの呼び出しに失敗",
				zap.String("type", req.CommodityType),
				zap.String("cell", centerID),
				zap.Error(err),
			)
			result.Places = helper.DedupeByExternalID(cached)
			result.Count = len(result.Places)
			return result, &model.ProviderError{Type: req.CommodityType, Err: err}
		}

		fresh = f.toRecords(places, uncachedIDs[0], req.CommodityType)

		// 同じ結果集合を未取得セルそれぞれに保存する
		for _, cellID := range uncachedIDs {
			center, err := geo.Decode(cellID)
			if err != nil {
				f.logger.Warn("セル中心の計算に失敗", zap.String("cell", cellID), zap.Error(err))
				continue
			}
			f.cache.Store(ctx, cellID, fresh, req.CommodityType, center.Lat, center.Lng)
		}
		result.NewCellIDs = uncachedIDs
	}

	// 6. マージしてexternal_idで重複除去
	merged := make([]model.AmenityRecord, 0, len(cached)+len(fresh))
	merged = append(merged, cached...)
	merged = append(merged, fresh...)
	result.Places = helper.DedupeByExternalID(merged)
	result.Count = len(result.Places)

	f.logger.Info("施設取得完了",
		zap.String("type", req.CommodityType),
		zap.String("cell", centerID),
		zap.Int("cached_cells", len(result.CachedCellIDs)),
		zap.Int("new_cells", len(result.NewCellIDs)),
		zap.Int("count", result.Count),
	)
	return result, nil
}

func (f *FetchCoordinator) toRecords(places []model.ProviderPlace, cellID, commodityType string) []model.AmenityRecord {
	now := f.cache.now()
	records := make([]model.AmenityRecord, 0, len(places))
	for i := range places {
		if places[i].ExternalID == "" {
			continue
		}
		rec := places[i].ToAmenityRecord(cellID, now)
		rec.CommodityTypes = helper.EnsureType(rec.CommodityTypes, commodityType)
		records = append(records, rec)
	}
	return helper.DedupeByExternalID(records)
}

func validateFetchRequest(req model.FetchRequest) error {
	if err := geo.ValidateCoordinate(req.Lat, req.Lng); err != nil {
		return &model.ValidationError{Field: "lat/lng", Message: err.Error()}
	}
	if math.IsNaN(req.RadiusMeters) || math.IsInf(req.RadiusMeters, 0) || req.RadiusMeters <= 0 {
		return &model.ValidationError{Field: "radius_meters", Message: "半径は正の数で指定してください"}
	}
	if req.CommodityType == "" {
		return &model.ValidationError{Field: "type", Message: "施設タイプは必須です"}
	}
	return nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
