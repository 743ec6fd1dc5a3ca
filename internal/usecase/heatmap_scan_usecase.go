package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"Heatmap-App/internal/domain/geo"
	"Heatmap-App/internal/domain/helper"
	"Heatmap-App/internal/domain/model"
	"Heatmap-App/internal/domain/service"
)

// MaxScanRadiusMeters 外部検索に渡す半径の上限
const MaxScanRadiusMeters = 50000.0

// ScanMetrics スキャン処理の指標
type ScanMetrics interface {
	ObserveScan(duration time.Duration, cellCount int)
}

type HeatmapScanUseCase interface {
	// Scan は矩形領域をグリッドに分割し、施設数と好みの重みからセルごとのスコアを計算する
	Scan(ctx context.Context, req *model.ScanRequest) (*model.ScanResponse, error)
}

// heatmapScanUseCaseImpl はHeatmapScanUseCaseの実装
type heatmapScanUseCaseImpl struct {
	coordinator    *service.FetchCoordinator
	engine         *service.ScoringEngine
	commodityTypes []string
	logger         *zap.Logger
	metrics        ScanMetrics
}

// NewHeatmapScanUseCase は新しいHeatmapScanUseCaseインスタンスを作成
//
// commodityTypes の並びが重みベクトルの並びになる。
func NewHeatmapScanUseCase(
	coordinator *service.FetchCoordinator,
	engine *service.ScoringEngine,
	commodityTypes []string,
	logger *zap.Logger,
	metrics ScanMetrics,
) HeatmapScanUseCase {
	if len(commodityTypes) == 0 {
		commodityTypes = model.DefaultCommodityTypes()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	types := make([]string, len(commodityTypes))
	copy(types, commodityTypes)
	return &heatmapScanUseCaseImpl{
		coordinator:    coordinator,
		engine:         engine,
		commodityTypes: types,
		logger:         logger,
		metrics:        metrics,
	}
}

// Scan は矩形領域をグリッドに分割し、施設数と好みの重みからセルごとのスコアを計算する
func (u *heatmapScanUseCaseImpl) Scan(ctx context.Context, req *model.ScanRequest) (*model.ScanResponse, error) {
	start := time.Now()
	if err := u.validate(req); err != nil {
		return nil, err
	}
	bounds := req.Bounds

	// Step 1: タイプごとに順番に施設を取得
	places, failedTypes, err := u.collectPlaces(ctx, bounds)
	if err != nil {
		return nil, err
	}

	// Step 2: グリッドに振り分けて施設数を数える
	cells := u.buildCells(bounds, req.GridSize, places)

	// Step 3: スコア計算
	results := u.engine.ScoreAll(cells, req.Weights)

	resp := &model.ScanResponse{
		GridSize:         req.GridSize,
		CommodityTypes:   u.commodityTypes,
		CommodityLabels:  commodityLabels(u.commodityTypes),
		AmplifiedWeights: u.engine.Amplify(req.Weights),
		Cells:            cells,
		BaseScores:       service.BaseScoreList(results),
		AggregatedScores: service.AggregatedScores(results),
		Results:          results,
		Summary:          service.Summarize(results, cells),
		FailedTypes:      failedTypes,
	}

	elapsed := time.Since(start)
	if u.metrics != nil {
		u.metrics.ObserveScan(elapsed, len(cells))
	}
	u.logger.Info("ヒートマップスキャン完了",
		zap.Int("grid_size", req.GridSize),
		zap.Int("places", len(places)),
		zap.Float64("mean_score", resp.Summary.Mean),
		zap.Duration("elapsed", elapsed),
	)
	return resp, nil
}

func (u *heatmapScanUseCaseImpl) validate(req *model.ScanRequest) error {
	if req == nil || req.Bounds == nil {
		return &model.ValidationError{Field: "bounds", Message: "対象領域は必須です"}
	}
	b := req.Bounds
	for _, corner := range []model.LatLng{{Lat: b.North, Lng: b.East}, {Lat: b.South, Lng: b.West}} {
		if err := geo.ValidateCoordinate(corner.Lat, corner.Lng); err != nil {
			return &model.ValidationError{Field: "bounds", Message: err.Error()}
		}
	}
	if b.North <= b.South || b.East <= b.West {
		return &model.ValidationError{Field: "bounds", Message: "north > south かつ east > west である必要があります"}
	}
	if req.GridSize < 1 || req.GridSize > 50 {
		return &model.ValidationError{Field: "grid_size", Message: "グリッドサイズは1〜50で指定してください"}
	}
	if len(req.Weights) != len(u.commodityTypes) {
		return &model.ValidationError{
			Field:   "weights",
			Message: fmt.Sprintf("重みは施設タイプ数(%d)と同じ長さが必要です: %d", len(u.commodityTypes), len(req.Weights)),
		}
	}
	for i, w := range req.Weights {
		if math.IsNaN(w) || w < service.MinScore || w > service.MaxScore {
			return &model.ValidationError{Field: fmt.Sprintf("weights[%d]", i), Message: "重みは0〜100で指定してください"}
		}
	}
	return nil
}

// collectPlaces 領域中心から対角の半分の半径で全タイプを取得する
func (u *heatmapScanUseCaseImpl) collectPlaces(ctx context.Context, bounds *model.Bounds) ([]model.AmenityRecord, []string, error) {
	center := bounds.Center()
	radius := math.Min(geo.HalfDiagonalMeters(bounds), MaxScanRadiusMeters)

	var merged []model.AmenityRecord
	var failedTypes []string
	for _, commodityType := range u.commodityTypes {
		result, err := u.coordinator.Fetch(ctx, model.FetchRequest{
			Lat:           center.Lat,
			Lng:           center.Lng,
			RadiusMeters:  radius,
			CommodityType: commodityType,
		})
		if err != nil {
			var pe *model.ProviderError
			if !errors.As(err, &pe) {
				return nil, nil, fmt.Errorf("施設取得に失敗 (type=%s): %w", commodityType, err)
			}
			u.logger.Warn("施設タイプの外部検索に失敗、このタイプはキャッシュ分のみで計算します",
				zap.String("type", commodityType),
				zap.Error(err),
			)
			failedTypes = append(failedTypes, commodityType)
		}
		if result != nil {
			merged = append(merged, result.Places...)
		}
	}
	return helper.DedupeByExternalID(merged), failedTypes, nil
}

// buildCells 施設を size×size のセルに振り分け、行優先（北が0行目）で返す
func (u *heatmapScanUseCaseImpl) buildCells(bounds *model.Bounds, size int, places []model.AmenityRecord) []model.ScoringCell {
	buckets := make([][]model.AmenityRecord, size*size)
	for i := range places {
		row, col, ok := geo.GridCellIndex(bounds, size, places[i].Location)
		if !ok {
			continue
		}
		buckets[row*size+col] = append(buckets[row*size+col], places[i])
	}

	cells := make([]model.ScoringCell, 0, size*size)
	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			center := geo.GridCellCenter(bounds, size, row, col)
			cells = append(cells, model.ScoringCell{
				ID:              fmt.Sprintf("cell_%d_%d", row, col),
				CenterLat:       center.Lat,
				CenterLng:       center.Lng,
				CommodityCounts: helper.CountByTypes(buckets[row*size+col], u.commodityTypes),
			})
		}
	}
	return cells
}

func commodityLabels(types []string) []string {
	labels := make([]string, len(types))
	for i, t := range types {
		labels[i] = model.GetCommodityJapaneseName(t)
	}
	return labels
}
