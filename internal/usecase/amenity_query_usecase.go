package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"Heatmap-App/internal/domain/helper"
	"Heatmap-App/internal/domain/model"
	"Heatmap-App/internal/domain/service"
)

type AmenityQueryUseCase interface {
	// Query は複数の施設タイプについて順番にキャッシュ・外部検索を行い、結果をまとめて返す
	Query(ctx context.Context, req *model.PlacesQueryRequest) (*model.PlacesQueryResponse, error)
}

// amenityQueryUseCaseImpl はAmenityQueryUseCaseの実装
type amenityQueryUseCaseImpl struct {
	coordinator *service.FetchCoordinator
	logger      *zap.Logger
}

// NewAmenityQueryUseCase は新しいAmenityQueryUseCaseインスタンスを作成
func NewAmenityQueryUseCase(coordinator *service.FetchCoordinator, logger *zap.Logger) AmenityQueryUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &amenityQueryUseCaseImpl{
		coordinator: coordinator,
		logger:      logger,
	}
}

// Query は複数の施設タイプについて順番にキャッシュ・外部検索を行い、結果をまとめて返す
//
// あるタイプの外部検索が失敗しても処理は続け、そのタイプはキャッシュ分のみになる。
func (u *amenityQueryUseCaseImpl) Query(ctx context.Context, req *model.PlacesQueryRequest) (*model.PlacesQueryResponse, error) {
	if req == nil || req.Lat == nil || req.Lng == nil {
		return nil, &model.ValidationError{Field: "lat/lng", Message: "緯度経度は必須です"}
	}
	types := uniqueTypes(req.Types)
	if len(types) == 0 {
		return nil, &model.ValidationError{Field: "types", Message: "施設タイプを1つ以上指定してください"}
	}

	origin := model.LatLng{Lat: *req.Lat, Lng: *req.Lng}
	resp := &model.PlacesQueryResponse{
		Places:        []model.AmenityRecord{},
		CellsUsed:     []string{},
		CachedCellIDs: []string{},
		NewCellIDs:    []string{},
	}
	cells := newIDSet()
	cached := newIDSet()
	fresh := newIDSet()
	var merged []model.AmenityRecord

	// タイプごとに順番に問い合わせる（並列化しない）
	for _, commodityType := range types {
		result, err := u.coordinator.Fetch(ctx, model.FetchRequest{
			Lat:           origin.Lat,
			Lng:           origin.Lng,
			RadiusMeters:  req.RadiusMeters,
			CommodityType: commodityType,
		})
		if err != nil {
			var pe *model.ProviderError
			if !errors.As(err, &pe) {
				return nil, fmt.Errorf("施設取得に失敗 (type=%s): %w", commodityType, err)
			}
			u.logger.Warn("施設タイプの外部検索に失敗、キャッシュ分のみで続行します",
				zap.String("type", commodityType),
				zap.Error(err),
			)
			resp.FailedTypes = append(resp.FailedTypes, commodityType)
		}
		if result == nil {
			continue
		}

		merged = append(merged, result.Places...)
		cells.addAll(result.CellsUsed)
		cached.addAll(result.CachedCellIDs)
		fresh.addAll(result.NewCellIDs)
	}

	places := helper.DedupeByExternalID(merged)
	helper.SortByDistanceFromLocation(origin, places)

	resp.Places = places
	resp.Count = len(places)
	resp.CellsUsed = cells.ids
	resp.CachedCellIDs = cached.ids
	resp.NewCellIDs = fresh.ids

	u.logger.Info("施設検索完了",
		zap.Strings("types", types),
		zap.Int("count", resp.Count),
		zap.Int("failed_types", len(resp.FailedTypes)),
	)
	return resp, nil
}

func uniqueTypes(types []string) []string {
	seen := make(map[string]struct{}, len(types))
	var result []string
	for _, t := range types {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		result = append(result, t)
	}
	return result
}

// idSet 挿入順を保つID集合
type idSet struct {
	seen map[string]struct{}
	ids  []string
}

func newIDSet() *idSet {
	return &idSet{seen: make(map[string]struct{}), ids: []string{}}
}

func (s *idSet) addAll(ids []string) {
	for _, id := range ids {
		if _, ok := s.seen[id]; ok {
			continue
		}
		s.seen[id] = struct{}{}
		s.ids = append(s.ids, id)
	}
}
