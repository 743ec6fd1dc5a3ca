package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"Heatmap-App/internal/domain/geo"
	"Heatmap-App/internal/domain/model"
	"Heatmap-App/internal/domain/service"
	"Heatmap-App/internal/repository"
)

const (
	tokyoLat = 35.681236
	tokyoLng = 139.767125
)

// stubProvider タイプごとの固定結果とエラーを返す
type stubProvider struct {
	mu     sync.Mutex
	places map[string][]model.ProviderPlace
	errs   map[string]error
	calls  []string
}

func (p *stubProvider) SearchNearby(_ context.Context, q model.ProviderQuery) ([]model.ProviderPlace, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, q.Type)
	if err := p.errs[q.Type]; err != nil {
		return nil, err
	}
	return p.places[q.Type], nil
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type recordingScanMetrics struct {
	scans     int
	lastCells int
}

func (m *recordingScanMetrics) ObserveScan(_ time.Duration, cellCount int) {
	m.scans++
	m.lastCells = cellCount
}

func newCoordinator(t *testing.T, provider *stubProvider) *service.FetchCoordinator {
	t.Helper()
	cache := service.NewGridCache(repository.NewMemoryGridCacheRepository(), time.Hour, zap.NewNop())
	return service.NewFetchCoordinator(cache, provider, geo.NewIndexer(7), zap.NewNop(), nil)
}

func place(id string, lat, lng float64, types ...string) model.ProviderPlace {
	return model.ProviderPlace{
		ExternalID:  id,
		DisplayName: "施設" + id,
		Location:    model.LatLng{Lat: lat, Lng: lng},
		Types:       types,
	}
}

func ptr(v float64) *float64 {
	return &v
}
