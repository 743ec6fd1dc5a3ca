package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"Heatmap-App/internal/domain/helper"
	"Heatmap-App/internal/domain/model"
)

var errStoreUnavailable = errors.New("store unavailable")

// fakeRepo 障害を注入できるインメモリのGridCacheRepository
type fakeRepo struct {
	mu        sync.Mutex
	places    map[string]model.AmenityRecord
	members   map[string]map[string]struct{}
	cells     map[string]model.GridCell
	placeErr  error
	cellErr   error
	findErr   error
	getErr    error
	upserts   int
	cellCalls int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		places:  make(map[string]model.AmenityRecord),
		members: make(map[string]map[string]struct{}),
		cells:   make(map[string]model.GridCell),
	}
}

func (r *fakeRepo) UpsertPlace(_ context.Context, rec model.AmenityRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	if r.placeErr != nil {
		return r.placeErr
	}
	if r.members[rec.CellID] == nil {
		r.members[rec.CellID] = make(map[string]struct{})
	}
	r.members[rec.CellID][rec.ExternalID] = struct{}{}
	if existing, ok := r.places[rec.ExternalID]; ok {
		existing.CommodityTypes = helper.MergeTypes(existing.CommodityTypes, rec.CommodityTypes)
		r.places[rec.ExternalID] = existing
		return model.ErrDuplicateKey
	}
	r.places[rec.ExternalID] = rec
	return nil
}

func (r *fakeRepo) UpsertCell(_ context.Context, cell model.GridCell) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cellCalls++
	if r.cellErr != nil {
		return r.cellErr
	}
	r.cells[cell.Geohash] = cell
	return nil
}

func (r *fakeRepo) FindCellsByIDsWithExpiry(_ context.Context, ids []string, now time.Time) ([]model.GridCell, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	var cells []model.GridCell
	for _, id := range ids {
		if cell, ok := r.cells[id]; ok && cell.IsValidAt(now) {
			cells = append(cells, cell)
		}
	}
	return cells, nil
}

func (r *fakeRepo) FindPlacesByCellsAndType(_ context.Context, cellIDs []string, commodityType string) ([]model.AmenityRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	var records []model.AmenityRecord
	for _, cellID := range cellIDs {
		for externalID := range r.members[cellID] {
			rec := r.places[externalID]
			if commodityType == "" || rec.HasType(commodityType) {
				records = append(records, rec)
			}
		}
	}
	return records, nil
}

func (r *fakeRepo) GetCell(_ context.Context, id string) (*model.GridCell, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	cell, ok := r.cells[id]
	if !ok {
		return nil, nil
	}
	return &cell, nil
}

func (r *fakeRepo) placeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.places)
}

// fakeProvider 呼び出し回数を記録する施設検索プロバイダ
type fakeProvider struct {
	mu      sync.Mutex
	places  map[string][]model.ProviderPlace
	err     error
	calls   int
	queries []model.ProviderQuery
}

func (p *fakeProvider) SearchNearby(_ context.Context, q model.ProviderQuery) ([]model.ProviderPlace, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.queries = append(p.queries, q)
	if p.err != nil {
		return nil, p.err
	}
	return p.places[q.Type], nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// recordingMetrics 記録された指標を数える
type recordingMetrics struct {
	mu        sync.Mutex
	hits      int
	misses    int
	outcomes  map[string]int
	providerE int
}

func (m *recordingMetrics) ObserveCellLookup(hits, misses int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits += hits
	m.misses += misses
}

func (m *recordingMetrics) ObserveStoredRecord(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = make(map[string]int)
	}
	m.outcomes[outcome]++
}

func (m *recordingMetrics) ObserveProviderCall(_ string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.providerE++
	}
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func providerPlace(id, name string, lat, lng float64, types ...string) model.ProviderPlace {
	return model.ProviderPlace{
		ExternalID:  id,
		DisplayName: name,
		Location:    model.LatLng{Lat: lat, Lng: lng},
		Address:     "東京都千代田区",
		Types:       types,
	}
}
