package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"Heatmap-App/internal/domain/geo"
	"Heatmap-App/internal/domain/model"
)

const (
	tokyoLat = 35.681236
	tokyoLng = 139.767125
)

func newTestCache(t *testing.T, repo *fakeRepo, clock *fixedClock, metrics Metrics) *GridCache {
	t.Helper()
	return NewGridCache(repo, time.Hour, zap.NewNop(), WithClock(clock.Now), WithCacheMetrics(metrics))
}

func tokyoCell(t *testing.T) string {
	t.Helper()
	id, err := geo.Encode(tokyoLat, tokyoLng, 7)
	require.NoError(t, err)
	return id
}

func record(id string, types ...string) model.AmenityRecord {
	return model.AmenityRecord{
		ExternalID:     id,
		DisplayName:    "施設" + id,
		Location:       model.LatLng{Lat: tokyoLat, Lng: tokyoLng},
		CommodityTypes: types,
	}
}

func TestGridCache_StoreThenValid(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	clock := &fixedClock{now: time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)}
	cache := newTestCache(t, repo, clock, nil)
	cellID := tokyoCell(t)

	assert.Empty(t, cache.ValidCellsAround(ctx, cellID, "cafe"))

	result := cache.Store(ctx, cellID, []model.AmenityRecord{record("p1", "cafe"), record("p2")}, "cafe", tokyoLat, tokyoLng)
	assert.Equal(t, StoreResult{CellID: cellID, Inserted: 2, CellUpdated: true}, result)

	valid := cache.ValidCellsAround(ctx, cellID, "cafe")
	assert.Len(t, valid, 1)
	assert.Contains(t, valid, cellID)

	stored := repo.cells[cellID]
	assert.Equal(t, model.FetchStatusCached, stored.FetchStatus)
	require.NotNil(t, stored.ExpiresAt)
	assert.Equal(t, clock.Now().Add(time.Hour), *stored.ExpiresAt)

	// タイプを持たないレコードにも保存時にタイプが付与される
	records := cache.RecordsFor(ctx, []string{cellID}, "cafe")
	assert.Len(t, records, 2)
	for _, r := range records {
		assert.True(t, r.HasType("cafe"))
		assert.Equal(t, cellID, r.CellID)
		assert.Equal(t, clock.Now(), r.FetchedAt)
	}
	assert.Empty(t, cache.RecordsFor(ctx, []string{cellID}, "park"))
	assert.Len(t, cache.RecordsFor(ctx, []string{cellID}, ""), 2)
}

func TestGridCache_ExpiredCellIsNotValid(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	clock := &fixedClock{now: time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)}
	cache := newTestCache(t, repo, clock, nil)
	cellID := tokyoCell(t)

	cache.Store(ctx, cellID, []model.AmenityRecord{record("p1", "cafe")}, "cafe", tokyoLat, tokyoLng)
	assert.Contains(t, cache.ValidCellsAround(ctx, cellID, "cafe"), cellID)

	// expires_at ちょうどは期限切れ
	clock.Advance(time.Hour)
	assert.Empty(t, cache.ValidCellsAround(ctx, cellID, "cafe"))

	// ストア上は cached のままでも、fetch_status が cached でないセルは無効
	expiresAt := clock.Now().Add(time.Hour)
	repo.cells[cellID] = model.GridCell{Geohash: cellID, FetchStatus: model.FetchStatusPending, ExpiresAt: &expiresAt}
	assert.Empty(t, cache.ValidCellsAround(ctx, cellID, "cafe"))
}

func TestGridCache_NeighborsAreConsidered(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	clock := &fixedClock{now: time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)}
	cache := newTestCache(t, repo, clock, nil)
	cellID := tokyoCell(t)

	neighbors, err := geo.Neighbors(cellID)
	require.NoError(t, err)
	cache.Store(ctx, neighbors[0], nil, "cafe", 0, 0)

	// 2周目のセルは対象外
	outer, err := geo.Neighbors(neighbors[0])
	require.NoError(t, err)
	cache.Store(ctx, outer[0], nil, "cafe", 0, 0)

	valid := cache.ValidCellsAround(ctx, cellID, "cafe")
	assert.Equal(t, map[string]struct{}{neighbors[0]: {}}, valid)
}

func TestGridCache_DuplicateExternalID(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	metrics := &recordingMetrics{}
	clock := &fixedClock{now: time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)}
	cache := newTestCache(t, repo, clock, metrics)
	cellID := tokyoCell(t)
	neighbors, err := geo.Neighbors(cellID)
	require.NoError(t, err)

	first := cache.Store(ctx, cellID, []model.AmenityRecord{record("p1", "cafe")}, "cafe", tokyoLat, tokyoLng)
	second := cache.Store(ctx, neighbors[0], []model.AmenityRecord{record("p1", "cafe")}, "cafe", tokyoLat, tokyoLng)

	assert.Equal(t, 1, first.Inserted)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 1, second.Duplicates)
	assert.Zero(t, second.Failed)
	assert.True(t, second.CellUpdated)
	assert.Equal(t, 1, repo.placeCount())

	// どちらのセルからも同じ施設が取得できる
	assert.Len(t, cache.RecordsFor(ctx, []string{cellID}, "cafe"), 1)
	assert.Len(t, cache.RecordsFor(ctx, []string{neighbors[0]}, "cafe"), 1)
	assert.Len(t, cache.RecordsFor(ctx, []string{cellID, neighbors[0]}, "cafe"), 1)

	assert.Equal(t, 1, metrics.outcomes[StoreOutcomeInserted])
	assert.Equal(t, 1, metrics.outcomes[StoreOutcomeDuplicate])
}

func TestGridCache_DuplicateMergesCommodityType(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	clock := &fixedClock{now: time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)}
	cache := newTestCache(t, repo, clock, nil)
	cellID := tokyoCell(t)
	neighbors, err := geo.Neighbors(cellID)
	require.NoError(t, err)

	cache.Store(ctx, cellID, []model.AmenityRecord{record("p1")}, "cafe", tokyoLat, tokyoLng)
	second := cache.Store(ctx, neighbors[0], []model.AmenityRecord{record("p1")}, "restaurant", tokyoLat, tokyoLng)
	assert.Equal(t, 1, second.Duplicates)

	// 後から保存したタイプでも取得できる
	got := cache.RecordsFor(ctx, []string{neighbors[0]}, "restaurant")
	require.Len(t, got, 1)
	assert.ElementsMatch(t, []string{"cafe", "restaurant"}, got[0].CommodityTypes)
	assert.Len(t, cache.RecordsFor(ctx, []string{cellID}, "cafe"), 1)
}

func TestGridCache_RepositoryFailuresDegrade(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)}
	cellID := tokyoCell(t)

	t.Run("読み取り失敗はキャッシュミス", func(t *testing.T) {
		repo := newFakeRepo()
		metrics := &recordingMetrics{}
		cache := newTestCache(t, repo, clock, metrics)
		cache.Store(ctx, cellID, []model.AmenityRecord{record("p1", "cafe")}, "cafe", tokyoLat, tokyoLng)

		repo.findErr = errStoreUnavailable
		assert.Empty(t, cache.ValidCellsAround(ctx, cellID, "cafe"))
		assert.Empty(t, cache.RecordsFor(ctx, []string{cellID}, "cafe"))
		assert.Equal(t, 9, metrics.misses)
	})

	t.Run("レコード保存失敗でもセルは更新される", func(t *testing.T) {
		repo := newFakeRepo()
		repo.placeErr = errStoreUnavailable
		cache := newTestCache(t, repo, clock, nil)

		result := cache.Store(ctx, cellID, []model.AmenityRecord{record("p1"), record("p2")}, "cafe", tokyoLat, tokyoLng)
		assert.Equal(t, 2, result.Failed)
		assert.Equal(t, 2, repo.upserts)
		assert.True(t, result.CellUpdated)
	})

	t.Run("セル保存失敗は結果に反映されるだけ", func(t *testing.T) {
		repo := newFakeRepo()
		repo.cellErr = errStoreUnavailable
		cache := newTestCache(t, repo, clock, nil)

		result := cache.Store(ctx, cellID, []model.AmenityRecord{record("p1")}, "cafe", tokyoLat, tokyoLng)
		assert.Equal(t, 1, result.Inserted)
		assert.False(t, result.CellUpdated)
		assert.Empty(t, cache.ValidCellsAround(ctx, cellID, "cafe"))
	})

	t.Run("external_id のないレコードは失敗扱い", func(t *testing.T) {
		repo := newFakeRepo()
		cache := newTestCache(t, repo, clock, nil)

		result := cache.Store(ctx, cellID, []model.AmenityRecord{record(""), record("p1")}, "cafe", tokyoLat, tokyoLng)
		assert.Equal(t, 1, result.Failed)
		assert.Equal(t, 1, result.Inserted)
	})
}

func TestGridCache_CellStatus(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	clock := &fixedClock{now: time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)}
	cache := newTestCache(t, repo, clock, nil)
	cellID := tokyoCell(t)

	view, err := cache.CellStatus(ctx, cellID)
	require.NoError(t, err)
	assert.Equal(t, model.FetchStatusPending, view.Status)
	assert.Nil(t, view.StoredCell)
	assert.Len(t, view.Neighbors, 8)
	assert.Len(t, view.Region, 5)

	cache.Store(ctx, cellID, nil, "cafe", tokyoLat, tokyoLng)
	view, err = cache.CellStatus(ctx, cellID)
	require.NoError(t, err)
	assert.Equal(t, model.FetchStatusCached, view.Status)
	require.NotNil(t, view.StoredCell)

	clock.Advance(2 * time.Hour)
	view, err = cache.CellStatus(ctx, cellID)
	require.NoError(t, err)
	assert.Equal(t, model.FetchStatusExpired, view.Status)
	// 保存値は書き換えない
	assert.Equal(t, model.FetchStatusCached, repo.cells[cellID].FetchStatus)

	repo.getErr = errStoreUnavailable
	view, err = cache.CellStatus(ctx, cellID)
	require.NoError(t, err)
	assert.Equal(t, model.FetchStatusPending, view.Status)

	_, err = cache.CellStatus(ctx, "not-a-hash!")
	assert.ErrorIs(t, err, model.ErrInvalidCellID)
}

func TestNewGridCache_Defaults(t *testing.T) {
	cache := NewGridCache(newFakeRepo(), 0, nil)
	assert.Equal(t, DefaultCacheTTL, cache.TTL())
}

func TestGridCache_ValidityIsPerType(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	clock := &fixedClock{now: time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)}
	cache := newTestCache(t, repo, clock, nil)
	cellID := tokyoCell(t)

	cache.Store(ctx, cellID, nil, "cafe", tokyoLat, tokyoLng)
	assert.Contains(t, cache.ValidCellsAround(ctx, cellID, "cafe"), cellID)
	assert.Contains(t, cache.ValidCellsAround(ctx, cellID, ""), cellID)
	assert.Empty(t, cache.ValidCellsAround(ctx, cellID, "park"))

	// 有効期間内は取得済みタイプを積み上げる
	clock.Advance(10 * time.Minute)
	cache.Store(ctx, cellID, nil, "park", tokyoLat, tokyoLng)
	assert.ElementsMatch(t, []string{"cafe", "park"}, repo.cells[cellID].FetchedTypes)
	assert.Contains(t, cache.ValidCellsAround(ctx, cellID, "cafe"), cellID)
	assert.Contains(t, cache.ValidCellsAround(ctx, cellID, "park"), cellID)

	// 期限切れ後の保存では取得済みタイプをやり直す
	clock.Advance(2 * time.Hour)
	cache.Store(ctx, cellID, nil, "school", tokyoLat, tokyoLng)
	assert.Equal(t, []string{"school"}, repo.cells[cellID].FetchedTypes)
	assert.Empty(t, cache.ValidCellsAround(ctx, cellID, "cafe"))
}
