package service

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Heatmap-App/internal/domain/model"
)

func newTestEngine() *ScoringEngine {
	return NewScoringEngine(ScoringConfig{
		MaxDistanceMeters:     1000,
		DecayFactor:           2.0,
		VarianceAmplification: 0.5,
	})
}

func TestAmplify_ZeroVariance(t *testing.T) {
	engine := newTestEngine()
	weights := []float64{50, 50, 50, 50, 50}

	got := engine.Amplify(weights)
	assert.Equal(t, []float64{50, 50, 50, 50, 50}, got)

	// 入力は変更されない
	got[0] = 1
	assert.Equal(t, 50.0, weights[0])
}

func TestAmplify_Outliers(t *testing.T) {
	engine := newTestEngine()

	t.Run("両端の外れ値は範囲内に収まる", func(t *testing.T) {
		weights := []float64{0, 100, 50, 50, 50}
		got := engine.Amplify(weights)
		for i, w := range got {
			assert.GreaterOrEqual(t, w, 0.0)
			assert.LessOrEqual(t, w, 100.0)
			assert.GreaterOrEqual(t, math.Abs(w-50), math.Abs(weights[i]-50))
		}
		assert.Equal(t, 0.0, got[0])
		assert.Equal(t, 100.0, got[1])
		assert.Equal(t, []float64{50, 50, 50}, got[2:])
	})

	t.Run("外れ値は平均から遠ざかる", func(t *testing.T) {
		// mean=50, 母標準偏差=sqrt(40), z≈1.58
		weights := []float64{40, 60, 50, 50, 50}
		got := engine.Amplify(weights)
		factor := 1 + 10/math.Sqrt(40)*0.5
		assert.InDelta(t, 50-10*factor, got[0], 1e-9)
		assert.InDelta(t, 50+10*factor, got[1], 1e-9)
		assert.Less(t, got[0], 40.0)
		assert.Greater(t, got[1], 60.0)
		assert.Equal(t, []float64{50, 50, 50}, got[2:])
	})

	t.Run("空の重み", func(t *testing.T) {
		assert.Empty(t, engine.Amplify(nil))
	})
}

func TestBaseScore_UsesAmplifiedWeights(t *testing.T) {
	engine := newTestEngine()
	weights := []float64{85, 60, 40, 70, 90}
	cell := model.ScoringCell{ID: "c", CommodityCounts: []int{15, 4, 6, 3, 20}}

	// mean=69, 母標準偏差=18, k=0.5
	// 85 -> 69 + 16*(1+16/36) = 829/9
	// 60 -> 69 - 9*(1+9/36)   = 231/4
	// 40 -> 69 - 29*(1+29/36) = 599/36
	// 70 -> 69 + 1*(1+1/36)   = 2521/36
	// 90 -> 69 + 21*(1+21/36) = 102.25 -> 100
	amplified := engine.Amplify(weights)
	require.Len(t, amplified, 5)
	assert.InDelta(t, 829.0/9, amplified[0], 1e-9)
	assert.InDelta(t, 231.0/4, amplified[1], 1e-9)
	assert.InDelta(t, 599.0/36, amplified[2], 1e-9)
	assert.InDelta(t, 2521.0/36, amplified[3], 1e-9)
	assert.Equal(t, 100.0, amplified[4])

	expected := (15*829.0/9 + 4*231.0/4 + 6*599.0/36 + 3*2521.0/36 + 20*100.0) / 48
	got := engine.BaseScore(cell, amplified)
	assert.InDelta(t, expected, got, 1e-9)
	assert.InDelta(t, 81.72048611, got, 1e-6)

	// 生の重みでの平均とは異なる
	raw := (15*85.0 + 4*60.0 + 6*40.0 + 3*70.0 + 20*90.0) / 48
	assert.NotEqual(t, raw, got)
}

func TestBaseScore_EdgeCases(t *testing.T) {
	engine := newTestEngine()
	weights := []float64{100, 0, 50}

	assert.Equal(t, 0.0, engine.BaseScore(model.ScoringCell{ID: "empty", CommodityCounts: []int{0, 0, 0}}, weights))
	assert.Equal(t, 0.0, engine.BaseScore(model.ScoringCell{ID: "nil"}, weights))

	// 施設数に依存しない加重平均
	one := engine.BaseScore(model.ScoringCell{ID: "one", CommodityCounts: []int{1, 0, 0}}, weights)
	many := engine.BaseScore(model.ScoringCell{ID: "many", CommodityCounts: []int{100, 0, 0}}, weights)
	assert.Equal(t, 100.0, one)
	assert.Equal(t, one, many)

	// 重みベクトルを超える件数は無視
	extra := engine.BaseScore(model.ScoringCell{ID: "extra", CommodityCounts: []int{1, 1, 0, 5}}, weights)
	assert.Equal(t, 50.0, extra)
}

func TestDecay(t *testing.T) {
	engine := newTestEngine()
	maxDistance := engine.Config().MaxDistanceMeters

	assert.Equal(t, 1.0, engine.Decay(0))
	assert.InDelta(t, math.Exp(-2.0), engine.Decay(maxDistance), 1e-12)
	assert.Equal(t, 0.0, engine.Decay(maxDistance+0.001))
	assert.Equal(t, 0.0, engine.Decay(maxDistance*10))

	// 単調減少
	assert.Greater(t, engine.Decay(100), engine.Decay(500))
}

func TestAggregateScore_IsolatedCell(t *testing.T) {
	engine := newTestEngine()
	cells := []model.ScoringCell{
		{ID: "a", CenterLat: 35.0, CenterLng: 135.0, CommodityCounts: []int{1, 0}},
		{ID: "far", CenterLat: 36.0, CenterLng: 135.0, CommodityCounts: []int{0, 1}},
	}
	baseScores := engine.BaseScores(cells, []float64{80, 20})

	result := engine.AggregateScore(cells[0], cells, baseScores)
	assert.Equal(t, result.BaseScore, result.AggregatedScore)
	assert.Equal(t, 80.0, result.AggregatedScore)
	assert.Equal(t, 1, result.ContributingCells)
	require.Len(t, result.Breakdown, 1)
	assert.Equal(t, "a", result.Breakdown[0].CellID)
	assert.Equal(t, 1.0, result.Breakdown[0].Weight)
}

func TestAggregateScore_DistanceWeighted(t *testing.T) {
	engine := newTestEngine()
	// 緯度0.001度 ≈ 111m
	cells := []model.ScoringCell{
		{ID: "b", CenterLat: 35.004, CenterLng: 135.0, CommodityCounts: []int{0, 1}},
		{ID: "a", CenterLat: 35.0, CenterLng: 135.0, CommodityCounts: []int{1, 0}},
		{ID: "c", CenterLat: 35.002, CenterLng: 135.0, CommodityCounts: []int{1, 1}},
		{ID: "far", CenterLat: 35.5, CenterLng: 135.0, CommodityCounts: []int{0, 1}},
	}
	weights := []float64{100, 0}
	baseScores := engine.BaseScores(cells, weights)
	assert.Equal(t, 100.0, baseScores["a"])
	assert.Equal(t, 0.0, baseScores["b"])
	assert.Equal(t, 50.0, baseScores["c"])

	result := engine.AggregateScore(cells[1], cells, baseScores)
	assert.Equal(t, 3, result.ContributingCells)
	assert.Less(t, result.AggregatedScore, 100.0)
	assert.Greater(t, result.AggregatedScore, 50.0)

	// 距離の昇順
	require.Len(t, result.Breakdown, 3)
	assert.Equal(t, "a", result.Breakdown[0].CellID)
	assert.Equal(t, "c", result.Breakdown[1].CellID)
	assert.Equal(t, "b", result.Breakdown[2].CellID)

	var sum float64
	for _, b := range result.Breakdown {
		sum += b.Contribution
	}
	assert.InDelta(t, result.AggregatedScore, sum, 1e-9)
}

func TestScoreAll(t *testing.T) {
	engine := newTestEngine()
	cells := []model.ScoringCell{
		{ID: "a", CenterLat: 35.0, CenterLng: 135.0, CommodityCounts: []int{3, 1, 0}},
		{ID: "b", CenterLat: 35.001, CenterLng: 135.0, CommodityCounts: []int{0, 0, 0}},
		{ID: "c", CenterLat: 35.002, CenterLng: 135.001, CommodityCounts: []int{0, 2, 5}},
	}
	weights := []float64{90, 50, 10}

	results := engine.ScoreAll(cells, weights)
	require.Len(t, results, 3)

	amplified := engine.Amplify(weights)
	baseScores := engine.BaseScores(cells, amplified)
	for i, r := range results {
		assert.Equal(t, cells[i].ID, r.CellID)
		assert.Equal(t, baseScores[cells[i].ID], r.BaseScore)
		assert.GreaterOrEqual(t, r.AggregatedScore, 0.0)
		assert.LessOrEqual(t, r.AggregatedScore, 100.0)
	}
	// 施設のないセルも近傍の影響で0より大きくなる
	assert.Equal(t, 0.0, results[1].BaseScore)
	assert.Greater(t, results[1].AggregatedScore, 0.0)
}

func TestScoreAll_Concurrent(t *testing.T) {
	engine := newTestEngine()
	cells := []model.ScoringCell{
		{ID: "a", CenterLat: 35.0, CenterLng: 135.0, CommodityCounts: []int{3, 1}},
		{ID: "b", CenterLat: 35.001, CenterLng: 135.0, CommodityCounts: []int{1, 4}},
	}
	want := engine.ScoreAll(cells, []float64{70, 30})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, want, engine.ScoreAll(cells, []float64{70, 30}))
		}()
	}
	wg.Wait()
}

func TestNewScoringEngine_Defaults(t *testing.T) {
	engine := NewScoringEngine(ScoringConfig{MaxDistanceMeters: -1, DecayFactor: -1, VarianceAmplification: -1})
	assert.Equal(t, DefaultScoringConfig(), engine.Config())
}

func TestSummarize(t *testing.T) {
	results := []model.ScoreResult{
		{CellID: "a", AggregatedScore: 10},
		{CellID: "b", AggregatedScore: 40},
		{CellID: "c", AggregatedScore: 20},
		{CellID: "d", AggregatedScore: 90},
	}
	cells := []model.ScoringCell{
		{ID: "a", CommodityCounts: []int{1, 2}},
		{ID: "b", CommodityCounts: []int{3}},
		{ID: "c"},
		{ID: "d", CommodityCounts: []int{0, 4}},
	}

	summary := Summarize(results, cells)
	assert.Equal(t, 4, summary.CellCount)
	assert.Equal(t, 40.0, summary.Mean)
	assert.Equal(t, 30.0, summary.Median)
	assert.Equal(t, 10.0, summary.Min)
	assert.Equal(t, 90.0, summary.Max)
	assert.Equal(t, 10, summary.TotalAmenities)

	odd := Summarize(results[:3], cells[:3])
	assert.Equal(t, 20.0, odd.Median)

	empty := Summarize(nil, nil)
	assert.Equal(t, model.ScoreSummary{}, empty)

	assert.Equal(t, []float64{10, 40, 20, 90}, AggregatedScores(results))

	// 負の件数は施設総数に含めない
	negative := Summarize(results[:2], []model.ScoringCell{
		{ID: "a", CommodityCounts: []int{-5, 2}},
		{ID: "b", CommodityCounts: []int{3, -1}},
	})
	assert.Equal(t, 5, negative.TotalAmenities)
	negativeCell := model.ScoringCell{CommodityCounts: []int{-3, 0, 4}}
	assert.Equal(t, 4, negativeCell.TotalCount())
}
