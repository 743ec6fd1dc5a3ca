package service

import (
	"math"
	"sort"

	"Heatmap-App/internal/domain/geo"
	"Heatmap-App/internal/domain/model"
)

const (
	MinScore = 0.0
	MaxScore = 100.0

	DefaultMaxDistanceMeters     = 2000.0
	DefaultDecayFactor           = 2.0
	DefaultVarianceAmplification = 0.5
)

// ScoringConfig スコア計算の定数
type ScoringConfig struct {
	MaxDistanceMeters     float64
	DecayFactor           float64
	VarianceAmplification float64
}

// DefaultScoringConfig 既定のスコア計算定数
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		MaxDistanceMeters:     DefaultMaxDistanceMeters,
		DecayFactor:           DefaultDecayFactor,
		VarianceAmplification: DefaultVarianceAmplification,
	}
}

// ScoringEngine セルごとの施設数から0〜100の望ましさスコアを計算する
//
// I/Oを持たない純粋な計算で、複数のgoroutineから同時に呼び出してよい。
type ScoringEngine struct {
	cfg ScoringConfig
}

// NewScoringEngine 新しいScoringEngineを作成
func NewScoringEngine(cfg ScoringConfig) *ScoringEngine {
	if cfg.MaxDistanceMeters <= 0 {
		cfg.MaxDistanceMeters = DefaultMaxDistanceMeters
	}
	if cfg.DecayFactor < 0 {
		cfg.DecayFactor = DefaultDecayFactor
	}
	if cfg.VarianceAmplification < 0 {
		cfg.VarianceAmplification = DefaultVarianceAmplification
	}
	return &ScoringEngine{cfg: cfg}
}

// Config 使用中の定数
func (e *ScoringEngine) Config() ScoringConfig {
	return e.cfg
}

// Amplify 平均から離れた好みほど、さらに平均から遠ざける
//
// 標準偏差が0の場合は入力をそのまま（コピーして）返す。
func (e *ScoringEngine) Amplify(weights []float64) []float64 {
	result := make([]float64, len(weights))
	copy(result, weights)
	if len(weights) == 0 {
		return result
	}

	mean, stddev := meanStddev(weights)
	if stddev == 0 {
		return result
	}

	for i, w := range weights {
		zScore := math.Abs(w-mean) / stddev
		factor := 1 + zScore*e.cfg.VarianceAmplification
		result[i] = clamp(mean+(w-mean)*factor, MinScore, MaxScore)
	}
	return result
}

// BaseScore 施設数で重み付けした好みの平均（施設が0件なら0）
//
// 重みベクトルより長い件数は無視する。
func (e *ScoringEngine) BaseScore(cell model.ScoringCell, amplified []float64) float64 {
	var weightedSum, total float64
	for i, count := range cell.CommodityCounts {
		if i >= len(amplified) || count <= 0 {
			continue
		}
		weightedSum += float64(count) * amplified[i]
		total += float64(count)
	}
	if total == 0 {
		return 0
	}
	return clamp(weightedSum/total, MinScore, MaxScore)
}

// Decay 距離減衰 exp(-f*(d/max)^2)、max を超えると0
func (e *ScoringEngine) Decay(distanceMeters float64) float64 {
	if distanceMeters < 0 || distanceMeters > e.cfg.MaxDistanceMeters {
		return 0
	}
	ratio := distanceMeters / e.cfg.MaxDistanceMeters
	return math.Exp(-e.cfg.DecayFactor * ratio * ratio)
}

// AggregateScore 最大距離内の全セル（自身を含む）のベーススコアを距離減衰で加重平均する
//
// baseScores はセルIDをキーにしたベーススコア表。
func (e *ScoringEngine) AggregateScore(target model.ScoringCell, cells []model.ScoringCell, baseScores map[string]float64) model.ScoreResult {
	targetBase := baseScores[target.ID]
	result := model.ScoreResult{
		CellID:    target.ID,
		BaseScore: targetBase,
		Breakdown: []model.ScoreBreakdown{},
	}

	center := target.Center()
	var weightedSum, weightTotal float64
	for _, other := range cells {
		distance := 0.0
		if other.ID != target.ID {
			distance = geo.DistanceMeters(center, other.Center())
		}
		weight := e.Decay(distance)
		if weight <= 0 {
			continue
		}
		score := baseScores[other.ID]
		weightedSum += score * weight
		weightTotal += weight
		result.Breakdown = append(result.Breakdown, model.ScoreBreakdown{
			CellID:         other.ID,
			DistanceMeters: distance,
			Weight:         weight,
			Score:          score,
		})
	}

	if weightTotal == 0 {
		result.AggregatedScore = clamp(targetBase, MinScore, MaxScore)
		return result
	}

	for i := range result.Breakdown {
		b := &result.Breakdown[i]
		b.Contribution = b.Score * b.Weight / weightTotal
	}
	sort.SliceStable(result.Breakdown, func(i, j int) bool {
		return result.Breakdown[i].DistanceMeters < result.Breakdown[j].DistanceMeters
	})

	result.ContributingCells = len(result.Breakdown)
	result.AggregatedScore = clamp(weightedSum/weightTotal, MinScore, MaxScore)
	return result
}

// BaseScores 全セルのベーススコアを一度だけ計算する
func (e *ScoringEngine) BaseScores(cells []model.ScoringCell, amplified []float64) map[string]float64 {
	scores := make(map[string]float64, len(cells))
	for _, cell := range cells {
		scores[cell.ID] = e.BaseScore(cell, amplified)
	}
	return scores
}

// ScoreAll 重みの増幅とベーススコアを使い回して全セルの集約スコアを計算する
//
// セル数の2乗の距離計算が支配的になる。
func (e *ScoringEngine) ScoreAll(cells []model.ScoringCell, weights []float64) []model.ScoreResult {
	amplified := e.Amplify(weights)
	baseScores := e.BaseScores(cells, amplified)

	results := make([]model.ScoreResult, len(cells))
	for i, cell := range cells {
		results[i] = e.AggregateScore(cell, cells, baseScores)
	}
	return results
}

func meanStddev(values []float64) (mean, stddev float64) {
	n := float64(len(values))
	for _, v := range values {
		mean += v
	}
	mean /= n

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= n
	return mean, math.Sqrt(variance)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
