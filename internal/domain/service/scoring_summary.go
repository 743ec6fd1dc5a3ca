package service

import (
	"sort"

	"Heatmap-App/internal/domain/model"
)

// Summarize 集約スコアの平均・中央値・最小・最大と施設総数をまとめる
func Summarize(results []model.ScoreResult, cells []model.ScoringCell) model.ScoreSummary {
	summary := model.ScoreSummary{CellCount: len(results)}
	for i := range cells {
		summary.TotalAmenities += cells[i].TotalCount()
	}
	if len(results) == 0 {
		return summary
	}

	scores := make([]float64, len(results))
	var sum float64
	for i, r := range results {
		scores[i] = r.AggregatedScore
		sum += r.AggregatedScore
	}
	sort.Float64s(scores)

	summary.Mean = sum / float64(len(scores))
	summary.Min = scores[0]
	summary.Max = scores[len(scores)-1]
	mid := len(scores) / 2
	if len(scores)%2 == 0 {
		summary.Median = (scores[mid-1] + scores[mid]) / 2
	} else {
		summary.Median = scores[mid]
	}
	return summary
}

// AggregatedScores 結果から集約スコアだけを順序を保って取り出す
func AggregatedScores(results []model.ScoreResult) []float64 {
	scores := make([]float64, len(results))
	for i, r := range results {
		scores[i] = r.AggregatedScore
	}
	return scores
}

// BaseScoreList 結果からベーススコアだけを順序を保って取り出す
func BaseScoreList(results []model.ScoreResult) []float64 {
	scores := make([]float64, len(results))
	for i, r := range results {
		scores[i] = r.BaseScore
	}
	return scores
}
