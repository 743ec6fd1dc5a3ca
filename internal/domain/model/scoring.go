package model

// ScoringCell スコア計算の入力となるセル（CommodityCounts は重みベクトルと位置で対応）
type ScoringCell struct {
	ID              string  `json:"id"`
	CenterLat       float64 `json:"center_lat"`
	CenterLng       float64 `json:"center_lng"`
	CommodityCounts []int   `json:"commodity_counts"`
}

// Center セル中心をLatLngで返す
func (c *ScoringCell) Center() LatLng {
	return LatLng{Lat: c.CenterLat, Lng: c.CenterLng}
}

// TotalCount セル内の施設総数（0以下の件数は数えない）
func (c *ScoringCell) TotalCount() int {
	total := 0
	for _, n := range c.CommodityCounts {
		if n <= 0 {
			continue
		}
		total += n
	}
	return total
}

// ScoreBreakdown 集約スコアへの各セルの寄与
type ScoreBreakdown struct {
	CellID         string  `json:"cell_id"`
	DistanceMeters float64 `json:"distance_meters"`
	Weight         float64 `json:"weight"`       // 距離減衰の重み
	Score          float64 `json:"score"`        // 寄与セルのベーススコア
	Contribution   float64 `json:"contribution"` // score*weight/Σweight
}

// ScoreResult 1セル分のスコア計算結果
type ScoreResult struct {
	CellID            string           `json:"cell_id"`
	BaseScore         float64          `json:"base_score"`
	AggregatedScore   float64          `json:"aggregated_score"`
	ContributingCells int              `json:"contributing_cells"`
	Breakdown         []ScoreBreakdown `json:"breakdown"`
}

// ScoreSummary データセット全体の統計
type ScoreSummary struct {
	CellCount      int     `json:"cell_count"`
	Mean           float64 `json:"mean"`
	Median         float64 `json:"median"`
	Min            float64 `json:"min"`
	Max            float64 `json:"max"`
	TotalAmenities int     `json:"total_amenities"`
}
