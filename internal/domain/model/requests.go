package model

// PlacesQueryRequest 施設検索APIのリクエスト
type PlacesQueryRequest struct {
	Lat          *float64 `json:"lat" validate:"required,min=-90,max=90"`
	Lng          *float64 `json:"lng" validate:"required,min=-180,max=180"`
	RadiusMeters float64  `json:"radius_meters" validate:"required,gt=0,lte=50000"`
	Types        []string `json:"types" validate:"required,min=1,dive,required"`
}

// PlacesQueryResponse 施設検索APIのレスポンス
type PlacesQueryResponse struct {
	Places        []AmenityRecord `json:"places"`
	Count         int             `json:"count"`
	CellsUsed     []string        `json:"cells_used"`
	CachedCellIDs []string        `json:"cached_cell_ids"`
	NewCellIDs    []string        `json:"new_cell_ids"`
	FailedTypes   []string        `json:"failed_types,omitempty"`
}

// FetchRequest 単一タイプの取得要求
type FetchRequest struct {
	Lat           float64
	Lng           float64
	RadiusMeters  float64
	CommodityType string
}

// FetchResult 単一タイプの取得結果
type FetchResult struct {
	Places        []AmenityRecord `json:"places"`
	CellsUsed     []string        `json:"cells_used"`
	CachedCellIDs []string        `json:"cached_cell_ids"`
	NewCellIDs    []string        `json:"new_cell_ids"`
	Count         int             `json:"count"`
}

// Bounds スキャン対象の矩形領域
type Bounds struct {
	North float64 `json:"north" validate:"min=-90,max=90,gtfield=South"`
	South float64 `json:"south" validate:"min=-90,max=90"`
	East  float64 `json:"east" validate:"min=-180,max=180,gtfield=West"`
	West  float64 `json:"west" validate:"min=-180,max=180"`
}

// Center 矩形領域の中心
func (b *Bounds) Center() LatLng {
	return LatLng{Lat: (b.North + b.South) / 2, Lng: (b.East + b.West) / 2}
}

// ScanRequest ヒートマップスキャンのリクエスト
type ScanRequest struct {
	Bounds   *Bounds   `json:"bounds" validate:"required"`
	GridSize int       `json:"grid_size" validate:"required,min=1,max=50"`
	Weights  []float64 `json:"weights" validate:"required,dive,min=0,max=100"`
}

// ScanResponse ヒートマップスキャンのレスポンス
type ScanResponse struct {
	GridSize         int           `json:"grid_size"`
	CommodityTypes   []string      `json:"commodity_types"`
	CommodityLabels  []string      `json:"commodity_labels"` // 施設タイプの日本語名
	AmplifiedWeights []float64     `json:"amplified_weights"`
	Cells            []ScoringCell `json:"cells"`
	BaseScores       []float64     `json:"base_scores"`
	AggregatedScores []float64     `json:"aggregated_scores"`
	Results          []ScoreResult `json:"results"`
	Summary          ScoreSummary  `json:"summary"`
	FailedTypes      []string      `json:"failed_types,omitempty"`
}
