package model

import "time"

// FetchStatus グリッドセルの取得状態
type FetchStatus string

const (
	FetchStatusPending FetchStatus = "pending"
	FetchStatusCached  FetchStatus = "cached"
	// FetchStatusExpired は読み取り時に導出されるだけで、書き込み経路では保存しない
	FetchStatusExpired FetchStatus = "expired"
)

// GridCell geohashで識別される空間バケットとその取得メタデータ
type GridCell struct {
	Geohash      string      `json:"geohash"`      // Geohash識別子（一意）
	CenterLat    float64     `json:"center_lat"`   // セル中心の緯度
	CenterLng    float64     `json:"center_lng"`   // セル中心の経度
	FetchStatus  FetchStatus `json:"fetch_status"` // 保存されている取得状態
	FetchedAt    *time.Time  `json:"fetched_at,omitempty"`
	ExpiresAt    *time.Time  `json:"expires_at,omitempty"`
	LastUpdated  time.Time   `json:"last_updated"`
	FetchedTypes []string    `json:"fetched_types"` // 現在の有効期間内に取得済みの施設タイプ
}

// IsValidAt fetch_status=cached かつ now < expires_at の場合のみ有効
func (c *GridCell) IsValidAt(now time.Time) bool {
	if c == nil || c.FetchStatus != FetchStatusCached || c.ExpiresAt == nil {
		return false
	}
	return now.Before(*c.ExpiresAt)
}

// CoversType 施設タイプが取得済みかチェック（空文字はタイプを問わない）
func (c *GridCell) CoversType(commodityType string) bool {
	if commodityType == "" {
		return true
	}
	for _, t := range c.FetchedTypes {
		if t == commodityType {
			return true
		}
	}
	return false
}

// EffectiveStatus 保存値ではなく読み取り時点で解釈した状態を返す
func (c *GridCell) EffectiveStatus(now time.Time) FetchStatus {
	if c == nil {
		return FetchStatusPending
	}
	switch {
	case c.IsValidAt(now):
		return FetchStatusCached
	case c.FetchStatus == FetchStatusCached, c.FetchStatus == FetchStatusExpired:
		return FetchStatusExpired
	default:
		return FetchStatusPending
	}
}

// Center セル中心をLatLngで返す
func (c *GridCell) Center() LatLng {
	return LatLng{Lat: c.CenterLat, Lng: c.CenterLng}
}

// CellStatusView セル照会APIのレスポンス
type CellStatusView struct {
	Geohash    string      `json:"geohash"`
	Center     LatLng      `json:"center"`
	Region     string      `json:"region"`
	Neighbors  []string    `json:"neighbors"`
	Status     FetchStatus `json:"status"`
	StoredCell *GridCell   `json:"stored_cell,omitempty"`
	CheckedAt  time.Time   `json:"checked_at"`
}
