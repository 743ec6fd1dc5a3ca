package model

import "time"

// LatLng 緯度経度を表す基本的な型
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// AmenityRecord 実在するひとつの施設（external_id が冪等キー）
type AmenityRecord struct {
	ExternalID     string    `json:"external_id"`
	DisplayName    string    `json:"display_name"`
	Address        string    `json:"address,omitempty"`
	Location       LatLng    `json:"location"`
	CommodityTypes []string  `json:"commodity_types"`
	CellID         string    `json:"cell_id"`
	FetchedAt      time.Time `json:"fetched_at"`
}

// HasType 指定された施設タイプを持つかチェック
func (r *AmenityRecord) HasType(commodityType string) bool {
	for _, t := range r.CommodityTypes {
		if t == commodityType {
			return true
		}
	}
	return false
}

// ProviderQuery 外部施設検索プロバイダへの問い合わせ
type ProviderQuery struct {
	Center       LatLng
	RadiusMeters float64
	Type         string
}

// ProviderPlace 外部施設検索プロバイダが返す施設
type ProviderPlace struct {
	ExternalID  string   `json:"external_id"`
	DisplayName string   `json:"display_name"`
	Location    LatLng   `json:"location"`
	Address     string   `json:"address"`
	Types       []string `json:"types"`
}

// ToAmenityRecord プロバイダの結果を保存用レコードに変換
func (p *ProviderPlace) ToAmenityRecord(cellID string, fetchedAt time.Time) AmenityRecord {
	types := make([]string, len(p.Types))
	copy(types, p.Types)
	return AmenityRecord{
		ExternalID:     p.ExternalID,
		DisplayName:    p.DisplayName,
		Address:        p.Address,
		Location:       p.Location,
		CommodityTypes: types,
		CellID:         cellID,
		FetchedAt:      fetchedAt,
	}
}
