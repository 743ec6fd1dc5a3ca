package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"Heatmap-App/internal/domain/model"
)

// SQL・PostgREST共通の行表現。時刻はUTCのUnixミリ秒、配列はJSON文字列で持つ。

type placeRow struct {
	ExternalID     string  `json:"external_id"`
	DisplayName    string  `json:"display_name"`
	Address        string  `json:"address"`
	Lat            float64 `json:"lat"`
	Lng            float64 `json:"lng"`
	CommodityTypes string  `json:"commodity_types"`
	CellID         string  `json:"cell_id"`
	FetchedAt      int64   `json:"fetched_at"`
}

type placeCellRow struct {
	ExternalID string `json:"external_id"`
	CellID     string `json:"cell_id"`
}

type gridCellRow struct {
	Geohash      string  `json:"geohash"`
	CenterLat    float64 `json:"center_lat"`
	CenterLng    float64 `json:"center_lng"`
	FetchStatus  string  `json:"fetch_status"`
	FetchedAt    *int64  `json:"fetched_at"`
	ExpiresAt    *int64  `json:"expires_at"`
	LastUpdated  int64   `json:"last_updated"`
	FetchedTypes string  `json:"fetched_types"`
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func encodeStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("文字列配列のJSONマーシャル失敗: %w", err)
	}
	return string(data), nil
}

func decodeStrings(data string) ([]string, error) {
	if data == "" {
		return []string{}, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil, fmt.Errorf("文字列配列のJSONアンマーシャル失敗: %w", err)
	}
	return values, nil
}

func newPlaceRow(rec model.AmenityRecord) (placeRow, error) {
	types, err := encodeStrings(rec.CommodityTypes)
	if err != nil {
		return placeRow{}, err
	}
	return placeRow{
		ExternalID:     rec.ExternalID,
		DisplayName:    rec.DisplayName,
		Address:        rec.Address,
		Lat:            rec.Location.Lat,
		Lng:            rec.Location.Lng,
		CommodityTypes: types,
		CellID:         rec.CellID,
		FetchedAt:      toMillis(rec.FetchedAt),
	}, nil
}

func (r placeRow) toRecord() (model.AmenityRecord, error) {
	types, err := decodeStrings(r.CommodityTypes)
	if err != nil {
		return model.AmenityRecord{}, fmt.Errorf("施設 %s: %w", r.ExternalID, err)
	}
	return model.AmenityRecord{
		ExternalID:     r.ExternalID,
		DisplayName:    r.DisplayName,
		Address:        r.Address,
		Location:       model.LatLng{Lat: r.Lat, Lng: r.Lng},
		CommodityTypes: types,
		CellID:         r.CellID,
		FetchedAt:      fromMillis(r.FetchedAt),
	}, nil
}

func newGridCellRow(cell model.GridCell) (gridCellRow, error) {
	types, err := encodeStrings(cell.FetchedTypes)
	if err != nil {
		return gridCellRow{}, err
	}
	row := gridCellRow{
		Geohash:      cell.Geohash,
		CenterLat:    cell.CenterLat,
		CenterLng:    cell.CenterLng,
		FetchStatus:  string(cell.FetchStatus),
		LastUpdated:  toMillis(cell.LastUpdated),
		FetchedTypes: types,
	}
	if row.FetchStatus == "" {
		row.FetchStatus = string(model.FetchStatusPending)
	}
	if cell.FetchedAt != nil {
		ms := toMillis(*cell.FetchedAt)
		row.FetchedAt = &ms
	}
	if cell.ExpiresAt != nil {
		ms := toMillis(*cell.ExpiresAt)
		row.ExpiresAt = &ms
	}
	return row, nil
}

func (r gridCellRow) toCell() (model.GridCell, error) {
	types, err := decodeStrings(r.FetchedTypes)
	if err != nil {
		return model.GridCell{}, fmt.Errorf("セル %s: %w", r.Geohash, err)
	}
	cell := model.GridCell{
		Geohash:      r.Geohash,
		CenterLat:    r.CenterLat,
		CenterLng:    r.CenterLng,
		FetchStatus:  model.FetchStatus(r.FetchStatus),
		LastUpdated:  fromMillis(r.LastUpdated),
		FetchedTypes: types,
	}
	if r.FetchedAt != nil {
		t := fromMillis(*r.FetchedAt)
		cell.FetchedAt = &t
	}
	if r.ExpiresAt != nil {
		t := fromMillis(*r.ExpiresAt)
		cell.ExpiresAt = &t
	}
	return cell, nil
}
