package repository

import (
	"github.com/paulmach/orb"

	"Heatmap-App/internal/domain/model"
)

// GeoPoint GeoJSON形式の点（Firestoreドキュメントの位置フィールド）
type GeoPoint struct {
	Type        string    `json:"type" firestore:"type"`
	Coordinates []float64 `json:"coordinates" firestore:"coordinates"`
}

// LatLngToGeoPoint model.LatLng を GeoJSON POINT 形式に変換
func LatLngToGeoPoint(p model.LatLng) GeoPoint {
	point := orb.Point{p.Lng, p.Lat}
	return GeoPoint{
		Type:        "Point",
		Coordinates: []float64{point.Lon(), point.Lat()},
	}
}

// GeoPointToLatLng GeoJSON POINT を model.LatLng に変換
func GeoPointToLatLng(g GeoPoint) (model.LatLng, bool) {
	if len(g.Coordinates) < 2 {
		return model.LatLng{}, false
	}
	// GeoJSONでは [lng, lat]
	point := orb.Point{g.Coordinates[0], g.Coordinates[1]}
	return model.LatLng{Lat: point.Lat(), Lng: point.Lon()}, true
}
