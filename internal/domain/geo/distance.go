package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"Heatmap-App/internal/domain/model"
)

// ToPoint LatLng を orb.Point（[lng, lat]）に変換
func ToPoint(p model.LatLng) orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

// DistanceMeters 2地点間のハーバーサイン距離（m）
func DistanceMeters(a, b model.LatLng) float64 {
	return geo.DistanceHaversine(ToPoint(a), ToPoint(b))
}

// BoundsToOrb model.Bounds を orb.Bound に変換
func BoundsToOrb(b *model.Bounds) orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.West, b.South},
		Max: orb.Point{b.East, b.North},
	}
}

// HalfDiagonalMeters 矩形の中心から角までの距離（m）
func HalfDiagonalMeters(b *model.Bounds) float64 {
	bound := BoundsToOrb(b)
	return geo.DistanceHaversine(bound.Center(), bound.Max)
}

// GridCellIndex 矩形を size×size に分割したときの行（北が0）と列を返す
func GridCellIndex(b *model.Bounds, size int, p model.LatLng) (row, col int, ok bool) {
	if size <= 0 || !BoundsToOrb(b).Contains(ToPoint(p)) {
		return 0, 0, false
	}
	latStep := (b.North - b.South) / float64(size)
	lngStep := (b.East - b.West) / float64(size)

	row = int(math.Floor((b.North - p.Lat) / latStep))
	col = int(math.Floor((p.Lng - b.West) / lngStep))
	// 南端・東端上の点は最後の行・列に含める
	if row >= size {
		row = size - 1
	}
	if col >= size {
		col = size - 1
	}
	return row, col, true
}

// GridCellCenter 分割セル (row, col) の中心
func GridCellCenter(b *model.Bounds, size, row, col int) model.LatLng {
	latStep := (b.North - b.South) / float64(size)
	lngStep := (b.East - b.West) / float64(size)
	return model.LatLng{
		Lat: b.North - (float64(row)+0.5)*latStep,
		Lng: b.West + (float64(col)+0.5)*lngStep,
	}
}
