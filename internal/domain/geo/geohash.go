// Package geo はgeohashによるセル索引と距離計算を提供する。
//
// セルサイズの目安:
//
//	5 → ~4.9 km    6 → ~1.2 km    7 → ~153 m    8 → ~38 m
package geo

import (
	"fmt"
	"math"
	"strings"

	"github.com/mmcloughlin/geohash"

	"Heatmap-App/internal/domain/model"
)

const (
	MinPrecision     = 1
	MaxPrecision     = 12
	DefaultPrecision = 7

	// regionMinPrecision RegionHash の最小精度
	regionMinPrecision = 5

	base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

	// edgeMargin 北端・東端を内側に寄せる量（度）
	edgeMargin = 1e-9
)

// ValidateCoordinate 緯度経度の範囲チェック
func ValidateCoordinate(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return fmt.Errorf("%w: (%.6f, %.6f)", model.ErrInvalidCoordinate, lat, lng)
	}
	return nil
}

// ValidateCellID geohash文字列として正しいかチェック
func ValidateCellID(cellID string) error {
	if cellID == "" || len(cellID) > MaxPrecision {
		return fmt.Errorf("%w: %q", model.ErrInvalidCellID, cellID)
	}
	for i := 0; i < len(cellID); i++ {
		if strings.IndexByte(base32, cellID[i]) < 0 {
			return fmt.Errorf("%w: %q", model.ErrInvalidCellID, cellID)
		}
	}
	return nil
}

// Encode 座標を指定精度のセルIDに変換する
func Encode(lat, lng float64, precision int) (string, error) {
	if err := ValidateCoordinate(lat, lng); err != nil {
		return "", err
	}
	// 上端は整数化で桁あふれして反対側のセルになるため内側に寄せる
	lat = math.Min(lat, 90-edgeMargin)
	lng = math.Min(lng, 180-edgeMargin)
	return geohash.EncodeWithPrecision(lat, lng, uint(clampPrecision(precision))), nil
}

// Decode セルIDからセル中心を返す
func Decode(cellID string) (model.LatLng, error) {
	cellID = strings.ToLower(cellID)
	if err := ValidateCellID(cellID); err != nil {
		return model.LatLng{}, err
	}
	lat, lng := geohash.DecodeCenter(cellID)
	return model.LatLng{Lat: lat, Lng: lng}, nil
}

// BoundingBox セルIDの矩形領域
func BoundingBox(cellID string) (geohash.Box, error) {
	cellID = strings.ToLower(cellID)
	if err := ValidateCellID(cellID); err != nil {
		return geohash.Box{}, err
	}
	return geohash.BoundingBox(cellID), nil
}

// Neighbors 同精度で隣接する8セル（N, NE, E, SE, S, SW, W, NW）
func Neighbors(cellID string) ([]string, error) {
	cellID = strings.ToLower(cellID)
	if err := ValidateCellID(cellID); err != nil {
		return nil, err
	}
	return geohash.Neighbors(cellID), nil
}

// RegionHash 粗いグルーピング用のセルID（精度 max(5, precision-2)）
func RegionHash(lat, lng float64, precision int) (string, error) {
	regionPrecision := clampPrecision(precision) - 2
	if regionPrecision < regionMinPrecision {
		regionPrecision = regionMinPrecision
	}
	return Encode(lat, lng, regionPrecision)
}

// Footprint 中心セルと8近傍、secondRing の場合はさらに近傍の近傍を重複なしで返す
func Footprint(centerID string, secondRing bool) ([]string, error) {
	ring, err := Neighbors(centerID)
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{strings.ToLower(centerID): {}}
	cells := []string{strings.ToLower(centerID)}
	add := func(ids []string) {
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			cells = append(cells, id)
		}
	}
	add(ring)

	if secondRing {
		for _, neighbor := range ring {
			outer, err := Neighbors(neighbor)
			if err != nil {
				return nil, err
			}
			add(outer)
		}
	}
	return cells, nil
}

func clampPrecision(precision int) int {
	if precision < MinPrecision {
		return DefaultPrecision
	}
	if precision > MaxPrecision {
		return MaxPrecision
	}
	return precision
}

// Indexer 設定された精度を保持するgeohash索引
type Indexer struct {
	precision int
}

// NewIndexer 新しいIndexerを作成
func NewIndexer(precision int) Indexer {
	return Indexer{precision: clampPrecision(precision)}
}

// Precision 使用する精度
func (i Indexer) Precision() int {
	return i.precision
}

// Encode 設定精度でセルIDを計算
func (i Indexer) Encode(lat, lng float64) (string, error) {
	return Encode(lat, lng, i.precision)
}

// RegionHash 設定精度に対する粗いセルID
func (i Indexer) RegionHash(lat, lng float64) (string, error) {
	return RegionHash(lat, lng, i.precision)
}
