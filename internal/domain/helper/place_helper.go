package helper

import (
	"sort"

	"Heatmap-App/internal/domain/geo"
	"Heatmap-App/internal/domain/model"
)

// DedupeByExternalID はexternal_idで重複を除去する（最初に現れたレコードを残す）
func DedupeByExternalID(records []model.AmenityRecord) []model.AmenityRecord {
	seen := make(map[string]struct{}, len(records))
	result := make([]model.AmenityRecord, 0, len(records))
	for _, r := range records {
		if _, ok := seen[r.ExternalID]; ok {
			continue
		}
		seen[r.ExternalID] = struct{}{}
		result = append(result, r)
	}
	return result
}

// FilterByType は指定された施設タイプのレコードのみを抽出する（空文字なら全件）
func FilterByType(records []model.AmenityRecord, commodityType string) []model.AmenityRecord {
	if commodityType == "" {
		return records
	}
	var filtered []model.AmenityRecord
	for i := range records {
		if records[i].HasType(commodityType) {
			filtered = append(filtered, records[i])
		}
	}
	return filtered
}

// CountByTypes は施設タイプ列と位置を揃えた件数ベクトルを返す
func CountByTypes(records []model.AmenityRecord, commodityTypes []string) []int {
	counts := make([]int, len(commodityTypes))
	for i := range records {
		for j, t := range commodityTypes {
			if records[i].HasType(t) {
				counts[j]++
			}
		}
	}
	return counts
}

// SortByDistanceFromLocation は基準座標からの距離でレコードをソートする
func SortByDistanceFromLocation(origin model.LatLng, records []model.AmenityRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return geo.DistanceMeters(origin, records[i].Location) < geo.DistanceMeters(origin, records[j].Location)
	})
}

// EnsureType は施設タイプを含まない場合に追加したコピーを返す
func EnsureType(types []string, commodityType string) []string {
	result := make([]string, len(types), len(types)+1)
	copy(result, types)
	if commodityType == "" {
		return result
	}
	for _, t := range result {
		if t == commodityType {
			return result
		}
	}
	return append(result, commodityType)
}

// MergeTypes はbaseの順序を保ったままaddの未登録タイプを末尾に追加したコピーを返す
func MergeTypes(base, add []string) []string {
	result := make([]string, len(base), len(base)+len(add))
	copy(result, base)
	for _, t := range add {
		result = EnsureType(result, t)
	}
	return result
}

// SubtractIDs はallのうちexcludeに含まれないIDを順序を保って返す
func SubtractIDs(all []string, exclude map[string]struct{}) []string {
	var result []string
	for _, id := range all {
		if _, ok := exclude[id]; !ok {
			result = append(result, id)
		}
	}
	return result
}
