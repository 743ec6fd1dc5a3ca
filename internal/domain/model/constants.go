package model

// CommodityConstants はアプリケーションで認識する施設タイプの定数
const (
	CommodityRestaurant  = "restaurant"
	CommodityCafe        = "cafe"
	CommodityPark        = "park"
	CommoditySchool      = "school"
	CommoditySupermarket = "supermarket"
	CommodityHospital    = "hospital"
	CommodityGym         = "gym"
	CommodityLibrary     = "library"
)

// CommodityNameMap は施設タイプから日本語名へのマッピング
var CommodityNameMap = map[string]string{
	CommodityRestaurant:  "レストラン",
	CommodityCafe:        "カフェ",
	CommodityPark:        "公園",
	CommoditySchool:      "学校",
	CommoditySupermarket: "スーパー",
	CommodityHospital:    "病院",
	CommodityGym:         "ジム",
	CommodityLibrary:     "図書館",
}

// GetCommodityJapaneseName は施設タイプから日本語名を取得する
func GetCommodityJapaneseName(commodityType string) string {
	if name, ok := CommodityNameMap[commodityType]; ok {
		return name
	}
	return commodityType // デフォルトはそのまま返す
}

// DefaultCommodityTypes 重みベクトルの既定の並び
func DefaultCommodityTypes() []string {
	return []string{
		CommodityRestaurant,
		CommodityCafe,
		CommodityPark,
		CommoditySchool,
		CommoditySupermarket,
	}
}
