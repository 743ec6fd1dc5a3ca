package maps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"Heatmap-App/internal/domain/model"
	"Heatmap-App/internal/domain/repository"
)

const (
	// DefaultPlacesBaseURL Google Places API (New) のエンドポイント
	DefaultPlacesBaseURL = "https://places.googleapis.com"
	// MaxSearchRadiusMeters searchNearby が受け付ける半径の上限
	MaxSearchRadiusMeters = 50000.0
	// maxResultCount 1回の問い合わせで返る件数の上限
	maxResultCount = 20

	placesFieldMask = "places.id,places.displayName,places.location,places.formattedAddress,places.types"
)

// GooglePlacesProvider はGoogle Places API (New) の searchNearby を使用した施設検索の実装
type GooglePlacesProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewGooglePlacesProvider は新しいプロバイダを生成する
//
// baseURL が空なら本番のエンドポイントを使う。
func NewGooglePlacesProvider(apiKey, baseURL string, timeout time.Duration) *GooglePlacesProvider {
	if baseURL == "" {
		baseURL = DefaultPlacesBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GooglePlacesProvider{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

var _ repository.AmenityProvider = (*GooglePlacesProvider)(nil)

// SearchNearby は中心と半径で指定した円内の施設を1タイプ分検索する
func (g *GooglePlacesProvider) SearchNearby(ctx context.Context, query model.ProviderQuery) ([]model.ProviderPlace, error) {
	// 1. リクエストボディを構築
	body, err := json.Marshal(g.buildRequest(query))
	if err != nil {
		return nil, fmt.Errorf("リクエストの構築に失敗: %w", err)
	}

	// 2. HTTPリクエストを作成・実行
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/places:searchNearby", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("リクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", g.apiKey)
	req.Header.Set("X-Goog-FieldMask", placesFieldMask)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("APIリクエストに失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr placesErrorResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("APIからエラーステータスが返されました: %s (%s)", resp.Status, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("APIからエラーステータスが返されました: %s", resp.Status)
	}

	// 3. JSONレスポンスをパース
	var apiResp searchNearbyResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("JSONのパースに失敗: %w", err)
	}

	// 4. ドメインモデルに変換して返す
	places := make([]model.ProviderPlace, 0, len(apiResp.Places))
	for _, p := range apiResp.Places {
		if p.ID == "" {
			continue
		}
		places = append(places, model.ProviderPlace{
			ExternalID:  p.ID,
			DisplayName: p.DisplayName.Text,
			Location:    model.LatLng{Lat: p.Location.Latitude, Lng: p.Location.Longitude},
			Address:     p.FormattedAddress,
			Types:       p.Types,
		})
	}
	return places, nil
}

func (g *GooglePlacesProvider) buildRequest(query model.ProviderQuery) searchNearbyRequest {
	radius := query.RadiusMeters
	if radius > MaxSearchRadiusMeters {
		radius = MaxSearchRadiusMeters
	}
	return searchNearbyRequest{
		IncludedTypes:  []string{query.Type},
		MaxResultCount: maxResultCount,
		LanguageCode:   "ja",
		LocationRestriction: locationRestriction{
			Circle: circle{
				Center: latLng{Latitude: query.Center.Lat, Longitude: query.Center.Lng},
				Radius: radius,
			},
		},
	}
}

// --- Google Places APIのリクエスト・レスポンスを表す構造体 ---

type searchNearbyRequest struct {
	IncludedTypes       []string            `json:"includedTypes"`
	MaxResultCount      int                 `json:"maxResultCount"`
	LanguageCode        string              `json:"languageCode,omitempty"`
	LocationRestriction locationRestriction `json:"locationRestriction"`
}
type locationRestriction struct {
	Circle circle `json:"circle"`
}
type circle struct {
	Center latLng  `json:"center"`
	Radius float64 `json:"radius"`
}
type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type searchNearbyResponse struct {
	Places []place `json:"places"`
}
type place struct {
	ID               string        `json:"id"`
	DisplayName      localizedText `json:"displayName"`
	Location         latLng        `json:"location"`
	FormattedAddress string        `json:"formattedAddress"`
	Types            []string      `json:"types"`
}
type localizedText struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode"`
}

type placesErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
