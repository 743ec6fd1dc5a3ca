package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMap_Defaults(t *testing.T) {
	cfg, err := FromMap(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, BackendMemory, cfg.CacheBackend)
	assert.Equal(t, 7, cfg.GeohashPrecision)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 10*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, []string{"restaurant", "cafe", "park", "school", "supermarket"}, cfg.CommodityTypes)
	assert.Equal(t, "https://places.googleapis.com", cfg.PlacesBaseURL)

	scoring := cfg.Scoring()
	assert.Equal(t, 2000.0, scoring.MaxDistanceMeters)
	assert.Equal(t, 2.0, scoring.DecayFactor)
	assert.Equal(t, 0.5, scoring.VarianceAmplification)
}

func TestFromMap_Overrides(t *testing.T) {
	cfg, err := FromMap(map[string]string{
		"PORT":              "9090",
		"CACHE_BACKEND":     "postgres",
		"DATABASE_URL":      "postgres://localhost/heatmap?sslmode=disable",
		"CACHE_TTL":         "30m",
		"GEOHASH_PRECISION": "6",
		"COMMODITY_TYPES":   "cafe, park,cafe,,gym",
		"LOG_FORMAT":        "console",
	})
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, BackendPostgres, cfg.CacheBackend)
	assert.Equal(t, 30*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 6, cfg.GeohashPrecision)
	assert.Equal(t, []string{"cafe", "park", "gym"}, cfg.CommodityTypes)
	assert.Equal(t, "console", cfg.LogFormat)
}

func TestFromMap_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		environ map[string]string
	}{
		{"不明なバックエンド", map[string]string{"CACHE_BACKEND": "redis"}},
		{"postgresにDATABASE_URLなし", map[string]string{"CACHE_BACKEND": "postgres"}},
		{"supabaseにキーなし", map[string]string{"CACHE_BACKEND": "supabase", "SUPABASE_URL": "https://x.supabase.co"}},
		{"firestoreにプロジェクトなし", map[string]string{"CACHE_BACKEND": "firestore"}},
		{"精度が範囲外", map[string]string{"GEOHASH_PRECISION": "13"}},
		{"TTLが0", map[string]string{"CACHE_TTL": "0s"}},
		{"TTLが解釈できない", map[string]string{"CACHE_TTL": "one day"}},
		{"ポートが数値でない", map[string]string{"PORT": "http"}},
		{"施設タイプが空", map[string]string{"COMMODITY_TYPES": " , "}},
		{"ログレベル不正", map[string]string{"LOG_LEVEL": "verbose"}},
		{"減衰距離が0", map[string]string{"SCORING_MAX_DISTANCE_METERS": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := FromMap(tt.environ)
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}
