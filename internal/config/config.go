package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"Heatmap-App/internal/domain/service"
)

// キャッシュの保存先
const (
	BackendMemory    = "memory"
	BackendSQLite    = "sqlite"
	BackendPostgres  = "postgres"
	BackendSupabase  = "supabase"
	BackendFirestore = "firestore"
)

// Config 環境変数から読み込むアプリケーション設定
type Config struct {
	Port    int    `env:"PORT" envDefault:"8080" validate:"min=1,max=65535"`
	GinMode string `env:"GIN_MODE" envDefault:"release" validate:"oneof=debug release test"`

	CacheBackend         string `env:"CACHE_BACKEND" envDefault:"memory" validate:"oneof=memory sqlite postgres supabase firestore"`
	SQLitePath           string `env:"SQLITE_PATH" envDefault:"heatmap.db" validate:"required_if=CacheBackend sqlite"`
	DatabaseURL          string `env:"DATABASE_URL" validate:"required_if=CacheBackend postgres"`
	SupabaseURL          string `env:"SUPABASE_URL" validate:"required_if=CacheBackend supabase"`
	SupabaseAnonKey      string `env:"SUPABASE_ANON_KEY" validate:"required_if=CacheBackend supabase"`
	FirestoreProjectID   string `env:"FIRESTORE_PROJECT_ID" validate:"required_if=CacheBackend firestore"`
	GoogleCredentialFile string `env:"GOOGLE_APPLICATION_CREDENTIALS"`

	GooglePlacesAPIKey string        `env:"GOOGLE_PLACES_API_KEY"`
	PlacesBaseURL      string        `env:"PLACES_BASE_URL" envDefault:"https://places.googleapis.com" validate:"url"`
	ProviderTimeout    time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s" validate:"gt=0s"`

	GeohashPrecision int           `env:"GEOHASH_PRECISION" envDefault:"7" validate:"min=1,max=12"`
	CacheTTL         time.Duration `env:"CACHE_TTL" envDefault:"24h" validate:"gt=0s"`
	CommodityTypes   []string      `env:"COMMODITY_TYPES" envDefault:"restaurant,cafe,park,school,supermarket" envSeparator:"," validate:"min=1,dive,required"`

	ScoringMaxDistanceMeters     float64 `env:"SCORING_MAX_DISTANCE_METERS" envDefault:"2000" validate:"gt=0"`
	ScoringDecayFactor           float64 `env:"SCORING_DECAY_FACTOR" envDefault:"2.0" validate:"gte=0"`
	ScoringVarianceAmplification float64 `env:"SCORING_VARIANCE_AMPLIFICATION" envDefault:"0.5" validate:"gte=0"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json" validate:"oneof=json console"`
}

// Load .env があれば読み込んだうえで環境変数から設定を作る
//
// .env が見つからない場合は環境変数だけを使う。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf(".envファイルの読み込みに失敗: %w", err)
	}
	return parse(env.Options{})
}

// FromMap 指定した環境変数の組から設定を作る
func FromMap(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.CommodityTypes = normalizeTypes(cfg.CommodityTypes)

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(&cfg); err != nil {
		return nil, fmt.Errorf("設定値が不正です: %w", err)
	}
	return &cfg, nil
}

// Scoring スコア計算の定数
func (c *Config) Scoring() service.ScoringConfig {
	return service.ScoringConfig{
		MaxDistanceMeters:     c.ScoringMaxDistanceMeters,
		DecayFactor:           c.ScoringDecayFactor,
		VarianceAmplification: c.ScoringVarianceAmplification,
	}
}

// Addr HTTPサーバーの待ち受けアドレス
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func normalizeTypes(types []string) []string {
	seen := make(map[string]struct{}, len(types))
	result := make([]string, 0, len(types))
	for _, t := range types {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		result = append(result, t)
	}
	return result
}
