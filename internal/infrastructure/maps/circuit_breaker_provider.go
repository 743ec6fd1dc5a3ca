package maps

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"Heatmap-App/internal/domain/model"
	"Heatmap-App/internal/domain/repository"
)

// ErrProviderUnavailable 連続失敗で遮断中のため呼び出さなかった
var ErrProviderUnavailable = errors.New("施設検索プロバイダは一時的に利用できません")

// CircuitBreakerConfig 遮断の設定
type CircuitBreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultCircuitBreakerConfig 既定の遮断設定
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// CircuitBreakerProvider 外部検索の失敗が続いたら一定時間呼び出しを止めるデコレータ
type CircuitBreakerProvider struct {
	next   repository.AmenityProvider
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

// NewCircuitBreakerProvider next を遮断器で包む
func NewCircuitBreakerProvider(next repository.AmenityProvider, config CircuitBreakerConfig, logger *zap.Logger) *CircuitBreakerProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("サーキットブレーカーの状態が変化",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// 呼び出し側のキャンセルはプロバイダの障害として数えない
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return &CircuitBreakerProvider{next: next, cb: cb, logger: logger}
}

var _ repository.AmenityProvider = (*CircuitBreakerProvider)(nil)

func (p *CircuitBreakerProvider) SearchNearby(ctx context.Context, query model.ProviderQuery) ([]model.ProviderPlace, error) {
	result, err := p.cb.Execute(func() (interface{}, error) {
		return p.next.SearchNearby(ctx, query)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			p.logger.Debug("遮断中のため外部検索をスキップ", zap.String("type", query.Type))
			return nil, ErrProviderUnavailable
		}
		return nil, err
	}
	places, _ := result.([]model.ProviderPlace)
	return places, nil
}

// State 現在の遮断状態
func (p *CircuitBreakerProvider) State() gobreaker.State {
	return p.cb.State()
}
