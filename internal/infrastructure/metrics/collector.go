package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector アプリケーションのPrometheus指標
//
// インスタンスごとに専用のレジストリを持つため、テストで何度作成してもよい。
type Collector struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	cellLookups   *prometheus.CounterVec
	storedRecords *prometheus.CounterVec
	providerCalls *prometheus.CounterVec
	scanDuration  prometheus.Histogram
	scanCells     prometheus.Histogram
}

// NewCollector namespace 付きの指標を作成して登録する
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		cellLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "grid_cell_lookups_total",
				Help:      "Grid cells looked up in the cache, by result",
			},
			[]string{"result"},
		),
		storedRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "amenity_records_stored_total",
				Help:      "Amenity record writes, by outcome",
			},
			[]string{"outcome"},
		),
		providerCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_calls_total",
				Help:      "Amenity provider calls, by commodity type and status",
			},
			[]string{"type", "status"},
		),
		scanDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "heatmap_scan_duration_seconds",
				Help:      "Heatmap scan duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		scanCells: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "heatmap_scan_cells",
				Help:      "Number of grid cells scored per scan",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 6),
			},
		),
	}

	registry.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.cellLookups,
		c.storedRecords,
		c.providerCalls,
		c.scanDuration,
		c.scanCells,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry 指標のレジストリ
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler /metrics 用のHTTPハンドラ
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveCellLookup キャッシュ判定でのヒット・ミスのセル数
func (c *Collector) ObserveCellLookup(hits, misses int) {
	c.cellLookups.WithLabelValues("hit").Add(float64(hits))
	c.cellLookups.WithLabelValues("miss").Add(float64(misses))
}

// ObserveStoredRecord 施設レコード1件の保存結果
func (c *Collector) ObserveStoredRecord(outcome string) {
	c.storedRecords.WithLabelValues(outcome).Inc()
}

// ObserveProviderCall 外部検索1回の結果
func (c *Collector) ObserveProviderCall(commodityType string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.providerCalls.WithLabelValues(commodityType, status).Inc()
}

// ObserveScan ヒートマップスキャン1回の所要時間とセル数
func (c *Collector) ObserveScan(duration time.Duration, cellCount int) {
	c.scanDuration.Observe(duration.Seconds())
	c.scanCells.Observe(float64(cellCount))
}

// ObserveHTTPRequest HTTPリクエスト1件
func (c *Collector) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
