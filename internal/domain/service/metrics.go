package service

// 保存結果のラベル
const (
	StoreOutcomeInserted  = "inserted"
	StoreOutcomeDuplicate = "duplicate"
	StoreOutcomeFailed    = "failed"
)

// Metrics サービス層が記録する指標
type Metrics interface {
	ObserveCellLookup(hits, misses int)
	ObserveStoredRecord(outcome string)
	ObserveProviderCall(commodityType string, err error)
}

type nopMetrics struct{}

func (nopMetrics) ObserveCellLookup(int, int) {}
func (nopMetrics) ObserveStoredRecord(string) {}
func (nopMetrics) ObserveProviderCall(string, error) {}

func metricsOrNop(m Metrics) Metrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}
