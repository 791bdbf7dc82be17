package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics for the hot loop, mirroring the teacher's
// progress-channel throughput reporting in engine.go but exported the
// idiomatic way for internal/api to serve over /metrics instead of a
// bespoke polling struct.
var (
	barsProcessedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "btcore_engine_bars_processed_total",
		Help: "Total number of exec-timeframe bars processed across all runs.",
	})
	tradesExecutedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "btcore_engine_trades_executed_total",
		Help: "Total number of trades closed across all runs.",
	})
	barProcessingSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "btcore_engine_bar_processing_seconds",
		Help:    "Wall-clock time spent processing one exec bar through the hot loop.",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(barsProcessedTotal, tradesExecutedTotal, barProcessingSeconds)
}

// observeBar records one bar's processing latency; d is measured by the
// caller, never from a package-level clock, so the metric is purely an
// observability side channel and never influences engine control flow.
func observeBar(d time.Duration) {
	barsProcessedTotal.Inc()
	barProcessingSeconds.Observe(d.Seconds())
}
