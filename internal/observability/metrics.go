package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors named in spec.md's observability
// integration points (§4.7): exec duration, bus queue pressure, bridge
// reconnects/flushes, and render cache hit/miss.
type Metrics struct {
	EventsEnqueued *prometheus.CounterVec
	BulkForced     prometheus.Counter

	ExecDuration *prometheus.HistogramVec

	BridgeReconnects prometheus.Counter
	BridgeBatchFlush *prometheus.CounterVec

	RenderCacheHit  prometheus.Counter
	RenderCacheMiss prometheus.Counter
}

// NewMetrics registers codecore's collectors against reg. A nil reg
// registers against prometheus.DefaultRegisterer, matching promauto's own
// default.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		EventsEnqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "codecore_events_enqueued_total",
			Help: "Messages enqueued onto the event bus, by queue.",
		}, []string{"queue"}),
		BulkForced: factory.NewCounter(prometheus.CounterOpts{
			Name: "codecore_bulk_forced_total",
			Help: "Times the starvation guard forced a bulk message through ahead of queued high-priority ones.",
		}),
		ExecDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "codecore_exec_duration_seconds",
			Help:    "Wall-clock duration of exec pipeline runs.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"status"}),
		BridgeReconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "codecore_bridge_reconnects_total",
			Help: "Times the bridge client re-entered Connecting after a drop.",
		}),
		BridgeBatchFlush: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "codecore_bridge_batch_flush_total",
			Help: "Bridge event batcher flushes, by trigger reason.",
		}, []string{"reason"}),
		RenderCacheHit: factory.NewCounter(prometheus.CounterOpts{
			Name: "codecore_render_cache_hit_total",
			Help: "Render layout cache hits.",
		}),
		RenderCacheMiss: factory.NewCounter(prometheus.CounterOpts{
			Name: "codecore_render_cache_miss_total",
			Help: "Render layout cache misses requiring a fresh layout pass.",
		}),
	}
}

// ObserveBusStats copies an eventbus.Bus snapshot into the bus-shaped
// counters. Counters only move forward, so this is safe to call repeatedly
// with cumulative totals — it adds the delta since the last observed value.
func (m *Metrics) ObserveBusStats(highEnqueued, bulkEnqueued, bulkForced int64, prevHigh, prevBulk, prevForced *int64) {
	if m == nil {
		return
	}
	if d := highEnqueued - *prevHigh; d > 0 {
		m.EventsEnqueued.WithLabelValues("high").Add(float64(d))
	}
	if d := bulkEnqueued - *prevBulk; d > 0 {
		m.EventsEnqueued.WithLabelValues("bulk").Add(float64(d))
	}
	if d := bulkForced - *prevForced; d > 0 {
		m.BulkForced.Add(float64(d))
	}
	*prevHigh, *prevBulk, *prevForced = highEnqueued, bulkEnqueued, bulkForced
}
