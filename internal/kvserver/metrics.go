package kvserver

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are this server's Prometheus instruments: an ops-by-kind
// counter, a wrong-shard rejection counter, a handoff-duration
// histogram, resident-key-count gauge, and handoff counters, the same
// per-operation style Voskan-arena-cache's metrics package uses.
type Metrics struct {
	opsTotal         *prometheus.CounterVec
	wrongShard       prometheus.Counter
	handoffsSent     prometheus.Counter
	handoffsReceived prometheus.Counter
	handoffDuration  prometheus.Histogram
	residentKeys     prometheus.Gauge
}

// NewMetrics builds a fresh, unregistered Metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		opsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kvserver_ops_total",
			Help: "Completed operations by kind.",
		}, []string{"op"}),
		wrongShard:       prometheus.NewCounter(prometheus.CounterOpts{Name: "kvserver_wrong_shard_total", Help: "Operations rejected because the key falls outside owned shards."}),
		handoffsSent:     prometheus.NewCounter(prometheus.CounterOpts{Name: "kvserver_handoffs_sent_total", Help: "Shard pieces handed off to another server as the source."}),
		handoffsReceived: prometheus.NewCounter(prometheus.CounterOpts{Name: "kvserver_handoffs_received_total", Help: "Shard pieces absorbed via BulkPut as the destination."}),
		handoffDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kvserver_handoff_duration_seconds",
			Help:    "Wall-clock duration of a ShardHandoff call, source side.",
			Buckets: prometheus.DefBuckets,
		}),
		residentKeys: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kvserver_resident_keys",
			Help: "Number of keys currently held in this server's store.",
		}),
	}
}

// MustRegister registers every instrument against reg.
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(m.opsTotal, m.wrongShard, m.handoffsSent, m.handoffsReceived, m.handoffDuration, m.residentKeys)
}

func (m *Metrics) observeHandoff(start time.Time) {
	m.handoffDuration.Observe(time.Since(start).Seconds())
}
