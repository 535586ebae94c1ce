package shardcontroller

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the controller's Prometheus instruments, mirroring the
// operation-counter pattern Voskan-arena-cache exposes for its cache
// tiers. Instruments are unregistered (not auto-registered against the
// default registry) so tests and multiple Controllers in one process
// don't collide; callers register via Metrics.MustRegister.
type Metrics struct {
	joinAccepted  prometheus.Counter
	joinRejected  prometheus.Counter
	leaveAccepted prometheus.Counter
	leaveRejected prometheus.Counter
	moveSucceeded prometheus.Counter
	moveFailed    prometheus.Counter

	epoch         prometheus.Gauge
	serverCount   prometheus.Gauge
	inFlightMoves prometheus.Gauge
}

// NewMetrics builds a fresh, unregistered Metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		joinAccepted:  prometheus.NewCounter(prometheus.CounterOpts{Name: "shardcontroller_join_accepted_total", Help: "Join calls that added a new server."}),
		joinRejected:  prometheus.NewCounter(prometheus.CounterOpts{Name: "shardcontroller_join_rejected_total", Help: "Join calls rejected as AlreadyJoined."}),
		leaveAccepted: prometheus.NewCounter(prometheus.CounterOpts{Name: "shardcontroller_leave_accepted_total", Help: "Leave calls that removed a server."}),
		leaveRejected: prometheus.NewCounter(prometheus.CounterOpts{Name: "shardcontroller_leave_rejected_total", Help: "Leave calls rejected as NotJoined."}),
		moveSucceeded: prometheus.NewCounter(prometheus.CounterOpts{Name: "shardcontroller_move_succeeded_total", Help: "Move calls that committed."}),
		moveFailed:    prometheus.NewCounter(prometheus.CounterOpts{Name: "shardcontroller_move_failed_total", Help: "Move calls that failed and left the configuration unchanged."}),
		epoch:         prometheus.NewGauge(prometheus.GaugeOpts{Name: "shardcontroller_epoch", Help: "Current configuration epoch."}),
		serverCount:   prometheus.NewGauge(prometheus.GaugeOpts{Name: "shardcontroller_server_count", Help: "Number of servers currently joined."}),
		inFlightMoves: prometheus.NewGauge(prometheus.GaugeOpts{Name: "shardcontroller_in_flight_moves", Help: "Number of Move calls currently driving hand-off RPCs."}),
	}
}

// MustRegister registers every instrument against reg.
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(m.joinAccepted, m.joinRejected, m.leaveAccepted, m.leaveRejected,
		m.moveSucceeded, m.moveFailed, m.epoch, m.serverCount, m.inFlightMoves)
}
