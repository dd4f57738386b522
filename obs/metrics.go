package obs

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics wraps a prometheus.Registerer and exposes the named samples spec
// §2 (C10) lists: gossip fanout, convergence, queue depth, plus circuit
// breaker and backend promotion counters the expansion adds.
type Metrics struct {
	Registry prometheus.Registerer

	GossipMessagesSent     prometheus.Counter
	GossipMessagesReceived prometheus.Counter
	GossipMessagesDropped  *prometheus.CounterVec
	GossipRoundDuration    prometheus.Histogram
	ConvergenceRounds      prometheus.Histogram
	OutboundQueueDepth     prometheus.Gauge
	CircuitBreakerState    *prometheus.GaugeVec
	BackendPromotions      *prometheus.CounterVec
	RateLimitDenied        *prometheus.CounterVec
}

// NewMetrics registers every collector against reg. Passing
// prometheus.NewRegistry() keeps tests isolated from the global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Registry: reg,
		GossipMessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agentsync_gossip_messages_sent_total",
			Help: "Gossip messages successfully sent to a peer.",
		}),
		GossipMessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agentsync_gossip_messages_received_total",
			Help: "Gossip messages accepted for processing.",
		}),
		GossipMessagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentsync_gossip_messages_dropped_total",
			Help: "Gossip messages dropped, by reason.",
		}, []string{"reason"}),
		GossipRoundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "agentsync_gossip_round_duration_seconds",
			Help:    "Wall-clock duration of one gossip round.",
			Buckets: prometheus.DefBuckets,
		}),
		ConvergenceRounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "agentsync_convergence_rounds",
			Help:    "Rounds observed until full peer-set convergence.",
			Buckets: prometheus.LinearBuckets(1, 1, 20),
		}),
		OutboundQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agentsync_outbound_queue_depth",
			Help: "Unacknowledged outbound events awaiting gossip or promotion.",
		}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "agentsync_circuit_breaker_state",
			Help: "0=closed 1=open 2=half-open, by resource.",
		}, []string{"resource"}),
		BackendPromotions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentsync_backend_promotions_total",
			Help: "Events promoted to the long-term backend, by outcome.",
		}, []string{"outcome"}),
		RateLimitDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentsync_rate_limit_denied_total",
			Help: "Requests denied by the rate limiter, by resource.",
		}, []string{"resource"}),
	}
	for _, c := range []prometheus.Collector{
		m.GossipMessagesSent, m.GossipMessagesReceived, m.GossipMessagesDropped,
		m.GossipRoundDuration, m.ConvergenceRounds, m.OutboundQueueDepth,
		m.CircuitBreakerState, m.BackendPromotions, m.RateLimitDenied,
	} {
		_ = reg.Register(c)
	}
	return m
}

// NewNoOpMetrics builds a Metrics instance registered against a private
// registry, safe to use when the caller does not care about export.
func NewNoOpMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
