package multistream

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts negotiation outcomes. A nil *Metrics is safe to use:
// every method becomes a no-op, so Muxer does not need a presence
// check before each call.
type Metrics struct {
	accepted   *prometheus.CounterVec
	rejected   *prometheus.CounterVec
	lsRequests prometheus.Counter
}

// NewMetrics constructs a Metrics and registers its collectors with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		accepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "multistream_negotiations_accepted_total",
			Help: "Protocol negotiations accepted by protocol ID.",
		}, []string{"protocol"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "multistream_negotiations_rejected_total",
			Help: "Protocol negotiations rejected by protocol ID.",
		}, []string{"protocol"}),
		lsRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "multistream_ls_requests_total",
			Help: "Number of ls introspection requests served.",
		}),
	}
	for _, c := range []prometheus.Collector{m.accepted, m.rejected, m.lsRequests} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) accept(protocol string) {
	if m == nil {
		return
	}
	m.accepted.WithLabelValues(protocol).Inc()
}

func (m *Metrics) reject(protocol string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(protocol).Inc()
}

func (m *Metrics) ls() {
	if m == nil {
		return
	}
	m.lsRequests.Inc()
}
