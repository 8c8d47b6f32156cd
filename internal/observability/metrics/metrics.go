package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outcome labels recorded for each client operation.
const (
	OutcomeSuccess   = "success"
	OutcomeRejected  = "rejected"
	OutcomeTransport = "transport_error"
)

// ClientMetrics exposes counters/histograms for outbound Payconiq calls. It
// satisfies payconiq.Metrics.
type ClientMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	searchPages     prometheus.Counter
}

func NewClientMetrics(reg prometheus.Registerer) *ClientMetrics {
	m := &ClientMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "payconiq",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Total Payconiq API operations by outcome",
		}, []string{"operation", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "payconiq",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Latency of individual Payconiq HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		searchPages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "payconiq",
			Subsystem: "client",
			Name:      "search_pages_total",
			Help:      "Search result pages fetched while paginating",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.requestDuration, m.searchPages)
	return m
}

func (m *ClientMetrics) ObserveOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *ClientMetrics) ObserveRequestLatency(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(operation).Observe(seconds)
}

func (m *ClientMetrics) ObserveSearchPage() {
	if m == nil {
		return
	}
	m.searchPages.Inc()
}
