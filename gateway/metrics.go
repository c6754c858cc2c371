package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK      = "ok"
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// Metrics holds the gateway collectors. They implement the refresh
// coordinator's Observer so refresh cycles are counted where they run.
type Metrics struct {
	Requests        *prometheus.CounterVec
	Refreshes       *prometheus.CounterVec
	RefreshWaiters  prometheus.Counter
	RefreshInFlight prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admin_session_requests_total",
			Help: "Total number of gateway calls by method and outcome.",
		}, []string{"method", "outcome"}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admin_session_refresh_total",
			Help: "Total number of token refresh cycles by outcome.",
		}, []string{"outcome"}),
		RefreshWaiters: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "admin_session_refresh_waiters_total",
			Help: "Total number of calls that waited on an in-flight refresh.",
		}),
		RefreshInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "admin_session_refresh_in_flight",
			Help: "1 while a token refresh is running.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Requests, m.Refreshes, m.RefreshWaiters, m.RefreshInFlight)
	}
	return m
}

func (m *Metrics) observeRequest(method string, err error) {
	outcome := outcomeOK
	if err != nil {
		outcome = KindOf(err).String()
	}
	m.Requests.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) RefreshStarted() {
	m.RefreshInFlight.Set(1)
}

func (m *Metrics) RefreshFinished(err error) {
	m.RefreshInFlight.Set(0)
	if err != nil {
		m.Refreshes.WithLabelValues(outcomeFailure).Inc()
		return
	}
	m.Refreshes.WithLabelValues(outcomeSuccess).Inc()
}

func (m *Metrics) Queued(int) {
	m.RefreshWaiters.Inc()
}
