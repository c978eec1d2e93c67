// Package metrics holds the Prometheus collectors exported by the server.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Session verification outcomes.
const (
	ResultAccepted = "accepted"
	ResultInvalid  = "invalid"
	ResultExpired  = "expired"
	ResultError    = "error"
)

// Metrics contains the service's Prometheus collectors.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	VerificationsTotal *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gophauth_http_requests_total",
				Help: "Total number of HTTP requests by route and status",
			},
			[]string{"route", "status"},
		),
		VerificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gophauth_session_verifications_total",
				Help: "Total number of session verifications by result",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(m.RequestsTotal)
	reg.MustRegister(m.VerificationsTotal)

	return m
}

// ObserveVerification counts one verification outcome. Safe on a nil receiver.
func (m *Metrics) ObserveVerification(result string) {
	if m == nil {
		return
	}
	m.VerificationsTotal.WithLabelValues(result).Inc()
}

// ObserveRequest counts one HTTP response. Safe on a nil receiver.
func (m *Metrics) ObserveRequest(route, status string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(route, status).Inc()
}
