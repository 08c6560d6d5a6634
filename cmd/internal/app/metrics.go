package app

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the Prometheus sink for session and login outcomes.
// It satisfies session.Metrics and authapi.LoginMetrics.
type Metrics struct {
	reg *prometheus.Registry

	issued  prometheus.Counter
	refresh *prometheus.CounterVec
	store   *prometheus.CounterVec
	login   *prometheus.CounterVec
}

// NewMetrics registers collectors on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		issued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sessiond",
			Name:      "tokens_issued_total",
			Help:      "Token pairs minted at login.",
		}),
		refresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sessiond",
			Name:      "refresh_total",
			Help:      "Refresh attempts by result.",
		}, []string{"result"}),
		store: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sessiond",
			Name:      "store_errors_total",
			Help:      "Revocation store failures by operation.",
		}, []string{"op"}),
		login: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sessiond",
			Name:      "login_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.issued, m.refresh, m.store, m.login,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) TokensIssued()               { m.issued.Inc() }
func (m *Metrics) RefreshResult(result string) { m.refresh.WithLabelValues(result).Inc() }
func (m *Metrics) StoreError(op string)        { m.store.WithLabelValues(op).Inc() }
func (m *Metrics) LoginResult(result string)   { m.login.WithLabelValues(result).Inc() }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
