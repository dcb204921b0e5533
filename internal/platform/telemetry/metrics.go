package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process-wide Prometheus collectors on a private registry.
type Metrics struct {
	registry    *prometheus.Registry
	handler     http.Handler
	decisions   *prometheus.CounterVec
	auditWrites *prometheus.CounterVec
	roleReloads *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coursegrid_authz_decisions_total",
		Help: "Authorization decisions by check kind and outcome.",
	}, []string{"kind", "outcome"})
	auditWrites := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coursegrid_audit_writes_total",
		Help: "Audit entry writes by outcome.",
	}, []string{"outcome"})
	roleReloads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coursegrid_role_cache_reloads_total",
		Help: "Role cache reloads by outcome.",
	}, []string{"outcome"})
	registry.MustRegister(decisions, auditWrites, roleReloads)

	return &Metrics{
		registry:    registry,
		handler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		decisions:   decisions,
		auditWrites: auditWrites,
		roleReloads: roleReloads,
	}
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// ObserveDecision counts one authorization decision. Nil receivers are no-ops
// so packages can be used without metrics wired.
func (m *Metrics) ObserveDecision(kind string, allowed bool) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(kind, outcome(allowed)).Inc()
}

func (m *Metrics) ObserveAuditWrite(ok bool) {
	if m == nil {
		return
	}
	m.auditWrites.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) ObserveRoleReload(ok bool) {
	if m == nil {
		return
	}
	m.roleReloads.WithLabelValues(result(ok)).Inc()
}

func outcome(allowed bool) string {
	if allowed {
		return "allow"
	}
	return "deny"
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
