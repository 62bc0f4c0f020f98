// AngelaMos | 2026
// metrics.go

package entitlement

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	grantsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_grants_total",
			Help: "Entitlement grants by product",
		},
		[]string{"product"},
	)
	revocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_revocations_total",
			Help: "Entitlement revocations by product and resulting status",
		},
		[]string{"product", "status"},
	)
	accessChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_access_checks_total",
			Help: "Access checks by outcome (granted, denied, fail_open, error)",
		},
		[]string{"outcome"},
	)
)

func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(grantsTotal, revocationsTotal, accessChecksTotal)
}
