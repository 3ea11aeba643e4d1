package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	IdentitySyncs = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tournament_identity_syncs_total", Help: "External identity sync calls by outcome"},
		[]string{"outcome"},
	)
	StatusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tournament_status_transitions_total", Help: "Applied status transitions"},
		[]string{"entity", "from", "to"},
	)
	RejectedTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tournament_rejected_transitions_total", Help: "Status transitions rejected by the state machine or a guard"},
		[]string{"entity"},
	)
	ConflictRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tournament_conflict_retries_total", Help: "Units of work retried after a uniqueness conflict"},
		[]string{"operation"},
	)
	PaymentsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tournament_payments_recorded_total", Help: "Payments recorded by method"},
		[]string{"method"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(IdentitySyncs, StatusTransitions, RejectedTransitions, ConflictRetries, PaymentsRecorded)
}
