package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MediationMetrics holds the Prometheus instruments for the workflow engine.
type MediationMetrics struct {
	MediationsCreatedTotal  prometheus.CounterVec
	StatusTransitionsTotal  prometheus.CounterVec
	InvalidTransitionsTotal prometheus.CounterVec
	VersionConflictsTotal   prometheus.CounterVec
	AssignmentTimeoutsTotal prometheus.CounterVec
	EscrowHoldsTotal        prometheus.CounterVec
	EscrowHoldAmountTotal   prometheus.CounterVec
	EscrowSettlementsTotal  prometheus.CounterVec
	LedgerFailuresTotal     prometheus.CounterVec
	ResolutionDuration      prometheus.HistogramVec
	SubChatMessagesTotal    prometheus.CounterVec
}

func NewMediationMetrics() *MediationMetrics {
	return &MediationMetrics{
		MediationsCreatedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediations_created_total",
				Help: "Total number of mediation requests created",
			},
			[]string{"currency"},
		),

		StatusTransitionsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediation_status_transitions_total",
				Help: "Total number of accepted status transitions",
			},
			[]string{"from", "to"},
		),

		InvalidTransitionsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediation_invalid_transitions_total",
				Help: "Total number of rejected status transitions",
			},
			[]string{"from", "to"},
		),

		VersionConflictsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediation_version_conflicts_total",
				Help: "Total number of optimistic concurrency conflicts on persist",
			},
			[]string{"action"},
		),

		AssignmentTimeoutsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediation_assignment_timeouts_total",
				Help: "Total number of mediator assignments expired by the timer",
			},
			[]string{"source"},
		),

		EscrowHoldsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "escrow_holds_total",
				Help: "Total number of escrow holds placed",
			},
			[]string{"currency"},
		),

		EscrowHoldAmountTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "escrow_hold_amount_total",
				Help: "Total amount placed into escrow holds",
			},
			[]string{"currency"},
		),

		EscrowSettlementsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "escrow_settlements_total",
				Help: "Total number of escrow holds settled, by resolution outcome",
			},
			[]string{"outcome"},
		),

		LedgerFailuresTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_failures_total",
				Help: "Total number of failed or timed out ledger calls",
			},
			[]string{"operation"},
		),

		ResolutionDuration: *promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mediation_resolution_duration_seconds",
				Help:    "Time from mediation creation to a terminal status in seconds",
				Buckets: prometheus.ExponentialBuckets(60, 2, 12),
			},
			[]string{"final_status"},
		),

		SubChatMessagesTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subchat_messages_total",
				Help: "Total number of messages posted to mediation channels",
			},
			[]string{"kind", "type"},
		),
	}
}

func (m *MediationMetrics) RecordMediationCreated(currency string) {
	m.MediationsCreatedTotal.WithLabelValues(currency).Inc()
}

func (m *MediationMetrics) RecordTransition(from, to string) {
	m.StatusTransitionsTotal.WithLabelValues(from, to).Inc()
}

func (m *MediationMetrics) RecordInvalidTransition(from, to string) {
	m.InvalidTransitionsTotal.WithLabelValues(from, to).Inc()
}

func (m *MediationMetrics) RecordVersionConflict(action string) {
	m.VersionConflictsTotal.WithLabelValues(action).Inc()
}

// RecordAssignmentTimeout counts an expired assignment. Source is "timer"
// for live expirations and "reconcile" for the startup sweep.
func (m *MediationMetrics) RecordAssignmentTimeout(source string) {
	m.AssignmentTimeoutsTotal.WithLabelValues(source).Inc()
}

func (m *MediationMetrics) RecordEscrowHold(currency string, amount float64) {
	m.EscrowHoldsTotal.WithLabelValues(currency).Inc()
	m.EscrowHoldAmountTotal.WithLabelValues(currency).Add(amount)
}

func (m *MediationMetrics) RecordEscrowSettlement(outcome string) {
	m.EscrowSettlementsTotal.WithLabelValues(outcome).Inc()
}

func (m *MediationMetrics) RecordLedgerFailure(operation string) {
	m.LedgerFailuresTotal.WithLabelValues(operation).Inc()
}

func (m *MediationMetrics) RecordResolutionDuration(finalStatus string, durationSeconds float64) {
	m.ResolutionDuration.WithLabelValues(finalStatus).Observe(durationSeconds)
}

func (m *MediationMetrics) RecordSubChatMessage(kind, messageType string) {
	m.SubChatMessagesTotal.WithLabelValues(kind, messageType).Inc()
}
