// Package metrics holds the Prometheus collectors for the registration pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for conversations, media and sessions.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Inbound events by modality
	EventsReceived *prometheus.CounterVec

	// Events dropped because no session exists or the modality does not fit the step
	EventsIgnored *prometheus.CounterVec

	// Inputs rejected by validation, by step and reason
	ValidationRejections *prometheus.CounterVec

	// Finalization attempts by applicant type and outcome
	Submissions *prometheus.CounterVec

	// Sessions removed by the idle sweeper
	SessionsExpired prometheus.Counter

	// Attachment ingestion latency by category
	IngestLatency *prometheus.HistogramVec
}

// New registers all collectors with reg. Pass prometheus.DefaultRegisterer in
// production and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_events_received_total",
			Help: "Inbound conversation events by modality",
		}, []string{"modality"}),

		EventsIgnored: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_events_ignored_total",
			Help: "Inbound events ignored by the conversation by reason",
		}, []string{"reason"}), // reason: "no_session", "modality", "action"

		ValidationRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_validation_rejections_total",
			Help: "Inputs rejected by step validation",
		}, []string{"step", "reason"}),

		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_submissions_total",
			Help: "Application finalization attempts by type and outcome",
		}, []string{"type", "outcome"}), // outcome: "created", "failed", "cancelled"

		SessionsExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "registrar_sessions_expired_total",
			Help: "Idle sessions deleted by the sweeper",
		}),

		IngestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "registrar_media_ingest_duration_seconds",
			Help:    "Duration of attachment retrieval and storage",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"category"}),
	}
}

func (m *Metrics) IncrementReceived(modality string) {
	if m != nil {
		m.EventsReceived.WithLabelValues(modality).Inc()
	}
}

func (m *Metrics) IncrementIgnored(reason string) {
	if m != nil {
		m.EventsIgnored.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncrementRejection(step, reason string) {
	if m != nil {
		m.ValidationRejections.WithLabelValues(step, reason).Inc()
	}
}

func (m *Metrics) IncrementSubmission(applicantType, outcome string) {
	if m != nil {
		m.Submissions.WithLabelValues(applicantType, outcome).Inc()
	}
}

// AddExpired records n swept sessions.
func (m *Metrics) AddExpired(n int64) {
	if m != nil && n > 0 {
		m.SessionsExpired.Add(float64(n))
	}
}

// ObserveIngest records how long an attachment took to ingest.
func (m *Metrics) ObserveIngest(category string, d time.Duration) {
	if m != nil {
		m.IngestLatency.WithLabelValues(category).Observe(d.Seconds())
	}
}
