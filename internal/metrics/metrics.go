// Package metrics defines the Prometheus collectors of the api and worker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the service collectors.
type Metrics struct {
	Requests *prometheus.CounterVec
	Latency  *prometheus.HistogramVec

	CheckIns       prometheus.Counter
	Completions    prometheus.Counter
	Skips          prometheus.Counter
	Absences       prometheus.Counter
	HadithAssigned prometheus.Counter
	AuditWritten   prometheus.Counter
	QueueLength    prometheus.Gauge
}

// New registers the collectors with reg. Tests pass a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "halaqa_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		Latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "halaqa_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		CheckIns: f.NewCounter(prometheus.CounterOpts{
			Name: "halaqa_checkins_total",
			Help: "Students checked in to the queue.",
		}),
		Completions: f.NewCounter(prometheus.CounterOpts{
			Name: "halaqa_sessions_completed_total",
			Help: "Sessions completed.",
		}),
		Skips: f.NewCounter(prometheus.CounterOpts{
			Name: "halaqa_sessions_skipped_total",
			Help: "Sessions sent back to waiting.",
		}),
		Absences: f.NewCounter(prometheus.CounterOpts{
			Name: "halaqa_absences_total",
			Help: "Sessions marked absent.",
		}),
		HadithAssigned: f.NewCounter(prometheus.CounterOpts{
			Name: "halaqa_hadith_assignments_total",
			Help: "Daily hadith assignments created.",
		}),
		AuditWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "halaqa_audit_entries_total",
			Help: "Audit entries persisted by the consumer.",
		}),
		QueueLength: f.NewGauge(prometheus.GaugeOpts{
			Name: "halaqa_queue_open_sessions",
			Help: "Open sessions in the recitation queue.",
		}),
	}
}

// Nop returns collectors registered nowhere.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}
