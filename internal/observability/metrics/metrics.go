package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the application-level instruments for the lead pipeline.
// Detached work (dispatch, scheduler jobs) reports failures here so they stay
// observable even though they never surface to the submitter.
type Metrics struct {
	LeadsReceived   prometheus.Counter
	RoutingOutcomes *prometheus.CounterVec
	Deliveries      *prometheus.CounterVec
	ChargesTotal    prometheus.Counter
	ChargedCents    prometheus.Counter
	DispatchErrors  prometheus.Counter
	DripEvents      *prometheus.CounterVec

	JobRuns     *prometheus.CounterVec
	JobErrors   *prometheus.CounterVec
	JobDuration *prometheus.HistogramVec

	HTTPDuration *prometheus.HistogramVec
}

const (
	RoutingOutcomeDelivered = "delivered"
	RoutingOutcomeFailed    = "failed"
	RoutingOutcomeNoRoute   = "no_route"
)

func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LeadsReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "leadrail_leads_received_total",
			Help: "Leads accepted at intake.",
		}),
		RoutingOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "leadrail_routing_outcomes_total",
			Help: "Terminal routing outcomes per lead.",
		}, []string{"outcome"}),
		Deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "leadrail_deliveries_total",
			Help: "Delivery attempts by method and status.",
		}, []string{"method", "status"}),
		ChargesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "leadrail_lead_charges_total",
			Help: "Lead charges recorded against buyer balances.",
		}),
		ChargedCents: factory.NewCounter(prometheus.CounterOpts{
			Name: "leadrail_lead_charged_cents_total",
			Help: "Total cents charged for delivered leads.",
		}),
		DispatchErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "leadrail_dispatch_errors_total",
			Help: "Background dispatch failures.",
		}),
		DripEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "leadrail_drip_events_total",
			Help: "Drip follow-up processing by template and result.",
		}, []string{"template", "result"}),
		JobRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "leadrail_scheduler_job_runs_total",
			Help: "Scheduler job executions.",
		}, []string{"job"}),
		JobErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "leadrail_scheduler_job_errors_total",
			Help: "Scheduler job failures.",
		}, []string{"job"}),
		JobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "leadrail_scheduler_job_duration_seconds",
			Help:    "Scheduler job wall time.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "leadrail_http_request_duration_seconds",
			Help:    "Inbound HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) ObserveJob(job string, d time.Duration, err error) {
	m.JobRuns.WithLabelValues(job).Inc()
	m.JobDuration.WithLabelValues(job).Observe(d.Seconds())
	if err != nil {
		m.JobErrors.WithLabelValues(job).Inc()
	}
}
