// Package metrics exposes onboarding counters and pipeline gauges to
// Prometheus. All recording methods are safe on a nil *Metrics.
package metrics

import (
	"context"
	"net/http"
	"time"

	metricsstore "github.com/dalemusser/chimeo/internal/app/store/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chimeo"

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	submitted     prometheus.Counter
	resolved      *prometheus.CounterVec
	conflicts     prometheus.Counter
	provisioned   *prometheus.CounterVec
	expired       prometheus.Counter
	notifications *prometheus.CounterVec
	sweeps        *prometheus.HistogramVec
}

// New registers the onboarding collectors plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_submitted_total",
			Help:      "Organization requests accepted by the signup form.",
		}),
		resolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_resolved_total",
			Help:      "Organization requests approved or rejected.",
		}, []string{"status"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_transition_conflicts_total",
			Help:      "Approve/reject attempts that found the request already resolved.",
		}),
		provisioned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trials_provisioned_total",
			Help:      "Trial provisioning attempts by result.",
		}, []string{"result"}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trials_expired_total",
			Help:      "Accounts moved from premium_trial to trial_expired.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification sends by template and result.",
		}, []string{"template", "result"}),
		sweeps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of scheduled jobs.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.submitted, m.resolved, m.conflicts, m.provisioned,
		m.expired, m.notifications, m.sweeps,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// CountsFunc loads pipeline totals at scrape time.
type CountsFunc func(ctx context.Context) metricsstore.Counts

// RegisterPipelineGauges exports the totals returned by fn as gauges,
// computed on each scrape with the given timeout.
func (m *Metrics) RegisterPipelineGauges(fn CountsFunc, timeout time.Duration) error {
	return m.registry.Register(&pipelineCollector{fn: fn, timeout: timeout})
}

func (m *Metrics) RequestSubmitted() {
	if m == nil {
		return
	}
	m.submitted.Inc()
}

func (m *Metrics) RequestResolved(status string) {
	if m == nil {
		return
	}
	m.resolved.WithLabelValues(status).Inc()
}

func (m *Metrics) TransitionConflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

func (m *Metrics) TrialProvisioned(err error) {
	if m == nil {
		return
	}
	m.provisioned.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) TrialExpired() {
	if m == nil {
		return
	}
	m.expired.Inc()
}

func (m *Metrics) Notification(template string, err error) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(template, result(err)).Inc()
}

// ObserveJob records how long a scheduled job took.
func (m *Metrics) ObserveJob(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.sweeps.WithLabelValues(job).Observe(d.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

var (
	requestsDesc = prometheus.NewDesc(namespace+"_requests", "Organization requests by status.", []string{"status"}, nil)
	trialsDesc   = prometheus.NewDesc(namespace+"_accounts", "Accounts by tier.", []string{"tier"}, nil)
	dueDesc      = prometheus.NewDesc(namespace+"_expiration_checks_due", "Scheduled expiration checks already due.", nil, nil)
)

type pipelineCollector struct {
	fn      CountsFunc
	timeout time.Duration
}

func (c *pipelineCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- requestsDesc
	ch <- trialsDesc
	ch <- dueDesc
}

func (c *pipelineCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	n := c.fn(ctx)

	ch <- prometheus.MustNewConstMetric(requestsDesc, prometheus.GaugeValue, float64(n.Pending), "pending")
	ch <- prometheus.MustNewConstMetric(requestsDesc, prometheus.GaugeValue, float64(n.Approved), "approved")
	ch <- prometheus.MustNewConstMetric(requestsDesc, prometheus.GaugeValue, float64(n.Rejected), "rejected")
	ch <- prometheus.MustNewConstMetric(trialsDesc, prometheus.GaugeValue, float64(n.Trials), "premium_trial")
	ch <- prometheus.MustNewConstMetric(trialsDesc, prometheus.GaugeValue, float64(n.TrialsExpired), "trial_expired")
	ch <- prometheus.MustNewConstMetric(dueDesc, prometheus.GaugeValue, float64(n.DueChecks))
}
