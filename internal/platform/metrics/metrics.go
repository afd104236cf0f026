// Package metrics exposes the Prometheus collectors used by the server and worker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the process collectors.
type Registry struct {
	reg *prometheus.Registry

	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
	InvitationsExpired prometheus.Counter
	SweepRuns          *prometheus.CounterVec
	MailSent           *prometheus.CounterVec
}

// New returns a Registry with Go/process collectors and the application metrics registered.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tenantdesk",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tenantdesk",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		InvitationsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tenantdesk",
			Name:      "invitations_expired_total",
			Help:      "Invitations flipped to expired by the sweep.",
		}),
		SweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tenantdesk",
			Name:      "invitation_sweep_runs_total",
			Help:      "Invitation expiry sweep runs by result.",
		}, []string{"result"}),
		MailSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tenantdesk",
			Name:      "mail_sent_total",
			Help:      "Mail deliveries by kind and result.",
		}, []string{"kind", "result"}),
	}
	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.HTTPRequests, r.HTTPDuration, r.InvitationsExpired, r.SweepRuns, r.MailSent,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// ObserveHTTP records one finished request.
func (r *Registry) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	r.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.HTTPDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// ObserveSweep records one expiry sweep.
func (r *Registry) ObserveSweep(expired int64, err error) {
	if r == nil {
		return
	}
	if err != nil {
		r.SweepRuns.WithLabelValues("error").Inc()
		return
	}
	r.SweepRuns.WithLabelValues("ok").Inc()
	r.InvitationsExpired.Add(float64(expired))
}

// ObserveMail records one delivery attempt.
func (r *Registry) ObserveMail(kind string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.MailSent.WithLabelValues(kind, result).Inc()
}
