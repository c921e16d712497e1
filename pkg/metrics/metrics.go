package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "overwatch"

// Collector holds the engine's counters. A nil *Collector is valid and
// records nothing.
type Collector struct {
	registry *prometheus.Registry

	AlertsEmitted   prometheus.Counter
	AlertsAdded     prometheus.Counter
	AlertsResolved  prometheus.Counter
	RibbonActions   *prometheus.CounterVec
	IntentsRejected *prometheus.CounterVec
	SessionsActive  prometheus.Gauge

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		AlertsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_emitted_total",
			Help:      "Alerts emitted by the feed generator.",
		}),
		AlertsAdded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_added_total",
			Help:      "Alerts inserted into an active set.",
		}),
		AlertsResolved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_resolved_total",
			Help:      "Alerts moved to the resolved set.",
		}),
		RibbonActions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ribbon_actions_total",
			Help:      "Terminal ribbon actions by kind.",
		}, []string{"action"}),
		IntentsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intents_rejected_total",
			Help:      "Intents reported as not found or refused.",
		}, []string{"reason"}),
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions currently running.",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) Emitted() {
	if c != nil {
		c.AlertsEmitted.Inc()
	}
}

func (c *Collector) Added() {
	if c != nil {
		c.AlertsAdded.Inc()
	}
}

func (c *Collector) Resolved() {
	if c != nil {
		c.AlertsResolved.Inc()
	}
}

func (c *Collector) RibbonAction(action string) {
	if c != nil {
		c.RibbonActions.WithLabelValues(action).Inc()
	}
}

func (c *Collector) Rejected(reason string) {
	if c != nil {
		c.IntentsRejected.WithLabelValues(reason).Inc()
	}
}

func (c *Collector) SessionStarted() {
	if c != nil {
		c.SessionsActive.Inc()
	}
}

func (c *Collector) SessionEnded() {
	if c != nil {
		c.SessionsActive.Dec()
	}
}

func (c *Collector) ObserveRequest(method, route string, code int, elapsed time.Duration) {
	if c != nil {
		c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
		c.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
	}
}
