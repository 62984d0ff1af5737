package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	Registry *prometheus.Registry

	// Password metrics
	StrengthEvaluations *prometheus.CounterVec
	BreachLookups       *prometheus.CounterVec
	BreachLookupLatency prometheus.Histogram

	// Login attempt metrics
	LoginFailures  prometheus.Counter
	LoginSuccesses prometheus.Counter
	OriginsFlagged prometheus.Counter
	StoreErrors    *prometheus.CounterVec

	// Alert metrics
	AlertsDispatched *prometheus.CounterVec
	AlertsDropped    prometheus.Counter
	AlertSinkSends   *prometheus.CounterVec

	// HTTP metrics
	RequestDuration *prometheus.HistogramVec
	RequestTotal    *prometheus.CounterVec
}

// NewMetrics creates all application metrics on a private registry
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		Registry: registry,

		StrengthEvaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "password",
			Name:      "strength_evaluations_total",
			Help:      "Total number of password strength evaluations by resulting level",
		}, []string{"level"}),
		BreachLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "password",
			Name:      "breach_lookups_total",
			Help:      "Total number of breach checks by outcome",
		}, []string{"outcome"}),
		BreachLookupLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "password",
			Name:      "breach_lookup_duration_seconds",
			Help:      "Duration of remote breach range lookups",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),

		LoginFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "login",
			Name:      "failures_total",
			Help:      "Total number of recorded login failures",
		}),
		LoginSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "login",
			Name:      "successes_total",
			Help:      "Total number of recorded login successes",
		}),
		OriginsFlagged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "login",
			Name:      "origins_flagged_total",
			Help:      "Total number of times an origin was marked suspicious",
		}),
		StoreErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "errors_total",
			Help:      "Total number of key-value store errors",
		}, []string{"operation"}),

		AlertsDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alert",
			Name:      "dispatched_total",
			Help:      "Total number of alerts queued for delivery",
		}, []string{"severity"}),
		AlertsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alert",
			Name:      "dropped_total",
			Help:      "Total number of alerts dropped because the queue was full",
		}),
		AlertSinkSends: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alert",
			Name:      "sink_sends_total",
			Help:      "Total number of alert deliveries per sink",
		}, []string{"sink", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "path", "status"}),
		RequestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
	}
}
