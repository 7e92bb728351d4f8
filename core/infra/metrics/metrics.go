package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics defines counters for the workflow engine.
type Metrics interface {
	IncEventsReceived(eventType string)
	IncMatches(workflow string)
	IncInvocations(workflow, state string)
	IncActionFailures(workflow, errorType string)
	ObserveInvocationDuration(workflow string, durationSeconds float64)
}

// FeedMetrics captures live-feed client churn on the ops server.
type FeedMetrics interface {
	IncFeedClients()
	DecFeedClients()
	IncFeedDropped()
}

// Noop implements Metrics without emitting anything.
type Noop struct{}

func (Noop) IncEventsReceived(string)                 {}
func (Noop) IncMatches(string)                        {}
func (Noop) IncInvocations(string, string)            {}
func (Noop) IncActionFailures(string, string)         {}
func (Noop) ObserveInvocationDuration(string, float64) {}

// NoopFeed implements FeedMetrics without emitting anything.
type NoopFeed struct{}

func (NoopFeed) IncFeedClients() {}
func (NoopFeed) DecFeedClients() {}
func (NoopFeed) IncFeedDropped() {}

// Prom implements Metrics backed by Prometheus collectors.
type Prom struct {
	eventsReceived *prometheus.CounterVec
	matches        *prometheus.CounterVec
	invocations    *prometheus.CounterVec
	actionFailures *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	once           sync.Once
}

func NewProm(namespace string) *Prom {
	p := &Prom{
		eventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Events received by type",
		}, []string{"type"}),
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_matches_total",
			Help:      "Trigger matches by workflow",
		}, []string{"workflow"}),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_invocations_total",
			Help:      "Invocations reaching a terminal state by workflow",
		}, []string{"workflow", "state"}),
		actionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_failures_total",
			Help:      "Failed action dispatches by workflow and error type",
		}, []string{"workflow", "error_type"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invocation_duration_seconds",
			Help:      "Invocation duration seconds by workflow",
			Buckets:   prometheus.DefBuckets,
		}, []string{"workflow"}),
	}
	p.register()
	return p
}

func (p *Prom) register() {
	p.once.Do(func() {
		prometheus.MustRegister(p.eventsReceived, p.matches, p.invocations, p.actionFailures, p.duration)
	})
}

func (p *Prom) IncEventsReceived(eventType string) {
	p.eventsReceived.WithLabelValues(eventType).Inc()
}

func (p *Prom) IncMatches(workflow string) {
	p.matches.WithLabelValues(workflow).Inc()
}

func (p *Prom) IncInvocations(workflow, state string) {
	p.invocations.WithLabelValues(workflow, state).Inc()
}

func (p *Prom) IncActionFailures(workflow, errorType string) {
	p.actionFailures.WithLabelValues(workflow, errorType).Inc()
}

func (p *Prom) ObserveInvocationDuration(workflow string, durationSeconds float64) {
	p.duration.WithLabelValues(workflow).Observe(durationSeconds)
}

// Handler returns an HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// --- Feed metrics (ops server) ---

type feedProm struct {
	clients prometheus.Gauge
	dropped prometheus.Counter
	once    sync.Once
}

// NewFeedProm constructs FeedMetrics with a client gauge and drop counter.
func NewFeedProm(namespace string) FeedMetrics {
	f := &feedProm{
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_clients",
			Help:      "Connected live-feed clients",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_clients_dropped_total",
			Help:      "Live-feed clients evicted for slow reads",
		}),
	}
	f.once.Do(func() {
		prometheus.MustRegister(f.clients, f.dropped)
	})
	return f
}

func (f *feedProm) IncFeedClients() { f.clients.Inc() }
func (f *feedProm) DecFeedClients() { f.clients.Dec() }
func (f *feedProm) IncFeedDropped() { f.dropped.Inc() }
