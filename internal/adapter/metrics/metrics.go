// Package metrics exposes Prometheus collectors for state-machine activity.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neomorfeo/mycouch/internal/domain"
)

const namespace = "mycouch"

// Metrics holds the collectors registered by New.
type Metrics struct {
	registry *prometheus.Registry

	evaluations *prometheus.CounterVec
	latency     prometheus.Histogram
	published   *prometheus.CounterVec
	processed   *prometheus.CounterVec
}

// New registers the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		// Labels: outcome (ok, invalid_value, invalid_transition, error)
		evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transitions",
			Name:      "evaluations_total",
			Help:      "Transition validations by outcome",
		}, []string{"outcome"}),
		latency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transitions",
			Name:      "evaluation_seconds",
			Help:      "Transition validation latency in seconds",
			Buckets:   []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01},
		}),
		// Labels: entity_kind, to (target state)
		published: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Transition events handed to the publisher",
		}, []string{"entity_kind", "to"}),
		processed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "processed_total",
			Help:      "Transition events processed by the worker",
		}, []string{"entity_kind", "to"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Validator counts and times evaluations of next.
func (m *Metrics) Validator(next domain.TransitionValidator) domain.TransitionValidator {
	return &instrumentedValidator{next: next, m: m}
}

// Publisher counts events passed to next.
func (m *Metrics) Publisher(next domain.EventPublisher) domain.EventPublisher {
	return &instrumentedPublisher{next: next, m: m}
}

// Processed is a worker handler counting processed events.
func (m *Metrics) Processed(_ context.Context, e domain.TransitionEvent) error {
	m.processed.WithLabelValues(e.EntityKind, string(e.To)).Inc()
	return nil
}

type instrumentedValidator struct {
	next domain.TransitionValidator
	m    *Metrics
}

func (v *instrumentedValidator) Evaluate(ctx context.Context, table domain.TransitionTable, from, to domain.State) error {
	start := time.Now()
	err := v.next.Evaluate(ctx, table, from, to)
	v.m.latency.Observe(time.Since(start).Seconds())
	v.m.evaluations.WithLabelValues(domain.Outcome(err)).Inc()
	return err
}

type instrumentedPublisher struct {
	next domain.EventPublisher
	m    *Metrics
}

func (p *instrumentedPublisher) Publish(ctx context.Context, e domain.TransitionEvent) error {
	if err := p.next.Publish(ctx, e); err != nil {
		return err
	}
	p.m.published.WithLabelValues(e.EntityKind, string(e.To)).Inc()
	return nil
}
