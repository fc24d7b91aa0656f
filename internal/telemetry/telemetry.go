// Package telemetry provides Prometheus metrics and OpenTelemetry tracing for
// gofolio.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"gofolio/internal/notify"
)

const serviceName = "gofolio"

// Write outcomes used as the "result" label.
const (
	ResultOK          = "ok"
	ResultNotFound    = "not_found"
	ResultUnavailable = "unavailable"
	ResultError       = "error"
)

// Metrics holds all gofolio Prometheus metrics
type Metrics struct {
	Writes        *prometheus.CounterVec
	WriteDuration *prometheus.HistogramVec
	Reads         *prometheus.CounterVec
	Signals       *prometheus.CounterVec
	CacheHits     *prometheus.CounterVec
	CacheMisses   *prometheus.CounterVec
}

// Provider wraps telemetry providers
type Provider struct {
	Tracer   trace.Tracer
	Metrics  *Metrics
	registry *prometheus.Registry
}

// NewProvider initializes telemetry on its own registry, so that several
// providers can coexist in one process (tests, embedded servers).
func NewProvider() *Provider {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Provider{
		Tracer:   otel.Tracer(serviceName),
		Metrics:  initMetrics(promauto.With(reg)),
		registry: reg,
	}
}

func initMetrics(factory promauto.Factory) *Metrics {
	return &Metrics{
		Writes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gofolio_writes_total",
			Help: "Repository writes by collection, operation and result",
		}, []string{"collection", "op", "result"}),

		WriteDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gofolio_write_duration_seconds",
			Help:    "Time spent persisting a repository write",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"collection", "op"}),

		Reads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gofolio_reads_total",
			Help: "Repository reads by collection and result",
		}, []string{"collection", "result"}),

		Signals: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gofolio_change_signals_total",
			Help: "Change signals delivered per category",
		}, []string{"category"}),

		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gofolio_cache_hits_total",
			Help: "Query cache hits per category",
		}, []string{"category"}),

		CacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gofolio_cache_misses_total",
			Help: "Query cache misses per category",
		}, []string{"category"}),
	}
}

// Handler returns the Prometheus HTTP handler for /metrics endpoint
func (p *Provider) Handler() http.Handler {
	if p == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// StartSpan starts a span named name. A nil provider uses the global tracer.
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer(serviceName)
	if p != nil && p.Tracer != nil {
		tracer = p.Tracer
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// RecordWrite records the outcome and latency of a repository write.
func (p *Provider) RecordWrite(collection, op, result string, duration time.Duration) {
	if p == nil {
		return
	}
	p.Metrics.Writes.WithLabelValues(collection, op, result).Inc()
	p.Metrics.WriteDuration.WithLabelValues(collection, op).Observe(duration.Seconds())
}

// RecordRead records the outcome of a repository read.
func (p *Provider) RecordRead(collection, result string) {
	if p == nil {
		return
	}
	p.Metrics.Reads.WithLabelValues(collection, result).Inc()
}

// RecordCacheHit counts a cache hit for category.
func (p *Provider) RecordCacheHit(category notify.Category) {
	if p == nil {
		return
	}
	p.Metrics.CacheHits.WithLabelValues(string(category)).Inc()
}

// RecordCacheMiss counts a cache miss for category.
func (p *Provider) RecordCacheMiss(category notify.Category) {
	if p == nil {
		return
	}
	p.Metrics.CacheMisses.WithLabelValues(string(category)).Inc()
}

// WatchSignals subscribes to categories and counts every signal delivered
// for them, including signals relayed from other processes.
func (p *Provider) WatchSignals(n *notify.Notifier, categories ...notify.Category) []*notify.Subscription {
	if p == nil {
		return nil
	}
	subs := make([]*notify.Subscription, 0, len(categories))
	for _, category := range categories {
		counter := p.Metrics.Signals.WithLabelValues(string(category))
		subs = append(subs, n.Subscribe(category, counter.Inc))
	}
	return subs
}
