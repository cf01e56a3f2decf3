package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tracking"

// Prometheus exports metrics on its own registry.
type Prometheus struct {
	registry *prometheus.Registry

	clicksRecorded    prometheus.Counter
	clicksRejected    *prometheus.CounterVec
	rateLimitFailOpen prometheus.Counter
	pixelEvents       *prometheus.CounterVec
	pixelErrors       prometheus.Counter
	productionCache   *prometheus.CounterVec
	upstreamAttempts  *prometheus.CounterVec
	upstreamDuration  *prometheus.HistogramVec
	archiveEvents     *prometheus.CounterVec
}

// NewPrometheus registers all collectors, plus Go and process collectors.
func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Prometheus{
		registry: reg,
		clicksRecorded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_recorded_total",
			Help:      "Clicks stored by the click endpoint.",
		}),
		clicksRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_rejected_total",
			Help:      "Clicks not stored, by reason.",
		}, []string{"reason"}),
		rateLimitFailOpen: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_fail_open_total",
			Help:      "Rate limit checks allowed because the store failed.",
		}),
		pixelEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pixel_events_total",
			Help:      "Pixel events recorded, by event type.",
		}, []string{"event_type"}),
		pixelErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pixel_errors_total",
			Help:      "Pixel requests whose store writes failed.",
		}),
		productionCache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "production_cache_total",
			Help:      "Production data lookups, by cache result.",
		}, []string{"result"}),
		upstreamAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_attempts_total",
			Help:      "Upstream HTTP attempts, by service and outcome.",
		}, []string{"service", "outcome"}),
		upstreamDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream HTTP attempt latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service"}),
		archiveEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_events_total",
			Help:      "Click archive pipeline events, by status.",
		}, []string{"status"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

func (p *Prometheus) IncClickRecorded() { p.clicksRecorded.Inc() }

func (p *Prometheus) IncClickRejected(reason string) {
	p.clicksRejected.WithLabelValues(reason).Inc()
}

func (p *Prometheus) IncRateLimitFailOpen() { p.rateLimitFailOpen.Inc() }

func (p *Prometheus) IncPixelEvent(eventType string) {
	p.pixelEvents.WithLabelValues(eventType).Inc()
}

func (p *Prometheus) IncPixelError() { p.pixelErrors.Inc() }

func (p *Prometheus) IncProductionCache(result string) {
	p.productionCache.WithLabelValues(result).Inc()
}

func (p *Prometheus) IncUpstreamAttempt(service, outcome string) {
	p.upstreamAttempts.WithLabelValues(service, outcome).Inc()
}

func (p *Prometheus) ObserveUpstreamDuration(service string, duration time.Duration) {
	p.upstreamDuration.WithLabelValues(service).Observe(duration.Seconds())
}

func (p *Prometheus) IncArchiveEvent(status string) {
	p.archiveEvents.WithLabelValues(status).Inc()
}
