// Package metrics exposes gallery lifecycle events and HTTP traffic as
// Prometheus metrics.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tendant/simple-gallery/pkg/gallery"
)

const namespace = "gallery"

// Metrics holds all Prometheus metrics and implements gallery.EventSink
type Metrics struct {
	registry prometheus.Gatherer

	// Lifecycle metrics
	TenantsCreated  prometheus.Counter
	TenantsDeleted  prometheus.Counter
	AssetsStored    prometheus.Counter
	AssetBytes      prometheus.Counter
	AssetsDeleted   prometheus.Counter
	AssetsRejected  *prometheus.CounterVec
	BrandingUpdates prometheus.Counter

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

var _ gallery.EventSink = (*Metrics)(nil)

// New creates and registers the metrics on reg. A nil reg uses a fresh
// registry, which keeps tests independent of the global default.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		TenantsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tenants_created_total",
			Help:      "Total number of tenants created",
		}),
		TenantsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tenants_deleted_total",
			Help:      "Total number of tenants deleted",
		}),
		AssetsStored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assets_stored_total",
			Help:      "Total number of assets stored",
		}),
		AssetBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asset_bytes_stored_total",
			Help:      "Total number of asset bytes stored",
		}),
		AssetsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assets_deleted_total",
			Help:      "Total number of individual asset deletions",
		}),
		AssetsRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "assets_rejected_total",
				Help:      "Total number of rejected asset uploads by error kind",
			},
			[]string{"kind"},
		),
		BrandingUpdates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "branding_updates_total",
			Help:      "Total number of branding logo updates",
		}),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP request processing",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latencies labelled by chi route
// pattern, so tenant ids never become label values.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// EventSink implementation

func (m *Metrics) TenantCreated(ctx context.Context, tenant *gallery.Tenant) error {
	m.TenantsCreated.Inc()
	return nil
}

func (m *Metrics) TenantDeleted(ctx context.Context, tenantID string) error {
	m.TenantsDeleted.Inc()
	return nil
}

func (m *Metrics) AssetStored(ctx context.Context, asset *gallery.Asset) error {
	m.AssetsStored.Inc()
	if asset != nil && asset.SizeBytes > 0 {
		m.AssetBytes.Add(float64(asset.SizeBytes))
	}
	return nil
}

func (m *Metrics) AssetDeleted(ctx context.Context, tenantID, key string) error {
	m.AssetsDeleted.Inc()
	return nil
}

func (m *Metrics) AssetRejected(ctx context.Context, tenantID, name string, kind gallery.Kind) error {
	m.AssetsRejected.WithLabelValues(string(kind)).Inc()
	return nil
}

func (m *Metrics) BrandingUpdated(ctx context.Context, settings *gallery.BrandingSettings) error {
	m.BrandingUpdates.Inc()
	return nil
}
