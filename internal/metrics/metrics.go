// Package metrics collects and exposes Prometheus metrics for the storefront.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics surface used by the service and transport layers
type Recorder interface {
	RecordIdentityEvent(eventType, action string)
	RecordAssetUpload(success bool)
	RecordAssetCleanupFailure()
	RecordHTTPRequest(route, method string, status int, duration time.Duration)
}

// Collector records metrics into Prometheus.
type Collector struct {
	httpRequests   *prometheus.CounterVec
	httpLatency    *prometheus.HistogramVec
	identityEvents *prometheus.CounterVec
	assetUploads   *prometheus.CounterVec
	cleanupFails   prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_http_requests_total",
			Help: "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		identityEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_identity_events_total",
			Help: "Identity events reconciled, by event type and resulting action",
		}, []string{"type", "action"}),
		assetUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_asset_uploads_total",
			Help: "Asset uploads by outcome",
		}, []string{"outcome"}),
		cleanupFails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_asset_cleanup_failures_total",
			Help: "Released assets that could not be deleted",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpLatency,
		c.identityEvents,
		c.assetUploads,
		c.cleanupFails,
	)

	return c
}

func (c *Collector) RecordIdentityEvent(eventType, action string) {
	c.identityEvents.WithLabelValues(eventType, action).Inc()
}

func (c *Collector) RecordAssetUpload(success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	c.assetUploads.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordAssetCleanupFailure() {
	c.cleanupFails.Inc()
}

func (c *Collector) RecordHTTPRequest(route, method string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(route, method).Observe(duration.Seconds())
}

// Nop discards everything. Used where metrics are not wired, mostly tests.
type Nop struct{}

func (Nop) RecordIdentityEvent(string, string) {}
func (Nop) RecordAssetUpload(bool) {}
func (Nop) RecordAssetCleanupFailure() {}
func (Nop) RecordHTTPRequest(string, string, int, time.Duration) {}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency labelled by the matched chi route pattern.
func Middleware(rec Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
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
			rec.RecordHTTPRequest(route, r.Method, status, time.Since(start))
		})
	}
}
