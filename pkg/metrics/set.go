package metrics

import (
	"runtime"
	"time"
)

// Set is the collection of metrics recorded by one server instance.
//
// Label values:
//   - route: "index", "metrics", "project", "mock" or "not_found"
//   - status: numeric HTTP status
//   - reason (transport errors): "closed", "timeout", "malformed", "method", "too_large", "io"
//   - result (cache lookups): "hit", "miss"; (cache loads): "ok", "not_found", "error"
//   - tier (matches): "keyed", "scan", "none"
type Set struct {
	Registry *Registry

	ConnectionsTotal  *Counter
	ConnectionsActive *Gauge
	ConnectionsQueued *Gauge
	TransportErrors   *Counter

	RequestsTotal   *Counter
	RequestDuration *Histogram

	CacheLookups       *Counter
	CacheLoads         *Counter
	CacheInvalidations *Counter
	CacheEntries       *Gauge

	Matches *Counter
}

// New creates a Set on a fresh registry, including process gauges.
func New() *Set {
	r := NewRegistry()
	start := time.Now()

	s := &Set{
		Registry: r,

		ConnectionsTotal:  r.NewCounter("mockapi_connections_total", "Total number of accepted connections"),
		ConnectionsActive: r.NewGauge("mockapi_connections_active", "Number of connections being handled by a worker"),
		ConnectionsQueued: r.NewGauge("mockapi_connections_queued", "Number of accepted connections waiting for a worker"),
		TransportErrors:   r.NewCounter("mockapi_transport_errors_total", "Connections dropped before a response was sent", "reason"),

		RequestsTotal:   r.NewCounter("mockapi_requests_total", "Total number of answered requests", "route", "status"),
		RequestDuration: r.NewHistogram("mockapi_request_duration_seconds", "Time from request parsed to response written", DefaultBuckets, "route"),

		CacheLookups:       r.NewCounter("mockapi_cache_lookups_total", "Project cache lookups", "result"),
		CacheLoads:         r.NewCounter("mockapi_cache_loads_total", "Project configurations loaded into the cache", "result"),
		CacheInvalidations: r.NewCounter("mockapi_cache_invalidations_total", "Project cache invalidations"),
		CacheEntries:       r.NewGauge("mockapi_cache_entries", "Number of cached project configurations"),

		Matches: r.NewCounter("mockapi_matches_total", "Mock resolutions by matching tier", "tier"),
	}

	r.NewGaugeFunc("mockapi_uptime_seconds", "Seconds since the metric set was created", func() float64 {
		return time.Since(start).Seconds()
	})
	r.NewGaugeFunc("go_goroutines", "Number of goroutines that currently exist", func() float64 {
		return float64(runtime.NumGoroutine())
	})
	r.NewGaugeFunc("go_memstats_heap_alloc_bytes", "Number of heap bytes allocated and still in use", func() float64 {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		return float64(ms.HeapAlloc)
	})
	return s
}

// Inc increments c for the given labels. Label mismatches are programming
// errors in this package's callers and are ignored at runtime.
func Inc(c *Counter, labels ...string) {
	if c == nil {
		return
	}
	if v, err := c.WithLabels(labels...); err == nil {
		_ = v.Inc()
	}
}

// AddGauge adds delta to an unlabelled gauge.
func AddGauge(g *Gauge, delta float64) {
	if g == nil {
		return
	}
	_ = g.Add(delta)
}

// Observe records value in h for the given labels.
func Observe(h *Histogram, value float64, labels ...string) {
	if h == nil {
		return
	}
	if v, err := h.WithLabels(labels...); err == nil {
		v.Observe(value)
	}
}
