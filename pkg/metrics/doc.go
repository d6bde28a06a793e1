// Package metrics collects server metrics and renders them in the Prometheus
// text exposition format (text/plain; version=0.0.4).
//
// Supported metric types:
//   - Counter: monotonically increasing value (e.g., request counts)
//   - Gauge: value that can go up or down (e.g., in-flight connections)
//   - Histogram: distribution of values with fixed buckets (e.g., latencies)
//
// A Set bundles the metrics the server records; it is created per server
// instance and handed to the components that update it. Every metric is safe
// for concurrent use.
//
//	set := metrics.New()
//	vec, _ := set.RequestsTotal.WithLabels("mock", "200")
//	_ = vec.Inc()
//	_, _ = set.Registry.WriteTo(w)
package metrics
