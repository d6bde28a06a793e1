package metrics

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrLabelCountMismatch is returned when the number of label values doesn't match the defined labels.
var ErrLabelCountMismatch = errors.New("label count mismatch")

// ErrNegativeCounterValue is returned when attempting to add a negative value to a counter.
var ErrNegativeCounterValue = errors.New("counter cannot be decreased")

// ErrDuplicateMetric is returned when registering a metric with a name that is already registered.
var ErrDuplicateMetric = errors.New("duplicate metric name")

// ContentType is the media type of the exposition text.
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

// MetricType represents the type of a metric.
type MetricType string

const (
	MetricTypeCounter   MetricType = "counter"
	MetricTypeGauge     MetricType = "gauge"
	MetricTypeHistogram MetricType = "histogram"
)

// Metric is the interface implemented by all metric types.
type Metric interface {
	Name() string
	Help() string
	Type() MetricType
	// Collect returns the samples to expose, in a stable order.
	Collect() []Sample
}

// Sample is one exposition line.
type Sample struct {
	Name   string
	Labels []Label
	Value  float64
}

// Label is a name/value pair attached to a sample.
type Label struct {
	Name, Value string
}

// float64 stored as bits for atomic access.
type atomicFloat64 struct{ bits atomic.Uint64 }

func (a *atomicFloat64) Load() float64 { return math.Float64frombits(a.bits.Load()) }

func (a *atomicFloat64) Store(v float64) { a.bits.Store(math.Float64bits(v)) }

func (a *atomicFloat64) Add(delta float64) {
	for {
		old := a.bits.Load()
		if a.bits.CompareAndSwap(old, math.Float64bits(math.Float64frombits(old)+delta)) {
			return
		}
	}
}

// family holds one child per distinct label-value combination.
type family[T any] struct {
	name       string
	help       string
	labelNames []string
	newChild   func() *T

	mu       sync.RWMutex
	children map[string]*child[T]
}

type child[T any] struct {
	labels []Label
	v      *T
}

func (f *family[T]) init(name, help string, labelNames []string, newChild func() *T) {
	f.name = name
	f.help = help
	f.labelNames = labelNames
	f.newChild = newChild
	f.children = make(map[string]*child[T])
}

func (f *family[T]) Name() string { return f.name }

func (f *family[T]) Help() string { return f.help }

func (f *family[T]) get(kind string, values []string) (*T, error) {
	if len(values) != len(f.labelNames) {
		return nil, fmt.Errorf("%w: %s %s expected %d labels, got %d", ErrLabelCountMismatch, kind, f.name, len(f.labelNames), len(values))
	}
	key := strings.Join(values, "\x00")

	f.mu.RLock()
	c, ok := f.children[key]
	f.mu.RUnlock()
	if ok {
		return c.v, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.children[key]; ok {
		return c.v, nil
	}
	labels := make([]Label, len(values))
	for i, v := range values {
		labels[i] = Label{Name: f.labelNames[i], Value: v}
	}
	c = &child[T]{labels: labels, v: f.newChild()}
	f.children[key] = c
	return c.v, nil
}

// each visits children in label-key order.
func (f *family[T]) each(fn func(labels []Label, v *T)) {
	f.mu.RLock()
	keys := make([]string, 0, len(f.children))
	for k := range f.children {
		keys = append(keys, k)
	}
	children := make([]*child[T], 0, len(keys))
	slices.Sort(keys)
	for _, k := range keys {
		children = append(children, f.children[k])
	}
	f.mu.RUnlock()

	for _, c := range children {
		fn(c.labels, c.v)
	}
}

// Counter is a monotonically increasing metric.
type Counter struct {
	family[CounterVec]
}

// CounterVec is the counter for one label combination.
type CounterVec struct {
	value atomicFloat64
}

// Type returns the metric type.
func (c *Counter) Type() MetricType { return MetricTypeCounter }

// WithLabels returns the child for the given label values.
func (c *Counter) WithLabels(values ...string) (*CounterVec, error) {
	return c.get("counter", values)
}

// Inc increments an unlabelled counter.
func (c *Counter) Inc() error { return c.Add(1) }

// Add adds delta to an unlabelled counter.
func (c *Counter) Add(delta float64) error {
	v, err := c.WithLabels()
	if err != nil {
		return err
	}
	return v.Add(delta)
}

// Collect implements Metric.
func (c *Counter) Collect() []Sample {
	var out []Sample
	c.each(func(labels []Label, v *CounterVec) {
		out = append(out, Sample{Name: c.name, Labels: labels, Value: v.Value()})
	})
	return out
}

// Inc increments the counter by 1.
func (v *CounterVec) Inc() error { return v.Add(1) }

// Add adds delta, which must not be negative.
func (v *CounterVec) Add(delta float64) error {
	if delta < 0 {
		return ErrNegativeCounterValue
	}
	v.value.Add(delta)
	return nil
}

// Value returns the current count.
func (v *CounterVec) Value() float64 { return v.value.Load() }

// Gauge is a metric that can go up and down.
type Gauge struct {
	family[GaugeVec]
	fn func() float64
}

// GaugeVec is the gauge for one label combination.
type GaugeVec struct {
	value atomicFloat64
}

// Type returns the metric type.
func (g *Gauge) Type() MetricType { return MetricTypeGauge }

// WithLabels returns the child for the given label values.
func (g *Gauge) WithLabels(values ...string) (*GaugeVec, error) {
	return g.get("gauge", values)
}

// Set sets an unlabelled gauge.
func (g *Gauge) Set(value float64) error {
	v, err := g.WithLabels()
	if err != nil {
		return err
	}
	v.Set(value)
	return nil
}

// Add adds delta to an unlabelled gauge.
func (g *Gauge) Add(delta float64) error {
	v, err := g.WithLabels()
	if err != nil {
		return err
	}
	v.Add(delta)
	return nil
}

// Inc increments an unlabelled gauge.
func (g *Gauge) Inc() error { return g.Add(1) }

// Dec decrements an unlabelled gauge.
func (g *Gauge) Dec() error { return g.Add(-1) }

// Collect implements Metric. A gauge built with NewGaugeFunc is sampled at
// collection time.
func (g *Gauge) Collect() []Sample {
	if g.fn != nil {
		return []Sample{{Name: g.name, Value: g.fn()}}
	}
	var out []Sample
	g.each(func(labels []Label, v *GaugeVec) {
		out = append(out, Sample{Name: g.name, Labels: labels, Value: v.Value()})
	})
	return out
}

// Set sets the gauge.
func (v *GaugeVec) Set(value float64) { v.value.Store(value) }

// Add adds delta to the gauge.
func (v *GaugeVec) Add(delta float64) { v.value.Add(delta) }

// Inc increments the gauge by 1.
func (v *GaugeVec) Inc() { v.Add(1) }

// Dec decrements the gauge by 1.
func (v *GaugeVec) Dec() { v.Add(-1) }

// Value returns the current value.
func (v *GaugeVec) Value() float64 { return v.value.Load() }

// Histogram tracks the distribution of observed values.
type Histogram struct {
	family[HistogramVec]
	bounds []float64 // sorted upper bounds, ending in +Inf
}

// HistogramVec is the histogram for one label combination.
type HistogramVec struct {
	bounds []float64
	counts []atomic.Uint64
	sum    atomicFloat64
	count  atomic.Uint64
}

// Type returns the metric type.
func (h *Histogram) Type() MetricType { return MetricTypeHistogram }

// WithLabels returns the child for the given label values.
func (h *Histogram) WithLabels(values ...string) (*HistogramVec, error) {
	return h.get("histogram", values)
}

// Observe records a value in an unlabelled histogram.
func (h *Histogram) Observe(value float64) error {
	v, err := h.WithLabels()
	if err != nil {
		return err
	}
	v.Observe(value)
	return nil
}

// Collect implements Metric. Bucket counts are cumulative.
func (h *Histogram) Collect() []Sample {
	var out []Sample
	h.each(func(labels []Label, v *HistogramVec) {
		var cumulative uint64
		for i, bound := range v.bounds {
			cumulative += v.counts[i].Load()
			le := append(slices.Clone(labels), Label{Name: "le", Value: formatFloat(bound)})
			out = append(out, Sample{Name: h.name + "_bucket", Labels: le, Value: float64(cumulative)})
		}
		out = append(out,
			Sample{Name: h.name + "_sum", Labels: labels, Value: v.sum.Load()},
			Sample{Name: h.name + "_count", Labels: labels, Value: float64(v.count.Load())},
		)
	})
	return out
}

// Observe records a value.
func (v *HistogramVec) Observe(value float64) {
	i, _ := slices.BinarySearch(v.bounds, value)
	if i < len(v.counts) {
		v.counts[i].Add(1)
	}
	v.sum.Add(value)
	v.count.Add(1)
}

// Count returns the number of observations.
func (v *HistogramVec) Count() uint64 { return v.count.Load() }

// Registry holds all registered metrics in registration order.
type Registry struct {
	mu      sync.RWMutex
	metrics []Metric
	names   map[string]struct{}
}

// NewRegistry creates a new metric registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]struct{})}
}

// NewCounter creates and registers a new counter.
func (r *Registry) NewCounter(name, help string, labels ...string) *Counter {
	c := &Counter{}
	c.init(name, help, labels, func() *CounterVec { return &CounterVec{} })
	r.register(c)
	return c
}

// NewGauge creates and registers a new gauge.
func (r *Registry) NewGauge(name, help string, labels ...string) *Gauge {
	g := &Gauge{}
	g.init(name, help, labels, func() *GaugeVec { return &GaugeVec{} })
	r.register(g)
	return g
}

// NewGaugeFunc registers an unlabelled gauge whose value is read from fn
// whenever the registry is collected.
func (r *Registry) NewGaugeFunc(name, help string, fn func() float64) *Gauge {
	g := &Gauge{fn: fn}
	g.init(name, help, nil, func() *GaugeVec { return &GaugeVec{} })
	r.register(g)
	return g
}

// NewHistogram creates and registers a new histogram with the given buckets.
// A +Inf bucket is appended when missing.
func (r *Registry) NewHistogram(name, help string, buckets []float64, labels ...string) *Histogram {
	bounds := slices.Clone(buckets)
	slices.Sort(bounds)
	if len(bounds) == 0 || !math.IsInf(bounds[len(bounds)-1], 1) {
		bounds = append(bounds, math.Inf(1))
	}
	h := &Histogram{bounds: bounds}
	h.init(name, help, labels, func() *HistogramVec {
		return &HistogramVec{bounds: bounds, counts: make([]atomic.Uint64, len(bounds))}
	})
	r.register(h)
	return h
}

// register panics on a duplicate name, since duplicate metric names produce
// invalid exposition output.
func (r *Registry) register(m Metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.names[m.Name()]; exists {
		panic(fmt.Sprintf("%s: %s", ErrDuplicateMetric, m.Name()))
	}
	r.names[m.Name()] = struct{}{}
	r.metrics = append(r.metrics, m)
}

// WriteTo writes every metric with at least one sample in text exposition
// format.
func (r *Registry) WriteTo(w io.Writer) (int64, error) {
	r.mu.RLock()
	metrics := slices.Clone(r.metrics)
	r.mu.RUnlock()

	var buf bytes.Buffer
	for _, m := range metrics {
		samples := m.Collect()
		if len(samples) == 0 {
			continue
		}
		fmt.Fprintf(&buf, "# HELP %s %s\n", m.Name(), escapeHelp(m.Help()))
		fmt.Fprintf(&buf, "# TYPE %s %s\n", m.Name(), m.Type())
		for _, s := range samples {
			buf.WriteString(s.Name)
			if len(s.Labels) > 0 {
				buf.WriteByte('{')
				for i, l := range s.Labels {
					if i > 0 {
						buf.WriteByte(',')
					}
					fmt.Fprintf(&buf, "%s=\"%s\"", l.Name, escapeLabelValue(l.Value))
				}
				buf.WriteByte('}')
			}
			buf.WriteByte(' ')
			buf.WriteString(formatFloat(s.Value))
			buf.WriteByte('\n')
		}
	}
	return buf.WriteTo(w)
}

// Text returns the exposition text.
func (r *Registry) Text() string {
	var sb strings.Builder
	_, _ = r.WriteTo(&sb)
	return sb.String()
}

func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func escapeHelp(s string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`).Replace(s)
}

func escapeLabelValue(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(s)
}

// DefaultBuckets are the default histogram buckets for durations in seconds.
var DefaultBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
