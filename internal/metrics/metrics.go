// Package metrics provides Prometheus-compatible metrics for scriptrec.
//
// Counters, gauges and histograms live in a Registry that renders the
// Prometheus text format (for scraping in watch mode, or for the node
// exporter textfile collector after a one-shot convert) and JSON.
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Labels are constant labels attached to a metric.
type Labels map[string]string

// String renders labels as {a="1",b="2"} with sorted keys.
func (l Labels) String() string {
	if len(l) == 0 {
		return ""
	}
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + strconv.Quote(l[k])
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// with returns the label string extended by one more pair.
func (l Labels) with(k, v string) string {
	m := Labels{k: v}
	for lk, lv := range l {
		m[lk] = lv
	}
	return m.String()
}

type desc struct {
	name   string
	help   string
	labels Labels
}

func (d desc) header(w io.Writer, typ string) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", d.name, d.help, d.name, typ)
}

// Counter is a monotonically increasing counter.
type Counter struct {
	desc
	value atomic.Uint64
}

// Inc increments the counter by 1.
func (c *Counter) Inc() { c.value.Add(1) }

// Add adds v to the counter.
func (c *Counter) Add(v uint64) { c.value.Add(v) }

// Value returns the current value.
func (c *Counter) Value() uint64 { return c.value.Load() }

// Gauge is a value that can go up and down.
type Gauge struct {
	desc
	bits atomic.Uint64
}

// Set sets the gauge.
func (g *Gauge) Set(v float64) { g.bits.Store(math.Float64bits(v)) }

// SetTime sets the gauge to t as Unix seconds.
func (g *Gauge) SetTime(t time.Time) { g.Set(float64(t.UnixNano()) / 1e9) }

// Value returns the current value.
func (g *Gauge) Value() float64 { return math.Float64frombits(g.bits.Load()) }

// Histogram counts observations into buckets.
type Histogram struct {
	desc
	buckets []float64

	mu     sync.Mutex
	counts []uint64 // per bucket, last is +Inf
	sum    float64
	count  uint64
}

// DurationBuckets are buckets for duration histograms (in seconds).
var DurationBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// Observe records a value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.count++
	// Buckets are inclusive upper bounds.
	h.counts[sort.SearchFloat64s(h.buckets, v)]++
}

// ObserveDuration records d in seconds.
func (h *Histogram) ObserveDuration(d time.Duration) { h.Observe(d.Seconds()) }

// Count returns the number of observations.
func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Sum returns the sum of observations.
func (h *Histogram) Sum() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sum
}

// cumulative returns the running bucket counts, +Inf last.
func (h *Histogram) cumulative() []uint64 {
	out := make([]uint64, len(h.counts))
	var n uint64
	for i, c := range h.counts {
		n += c
		out[i] = n
	}
	return out
}

// Registry holds registered metrics under a common name prefix.
type Registry struct {
	prefix string

	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
}

// NewRegistry creates a Registry whose metric names start with
// namespace_subsystem_ (empty parts are skipped).
func NewRegistry(namespace, subsystem string) *Registry {
	var parts []string
	for _, p := range []string{namespace, subsystem} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	prefix := strings.Join(parts, "_")
	if prefix != "" {
		prefix += "_"
	}
	return &Registry{
		prefix:     prefix,
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
	}
}

// Counter registers, or returns the existing, counter name.
func (r *Registry) Counter(name, help string, labels Labels) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	full := r.prefix + name
	if c, ok := r.counters[full]; ok {
		return c
	}
	c := &Counter{desc: desc{full, help, labels}}
	r.counters[full] = c
	return c
}

// Gauge registers, or returns the existing, gauge name.
func (r *Registry) Gauge(name, help string, labels Labels) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	full := r.prefix + name
	if g, ok := r.gauges[full]; ok {
		return g
	}
	g := &Gauge{desc: desc{full, help, labels}}
	r.gauges[full] = g
	return g
}

// Histogram registers, or returns the existing, histogram name. Nil
// buckets select DurationBuckets.
func (r *Registry) Histogram(name, help string, labels Labels, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	full := r.prefix + name
	if h, ok := r.histograms[full]; ok {
		return h
	}
	if buckets == nil {
		buckets = DurationBuckets
	}
	sorted := append([]float64(nil), buckets...)
	sort.Float64s(sorted)
	h := &Histogram{
		desc:    desc{full, help, labels},
		buckets: sorted,
		counts:  make([]uint64, len(sorted)+1),
	}
	r.histograms[full] = h
	return h
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WritePrometheus writes all metrics in the Prometheus text format,
// sorted by name.
func (r *Registry) WritePrometheus(w io.Writer) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bw := &errWriter{w: w}
	for _, name := range sortedKeys(r.counters) {
		c := r.counters[name]
		c.header(bw, "counter")
		fmt.Fprintf(bw, "%s%s %d\n", c.name, c.labels, c.Value())
	}
	for _, name := range sortedKeys(r.gauges) {
		g := r.gauges[name]
		g.header(bw, "gauge")
		fmt.Fprintf(bw, "%s%s %s\n", g.name, g.labels, formatFloat(g.Value()))
	}
	for _, name := range sortedKeys(r.histograms) {
		h := r.histograms[name]
		h.mu.Lock()
		h.header(bw, "histogram")
		cum := h.cumulative()
		for i, b := range h.buckets {
			fmt.Fprintf(bw, "%s_bucket%s %d\n", h.name, h.labels.with("le", formatFloat(b)), cum[i])
		}
		fmt.Fprintf(bw, "%s_bucket%s %d\n", h.name, h.labels.with("le", "+Inf"), cum[len(cum)-1])
		fmt.Fprintf(bw, "%s_sum%s %s\n", h.name, h.labels, formatFloat(h.sum))
		fmt.Fprintf(bw, "%s_count%s %d\n", h.name, h.labels, h.count)
		h.mu.Unlock()
	}
	return bw.err
}

// Snapshot returns the current values keyed by metric name. Histograms
// contribute _sum and _count entries.
func (r *Registry) Snapshot() map[string]float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]float64)
	for name, c := range r.counters {
		out[name] = float64(c.Value())
	}
	for name, g := range r.gauges {
		out[name] = g.Value()
	}
	for name, h := range r.histograms {
		out[name+"_sum"] = h.Sum()
		out[name+"_count"] = float64(h.Count())
	}
	return out
}

// WriteJSON writes Snapshot as an indented JSON object.
func (r *Registry) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r.Snapshot())
}

// HTTPHandler serves the registry, as JSON when the client asks for it.
func (r *Registry) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if strings.Contains(req.Header.Get("Accept"), "application/json") {
			w.Header().Set("Content-Type", "application/json")
			r.WriteJSON(w)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		r.WritePrometheus(w)
	})
}

// WriteFile atomically replaces path with the Prometheus text format, as
// the node exporter textfile collector expects.
func (r *Registry) WriteFile(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".metrics-*")
	if err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := r.WritePrometheus(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write metrics: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	e.err = err
	return n, err
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
