// Package metrics provides a small Prometheus-compatible collector for baconbot.
// Output is the text exposition format, rendered without client_golang.
package metrics

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Collector is the process-wide collector.
var Collector = NewMetricsCollector()

// MetricsCollector aggregates counters, gauges and histograms.
type MetricsCollector struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	startTime  time.Time
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
		startTime:  time.Now(),
	}
}

// Uptime returns how long the collector has been running.
func (c *MetricsCollector) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// Counter is a monotonically increasing counter.
type Counter struct {
	name   string
	help   string
	labels string
	value  atomic.Int64
}

func (c *Counter) Inc() { c.value.Add(1) }
func (c *Counter) Add(n int64) { c.value.Add(n) }
func (c *Counter) Value() int64 { return c.value.Load() }
func (c *Counter) Labels() string { return c.labels }

// Gauge is a value that can go up and down.
type Gauge struct {
	name   string
	help   string
	labels string
	value  atomic.Int64
}

func (g *Gauge) Set(v int64) { g.value.Store(v) }
func (g *Gauge) Inc() { g.value.Add(1) }
func (g *Gauge) Dec() { g.value.Add(-1) }
func (g *Gauge) Value() int64 { return g.value.Load() }

// Histogram tracks the distribution of observed values.
type Histogram struct {
	name    string
	help    string
	labels  string
	mu      sync.Mutex
	count   int64
	sum     float64
	buckets []histBucket
}

type histBucket struct {
	le    float64
	count int64
}

// Observe records v.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i := range h.buckets {
		if v <= h.buckets[i].le {
			h.buckets[i].count++
		}
	}
}

// Since observes the seconds elapsed since start.
func (h *Histogram) Since(start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// Count returns the number of observations.
func (h *Histogram) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

func seriesKey(name, labels string) string { return name + "{" + labels + "}" }

// Counter returns or creates the counter for name and labels.
// labels is a pre-rendered label set such as `route="/health",code="200"`.
func (c *MetricsCollector) Counter(name, help, labels string) *Counter {
	key := seriesKey(name, labels)
	c.mu.RLock()
	ctr, ok := c.counters[key]
	c.mu.RUnlock()
	if ok {
		return ctr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctr, ok := c.counters[key]; ok {
		return ctr
	}
	ctr = &Counter{name: name, help: help, labels: labels}
	c.counters[key] = ctr
	return ctr
}

// Gauge returns or creates the gauge for name and labels.
func (c *MetricsCollector) Gauge(name, help, labels string) *Gauge {
	key := seriesKey(name, labels)
	c.mu.Lock()
	defer c.mu.Unlock()
	if g, ok := c.gauges[key]; ok {
		return g
	}
	g := &Gauge{name: name, help: help, labels: labels}
	c.gauges[key] = g
	return g
}

// Histogram returns or creates the histogram for name and labels.
func (c *MetricsCollector) Histogram(name, help, labels string, buckets []float64) *Histogram {
	key := seriesKey(name, labels)
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.histograms[key]; ok {
		return h
	}
	sorted := append([]float64(nil), buckets...)
	sort.Float64s(sorted)
	hb := make([]histBucket, len(sorted))
	for i, b := range sorted {
		hb[i] = histBucket{le: b}
	}
	h := &Histogram{name: name, help: help, labels: labels, buckets: hb}
	c.histograms[key] = h
	return h
}

// Label renders a single label pair with the value escaped.
func Label(name, value string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return name + `="` + r.Replace(value) + `"`
}

// Handler renders all series in Prometheus text format, sorted by series key.
func (c *MetricsCollector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		fmt.Fprint(w, c.Render())
	}
}

// Render returns the exposition text.
func (c *MetricsCollector) Render() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# HELP baconbot_uptime_seconds Time since start in seconds\n")
	fmt.Fprintf(&sb, "# TYPE baconbot_uptime_seconds gauge\n")
	fmt.Fprintf(&sb, "baconbot_uptime_seconds %d\n\n", int64(c.Uptime().Seconds()))

	c.mu.RLock()
	defer c.mu.RUnlock()

	helpWritten := make(map[string]bool)
	for _, key := range sortedKeys(c.counters) {
		ctr := c.counters[key]
		if !helpWritten[ctr.name] {
			fmt.Fprintf(&sb, "# HELP %s %s\n# TYPE %s counter\n", ctr.name, ctr.help, ctr.name)
			helpWritten[ctr.name] = true
		}
		fmt.Fprintf(&sb, "%s %d\n", series(ctr.name, ctr.labels), ctr.Value())
	}

	for _, key := range sortedKeys(c.gauges) {
		g := c.gauges[key]
		if !helpWritten[g.name] {
			fmt.Fprintf(&sb, "# HELP %s %s\n# TYPE %s gauge\n", g.name, g.help, g.name)
			helpWritten[g.name] = true
		}
		fmt.Fprintf(&sb, "%s %d\n", series(g.name, g.labels), g.Value())
	}

	for _, key := range sortedKeys(c.histograms) {
		h := c.histograms[key]
		h.mu.Lock()
		if !helpWritten[h.name] {
			fmt.Fprintf(&sb, "# HELP %s %s\n# TYPE %s histogram\n", h.name, h.help, h.name)
			helpWritten[h.name] = true
		}
		prefix := h.name + "_bucket{"
		if h.labels != "" {
			prefix += h.labels + ","
		}
		for _, b := range h.buckets {
			if math.IsInf(b.le, 1) {
				continue
			}
			fmt.Fprintf(&sb, "%sle=\"%g\"} %d\n", prefix, b.le, b.count)
		}
		fmt.Fprintf(&sb, "%sle=\"+Inf\"} %d\n", prefix, h.count)
		fmt.Fprintf(&sb, "%s %d\n", series(h.name+"_count", h.labels), h.count)
		fmt.Fprintf(&sb, "%s %f\n", series(h.name+"_sum", h.labels), h.sum)
		h.mu.Unlock()
	}
	return sb.String()
}

func series(name, labels string) string {
	if labels == "" {
		return name
	}
	return name + "{" + labels + "}"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// --- Application metrics ---

var latencyBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120}

// CommandsTotal counts slash and mention commands by outcome.
func CommandsTotal(outcome string) *Counter {
	return Collector.Counter("baconbot_commands_total", "Slash and mention commands handled, by outcome", Label("outcome", outcome))
}

// HTTPRequestsTotal counts gateway responses by route and status code.
func HTTPRequestsTotal(route string, code int) *Counter {
	return Collector.Counter("baconbot_http_requests_total", "HTTP requests handled, by route and status",
		Label("route", route)+","+Label("code", fmt.Sprint(code)))
}

// LedgerWritesTotal counts ledger writes by result ("ok", "error" or "disabled").
func LedgerWritesTotal(result string) *Counter {
	return Collector.Counter("baconbot_ledger_writes_total", "Ledger writes, by result", Label("result", result))
}

// SettlementsTotal counts settler calls by settler, operation and result.
func SettlementsTotal(settler, op, result string) *Counter {
	return Collector.Counter("baconbot_settlements_total", "Settler calls, by settler, operation and result",
		Label("settler", settler)+","+Label("op", op)+","+Label("result", result))
}

var (
	SignatureFailures = Collector.Counter("baconbot_signature_failures_total", "Requests rejected by signature verification", "")
	RateLimited       = Collector.Counter("baconbot_rate_limited_total", "Gateway requests rejected by the rate limiter", "")
	InFlightRequests  = Collector.Gauge("baconbot_inflight_requests", "HTTP requests currently being served", "")

	RequestLatency = Collector.Histogram("baconbot_request_latency_seconds", "HTTP request latency in seconds", "", latencyBuckets)
	SettleLatency  = Collector.Histogram("baconbot_settle_latency_seconds", "Settler call latency in seconds", "", latencyBuckets)
)
