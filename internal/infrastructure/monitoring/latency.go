package monitoring

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// latencyWindowSize is the number of recent unit durations kept per component
const latencyWindowSize = 512

// LatencySummary describes recent unit durations of one component, in
// milliseconds.
type LatencySummary struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean_ms"`
	P50   float64 `json:"p50_ms"`
	P95   float64 `json:"p95_ms"`
	P99   float64 `json:"p99_ms"`
	Max   float64 `json:"max_ms"`
}

// window is a fixed-size ring of the most recent samples
type window struct {
	samples []float64
	next    int
	full    bool
}

func (w *window) add(v float64) {
	if len(w.samples) < latencyWindowSize {
		w.samples = append(w.samples, v)
		return
	}
	w.samples[w.next] = v
	w.next = (w.next + 1) % latencyWindowSize
	w.full = true
}

// latencies tracks a window per component
type latencies struct {
	mu      sync.Mutex
	windows map[string]*window
}

func newLatencies() *latencies {
	return &latencies{windows: make(map[string]*window)}
}

func (l *latencies) observe(component string, d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[component]
	if !ok {
		w = &window{}
		l.windows[component] = w
	}
	w.add(float64(d) / float64(time.Millisecond))
}

func (l *latencies) summarize() map[string]LatencySummary {
	l.mu.Lock()
	copies := make(map[string][]float64, len(l.windows))
	for name, w := range l.windows {
		copies[name] = append([]float64(nil), w.samples...)
	}
	l.mu.Unlock()

	out := make(map[string]LatencySummary, len(copies))
	for name, samples := range copies {
		out[name] = summarize(samples)
	}
	return out
}

func summarize(samples []float64) LatencySummary {
	if len(samples) == 0 {
		return LatencySummary{}
	}
	sort.Float64s(samples)
	return LatencySummary{
		Count: len(samples),
		Mean:  stat.Mean(samples, nil),
		P50:   stat.Quantile(0.50, stat.Empirical, samples, nil),
		P95:   stat.Quantile(0.95, stat.Empirical, samples, nil),
		P99:   stat.Quantile(0.99, stat.Empirical, samples, nil),
		Max:   samples[len(samples)-1],
	}
}
