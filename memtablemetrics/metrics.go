// Package memtablemetrics exposes the MemTable's flush metrics (spec.md
// §6: "flush count and flush duration, under names fixed for
// compatibility") as Prometheus collectors, plus an internal
// high-dynamic-range latency recorder for diagnostics that never leave the
// process (percentile queries over a session's lifetime, not scraped).
//
// Grounded on the teacher's VersionMetrics (metrics.go), generalized from a
// one-off pretty-printed struct snapshot to long-lived registered
// collectors, since this MemTable's metrics are meant for a scrape
// endpoint rather than a CLI dump.
package memtablemetrics

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters a MemTable reports to on every flush. The two
// names below are load-bearing: spec.md §6 fixes them for compatibility
// with whatever external system scrapes this process's /metrics endpoint.
type Metrics struct {
	FlushTotal        prometheus.Counter
	FlushDurationUsec prometheus.Counter

	// latency is an in-process HDR histogram of flush durations in
	// microseconds, queried directly (not exported to Prometheus) by
	// diagnostics tooling such as cmd/memtable-bench.
	latency *hdrhistogram.Histogram
}

// New constructs a Metrics bound to reg. Pass prometheus.DefaultRegisterer
// to expose on the process-wide default endpoint, or a fresh registry in
// tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FlushTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memtable_flush_total",
			Help: "Total number of MemTable flushes completed.",
		}),
		FlushDurationUsec: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memtable_flush_duration_us",
			Help: "Cumulative MemTable flush duration, in microseconds.",
		}),
		// 1us floor, 10 minute ceiling, 3 significant decimal digits —
		// generous enough for a pathological flush without the histogram's
		// memory footprint growing unreasonably.
		latency: hdrhistogram.New(1, int64(10*time.Minute/time.Microsecond), 3),
	}
	if reg != nil {
		reg.MustRegister(m.FlushTotal, m.FlushDurationUsec)
	}
	return m
}

// RecordFlush reports one completed flush of the given duration.
func (m *Metrics) RecordFlush(d time.Duration) {
	usec := d.Microseconds()
	m.FlushTotal.Inc()
	m.FlushDurationUsec.Add(float64(usec))
	_ = m.latency.RecordValue(usec)
}

// LatencyPercentile returns the flush-duration percentile (e.g. 99 for
// p99) observed so far, in microseconds. Returns 0 if no flush has been
// recorded yet.
func (m *Metrics) LatencyPercentile(p float64) int64 {
	if m.latency.TotalCount() == 0 {
		return 0
	}
	return m.latency.ValueAtPercentile(p)
}

// LatencySamples returns every recorded flush-duration bucket's midpoint,
// repeated by its observed count — suitable for feeding a sparkline
// renderer (see cmd/memtable-bench).
func (m *Metrics) LatencySamples() []float64 {
	var out []float64
	for _, b := range m.latency.Distribution() {
		if b.Count == 0 {
			continue
		}
		mid := float64(b.From+b.To) / 2
		for i := int64(0); i < b.Count; i++ {
			out = append(out, mid)
		}
	}
	return out
}
