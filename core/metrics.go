// core/metrics.go
package core

// Process-wide metrics surface (spec §6/§9): counters plus nanosecond
// latency histograms sampled with a 1024-slot reservoir. The JSON export
// carries both; the Prometheus exposition text carries the counters only.
// Gated by a single atomic enable flag so
// the disabled path costs one atomic load per call site.

import (
	"bytes"
	"encoding/json"
	"math"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const reservoirCapacity = 1024

var metricsEnabled atomic.Bool

// EnableMetrics turns the global metrics surface on or off. Disabled is the
// zero-overhead default: every Record* call below returns immediately
// after one atomic load.
func EnableMetrics(enabled bool) { metricsEnabled.Store(enabled) }

// MetricsEnabled reports the current toggle state.
func MetricsEnabled() bool { return metricsEnabled.Load() }

// reservoir implements Algorithm-R reservoir sampling over up to capacity
// latency samples (spec §6: "1024 samples").
type reservoir struct {
	mu      sync.Mutex
	samples []time.Duration
	count   uint64
	rng     *rand.Rand
}

func newReservoir() *reservoir {
	return &reservoir{rng: rand.New(rand.NewSource(0xC0FFEE))}
}

func (r *reservoir) record(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	if len(r.samples) < reservoirCapacity {
		r.samples = append(r.samples, d)
		return
	}
	j := r.rng.Int63n(int64(r.count))
	if j < reservoirCapacity {
		r.samples[j] = d
	}
}

func (r *reservoir) percentile(p float64) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), r.samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// LatencyPercentiles reports the P50/P95/P99/P999 of one latency reservoir,
// in nanoseconds.
type LatencyPercentiles struct {
	P50  int64 `json:"p50_ns"`
	P95  int64 `json:"p95_ns"`
	P99  int64 `json:"p99_ns"`
	P999 int64 `json:"p999_ns"`
}

func (r *reservoir) snapshot() LatencyPercentiles {
	return LatencyPercentiles{
		P50:  int64(r.percentile(0.50)),
		P95:  int64(r.percentile(0.95)),
		P99:  int64(r.percentile(0.99)),
		P999: int64(r.percentile(0.999)),
	}
}

// metricsState holds the process-wide counters and histograms plus their
// Prometheus collectors (spec §9: "Metrics state is process-wide").
type metricsState struct {
	reads, writes, serializations, deserializations, copies, moves prometheus.Counter

	getLatency, setLatency, serializeLatency, deserializeLatency *reservoir

	registry *prometheus.Registry
}

func newMetricsState() *metricsState {
	reg := prometheus.NewRegistry()
	mk := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
		reg.MustRegister(c)
		return c
	}
	return &metricsState{
		reads:              mk("container_reads_total", "Total values read through Get/GetBatch."),
		writes:             mk("container_writes_total", "Total Set/Remove/batch-write calls."),
		serializations:     mk("container_serializations_total", "Total codec Encode* calls."),
		deserializations:   mk("container_deserializations_total", "Total codec Decode* calls."),
		copies:             mk("container_copies_total", "Total Clone operations."),
		moves:              mk("container_moves_total", "Total bulk-insert moves."),
		getLatency:         newReservoir(),
		setLatency:         newReservoir(),
		serializeLatency:   newReservoir(),
		deserializeLatency: newReservoir(),
		registry:           reg,
	}
}

var globalMetrics = newMetricsState()

func recordRead() {
	if !MetricsEnabled() {
		return
	}
	globalMetrics.reads.Inc()
}

func recordWriteMetric() {
	if !MetricsEnabled() {
		return
	}
	globalMetrics.writes.Inc()
}

func recordSerialization(d time.Duration) {
	if !MetricsEnabled() {
		return
	}
	globalMetrics.serializations.Inc()
	globalMetrics.serializeLatency.record(d)
}

func recordDeserialization(d time.Duration) {
	if !MetricsEnabled() {
		return
	}
	globalMetrics.deserializations.Inc()
	globalMetrics.deserializeLatency.record(d)
}

func recordCopy() {
	if !MetricsEnabled() {
		return
	}
	globalMetrics.copies.Inc()
}

func recordMove(n int) {
	if !MetricsEnabled() || n <= 0 {
		return
	}
	globalMetrics.moves.Add(float64(n))
}

func recordGetLatency(d time.Duration) {
	if !MetricsEnabled() {
		return
	}
	globalMetrics.getLatency.record(d)
}

func recordSetLatency(d time.Duration) {
	if !MetricsEnabled() {
		return
	}
	globalMetrics.setLatency.record(d)
}

// MetricsSnapshot is the exportable view of the process-wide metrics state.
type MetricsSnapshot struct {
	Reads              uint64             `json:"reads"`
	Writes             uint64             `json:"writes"`
	Serializations     uint64             `json:"serializations"`
	Deserializations   uint64             `json:"deserializations"`
	Copies             uint64             `json:"copies"`
	Moves              uint64             `json:"moves"`
	GetLatency         LatencyPercentiles `json:"get_latency"`
	SetLatency         LatencyPercentiles `json:"set_latency"`
	SerializeLatency   LatencyPercentiles `json:"serialize_latency"`
	DeserializeLatency LatencyPercentiles `json:"deserialize_latency"`
}

func gatherCounterValue(c prometheus.Counter) uint64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return uint64(m.GetCounter().GetValue())
}

// Snapshot returns the current counters and latency percentiles.
func (m *metricsState) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Reads:              gatherCounterValue(m.reads),
		Writes:             gatherCounterValue(m.writes),
		Serializations:     gatherCounterValue(m.serializations),
		Deserializations:   gatherCounterValue(m.deserializations),
		Copies:             gatherCounterValue(m.copies),
		Moves:              gatherCounterValue(m.moves),
		GetLatency:         m.getLatency.snapshot(),
		SetLatency:         m.setLatency.snapshot(),
		SerializeLatency:   m.serializeLatency.snapshot(),
		DeserializeLatency: m.deserializeLatency.snapshot(),
	}
}

// MetricsJSON exports the current process-wide metrics snapshot as JSON.
func MetricsJSON() ([]byte, error) {
	return json.Marshal(globalMetrics.Snapshot())
}

// MetricsPrometheus exports the current process-wide metrics in Prometheus
// text exposition format.
func MetricsPrometheus() ([]byte, error) {
	families, err := globalMetrics.registry.Gather()
	if err != nil {
		return nil, errInvalidFormat("metrics", err.Error())
	}
	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, f := range families {
		if err := enc.Encode(f); err != nil {
			return nil, errInvalidFormat("metrics", err.Error())
		}
	}
	return buf.Bytes(), nil
}
