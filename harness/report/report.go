// Package report aggregates harness runs into pass/fail counts, a latency histogram and
// activity statistics, exported as Prometheus metrics, a table or YAML.
package report

import (
	"fmt"
	"io"
	"math"
	"slices"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/maemowong/suprax-aes/proto/aescore"
	"github.com/maemowong/suprax-aes/proto/redundancy"
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/yaml"
)

// Namespace prefixes every exported metric.
const Namespace = "suprax"

// Verdict is the outcome of checking one invocation against its expected ciphertext.
type Verdict uint8

const (
	// Pass: no fault flagged and the ciphertext matches.
	Pass Verdict = iota

	// Mismatch: no fault flagged but the ciphertext is wrong.
	Mismatch

	// Flagged: the engine suppressed the output.
	Flagged

	// Timeout: the invocation never completed.
	Timeout
)

func (v Verdict) String() string {
	switch v {
	case Pass:
		return "pass"
	case Mismatch:
		return "mismatch"
	case Flagged:
		return "flagged"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Entry is one checked invocation.
type Entry struct {
	Ciphertext aescore.Block
	Expected   aescore.Block
	FaultFlag  bool
	Fault      redundancy.FaultStatus
	Ticks      int
	Activity   []int
	TimedOut   bool
}

// Verdict classifies the entry.
func (e Entry) Verdict() Verdict {
	switch {
	case e.TimedOut:
		return Timeout
	case e.FaultFlag:
		return Flagged
	case e.Ciphertext != e.Expected:
		return Mismatch
	default:
		return Pass
	}
}

// Report is safe for concurrent Add calls.
type Report struct {
	mu sync.Mutex

	counts    map[Verdict]int
	latencies map[int]int
	activity  activityStats

	registry  *prometheus.Registry
	results   *prometheus.CounterVec
	latency   prometheus.Histogram
	perTick   prometheus.Histogram
	faultKind *prometheus.CounterVec
}

type activityStats struct {
	n     int
	sum   float64
	sumSq float64
	min   int
	max   int
}

func (a *activityStats) add(v int) {
	if a.n == 0 || v < a.min {
		a.min = v
	}
	if a.n == 0 || v > a.max {
		a.max = v
	}
	a.n++
	a.sum += float64(v)
	a.sumSq += float64(v) * float64(v)
}

// New returns an empty report with its own metrics registry.
func New() *Report {
	r := &Report{
		counts:    make(map[Verdict]int),
		latencies: make(map[int]int),
		registry:  prometheus.NewRegistry(),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "invocations_total",
			Help:      "Invocations checked, by verdict.",
		}, []string{"verdict"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "latency_ticks",
			Help:      "Ticks from start to done.",
			Buckets:   prometheus.LinearBuckets(23, 2, 12),
		}),
		perTick: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "activity_bits",
			Help:      "Noise register bits toggled per busy tick.",
			Buckets:   prometheus.LinearBuckets(0, 64, 9),
		}),
		faultKind: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "faults_total",
			Help:      "Detected faults, by check.",
		}, []string{"kind"}),
	}
	r.registry.MustRegister(r.results, r.latency, r.perTick, r.faultKind)
	return r
}

// Registry exposes the report's metrics for scraping.
func (r *Report) Registry() *prometheus.Registry {
	return r.registry
}

// Add records one entry and returns its verdict.
func (r *Report) Add(e Entry) Verdict {
	v := e.Verdict()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.counts[v]++
	r.results.WithLabelValues(v.String()).Inc()
	if v == Timeout {
		return v
	}

	r.latencies[e.Ticks]++
	r.latency.Observe(float64(e.Ticks))
	for _, a := range e.Activity {
		r.activity.add(a)
		r.perTick.Observe(float64(a))
	}
	if e.Fault&redundancy.FaultSpatial != 0 {
		r.faultKind.WithLabelValues("spatial").Inc()
	}
	if e.Fault&redundancy.FaultTemporal != 0 {
		r.faultKind.WithLabelValues("temporal").Inc()
	}
	return v
}

// Count returns the number of entries with verdict v.
func (r *Report) Count(v Verdict) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[v]
}

// OK reports whether every entry passed.
func (r *Report) OK() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for v, n := range r.counts {
		if v != Pass && n > 0 {
			return false
		}
	}
	return true
}

// Bucket is one latency histogram bin.
type Bucket struct {
	Ticks int `json:"ticks"`
	Count int `json:"count"`
}

// ActivitySummary is the per-tick activity distribution.
type ActivitySummary struct {
	Samples int     `json:"samples"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"stddev"`
	Min     int     `json:"min"`
	Max     int     `json:"max"`
}

// Snapshot is the serializable state of a report.
type Snapshot struct {
	Total    int             `json:"total"`
	Passed   int             `json:"passed"`
	Mismatch int             `json:"mismatch"`
	Flagged  int             `json:"flagged"`
	Timeouts int             `json:"timeouts"`
	Latency  []Bucket        `json:"latency"`
	Activity ActivitySummary `json:"activity"`
}

// Snapshot copies the current totals.
func (r *Report) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Snapshot{
		Passed:   r.counts[Pass],
		Mismatch: r.counts[Mismatch],
		Flagged:  r.counts[Flagged],
		Timeouts: r.counts[Timeout],
	}
	s.Total = s.Passed + s.Mismatch + s.Flagged + s.Timeouts

	for ticks, n := range r.latencies {
		s.Latency = append(s.Latency, Bucket{Ticks: ticks, Count: n})
	}
	slices.SortFunc(s.Latency, func(a, b Bucket) int { return a.Ticks - b.Ticks })

	a := r.activity
	s.Activity = ActivitySummary{Samples: a.n, Min: a.min, Max: a.max}
	if a.n > 0 {
		n := float64(a.n)
		s.Activity.Mean = a.sum / n
		s.Activity.StdDev = math.Sqrt(max(a.sumSq/n-s.Activity.Mean*s.Activity.Mean, 0))
	}
	return s
}

// MarshalYAML renders the snapshot as YAML.
func (r *Report) MarshalYAML() ([]byte, error) {
	return yaml.Marshal(r.Snapshot())
}

// WriteYAML writes the YAML form to w.
func (r *Report) WriteYAML(w io.Writer) error {
	b, err := r.MarshalYAML()
	if err != nil {
		return fmt.Errorf("unable to marshal report: %w", err)
	}
	_, err = w.Write(b)
	return err
}

// Render draws the summary and the latency histogram as tables.
func (r *Report) Render(w io.Writer) {
	s := r.Snapshot()

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Verdicts")
	t.AppendHeader(table.Row{"Pass", "Mismatch", "Flagged", "Timeout", "Total"})
	t.AppendRow(table.Row{s.Passed, s.Mismatch, s.Flagged, s.Timeouts, s.Total})
	t.Render()

	a := table.NewWriter()
	a.SetOutputMirror(w)
	a.SetStyle(table.StyleLight)
	a.SetTitle("Activity per busy tick")
	a.AppendHeader(table.Row{"Samples", "Mean", "StdDev", "Min", "Max"})
	a.AppendRow(table.Row{
		s.Activity.Samples,
		fmt.Sprintf("%.1f", s.Activity.Mean),
		fmt.Sprintf("%.1f", s.Activity.StdDev),
		s.Activity.Min, s.Activity.Max,
	})
	a.Render()

	if len(s.Latency) == 0 {
		return
	}
	l := table.NewWriter()
	l.SetOutputMirror(w)
	l.SetStyle(table.StyleLight)
	l.SetTitle("Latency")
	l.AppendHeader(table.Row{"Ticks", "Count"})
	for _, b := range s.Latency {
		l.AppendRow(table.Row{b.Ticks, b.Count})
	}
	l.Render()
}
