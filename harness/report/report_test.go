package report

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/maemowong/suprax-aes/proto/aescore"
	"github.com/maemowong/suprax-aes/proto/redundancy"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"
)

var ct = aescore.Block{0x69, 0xc4}

func pass(ticks int, activity ...int) Entry {
	return Entry{Ciphertext: ct, Expected: ct, Ticks: ticks, Activity: activity}
}

func TestEntry_Verdict(t *testing.T) {
	require.Equal(t, Pass, pass(23).Verdict())
	require.Equal(t, Mismatch, Entry{Ciphertext: ct}.Verdict())
	require.Equal(t, Flagged, Entry{FaultFlag: true, Expected: ct}.Verdict())
	require.Equal(t, Timeout, Entry{TimedOut: true, FaultFlag: true}.Verdict())
}

func TestReport_Counts(t *testing.T) {
	r := New()
	r.Add(pass(23, 100, 512))
	r.Add(pass(25, 200))
	r.Add(pass(25, 300))
	r.Add(Entry{FaultFlag: true, Fault: redundancy.FaultSpatial | redundancy.FaultTemporal, Ticks: 30})
	r.Add(Entry{TimedOut: true})

	require.False(t, r.OK())
	require.Equal(t, 3, r.Count(Pass))
	require.Equal(t, 1, r.Count(Flagged))
	require.Equal(t, 1, r.Count(Timeout))

	s := r.Snapshot()
	require.Equal(t, 5, s.Total)
	require.Equal(t, []Bucket{{23, 1}, {25, 2}, {30, 1}}, s.Latency)
	require.Equal(t, 4, s.Activity.Samples)
	require.Equal(t, 100, s.Activity.Min)
	require.Equal(t, 512, s.Activity.Max)
	require.InDelta(t, 278, s.Activity.Mean, 1e-9)

	require.Equal(t, 3.0, testutil.ToFloat64(r.results.WithLabelValues("pass")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.results.WithLabelValues("timeout")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.faultKind.WithLabelValues("spatial")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.faultKind.WithLabelValues("temporal")))
}

func TestReport_OKWhenAllPass(t *testing.T) {
	r := New()
	require.True(t, r.OK())
	r.Add(pass(23))
	require.True(t, r.OK())
}

func TestReport_ConcurrentAdd(t *testing.T) {
	r := New()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				r.Add(pass(29, 128))
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 800, r.Count(Pass))
	require.Equal(t, 800.0, testutil.ToFloat64(r.results.WithLabelValues("pass")))
}

func TestReport_Registry(t *testing.T) {
	r := New()
	r.Add(pass(23, 1))

	families, err := r.Registry().Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	require.True(t, names["suprax_invocations_total"])
	require.True(t, names["suprax_latency_ticks"])
	require.True(t, names["suprax_activity_bits"])
}

func TestReport_YAML(t *testing.T) {
	r := New()
	r.Add(pass(23, 10))

	var buf bytes.Buffer
	require.NoError(t, r.WriteYAML(&buf))

	var s Snapshot
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &s))
	require.Equal(t, r.Snapshot(), s)
	require.Contains(t, buf.String(), "passed: 1")
}

func TestReport_Render(t *testing.T) {
	r := New()
	r.Add(pass(23, 10))
	r.Add(pass(27, 20))

	var buf bytes.Buffer
	r.Render(&buf)

	// Titles and headers may be case-formatted by the table style
	out := strings.ToLower(buf.String())
	for _, want := range []string{"verdicts", "latency", "activity per busy tick", "23", "27"} {
		require.Contains(t, out, want)
	}
}
