package observer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	suprax "github.com/maemowong/suprax-aes"
	"github.com/maemowong/suprax-aes/harness/vectors"
	"github.com/maemowong/suprax-aes/proto/noise"
	"github.com/stretchr/testify/require"
)

// observe runs n invocations of the known answer with an observer attached.
func observe(t *testing.T, n int) (*Observer, []suprax.Result) {
	t.Helper()

	o := New()
	e := suprax.NewEngine(suprax.WithProbe(o.Record))

	results := make([]suprax.Result, 0, n)
	for range n {
		res, err := e.Encrypt(context.Background(), vectors.KnownAnswer.Key, vectors.KnownAnswer.Plaintext)
		require.NoError(t, err)
		results = append(results, res)
	}
	return o, results
}

func TestObserver_RecordsEveryTick(t *testing.T) {
	o, results := observe(t, 3)

	total := 0
	for _, r := range results {
		total += r.Ticks
	}
	require.Len(t, o.Samples(), total)
	require.Equal(t, 3, o.Invocations())
	for i, r := range results {
		require.Len(t, o.Invocation(i), r.Ticks)
	}
}

func TestObserver_SummaryMatchesEngine(t *testing.T) {
	o, results := observe(t, 4)
	s := o.Summary()

	busy, sum := 0, 0
	for _, r := range results {
		busy += len(r.Activity)
		for _, a := range r.Activity {
			sum += a
		}
	}
	require.Equal(t, busy, s.Samples)
	require.Equal(t, sum, s.Total)
	require.Equal(t, s.Samples, s.Advances+s.Stalls)

	// 4 invocations × 2 runs × 10 rounds
	require.Equal(t, 80, s.Advances)

	// A stall inverts the whole register
	if s.Stalls > 0 {
		require.Equal(t, noise.Width, s.Max)
	}
	require.LessOrEqual(t, s.Min, s.Max)
	require.Positive(t, s.StdDev)
}

func TestObserver_ActivityVariesAcrossIdenticalRuns(t *testing.T) {
	// WHAT: Identical inputs, different activity sequences, identical output
	o, results := observe(t, 8)

	distinct := map[string]bool{}
	for i := range results {
		require.Equal(t, results[0].Ciphertext, results[i].Ciphertext)
		var b strings.Builder
		for _, a := range o.Invocation(i) {
			b.WriteString(string(rune(a)))
		}
		distinct[b.String()] = true
	}
	require.Greater(t, len(distinct), 1)
}

func TestObserver_EmptySummary(t *testing.T) {
	o := New()
	require.Equal(t, Summary{}, o.Summary())
	require.Zero(t, o.Invocations())
}

func TestTrace_RoundTrip(t *testing.T) {
	o, _ := observe(t, 2)

	var buf bytes.Buffer
	require.NoError(t, o.WriteTrace(&buf))

	got, err := ReadTrace(&buf)
	require.NoError(t, err)
	require.Equal(t, o.Samples(), got)
}

func TestTrace_Files(t *testing.T) {
	o, _ := observe(t, 2)
	dir := t.TempDir()

	for _, name := range []string{"trace.txt", "trace.txt.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, o.WriteTraceFile(path))

			got, err := ReadTraceFile(path)
			require.NoError(t, err)
			require.Equal(t, o.Samples(), got)
		})
	}

	// The compressed trace is smaller and not plain text
	plain, err := os.ReadFile(filepath.Join(dir, "trace.txt"))
	require.NoError(t, err)
	packed, err := os.ReadFile(filepath.Join(dir, "trace.txt.zst"))
	require.NoError(t, err)
	require.Less(t, len(packed), len(plain))
	require.False(t, bytes.HasPrefix(packed, plain[:8]))
}

func TestTrace_Malformed(t *testing.T) {
	_, err := ReadTrace(strings.NewReader("0 0 IDLE - 0\n0 1 RUN1\n"))
	require.ErrorIs(t, err, ErrMalformed)
	require.Contains(t, err.Error(), "line 2")

	_, err = ReadTrace(strings.NewReader("x 0 IDLE - 0\n"))
	require.Error(t, err)
}

func TestObserver_Reset(t *testing.T) {
	o, _ := observe(t, 1)
	o.Reset()
	require.Empty(t, o.Samples())
	require.Zero(t, o.Invocations())
}
