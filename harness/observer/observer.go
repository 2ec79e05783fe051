// Package observer samples the engine's per-tick switching activity, the power proxy a
// side-channel attacker would see, and writes it out as a text trace.
//
// Trace format, one sample per line:
//
//	<invocation> <tick> <state> <A|S|-> <activity>
//
// where A is an advance tick, S a stall tick and - an idle tick. Files named *.zst are
// zstd-compressed.
package observer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/maemowong/suprax-aes/proto/redundancy"
)

// ErrMalformed is returned for a trace line that does not have the five fields.
var ErrMalformed = errors.New("malformed trace line")

// Sample is one tick.
type Sample struct {
	Invocation int
	Tick       int
	State      redundancy.State
	Busy       bool
	Advance    bool
	Activity   int
}

func (s Sample) mark() byte {
	switch {
	case !s.Busy:
		return '-'
	case s.Advance:
		return 'A'
	default:
		return 'S'
	}
}

// Observer accumulates samples. Its Record method has the engine probe signature.
// Not safe for concurrent use.
type Observer struct {
	samples    []Sample
	invocation int
	lastTick   int
}

// New returns an empty observer.
func New() *Observer {
	return &Observer{lastTick: -1}
}

// Record stores one tick. A tick index that does not increase starts a new invocation.
func (o *Observer) Record(tick int, out redundancy.Outputs) {
	if tick <= o.lastTick {
		o.invocation++
	}
	o.lastTick = tick

	o.samples = append(o.samples, Sample{
		Invocation: o.invocation,
		Tick:       tick,
		State:      out.State,
		Busy:       out.Active,
		Advance:    out.Advance,
		Activity:   out.Activity,
	})
}

// Samples returns everything recorded so far.
func (o *Observer) Samples() []Sample {
	return o.samples
}

// Invocation returns the activity sequence of invocation i.
func (o *Observer) Invocation(i int) []int {
	var out []int
	for _, s := range o.samples {
		if s.Invocation == i {
			out = append(out, s.Activity)
		}
	}
	return out
}

// Invocations is the number of distinct invocations recorded.
func (o *Observer) Invocations() int {
	if len(o.samples) == 0 {
		return 0
	}
	return o.invocation + 1
}

// Reset drops all samples.
func (o *Observer) Reset() {
	*o = *New()
}

// Summary is aggregate activity over busy ticks.
type Summary struct {
	Samples  int
	Advances int
	Stalls   int
	Total    int
	Min      int
	Max      int
	Mean     float64
	StdDev   float64
}

// Summary aggregates all busy samples.
func (o *Observer) Summary() Summary {
	s := Summary{Min: math.MaxInt}

	var sumSq float64
	for _, smp := range o.samples {
		if !smp.Busy {
			continue
		}
		s.Samples++
		if smp.Advance {
			s.Advances++
		} else {
			s.Stalls++
		}
		s.Total += smp.Activity
		s.Min = min(s.Min, smp.Activity)
		s.Max = max(s.Max, smp.Activity)
		sumSq += float64(smp.Activity) * float64(smp.Activity)
	}
	if s.Samples == 0 {
		s.Min = 0
		return s
	}

	n := float64(s.Samples)
	s.Mean = float64(s.Total) / n
	s.StdDev = math.Sqrt(max(sumSq/n-s.Mean*s.Mean, 0))
	return s
}

// WriteTrace writes every sample in the text trace format.
func (o *Observer) WriteTrace(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, s := range o.samples {
		_, err := fmt.Fprintf(bw, "%d %d %v %c %d\n",
			s.Invocation, s.Tick, s.State, s.mark(), s.Activity)
		if err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteTraceFile writes the trace to path, compressing it when the name ends in .zst.
func (o *Observer) WriteTraceFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if !strings.HasSuffix(path, ".zst") {
		if err := o.WriteTrace(f); err != nil {
			return err
		}
		return f.Close()
	}

	z, err := zstd.NewWriter(f, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return err
	}
	if err := o.WriteTrace(z); err != nil {
		z.Close()
		return err
	}
	if err := z.Close(); err != nil {
		return fmt.Errorf("unable to finish zstd stream: %w", err)
	}
	return f.Close()
}

// ReadTrace parses a text trace.
func ReadTrace(r io.Reader) ([]Sample, error) {
	var out []Sample

	sc := bufio.NewScanner(r)
	for lineNo := 1; sc.Scan(); lineNo++ {
		s, err := parseSample(sc.Text())
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		out = append(out, s)
	}
	return out, sc.Err()
}

func parseSample(line string) (Sample, error) {
	f := strings.Fields(line)
	if len(f) != 5 || len(f[3]) != 1 {
		return Sample{}, ErrMalformed
	}

	var (
		s   Sample
		err error
	)
	if s.Invocation, err = strconv.Atoi(f[0]); err != nil {
		return Sample{}, err
	}
	if s.Tick, err = strconv.Atoi(f[1]); err != nil {
		return Sample{}, err
	}
	if s.Activity, err = strconv.Atoi(f[4]); err != nil {
		return Sample{}, err
	}
	s.State = parseState(f[2])
	s.Busy = f[3] != "-"
	s.Advance = f[3] == "A"
	return s, nil
}

// ReadTraceFile parses a trace file, decompressing *.zst.
func ReadTraceFile(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if !strings.HasSuffix(path, ".zst") {
		return ReadTrace(f)
	}

	z, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer z.Close()
	return ReadTrace(z)
}

func parseState(s string) redundancy.State {
	for st := redundancy.StateIdle; st <= redundancy.StateWait2; st++ {
		if st.String() == s {
			return st
		}
	}
	return redundancy.StateIdle
}
