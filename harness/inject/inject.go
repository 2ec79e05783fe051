// Package inject runs fault-injection campaigns against the engine: single-bit upsets
// forced into the lockstep replicas at chosen ticks, each on a freshly reset engine,
// with every outcome classified against the reference ciphertext.
package inject

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	suprax "github.com/maemowong/suprax-aes"
	"github.com/maemowong/suprax-aes/harness/vectors"
	"github.com/maemowong/suprax-aes/proto/aescore"
	"github.com/maemowong/suprax-aes/proto/lockstep"
	"github.com/maemowong/suprax-aes/proto/redundancy"
	"golang.org/x/sync/errgroup"
)

// Plan is one upset: which replicas, which state bit, on which tick of the invocation
// (tick 0 is the start tick).
type Plan struct {
	Tick     int
	Replicas lockstep.ReplicaMask
	Bit      uint8
}

func (p Plan) String() string {
	return fmt.Sprintf("tick=%d replicas=%v bit=%d", p.Tick, p.Replicas, p.Bit)
}

// Class is the verdict of one injection.
type Class uint8

const (
	// Detected means fault_flag was raised and the output suppressed.
	Detected Class = iota

	// Masked means no flag and a correct ciphertext: the upset was overwritten
	// or landed after the result was latched.
	Masked

	// Escaped means no flag and a wrong ciphertext.
	Escaped
)

func (c Class) String() string {
	switch c {
	case Detected:
		return "detected"
	case Masked:
		return "masked"
	case Escaped:
		return "escaped"
	default:
		return "unknown"
	}
}

// Outcome is the observed result of one plan.
type Outcome struct {
	Plan       Plan
	Class      Class
	Detected   bool
	Fault      redundancy.FaultStatus
	Ciphertext aescore.Block
	Applied    bool // the plan's tick was reached before done
	Ticks      int
}

// Run executes plan against v on a fresh engine. opts are applied after the injection
// hook so callers can set the seed or budget.
func Run(ctx context.Context, v vectors.Vector, plan Plan, opts ...suprax.Option) (Outcome, error) {
	opts = append([]suprax.Option{
		suprax.WithForce(plan.Tick, lockstep.Force{Replicas: plan.Replicas, Bit: plan.Bit}),
	}, opts...)

	res, err := suprax.NewEngine(opts...).Encrypt(ctx, v.Key, v.Plaintext)
	if err != nil {
		return Outcome{}, fmt.Errorf("%v: %w", plan, err)
	}

	out := Outcome{
		Plan:       plan,
		Detected:   res.FaultFlag,
		Fault:      res.Fault,
		Ciphertext: res.Ciphertext,
		Applied:    plan.Tick < res.Ticks,
		Ticks:      res.Ticks,
	}
	switch {
	case res.FaultFlag:
		out.Class = Detected
	case res.Ciphertext == v.Expected:
		out.Class = Masked
	default:
		out.Class = Escaped
	}

	log.Tracef("%v: %v (fault=%v, %d ticks)", plan, out.Class, out.Fault, out.Ticks)
	return out, nil
}

// Campaign sweeps every combination of ticks × bits × replica masks for one vector.
type Campaign struct {
	Vector   vectors.Vector
	Ticks    []int
	Bits     []uint8
	Replicas []lockstep.ReplicaMask

	// Workers bounds concurrency. Zero or less means one per CPU.
	Workers int

	// Options are passed to every engine.
	Options []suprax.Option
}

// Summary tallies a campaign.
type Summary struct {
	Total    int
	Detected int
	Masked   int
	Escaped  int

	Spatial  int // detections where the comparator fired
	Temporal int // detections where only ct1 != ct2 caught it

	Escapes  []Plan
	Outcomes []Outcome
}

// DetectionRate is detected / (detected + escaped); masked upsets are harmless and
// excluded.
func (s Summary) DetectionRate() float64 {
	if s.Detected+s.Escaped == 0 {
		return 1
	}
	return float64(s.Detected) / float64(s.Detected+s.Escaped)
}

// Plans expands the sweep in tick-major order.
func (c *Campaign) Plans() []Plan {
	plans := make([]Plan, 0, len(c.Ticks)*len(c.Bits)*len(c.Replicas))
	for _, tick := range c.Ticks {
		for _, r := range c.Replicas {
			for _, bit := range c.Bits {
				plans = append(plans, Plan{Tick: tick, Replicas: r, Bit: bit})
			}
		}
	}
	return plans
}

// Run executes the campaign. Each plan gets its own engine, so plans are independent
// and run in parallel.
func (c *Campaign) Run(ctx context.Context) (Summary, error) {
	plans := c.Plans()
	outcomes := make([]Outcome, len(plans))

	workers := c.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(plans))

	var next atomic.Uint64
	eg, ctx := errgroup.WithContext(ctx)
	for range workers {
		eg.Go(func() error {
			for {
				i := next.Add(1) - 1
				if i >= uint64(len(plans)) {
					return nil
				}
				out, err := Run(ctx, c.Vector, plans[i], c.Options...)
				if err != nil {
					return err
				}
				outcomes[i] = out
			}
		})
	}
	if err := eg.Wait(); err != nil {
		return Summary{}, err
	}

	s := Summary{Total: len(plans), Outcomes: outcomes}
	for _, out := range outcomes {
		switch out.Class {
		case Detected:
			s.Detected++
			if out.Fault&redundancy.FaultSpatial != 0 {
				s.Spatial++
			} else {
				s.Temporal++
			}
		case Masked:
			s.Masked++
		case Escaped:
			s.Escaped++
			s.Escapes = append(s.Escapes, out.Plan)
			log.Warnf("Upset escaped detection: %v", out.Plan)
		}
	}

	log.Infof("Campaign: %d plans, %d detected (%d spatial, %d temporal), "+
		"%d masked, %d escaped", s.Total, s.Detected, s.Spatial, s.Temporal,
		s.Masked, s.Escaped)
	return s, nil
}

// Range returns the ints in [from, to).
func Range(from, to int) []int {
	out := make([]int, 0, max(to-from, 0))
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}
