package suprax

import (
	"context"
	"errors"

	"github.com/maemowong/suprax-aes/proto/aescore"
	"github.com/maemowong/suprax-aes/proto/lfsr"
	"github.com/maemowong/suprax-aes/proto/lockstep"
	"github.com/maemowong/suprax-aes/proto/redundancy"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// SUPRAX-AES: Fault- and Side-Channel-Hardened AES-128 Engine
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// WHAT THIS IS:
// A tick-accurate reference model of an AES-128 encryption engine that refuses to hand
// out a ciphertext it cannot vouch for. Every block is computed four times:
//
//	          ┌──────────── run 1 ────────────┐   ┌──────────── run 2 ────────────┐
//	replica A │ round 0 … round 10  → ct1     │   │ round 0 … round 10  → ct2     │
//	replica B │ round 0 … round 10  (compare) │   │ round 0 … round 10  (compare) │
//	          └───────────────────────────────┘   └───────────────────────────────┘
//	                  spatial1                            spatial2      ct1 == ct2 ?
//
// and the answer is released only when both runs agreed with themselves and with each
// other. Anything else yields the all-zero block with fault_flag high.
//
// SIDE CHANNELS:
// Each busy tick a 16-bit LFSR decides whether the datapath advances or stalls, so the
// number of ticks per block varies independently of the data. A 512-bit register that
// the cipher never reads toggles on every busy tick, so the switching activity an
// observer sees is mostly noise.
//
// BLOCK MAP:
//
//	proto/aescore     one iterative AES-128 core
//	proto/lfsr        timing randomizer
//	proto/noise       power noise register
//	proto/lockstep    two cores + comparator + fault-injection port
//	proto/redundancy  two-run FSM, verdict, shared randomization context
//	(this package)    blocking driver: start, clock until done, collect
//
// HARDWARE MODEL:
// The proto packages are the reference for the RTL. Run the same vectors against both;
// identical outputs tick for tick means the hardware is correct.
//
//	Go method w/ ptr   → SV always_ff (registered state)
//	Go func w/o state  → SV always_comb
//	Go loop over lanes → SV generate for
//	Stats / counters   → debug only, not synthesized
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// DefaultTickBudget bounds one invocation. Termination is probabilistic (the LFSR can
// stall), so every driver loop has a ceiling. The expected latency is about 29 ticks.
const DefaultTickBudget = 2000

// ErrTimeout is returned when an invocation does not complete within the tick budget.
var ErrTimeout = errors.New("tick budget exhausted before done")

// Result is everything an invocation produced.
type Result struct {
	Ciphertext aescore.Block          // zero when FaultFlag is set
	FaultFlag  bool                   // any fault detected
	Fault      redundancy.FaultStatus // which check fired
	Ticks      int                    // start tick through done tick, inclusive
	Activity   []int                  // noise activity per tick the replicas were busy
}

// Probe is called after every tick of an invocation with the tick index (0 is the
// start tick) and the controller outputs. Probes observe only.
type Probe func(tick int, out redundancy.Outputs)

// Option configures an Engine.
type Option func(*Engine)

// WithTickBudget sets the per-invocation tick ceiling.
func WithTickBudget(ticks int) Option {
	return func(e *Engine) {
		if ticks > 0 {
			e.budget = ticks
		}
	}
}

// WithSeed sets the LFSR value loaded by global reset.
func WithSeed(seed uint16) Option {
	return func(e *Engine) {
		e.seed = seed
	}
}

// WithForce arms a single-bit upset on tick n of every invocation (tick 0 is the start
// tick). Fault-injection hook; production engines never set it.
func WithForce(tick int, f lockstep.Force) Option {
	return func(e *Engine) {
		if e.forces == nil {
			e.forces = make(map[int]lockstep.Force)
		}
		e.forces[tick] = f
	}
}

// WithProbe attaches a per-tick observer.
func WithProbe(p Probe) Option {
	return func(e *Engine) {
		e.probes = append(e.probes, p)
	}
}

// Engine clocks one redundancy controller. It is not safe for concurrent use; run
// independent engines on separate goroutines instead.
type Engine struct {
	ctrl *redundancy.Controller

	budget int
	seed   uint16
	forces map[int]lockstep.Force
	probes []Probe

	cycles      uint64
	invocations uint64
	latency     uint64
	timeouts    uint64
}

// NewEngine builds an engine in the post-reset state.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		budget: DefaultTickBudget,
		seed:   lfsr.ResetSeed,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ctrl = redundancy.NewController(redundancy.NewContextWithSeed(e.seed))
	return e
}

// Encrypt runs one invocation to completion: start, then clock until done.
//
// A detected fault is NOT an error. It comes back as Result.FaultFlag with a zero
// ciphertext. Errors are reserved for the driver itself: ErrTimeout when the budget
// runs out, ctx.Err() on cancellation. In both cases the engine is globally reset
// before returning so the next call starts clean.
func (e *Engine) Encrypt(ctx context.Context, key, plaintext aescore.Block) (Result, error) {
	var res Result

	in := redundancy.Inputs{Start: true, Key: key, Plaintext: plaintext}
	for tick := 0; ; tick++ {
		if tick >= e.budget {
			e.timeouts++
			log.Warnf("Invocation exceeded %d ticks, resetting", e.budget)
			e.Reset()
			return Result{Ticks: tick}, ErrTimeout
		}
		if err := ctx.Err(); err != nil {
			log.Debugf("Invocation cancelled at tick %d", tick)
			e.Reset()
			return Result{Ticks: tick}, err
		}

		if f, ok := e.forces[tick]; ok {
			in.Force = &f
		}
		out := e.ctrl.Tick(in)
		e.cycles++
		in = redundancy.Inputs{}

		for _, p := range e.probes {
			p(tick, out)
		}
		if out.Active {
			res.Activity = append(res.Activity, out.Activity)
		}

		if out.Done {
			res.Ciphertext = out.Ciphertext
			res.FaultFlag = out.FaultFlag
			res.Fault = out.Fault
			res.Ticks = tick + 1
			break
		}
	}

	e.invocations++
	e.latency += uint64(res.Ticks)
	log.Tracef("Invocation %d: %d ticks, fault=%v", e.invocations, res.Ticks, res.Fault)
	return res, nil
}

// Reset drives global reset for one tick.
func (e *Engine) Reset() {
	e.ctrl.Tick(redundancy.Inputs{Reset: true})
	e.cycles++
}

// Controller exposes the underlying block for tick-level drivers.
func (e *Engine) Controller() *redundancy.Controller {
	return e.ctrl
}

// Stats returns the controller's debug counters.
func (e *Engine) Stats() redundancy.Stats {
	return e.ctrl.Stats()
}

// Cycles is the number of clock edges driven, reset ticks included.
func (e *Engine) Cycles() uint64 {
	return e.cycles
}

// Timeouts is the number of invocations abandoned at the tick budget.
func (e *Engine) Timeouts() uint64 {
	return e.timeouts
}

// MeanLatency is the average ticks per completed invocation.
func (e *Engine) MeanLatency() float64 {
	if e.invocations == 0 {
		return 0
	}
	return float64(e.latency) / float64(e.invocations)
}
