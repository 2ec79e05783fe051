// ═══════════════════════════════════════════════════════════════════════════════════════════════
// SUPRAX-AES Redundancy Controller - Go Reference Model
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// OVERVIEW:
// ─────────
// Top-level FSM. One accepted start runs the lockstep pair TWICE on the same key and
// plaintext (temporal redundancy) and releases a ciphertext only if:
//
//   - the pair saw no spatial mismatch in run 1
//   - the pair saw no spatial mismatch in run 2
//   - run 1 and run 2 produced the same ciphertext
//
// Otherwise the output is the all-zero sentinel with fault_flag raised. Detection is
// never fatal: the controller always returns to IDLE and accepts the next start. Retry
// policy belongs to the caller.
//
// STATE DIAGRAM:
// ──────────────
//
//	          start                 (1 tick)              pair.done
//	  IDLE ──────────────► RUN1 ──────────────► WAIT1 ──────────────► RUN2
//	   ▲                                        │  ▲                    │
//	   │                                        └──┘ !done              │ (1 tick)
//	   │        pair.done                                               ▼
//	   └─────────────────────────────────────────────────────────────  WAIT2 ◄─┐
//	             (done pulse, verdict)                                   │     │ !done
//	                                                                     └─────┘
//
//	IDLE  + start  → latch key/pt, start pair                              → RUN1
//	RUN1           → start pulse settles                                   → WAIT1
//	WAIT1 + done   → RunRecord{ct1, spatial1}, restart pair               → RUN2
//	RUN2           → start pulse settles                                   → WAIT2
//	WAIT2 + done   → verdict, done pulse                                   → IDLE
//
// PER-TICK ORDER:
// ───────────────
//   1. FSM next-state logic reads the pair's registered done/ciphertext/fault
//   2. The randomizer's registered decision gates both replicas
//   3. Pair clocks (start issued here when the FSM asked for it)
//   4. If the pair was busy this tick: noise register updates, LFSR shifts
//
// The noise generator consumes the same decision as the cores but feeds nothing back.
//
// LATENCY:
// ────────
//   Minimum: 1 (start) + 10 (run 1) + 1 (restart) + 10 (run 2) + 1 (verdict) = 23 ticks
//   Each stall adds one tick. With ~25% stalls the mean is ~29 ticks.
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

package redundancy

import (
	"github.com/maemowong/suprax-aes/proto/aescore"
	"github.com/maemowong/suprax-aes/proto/lockstep"
)

// State is the controller FSM state.
type State uint8

const (
	StateIdle State = iota
	StateRun1
	StateWait1
	StateRun2
	StateWait2
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRun1:
		return "RUN1"
	case StateWait1:
		return "WAIT1"
	case StateRun2:
		return "RUN2"
	case StateWait2:
		return "WAIT2"
	default:
		return "INVALID"
	}
}

// FaultStatus is the per-invocation fault classification. Kinds combine by OR.
type FaultStatus uint8

const (
	FaultNone     FaultStatus = 0
	FaultSpatial  FaultStatus = 1 << 0 // replicas disagreed during run 1 or run 2
	FaultTemporal FaultStatus = 1 << 1 // run 1 and run 2 ciphertexts differ
)

func (f FaultStatus) String() string {
	switch f {
	case FaultNone:
		return "none"
	case FaultSpatial:
		return "spatial"
	case FaultTemporal:
		return "temporal"
	case FaultSpatial | FaultTemporal:
		return "spatial+temporal"
	default:
		return "invalid"
	}
}

// RunRecord is what survives run 1 until run 2 completes.
type RunRecord struct {
	Ciphertext   aescore.Block
	SpatialFault bool
}

// Inputs are the controller's external signals for one tick.
type Inputs struct {
	Reset     bool // Global reset, wins over everything
	Start     bool // Sampled only in IDLE
	Key       aescore.Block
	Plaintext aescore.Block

	// Force is the fault-injection hook forwarded to the lockstep pair. Production
	// drivers leave it nil.
	Force *lockstep.Force
}

// Outputs are the controller's registered outputs after one tick.
type Outputs struct {
	Busy       bool          // state != IDLE
	Done       bool          // one-tick pulse
	Ciphertext aescore.Block // valid with Done, zero on fault
	FaultFlag  bool          // one-tick pulse with Done
	Fault      FaultStatus   // classification, valid with Done
	Active     bool          // pair was busy this tick: noise and randomizer clocked
	Activity   int           // noise register bit flips this tick, 0 unless Active
	Advance    bool          // randomizer decision consumed this tick, false unless Active
	State      State
}

// Stats are debug counters. NOT part of the modeled hardware.
type Stats struct {
	Ticks          uint64
	BusyTicks      uint64
	Invocations    uint64
	Faults         uint64
	SpatialFaults  uint64
	TemporalFaults uint64
	Resets         uint64
	LastLatency    uint64 // ticks from accepted start to done, inclusive
}

// Controller is the hardened engine's top level.
type Controller struct {
	ctx  *Context
	pair lockstep.Pair

	state     State
	key       aescore.Block
	plaintext aescore.Block
	record    RunRecord
	out       Outputs

	startTick uint64
	stats     Stats
}

// NewController returns a controller in IDLE driving ctx. A nil ctx gets a fresh
// context with the reset seed.
func NewController(ctx *Context) *Controller {
	if ctx == nil {
		ctx = NewContext()
	}
	return &Controller{ctx: ctx}
}

// Tick advances the whole engine by one clock edge.
func (c *Controller) Tick(in Inputs) Outputs {
	if in.Reset {
		c.Reset()
		return c.out
	}
	c.stats.Ticks++

	// Pulses from the previous tick drop
	c.out.Done = false
	c.out.FaultFlag = false
	c.out.Fault = FaultNone
	c.out.Ciphertext = aescore.Block{}

	start := false
	switch c.state {
	case StateIdle:
		if in.Start {
			c.key, c.plaintext = in.Key, in.Plaintext
			start = true
			c.startTick = c.stats.Ticks
			c.stats.Invocations++
			c.transition(StateRun1)
		}

	case StateRun1:
		c.transition(StateWait1)

	case StateWait1:
		if c.pair.Done() {
			c.record = RunRecord{
				Ciphertext:   c.pair.Ciphertext(),
				SpatialFault: c.pair.SpatialFault(),
			}
			start = true
			c.transition(StateRun2)
		}

	case StateRun2:
		c.transition(StateWait2)

	case StateWait2:
		if c.pair.Done() {
			c.verdict()
			c.transition(StateIdle)
		}
	}

	busy := c.pair.Busy()
	advance := c.ctx.Randomizer.Advance()

	c.pair.Tick(lockstep.Inputs{
		Start:     start,
		Key:       c.key,
		Plaintext: c.plaintext,
		Advance:   advance,
		Force:     in.Force,
	})

	activity := 0
	if busy {
		activity = c.ctx.Noise.Update(advance, c.ctx.Randomizer.State())
		c.ctx.Randomizer.Step()
		c.stats.BusyTicks++
	}

	c.out.Busy = c.state != StateIdle
	c.out.Active = busy
	c.out.Activity = activity
	c.out.Advance = busy && advance
	c.out.State = c.state
	return c.out
}

// verdict combines both spatial results with the temporal comparison and drives the
// done-tick outputs.
func (c *Controller) verdict() {
	ct2 := c.pair.Ciphertext()

	fault := FaultNone
	if c.record.SpatialFault || c.pair.SpatialFault() {
		fault |= FaultSpatial
	}
	if ct2 != c.record.Ciphertext {
		fault |= FaultTemporal
	}

	// Output mux: ciphertext AND ~{128{fault}}
	var keep byte
	if fault == FaultNone {
		keep = 0xff
	}
	var ct aescore.Block
	for i := range ct {
		ct[i] = ct2[i] & keep
	}

	c.out.Done = true
	c.out.Ciphertext = ct
	c.out.FaultFlag = fault != FaultNone
	c.out.Fault = fault

	c.stats.LastLatency = c.stats.Ticks - c.startTick + 1
	if fault != FaultNone {
		c.stats.Faults++
		if fault&FaultSpatial != 0 {
			c.stats.SpatialFaults++
		}
		if fault&FaultTemporal != 0 {
			c.stats.TemporalFaults++
		}
		log.Infof("Fault detected: %v (spatial1=%v spatial2=%v), output suppressed",
			fault, c.record.SpatialFault, c.pair.SpatialFault())
	}

	// RunRecord is consumed
	c.record = RunRecord{}
}

func (c *Controller) transition(next State) {
	log.Tracef("%v -> %v", c.state, next)
	c.state = next
}

// Reset is the global reset: IDLE, all latched run state cleared, outputs low, both
// replicas cleared, randomizer and noise register reloaded.
func (c *Controller) Reset() {
	c.pair.Reset()
	c.ctx.Reset()
	c.state = StateIdle
	c.key = aescore.Block{}
	c.plaintext = aescore.Block{}
	c.record = RunRecord{}
	c.out = Outputs{}
	c.stats.Resets++
	log.Debugf("Global reset")
}

// State returns the current FSM state.
func (c *Controller) State() State { return c.state }

// Busy mirrors the external busy output.
func (c *Controller) Busy() bool { return c.state != StateIdle }

// Context returns the randomization context driven by this controller.
func (c *Controller) Context() *Context { return c.ctx }

// Record returns the pending run-1 record. Debug only.
func (c *Controller) Record() RunRecord { return c.record }

// Stats returns the debug counters.
func (c *Controller) Stats() Stats { return c.stats }
