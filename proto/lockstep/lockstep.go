// ═══════════════════════════════════════════════════════════════════════════════════════════════
// SUPRAX-AES Lockstep Pair - Go Reference Model
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// OVERVIEW:
// ─────────
// Spatial redundancy. Two structurally identical AES cores (A and B) receive the same
// start, key, plaintext and advance gate on every tick. A 128-bit equality comparator
// watches their state registers (plus round counters and busy bits) on every tick both
// are busy. Any difference sets a sticky spatial-fault latch for the current run.
//
// Because the timing randomizer gates both replicas identically, a mismatch can only
// come from an upset in one replica, never from the randomizer.
//
// The reported ciphertext is A's. B exists only to be compared against.
//
// TICK ORDER (one edge):
// ──────────────────────
//   1. Fault-injection override (test hook, normally nil) lands on the state flops
//   2. Comparator evaluates the registered values of this tick
//   3. Both cores clock with identical inputs
//
// A flip that lands while the replicas are idle is overwritten by the next start load
// (or never observed if no run follows). It cannot be detected and cannot affect an
// output either.
//
// SystemVerilog:
//
//	wire mismatch = busy_a & busy_b &
//	                ((state_a != state_b) | (round_a != round_b)) |
//	                (busy_a ^ busy_b);
//	always_ff @(posedge clk)
//	  if (start & ~busy_a & ~busy_b) spatial_fault <= 1'b0;
//	  else if (mismatch)             spatial_fault <= 1'b1;
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

package lockstep

import (
	"github.com/maemowong/suprax-aes/proto/aescore"
	"lukechampine.com/uint128"
)

// ReplicaMask selects replicas for fault injection.
type ReplicaMask uint8

const (
	ReplicaA ReplicaMask = 1 << iota // Replica whose ciphertext is reported
	ReplicaB                         // Shadow replica
)

// ReplicaBoth applies the same flip to both replicas, which the comparator cannot see.
const ReplicaBoth = ReplicaA | ReplicaB

func (m ReplicaMask) String() string {
	switch m {
	case ReplicaA:
		return "A"
	case ReplicaB:
		return "B"
	case ReplicaBoth:
		return "AB"
	default:
		return "none"
	}
}

// Force is a one-shot single-bit override on the state register of the selected
// replicas. It models a transient upset and is only ever supplied by test harnesses.
type Force struct {
	Replicas ReplicaMask
	Bit      uint8 // 0..127, bit 127 = MSB of byte 0
}

// Inputs are the pair's signals for one tick.
type Inputs struct {
	Start     bool
	Key       aescore.Block
	Plaintext aescore.Block
	Advance   bool
	Force     *Force // nil in production
}

// Pair is two lockstep AES cores and their comparator.
type Pair struct {
	a, b aescore.Core

	spatialFault bool
	syndrome     uint128.Uint128 // state_a ^ state_b at the first mismatch of the run

	Compares   uint64 // Ticks on which the comparator was active (debug only)
	Mismatches uint64 // Ticks on which it fired (debug only)
}

// Tick clocks both replicas once.
func (p *Pair) Tick(in Inputs) {
	if in.Force != nil {
		p.inject(*in.Force)
	}

	p.compare()

	// A new run clears the latch on the start edge
	if in.Start && !p.a.Busy() && !p.b.Busy() {
		p.spatialFault = false
		p.syndrome = uint128.Zero
	}

	ci := aescore.Inputs{
		Start:     in.Start,
		Key:       in.Key,
		Plaintext: in.Plaintext,
		Advance:   in.Advance,
	}
	p.a.Tick(ci)
	p.b.Tick(ci)
}

func (p *Pair) inject(f Force) {
	if f.Replicas&ReplicaA != 0 {
		p.a.Flip(f.Bit)
	}
	if f.Replicas&ReplicaB != 0 {
		p.b.Flip(f.Bit)
	}
	log.Tracef("Injected flip bit=%d replicas=%v busy=%v round=%d",
		f.Bit, f.Replicas, p.a.Busy() || p.b.Busy(), p.a.Round())
}

// compare is the comparator. It is combinational on the current registers and only
// updates the latch.
func (p *Pair) compare() {
	busyA, busyB := p.a.Busy(), p.b.Busy()
	if !busyA && !busyB {
		return
	}
	p.Compares++

	sa, sb := p.a.State(), p.b.State()
	mismatch := busyA != busyB || p.a.Round() != p.b.Round() || sa != sb
	if !mismatch {
		return
	}

	p.Mismatches++
	if !p.spatialFault {
		p.syndrome = uint128.FromBytesBE(sa[:]).Xor(uint128.FromBytesBE(sb[:]))
		log.Debugf("Spatial mismatch at round %d: a=%x b=%x weight=%d",
			p.a.Round(), sa, sb, p.syndrome.OnesCount())
	}
	p.spatialFault = true
}

// Reset clears both replicas and the latch.
func (p *Pair) Reset() {
	p.a.Reset()
	p.b.Reset()
	p.spatialFault = false
	p.syndrome = uint128.Zero
	p.Compares = 0
	p.Mismatches = 0
}

// Busy is high while either replica is busy.
func (p *Pair) Busy() bool { return p.a.Busy() || p.b.Busy() }

// Done follows replica A.
func (p *Pair) Done() bool { return p.a.Done() }

// Ciphertext is replica A's ciphertext.
func (p *Pair) Ciphertext() aescore.Block { return p.a.Ciphertext() }

// SpatialFault is the latched comparator result for the current run.
func (p *Pair) SpatialFault() bool { return p.spatialFault }

// Syndrome returns the XOR of the two states at the first mismatch of the run and
// its Hamming weight. Debug only.
func (p *Pair) Syndrome() (uint128.Uint128, int) {
	return p.syndrome, p.syndrome.OnesCount()
}

// Round returns replica A's round counter.
func (p *Pair) Round() uint8 { return p.a.Round() }

// Snapshots returns both state registers for external observers.
func (p *Pair) Snapshots() (a, b aescore.Block) {
	return p.a.State(), p.b.State()
}
