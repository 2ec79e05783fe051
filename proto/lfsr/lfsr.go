// ═══════════════════════════════════════════════════════════════════════════════════════════════
// SUPRAX-AES Timing Randomizer - Go Reference Model
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// OVERVIEW:
// ─────────
// A 16-bit maximal-length Fibonacci LFSR that decides, every tick, whether the AES
// replicas advance one round or stall. Stalls decouple the wall-clock length of a run
// from the data being encrypted: two encryptions of the same block take different
// numbers of ticks, and two different blocks can take the same number.
//
// The decision never affects WHAT is computed, only WHEN. Both replicas of a lockstep
// pair receive the same decision, so stalls can never cause a spatial mismatch.
//
// POLYNOMIAL:
// ───────────
//   x^16 + x^14 + x^13 + x^11 + 1   (taps 16, 14, 13, 11)
//   Period: 2^16 - 1 = 65535 (every non-zero state visited once)
//
// DECISION:
// ─────────
//   advance = state[1] | state[0]     → stall only when both low bits are 0
//   P(advance) = 49152 / 65535 ≈ 75%
//
// The decision is REGISTERED: it is computed from the state produced at edge N and
// consumed at edge N+1. There is no combinational path from the LFSR shift to the
// core's advance input.
//
// ZERO STATE:
// ───────────
// The all-zero state is a fixed point (feedback of zeros is zero) and would hold the
// randomizer in permanent stall. It is unreachable by construction: seeds have bit 0
// forced high and a non-zero state of a maximal LFSR never maps to zero.
//
// SystemVerilog:
//
//	always_ff @(posedge clk) begin
//	  if (rst) begin
//	    lfsr    <= 16'hACE1;
//	    advance <= 1'b1;
//	  end else if (busy) begin
//	    lfsr    <= {lfsr[0] ^ lfsr[2] ^ lfsr[3] ^ lfsr[5], lfsr[15:1]};
//	    advance <= fb_next[1] | fb_next[0];
//	  end
//	end
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

package lfsr

// ResetSeed is the state loaded by global reset.
const ResetSeed uint16 = 0xACE1

// Period is the length of the state sequence.
const Period = 1<<16 - 1

// Randomizer is the timing randomizer register bank.
type Randomizer struct {
	state   uint16
	seed    uint16
	advance bool // registered decision for the current tick

	Steps    uint64 // Shifts since reset (debug only)
	Advances uint64 // Advance decisions issued (debug only)
}

// New returns a randomizer seeded with seed. Bit 0 of the seed is forced high.
func New(seed uint16) *Randomizer {
	r := &Randomizer{seed: seed | 1}
	r.Reset()
	return r
}

// shift computes the next LFSR state.
//
// Hardware: 3 XOR gates + wiring.
func shift(s uint16) uint16 {
	fb := (s ^ s>>2 ^ s>>3 ^ s>>5) & 1
	return s>>1 | fb<<15
}

// decide maps a state to an advance/stall decision.
func decide(s uint16) bool {
	return (s|s>>1)&1 != 0
}

// Advance returns the decision for the current tick.
func (r *Randomizer) Advance() bool {
	return r.advance
}

// Step clocks the LFSR once and registers the decision for the next tick.
// Called only on ticks where a replica is busy; otherwise the register holds.
func (r *Randomizer) Step() {
	if r.advance {
		r.Advances++
	}
	r.state = shift(r.state)
	r.advance = decide(r.state)
	r.Steps++
}

// State returns the current LFSR value.
func (r *Randomizer) State() uint16 {
	return r.state
}

// Reset reloads the seed and its decision.
func (r *Randomizer) Reset() {
	r.state = r.seed
	r.advance = decide(r.state)
	r.Steps = 0
	r.Advances = 0
}
