package aescore

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// ITERATIVE AES-128 BLOCK CORE (Sequential)
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// One round per accepted advance tick. The core is a pure register bank:
//
//	state      [127:0]   evolving cipher state
//	round_key  [127:0]   current round key, regenerated every advance tick
//	round      [3:0]     0..10
//	busy                 high for the whole run
//	done                 high for exactly one tick after round 10
//	ciphertext [127:0]   latched with done
//
// TIMELINE (minimum latency, advance held high):
//
//	tick  0: start sampled → state = pt ^ key, busy = 1        (round 0)
//	tick  1: round 1
//	 ...
//	tick 10: round 10 → busy = 0, done = 1, ciphertext = state
//	tick 11: done = 0
//
// A deasserted advance during a busy tick is a no-op: state, round key and round
// counter hold. Latency is therefore 11 + (number of stalls) active ticks.
//
// SystemVerilog:
//
//	always_ff @(posedge clk) begin
//	  done <= 1'b0;
//	  if (!busy) begin
//	    if (start) begin
//	      state <= pt ^ key; round_key <= key; round <= 0; busy <= 1'b1;
//	    end
//	  end else if (advance) begin
//	    round     <= round + 1;
//	    round_key <= next_key;
//	    state     <= round_out;
//	    if (round == 9) begin busy <= 1'b0; done <= 1'b1; round <= 0; ct <= round_out; end
//	  end
//	end
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Inputs are the signals sampled by the core at one clock edge.
type Inputs struct {
	Start     bool  // Start pulse, ignored while busy
	Key       Block // Sampled with Start
	Plaintext Block // Sampled with Start
	Advance   bool  // Per-tick gate from the timing randomizer
}

// Core is one AES-128 replica.
type Core struct {
	state      Block
	roundKey   Block
	round      uint8
	busy       bool
	done       bool
	ciphertext Block
}

// Tick performs one clock edge.
func (c *Core) Tick(in Inputs) {
	// done is a single-tick pulse
	c.done = false

	if !c.busy {
		if in.Start {
			// Round 0: key mixing happens on the start edge
			c.state = AddRoundKey(in.Plaintext, in.Key)
			c.roundKey = in.Key
			c.round = 0
			c.busy = true
		}
		return
	}

	if !in.Advance {
		return
	}

	next := c.round + 1
	c.roundKey = NextRoundKey(c.roundKey, roundConstants[next-1])
	c.state = Round(c.state, c.roundKey, next == Rounds)
	c.round = next

	if next == Rounds {
		c.ciphertext = c.state
		c.busy = false
		c.done = true
		c.round = 0
	}
}

// Reset clears every register. The core comes out of reset idle.
func (c *Core) Reset() {
	*c = Core{}
}

// Flip XORs one bit into the state register. Bit 127 is the MSB of byte 0, bit 0 the
// LSB of byte 15, matching state[127:0] in RTL.
//
// This is the fault-injection port. It models a transient upset on one flip-flop and
// is only driven by the lockstep test hook.
func (c *Core) Flip(bit uint8) {
	bit &= 127
	c.state[15-bit>>3] ^= 1 << (bit & 7)
}

// Busy is high from the start edge until the edge that completes round 10.
func (c *Core) Busy() bool { return c.busy }

// Done is high for exactly one tick after the last round.
func (c *Core) Done() bool { return c.done }

// Ciphertext is valid while Done is high.
func (c *Core) Ciphertext() Block { return c.ciphertext }

// Round returns the number of completed rounds in the current run.
func (c *Core) Round() uint8 { return c.round }

// State returns a copy of the state register for external comparison.
func (c *Core) State() Block { return c.state }
