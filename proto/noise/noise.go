// ═══════════════════════════════════════════════════════════════════════════════════════════════
// SUPRAX-AES Power Noise Generator - Go Reference Model
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// OVERVIEW:
// ─────────
// A 512-bit register with no cipher meaning. Every busy tick it toggles a data-
// independent number of flip-flops so that the supply current seen by an attacker is
// dominated by this register instead of the AES datapath:
//
//   advance tick → XOR a sparse mask expanded from the current LFSR value
//   stall tick   → invert all 512 bits (maximum toggle)
//   idle tick    → hold
//
// The number of bits that changed (Hamming distance old → new) is exported every tick
// as the activity count, a proxy for dynamic power that the waveform observer samples.
//
// ISOLATION:
// ──────────
// This package imports nothing from the cipher blocks. Its inputs are the advance
// decision and the LFSR value; its only output is the activity count. There is no
// path from the register into the state, the round key or any fault latch.
//
// LAYOUT:
// ───────
//   reg[0..3] : 4 × 128-bit lanes (lane 0 = bits 127:0)
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

package noise

import (
	"math/bits"

	"lukechampine.com/uint128"
)

// Width is the register size in bits.
const Width = Lanes * 128

// Lanes is the number of 128-bit lanes.
const Lanes = 4

// Mask patterns keep roughly half of the expanded LFSR bits so an advance tick toggles
// a variable, partial subset of the register.
const (
	evenMask = 0x5555_5555_5555_5555
	oddMask  = 0xAAAA_AAAA_AAAA_AAAA
)

// resetPattern is the register content after global reset.
var resetPattern = [Lanes]uint128.Uint128{
	uint128.New(0x0123_4567_89AB_CDEF, 0xFEDC_BA98_7654_3210),
	uint128.New(0x0F0F_0F0F_F0F0_F0F0, 0x3C3C_3C3C_C3C3_C3C3),
	uint128.New(0x6969_9696_6969_9696, 0xA5A5_5A5A_A5A5_5A5A),
	uint128.New(0x0000_FFFF_0000_FFFF, 0xFFFF_0000_FFFF_0000),
}

// Generator is the noise register bank.
type Generator struct {
	reg [Lanes]uint128.Uint128

	Updates  uint64 // Busy ticks observed (debug only)
	Stalls   uint64 // Full-inversion ticks (debug only)
	Activity uint64 // Sum of all activity counts (debug only)
}

// New returns a generator holding the reset pattern.
func New() *Generator {
	g := &Generator{}
	g.Reset()
	return g
}

// Mask expands a 16-bit LFSR value into the 512-bit advance mask.
//
// The value is replicated four times into a 64-bit word, each lane half takes a
// different rotation of it, and alternating-bit masks thin it out.
//
// Hardware: wiring + 512 AND gates.
func Mask(lfsr uint16) [Lanes]uint128.Uint128 {
	rep := uint64(lfsr) * 0x0001_0001_0001_0001

	var m [Lanes]uint128.Uint128
	for i := range Lanes {
		lo := bits.RotateLeft64(rep, 17*i+3) & evenMask
		hi := bits.RotateLeft64(rep, 29*i+11) & oddMask
		m[i] = uint128.New(lo, hi)
	}
	return m
}

// Update clocks the register for one busy tick and returns the activity count.
func (g *Generator) Update(advance bool, lfsr uint16) int {
	var toggle [Lanes]uint128.Uint128
	if advance {
		toggle = Mask(lfsr)
	} else {
		for i := range Lanes {
			toggle[i] = uint128.Max
		}
		g.Stalls++
	}

	activity := 0
	for i := range Lanes {
		next := g.reg[i].Xor(toggle[i])
		activity += g.reg[i].Xor(next).OnesCount()
		g.reg[i] = next
	}

	g.Updates++
	g.Activity += uint64(activity)
	return activity
}

// Lane returns one 128-bit lane of the register.
func (g *Generator) Lane(i int) uint128.Uint128 {
	return g.reg[i]
}

// Reset reloads the fixed reset pattern and clears the debug counters.
func (g *Generator) Reset() {
	g.reg = resetPattern
	g.Updates = 0
	g.Stalls = 0
	g.Activity = 0
}
