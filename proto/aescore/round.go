// ═══════════════════════════════════════════════════════════════════════════════════════════════
// SUPRAX-AES Round Datapath - Go Reference Model
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// OVERVIEW:
// ─────────
// Combinational half of the AES-128 block core: the four round transforms and the
// one-step key schedule. Everything here is a pure function of its inputs and maps to
// an always_comb block. The sequential half (state, round key, round counter) lives in
// core.go.
//
// BYTE LAYOUT:
// ────────────
// A Block is 16 bytes, big-endian, in the FIPS-197 column-major 4×4 arrangement:
//
//	byte index:   0  4  8 12        row 0
//	              1  5  9 13        row 1
//	              2  6 10 14        row 2
//	              3  7 11 15        row 3
//
// Byte i sits at row i%4, column i/4. A 32-bit word is one column.
//
// HARDWARE MAPPING RULES:
// ───────────────────────
//  1. No data-dependent branching in the GF(2^8) arithmetic (xtime uses a mask)
//  2. Loops are generate blocks (16 parallel S-boxes, 4 parallel column mixers)
//  3. The S-box is a ROM filled at elaboration time (package init)
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

package aescore

import (
	"math/bits"
)

// Block is one 128-bit AES state, round key or data word.
type Block [16]byte

// Rounds is fixed for AES-128.
const Rounds = 10

// poly is the AES field polynomial x⁸ + x⁴ + x³ + x + 1 without the x⁸ term.
const poly = 1<<4 | 1<<3 | 1<<1 | 1<<0

// xtime multiplies b by x in GF(2^8).
//
// Hardware: 1-bit left shift + conditional XOR with 0x1b.
// The condition is the MSB broadcast into a mask, so the gate path is identical
// for every input (8 XOR gates, no mux on data).
//
//	assign xtime = {b[6:0], 1'b0} ^ (8'h1b & {8{b[7]}});
func xtime(b byte) byte {
	mask := -(b >> 7)
	return b<<1 ^ poly&mask
}

// sbox is the FIPS-197 Figure 7 substitution table.
//
// Generation walks the multiplicative group with generator 3: p runs through 3^k and
// q through 3^-k, so q is always the inverse of p. The affine transform of q gives the
// S-box entry for p. 0 has no inverse and maps to 0x63.
var sbox = func() (s [256]byte) {
	var p, q uint8 = 1, 1
	for {
		// p *= 3
		p ^= xtime(p)

		// q /= 3 (multiply by 0xf6)
		q ^= q << 1
		q ^= q << 2
		q ^= q << 4
		q ^= 0x09 & -(q >> 7)

		affine := q ^ bits.RotateLeft8(q, 1) ^ bits.RotateLeft8(q, 2) ^ bits.RotateLeft8(q, 3) ^ bits.RotateLeft8(q, 4)
		s[p] = affine ^ 0x63

		if p == 1 {
			break
		}
	}
	s[0] = 0x63
	return s
}()

// roundConstants holds Rcon[1..10], successive powers of x.
var roundConstants = func() (rc [Rounds]byte) {
	r := byte(0x01)
	for i := range Rounds {
		rc[i] = r
		r = xtime(r)
	}
	return rc
}()

// SBox returns the substitution of one byte.
func SBox(b byte) byte {
	return sbox[b]
}

// RoundConstant returns Rcon for round 1..10.
func RoundConstant(round int) byte {
	return roundConstants[round-1]
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// ROUND TRANSFORMS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// SubBytes applies the S-box to all 16 bytes.
//
// Hardware: 16 parallel 256×8 ROMs.
func SubBytes(s Block) Block {
	var out Block
	for i := range 16 {
		out[i] = sbox[s[i]]
	}
	return out
}

// ShiftRows rotates row r left by r positions. Pure wiring.
func ShiftRows(s Block) Block {
	var out Block
	for c := range 4 {
		for r := range 4 {
			out[r+4*c] = s[r+4*((c+r)&3)]
		}
	}
	return out
}

// MixColumns multiplies each column by the fixed matrix
//
//	| 2 3 1 1 |
//	| 1 2 3 1 |
//	| 1 1 2 3 |
//	| 3 1 1 2 |
//
// over GF(2^8). 3·a is computed as xtime(a) ^ a.
func MixColumns(s Block) Block {
	var out Block
	for c := range 4 {
		a0, a1, a2, a3 := s[4*c], s[4*c+1], s[4*c+2], s[4*c+3]
		t := a0 ^ a1 ^ a2 ^ a3

		out[4*c] = a0 ^ t ^ xtime(a0^a1)
		out[4*c+1] = a1 ^ t ^ xtime(a1^a2)
		out[4*c+2] = a2 ^ t ^ xtime(a2^a3)
		out[4*c+3] = a3 ^ t ^ xtime(a3^a0)
	}
	return out
}

// AddRoundKey is a 128-bit XOR.
func AddRoundKey(s, k Block) Block {
	var out Block
	for i := range 16 {
		out[i] = s[i] ^ k[i]
	}
	return out
}

// NextRoundKey derives round key r from round key r-1 given Rcon[r].
//
// One column at a time, each depending on the previous:
//
//	t  = SubWord(RotWord(w3)) ^ {rcon, 0, 0, 0}
//	w0' = w0 ^ t
//	w1' = w1 ^ w0'
//	w2' = w2 ^ w1'
//	w3' = w3 ^ w2'
//
// Hardware: 4 S-boxes + 4×32-bit XOR chain. Only the current round key is
// stored; no expanded key table exists.
func NextRoundKey(k Block, rcon byte) Block {
	var out Block

	// RotWord then SubWord on the last column
	t0 := sbox[k[13]] ^ rcon
	t1 := sbox[k[14]]
	t2 := sbox[k[15]]
	t3 := sbox[k[12]]

	out[0], out[1], out[2], out[3] = k[0]^t0, k[1]^t1, k[2]^t2, k[3]^t3
	for i := 4; i < 16; i++ {
		out[i] = k[i] ^ out[i-4]
	}
	return out
}

// selectBlock returns b when sel is true, a otherwise, through a byte mask.
//
// Hardware: 128 2:1 muxes driven by one select line.
func selectBlock(sel bool, a, b Block) Block {
	var m byte
	if sel {
		m = 0xff
	}
	var out Block
	for i := range 16 {
		out[i] = a[i]&^m | b[i]&m
	}
	return out
}

// Round applies one full round (1..10) to state with the round key for that round.
// MixColumns is computed every round and dropped on the last one through a mux, so
// every round has the same gate path.
func Round(state, roundKey Block, last bool) Block {
	shifted := ShiftRows(SubBytes(state))
	mixed := selectBlock(last, MixColumns(shifted), shifted)
	return AddRoundKey(mixed, roundKey)
}

// Encrypt runs the whole primitive combinationally. It is the golden model the
// sequential core is checked against and is not used by the hardened datapath.
func Encrypt(key, plaintext Block) Block {
	state := AddRoundKey(plaintext, key)
	roundKey := key
	for r := 1; r <= Rounds; r++ {
		roundKey = NextRoundKey(roundKey, RoundConstant(r))
		state = Round(state, roundKey, r == Rounds)
	}
	return state
}
