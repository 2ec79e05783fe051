package suprax

import (
	"context"
	"crypto/aes"
	"fmt"
	"testing"

	"github.com/maemowong/suprax-aes/proto/aescore"
	"github.com/maemowong/suprax-aes/proto/lockstep"
	"github.com/maemowong/suprax-aes/proto/redundancy"
	"github.com/stretchr/testify/require"
	hex "github.com/tmthrgd/go-hex"
	"pgregory.net/rapid"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// SUPRAX-AES Engine - Test Suite
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
//   1. KNOWN ANSWERS     FIPS-197 vectors through the full hardened pipeline
//   2. PROPERTIES        random inputs against crypto/aes
//   3. DRIVER ERRORS     tick budget, cancellation
//   4. HOOKS             forced upsets, probes, seeds
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

func block(t testing.TB, s string) aescore.Block {
	t.Helper()
	var b aescore.Block
	n, err := hex.Decode(b[:], []byte(s))
	require.NoError(t, err)
	require.Equal(t, len(b), n)
	return b
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// 1. KNOWN ANSWERS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

func TestKnownAnswers(t *testing.T) {
	vectors := []struct {
		name            string
		key, pt, expect string
	}{
		{"FIPS-197 C.1", "000102030405060708090a0b0c0d0e0f", "00112233445566778899aabbccddeeff", "69c4e0d86a7b0430d8cdb78070b4c55a"},
		{"FIPS-197 B", "2b7e151628aed2a6abf7158809cf4f3c", "3243f6a8885a308d313198a2e0370734", "3925841d02dc09fbdc118597196a0b32"},
		{"SP800-38A F.1.1 #1", "2b7e151628aed2a6abf7158809cf4f3c", "6bc1bee22e409f96e93d7e117393172a", "3ad77bb40d7a3660a89ecaf32466ef97"},
	}

	e := NewEngine()
	for _, v := range vectors {
		t.Run(v.name, func(t *testing.T) {
			res, err := e.Encrypt(context.Background(), block(t, v.key), block(t, v.pt))
			require.NoError(t, err)
			require.False(t, res.FaultFlag)
			require.Equal(t, redundancy.FaultNone, res.Fault)
			require.Equal(t, block(t, v.expect), res.Ciphertext)
			require.GreaterOrEqual(t, res.Ticks, 23)
			// Start, restart and verdict ticks find the replicas idle
			require.Len(t, res.Activity, res.Ticks-3)
		})
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// 2. PROPERTIES
// ═══════════════════════════════════════════════════════════════════════════════════════════════

func TestProperty_MatchesStandardLibrary(t *testing.T) {
	e := NewEngine()
	rapid.Check(t, func(rt *rapid.T) {
		var key, pt aescore.Block
		copy(key[:], rapid.SliceOfN(rapid.Byte(), 16, 16).Draw(rt, "key"))
		copy(pt[:], rapid.SliceOfN(rapid.Byte(), 16, 16).Draw(rt, "plaintext"))

		res, err := e.Encrypt(context.Background(), key, pt)
		require.NoError(rt, err)
		require.False(rt, res.FaultFlag)

		c, err := aes.NewCipher(key[:])
		require.NoError(rt, err)
		var want aescore.Block
		c.Encrypt(want[:], pt[:])
		require.Equal(rt, want, res.Ciphertext)
	})
}

func TestProperty_LatencyVariesOutputDoesNot(t *testing.T) {
	// WHAT: Same input, many invocations: one ciphertext, several latencies
	// WHY: Timing must not be a function of the data alone
	e := NewEngine()
	key := block(t, "000102030405060708090a0b0c0d0e0f")
	pt := block(t, "00112233445566778899aabbccddeeff")

	seen := map[int]int{}
	var first aescore.Block
	for i := range 64 {
		res, err := e.Encrypt(context.Background(), key, pt)
		require.NoError(t, err)
		if i == 0 {
			first = res.Ciphertext
		}
		require.Equal(t, first, res.Ciphertext)
		seen[res.Ticks]++
	}
	require.Greater(t, len(seen), 1, "latency histogram %v", seen)
	require.InDelta(t, 29, e.MeanLatency(), 4)
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// 3. DRIVER ERRORS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

func TestDriver_TickBudget(t *testing.T) {
	// WHAT: A budget below the 23-tick floor can never be met
	e := NewEngine(WithTickBudget(22))

	res, err := e.Encrypt(context.Background(), aescore.Block{}, aescore.Block{})
	require.ErrorIs(t, err, ErrTimeout)
	require.Equal(t, 22, res.Ticks)
	require.Equal(t, uint64(1), e.Timeouts())

	// Abandoned invocation leaves the controller reset, not mid-run
	require.Equal(t, redundancy.StateIdle, e.Controller().State())
	require.Equal(t, uint64(1), e.Stats().Resets)
}

func TestDriver_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewEngine()
	_, err := e.Encrypt(ctx, aescore.Block{}, aescore.Block{})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, e.Controller().Busy())
}

func TestDriver_CancelMidRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := NewEngine(WithProbe(func(tick int, _ redundancy.Outputs) {
		if tick == 10 {
			cancel()
		}
	}))
	res, err := e.Encrypt(ctx, aescore.Block{}, aescore.Block{})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 11, res.Ticks)
	require.Equal(t, redundancy.StateIdle, e.Controller().State())
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// 4. HOOKS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

func TestHooks_ForceDetected(t *testing.T) {
	// WHAT: Upset in replica A on tick 5 (run 1 in flight) → fault, zero output
	e := NewEngine(WithForce(5, lockstep.Force{Replicas: lockstep.ReplicaA, Bit: 42}))
	res, err := e.Encrypt(context.Background(),
		block(t, "000102030405060708090a0b0c0d0e0f"),
		block(t, "00112233445566778899aabbccddeeff"))
	require.NoError(t, err)
	require.True(t, res.FaultFlag)
	require.NotZero(t, res.Fault&redundancy.FaultSpatial)
	require.Equal(t, aescore.Block{}, res.Ciphertext)
}

func TestHooks_ForceOnStartTickMasked(t *testing.T) {
	// WHAT: Upset on tick 0 hits idle replicas and is overwritten by the start load
	e := NewEngine(WithForce(0, lockstep.Force{Replicas: lockstep.ReplicaB, Bit: 127}))
	res, err := e.Encrypt(context.Background(),
		block(t, "000102030405060708090a0b0c0d0e0f"),
		block(t, "00112233445566778899aabbccddeeff"))
	require.NoError(t, err)
	require.False(t, res.FaultFlag)
	require.Equal(t, block(t, "69c4e0d86a7b0430d8cdb78070b4c55a"), res.Ciphertext)
}

func TestHooks_ProbeSeesEveryTick(t *testing.T) {
	var ticks []int
	var dones int
	e := NewEngine(WithProbe(func(tick int, out redundancy.Outputs) {
		ticks = append(ticks, tick)
		if out.Done {
			dones++
		}
	}))
	res, err := e.Encrypt(context.Background(), aescore.Block{1}, aescore.Block{2})
	require.NoError(t, err)
	require.Len(t, ticks, res.Ticks)
	require.Equal(t, 0, ticks[0])
	require.Equal(t, res.Ticks-1, ticks[len(ticks)-1])
	require.Equal(t, 1, dones)
}

func TestHooks_SeedChangesTimingOnly(t *testing.T) {
	key, pt := aescore.Block{9}, aescore.Block{7}

	a, err := NewEngine().Encrypt(context.Background(), key, pt)
	require.NoError(t, err)
	b, err := NewEngine(WithSeed(0x2468)).Encrypt(context.Background(), key, pt)
	require.NoError(t, err)

	require.Equal(t, a.Ciphertext, b.Ciphertext)
	require.NotEqual(t, a.Activity, b.Activity)
}

func TestHooks_ResetReplays(t *testing.T) {
	e := NewEngine()
	key, pt := aescore.Block{3}, aescore.Block{4}

	a, err := e.Encrypt(context.Background(), key, pt)
	require.NoError(t, err)
	e.Reset()
	b, err := e.Encrypt(context.Background(), key, pt)
	require.NoError(t, err)

	require.Equal(t, a, b)
}

func BenchmarkEngine_Encrypt(b *testing.B) {
	e := NewEngine()
	key, pt := aescore.Block{1}, aescore.Block{2}
	for b.Loop() {
		if _, err := e.Encrypt(context.Background(), key, pt); err != nil {
			b.Fatal(err)
		}
	}
}

func ExampleEngine_Encrypt() {
	var key, pt aescore.Block
	hex.Decode(key[:], []byte("000102030405060708090a0b0c0d0e0f"))
	hex.Decode(pt[:], []byte("00112233445566778899aabbccddeeff"))

	res, err := NewEngine().Encrypt(context.Background(), key, pt)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("%x fault=%v\n", res.Ciphertext, res.FaultFlag)
	// Output: 69c4e0d86a7b0430d8cdb78070b4c55a fault=false
}
