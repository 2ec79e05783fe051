package redundancy

import (
	"github.com/maemowong/suprax-aes/proto/lfsr"
	"github.com/maemowong/suprax-aes/proto/noise"
)

// Context is the process-wide randomization state shared by every run of a
// controller: the timing randomizer and the power noise register. It persists across
// both runs of an invocation and across invocations. Only global reset reinitializes
// it, to the fixed seed and the fixed noise pattern.
//
// A Context belongs to exactly one Controller at a time.
type Context struct {
	Randomizer *lfsr.Randomizer
	Noise      *noise.Generator
}

// NewContext returns a context loaded with the reset seed.
func NewContext() *Context {
	return NewContextWithSeed(lfsr.ResetSeed)
}

// NewContextWithSeed returns a context whose randomizer reloads seed on reset.
func NewContextWithSeed(seed uint16) *Context {
	return &Context{
		Randomizer: lfsr.New(seed),
		Noise:      noise.New(),
	}
}

// Reset reinitializes the randomizer and the noise register.
func (c *Context) Reset() {
	c.Randomizer.Reset()
	c.Noise.Reset()
}
