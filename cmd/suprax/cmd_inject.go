package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jessevdk/go-flags"
	"github.com/maemowong/suprax-aes/harness/inject"
	"github.com/maemowong/suprax-aes/harness/vectors"
	"github.com/maemowong/suprax-aes/proto/lockstep"
)

type injectCommand struct {
	Vector  string `long:"vector" description:"Vector line '<key> <plaintext> <ciphertext>'; defaults to the FIPS-197 known answer"`
	Tick    int    `long:"tick" description:"Tick of the invocation to upset, 0 is the start tick" default:"5"`
	Bit     uint8  `long:"bit" description:"State bit to flip, 127 is the MSB of byte 0" default:"0"`
	Replica string `long:"replica" description:"Replicas to upset" choice:"a" choice:"b" choice:"ab" default:"a"`
	Sweep   int    `long:"sweep" description:"Instead of one upset, sweep ticks [0, N) x all 128 bits x all replica masks"`
	Workers int    `long:"workers" description:"Parallel engines for --sweep, 0 means one per CPU"`

	global *globalOptions
}

func newInjectCommand(global *globalOptions) *injectCommand {
	return &injectCommand{global: global}
}

func (x *injectCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"inject",
		"Force single-bit upsets into the lockstep replicas",
		"Flip one state bit in replica A, B or both at a chosen tick "+
			"and report whether the engine detected it; with --sweep "+
			"run a full campaign and report detected, masked and "+
			"escaped counts",
		x,
	)
	return err
}

func parseReplica(s string) (lockstep.ReplicaMask, error) {
	switch strings.ToLower(s) {
	case "a":
		return lockstep.ReplicaA, nil
	case "b":
		return lockstep.ReplicaB, nil
	case "ab":
		return lockstep.ReplicaBoth, nil
	default:
		return 0, fmt.Errorf("unknown replica %q", s)
	}
}

type injectOutput struct {
	Plan       string `json:"plan"`
	Class      string `json:"class"`
	Fault      string `json:"fault"`
	Applied    bool   `json:"applied"`
	Ciphertext string `json:"ciphertext"`
}

type sweepOutput struct {
	Total     int      `json:"total"`
	Detected  int      `json:"detected"`
	Spatial   int      `json:"spatial"`
	Temporal  int      `json:"temporal"`
	Masked    int      `json:"masked"`
	Escaped   int      `json:"escaped"`
	Detection float64  `json:"detection_rate"`
	Escapes   []string `json:"escapes,omitempty"`
}

func (x *injectCommand) Execute(_ []string) error {
	if err := x.global.setup(); err != nil {
		return err
	}

	v := vectors.KnownAnswer
	if x.Vector != "" {
		var err error
		if v, err = vectors.ParseLine(x.Vector); err != nil {
			return fmt.Errorf("invalid vector: %w", err)
		}
	}
	ctx := context.Background()

	if x.Sweep > 0 {
		return x.sweep(ctx, v)
	}

	replicas, err := parseReplica(x.Replica)
	if err != nil {
		return err
	}
	if x.Bit > 127 {
		return fmt.Errorf("bit %d out of range", x.Bit)
	}

	plan := inject.Plan{Tick: x.Tick, Replicas: replicas, Bit: x.Bit}
	res, err := inject.Run(ctx, v, plan, x.global.engineOptions()...)
	if err != nil {
		return err
	}

	out := injectOutput{
		Plan:       plan.String(),
		Class:      res.Class.String(),
		Fault:      res.Fault.String(),
		Applied:    res.Applied,
		Ciphertext: fmt.Sprintf("%x", res.Ciphertext),
	}
	return x.global.emit(os.Stdout, out, func(t table.Writer) {
		t.AppendHeader(table.Row{"Plan", "Outcome", "Fault", "Applied", "Ciphertext"})
		t.AppendRow(table.Row{out.Plan, out.Class, out.Fault, out.Applied, out.Ciphertext})
	})
}

func (x *injectCommand) sweep(ctx context.Context, v vectors.Vector) error {
	bits := make([]uint8, 128)
	for i := range bits {
		bits[i] = uint8(i)
	}

	c := inject.Campaign{
		Vector: v,
		Ticks:  inject.Range(0, x.Sweep),
		Bits:   bits,
		Replicas: []lockstep.ReplicaMask{
			lockstep.ReplicaA, lockstep.ReplicaB, lockstep.ReplicaBoth,
		},
		Workers: x.Workers,
		Options: x.global.engineOptions(),
	}
	s, err := c.Run(ctx)
	if err != nil {
		return err
	}

	out := sweepOutput{
		Total:     s.Total,
		Detected:  s.Detected,
		Spatial:   s.Spatial,
		Temporal:  s.Temporal,
		Masked:    s.Masked,
		Escaped:   s.Escaped,
		Detection: s.DetectionRate(),
	}
	for _, p := range s.Escapes {
		out.Escapes = append(out.Escapes, p.String())
	}

	err = x.global.emit(os.Stdout, out, func(t table.Writer) {
		t.AppendHeader(table.Row{"Plans", "Detected", "Spatial", "Temporal", "Masked", "Escaped", "Rate"})
		t.AppendRow(table.Row{out.Total, out.Detected, out.Spatial, out.Temporal,
			out.Masked, out.Escaped, fmt.Sprintf("%.4f", out.Detection)})
	})
	if err != nil {
		return err
	}
	if s.Escaped > 0 {
		return fmt.Errorf("%d upsets escaped detection", s.Escaped)
	}
	return nil
}
