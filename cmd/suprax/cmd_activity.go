package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jessevdk/go-flags"
	suprax "github.com/maemowong/suprax-aes"
	"github.com/maemowong/suprax-aes/harness/observer"
	"github.com/maemowong/suprax-aes/harness/vectors"
)

type activityCommand struct {
	Runs   int    `long:"runs" short:"n" description:"Invocations of the same block to observe" default:"16"`
	Vector string `long:"vector" description:"Vector line '<key> <plaintext> <ciphertext>'; defaults to the FIPS-197 known answer"`
	Trace  string `long:"trace" description:"Write the per-tick trace here, zstd-compressed if the name ends in .zst"`

	global *globalOptions
}

func newActivityCommand(global *globalOptions) *activityCommand {
	return &activityCommand{global: global}
}

func (x *activityCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"activity",
		"Observe timing and switching activity",
		"Encrypt the same block repeatedly on one engine and record the "+
			"per-tick noise activity and advance/stall pattern; the "+
			"ciphertext must stay fixed while latency and activity vary",
		x,
	)
	return err
}

type activityOutput struct {
	Runs        int     `json:"runs"`
	Distinct    int     `json:"distinct_latencies"`
	MinTicks    int     `json:"min_ticks"`
	MaxTicks    int     `json:"max_ticks"`
	Advances    int     `json:"advance_ticks"`
	Stalls      int     `json:"stall_ticks"`
	Mean        float64 `json:"activity_mean"`
	StdDev      float64 `json:"activity_stddev"`
	Min         int     `json:"activity_min"`
	Max         int     `json:"activity_max"`
	OutputFixed bool    `json:"output_fixed"`
}

func (x *activityCommand) Execute(_ []string) error {
	if err := x.global.setup(); err != nil {
		return err
	}
	if x.Runs <= 0 {
		return fmt.Errorf("runs must be positive, got %d", x.Runs)
	}

	v := vectors.KnownAnswer
	if x.Vector != "" {
		var err error
		if v, err = vectors.ParseLine(x.Vector); err != nil {
			return fmt.Errorf("invalid vector: %w", err)
		}
	}

	obs := observer.New()
	opts := append(x.global.engineOptions(), suprax.WithProbe(obs.Record))
	e := suprax.NewEngine(opts...)

	out := activityOutput{Runs: x.Runs, OutputFixed: true}
	latencies := map[int]bool{}
	for i := range x.Runs {
		res, err := e.Encrypt(context.Background(), v.Key, v.Plaintext)
		if err != nil {
			return fmt.Errorf("run %d: %w", i, err)
		}
		if res.FaultFlag || res.Ciphertext != v.Expected {
			out.OutputFixed = false
		}
		latencies[res.Ticks] = true
		if i == 0 || res.Ticks < out.MinTicks {
			out.MinTicks = res.Ticks
		}
		out.MaxTicks = max(out.MaxTicks, res.Ticks)
	}
	out.Distinct = len(latencies)

	s := obs.Summary()
	out.Advances, out.Stalls = s.Advances, s.Stalls
	out.Mean, out.StdDev = s.Mean, s.StdDev
	out.Min, out.Max = s.Min, s.Max

	if x.Trace != "" {
		if err := obs.WriteTraceFile(x.Trace); err != nil {
			return fmt.Errorf("unable to write trace: %w", err)
		}
	}

	err := x.global.emit(os.Stdout, out, func(t table.Writer) {
		t.AppendHeader(table.Row{"Runs", "Latency", "Distinct", "Advance", "Stall",
			"Activity mean", "StdDev", "Min", "Max", "Output fixed"})
		t.AppendRow(table.Row{
			out.Runs, fmt.Sprintf("%d..%d", out.MinTicks, out.MaxTicks),
			out.Distinct, out.Advances, out.Stalls,
			fmt.Sprintf("%.1f", out.Mean), fmt.Sprintf("%.1f", out.StdDev),
			out.Min, out.Max, out.OutputFixed,
		})
	})
	if err != nil {
		return err
	}
	if !out.OutputFixed {
		return fmt.Errorf("ciphertext varied across identical invocations")
	}
	return nil
}
