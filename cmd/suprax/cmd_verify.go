package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/jessevdk/go-flags"
	suprax "github.com/maemowong/suprax-aes"
	"github.com/maemowong/suprax-aes/harness/report"
	"github.com/maemowong/suprax-aes/harness/vectors"
	"golang.org/x/sync/errgroup"
)

type verifyCommand struct {
	Vectors  string `long:"vectors" short:"v" description:"Vector file in '<key> <plaintext> <ciphertext>' hex format" default:"vectors.txt"`
	Parallel int    `long:"parallel" short:"j" description:"Independent engines to run side by side" default:"1"`

	global *globalOptions
}

func newVerifyCommand(global *globalOptions) *verifyCommand {
	return &verifyCommand{global: global}
}

func (x *verifyCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"verify",
		"Check the engine against a vector file",
		"Encrypt every vector of the file and compare the released "+
			"ciphertext with the expected one; exits non-zero if any "+
			"vector mismatched, was flagged or timed out",
		x,
	)
	return err
}

func (x *verifyCommand) Execute(_ []string) error {
	if err := x.global.setup(); err != nil {
		return err
	}

	f, err := os.Open(x.Vectors)
	if err != nil {
		return err
	}
	vs, err := vectors.Parse(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", x.Vectors, err)
	}

	rep, err := verify(context.Background(), vs, max(x.Parallel, 1),
		x.global.engineOptions()...)
	if err != nil {
		return err
	}

	if x.global.Format == formatYAML {
		if err := rep.WriteYAML(os.Stdout); err != nil {
			return err
		}
	} else {
		rep.Render(os.Stdout)
	}

	if !rep.OK() {
		s := rep.Snapshot()
		return fmt.Errorf("%d of %d vectors failed", s.Total-s.Passed,
			s.Total)
	}
	return nil
}

// verify runs vs on workers engines. Each engine owns its randomization context, so
// the split changes timing but never results.
func verify(ctx context.Context, vs []vectors.Vector, workers int,
	opts ...suprax.Option) (*report.Report, error) {

	rep := report.New()
	workers = min(workers, max(len(vs), 1))

	var next atomic.Int64
	eg, ctx := errgroup.WithContext(ctx)
	for range workers {
		eg.Go(func() error {
			e := suprax.NewEngine(opts...)
			for {
				i := int(next.Add(1) - 1)
				if i >= len(vs) {
					return nil
				}
				v := vs[i]

				res, err := e.Encrypt(ctx, v.Key, v.Plaintext)
				switch {
				case errors.Is(err, suprax.ErrTimeout):
					rep.Add(report.Entry{Expected: v.Expected, TimedOut: true})
					continue
				case err != nil:
					return err
				}

				rep.Add(report.Entry{
					Ciphertext: res.Ciphertext,
					Expected:   v.Expected,
					FaultFlag:  res.FaultFlag,
					Fault:      res.Fault,
					Ticks:      res.Ticks,
					Activity:   res.Activity,
				})
			}
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return rep, nil
}
