package main

import (
	"crypto/rand"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/maemowong/suprax-aes/harness/vectors"
)

type genCommand struct {
	Count int    `long:"count" short:"n" description:"Number of vectors, the first is always the FIPS-197 known answer" default:"20"`
	Out   string `long:"out" short:"o" description:"Output file" default:"vectors.txt"`

	global *globalOptions
}

func newGenCommand(global *globalOptions) *genCommand {
	return &genCommand{global: global}
}

func (x *genCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"gen",
		"Generate reference vectors",
		"Write random key/plaintext pairs with their reference "+
			"ciphertexts, one vector per line",
		x,
	)
	return err
}

func (x *genCommand) Execute(_ []string) error {
	if err := x.global.setup(); err != nil {
		return err
	}
	if x.Count <= 0 {
		return fmt.Errorf("count must be positive, got %d", x.Count)
	}

	vs, err := vectors.Generate(x.Count, rand.Reader)
	if err != nil {
		return err
	}

	f, err := os.Create(x.Out)
	if err != nil {
		return err
	}
	if err := vectors.Write(f, vs); err != nil {
		f.Close()
		return fmt.Errorf("unable to write %s: %w", x.Out, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Printf("Wrote %d vectors to %s\n", len(vs), x.Out)
	return nil
}
