package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jessevdk/go-flags"
	suprax "github.com/maemowong/suprax-aes"
	"github.com/maemowong/suprax-aes/harness/vectors"
)

type encryptCommand struct {
	Key       string `long:"key" short:"k" description:"128-bit key in hex" required:"true"`
	Plaintext string `long:"plaintext" short:"p" description:"128-bit plaintext block in hex" required:"true"`

	global *globalOptions
}

func newEncryptCommand(global *globalOptions) *encryptCommand {
	return &encryptCommand{global: global}
}

func (x *encryptCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"encrypt",
		"Encrypt one block",
		"Run one hardened invocation on the given key and plaintext "+
			"and print the released ciphertext, the fault flag and "+
			"the latency in ticks",
		x,
	)
	return err
}

type encryptOutput struct {
	Ciphertext string `json:"ciphertext"`
	FaultFlag  bool   `json:"fault_flag"`
	Fault      string `json:"fault"`
	Ticks      int    `json:"ticks"`
}

func (x *encryptCommand) Execute(_ []string) error {
	if err := x.global.setup(); err != nil {
		return err
	}

	key, err := vectors.ParseBlock(x.Key)
	if err != nil {
		return fmt.Errorf("invalid key: %w", err)
	}
	pt, err := vectors.ParseBlock(x.Plaintext)
	if err != nil {
		return fmt.Errorf("invalid plaintext: %w", err)
	}

	e := suprax.NewEngine(x.global.engineOptions()...)
	res, err := e.Encrypt(context.Background(), key, pt)
	if err != nil {
		return err
	}

	out := encryptOutput{
		Ciphertext: fmt.Sprintf("%x", res.Ciphertext),
		FaultFlag:  res.FaultFlag,
		Fault:      res.Fault.String(),
		Ticks:      res.Ticks,
	}
	return x.global.emit(os.Stdout, out, func(t table.Writer) {
		t.AppendHeader(table.Row{"Ciphertext", "Fault", "Ticks"})
		t.AppendRow(table.Row{out.Ciphertext, out.Fault, out.Ticks})
	})
}
