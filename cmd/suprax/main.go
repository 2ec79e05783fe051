// Command suprax drives the hardened AES-128 engine model: single encryptions, vector
// verification, vector generation, fault-injection campaigns and activity traces.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jessevdk/go-flags"
	suprax "github.com/maemowong/suprax-aes"
	"github.com/maemowong/suprax-aes/proto/lfsr"
	"sigs.k8s.io/yaml"
)

const (
	formatTable = "table"
	formatYAML  = "yaml"
)

type globalOptions struct {
	DebugLevel string `long:"debuglevel" short:"d" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical, off} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems" default:"off"`
	Ticks      int    `long:"ticks" description:"Tick budget per invocation" default:"2000"`
	Seed       uint16 `long:"seed" description:"LFSR value loaded by global reset"`
	Format     string `long:"format" description:"Output format" choice:"table" choice:"yaml" default:"table"`
}

// setup applies the options every command shares.
func (g *globalOptions) setup() error {
	return setupLoggers(g.DebugLevel)
}

// engineOptions translates the global options into engine options.
func (g *globalOptions) engineOptions() []suprax.Option {
	seed := g.Seed
	if seed == 0 {
		seed = lfsr.ResetSeed
	}
	return []suprax.Option{
		suprax.WithTickBudget(g.Ticks),
		suprax.WithSeed(seed),
	}
}

// emit writes v as YAML, or calls render to draw it as a table.
func (g *globalOptions) emit(w io.Writer, v any, render func(t table.Writer)) error {
	if g.Format == formatYAML {
		b, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("unable to marshal output: %w", err)
		}
		_, err = w.Write(b)
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	render(t)
	t.Render()
	return nil
}

type registrar interface {
	Register(parser *flags.Parser) error
}

func main() {
	global := &globalOptions{}
	parser := flags.NewParser(global, flags.Default)

	commands := []registrar{
		newEncryptCommand(global),
		newVerifyCommand(global),
		newGenCommand(global),
		newInjectCommand(global),
		newActivityCommand(global),
	}
	for _, c := range commands {
		if err := c.Register(parser); err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	if _, err := parser.Parse(); err != nil {
		// go-flags already printed parse errors and help text
		if e, ok := err.(*flags.Error); ok {
			if e.Type == flags.ErrHelp {
				os.Exit(0)
			}
		} else {
			_, _ = fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
