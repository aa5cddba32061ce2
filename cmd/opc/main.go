// Command opc compiles a graph DSL source file into a linked program and
// prints a summary of it.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/alexflint/go-arg"
	"github.com/chazu/opgraph/pkg/config"
	"github.com/pkg/errors"
)

// Args are what are used to build the CLI.
type Args struct {
	Config string `arg:"--config" help:"yaml settings file"`

	Disasm bool `arg:"--disasm" help:"print every program entry"`

	Dot bool `arg:"--dot" help:"print the linked graph in graphviz format"`

	Stats bool `arg:"--stats" help:"print node sharing counters"`

	NoPrune bool `arg:"--no-prune" help:"link unreachable nodes too"`

	Source string `arg:"positional,required" help:"source file, or - for stdin"`
}

// Main program that returns error.
func Main(argv []string, stdin io.Reader, stdout io.Writer) error {
	args := Args{}
	parser, err := arg.NewParser(arg.Config{Program: "opc"}, &args)
	if err != nil {
		// programming error
		return err
	}
	err = parser.Parse(argv)
	if err == arg.ErrHelp {
		parser.WriteHelp(stdout)
		return nil
	}
	if err != nil {
		return err
	}

	cfg := config.Default()
	if args.Config != "" {
		if cfg, err = config.Load(args.Config); err != nil {
			return err
		}
	}
	if args.NoPrune {
		cfg.Prune = false
	}

	var source []byte
	if args.Source == "-" {
		source, err = io.ReadAll(stdin)
	} else {
		source, err = os.ReadFile(args.Source)
	}
	if err != nil {
		return errors.Wrapf(err, "can't read %s", args.Source)
	}

	result, err := NewApp(cfg).Compile(string(source))
	if err != nil {
		return err
	}
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			fmt.Fprintf(stdout, "%s: %s\n", args.Source, e)
		}
		return errors.Errorf("%d error(s)", len(result.Errors))
	}
	for _, w := range result.Warnings {
		log.Printf("warning: node %s: %s", w.Ref, w.Message)
	}

	WriteSummary(stdout, result)
	if args.Stats {
		WriteStats(stdout, result)
	}
	if args.Disasm {
		if err := WriteDisassembly(stdout, result.Program); err != nil {
			return err
		}
	}
	if args.Dot {
		fmt.Fprint(stdout, result.Graph.Graphviz(args.Source))
	}
	return nil
}

func main() {
	if err := Main(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		log.Printf("opc: %v", err)
		os.Exit(1)
	}
}
