package main

import (
	"fmt"
	"io"
	"log"

	"github.com/chazu/opgraph/pkg/config"
	"github.com/chazu/opgraph/pkg/engine"
	"github.com/chazu/opgraph/pkg/graph"
	"github.com/chazu/opgraph/pkg/link"
	"github.com/chazu/opgraph/pkg/op"
	"github.com/chazu/opgraph/pkg/program"
	"github.com/pkg/errors"
)

// App runs the compile pipeline: evaluate, validate, prune, link, verify.
type App struct {
	engine *engine.Engine
	config *config.Config
	logf   func(format string, v ...interface{})
}

// Output is one compiled root.
type Output struct {
	Name    string
	Address program.Address
}

// CompileResult is everything a compile produced.
type CompileResult struct {
	Program  *program.Program
	Outputs  []Output
	Graph    *graph.Graph // the graph that was linked
	Stats    graph.Stats  // CSE counters of the evaluation
	Errors   []engine.EvalError
	Warnings []graph.ValidationWarning
}

// NewApp creates a new App with the given settings.
func NewApp(cfg *config.Config) *App {
	return &App{
		engine: cfg.Engine(log.Printf),
		config: cfg,
		logf:   log.Printf,
	}
}

// Compile takes Lisp source and returns the linked program. Problems in
// the source are reported in the result's Errors; the returned error is
// only set for failures outside the user's control.
func (a *App) Compile(source string) (*CompileResult, error) {
	result := &CompileResult{}

	// Step 1: Evaluate the Lisp source into an operation graph.
	res, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		return nil, errors.Wrap(err, "evaluate")
	}
	if len(evalErrs) > 0 {
		result.Errors = evalErrs
		return result, nil
	}
	result.Stats = res.Builder.Stats()

	// Step 2: Pick the outputs to compile.
	names, roots, err := a.selectOutputs(res)
	if err != nil {
		result.Errors = append(result.Errors, engine.EvalError{Message: err.Error()})
		return result, nil
	}

	// Step 3: Validate the graph.
	g := res.Graph()
	v := graph.ValidateAll(g)
	result.Warnings = v.Warnings
	if err := v.Err(); err != nil {
		return nil, errors.Wrap(err, "validate")
	}

	// Step 4: Drop everything the outputs don't use.
	if a.config.Prune {
		before := g.NodeCount()
		g, roots = graph.Prune(g, roots)
		if a.config.Debug {
			a.logf("prune: kept %d of %d nodes", g.NodeCount(), before)
		}
	}
	result.Graph = g

	// Step 5: Link.
	p, addrs := link.Compile(g, roots, a.config.LinkOptions(a.logf))
	if a.config.Verify {
		if err := link.Verify(p); err != nil {
			return nil, errors.Wrap(err, "verify")
		}
	}
	result.Program = p
	for i, name := range names {
		result.Outputs = append(result.Outputs, Output{Name: name, Address: addrs[i]})
	}
	return result, nil
}

// selectOutputs returns the configured outputs, or every output of the
// source in source order.
func (a *App) selectOutputs(res *engine.Result) ([]string, []op.Ref, error) {
	if len(a.config.Outputs) == 0 {
		return res.Names, res.Roots, nil
	}
	roots := make([]op.Ref, len(a.config.Outputs))
	for i, name := range a.config.Outputs {
		r := res.Graph().Lookup(name)
		if r.IsZero() {
			return nil, nil, errors.Errorf("no output named %q", name)
		}
		roots[i] = r
	}
	return a.config.Outputs, roots, nil
}

// WriteSummary prints the outputs and program size.
func WriteSummary(w io.Writer, r *CompileResult) {
	for _, o := range r.Outputs {
		fmt.Fprintf(w, "%-20s %s\n", o.Name, o.Address)
	}
	fmt.Fprintf(w, "%d entries, %d bytes\n", r.Program.Len(), r.Program.Size())
}

// WriteDisassembly prints one line per program entry.
func WriteDisassembly(w io.Writer, p *program.Program) error {
	insts, err := op.Disassemble(p)
	if err != nil {
		return err
	}
	for _, in := range insts {
		fmt.Fprintln(w, in)
	}
	return nil
}

// WriteStats prints the evaluation's CSE counters and the linked graph size.
func WriteStats(w io.Writer, r *CompileResult) {
	fmt.Fprintf(w, "inserted %d, reused %d, collisions %d\n",
		r.Stats.Inserted, r.Stats.Reused, r.Stats.Collisions)
	fmt.Fprintf(w, "linked %d nodes:", r.Graph.NodeCount())
	for _, k := range op.Kinds() {
		if n := r.Graph.CountKind(k); n > 0 {
			fmt.Fprintf(w, " %s=%d", k, n)
		}
	}
	fmt.Fprintln(w)
}
