// Package engine provides the Lisp front-end for building operation graphs.
// It wraps zygomys in a sandboxed environment and produces a hash-consed
// graph from user source code.
package engine

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chazu/opgraph/pkg/graph"
	"github.com/chazu/opgraph/pkg/op"
	zygo "github.com/glycerine/zygomys/zygo"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Result is the output of a successful evaluation.
type Result struct {
	// Builder holds the evaluated graph. Callers may keep adding to it;
	// new ops are merged with the ones the source produced.
	Builder *graph.Builder

	// Roots are the nodes registered with (output ...), in source order.
	Roots []op.Ref

	// Names are the output names, parallel to Roots.
	Names []string
}

// Graph returns the evaluated graph.
func (r *Result) Graph() *graph.Graph {
	return r.Builder.Graph()
}

// Engine wraps the zygomys interpreter.
// It is safe for concurrent use; each call to Evaluate creates a fresh
// sandboxed environment for determinism.
type Engine struct {
	// Timeout is the hard limit for a single evaluation. Zero means
	// EvalTimeout.
	Timeout time.Duration

	// Debug enables logging of reused nodes through Logf.
	Debug bool

	// Logf is used for debug logging. It may be nil.
	Logf func(format string, v ...interface{})

	generation atomic.Uint64
}

// NewEngine creates a new Engine instance.
func NewEngine() *Engine {
	return &Engine{Timeout: EvalTimeout}
}

// Evaluate takes Lisp source code and produces a new graph.
// Each call creates a fresh zygomys sandbox and a fresh builder, so nodes
// are never shared between evaluations.
//
// Return semantics:
//   - On success: returns result + nil errors + nil error
//   - On parse/eval failure: returns nil result + eval errors + nil error
//   - On fatal failure (timeout, panic): returns nil + nil + error
func (e *Engine) Evaluate(source string) (*Result, []EvalError, error) {
	return e.EvaluateContext(context.Background(), source)
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string) (*Result, []EvalError, error) {
	b := graph.NewBuilder()
	b.Debug = e.Debug
	b.Logf = e.Logf

	// Empty source is a valid program that produces an empty graph.
	if strings.TrimSpace(source) == "" {
		return &Result{Builder: b}, nil, nil
	}

	// Sandbox mode prevents user code from accessing the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	var names []string
	registerBuiltins(env, b, &names)

	err := env.LoadString(preprocessSource(source))
	if err != nil {
		return nil, parseZygomysError(err), nil
	}

	_, err = env.Run()
	if err != nil {
		return nil, parseZygomysError(err), nil
	}

	roots := make([]op.Ref, len(names))
	for i, name := range names {
		roots[i] = b.Graph().Lookup(name)
	}
	return &Result{Builder: b, Roots: roots, Names: names}, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
// It attempts to extract line number information from the error message.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	// zygomys formats parse errors as "Error on line N: <details>\n"
	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{
				Line:    line,
				Message: strings.TrimSpace(m[2]),
			}}
		}
	}

	// Fallback: no line info available.
	return []EvalError{{
		Message: strings.TrimSpace(msg),
	}}
}
