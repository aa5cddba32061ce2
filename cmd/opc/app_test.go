package main

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/chazu/opgraph/pkg/config"
	"github.com/chazu/opgraph/pkg/link"
	"github.com/chazu/opgraph/pkg/op"
	"github.com/chazu/opgraph/pkg/program"
	"github.com/davecgh/go-spew/spew"
	"github.com/kylelemons/godebug/pretty"
)

const characterSource = "../../examples/character.opg"

func mustCompile(t *testing.T, app *App, source string) *CompileResult {
	t.Helper()
	result, err := app.Compile(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			t.Errorf("eval error (line %d): %s", e.Line, e.Message)
		}
		t.FailNow()
	}
	return result
}

// TestE2ECharacterExample exercises the full pipeline: Lisp source → engine
// → graph → prune → link → verify.
func TestE2ECharacterExample(t *testing.T) {
	source, err := os.ReadFile(characterSource)
	if err != nil {
		t.Fatalf("failed to read example: %v", err)
	}

	result := mustCompile(t, NewApp(config.Default()), string(source))

	want := []Output{
		{Name: "character", Address: 13},
		{Name: "sword", Address: 9},
	}
	if diff := pretty.Compare(result.Outputs, want); diff != "" {
		t.Errorf("outputs diff (-got +want):\n%s", diff)
	}
	if result.Program.Len() != 14 {
		t.Errorf("expected 14 entries, got %d", result.Program.Len())
	}
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}
	if err := link.Verify(result.Program); err != nil {
		t.Errorf("Verify: %v", err)
	}

	in, err := op.Decode(result.Program, 13)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if in.Kind != op.KindAddLOD || len(in.Operands) != 3 {
		t.Errorf("root entry = %s", spew.Sdump(in))
	}
}

// TestE2EEmptySource ensures the pipeline handles empty input gracefully.
func TestE2EEmptySource(t *testing.T) {
	result := mustCompile(t, NewApp(config.Default()), "")
	if len(result.Outputs) != 0 {
		t.Errorf("expected 0 outputs for empty source, got %d", len(result.Outputs))
	}
	if result.Program.Len() != 0 || result.Program.Size() != 0 {
		t.Errorf("expected an empty program, got %d entries", result.Program.Len())
	}
}

// TestE2ESyntaxError ensures eval errors are reported, not fatal errors.
func TestE2ESyntaxError(t *testing.T) {
	result, err := NewApp(config.Default()).Compile(`(output "x"`)
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if len(result.Errors) == 0 {
		t.Fatal("expected eval errors for syntax error")
	}
	if result.Program != nil {
		t.Error("expected no program on error")
	}
}

func TestE2ESharedExpressions(t *testing.T) {
	source := `
(output "a" (add-lod (const 5)))
(output "b" (add-lod (const 5)))
`
	result := mustCompile(t, NewApp(config.Default()), source)
	if result.Program.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", result.Program.Len())
	}
	if result.Outputs[0].Address != result.Outputs[1].Address {
		t.Errorf("equal outputs linked at %s and %s", result.Outputs[0].Address, result.Outputs[1].Address)
	}
}

func TestE2ESelectedOutputs(t *testing.T) {
	source, err := os.ReadFile(characterSource)
	if err != nil {
		t.Fatalf("failed to read example: %v", err)
	}
	cfg := config.Default()
	cfg.Outputs = []string{"sword"}

	result := mustCompile(t, NewApp(cfg), string(source))
	// sword, body, matrix, in-hand, trimmed
	if result.Program.Len() != 5 {
		t.Errorf("expected 5 entries, got %d", result.Program.Len())
	}
	if diff := pretty.Compare(result.Outputs, []Output{{Name: "sword", Address: 4}}); diff != "" {
		t.Errorf("outputs diff (-got +want):\n%s", diff)
	}

	cfg.Outputs = []string{"shield"}
	bad, err := NewApp(cfg).Compile(string(source))
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(bad.Errors) != 1 || !strings.Contains(bad.Errors[0].Message, `no output named "shield"`) {
		t.Errorf("errors = %v", bad.Errors)
	}
}

func TestE2ENoPruneKeepsUnusedNodes(t *testing.T) {
	source := `
(mesh 9)
(output "m" (mesh 1))
`
	cfg := config.Default()
	cfg.Prune = false
	result := mustCompile(t, NewApp(cfg), source)
	if result.Graph.NodeCount() != 2 {
		t.Errorf("expected 2 nodes, got %d", result.Graph.NodeCount())
	}
	// Unreachable nodes are never linked, even without pruning.
	if result.Program.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", result.Program.Len())
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0].Message, "orphan") {
		t.Errorf("warnings = %v", result.Warnings)
	}
	if result.Outputs[0].Address != program.Address(0) {
		t.Errorf("output at %s, want @0", result.Outputs[0].Address)
	}
}

func TestE2ERapidCompilation(t *testing.T) {
	// Alternates between valid and invalid sources. The engine must recover
	// cleanly between error and success states.
	app := NewApp(config.Default())

	sources := []string{
		`(output "ok" (mesh 1))`,
		`(output "broken"`,
		``,
		`(transform (const 1) nil)`,
		`(+ 1 2)`,
		`;; just a comment`,
		`(undefined-func 1 2 3)`,
		`(output "last" (add-lod (mesh 1) (mesh 2)))`,
	}

	for i, source := range sources {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("iteration %d panicked on source %q: %v", i, source, r)
				}
			}()
			if _, err := app.Compile(source); err != nil {
				t.Errorf("iteration %d: fatal error: %v", i, err)
			}
		}()
	}
}

func TestWriters(t *testing.T) {
	result := mustCompile(t, NewApp(config.Default()), `(output "lods" (add-lod (const 5)))`)

	var buf bytes.Buffer
	WriteSummary(&buf, result)
	WriteStats(&buf, result)
	if err := WriteDisassembly(&buf, result.Program); err != nil {
		t.Fatalf("WriteDisassembly: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"lods                 @1\n",
		"2 entries, 39 bytes\n",
		"linked 2 nodes: Const=1 AddLOD=1\n",
		"@0     000000 Const value=5\n",
		"AddLOD lods[0]=@0",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestMainCommand(t *testing.T) {
	var out bytes.Buffer
	err := Main([]string{"--disasm", "--stats", "--dot", characterSource}, nil, &out)
	if err != nil {
		t.Fatalf("Main: %v", err)
	}
	for _, want := range []string{"character", "14 entries", "MeshClipMorphPlane", "digraph"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestMainStdin(t *testing.T) {
	var out bytes.Buffer
	err := Main([]string{"-"}, strings.NewReader(`(output "m" (mesh 3))`), &out)
	if err != nil {
		t.Fatalf("Main: %v", err)
	}
	if !strings.Contains(out.String(), "1 entries, 5 bytes") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

func TestMainErrors(t *testing.T) {
	var out bytes.Buffer
	if err := Main([]string{"-"}, strings.NewReader(`(mesh)`), &out); err == nil {
		t.Error("expected an error for bad source")
	}
	if !strings.Contains(out.String(), "mesh requires a resource id") {
		t.Errorf("eval error not printed:\n%s", out.String())
	}
	if err := Main(nil, nil, &out); err == nil {
		t.Error("expected an error without a source argument")
	}
	if err := Main([]string{"missing.opg"}, nil, &out); err == nil || !strings.Contains(err.Error(), "can't read") {
		t.Errorf("err = %v, want a read error", err)
	}
}
