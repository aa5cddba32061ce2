package graph

import (
	"strings"
	"testing"

	"github.com/chazu/opgraph/pkg/op"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// buildValidLOD creates a valid graph: one mesh transformed by a matrix, with
// both the raw and the transformed mesh assembled into a named LOD root.
func buildValidLOD() *Graph {
	b := NewBuilder()
	mesh := b.Add(op.MeshConstant{Resource: 1})
	matrix := b.Add(op.MatrixConstant{Matrix: op.Identity()})
	moved := b.Add(op.MeshTransform{Source: mesh, Matrix: matrix})
	b.Output("lod", b.Add(op.NewAddLOD(moved, mesh)))
	return b.Graph()
}

// lodOf returns an AddLOD whose first level is r, bypassing NewAddLOD so
// tests can build refs Add would refuse.
func lodOf(r op.Ref) op.AddLOD {
	var l op.AddLOD
	l.LODs[0] = r
	return l
}

// hasError returns true if errs contains at least one error-severity finding
// whose message contains substr.
func hasError(errs []ValidationError, substr string) bool {
	for _, e := range errs {
		if e.Severity == SeverityError && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// hasWarning returns true if errs contains at least one warning-severity
// finding whose message contains substr.
func hasWarning(errs []ValidationError, substr string) bool {
	for _, e := range errs {
		if e.Severity == SeverityWarning && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// errorCount returns the number of error-severity findings.
func errorCount(errs []ValidationError) int {
	n := 0
	for _, e := range errs {
		if e.Severity == SeverityError {
			n++
		}
	}
	return n
}

// ---------------------------------------------------------------------------
// Valid graphs
// ---------------------------------------------------------------------------

func TestValidateValidGraph(t *testing.T) {
	g := buildValidLOD()
	errs := Validate(g)
	if len(errs) != 0 {
		for _, e := range errs {
			t.Errorf("unexpected: %s", e)
		}
	}
}

func TestValidateEmptyGraph(t *testing.T) {
	if errs := Validate(New()); len(errs) != 0 {
		t.Errorf("empty graph should be valid, got %v", errs)
	}
}

func TestValidateNoRootsSkipsOrphanCheck(t *testing.T) {
	g := New()
	g.Add(op.Const{Value: 1})
	if errs := Validate(g); len(errs) != 0 {
		t.Errorf("a rootless graph has nothing to be orphaned from, got %v", errs)
	}
}

// ---------------------------------------------------------------------------
// Node and reference checks
// ---------------------------------------------------------------------------

func TestValidateNilNode(t *testing.T) {
	g := FromNodes([]op.Op{op.Const{Value: 1}, nil})
	errs := Validate(g)
	if !hasError(errs, "node is nil") {
		t.Errorf("expected nil node error, got %v", errs)
	}
}

func TestValidateDanglingReference(t *testing.T) {
	g := FromNodes([]op.Op{
		op.MeshConstant{Resource: 1},
		op.MeshTransform{Source: op.RefAt(0), Matrix: op.RefAt(7)},
	})
	errs := Validate(g)
	if !hasError(errs, "does not exist") {
		t.Errorf("expected dangling reference error, got %v", errs)
	}
	if !strings.Contains(errs[0].Error(), "child matrix") {
		t.Errorf("error should name the slot: %s", errs[0])
	}
}

func TestValidateChildKinds(t *testing.T) {
	b := NewBuilder()
	five := b.Add(op.Const{Value: 5})
	mesh := b.Add(op.MeshConstant{Resource: 1})
	bad := b.Add(op.MeshTransform{Source: five, Matrix: mesh})
	b.Output("lod", b.Add(op.NewAddLOD(bad, five)))

	errs := Validate(b.Graph())
	if errorCount(errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}
	if !hasError(errs, "child source is Const #0, want MeshConstant or MeshTransform") {
		t.Errorf("expected source kind error, got %v", errs)
	}
	if !hasError(errs, "child matrix is MeshConstant #1, want MatrixConstant") {
		t.Errorf("expected matrix kind error, got %v", errs)
	}
	// Levels of detail take any kind.
	for _, e := range errs {
		if e.Ref != bad {
			t.Errorf("error on %s, want only %s: %s", e.Ref, bad, e)
		}
	}
}

func TestValidateForwardReference(t *testing.T) {
	g := FromNodes([]op.Op{
		lodOf(op.RefAt(1)),
		op.Const{Value: 5},
	})
	errs := Validate(g)
	if !hasError(errs, "not older than its parent") {
		t.Errorf("expected ordering error, got %v", errs)
	}
	// A forward edge alone is not a cycle.
	if hasError(errs, "cycle") {
		t.Errorf("unexpected cycle error: %v", errs)
	}
}

func TestValidateNameAndRootReferences(t *testing.T) {
	g := buildValidLOD()
	g.NameIndex["ghost"] = op.RefAt(40)
	g.AddRoot(op.RefAt(41))
	errs := Validate(g)
	if !hasError(errs, `"ghost" references non-existent node #40`) {
		t.Errorf("expected name index error, got %v", errs)
	}
	if !hasError(errs, "root reference #41 does not exist") {
		t.Errorf("expected root error, got %v", errs)
	}
	if errorCount(errs) != 2 {
		t.Errorf("expected 2 errors, got %d: %v", errorCount(errs), errs)
	}
}

// ---------------------------------------------------------------------------
// Cycle detection
// ---------------------------------------------------------------------------

func TestValidateCycle(t *testing.T) {
	g := FromNodes([]op.Op{
		lodOf(op.RefAt(1)),
		lodOf(op.RefAt(0)),
	})
	errs := Validate(g)
	if !hasError(errs, "cycle detected") {
		t.Errorf("expected cycle error, got %v", errs)
	}
}

func TestValidateSelfLoop(t *testing.T) {
	g := FromNodes([]op.Op{lodOf(op.RefAt(0))})
	errs := Validate(g)
	if !hasError(errs, "cycle detected") {
		t.Errorf("expected cycle error, got %v", errs)
	}
	if !hasError(errs, "not older than its parent") {
		t.Errorf("expected ordering error, got %v", errs)
	}
}

// ---------------------------------------------------------------------------
// Warnings
// ---------------------------------------------------------------------------

func TestValidateOrphanWarning(t *testing.T) {
	g := buildValidLOD()
	orphan := g.Add(op.Const{Value: 42})
	g.NameIndex["spare"] = orphan

	errs := Validate(g)
	if errorCount(errs) != 0 {
		t.Errorf("orphans should not be errors: %v", errs)
	}
	if !hasWarning(errs, `node "spare" is not reachable from any root (orphan)`) {
		t.Errorf("expected orphan warning, got %v", errs)
	}
}

func TestValidateAll(t *testing.T) {
	g := buildValidLOD()
	g.Add(op.Const{Value: 42})
	empty := g.Add(op.AddLOD{})
	g.AddRoot(empty)
	g.NameIndex["ghost"] = op.RefAt(99)

	result := ValidateAll(g)
	if len(result.Errors) != 1 {
		t.Errorf("expected 1 error, got %v", result.Errors)
	}
	if len(result.Warnings) != 2 {
		t.Fatalf("expected orphan and empty-lod warnings, got %v", result.Warnings)
	}
	if result.Warnings[1].Ref != empty || result.Warnings[1].Message != "add-lod has no levels" {
		t.Errorf("unexpected LOD warning %+v", result.Warnings[1])
	}

	err := result.Err()
	if err == nil || !strings.Contains(err.Error(), "ghost") {
		t.Errorf("Err() = %v, want the name index error", err)
	}
	if (ValidationResult{}).Err() != nil {
		t.Error("Err() of a clean result should be nil")
	}
}
