package graph

import (
	"fmt"

	"github.com/chazu/opgraph/pkg/op"
	"github.com/hashicorp/go-multierror"
)

// ValidationSeverity indicates whether a validation finding blocks
// compilation or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks compilation
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	Ref      op.Ref             // which node has the problem (NoRef if graph-level)
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.Ref.IsZero() {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] node %s: %s", e.Severity, e.Ref, e.Message)
}

// ValidationWarning describes a non-blocking advisory finding.
type ValidationWarning struct {
	Ref     op.Ref
	Message string
}

// ValidationResult bundles errors (blocking) and warnings (advisory).
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// Err returns the blocking findings as a single error, or nil.
func (r ValidationResult) Err() error {
	var err error
	for _, e := range r.Errors {
		err = multierror.Append(err, e)
	}
	return err
}

// Validate runs the structural checks and returns every finding. An empty
// slice means the graph can be compiled. It never mutates the graph.
func Validate(g *Graph) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateNodes(g)...)
	errs = append(errs, validateReferences(g)...)
	errs = append(errs, validateChildKinds(g)...)
	errs = append(errs, validateDAG(g)...)
	errs = append(errs, validateNames(g)...)
	errs = append(errs, validateRoots(g)...)
	return errs
}

// ValidateAll runs Validate plus the advisory checks and separates errors
// from warnings.
func ValidateAll(g *Graph) ValidationResult {
	var result ValidationResult
	for _, e := range Validate(g) {
		if e.Severity == SeverityWarning {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Ref:     e.Ref,
				Message: e.Message,
			})
		} else {
			result.Errors = append(result.Errors, e)
		}
	}
	result.Warnings = append(result.Warnings, validateLODs(g)...)
	return result
}

// validateNodes checks that every arena slot holds an op of a known kind.
func validateNodes(g *Graph) []ValidationError {
	var errs []ValidationError
	for i, o := range g.nodes {
		if o == nil {
			errs = append(errs, ValidationError{
				Ref:      op.RefAt(i),
				Message:  "node is nil",
				Severity: SeverityError,
			})
			continue
		}
		if !o.Kind().IsValid() {
			errs = append(errs, ValidationError{
				Ref:      op.RefAt(i),
				Message:  fmt.Sprintf("node has invalid kind %d", o.Kind()),
				Severity: SeverityError,
			})
		}
	}
	return errs
}

// validateReferences checks that every child ref points at a node that exists
// and is older than its parent.
func validateReferences(g *Graph) []ValidationError {
	var errs []ValidationError
	for i, o := range g.nodes {
		if o == nil {
			continue
		}
		self := op.RefAt(i)
		o.ForEachChild(func(s op.Slot) {
			switch {
			case s.Ref.IsZero():
			case !g.Has(s.Ref):
				errs = append(errs, ValidationError{
					Ref:      self,
					Message:  fmt.Sprintf("child %s references %s, which does not exist", s.Name, s.Ref),
					Severity: SeverityError,
				})
			case s.Ref >= self:
				errs = append(errs, ValidationError{
					Ref:      self,
					Message:  fmt.Sprintf("child %s references %s, which is not older than its parent", s.Name, s.Ref),
					Severity: SeverityError,
				})
			}
		})
	}
	return errs
}

// validateChildKinds checks every present child against the kinds its slot
// takes. Missing or nil children are reported elsewhere.
func validateChildKinds(g *Graph) []ValidationError {
	var errs []ValidationError
	for i, o := range g.nodes {
		if o == nil {
			continue
		}
		o.ForEachChild(func(s op.Slot) {
			if s.Ref.IsZero() || !g.Has(s.Ref) {
				return
			}
			child := g.Get(s.Ref)
			if child == nil || op.AcceptsChild(o.Kind(), s.Pos, child.Kind()) {
				return
			}
			want := op.FormatKinds(op.Accepts(o.Kind(), s.Pos))
			errs = append(errs, ValidationError{
				Ref:      op.RefAt(i),
				Message:  fmt.Sprintf("child %s is %s %s, want %s", s.Name, child.Kind(), s.Ref, want),
				Severity: SeverityError,
			})
		})
	}
	return errs
}

// validateDAG checks for cycles using DFS with 3-color marking. A node seen
// again while still gray (on the current path) closes a cycle. The walk uses
// an explicit stack.
func validateDAG(g *Graph) []ValidationError {
	const (
		white = iota
		gray
		black
	)

	type frame struct {
		ref      op.Ref
		children []op.Ref
		next     int
	}

	color := make([]int, g.NodeCount())
	for i := range g.nodes {
		if color[i] != white {
			continue
		}
		color[i] = gray
		stack := []frame{{ref: op.RefAt(i), children: g.Children(op.RefAt(i))}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next == len(top.children) {
				color[top.ref.Index()] = black
				stack = stack[:len(stack)-1]
				continue
			}
			child := top.children[top.next]
			top.next++
			if !g.Has(child) {
				continue // reported by validateReferences
			}
			switch color[child.Index()] {
			case gray:
				// One cycle error is sufficient.
				return []ValidationError{{
					Ref:      child,
					Message:  fmt.Sprintf("cycle detected: node %s is part of a cycle", child),
					Severity: SeverityError,
				}}
			case white:
				color[child.Index()] = gray
				stack = append(stack, frame{ref: child, children: g.Children(child)})
			}
		}
	}
	return nil
}

// validateNames checks that every NameIndex entry references an existing node.
func validateNames(g *Graph) []ValidationError {
	var errs []ValidationError
	for name, r := range g.NameIndex {
		if !g.Has(r) {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("name index entry %q references non-existent node %s", name, r),
				Severity: SeverityError,
			})
		}
	}
	return errs
}

// validateRoots checks that every root references an existing node and warns
// about orphan nodes (nodes unreachable from any root).
func validateRoots(g *Graph) []ValidationError {
	var errs []ValidationError
	for _, r := range g.Roots {
		if !g.Has(r) {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("root reference %s does not exist", r),
				Severity: SeverityError,
			})
		}
	}

	if len(g.nodes) == 0 || len(g.Roots) == 0 {
		return errs
	}

	reached := Reachable(g, g.Roots)
	names := g.Names()
	for i, ok := range reached {
		if ok {
			continue
		}
		r := op.RefAt(i)
		label := r.String()
		if name, ok := names[r]; ok {
			label = name
		}
		errs = append(errs, ValidationError{
			Ref:      r,
			Message:  fmt.Sprintf("node %q is not reachable from any root (orphan)", label),
			Severity: SeverityWarning,
		})
	}
	return errs
}

// validateLODs warns about AddLOD nodes that carry no levels at all.
func validateLODs(g *Graph) []ValidationWarning {
	var warnings []ValidationWarning
	for i, o := range g.nodes {
		lod, ok := o.(op.AddLOD)
		if ok && lod.Count() == 0 {
			warnings = append(warnings, ValidationWarning{
				Ref:     op.RefAt(i),
				Message: "add-lod has no levels",
			})
		}
	}
	return warnings
}
