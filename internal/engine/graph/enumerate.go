package graph

import (
	"errors"
	"fmt"

	"go.stu.dev/stu/internal/core/domain"
	"go.stu.dev/stu/internal/core/ports"
	"go.stu.dev/stu/internal/ruleset"
)

// Graph owns the execution arena and the collaborators enumeration and
// dynamic expansion need: the rule index and the filesystem.
type Graph struct {
	arena *Arena
	rules *ruleset.RuleSet
	fs    ports.FileSystem

	// NewlineDefault/NulDefault mirror the CLI's -n/-0 flags (§6): the
	// default separator convention for a dynamic dependency's on-disk
	// list, since §4.3's grammar provides no per-edge syntax to select it
	// (see DESIGN.md's note on this gap).
	NewlineDefault bool
	NulDefault     bool
}

// New constructs a Graph over an already-indexed RuleSet.
func New(rules *ruleset.RuleSet, fs ports.FileSystem) *Graph {
	return &Graph{arena: NewArena(), rules: rules, fs: fs}
}

// Root interns and returns the Execution for a command-line-requested
// target at depth 0.
func (g *Graph) Root(kind domain.Kind, name string) *Execution {
	return g.arena.Intern(domain.Target{Kind: kind, Name: domain.NewInternedString(name)})
}

// Arena exposes the underlying arena, for the scheduler's error
// collection and internal/format's report.
func (g *Graph) Arena() *Arena { return g.arena }

// Enumerate drives exec out of PhaseInit (§4.4 "Enumeration"). A no-op
// once exec has left PhaseInit.
func (g *Graph) Enumerate(exec *Execution) error {
	if exec.Phase != domain.PhaseInit {
		return nil
	}

	result, err := g.rules.Lookup(exec.Target)
	switch {
	case err == nil:
		exec.Rule = result.Rule
		exec.Binding = result.Binding
	case errors.Is(err, domain.ErrNoRule):
		return g.enumerateRuleless(exec)
	default:
		return g.fail(exec, err)
	}

	if exec.Rule.Deps == nil {
		exec.Phase = domain.PhaseWaiting
		return nil
	}

	inst, err := domain.Instantiate(exec.Rule.Deps, exec.Binding)
	if err != nil {
		return g.fail(exec, err)
	}
	for _, dep := range domain.SplitCompound(inst) {
		edge, err := g.buildEdge(exec, dep, 0)
		if err != nil {
			return g.fail(exec, err)
		}
		exec.Edges = append(exec.Edges, edge)
		edge.Child.Parents = append(edge.Child.Parents, edge)
	}
	exec.Phase = domain.PhaseWaiting
	return nil
}

// enumerateRuleless handles §4.4 point 1's "no rule found" branch: a
// TRANSIENT target always fails; a FILE target is a leaf whose mtime (or
// absence) is read directly from disk.
func (g *Graph) enumerateRuleless(exec *Execution) error {
	if exec.Target.Kind == domain.TransientTarget {
		return g.fail(exec, domain.NewLogicalError(domain.Place{}, fmt.Sprintf("no rule to make transient target %q", exec.Target.Name.String())))
	}
	info, ok, err := g.fs.Stat(exec.Target.Name.String())
	if err != nil {
		return g.fail(exec, err)
	}
	if !ok {
		exec.Absent = true
		exec.Phase = domain.PhaseDone
		return nil
	}
	exec.ModTime = info.ModTime
	exec.Phase = domain.PhaseDone
	return nil
}

func (g *Graph) fail(exec *Execution, err error) error {
	exec.Phase = domain.PhaseFailed
	exec.Err = err
	return err
}

// buildEdge implements §4.4 point 3: peel Dynamic wrappers to build a Flag
// Stack, intern the child at the resulting depth, and record the edge.
// extraTransitive ORs in additional transitive flags inherited from an
// enclosing dynamic-expansion step (zero for a direct enumeration edge).
func (g *Graph) buildEdge(parent *Execution, dep domain.Dependency, extraTransitive domain.Flags) (*Edge, error) {
	stack, inner, err := domain.PeelDynamic(dep)
	if err != nil {
		return nil, err
	}
	direct, ok := inner.(*domain.Direct)
	if !ok {
		return nil, domain.NewFatalError("dependency edge did not reduce to a concrete target")
	}

	depth := uint8(stack.Depth())
	childTarget := domain.Target{
		Kind:  direct.Kind,
		Name:  domain.NewInternedString(direct.Target.Literal()),
		Depth: depth,
	}
	child := g.arena.Intern(childTarget)

	edge := &Edge{
		Parent: parent,
		Child:  child,
		Stack:  stack,
		Flags:  direct.Flags | extraTransitive,
		Place:  direct.At,
	}
	if direct.Flags.Has(domain.Variable) {
		edge.IsVariable = true
		name := direct.VariableName
		if name == "" {
			name = direct.Target.Literal()
		}
		edge.VariableName = name
	}
	return edge, nil
}
