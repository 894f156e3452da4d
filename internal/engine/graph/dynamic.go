package graph

import (
	"strings"

	"go.stu.dev/stu/internal/core/domain"
	"go.stu.dev/stu/internal/lexer"
	"go.stu.dev/stu/internal/parser"
)

// ExpandDynamic implements §4.4's "Dynamic expansion": once edge.Child (at
// depth > 0) reaches DONE, its on-disk content is parsed as a dependency
// list and merged into edge.Parent's child set. A given edge is expanded
// at most once.
//
// Cycle detection (§4.4: "keyed on (kind, name, depth)") is scoped to one
// ExpandDynamic call and its recursive descent into nested dynamic
// dependencies parsed out of the same file: chain tracks the targets
// currently being expanded so that a dynamic list which (directly or
// through further nesting) names its own source target is caught rather
// than silently growing the graph. A cycle that only closes once the
// graph has been driven across several scheduler ticks (e.g. A's list
// names B and B's list names A) is instead a structural dependency cycle
// on the build graph itself, a different and already-impossible case here
// since every node is an interned, shared Execution: referencing an
// ancestor that is still WAITING simply adds another edge to it rather
// than building it twice.
func (g *Graph) ExpandDynamic(edge *Edge) error {
	if edge.Stack.Depth() == 0 {
		return nil
	}
	if edge.Child.Phase != domain.PhaseDone {
		return nil
	}
	if edge.Parent.isExpanded(edge) {
		return nil
	}
	edge.Parent.markExpanded(edge)

	if edge.Child.Absent {
		return nil
	}

	content, err := g.fs.ReadFile(edge.Child.Target.Name.String())
	if err != nil {
		return g.fail(edge.Parent, err)
	}

	deps, err := g.parseDynamicList(edge.Child.Target.Name.String(), content)
	if err != nil {
		return g.fail(edge.Parent, err)
	}

	// A dependency parsed out of a depth-d dynamic list is itself still
	// d-1 Dynamic layers removed from a concrete target (§4.4 point 3:
	// "merge into the parent's child set at depth d-1"). At d=1 this
	// contributes zero extra layers and the parsed name is the final
	// target; at d=2 ("doubly dynamic") the parsed name instead names the
	// file whose own content is the real list, so it must still be
	// expanded once more.
	remainingDepth := edge.Stack.Depth() - 1

	chain := map[domain.Target]bool{edge.Child.Target: true}
	inherited := edge.Stack.Union() | (edge.Flags & domain.TransitiveMask())
	for _, dep := range deps {
		if err := g.mergeExpanded(edge.Parent, dep, inherited, remainingDepth, chain); err != nil {
			return g.fail(edge.Parent, err)
		}
	}
	return nil
}

// mergeExpanded attaches one freshly parsed dependency (and, recursively,
// any further Dynamic nesting within it) as a new edge on parent, carrying
// forward inherited transitive flags from the Flag Stack that led to this
// expansion. remainingDepth re-wraps dep in that many synthetic Dynamic
// layers before interning, so buildEdge's own PeelDynamic puts the child
// back at the depth it actually sits at (plus any Dynamic nesting already
// literally present in dep, for a dynamic list whose content uses bracket
// syntax itself).
func (g *Graph) mergeExpanded(parent *Execution, dep domain.Dependency, inherited domain.Flags, remainingDepth int, chain map[domain.Target]bool) error {
	for _, flat := range domain.SplitCompound(dep) {
		edge, err := g.buildEdge(parent, wrapDynamic(flat, remainingDepth), inherited)
		if err != nil {
			return err
		}
		if chain[edge.Child.Target] {
			return domain.NewFatalError("dynamic dependency cycle detected at " + edge.Child.Target.String())
		}
		parent.Edges = append(parent.Edges, edge)
		edge.Child.Parents = append(edge.Child.Parents, edge)
	}
	return nil
}

// wrapDynamic re-wraps dep in n synthetic Dynamic layers (n == 0 is a
// no-op), carrying no flags of their own since any flags belonging to
// this indirection step were already folded into inherited.
func wrapDynamic(dep domain.Dependency, n int) domain.Dependency {
	for i := 0; i < n; i++ {
		dep = &domain.Dynamic{Inner: dep, At: dep.Place()}
	}
	return dep
}

// parseDynamicList reads a dynamic dependency file per §4.4: plain format
// (full stu expression grammar) by default, or a flat newline-/NUL-
// separated list of bare names when the graph's NewlineDefault/NulDefault
// (from the CLI's -n/-0 flags, §6) is set. The formal grammar in §4.3 has
// no per-edge token to select NEWLINE_SEPARATED/NUL_SEPARATED, so the
// choice is necessarily global rather than per dynamic dependency (see
// DESIGN.md).
func (g *Graph) parseDynamicList(file string, content []byte) ([]domain.Dependency, error) {
	switch {
	case g.NulDefault:
		return splitNames(string(content), "\x00"), nil
	case g.NewlineDefault:
		return splitNames(string(content), "\n"), nil
	default:
		tokens, placeEnd, err := lexer.Tokenize(file, string(content))
		if err != nil {
			return nil, err
		}
		return parser.ParseExpressionList(tokens, placeEnd)
	}
}

func splitNames(content, sep string) []domain.Dependency {
	var out []domain.Dependency
	for _, name := range strings.Split(content, sep) {
		if name == "" {
			continue
		}
		out = append(out, &domain.Direct{
			Target: domain.ParameterizedName{Fragments: []string{name}},
			Kind:   domain.FileTarget,
		})
	}
	return out
}
