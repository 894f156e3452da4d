// Package graph implements stu's Execution Graph (§4.4): a lazily
// populated arena of Execution nodes keyed by (kind, name, depth), built
// by demand-driven enumeration rather than loaded whole from one config
// file — the direct analogue of the teacher's
// internal/engine/scheduler/node.go + domain.Graph, restructured because
// stu discovers its graph incrementally instead of reading it from a
// single manifest.
package graph

import (
	"time"

	"go.stu.dev/stu/internal/core/domain"
)

// Execution represents "make this target current at this dynamic depth"
// (§4.4). Executions are interned by (kind, name, depth) so that multiple
// parents referencing the same target share exactly one node and its
// command runs at most once per program invocation (§4.4 "Ordering
// guarantees").
type Execution struct {
	Target domain.Target
	Phase  domain.Phase

	// Rule is the matched rule, nil for a ruleless FILE leaf.
	Rule    *domain.Rule
	Binding map[string]string

	Edges   []*Edge
	Parents []*Edge

	// Absent records a ruleless FILE leaf that does not exist on disk
	// (§4.4 point 1, §5's "short-circuits the entire subtree to DONE with
	// absent"). It is not
	// itself an error; each referencing edge decides at rebuild-decision
	// time whether Absent is tolerable.
	Absent  bool
	ModTime time.Time

	// VariableValue holds the file content loaded for a VARIABLE-flagged
	// edge once this execution reaches DONE (§4.1, §4.4 point 4).
	VariableValue string

	// Err records the failure that moved this node to PhaseFailed.
	Err error

	// expandedEdges marks an edge whose dynamic-dependency
	// file has already been parsed and merged, so a later scheduler tick
	// does not re-expand it.
	expandedEdges map[*Edge]bool
}

// Edge is one dependency relationship discovered during enumeration: the
// owning Execution depends on Child, by way of zero or more peeled
// Dynamic wrappers recorded in Stack.
type Edge struct {
	Parent *Execution
	Child  *Execution

	// Stack records the Dynamic layers peeled to reach Child (§4.4 point
	// 3); Stack.Depth() equals Child.Target.Depth for a freshly created
	// edge. An edge made by dynamic expansion carries the layers that
	// remain after the expanded one is consumed, so expanding a depth-d
	// list yields edges of depth d-1 (§4.4 "Dynamic expansion").
	Stack domain.FlagStack

	// Flags is the innermost Direct dependency's own flag set, plus (for
	// an edge synthesized by dynamic expansion) the transitive flags
	// inherited from the expansion's originating Flag Stack.
	Flags domain.Flags
	Place domain.Place

	IsVariable   bool
	VariableName string
}

// HasFlag reports whether the edge's effective (direct plus inherited
// transitive) flags include mask.
func (e *Edge) HasFlag(mask domain.Flags) bool {
	return e.Flags.Has(mask)
}

func newExecution(t domain.Target) *Execution {
	return &Execution{Target: t, Phase: domain.PhaseInit, Binding: map[string]string{}}
}

func (e *Execution) markExpanded(edge *Edge) {
	if e.expandedEdges == nil {
		e.expandedEdges = make(map[*Edge]bool)
	}
	e.expandedEdges[edge] = true
}

func (e *Execution) isExpanded(edge *Edge) bool {
	return e.expandedEdges != nil && e.expandedEdges[edge]
}
