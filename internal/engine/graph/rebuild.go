package graph

import (
	"time"

	"go.stu.dev/stu/internal/core/domain"
)

// DecideRebuild implements §4.4's rebuild decision for a FILE target whose
// rule has a command (copy rules have their own decision, see copy.go;
// TRANSIENT targets are always rebuilt, point 3). All of exec's edges
// must already be in a terminal phase (DONE or FAILED) — the caller (the
// job scheduler) only invokes this once that holds.
//
// Missing required (non-OPTIONAL) dependencies are reported as an error
// independent of TRIVIAL: OPTIONAL governs whether a dependency must
// exist at all, TRIVIAL only governs whether its staleness alone can
// trigger a rebuild (§4.4 point 4).
func (g *Graph) DecideRebuild(exec *Execution) (bool, error) {
	if exec.Target.Kind == domain.TransientTarget {
		return true, nil // point 3
	}

	for _, edge := range exec.Edges {
		if edge.Child.Absent && !edge.HasFlag(domain.Optional) {
			return false, domain.NewLogicalError(edge.Place, "required dependency "+edge.Child.Target.String()+" does not exist")
		}
	}

	info, exists, err := g.fs.Stat(exec.Target.Name.String())
	if err != nil {
		return false, err
	}
	if !exists {
		return true, nil // point 1
	}
	selfModTime := info.ModTime

	// Pass 1: does any non-trivial, timestamp-significant edge demand a
	// rebuild on its own?
	nonTrivialDemands := false
	for _, edge := range exec.Edges {
		if edge.HasFlag(domain.Trivial) {
			continue
		}
		if edgeDemandsRebuild(edge, selfModTime) {
			nonTrivialDemands = true
			break
		}
	}

	// Pass 2: a trivial edge never independently triggers a rebuild, but
	// once one is happening anyway for another reason, mark it
	// OVERRIDE_TRIVIAL so diagnostics don't claim it was the cause while
	// also not hiding that it too was stale (§4.4 point 4).
	if nonTrivialDemands {
		for _, edge := range exec.Edges {
			if edge.HasFlag(domain.Trivial) && edgeDemandsRebuild(edge, selfModTime) {
				edge.Flags |= domain.OverrideTrivial
			}
		}
	}

	return nonTrivialDemands, nil
}

// RecordModTime updates exec.ModTime once its rule-driven action has
// settled (a fresh run or a cache hit), so a dependent's rebuild decision
// (edgeDemandsRebuild) has something other than the zero value to compare
// against. enumerateRuleless is the only other place ModTime is assigned,
// and only for a ruleless FILE leaf — every rule-backed target (command,
// copy, or hardcoded-content) must go through here instead. A FILE
// target's mtime comes straight from disk; a TRANSIENT target has none of
// its own, so §4.4 point 3 defines it as the newest of its children's.
func (g *Graph) RecordModTime(exec *Execution) error {
	if exec.Target.Kind == domain.TransientTarget {
		var latest time.Time
		for _, edge := range exec.Edges {
			if edge.Child.ModTime.After(latest) {
				latest = edge.Child.ModTime
			}
		}
		exec.ModTime = latest
		return nil
	}

	info, exists, err := g.fs.Stat(exec.Target.Name.String())
	if err != nil {
		return err
	}
	if exists {
		exec.ModTime = info.ModTime
	}
	return nil
}

// edgeDemandsRebuild reports whether edge's child, by its mtime alone,
// would force a rebuild (§4.4 point 2): PERSISTENT and IGNORE_TIMESTAMP
// edges are excluded from the comparison entirely, and a tolerated
// (OPTIONAL) absence never forces one.
func edgeDemandsRebuild(edge *Edge, selfModTime time.Time) bool {
	if edge.HasFlag(domain.Persistent) || edge.HasFlag(domain.IgnoreTimestamp) {
		return false
	}
	if edge.Child.Absent {
		return false
	}
	return edge.Child.ModTime.After(selfModTime)
}
