// Package format renders stu's user-visible failure reports (§7): one
// "<file>:<line>:<col>: <kind>: <message>" block per failed Execution,
// followed by indented "needed by" continuation lines walking
// Execution.Parents back toward a requested target. Grounded on the
// teacher's domain/graph.go buildCycleError path-walk (string-joining a
// walked chain of nodes) and on internal/adapters/logger's termenv color
// gating.
package format

import (
	"fmt"
	"io"
	"sort"

	"github.com/muesli/termenv"

	"go.stu.dev/stu/internal/core/domain"
	"go.stu.dev/stu/internal/engine/graph"
)

// Report writes a diagnostic block for every FAILED execution reachable
// in g to w. colorize gates ANSI color the same way internal/adapters/logger
// does: the caller decides it once, from whether its destination is a
// terminal, and passes the decision down rather than re-deriving it here.
func Report(w io.Writer, g *graph.Graph, colorize bool) {
	out := termenv.NewOutput(w, termenv.WithProfile(profile(colorize)))

	for _, exec := range failedExecutions(g) {
		writeBlock(out, exec)
	}
}

// profile picks Ascii (no escape codes) or a fixed ANSI profile rather
// than re-deriving color support from the environment: the caller has
// already made that call once (isatty on its destination, §7 "Color is
// applied only if stderr is a terminal") and handing it a bool keeps this
// package deterministic to test.
func profile(colorize bool) termenv.Profile {
	if !colorize {
		return termenv.Ascii
	}
	return termenv.ANSI
}

// failedExecutions returns every FAILED execution in the arena, sorted by
// target name so repeated runs over the same failure produce identical
// output (§8 "Rebuild determinism" extends naturally to diagnostics).
func failedExecutions(g *graph.Graph) []*graph.Execution {
	var out []*graph.Execution
	for _, exec := range g.Arena().All() {
		if exec.Phase == domain.PhaseFailed && exec.Err != nil {
			out = append(out, exec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Target.String() < out[j].Target.String()
	})
	return out
}

func kindColor(kind domain.ErrorKind) termenv.Color {
	switch kind {
	case domain.Syntax, domain.Logical:
		return termenv.ANSIRed
	case domain.Fatal:
		return termenv.ANSIMagenta
	default:
		return termenv.ANSIYellow
	}
}

func writeBlock(out *termenv.Output, exec *graph.Execution) {
	kind := domain.KindOf(exec.Err)
	place := domain.PlaceOf(exec.Err)

	marker := out.String(string(kind)).Foreground(kindColor(kind)).Bold()
	_, _ = fmt.Fprintf(out, "%s: %s: %s\n", place.String(), marker, exec.Err.Error())

	for _, line := range neededByChain(exec) {
		_, _ = fmt.Fprintf(out, "  needed by %s\n", line)
	}
}

// neededByChain walks exec's parents outward, one line per distinct
// ancestor, naming the rule place of the edge that pulled it in.
func neededByChain(exec *graph.Execution) []string {
	seen := map[*graph.Execution]bool{exec: true}
	var lines []string

	var walk func(e *graph.Execution)
	walk = func(e *graph.Execution) {
		for _, edge := range e.Parents {
			if seen[edge.Parent] {
				continue
			}
			seen[edge.Parent] = true
			lines = append(lines, fmt.Sprintf("%s (%s)", edge.Parent.Target.String(), edge.Place.String()))
			walk(edge.Parent)
		}
	}
	walk(exec)
	return lines
}
