package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.stu.dev/stu/internal/core/domain"
	"go.stu.dev/stu/internal/engine/graph"
	"go.stu.dev/stu/internal/ruleset"
)

func literalName(t *testing.T, s string) domain.ParameterizedName {
	t.Helper()
	n, err := domain.NewParameterizedName([]string{s}, nil)
	require.NoError(t, err)
	return n
}

func ruleTarget(t *testing.T, kind domain.Kind, s string) domain.RuleTarget {
	t.Helper()
	return domain.RuleTarget{Kind: kind, Name: literalName(t, s)}
}

func directDep(t *testing.T, kind domain.Kind, s string, flags domain.Flags) domain.Dependency {
	t.Helper()
	return &domain.Direct{Target: literalName(t, s), Kind: kind, Flags: flags}
}

func TestEnumerate_RulelessFileLeaf_Present(t *testing.T) {
	fs := newFakeFS()
	fs.set("leaf.txt", "hi", fakeClock)

	g := graph.New(ruleset.New(), fs)
	exec := g.Root(domain.FileTarget, "leaf.txt")

	require.NoError(t, g.Enumerate(exec))
	assert.Equal(t, domain.PhaseDone, exec.Phase)
	assert.False(t, exec.Absent)
}

func TestEnumerate_RulelessFileLeaf_Missing(t *testing.T) {
	g := graph.New(ruleset.New(), newFakeFS())
	exec := g.Root(domain.FileTarget, "missing.txt")

	require.NoError(t, g.Enumerate(exec))
	assert.Equal(t, domain.PhaseDone, exec.Phase)
	assert.True(t, exec.Absent)
}

func TestEnumerate_TransientWithNoRule_Fails(t *testing.T) {
	g := graph.New(ruleset.New(), newFakeFS())
	exec := g.Root(domain.TransientTarget, "all")

	err := g.Enumerate(exec)
	require.Error(t, err)
	assert.Equal(t, domain.PhaseFailed, exec.Phase)
}

func TestEnumerate_RuleWithDeps_BuildsEdges(t *testing.T) {
	rs := ruleset.New()
	r := &domain.Rule{
		Targets: []domain.RuleTarget{ruleTarget(t, domain.FileTarget, "out")},
		Deps:    directDep(t, domain.FileTarget, "in", 0),
		Command: "cp in out",
	}
	require.NoError(t, rs.Add(r))

	fs := newFakeFS()
	fs.set("in", "data", fakeClock)

	g := graph.New(rs, fs)
	exec := g.Root(domain.FileTarget, "out")
	require.NoError(t, g.Enumerate(exec))

	require.Len(t, exec.Edges, 1)
	assert.Equal(t, domain.PhaseWaiting, exec.Phase)
	assert.Equal(t, "in", exec.Edges[0].Child.Target.Name.String())
	assert.Same(t, exec, exec.Edges[0].Child.Parents[0].Parent)
}

func TestEnumerate_SharedChild_IsInternedOnce(t *testing.T) {
	rs := ruleset.New()
	dep := directDep(t, domain.FileTarget, "shared", 0)
	r1 := &domain.Rule{Targets: []domain.RuleTarget{ruleTarget(t, domain.FileTarget, "a")}, Deps: dep, Command: "x"}
	r2 := &domain.Rule{Targets: []domain.RuleTarget{ruleTarget(t, domain.FileTarget, "b")}, Deps: dep, Command: "x"}
	require.NoError(t, rs.Add(r1))
	require.NoError(t, rs.Add(r2))

	fs := newFakeFS()
	fs.set("shared", "x", fakeClock)

	g := graph.New(rs, fs)
	execA := g.Root(domain.FileTarget, "a")
	execB := g.Root(domain.FileTarget, "b")
	require.NoError(t, g.Enumerate(execA))
	require.NoError(t, g.Enumerate(execB))

	assert.Same(t, execA.Edges[0].Child, execB.Edges[0].Child)
	assert.Equal(t, 3, g.Arena().Len()) // a, b, and one shared child
}
