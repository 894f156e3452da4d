package ruleset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.stu.dev/stu/internal/core/domain"
	"go.stu.dev/stu/internal/ruleset"
)

func literalTarget(t *testing.T, kind domain.Kind, s string) domain.RuleTarget {
	t.Helper()
	n, err := domain.NewParameterizedName([]string{s}, nil)
	require.NoError(t, err)
	return domain.RuleTarget{Kind: kind, Name: n}
}

func paramTarget(t *testing.T, kind domain.Kind, fragments, params []string) domain.RuleTarget {
	t.Helper()
	n, err := domain.NewParameterizedName(fragments, params)
	require.NoError(t, err)
	return domain.RuleTarget{Kind: kind, Name: n}
}

func newTarget(kind domain.Kind, name string) domain.Target {
	return domain.Target{Kind: kind, Name: domain.NewInternedString(name)}
}

func TestLookup_ExactUnparameterized(t *testing.T) {
	rs := ruleset.New()
	r := &domain.Rule{Targets: []domain.RuleTarget{literalTarget(t, domain.FileTarget, "main.o")}}
	require.NoError(t, rs.Add(r))

	res, err := rs.Lookup(newTarget(domain.FileTarget, "main.o"))
	require.NoError(t, err)
	assert.Same(t, r, res.Rule)
	assert.Empty(t, res.Binding)
}

func TestLookup_NoRule(t *testing.T) {
	rs := ruleset.New()
	_, err := rs.Lookup(newTarget(domain.FileTarget, "missing.o"))
	require.ErrorIs(t, err, domain.ErrNoRule)
}

func TestAdd_DuplicateUnparameterizedRejected(t *testing.T) {
	rs := ruleset.New()
	r1 := &domain.Rule{Targets: []domain.RuleTarget{literalTarget(t, domain.FileTarget, "a")}}
	r2 := &domain.Rule{Targets: []domain.RuleTarget{literalTarget(t, domain.FileTarget, "a")}}
	require.NoError(t, rs.Add(r1))
	require.ErrorIs(t, rs.Add(r2), ruleset.ErrDuplicateUnparameterizedRule)
}

func TestLookup_ParameterizedBindsSingleParam(t *testing.T) {
	rs := ruleset.New()
	r := &domain.Rule{
		Targets: []domain.RuleTarget{paramTarget(t, domain.FileTarget, []string{"", ".o"}, []string{"X"})},
	}
	require.NoError(t, rs.Add(r))

	res, err := rs.Lookup(newTarget(domain.FileTarget, "foo.o"))
	require.NoError(t, err)
	assert.Same(t, r, res.Rule)
	assert.Equal(t, map[string]string{"X": "foo"}, res.Binding)
}

func TestLookup_ParameterizedBindsMultipleParamsGreedily(t *testing.T) {
	rs := ruleset.New()
	r := &domain.Rule{
		Targets: []domain.RuleTarget{paramTarget(t, domain.FileTarget, []string{"lib", "-", ".a"}, []string{"X", "Y"})},
	}
	require.NoError(t, rs.Add(r))

	res, err := rs.Lookup(newTarget(domain.FileTarget, "libfoo-bar-1.2.a"))
	require.NoError(t, err)
	assert.Equal(t, "foo-bar", res.Binding["X"])
	assert.Equal(t, "1.2", res.Binding["Y"])
}

func TestLookup_AmbiguousParameterizedRules(t *testing.T) {
	rs := ruleset.New()
	r1 := &domain.Rule{
		Targets: []domain.RuleTarget{paramTarget(t, domain.FileTarget, []string{"", ".o"}, []string{"X"})},
	}
	r2 := &domain.Rule{
		Targets: []domain.RuleTarget{paramTarget(t, domain.FileTarget, []string{"f", ""}, []string{"Y"})},
	}
	require.NoError(t, rs.Add(r1))
	require.NoError(t, rs.Add(r2))

	_, err := rs.Lookup(newTarget(domain.FileTarget, "foo.o"))
	require.ErrorIs(t, err, domain.ErrAmbiguousRule)
}

func TestLookup_SlashRejectedWhenTargetNameHasNoSlash(t *testing.T) {
	rs := ruleset.New()
	r := &domain.Rule{
		Targets: []domain.RuleTarget{paramTarget(t, domain.FileTarget, []string{"", ".o"}, []string{"X"})},
	}
	require.NoError(t, rs.Add(r))

	_, err := rs.Lookup(newTarget(domain.FileTarget, "a/b.o"))
	require.ErrorIs(t, err, domain.ErrNoRule)
}

func TestLookup_SlashAllowedWhenTargetNameHasSlash(t *testing.T) {
	rs := ruleset.New()
	r := &domain.Rule{
		Targets: []domain.RuleTarget{paramTarget(t, domain.FileTarget, []string{"src/", ".o"}, []string{"X"})},
	}
	require.NoError(t, rs.Add(r))

	res, err := rs.Lookup(newTarget(domain.FileTarget, "src/a/b.o"))
	require.NoError(t, err)
	assert.Equal(t, "a/b", res.Binding["X"])
}

func TestLookup_KindMustMatch(t *testing.T) {
	rs := ruleset.New()
	r := &domain.Rule{Targets: []domain.RuleTarget{literalTarget(t, domain.TransientTarget, "all")}}
	require.NoError(t, rs.Add(r))

	_, err := rs.Lookup(newTarget(domain.FileTarget, "all"))
	require.ErrorIs(t, err, domain.ErrNoRule)
}
