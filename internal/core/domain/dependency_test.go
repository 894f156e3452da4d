package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.stu.dev/stu/internal/core/domain"
)

func direct(name string, flags domain.Flags) *domain.Direct {
	return &domain.Direct{
		Target: domain.ParameterizedName{Fragments: []string{name}},
		Kind:   domain.FileTarget,
		Flags:  flags,
	}
}

func TestSplitCompound_Direct(t *testing.T) {
	d := direct("a", 0)
	got := domain.SplitCompound(d)
	require.Len(t, got, 1)
	assert.Same(t, d, got[0])
}

func TestSplitCompound_CompoundDistributesFlags(t *testing.T) {
	c := &domain.Compound{
		Elements: []domain.Dependency{direct("a", 0), direct("b", domain.Trivial)},
		Flags:    domain.Optional,
	}
	got := domain.SplitCompound(c)
	require.Len(t, got, 2)

	a := got[0].(*domain.Direct)
	b := got[1].(*domain.Direct)
	assert.Equal(t, domain.Optional, a.Flags)
	assert.Equal(t, domain.Optional|domain.Trivial, b.Flags)
}

func TestSplitCompound_DynamicRewrapsChildren(t *testing.T) {
	inner := &domain.Compound{
		Elements: []domain.Dependency{direct("a", 0), direct("b", 0)},
	}
	dyn := &domain.Dynamic{Inner: inner, Flags: domain.Persistent}
	got := domain.SplitCompound(dyn)
	require.Len(t, got, 2)
	for _, g := range got {
		d, ok := g.(*domain.Dynamic)
		require.True(t, ok)
		assert.Equal(t, domain.Persistent, d.Flags)
	}
}

func TestSplitCompound_ConcatenatedIsCartesianProductWithFlagUnion(t *testing.T) {
	left := &domain.Compound{Elements: []domain.Dependency{direct("a", 0), direct("b", domain.Trivial)}}
	right := &domain.Compound{Elements: []domain.Dependency{direct("1", domain.Optional), direct("2", 0)}}
	cat := &domain.Concatenated{Elements: []domain.Dependency{left, right}}

	got := domain.SplitCompound(cat)
	require.Len(t, got, 4)

	names := make([]string, len(got))
	flags := make([]domain.Flags, len(got))
	for i, g := range got {
		d := g.(*domain.Direct)
		names[i] = d.Target.Literal()
		flags[i] = d.Flags
	}
	assert.Equal(t, []string{"1", "2", "1", "2"}, names)
	assert.Equal(t, []domain.Flags{domain.Optional, 0, domain.Trivial | domain.Optional, domain.Trivial}, flags)
}

func TestSplitCompound_RoundTripPreservesMultisetAndFlags(t *testing.T) {
	nested := &domain.Compound{
		Flags: domain.Persistent,
		Elements: []domain.Dependency{
			direct("a", domain.Trivial),
			&domain.Compound{
				Flags:    domain.Optional,
				Elements: []domain.Dependency{direct("b", 0)},
			},
		},
	}

	got := domain.SplitCompound(nested)
	require.Len(t, got, 2)

	byName := map[string]domain.Flags{}
	for _, g := range got {
		d := g.(*domain.Direct)
		byName[d.Target.Literal()] = d.Flags
	}
	assert.Equal(t, domain.Persistent|domain.Trivial, byName["a"])
	assert.Equal(t, domain.Persistent|domain.Optional, byName["b"])
}

func TestInstantiate_Direct(t *testing.T) {
	name, err := domain.NewParameterizedName([]string{"lib", ".o"}, []string{"X"})
	require.NoError(t, err)
	d := &domain.Direct{Target: name, Kind: domain.FileTarget}

	out, err := domain.Instantiate(d, map[string]string{"X": "foo"})
	require.NoError(t, err)
	assert.Equal(t, "libfoo.o", out.(*domain.Direct).Target.Literal())
}

func TestInstantiate_VariableNameCannotContainEquals(t *testing.T) {
	name, err := domain.NewParameterizedName([]string{"", ""}, []string{"X"})
	require.NoError(t, err)
	d := &domain.Direct{Target: name, Kind: domain.FileTarget, Flags: domain.Variable}

	_, err = domain.Instantiate(d, map[string]string{"X": "a=b"})
	require.Error(t, err)
}

func TestFormat_StylesDiffer(t *testing.T) {
	d := direct("foo", domain.Persistent)
	terse := domain.Format(d, domain.StyleTerse)
	out := domain.Format(d, domain.StyleOut)
	assert.Contains(t, terse, "-p")
	assert.Equal(t, "foo", out)
}

func TestIsUnparameterized(t *testing.T) {
	plain := direct("foo", 0)
	assert.True(t, domain.IsUnparameterized(plain))

	name, err := domain.NewParameterizedName([]string{"", ""}, []string{"X"})
	require.NoError(t, err)
	param := &domain.Direct{Target: name}
	assert.False(t, domain.IsUnparameterized(param))
}
