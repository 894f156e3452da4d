package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.stu.dev/stu/internal/core/domain"
)

func TestPeelDynamic_NonDynamicHasZeroDepth(t *testing.T) {
	d := direct("a", 0)
	stack, inner, err := domain.PeelDynamic(d)
	require.NoError(t, err)
	assert.Equal(t, 0, stack.Depth())
	assert.Same(t, d, inner)
	assert.Equal(t, domain.Flags(0), stack.Union())
}

func TestPeelDynamic_PeelsOutsideIn(t *testing.T) {
	leaf := direct("a", 0)
	dyn1 := &domain.Dynamic{Inner: leaf, Flags: domain.Persistent}
	dyn2 := &domain.Dynamic{Inner: dyn1, Flags: domain.Optional}

	stack, inner, err := domain.PeelDynamic(dyn2)
	require.NoError(t, err)
	assert.Equal(t, 2, stack.Depth())
	assert.Same(t, leaf, inner)
	assert.Equal(t, domain.Optional, stack.At(0))
	assert.Equal(t, domain.Persistent, stack.At(1))
	assert.Equal(t, domain.Optional|domain.Persistent, stack.Union())
}

func TestPeelDynamic_DepthOverflow(t *testing.T) {
	var dep domain.Dependency = direct("a", 0)
	for i := 0; i <= domain.MaxDepth+1; i++ {
		dep = &domain.Dynamic{Inner: dep}
	}
	_, _, err := domain.PeelDynamic(dep)
	require.Error(t, err)
}
