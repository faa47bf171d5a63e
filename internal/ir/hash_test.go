package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashStable(t *testing.T) {
	a := Object{"x": Int(1), "y": String("two")}
	b := Object{"y": String("two"), "x": Int(1)}

	ha, err := Hash(DomainDataset, a)
	require.NoError(t, err)
	hb, err := Hash(DomainDataset, b)
	require.NoError(t, err)

	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64)
}

func TestHashDomainSeparation(t *testing.T) {
	v := Object{"x": Int(1)}

	dataset, err := Hash(DomainDataset, v)
	require.NoError(t, err)
	build, err := Hash(DomainBuild, v)
	require.NoError(t, err)

	assert.NotEqual(t, dataset, build)
}

func TestHashChangesWithContent(t *testing.T) {
	h1, err := Hash(DomainDataset, List{Int(1)})
	require.NoError(t, err)
	h2, err := Hash(DomainDataset, List{Int(2)})
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}
