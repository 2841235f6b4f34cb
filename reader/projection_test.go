package reader

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllResolvesEveryLeaf(t *testing.T) {
	require.Equal(t, []int{0, 1, 2}, All().resolve(3))
}

func TestLeafIndexesSortsInput(t *testing.T) {
	p := LeafIndexes([]int{3, 1, 2})
	require.Equal(t, []int{1, 2, 3}, p.resolve(5))
}
