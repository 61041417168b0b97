package merkle

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func testLeaves(n int, seed byte) []chainhash.Hash {
	leaves := make([]chainhash.Hash, n)
	for i := range leaves {
		leaves[i] = chainhash.DoubleHashH([]byte{seed, byte(i), byte(i >> 8)})
	}
	return leaves
}

func TestRootHashEmpty(t *testing.T) {
	root, mutated := RootHash(nil)
	assert.Equal(t, chainhash.Hash{}, root)
	assert.False(t, mutated)
}

func TestRootHashSingleLeaf(t *testing.T) {
	leaf := chainhash.DoubleHashH([]byte("tx"))
	root, mutated := RootHash([]chainhash.Hash{leaf})
	assert.Equal(t, leaf, root)
	assert.False(t, mutated)
}

func TestRootHashPair(t *testing.T) {
	leaves := testLeaves(2, 1)
	root, mutated := RootHash(leaves)
	assert.Equal(t, hashConcat(leaves[0], leaves[1]), root)
	assert.False(t, mutated)
}

func TestRootHashOddLeafCount(t *testing.T) {
	// the last leaf is duplicated; this is not a mutation
	leaves := testLeaves(3, 2)
	root, mutated := RootHash(leaves)
	assert.False(t, mutated)

	want := hashConcat(
		hashConcat(leaves[0], leaves[1]),
		hashConcat(leaves[2], leaves[2]),
	)
	assert.Equal(t, want, root)
}

func TestRootHashDetectsMutation(t *testing.T) {
	// appending a copy of the last pair produces the same root as a 6-leaf
	// list over the first six leaves (CVE-2012-2459); the flag must report
	// the ambiguity
	six := testLeaves(6, 3)
	dup := append(testLeaves(6, 3), six[4], six[5])

	sixRoot, mutated := RootHash(six)
	require.False(t, mutated)

	dupRoot, mutated := RootHash(dup)
	assert.True(t, mutated)
	assert.Equal(t, sixRoot, dupRoot)
}

func TestRootHashInputNotMutated(t *testing.T) {
	leaves := testLeaves(5, 4)
	snapshot := make([]chainhash.Hash, len(leaves))
	copy(snapshot, leaves)

	_, _ = RootHash(leaves)
	assert.Equal(t, snapshot, leaves)
}

func TestRootHashDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 64).Draw(t, "n").(int)
		seed := byte(rapid.IntRange(0, 255).Draw(t, "seed").(int))

		leaves := testLeaves(n, seed)
		r1, m1 := RootHash(leaves)
		r2, m2 := RootHash(leaves)
		assert.Equal(t, r1, r2)
		assert.Equal(t, m1, m2)
	})
}

func TestRootHashOrderDependent(t *testing.T) {
	leaves := testLeaves(4, 5)
	root, _ := RootHash(leaves)

	swapped := testLeaves(4, 5)
	swapped[0], swapped[1] = swapped[1], swapped[0]
	swappedRoot, _ := RootHash(swapped)

	assert.NotEqual(t, root, swappedRoot)
}
