package merkle

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestPartialTreeCoinbaseOnly(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 8, 13} {
		leaves := testLeaves(n, 7)
		matches := make([]bool, n)
		matches[0] = true

		pt := NewPartialTree(leaves, matches)
		require.Equal(t, uint32(n), pt.NumTransactions())

		root, matched, indices, err := pt.ExtractMatches()
		require.NoError(t, err)

		wantRoot, _ := RootHash(leaves)
		assert.Equal(t, wantRoot, root, "n=%d", n)
		assert.Equal(t, []chainhash.Hash{leaves[0]}, matched)
		assert.Equal(t, []uint32{0}, indices)
	}
}

func TestPartialTreeNoMatches(t *testing.T) {
	leaves := testLeaves(6, 8)
	pt := NewPartialTree(leaves, make([]bool, 6))

	root, matched, indices, err := pt.ExtractMatches()
	require.NoError(t, err)

	wantRoot, _ := RootHash(leaves)
	assert.Equal(t, wantRoot, root)
	assert.Empty(t, matched)
	assert.Empty(t, indices)
}

func TestPartialTreeSerializeRoundTrip(t *testing.T) {
	leaves := testLeaves(9, 9)
	matches := make([]bool, 9)
	matches[0] = true
	matches[4] = true

	pt := NewPartialTree(leaves, matches)

	var buf bytes.Buffer
	require.NoError(t, pt.Serialize(&buf))
	encoded := buf.Bytes()

	var decoded PartialTree
	require.NoError(t, decoded.Deserialize(bytes.NewReader(encoded)))

	var buf2 bytes.Buffer
	require.NoError(t, decoded.Serialize(&buf2))
	assert.Equal(t, encoded, buf2.Bytes())

	root, matched, indices, err := decoded.ExtractMatches()
	require.NoError(t, err)

	wantRoot, _ := RootHash(leaves)
	assert.Equal(t, wantRoot, root)
	assert.Equal(t, []chainhash.Hash{leaves[0], leaves[4]}, matched)
	assert.Equal(t, []uint32{0, 4}, indices)
}

func TestPartialTreeEmptyRejected(t *testing.T) {
	pt := &PartialTree{}
	_, _, _, err := pt.ExtractMatches()
	assert.Error(t, err)
}

func TestPartialTreeProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 48).Draw(t, "n").(int)
		seed := byte(rapid.IntRange(0, 255).Draw(t, "seed").(int))

		matches := make([]bool, n)
		var wantMatched []chainhash.Hash
		var wantIndices []uint32

		leaves := testLeaves(n, seed)
		for i := range matches {
			matches[i] = rapid.Bool().Draw(t, "match").(bool)
			if matches[i] {
				wantMatched = append(wantMatched, leaves[i])
				wantIndices = append(wantIndices, uint32(i))
			}
		}

		pt := NewPartialTree(leaves, matches)
		root, matched, indices, err := pt.ExtractMatches()
		require.NoError(t, err)

		wantRoot, _ := RootHash(leaves)
		assert.Equal(t, wantRoot, root)
		assert.Equal(t, wantMatched, matched)
		assert.Equal(t, wantIndices, indices)
	})
}
