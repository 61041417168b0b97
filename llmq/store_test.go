package llmq

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dbm "github.com/tendermint/tm-db"

	"github.com/1NF1N18Y/dash/chain"
	"github.com/1NF1N18Y/dash/crypto/bls"
)

func testChain(t *testing.T, n int) (*chain.Index, []*chain.BlockIndex) {
	t.Helper()

	idx := chain.NewIndex()
	blocks := make([]*chain.BlockIndex, n)
	for i := 0; i < n; i++ {
		blocks[i] = idx.Connect(chainhash.DoubleHashH([]byte{0xb1, byte(i), byte(i >> 8)}))
	}
	return idx, blocks
}

func TestCommitmentStoreLookup(t *testing.T) {
	store := NewCommitmentStore(dbm.NewMemDB())

	fc := testCommitment(t, LLMQTypeTest, CommitmentVersionBasic, 0)
	minedHash := chainhash.DoubleHashH([]byte("mined"))
	require.NoError(t, store.AddCommitment(fc, minedHash, 10))

	got, gotMined, err := store.GetMinedCommitment(fc.Type, fc.QuorumHash)
	require.NoError(t, err)
	assert.Equal(t, fc, got)
	assert.Equal(t, minedHash, gotMined)

	missing, err := store.MinedCommitment(fc.Type, chainhash.DoubleHashH([]byte("other")))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCommitmentStoreRejectsMalformed(t *testing.T) {
	store := NewCommitmentStore(dbm.NewMemDB())

	fc := testCommitment(t, LLMQTypeTest, CommitmentVersionBasic, 0)
	fc.QuorumSig = bls.Signature{}
	assert.Error(t, store.AddCommitment(fc, chainhash.Hash{}, 1))
}

func TestCommitmentStoreActiveRefs(t *testing.T) {
	store := NewCommitmentStore(dbm.NewMemDB())
	_, blocks := testChain(t, 40)

	// llmq_test keeps 2 active quorums; mine 3 at heights 5, 10, 20
	var mined []*FinalCommitment
	for i, height := range []int32{5, 10, 20} {
		fc := testCommitment(t, LLMQTypeTest, CommitmentVersionBasic, 0)
		fc.QuorumHash = chainhash.DoubleHashH([]byte{0xaa, byte(i)})
		require.NoError(t, store.AddCommitment(fc, blocks[height].Hash, height))
		mined = append(mined, fc)
	}

	// below the first commitment: nothing active
	refs, err := store.ActiveCommitmentRefs(blocks[4])
	require.NoError(t, err)
	assert.Empty(t, refs)

	// after the first: only it
	refs, err = store.ActiveCommitmentRefs(blocks[5])
	require.NoError(t, err)
	assert.Equal(t, []QuorumRef{mined[0].Ref()}, refs)

	// after two: both, oldest first
	refs, err = store.ActiveCommitmentRefs(blocks[15])
	require.NoError(t, err)
	assert.Equal(t, []QuorumRef{mined[0].Ref(), mined[1].Ref()}, refs)

	// after all three: the newest two only
	refs, err = store.ActiveCommitmentRefs(blocks[30])
	require.NoError(t, err)
	assert.Equal(t, []QuorumRef{mined[1].Ref(), mined[2].Ref()}, refs)
}

func TestCommitmentStoreActiveRefsGroupedByType(t *testing.T) {
	store := NewCommitmentStore(dbm.NewMemDB())
	_, blocks := testChain(t, 10)

	// mine the higher type first; enumeration must still come back in
	// ascending type order
	fcTest := testCommitment(t, LLMQTypeTest, CommitmentVersionBasic, 0)
	require.NoError(t, store.AddCommitment(fcTest, blocks[2].Hash, 2))

	fc5060 := testCommitment(t, LLMQType50_60, CommitmentVersionBasic, 0)
	require.NoError(t, store.AddCommitment(fc5060, blocks[3].Hash, 3))

	refs, err := store.ActiveCommitmentRefs(blocks[9])
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, fc5060.Ref(), refs[0])
	assert.Equal(t, fcTest.Ref(), refs[1])
}
