package evo

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1NF1N18Y/dash/chain"
	"github.com/1NF1N18Y/dash/crypto/bls"
)

// makeCoinbase builds a coinbase special transaction carrying the given
// payload version. The merkle roots are filled deterministically from the
// height so distinct blocks get distinct coinbases.
func makeCoinbase(t *testing.T, payloadVersion uint16, height uint32, bestCLSig bls.Signature) *SpecialTx {
	t.Helper()

	cb := CbTx{
		Version:          payloadVersion,
		Height:           height,
		MerkleRootMNList: chainhash.DoubleHashH([]byte{'m', byte(height), byte(height >> 8)}),
	}
	if payloadVersion >= CbTxVersionMerkleRootQuorums {
		cb.MerkleRootQuorums = chainhash.DoubleHashH([]byte{'q', byte(height), byte(height >> 8)})
	}
	if payloadVersion >= CbTxVersionChainlock {
		cb.BestCLHeightDiff = 1
		cb.BestCLSignature = bestCLSig
	}

	var payload bytes.Buffer
	require.NoError(t, cb.Serialize(&payload))

	tx := &SpecialTx{ExtraPayload: payload.Bytes()}
	tx.MsgTx.Version = int32(uint32(TxTypeCoinbase)<<16 | 3)
	tx.MsgTx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: 0xffffffff},
		SignatureScript:  []byte{0x03, byte(height), byte(height >> 8), byte(height >> 16)},
		Sequence:         0xffffffff,
	})
	tx.MsgTx.AddTxOut(&wire.TxOut{Value: 500000000, PkScript: []byte{0x6a}})
	return tx
}

func TestSpecialTxRoundTrip(t *testing.T) {
	t.Run("classical", func(t *testing.T) {
		tx := &SpecialTx{}
		tx.MsgTx.Version = 2
		tx.MsgTx.AddTxIn(&wire.TxIn{SignatureScript: []byte{0x51}, Sequence: 0xffffffff})
		tx.MsgTx.AddTxOut(&wire.TxOut{Value: 1000, PkScript: []byte{0x6a}})

		var buf bytes.Buffer
		require.NoError(t, tx.Serialize(&buf))
		encoded := buf.Bytes()

		decoded := new(SpecialTx)
		require.NoError(t, decoded.Deserialize(bytes.NewReader(encoded)))
		assert.Equal(t, TxTypeClassical, decoded.TxType())
		assert.Nil(t, decoded.ExtraPayload)

		var buf2 bytes.Buffer
		require.NoError(t, decoded.Serialize(&buf2))
		assert.Equal(t, encoded, buf2.Bytes())
	})

	t.Run("coinbase", func(t *testing.T) {
		tx := makeCoinbase(t, CbTxVersionMerkleRootQuorums, 1234, bls.Signature{})

		var buf bytes.Buffer
		require.NoError(t, tx.Serialize(&buf))
		encoded := buf.Bytes()

		decoded := new(SpecialTx)
		require.NoError(t, decoded.Deserialize(bytes.NewReader(encoded)))
		assert.Equal(t, TxTypeCoinbase, decoded.TxType())
		assert.Equal(t, tx.ExtraPayload, decoded.ExtraPayload)
		assert.Equal(t, tx.TxHash(), decoded.TxHash())
	})
}

func TestCbTxRoundTrip(t *testing.T) {
	var sig bls.Signature
	sig[0] = 0xaa

	for _, version := range []uint16{
		CbTxVersionMerkleRootMNList,
		CbTxVersionMerkleRootQuorums,
		CbTxVersionChainlock,
	} {
		cb := CbTx{
			Version:          version,
			Height:           77,
			MerkleRootMNList: chainhash.DoubleHashH([]byte("mnlist")),
		}
		if version >= CbTxVersionMerkleRootQuorums {
			cb.MerkleRootQuorums = chainhash.DoubleHashH([]byte("quorums"))
		}
		if version >= CbTxVersionChainlock {
			cb.BestCLHeightDiff = 3
			cb.BestCLSignature = sig
		}

		var buf bytes.Buffer
		require.NoError(t, cb.Serialize(&buf))

		decoded := new(CbTx)
		require.NoError(t, decoded.Deserialize(bytes.NewReader(buf.Bytes())))
		assert.Equal(t, cb, *decoded, "version %d", version)
	}
}

func TestCbTxFromTx(t *testing.T) {
	tx := makeCoinbase(t, CbTxVersionChainlock, 42, bls.Signature{})
	cb, err := CbTxFromTx(tx)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), cb.Height)

	classical := &SpecialTx{}
	classical.MsgTx.Version = 2
	_, err = CbTxFromTx(classical)
	assert.Error(t, err)

	garbage := &SpecialTx{ExtraPayload: []byte{0x01}}
	garbage.MsgTx.Version = int32(uint32(TxTypeCoinbase) << 16)
	_, err = CbTxFromTx(garbage)
	assert.Error(t, err)
}

// blockStoreMap is a BlockStore backed by a map, keyed by block hash.
type blockStoreMap map[chainhash.Hash][]*SpecialTx

func (m blockStoreMap) ReadBlock(bi *chain.BlockIndex) ([]*SpecialTx, error) {
	txs, ok := m[bi.Hash]
	if !ok {
		return nil, ErrBlockNotFound{Hash: bi.Hash}
	}
	return txs, nil
}

func TestCoinbaseChainlock(t *testing.T) {
	var sig bls.Signature
	sig[0] = 0x42

	hashFor := func(b byte) chainhash.Hash { return chainhash.DoubleHashH([]byte{b}) }
	blocks := blockStoreMap{
		hashFor(1): {makeCoinbase(t, CbTxVersionMerkleRootQuorums, 1, bls.Signature{})},
		hashFor(2): {makeCoinbase(t, CbTxVersionChainlock, 2, bls.Signature{})},
		hashFor(3): {makeCoinbase(t, CbTxVersionChainlock, 3, sig)},
	}

	t.Run("PreChainlockPayload", func(t *testing.T) {
		got, found, err := coinbaseChainlock(blocks, &chain.BlockIndex{Hash: hashFor(1), Height: 1})
		require.NoError(t, err)
		assert.False(t, found)
		assert.True(t, got.IsNull())
	})

	t.Run("NullSignature", func(t *testing.T) {
		got, found, err := coinbaseChainlock(blocks, &chain.BlockIndex{Hash: hashFor(2), Height: 2})
		require.NoError(t, err)
		assert.False(t, found)
		assert.True(t, got.IsNull())
	})

	t.Run("Present", func(t *testing.T) {
		got, found, err := coinbaseChainlock(blocks, &chain.BlockIndex{Hash: hashFor(3), Height: 3})
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, sig, got)
	})

	t.Run("MissingBlock", func(t *testing.T) {
		_, _, err := coinbaseChainlock(blocks, &chain.BlockIndex{Hash: hashFor(9), Height: 9})
		assert.Error(t, err)
	})
}
