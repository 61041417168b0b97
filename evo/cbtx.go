package evo

import (
	"bytes"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/1NF1N18Y/dash/chain"
	"github.com/1NF1N18Y/dash/crypto/bls"
)

// Special transaction types. The type lives in the upper 16 bits of the
// transaction version; classical transactions have type 0 and no extra
// payload.
const (
	TxTypeClassical uint16 = 0
	TxTypeCoinbase  uint16 = 5
)

// maxExtraPayloadSize bounds the DIP2 payload read off the wire.
const maxExtraPayloadSize = 10000

// SpecialTx is a transaction with an optional type-specific extra payload
// appended after the classical fields.
type SpecialTx struct {
	MsgTx        wire.MsgTx
	ExtraPayload []byte
}

// TxType returns the special transaction type encoded in the version field.
func (tx *SpecialTx) TxType() uint16 {
	return uint16(uint32(tx.MsgTx.Version) >> 16)
}

func (tx *SpecialTx) Serialize(w io.Writer) error {
	if err := tx.MsgTx.BtcEncode(w, 0, wire.BaseEncoding); err != nil {
		return err
	}
	if tx.TxType() != TxTypeClassical {
		return wire.WriteVarBytes(w, 0, tx.ExtraPayload)
	}
	return nil
}

func (tx *SpecialTx) Deserialize(r io.Reader) error {
	if err := tx.MsgTx.BtcDecode(r, 0, wire.BaseEncoding); err != nil {
		return err
	}
	tx.ExtraPayload = nil
	if tx.TxType() != TxTypeClassical {
		payload, err := wire.ReadVarBytes(r, 0, maxExtraPayloadSize, "extra payload")
		if err != nil {
			return err
		}
		tx.ExtraPayload = payload
	}
	return nil
}

// TxHash computes the transaction hash over the full serialization,
// extra payload included.
func (tx *SpecialTx) TxHash() chainhash.Hash {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		panic(err)
	}
	return chainhash.DoubleHashH(buf.Bytes())
}

// Coinbase payload versions.
const (
	CbTxVersionMerkleRootMNList  uint16 = 1
	CbTxVersionMerkleRootQuorums uint16 = 2
	CbTxVersionChainlock         uint16 = 3
)

// CbTx is the payload of a coinbase special transaction: the committed
// merkle roots over the masternode and quorum sets and, from version 3 on,
// the best chainlock the miner knew of.
type CbTx struct {
	Version           uint16
	Height            uint32
	MerkleRootMNList  chainhash.Hash
	MerkleRootQuorums chainhash.Hash
	BestCLHeightDiff  uint64
	BestCLSignature   bls.Signature
}

func (cb *CbTx) Serialize(w io.Writer) error {
	if err := writeUint16(w, cb.Version); err != nil {
		return err
	}
	if err := writeUint32(w, cb.Height); err != nil {
		return err
	}
	if _, err := w.Write(cb.MerkleRootMNList[:]); err != nil {
		return err
	}
	if cb.Version >= CbTxVersionMerkleRootQuorums {
		if _, err := w.Write(cb.MerkleRootQuorums[:]); err != nil {
			return err
		}
	}
	if cb.Version >= CbTxVersionChainlock {
		if err := wire.WriteVarInt(w, 0, cb.BestCLHeightDiff); err != nil {
			return err
		}
		if _, err := w.Write(cb.BestCLSignature[:]); err != nil {
			return err
		}
	}
	return nil
}

func (cb *CbTx) Deserialize(r io.Reader) error {
	var err error
	if cb.Version, err = readUint16(r); err != nil {
		return err
	}
	if cb.Height, err = readUint32(r); err != nil {
		return err
	}
	if _, err := io.ReadFull(r, cb.MerkleRootMNList[:]); err != nil {
		return err
	}
	cb.MerkleRootQuorums = chainhash.Hash{}
	if cb.Version >= CbTxVersionMerkleRootQuorums {
		if _, err := io.ReadFull(r, cb.MerkleRootQuorums[:]); err != nil {
			return err
		}
	}
	cb.BestCLHeightDiff = 0
	cb.BestCLSignature = bls.Signature{}
	if cb.Version >= CbTxVersionChainlock {
		if cb.BestCLHeightDiff, err = wire.ReadVarInt(r, 0); err != nil {
			return err
		}
		if _, err := io.ReadFull(r, cb.BestCLSignature[:]); err != nil {
			return err
		}
	}
	return nil
}

// CbTxFromTx extracts the coinbase payload from a coinbase special
// transaction.
func CbTxFromTx(tx *SpecialTx) (*CbTx, error) {
	if tx.TxType() != TxTypeCoinbase {
		return nil, fmt.Errorf("transaction type %d is not a coinbase", tx.TxType())
	}
	cb := new(CbTx)
	if err := cb.Deserialize(bytes.NewReader(tx.ExtraPayload)); err != nil {
		return nil, fmt.Errorf("decode coinbase payload: %w", err)
	}
	return cb, nil
}

// BlockStore reads full blocks (their transaction list) from storage.
type BlockStore interface {
	ReadBlock(bi *chain.BlockIndex) ([]*SpecialTx, error)
}

// coinbaseChainlock returns the chainlock signature embedded in the block's
// coinbase payload. A pre-v3 payload or a null signature yields found=false:
// early after the v20 activation, blocks legitimately carry no chainlock yet.
func coinbaseChainlock(blocks BlockStore, bi *chain.BlockIndex) (bls.Signature, bool, error) {
	txs, err := blocks.ReadBlock(bi)
	if err != nil {
		return bls.Signature{}, false, err
	}
	if len(txs) == 0 {
		return bls.Signature{}, false, fmt.Errorf("block %s has no transactions", bi.Hash)
	}
	cb, err := CbTxFromTx(txs[0])
	if err != nil {
		return bls.Signature{}, false, err
	}
	if cb.Version < CbTxVersionChainlock || cb.BestCLSignature.IsNull() {
		return bls.Signature{}, false, nil
	}
	return cb.BestCLSignature, true, nil
}

func writeUint32(w io.Writer, v uint32) error {
	_, err := w.Write([]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24, nil
}
