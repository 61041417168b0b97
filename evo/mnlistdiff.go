package evo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/1NF1N18Y/dash/crypto/bls"
	"github.com/1NF1N18Y/dash/crypto/merkle"
	tmbytes "github.com/1NF1N18Y/dash/libs/bytes"
	"github.com/1NF1N18Y/dash/llmq"
)

// Diff versions. Version 2 adds the chainlock signature-group table.
const (
	DiffVersionBase   uint16 = 1
	DiffVersionCLSigs uint16 = 2
)

// maxDiffListSize bounds the element counts read off the wire.
const maxDiffListSize = 1 << 20

// QuorumCLSig groups the indices (into NewQuorums) of the quorums whose DKG
// session is expected to be confirmed by the same chainlock signature. The
// null signature is a valid group key: it collects the quorums whose
// expected-signature block carries no chainlock yet.
type QuorumCLSig struct {
	Signature     bls.Signature
	QuorumIndexes []uint16
}

// SimplifiedMNListDiff carries everything a light client needs to advance
// its masternode and quorum view from the base block to the target block:
// the entry/quorum deltas, the target coinbase with its inclusion proof,
// and the chainlock correlation table.
//
// BaseBlockHash is the literal value the requesting peer supplied, zero
// sentinel included, so the peer can correlate the response with its
// request; it is never normalized to the resolved genesis hash.
type SimplifiedMNListDiff struct {
	Version       uint16
	BaseBlockHash chainhash.Hash
	BlockHash     chainhash.Hash

	DeletedMNs []chainhash.Hash
	MNList     []*SimplifiedMNListEntry

	DeletedQuorums []llmq.QuorumRef
	NewQuorums     []*llmq.FinalCommitment

	CbTx           *SpecialTx
	CbTxMerkleTree *merkle.PartialTree

	QuorumsCLSigs []QuorumCLSig
}

func (d *SimplifiedMNListDiff) Serialize(w io.Writer) error {
	if err := writeUint16(w, d.Version); err != nil {
		return err
	}
	if _, err := w.Write(d.BaseBlockHash[:]); err != nil {
		return err
	}
	if _, err := w.Write(d.BlockHash[:]); err != nil {
		return err
	}

	if err := wire.WriteVarInt(w, 0, uint64(len(d.DeletedMNs))); err != nil {
		return err
	}
	for i := range d.DeletedMNs {
		if _, err := w.Write(d.DeletedMNs[i][:]); err != nil {
			return err
		}
	}
	if err := wire.WriteVarInt(w, 0, uint64(len(d.MNList))); err != nil {
		return err
	}
	for _, e := range d.MNList {
		if err := e.Serialize(w); err != nil {
			return err
		}
	}

	if err := wire.WriteVarInt(w, 0, uint64(len(d.DeletedQuorums))); err != nil {
		return err
	}
	for _, ref := range d.DeletedQuorums {
		if err := ref.Serialize(w); err != nil {
			return err
		}
	}
	if err := wire.WriteVarInt(w, 0, uint64(len(d.NewQuorums))); err != nil {
		return err
	}
	for _, fc := range d.NewQuorums {
		if err := fc.Serialize(w); err != nil {
			return err
		}
	}

	if err := d.CbTx.Serialize(w); err != nil {
		return err
	}
	if err := d.CbTxMerkleTree.Serialize(w); err != nil {
		return err
	}

	if d.Version >= DiffVersionCLSigs {
		if err := wire.WriteVarInt(w, 0, uint64(len(d.QuorumsCLSigs))); err != nil {
			return err
		}
		for _, group := range d.QuorumsCLSigs {
			if _, err := w.Write(group.Signature[:]); err != nil {
				return err
			}
			if err := wire.WriteVarInt(w, 0, uint64(len(group.QuorumIndexes))); err != nil {
				return err
			}
			for _, idx := range group.QuorumIndexes {
				if err := writeUint16(w, idx); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (d *SimplifiedMNListDiff) Deserialize(r io.Reader) error {
	var err error
	if d.Version, err = readUint16(r); err != nil {
		return err
	}
	if _, err := io.ReadFull(r, d.BaseBlockHash[:]); err != nil {
		return err
	}
	if _, err := io.ReadFull(r, d.BlockHash[:]); err != nil {
		return err
	}

	count, err := readListSize(r)
	if err != nil {
		return err
	}
	d.DeletedMNs = make([]chainhash.Hash, count)
	for i := range d.DeletedMNs {
		if _, err := io.ReadFull(r, d.DeletedMNs[i][:]); err != nil {
			return err
		}
	}

	if count, err = readListSize(r); err != nil {
		return err
	}
	d.MNList = make([]*SimplifiedMNListEntry, count)
	for i := range d.MNList {
		d.MNList[i] = new(SimplifiedMNListEntry)
		if err := d.MNList[i].Deserialize(r); err != nil {
			return err
		}
	}

	if count, err = readListSize(r); err != nil {
		return err
	}
	d.DeletedQuorums = make([]llmq.QuorumRef, count)
	for i := range d.DeletedQuorums {
		if err := d.DeletedQuorums[i].Deserialize(r); err != nil {
			return err
		}
	}

	if count, err = readListSize(r); err != nil {
		return err
	}
	d.NewQuorums = make([]*llmq.FinalCommitment, count)
	for i := range d.NewQuorums {
		d.NewQuorums[i] = new(llmq.FinalCommitment)
		if err := d.NewQuorums[i].Deserialize(r); err != nil {
			return err
		}
	}

	d.CbTx = new(SpecialTx)
	if err := d.CbTx.Deserialize(r); err != nil {
		return err
	}
	d.CbTxMerkleTree = new(merkle.PartialTree)
	if err := d.CbTxMerkleTree.Deserialize(r); err != nil {
		return err
	}

	d.QuorumsCLSigs = nil
	if d.Version >= DiffVersionCLSigs {
		if count, err = readListSize(r); err != nil {
			return err
		}
		d.QuorumsCLSigs = make([]QuorumCLSig, count)
		for i := range d.QuorumsCLSigs {
			if _, err := io.ReadFull(r, d.QuorumsCLSigs[i].Signature[:]); err != nil {
				return err
			}
			idxCount, err := readListSize(r)
			if err != nil {
				return err
			}
			d.QuorumsCLSigs[i].QuorumIndexes = make([]uint16, idxCount)
			for j := range d.QuorumsCLSigs[i].QuorumIndexes {
				if d.QuorumsCLSigs[i].QuorumIndexes[j], err = readUint16(r); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func readListSize(r io.Reader) (uint64, error) {
	count, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return 0, err
	}
	if count > maxDiffListSize {
		return 0, fmt.Errorf("list claims %d elements", count)
	}
	return count, nil
}

// ValidateBasic performs stateless validation of a (typically decoded) diff.
func (d *SimplifiedMNListDiff) ValidateBasic() error {
	if d.Version < DiffVersionBase || d.Version > DiffVersionCLSigs {
		return fmt.Errorf("unknown diff version %d", d.Version)
	}
	for _, e := range d.MNList {
		if err := e.ValidateBasic(); err != nil {
			return fmt.Errorf("entry %s: %w", e.ProRegTxHash, err)
		}
	}
	for _, fc := range d.NewQuorums {
		if err := fc.ValidateBasic(); err != nil {
			return fmt.Errorf("new quorum %s: %w", fc.Ref(), err)
		}
	}
	if d.CbTx == nil {
		return errors.New("missing coinbase transaction")
	}
	if d.CbTx.TxType() != TxTypeCoinbase {
		return fmt.Errorf("first transaction has type %d, want coinbase", d.CbTx.TxType())
	}
	if d.CbTxMerkleTree == nil || d.CbTxMerkleTree.NumTransactions() == 0 {
		return errors.New("missing coinbase inclusion proof")
	}
	if len(d.QuorumsCLSigs) > 0 {
		// every new quorum index must appear in exactly one group
		seen := make(map[uint16]bool, len(d.NewQuorums))
		for _, group := range d.QuorumsCLSigs {
			for _, idx := range group.QuorumIndexes {
				if int(idx) >= len(d.NewQuorums) {
					return fmt.Errorf("chainlock group index %d out of range", idx)
				}
				if seen[idx] {
					return fmt.Errorf("chainlock group index %d appears twice", idx)
				}
				seen[idx] = true
			}
		}
		if len(seen) != len(d.NewQuorums) {
			return fmt.Errorf("chainlock groups cover %d of %d new quorums", len(seen), len(d.NewQuorums))
		}
	}
	return nil
}

type simplifiedMNListDiffJSON struct {
	Version           uint16               `json:"nVersion"`
	BaseBlockHash     string               `json:"baseBlockHash"`
	BlockHash         string               `json:"blockHash"`
	CbTxMerkleTree    tmbytes.HexBytes     `json:"cbTxMerkleTree"`
	CbTx              tmbytes.HexBytes     `json:"cbTx"`
	DeletedMNs        []string             `json:"deletedMNs"`
	MNList            []json.RawMessage    `json:"mnList"`
	DeletedQuorums    []deletedQuorumJSON  `json:"deletedQuorums"`
	NewQuorums        []*llmq.FinalCommitment `json:"newQuorums"`
	MerkleRootMNList  string               `json:"merkleRootMNList,omitempty"`
	MerkleRootQuorums string               `json:"merkleRootQuorums,omitempty"`
	QuorumsCLSigs     []map[string][]uint16 `json:"quorumsCLSigs"`
}

type deletedQuorumJSON struct {
	LLMQType   uint8  `json:"llmqType"`
	QuorumHash string `json:"quorumHash"`
}

// ToJSON renders the diff for the RPC surface.
func (d *SimplifiedMNListDiff) ToJSON(net *chaincfg.Params, extended bool) ([]byte, error) {
	var treeBuf, txBuf bytes.Buffer
	if err := d.CbTxMerkleTree.Serialize(&treeBuf); err != nil {
		return nil, err
	}
	if err := d.CbTx.Serialize(&txBuf); err != nil {
		return nil, err
	}

	obj := simplifiedMNListDiffJSON{
		Version:        d.Version,
		BaseBlockHash:  d.BaseBlockHash.String(),
		BlockHash:      d.BlockHash.String(),
		CbTxMerkleTree: treeBuf.Bytes(),
		CbTx:           txBuf.Bytes(),
		DeletedMNs:     make([]string, 0, len(d.DeletedMNs)),
		MNList:         make([]json.RawMessage, 0, len(d.MNList)),
		DeletedQuorums: make([]deletedQuorumJSON, 0, len(d.DeletedQuorums)),
		NewQuorums:     d.NewQuorums,
		QuorumsCLSigs:  make([]map[string][]uint16, 0, len(d.QuorumsCLSigs)),
	}
	if obj.NewQuorums == nil {
		obj.NewQuorums = []*llmq.FinalCommitment{}
	}

	for i := range d.DeletedMNs {
		obj.DeletedMNs = append(obj.DeletedMNs, d.DeletedMNs[i].String())
	}
	for _, e := range d.MNList {
		bz, err := e.ToJSON(net, extended)
		if err != nil {
			return nil, err
		}
		obj.MNList = append(obj.MNList, bz)
	}
	for _, ref := range d.DeletedQuorums {
		obj.DeletedQuorums = append(obj.DeletedQuorums, deletedQuorumJSON{
			LLMQType:   uint8(ref.Type),
			QuorumHash: ref.QuorumHash.String(),
		})
	}

	if cb, err := CbTxFromTx(d.CbTx); err == nil {
		obj.MerkleRootMNList = cb.MerkleRootMNList.String()
		if cb.Version >= CbTxVersionMerkleRootQuorums {
			obj.MerkleRootQuorums = cb.MerkleRootQuorums.String()
		}
	}

	for _, group := range d.QuorumsCLSigs {
		obj.QuorumsCLSigs = append(obj.QuorumsCLSigs, map[string][]uint16{
			group.Signature.String(): group.QuorumIndexes,
		})
	}

	return json.Marshal(obj)
}
