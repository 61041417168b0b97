package llmq

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/google/orderedcode"
	dbm "github.com/tendermint/tm-db"

	"github.com/1NF1N18Y/dash/chain"
)

// Key prefixes. Commitments are stored twice: under their (type, hash)
// identity for point lookups, and under (type, height, hash) for ordered
// active-set enumeration.
const (
	prefixCommitment = "c"
	prefixActive     = "a"
)

// CommitmentStore persists mined final commitments and serves the active-set
// and point-lookup reads the diff builder needs. Writes happen at block
// connect time, under the chain-state lock; reads are safe for concurrent
// readers.
type CommitmentStore struct {
	mtx sync.RWMutex
	db  dbm.DB
}

func NewCommitmentStore(db dbm.DB) *CommitmentStore {
	return &CommitmentStore{db: db}
}

var _ Source = (*CommitmentStore)(nil)

// AddCommitment stores a mined commitment together with the hash and height
// of the block that mined it. Malformed commitments are rejected.
func (s *CommitmentStore) AddCommitment(fc *FinalCommitment, minedBlockHash chainhash.Hash, height int32) error {
	if err := fc.ValidateBasic(); err != nil {
		return fmt.Errorf("refusing to store commitment %s: %w", fc.Ref(), err)
	}

	var val bytes.Buffer
	val.Write(minedBlockHash[:])
	if err := fc.Serialize(&val); err != nil {
		return err
	}

	ckey, err := commitmentKey(fc.Type, fc.QuorumHash)
	if err != nil {
		return err
	}
	akey, err := activeKey(fc.Type, height, fc.QuorumHash)
	if err != nil {
		return err
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(ckey, val.Bytes()); err != nil {
		return err
	}
	if err := batch.Set(akey, fc.QuorumHash[:]); err != nil {
		return err
	}
	return batch.WriteSync()
}

// MinedCommitment implements Source. It returns (nil, nil) when no
// commitment is stored for the ref.
func (s *CommitmentStore) MinedCommitment(t LLMQType, quorumHash chainhash.Hash) (*FinalCommitment, error) {
	fc, _, err := s.GetMinedCommitment(t, quorumHash)
	return fc, err
}

// GetMinedCommitment returns the stored commitment for the ref and the hash
// of the block that mined it.
func (s *CommitmentStore) GetMinedCommitment(t LLMQType, quorumHash chainhash.Hash) (*FinalCommitment, chainhash.Hash, error) {
	key, err := commitmentKey(t, quorumHash)
	if err != nil {
		return nil, chainhash.Hash{}, err
	}

	s.mtx.RLock()
	defer s.mtx.RUnlock()

	val, err := s.db.Get(key)
	if err != nil {
		return nil, chainhash.Hash{}, err
	}
	if val == nil {
		return nil, chainhash.Hash{}, nil
	}
	if len(val) < chainhash.HashSize {
		return nil, chainhash.Hash{}, fmt.Errorf("corrupt commitment record for %s:%s", t, quorumHash)
	}

	var minedBlockHash chainhash.Hash
	copy(minedBlockHash[:], val[:chainhash.HashSize])

	fc := new(FinalCommitment)
	if err := fc.Deserialize(bytes.NewReader(val[chainhash.HashSize:])); err != nil {
		return nil, chainhash.Hash{}, fmt.Errorf("corrupt commitment record for %s:%s: %w", t, quorumHash, err)
	}
	return fc, minedBlockHash, nil
}

// ActiveCommitmentRefs implements Source: per quorum kind, the newest
// SigningActiveQuorumCount commitments mined at or below bi's height, in
// ascending type order and oldest first within a type.
func (s *CommitmentStore) ActiveCommitmentRefs(bi *chain.BlockIndex) ([]QuorumRef, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	var refs []QuorumRef
	for _, t := range Types() {
		params, _ := GetLLMQParams(t)

		typeRefs, err := s.activeRefsForType(t, bi.Height, params.SigningActiveQuorumCount)
		if err != nil {
			return nil, err
		}
		refs = append(refs, typeRefs...)
	}
	return refs, nil
}

func (s *CommitmentStore) activeRefsForType(t LLMQType, height int32, count int) ([]QuorumRef, error) {
	start, err := orderedcode.Append(nil, prefixActive, uint64(t))
	if err != nil {
		return nil, err
	}
	end, err := orderedcode.Append(nil, prefixActive, uint64(t), int64(height)+1)
	if err != nil {
		return nil, err
	}

	it, err := s.db.ReverseIterator(start, end)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	// newest first off the iterator, reversed below
	var newest []QuorumRef
	for ; it.Valid() && len(newest) < count; it.Next() {
		hash, err := chainhash.NewHash(it.Value())
		if err != nil {
			return nil, err
		}
		newest = append(newest, QuorumRef{Type: t, QuorumHash: *hash})
	}
	if err := it.Error(); err != nil {
		return nil, err
	}

	refs := make([]QuorumRef, 0, len(newest))
	for i := len(newest) - 1; i >= 0; i-- {
		refs = append(refs, newest[i])
	}
	return refs, nil
}

func commitmentKey(t LLMQType, quorumHash chainhash.Hash) ([]byte, error) {
	return orderedcode.Append(nil, prefixCommitment, uint64(t), string(quorumHash[:]))
}

func activeKey(t LLMQType, height int32, quorumHash chainhash.Hash) ([]byte, error) {
	return orderedcode.Append(nil, prefixActive, uint64(t), int64(height), string(quorumHash[:]))
}
