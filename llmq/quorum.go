package llmq

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/1NF1N18Y/dash/chain"
)

// Quorum is the runtime view of a mined quorum: its commitment plus the
// resolved chain position of its DKG base block.
type Quorum struct {
	Params         Params
	BaseBlockIndex *chain.BlockIndex
	Commitment     *FinalCommitment
}

// RotationIndex returns the quorum's position within its DKG cycle; 0 for
// non-rotating quorum kinds.
func (q *Quorum) RotationIndex() int16 {
	return q.Commitment.QuorumIndex
}

// Resolver resolves mined quorums to their runtime view. It is implemented
// by the quorum manager, which is externally synchronized with the chain
// state lock.
type Resolver interface {
	GetQuorum(t LLMQType, quorumHash chainhash.Hash) (*Quorum, error)
}

// Source is a read-only view over the mined commitment store.
type Source interface {
	// ActiveCommitmentRefs lists the refs of every quorum mined and still
	// active as of bi, grouped by ascending quorum type and, within a
	// type, ordered oldest first. The order is part of the contract:
	// callers index into lists built from it.
	ActiveCommitmentRefs(bi *chain.BlockIndex) ([]QuorumRef, error)

	// MinedCommitment returns the full commitment for a mined quorum, or
	// (nil, nil) if no commitment is known for the ref.
	MinedCommitment(t LLMQType, quorumHash chainhash.Hash) (*FinalCommitment, error)
}
