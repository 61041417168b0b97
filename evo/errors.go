package evo

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/1NF1N18Y/dash/llmq"
)

// ErrBlockNotFound reports a diff endpoint hash that is not in the block
// index.
type ErrBlockNotFound struct {
	Hash chainhash.Hash
}

func (e ErrBlockNotFound) Error() string {
	return fmt.Sprintf("block %s not found", e.Hash)
}

// ErrNotInActiveChain reports diff endpoints that do not both lie on the
// currently active chain.
type ErrNotInActiveChain struct {
	BaseBlockHash chainhash.Hash
	BlockHash     chainhash.Hash
}

func (e ErrNotInActiveChain) Error() string {
	return fmt.Sprintf("block %s and %s are not in the same chain", e.BaseBlockHash, e.BlockHash)
}

// ErrInvalidRange reports a base block above the target block.
type ErrInvalidRange struct {
	BaseBlockHash chainhash.Hash
	BlockHash     chainhash.Hash
	BaseHeight    int32
	Height        int32
}

func (e ErrInvalidRange) Error() string {
	return fmt.Sprintf("base block %s (height %d) is higher than block %s (height %d)",
		e.BaseBlockHash, e.BaseHeight, e.BlockHash, e.Height)
}

// ErrLookupInconsistency reports a quorum the commitment store listed as
// active but could not resolve to a commitment. It indicates a bug or data
// corruption, not a malformed request, and is surfaced to logging
// accordingly.
type ErrLookupInconsistency struct {
	Type       llmq.LLMQType
	QuorumHash chainhash.Hash
}

func (e ErrLookupInconsistency) Error() string {
	return fmt.Sprintf("no mined commitment for active quorum %s:%s", e.Type, e.QuorumHash)
}
