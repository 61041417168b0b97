package chain

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// BlockIndex is one node of the in-memory block index. Nodes are immutable
// once connected; ancestry is walked through Parent links.
type BlockIndex struct {
	Hash   chainhash.Hash
	Height int32
	Parent *BlockIndex
}

// Ancestor returns the ancestor of bi at the given height, or nil if height
// is negative or above bi's own height.
func (bi *BlockIndex) Ancestor(height int32) *BlockIndex {
	if height < 0 || height > bi.Height {
		return nil
	}
	n := bi
	for n != nil && n.Height != height {
		n = n.Parent
	}
	return n
}

// View is a read-only handle to a consistent chain state. Implementations are
// externally synchronized: every method must observe the same active chain
// for as long as the caller holds the chain-state lock.
type View interface {
	// Genesis returns the active chain's genesis block.
	Genesis() *BlockIndex

	// Lookup resolves a block hash to its index entry, or nil if the hash
	// is unknown.
	Lookup(hash chainhash.Hash) *BlockIndex

	// Contains reports whether bi is part of the currently active chain.
	Contains(bi *BlockIndex) bool

	// Tip returns the current active chain tip.
	Tip() *BlockIndex
}
