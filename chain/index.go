package chain

import (
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Index is an in-memory block index with a single active chain. It satisfies
// View; mutation happens only through Connect, under the index's own lock.
//
// Callers composing Index with other chain-state reads (masternode lists,
// quorum stores) must additionally hold the shared chain-state lock for the
// whole composite operation; the internal lock only keeps Index itself
// coherent.
type Index struct {
	mtx    sync.RWMutex
	byHash map[chainhash.Hash]*BlockIndex
	active []*BlockIndex
}

func NewIndex() *Index {
	return &Index{
		byHash: make(map[chainhash.Hash]*BlockIndex),
	}
}

// Connect appends a block with the given hash to the active chain tip and
// returns its index entry.
func (idx *Index) Connect(hash chainhash.Hash) *BlockIndex {
	idx.mtx.Lock()
	defer idx.mtx.Unlock()

	var parent *BlockIndex
	height := int32(0)
	if len(idx.active) > 0 {
		parent = idx.active[len(idx.active)-1]
		height = parent.Height + 1
	}

	bi := &BlockIndex{Hash: hash, Height: height, Parent: parent}
	idx.byHash[hash] = bi
	idx.active = append(idx.active, bi)
	return bi
}

// Disconnect removes the current tip from the active chain. The block stays
// in the hash index, as a detached fork block would.
func (idx *Index) Disconnect() {
	idx.mtx.Lock()
	defer idx.mtx.Unlock()

	if len(idx.active) > 0 {
		idx.active = idx.active[:len(idx.active)-1]
	}
}

func (idx *Index) Genesis() *BlockIndex {
	idx.mtx.RLock()
	defer idx.mtx.RUnlock()

	if len(idx.active) == 0 {
		return nil
	}
	return idx.active[0]
}

func (idx *Index) Lookup(hash chainhash.Hash) *BlockIndex {
	idx.mtx.RLock()
	defer idx.mtx.RUnlock()

	return idx.byHash[hash]
}

func (idx *Index) Contains(bi *BlockIndex) bool {
	idx.mtx.RLock()
	defer idx.mtx.RUnlock()

	if bi == nil || int(bi.Height) >= len(idx.active) {
		return false
	}
	return idx.active[bi.Height] == bi
}

func (idx *Index) Tip() *BlockIndex {
	idx.mtx.RLock()
	defer idx.mtx.RUnlock()

	if len(idx.active) == 0 {
		return nil
	}
	return idx.active[len(idx.active)-1]
}

var _ View = (*Index)(nil)
