package merkle

import (
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// maxTxCount bounds the number of transactions a deserialized partial tree
// may claim, to keep a malicious encoding from forcing huge allocations.
const maxTxCount = 1 << 20

// PartialTree is a merkle tree pruned down to the branches needed to prove
// inclusion of a subset of the leaves. It stores, in depth-first order, one
// bit per traversed node (whether the node is an ancestor of a matched leaf)
// and the hashes of the nodes whose subtrees were pruned, plus the matched
// leaves themselves.
//
// The encoding is compact and consensus-critical: peers recompute the root
// from it and compare against the committed root.
type PartialTree struct {
	numTransactions uint32
	bits            []bool
	hashes          []chainhash.Hash
}

// NewPartialTree builds a partial tree over txids, keeping the leaves whose
// matches flag is set. len(matches) must equal len(txids).
func NewPartialTree(txids []chainhash.Hash, matches []bool) *PartialTree {
	pt := &PartialTree{
		numTransactions: uint32(len(txids)),
		bits:            make([]bool, 0, len(txids)),
		hashes:          make([]chainhash.Hash, 0, len(txids)),
	}

	height := uint32(0)
	for pt.treeWidth(height) > 1 {
		height++
	}
	pt.build(height, 0, txids, matches)

	return pt
}

// NumTransactions returns the total number of leaves the full tree was
// built over.
func (pt *PartialTree) NumTransactions() uint32 {
	return pt.numTransactions
}

// treeWidth returns the number of nodes at the given height.
func (pt *PartialTree) treeWidth(height uint32) uint32 {
	return (pt.numTransactions + (1 << height) - 1) >> height
}

func (pt *PartialTree) build(height, pos uint32, txids []chainhash.Hash, matches []bool) {
	// whether this node covers at least one matched leaf
	parentOfMatch := false
	for p := pos << height; p < (pos+1)<<height && p < pt.numTransactions; p++ {
		if matches[p] {
			parentOfMatch = true
		}
	}

	pt.bits = append(pt.bits, parentOfMatch)

	if height == 0 || !parentOfMatch {
		pt.hashes = append(pt.hashes, pt.nodeHash(height, pos, txids))
		return
	}

	pt.build(height-1, pos*2, txids, matches)
	if pos*2+1 < pt.treeWidth(height-1) {
		pt.build(height-1, pos*2+1, txids, matches)
	}
}

func (pt *PartialTree) nodeHash(height, pos uint32, txids []chainhash.Hash) chainhash.Hash {
	if height == 0 {
		return txids[pos]
	}
	left := pt.nodeHash(height-1, pos*2, txids)
	right := left
	if pos*2+1 < pt.treeWidth(height-1) {
		right = pt.nodeHash(height-1, pos*2+1, txids)
	}
	return hashConcat(left, right)
}

// ExtractMatches recomputes the merkle root from the partial tree and returns
// it together with the matched leaf hashes and their leaf positions. It fails
// if the tree is not a well-formed encoding (wrong bit/hash counts, or an
// ambiguous duplicated-pair node).
func (pt *PartialTree) ExtractMatches() (chainhash.Hash, []chainhash.Hash, []uint32, error) {
	if pt.numTransactions == 0 {
		return chainhash.Hash{}, nil, nil, errors.New("empty partial tree")
	}
	if uint32(len(pt.hashes)) > pt.numTransactions {
		return chainhash.Hash{}, nil, nil, errors.New("more hashes than transactions")
	}
	if len(pt.bits) < len(pt.hashes) {
		return chainhash.Hash{}, nil, nil, errors.New("fewer bits than hashes")
	}

	height := uint32(0)
	for pt.treeWidth(height) > 1 {
		height++
	}

	ex := &treeExtractor{tree: pt}
	root := ex.extract(height, 0)
	if ex.bad {
		return chainhash.Hash{}, nil, nil, errors.New("malformed partial tree")
	}
	// every hash and every bit except bit-packing padding must be consumed
	if (ex.bitsUsed+7)/8 != (len(pt.bits)+7)/8 {
		return chainhash.Hash{}, nil, nil, errors.New("unused traversal bits")
	}
	if ex.hashesUsed != len(pt.hashes) {
		return chainhash.Hash{}, nil, nil, errors.New("unused hashes")
	}

	return root, ex.matches, ex.indices, nil
}

type treeExtractor struct {
	tree       *PartialTree
	bitsUsed   int
	hashesUsed int
	matches    []chainhash.Hash
	indices    []uint32
	bad        bool
}

func (ex *treeExtractor) extract(height, pos uint32) chainhash.Hash {
	if ex.bitsUsed >= len(ex.tree.bits) {
		ex.bad = true
		return chainhash.Hash{}
	}
	parentOfMatch := ex.tree.bits[ex.bitsUsed]
	ex.bitsUsed++

	if height == 0 || !parentOfMatch {
		if ex.hashesUsed >= len(ex.tree.hashes) {
			ex.bad = true
			return chainhash.Hash{}
		}
		h := ex.tree.hashes[ex.hashesUsed]
		ex.hashesUsed++
		if height == 0 && parentOfMatch {
			ex.matches = append(ex.matches, h)
			ex.indices = append(ex.indices, pos)
		}
		return h
	}

	left := ex.extract(height-1, pos*2)
	right := left
	if pos*2+1 < ex.tree.treeWidth(height-1) {
		right = ex.extract(height-1, pos*2+1)
		if right == left {
			// a duplicated pair on a traversed branch can only be forged
			ex.bad = true
		}
	}
	return hashConcat(left, right)
}

// Serialize writes the partial tree in its wire form: leaf count, pruned-node
// hashes, then the traversal bits packed little-endian into bytes.
func (pt *PartialTree) Serialize(w io.Writer) error {
	if err := writeUint32(w, pt.numTransactions); err != nil {
		return err
	}
	if err := wire.WriteVarInt(w, 0, uint64(len(pt.hashes))); err != nil {
		return err
	}
	for i := range pt.hashes {
		if _, err := w.Write(pt.hashes[i][:]); err != nil {
			return err
		}
	}

	packed := make([]byte, (len(pt.bits)+7)/8)
	for i, bit := range pt.bits {
		if bit {
			packed[i/8] |= 1 << (i % 8)
		}
	}
	return wire.WriteVarBytes(w, 0, packed)
}

// Deserialize reads a partial tree from its wire form.
func (pt *PartialTree) Deserialize(r io.Reader) error {
	numTx, err := readUint32(r)
	if err != nil {
		return err
	}
	if numTx > maxTxCount {
		return fmt.Errorf("partial tree claims %d transactions", numTx)
	}

	count, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return err
	}
	if count > uint64(numTx) {
		return fmt.Errorf("partial tree hash count %d exceeds transaction count %d", count, numTx)
	}
	hashes := make([]chainhash.Hash, count)
	for i := range hashes {
		if _, err := io.ReadFull(r, hashes[i][:]); err != nil {
			return err
		}
	}

	packed, err := wire.ReadVarBytes(r, 0, maxTxCount/4, "partial tree bits")
	if err != nil {
		return err
	}
	bits := make([]bool, len(packed)*8)
	for i := range bits {
		bits[i] = packed[i/8]&(1<<(i%8)) != 0
	}

	pt.numTransactions = numTx
	pt.hashes = hashes
	pt.bits = bits
	return nil
}

func writeUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v >> 16)
	buf[3] = byte(v >> 24)
	_, err := w.Write(buf[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24, nil
}
