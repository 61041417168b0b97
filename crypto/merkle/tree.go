package merkle

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// RootHash computes the consensus merkle root over leaves: nodes are the
// double-SHA256 of the concatenation of their children, and a level with an
// odd number of nodes duplicates its last node. The returned mutated flag is
// set when two identical hashes were paired at any level, which makes the
// root ambiguous (CVE-2012-2459); it is reported, not rejected, because the
// caller may still need the root for lookup purposes.
//
// The root of an empty leaf set is the zero hash; the root of a single leaf
// is the leaf itself.
func RootHash(leaves []chainhash.Hash) (chainhash.Hash, bool) {
	if len(leaves) == 0 {
		return chainhash.Hash{}, false
	}

	mutated := false
	hashes := make([]chainhash.Hash, len(leaves))
	copy(hashes, leaves)

	for len(hashes) > 1 {
		for i := 0; i+1 < len(hashes); i += 2 {
			if hashes[i] == hashes[i+1] {
				mutated = true
			}
		}
		if len(hashes)%2 != 0 {
			hashes = append(hashes, hashes[len(hashes)-1])
		}
		for i := 0; i < len(hashes); i += 2 {
			hashes[i/2] = hashConcat(hashes[i], hashes[i+1])
		}
		hashes = hashes[:len(hashes)/2]
	}

	return hashes[0], mutated
}

func hashConcat(left, right chainhash.Hash) chainhash.Hash {
	var buf [chainhash.HashSize * 2]byte
	copy(buf[:chainhash.HashSize], left[:])
	copy(buf[chainhash.HashSize:], right[:])
	return chainhash.DoubleHashH(buf[:])
}
