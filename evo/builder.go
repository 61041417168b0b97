package evo

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/1NF1N18Y/dash/chain"
	dashparams "github.com/1NF1N18Y/dash/config/params"
	"github.com/1NF1N18Y/dash/crypto/bls"
	"github.com/1NF1N18Y/dash/crypto/merkle"
	"github.com/1NF1N18Y/dash/libs/log"
	"github.com/1NF1N18Y/dash/llmq"
)

// DiffBuilder assembles simplified masternode list diffs between two blocks
// of the active chain. All reads of chain-derived state happen under a
// single read acquisition of chainLock, so a diff is always computed against
// one consistent chain state.
type DiffBuilder struct {
	chainParams *dashparams.ChainParams
	chainLock   *sync.RWMutex

	view     chain.View
	mnSource ListSource
	quorums  llmq.Source
	resolver llmq.Resolver
	blocks   BlockStore

	logger  log.Logger
	metrics *Metrics
}

type DiffBuilderOption func(*DiffBuilder)

func WithLogger(l log.Logger) DiffBuilderOption {
	return func(b *DiffBuilder) { b.logger = l }
}

func WithMetrics(m *Metrics) DiffBuilderOption {
	return func(b *DiffBuilder) { b.metrics = m }
}

func NewDiffBuilder(
	chainParams *dashparams.ChainParams,
	chainLock *sync.RWMutex,
	view chain.View,
	mnSource ListSource,
	quorums llmq.Source,
	resolver llmq.Resolver,
	blocks BlockStore,
	opts ...DiffBuilderOption,
) *DiffBuilder {
	b := &DiffBuilder{
		chainParams: chainParams,
		chainLock:   chainLock,
		view:        view,
		mnSource:    mnSource,
		quorums:     quorums,
		resolver:    resolver,
		blocks:      blocks,
		logger:      log.NewNopLogger(),
		metrics:     NopMetrics(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildDiff computes the diff from baseBlockHash to blockHash. A zero
// baseBlockHash means "diff from genesis". With extended set, entries whose
// payout scripts changed are included even when the rest of the entry is
// unchanged. The returned diff is complete or the error is returned with no
// partial result.
func (b *DiffBuilder) BuildDiff(baseBlockHash, blockHash chainhash.Hash, extended bool) (*SimplifiedMNListDiff, error) {
	start := time.Now()
	diff, err := b.buildDiff(baseBlockHash, blockHash, extended)
	if err != nil {
		b.metrics.DiffFailures.Add(1)
		var lookupErr ErrLookupInconsistency
		if errors.As(err, &lookupErr) {
			b.logger.Error("masternode list diff failed",
				"base_block", baseBlockHash, "block", blockHash, "err", err)
		} else {
			b.logger.Debug("masternode list diff failed",
				"base_block", baseBlockHash, "block", blockHash, "err", err)
		}
		return nil, err
	}
	b.metrics.DiffsBuilt.Add(1)
	b.metrics.BuildSeconds.Observe(time.Since(start).Seconds())
	b.metrics.NewQuorums.Set(float64(len(diff.NewQuorums)))
	b.logger.Debug("built masternode list diff",
		"base_block", baseBlockHash, "block", blockHash,
		"updated", len(diff.MNList), "deleted", len(diff.DeletedMNs),
		"new_quorums", len(diff.NewQuorums), "deleted_quorums", len(diff.DeletedQuorums))
	return diff, nil
}

func (b *DiffBuilder) buildDiff(baseBlockHash, blockHash chainhash.Hash, extended bool) (*SimplifiedMNListDiff, error) {
	b.chainLock.RLock()
	defer b.chainLock.RUnlock()

	baseBlockIndex := b.view.Genesis()
	if baseBlockHash != (chainhash.Hash{}) {
		baseBlockIndex = b.view.Lookup(baseBlockHash)
	}
	if baseBlockIndex == nil {
		// the sentinel resolves to nothing on an empty active chain
		return nil, ErrBlockNotFound{Hash: baseBlockHash}
	}
	blockIndex := b.view.Lookup(blockHash)
	if blockIndex == nil {
		return nil, ErrBlockNotFound{Hash: blockHash}
	}
	if !b.view.Contains(baseBlockIndex) || !b.view.Contains(blockIndex) {
		// errors echo the caller's literal base hash, like the diff field
		return nil, ErrNotInActiveChain{BaseBlockHash: baseBlockHash, BlockHash: blockHash}
	}
	if baseBlockIndex.Height > blockIndex.Height {
		return nil, ErrInvalidRange{
			BaseBlockHash: baseBlockIndex.Hash,
			BlockHash:     blockHash,
			BaseHeight:    baseBlockIndex.Height,
			Height:        blockIndex.Height,
		}
	}

	baseList, err := b.mnSource.ListForBlock(baseBlockIndex)
	if err != nil {
		return nil, fmt.Errorf("load masternode list for block %s: %w", baseBlockIndex.Hash, err)
	}
	list, err := b.mnSource.ListForBlock(blockIndex)
	if err != nil {
		return nil, fmt.Errorf("load masternode list for block %s: %w", blockHash, err)
	}

	diff := buildEntryDiff(baseList, list, extended)
	// the caller's base hash is echoed verbatim, zero sentinel included
	diff.BaseBlockHash = baseBlockHash
	diff.BlockHash = blockHash
	diff.Version = DiffVersionBase
	if b.chainParams.IsV20Active(blockIndex.Height) {
		diff.Version = DiffVersionCLSigs
	}

	if err := b.buildQuorumsDiff(diff, baseBlockIndex, blockIndex); err != nil {
		return nil, fmt.Errorf("build quorums diff: %w", err)
	}
	if diff.Version >= DiffVersionCLSigs {
		if err := b.buildQuorumsCLSigs(diff, blockIndex); err != nil {
			return nil, fmt.Errorf("build quorums chainlock info: %w", err)
		}
	}

	txs, err := b.blocks.ReadBlock(blockIndex)
	if err != nil {
		return nil, fmt.Errorf("read block %s: %w", blockHash, err)
	}
	if len(txs) == 0 {
		return nil, fmt.Errorf("block %s has no transactions", blockHash)
	}
	diff.CbTx = txs[0]

	hashes := make([]chainhash.Hash, len(txs))
	matches := make([]bool, len(txs))
	for i, tx := range txs {
		hashes[i] = tx.TxHash()
	}
	matches[0] = true
	diff.CbTxMerkleTree = merkle.NewPartialTree(hashes, matches)

	return diff, nil
}

// buildEntryDiff computes the masternode set delta. An entry lands in MNList
// when it is new at the target block or when its simplified projection
// differs from the base; with extended set a payout script change alone is
// enough.
func buildEntryDiff(baseList, list MasternodeList, extended bool) *SimplifiedMNListDiff {
	diff := &SimplifiedMNListDiff{}
	list.ForEach(func(mn *Masternode) {
		baseMN := baseList.GetMN(mn.ProTxHash)
		if baseMN == nil {
			diff.MNList = append(diff.MNList, NewSimplifiedMNListEntry(mn))
			return
		}
		entry := NewSimplifiedMNListEntry(mn)
		if !entry.Equal(NewSimplifiedMNListEntry(baseMN), extended) {
			diff.MNList = append(diff.MNList, entry)
		}
	})
	baseList.ForEach(func(mn *Masternode) {
		if list.GetMN(mn.ProTxHash) == nil {
			diff.DeletedMNs = append(diff.DeletedMNs, mn.ProTxHash)
		}
	})
	return diff
}

// buildQuorumsDiff fills DeletedQuorums and NewQuorums from the active
// quorum sets at the two blocks. New quorums keep the enumeration order of
// the target set: ascending quorum type, oldest first within a type.
func (b *DiffBuilder) buildQuorumsDiff(diff *SimplifiedMNListDiff, baseBlockIndex, blockIndex *chain.BlockIndex) error {
	baseRefs, err := b.quorums.ActiveCommitmentRefs(baseBlockIndex)
	if err != nil {
		return err
	}
	refs, err := b.quorums.ActiveCommitmentRefs(blockIndex)
	if err != nil {
		return err
	}

	baseSet := make(map[llmq.QuorumRef]struct{}, len(baseRefs))
	for _, ref := range baseRefs {
		baseSet[ref] = struct{}{}
	}
	curSet := make(map[llmq.QuorumRef]struct{}, len(refs))
	for _, ref := range refs {
		curSet[ref] = struct{}{}
	}

	for _, ref := range baseRefs {
		if _, ok := curSet[ref]; !ok {
			diff.DeletedQuorums = append(diff.DeletedQuorums, ref)
		}
	}
	for _, ref := range refs {
		if _, ok := baseSet[ref]; ok {
			continue
		}
		fc, err := b.quorums.MinedCommitment(ref.Type, ref.QuorumHash)
		if err != nil {
			return err
		}
		if fc == nil {
			return ErrLookupInconsistency{Type: ref.Type, QuorumHash: ref.QuorumHash}
		}
		diff.NewQuorums = append(diff.NewQuorums, fc)
	}
	return nil
}

// buildQuorumsCLSigs groups every new quorum's index under the chainlock
// signature found in the coinbase of its expected-signature block. Distinct
// blocks carrying the same signature merge into one group, so all quorums
// without a chainlock share the single null-signature group. Groups come out
// sorted by signature bytes and hold ascending indices, which keeps the
// encoding deterministic.
func (b *DiffBuilder) buildQuorumsCLSigs(diff *SimplifiedMNListDiff, blockIndex *chain.BlockIndex) error {
	if len(diff.NewQuorums) == 0 {
		return nil
	}

	blockGroups := make(map[*chain.BlockIndex][]uint16)
	var blockOrder []*chain.BlockIndex
	for i, fc := range diff.NewQuorums {
		q, err := b.resolver.GetQuorum(fc.Type, fc.QuorumHash)
		if err != nil {
			return err
		}
		if q == nil {
			return fmt.Errorf("quorum %s not found", fc.Ref())
		}
		height := q.BaseBlockIndex.Height - int32(q.RotationIndex()) - dashparams.ChainlockSigOffset
		work := blockIndex.Ancestor(height)
		if work == nil {
			return fmt.Errorf("block %s has no ancestor at height %d", blockIndex.Hash, height)
		}
		if _, ok := blockGroups[work]; !ok {
			blockOrder = append(blockOrder, work)
		}
		blockGroups[work] = append(blockGroups[work], uint16(i))
	}

	sigGroups := make(map[bls.Signature][]uint16)
	for _, work := range blockOrder {
		sig, _, err := coinbaseChainlock(b.blocks, work)
		if err != nil {
			return err
		}
		sigGroups[sig] = append(sigGroups[sig], blockGroups[work]...)
	}

	sigs := make([]bls.Signature, 0, len(sigGroups))
	for sig := range sigGroups {
		sigs = append(sigs, sig)
	}
	sort.Slice(sigs, func(i, j int) bool { return sigs[i].Compare(sigs[j]) < 0 })

	diff.QuorumsCLSigs = make([]QuorumCLSig, 0, len(sigs))
	for _, sig := range sigs {
		idxs := sigGroups[sig]
		sort.Slice(idxs, func(i, j int) bool { return idxs[i] < idxs[j] })
		diff.QuorumsCLSigs = append(diff.QuorumsCLSigs, QuorumCLSig{Signature: sig, QuorumIndexes: idxs})
	}
	return nil
}
