package evo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
	"github.com/rs/zerolog"

	dashparams "github.com/1NF1N18Y/dash/config/params"
	"github.com/1NF1N18Y/dash/crypto/bls"
	"github.com/1NF1N18Y/dash/crypto/merkle"
)

// maxScriptSize bounds payout scripts read off the wire.
const maxScriptSize = 10000

// SimplifiedMNListEntry is the light-client projection of one masternode's
// public state at a block. Entries are built fresh from registry records at
// diff time and never mutated.
//
// Equality deliberately ignores the payout scripts unless extended mode is
// requested, while the domain hash always covers the full serialization,
// payout scripts included. The two notions differ on purpose; see Equal.
type SimplifiedMNListEntry struct {
	Version              uint16
	Type                 MnType
	ProRegTxHash         chainhash.Hash
	ConfirmedHash        chainhash.Hash
	Service              Service
	PubKeyOperator       bls.PublicKey
	KeyIDVoting          KeyID
	IsValid              bool
	ScriptPayout         []byte
	ScriptOperatorPayout []byte
	PlatformHTTPPort     uint16
	PlatformNodeID       KeyID
}

// NewSimplifiedMNListEntry projects a registry record into an entry. Any
// non-legacy state version collapses to the basic scheme.
func NewSimplifiedMNListEntry(mn *Masternode) *SimplifiedMNListEntry {
	version := uint16(bls.SchemeBasic)
	if mn.State.Version == MnStateVersionLegacy {
		version = uint16(bls.SchemeLegacy)
	}

	e := &SimplifiedMNListEntry{
		Version:              version,
		Type:                 mn.Type,
		ProRegTxHash:         mn.ProTxHash,
		ConfirmedHash:        mn.State.ConfirmedHash,
		Service:              mn.State.Service,
		PubKeyOperator:       mn.State.PubKeyOperator,
		KeyIDVoting:          mn.State.KeyIDVoting,
		IsValid:              !mn.State.IsBanned(),
		ScriptPayout:         mn.State.ScriptPayout,
		ScriptOperatorPayout: mn.State.ScriptOperatorPayout,
	}
	if mn.Type == MnTypeHighPerformance {
		e.PlatformHTTPPort = mn.State.PlatformHTTPPort
		e.PlatformNodeID = mn.State.PlatformNodeID
	}
	return e
}

// Serialize writes the entry's canonical wire form. The identical byte
// sequence feeds CalcHash and the merkle leaves.
func (e *SimplifiedMNListEntry) Serialize(w io.Writer) error {
	if err := writeUint16(w, e.Version); err != nil {
		return err
	}
	if err := writeUint16(w, uint16(e.Type)); err != nil {
		return err
	}
	if _, err := w.Write(e.ProRegTxHash[:]); err != nil {
		return err
	}
	if _, err := w.Write(e.ConfirmedHash[:]); err != nil {
		return err
	}
	if err := e.Service.serialize(w); err != nil {
		return err
	}
	if _, err := w.Write(e.PubKeyOperator[:]); err != nil {
		return err
	}
	if _, err := w.Write(e.KeyIDVoting[:]); err != nil {
		return err
	}
	if err := writeBool(w, e.IsValid); err != nil {
		return err
	}
	if err := wire.WriteVarBytes(w, 0, e.ScriptPayout); err != nil {
		return err
	}
	if err := wire.WriteVarBytes(w, 0, e.ScriptOperatorPayout); err != nil {
		return err
	}
	if e.Type == MnTypeHighPerformance {
		if err := writeUint16(w, e.PlatformHTTPPort); err != nil {
			return err
		}
		if _, err := w.Write(e.PlatformNodeID[:]); err != nil {
			return err
		}
	}
	return nil
}

func (e *SimplifiedMNListEntry) Deserialize(r io.Reader) error {
	var err error
	if e.Version, err = readUint16(r); err != nil {
		return err
	}
	t, err := readUint16(r)
	if err != nil {
		return err
	}
	e.Type = MnType(t)
	if _, err := io.ReadFull(r, e.ProRegTxHash[:]); err != nil {
		return err
	}
	if _, err := io.ReadFull(r, e.ConfirmedHash[:]); err != nil {
		return err
	}
	if err := e.Service.deserialize(r); err != nil {
		return err
	}
	if _, err := io.ReadFull(r, e.PubKeyOperator[:]); err != nil {
		return err
	}
	if _, err := io.ReadFull(r, e.KeyIDVoting[:]); err != nil {
		return err
	}
	if e.IsValid, err = readBool(r); err != nil {
		return err
	}
	if e.ScriptPayout, err = wire.ReadVarBytes(r, 0, maxScriptSize, "scriptPayout"); err != nil {
		return err
	}
	if e.ScriptOperatorPayout, err = wire.ReadVarBytes(r, 0, maxScriptSize, "scriptOperatorPayout"); err != nil {
		return err
	}
	e.PlatformHTTPPort = 0
	e.PlatformNodeID = KeyID{}
	if e.Type == MnTypeHighPerformance {
		if e.PlatformHTTPPort, err = readUint16(r); err != nil {
			return err
		}
		if _, err := io.ReadFull(r, e.PlatformNodeID[:]); err != nil {
			return err
		}
	}
	return nil
}

// CalcHash returns the entry's domain hash: the double-SHA256 of the full
// canonical serialization, payout scripts included regardless of how the
// entry is being compared.
func (e *SimplifiedMNListEntry) CalcHash() chainhash.Hash {
	var buf bytes.Buffer
	if err := e.Serialize(&buf); err != nil {
		// writing to a bytes.Buffer cannot fail
		panic(err)
	}
	return chainhash.DoubleHashH(buf.Bytes())
}

// Equal compares two entries. Payout scripts take part in the comparison
// only when extended is set; every other field always does.
func (e *SimplifiedMNListEntry) Equal(other *SimplifiedMNListEntry, extended bool) bool {
	if e.Version != other.Version ||
		e.Type != other.Type ||
		e.ProRegTxHash != other.ProRegTxHash ||
		e.ConfirmedHash != other.ConfirmedHash ||
		!e.Service.Equal(other.Service) ||
		e.PubKeyOperator != other.PubKeyOperator ||
		e.KeyIDVoting != other.KeyIDVoting ||
		e.IsValid != other.IsValid ||
		e.PlatformHTTPPort != other.PlatformHTTPPort ||
		e.PlatformNodeID != other.PlatformNodeID {
		return false
	}
	if extended {
		return bytes.Equal(e.ScriptPayout, other.ScriptPayout) &&
			bytes.Equal(e.ScriptOperatorPayout, other.ScriptOperatorPayout)
	}
	return true
}

// ValidateBasic performs stateless shape validation.
func (e *SimplifiedMNListEntry) ValidateBasic() error {
	if e.Version < uint16(bls.SchemeLegacy) || e.Version > uint16(bls.SchemeBasic) {
		return fmt.Errorf("unknown entry version %d", e.Version)
	}
	if e.Type != MnTypeRegular && e.Type != MnTypeHighPerformance {
		return fmt.Errorf("unknown masternode type %d", uint16(e.Type))
	}
	if e.ProRegTxHash == (chainhash.Hash{}) {
		return errors.New("null proRegTxHash")
	}
	if e.PubKeyOperator.IsZero() {
		return errors.New("null operator key")
	}
	return nil
}

func (e *SimplifiedMNListEntry) String() string {
	payoutAddress := "unknown"
	operatorPayoutAddress := "none"
	if addr, ok := scriptAddress(e.ScriptPayout, dashparams.MainNet.AddrParams); ok {
		payoutAddress = addr
	}
	if addr, ok := scriptAddress(e.ScriptOperatorPayout, dashparams.MainNet.AddrParams); ok {
		operatorPayoutAddress = addr
	}
	return fmt.Sprintf("SimplifiedMNListEntry(nVersion=%d, nType=%d, proRegTxHash=%s, confirmedHash=%s, "+
		"service=%s, pubKeyOperator=%s, votingKeyID=%s, isValid=%t, payoutAddress=%s, operatorPayoutAddress=%s, "+
		"platformHTTPPort=%d, platformNodeID=%s)",
		e.Version, uint16(e.Type), e.ProRegTxHash, e.ConfirmedHash,
		e.Service, e.PubKeyOperator, e.KeyIDVoting, e.IsValid, payoutAddress, operatorPayoutAddress,
		e.PlatformHTTPPort, e.PlatformNodeID)
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (e *SimplifiedMNListEntry) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("proTxHash", e.ProRegTxHash.String())
	ev.Str("service", e.Service.String())
	ev.Bool("isValid", e.IsValid)
	ev.Uint16("type", uint16(e.Type))
}

type simplifiedMNListEntryJSON struct {
	Version               uint16 `json:"nVersion"`
	Type                  uint16 `json:"nType"`
	ProRegTxHash          string `json:"proRegTxHash"`
	ConfirmedHash         string `json:"confirmedHash"`
	Service               string `json:"service"`
	PubKeyOperator        string `json:"pubKeyOperator"`
	VotingAddress         string `json:"votingAddress"`
	IsValid               bool   `json:"isValid"`
	PlatformHTTPPort      *uint16 `json:"platformHTTPPort,omitempty"`
	PlatformNodeID        string  `json:"platformNodeID,omitempty"`
	PayoutAddress         string  `json:"payoutAddress,omitempty"`
	OperatorPayoutAddress string  `json:"operatorPayoutAddress,omitempty"`
}

// ToJSON renders the entry for the RPC surface. Platform fields appear only
// for high-performance masternodes; payout addresses only in extended mode
// and only when the script decodes to an address.
func (e *SimplifiedMNListEntry) ToJSON(net *chaincfg.Params, extended bool) ([]byte, error) {
	votingAddr, err := btcutil.NewAddressPubKeyHash(e.KeyIDVoting[:], net)
	if err != nil {
		return nil, fmt.Errorf("encode voting address: %w", err)
	}

	obj := simplifiedMNListEntryJSON{
		Version:        e.Version,
		Type:           uint16(e.Type),
		ProRegTxHash:   e.ProRegTxHash.String(),
		ConfirmedHash:  e.ConfirmedHash.String(),
		Service:        e.Service.String(),
		PubKeyOperator: e.PubKeyOperator.String(),
		VotingAddress:  votingAddr.EncodeAddress(),
		IsValid:        e.IsValid,
	}
	if e.Type == MnTypeHighPerformance {
		port := e.PlatformHTTPPort
		obj.PlatformHTTPPort = &port
		obj.PlatformNodeID = e.PlatformNodeID.String()
	}
	if extended {
		if addr, ok := scriptAddress(e.ScriptPayout, net); ok {
			obj.PayoutAddress = addr
		}
		if addr, ok := scriptAddress(e.ScriptOperatorPayout, net); ok {
			obj.OperatorPayoutAddress = addr
		}
	}
	return json.Marshal(obj)
}

// scriptAddress decodes an output script into its destination address.
func scriptAddress(script []byte, net *chaincfg.Params) (string, bool) {
	if len(script) == 0 {
		return "", false
	}
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(script, net)
	if err != nil || len(addrs) == 0 {
		return "", false
	}
	return addrs[0].EncodeAddress(), true
}

// SimplifiedMNList is the canonical, sorted form of a full masternode set.
// Sorting by registration id gives a stable merkle-leaf order, so any two
// computations over the same logical set agree on the root.
type SimplifiedMNList struct {
	Entries []*SimplifiedMNListEntry
}

// NewSimplifiedMNListFromEntries builds a sorted list from explicit entries.
func NewSimplifiedMNListFromEntries(entries []*SimplifiedMNListEntry) *SimplifiedMNList {
	sorted := make([]*SimplifiedMNListEntry, len(entries))
	copy(sorted, entries)
	sortEntries(sorted)
	return &SimplifiedMNList{Entries: sorted}
}

// NewSimplifiedMNList builds the sorted list by enumerating a registry
// snapshot.
func NewSimplifiedMNList(ml MasternodeList) *SimplifiedMNList {
	entries := make([]*SimplifiedMNListEntry, 0, ml.Count())
	ml.ForEach(func(mn *Masternode) {
		entries = append(entries, NewSimplifiedMNListEntry(mn))
	})
	sortEntries(entries)
	return &SimplifiedMNList{Entries: entries}
}

func sortEntries(entries []*SimplifiedMNListEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].ProRegTxHash[:], entries[j].ProRegTxHash[:]) < 0
	})
}

// CalcMerkleRoot computes the merkle root over the sorted entry hashes. The
// mutated flag propagates from the root computation.
func (l *SimplifiedMNList) CalcMerkleRoot() (chainhash.Hash, bool) {
	leaves := make([]chainhash.Hash, len(l.Entries))
	for i, e := range l.Entries {
		leaves[i] = e.CalcHash()
	}
	return merkle.RootHash(leaves)
}

// Equal reports whether both lists hold pairwise-equal entries (default
// comparison mode) in the same canonical order.
func (l *SimplifiedMNList) Equal(other *SimplifiedMNList) bool {
	if len(l.Entries) != len(other.Entries) {
		return false
	}
	for i := range l.Entries {
		if !l.Entries[i].Equal(other.Entries[i], false) {
			return false
		}
	}
	return true
}

func writeBool(w io.Writer, v bool) error {
	b := byte(0)
	if v {
		b = 1
	}
	_, err := w.Write([]byte{b})
	return err
}

func readBool(r io.Reader) (bool, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return false, err
	}
	return buf[0] != 0, nil
}

func writeUint16(w io.Writer, v uint16) error {
	_, err := w.Write([]byte{byte(v), byte(v >> 8)})
	return err
}

func readUint16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return uint16(buf[0]) | uint16(buf[1])<<8, nil
}
