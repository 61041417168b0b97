package evo

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/1NF1N18Y/dash/chain"
	"github.com/1NF1N18Y/dash/crypto/bls"
)

// MnType distinguishes regular masternodes from high-performance (platform)
// masternodes, which carry extra platform-routing fields.
type MnType uint16

const (
	MnTypeRegular         MnType = 0
	MnTypeHighPerformance MnType = 1
)

// Masternode state versions; the version selects the BLS serialization
// scheme of the operator key.
const (
	MnStateVersionLegacy uint16 = 1
	MnStateVersionBasic  uint16 = 2
)

// NoBanHeight marks a masternode that is not PoSe-banned.
const NoBanHeight int32 = -1

// KeyIDSize is the size, in bytes, of a hash160 key identifier.
const KeyIDSize = 20

// KeyID is a hash160 identifier of a key (voting key, platform node key).
type KeyID [KeyIDSize]byte

// String renders the id the way uint160 values are rendered on the RPC
// surface: hex of the byte-reversed value.
func (id KeyID) String() string {
	var reversed [KeyIDSize]byte
	for i, b := range id {
		reversed[KeyIDSize-1-i] = b
	}
	return hex.EncodeToString(reversed[:])
}

// Service is a masternode's network endpoint. On the wire it is a 16-byte
// IP (IPv4 mapped into IPv6) followed by a big-endian port.
type Service struct {
	IP   net.IP
	Port uint16
}

func (s Service) String() string {
	return net.JoinHostPort(s.IP.String(), strconv.Itoa(int(s.Port)))
}

func (s Service) Equal(other Service) bool {
	return s.Port == other.Port && s.IP.Equal(other.IP)
}

func (s Service) serialize(w io.Writer) error {
	var buf [18]byte
	if ip := s.IP.To16(); ip != nil {
		copy(buf[:16], ip)
	}
	buf[16] = byte(s.Port >> 8)
	buf[17] = byte(s.Port)
	_, err := w.Write(buf[:])
	return err
}

func (s *Service) deserialize(r io.Reader) error {
	var buf [18]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}
	ip := make(net.IP, 16)
	copy(ip, buf[:16])
	s.IP = ip
	s.Port = uint16(buf[16])<<8 | uint16(buf[17])
	return nil
}

// MasternodeState is the mutable public state of a registered masternode as
// tracked by the deterministic masternode registry.
type MasternodeState struct {
	Version              uint16
	ConfirmedHash        chainhash.Hash
	Service              Service
	PubKeyOperator       bls.PublicKey
	KeyIDVoting          KeyID
	PoSeBanHeight        int32
	ScriptPayout         []byte
	ScriptOperatorPayout []byte
	PlatformHTTPPort     uint16
	PlatformNodeID       KeyID
}

// IsBanned reports whether the masternode is currently PoSe-banned.
func (s *MasternodeState) IsBanned() bool {
	return s.PoSeBanHeight != NoBanHeight
}

// Masternode is one registry record: a stable registration identity plus the
// current state.
type Masternode struct {
	ProTxHash chainhash.Hash
	Type      MnType
	State     *MasternodeState
}

// MasternodeList is a read-only registry snapshot at one block.
type MasternodeList interface {
	// BlockHash is the block the snapshot was taken at.
	BlockHash() chainhash.Hash

	// Count returns the number of registered, non-removed masternodes.
	Count() int

	// ForEach visits every registered, non-removed masternode.
	ForEach(fn func(mn *Masternode))

	// GetMN resolves a registration id within the snapshot, returning nil
	// when the id is not registered.
	GetMN(proTxHash chainhash.Hash) *Masternode
}

// ListSource produces registry snapshots for chain positions. The registry
// is externally synchronized with the chain-state lock.
type ListSource interface {
	ListForBlock(bi *chain.BlockIndex) (MasternodeList, error)
}

// StaticList is an immutable in-memory MasternodeList.
type StaticList struct {
	blockHash chainhash.Hash

	mtx  sync.RWMutex
	mns  map[chainhash.Hash]*Masternode
	keys []chainhash.Hash
}

func NewStaticList(blockHash chainhash.Hash, mns []*Masternode) *StaticList {
	l := &StaticList{
		blockHash: blockHash,
		mns:       make(map[chainhash.Hash]*Masternode, len(mns)),
	}
	for _, mn := range mns {
		if _, ok := l.mns[mn.ProTxHash]; ok {
			panic(fmt.Sprintf("duplicate proTxHash %s", mn.ProTxHash))
		}
		l.mns[mn.ProTxHash] = mn
		l.keys = append(l.keys, mn.ProTxHash)
	}
	// deterministic visiting order
	sort.Slice(l.keys, func(i, j int) bool {
		return bytes.Compare(l.keys[i][:], l.keys[j][:]) < 0
	})
	return l
}

func (l *StaticList) BlockHash() chainhash.Hash { return l.blockHash }

func (l *StaticList) Count() int { return len(l.keys) }

func (l *StaticList) ForEach(fn func(mn *Masternode)) {
	l.mtx.RLock()
	defer l.mtx.RUnlock()

	for _, key := range l.keys {
		fn(l.mns[key])
	}
}

func (l *StaticList) GetMN(proTxHash chainhash.Hash) *Masternode {
	l.mtx.RLock()
	defer l.mtx.RUnlock()

	return l.mns[proTxHash]
}

var _ MasternodeList = (*StaticList)(nil)
