package llmq

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/1NF1N18Y/dash/crypto/bls"
	tmbytes "github.com/1NF1N18Y/dash/libs/bytes"
)

// Final commitment versions. Odd versions carry legacy-scheme BLS keys, even
// versions basic-scheme keys; versions 2 and 4 additionally serialize the
// rotation index.
const (
	CommitmentVersionLegacy        uint16 = 1
	CommitmentVersionLegacyIndexed uint16 = 2
	CommitmentVersionBasic         uint16 = 3
	CommitmentVersionBasicIndexed  uint16 = 4
)

// QuorumRef identifies a quorum commitment by kind and the hash of the
// quorum's DKG base block.
type QuorumRef struct {
	Type       LLMQType
	QuorumHash chainhash.Hash
}

func (r QuorumRef) String() string {
	return fmt.Sprintf("%s:%s", r.Type, r.QuorumHash)
}

// Serialize writes the ref in its wire form (type byte, quorum hash).
func (r QuorumRef) Serialize(w io.Writer) error {
	if _, err := w.Write([]byte{byte(r.Type)}); err != nil {
		return err
	}
	_, err := w.Write(r.QuorumHash[:])
	return err
}

func (r *QuorumRef) Deserialize(rd io.Reader) error {
	var b [1]byte
	if _, err := io.ReadFull(rd, b[:]); err != nil {
		return err
	}
	r.Type = LLMQType(b[0])
	_, err := io.ReadFull(rd, r.QuorumHash[:])
	return err
}

// FinalCommitment is the mined output of a DKG session: the quorum's
// aggregate public key and the membership/signing bitsets, signed by the
// quorum itself and by the participating members.
type FinalCommitment struct {
	Version         uint16
	Type            LLMQType
	QuorumHash      chainhash.Hash
	QuorumIndex     int16
	Signers         []bool
	ValidMembers    []bool
	QuorumPublicKey bls.PublicKey
	QuorumVvecHash  chainhash.Hash
	QuorumSig       bls.Signature
	MembersSig      bls.Signature
}

// Ref returns the (type, hash) identity of the commitment.
func (fc *FinalCommitment) Ref() QuorumRef {
	return QuorumRef{Type: fc.Type, QuorumHash: fc.QuorumHash}
}

func (fc *FinalCommitment) indexed() bool {
	return fc.Version == CommitmentVersionLegacyIndexed ||
		fc.Version == CommitmentVersionBasicIndexed
}

// ValidateBasic performs stateless validation of the commitment's shape. It
// does not verify the BLS signatures against the member set; that is the
// DKG block processor's job.
func (fc *FinalCommitment) ValidateBasic() error {
	if fc.Version < CommitmentVersionLegacy || fc.Version > CommitmentVersionBasicIndexed {
		return fmt.Errorf("unknown commitment version %d", fc.Version)
	}
	params, ok := GetLLMQParams(fc.Type)
	if !ok {
		return fmt.Errorf("unknown llmq type %d", uint8(fc.Type))
	}
	if fc.QuorumHash == (chainhash.Hash{}) {
		return errors.New("null quorum hash")
	}
	if !fc.indexed() && fc.QuorumIndex != 0 {
		return fmt.Errorf("non-indexed commitment has quorum index %d", fc.QuorumIndex)
	}
	if len(fc.Signers) != params.Size || len(fc.ValidMembers) != params.Size {
		return fmt.Errorf("bitset sizes %d/%d do not match quorum size %d",
			len(fc.Signers), len(fc.ValidMembers), params.Size)
	}
	if err := fc.QuorumPublicKey.Validate(); err != nil {
		return fmt.Errorf("invalid quorum public key: %w", err)
	}
	if fc.QuorumSig.IsNull() || fc.MembersSig.IsNull() {
		return errors.New("null commitment signature")
	}
	return nil
}

func (fc *FinalCommitment) Serialize(w io.Writer) error {
	if err := writeUint16(w, fc.Version); err != nil {
		return err
	}
	if _, err := w.Write([]byte{byte(fc.Type)}); err != nil {
		return err
	}
	if _, err := w.Write(fc.QuorumHash[:]); err != nil {
		return err
	}
	if fc.indexed() {
		if err := writeUint16(w, uint16(fc.QuorumIndex)); err != nil {
			return err
		}
	}
	if err := writeBitSet(w, fc.Signers); err != nil {
		return err
	}
	if err := writeBitSet(w, fc.ValidMembers); err != nil {
		return err
	}
	if _, err := w.Write(fc.QuorumPublicKey[:]); err != nil {
		return err
	}
	if _, err := w.Write(fc.QuorumVvecHash[:]); err != nil {
		return err
	}
	if _, err := w.Write(fc.QuorumSig[:]); err != nil {
		return err
	}
	_, err := w.Write(fc.MembersSig[:])
	return err
}

func (fc *FinalCommitment) Deserialize(r io.Reader) error {
	var err error
	if fc.Version, err = readUint16(r); err != nil {
		return err
	}
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return err
	}
	fc.Type = LLMQType(b[0])
	if _, err := io.ReadFull(r, fc.QuorumHash[:]); err != nil {
		return err
	}
	fc.QuorumIndex = 0
	if fc.indexed() {
		idx, err := readUint16(r)
		if err != nil {
			return err
		}
		fc.QuorumIndex = int16(idx)
	}
	if fc.Signers, err = readBitSet(r); err != nil {
		return err
	}
	if fc.ValidMembers, err = readBitSet(r); err != nil {
		return err
	}
	if _, err := io.ReadFull(r, fc.QuorumPublicKey[:]); err != nil {
		return err
	}
	if _, err := io.ReadFull(r, fc.QuorumVvecHash[:]); err != nil {
		return err
	}
	if _, err := io.ReadFull(r, fc.QuorumSig[:]); err != nil {
		return err
	}
	_, err = io.ReadFull(r, fc.MembersSig[:])
	return err
}

type finalCommitmentJSON struct {
	Version           uint16         `json:"version"`
	LLMQType          uint8          `json:"llmqType"`
	QuorumHash        string         `json:"quorumHash"`
	QuorumIndex       int16          `json:"quorumIndex"`
	SignersCount      int            `json:"signersCount"`
	Signers           tmbytes.HexBytes `json:"signers"`
	ValidMembersCount int            `json:"validMembersCount"`
	ValidMembers      tmbytes.HexBytes `json:"validMembers"`
	QuorumPublicKey   string         `json:"quorumPublicKey"`
	QuorumVvecHash    string         `json:"quorumVvecHash"`
	QuorumSig         string         `json:"quorumSig"`
	MembersSig        string         `json:"membersSig"`
}

func (fc *FinalCommitment) MarshalJSON() ([]byte, error) {
	return json.Marshal(finalCommitmentJSON{
		Version:           fc.Version,
		LLMQType:          uint8(fc.Type),
		QuorumHash:        fc.QuorumHash.String(),
		QuorumIndex:       fc.QuorumIndex,
		SignersCount:      countBits(fc.Signers),
		Signers:           packBits(fc.Signers),
		ValidMembersCount: countBits(fc.ValidMembers),
		ValidMembers:      packBits(fc.ValidMembers),
		QuorumPublicKey:   fc.QuorumPublicKey.String(),
		QuorumVvecHash:    fc.QuorumVvecHash.String(),
		QuorumSig:         fc.QuorumSig.String(),
		MembersSig:        fc.MembersSig.String(),
	})
}

func countBits(bits []bool) int {
	n := 0
	for _, b := range bits {
		if b {
			n++
		}
	}
	return n
}

func packBits(bits []bool) []byte {
	packed := make([]byte, (len(bits)+7)/8)
	for i, bit := range bits {
		if bit {
			packed[i/8] |= 1 << (i % 8)
		}
	}
	return packed
}

// writeBitSet writes a dynamic bitset: the bit count as a compact size,
// then the bits packed little-endian.
func writeBitSet(w io.Writer, bits []bool) error {
	if err := wire.WriteVarInt(w, 0, uint64(len(bits))); err != nil {
		return err
	}
	_, err := w.Write(packBits(bits))
	return err
}

func readBitSet(r io.Reader) ([]bool, error) {
	count, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, err
	}
	if count > 1<<16 {
		return nil, fmt.Errorf("bitset claims %d bits", count)
	}
	packed := make([]byte, (count+7)/8)
	if _, err := io.ReadFull(r, packed); err != nil {
		return nil, err
	}
	bits := make([]bool, count)
	for i := range bits {
		bits[i] = packed[i/8]&(1<<(i%8)) != 0
	}
	return bits, nil
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
