package bls

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	blst "github.com/supranational/blst/bindings/go"
)

const (
	// PubKeySize is the size, in bytes, of a compressed BLS12-381 G1 public key.
	PubKeySize = 48
	// SignatureSize is the size, in bytes, of a compressed BLS12-381 G2 signature.
	SignatureSize = 96
)

// Scheme selects the serialization scheme for operator public keys. Both
// schemes produce 48 bytes; they differ only in the bit layout of the
// compressed point. Keys are carried in whichever scheme the registry
// recorded, so (de)serialization is a copy either way.
type Scheme uint16

const (
	SchemeLegacy Scheme = 1
	SchemeBasic  Scheme = 2
)

var (
	errPubKeyInvalidSize = errors.New("invalid public key size")
	errSigInvalidSize    = errors.New("invalid signature size")
)

// PublicKey is a compressed BLS12-381 G1 public key.
type PublicKey [PubKeySize]byte

// PublicKeyFromBytes copies bz into a PublicKey.
func PublicKeyFromBytes(bz []byte) (PublicKey, error) {
	var pk PublicKey
	if len(bz) != PubKeySize {
		return pk, errPubKeyInvalidSize
	}
	copy(pk[:], bz)
	return pk, nil
}

func (pk PublicKey) Bytes() []byte {
	return pk[:]
}

func (pk PublicKey) IsZero() bool {
	return pk == PublicKey{}
}

// Validate checks that the key is a valid point in the G1 group and not the
// identity element.
func (pk PublicKey) Validate() error {
	p := new(blst.P1Affine).Uncompress(pk[:])
	if p == nil {
		return fmt.Errorf("public key %s is not a valid compressed G1 point", pk)
	}
	if !p.KeyValidate() {
		return fmt.Errorf("public key %s failed group membership check", pk)
	}
	return nil
}

func (pk PublicKey) Equal(other PublicKey) bool {
	return bytes.Equal(pk[:], other[:])
}

func (pk PublicKey) String() string {
	return hex.EncodeToString(pk[:])
}

// Signature is a compressed BLS12-381 G2 signature. The zero value is the
// null signature, used where a chainlock has not been committed yet.
type Signature [SignatureSize]byte

// SignatureFromBytes copies bz into a Signature.
func SignatureFromBytes(bz []byte) (Signature, error) {
	var sig Signature
	if len(bz) != SignatureSize {
		return sig, errSigInvalidSize
	}
	copy(sig[:], bz)
	return sig, nil
}

func (sig Signature) Bytes() []byte {
	return sig[:]
}

// IsNull reports whether the signature is the null (absent) signature.
func (sig Signature) IsNull() bool {
	return sig == Signature{}
}

// Validate checks that a non-null signature is a valid point in the G2 group.
func (sig Signature) Validate() error {
	if sig.IsNull() {
		return errors.New("null signature")
	}
	if new(blst.P2Affine).Uncompress(sig[:]) == nil {
		return fmt.Errorf("signature %s is not a valid compressed G2 point", sig)
	}
	return nil
}

func (sig Signature) Equal(other Signature) bool {
	return bytes.Equal(sig[:], other[:])
}

// Compare returns a bytewise ordering of two signatures. It is used to keep
// signature-keyed tables in a canonical order.
func (sig Signature) Compare(other Signature) int {
	return bytes.Compare(sig[:], other[:])
}

func (sig Signature) String() string {
	return hex.EncodeToString(sig[:])
}
