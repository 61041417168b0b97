package bls

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	blst "github.com/supranational/blst/bindings/go"
)

func genPubKey(t *testing.T) PublicKey {
	t.Helper()

	var ikm [32]byte
	_, err := rand.Read(ikm[:])
	require.NoError(t, err)

	sk := blst.KeyGen(ikm[:])
	require.NotNil(t, sk)

	pk, err := PublicKeyFromBytes(new(blst.P1Affine).From(sk).Compress())
	require.NoError(t, err)
	return pk
}

func TestPublicKeyValidate(t *testing.T) {
	pk := genPubKey(t)
	require.NoError(t, pk.Validate())

	var garbage PublicKey
	copy(garbage[:], []byte("definitely not a valid G1 point, not even close!"))
	assert.Error(t, garbage.Validate())

	// the identity / zero key must be rejected
	assert.Error(t, PublicKey{}.Validate())
}

func TestPublicKeyFromBytes(t *testing.T) {
	_, err := PublicKeyFromBytes(make([]byte, PubKeySize-1))
	require.Error(t, err)

	pk := genPubKey(t)
	pk2, err := PublicKeyFromBytes(pk.Bytes())
	require.NoError(t, err)
	assert.True(t, pk.Equal(pk2))
	assert.False(t, pk.IsZero())
}

func TestSignatureNull(t *testing.T) {
	var sig Signature
	assert.True(t, sig.IsNull())
	assert.Error(t, sig.Validate())

	sig[0] = 1
	assert.False(t, sig.IsNull())
}

func TestSignatureValidate(t *testing.T) {
	var ikm [32]byte
	_, err := rand.Read(ikm[:])
	require.NoError(t, err)

	sk := blst.KeyGen(ikm[:])
	dst := []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_NUL_")
	sigBytes := new(blst.P2Affine).Sign(sk, []byte("msg"), dst).Compress()

	sig, err := SignatureFromBytes(sigBytes)
	require.NoError(t, err)
	require.NoError(t, sig.Validate())

	var garbage Signature
	copy(garbage[:], []byte("garbage"))
	assert.Error(t, garbage.Validate())
}

func TestSignatureCompare(t *testing.T) {
	var a, b Signature
	b[95] = 1
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(a))
}
