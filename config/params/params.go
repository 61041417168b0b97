// Package params holds the network-level parameters the masternode list diff
// machinery depends on: address encoding magic, protocol-upgrade activation
// heights and the chainlock confirmation depth.
package params

import (
	"github.com/btcsuite/btcd/chaincfg"
)

// ChainlockSigOffset is the fixed confirmation-depth offset between a DKG
// cycle start and the block whose coinbase carries the chainlock signature
// expected to finalize that DKG session. Protocol constant, identical on all
// networks.
const ChainlockSigOffset = 8

// ChainParams bundles per-network parameters.
type ChainParams struct {
	Name string

	// AddrParams carries the base58 version bytes used to render payout and
	// voting addresses.
	AddrParams *chaincfg.Params

	// V20Height is the activation height of the v20 hard fork, which
	// introduced chainlock signatures in the coinbase payload.
	V20Height int32
}

// IsV20Active reports whether the v20 upgrade is active at the given height.
func (p *ChainParams) IsV20Active(height int32) bool {
	return height >= p.V20Height
}

var (
	mainNetAddrParams = chaincfg.Params{
		Name:             "dash-mainnet",
		PubKeyHashAddrID: 0x4c, // addresses start with 'X'
		ScriptHashAddrID: 0x10, // addresses start with '7'
		PrivateKeyID:     0xcc,
	}

	testNetAddrParams = chaincfg.Params{
		Name:             "dash-testnet",
		PubKeyHashAddrID: 0x8c, // addresses start with 'y'
		ScriptHashAddrID: 0x13,
		PrivateKeyID:     0xef,
	}

	regTestAddrParams = chaincfg.Params{
		Name:             "dash-regtest",
		PubKeyHashAddrID: 0x8c,
		ScriptHashAddrID: 0x13,
		PrivateKeyID:     0xef,
	}
)

var (
	MainNet = ChainParams{
		Name:       "mainnet",
		AddrParams: &mainNetAddrParams,
		V20Height:  1987776,
	}

	TestNet = ChainParams{
		Name:       "testnet",
		AddrParams: &testNetAddrParams,
		V20Height:  905100,
	}

	RegTest = ChainParams{
		Name:       "regtest",
		AddrParams: &regTestAddrParams,
		V20Height:  0,
	}
)

// ByName resolves a network name to its parameters; it returns nil for an
// unknown name.
func ByName(name string) *ChainParams {
	switch name {
	case MainNet.Name:
		return &MainNet
	case TestNet.Name:
		return &TestNet
	case RegTest.Name:
		return &RegTest
	}
	return nil
}
