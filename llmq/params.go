package llmq

import (
	"fmt"
)

// LLMQType identifies a long-living masternode quorum kind from the consensus
// parameter set.
type LLMQType uint8

const (
	LLMQType50_60  LLMQType = 1
	LLMQType400_60 LLMQType = 2
	LLMQType400_85 LLMQType = 3
	LLMQType100_67 LLMQType = 4
	LLMQType60_75  LLMQType = 5
	LLMQType25_67  LLMQType = 6

	LLMQTypeTest LLMQType = 100
)

// Params describes one quorum kind.
type Params struct {
	Type      LLMQType
	Name      string
	Size      int
	Threshold int

	// UseRotation marks quorum kinds formed in multi-quorum DKG cycles;
	// their commitments carry a non-zero quorum index.
	UseRotation bool

	// SigningActiveQuorumCount is how many of the most recently mined
	// quorums of this kind are simultaneously active.
	SigningActiveQuorumCount int

	// DKGInterval is the number of blocks between DKG session starts.
	DKGInterval int32
}

var paramsByType = map[LLMQType]Params{
	LLMQType50_60: {
		Type: LLMQType50_60, Name: "llmq_50_60",
		Size: 50, Threshold: 30,
		SigningActiveQuorumCount: 24, DKGInterval: 24,
	},
	LLMQType400_60: {
		Type: LLMQType400_60, Name: "llmq_400_60",
		Size: 400, Threshold: 240,
		SigningActiveQuorumCount: 4, DKGInterval: 288,
	},
	LLMQType400_85: {
		Type: LLMQType400_85, Name: "llmq_400_85",
		Size: 400, Threshold: 340,
		SigningActiveQuorumCount: 4, DKGInterval: 576,
	},
	LLMQType100_67: {
		Type: LLMQType100_67, Name: "llmq_100_67",
		Size: 100, Threshold: 67,
		SigningActiveQuorumCount: 24, DKGInterval: 24,
	},
	LLMQType60_75: {
		Type: LLMQType60_75, Name: "llmq_60_75",
		Size: 60, Threshold: 45, UseRotation: true,
		SigningActiveQuorumCount: 32, DKGInterval: 288,
	},
	LLMQType25_67: {
		Type: LLMQType25_67, Name: "llmq_25_67",
		Size: 25, Threshold: 17,
		SigningActiveQuorumCount: 24, DKGInterval: 24,
	},
	LLMQTypeTest: {
		Type: LLMQTypeTest, Name: "llmq_test",
		Size: 3, Threshold: 2,
		SigningActiveQuorumCount: 2, DKGInterval: 24,
	},
}

// typesAsc is every known quorum kind in ascending type order. Enumerations
// that must be deterministic (active-set listings, diffs) iterate this.
var typesAsc = []LLMQType{
	LLMQType50_60,
	LLMQType400_60,
	LLMQType400_85,
	LLMQType100_67,
	LLMQType60_75,
	LLMQType25_67,
	LLMQTypeTest,
}

// GetLLMQParams returns the parameters for the given quorum kind.
func GetLLMQParams(t LLMQType) (Params, bool) {
	p, ok := paramsByType[t]
	return p, ok
}

// Types returns all known quorum kinds in ascending order.
func Types() []LLMQType {
	out := make([]LLMQType, len(typesAsc))
	copy(out, typesAsc)
	return out
}

func (t LLMQType) String() string {
	if p, ok := paramsByType[t]; ok {
		return p.Name
	}
	return fmt.Sprintf("llmq_unknown_%d", uint8(t))
}
