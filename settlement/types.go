package settlement

import (
	"context"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"

	"github.com/rony4d/go-settlement/felt"
	"github.com/rony4d/go-settlement/messaging"
	"github.com/rony4d/go-settlement/snos"
)

// ChainSpec pins the program whose proofs are accepted. It is written once.
type ChainSpec struct {
	ProgramHash felt.Felt `json:"program_hash"`
	ConfigHash  felt.Felt `json:"config_hash"`
}

// State is the committed L2 state. The zero value is the state before any update.
type State struct {
	BlockNumber idx.Block `json:"block_number"`
	StateRoot   felt.Felt `json:"state_root"`
}

// Reader is the read side of the settlement protocol.
type Reader interface {
	GetChainSpec(ctx context.Context) (ChainSpec, error)
	GetState(ctx context.Context) (State, error)
	MessageToL2Exists(ctx context.Context, msg messaging.MessageL1ToL2) (bool, error)
	MessageToL1Exists(ctx context.Context, msg messaging.MessageL2ToL1) (bool, error)
}

// API is implemented both by the local Provider and by the contract client,
// so callers and tests can run against either.
type API interface {
	Reader

	Initialize(ctx context.Context, spec ChainSpec) error
	UpdateState(ctx context.Context, output *snos.ProgramOutput) error
	SendMessageToL2(ctx context.Context, msg messaging.MessageL1ToL2) (common.Hash, error)
	L1ToL2Nonce(ctx context.Context) (uint64, error)
}
