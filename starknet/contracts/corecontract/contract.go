// Package corecontract exposes a settlement.Provider to L1 callers as an
// ABI-encoded contract: calldata in, return data and logs out.
//
// Protocol failures revert with Error(string) data whose reason is one of the
// settlement reason codes, so any client can map it back to a typed error.
package corecontract

import (
	"bytes"
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"

	"github.com/rony4d/go-settlement/logger"
	"github.com/rony4d/go-settlement/settlement"
)

// errorSig is bytes4(keccak256("Error(string)")).
var errorSig = []byte{0x08, 0xc3, 0x79, 0xa0}

// Contract is the core contract bound to one provider. The governor manages
// the operator set; only operators may update the state.
type Contract struct {
	provider *settlement.Provider
	governor common.Address

	mu        sync.RWMutex
	operators map[common.Address]bool

	logger.Instance
}

// New returns a contract governed by governor, who is also the first operator.
func New(provider *settlement.Provider, governor common.Address) *Contract {
	return &Contract{
		provider:  provider,
		governor:  governor,
		operators: map[common.Address]bool{governor: true},
		Instance:  logger.New("core-contract"),
	}
}

func (c *Contract) Governor() common.Address {
	return c.governor
}

func (c *Contract) IsOperator(addr common.Address) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.operators[addr]
}

// parseABIInput resolves the method and unpacks its arguments.
func parseABIInput(input []byte) (*abi.Method, []interface{}, error) {
	if len(input) < 4 {
		return nil, nil, vm.ErrExecutionReverted
	}
	method, err := ContractAbi.MethodById(input[:4])
	if err != nil {
		return nil, nil, vm.ErrExecutionReverted
	}
	args, err := method.Inputs.Unpack(input[4:])
	if err != nil {
		return nil, nil, vm.ErrExecutionReverted
	}
	return method, args, nil
}

// frame is one invocation. A frame that does not commit runs every check of
// a mutation and leaves state untouched.
type frame struct {
	ctx    context.Context
	caller common.Address
	commit bool
}

// Run executes one transaction. On revert, the returned bytes are the revert
// data and err is vm.ErrExecutionReverted. Logs are only returned on success.
func (c *Contract) Run(caller common.Address, input []byte) ([]byte, []*types.Log, error) {
	return c.execute(frame{ctx: context.Background(), caller: caller, commit: true}, input)
}

// Call executes input as a static call: views behave as in Run, mutations
// return what they would return and revert as they would revert, but nothing
// is written.
func (c *Contract) Call(caller common.Address, input []byte) ([]byte, []*types.Log, error) {
	return c.execute(frame{ctx: context.Background(), caller: caller}, input)
}

func (c *Contract) execute(f frame, input []byte) ([]byte, []*types.Log, error) {
	method, args, err := parseABIInput(input)
	if err != nil {
		return nil, nil, err
	}

	var (
		result []byte
		logs   []*types.Log
	)
	switch {
	case bytes.Equal(input[:4], initializeMethodID):
		result, err = c.handleInitialize(f, args)
	case bytes.Equal(input[:4], updateStateMethodID):
		result, logs, err = c.handleUpdateState(f, args)
	case bytes.Equal(input[:4], sendMessageToL2MethodID):
		result, logs, err = c.handleSendMessageToL2(f, args)
	default:
		result, err = c.dispatchAdmin(f, method, args)
	}
	if err != nil {
		reason := settlement.ReasonOf(err)
		c.Log.Debug("Core contract call reverted", "method", method.Name, "caller", f.caller, "commit", f.commit, "reason", reason, "err", err)
		if reason == "" {
			return nil, nil, vm.ErrExecutionReverted
		}
		data, packErr := encodeRevertReason(reason)
		if packErr != nil {
			return nil, nil, vm.ErrExecutionReverted
		}
		return data, nil, vm.ErrExecutionReverted
	}
	return result, logs, nil
}

func (c *Contract) dispatchAdmin(f frame, method *abi.Method, args []interface{}) ([]byte, error) {
	switch method.Name {
	case "registerOperator":
		return c.handleSetOperator(f, args, true)
	case "unregisterOperator":
		return c.handleSetOperator(f, args, false)
	case "isOperator":
		return method.Outputs.Pack(c.IsOperator(args[0].(common.Address)))
	case "governor":
		return method.Outputs.Pack(c.governor)
	default:
		return c.handleView(f.ctx, method, args)
	}
}

func (c *Contract) onlyGovernor(caller common.Address) error {
	if caller != c.governor {
		return settlement.ErrOnlyGovernor
	}
	return nil
}

func (c *Contract) onlyOperator(caller common.Address) error {
	if !c.IsOperator(caller) {
		return settlement.ErrOnlyOperator
	}
	return nil
}

// encodeRevertReason encodes reason as Error(string) revert data.
func encodeRevertReason(reason string) ([]byte, error) {
	packedReason, err := abi.Arguments{{Type: stringType}}.Pack(reason)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, errorSig...), packedReason...), nil
}

var stringType, _ = abi.NewType("string", "", nil)
