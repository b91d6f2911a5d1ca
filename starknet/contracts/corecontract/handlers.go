package corecontract

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"

	"github.com/rony4d/go-settlement/felt"
	"github.com/rony4d/go-settlement/messaging"
	"github.com/rony4d/go-settlement/settlement"
	"github.com/rony4d/go-settlement/snos"
)

func argFelt(name string, v interface{}) (felt.Felt, error) {
	f, err := felt.FromBig(v.(*big.Int))
	if err != nil {
		return felt.Zero, &settlement.EncodingError{Field: name, Err: err}
	}
	return f, nil
}

func argFelts(name string, v interface{}) ([]felt.Felt, error) {
	fs, err := felt.Slice(v.([]*big.Int))
	if err != nil {
		return nil, &settlement.EncodingError{Field: name, Err: err}
	}
	return fs, nil
}

// initialize(uint256 programHash, uint256 configHash)
func (c *Contract) handleInitialize(f frame, args []interface{}) ([]byte, error) {
	if err := c.onlyGovernor(f.caller); err != nil {
		return nil, err
	}
	programHash, err := argFelt("programHash", args[0])
	if err != nil {
		return nil, err
	}
	configHash, err := argFelt("configHash", args[1])
	if err != nil {
		return nil, err
	}
	if !f.commit {
		return nil, c.provider.CheckInitialize(f.ctx)
	}
	return nil, c.provider.Initialize(f.ctx, settlement.ChainSpec{ProgramHash: programHash, ConfigHash: configHash})
}

// updateState(uint256[] programOutput)
func (c *Contract) handleUpdateState(f frame, args []interface{}) ([]byte, []*types.Log, error) {
	if err := c.onlyOperator(f.caller); err != nil {
		return nil, nil, err
	}
	words, err := argFelts("programOutput", args[0])
	if err != nil {
		return nil, nil, err
	}
	output, err := snos.Decode(words)
	if err != nil {
		return nil, nil, err
	}
	// Logs are packed before anything is written, so a packing failure
	// cannot follow an accepted update.
	logs, err := updateStateLogs(output)
	if err != nil {
		return nil, nil, err
	}
	if !f.commit {
		err = c.provider.CheckUpdateState(f.ctx, output)
	} else {
		err = c.provider.UpdateState(f.ctx, output)
	}
	if err != nil {
		return nil, nil, err
	}
	return nil, logs, nil
}

// updateStateLogs lists the events of an accepted update: emitted messages,
// consumed messages, then the state update itself.
func updateStateLogs(output *snos.ProgramOutput) ([]*types.Log, error) {
	logs := make([]*types.Log, 0, len(output.MessagesToL1)+len(output.MessagesToL2)+1)
	for _, m := range output.MessagesToL1 {
		l, err := logMessageToL1(m)
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	for _, m := range output.MessagesToL2 {
		l, err := logMessageToL2("ConsumedMessageToL2", m)
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	l, err := logStateUpdate(output)
	if err != nil {
		return nil, err
	}
	return append(logs, l), nil
}

// sendMessageToL2(uint256 toAddress, uint256 selector, uint256[] payload) returns (bytes32, uint256)
func (c *Contract) handleSendMessageToL2(f frame, args []interface{}) ([]byte, []*types.Log, error) {
	to, err := argFelt("toAddress", args[0])
	if err != nil {
		return nil, nil, err
	}
	selector, err := argFelt("selector", args[1])
	if err != nil {
		return nil, nil, err
	}
	payload, err := argFelts("payload", args[2])
	if err != nil {
		return nil, nil, err
	}
	send := c.provider.SendNextMessageToL2
	if !f.commit {
		send = c.provider.PreviewNextMessageToL2
	}
	msg, h, err := send(f.ctx, messaging.MessageL1ToL2{
		FromAddress: felt.FromAddress(f.caller),
		ToAddress:   to,
		Selector:    selector,
		Payload:     payload,
	})
	if err != nil {
		return nil, nil, err
	}
	l, err := logMessageToL2("LogMessageToL2", msg)
	if err != nil {
		return nil, nil, err
	}
	result, err := ContractAbi.Methods["sendMessageToL2"].Outputs.Pack([32]byte(h), msg.Nonce.Big())
	if err != nil {
		return nil, nil, err
	}
	return result, []*types.Log{l}, nil
}

// registerOperator(address) / unregisterOperator(address)
func (c *Contract) handleSetOperator(f frame, args []interface{}, enabled bool) ([]byte, error) {
	if err := c.onlyGovernor(f.caller); err != nil {
		return nil, err
	}
	addr := args[0].(common.Address)
	if !f.commit {
		return nil, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if enabled {
		c.operators[addr] = true
	} else {
		delete(c.operators, addr)
	}
	c.Log.Info("Operator set changed", "operator", addr, "enabled", enabled)
	return nil, nil
}

// handleView serves the read-only getters. Before initialization the chain spec
// getters return zero, like unset contract storage.
func (c *Contract) handleView(ctx context.Context, method *abi.Method, args []interface{}) ([]byte, error) {
	p := c.provider
	switch method.Name {
	case "programHash", "configHash", "isInitialized":
		spec, err := p.GetChainSpec(ctx)
		initialized := err == nil
		switch method.Name {
		case "programHash":
			return method.Outputs.Pack(spec.ProgramHash.Big())
		case "configHash":
			return method.Outputs.Pack(spec.ConfigHash.Big())
		}
		return method.Outputs.Pack(initialized)
	case "stateRoot", "stateBlockNumber":
		st, err := p.GetState(ctx)
		if err != nil {
			return nil, err
		}
		if method.Name == "stateRoot" {
			return method.Outputs.Pack(st.StateRoot.Big())
		}
		return method.Outputs.Pack(new(big.Int).SetUint64(uint64(st.BlockNumber)))
	case "l1ToL2MessageNonce":
		n, err := p.L1ToL2Nonce(ctx)
		if err != nil {
			return nil, err
		}
		return method.Outputs.Pack(new(big.Int).SetUint64(n))
	case "l1ToL2Messages":
		n, err := p.MessageToL2Count(common.Hash(args[0].([32]byte)))
		if err != nil {
			return nil, err
		}
		return method.Outputs.Pack(new(big.Int).SetUint64(n))
	case "l2ToL1Messages":
		n, err := p.MessageToL1Count(common.Hash(args[0].([32]byte)))
		if err != nil {
			return nil, err
		}
		return method.Outputs.Pack(new(big.Int).SetUint64(n))
	}
	c.Log.Error("Core contract: unknown function", "function", method.Name)
	return nil, vm.ErrExecutionReverted
}
