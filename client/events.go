package client

import (
	"context"
	"math/big"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"

	"github.com/rony4d/go-settlement/felt"
	"github.com/rony4d/go-settlement/messaging"
	"github.com/rony4d/go-settlement/settlement"
	"github.com/rony4d/go-settlement/starknet/contracts/corecontract"
)

// StateUpdate is a decoded LogStateUpdate event.
type StateUpdate struct {
	State     settlement.State
	BlockHash felt.Felt
	Raw       types.Log
}

type logStateUpdate struct {
	GlobalRoot  *big.Int
	BlockNumber *big.Int
	BlockHash   *big.Int
}

type logMessageToL2 struct {
	FromAddress common.Address
	ToAddress   *big.Int
	Selector    *big.Int
	Payload     []*big.Int
	Nonce       *big.Int
}

func (c *StarknetContractClient) parseStateUpdate(l types.Log) (StateUpdate, error) {
	var ev logStateUpdate
	if err := c.contract.UnpackLog(&ev, "LogStateUpdate", l); err != nil {
		return StateUpdate{}, err
	}
	root, err := felt.FromBig(ev.GlobalRoot)
	if err != nil {
		return StateUpdate{}, &settlement.EncodingError{Field: "globalRoot", Err: err}
	}
	hash, err := felt.FromBig(ev.BlockHash)
	if err != nil {
		return StateUpdate{}, &settlement.EncodingError{Field: "blockHash", Err: err}
	}
	if !ev.BlockNumber.IsUint64() {
		return StateUpdate{}, &settlement.EncodingError{Field: "blockNumber", Err: felt.ErrNotUint64}
	}
	return StateUpdate{
		State:     settlement.State{BlockNumber: idx.Block(ev.BlockNumber.Uint64()), StateRoot: root},
		BlockHash: hash,
		Raw:       l,
	}, nil
}

// parseMessageToL2 decodes a LogMessageToL2 or ConsumedMessageToL2 log. ok is
// false when l is a different event.
func (c *StarknetContractClient) parseMessageToL2(name string, l types.Log) (msg messaging.MessageL1ToL2, ok bool, err error) {
	if len(l.Topics) == 0 || l.Topics[0] != corecontract.ContractAbi.Events[name].ID || l.Address != c.address {
		return msg, false, nil
	}
	var ev logMessageToL2
	if err := c.contract.UnpackLog(&ev, name, l); err != nil {
		return msg, false, err
	}
	msg.FromAddress = felt.FromAddress(ev.FromAddress)
	fields := []struct {
		name string
		in   *big.Int
		out  *felt.Felt
	}{
		{"toAddress", ev.ToAddress, &msg.ToAddress},
		{"selector", ev.Selector, &msg.Selector},
		{"nonce", ev.Nonce, &msg.Nonce},
	}
	for _, f := range fields {
		v, err := felt.FromBig(f.in)
		if err != nil {
			return msg, false, &settlement.EncodingError{Field: f.name, Err: err}
		}
		*f.out = v
	}
	if msg.Payload, err = felt.Slice(ev.Payload); err != nil {
		return msg, false, &settlement.EncodingError{Field: "payload", Err: err}
	}
	return msg, true, nil
}

// StateUpdates returns the state transitions accepted since L1 block fromBlock.
func (c *StarknetContractClient) StateUpdates(ctx context.Context, fromBlock uint64) ([]StateUpdate, error) {
	logs, sub, err := c.contract.FilterLogs(&bind.FilterOpts{Start: fromBlock, Context: ctx}, "LogStateUpdate")
	if err != nil {
		return nil, err
	}
	defer sub.Unsubscribe()

	var updates []StateUpdate
	collect := func(l types.Log) error {
		u, err := c.parseStateUpdate(l)
		if err != nil {
			return err
		}
		updates = append(updates, u)
		return nil
	}
	for {
		select {
		case l := <-logs:
			if err := collect(l); err != nil {
				return nil, err
			}
		case err := <-sub.Err():
			if err != nil {
				return nil, err
			}
			// The producer is done; drain what it buffered.
			for {
				select {
				case l := <-logs:
					if err := collect(l); err != nil {
						return nil, err
					}
				default:
					return updates, nil
				}
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// WatchStateUpdates delivers every state transition mined from now on to sink.
func (c *StarknetContractClient) WatchStateUpdates(ctx context.Context, sink chan<- StateUpdate) (event.Subscription, error) {
	logs, sub, err := c.contract.WatchLogs(&bind.WatchOpts{Context: ctx}, "LogStateUpdate")
	if err != nil {
		return nil, err
	}
	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case l := <-logs:
				u, err := c.parseStateUpdate(l)
				if err != nil {
					return err
				}
				select {
				case sink <- u:
				case err := <-sub.Err():
					return err
				case <-quit:
					return nil
				}
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	}), nil
}
