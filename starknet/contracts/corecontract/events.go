package corecontract

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/rony4d/go-settlement/felt"
	"github.com/rony4d/go-settlement/messaging"
	"github.com/rony4d/go-settlement/snos"
)

// eventLog packs the non-indexed values of event name. The caller of Run sets
// the log address and block fields.
func eventLog(name string, topics []common.Hash, data ...interface{}) (*types.Log, error) {
	ev := ContractAbi.Events[name]
	packed, err := ev.Inputs.NonIndexed().Pack(data...)
	if err != nil {
		return nil, err
	}
	return &types.Log{
		Topics: append([]common.Hash{ev.ID}, topics...),
		Data:   packed,
	}, nil
}

// LogStateUpdate(uint256 globalRoot, uint256 blockNumber, uint256 blockHash)
func logStateUpdate(o *snos.ProgramOutput) (*types.Log, error) {
	return eventLog("LogStateUpdate", nil,
		o.NewStateRoot.Big(), felt.FromUint64(uint64(o.BlockNumber)).Big(), o.BlockHash.Big())
}

// logMessageToL2 builds LogMessageToL2 or ConsumedMessageToL2; both share a layout.
// An address topic is the address left-padded to 32 bytes, which is exactly
// the felt embedding of the sender.
func logMessageToL2(name string, m messaging.MessageL1ToL2) (*types.Log, error) {
	return eventLog(name,
		[]common.Hash{m.FromAddress.Hash(), m.ToAddress.Hash(), m.Selector.Hash()},
		felt.Bigs(m.Payload), m.Nonce.Big())
}

// LogMessageToL1(uint256 indexed fromAddress, uint256 indexed toAddress, uint256[] payload)
func logMessageToL1(m messaging.MessageL2ToL1) (*types.Log, error) {
	return eventLog("LogMessageToL1",
		[]common.Hash{m.FromAddress.Hash(), m.ToAddress.Hash()},
		felt.Bigs(m.Payload))
}
