package corecontract

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-settlement/felt"
	"github.com/rony4d/go-settlement/logger"
	"github.com/rony4d/go-settlement/messaging"
	"github.com/rony4d/go-settlement/settlement"
	"github.com/rony4d/go-settlement/snos"
)

var (
	governor = common.HexToAddress("0x239b7e3e6f6df5a8b6e9a1f6f0a7c4a44a5f2c01")
	operator = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	stranger = common.HexToAddress("0x0000000000000000000000000000000000000bad")
)

func newContract(t *testing.T) *Contract {
	logger.SetTestMode(t)
	p, err := settlement.NewProvider(memorydb.New())
	require.NoError(t, err)
	return New(p, governor)
}

func pack(t *testing.T, method string, args ...interface{}) []byte {
	input, err := ContractAbi.Pack(method, args...)
	require.NoError(t, err)
	return input
}

func call(t *testing.T, c *Contract, caller common.Address, method string, args ...interface{}) []interface{} {
	out, _, err := c.Run(caller, pack(t, method, args...))
	require.NoError(t, err, method)
	values, err := ContractAbi.Unpack(method, out)
	require.NoError(t, err)
	return values
}

func requireRevert(t *testing.T, c *Contract, caller common.Address, reason string, method string, args ...interface{}) {
	out, logs, err := c.Run(caller, pack(t, method, args...))
	require.ErrorIs(t, err, vm.ErrExecutionReverted)
	require.Nil(t, logs)
	got, err := abi.UnpackRevert(out)
	require.NoError(t, err)
	require.Equal(t, reason, got)
}

func requireBig(t *testing.T, want int64, got interface{}) {
	t.Helper()
	require.Zero(t, big.NewInt(want).Cmp(got.(*big.Int)), "want %d, got %v", want, got)
}

func bigs(vs ...uint64) []*big.Int {
	out := make([]*big.Int, len(vs))
	for i, v := range vs {
		out[i] = new(big.Int).SetUint64(v)
	}
	return out
}

func TestInitializeAndViews(t *testing.T) {
	c := newContract(t)

	require.Equal(t, false, call(t, c, stranger, "isInitialized")[0])
	requireBig(t, 0, call(t, c, stranger, "programHash")[0])

	requireRevert(t, c, stranger, settlement.ReasonOnlyGovernor, "initialize", big.NewInt(1), big.NewInt(2))
	call(t, c, governor, "initialize", big.NewInt(1), big.NewInt(2))
	requireRevert(t, c, governor, settlement.ReasonAlreadyInitialized, "initialize", big.NewInt(1), big.NewInt(2))

	require.Equal(t, true, call(t, c, stranger, "isInitialized")[0])
	requireBig(t, 1, call(t, c, stranger, "programHash")[0])
	requireBig(t, 2, call(t, c, stranger, "configHash")[0])
	requireBig(t, 0, call(t, c, stranger, "stateBlockNumber")[0])
	require.Equal(t, governor, call(t, c, stranger, "governor")[0])
}

func TestInitializeRejectsWideFelt(t *testing.T) {
	c := newContract(t)
	requireRevert(t, c, governor, settlement.ReasonEncoding, "initialize", felt.Prime.ToBig(), big.NewInt(1))
}

func TestOperators(t *testing.T) {
	c := newContract(t)
	call(t, c, governor, "initialize", big.NewInt(1), big.NewInt(1))
	output := (&snos.ProgramOutput{BlockNumber: 1, NewStateRoot: felt.FromUint64(1), ConfigHash: felt.FromUint64(1)}).Encode()

	requireRevert(t, c, operator, settlement.ReasonOnlyOperator, "updateState", felt.Bigs(output))
	requireRevert(t, c, operator, settlement.ReasonOnlyGovernor, "registerOperator", operator)

	call(t, c, governor, "registerOperator", operator)
	require.Equal(t, true, call(t, c, stranger, "isOperator", operator)[0])
	call(t, c, operator, "updateState", felt.Bigs(output))

	call(t, c, governor, "unregisterOperator", operator)
	require.False(t, c.IsOperator(operator))
	require.True(t, c.IsOperator(governor))
}

func TestMessageFlowAndEvents(t *testing.T) {
	c := newContract(t)
	call(t, c, governor, "initialize", big.NewInt(1), big.NewInt(1))

	out, logs, err := c.Run(stranger, pack(t, "sendMessageToL2", big.NewInt(0x77), big.NewInt(2), bigs(1)))
	require.NoError(t, err)
	values, err := ContractAbi.Unpack("sendMessageToL2", out)
	require.NoError(t, err)

	sent := messaging.MessageL1ToL2{
		FromAddress: felt.FromAddress(stranger),
		ToAddress:   felt.FromUint64(0x77),
		Nonce:       felt.FromUint64(0),
		Selector:    felt.FromUint64(2),
		Payload:     []felt.Felt{felt.FromUint64(1)},
	}
	require.Equal(t, [32]byte(sent.Hash()), values[0])
	requireBig(t, 0, values[1])

	require.Len(t, logs, 1)
	ev := ContractAbi.Events["LogMessageToL2"]
	require.Equal(t, ev.ID, logs[0].Topics[0])
	require.Equal(t, common.BytesToHash(stranger.Bytes()), logs[0].Topics[1])
	data, err := ev.Inputs.NonIndexed().Unpack(logs[0].Data)
	require.NoError(t, err)
	require.Equal(t, bigs(1), data[0])
	requireBig(t, 0, data[1])

	requireBig(t, 1, call(t, c, stranger, "l1ToL2Messages", [32]byte(sent.Hash()))[0])
	requireBig(t, 1, call(t, c, stranger, "l1ToL2MessageNonce")[0])

	toL1 := messaging.MessageL2ToL1{FromAddress: felt.FromUint64(0x77), ToAddress: felt.FromAddress(stranger), Payload: []felt.Felt{felt.FromUint64(9)}}
	output := &snos.ProgramOutput{
		BlockNumber:  1,
		NewStateRoot: felt.FromUint64(5),
		BlockHash:    felt.FromUint64(6),
		ConfigHash:   felt.FromUint64(1),
		MessagesToL1: []messaging.MessageL2ToL1{toL1},
		MessagesToL2: []messaging.MessageL1ToL2{sent},
	}
	_, logs, err = c.Run(governor, pack(t, "updateState", felt.Bigs(output.Encode())))
	require.NoError(t, err)
	require.Len(t, logs, 3)
	require.Equal(t, ContractAbi.Events["LogMessageToL1"].ID, logs[0].Topics[0])
	require.Equal(t, ContractAbi.Events["ConsumedMessageToL2"].ID, logs[1].Topics[0])
	require.Equal(t, ContractAbi.Events["LogStateUpdate"].ID, logs[2].Topics[0])

	update, err := ContractAbi.Events["LogStateUpdate"].Inputs.Unpack(logs[2].Data)
	require.NoError(t, err)
	require.Equal(t, []interface{}{big.NewInt(5), big.NewInt(1), big.NewInt(6)}, update)

	requireBig(t, 0, call(t, c, stranger, "l1ToL2Messages", [32]byte(sent.Hash()))[0])
	requireBig(t, 1, call(t, c, stranger, "l2ToL1Messages", [32]byte(toL1.Hash()))[0])
	requireBig(t, 5, call(t, c, stranger, "stateRoot")[0])
	requireBig(t, 1, call(t, c, stranger, "stateBlockNumber")[0])

	requireRevert(t, c, governor, settlement.ReasonSequenceGap, "updateState", felt.Bigs(output.Encode()))
}

func TestProtocolReverts(t *testing.T) {
	c := newContract(t)
	output := &snos.ProgramOutput{BlockNumber: 1, ConfigHash: felt.FromUint64(1)}
	requireRevert(t, c, governor, settlement.ReasonNotInitialized, "updateState", felt.Bigs(output.Encode()))

	call(t, c, governor, "initialize", big.NewInt(1), big.NewInt(1))
	output.ConfigHash = felt.FromUint64(3)
	requireRevert(t, c, governor, settlement.ReasonConfigMismatch, "updateState", felt.Bigs(output.Encode()))

	output.ConfigHash = felt.FromUint64(1)
	output.MessagesToL2 = []messaging.MessageL1ToL2{{Nonce: felt.FromUint64(4)}}
	requireRevert(t, c, governor, settlement.ReasonUnknownMessage, "updateState", felt.Bigs(output.Encode()))

	requireRevert(t, c, governor, settlement.ReasonMalformedOutput, "updateState", bigs(1, 2, 3))
	requireRevert(t, c, stranger, settlement.ReasonEncoding, "sendMessageToL2", felt.Prime.ToBig(), big.NewInt(0), bigs())
}

func TestUnknownSelector(t *testing.T) {
	c := newContract(t)
	out, _, err := c.Run(governor, []byte{0xde, 0xad, 0xbe, 0xef})
	require.ErrorIs(t, err, vm.ErrExecutionReverted)
	require.Nil(t, out)

	_, _, err = c.Run(governor, []byte{0x01})
	require.ErrorIs(t, err, vm.ErrExecutionReverted)
}

func TestStaticCallLeavesStateUntouched(t *testing.T) {
	c := newContract(t)

	_, _, err := c.Call(governor, pack(t, "initialize", big.NewInt(1), big.NewInt(1)))
	require.NoError(t, err)
	require.Equal(t, false, call(t, c, stranger, "isInitialized")[0])

	call(t, c, governor, "initialize", big.NewInt(1), big.NewInt(1))
	out, _, err := c.Call(governor, pack(t, "initialize", big.NewInt(1), big.NewInt(1)))
	require.ErrorIs(t, err, vm.ErrExecutionReverted)
	reason, err := abi.UnpackRevert(out)
	require.NoError(t, err)
	require.Equal(t, settlement.ReasonAlreadyInitialized, reason)

	out, logs, err := c.Call(stranger, pack(t, "sendMessageToL2", big.NewInt(0x77), big.NewInt(2), bigs()))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	values, err := ContractAbi.Unpack("sendMessageToL2", out)
	require.NoError(t, err)
	requireBig(t, 0, values[1])
	requireBig(t, 0, call(t, c, stranger, "l1ToL2MessageNonce")[0])

	output := &snos.ProgramOutput{BlockNumber: 1, NewStateRoot: felt.FromUint64(9), ConfigHash: felt.FromUint64(1)}
	_, logs, err = c.Call(governor, pack(t, "updateState", felt.Bigs(output.Encode())))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	requireBig(t, 0, call(t, c, stranger, "stateBlockNumber")[0])

	_, _, err = c.Call(governor, pack(t, "registerOperator", operator))
	require.NoError(t, err)
	require.False(t, c.IsOperator(operator))
}

func TestUpdateStateLogsBuiltBeforeCommit(t *testing.T) {
	c := newContract(t)
	call(t, c, governor, "initialize", big.NewInt(1), big.NewInt(1))

	output := &snos.ProgramOutput{
		BlockNumber:  1,
		NewStateRoot: felt.FromUint64(3),
		ConfigHash:   felt.FromUint64(1),
		MessagesToL1: []messaging.MessageL2ToL1{{FromAddress: felt.FromUint64(1), ToAddress: felt.FromAddress(stranger)}},
	}
	want, err := updateStateLogs(output)
	require.NoError(t, err)
	require.Len(t, want, 2)

	_, dry, err := c.Call(governor, pack(t, "updateState", felt.Bigs(output.Encode())))
	require.NoError(t, err)
	require.Equal(t, want, dry)
	requireBig(t, 0, call(t, c, stranger, "stateBlockNumber")[0])

	_, committed, err := c.Run(governor, pack(t, "updateState", felt.Bigs(output.Encode())))
	require.NoError(t, err)
	require.Equal(t, want, committed)
	requireBig(t, 1, call(t, c, stranger, "stateBlockNumber")[0])
}
