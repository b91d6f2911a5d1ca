// Package settlementtest runs the protocol properties against any settlement.API,
// so the local provider and the contract client are held to the same behaviour.
package settlementtest

import (
	"context"
	"testing"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-settlement/felt"
	"github.com/rony4d/go-settlement/messaging"
	"github.com/rony4d/go-settlement/settlement"
	"github.com/rony4d/go-settlement/snos"
)

// Harness is a fresh, uninitialized settlement instance.
type Harness struct {
	API settlement.API
	// Sender is the L1 address messages to L2 are sent from.
	Sender common.Address
}

type Factory func(t *testing.T) Harness

// Run executes every property as a subtest, each against a new instance.
func Run(t *testing.T, factory Factory) {
	cases := []struct {
		name string
		fn   func(t *testing.T, h Harness)
	}{
		{"ConcreteScenario", testConcreteScenario},
		{"SequentialAcceptance", testSequentialAcceptance},
		{"ReplayRejection", testReplayRejection},
		{"SkipAheadRejection", testSkipAhead},
		{"ConfigIsolation", testConfigIsolation},
		{"MessageLifecycleL1ToL2", testL1ToL2Lifecycle},
		{"MessageLifecycleL2ToL1", testL2ToL1Lifecycle},
		{"Atomicity", testAtomicity},
		{"DuplicateMessages", testDuplicateMessages},
		{"NotInitialized", testNotInitialized},
		{"AlreadyInitialized", testAlreadyInitialized},
		{"InvalidNonce", testInvalidNonce},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			c.fn(t, factory(t))
		})
	}
}

func f(v uint64) felt.Felt {
	return felt.FromUint64(v)
}

var spec = settlement.ChainSpec{ProgramHash: f(1), ConfigHash: f(1)}

func output(block uint64, root uint64) *snos.ProgramOutput {
	return &snos.ProgramOutput{
		BlockNumber:  idx.Block(block),
		NewStateRoot: f(root),
		ConfigHash:   spec.ConfigHash,
	}
}

func initialized(t *testing.T, h Harness) context.Context {
	ctx := context.Background()
	require.NoError(t, h.API.Initialize(ctx, spec))
	return ctx
}

// send registers a message with the next nonce and returns it.
func send(t *testing.T, ctx context.Context, h Harness, selector uint64, payload ...uint64) messaging.MessageL1ToL2 {
	nonce, err := h.API.L1ToL2Nonce(ctx)
	require.NoError(t, err)
	m := messaging.MessageL1ToL2{
		FromAddress: felt.FromAddress(h.Sender),
		ToAddress:   f(0x73314940),
		Nonce:       f(nonce),
		Selector:    f(selector),
	}
	for _, p := range payload {
		m.Payload = append(m.Payload, f(p))
	}
	hash, err := h.API.SendMessageToL2(ctx, m)
	require.NoError(t, err)
	require.Equal(t, m.Hash(), hash)
	return m
}

func requireState(t *testing.T, ctx context.Context, h Harness, block uint64, root uint64) {
	st, err := h.API.GetState(ctx)
	require.NoError(t, err)
	require.Equal(t, settlement.State{BlockNumber: idx.Block(block), StateRoot: f(root)}, st)
}

func exists(t *testing.T, ctx context.Context, h Harness, m messaging.MessageL1ToL2) bool {
	ok, err := h.API.MessageToL2Exists(ctx, m)
	require.NoError(t, err)
	return ok
}

func existsL1(t *testing.T, ctx context.Context, h Harness, m messaging.MessageL2ToL1) bool {
	ok, err := h.API.MessageToL1Exists(ctx, m)
	require.NoError(t, err)
	return ok
}

func testConcreteScenario(t *testing.T, h Harness) {
	ctx := initialized(t, h)

	got, err := h.API.GetChainSpec(ctx)
	require.NoError(t, err)
	require.Equal(t, spec, got)
	requireState(t, ctx, h, 0, 0)

	require.NoError(t, h.API.UpdateState(ctx, output(1, 1)))
	requireState(t, ctx, h, 1, 1)

	m := send(t, ctx, h, 2, 1)
	require.Equal(t, f(0), m.Nonce)
	require.True(t, exists(t, ctx, h, m))

	out := output(2, 2)
	out.MessagesToL2 = []messaging.MessageL1ToL2{m}
	require.NoError(t, h.API.UpdateState(ctx, out))
	require.False(t, exists(t, ctx, h, m))
	requireState(t, ctx, h, 2, 2)
}

func testSequentialAcceptance(t *testing.T, h Harness) {
	ctx := initialized(t, h)
	for block := uint64(1); block <= 5; block++ {
		require.NoError(t, h.API.UpdateState(ctx, output(block, 100+block)))
		requireState(t, ctx, h, block, 100+block)
	}
}

func testReplayRejection(t *testing.T, h Harness) {
	ctx := initialized(t, h)
	require.NoError(t, h.API.UpdateState(ctx, output(1, 1)))
	require.NoError(t, h.API.UpdateState(ctx, output(2, 2)))

	for _, block := range []uint64{2, 1, 0} {
		err := h.API.UpdateState(ctx, output(block, 9))
		require.ErrorIs(t, err, settlement.ErrSequenceGap, "block %d", block)
		requireState(t, ctx, h, 2, 2)
	}
}

func testSkipAhead(t *testing.T, h Harness) {
	ctx := initialized(t, h)
	err := h.API.UpdateState(ctx, output(2, 2))
	require.ErrorIs(t, err, settlement.ErrSequenceGap)
	requireState(t, ctx, h, 0, 0)
}

func testConfigIsolation(t *testing.T, h Harness) {
	ctx := initialized(t, h)
	m := send(t, ctx, h, 2, 1)

	out := output(1, 1)
	out.ConfigHash = f(2)
	out.MessagesToL2 = []messaging.MessageL1ToL2{m}
	out.MessagesToL1 = []messaging.MessageL2ToL1{{FromAddress: f(1), ToAddress: felt.FromAddress(h.Sender)}}

	err := h.API.UpdateState(ctx, out)
	require.ErrorIs(t, err, settlement.ErrConfigMismatch)
	requireState(t, ctx, h, 0, 0)
	require.True(t, exists(t, ctx, h, m))
	require.False(t, existsL1(t, ctx, h, out.MessagesToL1[0]))
}

func testL1ToL2Lifecycle(t *testing.T, h Harness) {
	ctx := initialized(t, h)
	a := send(t, ctx, h, 2, 1)
	b := send(t, ctx, h, 2, 1)
	require.NotEqual(t, a.Hash(), b.Hash(), "nonces separate otherwise equal messages")
	require.True(t, exists(t, ctx, h, a))
	require.True(t, exists(t, ctx, h, b))

	out := output(1, 1)
	out.MessagesToL2 = []messaging.MessageL1ToL2{a}
	require.NoError(t, h.API.UpdateState(ctx, out))
	require.False(t, exists(t, ctx, h, a))
	require.True(t, exists(t, ctx, h, b))

	out = output(2, 2)
	out.MessagesToL2 = []messaging.MessageL1ToL2{a}
	require.ErrorIs(t, h.API.UpdateState(ctx, out), settlement.ErrUnknownMessage)
}

func testL2ToL1Lifecycle(t *testing.T, h Harness) {
	ctx := initialized(t, h)
	m := messaging.MessageL2ToL1{
		FromAddress: f(0x73314940),
		ToAddress:   felt.FromAddress(h.Sender),
		Payload:     []felt.Felt{f(0), f(1), f(2)},
	}
	require.False(t, existsL1(t, ctx, h, m))

	out := output(1, 1)
	out.MessagesToL1 = []messaging.MessageL2ToL1{m}
	require.NoError(t, h.API.UpdateState(ctx, out))
	require.True(t, existsL1(t, ctx, h, m))

	require.NoError(t, h.API.UpdateState(ctx, output(2, 2)))
	require.True(t, existsL1(t, ctx, h, m), "no implicit expiry")
}

func testAtomicity(t *testing.T, h Harness) {
	ctx := initialized(t, h)
	a := send(t, ctx, h, 2, 1)
	b := send(t, ctx, h, 3, 1)

	consumed := output(1, 1)
	consumed.MessagesToL2 = []messaging.MessageL1ToL2{a}
	require.NoError(t, h.API.UpdateState(ctx, consumed))

	emitted := messaging.MessageL2ToL1{FromAddress: f(5), ToAddress: felt.FromAddress(h.Sender)}
	out := output(2, 2)
	out.MessagesToL2 = []messaging.MessageL1ToL2{b, a}
	out.MessagesToL1 = []messaging.MessageL2ToL1{emitted}

	err := h.API.UpdateState(ctx, out)
	require.ErrorIs(t, err, settlement.ErrUnknownMessage)
	require.True(t, exists(t, ctx, h, b), "no other message of the output is consumed")
	require.False(t, existsL1(t, ctx, h, emitted))
	requireState(t, ctx, h, 1, 1)
}

func testDuplicateMessages(t *testing.T, h Harness) {
	ctx := initialized(t, h)
	m := messaging.MessageL2ToL1{FromAddress: f(9), ToAddress: felt.FromAddress(h.Sender), Payload: []felt.Felt{f(1)}}

	out := output(1, 1)
	out.MessagesToL1 = []messaging.MessageL2ToL1{m, m}
	require.NoError(t, h.API.UpdateState(ctx, out))
	require.True(t, existsL1(t, ctx, h, m))

	a := send(t, ctx, h, 2, 1)
	out = output(2, 2)
	out.MessagesToL2 = []messaging.MessageL1ToL2{a, a}
	require.ErrorIs(t, h.API.UpdateState(ctx, out), settlement.ErrUnknownMessage)
	require.True(t, exists(t, ctx, h, a))
}

func testNotInitialized(t *testing.T, h Harness) {
	ctx := context.Background()
	_, err := h.API.GetChainSpec(ctx)
	require.ErrorIs(t, err, settlement.ErrNotInitialized)
	require.ErrorIs(t, h.API.UpdateState(ctx, output(1, 1)), settlement.ErrNotInitialized)
	requireState(t, ctx, h, 0, 0)
}

func testAlreadyInitialized(t *testing.T, h Harness) {
	ctx := initialized(t, h)
	require.NoError(t, h.API.UpdateState(ctx, output(1, 1)))

	err := h.API.Initialize(ctx, settlement.ChainSpec{ProgramHash: f(2), ConfigHash: f(2)})
	require.ErrorIs(t, err, settlement.ErrAlreadyInitialized)

	got, err := h.API.GetChainSpec(ctx)
	require.NoError(t, err)
	require.Equal(t, spec, got)
	requireState(t, ctx, h, 1, 1)
}

func testInvalidNonce(t *testing.T, h Harness) {
	ctx := initialized(t, h)
	send(t, ctx, h, 2)

	m := messaging.MessageL1ToL2{
		FromAddress: felt.FromAddress(h.Sender),
		ToAddress:   f(1),
		Nonce:       f(0),
		Selector:    f(2),
	}
	_, err := h.API.SendMessageToL2(ctx, m)
	require.ErrorIs(t, err, settlement.ErrInvalidNonce)
	require.False(t, exists(t, ctx, h, m))

	n, err := h.API.L1ToL2Nonce(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), n)
}
