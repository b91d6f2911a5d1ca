// Package client talks to a deployed core contract over an L1 endpoint and
// exposes it as a settlement.API.
//
// Every mutation is simulated first with an eth_call from the signing account.
// A revert at that point is mapped back to the settlement error it encodes and
// nothing is sent. Otherwise exactly one transaction is sent and awaited; it
// is never resubmitted.
package client

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/rony4d/go-settlement/felt"
	"github.com/rony4d/go-settlement/logger"
	"github.com/rony4d/go-settlement/messaging"
	"github.com/rony4d/go-settlement/settlement"
	"github.com/rony4d/go-settlement/snos"
	"github.com/rony4d/go-settlement/starknet/contracts/corecontract"
)

var (
	// ErrTxReverted is returned when a sent transaction is mined with a failed status.
	ErrTxReverted = errors.New("client: transaction reverted")
	// ErrMissingEvent is returned when a mined transaction lacks the event it must emit.
	ErrMissingEvent = errors.New("client: expected event not found in receipt")
)

// Backend is the L1 connection: an RPC client or an in-process chain.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// StarknetContractClient is a settlement.API backed by the core contract.
type StarknetContractClient struct {
	address  common.Address
	backend  Backend
	contract *bind.BoundContract
	opts     bind.TransactOpts

	// mu serialises transactions from the signing account.
	mu    sync.Mutex
	close func()

	logger.Instance
}

var _ settlement.API = (*StarknetContractClient)(nil)

// New binds the contract at address. opts signs every transaction; its
// Context is replaced per call.
func New(address common.Address, backend Backend, opts *bind.TransactOpts) *StarknetContractClient {
	return &StarknetContractClient{
		address:  address,
		backend:  backend,
		contract: bind.NewBoundContract(address, corecontract.ContractAbi, backend, backend, backend),
		opts:     *opts,
		Instance: logger.New("l1-client"),
	}
}

// Dial connects to an L1 JSON-RPC endpoint and signs with key.
func Dial(ctx context.Context, url string, address common.Address, key *ecdsa.PrivateKey) (*StarknetContractClient, error) {
	conn, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", url, err)
	}
	chainID, err := conn.ChainID(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("client: chain id: %w", err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		conn.Close()
		return nil, err
	}
	c := New(address, conn, opts)
	c.close = conn.Close
	c.Log.Info("Connected to L1", "url", url, "chain", chainID, "contract", address, "account", opts.From)
	return c, nil
}

// Close releases the connection opened by Dial.
func (c *StarknetContractClient) Close() {
	if c.close != nil {
		c.close()
	}
}

func (c *StarknetContractClient) Address() common.Address {
	return c.address
}

// From is the signing account.
func (c *StarknetContractClient) From() common.Address {
	return c.opts.From
}

// call runs a view and returns its outputs.
func (c *StarknetContractClient) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx, From: c.opts.From}
	if err := c.contract.Call(opts, &out, method, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", method, decodeRevert(err))
	}
	return out, nil
}

func (c *StarknetContractClient) callBig(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	out, err := c.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (c *StarknetContractClient) callUint64(ctx context.Context, method string, args ...interface{}) (uint64, error) {
	v, err := c.callBig(ctx, method, args...)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, &settlement.EncodingError{Field: method, Err: felt.ErrNotUint64}
	}
	return v.Uint64(), nil
}

func (c *StarknetContractClient) callFelt(ctx context.Context, method string, args ...interface{}) (felt.Felt, error) {
	v, err := c.callBig(ctx, method, args...)
	if err != nil {
		return felt.Zero, err
	}
	f, err := felt.FromBig(v)
	if err != nil {
		return felt.Zero, &settlement.EncodingError{Field: method, Err: err}
	}
	return f, nil
}

func (c *StarknetContractClient) callBool(ctx context.Context, method string, args ...interface{}) (bool, error) {
	out, err := c.call(ctx, method, args...)
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// transact preflights method, then sends it once and waits for the receipt.
// The caller holds mu.
func (c *StarknetContractClient) transact(ctx context.Context, method string, args ...interface{}) (*types.Receipt, error) {
	if _, err := c.call(ctx, method, args...); err != nil {
		return nil, err
	}
	opts := c.opts
	opts.Context = ctx
	tx, err := c.contract.Transact(&opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, decodeRevert(err))
	}
	c.Log.Debug("L1 transaction sent", "method", method, "hash", tx.Hash(), "nonce", tx.Nonce())

	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("%s: waiting for %s: %w", method, tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		c.Log.Warn("L1 transaction reverted", "method", method, "hash", tx.Hash(), "block", receipt.BlockNumber)
		return receipt, fmt.Errorf("%w: %s in tx %s", ErrTxReverted, method, tx.Hash().Hex())
	}
	c.Log.Info("L1 transaction mined", "method", method, "hash", tx.Hash(), "block", receipt.BlockNumber, "gas", receipt.GasUsed)
	return receipt, nil
}

// decodeRevert maps an Error(string) revert carried in a JSON-RPC error to
// the settlement error it names. Other errors are returned unchanged.
func decodeRevert(err error) error {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return err
	}
	hexData, ok := dataErr.ErrorData().(string)
	if !ok {
		return err
	}
	data, decodeErr := hexutil.Decode(hexData)
	if decodeErr != nil {
		return err
	}
	reason, unpackErr := abi.UnpackRevert(data)
	if unpackErr != nil {
		return err
	}
	if known := settlement.ErrorFromReason(reason); known != nil {
		return known
	}
	return fmt.Errorf("execution reverted: %s", reason)
}

func (c *StarknetContractClient) Initialize(ctx context.Context, spec settlement.ChainSpec) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.transact(ctx, "initialize", spec.ProgramHash.Big(), spec.ConfigHash.Big())
	return err
}

// UpdateState submits output. Sequence and config rejections are returned
// with the same detail the local provider gives.
func (c *StarknetContractClient) UpdateState(ctx context.Context, output *snos.ProgramOutput) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.transact(ctx, "updateState", felt.Bigs(output.Encode()))
	switch {
	case errors.Is(err, settlement.ErrSequenceGap):
		if st, stErr := c.GetState(ctx); stErr == nil {
			return &settlement.SequenceGapError{Current: st.BlockNumber, Got: output.BlockNumber}
		}
	case errors.Is(err, settlement.ErrConfigMismatch):
		if spec, specErr := c.GetChainSpec(ctx); specErr == nil {
			return &settlement.ConfigMismatchError{Expected: spec.ConfigHash, Got: output.ConfigHash}
		}
	}
	return err
}

// SendMessageToL2 sends msg from the signing account. msg.FromAddress must
// embed that account and msg.Nonce must be the contract's next nonce.
func (c *StarknetContractClient) SendMessageToL2(ctx context.Context, msg messaging.MessageL1ToL2) (common.Hash, error) {
	if msg.FromAddress != felt.FromAddress(c.opts.From) {
		return common.Hash{}, settlement.ErrInvalidSender
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	nonce, err := c.L1ToL2Nonce(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	if msg.Nonce != felt.FromUint64(nonce) {
		return common.Hash{}, fmt.Errorf("%w: expected %d, got %s", settlement.ErrInvalidNonce, nonce, msg.Nonce)
	}
	sent, h, err := c.sendLocked(ctx, msg)
	if err != nil {
		return h, err
	}
	if sent.Nonce != msg.Nonce {
		// Another sender took the nonce between the check and inclusion.
		return h, fmt.Errorf("%w: registered with nonce %s", settlement.ErrInvalidNonce, sent.Nonce)
	}
	return h, nil
}

// SendNextMessageToL2 sends msg with whatever nonce the contract assigns and
// returns the message as registered.
func (c *StarknetContractClient) SendNextMessageToL2(ctx context.Context, msg messaging.MessageL1ToL2) (messaging.MessageL1ToL2, common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendLocked(ctx, msg)
}

func (c *StarknetContractClient) sendLocked(ctx context.Context, msg messaging.MessageL1ToL2) (messaging.MessageL1ToL2, common.Hash, error) {
	receipt, err := c.transact(ctx, "sendMessageToL2", msg.ToAddress.Big(), msg.Selector.Big(), felt.Bigs(msg.Payload))
	if err != nil {
		return msg, common.Hash{}, err
	}
	for _, l := range receipt.Logs {
		sent, ok, err := c.parseMessageToL2("LogMessageToL2", *l)
		if err != nil {
			return msg, common.Hash{}, err
		}
		if ok {
			return sent, sent.Hash(), nil
		}
	}
	return msg, common.Hash{}, fmt.Errorf("%w: LogMessageToL2 in tx %s", ErrMissingEvent, receipt.TxHash.Hex())
}

func (c *StarknetContractClient) RegisterOperator(ctx context.Context, operator common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.transact(ctx, "registerOperator", operator)
	return err
}

func (c *StarknetContractClient) UnregisterOperator(ctx context.Context, operator common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.transact(ctx, "unregisterOperator", operator)
	return err
}

func (c *StarknetContractClient) IsOperator(ctx context.Context, addr common.Address) (bool, error) {
	return c.callBool(ctx, "isOperator", addr)
}

func (c *StarknetContractClient) GetChainSpec(ctx context.Context) (settlement.ChainSpec, error) {
	initialized, err := c.callBool(ctx, "isInitialized")
	if err != nil {
		return settlement.ChainSpec{}, err
	}
	if !initialized {
		return settlement.ChainSpec{}, settlement.ErrNotInitialized
	}
	program, err := c.callFelt(ctx, "programHash")
	if err != nil {
		return settlement.ChainSpec{}, err
	}
	config, err := c.callFelt(ctx, "configHash")
	if err != nil {
		return settlement.ChainSpec{}, err
	}
	return settlement.ChainSpec{ProgramHash: program, ConfigHash: config}, nil
}

// GetState reads the block number and root in two calls; a transition mined
// in between can make them disagree.
func (c *StarknetContractClient) GetState(ctx context.Context) (settlement.State, error) {
	block, err := c.callUint64(ctx, "stateBlockNumber")
	if err != nil {
		return settlement.State{}, err
	}
	root, err := c.callFelt(ctx, "stateRoot")
	if err != nil {
		return settlement.State{}, err
	}
	return settlement.State{BlockNumber: idx.Block(block), StateRoot: root}, nil
}

func (c *StarknetContractClient) MessageToL2Count(ctx context.Context, h common.Hash) (uint64, error) {
	return c.callUint64(ctx, "l1ToL2Messages", [32]byte(h))
}

func (c *StarknetContractClient) MessageToL1Count(ctx context.Context, h common.Hash) (uint64, error) {
	return c.callUint64(ctx, "l2ToL1Messages", [32]byte(h))
}

func (c *StarknetContractClient) MessageToL2Exists(ctx context.Context, msg messaging.MessageL1ToL2) (bool, error) {
	n, err := c.MessageToL2Count(ctx, msg.Hash())
	return n > 0, err
}

func (c *StarknetContractClient) MessageToL1Exists(ctx context.Context, msg messaging.MessageL2ToL1) (bool, error) {
	n, err := c.MessageToL1Count(ctx, msg.Hash())
	return n > 0, err
}

func (c *StarknetContractClient) L1ToL2Nonce(ctx context.Context) (uint64, error) {
	return c.callUint64(ctx, "l1ToL2MessageNonce")
}
