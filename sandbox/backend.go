// Package sandbox is an in-process L1 chain hosting one core contract. It
// serves the subset of the Ethereum JSON-RPC surface that contract bindings
// use, so a settlement client can run against it exactly as against a node.
//
// Every accepted transaction is mined into its own block before
// SendTransaction returns.
package sandbox

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/trie"

	"github.com/rony4d/go-settlement/logger"
	"github.com/rony4d/go-settlement/settlement"
	"github.com/rony4d/go-settlement/starknet"
	"github.com/rony4d/go-settlement/starknet/contracts/corecontract"
)

const (
	// GenesisTime is the timestamp of block 0. Block n is n seconds later.
	GenesisTime uint64 = 1608600000

	BlockGasLimit uint64 = 30_000_000
	// callGas is charged on top of the intrinsic gas of every contract call.
	callGas uint64 = 60_000
)

// GasPrice is the fixed gas price and tip suggested to senders.
var GasPrice = big.NewInt(params.GWei)

// hostedCode stands in for the runtime bytecode of the core contract. The
// contract itself is executed natively.
var hostedCode = []byte{0xfe}

var (
	errHistoricalState = errors.New("sandbox: only the latest state is available")
	errContractCreate  = errors.New("sandbox: contract creation is not supported")
)

// Backend implements bind.ContractBackend and bind.DeployBackend.
type Backend struct {
	mu sync.Mutex

	rules    starknet.L1Rules
	chainID  *big.Int
	signer   types.Signer
	contract *corecontract.Contract

	headers  []*types.Header
	nonces   map[common.Address]uint64
	receipts map[common.Hash]*types.Receipt
	logs     []*types.Log

	logsFeed event.Feed
	scope    event.SubscriptionScope

	logger.Instance
}

var (
	_ bind.ContractBackend = (*Backend)(nil)
	_ bind.DeployBackend   = (*Backend)(nil)
)

// New hosts contract at rules.CoreContract.
func New(rules starknet.L1Rules, contract *corecontract.Contract) *Backend {
	chainID := new(big.Int).SetUint64(rules.ChainID)
	genesis := &types.Header{
		Number:      big.NewInt(0),
		Time:        GenesisTime,
		GasLimit:    BlockGasLimit,
		Difficulty:  big.NewInt(0),
		Root:        types.EmptyRootHash,
		TxHash:      types.EmptyRootHash,
		ReceiptHash: types.EmptyRootHash,
		UncleHash:   types.EmptyUncleHash,
	}
	return &Backend{
		rules:    rules,
		chainID:  chainID,
		signer:   types.LatestSignerForChainID(chainID),
		contract: contract,
		headers:  []*types.Header{genesis},
		nonces:   make(map[common.Address]uint64),
		receipts: make(map[common.Hash]*types.Receipt),
		Instance: logger.New("sandbox"),
	}
}

// Open creates a provider over db and hosts a core contract governed by governor.
func Open(db ethdb.KeyValueStore, rules starknet.L1Rules, governor common.Address) (*Backend, error) {
	p, err := settlement.NewProvider(db)
	if err != nil {
		return nil, err
	}
	return New(rules, corecontract.New(p, governor)), nil
}

// Close terminates all log subscriptions.
func (b *Backend) Close() {
	b.scope.Close()
}

func (b *Backend) Contract() *corecontract.Contract {
	return b.contract
}

func (b *Backend) Address() common.Address {
	return b.rules.CoreContract
}

func (b *Backend) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(b.chainID), nil
}

// TransactOpts returns signing options for key on this chain.
func (b *Backend) TransactOpts(ctx context.Context, key *ecdsa.PrivateKey) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(key, b.chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	return opts, nil
}

func (b *Backend) BlockNumber(ctx context.Context) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.head().Number.Uint64(), nil
}

func (b *Backend) head() *types.Header {
	return b.headers[len(b.headers)-1]
}

// checkLatest accepts nil or the current head number.
func (b *Backend) checkLatest(number *big.Int) error {
	if number == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if number.Cmp(b.head().Number) != 0 {
		return errHistoricalState
	}
	return nil
}

func (b *Backend) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	if err := b.checkLatest(blockNumber); err != nil {
		return nil, err
	}
	if account == b.rules.CoreContract {
		return common.CopyBytes(hostedCode), nil
	}
	return nil, nil
}

func (b *Backend) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return b.CodeAt(ctx, account, nil)
}

// CallContract executes call against the latest state without mining it.
func (b *Backend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := b.checkLatest(blockNumber); err != nil {
		return nil, err
	}
	if call.To == nil || *call.To != b.rules.CoreContract {
		return nil, nil
	}
	out, _, err := b.contract.Call(call.From, call.Data)
	if errors.Is(err, vm.ErrExecutionReverted) {
		return nil, newRevertError(out)
	}
	return out, err
}

func (b *Backend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if number == nil {
		return types.CopyHeader(b.head()), nil
	}
	if !number.IsUint64() || number.Uint64() >= uint64(len(b.headers)) {
		return nil, ethereum.NotFound
	}
	return types.CopyHeader(b.headers[number.Uint64()]), nil
}

func (b *Backend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonces[account], nil
}

func (b *Backend) NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error) {
	if err := b.checkLatest(blockNumber); err != nil {
		return 0, err
	}
	return b.PendingNonceAt(ctx, account)
}

func (b *Backend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(GasPrice), nil
}

func (b *Backend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(GasPrice), nil
}

// EstimateGas simulates call and charges a flat execution cost.
func (b *Backend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	if _, err := b.CallContract(ctx, call, nil); err != nil {
		return 0, err
	}
	return intrinsicGas(call.Data) + callGas, nil
}

func intrinsicGas(data []byte) uint64 {
	gas := params.TxGas
	for _, c := range data {
		if c == 0 {
			gas += params.TxDataZeroGas
		} else {
			gas += params.TxDataNonZeroGasEIP2028
		}
	}
	return gas
}

// SendTransaction validates tx, executes it and mines it into a new block.
// A transaction whose call reverts is still mined, with a failed receipt.
func (b *Backend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	from, err := types.Sender(b.signer, tx)
	if err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}
	if tx.To() == nil {
		return errContractCreate
	}
	if need := intrinsicGas(tx.Data()); tx.Gas() < need {
		return fmt.Errorf("%w: have %d, want %d", core.ErrIntrinsicGas, tx.Gas(), need)
	}
	if tx.Gas() > BlockGasLimit {
		return core.ErrGasLimit
	}

	b.mu.Lock()
	nonce := b.nonces[from]
	if tx.Nonce() < nonce {
		b.mu.Unlock()
		return fmt.Errorf("%w: address %v, tx: %d state: %d", core.ErrNonceTooLow, from.Hex(), tx.Nonce(), nonce)
	}
	if tx.Nonce() > nonce {
		b.mu.Unlock()
		return fmt.Errorf("%w: address %v, tx: %d state: %d", core.ErrNonceTooHigh, from.Hex(), tx.Nonce(), nonce)
	}
	b.nonces[from] = nonce + 1

	status := types.ReceiptStatusSuccessful
	gasUsed := intrinsicGas(tx.Data())
	var logs []*types.Log
	if *tx.To() == b.rules.CoreContract {
		gasUsed += callGas
		_, logs, err = b.contract.Run(from, tx.Data())
		if err != nil {
			status = types.ReceiptStatusFailed
			logs = nil
		}
	}
	if gasUsed > tx.Gas() {
		gasUsed = tx.Gas()
	}
	receipt := b.mine(tx, status, gasUsed, logs)
	b.mu.Unlock()

	b.Log.Debug("Sandbox transaction mined", "hash", tx.Hash(), "from", from, "block", receipt.BlockNumber, "status", status, "logs", len(receipt.Logs))
	if len(receipt.Logs) > 0 {
		b.logsFeed.Send(receipt.Logs)
	}
	return nil
}

// mine seals tx alone into the next block. The caller holds mu.
func (b *Backend) mine(tx *types.Transaction, status uint64, gasUsed uint64, logs []*types.Log) *types.Receipt {
	parent := b.head()
	number := new(big.Int).Add(parent.Number, common.Big1)

	receipt := &types.Receipt{
		Type:              tx.Type(),
		Status:            status,
		CumulativeGasUsed: gasUsed,
		TxHash:            tx.Hash(),
		GasUsed:           gasUsed,
		Logs:              logs,
		BlockNumber:       number,
		TransactionIndex:  0,
	}
	receipt.Bloom = types.CreateBloom(types.Receipts{receipt})

	header := &types.Header{
		ParentHash:  parent.Hash(),
		UncleHash:   types.EmptyUncleHash,
		Root:        types.EmptyRootHash,
		TxHash:      types.DeriveSha(types.Transactions{tx}, trie.NewStackTrie(nil)),
		ReceiptHash: types.DeriveSha(types.Receipts{receipt}, trie.NewStackTrie(nil)),
		Bloom:       receipt.Bloom,
		Difficulty:  big.NewInt(0),
		Number:      number,
		GasLimit:    BlockGasLimit,
		GasUsed:     gasUsed,
		Time:        GenesisTime + number.Uint64(),
	}
	blockHash := header.Hash()
	receipt.BlockHash = blockHash
	for i, l := range logs {
		l.Address = b.rules.CoreContract
		l.BlockNumber = number.Uint64()
		l.TxHash = tx.Hash()
		l.TxIndex = 0
		l.BlockHash = blockHash
		l.Index = uint(i)
	}

	b.headers = append(b.headers, header)
	b.receipts[tx.Hash()] = receipt
	b.logs = append(b.logs, logs...)
	return receipt
}

func (b *Backend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	receipt, ok := b.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

// revertError is the error an RPC node returns for a reverted call: the
// revert data travels hex-encoded in the JSON-RPC error data field.
type revertError struct {
	error
	reason string
}

func newRevertError(data []byte) *revertError {
	reason, errUnpack := abi.UnpackRevert(data)
	err := errors.New("execution reverted")
	if errUnpack == nil {
		err = fmt.Errorf("execution reverted: %v", reason)
	}
	return &revertError{
		error:  err,
		reason: hexutil.Encode(data),
	}
}

// ErrorCode returns the JSON error code for a revert.
func (e *revertError) ErrorCode() int {
	return 3
}

// ErrorData returns the hex encoded revert reason.
func (e *revertError) ErrorData() interface{} {
	return e.reason
}
