// Package settlement implements the L1 side of a STARK-proved rollup: a single
// advancing state commitment and an exactly-once message bridge.
//
// The Provider is the protocol state machine. It owns a Ledger and a message
// Registry over one key-value store and commits every transition as one batch.
package settlement

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/rony4d/go-settlement/felt"
	"github.com/rony4d/go-settlement/logger"
	"github.com/rony4d/go-settlement/messaging"
	"github.com/rony4d/go-settlement/snos"
)

// Provider serialises writers behind mu. Validation runs under mu alone.
// Writing a batch and publishing the matching ledger state happen under view,
// which readers share, so a reader never sees registry changes without the
// state that carries them.
type Provider struct {
	mu   sync.Mutex
	view sync.RWMutex

	db       ethdb.KeyValueStore
	ledger   *Ledger
	registry *messaging.Registry
	metrics  *providerMetrics

	logger.Instance
}

var _ API = (*Provider)(nil)

// NewProvider opens the ledger and registry kept in db.
func NewProvider(db ethdb.KeyValueStore) (*Provider, error) {
	ledger, err := OpenLedger(db)
	if err != nil {
		return nil, err
	}
	p := &Provider{
		db:       db,
		ledger:   ledger,
		registry: messaging.NewRegistry(db),
		metrics:  newProviderMetrics(metrics.DefaultRegistry),
		Instance: logger.New("settlement"),
	}
	p.metrics.block.Update(int64(ledger.State().BlockNumber))
	return p, nil
}

func (p *Provider) Initialize(ctx context.Context, spec ChainSpec) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.view.Lock()
	err := p.ledger.Initialize(spec)
	p.view.Unlock()
	if err != nil {
		return err
	}
	p.metrics.block.Update(0)
	p.Log.Info("Settlement initialized", "program", spec.ProgramHash, "config", spec.ConfigHash)
	return nil
}

// UpdateState applies one proven transition. On any error nothing is written.
func (p *Provider) UpdateState(ctx context.Context, output *snos.ProgramOutput) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	st, err := p.applyUpdate(output)
	if err != nil {
		p.metrics.updateRejected.Inc(1)
		p.Log.Warn("State update rejected", "block", output.BlockNumber, "err", err)
		return err
	}
	p.metrics.updateAccepted.Inc(1)
	p.metrics.toL2Consumed.Inc(int64(len(output.MessagesToL2)))
	p.metrics.toL1Registered.Inc(int64(len(output.MessagesToL1)))
	p.metrics.block.Update(int64(st.BlockNumber))
	p.Log.Info("State updated", "block", st.BlockNumber, "root", st.StateRoot,
		"consumed", len(output.MessagesToL2), "emitted", len(output.MessagesToL1))
	return nil
}

// CheckInitialize reports whether Initialize would succeed, without writing.
func (p *Provider) CheckInitialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.ledger.Initialized() {
		return ErrAlreadyInitialized
	}
	return nil
}

// CheckUpdateState runs every UpdateState check against the current state
// without writing anything.
func (p *Provider) CheckUpdateState(ctx context.Context, output *snos.ProgramOutput) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	_, _, err := p.prepareUpdate(output)
	return err
}

func (p *Provider) prepareUpdate(output *snos.ProgramOutput) (State, *messaging.Tx, error) {
	spec, err := p.ledger.ChainSpec()
	if err != nil {
		return State{}, nil, err
	}
	if output.ConfigHash != spec.ConfigHash {
		return State{}, nil, &ConfigMismatchError{Expected: spec.ConfigHash, Got: output.ConfigHash}
	}
	current := p.ledger.State()
	if output.BlockNumber != current.BlockNumber+1 {
		return State{}, nil, &SequenceGapError{Current: current.BlockNumber, Got: output.BlockNumber}
	}

	tx := p.registry.Begin()
	if err := tx.ConsumeToL2Batch(output.MessagesToL2); err != nil {
		return State{}, nil, err
	}
	for _, m := range output.MessagesToL1 {
		if _, err := tx.RegisterToL1(m); err != nil {
			return State{}, nil, err
		}
	}
	return State{BlockNumber: output.BlockNumber, StateRoot: output.NewStateRoot}, tx, nil
}

func (p *Provider) applyUpdate(output *snos.ProgramOutput) (State, error) {
	next, tx, err := p.prepareUpdate(output)
	if err != nil {
		return State{}, err
	}
	batch := p.db.NewBatch()
	if err := tx.Flush(batch); err != nil {
		return State{}, err
	}
	if err := p.ledger.stage(batch, next); err != nil {
		return State{}, err
	}
	p.view.Lock()
	defer p.view.Unlock()
	if err := batch.Write(); err != nil {
		return State{}, err
	}
	p.ledger.publish(next)
	return next, nil
}

// SendMessageToL2 registers msg as pending. msg.FromAddress must embed an L1
// address and msg.Nonce must equal the next nonce.
func (p *Provider) SendMessageToL2(ctx context.Context, msg messaging.MessageL1ToL2) (common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return common.Hash{}, err
	}
	if _, err := msg.FromAddress.Address(); err != nil {
		return common.Hash{}, ErrInvalidSender
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.sendLocked(msg)
}

// SendNextMessageToL2 is SendMessageToL2 with the nonce assigned under the
// writer lock. The message as registered is returned.
func (p *Provider) SendNextMessageToL2(ctx context.Context, msg messaging.MessageL1ToL2) (messaging.MessageL1ToL2, common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return msg, common.Hash{}, err
	}
	if _, err := msg.FromAddress.Address(); err != nil {
		return msg, common.Hash{}, ErrInvalidSender
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	nonce, err := p.registry.Nonce()
	if err != nil {
		return msg, common.Hash{}, err
	}
	msg.Nonce = felt.FromUint64(nonce)
	h, err := p.sendLocked(msg)
	return msg, h, err
}

// PreviewNextMessageToL2 returns what SendNextMessageToL2 would register
// right now, without registering it.
func (p *Provider) PreviewNextMessageToL2(ctx context.Context, msg messaging.MessageL1ToL2) (messaging.MessageL1ToL2, common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return msg, common.Hash{}, err
	}
	if _, err := msg.FromAddress.Address(); err != nil {
		return msg, common.Hash{}, ErrInvalidSender
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	nonce, err := p.registry.Nonce()
	if err != nil {
		return msg, common.Hash{}, err
	}
	msg.Nonce = felt.FromUint64(nonce)
	h, err := p.registry.Begin().RegisterToL2(msg)
	return msg, h, err
}

func (p *Provider) sendLocked(msg messaging.MessageL1ToL2) (common.Hash, error) {
	tx := p.registry.Begin()
	h, err := tx.RegisterToL2(msg)
	if err != nil {
		return common.Hash{}, err
	}
	p.view.Lock()
	err = p.registry.Commit(tx)
	p.view.Unlock()
	if err != nil {
		return common.Hash{}, err
	}
	p.metrics.toL2Sent.Inc(1)
	p.Log.Debug("Message to L2 sent", "hash", h, "nonce", msg.Nonce, "to", msg.ToAddress)
	return h, nil
}

func (p *Provider) GetChainSpec(ctx context.Context) (ChainSpec, error) {
	p.view.RLock()
	defer p.view.RUnlock()
	return p.ledger.ChainSpec()
}

func (p *Provider) GetState(ctx context.Context) (State, error) {
	p.view.RLock()
	defer p.view.RUnlock()
	return p.ledger.State(), nil
}

func (p *Provider) MessageToL2Exists(ctx context.Context, msg messaging.MessageL1ToL2) (bool, error) {
	p.view.RLock()
	defer p.view.RUnlock()
	return p.registry.ToL2Exists(msg)
}

func (p *Provider) MessageToL1Exists(ctx context.Context, msg messaging.MessageL2ToL1) (bool, error) {
	p.view.RLock()
	defer p.view.RUnlock()
	return p.registry.ToL1Exists(msg)
}

// MessageToL2Count and MessageToL1Count expose raw reference counts by hash.
func (p *Provider) MessageToL2Count(h common.Hash) (uint64, error) {
	p.view.RLock()
	defer p.view.RUnlock()
	return p.registry.ToL2Count(h)
}

func (p *Provider) MessageToL1Count(h common.Hash) (uint64, error) {
	p.view.RLock()
	defer p.view.RUnlock()
	return p.registry.ToL1Count(h)
}

func (p *Provider) L1ToL2Nonce(ctx context.Context) (uint64, error) {
	p.view.RLock()
	defer p.view.RUnlock()
	return p.registry.Nonce()
}
