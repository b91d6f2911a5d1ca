package settlement

import (
	"encoding"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/ethdb"

	"github.com/rony4d/go-settlement/felt"
	"github.com/rony4d/go-settlement/logger"
	"github.com/rony4d/go-settlement/utils/cser"
)

var (
	chainSpecKey = []byte("ls")
	stateKey     = []byte("lt")
)

// recordVersion leads every ledger record.
const recordVersion uint8 = 1

var (
	errInvalidRecord        = errors.New("settlement: ledger record holds a non-canonical felt")
	errUnknownRecordVersion = errors.New("settlement: unknown ledger record version")
)

func readVersion(r *cser.Reader) error {
	if v := r.U8(); v != recordVersion {
		return fmt.Errorf("%w: %d", errUnknownRecordVersion, v)
	}
	return nil
}

func (s ChainSpec) MarshalBinary() ([]byte, error) {
	return cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		w.U8(recordVersion)
		w.FixedBytes(s.ProgramHash[:])
		w.FixedBytes(s.ConfigHash[:])
		return nil
	})
}

func (s *ChainSpec) UnmarshalBinary(raw []byte) error {
	return cser.UnmarshalBinaryAdapter(raw, func(r *cser.Reader) error {
		if err := readVersion(r); err != nil {
			return err
		}
		return readFelts(r, &s.ProgramHash, &s.ConfigHash)
	})
}

func (s State) MarshalBinary() ([]byte, error) {
	return cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		w.U8(recordVersion)
		w.U64(uint64(s.BlockNumber))
		w.FixedBytes(s.StateRoot[:])
		return nil
	})
}

func (s *State) UnmarshalBinary(raw []byte) error {
	return cser.UnmarshalBinaryAdapter(raw, func(r *cser.Reader) error {
		if err := readVersion(r); err != nil {
			return err
		}
		s.BlockNumber = idx.Block(r.U64())
		return readFelts(r, &s.StateRoot)
	})
}

func readFelts(r *cser.Reader, fs ...*felt.Felt) error {
	for _, f := range fs {
		var word [felt.Size]byte
		r.FixedBytes(word[:])
		if !felt.IsValid(word) {
			return errInvalidRecord
		}
		*f = felt.Felt(word)
	}
	return nil
}

// ledgerSnapshot is immutable once published.
type ledgerSnapshot struct {
	spec  *ChainSpec
	state State
}

// Ledger holds the chain spec and the committed state. Reads are served from
// an atomically swapped snapshot; writes go through a batch the caller commits.
type Ledger struct {
	db       ethdb.KeyValueStore
	snapshot atomic.Value

	logger.Instance
}

// OpenLedger loads whatever the store already holds.
func OpenLedger(db ethdb.KeyValueStore) (*Ledger, error) {
	l := &Ledger{
		db:       db,
		Instance: logger.New("ledger"),
	}
	snap := &ledgerSnapshot{}

	spec := &ChainSpec{}
	ok, err := loadRecord(db, chainSpecKey, spec)
	if err != nil {
		return nil, err
	}
	if ok {
		snap.spec = spec
	}
	if _, err := loadRecord(db, stateKey, &snap.state); err != nil {
		return nil, err
	}
	l.snapshot.Store(snap)

	if snap.spec != nil {
		l.Log.Info("Ledger loaded", "program", snap.spec.ProgramHash, "config", snap.spec.ConfigHash,
			"block", snap.state.BlockNumber, "root", snap.state.StateRoot)
	}
	return l, nil
}

// loadRecord decodes the record under key into v. A missing record is not an
// error. Backends report a missing key in their own words, so a failed Get is
// classified by Has.
func loadRecord(db ethdb.KeyValueReader, key []byte, v encoding.BinaryUnmarshaler) (bool, error) {
	raw, err := db.Get(key)
	if err != nil {
		has, herr := db.Has(key)
		if herr != nil {
			return false, herr
		}
		if !has {
			return false, nil
		}
		return false, err
	}
	return true, v.UnmarshalBinary(raw)
}

func (l *Ledger) current() *ledgerSnapshot {
	return l.snapshot.Load().(*ledgerSnapshot)
}

func (l *Ledger) Initialized() bool {
	return l.current().spec != nil
}

func (l *Ledger) ChainSpec() (ChainSpec, error) {
	snap := l.current()
	if snap.spec == nil {
		return ChainSpec{}, ErrNotInitialized
	}
	return *snap.spec, nil
}

func (l *Ledger) State() State {
	return l.current().state
}

// Initialize writes the chain spec and resets the state to its zero value.
// The caller serialises writers.
func (l *Ledger) Initialize(spec ChainSpec) error {
	if l.Initialized() {
		return ErrAlreadyInitialized
	}
	raw, err := spec.MarshalBinary()
	if err != nil {
		return err
	}
	batch := l.db.NewBatch()
	if err := batch.Put(chainSpecKey, raw); err != nil {
		return err
	}
	if err := l.stage(batch, State{}); err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		return err
	}
	l.snapshot.Store(&ledgerSnapshot{spec: &spec})
	return nil
}

// stage adds the state record to batch without publishing it.
func (l *Ledger) stage(batch ethdb.Batch, st State) error {
	raw, err := st.MarshalBinary()
	if err != nil {
		return err
	}
	return batch.Put(stateKey, raw)
}

// publish makes st visible to readers. Call only after the staging batch was written.
func (l *Ledger) publish(st State) {
	prev := l.current()
	l.snapshot.Store(&ledgerSnapshot{spec: prev.spec, state: st})
}
