package messaging

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"

	"github.com/rony4d/go-settlement/felt"
	"github.com/rony4d/go-settlement/logger"
)

var (
	ErrUnknownMessage = errors.New("messaging: message to consume is not pending")
	ErrInvalidNonce   = errors.New("messaging: invalid nonce")
)

// UnknownMessageError names the first message of a batch that could not be consumed.
type UnknownMessageError struct {
	Index int
	Hash  common.Hash
}

func (e *UnknownMessageError) Error() string {
	return fmt.Sprintf("messaging: message %d (%s) is not pending", e.Index, e.Hash.Hex())
}

func (e *UnknownMessageError) Is(target error) bool {
	return target == ErrUnknownMessage
}

var (
	toL2Prefix = []byte("m1")
	toL1Prefix = []byte("m2")
	nonceKey   = []byte("mn")
)

func messageKey(prefix []byte, h common.Hash) []byte {
	return append(append(make([]byte, 0, len(prefix)+common.HashLength), prefix...), h[:]...)
}

// Registry keeps the two reference-counted message tables and the L1->L2 nonce.
// A count is the number of identical messages outstanding, so duplicates are
// tracked individually.
type Registry struct {
	db ethdb.KeyValueStore

	logger.Instance
}

func NewRegistry(db ethdb.KeyValueStore) *Registry {
	return &Registry{
		db:       db,
		Instance: logger.New("registry"),
	}
}

// get reads a count. A missing key is a zero count. Stores report a missing key
// through backend-specific errors, so a failed Get is classified by Has.
func (r *Registry) get(key []byte) (uint64, error) {
	raw, err := r.db.Get(key)
	if err == nil {
		return bigendian.BytesToUint64(raw), nil
	}
	has, herr := r.db.Has(key)
	if herr != nil {
		return 0, herr
	}
	if !has {
		return 0, nil
	}
	return 0, err
}

func (r *Registry) ToL2Count(h common.Hash) (uint64, error) {
	return r.get(messageKey(toL2Prefix, h))
}

// ToL2Exists reports whether m is pending consumption.
func (r *Registry) ToL2Exists(m MessageL1ToL2) (bool, error) {
	c, err := r.ToL2Count(m.Hash())
	return c > 0, err
}

func (r *Registry) ToL1Count(h common.Hash) (uint64, error) {
	return r.get(messageKey(toL1Prefix, h))
}

// ToL1Exists reports whether m was emitted by an accepted state update.
func (r *Registry) ToL1Exists(m MessageL2ToL1) (bool, error) {
	c, err := r.ToL1Count(m.Hash())
	return c > 0, err
}

// Nonce is the nonce the next L1->L2 message must carry.
func (r *Registry) Nonce() (uint64, error) {
	return r.get(nonceKey)
}

// Begin starts a staged set of mutations. Nothing reaches the store until the
// Tx is flushed into a batch and that batch is written.
func (r *Registry) Begin() *Tx {
	return &Tx{
		reg:   r,
		dirty: make(map[string]uint64),
	}
}

// Commit writes a Tx on its own batch.
func (r *Registry) Commit(tx *Tx) error {
	batch := r.db.NewBatch()
	if err := tx.Flush(batch); err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		return err
	}
	r.Log.Debug("Registry committed", "keys", len(tx.dirty), "nonce", tx.nonce)
	return nil
}

// Tx is an overlay of pending count and nonce changes. Reads fall through to the store.
// A Tx is not safe for concurrent use.
type Tx struct {
	reg      *Registry
	dirty    map[string]uint64
	nonce    uint64
	nonceSet bool
}

func (tx *Tx) count(key []byte) (uint64, error) {
	if v, ok := tx.dirty[string(key)]; ok {
		return v, nil
	}
	return tx.reg.get(key)
}

// NextNonce is the nonce the next RegisterToL2 must carry, staged changes included.
func (tx *Tx) NextNonce() (uint64, error) {
	if tx.nonceSet {
		return tx.nonce, nil
	}
	return tx.reg.Nonce()
}

// RegisterToL2 marks m as pending and advances the nonce. m.Nonce must equal NextNonce.
func (tx *Tx) RegisterToL2(m MessageL1ToL2) (common.Hash, error) {
	next, err := tx.NextNonce()
	if err != nil {
		return common.Hash{}, err
	}
	if m.Nonce != felt.FromUint64(next) {
		return common.Hash{}, fmt.Errorf("%w: expected %d, got %s", ErrInvalidNonce, next, m.Nonce)
	}
	h := m.Hash()
	key := messageKey(toL2Prefix, h)
	c, err := tx.count(key)
	if err != nil {
		return common.Hash{}, err
	}
	tx.dirty[string(key)] = c + 1
	tx.nonce, tx.nonceSet = next+1, true
	return h, nil
}

// ConsumeToL2Batch decrements every message of msgs. If any of them is not
// pending, the Tx is left untouched and an *UnknownMessageError is returned.
func (tx *Tx) ConsumeToL2Batch(msgs []MessageL1ToL2) error {
	staged := make(map[string]uint64, len(msgs))
	for i, m := range msgs {
		h := m.Hash()
		key := string(messageKey(toL2Prefix, h))
		c, ok := staged[key]
		if !ok {
			var err error
			if c, err = tx.count([]byte(key)); err != nil {
				return err
			}
		}
		if c == 0 {
			return &UnknownMessageError{Index: i, Hash: h}
		}
		staged[key] = c - 1
	}
	for key, c := range staged {
		tx.dirty[key] = c
	}
	return nil
}

// RegisterToL1 makes m available for consumption on L1.
func (tx *Tx) RegisterToL1(m MessageL2ToL1) (common.Hash, error) {
	h := m.Hash()
	key := messageKey(toL1Prefix, h)
	c, err := tx.count(key)
	if err != nil {
		return common.Hash{}, err
	}
	tx.dirty[string(key)] = c + 1
	return h, nil
}

func (tx *Tx) Empty() bool {
	return len(tx.dirty) == 0 && !tx.nonceSet
}

// Flush writes the overlay into batch. Zero counts delete their key.
func (tx *Tx) Flush(batch ethdb.Batch) error {
	keys := make([]string, 0, len(tx.dirty))
	for key := range tx.dirty {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		var err error
		if c := tx.dirty[key]; c == 0 {
			err = batch.Delete([]byte(key))
		} else {
			err = batch.Put([]byte(key), bigendian.Uint64ToBytes(c))
		}
		if err != nil {
			return err
		}
	}
	if tx.nonceSet {
		return batch.Put(nonceKey, bigendian.Uint64ToBytes(tx.nonce))
	}
	return nil
}
