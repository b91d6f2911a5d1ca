package messaging

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-settlement/felt"
	"github.com/rony4d/go-settlement/logger"
)

func toL2(nonce uint64, payload ...uint64) MessageL1ToL2 {
	m := MessageL1ToL2{
		FromAddress: felt.FromUint64(0xaa),
		ToAddress:   felt.FromUint64(0xbb),
		Nonce:       felt.FromUint64(nonce),
		Selector:    felt.FromUint64(2),
	}
	for _, p := range payload {
		m.Payload = append(m.Payload, felt.FromUint64(p))
	}
	return m
}

func send(t *testing.T, r *Registry, m MessageL1ToL2) {
	tx := r.Begin()
	_, err := tx.RegisterToL2(m)
	require.NoError(t, err)
	require.NoError(t, r.Commit(tx))
}

func pendingToL2(t *testing.T, r *Registry, m MessageL1ToL2) bool {
	ok, err := r.ToL2Exists(m)
	require.NoError(t, err)
	return ok
}

func storedNonce(t *testing.T, r *Registry) uint64 {
	n, err := r.Nonce()
	require.NoError(t, err)
	return n
}

func TestRegisterConsume(t *testing.T) {
	logger.SetTestMode(t)
	r := NewRegistry(memorydb.New())

	m := toL2(0, 1)
	require.False(t, pendingToL2(t, r, m))
	send(t, r, m)
	require.True(t, pendingToL2(t, r, m))
	require.Equal(t, uint64(1), storedNonce(t, r))

	tx := r.Begin()
	require.NoError(t, tx.ConsumeToL2Batch([]MessageL1ToL2{m}))
	require.True(t, pendingToL2(t, r, m), "staged changes are invisible")
	require.NoError(t, r.Commit(tx))
	require.False(t, pendingToL2(t, r, m))

	tx = r.Begin()
	err := tx.ConsumeToL2Batch([]MessageL1ToL2{m})
	require.ErrorIs(t, err, ErrUnknownMessage)
}

func TestNonceMustBeNext(t *testing.T) {
	r := NewRegistry(memorydb.New())

	tx := r.Begin()
	_, err := tx.RegisterToL2(toL2(1))
	require.ErrorIs(t, err, ErrInvalidNonce)
	require.True(t, tx.Empty())

	_, err = tx.RegisterToL2(toL2(0))
	require.NoError(t, err)
	next, err := tx.NextNonce()
	require.NoError(t, err)
	require.Equal(t, uint64(1), next)
	_, err = tx.RegisterToL2(toL2(1))
	require.NoError(t, err)
	require.Equal(t, uint64(0), storedNonce(t, r))
	require.NoError(t, r.Commit(tx))
	require.Equal(t, uint64(2), storedNonce(t, r))
}

// Identical payloads with equal nonces cannot be sent twice, but an L2->L1
// message may be emitted twice and is then counted twice.
func TestDuplicatesAreCounted(t *testing.T) {
	r := NewRegistry(memorydb.New())
	m := MessageL2ToL1{FromAddress: felt.FromUint64(1), ToAddress: felt.FromUint64(2)}

	tx := r.Begin()
	h1, err := tx.RegisterToL1(m)
	require.NoError(t, err)
	h2, err := tx.RegisterToL1(m)
	require.NoError(t, err)
	require.Equal(t, h1, h2)
	require.NoError(t, r.Commit(tx))
	n, err := r.ToL1Count(h1)
	require.NoError(t, err)
	require.Equal(t, uint64(2), n)
	ok, err := r.ToL1Exists(m)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestConsumeBatchIsAllOrNothing(t *testing.T) {
	r := NewRegistry(memorydb.New())
	a, b := toL2(0, 1), toL2(1, 2)
	send(t, r, a)
	send(t, r, b)

	unknown := toL2(7, 7)
	tx := r.Begin()
	err := tx.ConsumeToL2Batch([]MessageL1ToL2{a, unknown, b})
	require.ErrorIs(t, err, ErrUnknownMessage)
	var detail *UnknownMessageError
	require.ErrorAs(t, err, &detail)
	require.Equal(t, 1, detail.Index)
	require.Equal(t, unknown.Hash(), detail.Hash)
	require.True(t, tx.Empty(), "failed batch must not stage anything")

	require.NoError(t, r.Commit(tx))
	require.True(t, pendingToL2(t, r, a))
	require.True(t, pendingToL2(t, r, b))
}

func TestConsumeSameMessageTwiceInBatch(t *testing.T) {
	r := NewRegistry(memorydb.New())
	a := toL2(0, 1)
	send(t, r, a)

	tx := r.Begin()
	err := tx.ConsumeToL2Batch([]MessageL1ToL2{a, a})
	var detail *UnknownMessageError
	require.ErrorAs(t, err, &detail)
	require.Equal(t, 1, detail.Index)
	require.True(t, pendingToL2(t, r, a))
}

func TestFlushDeletesZeroCounts(t *testing.T) {
	db := memorydb.New()
	r := NewRegistry(db)
	a := toL2(0)
	send(t, r, a)

	tx := r.Begin()
	require.NoError(t, tx.ConsumeToL2Batch([]MessageL1ToL2{a}))
	require.NoError(t, r.Commit(tx))

	has, err := db.Has(messageKey(toL2Prefix, a.Hash()))
	require.NoError(t, err)
	require.False(t, has)
}

// flakyStore lets a test act between the moment a key is looked up and the
// moment its value is read, or fail reads outright.
type flakyStore struct {
	ethdb.KeyValueStore
	beforeGet func(key []byte)
	getErr    error
}

var errBackendNotFound = errors.New("backend: not found")

func (s *flakyStore) Get(key []byte) ([]byte, error) {
	if s.beforeGet != nil {
		s.beforeGet(key)
	}
	if s.getErr != nil {
		return nil, s.getErr
	}
	v, err := s.KeyValueStore.Get(key)
	if err != nil {
		return nil, errBackendNotFound
	}
	return v, nil
}

func TestCountOfKeyDeletedDuringRead(t *testing.T) {
	db := &flakyStore{KeyValueStore: memorydb.New()}
	r := NewRegistry(db)
	a := toL2(0, 1)
	send(t, r, a)

	key := messageKey(toL2Prefix, a.Hash())
	db.beforeGet = func(k []byte) {
		if string(k) == string(key) {
			require.NoError(t, db.KeyValueStore.Delete(k))
		}
	}
	n, err := r.ToL2Count(a.Hash())
	require.NoError(t, err)
	require.Equal(t, uint64(0), n)
	require.False(t, pendingToL2(t, r, a))
}

func TestReadErrorIsReturned(t *testing.T) {
	db := &flakyStore{KeyValueStore: memorydb.New()}
	r := NewRegistry(db)
	a := toL2(0, 1)
	send(t, r, a)

	ioErr := errors.New("disk on fire")
	db.getErr = ioErr

	_, err := r.ToL2Exists(a)
	require.ErrorIs(t, err, ioErr)
	_, err = r.Nonce()
	require.ErrorIs(t, err, ioErr)

	tx := r.Begin()
	require.ErrorIs(t, tx.ConsumeToL2Batch([]MessageL1ToL2{a}), ioErr)
	require.True(t, tx.Empty())

	// missing keys still read as zero
	n, err := r.ToL1Count(a.Hash())
	require.NoError(t, err)
	require.Equal(t, uint64(0), n)
}
