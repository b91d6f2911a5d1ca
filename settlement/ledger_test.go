package settlement

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-settlement/felt"
	"github.com/rony4d/go-settlement/utils/cser"
)

func TestRecordsRoundTrip(t *testing.T) {
	spec := ChainSpec{ProgramHash: felt.MustFromHex("0x1234"), ConfigHash: felt.FromUint64(1)}
	raw, err := spec.MarshalBinary()
	require.NoError(t, err)
	var specBack ChainSpec
	require.NoError(t, specBack.UnmarshalBinary(raw))
	require.Equal(t, spec, specBack)

	st := State{BlockNumber: 1 << 40, StateRoot: felt.MustFromHex("0xabc")}
	raw, err = st.MarshalBinary()
	require.NoError(t, err)
	var stBack State
	require.NoError(t, stBack.UnmarshalBinary(raw))
	require.Equal(t, st, stBack)
}

func TestRecordRejectsOutOfRangeFelt(t *testing.T) {
	raw, err := cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		w.U8(recordVersion)
		w.U64(1)
		word := make([]byte, felt.Size)
		for i := range word {
			word[i] = 0xff
		}
		w.FixedBytes(word)
		return nil
	})
	require.NoError(t, err)

	var st State
	require.ErrorIs(t, st.UnmarshalBinary(raw), errInvalidRecord)
}

func TestRecordRejectsUnknownVersion(t *testing.T) {
	raw, err := cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		w.U8(recordVersion + 1)
		w.U64(1)
		w.FixedBytes(make([]byte, felt.Size))
		return nil
	})
	require.NoError(t, err)

	var st State
	require.ErrorIs(t, st.UnmarshalBinary(raw), errUnknownRecordVersion)

	good, err := State{BlockNumber: 1}.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, recordVersion, good[0], "version is the first body byte")
}

func TestLedgerStagePublish(t *testing.T) {
	db := memorydb.New()
	l, err := OpenLedger(db)
	require.NoError(t, err)
	require.False(t, l.Initialized())
	_, err = l.ChainSpec()
	require.ErrorIs(t, err, ErrNotInitialized)
	require.Equal(t, State{}, l.State())

	spec := ChainSpec{ProgramHash: felt.FromUint64(1), ConfigHash: felt.FromUint64(2)}
	require.NoError(t, l.Initialize(spec))
	require.ErrorIs(t, l.Initialize(spec), ErrAlreadyInitialized)

	next := State{BlockNumber: 1, StateRoot: felt.FromUint64(5)}
	batch := db.NewBatch()
	require.NoError(t, l.stage(batch, next))
	require.Equal(t, State{}, l.State(), "staged state is not visible")

	reopened, err := OpenLedger(db)
	require.NoError(t, err)
	require.Equal(t, State{}, reopened.State(), "unwritten batch is not persisted")

	require.NoError(t, batch.Write())
	l.publish(next)
	require.Equal(t, next, l.State())

	reopened, err = OpenLedger(db)
	require.NoError(t, err)
	require.Equal(t, next, reopened.State())
	got, err := reopened.ChainSpec()
	require.NoError(t, err)
	require.Equal(t, spec, got)
}

func TestOpenLedgerRejectsCorruptRecord(t *testing.T) {
	db := memorydb.New()
	require.NoError(t, db.Put(stateKey, []byte{0x01}))
	_, err := OpenLedger(db)
	require.Error(t, err)
}

type failingReader struct {
	ethdb.KeyValueStore
	err error
}

func (f failingReader) Get(key []byte) ([]byte, error) {
	return nil, f.err
}

func TestLoadRecord(t *testing.T) {
	db := memorydb.New()
	var st State
	ok, err := loadRecord(db, stateKey, &st)
	require.NoError(t, err)
	require.False(t, ok)

	raw, err := State{BlockNumber: 3}.MarshalBinary()
	require.NoError(t, err)
	require.NoError(t, db.Put(stateKey, raw))

	ioErr := errors.New("read failed")
	_, err = loadRecord(failingReader{db, ioErr}, stateKey, &st)
	require.ErrorIs(t, err, ioErr)

	// a failed read of an absent key is still "no record"
	ok, err = loadRecord(failingReader{db, ioErr}, chainSpecKey, &ChainSpec{})
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = loadRecord(db, stateKey, &st)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, State{BlockNumber: 3}, st)
}
