package cser

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

type record struct {
	Version uint8
	Big     uint64
	Tag     uint8
	Key     [32]byte
}

func (r record) marshal() ([]byte, error) {
	return MarshalBinaryAdapter(func(w *Writer) error {
		w.U8(r.Version)
		w.U64(r.Big)
		w.U8(r.Tag)
		w.FixedBytes(r.Key[:])
		return nil
	})
}

func unmarshal(raw []byte) (r record, err error) {
	err = UnmarshalBinaryAdapter(raw, func(rd *Reader) error {
		r.Version = rd.U8()
		r.Big = rd.U64()
		r.Tag = rd.U8()
		rd.FixedBytes(r.Key[:])
		return nil
	})
	return r, err
}

func TestRecordRoundTrip(t *testing.T) {
	cases := []record{
		{},
		{Version: 1, Big: 1, Tag: 1},
		{Version: 0xff, Big: math.MaxUint64, Tag: 0xff, Key: [32]byte{31: 1}},
	}
	for _, c := range cases {
		raw, err := c.marshal()
		require.NoError(t, err)
		got, err := unmarshal(raw)
		require.NoError(t, err)
		require.Equal(t, c, got)

		again, err := got.marshal()
		require.NoError(t, err)
		require.Equal(t, raw, again, "encoding must be stable")
	}
}

func TestRejectsTrailingBytes(t *testing.T) {
	raw, err := MarshalBinaryAdapter(func(w *Writer) error {
		w.U64(5)
		w.U8(1)
		return nil
	})
	require.NoError(t, err)

	err = UnmarshalBinaryAdapter(raw, func(r *Reader) error {
		r.U64()
		return nil
	})
	require.ErrorIs(t, err, ErrNonCanonicalEncoding)
}

func TestRejectsPaddedInteger(t *testing.T) {
	// U64(1) padded to two body bytes: width bits say 2 bytes, top byte zero.
	raw, err := MarshalBinaryAdapter(func(w *Writer) error {
		w.BytesW.Write([]byte{1, 0})
		w.BitsW.Write(3, 1)
		return nil
	})
	require.NoError(t, err)

	err = UnmarshalBinaryAdapter(raw, func(r *Reader) error {
		r.U64()
		return nil
	})
	require.ErrorIs(t, err, ErrNonCanonicalEncoding)
}

func TestMalformed(t *testing.T) {
	require.ErrorIs(t, UnmarshalBinaryAdapter(nil, func(*Reader) error { return nil }), ErrMalformedEncoding)

	raw, err := MarshalBinaryAdapter(func(w *Writer) error {
		w.U64(math.MaxUint64)
		return nil
	})
	require.NoError(t, err)
	err = UnmarshalBinaryAdapter(raw[1:], func(r *Reader) error {
		r.U64()
		return nil
	})
	require.Error(t, err)
}
