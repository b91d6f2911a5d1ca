// Package cser is the canonical record codec used for ledger records on disk.
//
// A record is split into two streams: a byte stream carrying integer bodies and
// raw bytes, and a bit stream carrying integer widths and flags. The wire layout
// is
//
//	body bytes ‖ bit stream bytes ‖ reversed varint(len(bit stream))
//
// Decoding rejects any encoding that is not the unique minimal one, so equal
// records always have equal bytes.
package cser

import (
	"errors"

	"github.com/rony4d/go-settlement/utils/bits"
	"github.com/rony4d/go-settlement/utils/fast"
)

var (
	ErrNonCanonicalEncoding = errors.New("cser: non canonical encoding")
	ErrMalformedEncoding    = errors.New("cser: malformed encoding")
)

type Writer struct {
	BitsW  *bits.Writer
	BytesW *fast.Writer
}

type Reader struct {
	BitsR  *bits.Reader
	BytesR *fast.Reader
}

func NewWriter() *Writer {
	return &Writer{
		BitsW:  bits.NewWriter(&bits.Array{Bytes: make([]byte, 0, 8)}),
		BytesW: fast.NewWriter(make([]byte, 0, 96)),
	}
}

// MarshalBinaryAdapter runs marshalCser against a fresh Writer and packs both streams.
func MarshalBinaryAdapter(marshalCser func(*Writer) error) ([]byte, error) {
	w := NewWriter()
	if err := marshalCser(w); err != nil {
		return nil, err
	}
	body := fast.NewWriter(w.BytesW.Bytes())
	body.Write(w.BitsW.Array.Bytes)

	size := fast.NewWriter(make([]byte, 0, 4))
	writeUint64Compact(size, uint64(len(w.BitsW.Array.Bytes)))
	body.Write(reversed(size.Bytes()))
	return body.Bytes(), nil
}

// UnmarshalBinaryAdapter splits raw into its streams and runs unmarshalCser.
// Leftover bytes or non-zero padding bits make the record non-canonical.
func UnmarshalBinaryAdapter(raw []byte, unmarshalCser func(*Reader) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok && errors.Is(e, ErrNonCanonicalEncoding) {
				err = e
				return
			}
			err = ErrMalformedEncoding
		}
	}()
	if len(raw) == 0 {
		return ErrMalformedEncoding
	}

	sizeR := fast.NewReader(reversed(tail(raw, 9)))
	bitsSize := readUint64Compact(sizeR)
	raw = raw[:len(raw)-sizeR.Position()]
	if uint64(len(raw)) < bitsSize {
		return ErrMalformedEncoding
	}
	split := uint64(len(raw)) - bitsSize
	r := &Reader{
		BitsR:  bits.NewReader(&bits.Array{Bytes: raw[split:]}),
		BytesR: fast.NewReader(raw[:split]),
	}
	if err := unmarshalCser(r); err != nil {
		return err
	}
	if r.BitsR.NonReadBytes() > 1 {
		return ErrNonCanonicalEncoding
	}
	if r.BitsR.Read(r.BitsR.NonReadBits()) != 0 {
		return ErrNonCanonicalEncoding
	}
	if !r.BytesR.Empty() {
		return ErrNonCanonicalEncoding
	}
	return nil
}

func tail(b []byte, n int) []byte {
	if len(b) > n {
		return b[len(b)-n:]
	}
	return b
}

func reversed(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}
