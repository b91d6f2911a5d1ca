package messaging

import (
	"errors"

	"github.com/rony4d/go-settlement/felt"
	"github.com/rony4d/go-settlement/utils/fast"
)

var (
	ErrTruncated    = errors.New("messaging: truncated encoding")
	ErrTrailingData = errors.New("messaging: trailing data after encoding")
	ErrTooLong      = errors.New("messaging: sequence length exceeds input")
)

// Encoder writes 32-byte big-endian words. Sequences are prefixed with their length.
type Encoder struct {
	w *fast.Writer
}

func NewEncoder(sizeHint int) *Encoder {
	return &Encoder{w: fast.NewWriter(make([]byte, 0, sizeHint))}
}

func (e *Encoder) Felt(f felt.Felt) {
	e.w.Write(f[:])
}

func (e *Encoder) Uint64(v uint64) {
	e.Felt(felt.FromUint64(v))
}

func (e *Encoder) Felts(fs []felt.Felt) {
	e.Uint64(uint64(len(fs)))
	for _, f := range fs {
		e.Felt(f)
	}
}

func (e *Encoder) Bytes() []byte {
	return e.w.Bytes()
}

// Decoder reads words written by Encoder, range-checking each of them.
type Decoder struct {
	r *fast.Reader
}

func NewDecoder(raw []byte) *Decoder {
	return &Decoder{r: fast.NewReader(raw)}
}

func (d *Decoder) Felt() (felt.Felt, error) {
	if d.r.Remaining() < felt.Size {
		return felt.Zero, ErrTruncated
	}
	var word [felt.Size]byte
	copy(word[:], d.r.Read(felt.Size))
	if !felt.IsValid(word) {
		return felt.Zero, felt.ErrOutOfRange
	}
	return felt.Felt(word), nil
}

func (d *Decoder) Uint64() (uint64, error) {
	f, err := d.Felt()
	if err != nil {
		return 0, err
	}
	return f.Uint64()
}

// Felts reads a length-prefixed sequence. The length may not exceed the words left.
func (d *Decoder) Felts() ([]felt.Felt, error) {
	n, err := d.Uint64()
	if err != nil {
		return nil, err
	}
	if n > uint64(d.r.Remaining()/felt.Size) {
		return nil, ErrTooLong
	}
	out := make([]felt.Felt, n)
	for i := range out {
		if out[i], err = d.Felt(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Done fails if any input is left unread.
func (d *Decoder) Done() error {
	if !d.r.Empty() {
		return ErrTrailingData
	}
	return nil
}
