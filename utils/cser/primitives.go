package cser

import (
	"github.com/rony4d/go-settlement/utils/fast"
)

// writeUint64Compact writes a base-128 varint whose final byte carries the 0x80 stop bit.
func writeUint64Compact(w *fast.Writer, v uint64) {
	for {
		chunk := v & 0x7f
		v >>= 7
		if v == 0 {
			w.WriteByte(byte(chunk | 0x80))
			return
		}
		w.WriteByte(byte(chunk))
	}
}

func readUint64Compact(r *fast.Reader) uint64 {
	v := uint64(0)
	for i := 0; ; i++ {
		chunk := uint64(r.ReadByte())
		stop := chunk&0x80 != 0
		word := chunk & 0x7f
		v |= word << (i * 7)
		if stop {
			if i > 0 && word == 0 {
				panic(ErrNonCanonicalEncoding)
			}
			return v
		}
	}
}

// writeUint64BitCompact writes v little-endian using the fewest bytes, but at least minSize.
func writeUint64BitCompact(w *fast.Writer, v uint64, minSize int) (size int) {
	for size < minSize || v != 0 {
		w.WriteByte(byte(v))
		size++
		v >>= 8
	}
	return size
}

func readUint64BitCompact(r *fast.Reader, size int) uint64 {
	var (
		v    uint64
		last byte
	)
	for i, b := range r.Read(size) {
		v |= uint64(b) << uint(8*i)
		last = b
	}
	if size > 1 && last == 0 {
		panic(ErrNonCanonicalEncoding)
	}
	return v
}

// writeU64Bits stores the body in the byte stream and (size-minSize) in bitsForSize bits.
func (w *Writer) writeU64Bits(minSize int, bitsForSize int, v uint64) {
	size := writeUint64BitCompact(w.BytesW, v, minSize)
	w.BitsW.Write(bitsForSize, uint(size-minSize))
}

func (r *Reader) readU64Bits(minSize int, bitsForSize int) uint64 {
	size := int(r.BitsR.Read(bitsForSize)) + minSize
	return readUint64BitCompact(r.BytesR, size)
}

func (w *Writer) U8(v uint8) {
	w.BytesW.WriteByte(v)
}

func (r *Reader) U8() uint8 {
	return r.BytesR.ReadByte()
}

func (w *Writer) U64(v uint64) {
	w.writeU64Bits(1, 3, v)
}

func (r *Reader) U64() uint64 {
	return r.readU64Bits(1, 3)
}

func (w *Writer) FixedBytes(v []byte) {
	w.BytesW.Write(v)
}

func (r *Reader) FixedBytes(v []byte) {
	copy(v, r.BytesR.Read(len(v)))
}
