// Package fast provides append-only byte writers and cursor readers used by the
// felt word encoder and the cser record codec.
//
// Neither type checks bounds on its own: readers panic when asked for more bytes
// than remain. Callers that decode untrusted input check Remaining first or
// recover the panic into an error.
package fast

type Reader struct {
	buf    []byte
	offset int
}

type Writer struct {
	buf []byte
}

// NewReader returns a Reader positioned at the start of bb.
func NewReader(bb []byte) *Reader {
	return &Reader{buf: bb}
}

// NewWriter returns a Writer appending to bb.
func NewWriter(bb []byte) *Writer {
	return &Writer{buf: bb}
}

// WriteByte appends one byte.
func (b *Writer) WriteByte(v byte) {
	b.buf = append(b.buf, v)
}

// Write appends v.
func (b *Writer) Write(v []byte) {
	b.buf = append(b.buf, v...)
}

// Len returns the number of bytes written so far.
func (b *Writer) Len() int {
	return len(b.buf)
}

// Bytes returns the written content. The slice aliases the writer buffer.
func (b *Writer) Bytes() []byte {
	return b.buf
}

// Read consumes the next n bytes. The result aliases the reader buffer.
func (b *Reader) Read(n int) []byte {
	res := b.buf[b.offset : b.offset+n]
	b.offset += n
	return res
}

// ReadByte consumes a single byte.
func (b *Reader) ReadByte() byte {
	res := b.buf[b.offset]
	b.offset++
	return res
}

// Position is the number of bytes consumed.
func (b *Reader) Position() int {
	return b.offset
}

// Remaining is the number of bytes left to read.
func (b *Reader) Remaining() int {
	return len(b.buf) - b.offset
}

// Bytes returns the whole underlying buffer, read or not.
func (b *Reader) Bytes() []byte {
	return b.buf
}

// Empty reports whether every byte has been consumed.
func (b *Reader) Empty() bool {
	return len(b.buf) == b.offset
}
