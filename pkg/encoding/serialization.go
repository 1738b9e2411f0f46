// Package encoding implements the little-endian, length-prefixed binary layout
// used for messages on the wire.
package encoding

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Serializable provides a clean, simple interface for serializing and deserializing values.
type Serializable interface {
	Serialize() ([]byte, error)
	Deserialize([]byte) error
}

var (
	ErrShortBuffer    = errors.New("encoding: short buffer")
	ErrLengthOverflow = errors.New("encoding: length prefix exceeds remaining data")
	ErrTrailingData   = errors.New("encoding: trailing data")
)

// Writer appends primitives to a growing buffer. Strings and slices are
// prefixed with a uint32 element count.
type Writer struct {
	buf []byte
}

func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

func (w *Writer) Bytes() []byte { return w.buf }
func (w *Writer) Len() int      { return len(w.buf) }

// Reset empties the writer, keeping its buffer.
func (w *Writer) Reset() { w.buf = w.buf[:0] }

func (w *Writer) Bool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
		return
	}
	w.buf = append(w.buf, 0)
}

func (w *Writer) Uint8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) Uint16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }

func (w *Writer) Uint32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }

func (w *Writer) Int32(v int32) { w.Uint32(uint32(v)) }

func (w *Writer) Float32(v float32) { w.Uint32(math.Float32bits(v)) }

func (w *Writer) Float64(v float64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, math.Float64bits(v))
}

func (w *Writer) String(s string) {
	w.Uint32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// Raw appends b without a length prefix.
func (w *Writer) Raw(b []byte) { w.buf = append(w.buf, b...) }

func (w *Writer) Float32s(vs []float32) {
	w.Uint32(uint32(len(vs)))
	for _, v := range vs {
		w.Float32(v)
	}
}

// Reader consumes primitives written by Writer. The first failure sticks:
// later reads return zero values and Err reports the original error.
type Reader struct {
	data []byte
	off  int
	err  error
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) Err() error { return r.err }

// Remaining reports unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.off }

// Finish returns the first read error, or ErrTrailingData if bytes are left.
func (r *Reader) Finish() error {
	if r.err != nil {
		return r.err
	}
	if r.Remaining() != 0 {
		return fmt.Errorf("%w: %d bytes", ErrTrailingData, r.Remaining())
	}
	return nil
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.data) {
		r.err = fmt.Errorf("%w: need %d at offset %d, have %d", ErrShortBuffer, n, r.off, len(r.data)-r.off)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *Reader) Bool() bool {
	b := r.take(1)
	return b != nil && b[0] != 0
}

func (r *Reader) Uint8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) Uint16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *Reader) Uint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *Reader) Int32() int32 { return int32(r.Uint32()) }

func (r *Reader) Float32() float32 { return math.Float32frombits(r.Uint32()) }

func (r *Reader) Float64() float64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

func (r *Reader) String() string {
	n := int(r.Uint32())
	if r.err == nil && n > r.Remaining() {
		r.err = fmt.Errorf("%w: string of %d", ErrLengthOverflow, n)
		return ""
	}
	return string(r.take(n))
}

// Raw consumes n bytes without a length prefix. The result aliases the
// reader's input.
func (r *Reader) Raw(n int) []byte {
	return r.take(n)
}

func (r *Reader) Float32s() []float32 {
	n := int(r.Uint32())
	if r.err == nil && n*4 > r.Remaining() {
		r.err = fmt.Errorf("%w: %d float32s", ErrLengthOverflow, n)
		return nil
	}
	out := make([]float32, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		out = append(out, r.Float32())
	}
	return out
}
