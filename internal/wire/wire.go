// Package wire provides the big-endian primitives shared by every record
// encoder: a Writer that accumulates fields into a buffer and a Reader that
// consumes them with a sticky error.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/vecsketch/internal/conv"
)

// ErrShortRecord is returned when a record ends before all fields are read.
var ErrShortRecord = errors.New("wire: short record")

// MaxElements bounds any decoded element count. It keeps a corrupted length
// field from triggering a huge allocation.
const MaxElements = 1 << 28

// Writer appends big-endian fields to an in-memory buffer.
type Writer struct {
	buf []byte
	err error
}

// NewWriter creates a writer with the given capacity hint.
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// Err returns the first error encountered while writing.
func (w *Writer) Err() error { return w.err }

// Int8 writes a signed byte.
func (w *Writer) Int8(v int8) { w.buf = append(w.buf, byte(v)) }

// Uint8 writes an unsigned byte.
func (w *Writer) Uint8(v uint8) { w.buf = append(w.buf, v) }

// Bool writes a boolean as one byte.
func (w *Writer) Bool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
		return
	}
	w.buf = append(w.buf, 0)
}

// Int16 writes a big-endian int16.
func (w *Writer) Int16(v int16) { w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(v)) }

// Int32 writes a big-endian int32.
func (w *Writer) Int32(v int32) { w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v)) }

// Uint64 writes a big-endian uint64.
func (w *Writer) Uint64(v uint64) { w.buf = binary.BigEndian.AppendUint64(w.buf, v) }

// Float64 writes an IEEE-754 double.
func (w *Writer) Float64(v float64) { w.Uint64(math.Float64bits(v)) }

// Len32 writes a slice length as int32, recording an overflow error.
func (w *Writer) Len32(n int) {
	v, err := conv.LenToInt32(n)
	if err != nil && w.err == nil {
		w.err = err
	}
	w.Int32(v)
}

// Words writes a length-prefixed word array.
func (w *Writer) Words(words []uint64) {
	w.Len32(len(words))
	for _, x := range words {
		w.Uint64(x)
	}
}

// Float64s writes a length-prefixed float64 array.
func (w *Writer) Float64s(vs []float64) {
	w.Len32(len(vs))
	for _, v := range vs {
		w.Float64(v)
	}
}

// Raw appends bytes verbatim.
func (w *Writer) Raw(p []byte) { w.buf = append(w.buf, p...) }

// Reader consumes big-endian fields. The first failure sticks: every later
// call returns a zero value and Err reports the original cause.
type Reader struct {
	buf []byte
	off int
	err error
}

// NewReader wraps buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Err returns the first error encountered while reading.
func (r *Reader) Err() error { return r.err }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

// Fail records err unless an earlier error is already set.
func (r *Reader) Fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.Remaining() < n {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortRecord, n, r.off, r.Remaining())
		return nil
	}
	p := r.buf[r.off : r.off+n]
	r.off += n
	return p
}

// Int8 reads a signed byte.
func (r *Reader) Int8() int8 {
	p := r.take(1)
	if p == nil {
		return 0
	}
	return int8(p[0])
}

// Uint8 reads an unsigned byte.
func (r *Reader) Uint8() uint8 {
	p := r.take(1)
	if p == nil {
		return 0
	}
	return p[0]
}

// Bool reads a one-byte boolean.
func (r *Reader) Bool() bool { return r.Uint8() != 0 }

// Int16 reads a big-endian int16.
func (r *Reader) Int16() int16 {
	p := r.take(2)
	if p == nil {
		return 0
	}
	return int16(binary.BigEndian.Uint16(p))
}

// Int32 reads a big-endian int32.
func (r *Reader) Int32() int32 {
	p := r.take(4)
	if p == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(p))
}

// Uint64 reads a big-endian uint64.
func (r *Reader) Uint64() uint64 {
	p := r.take(8)
	if p == nil {
		return 0
	}
	return binary.BigEndian.Uint64(p)
}

// Float64 reads an IEEE-754 double.
func (r *Reader) Float64() float64 { return math.Float64frombits(r.Uint64()) }

// Len32 reads an int32 element count and validates it against MaxElements.
func (r *Reader) Len32() int {
	v := r.Int32()
	if r.err != nil {
		return 0
	}
	n, err := conv.Int32ToLen(v, MaxElements)
	if err != nil {
		r.err = fmt.Errorf("%w: %v", ErrShortRecord, err)
		return 0
	}
	return n
}

// Words reads a length-prefixed word array.
func (r *Reader) Words() []uint64 {
	n := r.Len32()
	if r.err != nil || !r.fits(n, 8) {
		return nil
	}
	words := make([]uint64, n)
	for i := range words {
		words[i] = r.Uint64()
	}
	return words
}

// Float64s reads a length-prefixed float64 array.
func (r *Reader) Float64s() []float64 {
	n := r.Len32()
	if r.err != nil || !r.fits(n, 8) {
		return nil
	}
	vs := make([]float64, n)
	for i := range vs {
		vs[i] = r.Float64()
	}
	return vs
}

// fits checks that n elements of width bytes are available before allocating.
func (r *Reader) fits(n, width int) bool {
	if r.Remaining() < n*width {
		r.err = fmt.Errorf("%w: %d elements of %d bytes exceed remaining %d", ErrShortRecord, n, width, r.Remaining())
		return false
	}
	return true
}

// Fits reports whether n elements of width bytes remain, recording an error
// otherwise.
func (r *Reader) Fits(n, width int) bool {
	if r.err != nil {
		return false
	}
	return r.fits(n, width)
}
