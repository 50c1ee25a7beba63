// Package bitio packs variable-width integer fields into bit buffers backed
// by bits-and-blooms/bitset and exports them as uint64 words.
//
// Two field orders are supported. LSB-first fields store bit j of the value
// at position pos+j, which is how fixed-width deltas are laid out. MSB-first
// fields store the most significant bit first, which is what prefix codes
// need so a decoder can walk them one bit at a time.
package bitio

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/bits-and-blooms/bitset"
)

var (
	// ErrNonPositiveLog is returned when a logarithm of a value <= 0 is requested.
	ErrNonPositiveLog = errors.New("bitio: logarithm of non-positive value")

	// ErrShortBuffer is returned when a field extends past the stored words.
	ErrShortBuffer = errors.New("bitio: read past stored bits")

	// ErrTrailingBits is returned when stored bits remain after the last field.
	ErrTrailingBits = errors.New("bitio: unread trailing bits")
)

// Writer appends fields to a growing bit buffer.
type Writer struct {
	bs  *bitset.BitSet
	pos uint
}

// NewWriter creates an empty writer.
func NewWriter() *Writer {
	return &Writer{bs: bitset.New(0)}
}

// Len returns the number of bits written.
func (w *Writer) Len() uint { return w.pos }

// WriteBit appends a single bit.
func (w *Writer) WriteBit(b bool) {
	if b {
		w.bs.Set(w.pos)
	}
	w.pos++
}

// WriteLSB appends the low width bits of v, least significant bit first.
func (w *Writer) WriteLSB(v uint64, width uint) {
	for j := uint(0); j < width; j++ {
		if v&(1<<j) != 0 {
			w.bs.Set(w.pos + j)
		}
	}
	w.pos += width
}

// WriteMSB appends the low width bits of v, most significant bit first.
func (w *Writer) WriteMSB(v uint64, width uint) {
	for j := uint(0); j < width; j++ {
		if v&(1<<(width-1-j)) != 0 {
			w.bs.Set(w.pos + j)
		}
	}
	w.pos += width
}

// Words returns a copy of the buffer as ceil(Len/64) words. Padding bits in
// the last word are zero.
func (w *Writer) Words() []uint64 {
	out := make([]uint64, (w.pos+63)/64)
	copy(out, w.bs.Words())
	return out
}

// Reader consumes fields from the first n bits of a word buffer. Reading
// past them yields zero bits and records ErrShortBuffer, reported by Err and
// Finish.
type Reader struct {
	bs  *bitset.BitSet
	cap uint
	pos uint
	err error
}

// NewReader wraps the first n bits of words. The slice is copied.
func NewReader(words []uint64, n uint) *Reader {
	cp := make([]uint64, len(words))
	copy(cp, words)
	r := &Reader{bs: bitset.From(cp), cap: min(n, uint(len(cp))*64)}
	if n > r.cap {
		r.err = fmt.Errorf("%w: %d bits in %d words", ErrShortBuffer, n, len(cp))
	}
	return r
}

// Pos returns the current bit offset.
func (r *Reader) Pos() uint { return r.pos }

// Stored returns the number of readable bits.
func (r *Reader) Stored() uint { return r.cap }

// Err returns the first error encountered while reading.
func (r *Reader) Err() error { return r.err }

// ReadBit consumes one bit.
func (r *Reader) ReadBit() bool {
	if r.pos >= r.cap {
		if r.err == nil {
			r.err = fmt.Errorf("%w: bit %d of %d", ErrShortBuffer, r.pos, r.cap)
		}
		r.pos++
		return false
	}
	b := r.bs.Test(r.pos)
	r.pos++
	return b
}

// Finish reports Err, or ErrTrailingBits when readable bits remain unread
// or a padding bit after them is set.
func (r *Reader) Finish() error {
	if r.err != nil {
		return r.err
	}
	if r.pos < r.cap || r.TrailingSet() {
		return fmt.Errorf("%w: %d of %d bits read", ErrTrailingBits, r.pos, r.cap)
	}
	return nil
}

// TrailingSet reports whether any stored bit at or after the current offset
// is set, padding included.
func (r *Reader) TrailingSet() bool {
	_, ok := r.bs.NextSet(r.pos)
	return ok
}

// ReadLSB consumes a width-bit field written by WriteLSB.
func (r *Reader) ReadLSB(width uint) uint64 {
	var v uint64
	for j := uint(0); j < width; j++ {
		if r.ReadBit() {
			v |= 1 << j
		}
	}
	return v
}

// ReadMSB consumes a width-bit field written by WriteMSB.
func (r *Reader) ReadMSB(width uint) uint64 {
	var v uint64
	for j := uint(0); j < width; j++ {
		v <<= 1
		if r.ReadBit() {
			v |= 1
		}
	}
	return v
}

// BitLen returns the number of bits needed to hold v, with a floor of 1 so a
// zero still occupies one bit.
func BitLen(v uint32) int {
	return max(1, bits.Len32(v))
}

// CeilLog2 returns ceil(log2(n)) for n > 0.
func CeilLog2(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrNonPositiveLog, n)
	}
	return bits.Len(uint(n - 1)), nil
}

// Log2 returns floor(log2(n)) for n > 0.
func Log2(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrNonPositiveLog, n)
	}
	return bits.Len(uint(n)) - 1, nil
}
