// Package codec packs integer sequences into bit buffers.
//
// Three codecs share the BinaryCodec interface:
//
//   - Delta: non-decreasing input, each delta stored in 1, 2 or 4 bytes with
//     a 2-bit width flag.
//   - AdaptiveDelta: non-decreasing input, deltas stored in a data-dependent
//     number of fixed-size intervals chosen to minimize expected bits.
//   - Huffman: arbitrary input, optimal prefix code over the symbols present.
//
// Records are self-describing when written with Marshal, which prefixes the
// codec's Kind byte so Unmarshal can rebuild the right type.
package codec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/vecsketch/internal/bitio"
	"github.com/hupe1980/vecsketch/internal/wire"
)

var (
	// ErrUnknownKind is returned for an unrecognized codec kind.
	ErrUnknownKind = errors.New("codec: unknown codec kind")

	// ErrUnsorted is returned when a delta codec sees a negative delta.
	ErrUnsorted = errors.New("codec: input must be non-decreasing and non-negative")

	// ErrCorruptCodec is returned when persisted codec state cannot be
	// decoded consistently.
	ErrCorruptCodec = errors.New("codec: corrupt codec state")

	// ErrCodeTooLong is returned when a Huffman code exceeds 31 bits.
	ErrCodeTooLong = errors.New("codec: huffman code too long")
)

// Kind identifies a codec implementation.
type Kind int8

const (
	// Delta is the fixed byte-granularity delta codec.
	Delta Kind = iota + 1
	// AdaptiveDelta is the variable interval delta codec.
	AdaptiveDelta
	// Huffman is the prefix-code codec.
	Huffman
)

// String returns the configuration name of the kind.
func (k Kind) String() string {
	switch k {
	case Delta:
		return "delta"
	case AdaptiveDelta:
		return "adaptive"
	case Huffman:
		return "huffman"
	default:
		return fmt.Sprintf("Kind(%d)", int8(k))
	}
}

// Sorted reports whether the codec requires non-decreasing input.
func (k Kind) Sorted() bool { return k == Delta || k == AdaptiveDelta }

// ParseKind parses a configuration name (case-insensitive).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "delta":
		return Delta, nil
	case "adaptive", "adaptive-delta":
		return AdaptiveDelta, nil
	case "huffman":
		return Huffman, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// BinaryCodec encodes a whole integer sequence at once and decodes it back.
// Decoding is a pure function of the codec's own state.
type BinaryCodec interface {
	// Kind returns the codec variant.
	Kind() Kind
	// Encode replaces the codec state with an encoding of values. On error
	// the previous state is kept.
	Encode(values []int32) error
	// Decode returns the encoded sequence.
	Decode() ([]int32, error)
	// Size returns the number of encoded symbols.
	Size() int
	// SizeInBytes returns the length of the codec record, without the kind
	// byte written by Marshal.
	SizeInBytes() int

	writeRecord(w *wire.Writer)
	readRecord(r *wire.Reader) error
}

// New returns an empty codec of the given kind.
func New(kind Kind) (BinaryCodec, error) {
	switch kind {
	case Delta:
		return &DeltaCodec{}, nil
	case AdaptiveDelta:
		return &AdaptiveDeltaCodec{}, nil
	case Huffman:
		return &HuffmanCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, kind)
	}
}

// Encode is a convenience that creates a codec of the given kind and encodes
// values with it.
func Encode(kind Kind, values []int32) (BinaryCodec, error) {
	c, err := New(kind)
	if err != nil {
		return nil, err
	}
	if err := c.Encode(values); err != nil {
		return nil, err
	}
	return c, nil
}

// Marshal writes the kind byte followed by the codec record.
func Marshal(w *wire.Writer, c BinaryCodec) {
	w.Int8(int8(c.Kind()))
	c.writeRecord(w)
}

// Unmarshal reads a record written by Marshal.
func Unmarshal(r *wire.Reader) (BinaryCodec, error) {
	kind := Kind(r.Int8())
	if err := r.Err(); err != nil {
		return nil, err
	}
	c, err := New(kind)
	if err != nil {
		return nil, err
	}
	if err := c.readRecord(r); err != nil {
		return nil, err
	}
	return c, nil
}

// WriteRecord writes only the codec record, without a kind byte. Use it when
// the kind is implied by the surrounding record.
func WriteRecord(w *wire.Writer, c BinaryCodec) { c.writeRecord(w) }

// ReadRecord reads a record of a known kind written by WriteRecord.
func ReadRecord(r *wire.Reader, kind Kind) (BinaryCodec, error) {
	c, err := New(kind)
	if err != nil {
		return nil, err
	}
	if err := c.readRecord(r); err != nil {
		return nil, err
	}
	return c, nil
}

// bitstream is an encoded bit array with its exact length in bits. Words
// hold ceil(bits/64) entries and padding bits are zero.
type bitstream struct {
	words []uint64
	bits  uint
}

func streamOf(w *bitio.Writer) bitstream {
	return bitstream{words: w.Words(), bits: w.Len()}
}

func (s bitstream) reader() *bitio.Reader { return bitio.NewReader(s.words, s.bits) }

// sizeInBytes covers bits:uint64, wordCount:int32 and the words.
func (s bitstream) sizeInBytes() int { return 8 + 4 + 8*len(s.words) }

func writeStream(w *wire.Writer, s bitstream) {
	w.Uint64(uint64(s.bits))
	w.Words(s.words)
}

func readStream(r *wire.Reader) (bitstream, error) {
	n := r.Uint64()
	words := r.Words()
	if err := readErr(r); err != nil {
		return bitstream{}, err
	}
	if (n+63)/64 != uint64(len(words)) {
		return bitstream{}, fmt.Errorf("%w: %d bits stored in %d words", ErrCorruptCodec, n, len(words))
	}
	return bitstream{words: words, bits: uint(n)}, nil
}

func readErr(r *wire.Reader) error {
	if err := r.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptCodec, err)
	}
	return nil
}
