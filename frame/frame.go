// Package frame wraps a compressor record in a self-describing envelope.
//
// A frame is
//
//	magic "VSKF" | version:uint8 | compression:uint8 |
//	crc32c:uint32 | rawLen:uint32 | payloadLen:uint32 | payload
//
// with big-endian integers. The checksum covers the raw record, so it is
// verified after decompression. When the chosen compression does not shrink
// the record the frame falls back to None.
package frame

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/vecsketch/internal/hash"
	"github.com/hupe1980/vecsketch/resource"
)

const (
	// Magic identifies a frame.
	Magic = "VSKF"

	// Version is the frame format version written by this package.
	Version uint8 = 1

	// HeaderSize is the number of bytes before the payload.
	HeaderSize = 18

	// MaxRawLen bounds the record size a frame may declare.
	MaxRawLen = 1 << 30
)

var (
	// ErrInvalidMagic is returned when data does not start with Magic.
	ErrInvalidMagic = errors.New("frame: invalid magic")

	// ErrUnsupportedVersion is returned for an unknown format version.
	ErrUnsupportedVersion = errors.New("frame: unsupported version")

	// ErrUnknownCompression is returned for an unknown compression id.
	ErrUnknownCompression = errors.New("frame: unknown compression")

	// ErrChecksum is returned when the record checksum does not match.
	ErrChecksum = errors.New("frame: checksum mismatch")

	// ErrCorruptFrame is returned for inconsistent lengths or payloads.
	ErrCorruptFrame = errors.New("frame: corrupt frame")

	// ErrTooLarge is returned for records above MaxRawLen.
	ErrTooLarge = errors.New("frame: record too large")
)

// Header describes a frame.
type Header struct {
	Version     uint8
	Compression Compression
	Checksum    uint32
	RawLen      uint32
	PayloadLen  uint32
}

func (h Header) append(dst []byte) []byte {
	dst = append(dst, Magic...)
	dst = append(dst, h.Version, uint8(h.Compression))
	dst = binary.BigEndian.AppendUint32(dst, h.Checksum)
	dst = binary.BigEndian.AppendUint32(dst, h.RawLen)
	return binary.BigEndian.AppendUint32(dst, h.PayloadLen)
}

// ParseHeader decodes and validates the first HeaderSize bytes of a frame.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d header bytes", ErrCorruptFrame, len(b))
	}
	if string(b[:4]) != Magic {
		return Header{}, ErrInvalidMagic
	}
	h := Header{
		Version:     b[4],
		Compression: Compression(b[5]),
		Checksum:    binary.BigEndian.Uint32(b[6:]),
		RawLen:      binary.BigEndian.Uint32(b[10:]),
		PayloadLen:  binary.BigEndian.Uint32(b[14:]),
	}
	if h.Version != Version {
		return Header{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	if !h.Compression.Valid() {
		return Header{}, fmt.Errorf("%w: %d", ErrUnknownCompression, h.Compression)
	}
	if h.RawLen > MaxRawLen || h.PayloadLen > MaxRawLen {
		return Header{}, fmt.Errorf("%w: raw %d, payload %d", ErrTooLarge, h.RawLen, h.PayloadLen)
	}
	return h, nil
}

// Encode wraps record in a frame using c.
func Encode(record []byte, c Compression) ([]byte, error) {
	if len(record) > MaxRawLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(record))
	}
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, c)
	}

	payload, err := compress(record, c)
	if err != nil {
		return nil, err
	}
	if payload == nil || len(payload) >= len(record) {
		payload, c = record, None
	}

	h := Header{
		Version:     Version,
		Compression: c,
		Checksum:    hash.CRC32C(record),
		RawLen:      uint32(len(record)),  //nolint:gosec // bounded by MaxRawLen
		PayloadLen:  uint32(len(payload)), //nolint:gosec // bounded by MaxRawLen
	}
	out := make([]byte, 0, HeaderSize+len(payload))
	out = h.append(out)
	return append(out, payload...), nil
}

// Decode unwraps a frame produced by Encode and returns the record.
func Decode(data []byte) ([]byte, Header, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, Header{}, err
	}
	payload := data[HeaderSize:]
	if len(payload) != int(h.PayloadLen) {
		return nil, Header{}, fmt.Errorf("%w: payload has %d bytes, header says %d", ErrCorruptFrame, len(payload), h.PayloadLen)
	}
	record, err := open(h, payload)
	if err != nil {
		return nil, Header{}, err
	}
	return record, h, nil
}

func open(h Header, payload []byte) ([]byte, error) {
	record, err := decompress(payload, h.Compression, int(h.RawLen))
	if err != nil {
		return nil, err
	}
	if sum := hash.CRC32C(record); sum != h.Checksum {
		return nil, fmt.Errorf("%w: got %08x, want %08x", ErrChecksum, sum, h.Checksum)
	}
	return record, nil
}

// Write encodes record and writes the frame to w, throttled by rc's IO
// limit. A nil controller writes without limits.
func Write(ctx context.Context, w io.Writer, rc *resource.Controller, record []byte, c Compression) (int64, error) {
	data, err := Encode(record, c)
	if err != nil {
		return 0, err
	}
	n, err := resource.NewRateLimitedWriter(ctx, w, rc).Write(data)
	return int64(n), err
}

// Read reads one frame from r, throttled by rc's IO limit, and returns the
// record. The payload buffer grows with the data actually read, so a forged
// length cannot force a large allocation up front.
func Read(ctx context.Context, r io.Reader, rc *resource.Controller) ([]byte, Header, error) {
	lr := resource.NewRateLimitedReader(ctx, r, rc)

	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(lr, hdr[:]); err != nil {
		return nil, Header{}, fmt.Errorf("%w: header: %w", ErrCorruptFrame, err)
	}
	h, err := ParseHeader(hdr[:])
	if err != nil {
		return nil, Header{}, err
	}

	var buf bytes.Buffer
	n, err := io.CopyN(&buf, lr, int64(h.PayloadLen))
	if err != nil {
		return nil, Header{}, fmt.Errorf("%w: payload: read %d of %d bytes: %w", ErrCorruptFrame, n, h.PayloadLen, err)
	}
	record, err := open(h, buf.Bytes())
	if err != nil {
		return nil, Header{}, err
	}
	return record, h, nil
}
