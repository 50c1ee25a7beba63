package vecsketch

import (
	"errors"
	"fmt"

	"github.com/hupe1980/vecsketch/blobstore"
	"github.com/hupe1980/vecsketch/codec"
	"github.com/hupe1980/vecsketch/frame"
	"github.com/hupe1980/vecsketch/internal/bitio"
	"github.com/hupe1980/vecsketch/internal/hash"
	"github.com/hupe1980/vecsketch/internal/wire"
	"github.com/hupe1980/vecsketch/quantization"
	"github.com/hupe1980/vecsketch/resource"
	"github.com/hupe1980/vecsketch/sketch"
)

var (
	// ErrNotCompressed is returned when a compressor is read before a
	// Compress call succeeded.
	ErrNotCompressed = errors.New("compressor holds no compressed vector")

	// ErrAlreadyCompressed is returned by a second Compress call.
	ErrAlreadyCompressed = errors.New("compressor already holds a compressed vector")

	// ErrLengthMismatch is returned when keys and values differ in length.
	ErrLengthMismatch = errors.New("keys and values differ in length")

	// ErrInvalidConfig is returned for invalid options or configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnknownCompressor is returned for an unknown compressor kind.
	ErrUnknownCompressor = errors.New("unknown compressor kind")

	// ErrCorruptRecord is returned when a compressor record is inconsistent.
	ErrCorruptRecord = errors.New("corrupt compressor record")

	// ErrDensifyTooLarge is returned when scattering sparse keys would need
	// more slots than a record can hold.
	ErrDensifyTooLarge = errors.New("densified vector too large")
)

// ErrorKind classifies an Error.
type ErrorKind uint8

const (
	// KindInternal covers errors no other kind describes, such as context
	// cancellation.
	KindInternal ErrorKind = iota
	// KindConfig is an invalid option, configuration or variant.
	KindConfig
	// KindPrecondition is a call that violates the compressor's contract:
	// wrong lifecycle state, unsorted or duplicate keys, missing controller.
	KindPrecondition
	// KindCapacity is a resource limit: memory budget, record size or code
	// length.
	KindCapacity
	// KindDecode is a corrupt or truncated record.
	KindDecode
)

// String returns the name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindPrecondition:
		return "precondition"
	case KindCapacity:
		return "capacity"
	case KindDecode:
		return "decode"
	default:
		return "internal"
	}
}

// Error is returned by every exported operation of this package. The
// underlying package error is available through errors.Is and errors.As.
type Error struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("vecsketch: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the first Error in err's chain, or
// KindInternal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

var errorKinds = []struct {
	kind ErrorKind
	errs []error
}{
	{KindDecode, []error{
		ErrCorruptRecord,
		quantization.ErrCorruptRecord,
		codec.ErrCorruptCodec,
		sketch.ErrCorruptSketch,
		wire.ErrShortRecord,
		frame.ErrInvalidMagic,
		frame.ErrUnsupportedVersion,
		frame.ErrChecksum,
		frame.ErrCorruptFrame,
		bitio.ErrShortBuffer,
		bitio.ErrTrailingBits,
	}},
	{KindConfig, []error{
		ErrInvalidConfig,
		ErrUnknownCompressor,
		quantization.ErrUnknownKind,
		quantization.ErrInvalidBinNum,
		codec.ErrUnknownKind,
		sketch.ErrInvalidConfig,
		sketch.ErrInvalidShape,
		hash.ErrHashCapacity,
		resource.ErrInvalidParallelism,
		frame.ErrUnknownCompression,
		blobstore.ErrInvalidName,
	}},
	{KindCapacity, []error{
		ErrDensifyTooLarge,
		resource.ErrMemoryLimitExceeded,
		codec.ErrCodeTooLong,
		frame.ErrTooLarge,
	}},
	{KindPrecondition, []error{
		ErrNotCompressed,
		ErrAlreadyCompressed,
		ErrLengthMismatch,
		sketch.ErrLengthMismatch,
		sketch.ErrDuplicateKey,
		sketch.ErrNegativeKey,
		sketch.ErrBinOutOfRange,
		codec.ErrUnsorted,
		bitio.ErrNonPositiveLog,
		quantization.ErrUnsupportedScale,
		quantization.ErrNotQuantized,
		resource.ErrNoController,
		resource.ErrControllerClosed,
		blobstore.ErrNotFound,
	}},
}

// translateError wraps err in an Error for op. Decode errors are matched
// first: a corrupt record often also wraps the config or capacity error
// that exposed it.
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	for _, group := range errorKinds {
		for _, target := range group.errs {
			if errors.Is(err, target) {
				return &Error{Op: op, Kind: group.kind, Err: err}
			}
		}
	}
	return &Error{Op: op, Kind: KindInternal, Err: err}
}
