package hash

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"

	"github.com/cespare/xxhash/v2"
)

var (
	// ErrHashCapacity is returned when more distinct hash functions are
	// requested than the family provides.
	ErrHashCapacity = errors.New("hash: not enough hash functions available")

	// ErrUnknownKind is returned when a descriptor names no family member.
	ErrUnknownKind = errors.New("hash: unknown hash kind")

	// ErrInvalidSize is returned for a non-positive bucket count.
	ErrInvalidSize = errors.New("hash: bucket count must be positive")
)

// Kind identifies a member of the integer hash family.
type Kind int8

const (
	// BJ is Bob Jenkins' 32-bit integer mix.
	BJ Kind = iota
	// Mix64 is the 64-bit mix folded into 32-bit arithmetic.
	Mix64
	// TW is Thomas Wang's 32-bit integer hash.
	TW
	// BKDR31 is the BKDR decimal-digit hash with seed 31.
	BKDR31
	// BKDR131 is the BKDR decimal-digit hash with seed 131.
	BKDR131
	// BKDR267 is the BKDR decimal-digit hash with seed 267.
	BKDR267
	// BKDR1313 is the BKDR decimal-digit hash with seed 1313.
	BKDR1313
	// BKDR13131 is the BKDR decimal-digit hash with seed 13131.
	BKDR13131
	// XXHash is xxhash64 over the seed and the key bytes.
	XXHash

	numKinds
)

// FamilySize is the number of distinct hash functions available.
const FamilySize = int(numKinds)

// String returns the name of the hash kind.
func (k Kind) String() string {
	switch k {
	case BJ:
		return "BJ"
	case Mix64:
		return "Mix64"
	case TW:
		return "TW"
	case BKDR31:
		return "BKDR31"
	case BKDR131:
		return "BKDR131"
	case BKDR267:
		return "BKDR267"
	case BKDR1313:
		return "BKDR1313"
	case BKDR13131:
		return "BKDR13131"
	case XXHash:
		return "XXHash"
	default:
		return fmt.Sprintf("Kind(%d)", int8(k))
	}
}

// Valid reports whether k names a family member.
func (k Kind) Valid() bool { return k >= 0 && k < numKinds }

func (k Kind) bkdrSeed() int32 {
	switch k {
	case BKDR31:
		return 31
	case BKDR131:
		return 131
	case BKDR267:
		return 267
	case BKDR1313:
		return 1313
	case BKDR13131:
		return 13131
	default:
		return 0
	}
}

// Func maps an int32 key to a bucket in [0, size).
type Func struct {
	kind Kind
	seed int32
	size int32
}

// New creates a hash function of the given kind. The seed is only consulted
// by XXHash; the BKDR kinds carry their own multiplier.
func New(kind Kind, seed, size int32) (Func, error) {
	if !kind.Valid() {
		return Func{}, fmt.Errorf("%w: %d", ErrUnknownKind, kind)
	}
	if size <= 0 {
		return Func{}, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	if kind != XXHash {
		seed = 0
	}
	return Func{kind: kind, seed: seed, size: size}, nil
}

// Kind returns the family member.
func (f Func) Kind() Kind { return f.kind }

// Seed returns the seed persisted in the descriptor.
func (f Func) Seed() int32 { return f.seed }

// Size returns the bucket count.
func (f Func) Size() int32 { return f.size }

// Hash returns the bucket of key.
func (f Func) Hash(key int32) int32 {
	if f.kind == XXHash {
		var buf [8]byte
		binary.LittleEndian.PutUint32(buf[:4], uint32(f.seed))
		binary.LittleEndian.PutUint32(buf[4:], uint32(key))
		return int32(xxhash.Sum64(buf[:]) % uint64(f.size))
	}

	var code int32
	switch f.kind {
	case BJ:
		code = bj(key)
	case Mix64:
		code = mix64(key)
	case TW:
		code = tw(key)
	default:
		code = bkdr(key, f.kind.bkdrSeed())
	}
	code %= f.size
	if code < 0 {
		code += f.size
	}
	return code
}

// Random picks n distinct family members in random order, each sized to size
// buckets. XXHash members get a random seed from rng.
func Random(rng *rand.Rand, n int, size int32) ([]Func, error) {
	if n > FamilySize {
		return nil, fmt.Errorf("%w: requested %d, only %d hash functions are available", ErrHashCapacity, n, FamilySize)
	}
	perm := rng.Perm(FamilySize)
	funcs := make([]Func, n)
	for i := 0; i < n; i++ {
		kind := Kind(perm[i])
		var seed int32
		if kind == XXHash {
			seed = rng.Int31()
		}
		f, err := New(kind, seed, size)
		if err != nil {
			return nil, err
		}
		funcs[i] = f
	}
	return funcs, nil
}

// The mixers below operate on uint32 so wrapping arithmetic and the large
// constants stay representable; sar reproduces arithmetic right shifts.

func sar(c uint32, n uint) uint32 { return uint32(int32(c) >> n) }

func bj(key int32) int32 {
	c := uint32(key)
	c = (c + 0x7ed55d16) + (c << 12)
	c = (c ^ 0xc761c23c) ^ sar(c, 19)
	c = (c + 0x165667b1) + (c << 5)
	c = (c + 0xd3a2646c) ^ (c << 9)
	c = (c + 0xfd7046c5) + (c << 3)
	c = (c ^ 0xb55a4f09) ^ sar(c, 16)
	return int32(c)
}

func mix64(key int32) int32 {
	c := uint32(key)
	c = ^c + (c << 21)
	c ^= sar(c, 24)
	c = (c + (c << 3)) + (c << 8)
	c ^= sar(c, 14)
	c = (c + (c << 2)) + (c << 4)
	c ^= sar(c, 28)
	c += c << 31
	return int32(c)
}

func tw(key int32) int32 {
	c := uint32(key)
	c = ^c + (c << 15)
	c ^= sar(c, 12)
	c += c << 2
	c ^= sar(c, 4)
	c *= 2057
	c ^= sar(c, 16)
	return int32(c)
}

func bkdr(key, seed int32) int32 {
	var code int32
	for key != 0 {
		code = seed*code + key%10
		key /= 10
	}
	return code
}
