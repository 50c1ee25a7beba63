package conv

import (
	"fmt"
	"math"
)

// IntToInt32 converts int to int32 safely.
func IntToInt32(v int) (int32, error) {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, fmt.Errorf("integer overflow: %d cannot be converted to int32", v)
	}
	return int32(v), nil
}

// LenToInt32 converts a slice length or element count to int32 safely.
func LenToInt32(n int) (int32, error) {
	if n < 0 {
		return 0, fmt.Errorf("integer overflow: length %d is negative", n)
	}
	return IntToInt32(n)
}

// Int32ToLen converts a decoded int32 length into an int, rejecting
// negative values and values above limit (when limit > 0).
func Int32ToLen(v int32, limit int) (int, error) {
	if v < 0 {
		return 0, fmt.Errorf("invalid length %d: negative", v)
	}
	if limit > 0 && int(v) > limit {
		return 0, fmt.Errorf("invalid length %d: exceeds limit %d", v, limit)
	}
	return int(v), nil
}

// IntToUint32 converts int to uint32 safely.
func IntToUint32(v int) (uint32, error) {
	if v < 0 {
		return 0, fmt.Errorf("integer overflow: %d cannot be converted to uint32 (negative)", v)
	}
	// On 64-bit systems, int can exceed uint32 max; on 32-bit, this is always false
	if uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("integer overflow: %d cannot be converted to uint32 (too large)", v)
	}
	return uint32(v), nil
}

// Uint32ToInt converts uint32 to int safely.
func Uint32ToInt(v uint32) (int, error) {
	if uint64(v) > uint64(math.MaxInt) {
		return 0, fmt.Errorf("integer overflow: %d cannot be converted to int (too large)", v)
	}
	return int(v), nil
}
