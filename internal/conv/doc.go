// Package conv provides safe integer type conversion utilities.
//
// These functions perform bounds checking to prevent integer overflow/underflow
// when converting between Go's int and the fixed-width types used by the
// persisted record layouts.
//
// Use cases:
//   - Validating untrusted data from records (counts, lengths, word counts)
//   - Converting slice lengths to the int32 fields of the wire format
//
// For conversions that are provably safe by domain constraints (e.g., loop
// indices, bounded counters), use direct type casts instead to avoid overhead.
package conv
