// Package hash provides the integer hash family used by the min-max sketch
// and the CRC32-Castagnoli checksum used by frames.
//
// # Hash family
//
// Each member maps an int32 key to a bucket in [0, size). Members are
// identified by a Kind so a sketch can persist which functions it used as a
// (kind, seed) descriptor:
//
//	funcs, err := hash.Random(rng, 2, colNum)
//	col := funcs[0].Hash(key)
//
// Random never returns the same Kind twice, which keeps the rows of a sketch
// independent. Requesting more rows than FamilySize fails with
// ErrHashCapacity.
//
// # CRC32-Castagnoli (CRC32C)
//
// For one-shot checksums:
//
//	checksum := hash.CRC32C(data)
//
// Go's crc32 package uses hardware instructions (SSE4.2, ARM CRC) when
// available.
package hash
