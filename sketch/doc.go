// Package sketch stores sparse key to bin mappings in sub-linear space.
//
// A MinMaxSketch is a count-min style table of rowNum hashed rows. Insert
// keeps, per cell, the value closest to a reference zeroValue; Query returns
// the value farthest from zeroValue across the rows the key hashes to. A
// collision can only pull a cell towards zeroValue, so a query never lands
// farther from zeroValue than the inserted value, and it is exact whenever
// at least one of the key's rows is collision-free.
//
// A GroupedMinMaxSketch partitions the bin range into bands anchored at the
// zero bin. Each band owns one MinMaxSketch sized to the band's key count and
// one sorted-key codec, so the key set is stored exactly and only the bin
// lookups are approximate. Restore merges the per-band key streams back into
// one ascending sequence.
//
// # Binary Format
//
// All fields are big-endian. A MinMaxSketch record is
//
//	rowNum:int32 colNum:int32 zeroValue:int32 cellBits:int32
//	rowNum x (hashKind:int8 seed:int32)
//	huffman record of the table
//
// and a grouped record is
//
//	groupNum:int32 rowNum:int32 colRatio:float64 binNum:int32 zeroValue:int32
//	groupNum x (present:bool [sketch record])
//	groupNum x (present:bool [codecKind:int8 codec record])
package sketch
