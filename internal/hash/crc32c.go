package hash

import "hash/crc32"

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// CRC32C returns the Castagnoli checksum of data. Frames store it over the
// raw record so corruption is caught after decompression.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, castagnoli)
}
