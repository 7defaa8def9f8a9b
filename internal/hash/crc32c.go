package hash

import (
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// CRC32C computes the CRC32-Castagnoli checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}

// CRC32CBase64 returns the checksum of data in the form S3 expects in
// checksum headers: base64 of the big-endian sum.
func CRC32CBase64(data []byte) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], CRC32C(data))
	return base64.StdEncoding.EncodeToString(b[:])
}
