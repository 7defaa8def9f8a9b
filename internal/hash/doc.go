// Package hash provides the checksums used on the blob path.
//
// Blob uploads carry a CRC32-Castagnoli (CRC32C) checksum so that object
// stores can reject chunks corrupted in transit. Go's hash/crc32 uses the
// SSE4.2 and ARM CRC instructions when available.
//
//	sum := hash.CRC32C(chunk)
//	header := hash.CRC32CBase64(chunk) // x-amz-checksum-crc32c
package hash
