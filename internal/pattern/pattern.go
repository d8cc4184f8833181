// Package pattern synthesizes deterministic byte content for test images.
// The same address always yields the same byte, so fixtures can be checked
// without embedding blobs.
package pattern

import (
	"github.com/OneOfOne/xxhash"
)

const memSalt = uint64(0xa66aec150c63e3fe)

func toByteArray(val uint64) []byte {
	bytes := make([]byte, 8)
	for i := 0; i < 8; i++ {
		bytes[i] = byte(val % 0xff)
		val = val / 0xff
	}
	return bytes
}

func fastHash(salt, val uint64) uint64 {
	return xxhash.Checksum64S(toByteArray(val), salt)
}

// Byte is the content byte for one physical address.
func Byte(addr uint64) byte {
	return byte(fastHash(memSalt, addr))
}

// Bytes is the content run of the given size starting at addr.
func Bytes(addr uint64, size int) []byte {
	res := make([]byte, size)
	for i := 0; i < size; i++ {
		res[i] = Byte(addr + uint64(i))
	}
	return res
}
