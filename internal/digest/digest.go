// Package digest computes the 64-bit chunk identifiers used by the manifest
// catalog. A chunk id is a truncated cryptographic digest of the chunk's
// uncompressed bytes; which construction applies is chosen per file by its
// parameter block.
package digest

import (
	"crypto/sha256"
	"crypto/sha512"

	"github.com/questline/rman/endian"
	"github.com/questline/rman/format"
)

var (
	le = endian.GetLittleEndianEngine()
	be = endian.GetBigEndianEngine()
)

// Sum computes the chunk identifier of data under the given hash type.
// HashNone always yields 0.
func Sum(t format.HashType, data []byte) uint64 {
	switch t {
	case format.HashSHA512:
		return sum512(data)
	case format.HashSHA256:
		return sum256(data)
	case format.HashHKDF:
		return sumIterated(data)
	default:
		return 0
	}
}

func sum256(data []byte) uint64 {
	d := sha256.Sum256(data)

	return le.Uint64(d[:8])
}

func sum512(data []byte) uint64 {
	d := sha512.Sum512(data)

	return le.Uint64(d[:8])
}

// sumIterated is the manifest format's iterated construction. Structurally
// it is HMAC-SHA256 keyed with SHA-256(data): a first block over the
// big-endian counter 1, then 31 further blocks each over the previous
// block, XOR-folded into the first 8 bytes and read little-endian. The
// iteration count, the counter encoding and the fold are all part of the
// wire identity of a chunk and must not change.
func sumIterated(data []byte) uint64 {
	key := sha256.Sum256(data)

	var ipad, opad [64]byte
	for i := range ipad {
		ipad[i] = 0x36
		opad[i] = 0x5C
	}
	for i := range key {
		ipad[i] ^= key[i]
		opad[i] ^= key[i]
	}

	step := func(msg []byte) [32]byte {
		inner := sha256.New()
		inner.Write(ipad[:])
		inner.Write(msg)

		outer := sha256.New()
		outer.Write(opad[:])
		outer.Write(inner.Sum(nil))

		var out [32]byte
		copy(out[:], outer.Sum(nil))

		return out
	}

	buf := step(be.AppendUint32(nil, 1))

	var result [8]byte
	copy(result[:], buf[:8])

	for range 31 {
		buf = step(buf[:])
		for i := range result {
			result[i] ^= buf[i]
		}
	}

	return le.Uint64(result[:])
}
