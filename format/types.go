package format

import "github.com/questline/rman/errs"

type (
	HashType        uint8
	CompressionType uint8
)

const (
	HashNone   HashType = 0 // HashNone disables chunk hashing; ids compute to 0.
	HashSHA512 HashType = 1 // HashSHA512 truncates a SHA-512 digest to 64 bits.
	HashSHA256 HashType = 2 // HashSHA256 truncates a SHA-256 digest to 64 bits.
	HashHKDF   HashType = 3 // HashHKDF is the iterated HMAC-style construction.

	CompressionNone CompressionType = 0x1 // CompressionNone represents no compression.
	CompressionZstd CompressionType = 0x2 // CompressionZstd represents Zstandard compression.
	CompressionS2   CompressionType = 0x3 // CompressionS2 represents S2 compression.
	CompressionLZ4  CompressionType = 0x4 // CompressionLZ4 represents LZ4 compression.
)

// HashTypeFromByte converts the parameter block hash-type byte into a
// HashType, rejecting values outside the known set.
func HashTypeFromByte(b uint8) (HashType, error) {
	if b > uint8(HashHKDF) {
		return HashNone, errs.ErrInvalidHashType
	}

	return HashType(b), nil
}

func (h HashType) String() string {
	switch h {
	case HashNone:
		return "None"
	case HashSHA512:
		return "SHA512"
	case HashSHA256:
		return "SHA256"
	case HashHKDF:
		return "HKDF"
	default:
		return "Unknown"
	}
}

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionZstd:
		return "Zstd"
	case CompressionS2:
		return "S2"
	case CompressionLZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}
