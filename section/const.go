package section

import "math"

const (
	// HeaderSize is the fixed manifest header size in bytes.
	HeaderSize = 28

	// ChunkLimit is the hard ceiling on a chunk's uncompressed size. A
	// parameter block may tighten it but never exceed it.
	ChunkLimit = 32 * 1024 * 1024

	// MaxOffset bounds every running compressed or uncompressed offset;
	// bundles and files both live inside a 4GB address space.
	MaxOffset = math.MaxUint32

	// BundleSuffix is appended to the 16-hex-digit bundle id to form the
	// CDN object name.
	BundleSuffix = ".bundle"
)

// Magic is the four-byte tag at the start of every manifest. The decoder
// carries it through without constraining it; published manifests have used
// more than one tag value.
var Magic = [4]byte{'R', 'M', 'A', 'N'}
