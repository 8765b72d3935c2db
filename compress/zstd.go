package compress

// ZstdCompressor provides Zstandard compression and decompression.
//
// Zstd is the manifest format's wire codec: every manifest body and every
// bundle chunk is a Zstd frame, so this codec sits on the hot path of both
// decoding and download. The default implementation is pure Go
// (klauspost/compress) with pooled encoders and decoders; building with the
// rman_gozstd tag swaps in the cgo libzstd bindings for workloads where the
// native decoder's throughput matters more than a C dependency.
type ZstdCompressor struct{}

var _ Codec = (*ZstdCompressor)(nil)

// NewZstdCompressor creates a new Zstd codec with default settings.
func NewZstdCompressor() ZstdCompressor {
	return ZstdCompressor{}
}
