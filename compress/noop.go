package compress

// NoOpCompressor provides a no-operation codec that passes data through
// unchanged.
//
// It exists for the bundle range cache: on fast local disks the decompress
// cost of a cache hit can exceed the read itself, and a passthrough cache is
// the right configuration. It also serves as the baseline in codec
// benchmarks and tests.
type NoOpCompressor struct{}

var _ Codec = (*NoOpCompressor)(nil)

// NewNoOpCompressor creates a new no-operation codec.
func NewNoOpCompressor() NoOpCompressor {
	return NoOpCompressor{}
}

// Compress returns the input data directly without copying.
//
// The returned slice shares the input's underlying memory. Callers must not
// modify the input afterward if they plan to use the returned slice.
func (c NoOpCompressor) Compress(data []byte) ([]byte, error) {
	return data, nil
}

// Decompress returns the input data directly without copying.
//
// The returned slice shares the input's underlying memory. Callers must not
// modify the input afterward if they plan to use the returned slice.
func (c NoOpCompressor) Decompress(data []byte) ([]byte, error) {
	return data, nil
}
