// Package compress provides the compression codecs used around the manifest
// pipeline.
//
// Two call sites are fixed by the wire format and always Zstd: the manifest
// body (a single Zstd frame of the header's compressed size, after the header
// and its opaque gap) and bundle chunks
// (each chunk is an independent Zstd frame inside its bundle). The third
// call site is local policy: the downloader's optional bundle range cache
// stores fetched ranges through any codec here, trading disk for CPU.
//
// # Architecture
//
// The package defines three core interfaces:
//
//	type Compressor interface {
//	    Compress(data []byte) ([]byte, error)
//	}
//
//	type Decompressor interface {
//	    Decompress(data []byte) ([]byte, error)
//	}
//
//	type Codec interface {
//	    Compressor
//	    Decompressor
//	}
//
// # Supported Algorithms
//
//   - None: passthrough, for caches on already-fast disks
//   - Zstd: the wire codec; pooled pure-Go encoder/decoder by default, with
//     a cgo implementation selectable via the rman_gozstd build tag
//   - S2: high-throughput cache entries
//   - LZ4: fast-decode cache entries
//
// Codecs are stateless values; all are safe for concurrent use.
package compress
