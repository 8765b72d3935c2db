package download

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/questline/rman/compress"
	"github.com/questline/rman/format"
	"github.com/questline/rman/internal/hash"
)

// BundleCache is an on-disk cache of fetched bundle ranges. Entries are
// keyed by bundle name and byte range and stored through a configurable
// codec; a hit saves a CDN round trip when several files (or retries of the
// same file) want overlapping ranges.
//
// The cache is strictly best-effort: unreadable, corrupt or wrong-length
// entries are treated as misses and the network wins. Store failures are
// dropped silently — a cache that cannot write only costs refetches.
//
// Ranges arrive Zstd-compressed from the CDN, so S2 or None are the codecs
// that pay off here; LZ4 block compression emits nothing for incompressible
// input and such entries always miss.
type BundleCache struct {
	dir   string
	codec compress.Codec
}

// NewBundleCache creates a cache rooted at dir using the given codec for
// entries on disk.
func NewBundleCache(dir string, compression format.CompressionType) (*BundleCache, error) {
	codec, err := compress.CreateCodec(compression, "bundle cache")
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	return &BundleCache{dir: dir, codec: codec}, nil
}

func (c *BundleCache) entryPath(name string, start, end uint32) string {
	key := fmt.Sprintf("%s:%d-%d", name, start, end)

	return filepath.Join(c.dir, fmt.Sprintf("%016x.range", hash.ID(key)))
}

// Load returns the cached bytes for the range, or ok=false on any miss.
func (c *BundleCache) Load(name string, start, end uint32) ([]byte, bool) {
	raw, err := os.ReadFile(c.entryPath(name, start, end))
	if err != nil {
		return nil, false
	}

	data, err := c.codec.Decompress(raw)
	if err != nil || len(data) != int(end-start) {
		return nil, false
	}

	return data, true
}

// Store writes the range bytes into the cache.
func (c *BundleCache) Store(name string, start, end uint32, data []byte) {
	packed, err := c.codec.Compress(data)
	if err != nil {
		return
	}

	path := c.entryPath(name, start, end)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, packed, 0o644); err != nil {
		os.Remove(tmp)

		return
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
	}
}
