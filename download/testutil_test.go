package download_test

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/questline/rman/compress"
	"github.com/questline/rman/format"
	"github.com/questline/rman/internal/digest"
	"github.com/questline/rman/internal/fbtest"
	"github.com/questline/rman/manifest"
)

// release is a complete synthetic release: a decoded catalog plus the bundle
// bytes a CDN would serve for it. Chunk ids are real SHA-256 digests and
// compressed sizes are the real Zstd frame lengths, so plans built from the
// catalog line up byte-for-byte with the served bundles.
type release struct {
	man     *manifest.Manifest
	bundles map[string][]byte // bundle object name -> full bundle bytes
	plain   map[uint64][]byte // chunk id -> plaintext
}

type releaseChunk struct {
	bundleID uint64
	data     []byte
}

// buildRelease assembles bundles from the given chunks and a catalog body
// from the given files. File chunk lists reference chunks by index into
// chunks.
func buildRelease(t *testing.T, chunks []releaseChunk, files []fbtest.File, fileChunks [][]int) *release {
	t.Helper()

	codec, err := compress.GetCodec(format.CompressionZstd)
	require.NoError(t, err)

	rel := &release{
		bundles: make(map[string][]byte),
		plain:   make(map[uint64][]byte),
	}

	ids := make([]uint64, len(chunks))
	byBundle := make(map[uint64][]fbtest.Chunk)
	bundleOrder := []uint64{}
	for i, chunk := range chunks {
		id := digest.Sum(format.HashSHA256, chunk.data)
		ids[i] = id
		rel.plain[id] = chunk.data

		packed, err := codec.Compress(chunk.data)
		require.NoError(t, err)

		if _, ok := byBundle[chunk.bundleID]; !ok {
			bundleOrder = append(bundleOrder, chunk.bundleID)
		}
		byBundle[chunk.bundleID] = append(byBundle[chunk.bundleID], fbtest.Chunk{
			ID:               id,
			SizeCompressed:   uint32(len(packed)),
			SizeUncompressed: uint32(len(chunk.data)),
		})

		name := fmt.Sprintf("%016X.bundle", chunk.bundleID)
		rel.bundles[name] = append(rel.bundles[name], packed...)
	}

	body := &fbtest.Body{
		Dirs:   []fbtest.Dir{{ID: 1, ParentID: 0, Name: ""}},
		Params: []fbtest.Params{{HashType: uint8(format.HashSHA256), MaxUncompressed: 1024 * 1024}},
	}
	for _, id := range bundleOrder {
		body.Bundles = append(body.Bundles, fbtest.Bundle{ID: id, Chunks: byBundle[id]})
	}
	for i, file := range files {
		var size uint32
		for _, ci := range fileChunks[i] {
			file.ChunkIDs = append(file.ChunkIDs, ids[ci])
			size += uint32(len(chunks[ci].data))
		}
		file.Size = size
		if file.ParentID == 0 {
			file.ParentID = 1
		}
		body.Files = append(body.Files, file)
	}

	raw := fbtest.BuildManifest(body, 0x1D, 0)
	man, err := manifest.Read(bytes.NewReader(raw))
	require.NoError(t, err)
	rel.man = man

	return rel
}

// cdn serves the release's bundles with Range support and counts requests.
type cdn struct {
	server   *httptest.Server
	requests atomic.Int64
	failures atomic.Int64 // serve this many 500s before succeeding
}

func newCDN(t *testing.T, rel *release) *cdn {
	t.Helper()

	c := &cdn{}
	c.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.requests.Add(1)

		if c.failures.Load() > 0 {
			c.failures.Add(-1)
			http.Error(w, "transient", http.StatusInternalServerError)
			return
		}

		data, ok := rel.bundles[r.URL.Path[1:]]
		if !ok {
			http.NotFound(w, r)
			return
		}

		var start, end int
		if _, err := fmt.Sscanf(r.Header.Get("Range"), "bytes=%d-%d", &start, &end); err != nil {
			http.Error(w, "bad range", http.StatusBadRequest)
			return
		}
		if start < 0 || end+1 > len(data) || start > end {
			http.Error(w, "range out of bounds", http.StatusRequestedRangeNotSatisfiable)
			return
		}

		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(data[start : end+1])
	}))
	t.Cleanup(c.server.Close)

	return c
}

func fileByName(t *testing.T, m *manifest.Manifest, name string) *manifest.File {
	t.Helper()

	for i := range m.Files {
		if m.Files[i].Name == name {
			return &m.Files[i]
		}
	}
	require.Failf(t, "file not found", "no file named %q", name)

	return nil
}

// simpleRelease is the standard two-bundle, three-file scenario: five
// chunks, one of them referenced twice by one file.
func simpleRelease(t *testing.T) *release {
	t.Helper()

	chunks := []releaseChunk{
		{bundleID: 0xB1, data: bytes.Repeat([]byte("alpha "), 40)},
		{bundleID: 0xB1, data: bytes.Repeat([]byte("beta "), 30)},
		{bundleID: 0xB1, data: []byte("gamma tail")},
		{bundleID: 0xB2, data: bytes.Repeat([]byte{0x42}, 256)},
		{bundleID: 0xB2, data: []byte("shared twice")},
	}
	files := []fbtest.File{
		{ID: 1, Name: "one.bin"},
		{ID: 2, Name: "two.bin"},
		{ID: 3, Name: "three.bin"},
	}
	fileChunks := [][]int{
		{0, 1},
		{2, 3},
		{4, 4}, // same chunk at two positions
	}

	return buildRelease(t, chunks, files, fileChunks)
}
