// Package manifest decodes release manifests into an immutable catalog of
// files, chunks, languages and download parameters.
//
// A manifest is a compressed, table-driven binary document published next to
// a release: it names every file, the content-addressed chunks composing it,
// and the bundles on the CDN holding those chunks. Read consumes the raw
// container and produces a self-contained Manifest with every
// cross-reference resolved and validated; decoding either succeeds in full
// or fails with an error, never exposing a partial catalog. Structural and
// semantic faults wrap a sentinel from the errs package; a short read or a
// body that does not decompress wraps the underlying io or codec error.
//
// A decoded Manifest holds only owned values and is safe to share across
// download workers without synchronization.
package manifest

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/questline/rman/errs"
	"github.com/questline/rman/format"
	"github.com/questline/rman/internal/digest"
	"github.com/questline/rman/internal/hash"
	"github.com/questline/rman/internal/pool"
	"github.com/questline/rman/section"
)

// Chunk is one content-addressed unit of compressed data. Its ID is the
// truncated digest of the uncompressed bytes; the offsets place it inside
// its bundle (compressed) and inside a particular file (uncompressed).
//
// The same chunk may appear at several positions of one or more files; the
// uncompressed offset is therefore per-use, assigned during file resolution.
type Chunk struct {
	ID                 uint64
	BundleID           uint64
	SizeCompressed     uint32
	SizeUncompressed   uint32
	OffsetCompressed   uint32
	OffsetUncompressed uint32
}

// File is one reconstructable file of the release.
type File struct {
	ID uint64
	// Name is the full slash-joined path below the install directory.
	Name string
	// LinkName is the symbolic link target; empty for regular files.
	LinkName string
	Size     uint32
	// MaxUncompressed is the parameter block's chunk size ceiling.
	MaxUncompressed uint32
	HashType        format.HashType
	// Langs is the resolved language set; files with no language flags carry
	// the single entry "none".
	Langs map[string]struct{}
	// Chunks tile the file in order of increasing uncompressed offset.
	Chunks []Chunk
}

// Manifest is the decoded catalog. Immutable after Read.
type Manifest struct {
	// ID is the header checksum, reused as the release identity.
	ID    uint64
	Files []File
}

// HasLang reports whether the file carries the given (lowercased) language.
func (f *File) HasLang(name string) bool {
	_, ok := f.Langs[name]

	return ok
}

// HashChunk computes the chunk identifier of data under the file's hash type.
func (f *File) HashChunk(data []byte) uint64 {
	return digest.Sum(f.HashType, data)
}

// VerifyReader reports whether every chunk span of r hashes to its chunk id.
func (f *File) VerifyReader(r io.ReadSeeker) bool {
	buf := pool.GetChunkBuffer()
	defer pool.PutChunkBuffer(buf)

	for i := range f.Chunks {
		chunk := &f.Chunks[i]
		if _, err := r.Seek(int64(chunk.OffsetUncompressed), io.SeekStart); err != nil {
			return false
		}

		b := buf.Resize(int(chunk.SizeUncompressed))
		if _, err := io.ReadFull(r, b); err != nil {
			return false
		}
		if f.HashChunk(b) != chunk.ID {
			return false
		}
	}

	return true
}

// Verify opens the file's on-disk copy below dir and checks every chunk.
// A missing or unreadable file verifies false.
func (f *File) Verify(dir string) bool {
	fp, err := os.Open(filepath.Join(dir, f.Name))
	if err != nil {
		return false
	}
	defer fp.Close()

	return f.VerifyReader(fp)
}

// fileName composes the file's full path by walking directory parents until
// the empty-named root. The walk fails on an unresolvable parent, or when it
// returns to the directory it started from.
func (m *rawManifest) fileName(name string, parentID uint64) (string, error) {
	orgParentID := parentID
	for {
		dir, ok := m.dirs[parentID]
		if !ok {
			return "", fmt.Errorf("%w: %d", errs.ErrDirNotFound, parentID)
		}
		if dir.Name == "" {
			break
		}

		name = dir.Name + "/" + name
		parentID = dir.ParentID
		if parentID == orgParentID {
			return "", fmt.Errorf("%w: dir %d", errs.ErrDirCycle, orgParentID)
		}
	}

	return name, nil
}

// langSet resolves the 32 low bits of langFlags: bit i set means language id
// i+1. Files with no bits set belong to the pseudo-language "none".
func (m *rawManifest) langSet(langFlags uint64) (map[string]struct{}, error) {
	langs := make(map[string]struct{})
	for i := range 32 {
		if langFlags&(1<<i) == 0 {
			continue
		}

		lang, ok := m.langs[uint8(i+1)]
		if !ok {
			return nil, fmt.Errorf("%w: %d", errs.ErrLangNotFound, i+1)
		}
		langs[strings.ToLower(lang.Name)] = struct{}{}
	}

	if len(langs) == 0 {
		langs["none"] = struct{}{}
	}

	return langs, nil
}

// chunkRun resolves an ordered chunk-id list, assigning each use its
// uncompressed offset as the running sum of the preceding sizes.
func (m *rawManifest) chunkRun(chunkIDs []uint64) ([]Chunk, error) {
	var offsetUncompressed uint64
	results := make([]Chunk, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		chunk, ok := m.chunks[id]
		if !ok {
			return nil, fmt.Errorf("%w: %016X", errs.ErrChunkNotFound, id)
		}

		chunk.OffsetUncompressed = uint32(offsetUncompressed)
		results = append(results, chunk)

		offsetUncompressed += uint64(chunk.SizeUncompressed)
		if offsetUncompressed > section.MaxOffset {
			return nil, fmt.Errorf("uncompressed %w", errs.ErrOffsetOverflow)
		}
	}

	return results, nil
}

func (m *rawManifest) paramsAt(index uint8) (rawParams, error) {
	if int(index) >= len(m.params) {
		return rawParams{}, fmt.Errorf("%w: %d", errs.ErrParamsNotFound, index)
	}

	return m.params[index], nil
}

// Read decodes a manifest from r and cross-references it into a catalog.
func Read(r io.Reader) (*Manifest, error) {
	raw, err := readRaw(r)
	if err != nil {
		return nil, err
	}

	files := make([]File, 0, len(raw.files))
	for i := range raw.files {
		rf := &raw.files[i]

		name, err := raw.fileName(rf.Name, rf.ParentID)
		if err != nil {
			return nil, fmt.Errorf("file %d: %w", rf.ID, err)
		}

		params, err := raw.paramsAt(rf.ParamsIndex)
		if err != nil {
			return nil, fmt.Errorf("file %q: %w", name, err)
		}
		hashType, err := format.HashTypeFromByte(params.HashType)
		if err != nil {
			return nil, fmt.Errorf("file %q: %w", name, err)
		}

		langs, err := raw.langSet(rf.LangFlags)
		if err != nil {
			return nil, fmt.Errorf("file %q: %w", name, err)
		}

		chunks, err := raw.chunkRun(rf.ChunkIDs)
		if err != nil {
			return nil, fmt.Errorf("file %q: %w", name, err)
		}
		for j := range chunks {
			chunk := &chunks[j]
			if chunk.SizeUncompressed > params.MaxUncompressed {
				return nil, fmt.Errorf("%w: chunk %016X in file %q", errs.ErrChunkTooLarge, chunk.ID, name)
			}
			if uint64(chunk.OffsetUncompressed)+uint64(chunk.SizeUncompressed) > uint64(rf.Size) {
				return nil, fmt.Errorf("%w: chunk %016X in file %q", errs.ErrChunkOutsideFile, chunk.ID, name)
			}
		}

		files = append(files, File{
			ID:              rf.ID,
			Name:            name,
			LinkName:        rf.Link,
			Size:            rf.Size,
			MaxUncompressed: params.MaxUncompressed,
			HashType:        hashType,
			Langs:           langs,
			Chunks:          chunks,
		})
	}

	return &Manifest{ID: raw.id, Files: files}, nil
}

// Open decodes a manifest from a local file.
func Open(path string) (*Manifest, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest file: %w", err)
	}
	defer fp.Close()

	return Read(fp)
}

// Fetch loads a manifest from url, which is either an HTTP/HTTPS URL (by
// literal prefix) or a local path. A nil client uses http.DefaultClient.
func Fetch(client *http.Client, url string) (*Manifest, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return Open(url)
	}

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to request manifest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s fetching manifest", errs.ErrRangeStatus, resp.Status)
	}

	return Read(resp.Body)
}

// CacheName maps a manifest URL to a stable cache filename for callers that
// persist fetched manifests.
func CacheName(url string) string {
	return fmt.Sprintf("%016x.manifest", hash.ID(url))
}
