package manifest

import (
	"fmt"
	"io"
	"unicode"

	"github.com/questline/rman/compress"
	"github.com/questline/rman/errs"
	"github.com/questline/rman/format"
	"github.com/questline/rman/internal/fbuf"
	"github.com/questline/rman/section"
)

// Raw body tables. Field indices are fixed by the container layout; the
// Unk* fields are opaque and decoded only for forward compatibility.

type rawChunk struct {
	ID               uint64
	SizeCompressed   uint32
	SizeUncompressed uint32
}

type rawBundle struct {
	ID     uint64
	Chunks []rawChunk
}

type rawLang struct {
	ID   uint8
	Name string
}

type rawDir struct {
	ID       uint64
	ParentID uint64
	Name     string
}

type rawFile struct {
	ID          uint64
	ParentID    uint64
	Size        uint32
	Name        string
	LangFlags   uint64
	Unk5        uint8
	Unk6        uint8
	ChunkIDs    []uint64
	Unk8        uint8
	Link        string
	Unk10       uint8
	ParamsIndex uint8
	Permissions uint8
}

type rawKey struct{}

type rawParams struct {
	Unk0            uint16
	HashType        uint8
	Unk2            uint8
	Unk3            uint32
	MaxUncompressed uint32
}

type rawBody struct {
	Bundles []rawBundle
	Langs   []rawLang
	Files   []rawFile
	Dirs    []rawDir
	Keys    []rawKey
	Params  []rawParams
}

func decodeChunk(c fbuf.Cursor) (rawChunk, error) {
	t, err := fbuf.DecodeTable(c)
	if err != nil {
		return rawChunk{}, err
	}

	var out rawChunk
	if out.ID, err = t.Uint64(0); err != nil {
		return rawChunk{}, err
	}
	if out.SizeCompressed, err = t.Uint32(1); err != nil {
		return rawChunk{}, err
	}
	if out.SizeUncompressed, err = t.Uint32(2); err != nil {
		return rawChunk{}, err
	}

	return out, nil
}

func decodeBundle(c fbuf.Cursor) (rawBundle, error) {
	t, err := fbuf.DecodeTable(c)
	if err != nil {
		return rawBundle{}, err
	}

	var out rawBundle
	if out.ID, err = t.Uint64(0); err != nil {
		return rawBundle{}, err
	}
	if out.Chunks, err = fbuf.VectorField(t, 1, fbuf.RefSize, decodeChunk); err != nil {
		return rawBundle{}, err
	}

	return out, nil
}

func decodeLang(c fbuf.Cursor) (rawLang, error) {
	t, err := fbuf.DecodeTable(c)
	if err != nil {
		return rawLang{}, err
	}

	var out rawLang
	if out.ID, err = t.Uint8(0); err != nil {
		return rawLang{}, err
	}
	if out.Name, err = t.String(1); err != nil {
		return rawLang{}, err
	}

	return out, nil
}

func decodeDir(c fbuf.Cursor) (rawDir, error) {
	t, err := fbuf.DecodeTable(c)
	if err != nil {
		return rawDir{}, err
	}

	var out rawDir
	if out.ID, err = t.Uint64(0); err != nil {
		return rawDir{}, err
	}
	if out.ParentID, err = t.Uint64(1); err != nil {
		return rawDir{}, err
	}
	if out.Name, err = t.String(2); err != nil {
		return rawDir{}, err
	}

	return out, nil
}

func decodeFile(c fbuf.Cursor) (rawFile, error) {
	t, err := fbuf.DecodeTable(c)
	if err != nil {
		return rawFile{}, err
	}

	var out rawFile
	if out.ID, err = t.Uint64(0); err != nil {
		return rawFile{}, err
	}
	if out.ParentID, err = t.Uint64(1); err != nil {
		return rawFile{}, err
	}
	if out.Size, err = t.Uint32(2); err != nil {
		return rawFile{}, err
	}
	if out.Name, err = t.String(3); err != nil {
		return rawFile{}, err
	}
	if out.LangFlags, err = t.Uint64(4); err != nil {
		return rawFile{}, err
	}
	if out.Unk5, err = t.Uint8(5); err != nil {
		return rawFile{}, err
	}
	if out.Unk6, err = t.Uint8(6); err != nil {
		return rawFile{}, err
	}
	if out.ChunkIDs, err = fbuf.VectorField(t, 7, 8, fbuf.Cursor.Uint64); err != nil {
		return rawFile{}, err
	}
	if out.Unk8, err = t.Uint8(8); err != nil {
		return rawFile{}, err
	}
	if out.Link, err = t.String(9); err != nil {
		return rawFile{}, err
	}
	if out.Unk10, err = t.Uint8(10); err != nil {
		return rawFile{}, err
	}
	if out.ParamsIndex, err = t.Uint8(11); err != nil {
		return rawFile{}, err
	}
	if out.Permissions, err = t.Uint8(12); err != nil {
		return rawFile{}, err
	}

	return out, nil
}

func decodeKey(c fbuf.Cursor) (rawKey, error) {
	if _, err := fbuf.DecodeTable(c); err != nil {
		return rawKey{}, err
	}

	return rawKey{}, nil
}

func decodeParams(c fbuf.Cursor) (rawParams, error) {
	t, err := fbuf.DecodeTable(c)
	if err != nil {
		return rawParams{}, err
	}

	var out rawParams
	if out.Unk0, err = t.Uint16(0); err != nil {
		return rawParams{}, err
	}
	if out.HashType, err = t.Uint8(1); err != nil {
		return rawParams{}, err
	}
	if out.Unk2, err = t.Uint8(2); err != nil {
		return rawParams{}, err
	}
	if out.Unk3, err = t.Uint32(3); err != nil {
		return rawParams{}, err
	}
	if out.MaxUncompressed, err = t.Uint32(4); err != nil {
		return rawParams{}, err
	}

	return out, nil
}

func decodeBody(data []byte) (rawBody, error) {
	c, err := fbuf.New(data, 0)
	if err != nil {
		return rawBody{}, err
	}

	t, err := fbuf.DecodeTable(c)
	if err != nil {
		return rawBody{}, fmt.Errorf("body table: %w", err)
	}

	var out rawBody
	if out.Bundles, err = fbuf.VectorField(t, 0, fbuf.RefSize, decodeBundle); err != nil {
		return rawBody{}, fmt.Errorf("bundles: %w", err)
	}
	if out.Langs, err = fbuf.VectorField(t, 1, fbuf.RefSize, decodeLang); err != nil {
		return rawBody{}, fmt.Errorf("langs: %w", err)
	}
	if out.Files, err = fbuf.VectorField(t, 2, fbuf.RefSize, decodeFile); err != nil {
		return rawBody{}, fmt.Errorf("files: %w", err)
	}
	if out.Dirs, err = fbuf.VectorField(t, 3, fbuf.RefSize, decodeDir); err != nil {
		return rawBody{}, fmt.Errorf("dirs: %w", err)
	}
	if out.Keys, err = fbuf.VectorField(t, 4, fbuf.RefSize, decodeKey); err != nil {
		return rawBody{}, fmt.Errorf("keys: %w", err)
	}
	if out.Params, err = fbuf.VectorField(t, 5, fbuf.RefSize, decodeParams); err != nil {
		return rawBody{}, fmt.Errorf("params: %w", err)
	}

	return out, nil
}

// rawManifest is the validated but not yet cross-referenced decode result.
// It is internal to the package; Read turns it into the consumer Manifest.
type rawManifest struct {
	id     uint64
	files  []rawFile
	chunks map[uint64]Chunk
	langs  map[uint8]rawLang
	dirs   map[uint64]rawDir
	params []rawParams
}

// verifyFilename enforces the manifest name charset: letters, digits, and
// ". + - _" plus space, with "." and ".." forbidden as whole names.
func verifyFilename(name string) error {
	if name == "." || name == ".." {
		return fmt.Errorf("%w: %q", errs.ErrIllegalName, name)
	}
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			continue
		}
		switch r {
		case '.', ' ', '+', '-', '_':
			continue
		}

		return fmt.Errorf("%w: %q", errs.ErrIllegalName, name)
	}

	return nil
}

// readRaw decodes the container: header, gap, Zstd body, the six top-level
// tables, and the structural invariants that do not need cross-referencing.
func readRaw(r io.Reader) (*rawManifest, error) {
	header, err := section.ReadHeader(r)
	if err != nil {
		return nil, err
	}

	if gap := int64(header.BodyOffset) - section.HeaderSize; gap > 0 {
		if _, err := io.CopyN(io.Discard, r, gap); err != nil {
			return nil, fmt.Errorf("failed to skip to body: %w", err)
		}
	}

	compressed := make([]byte, header.SizeCompressed)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, fmt.Errorf("failed to read compressed body: %w", err)
	}

	codec, err := compress.GetCodec(format.CompressionZstd)
	if err != nil {
		return nil, err
	}
	data, err := codec.Decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress body: %w", err)
	}

	body, err := decodeBody(data)
	if err != nil {
		return nil, err
	}

	chunks := make(map[uint64]Chunk)
	for _, bundle := range body.Bundles {
		if bundle.ID == 0 {
			return nil, errs.ErrZeroBundleID
		}

		var offsetCompressed uint64
		for _, chunk := range bundle.Chunks {
			if chunk.ID == 0 {
				return nil, fmt.Errorf("%w: bundle %016X", errs.ErrZeroChunkID, bundle.ID)
			}

			chunks[chunk.ID] = Chunk{
				ID:               chunk.ID,
				BundleID:         bundle.ID,
				SizeCompressed:   chunk.SizeCompressed,
				SizeUncompressed: chunk.SizeUncompressed,
				OffsetCompressed: uint32(offsetCompressed),
			}

			offsetCompressed += uint64(chunk.SizeCompressed)
			if offsetCompressed > section.MaxOffset {
				return nil, fmt.Errorf("compressed %w: bundle %016X", errs.ErrOffsetOverflow, bundle.ID)
			}
		}
	}

	langs := make(map[uint8]rawLang, len(body.Langs))
	for _, lang := range body.Langs {
		if err := verifyFilename(lang.Name); err != nil {
			return nil, fmt.Errorf("lang %d: %w", lang.ID, err)
		}
		langs[lang.ID] = lang
	}

	dirs := make(map[uint64]rawDir, len(body.Dirs))
	for _, dir := range body.Dirs {
		if err := verifyFilename(dir.Name); err != nil {
			return nil, fmt.Errorf("dir %d: %w", dir.ID, err)
		}
		dirs[dir.ID] = dir
	}

	for _, param := range body.Params {
		if param.MaxUncompressed > section.ChunkLimit {
			return nil, fmt.Errorf("%w: %d bytes", errs.ErrChunkLimitExceeded, param.MaxUncompressed)
		}
	}

	for _, file := range body.Files {
		if file.ID == 0 {
			return nil, fmt.Errorf("%w: %q", errs.ErrZeroFileID, file.Name)
		}
		if err := verifyFilename(file.Name); err != nil {
			return nil, fmt.Errorf("file %d: %w", file.ID, err)
		}
	}

	return &rawManifest{
		id:     header.Checksum,
		files:  body.Files,
		chunks: chunks,
		langs:  langs,
		dirs:   dirs,
		params: body.Params,
	}, nil
}
