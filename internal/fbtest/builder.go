// Package fbtest synthesizes manifest containers for tests. It writes the
// same vtable-prefixed table layout the decoder consumes — leaves first,
// parents after, with relative references patched as positions become known.
//
// It exists only to build fixtures; manifest authoring is out of scope for
// the module and nothing outside _test files should import it.
package fbtest

import (
	"github.com/questline/rman/compress"
	"github.com/questline/rman/endian"
	"github.com/questline/rman/format"
	"github.com/questline/rman/section"
)

var le = endian.GetLittleEndianEngine()

// Builder accumulates body bytes. Position 0 is reserved for the root table
// reference, patched by Finish.
type Builder struct {
	buf []byte
}

func NewBuilder() *Builder {
	return &Builder{buf: make([]byte, 4)}
}

func (b *Builder) pos() int {
	return len(b.buf)
}

func (b *Builder) putU16(v uint16) {
	b.buf = le.AppendUint16(b.buf, v)
}

func (b *Builder) putU32(v uint32) {
	b.buf = le.AppendUint32(b.buf, v)
}

// patchRef writes the signed relative offset site→target at site.
func (b *Builder) patchRef(site, target int) {
	le.PutUint32(b.buf[site:site+4], uint32(int32(target-site)))
}

// refSite emits a 4-byte placeholder reference and returns its position.
func (b *Builder) refSite() int {
	site := b.pos()
	b.putU32(0)

	return site
}

// String emits a length-prefixed string and returns its position.
func (b *Builder) String(s string) int {
	pos := b.pos()
	b.putU32(uint32(len(s)))
	b.buf = append(b.buf, s...)

	return pos
}

// U64Vector emits a vector of uint64 values and returns its position.
func (b *Builder) U64Vector(vals []uint64) int {
	pos := b.pos()
	b.putU32(uint32(len(vals)))
	for _, v := range vals {
		b.buf = le.AppendUint64(b.buf, v)
	}

	return pos
}

// RefVector emits a vector of references to already-emitted objects and
// returns its position.
func (b *Builder) RefVector(targets []int) int {
	pos := b.pos()
	b.putU32(uint32(len(targets)))
	for _, t := range targets {
		b.patchRef(b.refSite(), t)
	}

	return pos
}

// Field is one table field: absent, inline scalar bytes, or a reference to
// an already-emitted object.
type Field struct {
	bytes []byte
	ref   int
	isRef bool
	set   bool
}

func Absent() Field {
	return Field{}
}

func Scalar8(v uint8) Field {
	return Field{bytes: []byte{v}, set: true}
}

func Scalar16(v uint16) Field {
	return Field{bytes: le.AppendUint16(nil, v), set: true}
}

func Scalar32(v uint32) Field {
	return Field{bytes: le.AppendUint32(nil, v), set: true}
}

func Scalar64(v uint64) Field {
	return Field{bytes: le.AppendUint64(nil, v), set: true}
}

func Ref(pos int) Field {
	return Field{ref: pos, isRef: true, set: true}
}

// Table emits a vtable followed by its record and returns the record
// position. Field order matches the decoder's field indices; absent fields
// get a zero vtable offset.
func (b *Builder) Table(fields ...Field) int {
	vt := b.pos()
	b.putU16(uint16(4 + 2*len(fields)))
	b.putU16(0) // object size, unused by the decoder
	offSites := b.pos()
	for range fields {
		b.putU16(0)
	}

	rec := b.pos()
	b.putU32(uint32(int32(rec - vt))) // signed delta back to the vtable

	for i, f := range fields {
		if !f.set {
			continue
		}
		le.PutUint16(b.buf[offSites+2*i:], uint16(b.pos()-rec))
		if f.isRef {
			b.patchRef(b.refSite(), f.ref)
		} else {
			b.buf = append(b.buf, f.bytes...)
		}
	}

	return rec
}

// Finish patches the root reference and returns the body bytes.
func (b *Builder) Finish(root int) []byte {
	b.patchRef(0, root)

	return b.buf
}

// Fixture description of a whole manifest body.

type Chunk struct {
	ID               uint64
	SizeCompressed   uint32
	SizeUncompressed uint32
}

type Bundle struct {
	ID     uint64
	Chunks []Chunk
}

type Lang struct {
	ID   uint8
	Name string
}

type Dir struct {
	ID       uint64
	ParentID uint64
	Name     string
}

type Params struct {
	HashType        uint8
	MaxUncompressed uint32
}

type File struct {
	ID          uint64
	ParentID    uint64
	Size        uint32
	Name        string
	LangFlags   uint64
	Link        string
	ChunkIDs    []uint64
	ParamsIndex uint8
	Permissions uint8
}

type Body struct {
	Bundles []Bundle
	Langs   []Lang
	Files   []File
	Dirs    []Dir
	Params  []Params
}

// Encode lays the body out as container bytes.
func (body *Body) Encode() []byte {
	b := NewBuilder()

	bundleRefs := make([]int, 0, len(body.Bundles))
	for _, bundle := range body.Bundles {
		chunkRefs := make([]int, 0, len(bundle.Chunks))
		for _, chunk := range bundle.Chunks {
			chunkRefs = append(chunkRefs, b.Table(
				Scalar64(chunk.ID),
				Scalar32(chunk.SizeCompressed),
				Scalar32(chunk.SizeUncompressed),
			))
		}
		chunks := b.RefVector(chunkRefs)
		bundleRefs = append(bundleRefs, b.Table(
			Scalar64(bundle.ID),
			Ref(chunks),
		))
	}

	langRefs := make([]int, 0, len(body.Langs))
	for _, lang := range body.Langs {
		name := b.String(lang.Name)
		langRefs = append(langRefs, b.Table(
			Scalar8(lang.ID),
			Ref(name),
		))
	}

	fileRefs := make([]int, 0, len(body.Files))
	for _, file := range body.Files {
		name := b.String(file.Name)
		link := b.String(file.Link)
		chunkIDs := b.U64Vector(file.ChunkIDs)
		fileRefs = append(fileRefs, b.Table(
			Scalar64(file.ID),       // 0: id
			Scalar64(file.ParentID), // 1: parent dir
			Scalar32(file.Size),     // 2: size
			Ref(name),               // 3: name
			Scalar64(file.LangFlags), // 4: language bitflags
			Absent(),                 // 5
			Absent(),                 // 6
			Ref(chunkIDs),            // 7: ordered chunk ids
			Absent(),                 // 8
			Ref(link),                // 9: symlink target
			Absent(),                 // 10
			Scalar8(file.ParamsIndex), // 11: parameter block index
			Scalar8(file.Permissions), // 12
		))
	}

	dirRefs := make([]int, 0, len(body.Dirs))
	for _, dir := range body.Dirs {
		name := b.String(dir.Name)
		dirRefs = append(dirRefs, b.Table(
			Scalar64(dir.ID),
			Scalar64(dir.ParentID),
			Ref(name),
		))
	}

	paramRefs := make([]int, 0, len(body.Params))
	for _, p := range body.Params {
		paramRefs = append(paramRefs, b.Table(
			Absent(),                    // 0
			Scalar8(p.HashType),         // 1: hash type
			Absent(),                    // 2
			Absent(),                    // 3
			Scalar32(p.MaxUncompressed), // 4
		))
	}

	bundles := b.RefVector(bundleRefs)
	langs := b.RefVector(langRefs)
	files := b.RefVector(fileRefs)
	dirs := b.RefVector(dirRefs)
	keys := b.RefVector(nil)
	params := b.RefVector(paramRefs)

	root := b.Table(
		Ref(bundles),
		Ref(langs),
		Ref(files),
		Ref(dirs),
		Ref(keys),
		Ref(params),
	)

	return b.Finish(root)
}

// BuildManifest wraps the encoded body in a complete container: header, an
// optional opaque gap, and the Zstd-compressed body.
func BuildManifest(body *Body, id uint64, gap int) []byte {
	raw := body.Encode()

	codec, err := compress.GetCodec(format.CompressionZstd)
	if err != nil {
		panic(err)
	}
	compressed, err := codec.Compress(raw)
	if err != nil {
		panic(err)
	}

	header := section.Header{
		Magic:            section.Magic,
		Version:          [2]byte{7, 0},
		BodyOffset:       uint32(section.HeaderSize + gap),
		SizeCompressed:   uint32(len(compressed)),
		Checksum:         id,
		SizeUncompressed: uint32(len(raw)),
	}

	out := header.Bytes()
	out = append(out, make([]byte, gap)...)

	return append(out, compressed...)
}
