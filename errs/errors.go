// Package errs defines the sentinel errors shared by all rman packages.
//
// Decoding failures are split into structural errors (the container bytes
// themselves are malformed), semantic errors (the tables decode but
// cross-reference badly), and I/O errors (network, decompression or
// filesystem failures during download). Callers can classify a failure with
// errors.Is against the sentinels below. Structural and semantic failures
// wrap one of them with additional context; network, decompression and
// filesystem failures mostly wrap the underlying standard-library or codec
// error instead, and option validation errors wrap nothing.
package errs

import "errors"

// Structural errors: the manifest container bytes are malformed.
var (
	// ErrOutOfRange indicates a cursor position, read or advance outside the
	// decoded body buffer, past its end or before its start.
	ErrOutOfRange = errors.New("offset out of range")

	// ErrVTableTooSmall indicates a table whose vtable declares fewer than
	// the 4 mandatory header bytes.
	ErrVTableTooSmall = errors.New("vtable too small")

	// ErrTableNull indicates a required table encoded as a null reference.
	ErrTableNull = errors.New("required table is null")

	// ErrInvalidUTF8 indicates a string field that is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("string is not valid UTF-8")

	// ErrInvalidHashType indicates a parameter block hash-type byte outside 0..3.
	ErrInvalidHashType = errors.New("invalid hash type")

	// ErrIllegalName indicates a file, directory or language name containing
	// characters outside the manifest filename charset, or a bare "." / "..".
	ErrIllegalName = errors.New("illegal character in name")

	// ErrZeroBundleID, ErrZeroChunkID and ErrZeroFileID flag entries whose
	// 64-bit identifier is the reserved zero value.
	ErrZeroBundleID = errors.New("bundle id cannot be 0")
	ErrZeroChunkID  = errors.New("chunk id cannot be 0")
	ErrZeroFileID   = errors.New("file id cannot be 0")

	// ErrChunkLimitExceeded indicates a parameter block allowing uncompressed
	// chunks larger than the 32 MiB hard limit.
	ErrChunkLimitExceeded = errors.New("chunk params exceed uncompressed limit")

	// ErrOffsetOverflow indicates a running compressed or uncompressed offset
	// that no longer fits in 32 bits.
	ErrOffsetOverflow = errors.New("offset would go out of 4GB boundary")

	// ErrBodyOffset indicates a header whose body offset points inside the
	// header itself.
	ErrBodyOffset = errors.New("body offset at bad position")

	// ErrInvalidHeaderSize indicates a header byte slice that is not exactly
	// the fixed header size. A manifest stream that ends inside the header
	// fails in section.ReadHeader with the underlying read error instead.
	ErrInvalidHeaderSize = errors.New("invalid header size")
)

// Semantic errors: tables decode but do not cross-reference.
var (
	// ErrDirCycle indicates a directory parent walk that revisited its
	// starting directory.
	ErrDirCycle = errors.New("directory cycle detected")

	// ErrDirNotFound indicates a parent directory id with no directory entry.
	ErrDirNotFound = errors.New("directory id not found")

	// ErrLangNotFound indicates a language flag bit with no language entry.
	ErrLangNotFound = errors.New("language id not found")

	// ErrChunkNotFound indicates a file chunk id missing from every bundle.
	ErrChunkNotFound = errors.New("chunk id not found in any bundle")

	// ErrParamsNotFound indicates a file parameter index past the parameter table.
	ErrParamsNotFound = errors.New("parameter block index not found")

	// ErrChunkTooLarge indicates a chunk larger than its file's parameter
	// block allows.
	ErrChunkTooLarge = errors.New("chunk larger than params allow")

	// ErrChunkOutsideFile indicates a chunk whose uncompressed span ends past
	// its file's declared size.
	ErrChunkOutsideFile = errors.New("chunk would go outside the file")
)

// I/O errors raised while executing a download plan.
var (
	// ErrShortBundleData indicates a ranged bundle response with fewer bytes
	// than a chunk's compressed size.
	ErrShortBundleData = errors.New("chunk compressed data too small")

	// ErrRangeStatus indicates a bundle range request answered with a
	// non-success HTTP status, or a manifest fetch answered with anything but
	// 200 OK.
	ErrRangeStatus = errors.New("unexpected http status")
)
