// Package section defines the manifest container's fixed-size envelope: the
// 28-byte little-endian header that fronts the compressed table body, plus
// the format-wide size constants.
package section

import (
	"fmt"
	"io"

	"github.com/questline/rman/endian"
	"github.com/questline/rman/errs"
)

// Header is the fixed-size header at the start of a manifest.
type Header struct {
	Magic   [4]byte // byte offset 0-3
	Version [2]byte // byte offset 4-5
	Flags   uint16  // byte offset 6-7
	// BodyOffset is the absolute byte offset of the compressed body; bytes
	// between the header and the body are opaque and skipped.
	BodyOffset     uint32 // byte offset 8-11
	SizeCompressed uint32 // byte offset 12-15
	// Checksum doubles as the manifest id.
	Checksum         uint64 // byte offset 16-23
	SizeUncompressed uint32 // byte offset 24-27
}

// Parse parses the header from a byte slice.
//
// Parameters:
//   - data: Byte slice containing the header (must be exactly 28 bytes)
//
// Returns:
//   - error: errs.ErrInvalidHeaderSize if data is not 28 bytes
func (h *Header) Parse(data []byte) error {
	if len(data) != HeaderSize {
		return errs.ErrInvalidHeaderSize
	}

	engine := endian.GetLittleEndianEngine()

	copy(h.Magic[:], data[0:4])
	copy(h.Version[:], data[4:6])
	h.Flags = engine.Uint16(data[6:8])
	h.BodyOffset = engine.Uint32(data[8:12])
	h.SizeCompressed = engine.Uint32(data[12:16])
	h.Checksum = engine.Uint64(data[16:24])
	h.SizeUncompressed = engine.Uint32(data[24:28])

	return nil
}

// Validate checks the header's structural invariants: the body cannot start
// inside the header itself.
func (h *Header) Validate() error {
	if h.BodyOffset < HeaderSize {
		return fmt.Errorf("%w: %d", errs.ErrBodyOffset, h.BodyOffset)
	}

	return nil
}

// Bytes serializes the Header into a byte slice.
func (h *Header) Bytes() []byte {
	b := make([]byte, HeaderSize)

	engine := endian.GetLittleEndianEngine()

	copy(b[0:4], h.Magic[:])
	copy(b[4:6], h.Version[:])
	engine.PutUint16(b[6:8], h.Flags)
	engine.PutUint32(b[8:12], h.BodyOffset)
	engine.PutUint32(b[12:16], h.SizeCompressed)
	engine.PutUint64(b[16:24], h.Checksum)
	engine.PutUint32(b[24:28], h.SizeUncompressed)

	return b
}

// ReadHeader reads and validates a header from r.
func ReadHeader(r io.Reader) (Header, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, fmt.Errorf("failed to read header: %w", err)
	}

	var h Header
	if err := h.Parse(buf[:]); err != nil {
		return Header{}, err
	}
	if err := h.Validate(); err != nil {
		return Header{}, err
	}

	return h, nil
}
