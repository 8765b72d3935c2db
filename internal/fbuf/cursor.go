// Package fbuf decodes the manifest body's table container: a FlatBuffer-style
// pointer graph of vtable-prefixed records, length-prefixed strings and
// fixed-stride vectors, all addressed by signed relative offsets.
//
// Every access goes through a bounds-checked Cursor so that no decode path
// can read outside the body buffer, whatever the input bytes claim. Cursors
// are immutable values; navigation returns a new cursor or an error, never
// mutates in place.
package fbuf

import (
	"fmt"
	"math"

	"github.com/questline/rman/endian"
	"github.com/questline/rman/errs"
)

var engine = endian.GetLittleEndianEngine()

// Cursor is a position inside an immutable byte buffer with the invariant
// pos <= len(data). Typed reads decode little-endian at the current position
// without advancing; Skip and Rel produce advanced cursors.
type Cursor struct {
	data []byte
	pos  int
}

// New creates a cursor over data at the given position.
func New(data []byte, pos int) (Cursor, error) {
	if pos < 0 || pos > len(data) {
		return Cursor{}, fmt.Errorf("%w: position %d in %d bytes", errs.ErrOutOfRange, pos, len(data))
	}

	return Cursor{data: data, pos: pos}, nil
}

// Pos returns the cursor's byte position.
func (c Cursor) Pos() int {
	return c.pos
}

// Remaining returns the number of bytes between the cursor and the end of
// the buffer.
func (c Cursor) Remaining() int {
	return len(c.data) - c.pos
}

// Skip returns a cursor advanced by n bytes.
func (c Cursor) Skip(n int) (Cursor, error) {
	if n < 0 || n > c.Remaining() {
		return Cursor{}, fmt.Errorf("%w: skip %d with %d remaining", errs.ErrOutOfRange, n, c.Remaining())
	}

	return Cursor{data: c.data, pos: c.pos + n}, nil
}

// Rel returns a cursor moved by the signed delta. A zero delta is the
// encoding of a null reference: Rel reports ok=false and no error so callers
// can substitute defaults for absent fields.
func (c Cursor) Rel(delta int64) (Cursor, bool, error) {
	switch {
	case delta == 0:
		return Cursor{}, false, nil
	case delta < 0:
		if -delta > int64(c.pos) {
			return Cursor{}, false, fmt.Errorf("%w: relative %d underflows position %d", errs.ErrOutOfRange, delta, c.pos)
		}

		return Cursor{data: c.data, pos: c.pos - int(-delta)}, true, nil
	default:
		if delta > int64(c.Remaining()) {
			return Cursor{}, false, fmt.Errorf("%w: relative %d overflows %d remaining", errs.ErrOutOfRange, delta, c.Remaining())
		}

		return Cursor{data: c.data, pos: c.pos + int(delta)}, true, nil
	}
}

func (c Cursor) need(n int) error {
	if c.Remaining() < n {
		return fmt.Errorf("%w: need %d bytes at position %d of %d", errs.ErrOutOfRange, n, c.pos, len(c.data))
	}

	return nil
}

// bytes returns n raw bytes at the cursor. The slice aliases the buffer and
// must be copied before it outlives the decode.
func (c Cursor) bytes(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}

	return c.data[c.pos : c.pos+n], nil
}

// Bool reads a single byte; any non-zero value is true.
func (c Cursor) Bool() (bool, error) {
	v, err := c.Uint8()

	return v != 0, err
}

func (c Cursor) Uint8() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}

	return c.data[c.pos], nil
}

func (c Cursor) Int8() (int8, error) {
	v, err := c.Uint8()

	return int8(v), err
}

func (c Cursor) Uint16() (uint16, error) {
	b, err := c.bytes(2)
	if err != nil {
		return 0, err
	}

	return engine.Uint16(b), nil
}

func (c Cursor) Int16() (int16, error) {
	v, err := c.Uint16()

	return int16(v), err
}

func (c Cursor) Uint32() (uint32, error) {
	b, err := c.bytes(4)
	if err != nil {
		return 0, err
	}

	return engine.Uint32(b), nil
}

func (c Cursor) Int32() (int32, error) {
	v, err := c.Uint32()

	return int32(v), err
}

func (c Cursor) Uint64() (uint64, error) {
	b, err := c.bytes(8)
	if err != nil {
		return 0, err
	}

	return engine.Uint64(b), nil
}

func (c Cursor) Int64() (int64, error) {
	v, err := c.Uint64()

	return int64(v), err
}

func (c Cursor) Float32() (float32, error) {
	v, err := c.Uint32()

	return math.Float32frombits(v), err
}

func (c Cursor) Float64() (float64, error) {
	v, err := c.Uint64()

	return math.Float64frombits(v), err
}

// Indirect resolves the 32-bit signed relative pointer at the cursor.
// A zero pointer reports ok=false.
func (c Cursor) Indirect() (Cursor, bool, error) {
	rel, err := c.Int32()
	if err != nil {
		return Cursor{}, false, err
	}

	return c.Rel(int64(rel))
}
