package fbuf

import (
	"fmt"

	"github.com/questline/rman/errs"
)

// RefSize is the wire size of a relative reference: table pointers, string
// references and vector references are all 32-bit signed offsets.
const RefSize = 4

// Table is a decoded vtable-prefixed record. The record's first four bytes
// hold a signed delta pointing backward to its vtable; the vtable holds a
// 16-bit total size followed by per-field record-relative offsets, where an
// offset of zero marks the field absent.
type Table struct {
	rec    Cursor
	fields []uint16
}

// DecodeTable resolves the table reference at c and reads its vtable.
// A null reference is an error; optional tables do not occur in the format.
func DecodeTable(c Cursor) (Table, error) {
	rec, ok, err := c.Indirect()
	if err != nil {
		return Table{}, fmt.Errorf("table pointer: %w", err)
	}
	if !ok {
		return Table{}, errs.ErrTableNull
	}

	vrel, err := rec.Int32()
	if err != nil {
		return Table{}, fmt.Errorf("vtable delta: %w", err)
	}

	vt, ok, err := rec.Rel(-int64(vrel))
	if err != nil {
		return Table{}, fmt.Errorf("vtable position: %w", err)
	}
	if !ok {
		return Table{}, fmt.Errorf("%w: vtable delta is zero", errs.ErrTableNull)
	}

	size, err := vt.Uint16()
	if err != nil {
		return Table{}, fmt.Errorf("vtable size: %w", err)
	}
	if size < 4 {
		return Table{}, fmt.Errorf("%w: %d bytes", errs.ErrVTableTooSmall, size)
	}

	// Skip the size and object-size words; the rest is field offsets.
	fc, err := vt.Skip(4)
	if err != nil {
		return Table{}, fmt.Errorf("vtable fields: %w", err)
	}

	n := int(size-4) / 2
	fields := make([]uint16, 0, n)
	for range n {
		f, err := fc.Uint16()
		if err != nil {
			return Table{}, fmt.Errorf("vtable field: %w", err)
		}
		fields = append(fields, f)

		if fc, err = fc.Skip(2); err != nil {
			return Table{}, fmt.Errorf("vtable field: %w", err)
		}
	}

	return Table{rec: rec, fields: fields}, nil
}

// Field returns a cursor at field i's data. Fields past the vtable or with a
// zero offset report ok=false; the caller substitutes the type default.
func (t Table) Field(i int) (Cursor, bool, error) {
	if i >= len(t.fields) {
		return Cursor{}, false, nil
	}

	off := t.fields[i]
	if off == 0 {
		return Cursor{}, false, nil
	}

	c, err := t.rec.Skip(int(off))
	if err != nil {
		return Cursor{}, false, fmt.Errorf("field %d: %w", i, err)
	}

	return c, true, nil
}

// Scalar accessors return the type's zero value for absent fields.

func (t Table) Bool(i int) (bool, error) {
	c, ok, err := t.Field(i)
	if err != nil || !ok {
		return false, err
	}

	return c.Bool()
}

func (t Table) Uint8(i int) (uint8, error) {
	c, ok, err := t.Field(i)
	if err != nil || !ok {
		return 0, err
	}

	return c.Uint8()
}

func (t Table) Uint16(i int) (uint16, error) {
	c, ok, err := t.Field(i)
	if err != nil || !ok {
		return 0, err
	}

	return c.Uint16()
}

func (t Table) Uint32(i int) (uint32, error) {
	c, ok, err := t.Field(i)
	if err != nil || !ok {
		return 0, err
	}

	return c.Uint32()
}

func (t Table) Uint64(i int) (uint64, error) {
	c, ok, err := t.Field(i)
	if err != nil || !ok {
		return 0, err
	}

	return c.Uint64()
}

// String decodes a string field; absent fields and null references both
// yield the empty string.
func (t Table) String(i int) (string, error) {
	c, ok, err := t.Field(i)
	if err != nil || !ok {
		return "", err
	}

	return DecodeString(c)
}
