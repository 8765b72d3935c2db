package fbuf

import (
	"fmt"
	"unicode/utf8"

	"github.com/questline/rman/errs"
)

// Decoder decodes a T at a cursor. Implementations exist for every kind the
// body container carries: scalars, strings, and the per-entity tables.
type Decoder[T any] func(Cursor) (T, error)

// DecodeString resolves the string reference at c and returns an owned copy
// of the UTF-8 payload. A null reference decodes to the empty string.
func DecodeString(c Cursor) (string, error) {
	tgt, ok, err := c.Indirect()
	if err != nil {
		return "", fmt.Errorf("string pointer: %w", err)
	}
	if !ok {
		return "", nil
	}

	size, err := tgt.Uint32()
	if err != nil {
		return "", fmt.Errorf("string length: %w", err)
	}

	body, err := tgt.Skip(RefSize)
	if err != nil {
		return "", fmt.Errorf("string data: %w", err)
	}

	if int64(size) > int64(body.Remaining()) {
		return "", fmt.Errorf("string data: %w", errs.ErrOutOfRange)
	}

	raw, err := body.bytes(int(size))
	if err != nil {
		return "", fmt.Errorf("string data: %w", err)
	}
	if !utf8.Valid(raw) {
		return "", errs.ErrInvalidUTF8
	}

	// string() copies; nothing aliases the body buffer after decode.
	return string(raw), nil
}

// DecodeVector resolves the vector reference at c and decodes its elements
// sequentially with stride elemSize. A null reference decodes to nil.
//
// The whole element span is bounds-checked against the buffer before any
// element decodes, so a hostile length cannot trigger oversized allocation.
func DecodeVector[T any](c Cursor, elemSize int, dec Decoder[T]) ([]T, error) {
	tgt, ok, err := c.Indirect()
	if err != nil {
		return nil, fmt.Errorf("vector pointer: %w", err)
	}
	if !ok {
		return nil, nil
	}

	size, err := tgt.Uint32()
	if err != nil {
		return nil, fmt.Errorf("vector length: %w", err)
	}

	elems, err := tgt.Skip(RefSize)
	if err != nil {
		return nil, fmt.Errorf("vector data: %w", err)
	}
	if int64(size)*int64(elemSize) > int64(elems.Remaining()) {
		return nil, fmt.Errorf("vector of %d elements: %w", size, errs.ErrOutOfRange)
	}

	results := make([]T, 0, size)
	for i := range int(size) {
		v, err := dec(elems)
		if err != nil {
			return nil, fmt.Errorf("vector element %d: %w", i, err)
		}
		results = append(results, v)

		if elems, err = elems.Skip(elemSize); err != nil {
			return nil, fmt.Errorf("vector element %d: %w", i, err)
		}
	}

	return results, nil
}

// VectorField decodes a vector-typed table field; absent fields decode to nil.
func VectorField[T any](t Table, i int, elemSize int, dec Decoder[T]) ([]T, error) {
	c, ok, err := t.Field(i)
	if err != nil || !ok {
		return nil, err
	}

	return DecodeVector(c, elemSize, dec)
}
