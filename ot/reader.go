package ot

import (
	"errors"
	"fmt"
)

// Reading bytes from a table's binary representation.

var errBufferBounds = errors.New("buffer bounds error: corrupt font binary?")

// Reader is a cursor over the binary data of one font table. All scalar
// reads are big-endian, as the wire format mandates.
//
// A Reader carries a small string-keyed store which is shared with every
// sub-reader forked off of it. Converters use the store to make helper
// objects visible to sibling and descendant converters during a single
// table's decode (propagated counts, value-record formats).
type Reader struct {
	data  []byte
	base  int // start of the current (sub-)table; offsets are relative to it
	pos   int
	store map[string]any
	// TableTag names the table type being decoded; converters dispatching
	// on (table type, lookup type) consult it.
	TableTag Tag
}

// NewReader creates a cursor positioned at the start of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data, store: make(map[string]any)}
}

// SubReader returns an independent cursor anchored at the current table's
// start plus offset, over the same backing buffer. OpenType offsets are
// measured from the start of the referring table, so this is the way to
// follow an offset field. The string-keyed store and the table tag are
// shared with the new cursor.
func (r *Reader) SubReader(offset int) *Reader {
	return &Reader{
		data:     r.data,
		base:     r.base + offset,
		pos:      r.base + offset,
		store:    r.store,
		TableTag: r.TableTag,
	}
}

// Copy returns an independent cursor at the same position, over the same
// backing buffer and sharing the same store. Lazy sequences retain such a
// snapshot for deferred element decoding.
func (r *Reader) Copy() *Reader {
	fork := *r
	return &fork
}

// Pos returns the current absolute position within the backing buffer.
func (r *Reader) Pos() int {
	return r.pos
}

// Seek moves the cursor to an absolute position. Seeking beyond the buffer
// is legal; the following read will fail.
func (r *Reader) Seek(pos int) {
	r.pos = pos
}

// Advance moves the cursor relative to the current position.
func (r *Reader) Advance(n int) {
	r.pos += n
}

// Local returns a value from the reader's string-keyed store.
func (r *Reader) Local(name string) (any, bool) {
	v, ok := r.store[name]
	return v, ok
}

// SetLocal stores a value in the reader's string-keyed store, making it
// visible to all sub-readers of this cursor.
func (r *Reader) SetLocal(name string, v any) {
	r.store[name] = v
}

// view returns n bytes at the current position and advances the cursor.
func (r *Reader) view(n int) ([]byte, error) {
	if r.pos < 0 || n <= 0 || r.pos+n > len(r.data) {
		return nil, fmt.Errorf("%w (need %d bytes at %d of %d)",
			errBufferBounds, n, r.pos, len(r.data))
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadData reads n raw bytes.
func (r *Reader) ReadData(n int) ([]byte, error) {
	return r.view(n)
}

func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.view(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadI8() (int8, error) {
	n, err := r.ReadU8()
	return int8(n), err
}

func (r *Reader) ReadU16() (uint16, error) {
	b, err := r.view(2)
	if err != nil {
		return 0, err
	}
	return u16(b), nil
}

func (r *Reader) ReadI16() (int16, error) {
	n, err := r.ReadU16()
	return int16(n), err
}

func (r *Reader) ReadU24() (uint32, error) {
	b, err := r.view(3)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]), nil
}

func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.view(4)
	if err != nil {
		return 0, err
	}
	return u32(b), nil
}

func (r *Reader) ReadI32() (int32, error) {
	n, err := r.ReadU32()
	return int32(n), err
}

// ReadTag reads a 4-byte tag.
func (r *Reader) ReadTag() (Tag, error) {
	n, err := r.ReadU32()
	return Tag(n), err
}

// ReadU16Array reads count consecutive uint16 values.
func (r *Reader) ReadU16Array(count int) ([]uint16, error) {
	b, err := r.view(count * 2)
	if err != nil {
		return nil, err
	}
	values := make([]uint16, count)
	for i := range values {
		values[i] = u16(b[i*2:])
	}
	return values, nil
}
