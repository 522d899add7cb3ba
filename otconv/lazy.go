package otconv

import (
	"fmt"

	"github.com/otfkit/otconv/ot"
)

// Arrays above this length are decoded lazily, element by element on first
// access, provided the element converter has a fixed record size.
const lazyThreshold = 8

// Sequence is an array-typed field value. Eagerly decoded arrays and lazy
// arrays share this interface; indexing a lazy sequence decodes the element
// on first access and memoizes it.
type Sequence interface {
	Len() int
	// At returns the element at index i, decoding it first if necessary.
	At(i int) (any, error)
	// Slice forces decoding of every element in [from, to) and returns a
	// plain slice. Forced elements stay memoized in the sequence.
	Slice(from, to int) ([]any, error)
}

// EagerSequence is a fully decoded array.
type EagerSequence []any

func (s EagerSequence) Len() int { return len(s) }

func (s EagerSequence) At(i int) (any, error) {
	if i < 0 || i >= len(s) {
		return nil, errFormat(fmt.Sprintf("sequence index %d out of range [0,%d)", i, len(s)))
	}
	return s[i], nil
}

func (s EagerSequence) Slice(from, to int) ([]any, error) {
	if from < 0 || to > len(s) || from > to {
		return nil, errFormat(fmt.Sprintf("sequence range [%d,%d) out of range [0,%d)", from, to, len(s)))
	}
	return s[from:to], nil
}

// lazySlot is one element of a lazy sequence: either still unresolved
// (holding only its index, implicit in the slot position) or resolved to a
// decoded value.
type lazySlot struct {
	resolved bool
	value    any
}

// LazySequence defers decoding of a fixed-record-size array until
// individual elements are accessed. It retains a cursor snapshot of the
// array's start; reading index i seeks to start + i·recordSize, decodes
// once, and memoizes the result.
//
// A LazySequence owns its memoization cache and is not safe for
// uncoordinated concurrent indexing.
type LazySequence struct {
	reader     *ot.Reader
	pos        int
	recordSize int
	conv       Converter
	ctx        *Context
	slots      []lazySlot
}

// newLazySequence captures a cursor snapshot at the array start and
// advances the outer cursor past the whole array, so that sibling fields
// after the array decode correctly.
func newLazySequence(conv Converter, r *ot.Reader, c *Context, count, recordSize int) *LazySequence {
	seq := &LazySequence{
		reader:     r.Copy(),
		pos:        r.Pos(),
		recordSize: recordSize,
		conv:       conv,
		ctx:        c,
		slots:      make([]lazySlot, count),
	}
	r.Advance(count * recordSize)
	return seq
}

func (s *LazySequence) Len() int { return len(s.slots) }

func (s *LazySequence) At(i int) (any, error) {
	if i < 0 || i >= len(s.slots) {
		return nil, errFormat(fmt.Sprintf("sequence index %d out of range [0,%d)", i, len(s.slots)))
	}
	if !s.slots[i].resolved {
		s.reader.Seek(s.pos + i*s.recordSize)
		v, err := s.conv.Read(s.reader, s.ctx, Values{})
		if err != nil {
			return nil, err
		}
		s.slots[i] = lazySlot{resolved: true, value: v}
	}
	return s.slots[i].value, nil
}

func (s *LazySequence) Slice(from, to int) ([]any, error) {
	if from < 0 || to > len(s.slots) || from > to {
		return nil, errFormat(fmt.Sprintf("sequence range [%d,%d) out of range [0,%d)", from, to, len(s.slots)))
	}
	out := make([]any, 0, to-from)
	for i := from; i < to; i++ {
		v, err := s.At(i)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
