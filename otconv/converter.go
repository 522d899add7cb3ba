package otconv

import (
	"fmt"
	"strconv"

	"github.com/otfkit/otconv/ot"
)

// Values holds the named field values of one table instance, in the shape
// converters produce them: integers as int, fixed-point values as float64,
// tags as ot.Tag, glyph references as glyph-name strings, nested tables as
// *Table.
type Values map[string]any

// Int returns a count-like field value. Unset or nil slots read as 0.
func (v Values) Int(name string) (int, bool) {
	value, ok := v[name]
	if !ok || value == nil {
		return 0, ok
	}
	n, ok := value.(int)
	return n, ok
}

// Converter is a type-specific read/write/text-round-trip strategy bound to
// one schema field. Converters are stateless with respect to any single
// table instance: all per-instance state lives in the cursor/sink stores or
// the table object.
type Converter interface {
	Name() string
	Spec() FieldSpec
	// IsCount reports whether this is a computed count field, recomputed at
	// encode time from the governed array's true length.
	IsCount() bool
	// IsPropagated reports whether this field's value must be visible to
	// converters instantiating descendant structures.
	IsPropagated() bool
	// RecordSize returns the fixed per-record byte size of this field, if
	// statically knowable. Lazy array decoding requires it.
	RecordSize(r *ot.Reader) (int, bool)
	Read(r *ot.Reader, c *Context, vals Values) (any, error)
	Write(w *ot.Writer, c *Context, vals Values, value any, repeatIndex int) error
	ToXML(parent *Element, c *Context, value any, name string, attrs []Attr) error
	FromXML(e *Element, c *Context) (any, error)
}

// arrayReader is implemented by converters which decode whole arrays in one
// batch instead of element by element (currently only glyph-ID arrays).
type arrayReader interface {
	ReadArray(r *ot.Reader, c *Context, vals Values, count int) (Sequence, error)
}

// baseConverter carries the schema binding shared by all converter kinds.
type baseConverter struct {
	spec         FieldSpec
	isCount      bool
	isLookupType bool
	isPropagated bool
}

// Field names whose values must be visible to converters of descendant
// structures during a single conversion pass.
var propagatedFields = map[string]bool{
	"ClassCount":           true,
	"Class2Count":          true,
	"FeatureTag":           true,
	"SettingsCount":        true,
	"VarRegionCount":       true,
	"MappingCount":         true,
	"RegionAxisCount":      true,
	"DesignAxisCount":      true,
	"DesignAxisRecordSize": true,
	"AxisValueCount":       true,
	"ValueRecordSize":      true,
}

func makeBase(fs FieldSpec) baseConverter {
	name := fs.Name
	return baseConverter{
		spec: fs,
		isCount: hasSuffix(name, "Count") ||
			name == "DesignAxisRecordSize" || name == "ValueRecordSize",
		isLookupType: hasSuffix(name, "LookupType") || name == "MorphType",
		isPropagated: propagatedFields[name],
	}
}

func (b *baseConverter) Name() string       { return b.spec.Name }
func (b *baseConverter) Spec() FieldSpec    { return b.spec }
func (b *baseConverter) IsCount() bool      { return b.isCount }
func (b *baseConverter) IsPropagated() bool { return b.isPropagated }

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

// readFieldArray decodes a count-sized array for conv. Lazy decoding kicks
// in when the context asks for it, the count exceeds a small threshold and
// the element converter has a fixed record size; otherwise every element is
// decoded eagerly in order.
func readFieldArray(conv Converter, r *ot.Reader, c *Context, vals Values, count int) (Sequence, error) {
	if count < 0 {
		return nil, errFormat(fmt.Sprintf("negative count %d for array %s", count, conv.Name()))
	}
	if ar, ok := conv.(arrayReader); ok {
		return ar.ReadArray(r, c, vals, count)
	}
	lazy := c.Lazy && count > lazyThreshold
	recordSize := 0
	if lazy {
		rs, ok := conv.RecordSize(r)
		if !ok {
			lazy = false
		}
		recordSize = rs
	}
	if !lazy {
		seq := make(EagerSequence, 0, min(count, 1024))
		for i := 0; i < count; i++ {
			v, err := conv.Read(r, c, vals)
			if err != nil {
				return nil, err
			}
			seq = append(seq, v)
		}
		return seq, nil
	}
	return newLazySequence(conv, r, c, count, recordSize), nil
}

// writeFieldArray encodes every element of seq in order.
func writeFieldArray(conv Converter, w *ot.Writer, c *Context, vals Values, seq Sequence) error {
	for i := 0; i < seq.Len(); i++ {
		v, err := seq.At(i)
		if err != nil {
			return err
		}
		if err := conv.Write(w, c, vals, v, i); err != nil {
			return err
		}
	}
	return nil
}

// staticSizeOf returns a converter's record size when it does not depend on
// cursor state.
func staticSizeOf(conv Converter) (int, bool) {
	return conv.RecordSize(nil)
}

// parseIntAttr parses a decimal or 0x-prefixed integer literal.
func parseIntAttr(s string) (int, error) {
	n, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, errFormat(fmt.Sprintf("illegal integer literal %q", s))
	}
	return int(n), nil
}
