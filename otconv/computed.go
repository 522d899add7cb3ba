package otconv

import (
	"fmt"

	"github.com/otfkit/otconv/ot"
)

// computedConverter handles fields whose binary value is derived from the
// surrounding structure at encode time: array counts, struct lengths and
// morph-subtable type codes. The decoded value is stored so that sibling
// converters (array repeats, subtable dispatch) can consult it, but encoding
// never trusts it: Table.Compile emits a count cell and the owning structure
// fills in the recomputed value before the sink resolves.
type computedConverter struct {
	baseConverter
	size int
}

func newComputedConverter(fs FieldSpec, size int) *computedConverter {
	cv := &computedConverter{baseConverter: makeBase(fs), size: size}
	cv.isCount = true
	return cv
}

func (cv *computedConverter) RecordSize(*ot.Reader) (int, bool) { return cv.size, true }

func (cv *computedConverter) Read(r *ot.Reader, c *Context, vals Values) (any, error) {
	return readInt(r, cv.size, false)
}

func (cv *computedConverter) Write(w *ot.Writer, c *Context, vals Values, value any, repeatIndex int) error {
	n, _ := value.(int)
	writeInt(w, cv.size, n)
	return nil
}

// ToXML emits computed fields as an informational comment only; their value
// is redundant with the structure and is never parsed back.
func (cv *computedConverter) ToXML(parent *Element, c *Context, value any, name string, attrs []Attr) error {
	if value == nil {
		return nil
	}
	parent.AppendComment(fmt.Sprintf("%s=%v", name, value))
	return nil
}

func (cv *computedConverter) FromXML(e *Element, c *Context) (any, error) {
	return e.IntAttr("value")
}
