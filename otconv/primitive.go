package otconv

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/otfkit/otconv/ot"
)

// Scalar converters: the leaves of the converter dependency graph.

// intConverter covers the signed and unsigned fixed-width integer family
// (1/2/3/4 bytes). In-memory representation is int.
type intConverter struct {
	baseConverter
	size   int
	signed bool
}

func newIntConverter(fs FieldSpec, size int, signed bool) *intConverter {
	return &intConverter{baseConverter: makeBase(fs), size: size, signed: signed}
}

func (cv *intConverter) RecordSize(*ot.Reader) (int, bool) { return cv.size, true }

func (cv *intConverter) Read(r *ot.Reader, c *Context, vals Values) (any, error) {
	return readInt(r, cv.size, cv.signed)
}

func readInt(r *ot.Reader, size int, signed bool) (int, error) {
	switch {
	case size == 1 && signed:
		n, err := r.ReadI8()
		return int(n), err
	case size == 1:
		n, err := r.ReadU8()
		return int(n), err
	case size == 2 && signed:
		n, err := r.ReadI16()
		return int(n), err
	case size == 2:
		n, err := r.ReadU16()
		return int(n), err
	case size == 3:
		n, err := r.ReadU24()
		return int(n), err
	case signed:
		n, err := r.ReadI32()
		return int(n), err
	default:
		n, err := r.ReadU32()
		return int(n), err
	}
}

func writeInt(w *ot.Writer, size int, v int) {
	switch size {
	case 1:
		w.WriteU8(uint8(v))
	case 2:
		w.WriteU16(uint16(v))
	case 3:
		w.WriteU24(uint32(v))
	default:
		w.WriteU32(uint32(v))
	}
}

func (cv *intConverter) Write(w *ot.Writer, c *Context, vals Values, value any, repeatIndex int) error {
	n, ok := value.(int)
	if !ok {
		return errFormat(fmt.Sprintf("field %s: expected integer, have %T", cv.Name(), value))
	}
	writeInt(w, cv.size, n)
	return nil
}

func (cv *intConverter) ToXML(parent *Element, c *Context, value any, name string, attrs []Attr) error {
	parent.AppendChild(NewElement(name, attrs...)).SetAttr("value", fmt.Sprintf("%v", value))
	return nil
}

func (cv *intConverter) FromXML(e *Element, c *Context) (any, error) {
	return e.IntAttr("value")
}

// --- Flags32 ---------------------------------------------------------------

// flags32Converter is a uint32 whose textual form is 0x-prefixed hex, the
// conventional rendering for flag words.
type flags32Converter struct {
	intConverter
}

func newFlags32Converter(fs FieldSpec) *flags32Converter {
	return &flags32Converter{intConverter{baseConverter: makeBase(fs), size: 4}}
}

func (cv *flags32Converter) ToXML(parent *Element, c *Context, value any, name string, attrs []Attr) error {
	n, _ := value.(int)
	parent.AppendChild(NewElement(name, attrs...)).SetAttr("value", fmt.Sprintf("0x%08X", uint32(n)))
	return nil
}

// --- Tag -------------------------------------------------------------------

type tagConverter struct {
	baseConverter
}

func newTagConverter(fs FieldSpec) *tagConverter {
	return &tagConverter{makeBase(fs)}
}

func (cv *tagConverter) RecordSize(*ot.Reader) (int, bool) { return 4, true }

func (cv *tagConverter) Read(r *ot.Reader, c *Context, vals Values) (any, error) {
	t, err := r.ReadTag()
	return t, err
}

func (cv *tagConverter) Write(w *ot.Writer, c *Context, vals Values, value any, repeatIndex int) error {
	t, ok := value.(ot.Tag)
	if !ok {
		return errFormat(fmt.Sprintf("field %s: expected tag, have %T", cv.Name(), value))
	}
	w.WriteTag(t)
	return nil
}

func (cv *tagConverter) ToXML(parent *Element, c *Context, value any, name string, attrs []Attr) error {
	t, _ := value.(ot.Tag)
	parent.AppendChild(NewElement(name, attrs...)).SetAttr("value", t.String())
	return nil
}

func (cv *tagConverter) FromXML(e *Element, c *Context) (any, error) {
	s, ok := e.Attr("value")
	if !ok {
		return nil, errFormat("<" + e.Name + "> is missing attribute \"value\"")
	}
	return ot.T(s), nil
}

// --- GlyphID ---------------------------------------------------------------

// glyphIDConverter resolves 16-bit glyph IDs to glyph names through the
// glyph namespace. Out-of-range IDs decode to a synthesized placeholder
// name, tolerating corrupt glyph-count metadata.
type glyphIDConverter struct {
	baseConverter
}

func newGlyphIDConverter(fs FieldSpec) *glyphIDConverter {
	return &glyphIDConverter{makeBase(fs)}
}

func (cv *glyphIDConverter) RecordSize(*ot.Reader) (int, bool) { return 2, true }

func (cv *glyphIDConverter) Read(r *ot.Reader, c *Context, vals Values) (any, error) {
	gid, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	return c.Glyphs.GlyphName(ot.GlyphIndex(gid)), nil
}

// ReadArray reads the whole glyph array in one batch; per-glyph fallback
// only happens when an ID exceeds the glyph order.
func (cv *glyphIDConverter) ReadArray(r *ot.Reader, c *Context, vals Values, count int) (Sequence, error) {
	gids, err := r.ReadU16Array(count)
	if err != nil {
		return nil, err
	}
	order := c.Glyphs.GlyphOrder()
	seq := make(EagerSequence, count)
	for i, gid := range gids {
		if int(gid) < len(order) {
			seq[i] = order[gid]
		} else {
			seq[i] = c.Glyphs.GlyphName(ot.GlyphIndex(gid))
		}
	}
	return seq, nil
}

func (cv *glyphIDConverter) Write(w *ot.Writer, c *Context, vals Values, value any, repeatIndex int) error {
	name, ok := value.(string)
	if !ok {
		return errFormat(fmt.Sprintf("field %s: expected glyph name, have %T", cv.Name(), value))
	}
	gid, err := c.Glyphs.GlyphID(name)
	if err != nil {
		return err
	}
	w.WriteU16(uint16(gid))
	return nil
}

func (cv *glyphIDConverter) ToXML(parent *Element, c *Context, value any, name string, attrs []Attr) error {
	s, _ := value.(string)
	parent.AppendChild(NewElement(name, attrs...)).SetAttr("value", s)
	return nil
}

func (cv *glyphIDConverter) FromXML(e *Element, c *Context) (any, error) {
	s, ok := e.Attr("value")
	if !ok {
		return nil, errFormat("<" + e.Name + "> is missing attribute \"value\"")
	}
	return s, nil
}

// --- NameID ----------------------------------------------------------------

// nameIDConverter is a uint16 reference into the font's name table. The
// textual form is annotated with the referenced name when a resolver is
// available; a missing name is a warned degradation.
type nameIDConverter struct {
	intConverter
}

func newNameIDConverter(fs FieldSpec) *nameIDConverter {
	return &nameIDConverter{intConverter{baseConverter: makeBase(fs), size: 2}}
}

func (cv *nameIDConverter) ToXML(parent *Element, c *Context, value any, name string, attrs []Attr) error {
	n, _ := value.(int)
	e := parent.AppendChild(NewElement(name, attrs...)).SetAttr("value", fmt.Sprintf("%d", n))
	if c.Names != nil {
		if debugName, ok := c.Names.DebugName(uint16(n)); ok {
			e.Comment = debugName
		} else {
			e.Comment = "missing from name table"
			c.warn("", cv.Name(), "name id %d missing from name table", n)
		}
	}
	return nil
}

// --- DeciPoints ------------------------------------------------------------

// deciPointsConverter stores tenths of points in a uint16.
type deciPointsConverter struct {
	baseConverter
}

func newDeciPointsConverter(fs FieldSpec) *deciPointsConverter {
	return &deciPointsConverter{makeBase(fs)}
}

func (cv *deciPointsConverter) RecordSize(*ot.Reader) (int, bool) { return 2, true }

func (cv *deciPointsConverter) Read(r *ot.Reader, c *Context, vals Values) (any, error) {
	n, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	return float64(n) / 10, nil
}

func (cv *deciPointsConverter) Write(w *ot.Writer, c *Context, vals Values, value any, repeatIndex int) error {
	f, ok := value.(float64)
	if !ok {
		return errFormat(fmt.Sprintf("field %s: expected number, have %T", cv.Name(), value))
	}
	w.WriteU16(uint16(ot.FloatToFixed(f*10, 0)))
	return nil
}

func (cv *deciPointsConverter) ToXML(parent *Element, c *Context, value any, name string, attrs []Attr) error {
	return floatToXML(parent, value, name, attrs)
}

func (cv *deciPointsConverter) FromXML(e *Element, c *Context) (any, error) {
	return floatFromXML(e)
}

// --- Fixed-point -----------------------------------------------------------

// fixedConverter is a 16.16 fixed-point number, float64 in memory.
type fixedConverter struct {
	baseConverter
}

func newFixedConverter(fs FieldSpec) *fixedConverter {
	return &fixedConverter{makeBase(fs)}
}

func (cv *fixedConverter) RecordSize(*ot.Reader) (int, bool) { return 4, true }

func (cv *fixedConverter) Read(r *ot.Reader, c *Context, vals Values) (any, error) {
	n, err := r.ReadI32()
	if err != nil {
		return nil, err
	}
	return ot.FixedToFloat(n, 16), nil
}

func (cv *fixedConverter) Write(w *ot.Writer, c *Context, vals Values, value any, repeatIndex int) error {
	f, ok := value.(float64)
	if !ok {
		return errFormat(fmt.Sprintf("field %s: expected number, have %T", cv.Name(), value))
	}
	w.WriteI32(ot.FloatToFixed(f, 16))
	return nil
}

func (cv *fixedConverter) ToXML(parent *Element, c *Context, value any, name string, attrs []Attr) error {
	return floatToXML(parent, value, name, attrs)
}

func (cv *fixedConverter) FromXML(e *Element, c *Context) (any, error) {
	return floatFromXML(e)
}

// f2Dot14Converter is a 2.14 fixed-point number, float64 in memory.
type f2Dot14Converter struct {
	baseConverter
}

func newF2Dot14Converter(fs FieldSpec) *f2Dot14Converter {
	return &f2Dot14Converter{makeBase(fs)}
}

func (cv *f2Dot14Converter) RecordSize(*ot.Reader) (int, bool) { return 2, true }

func (cv *f2Dot14Converter) Read(r *ot.Reader, c *Context, vals Values) (any, error) {
	n, err := r.ReadI16()
	if err != nil {
		return nil, err
	}
	return ot.FixedToFloat(int32(n), 14), nil
}

func (cv *f2Dot14Converter) Write(w *ot.Writer, c *Context, vals Values, value any, repeatIndex int) error {
	f, ok := value.(float64)
	if !ok {
		return errFormat(fmt.Sprintf("field %s: expected number, have %T", cv.Name(), value))
	}
	w.WriteI16(int16(ot.FloatToFixed(f, 14)))
	return nil
}

func (cv *f2Dot14Converter) ToXML(parent *Element, c *Context, value any, name string, attrs []Attr) error {
	return floatToXML(parent, value, name, attrs)
}

func (cv *f2Dot14Converter) FromXML(e *Element, c *Context) (any, error) {
	return floatFromXML(e)
}

func floatToXML(parent *Element, value any, name string, attrs []Attr) error {
	f, _ := value.(float64)
	parent.AppendChild(NewElement(name, attrs...)).SetAttr("value",
		strconv.FormatFloat(f, 'g', -1, 64))
	return nil
}

func floatFromXML(e *Element) (any, error) {
	s, ok := e.Attr("value")
	if !ok {
		return nil, errFormat("<" + e.Name + "> is missing attribute \"value\"")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, errFormat(fmt.Sprintf("illegal number literal %q", s))
	}
	return f, nil
}

// --- Version ---------------------------------------------------------------

// versionConverter is a 16.16 table version whose upper word must be 1.
// Anything else is an unsupported version and aborts the conversion.
type versionConverter struct {
	baseConverter
}

func newVersionConverter(fs FieldSpec) *versionConverter {
	return &versionConverter{makeBase(fs)}
}

func (cv *versionConverter) RecordSize(*ot.Reader) (int, bool) { return 4, true }

func (cv *versionConverter) Read(r *ot.Reader, c *Context, vals Values) (any, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if n>>16 != 1 {
		return nil, errFormat(fmt.Sprintf("unsupported version 0x%08x", n))
	}
	return n, nil
}

func (cv *versionConverter) Write(w *ot.Writer, c *Context, vals Values, value any, repeatIndex int) error {
	n, ok := value.(uint32)
	if !ok {
		return errFormat(fmt.Sprintf("field %s: expected version, have %T", cv.Name(), value))
	}
	n = ot.EnsureVersionIsLong(n)
	if n>>16 != 1 {
		return errFormat(fmt.Sprintf("unsupported version 0x%08x", n))
	}
	w.WriteU32(n)
	return nil
}

func (cv *versionConverter) ToXML(parent *Element, c *Context, value any, name string, attrs []Attr) error {
	n, _ := value.(uint32)
	parent.AppendChild(NewElement(name, attrs...)).SetAttr("value",
		fmt.Sprintf("0x%08x", ot.EnsureVersionIsLong(n)))
	return nil
}

func (cv *versionConverter) FromXML(e *Element, c *Context) (any, error) {
	s, ok := e.Attr("value")
	if !ok {
		return nil, errFormat("<" + e.Name + "> is missing attribute \"value\"")
	}
	v, err := ot.VersionFromString(s)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// --- Char64 ----------------------------------------------------------------

// char64Converter is an ASCII string in a fixed 64-byte field, used by the
// AAT 'gcid' table. Unused positions are zero-filled. Non-ASCII content is
// replaced with a warning on both decode and encode; over-length strings
// are truncated with a warning. Neither is a hard failure.
type char64Converter struct {
	baseConverter
}

const char64Size = 64

func newChar64Converter(fs FieldSpec) *char64Converter {
	return &char64Converter{makeBase(fs)}
}

func (cv *char64Converter) RecordSize(*ot.Reader) (int, bool) { return char64Size, true }

func (cv *char64Converter) Read(r *ot.Reader, c *Context, vals Values) (any, error) {
	data, err := r.ReadData(char64Size)
	if err != nil {
		return nil, err
	}
	if zero := indexByte(data, 0); zero >= 0 {
		data = data[:zero]
	}
	var sb strings.Builder
	replaced := false
	for _, b := range data {
		if b > 0x7F {
			sb.WriteRune('�')
			replaced = true
		} else {
			sb.WriteByte(b)
		}
	}
	s := sb.String()
	if replaced {
		c.warn("", cv.Name(), "replaced non-ASCII characters in %q", s)
	}
	return s, nil
}

func (cv *char64Converter) Write(w *ot.Writer, c *Context, vals Values, value any, repeatIndex int) error {
	s, ok := value.(string)
	if !ok {
		return errFormat(fmt.Sprintf("field %s: expected string, have %T", cv.Name(), value))
	}
	data := make([]byte, 0, char64Size)
	replaced := false
	for _, r := range s {
		if r > 0x7F {
			data = append(data, '?')
			replaced = true
		} else {
			data = append(data, byte(r))
		}
	}
	if replaced {
		c.warn("", cv.Name(), "replacing non-ASCII characters in %q", s)
	}
	if len(data) > char64Size {
		c.warn("", cv.Name(), "truncating overlong %q to %d bytes", s, char64Size)
		data = data[:char64Size]
	}
	for len(data) < char64Size {
		data = append(data, 0)
	}
	w.WriteData(data)
	return nil
}

func (cv *char64Converter) ToXML(parent *Element, c *Context, value any, name string, attrs []Attr) error {
	s, _ := value.(string)
	parent.AppendChild(NewElement(name, attrs...)).SetAttr("value", s)
	return nil
}

func (cv *char64Converter) FromXML(e *Element, c *Context) (any, error) {
	s, ok := e.Attr("value")
	if !ok {
		return nil, errFormat("<" + e.Name + "> is missing attribute \"value\"")
	}
	return s, nil
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}
