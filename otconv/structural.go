package otconv

import (
	"fmt"

	"github.com/otfkit/otconv/ot"
)

// Structural converters: nested tables, either inline in the byte stream or
// reached through an offset field. The target declaration is resolved from
// the registry on first use, so mutually recursive table shapes can be
// declared in any order.

// --- Inline struct ---------------------------------------------------------

type structConverter struct {
	baseConverter
	reg        *Registry
	targetName string
	def        *TableDef
}

func newStructConverter(reg *Registry, fs FieldSpec, targetName string) *structConverter {
	return &structConverter{baseConverter: makeBase(fs), reg: reg, targetName: targetName}
}

func (cv *structConverter) target() (*TableDef, error) {
	if cv.def == nil {
		def, err := cv.reg.Table(cv.targetName)
		if err != nil {
			return nil, err
		}
		cv.def = def
	}
	return cv.def, nil
}

func (cv *structConverter) RecordSize(*ot.Reader) (int, bool) {
	def, err := cv.target()
	if err != nil {
		return 0, false
	}
	return def.recordSize()
}

func (cv *structConverter) Read(r *ot.Reader, c *Context, vals Values) (any, error) {
	def, err := cv.target()
	if err != nil {
		return nil, err
	}
	t := NewTable(def)
	if err := t.Decompile(r, c); err != nil {
		return nil, err
	}
	return t, nil
}

func (cv *structConverter) Write(w *ot.Writer, c *Context, vals Values, value any, repeatIndex int) error {
	t, ok := value.(*Table)
	if !ok {
		return errFormat(fmt.Sprintf("field %s: expected table, have %T", cv.Name(), value))
	}
	return t.Compile(w, c)
}

func (cv *structConverter) ToXML(parent *Element, c *Context, value any, name string, attrs []Attr) error {
	if value == nil {
		parent.AppendComment(name + " is missing")
		return nil
	}
	t, ok := value.(*Table)
	if !ok {
		return errFormat(fmt.Sprintf("field %s: expected table, have %T", cv.Name(), value))
	}
	return t.ToXML(parent, c, name, attrs)
}

func (cv *structConverter) FromXML(e *Element, c *Context) (any, error) {
	def, err := cv.target()
	if err != nil {
		return nil, err
	}
	t := NewTable(def)
	if err := t.FromXML(e, c); err != nil {
		return nil, err
	}
	return t, nil
}

// --- Struct behind an offset -----------------------------------------------

// offsetConverter reads and writes a table referenced through a 16- or
// 32-bit offset measured from the start of the referring table. A zero
// offset means the table is absent; absence round-trips as a nil value.
type offsetConverter struct {
	baseConverter
	reg        *Registry
	targetName string
	def        *TableDef
	long       bool
	// ext marks an extension sub-table reference: the referring writer is
	// switched to 32-bit offsets for all of its sub-tables.
	ext bool
}

func newOffsetConverter(reg *Registry, fs FieldSpec, targetName string, long bool) *offsetConverter {
	return &offsetConverter{baseConverter: makeBase(fs), reg: reg, targetName: targetName, long: long}
}

func (cv *offsetConverter) target() (*TableDef, error) {
	if cv.def == nil {
		def, err := cv.reg.Table(cv.targetName)
		if err != nil {
			return nil, err
		}
		cv.def = def
	}
	return cv.def, nil
}

func (cv *offsetConverter) RecordSize(*ot.Reader) (int, bool) {
	if cv.long {
		return 4, true
	}
	return 2, true
}

func (cv *offsetConverter) Read(r *ot.Reader, c *Context, vals Values) (any, error) {
	var offset int
	if cv.long {
		n, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		offset = int(n)
	} else {
		n, err := r.ReadU16()
		if err != nil {
			return nil, err
		}
		offset = int(n)
	}
	if offset == 0 {
		return nil, nil
	}
	def, err := cv.target()
	if err != nil {
		return nil, err
	}
	sub := r.SubReader(offset)
	t := NewTable(def)
	if c.Lazy {
		t.reader, t.lazyCtx = sub, c
		return t, nil
	}
	if err := t.Decompile(sub, c); err != nil {
		return nil, err
	}
	return t, nil
}

func (cv *offsetConverter) Write(w *ot.Writer, c *Context, vals Values, value any, repeatIndex int) error {
	if value == nil {
		if cv.long {
			w.WriteU32(0)
		} else {
			w.WriteU16(0)
		}
		return nil
	}
	t, ok := value.(*Table)
	if !ok {
		return errFormat(fmt.Sprintf("field %s: expected table, have %T", cv.Name(), value))
	}
	if cv.ext {
		w.Extension = true
	}
	sub := w.SubWriter()
	sub.Name = cv.Name()
	sub.LongOffset = cv.long
	if err := t.Compile(sub, c); err != nil {
		return err
	}
	w.WriteSubTable(sub)
	return nil
}

func (cv *offsetConverter) ToXML(parent *Element, c *Context, value any, name string, attrs []Attr) error {
	if value == nil {
		// Absent table, nothing to emit.
		return nil
	}
	t, ok := value.(*Table)
	if !ok {
		return errFormat(fmt.Sprintf("field %s: expected table, have %T", cv.Name(), value))
	}
	return t.ToXML(parent, c, name, attrs)
}

func (cv *offsetConverter) FromXML(e *Element, c *Context) (any, error) {
	def, err := cv.target()
	if err != nil {
		return nil, err
	}
	t := NewTable(def)
	if err := t.FromXML(e, c); err != nil {
		return nil, err
	}
	return t, nil
}

// --- Length-prefixed struct ------------------------------------------------

// structWithLengthConverter is an inline struct which carries its own total
// byte length in a StructLength field. Decoding trusts the recorded length
// to find the next structure; encoding recomputes it from the bytes
// actually produced.
type structWithLengthConverter struct {
	structConverter
}

func newStructWithLengthConverter(reg *Registry, fs FieldSpec, targetName string) *structWithLengthConverter {
	return &structWithLengthConverter{structConverter{baseConverter: makeBase(fs), reg: reg, targetName: targetName}}
}

func (cv *structWithLengthConverter) RecordSize(*ot.Reader) (int, bool) {
	return 0, false
}

func (cv *structWithLengthConverter) Read(r *ot.Reader, c *Context, vals Values) (any, error) {
	def, err := cv.target()
	if err != nil {
		return nil, err
	}
	pos := r.Pos()
	t := NewTable(def)
	if err := t.Decompile(r, c); err != nil {
		return nil, err
	}
	length, ok := t.vals.Int("StructLength")
	if !ok {
		return nil, errFormat("table " + def.Name + " has no StructLength field")
	}
	// The recorded length wins over the number of bytes consumed; trailing
	// data belongs to the next structure.
	r.Seek(pos + length)
	return t, nil
}

func (cv *structWithLengthConverter) Write(w *ot.Writer, c *Context, vals Values, value any, repeatIndex int) error {
	t, ok := value.(*Table)
	if !ok {
		return errFormat(fmt.Sprintf("field %s: expected table, have %T", cv.Name(), value))
	}
	before := w.DataLength()
	if err := t.Compile(w, c); err != nil {
		return err
	}
	t.Set("StructLength", w.DataLength()-before)
	return nil
}

// --- Lookup sub-table dispatch ---------------------------------------------

// subTableConverter selects the concrete sub-table declaration per table
// instance, from the table tag and a sibling lookup-type field. The
// extension variant uses a 32-bit offset and switches the referring writer
// to extension offsets.
type subTableConverter struct {
	baseConverter
	reg       *Registry
	typeField string
	ext       bool
}

func newSubTableConverter(reg *Registry, fs FieldSpec, typeField string, ext bool) *subTableConverter {
	return &subTableConverter{baseConverter: makeBase(fs), reg: reg, typeField: typeField, ext: ext}
}

func (cv *subTableConverter) bound(def *TableDef) Converter {
	return &offsetConverter{
		baseConverter: cv.baseConverter,
		reg:           cv.reg,
		targetName:    def.Name,
		def:           def,
		long:          cv.ext,
		ext:           cv.ext,
	}
}

func (cv *subTableConverter) dispatchConverter(tableTag ot.Tag, vals Values, local func(string) (any, bool)) (Converter, error) {
	lookupType, err := dispatchValue(cv.typeField, vals, local)
	if err != nil {
		return nil, err
	}
	def, err := cv.reg.lookupType(tableTag, lookupType)
	if err != nil {
		return nil, err
	}
	return cv.bound(def), nil
}

func (cv *subTableConverter) bindTargetName(name string) Converter {
	def, ok := cv.reg.findLookupTypeByName(name)
	if !ok {
		return nil
	}
	return cv.bound(def)
}

func (cv *subTableConverter) RecordSize(*ot.Reader) (int, bool) { return 0, false }

func (cv *subTableConverter) Read(r *ot.Reader, c *Context, vals Values) (any, error) {
	return nil, errFormat("field " + cv.Name() + " read without dispatch")
}

func (cv *subTableConverter) Write(w *ot.Writer, c *Context, vals Values, value any, repeatIndex int) error {
	return errFormat("field " + cv.Name() + " written without dispatch")
}

// ToXML names the element after the concrete sub-table type, which carries
// enough information to rebind the declaration on import.
func (cv *subTableConverter) ToXML(parent *Element, c *Context, value any, name string, attrs []Attr) error {
	if value == nil {
		return nil
	}
	t, ok := value.(*Table)
	if !ok {
		return errFormat(fmt.Sprintf("field %s: expected table, have %T", cv.Name(), value))
	}
	return t.ToXML(parent, c, "", attrs)
}

func (cv *subTableConverter) FromXML(e *Element, c *Context) (any, error) {
	return nil, errFormat("element <" + e.Name + "> imported without dispatch")
}

// dispatchValue resolves a dispatch field from the sibling values or, when
// absent, from a propagated ancestor value.
func dispatchValue(field string, vals Values, local func(string) (any, bool)) (int, error) {
	if n, ok := vals.Int(field); ok {
		return n, nil
	}
	if v, ok := local(field); ok {
		switch n := v.(type) {
		case int:
			return n, nil
		case *ot.CountCell:
			return n.Value(), nil
		}
	}
	return 0, errFormat("no value for dispatch field " + field)
}

// --- Inline morph-subtable dispatch ----------------------------------------

// subStructConverter is subTableConverter's inline sibling: metamorphosis
// subtable content follows its header directly, selected by the MorphType
// field.
type subStructConverter struct {
	baseConverter
	reg *Registry
}

func newSubStructConverter(reg *Registry, fs FieldSpec) *subStructConverter {
	return &subStructConverter{baseConverter: makeBase(fs), reg: reg}
}

func (cv *subStructConverter) bound(def *TableDef) Converter {
	return &structConverter{
		baseConverter: cv.baseConverter,
		reg:           cv.reg,
		targetName:    def.Name,
		def:           def,
	}
}

func (cv *subStructConverter) dispatchConverter(tableTag ot.Tag, vals Values, local func(string) (any, bool)) (Converter, error) {
	morphType, err := dispatchValue("MorphType", vals, local)
	if err != nil {
		return nil, err
	}
	def, err := cv.reg.lookupType(tableTag, morphType)
	if err != nil {
		return nil, err
	}
	return cv.bound(def), nil
}

func (cv *subStructConverter) bindTargetName(name string) Converter {
	def, ok := cv.reg.findLookupTypeByName(name)
	if !ok {
		return nil
	}
	return cv.bound(def)
}

func (cv *subStructConverter) RecordSize(*ot.Reader) (int, bool) { return 0, false }

func (cv *subStructConverter) Read(r *ot.Reader, c *Context, vals Values) (any, error) {
	return nil, errFormat("field " + cv.Name() + " read without dispatch")
}

func (cv *subStructConverter) Write(w *ot.Writer, c *Context, vals Values, value any, repeatIndex int) error {
	return errFormat("field " + cv.Name() + " written without dispatch")
}

func (cv *subStructConverter) ToXML(parent *Element, c *Context, value any, name string, attrs []Attr) error {
	if value == nil {
		return nil
	}
	t, ok := value.(*Table)
	if !ok {
		return errFormat(fmt.Sprintf("field %s: expected table, have %T", cv.Name(), value))
	}
	return t.ToXML(parent, c, "", attrs)
}

func (cv *subStructConverter) FromXML(e *Element, c *Context) (any, error) {
	return nil, errFormat("element <" + e.Name + "> imported without dispatch")
}

// --- Feature params dispatch -----------------------------------------------

// featureParamsConverter selects the feature-params declaration from the
// feature tag propagated by the enclosing feature record.
type featureParamsConverter struct {
	baseConverter
	reg *Registry
}

func newFeatureParamsConverter(reg *Registry, fs FieldSpec) *featureParamsConverter {
	return &featureParamsConverter{baseConverter: makeBase(fs), reg: reg}
}

func (cv *featureParamsConverter) bound(def *TableDef) Converter {
	return &offsetConverter{
		baseConverter: cv.baseConverter,
		reg:           cv.reg,
		targetName:    def.Name,
		def:           def,
	}
}

func (cv *featureParamsConverter) dispatchConverter(tableTag ot.Tag, vals Values, local func(string) (any, bool)) (Converter, error) {
	var tag ot.Tag
	if v, ok := vals["FeatureTag"]; ok {
		tag, _ = v.(ot.Tag)
	} else if v, ok := local("FeatureTag"); ok {
		tag, _ = v.(ot.Tag)
	}
	def, err := cv.reg.featureParamsFor(tag)
	if err != nil {
		return nil, err
	}
	return cv.bound(def), nil
}

func (cv *featureParamsConverter) bindTargetName(name string) Converter {
	def, ok := cv.reg.findFeatureParamsByName(name)
	if !ok {
		return nil
	}
	return cv.bound(def)
}

func (cv *featureParamsConverter) RecordSize(*ot.Reader) (int, bool) { return 2, true }

func (cv *featureParamsConverter) Read(r *ot.Reader, c *Context, vals Values) (any, error) {
	return nil, errFormat("field " + cv.Name() + " read without dispatch")
}

func (cv *featureParamsConverter) Write(w *ot.Writer, c *Context, vals Values, value any, repeatIndex int) error {
	return errFormat("field " + cv.Name() + " written without dispatch")
}

func (cv *featureParamsConverter) ToXML(parent *Element, c *Context, value any, name string, attrs []Attr) error {
	if value == nil {
		return nil
	}
	t, ok := value.(*Table)
	if !ok {
		return errFormat(fmt.Sprintf("field %s: expected table, have %T", cv.Name(), value))
	}
	return t.ToXML(parent, c, "", attrs)
}

func (cv *featureParamsConverter) FromXML(e *Element, c *Context) (any, error) {
	return nil, errFormat("element <" + e.Name + "> imported without dispatch")
}
