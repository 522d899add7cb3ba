package otconv

import (
	"fmt"

	"github.com/otfkit/otconv/ot"
)

// GPOS value records: a ValueFormat bit set declared earlier in the table
// decides which of up to eight entries each following ValueRecord carries.
// The format field's converter parses the bit set into a record layout and
// deposits it in the cursor/sink store, where the record converters of the
// same conversion pass pick it up.

type valueEntry struct {
	name     string
	isDevice bool
}

// Entry order follows the wire layout, lowest format bit first.
var valueRecordEntries = []valueEntry{
	{"XPlacement", false},
	{"YPlacement", false},
	{"XAdvance", false},
	{"YAdvance", false},
	{"XPlaDevice", true},
	{"YPlaDevice", true},
	{"XAdvDevice", true},
	{"YAdvDevice", true},
}

// valueRecordLayout is the parsed form of one ValueFormat bit set.
type valueRecordLayout struct {
	format  uint16
	entries []valueEntry
}

func newValueRecordLayout(format uint16) *valueRecordLayout {
	layout := &valueRecordLayout{format: format}
	for bit, entry := range valueRecordEntries {
		if format&(1<<bit) != 0 {
			layout.entries = append(layout.entries, entry)
		}
	}
	return layout
}

func (layout *valueRecordLayout) size() int {
	return 2 * len(layout.entries)
}

// ValueRecord is one positioning adjustment record. Scalar entries are
// stored as int, device entries as *Table (nil for an absent device).
type ValueRecord struct {
	Entries Values
}

// NewValueRecord creates an empty record.
func NewValueRecord() *ValueRecord {
	return &ValueRecord{Entries: make(Values)}
}

func (layout *valueRecordLayout) read(r *ot.Reader, c *Context, reg *Registry) (*ValueRecord, error) {
	vr := NewValueRecord()
	for _, entry := range layout.entries {
		if entry.isDevice {
			offset, err := r.ReadU16()
			if err != nil {
				return nil, err
			}
			if offset == 0 {
				vr.Entries[entry.name] = nil
				continue
			}
			def, err := reg.Table("Device")
			if err != nil {
				return nil, err
			}
			t := NewTable(def)
			if err := t.Decompile(r.SubReader(int(offset)), c); err != nil {
				return nil, err
			}
			vr.Entries[entry.name] = t
		} else {
			n, err := r.ReadI16()
			if err != nil {
				return nil, err
			}
			vr.Entries[entry.name] = int(n)
		}
	}
	return vr, nil
}

func (layout *valueRecordLayout) write(w *ot.Writer, c *Context, vr *ValueRecord) error {
	for _, entry := range layout.entries {
		value := vr.Entries[entry.name]
		if entry.isDevice {
			t, ok := value.(*Table)
			if !ok || t == nil {
				w.WriteU16(0)
				continue
			}
			sub := w.SubWriter()
			sub.Name = entry.name
			if err := t.Compile(sub, c); err != nil {
				return err
			}
			w.WriteSubTable(sub)
		} else {
			n, _ := value.(int)
			w.WriteI16(int16(n))
		}
	}
	return nil
}

// --- ValueFormat converter -------------------------------------------------

// valueFormatConverter reads and writes the format bit set and installs the
// parsed record layout under its slot name for the record converters.
type valueFormatConverter struct {
	baseConverter
	which string
}

// formatSlot maps a field name to its layout store slot: pair positioning
// distinguishes the formats of the two records by a trailing digit.
func formatSlot(name string) string {
	if len(name) > 0 && name[len(name)-1] == '2' {
		return "ValueFormat2"
	}
	return "ValueFormat1"
}

func newValueFormatConverter(fs FieldSpec) *valueFormatConverter {
	return &valueFormatConverter{baseConverter: makeBase(fs), which: formatSlot(fs.Name)}
}

func (cv *valueFormatConverter) RecordSize(*ot.Reader) (int, bool) { return 2, true }

func (cv *valueFormatConverter) Read(r *ot.Reader, c *Context, vals Values) (any, error) {
	format, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	r.SetLocal(cv.which, newValueRecordLayout(format))
	return int(format), nil
}

func (cv *valueFormatConverter) Write(w *ot.Writer, c *Context, vals Values, value any, repeatIndex int) error {
	n, ok := value.(int)
	if !ok {
		return errFormat(fmt.Sprintf("field %s: expected integer, have %T", cv.Name(), value))
	}
	w.WriteU16(uint16(n))
	w.SetLocal(cv.which, newValueRecordLayout(uint16(n)))
	return nil
}

func (cv *valueFormatConverter) ToXML(parent *Element, c *Context, value any, name string, attrs []Attr) error {
	n, _ := value.(int)
	parent.AppendChild(NewElement(name, attrs...)).SetAttr("value", fmt.Sprintf("%d", n))
	return nil
}

func (cv *valueFormatConverter) FromXML(e *Element, c *Context) (any, error) {
	return e.IntAttr("value")
}

// --- ValueRecord converter -------------------------------------------------

type valueRecordConverter struct {
	baseConverter
	reg   *Registry
	which string
}

func newValueRecordConverter(reg *Registry, fs FieldSpec) *valueRecordConverter {
	return &valueRecordConverter{baseConverter: makeBase(fs), reg: reg, which: formatSlot(fs.Name)}
}

func (cv *valueRecordConverter) layout(local func(string) (any, bool)) (*valueRecordLayout, error) {
	v, ok := local(cv.which)
	if !ok {
		return nil, errFormat("no " + cv.which + " seen before field " + cv.Name())
	}
	layout, ok := v.(*valueRecordLayout)
	if !ok {
		return nil, errFormat(cv.which + " slot holds no record layout")
	}
	return layout, nil
}

// RecordSize depends on the format read earlier in the same pass, so value
// record arrays are lazy-capable once the format is known.
func (cv *valueRecordConverter) RecordSize(r *ot.Reader) (int, bool) {
	if r == nil {
		return 0, false
	}
	layout, err := cv.layout(r.Local)
	if err != nil {
		return 0, false
	}
	for _, entry := range layout.entries {
		if entry.isDevice {
			// Device entries pull in sub-tables; not a flat record.
			return 0, false
		}
	}
	return layout.size(), true
}

func (cv *valueRecordConverter) Read(r *ot.Reader, c *Context, vals Values) (any, error) {
	layout, err := cv.layout(r.Local)
	if err != nil {
		return nil, err
	}
	return layout.read(r, c, cv.reg)
}

func (cv *valueRecordConverter) Write(w *ot.Writer, c *Context, vals Values, value any, repeatIndex int) error {
	layout, err := cv.layout(w.Local)
	if err != nil {
		return err
	}
	vr, ok := value.(*ValueRecord)
	if !ok {
		return errFormat(fmt.Sprintf("field %s: expected value record, have %T", cv.Name(), value))
	}
	return layout.write(w, c, vr)
}

func (cv *valueRecordConverter) ToXML(parent *Element, c *Context, value any, name string, attrs []Attr) error {
	vr, ok := value.(*ValueRecord)
	if !ok || vr == nil {
		parent.AppendComment(name + " is missing")
		return nil
	}
	e := parent.AppendChild(NewElement(name, attrs...))
	for _, entry := range valueRecordEntries {
		v, ok := vr.Entries[entry.name]
		if !ok || v == nil {
			continue
		}
		if entry.isDevice {
			t := v.(*Table)
			if err := t.ToXML(e, c, entry.name, nil); err != nil {
				return err
			}
		} else {
			e.SetAttr(entry.name, fmt.Sprintf("%d", v.(int)))
		}
	}
	return nil
}

func (cv *valueRecordConverter) FromXML(e *Element, c *Context) (any, error) {
	vr := NewValueRecord()
	for _, entry := range valueRecordEntries {
		if entry.isDevice {
			continue
		}
		if s, ok := e.Attr(entry.name); ok {
			n, err := parseIntAttr(s)
			if err != nil {
				return nil, err
			}
			vr.Entries[entry.name] = n
		}
	}
	for _, child := range e.Children {
		if child.isComment() {
			continue
		}
		def, err := cv.reg.Table("Device")
		if err != nil {
			return nil, err
		}
		t := NewTable(def)
		if err := t.FromXML(child, c); err != nil {
			return nil, err
		}
		vr.Entries[child.Name] = t
	}
	return vr, nil
}
