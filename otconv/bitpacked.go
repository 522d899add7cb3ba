package otconv

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/otfkit/otconv/ot"
)

// Bit-packed array fields. Each of these decodes to a plain []int; the
// packing parameters come from sibling fields of the enclosing table.

// --- Device deltas ----------------------------------------------------------

// deltaValueConverter packs the per-size deltas of a Device table into
// 16-bit words, MSB first. DeltaFormat selects 2-, 4- or 8-bit signed
// entries; any other format code aborts the conversion.
type deltaValueConverter struct {
	baseConverter
}

func newDeltaValueConverter(fs FieldSpec) *deltaValueConverter {
	return &deltaValueConverter{makeBase(fs)}
}

func (cv *deltaValueConverter) RecordSize(*ot.Reader) (int, bool) { return 0, false }

func deltaParams(vals Values) (items, bits int, err error) {
	startSize, _ := vals.Int("StartSize")
	endSize, _ := vals.Int("EndSize")
	format, _ := vals.Int("DeltaFormat")
	if format < 1 || format > 3 {
		return 0, 0, errFormat(fmt.Sprintf("illegal DeltaFormat %d", format))
	}
	return endSize - startSize + 1, 1 << format, nil
}

func (cv *deltaValueConverter) Read(r *ot.Reader, c *Context, vals Values) (any, error) {
	items, bits, err := deltaParams(vals)
	if err != nil {
		return nil, err
	}
	mask := (1 << bits) - 1
	signBit := 1 << (bits - 1)
	deltas := make([]int, 0, max(items, 0))
	word, shift := 0, 0
	for i := 0; i < items; i++ {
		if shift == 0 {
			n, err := r.ReadU16()
			if err != nil {
				return nil, err
			}
			word, shift = int(n), 16
		}
		shift -= bits
		v := (word >> shift) & mask
		if v&signBit != 0 {
			v -= mask + 1
		}
		deltas = append(deltas, v)
	}
	return deltas, nil
}

func (cv *deltaValueConverter) Write(w *ot.Writer, c *Context, vals Values, value any, repeatIndex int) error {
	_, bits, err := deltaParams(vals)
	if err != nil {
		return err
	}
	deltas, ok := value.([]int)
	if !ok {
		return errFormat(fmt.Sprintf("field %s: expected integer list, have %T", cv.Name(), value))
	}
	mask := (1 << bits) - 1
	word, shift := 0, 16
	for _, v := range deltas {
		shift -= bits
		word |= (v & mask) << shift
		if shift == 0 {
			w.WriteU16(uint16(word))
			word, shift = 0, 16
		}
	}
	if shift != 16 {
		w.WriteU16(uint16(word))
	}
	return nil
}

func (cv *deltaValueConverter) ToXML(parent *Element, c *Context, value any, name string, attrs []Attr) error {
	return intListToXML(parent, value, name, attrs)
}

func (cv *deltaValueConverter) FromXML(e *Element, c *Context) (any, error) {
	return intListFromXML(e)
}

// --- Variation index map ----------------------------------------------------

// varIdxMapConverter packs (outer, inner) variation indices into entries of
// 1 to 4 bytes, with the inner-index bit width taken from the EntryFormat
// field. The in-memory form is the combined 32-bit index, outer part in the
// upper half.
type varIdxMapConverter struct {
	baseConverter
}

func newVarIdxMapConverter(fs FieldSpec) *varIdxMapConverter {
	return &varIdxMapConverter{makeBase(fs)}
}

func (cv *varIdxMapConverter) RecordSize(*ot.Reader) (int, bool) { return 0, false }

func (cv *varIdxMapConverter) Read(r *ot.Reader, c *Context, vals Values) (any, error) {
	format, _ := vals.Int("EntryFormat")
	count, _ := vals.Int("MappingCount")
	innerBits := 1 + (format & 0x000F)
	innerMask := (1 << innerBits) - 1
	outerMask := 0xFFFFFFFF &^ innerMask
	outerShift := 16 - innerBits
	entrySize := 1 + ((format & 0x0030) >> 4)
	mapping := make([]int, 0, max(count, 0))
	for i := 0; i < count; i++ {
		raw, err := readInt(r, entrySize, false)
		if err != nil {
			return nil, err
		}
		mapping = append(mapping, ((raw&outerMask)<<outerShift)|(raw&innerMask))
	}
	return mapping, nil
}

func (cv *varIdxMapConverter) Write(w *ot.Writer, c *Context, vals Values, value any, repeatIndex int) error {
	format, _ := vals.Int("EntryFormat")
	mapping, ok := value.([]int)
	if !ok {
		return errFormat(fmt.Sprintf("field %s: expected integer list, have %T", cv.Name(), value))
	}
	vals["MappingCount"] = len(mapping)
	innerBits := 1 + (format & 0x000F)
	innerMask := (1 << innerBits) - 1
	outerShift := 16 - innerBits
	entrySize := 1 + ((format & 0x0030) >> 4)
	for _, idx := range mapping {
		writeInt(w, entrySize, ((idx&0xFFFF0000)>>outerShift)|(idx&innerMask))
	}
	return nil
}

func (cv *varIdxMapConverter) ToXML(parent *Element, c *Context, value any, name string, attrs []Attr) error {
	return intListToXML(parent, value, name, attrs)
}

func (cv *varIdxMapConverter) FromXML(e *Element, c *Context) (any, error) {
	return intListFromXML(e)
}

// --- Item variation data ----------------------------------------------------

// varDataConverter reads one delta-set row of an item variation data table.
// The first NumShorts deltas use the wide width, the rest the narrow width;
// bit 15 of NumShorts doubles both widths. Rows whose wide region exceeds
// the region count are zero-padded on output and truncated on input.
type varDataConverter struct {
	baseConverter
}

func newVarDataConverter(fs FieldSpec) *varDataConverter {
	return &varDataConverter{makeBase(fs)}
}

func (cv *varDataConverter) RecordSize(*ot.Reader) (int, bool) { return 0, false }

func varDataParams(vals Values) (regionCount, wordCount, wideSize, narrowSize int) {
	regionCount, _ = vals.Int("VarRegionCount")
	wordCount, _ = vals.Int("NumShorts")
	wideSize, narrowSize = 2, 1
	if wordCount&0x8000 != 0 {
		wideSize, narrowSize = 4, 2
	}
	wordCount &= 0x7FFF
	return regionCount, wordCount, wideSize, narrowSize
}

func (cv *varDataConverter) Read(r *ot.Reader, c *Context, vals Values) (any, error) {
	regionCount, wordCount, wideSize, narrowSize := varDataParams(vals)
	n1, n2 := min(regionCount, wordCount), max(regionCount, wordCount)
	deltas := make([]int, 0, n2)
	for i := 0; i < n1; i++ {
		v, err := readInt(r, wideSize, true)
		if err != nil {
			return nil, err
		}
		deltas = append(deltas, v)
	}
	for i := n1; i < n2; i++ {
		v, err := readInt(r, narrowSize, true)
		if err != nil {
			return nil, err
		}
		deltas = append(deltas, v)
	}
	if n2 > regionCount {
		deltas = deltas[:regionCount]
	}
	return deltas, nil
}

func (cv *varDataConverter) Write(w *ot.Writer, c *Context, vals Values, value any, repeatIndex int) error {
	regionCount, wordCount, wideSize, narrowSize := varDataParams(vals)
	deltas, ok := value.([]int)
	if !ok {
		return errFormat(fmt.Sprintf("field %s: expected integer list, have %T", cv.Name(), value))
	}
	n1, n2 := min(regionCount, wordCount), max(regionCount, wordCount)
	at := func(i int) int {
		if i < len(deltas) {
			return deltas[i]
		}
		return 0
	}
	for i := 0; i < n1; i++ {
		writeInt(w, wideSize, at(i))
	}
	for i := n1; i < regionCount; i++ {
		writeInt(w, narrowSize, at(i))
	}
	for i := regionCount; i < n2; i++ {
		writeInt(w, narrowSize, 0)
	}
	return nil
}

func (cv *varDataConverter) ToXML(parent *Element, c *Context, value any, name string, attrs []Attr) error {
	return intListToXML(parent, value, name, attrs)
}

func (cv *varDataConverter) FromXML(e *Element, c *Context) (any, error) {
	return intListFromXML(e)
}

// --- Shared list round trip -------------------------------------------------

func intListToXML(parent *Element, value any, name string, attrs []Attr) error {
	values, _ := value.([]int)
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	parent.AppendChild(NewElement(name, attrs...)).SetAttr("value", strings.Join(parts, " "))
	return nil
}

func intListFromXML(e *Element) (any, error) {
	s, ok := e.Attr("value")
	if !ok {
		return nil, errFormat("<" + e.Name + "> is missing attribute \"value\"")
	}
	fields := strings.Fields(s)
	values := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := parseIntAttr(f)
		if err != nil {
			return nil, err
		}
		values = append(values, n)
	}
	return values, nil
}
