package otconv

import (
	"fmt"
	"sort"

	"github.com/otfkit/otconv/ot"
)

// AAT lookup tables: a glyph→value mapping serialized in one of five
// on-disk formats. The in-memory form is format-agnostic; encoding computes
// the exact byte size of every structurally valid format and emits the
// smallest one, breaking ties by the lowest format number, so re-encoding
// the same mapping is deterministic.
//
// Format 4 stores per-run offsets to value sub-arrays and is decoded but
// never chosen as an encode target; its extra indirection is rarely optimal.

const binSearchHeaderSize = 10

// aatLookupConverter handles the five lookup formats for one value type.
type aatLookupConverter struct {
	baseConverter
	reg       *Registry
	valueConv Converter
}

func newAATLookupConverter(reg *Registry, fs FieldSpec, param string) (Converter, error) {
	valueConv, err := buildLookupValueConverter(reg, fs, param)
	if err != nil {
		return nil, err
	}
	return &aatLookupConverter{baseConverter: makeBase(fs), reg: reg, valueConv: valueConv}, nil
}

// buildLookupValueConverter binds the per-glyph value converter. Scalar
// value types are stored inline; a table-typed value is reached through a
// 16-bit offset.
func buildLookupValueConverter(reg *Registry, fs FieldSpec, param string) (Converter, error) {
	if param == "" {
		return nil, errFormat("field " + fs.Name + ": lookup needs a value type parameter")
	}
	spec := FieldSpec{Type: param, Name: "Value"}
	conv, err := reg.buildConverter(spec)
	if err != nil {
		return nil, err
	}
	if sc, ok := conv.(*structConverter); ok {
		return newOffsetConverter(reg, spec, sc.targetName, false), nil
	}
	return conv, nil
}

func (cv *aatLookupConverter) RecordSize(*ot.Reader) (int, bool) { return 0, false }

func (cv *aatLookupConverter) valueSize() (int, error) {
	n, ok := staticSizeOf(cv.valueConv)
	if !ok {
		return 0, errFormat("field " + cv.Name() + ": lookup values have no fixed size")
	}
	return n, nil
}

// readValues decodes count consecutive values at the cursor.
func (cv *aatLookupConverter) readValues(r *ot.Reader, c *Context, count int) ([]any, error) {
	if ar, ok := cv.valueConv.(arrayReader); ok {
		seq, err := ar.ReadArray(r, c, Values{}, count)
		if err != nil {
			return nil, err
		}
		return seq.Slice(0, seq.Len())
	}
	values := make([]any, 0, count)
	for i := 0; i < count; i++ {
		v, err := cv.valueConv.Read(r, c, Values{})
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// --- Decode ----------------------------------------------------------------

func (cv *aatLookupConverter) Read(r *ot.Reader, c *Context, vals Values) (any, error) {
	pos := r.Pos()
	format, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	switch format {
	case 0:
		return cv.readFormat0(r, c)
	case 2:
		return cv.readFormat2(r, c, pos)
	case 4:
		return cv.readFormat4(r, c, pos)
	case 6:
		return cv.readFormat6(r, c, pos)
	case 8:
		return cv.readFormat8(r, c)
	}
	return nil, errFormat(fmt.Sprintf("unsupported lookup format %d", format))
}

func (cv *aatLookupConverter) readFormat0(r *ot.Reader, c *Context) (map[string]any, error) {
	numGlyphs := c.Glyphs.NumGlyphs()
	values, err := cv.readValues(r, c, numGlyphs)
	if err != nil {
		return nil, err
	}
	mapping := make(map[string]any, numGlyphs)
	for gid, v := range values {
		mapping[c.Glyphs.GlyphName(ot.GlyphIndex(gid))] = v
	}
	return mapping, nil
}

func (cv *aatLookupConverter) readFormat2(r *ot.Reader, c *Context, pos int) (map[string]any, error) {
	unitSize, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	numUnits, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	if vs, err := cv.valueSize(); err == nil && int(unitSize) < 4+vs {
		return nil, errFormat(fmt.Sprintf("lookup format 2 unit size %d too small", unitSize))
	}
	mapping := make(map[string]any)
	for i := 0; i < int(numUnits); i++ {
		r.Seek(pos + 2 + binSearchHeaderSize + i*int(unitSize))
		last, err := r.ReadU16()
		if err != nil {
			return nil, err
		}
		first, err := r.ReadU16()
		if err != nil {
			return nil, err
		}
		value, err := cv.valueConv.Read(r, c, Values{})
		if err != nil {
			return nil, err
		}
		if last == 0xFFFF {
			continue // sentinel terminator
		}
		for k := int(first); k <= int(last); k++ {
			mapping[c.Glyphs.GlyphName(ot.GlyphIndex(k))] = value
		}
	}
	return mapping, nil
}

func (cv *aatLookupConverter) readFormat4(r *ot.Reader, c *Context, pos int) (map[string]any, error) {
	unitSize, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	if unitSize < 6 {
		return nil, errFormat(fmt.Sprintf("lookup format 4 unit size %d too small", unitSize))
	}
	numUnits, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	mapping := make(map[string]any)
	for i := 0; i < int(numUnits); i++ {
		r.Seek(pos + 2 + binSearchHeaderSize + i*int(unitSize))
		last, err := r.ReadU16()
		if err != nil {
			return nil, err
		}
		first, err := r.ReadU16()
		if err != nil {
			return nil, err
		}
		offset, err := r.ReadU16()
		if err != nil {
			return nil, err
		}
		if last == 0xFFFF {
			continue
		}
		// The unit's offset points at a per-glyph value sub-array, measured
		// from the start of the lookup table.
		sub := r.Copy()
		sub.Seek(pos + int(offset))
		values, err := cv.readValues(sub, c, int(last)-int(first)+1)
		if err != nil {
			return nil, err
		}
		for k, v := range values {
			mapping[c.Glyphs.GlyphName(ot.GlyphIndex(int(first)+k))] = v
		}
	}
	return mapping, nil
}

func (cv *aatLookupConverter) readFormat6(r *ot.Reader, c *Context, pos int) (map[string]any, error) {
	unitSize, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	numUnits, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	if vs, err := cv.valueSize(); err == nil && int(unitSize) < 2+vs {
		return nil, errFormat(fmt.Sprintf("lookup format 6 unit size %d too small", unitSize))
	}
	mapping := make(map[string]any)
	for i := 0; i < int(numUnits); i++ {
		r.Seek(pos + 2 + binSearchHeaderSize + i*int(unitSize))
		gid, err := r.ReadU16()
		if err != nil {
			return nil, err
		}
		value, err := cv.valueConv.Read(r, c, Values{})
		if err != nil {
			return nil, err
		}
		if gid == 0xFFFF {
			continue
		}
		mapping[c.Glyphs.GlyphName(ot.GlyphIndex(gid))] = value
	}
	return mapping, nil
}

func (cv *aatLookupConverter) readFormat8(r *ot.Reader, c *Context) (map[string]any, error) {
	first, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	count, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	values, err := cv.readValues(r, c, int(count))
	if err != nil {
		return nil, err
	}
	mapping := make(map[string]any, count)
	for k, v := range values {
		mapping[c.Glyphs.GlyphName(ot.GlyphIndex(int(first)+k))] = v
	}
	return mapping, nil
}

// --- Encode ----------------------------------------------------------------

type glyphValue struct {
	gid   int
	name  string
	value any
}

// sortedEntries resolves the mapping's glyph names and orders the entries
// by glyph ID.
func (cv *aatLookupConverter) sortedEntries(c *Context, mapping map[string]any) ([]glyphValue, error) {
	entries := make([]glyphValue, 0, len(mapping))
	for name, value := range mapping {
		gid, err := c.Glyphs.GlyphID(name)
		if err != nil {
			return nil, err
		}
		entries = append(entries, glyphValue{gid: int(gid), name: name, value: value})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].gid < entries[j].gid })
	return entries, nil
}

// lookupCandidate is one structurally valid encoding of a mapping, with its
// exact byte size computed up front.
type lookupCandidate struct {
	size   int
	format int
	emit   func() error
}

func (cv *aatLookupConverter) Write(w *ot.Writer, c *Context, vals Values, value any, repeatIndex int) error {
	mapping, ok := value.(map[string]any)
	if !ok {
		return errFormat(fmt.Sprintf("field %s: expected glyph mapping, have %T", cv.Name(), value))
	}
	entries, err := cv.sortedEntries(c, mapping)
	if err != nil {
		return err
	}
	valueSize, err := cv.valueSize()
	if err != nil {
		return err
	}

	var candidates []lookupCandidate
	add := func(cand *lookupCandidate) {
		if cand != nil {
			candidates = append(candidates, *cand)
		}
	}
	add(cv.buildFormat0(w, c, vals, entries, valueSize))
	add(cv.buildFormat2(w, c, vals, entries, valueSize))
	add(cv.buildFormat6(w, c, vals, entries, valueSize))
	add(cv.buildFormat8(w, c, vals, entries, valueSize))

	best := candidates[0]
	for _, cand := range candidates[1:] {
		if cand.size < best.size || (cand.size == best.size && cand.format < best.format) {
			best = cand
		}
	}

	before := w.DataLength()
	if err := best.emit(); err != nil {
		return err
	}
	if got := w.DataLength() - before; got != best.size {
		return errFormat(fmt.Sprintf("lookup format %d: predicted %d bytes, emitted %d",
			best.format, best.size, got))
	}
	return nil
}

func writeBinSearchHeader(w *ot.Writer, numUnits, unitSize int) {
	w.WriteU16(uint16(unitSize))
	w.WriteU16(uint16(numUnits))
	searchRange, entrySelector, rangeShift := ot.SearchRange(numUnits, unitSize)
	w.WriteU16(uint16(searchRange))
	w.WriteU16(uint16(entrySelector))
	w.WriteU16(uint16(rangeShift))
}

func (cv *aatLookupConverter) buildFormat0(w *ot.Writer, c *Context, vals Values,
	entries []glyphValue, valueSize int) *lookupCandidate {

	numGlyphs := c.Glyphs.NumGlyphs()
	if len(entries) != numGlyphs {
		return nil
	}
	return &lookupCandidate{
		size:   2 + numGlyphs*valueSize,
		format: 0,
		emit: func() error {
			w.WriteU16(0)
			for _, e := range entries {
				if err := cv.valueConv.Write(w, c, vals, e.value, -1); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

type lookupSegment struct {
	first, last int
	value       any
}

func (cv *aatLookupConverter) buildFormat2(w *ot.Writer, c *Context, vals Values,
	entries []glyphValue, valueSize int) *lookupCandidate {

	if len(entries) == 0 {
		return nil
	}
	var segments []lookupSegment
	seg := lookupSegment{first: entries[0].gid, last: entries[0].gid, value: entries[0].value}
	for _, e := range entries[1:] {
		if e.gid == seg.last+1 && e.value == seg.value {
			seg.last = e.gid
		} else {
			segments = append(segments, seg)
			seg = lookupSegment{first: e.gid, last: e.gid, value: e.value}
		}
	}
	segments = append(segments, seg)

	unitSize := valueSize + 4
	return &lookupCandidate{
		size:   2 + binSearchHeaderSize + (len(segments)+1)*unitSize,
		format: 2,
		emit: func() error {
			w.WriteU16(2)
			writeBinSearchHeader(w, len(segments), unitSize)
			for _, s := range segments {
				w.WriteU16(uint16(s.last))
				w.WriteU16(uint16(s.first))
				if err := cv.valueConv.Write(w, c, vals, s.value, -1); err != nil {
					return err
				}
			}
			w.WriteU16(0xFFFF)
			w.WriteU16(0xFFFF)
			w.WriteData(make([]byte, valueSize))
			return nil
		},
	}
}

func (cv *aatLookupConverter) buildFormat6(w *ot.Writer, c *Context, vals Values,
	entries []glyphValue, valueSize int) *lookupCandidate {

	unitSize := valueSize + 2
	return &lookupCandidate{
		size:   2 + binSearchHeaderSize + (len(entries)+1)*unitSize,
		format: 6,
		emit: func() error {
			w.WriteU16(6)
			writeBinSearchHeader(w, len(entries), unitSize)
			for _, e := range entries {
				w.WriteU16(uint16(e.gid))
				if err := cv.valueConv.Write(w, c, vals, e.value, -1); err != nil {
					return err
				}
			}
			w.WriteU16(0xFFFF)
			w.WriteData(make([]byte, valueSize))
			return nil
		},
	}
}

func (cv *aatLookupConverter) buildFormat8(w *ot.Writer, c *Context, vals Values,
	entries []glyphValue, valueSize int) *lookupCandidate {

	if len(entries) == 0 {
		return nil
	}
	first, last := entries[0].gid, entries[len(entries)-1].gid
	if len(entries) != last-first+1 {
		return nil
	}
	return &lookupCandidate{
		size:   6 + len(entries)*valueSize,
		format: 8,
		emit: func() error {
			w.WriteU16(8)
			w.WriteU16(uint16(first))
			w.WriteU16(uint16(len(entries)))
			for _, e := range entries {
				if err := cv.valueConv.Write(w, c, vals, e.value, -1); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// --- Text round trip --------------------------------------------------------

func (cv *aatLookupConverter) ToXML(parent *Element, c *Context, value any, name string, attrs []Attr) error {
	mapping, ok := value.(map[string]any)
	if !ok {
		parent.AppendComment(name + " is missing")
		return nil
	}
	e := parent.AppendChild(NewElement(name, attrs...))
	glyphs := make([]string, 0, len(mapping))
	for glyph := range mapping {
		glyphs = append(glyphs, glyph)
	}
	sort.Strings(glyphs)
	for _, glyph := range glyphs {
		entryAttrs := []Attr{{Name: "glyph", Value: glyph}}
		if err := cv.valueConv.ToXML(e, c, mapping[glyph], "Lookup", entryAttrs); err != nil {
			return err
		}
	}
	return nil
}

func (cv *aatLookupConverter) FromXML(e *Element, c *Context) (any, error) {
	mapping := make(map[string]any)
	for _, child := range e.Children {
		if child.isComment() || child.Name != "Lookup" {
			continue
		}
		glyph, ok := child.Attr("glyph")
		if !ok {
			return nil, errFormat("<Lookup> is missing attribute \"glyph\"")
		}
		v, err := cv.valueConv.FromXML(child, c)
		if err != nil {
			return nil, err
		}
		mapping[glyph] = v
	}
	return mapping, nil
}

// --- Lookup with separate data table ----------------------------------------

// aatLookupWithDataOffsetConverter handles the 'ankr' layout: a 32-bit
// offset to a lookup table whose values are 16-bit offsets into a separate
// data table, itself reached through a second 32-bit offset. Offsets inside
// the lookup are relative to the data table, so the data table's content is
// assembled by hand, with identical value tables stored once.
type aatLookupWithDataOffsetConverter struct {
	baseConverter
	reg        *Registry
	targetName string
	offsets    *aatLookupConverter
}

func newAATLookupWithDataOffsetConverter(reg *Registry, fs FieldSpec, param string) *aatLookupWithDataOffsetConverter {
	offsetSpec := FieldSpec{Type: "uint16", Name: "DataOffsets"}
	return &aatLookupWithDataOffsetConverter{
		baseConverter: makeBase(fs),
		reg:           reg,
		targetName:    param,
		offsets: &aatLookupConverter{
			baseConverter: makeBase(offsetSpec),
			reg:           reg,
			valueConv:     newIntConverter(offsetSpec, 2, false),
		},
	}
}

func (cv *aatLookupWithDataOffsetConverter) RecordSize(*ot.Reader) (int, bool) { return 8, true }

func (cv *aatLookupWithDataOffsetConverter) Read(r *ot.Reader, c *Context, vals Values) (any, error) {
	lookupOffset, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	dataOffset, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	def, err := cv.reg.Table(cv.targetName)
	if err != nil {
		return nil, err
	}
	offsets, err := cv.offsets.Read(r.SubReader(int(lookupOffset)), c, Values{})
	if err != nil {
		return nil, err
	}
	mapping := make(map[string]any)
	for glyph, v := range offsets.(map[string]any) {
		offset, _ := v.(int)
		t := NewTable(def)
		if err := t.Decompile(r.SubReader(int(dataOffset)+offset), c); err != nil {
			return nil, err
		}
		mapping[glyph] = t
	}
	return mapping, nil
}

func (cv *aatLookupWithDataOffsetConverter) Write(w *ot.Writer, c *Context, vals Values, value any, repeatIndex int) error {
	mapping, ok := value.(map[string]any)
	if !ok {
		return errFormat(fmt.Sprintf("field %s: expected glyph mapping, have %T", cv.Name(), value))
	}
	entries, err := cv.offsets.sortedEntries(c, mapping)
	if err != nil {
		return err
	}

	// Compile every value table standalone and deduplicate by content; the
	// lookup's values become offsets into the concatenated data block.
	offsetByData := make(map[string]int)
	var blocks [][]byte
	dataLen := 0
	offsets := make(map[string]any, len(entries))
	for _, e := range entries {
		t, ok := e.value.(*Table)
		if !ok {
			return errFormat(fmt.Sprintf("field %s: expected table for glyph %s, have %T",
				cv.Name(), e.name, e.value))
		}
		sub := ot.NewWriter()
		if err := t.Compile(sub, c); err != nil {
			return err
		}
		data, err := sub.Data()
		if err != nil {
			return err
		}
		offset, seen := offsetByData[string(data)]
		if !seen {
			offset = dataLen
			dataLen += len(data)
			offsetByData[string(data)] = offset
			blocks = append(blocks, data)
		}
		offsets[e.name] = offset
	}

	lookupWriter := w.SubWriter()
	lookupWriter.Name = "DataOffsets"
	lookupWriter.LongOffset = true
	if err := cv.offsets.Write(lookupWriter, c, vals, offsets, -1); err != nil {
		return err
	}
	dataWriter := w.SubWriter()
	dataWriter.Name = cv.Name()
	dataWriter.LongOffset = true
	for _, data := range blocks {
		dataWriter.WriteData(data)
	}
	w.WriteSubTable(lookupWriter)
	w.WriteSubTable(dataWriter)
	return nil
}

func (cv *aatLookupWithDataOffsetConverter) ToXML(parent *Element, c *Context, value any, name string, attrs []Attr) error {
	mapping, ok := value.(map[string]any)
	if !ok {
		parent.AppendComment(name + " is missing")
		return nil
	}
	e := parent.AppendChild(NewElement(name, attrs...))
	glyphs := make([]string, 0, len(mapping))
	for glyph := range mapping {
		glyphs = append(glyphs, glyph)
	}
	sort.Strings(glyphs)
	for _, glyph := range glyphs {
		t, ok := mapping[glyph].(*Table)
		if !ok {
			return errFormat(fmt.Sprintf("field %s: expected table for glyph %s", cv.Name(), glyph))
		}
		if err := t.ToXML(e, c, "Lookup", []Attr{{Name: "glyph", Value: glyph}}); err != nil {
			return err
		}
	}
	return nil
}

func (cv *aatLookupWithDataOffsetConverter) FromXML(e *Element, c *Context) (any, error) {
	def, err := cv.reg.Table(cv.targetName)
	if err != nil {
		return nil, err
	}
	mapping := make(map[string]any)
	for _, child := range e.Children {
		if child.isComment() || child.Name != "Lookup" {
			continue
		}
		glyph, ok := child.Attr("glyph")
		if !ok {
			return nil, errFormat("<Lookup> is missing attribute \"glyph\"")
		}
		t := NewTable(def)
		if err := t.FromXML(child, c); err != nil {
			return nil, err
		}
		mapping[glyph] = t
	}
	return mapping, nil
}

// --- CID maps ---------------------------------------------------------------

// cidGlyphMapConverter is a count-prefixed uint16 array mapping CIDs to
// glyphs; 0xFFFF marks an unmapped CID. In memory: map[int]string.
type cidGlyphMapConverter struct {
	baseConverter
}

func newCIDGlyphMapConverter(fs FieldSpec) *cidGlyphMapConverter {
	return &cidGlyphMapConverter{makeBase(fs)}
}

func (cv *cidGlyphMapConverter) RecordSize(*ot.Reader) (int, bool) { return 0, false }

func (cv *cidGlyphMapConverter) Read(r *ot.Reader, c *Context, vals Values) (any, error) {
	numCIDs, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	var gids []uint16
	if numCIDs > 0 {
		gids, err = r.ReadU16Array(int(numCIDs))
		if err != nil {
			return nil, err
		}
	}
	mapping := make(map[int]string)
	for cid, gid := range gids {
		if gid != 0xFFFF {
			mapping[cid] = c.Glyphs.GlyphName(ot.GlyphIndex(gid))
		}
	}
	return mapping, nil
}

func (cv *cidGlyphMapConverter) Write(w *ot.Writer, c *Context, vals Values, value any, repeatIndex int) error {
	mapping, ok := value.(map[int]string)
	if !ok {
		return errFormat(fmt.Sprintf("field %s: expected CID mapping, have %T", cv.Name(), value))
	}
	count := 0
	gids := make(map[int]uint16, len(mapping))
	for cid, glyph := range mapping {
		gid, err := c.Glyphs.GlyphID(glyph)
		if err != nil {
			return err
		}
		gids[cid] = uint16(gid)
		if cid+1 > count {
			count = cid + 1
		}
	}
	w.WriteU16(uint16(count))
	for cid := 0; cid < count; cid++ {
		if gid, ok := gids[cid]; ok {
			w.WriteU16(gid)
		} else {
			w.WriteU16(0xFFFF)
		}
	}
	return nil
}

func (cv *cidGlyphMapConverter) ToXML(parent *Element, c *Context, value any, name string, attrs []Attr) error {
	mapping, _ := value.(map[int]string)
	e := parent.AppendChild(NewElement(name, attrs...))
	cids := make([]int, 0, len(mapping))
	for cid := range mapping {
		cids = append(cids, cid)
	}
	sort.Ints(cids)
	for _, cid := range cids {
		e.AppendChild(NewElement("CID",
			Attr{Name: "cid", Value: fmt.Sprintf("%d", cid)},
			Attr{Name: "glyph", Value: mapping[cid]}))
	}
	return nil
}

func (cv *cidGlyphMapConverter) FromXML(e *Element, c *Context) (any, error) {
	mapping := make(map[int]string)
	for _, child := range e.Children {
		if child.isComment() || child.Name != "CID" {
			continue
		}
		cid, err := child.IntAttr("cid")
		if err != nil {
			return nil, err
		}
		glyph, ok := child.Attr("glyph")
		if !ok {
			return nil, errFormat("<CID> is missing attribute \"glyph\"")
		}
		mapping[cid] = glyph
	}
	return mapping, nil
}

// glyphCIDMapConverter is the inverse direction: a count-prefixed uint16
// array indexed by glyph ID, holding CIDs; 0xFFFF marks an unmapped glyph.
// In memory: map[string]int. Entries beyond the font's glyph count are
// dropped with a warning.
type glyphCIDMapConverter struct {
	baseConverter
}

func newGlyphCIDMapConverter(fs FieldSpec) *glyphCIDMapConverter {
	return &glyphCIDMapConverter{makeBase(fs)}
}

func (cv *glyphCIDMapConverter) RecordSize(*ot.Reader) (int, bool) { return 0, false }

func (cv *glyphCIDMapConverter) Read(r *ot.Reader, c *Context, vals Values) (any, error) {
	count, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	var cids []uint16
	if count > 0 {
		cids, err = r.ReadU16Array(int(count))
		if err != nil {
			return nil, err
		}
	}
	order := c.Glyphs.GlyphOrder()
	if int(count) > len(order) {
		c.warn("", cv.Name(), "mapping has %d elements, but the font has only %d glyphs; ignoring the rest",
			count, len(order))
	}
	mapping := make(map[string]int)
	for gid := 0; gid < min(len(cids), len(order)); gid++ {
		if cids[gid] != 0xFFFF {
			mapping[order[gid]] = int(cids[gid])
		}
	}
	return mapping, nil
}

func (cv *glyphCIDMapConverter) Write(w *ot.Writer, c *Context, vals Values, value any, repeatIndex int) error {
	mapping, ok := value.(map[string]int)
	if !ok {
		return errFormat(fmt.Sprintf("field %s: expected glyph mapping, have %T", cv.Name(), value))
	}
	count := 0
	cids := make(map[int]uint16, len(mapping))
	for glyph, cid := range mapping {
		gid, err := c.Glyphs.GlyphID(glyph)
		if err != nil {
			return err
		}
		cids[int(gid)] = uint16(cid)
		if int(gid)+1 > count {
			count = int(gid) + 1
		}
	}
	w.WriteU16(uint16(count))
	for gid := 0; gid < count; gid++ {
		if cid, ok := cids[gid]; ok {
			w.WriteU16(cid)
		} else {
			w.WriteU16(0xFFFF)
		}
	}
	return nil
}

func (cv *glyphCIDMapConverter) ToXML(parent *Element, c *Context, value any, name string, attrs []Attr) error {
	mapping, _ := value.(map[string]int)
	e := parent.AppendChild(NewElement(name, attrs...))
	glyphs := make([]string, 0, len(mapping))
	for glyph := range mapping {
		glyphs = append(glyphs, glyph)
	}
	sort.Strings(glyphs)
	for _, glyph := range glyphs {
		e.AppendChild(NewElement("CID",
			Attr{Name: "glyph", Value: glyph},
			Attr{Name: "value", Value: fmt.Sprintf("%d", mapping[glyph])}))
	}
	return nil
}

func (cv *glyphCIDMapConverter) FromXML(e *Element, c *Context) (any, error) {
	mapping := make(map[string]int)
	for _, child := range e.Children {
		if child.isComment() || child.Name != "CID" {
			continue
		}
		glyph, ok := child.Attr("glyph")
		if !ok {
			return nil, errFormat("<CID> is missing attribute \"glyph\"")
		}
		cid, err := child.IntAttr("value")
		if err != nil {
			return nil, err
		}
		mapping[glyph] = cid
	}
	return mapping, nil
}
