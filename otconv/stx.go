package otconv

import (
	"fmt"
	"sort"
	"strings"

	"github.com/otfkit/otconv/ot"
)

// AAT extended state tables: a finite-state machine over glyph classes,
// stored as four (optionally five) individually 4-byte-aligned sections
// whose offsets are all measured from the start of the structure. The
// number of states is not stored; it falls out of the distance between the
// state array and the entry table. Neither is the length of the per-glyph
// lookup array; it is recovered by scanning every transition for the
// highest lookup index it references.

// AATState holds one state's outgoing transitions, one per glyph class.
type AATState struct {
	Transitions map[int]*Table
}

// AATStateTable is the in-memory form of an extended state table.
type AATStateTable struct {
	GlyphClassCount int
	GlyphClasses    map[string]int
	States          []*AATState
	PerGlyphLookups []map[string]any
}

// NewAATStateTable creates an empty state table.
func NewAATStateTable() *AATStateTable {
	return &AATStateTable{GlyphClasses: make(map[string]int)}
}

const (
	stxHeaderSize         = 16
	perGlyphLookupNone    = 0xFFFF
	perGlyphLookupPointer = 4
)

type stxConverter struct {
	baseConverter
	reg        *Registry
	targetName string
	// classLookup maps glyph → class index; perGlyphLookup, present only for
	// contextual transitions, maps glyph → replacement glyph.
	classLookup    *aatLookupConverter
	perGlyphLookup *aatLookupConverter
}

func newSTXConverter(reg *Registry, fs FieldSpec, param string) *stxConverter {
	cv := &stxConverter{
		baseConverter: makeBase(fs),
		reg:           reg,
		targetName:    param,
		classLookup:   mustLookupConverter(reg, "GlyphClasses", "uint16"),
	}
	if strings.Contains(param, "Contextual") {
		cv.perGlyphLookup = mustLookupConverter(reg, "PerGlyphLookup", "GlyphID")
	}
	return cv
}

func mustLookupConverter(reg *Registry, name, valueType string) *aatLookupConverter {
	spec := FieldSpec{Type: "AATLookup(" + valueType + ")", Name: name}
	conv, err := newAATLookupConverter(reg, spec, valueType)
	if err != nil {
		panic(err)
	}
	return conv.(*aatLookupConverter)
}

func (cv *stxConverter) target() (*TableDef, error) {
	return cv.reg.Table(cv.targetName)
}

func (cv *stxConverter) RecordSize(*ot.Reader) (int, bool) { return 0, false }

// --- Decode ----------------------------------------------------------------

func (cv *stxConverter) Read(r *ot.Reader, c *Context, vals Values) (any, error) {
	def, err := cv.target()
	if err != nil {
		return nil, err
	}
	transitionSize, ok := def.recordSize()
	if !ok {
		return nil, errFormat("transition record " + def.Name + " has no fixed size")
	}

	pos := r.Pos()
	glyphClassCount, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if glyphClassCount == 0 {
		return nil, errFormat("state table declares zero glyph classes")
	}
	classOffset, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	stateArrayOffset, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	entryTableOffset, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	perGlyphOffset := 0
	if cv.perGlyphLookup != nil {
		n, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		perGlyphOffset = int(n)
	}

	table := NewAATStateTable()
	table.GlyphClassCount = int(glyphClassCount)

	classReader := r.Copy()
	classReader.Seek(pos + int(classOffset))
	rawClasses, err := cv.classLookup.Read(classReader, c, Values{})
	if err != nil {
		return nil, err
	}
	for glyph, class := range rawClasses.(map[string]any) {
		table.GlyphClasses[glyph], _ = class.(int)
	}

	numStates := (int(entryTableOffset) - int(stateArrayOffset)) / (int(glyphClassCount) * 2)
	stateReader := r.Copy()
	stateReader.Seek(pos + int(stateArrayOffset))
	entryStart := pos + int(entryTableOffset)
	for stateIndex := 0; stateIndex < numStates; stateIndex++ {
		state := &AATState{Transitions: make(map[int]*Table, glyphClassCount)}
		for class := 0; class < int(glyphClassCount); class++ {
			entryIndex, err := stateReader.ReadU16()
			if err != nil {
				return nil, err
			}
			entryReader := r.Copy()
			entryReader.Seek(entryStart + int(entryIndex)*transitionSize)
			transition := NewTable(def)
			if err := transition.Decompile(entryReader, c); err != nil {
				return nil, err
			}
			state.Transitions[class] = transition
		}
		table.States = append(table.States, state)
	}

	if cv.perGlyphLookup != nil {
		lookups, err := cv.readPerGlyphLookups(r, c, table, pos+perGlyphOffset)
		if err != nil {
			return nil, err
		}
		table.PerGlyphLookups = lookups
	}
	return table, nil
}

// countPerGlyphLookups recovers the per-glyph lookup array length from the
// highest index any transition references.
func countPerGlyphLookups(table *AATStateTable) int {
	numLookups := 0
	for _, state := range table.States {
		for _, transition := range state.Transitions {
			for _, field := range []string{"MarkIndex", "CurrentIndex"} {
				if idx, ok := transition.Values().Int(field); ok && idx != perGlyphLookupNone && idx+1 > numLookups {
					numLookups = idx + 1
				}
			}
		}
	}
	return numLookups
}

func (cv *stxConverter) readPerGlyphLookups(r *ot.Reader, c *Context, table *AATStateTable, pos int) ([]map[string]any, error) {
	offsetReader := r.Copy()
	offsetReader.Seek(pos)
	count := countPerGlyphLookups(table)
	lookups := make([]map[string]any, 0, count)
	for i := 0; i < count; i++ {
		offset, err := offsetReader.ReadU32()
		if err != nil {
			return nil, err
		}
		lookupReader := r.Copy()
		lookupReader.Seek(pos + int(offset))
		mapping, err := cv.perGlyphLookup.Read(lookupReader, c, Values{})
		if err != nil {
			return nil, err
		}
		lookups = append(lookups, mapping.(map[string]any))
	}
	return lookups, nil
}

// --- Encode ----------------------------------------------------------------

func (cv *stxConverter) Write(w *ot.Writer, c *Context, vals Values, value any, repeatIndex int) error {
	table, ok := value.(*AATStateTable)
	if !ok {
		return errFormat(fmt.Sprintf("field %s: expected state table, have %T", cv.Name(), value))
	}
	def, err := cv.target()
	if err != nil {
		return err
	}
	transitionSize, ok := def.recordSize()
	if !ok {
		return errFormat("transition record " + def.Name + " has no fixed size")
	}

	glyphClassCount := 0
	classes := make(map[string]any, len(table.GlyphClasses))
	for glyph, class := range table.GlyphClasses {
		classes[glyph] = class
		if class+1 > glyphClassCount {
			glyphClassCount = class + 1
		}
	}

	classWriter := ot.NewWriter()
	if err := cv.classLookup.Write(classWriter, c, Values{}, classes, -1); err != nil {
		return err
	}
	classData, err := classWriter.Data()
	if err != nil {
		return err
	}
	classData = ot.Pad(classData, 4)

	stateArrayData, entryTableData, err := cv.compileStates(c, table.States, glyphClassCount, transitionSize)
	if err != nil {
		return err
	}

	headerSize := stxHeaderSize
	if cv.perGlyphLookup != nil {
		headerSize += perGlyphLookupPointer
	}
	classOffset := headerSize
	stateArrayOffset := classOffset + len(classData)
	entryTableOffset := stateArrayOffset + len(stateArrayData)
	perGlyphOffset := entryTableOffset + len(entryTableData)

	w.WriteU32(uint32(glyphClassCount))
	w.WriteU32(uint32(classOffset))
	w.WriteU32(uint32(stateArrayOffset))
	w.WriteU32(uint32(entryTableOffset))
	if cv.perGlyphLookup != nil {
		w.WriteU32(uint32(perGlyphOffset))
	}
	w.WriteData(classData)
	w.WriteData(stateArrayData)
	w.WriteData(entryTableData)

	if cv.perGlyphLookup != nil {
		perGlyphData, err := cv.compilePerGlyphLookups(c, table)
		if err != nil {
			return err
		}
		w.WriteData(perGlyphData)
	}
	return nil
}

// compileStates serializes the state array and the deduplicated entry
// table: byte-identical compiled transitions are stored once and referenced
// by the same index from every state/class cell.
func (cv *stxConverter) compileStates(c *Context, states []*AATState, glyphClassCount, transitionSize int) (stateArray, entryTable []byte, err error) {
	entryIndices := make(map[string]int)
	for _, state := range states {
		for class := 0; class < glyphClassCount; class++ {
			transition, ok := state.Transitions[class]
			if !ok {
				return nil, nil, errFormat(fmt.Sprintf(
					"state has no transition for glyph class %d; corrupt or inconsistent table object", class))
			}
			tw := ot.NewWriter()
			if err := transition.Compile(tw, c); err != nil {
				return nil, nil, err
			}
			data, err := tw.Data()
			if err != nil {
				return nil, nil, err
			}
			if len(data) != transitionSize {
				return nil, nil, errFormat(fmt.Sprintf(
					"transition compiled to %d bytes, record size is %d; corrupt or inconsistent table object",
					len(data), transitionSize))
			}
			index, seen := entryIndices[string(data)]
			if !seen {
				index = len(entryIndices)
				entryIndices[string(data)] = index
				entryTable = append(entryTable, data...)
			}
			stateArray = append(stateArray, byte(index>>8), byte(index))
		}
	}
	return ot.Pad(stateArray, 4), ot.Pad(entryTable, 4), nil
}

func (cv *stxConverter) compilePerGlyphLookups(c *Context, table *AATStateTable) ([]byte, error) {
	numLookups := countPerGlyphLookups(table)
	if len(table.PerGlyphLookups) != numLookups {
		return nil, errFormat(fmt.Sprintf(
			"%d per-glyph lookups, but transitions reference %d; corrupt or inconsistent table object",
			len(table.PerGlyphLookups), numLookups))
	}
	pgWriter := ot.NewWriter()
	for _, lookup := range table.PerGlyphLookups {
		lookupWriter := pgWriter.SubWriter()
		lookupWriter.Name = "PerGlyphLookup"
		lookupWriter.LongOffset = true
		if err := cv.perGlyphLookup.Write(lookupWriter, c, Values{}, lookup, -1); err != nil {
			return nil, err
		}
		pgWriter.WriteSubTable(lookupWriter)
	}
	data, err := pgWriter.Data()
	if err != nil {
		return nil, err
	}
	return ot.Pad(data, 4), nil
}

// --- Text round trip --------------------------------------------------------

func (cv *stxConverter) ToXML(parent *Element, c *Context, value any, name string, attrs []Attr) error {
	table, ok := value.(*AATStateTable)
	if !ok {
		parent.AppendComment(name + " is missing")
		return nil
	}
	e := parent.AppendChild(NewElement(name, attrs...))
	e.AppendComment(fmt.Sprintf("GlyphClassCount=%d", table.GlyphClassCount))

	glyphs := make([]string, 0, len(table.GlyphClasses))
	for glyph := range table.GlyphClasses {
		glyphs = append(glyphs, glyph)
	}
	sort.Strings(glyphs)
	for _, glyph := range glyphs {
		e.AppendChild(NewElement("GlyphClass",
			Attr{Name: "glyph", Value: glyph},
			Attr{Name: "value", Value: fmt.Sprintf("%d", table.GlyphClasses[glyph])}))
	}

	for stateIndex, state := range table.States {
		stateEl := e.AppendChild(NewElement("State",
			Attr{Name: "index", Value: fmt.Sprintf("%d", stateIndex)}))
		classes := make([]int, 0, len(state.Transitions))
		for class := range state.Transitions {
			classes = append(classes, class)
		}
		sort.Ints(classes)
		for _, class := range classes {
			err := state.Transitions[class].ToXML(stateEl, c, "Transition",
				[]Attr{{Name: "onGlyphClass", Value: fmt.Sprintf("%d", class)}})
			if err != nil {
				return err
			}
		}
	}

	for i, lookup := range table.PerGlyphLookups {
		lookupEl := e.AppendChild(NewElement("PerGlyphLookup",
			Attr{Name: "index", Value: fmt.Sprintf("%d", i)}))
		names := make([]string, 0, len(lookup))
		for glyph := range lookup {
			names = append(names, glyph)
		}
		sort.Strings(names)
		for _, glyph := range names {
			v, _ := lookup[glyph].(string)
			lookupEl.AppendChild(NewElement("Lookup",
				Attr{Name: "glyph", Value: glyph},
				Attr{Name: "value", Value: v}))
		}
	}
	return nil
}

func (cv *stxConverter) FromXML(e *Element, c *Context) (any, error) {
	def, err := cv.target()
	if err != nil {
		return nil, err
	}
	table := NewAATStateTable()
	for _, child := range e.Children {
		switch {
		case child.isComment():
		case child.Name == "GlyphClass":
			glyph, ok := child.Attr("glyph")
			if !ok {
				return nil, errFormat("<GlyphClass> is missing attribute \"glyph\"")
			}
			class, err := child.IntAttr("value")
			if err != nil {
				return nil, err
			}
			table.GlyphClasses[glyph] = class
			if class+1 > table.GlyphClassCount {
				table.GlyphClassCount = class + 1
			}
		case child.Name == "State":
			state := &AATState{Transitions: make(map[int]*Table)}
			for _, tr := range child.Children {
				if tr.isComment() || tr.Name != "Transition" {
					continue
				}
				class, err := tr.IntAttr("onGlyphClass")
				if err != nil {
					return nil, err
				}
				transition := NewTable(def)
				if err := transition.FromXML(tr, c); err != nil {
					return nil, err
				}
				state.Transitions[class] = transition
			}
			table.States = append(table.States, state)
		case child.Name == "PerGlyphLookup":
			lookup := make(map[string]any)
			for _, le := range child.Children {
				if le.isComment() || le.Name != "Lookup" {
					continue
				}
				glyph, ok := le.Attr("glyph")
				if !ok {
					return nil, errFormat("<Lookup> is missing attribute \"glyph\"")
				}
				v, ok := le.Attr("value")
				if !ok {
					return nil, errFormat("<Lookup> is missing attribute \"value\"")
				}
				lookup[glyph] = v
			}
			table.PerGlyphLookups = append(table.PerGlyphLookups, lookup)
		}
	}
	return table, nil
}
