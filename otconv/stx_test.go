package otconv

import (
	"bytes"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/otfkit/otconv/internal/testutil"
	"github.com/otfkit/otconv/ot"
)

func rearrangementRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	reg.MustDefine(&TableDef{
		Name: "RearrangementAction",
		Fields: []FieldSpec{
			{Type: "uint16", Name: "NewState"},
			{Type: "uint16", Name: "Flags"},
		},
	})
	reg.MustDefine(&TableDef{
		Name:   "RearrangementSubtable",
		Fields: []FieldSpec{{Type: "STXHeader(RearrangementAction)", Name: "StateTable"}},
	})
	return reg
}

func contextualRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	reg.MustDefine(&TableDef{
		Name: "ContextualAction",
		Fields: []FieldSpec{
			{Type: "uint16", Name: "NewState"},
			{Type: "uint16", Name: "Flags"},
			{Type: "uint16", Name: "MarkIndex"},
			{Type: "uint16", Name: "CurrentIndex"},
		},
	})
	reg.MustDefine(&TableDef{
		Name:   "ContextualSubtable",
		Fields: []FieldSpec{{Type: "STXHeader(ContextualAction)", Name: "StateTable"}},
	})
	return reg
}

func rearrangementAction(t *testing.T, reg *Registry, newState, flags int) *Table {
	t.Helper()
	def, _ := reg.Table("RearrangementAction")
	action := NewTable(def)
	action.Set("NewState", newState)
	action.Set("Flags", flags)
	return action
}

func rearrangementFixture(t *testing.T, reg *Registry) *AATStateTable {
	t.Helper()
	table := NewAATStateTable()
	table.GlyphClasses = map[string]int{"g1": 4, "g2": 5}
	for state := 0; state < 2; state++ {
		st := &AATState{Transitions: make(map[int]*Table)}
		for class := 0; class < 6; class++ {
			if state == 1 && class == 5 {
				st.Transitions[class] = rearrangementAction(t, reg, 1, 0x8000)
			} else {
				st.Transitions[class] = rearrangementAction(t, reg, 0, 0)
			}
		}
		table.States = append(table.States, st)
	}
	return table
}

// rearrangementData is the serialized form of rearrangementFixture: four
// 4-byte-aligned sections, all offsets measured from the structure start.
func rearrangementData() []byte {
	return testutil.NewBuf().
		U32(6).          // glyph class count
		U32(0x10).       // class table offset
		U32(0x1C).       // state array offset
		U32(0x34).       // entry table offset
		// class lookup, format 8, padded to 4
		U16(8).U16(1).U16(2).U16(4).U16(5).Zero(2).
		// state array: 2 states x 6 classes
		Zero(22).U16(1).
		// entry table: 2 deduplicated transitions
		U16(0).U16(0).
		U16(1).U16(0x8000).
		Bytes()
}

func TestStateTableEncoding(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfkit.otconv")
	defer teardown()
	//
	reg := rearrangementRegistry(t)
	def, _ := reg.Table("RearrangementSubtable")
	c := newTestContext(8)
	tbl := NewTable(def)
	tbl.Set("StateTable", rearrangementFixture(t, reg))
	out := compileTable(t, tbl, c)
	// 12 state/class cells, but only 2 distinct transitions in the entry table
	if want := rearrangementData(); !bytes.Equal(out, want) {
		t.Errorf("state table encoding mismatch:\nwant % x\nhave % x", want, out)
	}
}

func TestStateTableDecoding(t *testing.T) {
	reg := rearrangementRegistry(t)
	def, _ := reg.Table("RearrangementSubtable")
	c := newTestContext(8)
	data := rearrangementData()
	tbl := decompileTable(t, def, data, c)
	v, _ := tbl.Get("StateTable")
	st := v.(*AATStateTable)
	if st.GlyphClassCount != 6 {
		t.Fatalf("expected 6 glyph classes, have %d", st.GlyphClassCount)
	}
	if st.GlyphClasses["g2"] != 5 {
		t.Errorf("expected glyph g2 in class 5, have %d", st.GlyphClasses["g2"])
	}
	// the number of states is recovered from the section distances
	if len(st.States) != 2 {
		t.Fatalf("expected 2 states, have %d", len(st.States))
	}
	if n := fieldInt(t, st.States[1].Transitions[5], "Flags"); n != 0x8000 {
		t.Errorf("expected transition flags 0x8000, have %#x", n)
	}
	if out := compileTable(t, tbl, c); !bytes.Equal(out, data) {
		t.Errorf("re-encoding changed the bytes:\nin:  % x\nout: % x", data, out)
	}
}

func TestStateTableXMLRoundTrip(t *testing.T) {
	reg := rearrangementRegistry(t)
	def, _ := reg.Table("RearrangementSubtable")
	c := newTestContext(8)
	data := rearrangementData()
	tbl := decompileTable(t, def, data, c)
	fresh := xmlRoundTrip(t, def, tbl, c)
	if out := compileTable(t, fresh, c); !bytes.Equal(out, data) {
		t.Errorf("XML round trip changed the bytes:\nin:  % x\nout: % x", data, out)
	}
}

func contextualFixture(t *testing.T, reg *Registry) *AATStateTable {
	t.Helper()
	def, _ := reg.Table("ContextualAction")
	action := func(current int) *Table {
		a := NewTable(def)
		a.Set("NewState", 0)
		a.Set("Flags", 0)
		a.Set("MarkIndex", 0xFFFF)
		a.Set("CurrentIndex", current)
		return a
	}
	table := NewAATStateTable()
	table.GlyphClasses = map[string]int{"g1": 1}
	table.States = []*AATState{{Transitions: map[int]*Table{
		0: action(0xFFFF),
		1: action(0),
	}}}
	table.PerGlyphLookups = []map[string]any{{"g1": "g2"}}
	return table
}

func contextualData() []byte {
	return testutil.NewBuf().
		U32(2).    // glyph class count
		U32(0x14). // class table offset
		U32(0x1C). // state array offset
		U32(0x20). // entry table offset
		U32(0x30). // per-glyph lookup offset
		U16(8).U16(1).U16(1).U16(1).
		U16(0).U16(1).
		U16(0).U16(0).U16(0xFFFF).U16(0xFFFF).
		U16(0).U16(0).U16(0xFFFF).U16(0).
		// per-glyph lookup section: one 32-bit offset, then the lookup
		U32(4).
		U16(8).U16(1).U16(1).U16(2).
		Bytes()
}

func TestContextualStateTableRoundTrip(t *testing.T) {
	reg := contextualRegistry(t)
	def, _ := reg.Table("ContextualSubtable")
	c := newTestContext(8)
	tbl := NewTable(def)
	tbl.Set("StateTable", contextualFixture(t, reg))
	out := compileTable(t, tbl, c)
	if want := contextualData(); !bytes.Equal(out, want) {
		t.Fatalf("contextual encoding mismatch:\nwant % x\nhave % x", want, out)
	}

	decoded := decompileTable(t, def, out, c)
	v, _ := decoded.Get("StateTable")
	st := v.(*AATStateTable)
	// the per-glyph lookup count is recovered from the transitions
	if len(st.PerGlyphLookups) != 1 {
		t.Fatalf("expected 1 per-glyph lookup, have %d", len(st.PerGlyphLookups))
	}
	if st.PerGlyphLookups[0]["g1"] != "g2" {
		t.Errorf("expected per-glyph lookup g1 -> g2, have %v", st.PerGlyphLookups[0])
	}
	if again := compileTable(t, decoded, c); !bytes.Equal(again, out) {
		t.Errorf("re-encoding changed the bytes:\nin:  % x\nout: % x", out, again)
	}
}

func TestStateTableMissingTransition(t *testing.T) {
	reg := rearrangementRegistry(t)
	def, _ := reg.Table("RearrangementSubtable")
	c := newTestContext(8)
	table := NewAATStateTable()
	table.GlyphClasses = map[string]int{"g1": 1}
	table.States = []*AATState{{Transitions: map[int]*Table{
		0: rearrangementAction(t, reg, 0, 0),
		// class 1 is missing
	}}}
	tbl := NewTable(def)
	tbl.Set("StateTable", table)
	if err := tbl.Compile(ot.NewWriter(), c); err == nil {
		t.Errorf("expected a missing transition to abort encoding")
	}
}

func TestStateTablePerGlyphLookupMismatch(t *testing.T) {
	reg := contextualRegistry(t)
	def, _ := reg.Table("ContextualSubtable")
	c := newTestContext(8)
	table := contextualFixture(t, reg)
	// a transition references lookup 0, but no lookup is attached
	table.PerGlyphLookups = nil
	tbl := NewTable(def)
	tbl.Set("StateTable", table)
	if err := tbl.Compile(ot.NewWriter(), c); err == nil {
		t.Errorf("expected a per-glyph lookup count mismatch to abort encoding")
	}
}
