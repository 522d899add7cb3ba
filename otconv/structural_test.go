package otconv

import (
	"bytes"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/otfkit/otconv/internal/testutil"
	"github.com/otfkit/otconv/ot"
)

func TestLookupSubTableDispatch(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfkit.otconv")
	defer teardown()
	//
	reg := layoutRegistry(t)
	singleSubst, _ := reg.Table("SingleSubst")
	reg.DefineLookupType(ot.T("GSUB"), 1, singleSubst)
	def := reg.MustDefine(&TableDef{
		Name: "Lookup",
		Fields: []FieldSpec{
			{Type: "uint16", Name: "LookupType"},
			{Type: "uint16", Name: "SubTableCount"},
			{Type: "SubTable", Name: "SubTable", Repeat: "SubTableCount"},
		},
	})
	c := newTestContext(8)
	data := testutil.NewBuf().
		U16(1).U16(1).U16(6).
		Raw(singleSubstData()...).
		Bytes()
	tbl := decompileTagged(t, def, data, c, ot.T("GSUB"))
	seq, _ := tbl.Get("SubTable")
	sub, _ := seq.(Sequence).At(0)
	if name := sub.(*Table).Def().Name; name != "SingleSubst" {
		t.Fatalf("expected lookup type 1 to dispatch to SingleSubst, have %s", name)
	}
	if out := compileTagged(t, tbl, c, ot.T("GSUB")); !bytes.Equal(out, data) {
		t.Errorf("re-encoding changed the bytes:\nin:  % x\nout: % x", data, out)
	}
}

func TestLookupSubTableXMLRoundTrip(t *testing.T) {
	reg := layoutRegistry(t)
	singleSubst, _ := reg.Table("SingleSubst")
	reg.DefineLookupType(ot.T("GSUB"), 1, singleSubst)
	def := reg.MustDefine(&TableDef{
		Name: "Lookup",
		Fields: []FieldSpec{
			{Type: "uint16", Name: "LookupType"},
			{Type: "uint16", Name: "SubTableCount"},
			{Type: "SubTable", Name: "SubTable", Repeat: "SubTableCount"},
		},
	})
	c := newTestContext(8)
	data := testutil.NewBuf().
		U16(1).U16(1).U16(6).
		Raw(singleSubstData()...).
		Bytes()
	tbl := decompileTagged(t, def, data, c, ot.T("GSUB"))
	// the sub-table element is named after its concrete type; import rebinds
	// the declaration from that name
	fresh := xmlRoundTrip(t, def, tbl, c)
	if out := compileTagged(t, fresh, c, ot.T("GSUB")); !bytes.Equal(out, data) {
		t.Errorf("XML round trip changed the bytes:\nin:  % x\nout: % x", data, out)
	}
}

func TestExtensionSubTableLongOffset(t *testing.T) {
	reg := layoutRegistry(t)
	singleSubst, _ := reg.Table("SingleSubst")
	reg.DefineLookupType(ot.T("GSUB"), 1, singleSubst)
	def := reg.MustDefine(&TableDef{
		Name: "ExtensionSubst",
		Fields: []FieldSpec{
			{Type: "uint16", Name: "ExtensionLookupType"},
			{Type: "ExtSubTable", Name: "ExtSubTable"},
		},
	})
	c := newTestContext(8)
	data := testutil.NewBuf().
		U16(1).U32(6).
		Raw(singleSubstData()...).
		Bytes()
	tbl := decompileTagged(t, def, data, c, ot.T("GSUB"))
	sub, _ := tbl.Get("ExtSubTable")
	if n := fieldInt(t, sub.(*Table), "GlyphCount"); n != 2 {
		t.Fatalf("expected wrapped sub-table with 2 substitutes, have %d", n)
	}
	// the extension offset is 32 bits; offsets inside the wrapped sub-table
	// stay 16 bits
	if out := compileTagged(t, tbl, c, ot.T("GSUB")); !bytes.Equal(out, data) {
		t.Errorf("re-encoding changed the bytes:\nin:  % x\nout: % x", data, out)
	}
}

func morphRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	trivial := reg.MustDefine(&TableDef{
		Name:   "TrivialMorph",
		Fields: []FieldSpec{{Type: "uint16", Name: "Delta"}},
	})
	reg.DefineLookupType(ot.T("morx"), 4, trivial)
	reg.MustDefine(&TableDef{
		Name: "MorxSubtable",
		Fields: []FieldSpec{
			{Type: "uint32", Name: "StructLength"},
			{Type: "uint16", Name: "MorphType"},
			{Type: "SubStruct", Name: "SubStruct"},
		},
	})
	return reg
}

func TestMorphSubtableDispatch(t *testing.T) {
	reg := morphRegistry(t)
	def, _ := reg.Table("MorxSubtable")
	c := newTestContext(4)
	data := testutil.NewBuf().U32(8).U16(4).U16(42).Bytes()
	tbl := decompileTagged(t, def, data, c, ot.T("morx"))
	sub, _ := tbl.Get("SubStruct")
	if name := sub.(*Table).Def().Name; name != "TrivialMorph" {
		t.Fatalf("expected morph type 4 to dispatch to TrivialMorph, have %s", name)
	}
	if n := fieldInt(t, sub.(*Table), "Delta"); n != 42 {
		t.Errorf("expected delta 42, have %d", n)
	}
	if out := compileTagged(t, tbl, c, ot.T("morx")); !bytes.Equal(out, data) {
		t.Errorf("re-encoding changed the bytes:\nin:  % x\nout: % x", data, out)
	}
}

func TestStructLengthRecomputed(t *testing.T) {
	reg := morphRegistry(t)
	def := reg.MustDefine(&TableDef{
		Name: "SubtableRun",
		Fields: []FieldSpec{
			{Type: "MorxSubtable", Name: "Subtable"},
			{Type: "uint16", Name: "Marker"},
		},
	})
	c := newTestContext(4)
	// the recorded length includes 2 bytes of padding; the marker follows at
	// that distance, not where the subtable's fields end
	data := testutil.NewBuf().
		U32(10).U16(4).U16(42).Zero(2).
		U16(0x63).
		Bytes()
	tbl := decompileTagged(t, def, data, c, ot.T("morx"))
	if n := fieldInt(t, tbl, "Marker"); n != 0x63 {
		t.Fatalf("expected the recorded length to skip the padding, marker is %#x", n)
	}
	// re-encoding recomputes the length from the bytes actually produced
	want := testutil.NewBuf().U32(8).U16(4).U16(42).U16(0x63).Bytes()
	if out := compileTagged(t, tbl, c, ot.T("morx")); !bytes.Equal(out, want) {
		t.Errorf("expected the length to be recomputed:\nwant % x\nhave % x", want, out)
	}
}
