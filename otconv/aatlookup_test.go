package otconv

import (
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/stretchr/testify/require"

	"github.com/otfkit/otconv/internal/testutil"
	"github.com/otfkit/otconv/ot"
)

func lookupDef(t *testing.T) *TableDef {
	t.Helper()
	reg := NewRegistry()
	return reg.MustDefine(&TableDef{
		Name:   "NoncontextualSubst",
		Fields: []FieldSpec{{Type: "AATLookup(GlyphID)", Name: "Substitution"}},
	})
}

func lookupMapping(t *testing.T, tbl *Table) map[string]any {
	t.Helper()
	v, err := tbl.Get("Substitution")
	require.NoError(t, err)
	return v.(map[string]any)
}

func encodeLookup(t *testing.T, def *TableDef, mapping map[string]any, c *Context) []byte {
	t.Helper()
	tbl := NewTable(def)
	tbl.Set("Substitution", mapping)
	return compileTable(t, tbl, c)
}

func TestLookupPicksFormat8ForContiguousRange(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfkit.otconv")
	defer teardown()
	//
	def := lookupDef(t)
	c := newTestContext(20)
	mapping := map[string]any{"g10": "g5", "g11": "g5", "g12": "g5", "g13": "g5"}
	out := encodeLookup(t, def, mapping, c)
	// format 8 takes 14 bytes here; format 2 would take 24, format 6 32
	want := testutil.NewBuf().
		U16(8).U16(10).U16(4).
		U16(5).U16(5).U16(5).U16(5).
		Bytes()
	require.Equal(t, want, out)

	tbl := decompileTable(t, def, out, c)
	require.Equal(t, mapping, lookupMapping(t, tbl))
}

func TestLookupPicksFormat2ForSegmentRuns(t *testing.T) {
	def := lookupDef(t)
	c := newTestContext(20)
	mapping := map[string]any{
		"g3": "g1", "g4": "g1", "g5": "g1", "g6": "g1", "g7": "g1",
		"g9": "g2", "g10": "g2", "g11": "g2", "g12": "g2",
	}
	out := encodeLookup(t, def, mapping, c)
	want := testutil.NewBuf().
		U16(2).
		U16(6).U16(2).U16(12).U16(1).U16(0). // binary search header
		U16(7).U16(3).U16(1).
		U16(12).U16(9).U16(2).
		U16(0xFFFF).U16(0xFFFF).U16(0). // sentinel unit
		Bytes()
	require.Equal(t, want, out)

	tbl := decompileTable(t, def, out, c)
	require.Equal(t, mapping, lookupMapping(t, tbl))
}

func TestLookupPicksFormat6ForSparseEntries(t *testing.T) {
	def := lookupDef(t)
	c := newTestContext(20)
	mapping := map[string]any{"g2": "g5", "g9": "g7"}
	out := encodeLookup(t, def, mapping, c)
	want := testutil.NewBuf().
		U16(6).
		U16(4).U16(2).U16(8).U16(1).U16(0).
		U16(2).U16(5).
		U16(9).U16(7).
		U16(0xFFFF).U16(0).
		Bytes()
	require.Equal(t, want, out)

	tbl := decompileTable(t, def, out, c)
	require.Equal(t, mapping, lookupMapping(t, tbl))
}

func TestLookupPicksFormat0ForFullCoverage(t *testing.T) {
	def := lookupDef(t)
	c := newTestContext(20)
	mapping := make(map[string]any, 20)
	for gid := 0; gid < 20; gid++ {
		value := "g1"
		if gid%2 == 1 {
			value = "g2"
		}
		mapping[c.Glyphs.GlyphName(ot.GlyphIndex(gid))] = value
	}
	out := encodeLookup(t, def, mapping, c)
	require.Len(t, out, 42)
	require.Equal(t, []byte{0, 0}, out[:2], "expected format 0")

	tbl := decompileTable(t, def, out, c)
	require.Equal(t, mapping, lookupMapping(t, tbl))

	// format selection is deterministic
	require.Equal(t, out, encodeLookup(t, def, mapping, c))
}

func TestLookupDecodesFormat4(t *testing.T) {
	def := lookupDef(t)
	c := newTestContext(20)
	// format 4 units reference per-glyph value sub-arrays by offset
	data := testutil.NewBuf().
		U16(4).
		U16(6).U16(1).U16(6).U16(0).U16(0).
		U16(6).U16(4).U16(20). // unit: glyphs g4..g6, values at offset 20
		U16(0). // filler
		U16(1).U16(2).U16(3).
		Bytes()
	tbl := decompileTable(t, def, data, c)
	want := map[string]any{"g4": "g1", "g5": "g2", "g6": "g3"}
	require.Equal(t, want, lookupMapping(t, tbl))
}

func anchorRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	reg.MustDefine(&TableDef{
		Name:   "AnchorPoint",
		Fields: []FieldSpec{{Type: "uint16", Name: "PointIndex"}},
	})
	reg.MustDefine(&TableDef{
		Name:   "AnchorTable",
		Fields: []FieldSpec{{Type: "AATLookupWithDataOffset(AnchorPoint)", Name: "Anchors"}},
	})
	return reg
}

func TestLookupWithDataOffsetDedupsValues(t *testing.T) {
	reg := anchorRegistry(t)
	def, _ := reg.Table("AnchorTable")
	pointDef, _ := reg.Table("AnchorPoint")
	c := newTestContext(8)

	point := func(idx int) *Table {
		t := NewTable(pointDef)
		t.Set("PointIndex", idx)
		return t
	}
	tbl := NewTable(def)
	tbl.Set("Anchors", map[string]any{
		"g1": point(7),
		"g2": point(7),
		"g3": point(9),
	})
	out := compileTable(t, tbl, c)
	// g1 and g2 share one data block; the lookup stores data-relative offsets
	want := testutil.NewBuf().
		U32(8).U32(20).
		U16(8).U16(1).U16(3).U16(0).U16(0).U16(2).
		U16(7).U16(9).
		Bytes()
	require.Equal(t, want, out)

	decoded := decompileTable(t, def, out, c)
	v, err := decoded.Get("Anchors")
	require.NoError(t, err)
	mapping := v.(map[string]any)
	require.Len(t, mapping, 3)
	require.Equal(t, 7, fieldInt(t, mapping["g2"].(*Table), "PointIndex"))
	require.Equal(t, 9, fieldInt(t, mapping["g3"].(*Table), "PointIndex"))

	require.Equal(t, out, compileTable(t, decoded, c))
}

func cidRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	reg.MustDefine(&TableDef{
		Name:   "CIDChars",
		Fields: []FieldSpec{{Type: "CIDGlyphMap", Name: "CIDs"}},
	})
	reg.MustDefine(&TableDef{
		Name:   "GlyphChars",
		Fields: []FieldSpec{{Type: "GlyphCIDMap", Name: "Glyphs"}},
	})
	return reg
}

func TestCIDGlyphMapRoundTrip(t *testing.T) {
	reg := cidRegistry(t)
	def, _ := reg.Table("CIDChars")
	c := newTestContext(8)
	data := testutil.NewBuf().U16(3).U16(1).U16(0xFFFF).U16(5).Bytes()
	tbl := decompileTable(t, def, data, c)
	v, err := tbl.Get("CIDs")
	require.NoError(t, err)
	require.Equal(t, map[int]string{0: "g1", 2: "g5"}, v)
	require.Equal(t, data, compileTable(t, tbl, c))
}

func TestGlyphCIDMapRoundTrip(t *testing.T) {
	reg := cidRegistry(t)
	def, _ := reg.Table("GlyphChars")
	c := newTestContext(8)
	data := testutil.NewBuf().U16(3).U16(7).U16(0xFFFF).U16(9).Bytes()
	tbl := decompileTable(t, def, data, c)
	v, err := tbl.Get("Glyphs")
	require.NoError(t, err)
	require.Equal(t, map[string]int{".notdef": 7, "g2": 9}, v)
	require.Equal(t, data, compileTable(t, tbl, c))
}

func TestGlyphCIDMapOverrunWarns(t *testing.T) {
	reg := cidRegistry(t)
	def, _ := reg.Table("GlyphChars")
	c := newTestContext(4)
	// 6 entries, but the font has only 4 glyphs
	data := testutil.NewBuf().
		U16(6).
		U16(1).U16(2).U16(3).U16(4).U16(5).U16(6).
		Bytes()
	tbl := decompileTable(t, def, data, c)
	v, err := tbl.Get("Glyphs")
	require.NoError(t, err)
	require.Len(t, v.(map[string]int), 4)
	require.True(t, c.Diag.HasWarnings(), "expected a warning for the overrun")
}
