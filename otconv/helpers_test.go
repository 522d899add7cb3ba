package otconv

import (
	"testing"

	"github.com/otfkit/otconv/internal/testutil"
	"github.com/otfkit/otconv/ot"
)

// Shared test plumbing: contexts over a synthetic glyph order and the
// decode/encode round-trip steps nearly every converter test runs.

func newTestContext(numGlyphs int) *Context {
	c := NewContext(testutil.GlyphOrder(numGlyphs))
	c.Diag = &Collector{}
	return c
}

func decompileTable(t *testing.T, def *TableDef, data []byte, c *Context) *Table {
	t.Helper()
	return decompileTagged(t, def, data, c, 0)
}

func decompileTagged(t *testing.T, def *TableDef, data []byte, c *Context, tag ot.Tag) *Table {
	t.Helper()
	r := ot.NewReader(data)
	r.TableTag = tag
	tbl := NewTable(def)
	if err := tbl.Decompile(r, c); err != nil {
		t.Fatalf("decompiling %s: %v", def.Name, err)
	}
	return tbl
}

func compileTable(t *testing.T, tbl *Table, c *Context) []byte {
	t.Helper()
	return compileTagged(t, tbl, c, 0)
}

func compileTagged(t *testing.T, tbl *Table, c *Context, tag ot.Tag) []byte {
	t.Helper()
	w := ot.NewWriter()
	w.TableTag = tag
	if err := tbl.Compile(w, c); err != nil {
		t.Fatalf("compiling %s: %v", tbl.Def().Name, err)
	}
	data, err := w.Data()
	if err != nil {
		t.Fatalf("assembling %s: %v", tbl.Def().Name, err)
	}
	return data
}

// xmlRoundTrip serializes tbl as XML text, parses the text back and
// reconstructs a fresh table instance from it.
func xmlRoundTrip(t *testing.T, def *TableDef, tbl *Table, c *Context) *Table {
	t.Helper()
	root := NewElement("root")
	if err := tbl.ToXML(root, c, "", nil); err != nil {
		t.Fatalf("serializing %s to XML: %v", def.Name, err)
	}
	parsed, err := ParseXML([]byte(root.Children[0].String()))
	if err != nil {
		t.Fatalf("parsing XML for %s: %v", def.Name, err)
	}
	fresh := NewTable(def)
	if err := fresh.FromXML(parsed, c); err != nil {
		t.Fatalf("reconstructing %s from XML: %v", def.Name, err)
	}
	return fresh
}

func fieldInt(t *testing.T, tbl *Table, name string) int {
	t.Helper()
	v, err := tbl.Get(name)
	if err != nil {
		t.Fatalf("getting %s.%s: %v", tbl.Def().Name, name, err)
	}
	n, ok := v.(int)
	if !ok {
		t.Fatalf("expected %s.%s to be an integer, have %T", tbl.Def().Name, name, v)
	}
	return n
}
