package otconv

import (
	"testing"

	"github.com/otfkit/otconv/internal/testutil"
)

// utf16BE encodes an ASCII string as UTF-16BE, the storage encoding of the
// supported name-table platforms.
func utf16BE(s string) []byte {
	out := make([]byte, 0, 2*len(s))
	for _, r := range s {
		out = append(out, 0, byte(r))
	}
	return out
}

func nameFixture() []byte {
	storage := append(utf16BE("Demo"), utf16BE("Regul")...)
	return testutil.NewBuf().
		U16(0).U16(3).U16(6+3*12).
		// Windows/BMP, name ID 1 at offset 0
		U16(3).U16(1).U16(0x409).U16(1).U16(8).U16(0).
		// Macintosh, unsupported encoding, skipped
		U16(1).U16(0).U16(0).U16(2).U16(4).U16(8).
		// Unicode/BMP, name ID 2 at offset 8
		U16(0).U16(3).U16(0).U16(2).U16(10).U16(8).
		Raw(storage...).
		Bytes()
}

func TestParseNameTable(t *testing.T) {
	nt := ParseNameTable(nameFixture())
	if name, ok := nt.DebugName(1); !ok || name != "Demo" {
		t.Errorf("expected name 1 to be Demo, have %q (%v)", name, ok)
	}
	// the Macintosh record is skipped; the Unicode record supplies name 2
	if name, ok := nt.DebugName(2); !ok || name != "Regul" {
		t.Errorf("expected name 2 to be Regul, have %q (%v)", name, ok)
	}
	if _, ok := nt.DebugName(9); ok {
		t.Errorf("expected name 9 to be absent")
	}
}

func TestParseNameTableTruncated(t *testing.T) {
	nt := ParseNameTable([]byte{0, 0})
	if _, ok := nt.DebugName(1); ok {
		t.Errorf("expected an empty resolver for a truncated table")
	}
}

func TestNameIDAnnotation(t *testing.T) {
	reg := NewRegistry()
	def := reg.MustDefine(&TableDef{
		Name:   "AxisRecord",
		Fields: []FieldSpec{{Type: "NameID", Name: "DesignNameID"}},
	})
	c := newTestContext(4)
	c.Names = ParseNameTable(nameFixture())

	tbl := decompileTable(t, def, testutil.NewBuf().U16(1).Bytes(), c)
	root := NewElement("root")
	if err := tbl.ToXML(root, c, "", nil); err != nil {
		t.Fatalf("serializing to XML: %v", err)
	}
	field := root.Children[0].Children[0]
	if field.Comment != "Demo" {
		t.Errorf("expected name annotation Demo, have %q", field.Comment)
	}

	// an unresolvable name ID degrades to a placeholder comment plus warning
	tbl = decompileTable(t, def, testutil.NewBuf().U16(300).Bytes(), c)
	root = NewElement("root")
	if err := tbl.ToXML(root, c, "", nil); err != nil {
		t.Fatalf("serializing to XML: %v", err)
	}
	field = root.Children[0].Children[0]
	if field.Comment != "missing from name table" {
		t.Errorf("expected placeholder comment, have %q", field.Comment)
	}
	if !c.Diag.HasWarnings() {
		t.Errorf("expected a warning for the missing name")
	}
}
