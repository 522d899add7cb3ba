package otconv

import (
	"testing"

	"github.com/otfkit/otconv/ot"
)

func TestRegistryRejectsDuplicateDefinition(t *testing.T) {
	reg := NewRegistry()
	def := &TableDef{Name: "Twice", Fields: []FieldSpec{{Type: "uint16", Name: "A"}}}
	if err := reg.Define(def); err != nil {
		t.Fatalf("first definition failed: %v", err)
	}
	if err := reg.Define(&TableDef{Name: "Twice", Fields: def.Fields}); err == nil {
		t.Errorf("expected duplicate definition to fail")
	}
}

func TestRegistryRejectsUnknownParameterizedType(t *testing.T) {
	reg := NewRegistry()
	err := reg.Define(&TableDef{
		Name:   "Broken",
		Fields: []FieldSpec{{Type: "Bogus(X)", Name: "Field"}},
	})
	if err == nil {
		t.Errorf("expected unknown parameterized type to fail")
	}
}

func TestRegistryRejectsNonIntegerCount(t *testing.T) {
	reg := NewRegistry()
	err := reg.Define(&TableDef{
		Name:   "Broken",
		Fields: []FieldSpec{{Type: "Fixed", Name: "ThingCount"}},
	})
	if err == nil {
		t.Errorf("expected a non-integer count field to fail")
	}
}

func TestRegistryRejectsLookupWithoutValueType(t *testing.T) {
	reg := NewRegistry()
	err := reg.Define(&TableDef{
		Name:   "Broken",
		Fields: []FieldSpec{{Type: "AATLookup", Name: "Mapping"}},
	})
	if err == nil {
		t.Errorf("expected a lookup without a value type parameter to fail")
	}
}

func TestRegistryUnknownTable(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Table("NoSuchTable"); err == nil {
		t.Errorf("expected lookup of an unknown table to fail")
	}
}

func TestConverterForElementDispatch(t *testing.T) {
	reg := NewRegistry()
	target := reg.MustDefine(&TableDef{
		Name:   "SingleSubst",
		Fields: []FieldSpec{{Type: "uint16", Name: "GlyphCount"}},
	})
	reg.DefineLookupType(ot.T("GSUB"), 1, target)
	def := reg.MustDefine(&TableDef{
		Name: "Lookup",
		Fields: []FieldSpec{
			{Type: "uint16", Name: "LookupType"},
			{Type: "SubTable", Name: "SubTable"},
		},
	})
	// a child element named after the registered sub-table type resolves
	// through the dispatch registry
	if _, err := def.converterForElement(0, "SingleSubst"); err != nil {
		t.Errorf("expected element <SingleSubst> to resolve, have %v", err)
	}
	if _, err := def.converterForElement(0, "NoSuchElement"); err == nil {
		t.Errorf("expected an unknown element to fail")
	}
}
