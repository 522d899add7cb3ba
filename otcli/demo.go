package main

import (
	"fmt"

	"github.com/otfkit/otconv/ot"
	"github.com/otfkit/otconv/otconv"
)

// The CLI ships with a small built-in schema covering the common table
// shapes, enough to decode and round-trip test data without a full
// OpenType schema catalog.

func demoRegistry() *otconv.Registry {
	reg := otconv.NewRegistry()

	reg.MustDefine(&otconv.TableDef{
		Name: "Device",
		Fields: []otconv.FieldSpec{
			{Type: "uint16", Name: "StartSize"},
			{Type: "uint16", Name: "EndSize"},
			{Type: "uint16", Name: "DeltaFormat"},
			{Type: "DeltaValue", Name: "DeltaValue"},
		},
	})

	reg.MustDefine(&otconv.TableDef{
		Name: "VarIdxMap",
		Fields: []otconv.FieldSpec{
			{Type: "uint16", Name: "EntryFormat"},
			{Type: "uint16", Name: "MappingCount"},
			{Type: "VarIdxMapValue", Name: "VarIdx"},
		},
	})

	reg.MustDefine(&otconv.TableDef{
		Name: "RangeRecord",
		Fields: []otconv.FieldSpec{
			{Type: "GlyphID", Name: "Start"},
			{Type: "GlyphID", Name: "End"},
			{Type: "uint16", Name: "StartCoverageIndex"},
		},
	})

	reg.MustDefine(&otconv.TableDef{
		Name: "Coverage",
		Formats: map[uint16][]otconv.FieldSpec{
			1: {
				{Type: "uint16", Name: "GlyphCount"},
				{Type: "GlyphID", Name: "Glyph", Repeat: "GlyphCount"},
			},
			2: {
				{Type: "uint16", Name: "RangeCount"},
				{Type: "struct", Name: "RangeRecord", Repeat: "RangeCount"},
			},
		},
	})

	reg.MustDefine(&otconv.TableDef{
		Name: "SingleSubst",
		Fields: []otconv.FieldSpec{
			{Type: "OffsetTo(Coverage)", Name: "Coverage"},
			{Type: "uint16", Name: "GlyphCount"},
			{Type: "GlyphID", Name: "Substitute", Repeat: "GlyphCount"},
		},
	})

	reg.MustDefine(&otconv.TableDef{
		Name: "NoncontextualMorph",
		Fields: []otconv.FieldSpec{
			{Type: "AATLookup(GlyphID)", Name: "Substitution"},
		},
	})

	reg.MustDefine(&otconv.TableDef{
		Name: "ContextualMorphAction",
		Fields: []otconv.FieldSpec{
			{Type: "uint16", Name: "NewState"},
			{Type: "uint16", Name: "Flags"},
			{Type: "uint16", Name: "MarkIndex"},
			{Type: "uint16", Name: "CurrentIndex"},
		},
	})

	reg.MustDefine(&otconv.TableDef{
		Name: "ContextualMorph",
		Fields: []otconv.FieldSpec{
			{Type: "STXHeader(ContextualMorphAction)", Name: "StateTable"},
		},
	})

	return reg
}

// demoGlyphOrder builds a namespace with n synthetic glyph names, .notdef
// first, the way test fonts do it.
func demoGlyphOrder(n int) *ot.GlyphOrder {
	names := make([]string, 0, n)
	names = append(names, ".notdef")
	for i := 1; i < n; i++ {
		names = append(names, fmt.Sprintf("g%d", i))
	}
	return ot.NewGlyphOrder(names)
}
