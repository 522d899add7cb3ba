package otconv

import (
	"fmt"
	"strings"

	"github.com/otfkit/otconv/ot"
)

// The declarative schema layer. Table shapes are declared as lists of field
// specs; a Registry holds every known table declaration plus the dispatch
// registries for lookup-type sub-tables and feature parameters, and
// compiles each declaration into a list of bound converter objects.

// FieldSpec declares one field of a table's binary layout.
type FieldSpec struct {
	// Type is the wire type, e.g. "uint16", "Fixed", "GlyphID", "Offset",
	// a struct name, or a parameterized form such as "OffsetTo(Coverage)",
	// "AATLookup(UShort)" or "STXHeader(ContextualMorphAction)".
	Type string
	// Name of the field. Several names select special converter kinds:
	// ValueFormat*, *Count, StructLength, MorphType, SubTable, ExtSubTable,
	// SubStruct, FeatureParams, CIDGlyphMapping, GlyphCIDMapping.
	Name string
	// Repeat names the sibling (or propagated ancestor) count field
	// governing this array; empty for scalar fields.
	Repeat string
	// Aux is an addend applied to the repeat count.
	Aux int
	// Cond, if set, gates this field's presence on sibling field values.
	Cond func(Values) bool
	// Desc is a human-readable description, carried for documentation only.
	Desc string
}

// TableDef declares the binary layout of one table or record type. Either
// Fields (plain layout) or Formats (format-switching layout, selected by a
// leading uint16 format code) must be set.
type TableDef struct {
	Name    string
	Fields  []FieldSpec
	Formats map[uint16][]FieldSpec

	reg        *Registry
	converters map[uint16][]Converter
	byName     map[uint16]map[string]Converter
}

const plainFormat = uint16(0) // converter map key for non-switching tables

// convertersFor returns the bound converters for the given format code.
func (def *TableDef) convertersFor(format uint16) ([]Converter, error) {
	key := plainFormat
	if def.Formats != nil {
		key = format
	}
	convs, ok := def.converters[key]
	if !ok {
		return nil, errFormat(fmt.Sprintf("unknown format %d for table %s", format, def.Name))
	}
	return convs, nil
}

// converterForElement finds the converter responsible for a child element
// during text import. Most elements are named after their field; sub-table
// and feature-params elements are named after their target table type and
// resolve through the dispatch registries.
func (def *TableDef) converterForElement(format uint16, name string) (Converter, error) {
	key := plainFormat
	if def.Formats != nil {
		key = format
	}
	if conv, ok := def.byName[key][name]; ok {
		return conv, nil
	}
	for _, conv := range def.converters[key] {
		if binder, ok := conv.(targetBinder); ok {
			if bound := binder.bindTargetName(name); bound != nil {
				return bound, nil
			}
		}
	}
	return nil, errFormat(fmt.Sprintf("table %s has no field for element <%s>", def.Name, name))
}

// recordSize returns the fixed byte size of one record of this table, if
// statically knowable: no repeats, no conditions, every field fixed-width.
func (def *TableDef) recordSize() (int, bool) {
	if def.Formats != nil {
		return 0, false
	}
	total := 0
	for _, conv := range def.converters[plainFormat] {
		fs := conv.Spec()
		if fs.Repeat != "" || fs.Cond != nil {
			return 0, false
		}
		n, ok := staticSizeOf(conv)
		if !ok {
			return 0, false
		}
		total += n
	}
	return total, true
}

// targetBinder is implemented by dispatch converters (sub-tables, feature
// params) which can bind themselves to a target table named in XML.
type targetBinder interface {
	bindTargetName(name string) Converter
}

// --- Registry --------------------------------------------------------------

// Registry holds the compiled table declarations of one schema, plus the
// dispatch registries: (table type, lookup type) → sub-table declaration
// and feature tag → feature-params declaration. A registry is built once at
// startup and read-only afterwards.
type Registry struct {
	tables               map[string]*TableDef
	lookupTypes          map[ot.Tag]map[int]*TableDef
	featureParams        map[ot.Tag]*TableDef
	defaultFeatureParams *TableDef
}

// NewRegistry creates an empty schema registry.
func NewRegistry() *Registry {
	return &Registry{
		tables:        make(map[string]*TableDef),
		lookupTypes:   make(map[ot.Tag]map[int]*TableDef),
		featureParams: make(map[ot.Tag]*TableDef),
	}
}

// Define compiles a table declaration and registers it under its name.
func (reg *Registry) Define(def *TableDef) error {
	if _, ok := reg.tables[def.Name]; ok {
		return errFormat("table " + def.Name + " defined twice")
	}
	if err := reg.buildConverters(def); err != nil {
		return err
	}
	reg.tables[def.Name] = def
	return nil
}

// MustDefine is Define for static schema declarations, panicking on a
// malformed declaration.
func (reg *Registry) MustDefine(def *TableDef) *TableDef {
	if err := reg.Define(def); err != nil {
		panic(err)
	}
	return def
}

// Table returns a table declaration by name.
func (reg *Registry) Table(name string) (*TableDef, error) {
	def, ok := reg.tables[name]
	if !ok {
		return nil, errFormat("no table definition for " + name)
	}
	return def, nil
}

// TableNames returns the names of every registered table declaration.
func (reg *Registry) TableNames() []string {
	names := make([]string, 0, len(reg.tables))
	for name := range reg.tables {
		names = append(names, name)
	}
	return names
}

// DefineLookupType registers the sub-table declaration for one lookup type
// of a layout table (GSUB, GPOS, morx, ...).
func (reg *Registry) DefineLookupType(table ot.Tag, lookupType int, def *TableDef) {
	if reg.lookupTypes[table] == nil {
		reg.lookupTypes[table] = make(map[int]*TableDef)
	}
	reg.lookupTypes[table][lookupType] = def
}

// DefineFeatureParams registers the feature-params declaration for a
// feature tag.
func (reg *Registry) DefineFeatureParams(feature ot.Tag, def *TableDef) {
	reg.featureParams[feature] = def
}

// SetDefaultFeatureParams registers the declaration used for feature tags
// without a specific feature-params variant.
func (reg *Registry) SetDefaultFeatureParams(def *TableDef) {
	reg.defaultFeatureParams = def
}

func (reg *Registry) lookupType(table ot.Tag, lookupType int) (*TableDef, error) {
	if def, ok := reg.lookupTypes[table][lookupType]; ok {
		return def, nil
	}
	return nil, errFormat(fmt.Sprintf("no sub-table registered for %s lookup type %d",
		table, lookupType))
}

func (reg *Registry) featureParamsFor(feature ot.Tag) (*TableDef, error) {
	if def, ok := reg.featureParams[feature]; ok {
		return def, nil
	}
	if reg.defaultFeatureParams != nil {
		return reg.defaultFeatureParams, nil
	}
	return nil, errFormat("no feature params registered for feature " + feature.String())
}

// allLookupTypes yields every registered lookup sub-table declaration.
func (reg *Registry) findLookupTypeByName(name string) (*TableDef, bool) {
	for _, byType := range reg.lookupTypes {
		for _, def := range byType {
			if def.Name == name {
				return def, true
			}
		}
	}
	return nil, false
}

func (reg *Registry) findFeatureParamsByName(name string) (*TableDef, bool) {
	for _, def := range reg.featureParams {
		if def.Name == name {
			return def, true
		}
	}
	if reg.defaultFeatureParams != nil && reg.defaultFeatureParams.Name == name {
		return reg.defaultFeatureParams, true
	}
	return nil, false
}

// --- Schema compilation ----------------------------------------------------

// buildConverters turns a declarative table spec into bound converter
// instances, one per field, wiring cross-references for lookup-type
// sub-tables and feature-params variants.
func (reg *Registry) buildConverters(def *TableDef) error {
	def.reg = reg
	def.converters = make(map[uint16][]Converter)
	def.byName = make(map[uint16]map[string]Converter)
	fieldLists := map[uint16][]FieldSpec{plainFormat: def.Fields}
	if def.Formats != nil {
		fieldLists = def.Formats
	}
	for format, fields := range fieldLists {
		convs := make([]Converter, 0, len(fields))
		byName := make(map[string]Converter, len(fields))
		for _, fs := range fields {
			conv, err := reg.buildConverter(fs)
			if err != nil {
				return fmt.Errorf("table %s: %w", def.Name, err)
			}
			if _, ok := byName[fs.Name]; ok {
				return errFormat(fmt.Sprintf("table %s declares field %s twice",
					def.Name, fs.Name))
			}
			convs = append(convs, conv)
			byName[fs.Name] = conv
		}
		def.converters[format] = convs
		def.byName[format] = byName
	}
	return nil
}

// buildConverter selects the converter kind for one field spec. Selection
// follows field name first (computed counts, sub-table dispatch), then the
// wire type through the closed kind registry.
func (reg *Registry) buildConverter(fs FieldSpec) (Converter, error) {
	name := fs.Name
	switch {
	case strings.HasPrefix(name, "ValueFormat"):
		if fs.Type != "uint16" {
			return nil, errFormat("field " + name + " must have type uint16")
		}
		return newValueFormatConverter(fs), nil
	case hasSuffix(name, "Count") || name == "StructLength" || name == "MorphType":
		size, ok := map[string]int{"uint8": 1, "uint16": 2, "uint32": 4}[fs.Type]
		if !ok {
			return nil, errFormat(fmt.Sprintf("field %s: computed fields must be unsigned ints, have %s",
				name, fs.Type))
		}
		return newComputedConverter(fs, size), nil
	case name == "SubTable":
		return newSubTableConverter(reg, fs, "LookupType", false), nil
	case name == "ExtSubTable":
		return newSubTableConverter(reg, fs, "ExtensionLookupType", true), nil
	case name == "SubStruct":
		return newSubStructConverter(reg, fs), nil
	case name == "FeatureParams":
		return newFeatureParamsConverter(reg, fs), nil
	case name == "CIDGlyphMapping" || name == "GlyphCIDMapping":
		return newStructWithLengthConverter(reg, fs, fs.Type), nil
	}

	base, param := splitType(fs.Type)
	switch base {
	case "int8":
		return newIntConverter(fs, 1, true), nil
	case "uint8":
		return newIntConverter(fs, 1, false), nil
	case "int16":
		return newIntConverter(fs, 2, true), nil
	case "uint16":
		return newIntConverter(fs, 2, false), nil
	case "uint24":
		return newIntConverter(fs, 3, false), nil
	case "int32":
		return newIntConverter(fs, 4, true), nil
	case "uint32":
		return newIntConverter(fs, 4, false), nil
	case "Flags32":
		return newFlags32Converter(fs), nil
	case "Tag":
		return newTagConverter(fs), nil
	case "GlyphID":
		return newGlyphIDConverter(fs), nil
	case "NameID":
		return newNameIDConverter(fs), nil
	case "DeciPoints":
		return newDeciPointsConverter(fs), nil
	case "Fixed":
		return newFixedConverter(fs), nil
	case "F2Dot14":
		return newF2Dot14Converter(fs), nil
	case "Version":
		return newVersionConverter(fs), nil
	case "char64":
		return newChar64Converter(fs), nil
	case "ValueRecord":
		return newValueRecordConverter(reg, fs), nil
	case "DeltaValue":
		return newDeltaValueConverter(fs), nil
	case "VarIdxMapValue":
		return newVarIdxMapConverter(fs), nil
	case "VarDataValue":
		return newVarDataConverter(fs), nil
	case "CIDGlyphMap":
		return newCIDGlyphMapConverter(fs), nil
	case "GlyphCIDMap":
		return newGlyphCIDMapConverter(fs), nil
	case "struct":
		return newStructConverter(reg, fs, fs.Name), nil
	case "Offset":
		return newOffsetConverter(reg, fs, fs.Name, false), nil
	case "LOffset":
		return newOffsetConverter(reg, fs, fs.Name, true), nil
	case "OffsetTo":
		return newOffsetConverter(reg, fs, param, false), nil
	case "LOffsetTo":
		return newOffsetConverter(reg, fs, param, true), nil
	case "MortChain", "MortSubtable", "MorxChain", "MorxSubtable":
		return newStructWithLengthConverter(reg, fs, base), nil
	case "AATLookup":
		return newAATLookupConverter(reg, fs, param)
	case "AATLookupWithDataOffset":
		return newAATLookupWithDataOffsetConverter(reg, fs, param), nil
	case "STXHeader":
		return newSTXConverter(reg, fs, param), nil
	}
	if param != "" {
		return nil, errFormat(fmt.Sprintf("field %s: unknown parameterized type %s", name, fs.Type))
	}
	// A bare unknown type names an inline struct.
	return newStructConverter(reg, fs, base), nil
}

// splitType splits a parameterized type like "AATLookup(UShort)" into base
// and parameter.
func splitType(tp string) (base, param string) {
	open := strings.IndexByte(tp, '(')
	if open < 0 || !strings.HasSuffix(tp, ")") {
		return tp, ""
	}
	return tp[:open], tp[open+1 : len(tp)-1]
}
