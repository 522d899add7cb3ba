package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/otfkit/otconv/otconv"
	"github.com/pterm/pterm"
)

func tablesOp(intp *Intp, op *Op) (error, bool) {
	names := intp.reg.TableNames()
	sort.Strings(names)
	data := [][]string{
		{"Table", "Fields", "Formats"},
	}
	for _, name := range names {
		def, err := intp.reg.Table(name)
		if err != nil {
			continue
		}
		data = append(data, []string{name, fieldCount(def), formatCount(def)})
	}
	pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	return nil, false
}

func fieldsOp(intp *Intp, op *Op) (error, bool) {
	name := op.arg
	if name == "" && intp.table != nil {
		name = intp.table.Def().Name
	}
	def, err := intp.reg.Table(name)
	if err != nil {
		return err, false
	}
	data := [][]string{
		{"Field", "Type", "Repeat"},
	}
	for _, fs := range fieldList(def) {
		repeat := fs.Repeat
		if repeat == "" {
			repeat = "-"
		}
		data = append(data, []string{fs.Name, fs.Type, repeat})
	}
	pterm.Printf("declaration of %s:\n", def.Name)
	pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	return nil, false
}

func getOp(intp *Intp, op *Op) (error, bool) {
	if intp.table == nil {
		return errNoTable, false
	}
	if op.noArg() {
		names := make([]string, 0, len(intp.table.Values()))
		for name := range intp.table.Values() {
			names = append(names, name)
		}
		sort.Strings(names)
		pterm.Printf("fields set on %s: %s\n", intp.table.Def().Name, strings.Join(names, ", "))
		return nil, false
	}
	v, err := intp.table.Get(op.arg)
	if err != nil {
		return err, false
	}
	pterm.Printf("%s.%s = %s\n", intp.table.Def().Name, op.arg, formatValue(v))
	return nil, false
}

func fieldCount(def *otconv.TableDef) string {
	if def.Formats != nil {
		return "-"
	}
	return fmt.Sprintf("%d", len(def.Fields))
}

func formatCount(def *otconv.TableDef) string {
	if def.Formats == nil {
		return "-"
	}
	formats := make([]int, 0, len(def.Formats))
	for f := range def.Formats {
		formats = append(formats, int(f))
	}
	sort.Ints(formats)
	parts := make([]string, len(formats))
	for i, f := range formats {
		parts[i] = fmt.Sprintf("%d", f)
	}
	return strings.Join(parts, ",")
}

func fieldList(def *otconv.TableDef) []otconv.FieldSpec {
	if def.Formats == nil {
		return def.Fields
	}
	formats := make([]int, 0, len(def.Formats))
	for f := range def.Formats {
		formats = append(formats, int(f))
	}
	sort.Ints(formats)
	var fields []otconv.FieldSpec
	for _, f := range formats {
		fields = append(fields, def.Formats[uint16(f)]...)
	}
	return fields
}

func formatValue(v any) string {
	switch value := v.(type) {
	case nil:
		return "<unset>"
	case *otconv.Table:
		return fmt.Sprintf("<%s>", value.Def().Name)
	case otconv.Sequence:
		return fmt.Sprintf("<sequence of %d>", value.Len())
	case []int:
		parts := make([]string, len(value))
		for i, n := range value {
			parts[i] = fmt.Sprintf("%d", n)
		}
		return "[" + strings.Join(parts, " ") + "]"
	case map[string]any:
		return fmt.Sprintf("<glyph mapping of %d>", len(value))
	default:
		return fmt.Sprintf("%v", value)
	}
}
