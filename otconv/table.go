package otconv

import (
	"fmt"

	"github.com/otfkit/otconv/ot"
)

// Table is a structured table value: named fields populated by the table
// declaration's converters, in schema order. A Table exclusively owns its
// field values, including nested Tables, forming a tree.
type Table struct {
	def    *TableDef
	Format uint16
	vals   Values

	// Deferred decode capture, set instead of vals when the table was read
	// through an offset field under a lazy context.
	reader  *ot.Reader
	lazyCtx *Context
}

// NewTable creates an empty instance of a declared table type.
func NewTable(def *TableDef) *Table {
	return &Table{def: def, vals: make(Values)}
}

// Def returns the table's declaration.
func (t *Table) Def() *TableDef {
	return t.def
}

// Get returns a field value, forcing a deferred decode first.
func (t *Table) Get(name string) (any, error) {
	if err := t.Resolve(); err != nil {
		return nil, err
	}
	return t.vals[name], nil
}

// Set stores a field value.
func (t *Table) Set(name string, v any) {
	t.vals[name] = v
}

// Values returns the table's field value set. The caller should have
// resolved a lazily captured table first.
func (t *Table) Values() Values {
	return t.vals
}

// Resolve forces a deferred decode of a table captured under a lazy
// context. Resolving an already-decoded table is a no-op.
func (t *Table) Resolve() error {
	if t.reader == nil {
		return nil
	}
	r, c := t.reader, t.lazyCtx
	t.reader, t.lazyCtx = nil, nil
	return t.Decompile(r, c)
}

// rawValues exposes the field map for count cells.
func (t *Table) rawValues() map[string]any {
	return map[string]any(t.vals)
}

// --- Binary decode ---------------------------------------------------------

// Decompile populates the table's fields from the cursor, iterating the
// bound converters in schema order.
func (t *Table) Decompile(r *ot.Reader, c *Context) error {
	if t.def.Formats != nil {
		format, err := r.ReadU16()
		if err != nil {
			return err
		}
		t.Format = format
	}
	convs, err := t.def.convertersFor(t.Format)
	if err != nil {
		return err
	}
	for _, conv := range convs {
		conv, err := t.dispatch(conv, r.TableTag, func(name string) (any, bool) {
			return r.Local(name)
		})
		if err != nil {
			return err
		}
		fs := conv.Spec()
		if fs.Repeat != "" {
			count, err := t.repeatCount(fs, func(name string) (any, bool) {
				return r.Local(name)
			})
			if err != nil {
				return err
			}
			seq, err := readFieldArray(conv, r, c, t.vals, count)
			if err != nil {
				return fmt.Errorf("%s.%s: %w", t.def.Name, fs.Name, err)
			}
			t.vals[fs.Name] = seq
			continue
		}
		if fs.Cond != nil && !fs.Cond(t.vals) {
			continue
		}
		v, err := conv.Read(r, c, t.vals)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", t.def.Name, fs.Name, err)
		}
		t.vals[fs.Name] = v
		if conv.IsPropagated() {
			r.SetLocal(fs.Name, v)
		}
	}
	return nil
}

// repeatCount resolves the count governing an array field: a sibling field
// if present, else a propagated ancestor value from the cursor/sink store.
func (t *Table) repeatCount(fs FieldSpec, local func(string) (any, bool)) (int, error) {
	if n, ok := t.vals.Int(fs.Repeat); ok {
		return n + fs.Aux, nil
	}
	if v, ok := local(fs.Repeat); ok {
		switch n := v.(type) {
		case int:
			return n + fs.Aux, nil
		case *ot.CountCell:
			return n.Value() + fs.Aux, nil
		}
	}
	return 0, errFormat(fmt.Sprintf("array %s.%s has no count field %s",
		t.def.Name, fs.Name, fs.Repeat))
}

// dispatch rebinds converters whose target type depends on sibling values:
// lookup sub-tables and feature params.
func (t *Table) dispatch(conv Converter, tableTag ot.Tag, local func(string) (any, bool)) (Converter, error) {
	d, ok := conv.(dispatcher)
	if !ok {
		return conv, nil
	}
	return d.dispatchConverter(tableTag, t.vals, local)
}

// dispatcher is implemented by converters which must be rebound to a
// concrete target declaration per table instance.
type dispatcher interface {
	dispatchConverter(tableTag ot.Tag, vals Values, local func(string) (any, bool)) (Converter, error)
}

// --- Binary encode ---------------------------------------------------------

// Compile serializes the table's fields to the sink, iterating the bound
// converters in schema order. Count fields are recomputed from their
// governed arrays, never taken from stored values.
func (t *Table) Compile(w *ot.Writer, c *Context) error {
	if err := t.Resolve(); err != nil {
		return err
	}
	if t.def.Formats != nil {
		w.WriteU16(t.Format)
	}
	convs, err := t.def.convertersFor(t.Format)
	if err != nil {
		return err
	}
	for _, conv := range convs {
		conv, err := t.dispatch(conv, w.TableTag, func(name string) (any, bool) {
			return w.Local(name)
		})
		if err != nil {
			return err
		}
		fs := conv.Spec()
		switch {
		case fs.Repeat != "":
			seq := t.sequence(fs.Name)
			count := seq.Len() - fs.Aux
			if _, ok := t.vals[fs.Repeat]; ok {
				t.vals[fs.Repeat] = count
			} else if v, ok := w.Local(fs.Repeat); ok {
				if cell, ok := v.(*ot.CountCell); ok {
					cell.Set(count)
				}
			}
			if err := writeFieldArray(conv, w, c, t.vals, seq); err != nil {
				return fmt.Errorf("%s.%s: %w", t.def.Name, fs.Name, err)
			}
		case conv.IsCount():
			// Emit a placeholder cell; array converters and length-prefixed
			// struct converters overwrite the slot with the true value
			// before the sink resolves it. Non-length computed fields
			// (MorphType) keep their stored value.
			size, _ := staticSizeOf(conv)
			ref := w.WriteCountReference(t.rawValues(), fs.Name, size)
			if conv.IsPropagated() {
				w.SetLocal(fs.Name, ref)
			}
		default:
			if fs.Cond != nil && !fs.Cond(t.vals) {
				continue
			}
			if err := conv.Write(w, c, t.vals, t.vals[fs.Name], -1); err != nil {
				return fmt.Errorf("%s.%s: %w", t.def.Name, fs.Name, err)
			}
			if conv.IsPropagated() {
				w.SetLocal(fs.Name, t.vals[fs.Name])
			}
		}
	}
	return nil
}

// sequence returns an array field as a Sequence; unset fields count as
// empty.
func (t *Table) sequence(name string) Sequence {
	switch seq := t.vals[name].(type) {
	case nil:
		return EagerSequence{}
	case Sequence:
		return seq
	case []any:
		return EagerSequence(seq)
	default:
		return EagerSequence{seq}
	}
}

// --- Text round trip -------------------------------------------------------

// ToXML appends this table as a child element of parent. An empty name uses
// the table type's name, the convention for dispatch-selected sub-tables.
func (t *Table) ToXML(parent *Element, c *Context, name string, attrs []Attr) error {
	if err := t.Resolve(); err != nil {
		return err
	}
	if name == "" {
		name = t.def.Name
	}
	e := parent.AppendChild(NewElement(name, attrs...))
	if t.def.Formats != nil {
		e.SetAttr("Format", fmt.Sprintf("%d", t.Format))
	}
	convs, err := t.def.convertersFor(t.Format)
	if err != nil {
		return err
	}
	// No dispatch here: a stored sub-table value carries its own concrete
	// declaration, which is all the element emission needs.
	for _, conv := range convs {
		fs := conv.Spec()
		if fs.Repeat != "" {
			seq := t.sequence(fs.Name)
			for i := 0; i < seq.Len(); i++ {
				v, err := seq.At(i)
				if err != nil {
					return err
				}
				attrs := []Attr{{Name: "index", Value: fmt.Sprintf("%d", i)}}
				if err := conv.ToXML(e, c, v, fs.Name, attrs); err != nil {
					return err
				}
			}
			continue
		}
		if fs.Cond != nil && !fs.Cond(t.vals) {
			continue
		}
		if err := conv.ToXML(e, c, t.vals[fs.Name], fs.Name, nil); err != nil {
			return err
		}
	}
	return nil
}

// FromXML reconstructs the table's fields from an element. Propagation
// cells for the table's propagated fields are installed before descending
// into children, so a count stored before its governed array is fully
// rebuilt becomes visible to descendants, and finalized afterwards.
func (t *Table) FromXML(e *Element, c *Context) error {
	if t.def.Formats != nil {
		format, err := e.IntAttr("Format")
		if err != nil {
			return err
		}
		t.Format = uint16(format)
	}
	convs, err := t.def.convertersFor(t.Format)
	if err != nil {
		return err
	}

	var installed []string
	for _, conv := range convs {
		if conv.IsPropagated() {
			name := conv.Name()
			t.vals[name] = nil
			if err := c.installPropagated(name, ot.NewCountCell(t.rawValues(), name, 0)); err != nil {
				return err
			}
			installed = append(installed, name)
		}
	}
	defer func() {
		for _, name := range installed {
			c.removePropagated(name)
		}
	}()

	for _, child := range e.Children {
		if child.isComment() {
			continue
		}
		conv, err := t.def.converterForElement(t.Format, child.Name)
		if err != nil {
			return err
		}
		v, err := conv.FromXML(child, c)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", t.def.Name, conv.Name(), err)
		}
		fs := conv.Spec()
		if fs.Repeat != "" {
			seq, _ := t.vals[fs.Name].(EagerSequence)
			t.vals[fs.Name] = append(seq, v)
		} else {
			t.vals[fs.Name] = v
		}
	}

	t.populateDefaults(c)
	return nil
}

// populateDefaults fills unset array fields with empty sequences, unset
// computed counts with nil, and finalizes propagated count cells from the
// true lengths of their governed arrays (exactly once per import).
func (t *Table) populateDefaults(c *Context) {
	convs, err := t.def.convertersFor(t.Format)
	if err != nil {
		return
	}
	for _, conv := range convs {
		fs := conv.Spec()
		switch {
		case fs.Repeat != "":
			if _, ok := t.vals[fs.Name]; !ok {
				t.vals[fs.Name] = EagerSequence{}
			}
			count := t.sequence(fs.Name).Len() - fs.Aux
			if cell, ok := c.propagated(fs.Repeat); ok {
				cell.Set(count)
			}
		case conv.IsCount():
			if _, ok := t.vals[fs.Name]; !ok {
				t.vals[fs.Name] = nil
			}
		}
	}
}
