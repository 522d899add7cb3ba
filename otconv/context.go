package otconv

import (
	"fmt"

	"github.com/otfkit/otconv/ot"
)

// NameResolver is the optional capability used to annotate name-table IDs
// with their human-readable value when writing XML.
type NameResolver interface {
	DebugName(nameID uint16) (string, bool)
}

// Context carries the per-pass state of one top-level decode or encode: the
// glyph namespace of the font the table belongs to, the lazy-decoding flag,
// an optional warning collector, and the propagation cells which make an
// ancestor's count fields visible to converters of descendant structures.
//
// A Context is scoped to one top-level conversion and must not be shared
// between unrelated conversions: leaking propagated names across tables
// corrupts nested counts.
type Context struct {
	Glyphs ot.GlyphNamespace
	Names  NameResolver // may be nil
	Lazy   bool         // defer decoding of large arrays and offset targets
	Diag   *Collector   // may be nil

	propagator map[string]*ot.CountCell
}

// NewContext creates a conversion context over the given glyph namespace.
func NewContext(glyphs ot.GlyphNamespace) *Context {
	return &Context{Glyphs: glyphs}
}

// warn traces a degraded-but-recoverable condition and records it with the
// context's collector, if any.
func (c *Context) warn(table, field, format string, args ...any) {
	w := ConvWarning{Table: table, Field: field, Issue: fmt.Sprintf(format, args...)}
	tracer().Infof(w.String())
	if c.Diag != nil {
		c.Diag.add(w.Table, w.Field, w.Issue)
	}
}

// propagated returns the cell installed for a propagated field name, if any.
func (c *Context) propagated(name string) (*ot.CountCell, bool) {
	cell, ok := c.propagator[name]
	return cell, ok
}

// installPropagated installs a cell for a propagated field before its
// table's children are reconstructed. Re-entrant installation of the same
// name is a schema error.
func (c *Context) installPropagated(name string, cell *ot.CountCell) error {
	if c.propagator == nil {
		c.propagator = make(map[string]*ot.CountCell)
	}
	if _, ok := c.propagator[name]; ok {
		return errFormat("propagated field " + name + " installed twice")
	}
	c.propagator[name] = cell
	return nil
}

// removePropagated tears down a propagation cell after the owning table's
// subtree has been processed.
func (c *Context) removePropagated(name string) {
	delete(c.propagator, name)
}
