package ot

import "fmt"

// GlyphIndex is a glyph index in a font.
type GlyphIndex uint16

// GlyphNamespace is the capability converters use to translate between
// glyph indices and glyph names. Conversions to a name must never fail:
// corrupt fonts routinely reference glyph IDs beyond the glyph count, and
// the converter engine degrades to a synthesized placeholder name in that
// case rather than aborting the decode.
type GlyphNamespace interface {
	GlyphName(gid GlyphIndex) string          // never fails, may synthesize a name
	GlyphID(name string) (GlyphIndex, error)  // reverse lookup
	NumGlyphs() int                           // number of glyphs in the font
	GlyphOrder() []string                     // glyph names in glyph-ID order
}

// SyntheticGlyphName returns the placeholder name used for glyph IDs
// which are out of range for the font's glyph order.
func SyntheticGlyphName(gid GlyphIndex) string {
	return fmt.Sprintf("glyph%05d", gid)
}

// GlyphOrder is a GlyphNamespace backed by a plain list of glyph names in
// glyph-ID order, the way TTX dumps model a font's glyph set.
type GlyphOrder struct {
	names []string
	ids   map[string]GlyphIndex
}

// NewGlyphOrder creates a GlyphOrder from names in glyph-ID order.
func NewGlyphOrder(names []string) *GlyphOrder {
	ids := make(map[string]GlyphIndex, len(names))
	for i, name := range names {
		ids[name] = GlyphIndex(i)
	}
	return &GlyphOrder{names: names, ids: ids}
}

func (g *GlyphOrder) GlyphName(gid GlyphIndex) string {
	if int(gid) < len(g.names) {
		return g.names[gid]
	}
	return SyntheticGlyphName(gid)
}

func (g *GlyphOrder) GlyphID(name string) (GlyphIndex, error) {
	if gid, ok := g.ids[name]; ok {
		return gid, nil
	}
	// Accept synthesized placeholder names, so that a table decoded from a
	// font with corrupt glyph-count metadata can be re-encoded.
	var gid GlyphIndex
	if n, err := fmt.Sscanf(name, "glyph%d", &gid); n == 1 && err == nil {
		return gid, nil
	}
	return 0, errFontFormat(fmt.Sprintf("unknown glyph name %q", name))
}

func (g *GlyphOrder) NumGlyphs() int {
	return len(g.names)
}

func (g *GlyphOrder) GlyphOrder() []string {
	return g.names
}
