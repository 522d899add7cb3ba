// Package testutil provides shared fixtures for the converter test suites:
// synthetic glyph namespaces and a builder for big-endian binary table data.
package testutil

import (
	"fmt"

	"github.com/otfkit/otconv/ot"
)

// GlyphOrder builds a glyph namespace with n synthetic glyphs, ".notdef"
// first, the way TTX test fixtures name them.
func GlyphOrder(n int) *ot.GlyphOrder {
	names := make([]string, 0, n)
	names = append(names, ".notdef")
	for i := 1; i < n; i++ {
		names = append(names, fmt.Sprintf("g%d", i))
	}
	return ot.NewGlyphOrder(names)
}

// Buf assembles big-endian binary table fixtures.
type Buf struct {
	data []byte
}

// NewBuf creates an empty fixture buffer.
func NewBuf() *Buf {
	return &Buf{}
}

func (b *Buf) U8(v uint8) *Buf {
	b.data = append(b.data, v)
	return b
}

func (b *Buf) U16(v uint16) *Buf {
	b.data = append(b.data, byte(v>>8), byte(v))
	return b
}

func (b *Buf) U32(v uint32) *Buf {
	b.data = append(b.data, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	return b
}

// Tag appends a 4-byte table tag.
func (b *Buf) Tag(s string) *Buf {
	b.data = append(b.data, s[:4]...)
	return b
}

// Raw appends literal bytes.
func (b *Buf) Raw(bytes ...byte) *Buf {
	b.data = append(b.data, bytes...)
	return b
}

// Zero appends n zero bytes.
func (b *Buf) Zero(n int) *Buf {
	b.data = append(b.data, make([]byte, n)...)
	return b
}

// Bytes returns the assembled fixture.
func (b *Buf) Bytes() []byte {
	return b.data
}
