/*
Package ot provides the shared basics for converting OpenType and AAT font
table binaries: tags, glyph indices and the glyph-namespace capability,
fixed-point number handling, and the byte cursor/sink pair that the
converter engine (package otconv) reads from and writes to.

Binary font data is big-endian throughout. The Reader type is a cursor over
an immutable byte buffer; bounds violations surface as errors, never as
panics, because font files found in the wild are frequently corrupt and a
conversion must be able to fail cleanly.

The Writer type is a two-phase sink: during the first phase converters emit
raw bytes, deferred sub-tables and count placeholders into a segment tree;
the second phase (triggered by Data) resolves positions, de-duplicates
identical sub-table subtrees and patches offsets and counts into the final
byte string. Offsets are relative to the start of the referring table, as
the OpenType specification mandates.

# Status

Covers what the converter engine needs; not a general font-file API.

# License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.
*/
package ot

import (
	"fmt"

	"github.com/npillmayer/schuko/tracing"
)

// tracer writes to trace with key 'otfkit.otconv'
func tracer() tracing.Trace {
	return tracing.Select("otfkit.otconv")
}

// errFontFormat produces user level errors for font binary data.
func errFontFormat(message string) error {
	return fmt.Errorf("OpenType font format: %s", message)
}
