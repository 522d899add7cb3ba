/*
Package otconv implements a schema-driven codec for OpenType and AAT font
table binaries.

A table's binary shape is declared as a list of field specs (type, name,
repeat, condition); a Registry compiles such a declaration into a list of
bound converter objects, one per field. A converter knows how to read
its field from a byte cursor, write it to a byte sink, and round-trip it
through a textual (XML) element tree. Decoding and encoding a table is then
a loop over its converters in schema order.

The converter set covers the full range of binary idioms found in OpenType
and Apple Advanced Typography tables: fixed-width scalars and fixed-point
numbers, offset-addressed sub-tables with deferred serialization and offset
back-patching, length-prefixed structures, lazily decoded fixed-record
arrays, bit-packed variation deltas, the five-format AAT glyph lookup
table (encoded in whichever format is smallest), and the four-section AAT
extended state table ("STX") with de-duplicated transition entries.

Font binaries found in the wild are frequently corrupt, truncated or
adversarial. Converters therefore never index blindly: cursor reads are
bounds-checked, unknown format codes abort the decode with an error, and
recoverable oddities (non-ASCII bytes in ASCII fields, glyph IDs beyond the
glyph count, name IDs without a name) degrade with a traced warning instead
of failing.

# Status

Decode-only support for AAT lookup format 4; the encoder never chooses it,
since its extra indirection is not minimal for the mappings this engine
produces.

# License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.
*/
package otconv

import (
	"fmt"

	"github.com/npillmayer/schuko/tracing"
)

// tracer writes to trace with key 'otfkit.otconv'
func tracer() tracing.Trace {
	return tracing.Select("otfkit.otconv")
}

// errFormat produces user level errors for table conversion.
func errFormat(message string) error {
	return fmt.Errorf("OpenType table format: %s", message)
}
