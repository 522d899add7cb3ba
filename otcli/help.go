package main

import (
	"strings"

	"github.com/pterm/pterm"
)

func helpOp(intp *Intp, op *Op) (error, bool) {
	help(op.arg)
	return nil, false
}

func help(topic string) {
	tracer().Infof("help %v", topic)
	t := strings.ToLower(topic)
	switch t {
	case "decode", "encode", "import", "export":
		pterm.Info.Println("Converting tables")
		pterm.Println(`
	decode:<Table>:<file>   decode a binary table file against a declaration
	import:<Table>:<file>   reconstruct a table from an XML file
	encode[:<file>]         re-encode the current table (optionally to a file)
	export[:<file>]         write the current table as XML (or to the screen)

	A table declaration names the binary shape; use 'tables' to list the
	built-in declarations and 'fields:<Table>' to inspect one.
	`)
	case "lookup", "lookups", "aat":
		pterm.Info.Println("AAT lookup tables")
		pterm.Println(`
	An AAT lookup maps glyphs to values in one of five binary formats:
	+--------+-----------------------------------------+
	| 0      | dense array, one value per glyph        |
	| 2      | runs of (first, last, value)            |
	| 4      | runs with per-glyph value sub-arrays    |
	| 6      | sorted (glyph, value) pairs             |
	| 8      | dense array over one contiguous range   |
	+--------+-----------------------------------------+
	Encoding picks the smallest format; format 4 is decode-only.
	`)
	case "stx", "state", "states":
		pterm.Info.Println("AAT extended state tables")
		pterm.Println(`
	An extended state table is a state machine over glyph classes:
	+-----------------------------------------+
	| header: class count + section offsets   |
	+-----------------------------------------+
	| class table (an AAT lookup)             |
	+-----------------------------------------+
	| state array: entry index per (state,    |
	|              class) cell                |
	+-----------------------------------------+
	| entry table: deduplicated transitions   |
	+-----------------------------------------+
	| per-glyph lookups (contextual only)     |
	+-----------------------------------------+
	`)
	default:
		pterm.Info.Println("Commands")
		pterm.Println(`
	tables                  list table declarations
	fields:<Table>          show one declaration's fields
	decode:<Table>:<file>   decode a binary table file
	import:<Table>:<file>   reconstruct a table from XML
	encode[:<file>]         re-encode the current table
	export[:<file>]         write the current table as XML
	get[:<Field>]           show a decoded field value
	lazy[:on|off]           toggle lazy array decoding
	warnings                show collected conversion warnings
	quit                    leave (also <ctrl>D)

	help:<topic> for more; topics: decode, lookup, stx
	`)
	}
}
