package ot

import (
	"fmt"
	"strings"
)

// Building the binary representation of a table.

// CountCell is a mutable placeholder for a count-like field whose final
// value is only known after the structure governed by the count has been
// assembled. The cell references a slot in a table's value set; the Writer
// resolves it when the final byte string is produced.
type CountCell struct {
	table map[string]any
	name  string
	size  int
}

// NewCountCell creates a cell referencing table[name], serialized in the
// given number of bytes.
func NewCountCell(table map[string]any, name string, size int) *CountCell {
	return &CountCell{table: table, name: name, size: size}
}

// Set stores a count value into the referenced table slot.
func (c *CountCell) Set(n int) {
	c.table[c.name] = n
}

// Value returns the current count value; an unset slot counts as 0.
func (c *CountCell) Value() int {
	if v, ok := c.table[c.name]; ok && v != nil {
		if n, ok := v.(int); ok {
			return n
		}
	}
	return 0
}

type itemKind int

const (
	rawItem itemKind = iota
	subItem
	cellItem
)

type wrItem struct {
	kind       itemKind
	raw        []byte
	sub        *Writer
	offsetSize int // 2 or 4, for subItem
	cell       *CountCell
}

func (it wrItem) width() int {
	switch it.kind {
	case rawItem:
		return len(it.raw)
	case subItem:
		return it.offsetSize
	default:
		return it.cell.size
	}
}

// Writer is a byte sink for one table (or sub-table). Scalar writes append
// to a segment list; sub-tables are registered as deferred segments whose
// offsets the writer patches when the final byte string is assembled.
//
// Identical sub-table subtrees are stored once: two sub-writers which
// resolve to the same byte content are collapsed to a single instance, and
// all referring offsets point at it.
type Writer struct {
	items []wrItem
	// LongOffset marks this sub-table as referenced through a 32-bit offset.
	LongOffset bool
	// Extension forces 32-bit offsets for every sub-table registered on
	// this writer, regardless of the declared offset width. Extension
	// lookup sub-tables need this to reach beyond the 16-bit offset space.
	Extension bool
	// Name of the field this writer serializes, for diagnostics.
	Name string

	store    map[string]any
	TableTag Tag

	pos int    // resolved absolute position, valid during Data()
	sig string // memoized dedup signature
}

// NewWriter creates an empty sink.
func NewWriter() *Writer {
	return &Writer{store: make(map[string]any)}
}

// SubWriter produces a new deferred sink. The string-keyed store and the
// table tag are shared with the new sink. The sub-writer only becomes part
// of the output once it is registered with WriteSubTable.
func (w *Writer) SubWriter() *Writer {
	return &Writer{store: w.store, TableTag: w.TableTag}
}

// WriteSubTable registers sub as a deferred segment at the current
// position. An offset placeholder of the appropriate width is reserved and
// patched during Data.
func (w *Writer) WriteSubTable(sub *Writer) {
	size := 2
	if w.Extension || sub.LongOffset {
		size = 4
	}
	w.items = append(w.items, wrItem{kind: subItem, sub: sub, offsetSize: size})
}

// WriteCountReference reserves a size-byte placeholder for table[name] and
// returns the cell through which the final value can be set.
func (w *Writer) WriteCountReference(table map[string]any, name string, size int) *CountCell {
	cell := NewCountCell(table, name, size)
	w.items = append(w.items, wrItem{kind: cellItem, cell: cell})
	return cell
}

// Local returns a value from the writer's string-keyed store.
func (w *Writer) Local(name string) (any, bool) {
	v, ok := w.store[name]
	return v, ok
}

// SetLocal stores a value in the writer's string-keyed store, making it
// visible to all sub-writers of this sink.
func (w *Writer) SetLocal(name string, v any) {
	w.store[name] = v
}

// DataLength returns the byte length of this writer's own segment,
// counting reserved offset and count placeholders at their serialized
// width. Deferred sub-table content is not included.
func (w *Writer) DataLength() int {
	n := 0
	for _, it := range w.items {
		n += it.width()
	}
	return n
}

// WriteData appends a pre-assembled span of bytes.
func (w *Writer) WriteData(data []byte) {
	raw := make([]byte, len(data))
	copy(raw, data)
	w.items = append(w.items, wrItem{kind: rawItem, raw: raw})
}

func (w *Writer) WriteU8(v uint8) {
	w.items = append(w.items, wrItem{kind: rawItem, raw: []byte{v}})
}

func (w *Writer) WriteI8(v int8) {
	w.WriteU8(uint8(v))
}

func (w *Writer) WriteU16(v uint16) {
	w.items = append(w.items, wrItem{kind: rawItem, raw: []byte{byte(v >> 8), byte(v)}})
}

func (w *Writer) WriteI16(v int16) {
	w.WriteU16(uint16(v))
}

func (w *Writer) WriteU24(v uint32) {
	w.items = append(w.items, wrItem{kind: rawItem,
		raw: []byte{byte(v >> 16), byte(v >> 8), byte(v)}})
}

func (w *Writer) WriteU32(v uint32) {
	w.items = append(w.items, wrItem{kind: rawItem,
		raw: []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}})
}

func (w *Writer) WriteI32(v int32) {
	w.WriteU32(uint32(v))
}

func (w *Writer) WriteTag(t Tag) {
	w.WriteU32(uint32(t))
}

// --- Phase 2: resolution ---------------------------------------------------

// Data assembles the final byte string: identical sub-table subtrees are
// collapsed, positions assigned, and every offset and count placeholder
// patched. Offsets are relative to the start of the referring table; an
// offset which does not fit its reserved width is an error.
func (w *Writer) Data() ([]byte, error) {
	interned := make(map[string]*Writer)
	w.intern(interned)
	tables := w.gather()

	pos := 0
	for _, t := range tables {
		t.pos = pos
		pos += t.DataLength()
	}

	out := make([]byte, 0, pos)
	for _, t := range tables {
		data, err := t.resolve()
		if err != nil {
			return nil, err
		}
		out = append(out, data...)
	}
	return out, nil
}

// intern replaces sub-writers with canonical instances, bottom-up.
func (w *Writer) intern(interned map[string]*Writer) {
	var sb strings.Builder
	for i, it := range w.items {
		switch it.kind {
		case rawItem:
			sb.WriteByte('R')
			sb.Write(it.raw)
		case subItem:
			it.sub.intern(interned)
			if canon, ok := interned[it.sub.sig]; ok {
				w.items[i].sub = canon
			} else {
				interned[it.sub.sig] = it.sub
			}
			fmt.Fprintf(&sb, "S%d:%p", it.offsetSize, w.items[i].sub)
		case cellItem:
			// Cells resolve late; identity decides equality.
			fmt.Fprintf(&sb, "C%p", it.cell)
		}
	}
	w.sig = sb.String()
}

// gather collects the distinct writers reachable from w, parents before
// their sub-tables.
func (w *Writer) gather() []*Writer {
	tables := []*Writer{w}
	seen := map[*Writer]bool{w: true}
	for i := 0; i < len(tables); i++ {
		for _, it := range tables[i].items {
			if it.kind == subItem && !seen[it.sub] {
				seen[it.sub] = true
				tables = append(tables, it.sub)
			}
		}
	}
	return tables
}

// resolve serializes one writer's own segment with all placeholders patched.
func (w *Writer) resolve() ([]byte, error) {
	out := make([]byte, 0, w.DataLength())
	for _, it := range w.items {
		switch it.kind {
		case rawItem:
			out = append(out, it.raw...)
		case subItem:
			offset := it.sub.pos - w.pos
			if it.offsetSize == 2 && offset > 0xFFFF {
				return nil, errFontFormat(fmt.Sprintf(
					"offset overflow: sub-table %q at %d does not fit a 16-bit offset",
					it.sub.Name, offset))
			}
			out = appendUint(out, uint32(offset), it.offsetSize)
		case cellItem:
			value := it.cell.Value()
			if it.cell.size < 4 && value >= 1<<(8*it.cell.size) {
				return nil, errFontFormat(fmt.Sprintf(
					"count overflow: %q = %d does not fit %d byte(s)",
					it.cell.name, value, it.cell.size))
			}
			out = appendUint(out, uint32(value), it.cell.size)
		}
	}
	return out, nil
}

func appendUint(out []byte, v uint32, size int) []byte {
	switch size {
	case 1:
		return append(out, byte(v))
	case 2:
		return append(out, byte(v>>8), byte(v))
	case 3:
		return append(out, byte(v>>16), byte(v>>8), byte(v))
	default:
		return append(out, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	}
}

// Pad appends zero bytes until len(data) is a multiple of n.
func Pad(data []byte, n int) []byte {
	for len(data)%n != 0 {
		data = append(data, 0)
	}
	return data
}
