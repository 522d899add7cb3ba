package otconv

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/otfkit/otconv/internal/testutil"
	"github.com/otfkit/otconv/ot"
)

func deviceDef(t *testing.T) *TableDef {
	t.Helper()
	reg := NewRegistry()
	return reg.MustDefine(&TableDef{
		Name: "Device",
		Fields: []FieldSpec{
			{Type: "uint16", Name: "StartSize"},
			{Type: "uint16", Name: "EndSize"},
			{Type: "uint16", Name: "DeltaFormat"},
			{Type: "DeltaValue", Name: "DeltaValue"},
		},
	})
}

func TestDeviceDeltaFormats(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want []int
	}{
		{
			name: "2-bit",
			data: testutil.NewBuf().U16(12).U16(13).U16(1).U16(0x7000).Bytes(),
			want: []int{1, -1},
		},
		{
			name: "4-bit",
			data: testutil.NewBuf().U16(0).U16(3).U16(2).U16(0x187F).Bytes(),
			want: []int{1, -8, 7, -1},
		},
		{
			// three 8-bit deltas: the second word is only half used
			name: "8-bit partial word",
			data: testutil.NewBuf().U16(0).U16(2).U16(3).U16(0x01FF).U16(0x7F00).Bytes(),
			want: []int{1, -1, 127},
		},
	}
	def := deviceDef(t)
	c := newTestContext(4)
	for _, tc := range cases {
		tbl := decompileTable(t, def, tc.data, c)
		deltas, _ := tbl.Get("DeltaValue")
		if !reflect.DeepEqual(deltas, tc.want) {
			t.Errorf("%s: expected deltas %v, have %v", tc.name, tc.want, deltas)
		}
		if out := compileTable(t, tbl, c); !bytes.Equal(out, tc.data) {
			t.Errorf("%s: re-encoding changed the bytes:\nin:  % x\nout: % x",
				tc.name, tc.data, out)
		}
	}
}

func TestDeviceDeltaIllegalFormat(t *testing.T) {
	def := deviceDef(t)
	c := newTestContext(4)
	data := testutil.NewBuf().U16(0).U16(1).U16(4).U16(0).Bytes()
	r := ot.NewReader(data)
	tbl := NewTable(def)
	if err := tbl.Decompile(r, c); err == nil {
		t.Errorf("expected DeltaFormat 4 to abort decoding")
	}
}

func varIdxMapDef(t *testing.T) *TableDef {
	t.Helper()
	reg := NewRegistry()
	return reg.MustDefine(&TableDef{
		Name: "VarIdxMap",
		Fields: []FieldSpec{
			{Type: "uint16", Name: "EntryFormat"},
			{Type: "uint16", Name: "MappingCount"},
			{Type: "VarIdxMapValue", Name: "VarIdx"},
		},
	})
}

func TestVarIdxMapEntrySizes(t *testing.T) {
	def := varIdxMapDef(t)
	c := newTestContext(4)

	// entry format 0x38: 4-byte entries, 9 inner bits
	data := testutil.NewBuf().U16(0x0038).U16(1).U32(0x00000345).Bytes()
	tbl := decompileTable(t, def, data, c)
	mapping, _ := tbl.Get("VarIdx")
	if !reflect.DeepEqual(mapping, []int{0x00010145}) {
		t.Errorf("expected combined index 0x00010145, have %#x", mapping)
	}
	if out := compileTable(t, tbl, c); !bytes.Equal(out, data) {
		t.Errorf("re-encoding changed the bytes:\nin:  % x\nout: % x", data, out)
	}

	// entry format 0x14: 2-byte entries, 5 inner bits
	data = testutil.NewBuf().U16(0x0014).U16(1).U16(0x0023).Bytes()
	tbl = decompileTable(t, def, data, c)
	mapping, _ = tbl.Get("VarIdx")
	if !reflect.DeepEqual(mapping, []int{0x00010003}) {
		t.Errorf("expected combined index 0x00010003, have %#x", mapping)
	}
	if out := compileTable(t, tbl, c); !bytes.Equal(out, data) {
		t.Errorf("re-encoding changed the bytes:\nin:  % x\nout: % x", data, out)
	}
}

func varDataDef(t *testing.T) *TableDef {
	t.Helper()
	reg := NewRegistry()
	return reg.MustDefine(&TableDef{
		Name: "VarData",
		Fields: []FieldSpec{
			{Type: "uint16", Name: "ItemCount"},
			{Type: "uint16", Name: "NumShorts"},
			{Type: "uint16", Name: "VarRegionCount"},
			{Type: "VarDataValue", Name: "Item", Repeat: "ItemCount"},
		},
	})
}

func TestVarDataRows(t *testing.T) {
	def := varDataDef(t)
	c := newTestContext(4)
	// 2 rows of 3 regions: one 16-bit delta, two 8-bit deltas per row
	data := testutil.NewBuf().
		U16(2).U16(1).U16(3).
		U16(300).U8(5).U8(0xFE).
		U16(0xFFFF).U8(0).U8(3).
		Bytes()
	tbl := decompileTable(t, def, data, c)
	seq, _ := tbl.Get("Item")
	rows, err := seq.(Sequence).Slice(0, seq.(Sequence).Len())
	if err != nil {
		t.Fatalf("slicing delta-set rows: %v", err)
	}
	want := [][]int{{300, 5, -2}, {-1, 0, 3}}
	for i, row := range rows {
		if !reflect.DeepEqual(row, want[i]) {
			t.Errorf("row %d: expected %v, have %v", i, want[i], row)
		}
	}
	if out := compileTable(t, tbl, c); !bytes.Equal(out, data) {
		t.Errorf("re-encoding changed the bytes:\nin:  % x\nout: % x", data, out)
	}
}

func TestVarDataWideDeltas(t *testing.T) {
	def := varDataDef(t)
	c := newTestContext(4)
	// bit 15 of NumShorts doubles both delta widths
	data := testutil.NewBuf().
		U16(1).U16(0x8001).U16(2).
		U32(70000).U16(0xFFFD).
		Bytes()
	tbl := decompileTable(t, def, data, c)
	seq, _ := tbl.Get("Item")
	row, err := seq.(Sequence).At(0)
	if err != nil {
		t.Fatalf("reading delta-set row: %v", err)
	}
	if !reflect.DeepEqual(row, []int{70000, -3}) {
		t.Errorf("expected row [70000 -3], have %v", row)
	}
	if out := compileTable(t, tbl, c); !bytes.Equal(out, data) {
		t.Errorf("re-encoding changed the bytes:\nin:  % x\nout: % x", data, out)
	}
}
