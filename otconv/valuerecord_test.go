package otconv

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/otfkit/otconv/internal/testutil"
)

func posRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	reg.MustDefine(&TableDef{
		Name: "Device",
		Fields: []FieldSpec{
			{Type: "uint16", Name: "StartSize"},
			{Type: "uint16", Name: "EndSize"},
			{Type: "uint16", Name: "DeltaFormat"},
			{Type: "DeltaValue", Name: "DeltaValue"},
		},
	})
	reg.MustDefine(&TableDef{
		Name: "SinglePos",
		Fields: []FieldSpec{
			{Type: "uint16", Name: "ValueFormat"},
			{Type: "ValueRecord", Name: "Value"},
		},
	})
	return reg
}

func TestValueRecordScalars(t *testing.T) {
	reg := posRegistry(t)
	def, _ := reg.Table("SinglePos")
	c := newTestContext(4)
	// format 0x0005 selects XPlacement and XAdvance
	data := testutil.NewBuf().U16(0x0005).U16(0xFFFB).U16(10).Bytes()
	tbl := decompileTable(t, def, data, c)
	v, err := tbl.Get("Value")
	require.NoError(t, err)
	vr := v.(*ValueRecord)
	require.Equal(t, -5, vr.Entries["XPlacement"])
	require.Equal(t, 10, vr.Entries["XAdvance"])
	_, hasY := vr.Entries["YPlacement"]
	require.False(t, hasY, "format 0x0005 carries no YPlacement")

	out := compileTable(t, tbl, c)
	require.True(t, bytes.Equal(out, data), "re-encoding changed the bytes: % x", out)
}

func TestValueRecordWithDevice(t *testing.T) {
	reg := posRegistry(t)
	def, _ := reg.Table("SinglePos")
	c := newTestContext(4)
	// format 0x0011 selects XPlacement and XPlaDevice
	data := testutil.NewBuf().
		U16(0x0011).
		U16(5).U16(6). // XPlacement, device offset
		U16(12).U16(13).U16(1).U16(0x7000).
		Bytes()
	tbl := decompileTable(t, def, data, c)
	v, err := tbl.Get("Value")
	require.NoError(t, err)
	vr := v.(*ValueRecord)
	require.Equal(t, 5, vr.Entries["XPlacement"])
	device := vr.Entries["XPlaDevice"].(*Table)
	require.NotNil(t, device)
	require.Equal(t, 12, fieldInt(t, device, "StartSize"))
	deltas, err := device.Get("DeltaValue")
	require.NoError(t, err)
	require.Equal(t, []int{1, -1}, deltas)

	out := compileTable(t, tbl, c)
	require.True(t, bytes.Equal(out, data), "re-encoding changed the bytes: % x", out)
}

func TestValueRecordXMLRoundTrip(t *testing.T) {
	reg := posRegistry(t)
	def, _ := reg.Table("SinglePos")
	c := newTestContext(4)
	data := testutil.NewBuf().
		U16(0x0011).
		U16(5).U16(6).
		U16(12).U16(13).U16(1).U16(0x7000).
		Bytes()
	tbl := decompileTable(t, def, data, c)
	fresh := xmlRoundTrip(t, def, tbl, c)
	out := compileTable(t, fresh, c)
	require.True(t, bytes.Equal(out, data),
		"XML round trip changed the bytes:\nin:  % x\nout: % x", data, out)
}
