package ot

import (
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

func TestReaderScalars(t *testing.T) {
	r := NewReader([]byte{0x12, 0x34, 0x56, 0x78, 0x9A, 0xBC, 0xDE, 0xF0})
	if n, err := r.ReadU16(); err != nil || n != 0x1234 {
		t.Fatalf("expected U16 0x1234, have 0x%04x (%v)", n, err)
	}
	if n, err := r.ReadU8(); err != nil || n != 0x56 {
		t.Fatalf("expected U8 0x56, have 0x%02x (%v)", n, err)
	}
	if n, err := r.ReadU24(); err != nil || n != 0x789ABC {
		t.Fatalf("expected U24 0x789ABC, have 0x%06x (%v)", n, err)
	}
	if n, err := r.ReadU16(); err != nil || n != 0xDEF0 {
		t.Fatalf("expected U16 0xDEF0, have 0x%04x (%v)", n, err)
	}
	if _, err := r.ReadU8(); err == nil {
		t.Fatalf("expected bounds error at end of buffer, got none")
	}
}

func TestReaderSignedScalars(t *testing.T) {
	r := NewReader([]byte{0xFF, 0xFE, 0xFF, 0xFF, 0xFF, 0xFF, 0xFE})
	if n, _ := r.ReadI16(); n != -2 {
		t.Errorf("expected I16 -2, have %d", n)
	}
	if n, _ := r.ReadI8(); n != -1 {
		t.Errorf("expected I8 -1, have %d", n)
	}
	if n, _ := r.ReadI32(); n != -2 {
		t.Errorf("expected I32 -2, have %d", n)
	}
}

func TestReaderTagAndArray(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfkit.otconv")
	defer teardown()
	//
	r := NewReader([]byte{'G', 'S', 'U', 'B', 0, 1, 0, 2, 0, 3})
	tag, err := r.ReadTag()
	if err != nil || tag.String() != "GSUB" {
		t.Fatalf("expected tag GSUB, have %q (%v)", tag.String(), err)
	}
	values, err := r.ReadU16Array(3)
	if err != nil {
		t.Fatalf("ReadU16Array failed: %v", err)
	}
	for i, v := range values {
		if int(v) != i+1 {
			t.Errorf("expected element %d to be %d, have %d", i, i+1, v)
		}
	}
}

func TestSubReaderBase(t *testing.T) {
	data := []byte{0, 0, 0xAA, 0xBB, 0xCC, 0xDD}
	r := NewReader(data)
	sub := r.SubReader(2)
	if n, _ := sub.ReadU16(); n != 0xAABB {
		t.Fatalf("expected sub-reader to start at offset 2, read 0x%04x", n)
	}
	// offsets of a nested sub-reader are relative to its own base
	nested := sub.SubReader(2)
	if n, _ := nested.ReadU16(); n != 0xCCDD {
		t.Fatalf("expected nested sub-reader at offset 4, read 0x%04x", n)
	}
}

func TestReaderStoreShared(t *testing.T) {
	r := NewReader([]byte{0, 0, 0, 0})
	r.SetLocal("ClassCount", 7)
	sub := r.SubReader(2)
	v, ok := sub.Local("ClassCount")
	if !ok || v.(int) != 7 {
		t.Errorf("expected store value to be visible in sub-reader, have %v (%v)", v, ok)
	}
	sub.SetLocal("Other", 1)
	if _, ok := r.Local("Other"); !ok {
		t.Errorf("expected store writes of sub-readers to be visible upward")
	}
}

func TestReaderBounds(t *testing.T) {
	r := NewReader([]byte{1, 2})
	if _, err := r.ReadU32(); err == nil {
		t.Errorf("expected bounds error for U32 over 2 bytes")
	}
	r.Seek(-1)
	if _, err := r.ReadU8(); err == nil {
		t.Errorf("expected bounds error for negative position")
	}
	r.Seek(100)
	if _, err := r.ReadU16(); err == nil {
		t.Errorf("expected bounds error after seeking past the buffer")
	}
}
