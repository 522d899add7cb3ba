package otconv

import (
	"github.com/otfkit/otconv/ot"
	"golang.org/x/text/encoding/unicode"
)

// NameID fields reference entries of the font's 'name' table. For XML
// output the engine annotates such fields with the referenced string; this
// file provides the NameResolver backing that annotation, built from the
// raw bytes of a 'name' table.

const (
	nameHeaderSize = 6
	nameRecordSize = 12
)

type platformID uint16

const (
	platformIDUnicode   platformID = 0
	platformIDMacintosh platformID = 1 // not supported
	platformIDWindows   platformID = 3
)

type encodingID uint16

const (
	encodingIDUnicodeBMP encodingID = 3
	encodingIDWindowsBMP encodingID = 1
)

// NameTable resolves name IDs to strings. Only Unicode BMP and Windows BMP
// entries are decoded; malformed or out-of-bounds records are skipped.
type NameTable struct {
	names map[uint16]string
}

// ParseNameTable decodes the raw bytes of an OpenType 'name' table into a
// resolver. A truncated or inconsistent table yields an empty resolver, not
// an error: name annotation is best-effort by design.
func ParseNameTable(data []byte) *NameTable {
	nt := &NameTable{names: make(map[uint16]string)}
	r := ot.NewReader(data)
	if _, err := r.ReadU16(); err != nil { // version
		return nt
	}
	count, err := r.ReadU16()
	if err != nil {
		return nt
	}
	storageOffset, err := r.ReadU16()
	if err != nil {
		return nt
	}
	for i := 0; i < int(count); i++ {
		r.Seek(nameHeaderSize + i*nameRecordSize)
		platform, err := r.ReadU16()
		if err != nil {
			return nt
		}
		encoding, _ := r.ReadU16()
		_, _ = r.ReadU16() // language, not supported
		nameID, _ := r.ReadU16()
		strLen, _ := r.ReadU16()
		strOffset, err := r.ReadU16()
		if err != nil {
			return nt
		}
		if !isSupportedNameEncoding(platformID(platform), encodingID(encoding)) {
			continue
		}
		if _, ok := nt.names[nameID]; ok {
			continue // first supported entry wins
		}
		r.Seek(int(storageOffset) + int(strOffset))
		raw, err := r.ReadData(int(strLen))
		if err != nil {
			continue
		}
		value, err := decodeNameUTF16(raw)
		if err != nil || value == "" {
			continue
		}
		nt.names[nameID] = value
	}
	return nt
}

// DebugName implements NameResolver.
func (nt *NameTable) DebugName(nameID uint16) (string, bool) {
	value, ok := nt.names[nameID]
	return value, ok
}

func isSupportedNameEncoding(platform platformID, encoding encodingID) bool {
	return (platform == platformIDUnicode && encoding == encodingIDUnicodeBMP) ||
		(platform == platformIDWindows && encoding == encodingIDWindowsBMP)
}

func decodeNameUTF16(str []byte) (string, error) {
	enc := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	decoder := enc.NewDecoder()
	s, err := decoder.Bytes(str)
	if err != nil {
		return "", errFormat("decoding UTF-16 name entry: " + err.Error())
	}
	return string(s), nil
}
