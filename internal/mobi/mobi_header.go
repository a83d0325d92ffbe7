package mobi

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// CompressionNone indicates no compression.
	CompressionNone uint16 = 1
	// CompressionPalmDoc indicates PalmDoc compression.
	CompressionPalmDoc uint16 = 2

	// PalmDOCHeaderSize is the size of the PalmDOC header in bytes.
	PalmDOCHeaderSize = 16

	// EncodingUTF8 is the MOBI encoding code for UTF-8.
	EncodingUTF8 uint32 = 65001
	// EncodingCP1252 is the MOBI encoding code for Windows-1252.
	EncodingCP1252 uint32 = 1252

	// EXTHFlagPresent indicates that EXTH records are present.
	EXTHFlagPresent uint32 = 0x40

	// NotSet marks an unused record index.
	NotSet uint32 = 0xFFFFFFFF
)

// Offsets of MOBI header fields from the start of record 0.
const (
	offMOBIMagic       = 16
	offHeaderLength    = 20
	offTextEncoding    = 28
	offFullNameOffset  = 84
	offFullNameLength  = 88
	offLocale          = 92
	offFirstImageIndex = 108
	offEXTHFlags       = 128
	minMOBIHeaderEnd   = offEXTHFlags + 4
)

var ErrNoMOBIHeader = errors.New("record 0 has no MOBI header")

// PalmDOCHeader is the 16-byte header opening record 0.
type PalmDOCHeader struct {
	Compression     uint16
	TextLength      uint32
	TextRecordCount uint16
	RecordSize      uint16
	Encryption      uint16
}

// ParsePalmDOCHeader reads the PalmDOC header from record 0.
func ParsePalmDOCHeader(rec0 []byte) (PalmDOCHeader, error) {
	if len(rec0) < PalmDOCHeaderSize {
		return PalmDOCHeader{}, fmt.Errorf("record 0 is %d bytes, PalmDOC header needs %d", len(rec0), PalmDOCHeaderSize)
	}
	return PalmDOCHeader{
		Compression:     binary.BigEndian.Uint16(rec0[0:]),
		TextLength:      binary.BigEndian.Uint32(rec0[4:]),
		TextRecordCount: binary.BigEndian.Uint16(rec0[8:]),
		RecordSize:      binary.BigEndian.Uint16(rec0[10:]),
		Encryption:      binary.BigEndian.Uint16(rec0[12:]),
	}, nil
}

// MOBIHeader holds the MOBI header fields metadata extraction needs.
type MOBIHeader struct {
	HeaderLength    uint32
	TextEncoding    uint32
	FullName        []byte
	Locale          uint32
	FirstImageIndex uint32
	EXTHFlags       uint32
}

// Language returns the language subtag of the header's Windows locale
// identifier, or "" when the locale is unset or unknown. Sub-language bits
// are ignored.
func (h *MOBIHeader) Language() string {
	return localeLanguages[h.Locale&0xFF]
}

// localeLanguages maps Windows primary language IDs to language subtags.
var localeLanguages = map[uint32]string{
	0x01: "ar", 0x02: "bg", 0x03: "ca", 0x04: "zh", 0x05: "cs", 0x06: "da",
	0x07: "de", 0x08: "el", 0x09: "en", 0x0A: "es", 0x0B: "fi", 0x0C: "fr",
	0x0D: "he", 0x0E: "hu", 0x0F: "is", 0x10: "it", 0x11: "ja", 0x12: "ko",
	0x13: "nl", 0x14: "no", 0x15: "pl", 0x16: "pt", 0x18: "ro", 0x19: "ru",
	0x1A: "hr", 0x1B: "sk", 0x1D: "sv", 0x1E: "th", 0x1F: "tr", 0x21: "id",
	0x22: "uk", 0x24: "sl", 0x25: "et", 0x26: "lv", 0x27: "lt", 0x2A: "vi",
	0x39: "hi",
}

// HasEXTH reports whether an EXTH block follows the MOBI header.
func (h *MOBIHeader) HasEXTH() bool {
	return h.EXTHFlags&EXTHFlagPresent != 0
}

// EXTHOffset returns where the EXTH block starts within record 0.
func (h *MOBIHeader) EXTHOffset() int {
	return offMOBIMagic + int(h.HeaderLength)
}

// ParseMOBIHeader reads the MOBI header following the PalmDOC header.
// Fields beyond the declared header length are left zero; the full name is
// read only when it lies inside record 0.
func ParseMOBIHeader(rec0 []byte) (*MOBIHeader, error) {
	if len(rec0) < offHeaderLength+4 || !bytes.Equal(rec0[offMOBIMagic:offMOBIMagic+4], []byte("MOBI")) {
		return nil, ErrNoMOBIHeader
	}

	h := &MOBIHeader{
		HeaderLength:    binary.BigEndian.Uint32(rec0[offHeaderLength:]),
		FirstImageIndex: NotSet,
	}

	end := min(len(rec0), offMOBIMagic+int(min(h.HeaderLength, uint32(len(rec0)))))
	u32 := func(off int) (uint32, bool) {
		if off+4 > end {
			return 0, false
		}
		return binary.BigEndian.Uint32(rec0[off:]), true
	}

	h.TextEncoding, _ = u32(offTextEncoding)
	h.Locale, _ = u32(offLocale)
	if v, ok := u32(offFirstImageIndex); ok {
		h.FirstImageIndex = v
	}
	if end >= minMOBIHeaderEnd {
		h.EXTHFlags, _ = u32(offEXTHFlags)
	}

	nameOff, okOff := u32(offFullNameOffset)
	nameLen, okLen := u32(offFullNameLength)
	if okOff && okLen && nameLen > 0 && uint64(nameOff)+uint64(nameLen) <= uint64(len(rec0)) {
		h.FullName = rec0[nameOff : nameOff+nameLen]
	}

	return h, nil
}
