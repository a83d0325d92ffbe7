package metadata

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// DecodeText turns a raw field into a string. Valid UTF-8 is kept as is;
// anything else is read as Windows-1252, the encoding legacy e-book formats
// default to.
func DecodeText(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	s, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), "�")
	}
	return string(s)
}

// DecodeCodepage decodes raw in the given Windows codepage number. 65001 is
// UTF-8; 1252 and unknown pages fall back to DecodeText.
func DecodeCodepage(raw []byte, codepage uint32) string {
	switch codepage {
	case 65001:
		return strings.ToValidUTF8(string(raw), "�")
	case 1250:
		return decodeWith(charmap.Windows1250, raw)
	case 1251:
		return decodeWith(charmap.Windows1251, raw)
	default:
		return DecodeText(raw)
	}
}

func decodeWith(cm *charmap.Charmap, raw []byte) string {
	s, err := cm.NewDecoder().Bytes(raw)
	if err != nil {
		return DecodeText(raw)
	}
	return string(s)
}
