// Package imp reads metadata from eBookman IMP files, whose header stores
// the bibliographic fields as NUL-terminated runs at a fixed offset.
package imp

import (
	"bytes"
	"errors"
	"fmt"
)

// Field names the record field a run is stored into.
type Field int

const (
	FieldIgnore Field = iota
	FieldCategory
	FieldAuthors
	FieldTitle
)

func (f Field) String() string {
	switch f {
	case FieldIgnore:
		return "ignore"
	case FieldCategory:
		return "category"
	case FieldAuthors:
		return "authors"
	case FieldTitle:
		return "title"
	default:
		return fmt.Sprintf("Field(%d)", int(f))
	}
}

// Slot reads one field: Skip runs are discarded first, then the next run is
// the field value.
type Slot struct {
	Field Field
	Skip  int
}

// Layout describes where a flat header keeps its fields.
type Layout struct {
	Format     string
	Magics     [][]byte // accepted signatures, all the same length
	SkipRegion int      // bytes between the signature and the first run
	Slots      []Slot
	MaxRun     int // longest run accepted, in bytes
}

// DefaultLayout is the IMP header: two historical signatures, a 38-byte
// housekeeping region, then a housekeeping run, the category, the author
// list and, one run further on, the title.
func DefaultLayout() Layout {
	return Layout{
		Format: "imp",
		Magics: [][]byte{
			[]byte("\x00\x01BOOKDOUG"),
			[]byte("\x00\x02BOOKDOUG"),
		},
		SkipRegion: 38,
		Slots: []Slot{
			{Field: FieldIgnore},
			{Field: FieldCategory},
			{Field: FieldAuthors},
			{Field: FieldTitle, Skip: 1},
		},
		MaxRun: 64 << 10,
	}
}

// FieldsOffset is where the first run starts.
func (l Layout) FieldsOffset() int64 {
	return int64(l.magicLen() + l.SkipRegion)
}

func (l Layout) magicLen() int {
	if len(l.Magics) == 0 {
		return 0
	}
	return len(l.Magics[0])
}

// Fields are the values a flat header carries.
type Fields struct {
	Title    string
	Authors  string
	Category string
}

func (f Fields) get(field Field) string {
	switch field {
	case FieldTitle:
		return f.Title
	case FieldAuthors:
		return f.Authors
	case FieldCategory:
		return f.Category
	default:
		return ""
	}
}

var ErrEmbeddedNUL = errors.New("field value contains NUL")

// Encode builds a minimal container holding fields under layout, using the
// first accepted signature and a zeroed skip region. Skipped and ignored runs
// are written empty.
func Encode(layout Layout, fields Fields) ([]byte, error) {
	if len(layout.Magics) == 0 {
		return nil, fmt.Errorf("%s: layout has no signature", layout.Format)
	}

	var buf bytes.Buffer
	buf.Write(layout.Magics[0])
	buf.Write(make([]byte, layout.SkipRegion))

	for _, slot := range layout.Slots {
		for range slot.Skip {
			buf.WriteByte(0)
		}
		value := fields.get(slot.Field)
		if bytes.IndexByte([]byte(value), 0) >= 0 {
			return nil, fmt.Errorf("%s %s: %w", layout.Format, slot.Field, ErrEmbeddedNUL)
		}
		buf.WriteString(value)
		buf.WriteByte(0)
	}

	return buf.Bytes(), nil
}
