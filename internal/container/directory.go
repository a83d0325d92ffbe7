package container

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Encoding tags understood by Decoder.
const (
	EncodingRaw     = "raw"
	EncodingDeflate = "deflate"
	EncodingZstd    = "zstd"
	EncodingPalmDoc = "palmdoc"
)

// Entry describes one named resource inside a container.
type Entry struct {
	Name     string
	Offset   int64
	Length   int64  // stored (encoded) length
	Size     int64  // declared decoded length, 0 when unknown
	Encoding string // one of the Encoding* tags
	Type     string // declared media or guide type, optional
}

// End returns the offset one past the entry's last stored byte.
func (e Entry) End() int64 { return e.Offset + e.Length }

// Directory is a read-only, name-sorted table of container entries.
type Directory struct {
	format  string
	size    int64
	entries []Entry
}

// NewDirectory sorts entries by name and checks them against the container
// size. Duplicate names make the directory corrupt. Entries whose range falls
// outside the container are kept so they can be listed, but Decoder refuses
// to read them.
func NewDirectory(format string, entries []Entry, size int64) (*Directory, error) {
	if size < 0 {
		return nil, NewFormatError(format, "negative container size", nil)
	}

	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	for i := range sorted {
		if sorted[i].Offset < 0 || sorted[i].Length < 0 {
			return nil, NewFormatError(format, fmt.Sprintf("entry %q has negative range", sorted[i].Name), nil)
		}
		if i > 0 && sorted[i].Name == sorted[i-1].Name {
			return nil, NewFormatError(format, fmt.Sprintf("duplicate entry %q", sorted[i].Name), nil)
		}
	}

	return &Directory{format: format, size: size, entries: sorted}, nil
}

// Format returns the container format the directory was read from.
func (d *Directory) Format() string { return d.format }

// Size returns the total container size in bytes.
func (d *Directory) Size() int64 { return d.size }

// Len returns the number of entries.
func (d *Directory) Len() int { return len(d.entries) }

// Entries returns a copy of the entries in name order.
func (d *Directory) Entries() []Entry {
	out := make([]Entry, len(d.entries))
	copy(out, d.entries)
	return out
}

// InRange reports whether e lies entirely within the container.
func (d *Directory) InRange(e Entry) bool {
	return e.Offset >= 0 && e.Length >= 0 && e.Offset <= d.size && e.Length <= d.size-e.Offset
}

// CheckRange returns an OutOfRangeError when e does not fit the container.
func (d *Directory) CheckRange(e Entry) error {
	if d.InRange(e) {
		return nil
	}
	return &OutOfRangeError{Entry: e.Name, Offset: e.Offset, Length: e.Length, Size: d.size}
}

// Lookup finds an entry by exact name.
func (d *Directory) Lookup(name string) (Entry, bool) {
	i := sort.Search(len(d.entries), func(i int) bool { return d.entries[i].Name >= name })
	if i < len(d.entries) && d.entries[i].Name == name {
		return d.entries[i], true
	}
	return Entry{}, false
}

// LookupAny finds an entry by name, also trying the spellings container
// writers produce when they escape (or fail to escape) reserved characters:
// "&" as "%26", and the fully percent-decoded form.
func (d *Directory) LookupAny(name string) (Entry, error) {
	for _, candidate := range nameVariants(name) {
		if e, ok := d.Lookup(candidate); ok {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%s: %q: %w", d.format, name, ErrEntryNotFound)
}

func nameVariants(name string) []string {
	variants := []string{name}
	add := func(v string) {
		for _, existing := range variants {
			if existing == v {
				return
			}
		}
		variants = append(variants, v)
	}

	add(strings.ReplaceAll(name, "&", "%26"))
	add(strings.ReplaceAll(name, "%26", "&"))
	if unescaped, err := url.PathUnescape(name); err == nil {
		add(unescaped)
	}
	return variants
}
