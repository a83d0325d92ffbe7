package metadata

import (
	"io"
	"strings"
)

// Default field values for books with missing metadata.
const (
	UnknownTitle  = "Unknown"
	UnknownAuthor = "Unknown"
)

// Record is the normalized bibliographic metadata of one book.
type Record struct {
	Title       string
	Authors     []string
	Category    string
	Publisher   string
	Language    string
	Identifier  string
	Date        string
	Description string
	Subjects    []string
	Cover       *Cover
}

// Cover is an embedded cover image tagged with its format ("jpeg", "png",
// "gif", "bmp" or "raw").
type Cover struct {
	Format string
	Data   []byte
}

// NewRecord returns a record carrying the default title and author.
func NewRecord() Record {
	return Record{
		Title:   UnknownTitle,
		Authors: []string{UnknownAuthor},
	}
}

// SetTitle replaces the title when value is not blank.
func (r *Record) SetTitle(value string) {
	if v := strings.TrimSpace(value); v != "" {
		r.Title = v
	}
}

// SetAuthors splits raw with SplitAuthors and replaces the author list when
// the split yields at least one name.
func (r *Record) SetAuthors(raw string) {
	if authors := SplitAuthors(raw); len(authors) > 0 {
		r.Authors = authors
	}
}

// Clone returns a deep copy so callers cannot alias the returned slices.
func (r Record) Clone() Record {
	out := r
	out.Authors = append([]string(nil), r.Authors...)
	if r.Subjects != nil {
		out.Subjects = append([]string(nil), r.Subjects...)
	}
	if r.Cover != nil {
		out.Cover = &Cover{Format: r.Cover.Format, Data: append([]byte(nil), r.Cover.Data...)}
	}
	return out
}

// SplitAuthors splits an author string on "&" and then each segment on ",".
// Blank names are dropped; a string with no delimiters yields itself.
func SplitAuthors(raw string) []string {
	var authors []string
	for _, segment := range strings.Split(raw, "&") {
		for _, name := range strings.Split(segment, ",") {
			if name = strings.TrimSpace(name); name != "" {
				authors = append(authors, name)
			}
		}
	}
	return authors
}

// SplitAuthorList splits a lone author entry joined with "&" into separate
// names. Lists of more than one entry are returned as they are.
func SplitAuthorList(names []string) []string {
	if len(names) != 1 || !strings.Contains(names[0], "&") {
		return names
	}
	var split []string
	for _, name := range strings.Split(names[0], "&") {
		if name = strings.TrimSpace(name); name != "" {
			split = append(split, name)
		}
	}
	return split
}

// Extractor reads one container format. Warnings describe entries that were
// skipped; a non-nil error is always a *container.FormatError and means the
// record holds only defaults.
type Extractor interface {
	Extract(r io.ReadSeeker) (Record, []string, error)
}
