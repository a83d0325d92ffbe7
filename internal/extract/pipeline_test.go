package extract

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"

	"github.com/yuanying/bookmeta/internal/container"
	"github.com/yuanying/bookmeta/internal/imp"
	"github.com/yuanying/bookmeta/internal/metadata"
	"github.com/yuanying/bookmeta/internal/mobi"
	"github.com/yuanying/bookmeta/internal/testutil"
)

func impBook(t *testing.T, fields imp.Fields) []byte {
	t.Helper()
	data, err := imp.Encode(imp.DefaultLayout(), fields)
	if err != nil {
		t.Fatalf("imp.Encode failed: %v", err)
	}
	return data
}

func epubBook(t *testing.T) []byte {
	t.Helper()
	opf := testutil.OPF(`<dc:title>Pipeline Book</dc:title><dc:creator>Ann Author</dc:creator><dc:subject>Essays</dc:subject>`,
		`<item id="img" href="images/cover&amp;more.jpg" media-type="image/jpeg" properties="cover-image"/>`, ``)
	return testutil.EPUB(t, opf,
		testutil.ZipFile{Name: "OEBPS/images/cover%26more.jpg", Data: testutil.JPEG(t, 10, 10), Method: zip.Store},
	)
}

func mobiBook(t *testing.T) []byte {
	t.Helper()
	rec0 := testutil.Record0{
		Compression: mobi.CompressionNone,
		Encoding:    mobi.EncodingUTF8,
		FullName:    "Palm Pipeline",
		EXTH:        []testutil.EXTHEntry{testutil.EXTHString(mobi.EXTHAuthor, "Pat Writer")},
	}.Bytes()
	return testutil.PDB("palm", string(mobi.KindMOBI), [][]byte{rec0, []byte("text")})
}

func TestSniff(t *testing.T) {
	p := NewPipeline(Options{})

	tests := []struct {
		name string
		data []byte
		want Format
	}{
		{name: "imp v1", data: impBook(t, imp.Fields{Title: "x"}), want: FormatIMP},
		{name: "imp v2", data: []byte("\x00\x02BOOKDOUG"), want: FormatIMP},
		{name: "epub", data: epubBook(t), want: FormatEPUB},
		{name: "mobi", data: mobiBook(t), want: FormatPDB},
		{name: "palmdoc", data: testutil.PDB("p", string(mobi.KindPalmDOC), [][]byte{make([]byte, 16)}), want: FormatPDB},
		{name: "empty", data: nil, want: FormatUnknown},
		{name: "truncated imp magic", data: []byte("\x00\x01BOOK"), want: FormatUnknown},
		{name: "pdf", data: []byte("%PDF-1.7"), want: FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := bytes.NewReader(tt.data)
			got, err := p.Sniff(r)
			if err != nil {
				t.Fatalf("Sniff error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Sniff() = %q, want %q", got, tt.want)
			}
			if pos, _ := r.Seek(0, io.SeekCurrent); pos != 0 {
				t.Errorf("stream left at %d, want 0", pos)
			}
		})
	}
}

func TestExtract_Formats(t *testing.T) {
	p := NewPipeline(Options{})

	tests := []struct {
		name        string
		data        []byte
		wantFormat  Format
		wantTitle   string
		wantAuthors []string
		wantCover   bool
	}{
		{
			name:        "imp",
			data:        impBook(t, imp.Fields{Title: "Emma", Authors: "Austen, Jane", Category: "Classics"}),
			wantFormat:  FormatIMP,
			wantTitle:   "Emma",
			wantAuthors: []string{"Austen", "Jane"},
		},
		{
			name:        "epub",
			data:        epubBook(t),
			wantFormat:  FormatEPUB,
			wantTitle:   "Pipeline Book",
			wantAuthors: []string{"Ann Author"},
			wantCover:   true,
		},
		{
			name:        "mobi",
			data:        mobiBook(t),
			wantFormat:  FormatPDB,
			wantTitle:   "Palm Pipeline",
			wantAuthors: []string{"Pat Writer"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := p.Extract(bytes.NewReader(tt.data))
			if res.Status != metadata.StatusComplete {
				t.Fatalf("Status = %v (err %v, warnings %q), want complete", res.Status, res.Err, res.Warnings)
			}
			if res.Format != string(tt.wantFormat) {
				t.Errorf("Format = %q, want %q", res.Format, tt.wantFormat)
			}
			if res.Record.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", res.Record.Title, tt.wantTitle)
			}
			if !reflect.DeepEqual(res.Record.Authors, tt.wantAuthors) {
				t.Errorf("Authors = %q, want %q", res.Record.Authors, tt.wantAuthors)
			}
			if (res.Record.Cover != nil) != tt.wantCover {
				t.Errorf("Cover present = %v, want %v", res.Record.Cover != nil, tt.wantCover)
			}
		})
	}
}

func TestExtract_FictionScenario(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("\x00\x01BOOKDOUG")
	buf.Write(make([]byte, 38))
	buf.WriteString("\x00Fiction\x00Doe, Jane\x00")

	res := NewPipeline(Options{}).Extract(bytes.NewReader(buf.Bytes()))
	if !res.OK() {
		t.Fatalf("Extract() = placeholder: %v", res.Err)
	}
	if res.Record.Category != "Fiction" {
		t.Errorf("Category = %q, want Fiction", res.Record.Category)
	}
	if !reflect.DeepEqual(res.Record.Authors, []string{"Doe", "Jane"}) {
		t.Errorf("Authors = %q, want [Doe Jane]", res.Record.Authors)
	}
}

func TestExtract_Placeholder(t *testing.T) {
	p := NewPipeline(Options{})

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{name: "empty", data: nil, wantErr: ErrUnknownFormat},
		{name: "missing magic", data: []byte("just some text, no container here"), wantErr: ErrUnknownFormat},
		{name: "truncated imp header", data: []byte("\x00\x01BOOKDOUG\x00\x00")},
		{name: "truncated epub", data: epubBook(t)[:100]},
		{name: "truncated pdb", data: mobiBook(t)[:90]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := p.Extract(bytes.NewReader(tt.data))
			if res.Status != metadata.StatusPlaceholder {
				t.Fatalf("Status = %v, want placeholder", res.Status)
			}
			if res.Record.Title != metadata.UnknownTitle || !reflect.DeepEqual(res.Record.Authors, []string{metadata.UnknownAuthor}) {
				t.Errorf("Record = %+v, want defaults", res.Record)
			}
			if !container.IsFormatError(res.Err) {
				t.Errorf("Err = %v, want *container.FormatError", res.Err)
			}
			if tt.wantErr != nil && !errors.Is(res.Err, tt.wantErr) {
				t.Errorf("Err = %v, want %v", res.Err, tt.wantErr)
			}
		})
	}
}

func TestExtract_PartialOnSkippedEntry(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("\x00\x01BOOKDOUG")
	buf.Write(make([]byte, 38))
	buf.WriteString("\x00" + strings.Repeat("c", 70<<10) + "\x00Austen\x00\x00Emma\x00")

	res := NewPipeline(Options{}).Extract(bytes.NewReader(buf.Bytes()))
	if res.Status != metadata.StatusPartial {
		t.Fatalf("Status = %v, want partial", res.Status)
	}
	if res.Record.Title != "Emma" || res.Record.Category != "" {
		t.Errorf("Record = %+v, want title Emma and no category", res.Record)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("Warnings = %q, want one", res.Warnings)
	}
}

type panicExtractor struct{}

func (panicExtractor) Extract(io.ReadSeeker) (metadata.Record, []string, error) {
	panic("index out of range")
}

func TestExtract_RecoversPanic(t *testing.T) {
	p := NewPipeline(Options{})
	p.extractors[FormatIMP] = panicExtractor{}

	res := p.Extract(bytes.NewReader(impBook(t, imp.Fields{Title: "x"})))
	if res.Status != metadata.StatusPlaceholder {
		t.Fatalf("Status = %v, want placeholder", res.Status)
	}
	if res.Format != string(FormatIMP) {
		t.Errorf("Format = %q, want %q", res.Format, FormatIMP)
	}
	if !container.IsFormatError(res.Err) {
		t.Errorf("Err = %v, want *container.FormatError", res.Err)
	}
}

func TestExtract_ResultDoesNotAlias(t *testing.T) {
	p := NewPipeline(Options{})
	data := impBook(t, imp.Fields{Authors: "A & B"})

	first := p.Extract(bytes.NewReader(data))
	first.Record.Authors[0] = "changed"

	second := p.Extract(bytes.NewReader(data))
	if second.Record.Authors[0] != "A" {
		t.Errorf("Authors[0] = %q, want A", second.Record.Authors[0])
	}
}

func TestExtractFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.imp")
	if err := os.WriteFile(path, impBook(t, imp.Fields{Title: "On Disk"}), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	p := NewPipeline(Options{})
	if res := p.ExtractFile(path); res.Record.Title != "On Disk" {
		t.Errorf("Title = %q, want %q", res.Record.Title, "On Disk")
	}

	res := p.ExtractFile(filepath.Join(dir, "missing.epub"))
	if res.Status != metadata.StatusPlaceholder || !errors.Is(res.Err, os.ErrNotExist) {
		t.Errorf("ExtractFile(missing) = %v, %v, want placeholder wrapping ErrNotExist", res.Status, res.Err)
	}
}

func TestEntriesAndReadEntry(t *testing.T) {
	p := NewPipeline(Options{})

	tests := []struct {
		name       string
		data       []byte
		wantFormat Format
		entry      string
		wantPrefix []byte
	}{
		{name: "epub percent-encoded", data: epubBook(t), wantFormat: FormatEPUB, entry: "OEBPS/images/cover&more.jpg", wantPrefix: []byte{0xFF, 0xD8, 0xFF}},
		{name: "pdb record", data: mobiBook(t), wantFormat: FormatPDB, entry: mobi.RecordName(1), wantPrefix: []byte("text")},
		{name: "imp run", data: impBook(t, imp.Fields{Category: "Poetry"}), wantFormat: FormatIMP, entry: imp.RunName(1), wantPrefix: []byte("Poetry")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, dir, err := p.Entries(bytes.NewReader(tt.data))
			if err != nil {
				t.Fatalf("Entries error: %v", err)
			}
			if format != tt.wantFormat {
				t.Errorf("format = %q, want %q", format, tt.wantFormat)
			}
			if dir.Len() == 0 {
				t.Error("directory is empty")
			}

			got, err := p.ReadEntry(bytes.NewReader(tt.data), tt.entry)
			if err != nil {
				t.Fatalf("ReadEntry(%q) error: %v", tt.entry, err)
			}
			if !bytes.HasPrefix(got, tt.wantPrefix) {
				t.Errorf("ReadEntry(%q) = % x..., want prefix % x", tt.entry, got[:min(len(got), 8)], tt.wantPrefix)
			}
		})
	}

	if _, err := p.ReadEntry(bytes.NewReader(mobiBook(t)), "record/9999"); !errors.Is(err, container.ErrEntryNotFound) {
		t.Errorf("ReadEntry(missing) error = %v, want ErrEntryNotFound", err)
	}
	if _, _, err := p.Entries(bytes.NewReader([]byte("nothing"))); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("Entries(unknown) error = %v, want ErrUnknownFormat", err)
	}
}
