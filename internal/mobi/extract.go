package mobi

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/yuanying/bookmeta/internal/container"
	"github.com/yuanying/bookmeta/internal/metadata"
)

// Cover candidate types. The full-size cover is the "-standard" variant of
// the thumbnail so the shared ranking prefers it.
const (
	coverTypeThumbnail  = "cover"
	coverTypeStandard   = "cover" + metadata.StandardSuffix
	coverTypeFirstImage = "first-image"
)

// Book is an opened Palm database with its record 0 headers parsed.
type Book struct {
	PDB      *PDB
	PalmDOC  PalmDOCHeader
	MOBI     *MOBIHeader // nil for plain PalmDOC and eReader books
	EXTH     *EXTHHeader // nil when absent or unreadable
	src      io.ReaderAt
	dir      *container.Directory
	decoder  *container.Decoder
	warnings []string
}

// Open validates the database and parses record 0. Every failure is a
// *container.FormatError; a damaged EXTH block is only a warning.
func Open(src io.ReaderAt, size int64, decoder *container.Decoder) (*Book, error) {
	pdb, err := ReadPDB(src, size)
	if err != nil {
		return nil, err
	}

	if decoder == nil {
		decoder = container.NewDecoder(0)
	}
	b := &Book{PDB: pdb, src: src, dir: pdb.Dir, decoder: decoder}

	e, _ := pdb.Dir.Lookup(RecordName(0))
	rec0, err := decoder.Decode(pdb.Dir, src, e)
	if err != nil {
		return nil, container.NewFormatError(Format, "record 0 unreadable", err)
	}

	b.PalmDOC, err = ParsePalmDOCHeader(rec0)
	if err != nil {
		return nil, container.NewFormatError(Format, "corrupt record 0", err)
	}
	if b.PalmDOC.Encryption != 0 {
		b.warnings = append(b.warnings, fmt.Sprintf("text is encrypted (scheme %d)", b.PalmDOC.Encryption))
	}

	if b.PalmDOC.Compression == CompressionPalmDoc {
		dir, err := pdb.WithTextEncoding(int(b.PalmDOC.TextRecordCount), container.EncodingPalmDoc)
		if err != nil {
			return nil, err
		}
		b.dir = dir
	}

	if pdb.Header.Kind() != KindMOBI {
		return b, nil
	}

	b.MOBI, err = ParseMOBIHeader(rec0)
	if err != nil {
		b.warnings = append(b.warnings, err.Error())
		return b, nil
	}

	if b.MOBI.HasEXTH() {
		off := b.MOBI.EXTHOffset()
		if off >= len(rec0) {
			b.warnings = append(b.warnings, fmt.Sprintf("EXTH offset %d beyond record 0 (%d bytes)", off, len(rec0)))
			return b, nil
		}
		exth, err := ParseEXTH(rec0[off:])
		if err != nil {
			b.warnings = append(b.warnings, err.Error())
		}
		b.EXTH = exth
	}

	return b, nil
}

// Directory returns the record directory.
func (b *Book) Directory() *container.Directory { return b.dir }

// Warnings returns problems found while opening that did not prevent it.
func (b *Book) Warnings() []string { return b.warnings }

// ReadRecord decodes record i.
func (b *Book) ReadRecord(i int) ([]byte, error) {
	e, ok := b.dir.Lookup(RecordName(i))
	if !ok {
		return nil, &container.DecodeError{Entry: RecordName(i), Err: container.ErrEntryNotFound}
	}
	return b.decoder.Decode(b.dir, b.src, e)
}

func (b *Book) text(raw []byte) string {
	var codepage uint32
	if b.MOBI != nil {
		codepage = b.MOBI.TextEncoding
	}
	return strings.TrimSpace(metadata.DecodeCodepage(raw, codepage))
}

// Reader extracts metadata from PDB and MOBI containers.
type Reader struct {
	decoder *container.Decoder
	logger  *slog.Logger
}

// NewReader returns a Reader. A nil decoder gets default limits; a nil logger
// uses slog.Default.
func NewReader(decoder *container.Decoder, logger *slog.Logger) *Reader {
	if decoder == nil {
		decoder = container.NewDecoder(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{decoder: decoder, logger: logger}
}

// Extract implements metadata.Extractor.
func (r *Reader) Extract(stream io.ReadSeeker) (metadata.Record, []string, error) {
	rec := metadata.NewRecord()

	src, size, err := container.Source(stream)
	if err != nil {
		return rec, nil, container.NewFormatError(Format, "unreadable stream", err)
	}

	b, err := Open(src, size, r.decoder)
	if err != nil {
		return rec, nil, err
	}
	warnings := append([]string(nil), b.Warnings()...)

	rec.SetTitle(b.PDB.Header.DatabaseName())
	if b.MOBI != nil && len(b.MOBI.FullName) > 0 {
		rec.SetTitle(b.text(b.MOBI.FullName))
	}
	if b.MOBI != nil {
		rec.Language = b.MOBI.Language()
	}
	if b.EXTH == nil {
		return rec, warnings, nil
	}

	x := b.EXTH
	if raw, ok := x.First(EXTHTitle); ok {
		rec.SetTitle(b.text(raw))
	}
	if authors := b.authors(); len(authors) > 0 {
		rec.Authors = authors
	}
	for _, raw := range x.Strings(EXTHSubject) {
		if s := b.text(raw); s != "" {
			rec.Subjects = append(rec.Subjects, s)
		}
	}
	if len(rec.Subjects) > 0 {
		rec.Category = rec.Subjects[0]
	}
	if raw, ok := x.First(EXTHPublisher); ok {
		rec.Publisher = b.text(raw)
	}
	if raw, ok := x.First(EXTHLanguage); ok {
		if lang := b.text(raw); lang != "" {
			rec.Language = lang
		}
	}
	if raw, ok := x.First(EXTHISBN); ok {
		rec.Identifier = b.text(raw)
	}
	if raw, ok := x.First(EXTHDate); ok {
		rec.Date = b.text(raw)
	}
	if raw, ok := x.First(EXTHDescription); ok {
		rec.Description = metadata.PlainText(b.text(raw))
	}

	var candidates []metadata.CoverCandidate
	for _, ref := range b.coverRefs() {
		data, err := b.ReadRecord(ref.index)
		if err != nil {
			r.logger.Warn("skipping cover candidate", "format", Format, "record", ref.index, "type", ref.typ, "error", err)
			warnings = append(warnings, fmt.Sprintf("cover %s: %v", RecordName(ref.index), err))
			continue
		}
		if ref.typ == coverTypeFirstImage && metadata.DetectImageFormat(data) == "raw" {
			continue
		}
		candidates = append(candidates, metadata.CoverCandidate{Data: data, Type: ref.typ, Path: RecordName(ref.index)})
	}
	if cover, ok := metadata.SelectCover(candidates); ok {
		rec.Cover = cover
	}

	return rec, warnings, nil
}

// authors reads every author record. A single record joining several names
// with "&" is split; commas are kept since MOBI stores "Last, First" forms.
func (b *Book) authors() []string {
	var authors []string
	for _, raw := range b.EXTH.Strings(EXTHAuthor) {
		if s := b.text(raw); s != "" {
			authors = append(authors, s)
		}
	}
	return metadata.SplitAuthorList(authors)
}

type coverRef struct {
	index int
	typ   string
}

// coverRefs resolves the EXTH cover and thumbnail offsets against the first
// image record. Without either, the first image record is the only candidate.
func (b *Book) coverRefs() []coverRef {
	if b.MOBI == nil || b.MOBI.FirstImageIndex == NotSet {
		return nil
	}
	first := int(b.MOBI.FirstImageIndex)

	var refs []coverRef
	if off, ok := b.EXTH.Uint32(EXTHCoverOffset); ok && off != NotSet {
		refs = append(refs, coverRef{index: first + int(off), typ: coverTypeStandard})
	}
	if off, ok := b.EXTH.Uint32(EXTHThumbOffset); ok && off != NotSet {
		refs = append(refs, coverRef{index: first + int(off), typ: coverTypeThumbnail})
	}
	if len(refs) == 0 && first > 0 && first < b.dir.Len() {
		refs = append(refs, coverRef{index: first, typ: coverTypeFirstImage})
	}
	return refs
}
