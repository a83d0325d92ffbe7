package epub

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/yuanying/bookmeta/internal/container"
	"github.com/yuanying/bookmeta/internal/metadata"
)

// Reader extracts metadata from EPUB containers through their OPF manifest.
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

	pkg, err := Open(src, size, r.decoder)
	if err != nil {
		return rec, nil, err
	}
	opf, err := pkg.LoadOPF()
	if err != nil {
		return rec, nil, err
	}

	warnings := append([]string(nil), pkg.Warnings()...)

	md := opf.Metadata
	rec.SetTitle(md.Title)
	if authors := metadata.SplitAuthorList(md.Authors()); len(authors) > 0 {
		rec.Authors = authors
	}
	if len(md.Subjects) > 0 {
		rec.Category = md.Subjects[0]
		rec.Subjects = md.Subjects
	}
	rec.Publisher = md.Publisher
	rec.Language = md.Language
	rec.Identifier = md.Identifier
	rec.Date = md.Date
	rec.Description = metadata.PlainText(md.Description)

	var candidates []metadata.CoverCandidate
	for _, ref := range opf.CoverRefs() {
		data, err := pkg.ReadFile(ref.Href)
		if err != nil {
			r.logger.Warn("skipping cover candidate", "format", Format, "href", ref.Href, "type", ref.Type, "error", err)
			warnings = append(warnings, fmt.Sprintf("cover %q: %v", ref.Href, err))
			continue
		}
		if ref.MediaType == "" && metadata.DetectImageFormat(data) == "raw" {
			// guide reference outside the manifest that is not an image
			continue
		}
		candidates = append(candidates, metadata.CoverCandidate{Data: data, Type: ref.Type, Path: ref.Href})
	}
	if cover, ok := metadata.SelectCover(candidates); ok {
		rec.Cover = cover
	}

	return rec, warnings, nil
}
