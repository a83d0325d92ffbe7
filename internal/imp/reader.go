package imp

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/yuanying/bookmeta/internal/container"
	"github.com/yuanying/bookmeta/internal/metadata"
)

// Header is the validated fixed prefix of a flat-header container.
type Header struct {
	Magic        []byte
	Version      int
	FieldsOffset int64
}

// ReadHeader checks the signature against every layout variant.
func ReadHeader(layout Layout, src io.ReaderAt, size int64) (Header, error) {
	n := layout.magicLen()
	prefix, err := container.ReadPrefix(src, size, n)
	if err != nil {
		return Header{}, container.NewFormatError(layout.Format, "unreadable header", err)
	}

	for _, magic := range layout.Magics {
		if len(prefix) == n && bytes.Equal(prefix, magic) {
			h := Header{
				Magic:        magic,
				FieldsOffset: layout.FieldsOffset(),
			}
			if n > 1 {
				h.Version = int(magic[1])
			}
			if size < h.FieldsOffset {
				return Header{}, container.NewFormatError(layout.Format, fmt.Sprintf("header truncated at %d bytes", size), nil)
			}
			return h, nil
		}
	}

	return Header{}, container.NewFormatError(layout.Format, fmt.Sprintf("signature mismatch: % x", prefix), nil)
}

// Reader extracts metadata from flat-header containers.
type Reader struct {
	layout Layout
	logger *slog.Logger
}

// NewReader returns a Reader for layout. A nil logger uses slog.Default.
func NewReader(layout Layout, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{layout: layout, logger: logger}
}

// Extract implements metadata.Extractor.
func (r *Reader) Extract(stream io.ReadSeeker) (metadata.Record, []string, error) {
	rec := metadata.NewRecord()

	src, size, err := container.Source(stream)
	if err != nil {
		return rec, nil, container.NewFormatError(r.layout.Format, "unreadable stream", err)
	}

	h, err := ReadHeader(r.layout, src, size)
	if err != nil {
		return rec, nil, err
	}

	runs := &runReader{
		br:     bufio.NewReader(io.NewSectionReader(src, h.FieldsOffset, size-h.FieldsOffset)),
		maxRun: r.layout.MaxRun,
	}

	var warnings []string
	for _, slot := range r.layout.Slots {
		value, ok, err := runs.field(slot.Skip)
		if err != nil {
			var de *container.DecodeError
			if errors.As(err, &de) {
				r.logger.Warn("skipping oversized header field", "format", r.layout.Format, "field", slot.Field.String(), "error", err)
				warnings = append(warnings, err.Error())
				continue
			}
			r.logger.Warn("header fields truncated", "format", r.layout.Format, "field", slot.Field.String(), "error", err)
			warnings = append(warnings, fmt.Sprintf("%s: %v", slot.Field, err))
			break
		}
		if !ok {
			break
		}

		text := metadata.DecodeText(value)
		switch slot.Field {
		case FieldTitle:
			rec.SetTitle(text)
		case FieldAuthors:
			rec.SetAuthors(text)
		case FieldCategory:
			rec.Category = text
		}
	}

	return rec, warnings, nil
}

type runReader struct {
	br     *bufio.Reader
	maxRun int
	eof    bool
}

// field discards skip runs and returns the next one. ok is false when the
// stream ended before any byte of the wanted run.
func (rr *runReader) field(skip int) ([]byte, bool, error) {
	for range skip {
		if _, ok, err := rr.run(); err != nil || !ok {
			return nil, false, err
		}
	}
	return rr.run()
}

// run reads up to the next NUL. A run cut short by the end of the stream is
// returned as is.
func (rr *runReader) run() ([]byte, bool, error) {
	if rr.eof {
		return nil, false, nil
	}

	var buf []byte
	read, oversized := 0, false
	for {
		b, err := rr.br.ReadByte()
		if err == io.EOF {
			rr.eof = true
			if read == 0 {
				return nil, false, nil
			}
			break
		}
		if err != nil {
			return nil, false, err
		}
		if b == 0 {
			break
		}
		read++
		if rr.maxRun > 0 && read > rr.maxRun {
			oversized = true
			continue
		}
		buf = append(buf, b)
	}

	if oversized {
		return nil, true, &container.DecodeError{
			Entry: "header field",
			Err:   fmt.Errorf("%w: %d bytes, limit %d", container.ErrEntryTooLarge, read, rr.maxRun),
		}
	}
	if buf == nil {
		buf = []byte{}
	}
	return buf, true, nil
}
