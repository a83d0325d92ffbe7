// Package extract sniffs a book container and runs the matching metadata
// strategy, turning every failure into a placeholder result.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/yuanying/bookmeta/internal/container"
	"github.com/yuanying/bookmeta/internal/epub"
	"github.com/yuanying/bookmeta/internal/imp"
	"github.com/yuanying/bookmeta/internal/metadata"
	"github.com/yuanying/bookmeta/internal/mobi"
)

// Format names a container format the pipeline recognizes.
type Format string

const (
	FormatUnknown Format = "unknown"
	FormatIMP     Format = "imp"
	FormatEPUB    Format = "epub"
	FormatPDB     Format = "pdb"
)

// sniffLen covers the Palm database type/creator field.
const sniffLen = mobi.HeaderSize

var ErrUnknownFormat = errors.New("unrecognized container format")

// Options holds options for the extraction pipeline.
type Options struct {
	// MaxEntrySize caps the decoded size of one entry. Zero selects
	// container.DefaultMaxEntrySize.
	MaxEntrySize int64
	// Logger receives skipped-entry warnings. Nil uses slog.Default.
	Logger *slog.Logger
}

// Pipeline dispatches containers to their metadata strategy. It holds no
// per-call state and is safe for concurrent use.
type Pipeline struct {
	decoder *container.Decoder
	logger  *slog.Logger
	layout  imp.Layout

	extractors map[Format]metadata.Extractor
}

// NewPipeline creates a new extraction pipeline.
func NewPipeline(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	decoder := container.NewDecoder(opts.MaxEntrySize)
	layout := imp.DefaultLayout()

	return &Pipeline{
		decoder: decoder,
		logger:  logger,
		layout:  layout,
		extractors: map[Format]metadata.Extractor{
			FormatIMP:  imp.NewReader(layout, logger),
			FormatEPUB: epub.NewReader(decoder, logger),
			FormatPDB:  mobi.NewReader(decoder, logger),
		},
	}
}

// Sniff identifies the container from its leading bytes and rewinds r.
func (p *Pipeline) Sniff(r io.ReadSeeker) (Format, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return FormatUnknown, fmt.Errorf("failed to rewind: %w", err)
	}
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FormatUnknown, fmt.Errorf("failed to read header: %w", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return FormatUnknown, fmt.Errorf("failed to rewind: %w", err)
	}
	return p.sniffBytes(buf[:n]), nil
}

func (p *Pipeline) sniffBytes(prefix []byte) Format {
	for _, magic := range p.layout.Magics {
		if bytes.HasPrefix(prefix, magic) {
			return FormatIMP
		}
	}
	if bytes.HasPrefix(prefix, epub.Magic) {
		return FormatEPUB
	}
	if len(prefix) >= 68 {
		switch mobi.Kind(prefix[60:68]) {
		case mobi.KindMOBI, mobi.KindPalmDOC, mobi.KindEReader:
			return FormatPDB
		}
	}
	return FormatUnknown
}

// Extract reads the metadata of one container. It never fails: unreadable
// containers, and panics inside a strategy, produce a placeholder result.
func (p *Pipeline) Extract(r io.ReadSeeker) (res metadata.Result) {
	format := FormatUnknown
	defer func() {
		if v := recover(); v != nil {
			p.logger.Error("extractor panicked", "format", format, "panic", v)
			res = metadata.Placeholder(string(format), container.NewFormatError(string(format), "extractor panicked", fmt.Errorf("%v", v)))
		}
	}()

	format, err := p.Sniff(r)
	if err != nil {
		return metadata.Placeholder(string(format), container.NewFormatError(string(format), "unreadable stream", err))
	}

	extractor, ok := p.extractors[format]
	if !ok {
		return metadata.Placeholder(string(format), container.NewFormatError(string(format), "no matching signature", ErrUnknownFormat))
	}

	rec, warnings, err := extractor.Extract(r)
	if err != nil {
		p.logger.Debug("container unreadable", "format", format, "error", err)
		return metadata.Placeholder(string(format), err)
	}
	for _, w := range warnings {
		p.logger.Debug("entry skipped", "format", format, "warning", w)
	}
	return metadata.Completed(string(format), rec, warnings)
}

// ExtractFile opens path and extracts its metadata. Errors opening the file
// are reported as a placeholder, like any other unreadable container.
func (p *Pipeline) ExtractFile(path string) metadata.Result {
	f, err := os.Open(path)
	if err != nil {
		return metadata.Placeholder(string(FormatUnknown), container.NewFormatError(string(FormatUnknown), "cannot open file", err))
	}
	defer f.Close()

	return p.Extract(f)
}

// Entries returns the entry directory of the container.
func (p *Pipeline) Entries(r io.ReadSeeker) (Format, *container.Directory, error) {
	format, src, size, err := p.open(r)
	if err != nil {
		return format, nil, err
	}

	switch format {
	case FormatIMP:
		dir, err := imp.Directory(p.layout, src, size)
		return format, dir, err
	case FormatEPUB:
		pkg, err := epub.Open(src, size, p.decoder)
		if err != nil {
			return format, nil, err
		}
		return format, pkg.Directory(), nil
	case FormatPDB:
		book, err := mobi.Open(src, size, p.decoder)
		if err != nil {
			return format, nil, err
		}
		return format, book.Directory(), nil
	default:
		return format, nil, container.NewFormatError(string(format), "no matching signature", ErrUnknownFormat)
	}
}

// ReadEntry decodes the named entry, trying its percent-encoded spellings.
func (p *Pipeline) ReadEntry(r io.ReadSeeker, name string) ([]byte, error) {
	_, dir, err := p.Entries(r)
	if err != nil {
		return nil, err
	}
	e, err := dir.LookupAny(name)
	if err != nil {
		return nil, err
	}

	src, _, err := container.Source(r)
	if err != nil {
		return nil, err
	}
	return p.decoder.Decode(dir, src, e)
}

func (p *Pipeline) open(r io.ReadSeeker) (Format, io.ReaderAt, int64, error) {
	format, err := p.Sniff(r)
	if err != nil {
		return FormatUnknown, nil, 0, container.NewFormatError(string(FormatUnknown), "unreadable stream", err)
	}
	src, size, err := container.Source(r)
	if err != nil {
		return format, nil, 0, container.NewFormatError(string(format), "unreadable stream", err)
	}
	return format, src, size, nil
}
