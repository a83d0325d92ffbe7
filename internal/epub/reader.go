package epub

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"

	"github.com/yuanying/bookmeta/internal/container"
)

// Format is the format name reported for EPUB containers.
const Format = "epub"

// Magic is the ZIP local file header signature every EPUB starts with.
var Magic = []byte("PK\x03\x04")

var (
	ErrInvalidMimetype   = errors.New("invalid mimetype: must be 'application/epub+zip'")
	ErrContainerNotFound = errors.New("META-INF/container.xml not found")
	ErrOPFPathNotFound   = errors.New("OPF path not found in container.xml")
)

// container.xml structure
type ocfContainer struct {
	Rootfiles struct {
		Rootfile []struct {
			FullPath  string `xml:"full-path,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"rootfile"`
	} `xml:"rootfiles"`
}

// Package provides access to the entries of an EPUB container
type Package struct {
	src      io.ReaderAt
	dir      *container.Directory
	decoder  *container.Decoder
	opfPath  string
	warnings []string
}

// Open validates the OCF container held in src and locates its OPF.
// Every failure is a *container.FormatError.
func Open(src io.ReaderAt, size int64, decoder *container.Decoder) (*Package, error) {
	prefix, err := container.ReadPrefix(src, size, len(Magic))
	if err != nil {
		return nil, container.NewFormatError(Format, "unreadable header", err)
	}
	if !bytes.Equal(prefix, Magic) {
		return nil, container.NewFormatError(Format, fmt.Sprintf("signature mismatch: % x", prefix), nil)
	}

	zr, err := zip.NewReader(src, size)
	if err != nil {
		return nil, container.NewFormatError(Format, "corrupt ZIP directory", err)
	}

	entries := make([]container.Entry, 0, len(zr.File))
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		offset, err := f.DataOffset()
		if err != nil {
			return nil, container.NewFormatError(Format, fmt.Sprintf("entry %q has no data offset", f.Name), err)
		}
		entries = append(entries, container.Entry{
			Name:     normalizePath(f.Name),
			Offset:   offset,
			Length:   int64(f.CompressedSize64),
			Size:     int64(f.UncompressedSize64),
			Encoding: encodingFor(f.Method),
		})
	}

	dir, err := container.NewDirectory(Format, entries, size)
	if err != nil {
		return nil, err
	}

	p := &Package{src: src, dir: dir, decoder: decoder}

	if err := p.validateMimetype(); err != nil {
		return nil, err
	}
	if err := p.parseContainer(); err != nil {
		return nil, err
	}

	return p, nil
}

// Directory returns the entry directory.
func (p *Package) Directory() *container.Directory { return p.dir }

// OPFPath returns the path to the OPF file
func (p *Package) OPFPath() string { return p.opfPath }

// Warnings returns problems found while opening that did not prevent it.
func (p *Package) Warnings() []string { return p.warnings }

// ReadFile decodes the entry at name, trying its percent-encoded spellings.
func (p *Package) ReadFile(name string) ([]byte, error) {
	e, err := p.dir.LookupAny(normalizePath(name))
	if err != nil {
		return nil, err
	}
	return p.decoder.Decode(p.dir, p.src, e)
}

// validateMimetype checks the mimetype entry. A missing or compressed
// mimetype is common in the wild and only noted; wrong content means the ZIP
// is some other kind of document.
func (p *Package) validateMimetype() error {
	e, ok := p.dir.Lookup("mimetype")
	if !ok {
		p.warnings = append(p.warnings, "mimetype entry missing")
		return nil
	}
	if e.Encoding != container.EncodingRaw {
		p.warnings = append(p.warnings, "mimetype entry is compressed")
	}

	content, err := p.decoder.Decode(p.dir, p.src, e)
	if err != nil {
		p.warnings = append(p.warnings, fmt.Sprintf("mimetype unreadable: %v", err))
		return nil
	}
	if strings.TrimSpace(string(content)) != "application/epub+zip" {
		return container.NewFormatError(Format, "not an EPUB", ErrInvalidMimetype)
	}
	return nil
}

// parseContainer parses container.xml to extract OPF path
func (p *Package) parseContainer() error {
	content, err := p.ReadFile("META-INF/container.xml")
	if err != nil {
		return container.NewFormatError(Format, "no package manifest", fmt.Errorf("%w: %v", ErrContainerNotFound, err))
	}

	var c ocfContainer
	if err := xml.Unmarshal(content, &c); err != nil {
		return container.NewFormatError(Format, "corrupt container.xml", err)
	}

	for _, rf := range c.Rootfiles.Rootfile {
		if rf.MediaType == "application/oebps-package+xml" || rf.MediaType == "" {
			p.opfPath = normalizePath(rf.FullPath)
			return nil
		}
	}
	if len(c.Rootfiles.Rootfile) > 0 {
		p.opfPath = normalizePath(c.Rootfiles.Rootfile[0].FullPath)
		return nil
	}

	return container.NewFormatError(Format, "no package manifest", ErrOPFPathNotFound)
}

// LoadOPF reads and parses the package document.
func (p *Package) LoadOPF() (*OPF, error) {
	data, err := p.ReadFile(p.opfPath)
	if err != nil {
		return nil, container.NewFormatError(Format, "package manifest unreadable", err)
	}
	opf, err := ParseOPF(data, path.Dir(p.opfPath))
	if err != nil {
		return nil, container.NewFormatError(Format, "corrupt package manifest", err)
	}
	return opf, nil
}

func encodingFor(method uint16) string {
	switch method {
	case zip.Store:
		return container.EncodingRaw
	case zip.Deflate:
		return container.EncodingDeflate
	case zstd.ZipMethodWinZip, zstd.ZipMethodPKWare:
		return container.EncodingZstd
	default:
		return fmt.Sprintf("zip-method-%d", method)
	}
}

// normalizePath normalizes file paths (removes ./ and / prefixes)
func normalizePath(p string) string {
	p = strings.TrimPrefix(p, "./")
	return strings.TrimPrefix(p, "/")
}
