// Package testutil builds in-memory book containers for tests.
package testutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// ZipFile is one entry of a generated ZIP container.
type ZipFile struct {
	Name   string
	Data   []byte
	Method uint16 // zip.Store, zip.Deflate or zstd.ZipMethodWinZip
}

// BuildZip writes files into a ZIP archive in the given order.
func BuildZip(t testing.TB, files []ZipFile) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	w.RegisterCompressor(zstd.ZipMethodWinZip, zstd.ZipCompressor())

	for _, f := range files {
		fw, err := w.CreateHeader(&zip.FileHeader{Name: f.Name, Method: f.Method})
		if err != nil {
			t.Fatalf("failed to create %s: %v", f.Name, err)
		}
		if _, err := fw.Write(f.Data); err != nil {
			t.Fatalf("failed to write %s: %v", f.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	return buf.Bytes()
}

// ContainerXML returns a META-INF/container.xml pointing at opfPath.
func ContainerXML(opfPath string) []byte {
	return fmt.Appendf(nil, `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="%s" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`, opfPath)
}

// EPUB builds an EPUB with a stored mimetype, a container.xml pointing at
// OEBPS/content.opf, the given package document and any extra entries.
func EPUB(t testing.TB, opf string, extra ...ZipFile) []byte {
	t.Helper()
	files := []ZipFile{
		{Name: "mimetype", Data: []byte("application/epub+zip"), Method: zip.Store},
		{Name: "META-INF/container.xml", Data: ContainerXML("OEBPS/content.opf"), Method: zip.Deflate},
		{Name: "OEBPS/content.opf", Data: []byte(opf), Method: zip.Deflate},
	}
	return BuildZip(t, append(files, extra...))
}

// OPF returns an EPUB 2 package document with the given metadata, manifest
// and guide fragments.
func OPF(metadata, manifest, guide string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<package version="2.0" xmlns="http://www.idpf.org/2007/opf" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
` + metadata + `
  </metadata>
  <manifest>
` + manifest + `
  </manifest>
  <guide>
` + guide + `
  </guide>
</package>`
}

// JPEG encodes a w×h gradient. Larger images encode to more bytes, which
// cover ranking tests rely on.
func JPEG(t testing.TB, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, gradient(w, h), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// PNG encodes a w×h gradient.
func PNG(t testing.TB, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, gradient(w, h)); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func gradient(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / max(w, 1)), G: uint8(y * 255 / max(h, 1)), B: uint8((x ^ y) & 0xFF), A: 255})
		}
	}
	return img
}
