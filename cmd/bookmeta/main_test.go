package main

import (
	"bytes"
	"encoding/json"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"

	"github.com/yuanying/bookmeta/internal/imp"
	"github.com/yuanying/bookmeta/internal/testutil"
)

// runCLI executes the root command in an isolated working directory and
// returns its stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(home)

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeBook(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func impBook(t *testing.T) []byte {
	t.Helper()
	data, err := imp.Encode(imp.DefaultLayout(), imp.Fields{Title: "Flat Book", Authors: "Doe, Jane", Category: "Fiction"})
	if err != nil {
		t.Fatalf("imp.Encode() error = %v", err)
	}
	return data
}

func coverBook(t *testing.T) []byte {
	t.Helper()
	opf := testutil.OPF(`<dc:title>Covered</dc:title><dc:creator>Ada Author</dc:creator>`,
		`<item id="cover" href="images/cover.jpg" media-type="image/jpeg"/>`,
		`<reference type="cover" title="Cover" href="images/cover.jpg"/>`)
	return testutil.EPUB(t, opf,
		testutil.ZipFile{Name: "OEBPS/images/cover.jpg", Data: testutil.JPEG(t, 120, 180), Method: zip.Store},
	)
}

func TestShow_Text(t *testing.T) {
	path := writeBook(t, t.TempDir(), "flat.imp", impBook(t))

	out, err := runCLI(t, "show", path)
	if err != nil {
		t.Fatalf("show error = %v", err)
	}
	for _, want := range []string{"Title:       Flat Book", "Authors:     Doe; Jane", "Category:    Fiction", "Status:      complete"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestShow_JSONPlaceholder(t *testing.T) {
	dir := t.TempDir()
	good := writeBook(t, dir, "flat.imp", impBook(t))
	bad := writeBook(t, dir, "broken.epub", []byte("garbage"))

	out, err := runCLI(t, "show", "--json", good, bad)
	if err != nil {
		t.Fatalf("show error = %v", err)
	}

	var views []bookView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(views) != 2 {
		t.Fatalf("got %d books, want 2", len(views))
	}
	if views[0].Title != "Flat Book" {
		t.Errorf("first title = %q", views[0].Title)
	}
	if views[1].Status != "placeholder" || views[1].Title != "Unknown" || views[1].Error == "" {
		t.Errorf("broken book = %+v, want placeholder with error", views[1])
	}
}

func TestRoot_InvalidLogLevel(t *testing.T) {
	path := writeBook(t, t.TempDir(), "flat.imp", impBook(t))

	_, err := runCLI(t, "show", path, "--log-level", "trace")
	if err == nil || !strings.Contains(err.Error(), "invalid log level") {
		t.Fatalf("expected log-level validation error, got %v", err)
	}
}

func TestRoot_ConfigFileMissing(t *testing.T) {
	_, err := runCLI(t, "--config", filepath.Join(t.TempDir(), "none.yaml"), "show", "x")
	if err == nil || !strings.Contains(err.Error(), "configuration") {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestEntriesAndCat(t *testing.T) {
	path := writeBook(t, t.TempDir(), "book.epub", coverBook(t))

	out, err := runCLI(t, "entries", path)
	if err != nil {
		t.Fatalf("entries error = %v", err)
	}
	for _, want := range []string{"# epub, 4 entries", "OEBPS/content.opf", "OEBPS/images/cover.jpg", "deflate", "raw"} {
		if !strings.Contains(out, want) {
			t.Errorf("entries output missing %q:\n%s", want, out)
		}
	}

	out, err = runCLI(t, "cat", path, "META-INF/container.xml")
	if err != nil {
		t.Fatalf("cat error = %v", err)
	}
	if !strings.Contains(out, "OEBPS/content.opf") {
		t.Errorf("cat output = %q, want container.xml", out)
	}

	if _, err := runCLI(t, "cat", path, "missing.xhtml"); err == nil {
		t.Error("cat of a missing entry succeeded")
	}
}

func TestCover_Resize(t *testing.T) {
	dir := t.TempDir()
	path := writeBook(t, dir, "book.epub", coverBook(t))
	outPath := filepath.Join(dir, "out.jpg")

	if _, err := runCLI(t, "cover", path, "-o", outPath, "--max-width", "60"); err != nil {
		t.Fatalf("cover error = %v", err)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("cover not written: %v", err)
	}
	defer f.Close()
	cfg, err := jpeg.DecodeConfig(f)
	if err != nil {
		t.Fatalf("cover is not a JPEG: %v", err)
	}
	if cfg.Width != 60 || cfg.Height != 90 {
		t.Errorf("cover = %dx%d, want 60x90", cfg.Width, cfg.Height)
	}
}

func TestCover_NoCover(t *testing.T) {
	path := writeBook(t, t.TempDir(), "flat.imp", impBook(t))
	if _, err := runCLI(t, "cover", path, "-o", "-"); err == nil || !strings.Contains(err.Error(), "no cover") {
		t.Fatalf("expected no-cover error, got %v", err)
	}
}

func TestCover_InvalidQuality(t *testing.T) {
	_, err := runCLI(t, "cover", "book.epub", "--quality", "101")
	if err == nil || !strings.Contains(err.Error(), "--quality") {
		t.Fatalf("expected quality validation error, got %v", err)
	}
}

func TestScanAndList(t *testing.T) {
	lib := t.TempDir()
	writeBook(t, lib, "flat.imp", impBook(t))
	writeBook(t, lib, "sub/book.epub", coverBook(t))
	writeBook(t, lib, "notes.txt", []byte("not a book"))
	db := filepath.Join(t.TempDir(), "library.db")

	if _, err := runCLI(t, "scan", lib, "--database", db, "--no-progress", "--workers", "2"); err != nil {
		t.Fatalf("scan error = %v", err)
	}

	out, err := runCLI(t, "list", "--database", db, "--json")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	var views []bookView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(views) != 2 {
		t.Fatalf("got %d books, want 2:\n%s", len(views), out)
	}
	titles := []string{views[0].Title, views[1].Title}
	if titles[0] != "Flat Book" || titles[1] != "Covered" {
		t.Errorf("titles = %q, want [Flat Book Covered]", titles)
	}
	if views[1].Cover != "jpeg" {
		t.Errorf("cover format = %q, want jpeg", views[1].Cover)
	}
}

func TestList_MissingDatabase(t *testing.T) {
	if _, err := runCLI(t, "list", "--database", filepath.Join(t.TempDir(), "none.db")); err == nil {
		t.Fatal("list of a missing database succeeded")
	}
}

func TestDefaultCoverPath(t *testing.T) {
	if got := defaultCoverPath("./books/sample.epub", "jpeg"); got != "./books/sample.cover.jpg" {
		t.Fatalf("defaultCoverPath() = %q", got)
	}
	if got := defaultCoverPath("./books/sample.azw3", "png"); got != "./books/sample.cover.png" {
		t.Fatalf("defaultCoverPath() = %q", got)
	}
}
