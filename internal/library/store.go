package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/yuanying/bookmeta/internal/metadata"
)

// FileKey identifies one version of a file on disk. A cached result is valid
// while path, size and modification time all match.
type FileKey struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Cache stores extraction results between scans.
type Cache interface {
	Lookup(ctx context.Context, key FileKey) (metadata.Result, bool, error)
	Put(ctx context.Context, key FileKey, res metadata.Result) error
}

// StoreOptions configures the SQLite store.
type StoreOptions struct {
	// Path to the SQLite database file
	Path string

	// WALMode enables Write-Ahead Logging mode for better concurrency
	WALMode bool

	// BusyTimeout sets the timeout for locked database operations
	BusyTimeout time.Duration
}

// DefaultStoreOptions returns sensible default options for the store.
func DefaultStoreOptions(path string) StoreOptions {
	return StoreOptions{
		Path:        path,
		WALMode:     true,
		BusyTimeout: 30 * time.Second,
	}
}

// Book is one stored row with its authors.
type Book struct {
	Key       FileKey
	Result    metadata.Result
	ScannedAt time.Time
}

// Store is a SQLite-backed Cache that also serves as the library catalogue.
// Cover bytes are not stored; cached results keep only the cover format.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS books (
	path        TEXT PRIMARY KEY,
	size        INTEGER NOT NULL,
	mod_time    INTEGER NOT NULL,
	format      TEXT NOT NULL,
	status      TEXT NOT NULL,
	title       TEXT NOT NULL,
	category    TEXT NOT NULL DEFAULT '',
	publisher   TEXT NOT NULL DEFAULT '',
	language    TEXT NOT NULL DEFAULT '',
	identifier  TEXT NOT NULL DEFAULT '',
	date        TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	subjects    TEXT NOT NULL DEFAULT '[]',
	cover       TEXT NOT NULL DEFAULT '',
	warnings    TEXT NOT NULL DEFAULT '[]',
	error       TEXT NOT NULL DEFAULT '',
	scanned_at  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS authors (
	book_path TEXT NOT NULL REFERENCES books(path) ON DELETE CASCADE,
	position  INTEGER NOT NULL,
	name      TEXT NOT NULL,
	PRIMARY KEY (book_path, position)
);
CREATE INDEX IF NOT EXISTS authors_name ON authors(name);
`

// OpenStore opens or creates the database and applies the schema.
func OpenStore(ctx context.Context, opts StoreOptions) (*Store, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}

	// Create the directory if it doesn't exist
	if dir := filepath.Dir(opts.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", connectionString(opts))
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", opts.Path, err)
	}

	// One connection serializes writers from concurrent scan workers.
	db.SetMaxOpenConns(1)

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("testing database connection: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db, path: opts.Path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database connection
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil

	if err != nil {
		return fmt.Errorf("closing database connection: %w", err)
	}

	return nil
}

// Lookup returns the cached result for key when the stored size and
// modification time still match.
func (s *Store) Lookup(ctx context.Context, key FileKey) (metadata.Result, bool, error) {
	if s.db == nil {
		return metadata.Result{}, false, fmt.Errorf("database connection is closed")
	}

	row := s.db.QueryRowContext(ctx, selectBooks+` WHERE path = ? AND size = ? AND mod_time = ?`,
		key.Path, key.Size, key.ModTime.UnixNano())
	book, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return metadata.Result{}, false, nil
	}
	if err != nil {
		return metadata.Result{}, false, fmt.Errorf("looking up %s: %w", key.Path, err)
	}

	authors, err := s.authors(ctx, key.Path)
	if err != nil {
		return metadata.Result{}, false, err
	}
	book.Result.Record.Authors = authors

	return book.Result, true, nil
}

// Put stores res under key, replacing any earlier version of the file.
func (s *Store) Put(ctx context.Context, key FileKey, res metadata.Result) error {
	if s.db == nil {
		return fmt.Errorf("database connection is closed")
	}

	subjects, err := json.Marshal(nonNil(res.Record.Subjects))
	if err != nil {
		return fmt.Errorf("encoding subjects: %w", err)
	}
	warnings, err := json.Marshal(nonNil(res.Warnings))
	if err != nil {
		return fmt.Errorf("encoding warnings: %w", err)
	}
	var cover, errText string
	if res.Record.Cover != nil {
		cover = res.Record.Cover.Format
	}
	if res.Err != nil {
		errText = res.Err.Error()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	rec := res.Record
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO books
		(path, size, mod_time, format, status, title, category, publisher, language, identifier, date, description, subjects, cover, warnings, error, scanned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key.Path, key.Size, key.ModTime.UnixNano(), res.Format, res.Status.String(),
		rec.Title, rec.Category, rec.Publisher, rec.Language, rec.Identifier, rec.Date, rec.Description,
		string(subjects), cover, string(warnings), errText, time.Now().UnixNano(),
	); err != nil {
		return fmt.Errorf("storing %s: %w", key.Path, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM authors WHERE book_path = ?`, key.Path); err != nil {
		return fmt.Errorf("clearing authors of %s: %w", key.Path, err)
	}
	for i, name := range rec.Authors {
		if _, err := tx.ExecContext(ctx, `INSERT INTO authors (book_path, position, name) VALUES (?, ?, ?)`, key.Path, i, name); err != nil {
			return fmt.Errorf("storing author of %s: %w", key.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s: %w", key.Path, err)
	}
	return nil
}

// Books lists every stored book ordered by path.
func (s *Store) Books(ctx context.Context) ([]Book, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is closed")
	}

	rows, err := s.db.QueryContext(ctx, selectBooks+` ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	defer rows.Close()

	var books []Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("reading book row: %w", err)
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	rows.Close()

	for i := range books {
		authors, err := s.authors(ctx, books[i].Key.Path)
		if err != nil {
			return nil, err
		}
		books[i].Result.Record.Authors = authors
	}
	return books, nil
}

// Prune deletes books under root whose paths are not in keep.
func (s *Store) Prune(ctx context.Context, root string, keep map[string]bool) (int, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database connection is closed")
	}

	prefix := strings.TrimSuffix(root, string(filepath.Separator)) + string(filepath.Separator)
	// length() counts characters like substr() does, so non-ASCII roots match.
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM books WHERE substr(path, 1, length(?1)) = ?1`, prefix)
	if err != nil {
		return 0, fmt.Errorf("listing books under %s: %w", root, err)
	}
	var stale []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return 0, fmt.Errorf("reading path: %w", err)
		}
		if !keep[p] {
			stale = append(stale, p)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("listing books under %s: %w", root, err)
	}

	for _, p := range stale {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE path = ?`, p); err != nil {
			return 0, fmt.Errorf("deleting %s: %w", p, err)
		}
	}
	return len(stale), nil
}

const selectBooks = `SELECT path, size, mod_time, format, status, title, category, publisher, language,
	identifier, date, description, subjects, cover, warnings, error, scanned_at FROM books`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (Book, error) {
	var (
		b                       Book
		modTime, scannedAt      int64
		status, subjects, cover string
		warnings, errText       string
	)
	rec := &b.Result.Record
	if err := row.Scan(&b.Key.Path, &b.Key.Size, &modTime, &b.Result.Format, &status,
		&rec.Title, &rec.Category, &rec.Publisher, &rec.Language, &rec.Identifier, &rec.Date, &rec.Description,
		&subjects, &cover, &warnings, &errText, &scannedAt); err != nil {
		return Book{}, err
	}

	b.Key.ModTime = time.Unix(0, modTime)
	b.ScannedAt = time.Unix(0, scannedAt)
	b.Result.Status = parseStatus(status)
	if err := json.Unmarshal([]byte(subjects), &rec.Subjects); err != nil {
		return Book{}, fmt.Errorf("decoding subjects: %w", err)
	}
	if len(rec.Subjects) == 0 {
		rec.Subjects = nil
	}
	if err := json.Unmarshal([]byte(warnings), &b.Result.Warnings); err != nil {
		return Book{}, fmt.Errorf("decoding warnings: %w", err)
	}
	if len(b.Result.Warnings) == 0 {
		b.Result.Warnings = nil
	}
	if cover != "" {
		rec.Cover = &metadata.Cover{Format: cover}
	}
	if errText != "" {
		b.Result.Err = errors.New(errText)
	}
	return b, nil
}

func (s *Store) authors(ctx context.Context, path string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM authors WHERE book_path = ? ORDER BY position`, path)
	if err != nil {
		return nil, fmt.Errorf("reading authors of %s: %w", path, err)
	}
	defer rows.Close()

	var authors []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("reading author: %w", err)
		}
		authors = append(authors, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading authors of %s: %w", path, err)
	}
	if len(authors) == 0 {
		authors = []string{metadata.UnknownAuthor}
	}
	return authors, nil
}

func parseStatus(s string) metadata.Status {
	switch s {
	case metadata.StatusComplete.String():
		return metadata.StatusComplete
	case metadata.StatusPartial.String():
		return metadata.StatusPartial
	default:
		return metadata.StatusPlaceholder
	}
}

// connectionString builds the go-sqlite3 DSN with pragmas
func connectionString(opts StoreOptions) string {
	params := url.Values{}
	params.Set("_foreign_keys", "on")
	if opts.WALMode {
		params.Set("_journal_mode", "WAL")
	}
	if opts.BusyTimeout > 0 {
		params.Set("_busy_timeout", fmt.Sprint(opts.BusyTimeout.Milliseconds()))
	}
	params.Set("_synchronous", "NORMAL")
	// SQLite decodes the URI path, so ? and # in file names survive.
	return "file:" + (&url.URL{Path: opts.Path}).EscapedPath() + "?" + params.Encode()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
