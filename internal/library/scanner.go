package library

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yuanying/bookmeta/internal/metadata"
)

// Extractor reads the metadata of one file. extract.Pipeline satisfies it.
type Extractor interface {
	ExtractFile(path string) metadata.Result
}

// Pruner removes stale entries from a cache after a scan.
type Pruner interface {
	Prune(ctx context.Context, root string, keep map[string]bool) (int, error)
}

// ErrTimeout marks a file whose extraction did not finish in time.
var ErrTimeout = errors.New("extraction timed out")

// ScanOptions configures a Scanner.
type ScanOptions struct {
	// Workers bounds concurrent extractions. Values below one mean one.
	Workers int
	// Timeout bounds one extraction. Zero disables the limit.
	Timeout time.Duration
	// Extensions selects files by lower-case extension, dot included.
	// Empty selects every regular file.
	Extensions []string
	// Prune removes cached books under the root that no longer exist.
	Prune bool
	// OnFile is called once per finished file. It may be called from
	// several goroutines at once.
	OnFile func(path string)
	Logger *slog.Logger
}

// Summary counts what a scan did.
type Summary struct {
	Files       int
	Cached      int
	Extracted   int
	Complete    int
	Partial     int
	Placeholder int
	TimedOut    int
	Pruned      int
}

// Scanner walks a directory tree and extracts metadata for every book file,
// reusing cached results for files that have not changed.
type Scanner struct {
	extractor Extractor
	cache     Cache
	opts      ScanOptions
	logger    *slog.Logger
	exts      map[string]bool
}

// NewScanner creates a scanner. A nil cache disables caching.
func NewScanner(extractor Extractor, cache Cache, opts ScanOptions) *Scanner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var exts map[string]bool
	if len(opts.Extensions) > 0 {
		exts = make(map[string]bool, len(opts.Extensions))
		for _, ext := range opts.Extensions {
			exts[strings.ToLower(ext)] = true
		}
	}
	return &Scanner{
		extractor: extractor,
		cache:     cache,
		opts:      opts,
		logger:    logger,
		exts:      exts,
	}
}

// OnFile replaces the per-file callback. It must not be called during a scan.
func (s *Scanner) OnFile(fn func(path string)) { s.opts.OnFile = fn }

// Files lists the book files under root in lexical order. Hidden
// directories are skipped.
func (s *Scanner) Files(root string) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if s.exts != nil && !s.exts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// Scan lists the files under root and scans them.
func (s *Scanner) Scan(ctx context.Context, root string) (Summary, error) {
	files, err := s.Files(root)
	if err != nil {
		return Summary{}, err
	}
	return s.ScanFiles(ctx, root, files)
}

// ScanFiles extracts metadata for files, which must be absolute paths under
// root. Extraction failures never abort the scan; cache write failures and
// cancellation of ctx do.
func (s *Scanner) ScanFiles(ctx context.Context, root string, files []string) (Summary, error) {
	var (
		mu      sync.Mutex
		summary = Summary{Files: len(files)}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for _, path := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, cached, err := s.scanFile(gctx, path)
			if err != nil {
				return err
			}

			mu.Lock()
			if cached {
				summary.Cached++
			} else {
				summary.Extracted++
			}
			switch res.Status {
			case metadata.StatusComplete:
				summary.Complete++
			case metadata.StatusPartial:
				summary.Partial++
			default:
				summary.Placeholder++
				if errors.Is(res.Err, ErrTimeout) {
					summary.TimedOut++
				}
			}
			mu.Unlock()

			if s.opts.OnFile != nil {
				s.opts.OnFile(path)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summary, err
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	if s.opts.Prune {
		pruner, ok := s.cache.(Pruner)
		if !ok {
			return summary, nil
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			return summary, fmt.Errorf("resolving %s: %w", root, err)
		}
		keep := make(map[string]bool, len(files))
		for _, f := range files {
			keep[f] = true
		}
		n, err := pruner.Prune(ctx, abs, keep)
		if err != nil {
			return summary, err
		}
		summary.Pruned = n
	}

	return summary, nil
}

func (s *Scanner) scanFile(ctx context.Context, path string) (metadata.Result, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		s.logger.Warn("cannot stat file", "path", path, "error", err)
		return s.extract(ctx, path), false, nil
	}
	key := FileKey{Path: path, Size: info.Size(), ModTime: info.ModTime()}

	if s.cache != nil {
		res, ok, err := s.cache.Lookup(ctx, key)
		if err != nil {
			s.logger.Warn("cache lookup failed", "path", path, "error", err)
		} else if ok {
			s.logger.Debug("cache hit", "path", path)
			return res, true, nil
		}
	}

	res := s.extract(ctx, path)
	if errors.Is(res.Err, ErrTimeout) || ctx.Err() != nil {
		// Not cached so the next scan retries it.
		return res, false, nil
	}
	if s.cache != nil {
		if err := s.cache.Put(ctx, key, res); err != nil {
			return res, false, err
		}
	}
	return res, false, nil
}

// extract runs the extractor under the per-file timeout. A timed-out
// extraction keeps running in its goroutine until it returns; its result is
// discarded.
func (s *Scanner) extract(ctx context.Context, path string) metadata.Result {
	start := time.Now()
	if s.opts.Timeout <= 0 {
		res := s.extractor.ExtractFile(path)
		s.logResult(path, res, time.Since(start))
		return res
	}

	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	done := make(chan metadata.Result, 1)
	go func() {
		done <- s.extractor.ExtractFile(path)
	}()

	select {
	case res := <-done:
		s.logResult(path, res, time.Since(start))
		return res
	case <-ctx.Done():
		if err := parent.Err(); err != nil {
			// The scan itself was stopped, not this file.
			return metadata.Placeholder("unknown", fmt.Errorf("extraction interrupted: %w", err))
		}
		err := fmt.Errorf("%w after %s: %w", ErrTimeout, s.opts.Timeout, ctx.Err())
		s.logger.Warn("extraction timed out", "path", path, "timeout", s.opts.Timeout)
		res := metadata.Placeholder("unknown", err)
		res.Warnings = []string{err.Error()}
		return res
	}
}

func (s *Scanner) logResult(path string, res metadata.Result, elapsed time.Duration) {
	if !res.OK() {
		s.logger.Warn("unreadable book", "path", path, "format", res.Format, "error", res.Err)
		return
	}
	s.logger.Debug("extracted", "path", path, "format", res.Format, "status", res.Status,
		"title", res.Record.Title, "duration", elapsed)
}
