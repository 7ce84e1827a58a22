// Package ingest loads raw procurement tables and normalizes their values.
package ingest

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/niruguard/niruguard/internal/fetcher"
)

// Loader reads sources and memoizes them for the lifetime of one pipeline
// invocation. Create a new Loader per run so later runs see fresh files.
type Loader struct {
	charset string

	mu    sync.Mutex
	cache map[string]*Table
}

// NewLoader creates a Loader. charset names the encoding of CSV sources;
// empty means UTF-8.
func NewLoader(charset string) *Loader {
	return &Loader{
		charset: charset,
		cache:   make(map[string]*Table),
	}
}

func cacheKey(src Source) string {
	return src.Path + "|" + strings.Join(src.Required, ",") + "|" + src.DedupKey
}

// Load reads src, keeps only its required columns and, when DedupKey is set,
// the first row per key. Repeated loads of the same source return the cached
// table.
func (l *Loader) Load(ctx context.Context, src Source) (*Table, error) {
	key := cacheKey(src)

	l.mu.Lock()
	if t, ok := l.cache[key]; ok {
		l.mu.Unlock()
		return t, nil
	}
	l.mu.Unlock()

	t, err := l.read(ctx, src)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// A concurrent load of the same source may have won; keep its table so
	// every caller sees one instance.
	if cached, ok := l.cache[key]; ok {
		return cached, nil
	}
	l.cache[key] = t
	return t, nil
}

// LoadAll loads independent sources concurrently and returns tables in the
// order of srcs. The first fatal error cancels the remaining reads.
func (l *Loader) LoadAll(ctx context.Context, srcs ...Source) ([]*Table, error) {
	tables := make([]*Table, len(srcs))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range srcs {
		g.Go(func() error {
			t, err := l.Load(gctx, src)
			if err != nil {
				return err
			}
			tables[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tables, nil
}

func (l *Loader) read(ctx context.Context, src Source) (*Table, error) {
	log := zap.L().With(zap.String("component", "ingest"), zap.String("source", src.Name))

	if _, err := os.Stat(src.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &SourceUnavailableError{Source: src.Name, Path: src.Path, Err: err}
		}
		return nil, eris.Wrapf(err, "ingest: stat %s", src.Path)
	}

	header, records, err := l.readRecords(ctx, src.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read %s (%s)", src.Name, src.Path)
	}

	colIdx := mapColumns(header)
	idx := make([]int, len(src.Required))
	for i, col := range src.Required {
		j, ok := colIdx[normalizeCol(col)]
		if !ok {
			return nil, &SchemaMismatchError{Source: src.Name, Path: src.Path, Column: col}
		}
		idx[i] = j
	}

	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		row := make(Row, len(src.Required))
		for i, col := range src.Required {
			if j := idx[i]; j < len(rec) {
				row[col] = rec[j]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}

	t := &Table{
		Source:  src.Name,
		Path:    src.Path,
		Columns: append([]string(nil), src.Required...),
		Key:     src.DedupKey,
	}
	if src.DedupKey != "" {
		t.Rows, t.Duplicates, t.EmptyKeys = dedupFirst(rows, src.DedupKey)
	} else {
		t.Rows = rows
	}

	log.Info("ingest: loaded source",
		zap.String("path", src.Path),
		zap.Int("rows", len(records)),
		zap.Int("kept", len(t.Rows)),
		zap.Int("duplicates", t.Duplicates),
		zap.Int("empty_keys", t.EmptyKeys),
	)
	return t, nil
}

func (l *Loader) readRecords(ctx context.Context, path string) ([]string, [][]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "open")
	}
	defer f.Close() //nolint:errcheck

	return fetcher.ReadCSV(ctx, f, fetcher.CSVOptions{
		Charset:    l.charset,
		LazyQuotes: true,
	})
}

// normalizeCol trims and lowercases a header for matching.
func normalizeCol(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// mapColumns builds a normalized column name → index map. The first of any
// repeated header wins.
func mapColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		n := normalizeCol(col)
		if _, ok := m[n]; !ok {
			m[n] = i
		}
	}
	return m
}
