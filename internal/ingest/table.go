package ingest

import "strings"

// Row is one source row keyed by column name.
type Row map[string]string

// Get returns the trimmed cell for col, or "" when absent.
func (r Row) Get(col string) string {
	return strings.TrimSpace(r[col])
}

// Table is a loaded source restricted to its required columns. Tables are
// shared through the Loader cache and must be treated as read-only.
type Table struct {
	Source  string
	Path    string
	Columns []string
	Rows    []Row
	Key     string

	// Duplicates counts rows discarded because an earlier row had the same
	// key. EmptyKeys counts rows discarded for having no key at all.
	Duplicates int
	EmptyKeys  int
}

// Len returns the number of surviving rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index maps each key value to its row. It requires a keyed table; for an
// unkeyed table it returns nil.
func (t *Table) Index() map[string]Row {
	if t == nil || t.Key == "" {
		return nil
	}
	idx := make(map[string]Row, len(t.Rows))
	for _, r := range t.Rows {
		idx[r.Get(t.Key)] = r
	}
	return idx
}

// dedupFirst keeps the first row for each key in file order. This is a
// heuristic: a later row may be a correction of an earlier one, but file
// order is the only ordering the exports carry.
func dedupFirst(rows []Row, key string) (kept []Row, duplicates, empty int) {
	seen := make(map[string]struct{}, len(rows))
	kept = make([]Row, 0, len(rows))
	for _, r := range rows {
		k := r.Get(key)
		if IsNull(k) {
			empty++
			continue
		}
		if _, ok := seen[k]; ok {
			duplicates++
			continue
		}
		seen[k] = struct{}{}
		kept = append(kept, r)
	}
	return kept, duplicates, empty
}
