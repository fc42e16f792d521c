package importer

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// Index is a reloadable in-memory snapshot of the last imported winner list,
// keyed by lowercase username. Reload swaps the whole map on success and
// keeps the previous snapshot on failure, so readers never observe a
// half-loaded list. Reload is meant to be called from a single goroutine;
// reads are safe from any.
type Index struct {
	mu   sync.RWMutex
	rows map[string]Row
	path string
}

func NewIndex() *Index {
	return &Index{rows: map[string]Row{}}
}

// Reload parses the file at path and replaces the snapshot. Returns the
// number of indexed users.
func (ix *Index) Reload(path string, opts Options) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open winner list: %w", err)
	}
	defer f.Close()

	rows, err := Parse(f, opts)
	if err != nil {
		return 0, err
	}
	next := make(map[string]Row, len(rows))
	for _, row := range rows {
		next[row.Username] = row
	}

	ix.mu.Lock()
	ix.rows = next
	ix.path = path
	ix.mu.Unlock()
	return len(next), nil
}

// Replace swaps the snapshot for rows parsed elsewhere (e.g. an in-chat CSV
// upload). The source path is cleared since the rows did not come from disk.
func (ix *Index) Replace(rows []Row) {
	next := make(map[string]Row, len(rows))
	for _, row := range rows {
		next[row.Username] = row
	}
	ix.mu.Lock()
	ix.rows = next
	ix.path = ""
	ix.mu.Unlock()
}

// Get returns the indexed row for a (case-insensitive) username.
func (ix *Index) Get(username string) (Row, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	row, ok := ix.rows[strings.ToLower(username)]
	return row, ok
}

// Rows returns a copy of the current snapshot in no particular order.
func (ix *Index) Rows() []Row {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	rows := make([]Row, 0, len(ix.rows))
	for _, row := range ix.rows {
		rows = append(rows, row)
	}
	return rows
}

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.rows)
}

// Source returns the path of the last successful reload.
func (ix *Index) Source() string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.path
}
