// Package jsonldb implements a tiny JSONL backed table store.
//
// Each table is one file with one JSON encoded row per line. The whole table
// is kept in memory and rewritten atomically on every mutation, which is the
// right trade-off for a single-user workspace of at most a few thousand rows.
package jsonldb

import (
	"bufio"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sync"

	"github.com/maruel/ksid"
)

// Cloner returns a deep copy so cached rows never escape by reference.
type Cloner[T any] interface {
	Clone() T
}

// Row is the contract a stored type must satisfy.
type Row[T any] interface {
	Cloner[T]
	GetID() ksid.ID
	Validate() error
}

// Table is a keyed, mutex guarded collection of rows persisted as JSONL.
type Table[T Row[T]] struct {
	path string

	mu   sync.RWMutex
	rows []T
	byID map[ksid.ID]int
}

// NewTable opens or creates the table at path and loads it into memory.
func NewTable[T Row[T]](path string) (*Table[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating table directory: %w", err)
	}
	t := &Table[T]{path: path, byID: map[ksid.ID]int{}}
	if err := t.load(); err != nil {
		return nil, err
	}
	return t, nil
}

// Path returns the file backing the table.
func (t *Table[T]) Path() string {
	return t.path
}

// Len returns the number of rows.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Get returns a copy of the row with the given id.
func (t *Table[T]) Get(id ksid.ID) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i, ok := t.byID[id]; ok {
		return t.rows[i].Clone(), true
	}
	var zero T
	return zero, false
}

// All iterates over copies of every row in insertion order.
func (t *Table[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		t.mu.RLock()
		rows := make([]T, len(t.rows))
		for i := range t.rows {
			rows[i] = t.rows[i].Clone()
		}
		t.mu.RUnlock()
		for _, r := range rows {
			if !yield(r) {
				return
			}
		}
	}
}

// Upsert validates then inserts or replaces the row and persists the table.
func (t *Table[T]) Upsert(row T) error {
	if err := row.Validate(); err != nil {
		return err
	}
	row = row.Clone()
	t.mu.Lock()
	defer t.mu.Unlock()
	if i, ok := t.byID[row.GetID()]; ok {
		old := t.rows[i]
		t.rows[i] = row
		if err := t.persist(); err != nil {
			t.rows[i] = old
			return err
		}
		return nil
	}
	t.rows = append(t.rows, row)
	t.byID[row.GetID()] = len(t.rows) - 1
	if err := t.persist(); err != nil {
		t.rows = t.rows[:len(t.rows)-1]
		delete(t.byID, row.GetID())
		return err
	}
	return nil
}

// Delete removes the row with the given id, reporting whether it existed.
func (t *Table[T]) Delete(id ksid.ID) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.byID[id]
	if !ok {
		return false, nil
	}
	old := t.rows
	t.rows = append(t.rows[:i:i], t.rows[i+1:]...)
	t.reindex()
	if err := t.persist(); err != nil {
		t.rows = old
		t.reindex()
		return false, err
	}
	return true, nil
}

// Replace swaps the whole table content, validating every row first.
func (t *Table[T]) Replace(rows []T) error {
	copied := make([]T, len(rows))
	for i, r := range rows {
		if err := r.Validate(); err != nil {
			return err
		}
		copied[i] = r.Clone()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	old := t.rows
	t.rows = copied
	t.reindex()
	if err := t.persist(); err != nil {
		t.rows = old
		t.reindex()
		return err
	}
	return nil
}

// Reload re-reads the table from disk, discarding the in-memory state.
func (t *Table[T]) Reload() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = nil
	t.byID = map[ksid.ID]int{}
	return t.loadLocked()
}

func (t *Table[T]) load() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loadLocked()
}

func (t *Table[T]) loadLocked() error {
	f, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("opening %s: %w", t.path, err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var row T
		if err := json.Unmarshal(raw, &row); err != nil {
			return fmt.Errorf("%s line %d: %w", t.path, line, err)
		}
		t.rows = append(t.rows, row)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", t.path, err)
	}
	t.reindex()
	return nil
}

func (t *Table[T]) reindex() {
	t.byID = make(map[ksid.ID]int, len(t.rows))
	for i := range t.rows {
		t.byID[t.rows[i].GetID()] = i
	}
}

// persist writes every row to a temp file then renames it over the table.
// Callers hold the write lock.
func (t *Table[T]) persist() error {
	f, err := os.CreateTemp(filepath.Dir(t.path), "."+filepath.Base(t.path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp table: %w", err)
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for i := range t.rows {
		if err := enc.Encode(t.rows[i]); err != nil {
			f.Close()
			os.Remove(f.Name())
			return fmt.Errorf("encoding row: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("writing %s: %w", t.path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("closing %s: %w", t.path, err)
	}
	if err := os.Rename(f.Name(), t.path); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("replacing %s: %w", t.path, err)
	}
	return nil
}
