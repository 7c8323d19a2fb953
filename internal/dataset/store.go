// Owns the in-memory records table and its CSV file.

package dataset

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/maruel/insurdash/internal/csvdb"
)

// ErrEmpty is returned when the dataset file holds no records.
var ErrEmpty = errors.New("dataset has no records")

// Observer is called after a record was appended and persisted.
//
// n is the number of records after the append. Observers run after the store
// lock is released, in registration order. The next append waits for them, so
// an observer sees the file exactly as its own append left it.
type Observer func(r Record, n int)

// Store is the in-memory snapshot of the insurance dataset backed by a CSV
// file. It is safe for concurrent use.
//
// The file is rewritten in full on every append, so appends are O(n) in the
// dataset size. That is fine for thousands of rows, not for millions.
type Store struct {
	path  string
	codec *csvdb.Codec[Record]

	// appendMu serializes Append including its observers. It is taken before
	// mu.
	appendMu sync.Mutex

	mu        sync.RWMutex
	rows      []Record
	idx       *index
	stamp     fileStamp
	observers []Observer
}

// fileStamp identifies a version of the file on disk.
type fileStamp struct {
	modTime time.Time
	size    int64
}

// Open loads the dataset from path.
//
// It fails when the file is missing, malformed, or holds zero records: the
// match fallback needs a charge range, so an empty store is never served.
func Open(path string) (*Store, error) {
	codec, err := csvdb.NewCodec[Record]()
	if err != nil {
		return nil, err
	}
	s := &Store{path: path, codec: codec}
	rows, stamp, err := s.read()
	if err != nil {
		return nil, err
	}
	s.rows = rows
	s.idx = newIndex(rows)
	s.stamp = stamp
	return s, nil
}

// Path returns the dataset file path.
func (s *Store) Path() string {
	return s.path
}

// Codec returns the codec used to persist records. It also decodes past
// versions of the file.
func (s *Store) Codec() *csvdb.Codec[Record] {
	return s.codec
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Last returns the last record, or false if the store is empty.
func (s *Store) Last() (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.rows) == 0 {
		return Record{}, false
	}
	return s.rows[len(s.rows)-1], true
}

// Snapshot returns a copy of all records in file order.
func (s *Store) Snapshot() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.rows)
}

// Observe registers fn to be called after every successful append.
func (s *Store) Observe(fn Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Append adds r at the end of the dataset and rewrites the file.
//
// If the file cannot be written the in-memory append is rolled back, so
// memory and disk never diverge. The stored record is returned.
func (s *Store) Append(r Record) (Record, error) {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()
	s.mu.Lock()
	pos := uint32(len(s.rows)) //nolint:gosec // G115: row count is far below 2^32.
	s.rows = append(s.rows, r)
	s.idx.add(pos, &r)
	if err := s.codec.WriteFile(s.path, s.rows); err != nil {
		s.idx.remove(pos, &r)
		s.rows = s.rows[:pos]
		s.mu.Unlock()
		return Record{}, fmt.Errorf("failed to persist dataset: %w", err)
	}
	if st, err := statFile(s.path); err == nil {
		s.stamp = st
	}
	n := len(s.rows)
	observers := slices.Clone(s.observers)
	s.mu.Unlock()

	for _, fn := range observers {
		fn(r, n)
	}
	return r, nil
}

// Reload re-reads the file if it changed since it was last loaded or written
// by this store. It returns whether the snapshot was replaced.
//
// On error, including a file that now holds zero records, the current
// snapshot is kept.
func (s *Store) Reload() (bool, error) {
	st, err := statFile(s.path)
	if err != nil {
		return false, err
	}
	s.mu.RLock()
	prev := s.stamp
	s.mu.RUnlock()
	if st.equal(prev) {
		return false, nil
	}

	rows, st, err := s.read()
	if err != nil {
		return false, err
	}
	if testHookReloadRead != nil {
		testHookReloadRead()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stamp.equal(prev) {
		// An Append rewrote the file while it was being read; rows may be
		// stale.
		return false, nil
	}
	s.rows = rows
	s.idx = newIndex(rows)
	s.stamp = st
	return true, nil
}

// ChargeRange returns the minimum and maximum charge over all records.
func (s *Store) ChargeRange() (lo, hi float64, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return chargeRange(s.rows)
}

// view calls fn with the rows and index under the read lock. fn must not
// retain either.
func (s *Store) view(fn func(rows []Record, idx *index)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.rows, s.idx)
}

// testHookReloadRead runs in Reload between reading the file and swapping the
// snapshot.
var testHookReloadRead func()

func (s *Store) read() ([]Record, fileStamp, error) {
	st, err := statFile(s.path)
	if err != nil {
		return nil, fileStamp{}, err
	}
	rows, err := s.codec.ReadFile(s.path)
	if err != nil {
		return nil, fileStamp{}, err
	}
	if len(rows) == 0 {
		return nil, fileStamp{}, fmt.Errorf("%s: %w", s.path, ErrEmpty)
	}
	return rows, st, nil
}

func (f fileStamp) equal(o fileStamp) bool {
	return f.size == o.size && f.modTime.Equal(o.modTime)
}

func statFile(path string) (fileStamp, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return fileStamp{}, err
	}
	return fileStamp{modTime: fi.ModTime(), size: fi.Size()}, nil
}

func chargeRange(rows []Record) (lo, hi float64, err error) {
	if len(rows) == 0 {
		return 0, 0, ErrEmpty
	}
	lo, hi = rows[0].Charges, rows[0].Charges
	for i := 1; i < len(rows); i++ {
		lo = min(lo, rows[i].Charges)
		hi = max(hi, rows[i].Charges)
	}
	return lo, hi, nil
}
