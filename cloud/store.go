// Package cloud keeps cloud variables in a local SQLite database so that
// they survive between runs of a project.
package cloud

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/sb3vm/vm"
)

var log = commonlog.GetLogger("sb3vm.cloud")

var (
	// ErrNotFound indicates the requested variable has never been stored.
	ErrNotFound = errors.New("cloud: variable not found")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("cloud: store is closed")
)

// Store persists cloud variables. It implements vm.CloudProvider.
type Store struct {
	db   *sql.DB
	path string
	seq  uint64
	now  func() time.Time
	mu   sync.Mutex
}

var _ vm.CloudProvider = (*Store)(nil)

// Open opens (creating if needed) the store at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("cloud: creating %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cloud: opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("cloud: setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS cloud_vars (
		name TEXT PRIMARY KEY,
		record BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cloud: creating table: %w", err)
	}

	s := &Store{db: db, path: path, now: time.Now}
	records, err := s.All()
	if err != nil {
		db.Close()
		return nil, err
	}
	for _, r := range records {
		if r.Seq > s.seq {
			s.seq = r.Seq
		}
	}
	return s, nil
}

// Path returns the database path.
func (s *Store) Path() string { return s.path }

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Set stores v under name.
func (s *Store) Set(name string, v vm.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrClosed
	}

	s.seq++
	data, err := MarshalRecord(NewRecord(name, v, s.seq, s.now()))
	if err != nil {
		return fmt.Errorf("cloud: encoding %q: %w", name, err)
	}
	if _, err := s.db.Exec(
		"INSERT OR REPLACE INTO cloud_vars (name, record) VALUES (?, ?)",
		name, data,
	); err != nil {
		return fmt.Errorf("cloud: saving %q: %w", name, err)
	}
	log.Debugf("cloud: %s = %s (seq %d)", name, v.AsString(), s.seq)
	return nil
}

// Get returns the stored record for name.
func (s *Store) Get(name string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return Record{}, ErrClosed
	}

	var data []byte
	err := s.db.QueryRow("SELECT record FROM cloud_vars WHERE name = ?", name).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("cloud: querying %q: %w", name, err)
	}
	return UnmarshalRecord(data)
}

// All returns every stored record ordered by name.
func (s *Store) All() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.Query("SELECT record FROM cloud_vars ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("cloud: listing: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("cloud: scanning: %w", err)
		}
		r, err := UnmarshalRecord(data)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Delete removes the record for name, if any.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrClosed
	}
	if _, err := s.db.Exec("DELETE FROM cloud_vars WHERE name = ?", name); err != nil {
		return fmt.Errorf("cloud: deleting %q: %w", name, err)
	}
	return nil
}

// Restore loads stored values into the executor's cloud variables and
// returns how many were restored. Variables with no stored record keep
// the value from the project file.
func (s *Store) Restore(ex *vm.Executor) (int, error) {
	n := 0
	for _, v := range ex.CloudVariables() {
		r, err := s.Get(v.Name)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return n, err
		}
		v.Value = r.Value()
		n++
	}
	if n > 0 {
		log.Infof("cloud: restored %d variables from %s", n, s.path)
	}
	return n, nil
}
