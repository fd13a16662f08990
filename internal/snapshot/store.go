package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	dirPermissions  = 0750
	filePermissions = 0600
	fileExt         = ".json"
)

var validKey = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Store is a directory of snapshot files. Safe for concurrent use.
type Store struct {
	dir string
	now func() time.Time

	// mu serialises writers within the process. Readers never take it.
	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used to stamp writes.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates dir if needed and returns a Store rooted there.
func NewStore(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}
	s := &Store{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the cache directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.dir, key+fileExt), nil
}

// Put stamps payload with the current time and atomically replaces the
// snapshot stored under key. payload is anything encoding/json accepts,
// including a json.RawMessage.
func (s *Store) Put(key string, payload any) (Snapshot, error) {
	path, err := s.path(key)
	if err != nil {
		return Snapshot{}, err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encoding payload for %s: %w", key, err)
	}
	snap := Snapshot{
		Timestamp: stamp(s.now()),
		Fields:    fieldsOf(raw),
	}
	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return Snapshot{}, fmt.Errorf("encoding snapshot %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeAtomic(path, body); err != nil {
		return Snapshot{}, fmt.Errorf("writing snapshot %s: %w", key, err)
	}
	return snap, nil
}

// stamp rounds t up to the millisecond the file format keeps, so a stored
// timestamp is never earlier than the Put that wrote it.
func stamp(t time.Time) time.Time {
	t = t.UTC()
	if r := t.Truncate(time.Millisecond); !r.Equal(t) {
		return r.Add(time.Millisecond)
	}
	return t
}

// Get returns the snapshot stored under key. ok is false when no snapshot
// has been written yet.
func (s *Store) Get(key string) (snap Snapshot, ok bool, err error) {
	path, err := s.path(key)
	if err != nil {
		return Snapshot{}, false, err
	}

	body, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("reading snapshot %s: %w", key, err)
	}

	if err := json.Unmarshal(body, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("%w: %s: %w", ErrCorrupt, key, err)
	}
	return snap, true, nil
}

// Keys lists the keys that currently have a snapshot, sorted.
func (s *Store) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		key := strings.TrimSuffix(name, fileExt)
		if validKey.MatchString(key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// writeAtomic writes body to a temp file next to path, syncs it and renames
// it into place.
func writeAtomic(path string, body []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name()) //nolint:errcheck // cleanup on failure
		}
	}()

	if _, err = tmp.Write(body); err != nil {
		tmp.Close() //nolint:errcheck // already failing
		return err
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck // already failing
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), filePermissions); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
