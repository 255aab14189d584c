// Package docstore persists one JSON document per contract under a root
// directory. A single store-wide RWMutex serializes writers against each
// other and against readers, so no reader ever observes a half-written
// document. Writes go through a temp file and an atomic rename; a failed
// write never truncates the previous state.
package docstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/AsiwajuPseudo/contracts/pkg/domain"
)

// Store is a durable whole-document contract store. Concurrency is coarse:
// one gate for the entire store, not per contract. Contract writes are rare
// relative to reads, so simplicity wins over throughput here.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// ListFilter narrows ListAll to contracts created by CreatorID or listing
// CollaboratorID among their collaborators. Zero values match everything.
type ListFilter struct {
	CreatorID      string
	CollaboratorID string
}

// New opens (or creates) the store directory.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create store dir: %v", domain.ErrStorage, err)
	}
	return &Store{dir: dir}, nil
}

// Create persists a brand-new document. An identifier already in use is a
// conflict; Create never silently overwrites.
func (s *Store) Create(c *domain.Contract) error {
	path, err := s.path(c.ID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: contract %s already exists", domain.ErrConflict, c.ID)
	}
	c.Rev = 1
	return s.write(path, c)
}

// Load returns the fully deserialized document. A missing file and a
// corrupt file look identical to callers: not found. Partial state is
// never surfaced.
func (s *Store) Load(id string) (*domain.Contract, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(path, id)
}

// Save overwrites the stored representation in full. The document's Rev
// must match the stored revision; a mismatch means another writer won the
// race and the caller's copy is stale (ErrConflict). Saving an unmodified
// document is a genuine no-op: the file is left byte-for-byte untouched.
func (s *Store) Save(c *domain.Contract) error {
	path, err := s.path(c.ID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: contract %s", domain.ErrNotFound, c.ID)
		}
		return fmt.Errorf("%w: read %s: %v", domain.ErrStorage, c.ID, err)
	}

	var prev domain.Contract
	if err := json.Unmarshal(stored, &prev); err == nil && prev.Rev != c.Rev {
		return fmt.Errorf("%w: contract %s was modified concurrently (rev %d, expected %d)",
			domain.ErrConflict, c.ID, prev.Rev, c.Rev)
	}

	unchanged, err := marshalDocument(c)
	if err != nil {
		return err
	}
	if bytes.Equal(unchanged, stored) {
		return nil
	}

	c.Rev++
	return s.write(path, c)
}

// Delete removes the persisted document and reports whether it existed.
func (s *Store) Delete(id string) (bool, error) {
	path, err := s.path(id)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: delete %s: %v", domain.ErrStorage, id, err)
	}
	return true, nil
}

// ListAll enumerates every stored document's metadata, filtered, ordered by
// creation date then id so listings are stable.
func (s *Store) ListAll(f ListFilter) ([]domain.Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: list store dir: %v", domain.ErrStorage, err)
	}

	out := []domain.Metadata{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		c, err := s.read(filepath.Join(s.dir, name), id)
		if err != nil {
			// Corrupt or vanished entries are skipped, not surfaced.
			continue
		}
		if f.CreatorID != "" && c.CreatorID != f.CreatorID {
			continue
		}
		if f.CollaboratorID != "" {
			if _, ok := c.FindCollaborator(f.CollaboratorID); !ok {
				continue
			}
		}
		out = append(out, c.Metadata())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreationDate.Equal(out[j].CreationDate) {
			return out[i].CreationDate.Before(out[j].CreationDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return "", fmt.Errorf("%w: bad contract id %q", domain.ErrNotFound, id)
	}
	return filepath.Join(s.dir, id+".json"), nil
}

func (s *Store) read(path, id string) (*domain.Contract, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: contract %s", domain.ErrNotFound, id)
	}
	var c domain.Contract
	if err := json.Unmarshal(b, &c); err != nil || c.ID != id {
		return nil, fmt.Errorf("%w: contract %s", domain.ErrNotFound, id)
	}
	normalize(&c)
	return &c, nil
}

// write marshals and atomically replaces the file: temp file in the same
// directory, fsync, rename.
func (s *Store) write(path string, c *domain.Contract) error {
	b, err := marshalDocument(c)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: temp file: %v", domain.ErrStorage, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %v", domain.ErrStorage, c.ID, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: sync %s: %v", domain.ErrStorage, c.ID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", domain.ErrStorage, c.ID, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: replace %s: %v", domain.ErrStorage, c.ID, err)
	}
	return nil
}

func marshalDocument(c *domain.Contract) ([]byte, error) {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: marshal %s: %v", domain.ErrStorage, c.ID, err)
	}
	return append(b, '\n'), nil
}

// normalize guarantees that optional collections are always present. A
// document written by an older producer never surfaces nil slices.
func normalize(c *domain.Contract) {
	if c.Collaborators == nil {
		c.Collaborators = []domain.Collaborator{}
	}
	if c.Clauses == nil {
		c.Clauses = []domain.Clause{}
	}
	for i := range c.Clauses {
		if c.Clauses[i].Comments == nil {
			c.Clauses[i].Comments = []domain.Comment{}
		}
	}
}
