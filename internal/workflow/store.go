package workflow

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/maxionmain321/podcast-automation-caio-internal/internal/domain"
)

// Store persists workflow records as a single JSON file. Mutations replace the
// whole record; callers that need read-modify-write atomicity go through Apply.
type Store struct {
	mu   sync.RWMutex
	path string
	data map[string]domain.Workflow
}

var ErrNotFound = errors.New("workflow not found")

func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	store := &Store{path: filepath.Join(baseDir, "workflows.json")}
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = map[string]domain.Workflow{}

	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s.saveLocked()
	}
	if err != nil {
		return fmt.Errorf("open workflows file: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&s.data); err != nil {
		if errors.Is(err, io.EOF) {
			return s.saveLocked()
		}
		return fmt.Errorf("decode workflows file: %w", err)
	}

	return nil
}

// Create allocates a fresh identity and persists an empty record.
func (s *Store) Create() (domain.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	w := domain.Workflow{
		ID:          newWorkflowID(now),
		ActivityLog: []domain.LogEntry{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.data[w.ID] = w

	if err := s.saveLocked(); err != nil {
		return domain.Workflow{}, err
	}
	return w, nil
}

func (s *Store) Get(id string) (domain.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.data[id]
	if !ok {
		return domain.Workflow{}, ErrNotFound
	}
	return w, nil
}

// Save upserts the record by identity, replacing the prior value entirely.
func (s *Store) Save(w domain.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w.UpdatedAt = time.Now().UTC()
	s.data[w.ID] = w

	return s.saveLocked()
}

// Apply runs fn against the current persisted record under the store lock and
// persists the result. This is the mutation path for anything that must
// check current state before writing, such as terminal job results arriving
// from a callback and a poll at the same time.
func (s *Store) Apply(id string, fn func(*domain.Workflow) error) (domain.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.data[id]
	if !ok {
		return domain.Workflow{}, ErrNotFound
	}

	if err := fn(&w); err != nil {
		return domain.Workflow{}, err
	}

	w.UpdatedAt = time.Now().UTC()
	s.data[id] = w

	if err := s.saveLocked(); err != nil {
		return domain.Workflow{}, err
	}
	return w, nil
}

func (s *Store) List() []domain.Workflow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	workflows := make([]domain.Workflow, 0, len(s.data))
	for _, w := range s.data {
		workflows = append(workflows, w)
	}
	return workflows
}

// Delete removes the record. Deleting an unknown id is a no-op.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[id]; !ok {
		return nil
	}

	delete(s.data, id)
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "workflows-*.json")
	if err != nil {
		return fmt.Errorf("create temp workflows file: %w", err)
	}

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(s.data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encode workflows: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp workflows file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace workflows file: %w", err)
	}

	return nil
}

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

func newWorkflowID(now time.Time) string {
	suffix := make([]byte, 9)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(idAlphabet))))
		if err != nil {
			// crypto/rand only fails when the platform source is broken;
			// fall back to a timestamp-derived digit.
			suffix[i] = idAlphabet[now.UnixNano()%int64(len(idAlphabet))]
			continue
		}
		suffix[i] = idAlphabet[n.Int64()]
	}
	return fmt.Sprintf("workflow_%d_%s", now.UnixMilli(), suffix)
}
