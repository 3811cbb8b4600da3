// Package persist stores flow snapshots: a durable msgpack-on-disk store
// for resuming, an in-memory shared store for cross-component visibility,
// and the debounced syncer that feeds both through one write path.
package persist

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/dataprimer/backend/internal/models"
)

// Store persists flow snapshots.
type Store interface {
	Save(st *models.FlowState) error
	Load(id string) (*models.FlowState, error)
	List(limit int) ([]*models.FlowState, error)
	Delete(id string) error
}

const snapshotExt = ".flow"

// LocalStore keeps one msgpack-encoded snapshot file per flow under dir.
type LocalStore struct {
	mu  sync.RWMutex
	dir string
}

// NewLocalStore creates the snapshot directory if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) path(id string) string {
	return filepath.Join(s.dir, id+snapshotExt)
}

// Save writes the snapshot, replacing any previous one for the flow.
func (s *LocalStore) Save(st *models.FlowState) error {
	if st.ID == "" {
		return fmt.Errorf("snapshot missing flow id")
	}
	data, err := msgpack.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path(st.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path(st.ID)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

// Load reads one snapshot by flow id.
func (s *LocalStore) Load(id string) (*models.FlowState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("snapshot not found: %s", id)
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	var st models.FlowState
	if err := msgpack.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &st, nil
}

// List returns the most recently updated snapshots.
func (s *LocalStore) List(limit int) ([]*models.FlowState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}

	var states []*models.FlowState
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), snapshotExt) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		var st models.FlowState
		if err := msgpack.Unmarshal(data, &st); err != nil {
			continue
		}
		states = append(states, &st)
	}

	sort.Slice(states, func(i, j int) bool {
		return states[i].UpdatedAt.After(states[j].UpdatedAt)
	})
	if limit > 0 && len(states) > limit {
		states = states[:limit]
	}
	return states, nil
}

// Delete removes a snapshot; missing snapshots are not an error.
func (s *LocalStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting snapshot: %w", err)
	}
	return nil
}

// SharedStore is the in-memory application store other components read
// flow state from.
type SharedStore struct {
	mu    sync.RWMutex
	flows map[string]*models.FlowState
}

// NewSharedStore creates an empty shared store.
func NewSharedStore() *SharedStore {
	return &SharedStore{flows: make(map[string]*models.FlowState)}
}

// Save replaces the stored snapshot for a flow.
func (s *SharedStore) Save(st *models.FlowState) error {
	if st.ID == "" {
		return fmt.Errorf("snapshot missing flow id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows[st.ID] = st.Clone()
	return nil
}

// Load returns a copy of the stored snapshot.
func (s *SharedStore) Load(id string) (*models.FlowState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.flows[id]
	if !ok {
		return nil, fmt.Errorf("snapshot not found: %s", id)
	}
	return st.Clone(), nil
}

// List returns the most recently updated snapshots.
func (s *SharedStore) List(limit int) ([]*models.FlowState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	states := make([]*models.FlowState, 0, len(s.flows))
	for _, st := range s.flows {
		states = append(states, st.Clone())
	}
	sort.Slice(states, func(i, j int) bool {
		return states[i].UpdatedAt.After(states[j].UpdatedAt)
	})
	if limit > 0 && len(states) > limit {
		states = states[:limit]
	}
	return states, nil
}

// Delete removes a snapshot.
func (s *SharedStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flows, id)
	return nil
}
