package persist

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/dataprimer/backend/internal/models"
)

// FlushPolicy controls when requested writes reach the stores.
type FlushPolicy int

const (
	// FlushImmediate writes synchronously on every accepted change.
	FlushImmediate FlushPolicy = iota
	// FlushDebounced collapses bursts and writes once the flow has been
	// quiet for the debounce interval.
	FlushDebounced
)

// DefaultDebounce matches the wizard's save guard.
const DefaultDebounce = 500 * time.Millisecond

// Syncer is the single write path for flow snapshots. Change detection
// compares the encoded snapshot's digest against both the last-requested
// and last-confirmed-saved digests, so bursts of identical writes and
// rapid re-edits collapse instead of duplicating store writes.
type Syncer struct {
	stores   []Store
	policy   FlushPolicy
	debounce time.Duration
	logger   *zap.Logger

	mu            sync.Mutex
	pending       map[string]*models.FlowState
	timers        map[string]*time.Timer
	lastRequested map[string]string
	lastSaved     map[string]string
	closed        bool
}

// NewSyncer creates a syncer fanning writes out to the given stores.
// A non-positive debounce falls back to DefaultDebounce.
func NewSyncer(policy FlushPolicy, debounce time.Duration, logger *zap.Logger, stores ...Store) *Syncer {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{
		stores:        stores,
		policy:        policy,
		debounce:      debounce,
		logger:        logger,
		pending:       make(map[string]*models.FlowState),
		timers:        make(map[string]*time.Timer),
		lastRequested: make(map[string]string),
		lastSaved:     make(map[string]string),
	}
}

func digest(st *models.FlowState) (string, error) {
	// UpdatedAt changes on every mutation and would defeat the guard.
	clone := st.Clone()
	clone.UpdatedAt = time.Time{}
	data, err := msgpack.Marshal(clone)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Write requests persistence of a snapshot. Unchanged snapshots are
// dropped; changed ones are written now or after the debounce interval
// depending on the flush policy.
func (s *Syncer) Write(st *models.FlowState) error {
	key, err := digest(st)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if key == s.lastRequested[st.ID] {
		s.mu.Unlock()
		return nil
	}
	if key == s.lastSaved[st.ID] {
		// Reverted to the persisted state within the debounce window:
		// cancel the intermediate snapshot instead of flushing it.
		delete(s.pending, st.ID)
		if timer, ok := s.timers[st.ID]; ok {
			timer.Stop()
			delete(s.timers, st.ID)
		}
		s.lastRequested[st.ID] = key
		s.mu.Unlock()
		return nil
	}
	s.lastRequested[st.ID] = key
	s.pending[st.ID] = st.Clone()

	if s.policy == FlushImmediate {
		s.mu.Unlock()
		return s.flushFlow(st.ID)
	}

	if timer, ok := s.timers[st.ID]; ok {
		timer.Reset(s.debounce)
	} else {
		id := st.ID
		s.timers[id] = time.AfterFunc(s.debounce, func() {
			if err := s.flushFlow(id); err != nil {
				s.logger.Warn("deferred snapshot write failed",
					zap.String("flowId", id), zap.Error(err))
			}
		})
	}
	s.mu.Unlock()
	return nil
}

func (s *Syncer) flushFlow(id string) error {
	s.mu.Lock()
	st, ok := s.pending[id]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.pending, id)
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
	key := s.lastRequested[id]
	s.mu.Unlock()

	for _, store := range s.stores {
		if err := store.Save(st); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.lastSaved[id] = key
	s.mu.Unlock()
	return nil
}

// Flush drains every pending write immediately.
func (s *Syncer) Flush() error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := s.flushFlow(id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Forget drops pending and digest state for a flow, used on restart and
// delete so the next write always lands.
func (s *Syncer) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
	delete(s.lastRequested, id)
	delete(s.lastSaved, id)
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
}

// Close flushes pending writes and stops accepting new ones.
func (s *Syncer) Close() error {
	err := s.Flush()
	s.mu.Lock()
	s.closed = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
	return err
}
