package flow

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dataprimer/backend/internal/models"
	"github.com/dataprimer/backend/internal/rules"
)

// MaxFlows limits concurrent flow sessions to prevent memory exhaustion.
const MaxFlows = 64

// FlowKeepAliveWindow is how long an actively used flow is protected from
// cleanup regardless of age.
const FlowKeepAliveWindow = 5 * time.Minute

// ChangeFunc is invoked with a snapshot after every successful mutation.
// The persistence syncer hangs off this hook.
type ChangeFunc func(*models.FlowState)

type flowEntry struct {
	state        *models.FlowState
	lastAccessed time.Time
}

// Manager holds the active guided upload flows. It is the single owner of
// flow state: views read immutable snapshots and mutate exclusively through
// the command methods, which serialize under the manager lock.
type Manager struct {
	mu       sync.RWMutex
	flows    map[string]*flowEntry
	registry *rules.Registry
	onChange ChangeFunc
	logger   *zap.Logger
}

// NewManager creates a flow manager using the given ruleset registry.
func NewManager(registry *rules.Registry, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		flows:    make(map[string]*flowEntry),
		registry: registry,
		logger:   logger,
	}
}

// SetOnChange installs the post-mutation hook. Must be called before the
// manager is shared.
func (m *Manager) SetOnChange(fn ChangeFunc) {
	m.onChange = fn
}

// CreateFlow starts a new flow. In existing-dataset mode datasetPath seeds
// the file list and the upload stage is skipped.
func (m *Manager) CreateFlow(mode models.FlowMode, datasetName, datasetPath string) (*models.FlowState, error) {
	if mode != models.FlowModeNewUpload && mode != models.FlowModeExistingDataset {
		return nil, fmt.Errorf("unknown flow mode %q", mode)
	}
	if mode == models.FlowModeExistingDataset && datasetPath == "" {
		return nil, fmt.Errorf("existing-dataset flow requires a dataset path")
	}

	m.evictIfNeeded()

	st := models.NewFlowState(uuid.New().String(), mode)
	if mode == models.FlowModeExistingDataset {
		st.Files = append(st.Files, models.UploadedFileInfo{
			Name:       datasetName,
			Path:       datasetPath,
			Processed:  true,
			UploadedAt: time.Now(),
		})
	}

	m.mu.Lock()
	m.flows[st.ID] = &flowEntry{state: st, lastAccessed: time.Now()}
	m.mu.Unlock()

	m.logger.Info("flow created",
		zap.String("flowId", st.ID),
		zap.String("mode", string(mode)))

	m.notify(st.Clone())
	return st.Clone(), nil
}

// ResumeFlow registers a persisted snapshot as a live flow, used when the
// wizard reopens with saved state.
func (m *Manager) ResumeFlow(snapshot *models.FlowState) (*models.FlowState, error) {
	if snapshot == nil || snapshot.ID == "" {
		return nil, fmt.Errorf("snapshot missing flow id")
	}

	m.evictIfNeeded()

	st := snapshot.Clone()
	m.mu.Lock()
	m.flows[st.ID] = &flowEntry{state: st, lastAccessed: time.Now()}
	m.mu.Unlock()

	m.logger.Info("flow resumed",
		zap.String("flowId", st.ID),
		zap.String("stage", string(st.CurrentStage)))
	return st.Clone(), nil
}

// GetFlow returns a read-only snapshot of a flow.
func (m *Manager) GetFlow(id string) (*models.FlowState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.flows[id]
	if !ok {
		return nil, false
	}
	return entry.state.Clone(), true
}

// Touch marks a flow as actively used so cleanup keeps it alive.
func (m *Manager) Touch(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.flows[id]
	if !ok {
		return false
	}
	entry.lastAccessed = time.Now()
	return true
}

// DeleteFlow removes a flow from the manager.
func (m *Manager) DeleteFlow(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.flows[id]; !ok {
		return false
	}
	delete(m.flows, id)
	return true
}

// CleanupOldFlows drops flows idle longer than maxAge, sparing anything
// touched within the keep-alive window.
func (m *Manager) CleanupOldFlows(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	keepAlive := time.Now().Add(-FlowKeepAliveWindow)
	for id, entry := range m.flows {
		if entry.lastAccessed.After(keepAlive) {
			continue
		}
		if entry.lastAccessed.Before(cutoff) {
			delete(m.flows, id)
			m.logger.Info("cleaned up aged flow", zap.String("flowId", id))
		}
	}
}

func (m *Manager) evictIfNeeded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.flows) < MaxFlows {
		return
	}
	var oldestID string
	var oldest time.Time
	for id, entry := range m.flows {
		if oldestID == "" || entry.lastAccessed.Before(oldest) {
			oldestID = id
			oldest = entry.lastAccessed
		}
	}
	if oldestID != "" {
		delete(m.flows, oldestID)
		m.logger.Warn("evicted flow at capacity", zap.String("flowId", oldestID))
	}
}

// mutate runs fn on the live state under the write lock and fires the
// change hook with a snapshot on success.
func (m *Manager) mutate(id string, fn func(*models.FlowState) error) error {
	m.mu.Lock()
	entry, ok := m.flows[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("flow not found: %s", id)
	}
	if err := fn(entry.state); err != nil {
		m.mu.Unlock()
		return err
	}
	entry.state.UpdatedAt = time.Now()
	entry.lastAccessed = time.Now()
	snapshot := entry.state.Clone()
	m.mu.Unlock()

	m.notify(snapshot)
	return nil
}

// notify expects a snapshot the caller no longer mutates.
func (m *Manager) notify(st *models.FlowState) {
	if m.onChange != nil {
		m.onChange(st)
	}
}

// AddFiles appends accepted files to the flow.
func (m *Manager) AddFiles(id string, files ...models.UploadedFileInfo) error {
	return m.mutate(id, func(st *models.FlowState) error {
		st.Files = append(st.Files, files...)
		return nil
	})
}

// SelectFile picks the file index the later stages operate on.
func (m *Manager) SelectFile(id string, index int) error {
	return m.mutate(id, func(st *models.FlowState) error {
		if index < 0 || index >= len(st.Files) {
			return fmt.Errorf("file index %d out of range", index)
		}
		st.SelectedFileIndex = index
		return nil
	})
}

// SelectSheet records the chosen sheet of a multi-sheet Excel file.
func (m *Manager) SelectSheet(id, fileName, sheet string) error {
	return m.mutate(id, func(st *models.FlowState) error {
		for i := range st.Files {
			if st.Files[i].Name == fileName {
				st.Files[i].SelectedSheet = sheet
				return nil
			}
		}
		return fmt.Errorf("file not in flow: %s", fileName)
	})
}

// SetFilePath rewrites a file's storage path after the backend produced a
// processed copy. Lookup is by original name so the file's accumulated
// edits are untouched.
func (m *Manager) SetFilePath(id, fileName, newPath string) error {
	return m.mutate(id, func(st *models.FlowState) error {
		for i := range st.Files {
			if st.Files[i].Name == fileName {
				st.Files[i].Path = newPath
				st.Files[i].Processed = true
				return nil
			}
		}
		return fmt.Errorf("file not in flow: %s", fileName)
	})
}

// ApplyHeaderSelection records the header choice for a file.
func (m *Manager) ApplyHeaderSelection(id, fileName string, sel models.HeaderSelection) error {
	return m.mutate(id, func(st *models.FlowState) error {
		if sel.HeaderRowCount < 1 {
			sel.HeaderRowCount = 1
		}
		st.HeaderSelections[fileName] = sel
		return nil
	})
}

// ApplyColumnEdits replaces the column rename/drop list for a file.
func (m *Manager) ApplyColumnEdits(id, fileName string, edits []models.ColumnNameEdit) error {
	return m.mutate(id, func(st *models.FlowState) error {
		st.ColumnEdits[fileName] = append([]models.ColumnNameEdit(nil), edits...)
		return nil
	})
}

// ApplyTypeSelections replaces the dtype selections for a file. For any
// selection whose role has not been explicitly overridden, the column role
// is re-derived from the active ruleset using the latest update type.
func (m *Manager) ApplyTypeSelections(id, fileName string, sels []models.DataTypeSelection) error {
	rs := m.registry.Active()
	return m.mutate(id, func(st *models.FlowState) error {
		out := append([]models.DataTypeSelection(nil), sels...)
		for i := range out {
			if !out[i].RoleOverridden {
				out[i].ColumnRole = rs.ClassifyRole(out[i].ColumnName, out[i].UpdateType)
			}
		}
		st.TypeSelections[fileName] = out
		return nil
	})
}

// ApplyMissingStrategies replaces the missing-value strategies for a file.
func (m *Manager) ApplyMissingStrategies(id, fileName string, strategies []models.MissingValueStrategy) error {
	return m.mutate(id, func(st *models.FlowState) error {
		st.MissingStrategies[fileName] = append([]models.MissingValueStrategy(nil), strategies...)
		return nil
	})
}

// SetMetadata stores one free-form metadata entry on the flow.
func (m *Manager) SetMetadata(id, key, value string) error {
	return m.mutate(id, func(st *models.FlowState) error {
		st.Metadata[key] = value
		return nil
	})
}

// Next advances the flow one stage; no-op past the terminal stage.
func (m *Manager) Next(id string) error {
	return m.mutate(id, func(st *models.FlowState) error {
		NextStage(st)
		return nil
	})
}

// Previous moves the flow one stage back; no-op at the first stage.
func (m *Manager) Previous(id string) error {
	return m.mutate(id, func(st *models.FlowState) error {
		PreviousStage(st)
		return nil
	})
}

// GoTo jumps the flow to an absolute stage.
func (m *Manager) GoTo(id string, stage models.Stage) error {
	return m.mutate(id, func(st *models.FlowState) error {
		return GoToStage(st, stage)
	})
}

// Restart resets the flow to its initial state.
func (m *Manager) Restart(id string) error {
	return m.mutate(id, func(st *models.FlowState) error {
		Restart(st)
		return nil
	})
}
