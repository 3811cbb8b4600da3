package models

import "time"

// FlowState aggregates everything the guided upload wizard accumulates for
// one session: the current stage, accepted files, and the per-file edit
// maps. All edit maps are keyed by the file's original name, never by its
// storage path, so edits survive backend-side path rewrites.
type FlowState struct {
	ID                string                            `json:"id" msgpack:"id"`
	Mode              FlowMode                          `json:"mode" msgpack:"mode"`
	CurrentStage      Stage                             `json:"currentStage" msgpack:"currentStage"`
	Files             []UploadedFileInfo                `json:"files" msgpack:"files"`
	SelectedFileIndex int                               `json:"selectedFileIndex" msgpack:"selectedFileIndex"`
	HeaderSelections  map[string]HeaderSelection        `json:"headerSelections" msgpack:"headerSelections"`
	ColumnEdits       map[string][]ColumnNameEdit       `json:"columnEdits" msgpack:"columnEdits"`
	TypeSelections    map[string][]DataTypeSelection    `json:"typeSelections" msgpack:"typeSelections"`
	MissingStrategies map[string][]MissingValueStrategy `json:"missingStrategies" msgpack:"missingStrategies"`
	Metadata          map[string]string                 `json:"metadata" msgpack:"metadata"`
	CreatedAt         time.Time                         `json:"createdAt" msgpack:"createdAt"`
	UpdatedAt         time.Time                         `json:"updatedAt" msgpack:"updatedAt"`
}

// NewFlowState creates a flow positioned at the first stage of its mode.
func NewFlowState(id string, mode FlowMode) *FlowState {
	now := time.Now()
	return &FlowState{
		ID:                id,
		Mode:              mode,
		CurrentStage:      StageSequence(mode)[0],
		Files:             make([]UploadedFileInfo, 0),
		SelectedFileIndex: 0,
		HeaderSelections:  make(map[string]HeaderSelection),
		ColumnEdits:       make(map[string][]ColumnNameEdit),
		TypeSelections:    make(map[string][]DataTypeSelection),
		MissingStrategies: make(map[string][]MissingValueStrategy),
		Metadata:          make(map[string]string),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// SelectedFile returns the file the flow is currently operating on.
func (s *FlowState) SelectedFile() (UploadedFileInfo, bool) {
	if s.SelectedFileIndex < 0 || s.SelectedFileIndex >= len(s.Files) {
		return UploadedFileInfo{}, false
	}
	return s.Files[s.SelectedFileIndex], true
}

// Clone returns a deep copy usable as a read-only projection.
func (s *FlowState) Clone() *FlowState {
	c := *s
	c.Files = append([]UploadedFileInfo(nil), s.Files...)
	for i := range c.Files {
		c.Files[i].Sheets = append([]SheetInfo(nil), s.Files[i].Sheets...)
	}
	c.HeaderSelections = make(map[string]HeaderSelection, len(s.HeaderSelections))
	for k, v := range s.HeaderSelections {
		c.HeaderSelections[k] = v
	}
	c.ColumnEdits = make(map[string][]ColumnNameEdit, len(s.ColumnEdits))
	for k, v := range s.ColumnEdits {
		c.ColumnEdits[k] = append([]ColumnNameEdit(nil), v...)
	}
	c.TypeSelections = make(map[string][]DataTypeSelection, len(s.TypeSelections))
	for k, v := range s.TypeSelections {
		c.TypeSelections[k] = append([]DataTypeSelection(nil), v...)
	}
	c.MissingStrategies = make(map[string][]MissingValueStrategy, len(s.MissingStrategies))
	for k, v := range s.MissingStrategies {
		c.MissingStrategies[k] = append([]MissingValueStrategy(nil), v...)
	}
	c.Metadata = make(map[string]string, len(s.Metadata))
	for k, v := range s.Metadata {
		c.Metadata[k] = v
	}
	return &c
}
