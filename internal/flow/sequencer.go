// Package flow owns the guided upload state machine: the per-session
// FlowState, the linear stage sequencer, the command API views mutate
// through, and the instruction builder that collapses accumulated edits
// into backend transformation payloads.
package flow

import (
	"fmt"

	"github.com/dataprimer/backend/internal/models"
)

func stageIndex(seq []models.Stage, stage models.Stage) int {
	for i, s := range seq {
		if s == stage {
			return i
		}
	}
	return -1
}

// NextStage advances the flow one stage. Past the terminal stage it is a
// no-op; the return value reports whether the stage changed.
func NextStage(st *models.FlowState) bool {
	seq := models.StageSequence(st.Mode)
	idx := stageIndex(seq, st.CurrentStage)
	if idx < 0 || idx >= len(seq)-1 {
		return false
	}
	st.CurrentStage = seq[idx+1]
	return true
}

// PreviousStage moves the flow one stage back, a no-op at the first stage.
func PreviousStage(st *models.FlowState) bool {
	seq := models.StageSequence(st.Mode)
	idx := stageIndex(seq, st.CurrentStage)
	if idx <= 0 {
		return false
	}
	st.CurrentStage = seq[idx-1]
	return true
}

// GoToStage jumps to an absolute stage, used for resuming and deep links.
// Stages outside the flow's mode (the upload stage in existing-dataset
// mode) are rejected.
func GoToStage(st *models.FlowState, stage models.Stage) error {
	seq := models.StageSequence(st.Mode)
	if stageIndex(seq, stage) < 0 {
		return fmt.Errorf("stage %q not part of %s flow", stage, st.Mode)
	}
	st.CurrentStage = stage
	return nil
}

// Restart resets the flow to its initial stage with empty files and edit
// maps, keeping the flow id and mode.
func Restart(st *models.FlowState) {
	fresh := models.NewFlowState(st.ID, st.Mode)
	fresh.CreatedAt = st.CreatedAt
	*st = *fresh
}
