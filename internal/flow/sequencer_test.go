package flow

import (
	"testing"

	"github.com/dataprimer/backend/internal/models"
)

func TestNextStageWalksFullChain(t *testing.T) {
	st := models.NewFlowState("f1", models.FlowModeNewUpload)

	want := []models.Stage{
		models.StageUpload, models.StageHeaderSelect, models.StageColumnNames,
		models.StageDataTypes, models.StageMissingValues, models.StagePreview,
		models.StageFinalize,
	}
	for _, stage := range want {
		if !NextStage(st) {
			t.Fatalf("NextStage stopped early before %s", stage)
		}
		if st.CurrentStage != stage {
			t.Fatalf("expected stage %s, got %s", stage, st.CurrentStage)
		}
	}

	// terminal stage: no-op
	if NextStage(st) {
		t.Error("NextStage from terminal stage should be a no-op")
	}
	if st.CurrentStage != models.StageFinalize {
		t.Errorf("stage moved past terminal: %s", st.CurrentStage)
	}
}

func TestPreviousStageBoundedAtStart(t *testing.T) {
	st := models.NewFlowState("f1", models.FlowModeNewUpload)
	if PreviousStage(st) {
		t.Error("PreviousStage from initial stage should be a no-op")
	}
	if st.CurrentStage != models.StageWelcome {
		t.Errorf("stage moved before initial: %s", st.CurrentStage)
	}

	NextStage(st)
	if !PreviousStage(st) {
		t.Error("PreviousStage should move back from the second stage")
	}
	if st.CurrentStage != models.StageWelcome {
		t.Errorf("expected welcome stage, got %s", st.CurrentStage)
	}
}

func TestExistingDatasetSkipsUpload(t *testing.T) {
	st := models.NewFlowState("f1", models.FlowModeExistingDataset)
	if !NextStage(st) {
		t.Fatal("NextStage failed")
	}
	if st.CurrentStage != models.StageHeaderSelect {
		t.Errorf("existing-dataset flow should skip upload, got %s", st.CurrentStage)
	}
	if err := GoToStage(st, models.StageUpload); err == nil {
		t.Error("upload stage should be rejected in existing-dataset mode")
	}
}

func TestGoToStage(t *testing.T) {
	st := models.NewFlowState("f1", models.FlowModeNewUpload)
	if err := GoToStage(st, models.StagePreview); err != nil {
		t.Fatalf("GoToStage failed: %v", err)
	}
	if st.CurrentStage != models.StagePreview {
		t.Errorf("expected preview stage, got %s", st.CurrentStage)
	}
	if err := GoToStage(st, models.Stage("U99")); err == nil {
		t.Error("unknown stage should be rejected")
	}
}

func TestRestartResetsEverything(t *testing.T) {
	st := models.NewFlowState("f1", models.FlowModeNewUpload)
	st.Files = append(st.Files, models.UploadedFileInfo{Name: "a.csv", Path: "obj/a"})
	st.HeaderSelections["a.csv"] = models.HeaderSelection{HeaderRowIndex: 2}
	st.ColumnEdits["a.csv"] = []models.ColumnNameEdit{{OriginalName: "x", EditedName: "y", Keep: true}}
	GoToStage(st, models.StageDataTypes)

	Restart(st)

	if st.CurrentStage != models.StageWelcome {
		t.Errorf("restart should return to initial stage, got %s", st.CurrentStage)
	}
	if len(st.Files) != 0 {
		t.Errorf("restart should clear files, got %d", len(st.Files))
	}
	if len(st.HeaderSelections) != 0 || len(st.ColumnEdits) != 0 {
		t.Error("restart should clear edit maps")
	}
	if st.ID != "f1" {
		t.Errorf("restart must keep the flow id, got %s", st.ID)
	}
}
