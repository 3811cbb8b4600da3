package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataprimer/backend/internal/models"
)

func stateWithFile(t *testing.T) *models.FlowState {
	t.Helper()
	st := models.NewFlowState("f1", models.FlowModeNewUpload)
	st.Files = append(st.Files, models.UploadedFileInfo{
		Name: "sales.csv",
		Path: "objects/sales-processed.csv",
	})
	return st
}

func TestBuildInstructionsDropShortCircuits(t *testing.T) {
	st := stateWithFile(t)
	// dropped column also carries rename, dtype and strategy edits; only
	// drop_column may survive
	st.ColumnEdits["sales.csv"] = []models.ColumnNameEdit{
		{OriginalName: "junk_col", EditedName: "renamed", Keep: false},
	}
	st.TypeSelections["sales.csv"] = []models.DataTypeSelection{
		{ColumnName: "junk_col", DetectedType: "string", UpdateType: "int"},
	}
	st.MissingStrategies["sales.csv"] = []models.MissingValueStrategy{
		{ColumnName: "junk_col", Strategy: models.StrategyMean},
	}

	instructions, err := BuildInstructions(st)
	require.NoError(t, err)
	require.Len(t, instructions, 1)

	inst := instructions[0]
	assert.Equal(t, "junk_col", inst.Column)
	assert.True(t, inst.DropColumn)
	assert.Empty(t, inst.NewName)
	assert.Empty(t, inst.Dtype)
	assert.Empty(t, inst.MissingStrategy)
	assert.Empty(t, inst.CustomValue)
}

func TestBuildInstructionsNoDeltaNoEntry(t *testing.T) {
	st := stateWithFile(t)
	st.ColumnEdits["sales.csv"] = []models.ColumnNameEdit{
		{OriginalName: "region", EditedName: "region", Keep: true},
	}
	st.TypeSelections["sales.csv"] = []models.DataTypeSelection{
		{ColumnName: "region", DetectedType: "string", UpdateType: "string"},
	}
	st.MissingStrategies["sales.csv"] = []models.MissingValueStrategy{
		{ColumnName: "region", Strategy: models.StrategyNone},
	}

	instructions, err := BuildInstructions(st)
	require.NoError(t, err)
	assert.Empty(t, instructions)
}

func TestBuildInstructionsCombinedDeltas(t *testing.T) {
	st := stateWithFile(t)
	st.ColumnEdits["sales.csv"] = []models.ColumnNameEdit{
		{OriginalName: "Sales  Revenue", EditedName: "sales_revenue", Keep: true},
	}
	st.TypeSelections["sales.csv"] = []models.DataTypeSelection{
		{ColumnName: "Sales  Revenue", DetectedType: "string", UpdateType: "float"},
		{ColumnName: "order_day", DetectedType: "string", UpdateType: "datetime", Format: "%Y-%m-%d"},
	}
	st.MissingStrategies["sales.csv"] = []models.MissingValueStrategy{
		{ColumnName: "Sales  Revenue", Strategy: models.StrategyCustom, Value: "0"},
	}

	instructions, err := BuildInstructions(st)
	require.NoError(t, err)
	require.Len(t, instructions, 2)

	// sorted by column name
	rev := instructions[0]
	assert.Equal(t, "Sales  Revenue", rev.Column)
	assert.Equal(t, "sales_revenue", rev.NewName)
	assert.Equal(t, "float", rev.Dtype)
	assert.Empty(t, rev.Format, "non-temporal dtype must not carry a format")
	assert.Equal(t, models.StrategyCustom, rev.MissingStrategy)
	assert.Equal(t, "0", rev.CustomValue)

	day := instructions[1]
	assert.Equal(t, "order_day", day.Column)
	assert.Equal(t, "datetime", day.Dtype)
	assert.Equal(t, "%Y-%m-%d", day.Format, "datetime change must carry the captured format")
}

func TestBuildInstructionsRequiresSelectedFile(t *testing.T) {
	st := models.NewFlowState("f1", models.FlowModeNewUpload)
	_, err := BuildInstructions(st)
	assert.Error(t, err)
}

func TestBuildPlan(t *testing.T) {
	st := stateWithFile(t)
	st.ColumnEdits["sales.csv"] = []models.ColumnNameEdit{
		{OriginalName: "drop_me", Keep: false},
		{OriginalName: "Region", EditedName: "region", Keep: true},
		{OriginalName: "stable", EditedName: "stable", Keep: true},
	}
	st.TypeSelections["sales.csv"] = []models.DataTypeSelection{
		{ColumnName: "Region", DetectedType: "string", UpdateType: "string"},
		{ColumnName: "amount", DetectedType: "string", UpdateType: "float"},
		{ColumnName: "drop_me", DetectedType: "string", UpdateType: "int"},
	}
	st.MissingStrategies["sales.csv"] = []models.MissingValueStrategy{
		{ColumnName: "amount", Strategy: models.StrategyMedian},
		{ColumnName: "stable", Strategy: models.StrategyNone},
		{ColumnName: "drop_me", Strategy: models.StrategyZero},
	}

	plan, err := BuildPlan(st)
	require.NoError(t, err)

	assert.Equal(t, []string{"drop_me"}, plan.DropColumns)
	assert.Equal(t, map[string]string{"Region": "region"}, plan.Renames)

	require.Contains(t, plan.TypeChanges, "amount")
	assert.Equal(t, "float", plan.TypeChanges["amount"].Dtype)
	assert.NotContains(t, plan.TypeChanges, "Region", "identity type change must be omitted")
	assert.NotContains(t, plan.TypeChanges, "drop_me", "dropped column must not get a type change")

	require.Contains(t, plan.MissingStrategies, "amount")
	assert.Equal(t, models.StrategyMedian, plan.MissingStrategies["amount"].Strategy)
	assert.NotContains(t, plan.MissingStrategies, "stable", "none strategy must be omitted")
	assert.NotContains(t, plan.MissingStrategies, "drop_me")
}

func TestBuildClassifierConfig(t *testing.T) {
	st := stateWithFile(t)
	st.ColumnEdits["sales.csv"] = []models.ColumnNameEdit{
		{OriginalName: "Cust ID", EditedName: "cust_id", Keep: true},
		{OriginalName: "noise", Keep: false},
	}
	st.TypeSelections["sales.csv"] = []models.DataTypeSelection{
		{ColumnName: "Cust ID", UpdateType: "string", ColumnRole: models.RoleIdentifier},
		{ColumnName: "revenue", UpdateType: "float", ColumnRole: models.RoleMeasure},
		{ColumnName: "noise", UpdateType: "int", ColumnRole: models.RoleMeasure},
	}

	cfg, err := BuildClassifierConfig(st)
	require.NoError(t, err)
	assert.Equal(t, "objects/sales-processed.csv", cfg.FilePath)
	assert.Equal(t, []string{"cust_id"}, cfg.Identifiers, "kept columns appear under final names")
	assert.Equal(t, []string{"revenue"}, cfg.Measures)
}
