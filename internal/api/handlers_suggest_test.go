package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataprimer/backend/internal/models"
	"github.com/dataprimer/backend/internal/testutil"
)

// seedSalesFile registers a messy sales CSV with the mock backend and
// uploads it into a fresh flow.
func seedSalesFile(t *testing.T, env *testEnv) *models.FlowState {
	t.Helper()
	env.mock.AddFile(&testutil.StoredFile{
		Path: "Sales Data.csv",
		Rows: [][]string{
			{"Quarterly Report", "", ""},
			{"Region", "Sales  Revenue", "Order ID"},
			{"north", "100", "A-1"},
			{"south", "200", "A-2"},
			{"east", "300", "A-3"},
		},
		Columns: []models.ColumnMetadata{
			{Name: "Region", Dtype: "object", SampleValues: []string{"north", "south"}},
			{Name: "Sales  Revenue", Dtype: "int64", SampleValues: []string{"100", "200", "300"}},
			{Name: "Order ID", Dtype: "object", SampleValues: []string{"A-1", "A-2"}},
		},
		SuggestedHeaderRow: 1,
		Confidence:         models.ConfidenceHigh,
	})

	st := env.createFlow(t)
	rec := env.uploadFiles(t, st.ID, map[string]string{"Sales Data.csv": "raw bytes"})
	require.Equal(t, http.StatusCreated, rec.Code)

	got, ok := env.flows.GetFlow(st.ID)
	require.True(t, ok)
	require.Len(t, got.Files, 1)
	return got
}

func TestPreviewMergesHeaderSuggestion(t *testing.T) {
	env := newTestEnv(t)
	st := seedSalesFile(t, env)

	rec := env.do(t, http.MethodGet, "/api/flows/"+st.ID+"/preview", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Rows       [][]string              `json:"rows"`
		Suggestion models.HeaderSuggestion `json:"suggestion"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Rows, 5)
	assert.Equal(t, 1, resp.Suggestion.RowIndex)
	assert.Equal(t, 1, resp.Suggestion.RowCount)
	assert.Equal(t, models.ConfidenceHigh, resp.Suggestion.Confidence)
}

func TestPreviewExpandsMultiRowHeader(t *testing.T) {
	env := newTestEnv(t)
	env.mock.AddFile(&testutil.StoredFile{
		Path: "banded.csv",
		Rows: [][]string{
			{"Region", "Quarter", "Metric"},
			{"", "Q1", "Revenue"},
			{"north", "100", "55"},
			{"south", "200", "66"},
		},
		SuggestedHeaderRow: 0,
		Confidence:         models.ConfidenceMedium,
	})
	st := env.createFlow(t)
	rec := env.uploadFiles(t, st.ID, map[string]string{"banded.csv": "raw"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/flows/"+st.ID+"/preview", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Suggestion models.HeaderSuggestion `json:"suggestion"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Suggestion.RowIndex)
	assert.Equal(t, 2, resp.Suggestion.RowCount)
}

func TestSuggestNamesWithoutFile(t *testing.T) {
	env := newTestEnv(t)
	st := env.createFlow(t)

	rec := env.do(t, http.MethodGet, "/api/flows/"+st.ID+"/suggest/names", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
}

// The full wizard pass: a messy sales file comes out the other end with a
// snake_case column, an int dtype, and a measure role.
func TestGuidedUploadEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	st := seedSalesFile(t, env)
	flowID := st.ID
	originalPath := st.Files[0].Path

	// Header stage: confirm the suggested header row.
	rec := env.do(t, http.MethodPost, "/api/flows/"+flowID+"/header", map[string]interface{}{
		"fileName":       "Sales Data.csv",
		"headerRowIndex": 1,
		"headerRowCount": 1,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var afterHeader models.FlowState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &afterHeader))
	assert.Equal(t, originalPath+".processed", afterHeader.Files[0].Path)
	assert.True(t, afterHeader.Files[0].Processed)

	// Name stage: cleaned suggestions come back ai-suggested.
	rec = env.do(t, http.MethodGet, "/api/flows/"+flowID+"/suggest/names", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var edits []models.ColumnNameEdit
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &edits))
	require.Len(t, edits, 3)

	byName := make(map[string]models.ColumnNameEdit)
	for _, e := range edits {
		byName[e.OriginalName] = e
	}
	sales := byName["Sales  Revenue"]
	assert.Equal(t, "sales_revenue", sales.EditedName)
	assert.Equal(t, models.ProvenanceAISuggested, sales.Provenance)
	assert.Equal(t, "region", byName["Region"].EditedName)
	assert.Equal(t, "order_id", byName["Order ID"].EditedName)

	rec = env.do(t, http.MethodPut, "/api/flows/"+flowID+"/column-edits", map[string]interface{}{
		"fileName": "Sales Data.csv",
		"edits":    edits,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Type stage: detected dtypes map to frontend types with roles.
	rec = env.do(t, http.MethodGet, "/api/flows/"+flowID+"/suggest/types", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sels []models.DataTypeSelection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sels))
	require.Len(t, sels, 3)

	selByName := make(map[string]models.DataTypeSelection)
	for _, s := range sels {
		selByName[s.ColumnName] = s
	}
	assert.Equal(t, "int", selByName["Sales  Revenue"].DetectedType)
	assert.Equal(t, models.RoleMeasure, selByName["Sales  Revenue"].ColumnRole)
	assert.Equal(t, "string", selByName["Region"].DetectedType)
	assert.Equal(t, models.RoleIdentifier, selByName["Order ID"].ColumnRole)

	rec = env.do(t, http.MethodPut, "/api/flows/"+flowID+"/type-selections", map[string]interface{}{
		"fileName":   "Sales Data.csv",
		"selections": sels,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Leave the missing-values stage: the split plan reaches the backend.
	rec = env.do(t, http.MethodPost, "/api/flows/"+flowID+"/continue", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	processedPath := originalPath + ".processed"
	plan := env.mock.Plans[processedPath]
	require.NotNil(t, plan)
	assert.Equal(t, "sales_revenue", plan.Renames["Sales  Revenue"])
	assert.Empty(t, plan.DropColumns)
	assert.Empty(t, plan.TypeChanges) // detected == update, no delta

	// Finalize: primed file registered and classifier config saved.
	rec = env.do(t, http.MethodPost, "/api/flows/"+flowID+"/finalize", map[string]string{
		"datasetName": "quarterly_sales",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var final struct {
		FinalPath string `json:"finalPath"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &final))
	assert.Equal(t, "/datasets/quarterly_sales.parquet", final.FinalPath)

	require.Len(t, env.mock.Configs, 1)
	cfg := env.mock.Configs[0]
	assert.Equal(t, "/datasets/quarterly_sales.parquet", cfg.FilePath)
	assert.Contains(t, cfg.Measures, "sales_revenue")
	assert.Contains(t, cfg.Identifiers, "region")
	assert.Contains(t, cfg.Identifiers, "order_id")
}
