// handlers_suggest.go - Heuristic suggestions backing the wizard pre-fills
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/dataprimer/backend/internal/models"
	"github.com/dataprimer/backend/internal/rules"
)

// selectedFilePath resolves the flow's working file, enforcing that it has
// already been stored by the compute backend.
func (h *Handler) selectedFilePath(flowID string) (models.UploadedFileInfo, *APIError) {
	st, ok := h.flows.GetFlow(flowID)
	if !ok {
		return models.UploadedFileInfo{}, NewNotFoundError("flow", flowID)
	}
	file, ok := st.SelectedFile()
	if !ok {
		return models.UploadedFileInfo{}, NewValidationError("selectedFile")
	}
	if file.Path == "" {
		return models.UploadedFileInfo{}, NewValidationError("filePath")
	}
	return file, nil
}

// HandlePreview returns a raw-row sample of the selected file plus the
// merged header suggestion: the backend's suggested row and confidence,
// widened by the local look-ahead into a multi-row header when the rows
// after the suggested one still look like header text.
// GET /api/flows/:id/preview?limit=100
func (h *Handler) HandlePreview(c echo.Context) error {
	file, apiErr := h.selectedFilePath(c.Param("id"))
	if apiErr != nil {
		return apiErr
	}

	limit := h.cfg.Flow.PreviewRowLimit
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	preview, err := h.compute.FilePreview(c.Request().Context(), file.Path, limit)
	if err != nil {
		return NewUpstreamError("file preview", err)
	}

	rowIndex, rowCount := rules.ExpandHeaderSuggestion(preview.Rows, preview.SuggestedHeaderRow)
	suggestion := models.HeaderSuggestion{
		RowIndex:   rowIndex,
		RowCount:   rowCount,
		Confidence: preview.Confidence,
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"rows":       preview.Rows,
		"totalRows":  preview.TotalRows,
		"suggestion": suggestion,
	})
}

// HandleSuggestNames returns a pre-filled column-name edit list: every
// stored column paired with its cleaned snake_case suggestion, marked as
// ai-suggested so the UI can show provenance. Names the cleaner would not
// change come back as user-edited identity entries.
// GET /api/flows/:id/suggest/names
func (h *Handler) HandleSuggestNames(c echo.Context) error {
	file, apiErr := h.selectedFilePath(c.Param("id"))
	if apiErr != nil {
		return apiErr
	}

	columns, err := h.compute.FileColumns(c.Request().Context(), file.Path)
	if err != nil {
		return NewUpstreamError("file columns", err)
	}

	edits := make([]models.ColumnNameEdit, 0, len(columns))
	for _, col := range columns {
		cleaned := rules.CleanColumnName(col)
		provenance := models.ProvenanceUserEdited
		if cleaned != col {
			provenance = models.ProvenanceAISuggested
		}
		edits = append(edits, models.ColumnNameEdit{
			OriginalName: col,
			EditedName:   cleaned,
			Keep:         true,
			Provenance:   provenance,
		})
	}
	return c.JSON(http.StatusOK, edits)
}

// HandleSuggestTypes returns the dtype/role badge list for the selected
// file: backend dtypes mapped to frontend type names, with roles classified
// by the active ruleset.
// GET /api/flows/:id/suggest/types
func (h *Handler) HandleSuggestTypes(c echo.Context) error {
	file, apiErr := h.selectedFilePath(c.Param("id"))
	if apiErr != nil {
		return apiErr
	}

	metadata, err := h.compute.FileMetadata(c.Request().Context(), file.Path)
	if err != nil {
		return NewUpstreamError("file metadata", err)
	}

	ruleset := h.rulesets.Active()
	selections := make([]models.DataTypeSelection, 0, len(metadata))
	for _, col := range metadata {
		mapped := rules.MapDtype(col.Dtype)
		selections = append(selections, models.DataTypeSelection{
			ColumnName:   col.Name,
			RawDtype:     col.Dtype,
			DetectedType: mapped,
			UpdateType:   mapped,
			ColumnRole:   ruleset.ClassifyRole(col.Name, col.Dtype),
		})
	}
	return c.JSON(http.StatusOK, selections)
}

// HandleRowIssues pages through the backend's structural-issue report for
// the selected file.
// GET /api/flows/:id/row-issues?page=1&pageSize=50
func (h *Handler) HandleRowIssues(c echo.Context) error {
	file, apiErr := h.selectedFilePath(c.Param("id"))
	if apiErr != nil {
		return apiErr
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.QueryParam("pageSize"))
	if pageSize < 1 {
		pageSize = 50
	}

	issues, err := h.compute.RowIssues(c.Request().Context(), file.Path, page, pageSize)
	if err != nil {
		return NewUpstreamError("row issues", err)
	}
	return c.JSON(http.StatusOK, issues)
}
