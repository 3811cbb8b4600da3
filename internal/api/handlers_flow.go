// handlers_flow.go - Flow lifecycle, navigation and edit-stage commands
package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/dataprimer/backend/internal/flow"
	"github.com/dataprimer/backend/internal/models"
)

// reservedColumnNames are names the downstream pipeline claims for itself;
// an edit that produces one is rejected before any backend call.
var reservedColumnNames = map[string]bool{
	"variable": true,
	"value":    true,
	"index":    true,
}

// HandleCreateFlow starts a new wizard flow.
// POST /api/flows  {mode, datasetName?, datasetPath?}
func (h *Handler) HandleCreateFlow(c echo.Context) error {
	var req struct {
		Mode        string `json:"mode"`
		DatasetName string `json:"datasetName"`
		DatasetPath string `json:"datasetPath"`
	}
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.Mode == "" {
		req.Mode = string(models.FlowModeNewUpload)
	}

	st, err := h.flows.CreateFlow(models.FlowMode(req.Mode), req.DatasetName, req.DatasetPath)
	if err != nil {
		return NewBadRequestError("cannot create flow", err)
	}
	return c.JSON(http.StatusCreated, st)
}

// HandleResumeFlow rehydrates a flow from its persisted snapshot.
// POST /api/flows/:id/resume
func (h *Handler) HandleResumeFlow(c echo.Context) error {
	id := c.Param("id")
	if st, ok := h.flows.GetFlow(id); ok {
		return c.JSON(http.StatusOK, st)
	}

	snapshot, err := h.store.Load(id)
	if err != nil {
		return NewNotFoundError("flow", id)
	}
	st, err := h.flows.ResumeFlow(snapshot)
	if err != nil {
		return NewInternalError("cannot resume flow", err)
	}
	h.logger.Info("flow resumed from snapshot", zap.String("flowID", id), zap.String("stage", string(st.CurrentStage)))
	return c.JSON(http.StatusOK, st)
}

// HandleGetFlow returns the current flow state.
// GET /api/flows/:id  (Accept: application/x-msgpack for the binary variant)
func (h *Handler) HandleGetFlow(c echo.Context) error {
	st, ok := h.flows.GetFlow(c.Param("id"))
	if !ok {
		return NewNotFoundError("flow", c.Param("id"))
	}

	if strings.Contains(c.Request().Header.Get("Accept"), "application/x-msgpack") {
		data, err := msgpack.Marshal(st)
		if err != nil {
			return NewInternalError("failed to encode flow state", err)
		}
		return c.Blob(http.StatusOK, "application/x-msgpack", data)
	}
	return c.JSON(http.StatusOK, st)
}

// HandleListFlows returns recent persisted flows for the resume picker.
// GET /api/flows
func (h *Handler) HandleListFlows(c echo.Context) error {
	flows, err := h.store.List(20)
	if err != nil {
		return NewInternalError("failed to list flows", err)
	}
	return c.JSON(http.StatusOK, flows)
}

// HandleDeleteFlow removes a flow and its snapshot.
// DELETE /api/flows/:id
func (h *Handler) HandleDeleteFlow(c echo.Context) error {
	if !h.cfg.Security.AllowFlowDeletion {
		return NewConflictError("flow deletion is disabled")
	}
	id := c.Param("id")
	h.flows.DeleteFlow(id)
	h.syncer.Forget(id)
	if err := h.store.Delete(id); err != nil {
		return NewInternalError("failed to delete snapshot", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleKeepAlive refreshes the flow's eviction clock.
// POST /api/flows/:id/keep-alive
func (h *Handler) HandleKeepAlive(c echo.Context) error {
	if !h.flows.Touch(c.Param("id")) {
		return NewNotFoundError("flow", c.Param("id"))
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// HandleNavigate moves the flow through its stage sequence.
// POST /api/flows/:id/navigate  {action: next|previous|goto|restart, stage?}
func (h *Handler) HandleNavigate(c echo.Context) error {
	id := c.Param("id")
	var req struct {
		Action string `json:"action"`
		Stage  string `json:"stage"`
	}
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	var err error
	switch req.Action {
	case "next":
		err = h.flows.Next(id)
	case "previous":
		err = h.flows.Previous(id)
	case "goto":
		if req.Stage == "" {
			return NewValidationError("stage")
		}
		err = h.flows.GoTo(id, models.Stage(req.Stage))
	case "restart":
		err = h.flows.Restart(id)
	default:
		return NewValidationError("action")
	}
	if err != nil {
		return NewBadRequestError("navigation failed", err)
	}

	st, _ := h.flows.GetFlow(id)
	return c.JSON(http.StatusOK, st)
}

// HandleSelectFile switches the flow's working file.
// POST /api/flows/:id/select-file  {index}
func (h *Handler) HandleSelectFile(c echo.Context) error {
	var req struct {
		Index int `json:"index"`
	}
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := h.flows.SelectFile(c.Param("id"), req.Index); err != nil {
		return NewBadRequestError("cannot select file", err)
	}
	st, _ := h.flows.GetFlow(c.Param("id"))
	return c.JSON(http.StatusOK, st)
}

// HandleSelectSheet picks the active sheet of an Excel file.
// POST /api/flows/:id/select-sheet  {fileName, sheet}
func (h *Handler) HandleSelectSheet(c echo.Context) error {
	var req struct {
		FileName string `json:"fileName"`
		Sheet    string `json:"sheet"`
	}
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.FileName == "" {
		return NewValidationError("fileName")
	}
	if err := h.flows.SelectSheet(c.Param("id"), req.FileName, req.Sheet); err != nil {
		return NewBadRequestError("cannot select sheet", err)
	}
	st, _ := h.flows.GetFlow(c.Param("id"))
	return c.JSON(http.StatusOK, st)
}

// HandleApplyHeader records the header choice and asks the compute backend
// to re-slice the stored file. The backend returns a new object path, which
// replaces the file's path while keeping every recorded edit (edits are
// keyed by the original file name).
// POST /api/flows/:id/header  {fileName, headerRowIndex, headerRowCount, noHeader}
func (h *Handler) HandleApplyHeader(c echo.Context) error {
	id := c.Param("id")
	var req struct {
		FileName       string `json:"fileName"`
		HeaderRowIndex int    `json:"headerRowIndex"`
		HeaderRowCount int    `json:"headerRowCount"`
		NoHeader       bool   `json:"noHeader"`
	}
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.FileName == "" {
		return NewValidationError("fileName")
	}

	st, ok := h.flows.GetFlow(id)
	if !ok {
		return NewNotFoundError("flow", id)
	}
	path := ""
	for _, f := range st.Files {
		if f.Name == req.FileName {
			path = f.Path
		}
	}
	if path == "" {
		return NewValidationError("fileName")
	}

	sel := models.HeaderSelection{
		HeaderRowIndex: req.HeaderRowIndex,
		HeaderRowCount: req.HeaderRowCount,
		NoHeader:       req.NoHeader,
	}
	if err := h.flows.ApplyHeaderSelection(id, req.FileName, sel); err != nil {
		return NewBadRequestError("cannot record header selection", err)
	}

	if !req.NoHeader {
		newPath, err := h.compute.ApplyHeaderSelection(c.Request().Context(), path, req.HeaderRowIndex, req.HeaderRowCount)
		if err != nil {
			return NewUpstreamError("header selection", err)
		}
		if err := h.flows.SetFilePath(id, req.FileName, newPath); err != nil {
			return NewInternalError("cannot update file path", err)
		}
	}

	st, _ = h.flows.GetFlow(id)
	return c.JSON(http.StatusOK, st)
}

// HandleColumnEdits stores rename/drop decisions for the selected file.
// Duplicate edited names among kept columns and reserved names are rejected
// before anything is recorded.
// PUT /api/flows/:id/column-edits  {fileName, edits: [...]}
func (h *Handler) HandleColumnEdits(c echo.Context) error {
	var req struct {
		FileName string                  `json:"fileName"`
		Edits    []models.ColumnNameEdit `json:"edits"`
	}
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.FileName == "" {
		return NewValidationError("fileName")
	}
	if err := validateColumnEdits(req.Edits); err != nil {
		return err
	}
	if err := h.flows.ApplyColumnEdits(c.Param("id"), req.FileName, req.Edits); err != nil {
		return NewBadRequestError("cannot record column edits", err)
	}
	st, _ := h.flows.GetFlow(c.Param("id"))
	return c.JSON(http.StatusOK, st)
}

func validateColumnEdits(edits []models.ColumnNameEdit) error {
	seen := make(map[string]string, len(edits))
	for _, e := range edits {
		if !e.Keep {
			continue
		}
		name := e.EditedName
		if name == "" {
			name = e.OriginalName
		}
		if name == "" {
			return NewValidationError("editedName")
		}
		if reservedColumnNames[strings.ToLower(name)] {
			return NewConflictError(fmt.Sprintf("column name %q is reserved", name))
		}
		if prev, dup := seen[name]; dup {
			return NewConflictError(fmt.Sprintf("columns %q and %q map to the same name %q", prev, e.OriginalName, name))
		}
		seen[name] = e.OriginalName
	}
	return nil
}

// HandleTypeSelections stores dtype decisions for the selected file.
// PUT /api/flows/:id/type-selections  {fileName, selections: [...]}
func (h *Handler) HandleTypeSelections(c echo.Context) error {
	var req struct {
		FileName   string                     `json:"fileName"`
		Selections []models.DataTypeSelection `json:"selections"`
	}
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.FileName == "" {
		return NewValidationError("fileName")
	}
	if err := h.flows.ApplyTypeSelections(c.Param("id"), req.FileName, req.Selections); err != nil {
		return NewBadRequestError("cannot record type selections", err)
	}
	st, _ := h.flows.GetFlow(c.Param("id"))
	return c.JSON(http.StatusOK, st)
}

// HandleMissingStrategies stores missing-value decisions for the selected file.
// PUT /api/flows/:id/missing-strategies  {fileName, strategies: [...]}
func (h *Handler) HandleMissingStrategies(c echo.Context) error {
	var req struct {
		FileName   string                        `json:"fileName"`
		Strategies []models.MissingValueStrategy `json:"strategies"`
	}
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.FileName == "" {
		return NewValidationError("fileName")
	}
	if err := h.flows.ApplyMissingStrategies(c.Param("id"), req.FileName, req.Strategies); err != nil {
		return NewBadRequestError("cannot record missing strategies", err)
	}
	st, _ := h.flows.GetFlow(c.Param("id"))
	return c.JSON(http.StatusOK, st)
}

// HandleContinue applies the accumulated edits to the stored dataframe and
// advances past the missing-values stage. The plan is the split form: drops,
// renames, type changes and missing strategies applied in one backend call.
// POST /api/flows/:id/continue
func (h *Handler) HandleContinue(c echo.Context) error {
	id := c.Param("id")
	st, ok := h.flows.GetFlow(id)
	if !ok {
		return NewNotFoundError("flow", id)
	}

	plan, err := flow.BuildPlan(st)
	if err != nil {
		return NewValidationError("selectedFile")
	}

	if !plan.Empty() {
		file, _ := st.SelectedFile()
		if err := h.compute.ApplyTransformations(c.Request().Context(), file.Path, plan); err != nil {
			return NewUpstreamError("apply transformations", err)
		}
	}

	if err := h.flows.Next(id); err != nil {
		return NewBadRequestError("navigation failed", err)
	}
	st, _ = h.flows.GetFlow(id)
	return c.JSON(http.StatusOK, st)
}

// HandleFinalize runs the closing sequence: per-column instruction list to
// the compute backend, primed-file registration, classifier config save.
// POST /api/flows/:id/finalize  {datasetName}
func (h *Handler) HandleFinalize(c echo.Context) error {
	id := c.Param("id")
	var req struct {
		DatasetName string `json:"datasetName"`
	}
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.DatasetName == "" {
		return NewValidationError("datasetName")
	}

	st, ok := h.flows.GetFlow(id)
	if !ok {
		return NewNotFoundError("flow", id)
	}
	file, ok := st.SelectedFile()
	if !ok || file.Path == "" {
		return NewValidationError("selectedFile")
	}

	ctx := c.Request().Context()

	instructions, err := flow.BuildInstructions(st)
	if err != nil {
		return NewValidationError("selectedFile")
	}
	if len(instructions) > 0 {
		if err := h.compute.ProcessSavedDataframe(ctx, file.Path, instructions); err != nil {
			return NewUpstreamError("process dataframe", err)
		}
	}

	finalPath, err := h.compute.FinalizePrimedFile(ctx, file.Path, req.DatasetName)
	if err != nil {
		return NewUpstreamError("finalize primed file", err)
	}

	classifierCfg, err := flow.BuildClassifierConfig(st)
	if err != nil {
		return NewInternalError("cannot build classifier config", err)
	}
	classifierCfg.FilePath = finalPath
	if err := h.compute.SaveClassifierConfig(ctx, classifierCfg); err != nil {
		return NewUpstreamError("save classifier config", err)
	}

	h.reshape.NotifyDatasetUpdated(ctx, finalPath)

	if err := h.flows.SetMetadata(id, "finalPath", finalPath); err != nil {
		return NewInternalError("cannot record final path", err)
	}
	if err := h.flows.GoTo(id, models.StageFinalize); err != nil {
		h.logger.Warn("finalize navigation failed", zap.String("flowID", id), zap.Error(err))
	}

	h.logger.Info("flow finalized",
		zap.String("flowID", id),
		zap.String("dataset", req.DatasetName),
		zap.String("path", finalPath))

	st, _ = h.flows.GetFlow(id)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"flow":      st,
		"finalPath": finalPath,
	})
}
