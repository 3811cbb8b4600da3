// handlers_unpivot.go - Unpivot (wide-to-long reshape) endpoints
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/dataprimer/backend/internal/unpivot"
)

// HandleUnpivotCompute configures the reshape atom and returns the unpivot
// preview. An expired atom is recreated transparently inside the client; a
// RESOURCE_EXPIRED response means even the recreated atom vanished and the
// caller should retry.
// POST /api/unpivot/compute  {objectPath, idColumns, valueColumns, ...}
func (h *Handler) HandleUnpivotCompute(c echo.Context) error {
	var props unpivot.Properties
	if err := c.Bind(&props); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if props.ObjectPath == "" {
		return NewValidationError("object_path")
	}
	if len(props.ValueColumns) == 0 {
		return NewValidationError("value_vars")
	}

	ctx := c.Request().Context()
	if err := h.reshape.SetProperties(ctx, props); err != nil {
		return NewUpstreamError("configure unpivot", err)
	}
	result, err := h.reshape.Compute(ctx)
	if err != nil {
		return NewUpstreamError("compute unpivot", err)
	}
	return c.JSON(http.StatusOK, result)
}

// HandleUnpivotSave persists the last computed unpivot as a named dataset.
// POST /api/unpivot/save  {datasetName}
func (h *Handler) HandleUnpivotSave(c echo.Context) error {
	var req struct {
		DatasetName string `json:"datasetName"`
	}
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.DatasetName == "" {
		return NewValidationError("datasetName")
	}

	ctx := c.Request().Context()
	path, err := h.reshape.SaveResult(ctx, req.DatasetName)
	if err != nil {
		return NewUpstreamError("save unpivot result", err)
	}

	h.reshape.NotifyDatasetUpdated(ctx, path)
	h.logger.Info("unpivot result saved", zap.String("dataset", req.DatasetName), zap.String("path", path))

	return c.JSON(http.StatusCreated, map[string]string{"path": path})
}

// HandleDatasetSchema returns the column schema of a stored dataset.
// POST /api/unpivot/schema  {objectPath}
func (h *Handler) HandleDatasetSchema(c echo.Context) error {
	var req struct {
		ObjectPath string `json:"objectPath"`
	}
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.ObjectPath == "" {
		return NewValidationError("objectPath")
	}

	columns, err := h.reshape.DatasetSchema(c.Request().Context(), req.ObjectPath)
	if err != nil {
		return NewUpstreamError("dataset schema", err)
	}
	return c.JSON(http.StatusOK, columns)
}
