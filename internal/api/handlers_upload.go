// handlers_upload.go - Multipart passthrough upload to the compute backend
package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/dataprimer/backend/internal/services"
)

func (h *Handler) allowedFileType(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range strings.Split(h.cfg.Security.AllowedFileTypes, ",") {
		if ext == strings.TrimSpace(allowed) {
			return true
		}
	}
	return false
}

// progressPublisher adapts upload byte counts to the flow's WebSocket
// progress stream.
func (h *Handler) progressPublisher(flowID string) services.ProgressFunc {
	return func(fileName string, sent, total int64) {
		pct := 0.0
		if total > 0 {
			pct = float64(sent) / float64(total) * 100
		}
		h.progress.Publish(flowID, ProgressMessage{
			Type:     MsgTypeProgress,
			FileName: fileName,
			Sent:     sent,
			Total:    total,
			Progress: pct,
		})
	}
}

// HandleUploadFiles streams the request's multipart files straight through
// to the compute backend without buffering them locally. Files are pushed
// in parallel and the response reports every file's outcome (settle-all):
// one failed file never hides the others' results.
// POST /api/flows/:id/files  (multipart/form-data, field "files")
func (h *Handler) HandleUploadFiles(c echo.Context) error {
	flowID := c.Param("id")
	if _, ok := h.flows.GetFlow(flowID); !ok {
		return NewNotFoundError("flow", flowID)
	}

	form, err := c.MultipartForm()
	if err != nil {
		return NewBadRequestError("invalid multipart form", err)
	}
	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		return NewValidationError("files")
	}

	specs := make([]services.UploadSpec, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		if !h.allowedFileType(fh.Filename) {
			return NewBadRequestError(fmt.Sprintf("file type not allowed: %s", fh.Filename), nil)
		}
		src, err := fh.Open()
		if err != nil {
			return NewInternalError("cannot read uploaded file", err)
		}
		defer src.Close()
		specs = append(specs, services.UploadSpec{
			Name:   fh.Filename,
			Size:   fh.Size,
			Reader: src,
		})
	}

	for _, spec := range specs {
		h.progress.Publish(flowID, ProgressMessage{
			Type:     MsgTypeInit,
			FileName: spec.Name,
			Total:    spec.Size,
		})
	}

	results := h.compute.UploadAll(c.Request().Context(), specs, h.progressPublisher(flowID))

	type fileOutcome struct {
		Name  string `json:"name"`
		OK    bool   `json:"ok"`
		Error string `json:"error,omitempty"`
	}
	outcomes := make([]fileOutcome, 0, len(results))
	succeeded, failed := 0, 0
	for _, res := range results {
		out := fileOutcome{Name: res.Name, OK: res.Err == nil}
		if res.Err != nil {
			failed++
			out.Error = res.Err.Error()
			h.progress.Publish(flowID, ProgressMessage{
				Type:     MsgTypeError,
				FileName: res.Name,
				Message:  res.Err.Error(),
			})
			h.logger.Warn("file upload failed",
				zap.String("flowID", flowID),
				zap.String("file", res.Name),
				zap.Error(res.Err))
			outcomes = append(outcomes, out)
			continue
		}
		succeeded++
		if err := h.flows.AddFiles(flowID, *res.File); err != nil {
			return NewInternalError("cannot record uploaded file", err)
		}
		h.progress.Publish(flowID, ProgressMessage{
			Type:     MsgTypeComplete,
			FileName: res.Name,
			Sent:     res.File.Size,
			Total:    res.File.Size,
			Progress: 100,
		})
		outcomes = append(outcomes, out)
	}

	st, _ := h.flows.GetFlow(flowID)

	status := http.StatusCreated
	if succeeded == 0 {
		status = http.StatusBadGateway
	}
	return c.JSON(status, map[string]interface{}{
		"succeeded": succeeded,
		"failed":    failed,
		"results":   outcomes,
		"flow":      st,
	})
}
