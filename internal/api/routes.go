// routes.go - Route registration
package api

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers all API routes with the Echo instance.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	e.GET("/health", h.HealthCheck)
	e.GET("/api/health", h.HealthCheck)

	flows := e.Group("/api/flows")
	flows.POST("", h.HandleCreateFlow)
	flows.GET("", h.HandleListFlows)
	flows.GET("/:id", h.HandleGetFlow)
	flows.DELETE("/:id", h.HandleDeleteFlow)
	flows.POST("/:id/resume", h.HandleResumeFlow)
	flows.POST("/:id/keep-alive", h.HandleKeepAlive)
	flows.POST("/:id/navigate", h.HandleNavigate)

	flows.POST("/:id/files", h.HandleUploadFiles)
	flows.GET("/:id/progress", h.progress.HandleProgressSocket)
	flows.POST("/:id/select-file", h.HandleSelectFile)
	flows.POST("/:id/select-sheet", h.HandleSelectSheet)

	flows.GET("/:id/preview", h.HandlePreview)
	flows.GET("/:id/suggest/names", h.HandleSuggestNames)
	flows.GET("/:id/suggest/types", h.HandleSuggestTypes)
	flows.GET("/:id/row-issues", h.HandleRowIssues)

	flows.POST("/:id/header", h.HandleApplyHeader)
	flows.PUT("/:id/column-edits", h.HandleColumnEdits)
	flows.PUT("/:id/type-selections", h.HandleTypeSelections)
	flows.PUT("/:id/missing-strategies", h.HandleMissingStrategies)
	flows.POST("/:id/continue", h.HandleContinue)
	flows.POST("/:id/finalize", h.HandleFinalize)

	pivot := e.Group("/api/unpivot")
	pivot.POST("/compute", h.HandleUnpivotCompute)
	pivot.POST("/save", h.HandleUnpivotSave)
	pivot.POST("/schema", h.HandleDatasetSchema)

	cfg := e.Group("/api/config")
	cfg.GET("/classification-rules", h.HandleGetRuleset)
	cfg.PUT("/classification-rules", h.HandlePutRuleset)
}
