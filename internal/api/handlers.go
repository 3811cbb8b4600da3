// handlers.go - HTTP handler dependencies and health endpoint
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/dataprimer/backend/internal/config"
	"github.com/dataprimer/backend/internal/flow"
	"github.com/dataprimer/backend/internal/persist"
	"github.com/dataprimer/backend/internal/rules"
	"github.com/dataprimer/backend/internal/services"
	"github.com/dataprimer/backend/internal/unpivot"
)

// Handler holds the dependencies shared by all route handlers.
type Handler struct {
	cfg      *config.AppConfig
	flows    *flow.Manager
	syncer   *persist.Syncer
	store    persist.Store
	compute  *services.Client
	reshape  *unpivot.Client
	rulesets *rules.Registry
	progress *ProgressHub
	logger   *zap.Logger
}

// NewHandler wires the handler dependencies.
func NewHandler(cfg *config.AppConfig, flows *flow.Manager, syncer *persist.Syncer, store persist.Store, compute *services.Client, reshape *unpivot.Client, rulesets *rules.Registry, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		cfg:      cfg,
		flows:    flows,
		syncer:   syncer,
		store:    store,
		compute:  compute,
		reshape:  reshape,
		rulesets: rulesets,
		progress: NewProgressHub(logger),
		logger:   logger,
	}
}

// HealthCheck reports service liveness.
// GET /api/health
func (h *Handler) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"service":   "dataprimer-backend",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
