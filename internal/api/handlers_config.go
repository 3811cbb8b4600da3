// handlers_config.go - Classification ruleset endpoints
package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/dataprimer/backend/internal/rules"
)

// HandleGetRuleset returns the active classification ruleset.
// GET /api/config/classification-rules
func (h *Handler) HandleGetRuleset(c echo.Context) error {
	return c.JSON(http.StatusOK, h.rulesets.Active())
}

// HandlePutRuleset replaces the active classification ruleset and persists
// it so the next start picks it up. Role re-derivation on subsequent
// type-selection edits uses the new keywords immediately.
// PUT /api/config/classification-rules
func (h *Handler) HandlePutRuleset(c echo.Context) error {
	var rs rules.Ruleset
	if err := c.Bind(&rs); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := h.rulesets.Swap(&rs); err != nil {
		return NewBadRequestError("invalid ruleset", err)
	}

	if dir := h.cfg.Storage.RulesDirectory; dir != "" {
		if err := h.saveRuleset(&rs, dir); err != nil {
			h.logger.Warn("could not persist ruleset", zap.Error(err))
		}
	}

	return c.JSON(http.StatusOK, h.rulesets.Active())
}

func (h *Handler) saveRuleset(rs *rules.Ruleset, dir string) error {
	data, err := yaml.Marshal(rs)
	if err != nil {
		return err
	}
	tmp := filepath.Join(dir, "classification.yaml.tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, "classification.yaml"))
}
