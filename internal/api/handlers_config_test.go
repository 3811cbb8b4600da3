package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataprimer/backend/internal/models"
	"github.com/dataprimer/backend/internal/rules"
)

func TestGetRuleset(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/config/classification-rules", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var rs rules.Ruleset
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rs))
	assert.Equal(t, "v1", rs.Version)
	assert.Contains(t, rs.MeasureKeywords, "revenue")
}

func TestPutRulesetSwapsClassification(t *testing.T) {
	env := newTestEnv(t)
	env.h.cfg.Storage.RulesDirectory = t.TempDir()

	rec := env.do(t, http.MethodPut, "/api/config/classification-rules", rules.Ruleset{
		Version:            "v2",
		IdentifierKeywords: []string{"bucket"},
		MeasureKeywords:    []string{"score"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	active := env.h.rulesets.Active()
	assert.Equal(t, "v2", active.Version)
	assert.Equal(t, models.RoleMeasure, active.ClassifyRole("risk_score", "object"))
	assert.Equal(t, models.RoleIdentifier, active.ClassifyRole("bucket_name", "object"))
}

func TestPutRulesetRejectsEmpty(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/api/config/classification-rules", rules.Ruleset{Version: "v2"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// active ruleset unchanged
	assert.Equal(t, "v1", env.h.rulesets.Active().Version)
}
