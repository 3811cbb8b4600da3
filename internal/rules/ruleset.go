// Package rules holds the consolidated suggestion heuristics: column-name
// cleaning, dtype mapping, identifier/measure role classification, and the
// multi-row header look-ahead. All call sites (suggestion endpoints,
// instruction builder, classifier save) resolve through one versioned
// ruleset so the copies cannot drift.
package rules

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/dataprimer/backend/internal/models"
)

// Ruleset is the versioned classification rule value. Keyword matches are
// containment checks against the lowercased column name; identifier
// keywords take precedence over measure keywords.
type Ruleset struct {
	Version            string   `json:"version" yaml:"version"`
	IdentifierKeywords []string `json:"identifierKeywords" yaml:"identifier_keywords"`
	MeasureKeywords    []string `json:"measureKeywords" yaml:"measure_keywords"`
}

// Default returns the built-in "v1" ruleset.
func Default() *Ruleset {
	return &Ruleset{
		Version: "v1",
		IdentifierKeywords: []string{
			"id", "code", "key", "name", "date", "month", "year", "week",
			"region", "country", "state", "city", "zone", "territory",
			"category", "type", "segment", "channel", "market", "brand",
			"product", "sku", "store", "customer", "account",
		},
		MeasureKeywords: []string{
			"sales", "revenue", "price", "cost", "profit", "amount",
			"qty", "quantity", "volume", "units", "value", "spend",
			"margin", "discount", "tax", "total",
		},
	}
}

// Load reads a yaml ruleset and validates it.
func Load(r io.Reader) (*Ruleset, error) {
	var rs Ruleset
	if err := yaml.NewDecoder(r).Decode(&rs); err != nil {
		return nil, fmt.Errorf("decoding ruleset: %w", err)
	}
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return &rs, nil
}

// Validate checks the ruleset is usable.
func (rs *Ruleset) Validate() error {
	if rs.Version == "" {
		return fmt.Errorf("ruleset version is required")
	}
	if len(rs.IdentifierKeywords) == 0 {
		return fmt.Errorf("ruleset has no identifier keywords")
	}
	if len(rs.MeasureKeywords) == 0 {
		return fmt.Errorf("ruleset has no measure keywords")
	}
	return nil
}

// ClassifyRole resolves a column's role in two tiers: keyword containment
// over the lowercased name (identifiers first), then a dtype fallback
// (numeric means measure, everything else identifier). dtype may be either
// a raw backend dtype or an already-mapped frontend type.
func (rs *Ruleset) ClassifyRole(columnName, dtype string) models.ColumnRole {
	lower := strings.ToLower(columnName)
	for _, kw := range rs.IdentifierKeywords {
		if strings.Contains(lower, kw) {
			return models.RoleIdentifier
		}
	}
	for _, kw := range rs.MeasureKeywords {
		if strings.Contains(lower, kw) {
			return models.RoleMeasure
		}
	}
	if IsNumericType(MapDtype(dtype)) {
		return models.RoleMeasure
	}
	return models.RoleIdentifier
}

// Registry is the process-wide holder of the active ruleset. The ruleset is
// swappable at runtime through the config endpoints.
type Registry struct {
	mu sync.RWMutex
	rs *Ruleset
}

// NewRegistry creates a registry seeded with the given ruleset, or the
// default when nil.
func NewRegistry(rs *Ruleset) *Registry {
	if rs == nil {
		rs = Default()
	}
	return &Registry{rs: rs}
}

// Active returns the current ruleset.
func (r *Registry) Active() *Ruleset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rs
}

// Swap installs a new ruleset after validation.
func (r *Registry) Swap(rs *Ruleset) error {
	if err := rs.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rs = rs
	return nil
}
