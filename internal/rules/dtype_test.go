package rules

import (
	"strings"
	"testing"

	"github.com/dataprimer/backend/internal/models"
)

func TestMapDtype(t *testing.T) {
	tests := []struct {
		dtype string
		want  string
	}{
		{"int64", TypeInt},
		{"int32", TypeInt},
		{"int16", TypeInt},
		{"int8", TypeInt},
		{"int", TypeInt},
		{"integer", TypeInt},
		{"Int64", TypeInt},
		{"float64", TypeFloat},
		{"float32", TypeFloat},
		{"float16", TypeFloat},
		{"float", TypeFloat},
		{"numeric", TypeFloat},
		{"double", TypeFloat},
		{"bool", TypeBoolean},
		{"boolean", TypeBoolean},
		{"datetime64[ns]", TypeDatetime},
		{"datetime", TypeDatetime},
		{"date", TypeDate},
		{"object", TypeString},
		{"category", TypeString},
		{"", TypeString},
		{"something-else", TypeString},
	}

	for _, tt := range tests {
		if got := MapDtype(tt.dtype); got != tt.want {
			t.Errorf("MapDtype(%q) = %q, want %q", tt.dtype, got, tt.want)
		}
	}
}

func TestClassifyRole(t *testing.T) {
	rs := Default()

	tests := []struct {
		column string
		dtype  string
		want   models.ColumnRole
	}{
		// keyword match beats dtype fallback
		{"sales_q1", "object", models.RoleMeasure},
		{"sales_q1", "int64", models.RoleMeasure},
		{"customer_id", "int64", models.RoleIdentifier},
		{"customer_id", "object", models.RoleIdentifier},
		{"order_date", "datetime64[ns]", models.RoleIdentifier},
		{"unit_price", "float64", models.RoleMeasure},
		// no keyword: numeric dtype falls back to measure
		{"foo_bar", "int64", models.RoleMeasure},
		{"foo_bar", "float32", models.RoleMeasure},
		// no keyword, non-numeric: identifier
		{"foo_bar", "object", models.RoleIdentifier},
		{"foo_bar", "bool", models.RoleIdentifier},
	}

	for _, tt := range tests {
		if got := rs.ClassifyRole(tt.column, tt.dtype); got != tt.want {
			t.Errorf("ClassifyRole(%q, %q) = %q, want %q", tt.column, tt.dtype, got, tt.want)
		}
	}
}

func TestClassifyRoleIdentifierPrecedence(t *testing.T) {
	rs := Default()
	// Contains both an identifier keyword (id) and a measure keyword
	// (sales); the identifier list wins.
	if got := rs.ClassifyRole("sales_rep_id", "float64"); got != models.RoleIdentifier {
		t.Errorf("expected identifier precedence, got %q", got)
	}
}

func TestLoadRuleset(t *testing.T) {
	doc := `
version: v2
identifier_keywords: [id, code]
measure_keywords: [sales]
`
	rs, err := Load(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if rs.Version != "v2" {
		t.Errorf("expected version v2, got %q", rs.Version)
	}
	if got := rs.ClassifyRole("sales_total", "object"); got != models.RoleMeasure {
		t.Errorf("loaded ruleset classification wrong: %q", got)
	}
}

func TestLoadRulesetRejectsEmpty(t *testing.T) {
	if _, err := Load(strings.NewReader("version: v3")); err == nil {
		t.Fatal("expected validation error for empty keyword lists")
	}
}
