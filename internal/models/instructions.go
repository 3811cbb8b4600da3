package models

// TypeChange is one entry of the split-form dtype map. Format is only
// carried for date/datetime targets when one was captured.
type TypeChange struct {
	Dtype  string `json:"dtype"`
	Format string `json:"format,omitempty"`
}

// StrategyChange is one entry of the split-form strategy map. Value is only
// carried for the custom strategy.
type StrategyChange struct {
	Strategy MissingStrategy `json:"strategy"`
	Value    string          `json:"value,omitempty"`
}

// TransformationPlan is the split payload shape sent when leaving the
// missing-values review stage: four parallel structures keyed by original
// column name, each containing only real deltas.
type TransformationPlan struct {
	DropColumns       []string                  `json:"drop_columns"`
	Renames           map[string]string         `json:"renames"`
	TypeChanges       map[string]TypeChange     `json:"type_changes"`
	MissingStrategies map[string]StrategyChange `json:"missing_strategies"`
}

// Empty reports whether the plan carries no work at all.
func (p *TransformationPlan) Empty() bool {
	return len(p.DropColumns) == 0 && len(p.Renames) == 0 &&
		len(p.TypeChanges) == 0 && len(p.MissingStrategies) == 0
}

// ColumnInstruction is the per-column payload shape sent at finalize time.
// DropColumn short-circuits every other field. A column with no delta from
// its original name, detected type, and no-missing-handling state produces
// no instruction at all.
type ColumnInstruction struct {
	Column          string          `json:"column"`
	DropColumn      bool            `json:"drop_column,omitempty"`
	NewName         string          `json:"new_name,omitempty"`
	Dtype           string          `json:"dtype,omitempty"`
	Format          string          `json:"format,omitempty"`
	MissingStrategy MissingStrategy `json:"missing_strategy,omitempty"`
	CustomValue     string          `json:"custom_value,omitempty"`
}

// ClassifierConfig is the identifier/measure assignment persisted through
// the classifier's save_config endpoint at finalize time. Column names are
// the final (post-rename) names of kept columns.
type ClassifierConfig struct {
	FilePath    string   `json:"file_path"`
	Identifiers []string `json:"identifiers"`
	Measures    []string `json:"measures"`
}
