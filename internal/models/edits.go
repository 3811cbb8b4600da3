package models

// Provenance records where a column-name suggestion came from.
type Provenance string

const (
	ProvenanceAISuggested     Provenance = "ai-suggested"
	ProvenanceHistoricalMatch Provenance = "historical-match"
	ProvenanceUserEdited      Provenance = "user-edited"
)

// ColumnRole classifies a column as a grouping dimension or an aggregatable
// numeric.
type ColumnRole string

const (
	RoleIdentifier ColumnRole = "identifier"
	RoleMeasure    ColumnRole = "measure"
)

// MissingStrategy names a missing-value handling policy.
type MissingStrategy string

const (
	StrategyNone   MissingStrategy = "none"
	StrategyMean   MissingStrategy = "mean"
	StrategyMedian MissingStrategy = "median"
	StrategyMode   MissingStrategy = "mode"
	StrategyZero   MissingStrategy = "zero"
	StrategyFFill  MissingStrategy = "ffill"
	StrategyBFill  MissingStrategy = "bfill"
	StrategyDrop   MissingStrategy = "drop"
	StrategyCustom MissingStrategy = "custom"
)

// HeaderSelection captures the user's header choice for one file.
// HeaderRowIndex is relative to the preview rows shown at the header stage.
type HeaderSelection struct {
	HeaderRowIndex int  `json:"headerRowIndex" msgpack:"headerRowIndex"`
	HeaderRowCount int  `json:"headerRowCount" msgpack:"headerRowCount"`
	NoHeader       bool `json:"noHeader" msgpack:"noHeader"`
}

// ColumnNameEdit tracks the rename/drop decision for one source column.
// Keep=false marks the column for removal during instruction building.
type ColumnNameEdit struct {
	OriginalName string     `json:"originalName" msgpack:"originalName"`
	EditedName   string     `json:"editedName" msgpack:"editedName"`
	Keep         bool       `json:"keep" msgpack:"keep"`
	Provenance   Provenance `json:"provenance" msgpack:"provenance"`
}

// DataTypeSelection tracks the dtype decision for one column.
// DetectedType and UpdateType are frontend type names (int, float, boolean,
// date, datetime, string); RawDtype keeps the backend-observed dtype string.
// ColumnRole is re-derived whenever UpdateType changes unless the user has
// explicitly overridden it (RoleOverridden).
type DataTypeSelection struct {
	ColumnName     string     `json:"columnName" msgpack:"columnName"`
	RawDtype       string     `json:"rawDtype" msgpack:"rawDtype"`
	DetectedType   string     `json:"detectedType" msgpack:"detectedType"`
	UpdateType     string     `json:"updateType" msgpack:"updateType"`
	Format         string     `json:"format,omitempty" msgpack:"format"`
	ColumnRole     ColumnRole `json:"columnRole" msgpack:"columnRole"`
	RoleOverridden bool       `json:"roleOverridden" msgpack:"roleOverridden"`
}

// MissingValueStrategy tracks the missing-value decision for one column.
// Value is only meaningful for StrategyCustom.
type MissingValueStrategy struct {
	ColumnName string          `json:"columnName" msgpack:"columnName"`
	Strategy   MissingStrategy `json:"strategy" msgpack:"strategy"`
	Value      string          `json:"value,omitempty" msgpack:"value"`
}
