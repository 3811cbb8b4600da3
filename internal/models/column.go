package models

// ColumnMetadata is the backend-observed description of one column.
type ColumnMetadata struct {
	Name           string   `json:"name"`
	Dtype          string   `json:"dtype"`
	SampleValues   []string `json:"sampleValues,omitempty"`
	MissingPercent float64  `json:"missingPercent"`
}

// HeaderConfidence is the backend's confidence tier for a suggested header
// row.
type HeaderConfidence string

const (
	ConfidenceHigh   HeaderConfidence = "high"
	ConfidenceMedium HeaderConfidence = "medium"
	ConfidenceLow    HeaderConfidence = "low"
)

// HeaderSuggestion is the merged header pre-fill shown at the header stage:
// the backend's suggested absolute row index and confidence, expanded by the
// local look-ahead heuristic into a multi-row count.
type HeaderSuggestion struct {
	RowIndex   int              `json:"rowIndex"`
	RowCount   int              `json:"rowCount"`
	Confidence HeaderConfidence `json:"confidence"`
}

// FilePreview is a raw-row sample of a stored file plus the backend's header
// suggestion.
type FilePreview struct {
	Rows               [][]string       `json:"rows"`
	SuggestedHeaderRow int              `json:"suggestedHeaderRow"`
	Confidence         HeaderConfidence `json:"confidence"`
	TotalRows          int              `json:"totalRows,omitempty"`
}

// RowIssue describes one structural problem found in a stored file.
type RowIssue struct {
	RowIndex int    `json:"rowIndex"`
	Kind     string `json:"kind"`
	Detail   string `json:"detail,omitempty"`
}

// RowIssuePage is one page of the backend's structural-issue list.
type RowIssuePage struct {
	Issues   []RowIssue `json:"issues"`
	Page     int        `json:"page"`
	PageSize int        `json:"pageSize"`
	Total    int        `json:"total"`
}
