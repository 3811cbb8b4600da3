package rules

import "strconv"

// MaxExtraHeaderRows bounds the look-ahead below a candidate header row.
const MaxExtraHeaderRows = 2

// headerTextRatio is the share of non-empty cells that must be non-numeric
// text for a row to count as part of a merged header.
const headerTextRatio = 0.7

// DetectExtraHeaderRows inspects up to two rows following the candidate
// header row and counts how many of them look like continuation header
// rows: at least 70% of their non-empty cells are non-numeric text, and at
// least half the candidate row's cell count is populated. The result only
// pre-expands the multi-row selection shown to the user; it never overrides
// an explicit choice.
func DetectExtraHeaderRows(rows [][]string, headerIndex int) int {
	if headerIndex < 0 || headerIndex >= len(rows) {
		return 0
	}
	candidateCells := len(rows[headerIndex])
	if candidateCells == 0 {
		return 0
	}

	extra := 0
	for i := headerIndex + 1; i < len(rows) && extra < MaxExtraHeaderRows; i++ {
		if !looksLikeHeaderRow(rows[i], candidateCells) {
			break
		}
		extra++
	}
	return extra
}

func looksLikeHeaderRow(row []string, candidateCells int) bool {
	populated := 0
	textual := 0
	for _, cell := range row {
		if cell == "" {
			continue
		}
		populated++
		if !isNumericText(cell) {
			textual++
		}
	}
	if populated*2 < candidateCells {
		return false
	}
	return float64(textual) >= headerTextRatio*float64(populated)
}

func isNumericText(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// ExpandHeaderSuggestion merges the backend's suggested header row with the
// local look-ahead into the pre-fill shown at the header stage.
func ExpandHeaderSuggestion(rows [][]string, suggestedRow int) (rowIndex, rowCount int) {
	if suggestedRow < 0 {
		suggestedRow = 0
	}
	return suggestedRow, 1 + DetectExtraHeaderRows(rows, suggestedRow)
}
