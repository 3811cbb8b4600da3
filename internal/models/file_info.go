package models

import "time"

// SheetInfo describes one sheet of a multi-sheet Excel upload.
type SheetInfo struct {
	Name        string `json:"name" msgpack:"name"`
	RowCount    int    `json:"rowCount,omitempty" msgpack:"rowCount"`
	ColumnCount int    `json:"columnCount,omitempty" msgpack:"columnCount"`
}

// UploadedFileInfo represents one file accepted into a flow, either freshly
// uploaded or selected from existing datasets. Path is the backend object
// key and is rewritten when the backend produces a processed copy (for
// example after header application); accumulated edits stay keyed by Name.
type UploadedFileInfo struct {
	Name          string      `json:"name" msgpack:"name"`
	Path          string      `json:"path" msgpack:"path"`
	Size          int64       `json:"size" msgpack:"size"`
	Sheets        []SheetInfo `json:"sheets,omitempty" msgpack:"sheets"`
	SelectedSheet string      `json:"selectedSheet,omitempty" msgpack:"selectedSheet"`
	Processed     bool        `json:"processed" msgpack:"processed"`
	UploadedAt    time.Time   `json:"uploadedAt" msgpack:"uploadedAt"`
}
