// mock_compute.go - In-memory compute backend for handler tests
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/dataprimer/backend/internal/models"
)

// StoredFile is one object the mock compute backend holds.
type StoredFile struct {
	Path    string
	Rows    [][]string
	Columns []models.ColumnMetadata

	SuggestedHeaderRow int
	Confidence         models.HeaderConfidence
	Sheets             []models.SheetInfo
}

// MockCompute implements the compute backend's HTTP surface in memory.
// Mount it on an httptest.Server and point a services.Client at it.
type MockCompute struct {
	mu       sync.Mutex
	files    map[string]*StoredFile
	uploads  int
	requests []string

	// Transformations and instructions received, keyed by object path.
	Plans        map[string]*models.TransformationPlan
	Instructions map[string][]models.ColumnInstruction
	Configs      []*models.ClassifierConfig

	// FailPath makes every request touching this object path return 500.
	FailPath string
}

// NewMockCompute creates an empty backend.
func NewMockCompute() *MockCompute {
	return &MockCompute{
		files:        make(map[string]*StoredFile),
		Plans:        make(map[string]*models.TransformationPlan),
		Instructions: make(map[string][]models.ColumnInstruction),
	}
}

// AddFile seeds a stored object.
func (m *MockCompute) AddFile(f *StoredFile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[f.Path] = f
}

// Requests returns the paths hit so far, in order.
func (m *MockCompute) Requests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.requests))
	copy(out, m.requests)
	return out
}

func (m *MockCompute) record(path string) {
	m.mu.Lock()
	m.requests = append(m.requests, path)
	m.mu.Unlock()
}

func (m *MockCompute) lookup(path string) (*StoredFile, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[path]
	return f, ok
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// ServeHTTP dispatches the compute API surface.
func (m *MockCompute) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.record(r.URL.Path)

	switch r.URL.Path {
	case "/upload-file", "/upload-excel-multi-sheet":
		m.handleUpload(w, r)
	case "/file-preview":
		m.handlePreview(w, r)
	case "/file-columns":
		m.handleColumns(w, r)
	case "/file-metadata":
		m.handleMetadata(w, r)
	case "/row-issues":
		m.handleRowIssues(w, r)
	case "/apply-header-selection":
		m.handleApplyHeader(w, r)
	case "/apply-data-transformations":
		m.handleApplyTransformations(w, r)
	case "/process_saved_dataframe":
		m.handleProcessDataframe(w, r)
	case "/finalize-primed-file":
		m.handleFinalize(w, r)
	case "/save_config":
		m.handleSaveConfig(w, r)
	default:
		writeDetail(w, http.StatusNotFound, "unknown endpoint")
	}
}

func (m *MockCompute) failing(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.FailPath != "" && m.FailPath == path
}

func (m *MockCompute) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "missing file part")
		return
	}
	defer file.Close()

	if m.failing(header.Filename) {
		writeDetail(w, http.StatusInternalServerError, fmt.Sprintf("cannot parse %s", header.Filename))
		return
	}

	m.mu.Lock()
	m.uploads++
	path := fmt.Sprintf("/tmp/uploads/%d_%s", m.uploads, header.Filename)
	stored := m.files[header.Filename]
	m.mu.Unlock()

	resp := map[string]interface{}{"path": path}
	if stored != nil {
		// Seeded by file name: re-register under the storage path.
		m.mu.Lock()
		clone := *stored
		clone.Path = path
		m.files[path] = &clone
		m.mu.Unlock()
		if len(stored.Sheets) > 0 {
			resp["sheets"] = stored.Sheets
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (m *MockCompute) handlePreview(w http.ResponseWriter, r *http.Request) {
	f, ok := m.lookup(r.URL.Query().Get("object_path"))
	if !ok {
		writeDetail(w, http.StatusNotFound, "object not found")
		return
	}
	writeJSON(w, http.StatusOK, models.FilePreview{
		Rows:               f.Rows,
		SuggestedHeaderRow: f.SuggestedHeaderRow,
		Confidence:         f.Confidence,
		TotalRows:          len(f.Rows),
	})
}

func (m *MockCompute) handleColumns(w http.ResponseWriter, r *http.Request) {
	f, ok := m.lookup(r.URL.Query().Get("object_path"))
	if !ok {
		writeDetail(w, http.StatusNotFound, "object not found")
		return
	}
	names := make([]string, len(f.Columns))
	for i, col := range f.Columns {
		names[i] = col.Name
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"columns": names})
}

func (m *MockCompute) handleMetadata(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ObjectPath string `json:"object_path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	f, ok := m.lookup(req.ObjectPath)
	if !ok {
		writeDetail(w, http.StatusNotFound, "object not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"columns": f.Columns})
}

func (m *MockCompute) handleRowIssues(w http.ResponseWriter, r *http.Request) {
	if _, ok := m.lookup(r.URL.Query().Get("object_path")); !ok {
		writeDetail(w, http.StatusNotFound, "object not found")
		return
	}
	writeJSON(w, http.StatusOK, models.RowIssuePage{Issues: []models.RowIssue{}, Page: 1, PageSize: 50})
}

func (m *MockCompute) handleApplyHeader(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid form")
		return
	}
	path := r.FormValue("object_path")
	f, ok := m.lookup(path)
	if !ok {
		writeDetail(w, http.StatusNotFound, "object not found")
		return
	}
	newPath := path + ".processed"
	m.mu.Lock()
	clone := *f
	clone.Path = newPath
	m.files[newPath] = &clone
	m.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"path": newPath})
}

func (m *MockCompute) handleApplyTransformations(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ObjectPath string                     `json:"object_path"`
		Plan       *models.TransformationPlan `json:"plan"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if _, ok := m.lookup(req.ObjectPath); !ok {
		writeDetail(w, http.StatusNotFound, "object not found")
		return
	}
	m.mu.Lock()
	m.Plans[req.ObjectPath] = req.Plan
	m.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (m *MockCompute) handleProcessDataframe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ObjectPath   string                     `json:"object_path"`
		Instructions []models.ColumnInstruction `json:"instructions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if _, ok := m.lookup(req.ObjectPath); !ok {
		writeDetail(w, http.StatusNotFound, "object not found")
		return
	}
	m.mu.Lock()
	m.Instructions[req.ObjectPath] = req.Instructions
	m.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (m *MockCompute) handleFinalize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ObjectPath  string `json:"object_path"`
		DatasetName string `json:"dataset_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if _, ok := m.lookup(req.ObjectPath); !ok {
		writeDetail(w, http.StatusNotFound, "object not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": "/datasets/" + req.DatasetName + ".parquet"})
}

func (m *MockCompute) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	var cfg models.ClassifierConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	m.mu.Lock()
	m.Configs = append(m.Configs, &cfg)
	m.mu.Unlock()
	w.WriteHeader(http.StatusCreated)
}
