package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dataprimer/backend/internal/models"
)

// ProgressFunc receives byte-level upload progress for one file.
type ProgressFunc func(fileName string, sent, total int64)

// UploadSpec describes one file to push to the compute backend.
type UploadSpec struct {
	Name   string
	Size   int64
	Reader io.Reader
}

// UploadResult is the settle-all outcome for one file. Err is set for
// failed files; successful files carry the stored file info.
type UploadResult struct {
	Name string
	File *models.UploadedFileInfo
	Err  error
}

// countingReader reports bytes consumed by the multipart encoder, which is
// what the progress stream shows the user.
type countingReader struct {
	r        io.Reader
	name     string
	total    int64
	sent     int64
	progress ProgressFunc
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.sent += int64(n)
		if cr.progress != nil {
			cr.progress(cr.name, cr.sent, cr.total)
		}
	}
	return n, err
}

func isExcel(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".xls" || ext == ".xlsx"
}

// UploadFile pushes one file to the compute backend, choosing the
// multi-sheet endpoint for Excel files. The multipart body streams through
// a pipe so large files never buffer fully in memory.
func (c *Client) UploadFile(ctx context.Context, spec UploadSpec, progress ProgressFunc) (*models.UploadedFileInfo, error) {
	path := "/upload-file"
	if isExcel(spec.Name) {
		path = "/upload-excel-multi-sheet"
	}

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		defer pw.Close()
		if err := writer.WriteField("environment", c.cfg.Environment); err != nil {
			pw.CloseWithError(err)
			return
		}
		if err := writer.WriteField("project", c.cfg.Project); err != nil {
			pw.CloseWithError(err)
			return
		}
		part, err := writer.CreateFormFile("file", spec.Name)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		src := &countingReader{r: spec.Reader, name: spec.Name, total: spec.Size, progress: progress}
		if _, err := io.Copy(part, src); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writer.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), pr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.uploadClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("uploading %s: %w", spec.Name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeError(resp)
	}

	var payload struct {
		Path   string             `json:"path"`
		Sheets []models.SheetInfo `json:"sheets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding upload response: %w", err)
	}
	if payload.Path == "" {
		return nil, fmt.Errorf("upload response for %s missing storage path", spec.Name)
	}

	info := &models.UploadedFileInfo{
		Name:       spec.Name,
		Path:       payload.Path,
		Size:       spec.Size,
		Sheets:     payload.Sheets,
		UploadedAt: time.Now(),
	}
	if len(payload.Sheets) > 0 {
		info.SelectedSheet = payload.Sheets[0].Name
	}
	return info, nil
}

// UploadAll dispatches one upload per file in parallel and joins them
// settle-all style: every file gets a result, failures do not abort the
// rest, and the caller reports succeeded/failed counts.
func (c *Client) UploadAll(ctx context.Context, specs []UploadSpec, progress ProgressFunc) []UploadResult {
	results := make([]UploadResult, len(specs))
	var wg sync.WaitGroup
	for i, spec := range specs {
		wg.Add(1)
		go func(i int, spec UploadSpec) {
			defer wg.Done()
			info, err := c.UploadFile(ctx, spec, progress)
			results[i] = UploadResult{Name: spec.Name, File: info, Err: err}
		}(i, spec)
	}
	wg.Wait()
	return results
}
