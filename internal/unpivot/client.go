// Package unpivot is the client for the reshape service. All atom-scoped
// calls go through a server-issued atom id that can expire; an expired atom
// is recreated transparently exactly once before the failure is surfaced.
package unpivot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dataprimer/backend/internal/services"
)

// Properties configures an unpivot computation: identifier columns stay
// fixed while value columns melt into variable/value pairs.
type Properties struct {
	ObjectPath   string   `json:"object_path"`
	IDColumns    []string `json:"id_vars"`
	ValueColumns []string `json:"value_vars"`
	VariableName string   `json:"var_name,omitempty"`
	ValueName    string   `json:"value_name,omitempty"`
	DropMissing  bool     `json:"drop_missing,omitempty"`
	IncludeIndex bool     `json:"include_index,omitempty"`
}

// ComputeResult is the reshape service's preview of an unpivot run.
type ComputeResult struct {
	Columns  []string   `json:"columns"`
	Rows     [][]string `json:"rows"`
	RowCount int        `json:"rowCount"`
}

// SchemaColumn describes one column of a reshaped dataset.
type SchemaColumn struct {
	Name  string `json:"name"`
	Dtype string `json:"dtype"`
}

// AtomExpiredError reports that the reshape atom expired and recreating it
// once did not help.
type AtomExpiredError struct {
	AtomID string
}

func (e *AtomExpiredError) Error() string {
	return fmt.Sprintf("reshape atom %s expired and could not be recreated", e.AtomID)
}

// Client talks to the reshape service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger

	mu     sync.Mutex
	atomID string
}

// NewClient creates a reshape client for the configured base URL.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		detail := strings.TrimSpace(string(raw))
		var parsed struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(raw, &parsed) == nil && parsed.Detail != "" {
			detail = parsed.Detail
		}
		return &services.BackendError{Status: resp.StatusCode, Detail: detail}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// create asks the reshape service for a fresh atom id.
func (c *Client) create(ctx context.Context) (string, error) {
	var payload struct {
		AtomID string `json:"atomId"`
	}
	if err := c.do(ctx, http.MethodPost, "/create", map[string]string{"type": "unpivot"}, &payload); err != nil {
		return "", err
	}
	if payload.AtomID == "" {
		return "", fmt.Errorf("create response missing atom id")
	}
	return payload.AtomID, nil
}

// ensureAtom returns the current atom id, creating one on first use.
func (c *Client) ensureAtom(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.atomID != "" {
		return c.atomID, nil
	}
	id, err := c.create(ctx)
	if err != nil {
		return "", err
	}
	c.atomID = id
	return id, nil
}

// recreateAtom replaces an expired atom id with a fresh one, but only if
// no other caller already replaced it.
func (c *Client) recreateAtom(ctx context.Context, expired string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.atomID != "" && c.atomID != expired {
		return c.atomID, nil
	}
	id, err := c.create(ctx)
	if err != nil {
		return "", err
	}
	c.atomID = id
	return id, nil
}

// withAtom runs fn against the resolved atom, recreating an expired atom
// exactly once before surfacing the failure.
func (c *Client) withAtom(ctx context.Context, fn func(atomID string) error) error {
	atomID, err := c.ensureAtom(ctx)
	if err != nil {
		return err
	}

	err = fn(atomID)
	if !services.IsNotFound(err) {
		return err
	}

	c.logger.Info("reshape atom expired, recreating",
		zap.String("atomId", atomID))
	fresh, err := c.recreateAtom(ctx, atomID)
	if err != nil {
		return err
	}

	err = fn(fresh)
	if services.IsNotFound(err) {
		return &AtomExpiredError{AtomID: fresh}
	}
	return err
}

// SetProperties stores the unpivot configuration on the atom.
func (c *Client) SetProperties(ctx context.Context, props Properties) error {
	return c.withAtom(ctx, func(atomID string) error {
		return c.do(ctx, http.MethodPatch, "/"+atomID+"/properties", props, nil)
	})
}

// Compute runs the unpivot and returns the preview of the result.
func (c *Client) Compute(ctx context.Context) (*ComputeResult, error) {
	var result ComputeResult
	err := c.withAtom(ctx, func(atomID string) error {
		return c.do(ctx, http.MethodPost, "/"+atomID+"/compute", map[string]string{}, &result)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// SaveResult persists the reshaped dataset under the given name and
// returns its storage path.
func (c *Client) SaveResult(ctx context.Context, datasetName string) (string, error) {
	var payload struct {
		Path string `json:"path"`
	}
	err := c.withAtom(ctx, func(atomID string) error {
		return c.do(ctx, http.MethodPost, "/"+atomID+"/save",
			map[string]string{"dataset_name": datasetName}, &payload)
	})
	if err != nil {
		return "", err
	}
	return payload.Path, nil
}

// NotifyDatasetUpdated tells the reshape service that the source dataset
// changed. Best effort: failures are logged and ignored. With no atom there
// is nothing holding stale state, so the notification is skipped rather
// than creating an atom just to receive it.
func (c *Client) NotifyDatasetUpdated(ctx context.Context, objectPath string) {
	c.mu.Lock()
	atomID := c.atomID
	c.mu.Unlock()
	if atomID == "" {
		c.logger.Debug("no reshape atom, skipping dataset-updated notification",
			zap.String("objectPath", objectPath))
		return
	}
	err := c.do(ctx, http.MethodPost, "/"+atomID+"/dataset-updated",
		map[string]string{"object_path": objectPath}, nil)
	if err != nil {
		c.logger.Debug("dataset-updated notification failed",
			zap.String("objectPath", objectPath), zap.Error(err))
	}
}

// DatasetSchema fetches the column schema of a stored dataset. Not
// atom-scoped.
func (c *Client) DatasetSchema(ctx context.Context, objectPath string) ([]SchemaColumn, error) {
	var payload struct {
		Columns []SchemaColumn `json:"columns"`
	}
	err := c.do(ctx, http.MethodPost, "/dataset-schema",
		map[string]string{"object_path": objectPath}, &payload)
	if err != nil {
		return nil, err
	}
	return payload.Columns, nil
}
