// Package services is the HTTP client for the external compute backend
// that owns the actual dataframe work: file storage, preview and metadata
// extraction, transformation apply, and finalization. This repository never
// parses or transforms tabular data itself; everything flows through these
// endpoints.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
)

// UploadTimeout is the per-file ceiling for upload requests. A request that
// outlives it is a terminal failure for that file only.
const UploadTimeout = 10 * time.Minute

// requestTimeout bounds everything that is not an upload.
const requestTimeout = 30 * time.Second

// transientAttempts is how often idempotent GETs are retried on transport
// failures and 5xx responses.
const transientAttempts = 3

// Config identifies the compute backend and the tenant scope sent with
// every upload.
type Config struct {
	BaseURL     string
	Environment string
	Project     string
}

// BackendError is a non-2xx response from the compute backend. Detail is
// the backend's own message, surfaced verbatim when present.
type BackendError struct {
	Status int
	Detail string
}

func (e *BackendError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend returned %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("backend returned %d", e.Status)
}

// IsNotFound reports whether err is a backend 404, used to detect expired
// server-side resources.
func IsNotFound(err error) bool {
	var be *BackendError
	return errors.As(err, &be) && be.Status == http.StatusNotFound
}

// Client talks to the compute backend. The zero value is not usable; use
// NewClient.
type Client struct {
	cfg          Config
	httpClient   *http.Client
	uploadClient *http.Client
	logger       *zap.Logger
}

// NewClient creates a backend client for the configured base URL.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:          cfg,
		httpClient:   &http.Client{Timeout: requestTimeout},
		uploadClient: &http.Client{Timeout: UploadTimeout},
		logger:       logger,
	}
}

func (c *Client) endpoint(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + path
}

// decodeError extracts the backend's detail message from a failed response.
func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	detail := ""
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != "" {
		detail = payload.Detail
	} else if len(body) > 0 {
		detail = strings.TrimSpace(string(body))
	}
	return &BackendError{Status: resp.StatusCode, Detail: detail}
}

func isTransient(err error) bool {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Status == http.StatusBadGateway ||
			be.Status == http.StatusServiceUnavailable ||
			be.Status == http.StatusGatewayTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// getJSON performs an idempotent GET with transient retry.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	target := c.endpoint(path)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return decodeError(resp)
			}
			if out == nil {
				return nil
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decoding response: %w", err))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(transientAttempts),
		retry.RetryIf(isTransient),
		retry.LastErrorOnly(true),
	)
}

// postJSON performs a POST with a JSON body, no retry.
func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// postForm performs a POST with urlencoded form fields, no retry.
func (c *Client) postForm(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path),
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
