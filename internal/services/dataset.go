package services

import (
	"context"
	"net/url"
	"strconv"

	"github.com/dataprimer/backend/internal/models"
)

// FilePreview fetches a raw-row sample of a stored file plus the backend's
// header suggestion and confidence tier.
func (c *Client) FilePreview(ctx context.Context, objectPath string, limit int) (*models.FilePreview, error) {
	query := url.Values{"object_path": {objectPath}}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var preview models.FilePreview
	if err := c.getJSON(ctx, "/file-preview", query, &preview); err != nil {
		return nil, err
	}
	return &preview, nil
}

// FileColumns fetches the column names of a stored file.
func (c *Client) FileColumns(ctx context.Context, objectPath string) ([]string, error) {
	var payload struct {
		Columns []string `json:"columns"`
	}
	query := url.Values{"object_path": {objectPath}}
	if err := c.getJSON(ctx, "/file-columns", query, &payload); err != nil {
		return nil, err
	}
	return payload.Columns, nil
}

// FileMetadata fetches per-column dtype, sample values, and missing
// percentage for a stored file.
func (c *Client) FileMetadata(ctx context.Context, objectPath string) ([]models.ColumnMetadata, error) {
	var payload struct {
		Columns []models.ColumnMetadata `json:"columns"`
	}
	req := map[string]string{"object_path": objectPath}
	if err := c.postJSON(ctx, "/file-metadata", req, &payload); err != nil {
		return nil, err
	}
	return payload.Columns, nil
}

// RowIssues fetches one page of the backend's structural-issue list.
func (c *Client) RowIssues(ctx context.Context, objectPath string, page, pageSize int) (*models.RowIssuePage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	query := url.Values{
		"object_path": {objectPath},
		"page":        {strconv.Itoa(page)},
		"page_size":   {strconv.Itoa(pageSize)},
	}
	var issues models.RowIssuePage
	if err := c.getJSON(ctx, "/row-issues", query, &issues); err != nil {
		return nil, err
	}
	return &issues, nil
}
