package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/dataprimer/backend/internal/models"
)

// ApplyHeaderSelection asks the backend to rewrite a stored file with the
// chosen header rows applied. Returns the processed file's new object path.
func (c *Client) ApplyHeaderSelection(ctx context.Context, objectPath string, rowIndex, rowCount int) (string, error) {
	if rowCount < 1 {
		rowCount = 1
	}
	form := url.Values{
		"object_path":      {objectPath},
		"header_row_index": {strconv.Itoa(rowIndex)},
		"header_row_count": {strconv.Itoa(rowCount)},
	}
	var payload struct {
		Path string `json:"path"`
	}
	if err := c.postForm(ctx, "/apply-header-selection", form, &payload); err != nil {
		return "", err
	}
	if payload.Path == "" {
		return "", fmt.Errorf("apply-header-selection response missing path")
	}
	return payload.Path, nil
}

// ApplyTransformations sends the split-form plan built when leaving the
// missing-values review stage. Apply is all-or-nothing; a failure leaves
// the stored file untouched.
func (c *Client) ApplyTransformations(ctx context.Context, objectPath string, plan *models.TransformationPlan) error {
	req := struct {
		ObjectPath string                     `json:"object_path"`
		Plan       *models.TransformationPlan `json:"plan"`
	}{ObjectPath: objectPath, Plan: plan}
	return c.postJSON(ctx, "/apply-data-transformations", req, nil)
}

// ProcessSavedDataframe sends the per-column instruction list at finalize
// time.
func (c *Client) ProcessSavedDataframe(ctx context.Context, objectPath string, instructions []models.ColumnInstruction) error {
	req := struct {
		ObjectPath   string                     `json:"object_path"`
		Instructions []models.ColumnInstruction `json:"instructions"`
	}{ObjectPath: objectPath, Instructions: instructions}
	return c.postJSON(ctx, "/process_saved_dataframe", req, nil)
}

// FinalizePrimedFile persists the fully transformed dataset to its final
// storage location and returns that location.
func (c *Client) FinalizePrimedFile(ctx context.Context, objectPath, datasetName string) (string, error) {
	req := map[string]string{
		"object_path":  objectPath,
		"dataset_name": datasetName,
	}
	var payload struct {
		Path string `json:"path"`
	}
	if err := c.postJSON(ctx, "/finalize-primed-file", req, &payload); err != nil {
		return "", err
	}
	if payload.Path == "" {
		return "", fmt.Errorf("finalize response missing path")
	}
	return payload.Path, nil
}

// SaveClassifierConfig persists the identifier/measure assignment.
func (c *Client) SaveClassifierConfig(ctx context.Context, cfg *models.ClassifierConfig) error {
	return c.postJSON(ctx, "/save_config", cfg, nil)
}
