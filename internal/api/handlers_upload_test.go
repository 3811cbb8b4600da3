package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataprimer/backend/internal/models"
	"github.com/dataprimer/backend/internal/testutil"
)

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, content := range files {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func (env *testEnv) uploadFiles(t *testing.T, flowID string, files map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, files)
	req := httptest.NewRequest(http.MethodPost, "/api/flows/"+flowID+"/files", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func TestUploadSingleFile(t *testing.T) {
	env := newTestEnv(t)
	st := env.createFlow(t)

	rec := env.uploadFiles(t, st.ID, map[string]string{
		"orders.csv": "a,b\n1,2\n",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Succeeded int               `json:"succeeded"`
		Failed    int               `json:"failed"`
		Flow      *models.FlowState `json:"flow"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Succeeded)
	assert.Equal(t, 0, resp.Failed)
	require.Len(t, resp.Flow.Files, 1)
	assert.Equal(t, "orders.csv", resp.Flow.Files[0].Name)
	assert.NotEmpty(t, resp.Flow.Files[0].Path)
}

func TestUploadMultipleFilesSettleAll(t *testing.T) {
	env := newTestEnv(t)
	env.mock.FailPath = "broken.csv"
	st := env.createFlow(t)

	rec := env.uploadFiles(t, st.ID, map[string]string{
		"orders.csv":    "a,b\n1,2\n",
		"customers.csv": "id,name\n1,x\n",
		"broken.csv":    "not,really\n",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Succeeded int `json:"succeeded"`
		Failed    int `json:"failed"`
		Results   []struct {
			Name  string `json:"name"`
			OK    bool   `json:"ok"`
			Error string `json:"error"`
		} `json:"results"`
		Flow *models.FlowState `json:"flow"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Succeeded)
	assert.Equal(t, 1, resp.Failed)
	assert.Len(t, resp.Flow.Files, 2)

	for _, res := range resp.Results {
		if res.Name == "broken.csv" {
			assert.False(t, res.OK)
			assert.Contains(t, res.Error, "cannot parse broken.csv")
		} else {
			assert.True(t, res.OK)
		}
	}
}

func TestUploadAllFilesFailing(t *testing.T) {
	env := newTestEnv(t)
	env.mock.FailPath = "broken.csv"
	st := env.createFlow(t)

	rec := env.uploadFiles(t, st.ID, map[string]string{"broken.csv": "x\n"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestUploadRejectsDisallowedType(t *testing.T) {
	env := newTestEnv(t)
	st := env.createFlow(t)

	rec := env.uploadFiles(t, st.ID, map[string]string{"malware.exe": "MZ"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "not allowed")
}

func TestUploadUnknownFlow(t *testing.T) {
	env := newTestEnv(t)
	rec := env.uploadFiles(t, "missing", map[string]string{"orders.csv": "a\n"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadExcelCarriesSheets(t *testing.T) {
	env := newTestEnv(t)
	env.mock.AddFile(&testutil.StoredFile{
		Path: "report.xlsx",
		Sheets: []models.SheetInfo{
			{Name: "Summary", RowCount: 10},
			{Name: "Raw", RowCount: 200},
		},
	})
	st := env.createFlow(t)

	rec := env.uploadFiles(t, st.ID, map[string]string{"report.xlsx": "PK"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Flow *models.FlowState `json:"flow"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Flow.Files, 1)
	require.Len(t, resp.Flow.Files[0].Sheets, 2)
	assert.Equal(t, "Summary", resp.Flow.Files[0].SelectedSheet)
}
