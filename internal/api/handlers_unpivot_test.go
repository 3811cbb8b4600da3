package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataprimer/backend/internal/unpivot"
)

// swapReshape points the env's reshape client at a custom handler.
func (env *testEnv) swapReshape(t *testing.T, handler http.Handler) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	env.h.reshape = unpivot.NewClient(srv.URL, nil)
}

func TestUnpivotCompute(t *testing.T) {
	env := newTestEnv(t)

	var gotProps unpivot.Properties
	env.swapReshape(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/create":
			fmt.Fprint(w, `{"atomId":"atom-1"}`)
		case strings.HasSuffix(r.URL.Path, "/properties"):
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotProps))
			fmt.Fprint(w, `{}`)
		case strings.HasSuffix(r.URL.Path, "/compute"):
			fmt.Fprint(w, `{"columns":["region","variable","value"],"rows":[["north","q1","100"]],"rowCount":1}`)
		default:
			http.NotFound(w, r)
		}
	}))

	rec := env.do(t, http.MethodPost, "/api/unpivot/compute", map[string]interface{}{
		"object_path": "/datasets/sales.parquet",
		"id_vars":     []string{"region"},
		"value_vars":  []string{"q1", "q2"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "/datasets/sales.parquet", gotProps.ObjectPath)
	assert.Equal(t, []string{"q1", "q2"}, gotProps.ValueColumns)

	var result unpivot.ComputeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.RowCount)
	assert.Equal(t, []string{"region", "variable", "value"}, result.Columns)
}

func TestUnpivotComputeValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/unpivot/compute", map[string]interface{}{
		"object_path": "/datasets/sales.parquet",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "value_vars")
}

func TestUnpivotSave(t *testing.T) {
	env := newTestEnv(t)
	env.swapReshape(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/create":
			fmt.Fprint(w, `{"atomId":"atom-1"}`)
		case strings.HasSuffix(r.URL.Path, "/save"):
			fmt.Fprint(w, `{"path":"/datasets/long_sales.parquet"}`)
		default:
			// dataset-updated notification, best effort
			fmt.Fprint(w, `{}`)
		}
	}))

	rec := env.do(t, http.MethodPost, "/api/unpivot/save", map[string]string{"datasetName": "long_sales"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "/datasets/long_sales.parquet")
}

func TestUnpivotExpiredAtomSurfacesConflict(t *testing.T) {
	env := newTestEnv(t)
	// Every atom is already expired: create succeeds, every scoped call 404s.
	created := 0
	env.swapReshape(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/create" {
			created++
			fmt.Fprintf(w, `{"atomId":"atom-%d"}`, created)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"detail":"atom expired"}`)
	}))

	rec := env.do(t, http.MethodPost, "/api/unpivot/compute", map[string]interface{}{
		"object_path": "/datasets/sales.parquet",
		"value_vars":  []string{"q1"},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "RESOURCE_EXPIRED")
	assert.Equal(t, 2, created) // recreated exactly once before giving up
}

func TestDatasetSchema(t *testing.T) {
	env := newTestEnv(t)
	env.swapReshape(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/dataset-schema", r.URL.Path)
		fmt.Fprint(w, `{"columns":[{"name":"region","dtype":"object"},{"name":"value","dtype":"float64"}]}`)
	}))

	rec := env.do(t, http.MethodPost, "/api/unpivot/schema", map[string]string{"objectPath": "/datasets/sales.parquet"})
	require.Equal(t, http.StatusOK, rec.Code)

	var columns []unpivot.SchemaColumn
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &columns))
	require.Len(t, columns, 2)
	assert.Equal(t, "region", columns[0].Name)
}
