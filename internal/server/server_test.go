package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/config"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/datasets"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/logger"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/store"
)

type fakeManager struct {
	refreshCalls []string
	refreshErr   error
}

func (f *fakeManager) RefreshAll(ctx context.Context) error {
	f.refreshCalls = append(f.refreshCalls, "all")
	return f.refreshErr
}

func (f *fakeManager) ForceUpdate(ctx context.Context, name string) error {
	f.refreshCalls = append(f.refreshCalls, name)
	if f.refreshErr != nil {
		return f.refreshErr
	}
	if name == "unknown" {
		return fmt.Errorf("%w: %s", datasets.ErrUnknownDataset, name)
	}
	return nil
}

type fixture struct {
	server  *Server
	manager *fakeManager
	store   *store.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: "stderr"})
	require.NoError(t, err)

	db, err := store.NewDB(filepath.Join(t.TempDir(), "datasets.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.RunMigrations(db.Writer))
	st := store.New(db)

	cfg := config.Default()
	cfg.Auth.APIKeys = []string{"ZIMMERMAN"}
	cfg.Metrics.Enabled = true

	manager := &fakeManager{}
	srv := New(Options{
		Config:   *cfg,
		Manager:  manager,
		Store:    st,
		Gatherer: prometheus.NewRegistry(),
		Logger:   log,
	})

	return &fixture{server: srv, manager: manager, store: st}
}

func (f *fixture) request(t *testing.T, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func seed(t *testing.T, st *store.Store, name string, rows int) {
	t.Helper()
	data := make([][]string, rows)
	for i := range data {
		data[i] = []string{fmt.Sprintf("row-%d", i)}
	}
	require.NoError(t, st.ReplaceDataset(context.Background(), name, []string{"Value"}, data, "hash"))
}

func TestRequiresAuthorization(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{
		"/backup/health-check",
		"/backup/update-tgf-datasets",
		"/backup/force-update-tgf-dataset/gf_results",
		"/backup/dataset/gf_results",
		"/backup/sample-data/gf_results",
	} {
		rec := f.request(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)

		rec = f.request(t, http.MethodGet, path, "WRONG_TOKEN")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodGet, "/backup/health-check", "ZIMMERMAN")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, float64(200), body["code"])
	assert.Equal(t, "OK", body["result"])
}

func TestUpdateDatasets(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodGet, "/backup/update-tgf-datasets", "ZIMMERMAN")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"all"}, f.manager.refreshCalls)
}

func TestUpdateDatasetsFailure(t *testing.T) {
	f := newFixture(t)
	f.manager.refreshErr = fmt.Errorf("download failed")

	rec := f.request(t, http.MethodGet, "/backup/update-tgf-datasets", "ZIMMERMAN")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "Failed to download datasets.", body["result"])
}

func TestForceUpdate(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodGet, "/backup/force-update-tgf-dataset/gf_results", "ZIMMERMAN")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"gf_results"}, f.manager.refreshCalls)
}

func TestForceUpdateUnknownDataset(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodGet, "/backup/force-update-tgf-dataset/unknown", "ZIMMERMAN")
	require.Equal(t, http.StatusNotFound, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "Dataset unknown not found in our Global Fund datasets!", body["result"])
}

func TestDatasetPagination(t *testing.T) {
	f := newFixture(t)
	seed(t, f.store, "gf_results", 25)

	rec := f.request(t, http.MethodGet, "/backup/dataset/gf_results?page=2&page_size=10", "ZIMMERMAN")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	result := body["result"].(map[string]any)
	assert.Equal(t, float64(2), result["page"])
	assert.Equal(t, float64(10), result["page_size"])
	assert.Equal(t, float64(25), result["total_rows"])
	assert.Len(t, result["data"], 10)
}

func TestDatasetDefaults(t *testing.T) {
	f := newFixture(t)
	seed(t, f.store, "gf_results", 25)

	rec := f.request(t, http.MethodGet, "/backup/dataset/gf_results", "ZIMMERMAN")
	require.Equal(t, http.StatusOK, rec.Code)

	result := decode(t, rec)["result"].(map[string]any)
	assert.Equal(t, float64(1), result["page"])
	assert.Equal(t, float64(10), result["page_size"])
}

func TestDatasetNotFound(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodGet, "/backup/dataset/missing", "ZIMMERMAN")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSampleData(t *testing.T) {
	f := newFixture(t)
	seed(t, f.store, "gf_results", 30)

	rec := f.request(t, http.MethodGet, "/backup/sample-data/gf_results", "ZIMMERMAN")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Len(t, body["result"], 10)
}

func TestSampleDataNotFound(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodGet, "/backup/sample-data/missing", "ZIMMERMAN")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsOutsideAuthGuard(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
