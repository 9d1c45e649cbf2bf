package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/nomis52/certwatch/config"
	"github.com/nomis52/certwatch/logging"
	"github.com/nomis52/certwatch/server/handlers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const demoConfig = `
demo:
  enabled: true
  unit_duration: 1h
catalogs:
  certified_index: quay.io/me/certified:v4.20
server:
  listener:
    addr: ":9099"
  cron:
    - schedule: "0 2 * * *"
`

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "certwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	path := writeConfig(t, t.TempDir(), demoConfig)
	srv, err := New(path, config.Overrides{},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithLogCollector(logging.NewLogCollector(50)),
	)
	require.NoError(t, err)
	return srv, path
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestNew(t *testing.T) {
	srv, _ := newTestServer(t)
	assert.Equal(t, ":9099", srv.Addr())
	assert.Equal(t, "demo", srv.Provider().Name())
	assert.True(t, srv.Config().Demo.Enabled)
	assert.False(t, srv.NextRun().IsZero())
}

func TestNew_ListenAddrOption(t *testing.T) {
	path := writeConfig(t, t.TempDir(), demoConfig)
	srv, err := New(path, config.Overrides{}, WithListenAddr(":7000"),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	assert.Equal(t, ":7000", srv.Addr())
}

func TestNew_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := New(filepath.Join(dir, "missing.yaml"), config.Overrides{})
	assert.Error(t, err)

	path := writeConfig(t, dir, "demo:\n  enabled: true\nserver:\n  cron:\n    - schedule: \"whenever\"\n")
	_, err = New(path, config.Overrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating cron triggers")
}

func TestServer_CampaignLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	w := do(t, h, http.MethodGet, "/health")
	assert.Equal(t, "ok", w.Body.String())
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	w = do(t, h, http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"active":false`)

	w = do(t, h, http.MethodPost, "/api/test/start")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"Test started"`)

	w = do(t, h, http.MethodPost, "/api/test/start")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"test already running"}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/api/status")
	var status map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, true, status["active"])
	assert.Equal(t, 22.0, status["total"])

	w = do(t, h, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "campaign_active 1")
	assert.Contains(t, w.Body.String(), "campaign_units_total 22")

	w = do(t, h, http.MethodPost, "/api/test/stop")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodGet, "/api/events")
	var events handlers.EventsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	var messages []string
	for _, e := range events.Events {
		messages = append(messages, e.Message)
	}
	assert.Contains(t, messages, "test started")
	assert.Contains(t, messages, "test start rejected")
	assert.Contains(t, messages, "test stopped")
}

func TestServer_QueryRoutes(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	w := do(t, h, http.MethodGet, "/api/reports?limit=2")
	require.Equal(t, http.StatusOK, w.Code)
	var runs []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &runs))
	require.Len(t, runs, 2)
	runID := runs[0]["run_id"].(string)

	w = do(t, h, http.MethodGet, "/api/reports/"+runID)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"tested":22`)

	w = do(t, h, http.MethodGet, "/api/reports/report_1999-01-01_00-00-00_UTC")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodGet, "/api/results/latest")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"run_id":"`+runID+`"`)

	w = do(t, h, http.MethodGet, "/api/completed")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodGet, "/api/export/csv?run_id="+runID)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))

	w = do(t, h, http.MethodGet, "/api/export/combined?run_ids="+runID+","+runs[1]["run_id"].(string))
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodGet, "/api/catalogs")
	assert.Contains(t, w.Body.String(), `"certified":{"index":"quay.io/me/certified:v4.20","source":"override"}`)

	w = do(t, h, http.MethodGet, "/api/live-output")
	assert.JSONEq(t, `{"output":""}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/config")
	assert.Equal(t, "text/yaml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "enabled: true")
}

func TestServer_Reload(t *testing.T) {
	srv, path := newTestServer(t)
	h := srv.Handler()
	before := srv.Provider()

	require.NoError(t, os.WriteFile(path, []byte("demo:\n  enabled: true\n  unit_duration: 2m\n"), 0o600))
	w := do(t, h, http.MethodPost, "/reload")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotSame(t, before, srv.Provider())

	w = do(t, h, http.MethodGet, "/api/catalogs")
	assert.Contains(t, w.Body.String(), `"source":"fallback"`)

	current := srv.Provider()
	require.NoError(t, os.WriteFile(path, []byte("remote:\n  host: \"\"\n"), 0o600))
	w = do(t, h, http.MethodPost, "/reload")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Same(t, current, srv.Provider(), "failed reload keeps the previous provider")
}

func TestServer_ReloadKeepsDemoSession(t *testing.T) {
	srv, path := newTestServer(t)
	h := srv.Handler()

	w := do(t, h, http.MethodPost, "/api/test/start")
	require.Equal(t, http.StatusOK, w.Code)
	before := srv.Provider()

	// Same demo settings, different listener and cron list.
	require.NoError(t, os.WriteFile(path, []byte(`
demo:
  enabled: true
  unit_duration: 1h
catalogs:
  certified_index: quay.io/me/certified:v4.20
`), 0o600))
	w = do(t, h, http.MethodPost, "/reload")
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Same(t, before, srv.Provider())
	assert.Empty(t, srv.Config().Server.Cron)

	w = do(t, h, http.MethodGet, "/api/status")
	assert.Contains(t, w.Body.String(), `"active":true`)
}

func TestRequestLogging_KeepsCallerID(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}
