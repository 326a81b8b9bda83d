package proxy

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminConfigGet(t *testing.T) {
	p, _, _, _ := newTestRouter(t, nil)

	admin := httptest.NewServer(p.adminHandler())
	t.Cleanup(admin.Close)

	resp, err := http.Get(admin.URL + "/api/config")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var cfg Config
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cfg))
	assert.Len(t, cfg.VirtualHosts, 2)
}

func TestAdminRoutes(t *testing.T) {
	p, _, _, _ := newTestRouter(t, nil)

	admin := httptest.NewServer(p.adminHandler())
	t.Cleanup(admin.Close)

	resp, err := http.Get(admin.URL + "/api/routes")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summaries []routeSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summaries))
	require.Len(t, summaries, 2)

	byHost := make(map[string]routeSummary)
	for _, s := range summaries {
		byHost[s.Hostname] = s
	}
	assert.False(t, byHost["copilot.test"].HealthCheck)
	assert.True(t, byHost["topology.test"].HealthCheck)
}

func TestAdminConfigPut(t *testing.T) {
	p, edge, copilot, topology := newTestRouter(t, nil)

	admin := httptest.NewServer(p.adminHandler())
	t.Cleanup(admin.Close)

	// Repoint copilot.test at the topology upstream
	newCfg := &Config{
		VirtualHosts: []*VirtualHost{
			{Hostname: "copilot.test", Upstream: topology.srv.URL},
		},
	}
	body, err := json.Marshal(newCfg)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPut, admin.URL+"/api/config", bytes.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The route table swapped: copilot.test now lands on the other app
	resp = edgeRequest(t, edge, "copilot.test", "Mozilla/5.0", nil)
	reply, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "topology", string(reply))
	assert.Equal(t, 0, copilot.hitCount())

	// topology.test lost its binding in the new config
	resp = edgeRequest(t, edge, "topology.test", "Mozilla/5.0", nil)
	assert.Equal(t, http.StatusMisdirectedRequest, resp.StatusCode)
}

func TestAdminConfigPutRejectsInvalid(t *testing.T) {
	p, _, _, _ := newTestRouter(t, nil)

	admin := httptest.NewServer(p.adminHandler())
	t.Cleanup(admin.Close)

	req, err := http.NewRequest(http.MethodPut, admin.URL+"/api/config", bytes.NewReader([]byte(`{"virtual_hosts":[]}`)))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// The previous route table is untouched
	table := p.routes.Load()
	assert.Len(t, *table, 2)
}

func TestAdminConfigPutPersists(t *testing.T) {
	up := newRecordingUpstream(t, "app")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
virtual_hosts:
  - hostname: app.test
    upstream: `+up.srv.URL+`
`), 0644))

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	p, err := NewServerFromConfigFile(path, WithLogger(quiet))
	require.NoError(t, err)

	admin := httptest.NewServer(p.adminHandler())
	t.Cleanup(admin.Close)

	newCfg := &Config{
		VirtualHosts: []*VirtualHost{
			{Hostname: "renamed.test", Upstream: up.srv.URL},
		},
	}
	body, err := json.Marshal(newCfg)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPut, admin.URL+"/api/config", bytes.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(saved), "renamed.test")
}

func TestAdminHealthz(t *testing.T) {
	p, _, _, _ := newTestRouter(t, nil)

	admin := httptest.NewServer(p.adminHandler())
	t.Cleanup(admin.Close)

	resp, err := http.Get(admin.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok\n", string(body))
}

func TestAdminMetrics(t *testing.T) {
	p, edge, _, _ := newTestRouter(t, nil)

	admin := httptest.NewServer(p.adminHandler())
	t.Cleanup(admin.Close)

	// Generate some traffic so the counters exist
	edgeRequest(t, edge, "copilot.test", "Mozilla/5.0", nil)

	resp, err := http.Get(admin.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "edgeproxy_configured_bindings")
	assert.Contains(t, string(body), "edgeproxy_requests_total")
}
