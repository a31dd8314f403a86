package server

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/RunnerOS/backend/internal/domain/renderer"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/domain/resource"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/sandbox"
)

func newServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	srv, err := New(cfg, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	return srv
}

func TestHealth(t *testing.T) {
	srv := newServer(t, config.Default())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","renderers":4,"sandboxes":0,"frameworks":[]}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestLoadsFrameworkManifest(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "frameworks.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte(`
frameworks:
  - name: brython
    language: python
    headers:
      - uri: https://cdn.example/brython.js
`), 0o644))

	cfg := config.Default()
	cfg.Frameworks.Manifest = manifest
	srv := newServer(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/renderers", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"frameworks":["brython"]`)
}

func TestMissingManifestIsFatal(t *testing.T) {
	cfg := config.Default()
	cfg.Frameworks.Manifest = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := New(cfg, logging.NewNop())
	assert.Error(t, err)
}

func TestInvalidCORSOriginIsFatal(t *testing.T) {
	cfg := config.Default()
	cfg.Server.CORSOrigins = []string{"editor.example.com"}

	_, err := New(cfg, logging.NewNop())
	assert.ErrorContains(t, err, "editor.example.com")
}

func TestCORSOriginsGuardWebSocket(t *testing.T) {
	cfg := config.Default()
	cfg.Server.CORSOrigins = []string{"https://editor.example.com"}
	srv := newServer(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/renderers", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	inst, err := srv.Sandboxes().Create(context.Background(), sandbox.Request{
		Language: renderer.JavaScript,
		Content:  resource.EditorContent{resource.SlotDefault: ""},
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/sandboxes/" + string(inst.ID) + "/runner"

	header := http.Header{}
	header.Set("Origin", "https://editor.example.com")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	conn.Close()

	conn, _, err = websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err, "devices send no origin")
	conn.Close()
}

func TestUnreachableRedisDisablesRelay(t *testing.T) {
	cfg := config.Default()
	cfg.Redis.Enabled = true
	cfg.Redis.Address = "127.0.0.1:1"
	srv := newServer(t, cfg)

	inst, err := srv.Sandboxes().Create(context.Background(), sandbox.Request{
		Language: renderer.JavaScript,
		Content:  resource.EditorContent{resource.SlotDefault: "1"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, inst.ID)
}

func TestGzipsLargeResponses(t *testing.T) {
	srv := newServer(t, config.Default())

	body, err := json.Marshal(map[string]interface{}{
		"language": "javascript",
		"content":  map[string]string{"default": strings.Repeat("run();\n", 2000)},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/render?format=html", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	html, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(html), "<!DOCTYPE html>"))
}

func TestRunnerWebSocket(t *testing.T) {
	cfg := config.Default()
	cfg.RateLimit.Enabled = false
	srv := newServer(t, cfg)

	inst, err := srv.Sandboxes().Create(context.Background(), sandbox.Request{
		Language: renderer.JavaScript,
		Content:  resource.EditorContent{resource.SlotDefault: "new Sphero(runner).setRGB(0, 255, 0);"},
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	header := http.Header{}
	header.Set("Accept-Encoding", "gzip")
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/sandboxes/" + string(inst.ID) + "/runner"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"command":"setRGB"`)
}

func TestScriptCommandNamesDoNotGrowMetrics(t *testing.T) {
	srv := newServer(t, config.Default())

	_, err := srv.Sandboxes().Create(context.Background(), sandbox.Request{
		Language: renderer.JavaScript,
		Content: resource.EditorContent{resource.SlotDefault: `
for (var i = 0; i < 200; i++) { runner.send({command: "c" + i}); }
new Sphero(runner).setRGB(0, 0, 255);
`},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var series []string
	for _, line := range strings.Split(w.Body.String(), "\n") {
		if strings.HasPrefix(line, "runner_commands_total{") {
			series = append(series, line)
		}
	}
	assert.ElementsMatch(t, []string{
		`runner_commands_total{command="other"} 200`,
		`runner_commands_total{command="setRGB"} 1`,
	}, series)
}
