package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/RunnerOS/backend/internal/domain/renderer"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/domain/resource"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/sandbox"
)

type testServer struct {
	router    *gin.Engine
	sandboxes *sandbox.Manager
	metrics   *monitoring.Metrics
}

func newTestServer(t *testing.T, config sandbox.Config) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	metrics := monitoring.NewMetrics()
	registry := renderer.NewRegistry(renderer.NewAssembler(""), zap.NewNop()).WithMetrics(metrics)
	require.NoError(t, renderer.RegisterBuiltins(registry))

	catalog, err := resource.NewCatalog(resource.Manifest{
		Frameworks: []resource.FrameworkEntry{{
			Name:     "brython",
			Language: "python",
			Headers:  []resource.HeaderEntry{{URI: "https://cdn.example/brython.js"}},
		}},
	}, fstest.MapFS{})
	require.NoError(t, err)

	sandboxes := sandbox.NewManager(registry, config,
		sandbox.WithCatalog(catalog),
		sandbox.WithMetrics(metrics),
	)
	t.Cleanup(func() { sandboxes.Close() })

	router := gin.New()
	router.Use(monitoring.Middleware(metrics))
	NewHandlers(registry, sandboxes, zap.NewNop()).Register(router)
	NewMetricsAggregator(metrics).Register(router)

	return &testServer{router: router, sandboxes: sandboxes, metrics: metrics}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestRoot(t *testing.T) {
	s := newTestServer(t, sandbox.DefaultConfig())

	w := s.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"online","service":"Runner Service (Go)","version":"0.1.0"}`, w.Body.String())
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, sandbox.DefaultConfig())

	w := s.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","renderers":4,"sandboxes":0,"frameworks":["brython"]}`, w.Body.String())
}

func TestListRenderers(t *testing.T) {
	s := newTestServer(t, sandbox.DefaultConfig())

	w := s.do(http.MethodGet, "/renderers", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"languages":["coffeescript","html","javascript","python"],"frameworks":["brython"]}`, w.Body.String())
}

func TestRender(t *testing.T) {
	s := newTestServer(t, sandbox.DefaultConfig())

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{
			name:       "javascript",
			body:       `{"language":"javascript","content":{"default":"run()"}}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "empty content renders an empty body",
			body:       `{"language":"coffeescript","content":{}}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "unknown language",
			body:       `{"language":"brainfuck","content":{"default":"+"}}`,
			wantStatus: http.StatusNotFound,
			wantError:  "no renderer registered",
		},
		{
			name:       "missing language",
			body:       `{"content":{"default":"run()"}}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed body",
			body:       `{"language":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown slot",
			body:       `{"language":"html","content":{"scss":"body {}"}}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown catalog framework",
			body:       `{"language":"python","content":{"default":"1"},"catalog_frameworks":["skulpt"]}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "descriptor without content or uri",
			body:       `{"language":"python","content":{"default":"1"},"frameworks":[{"kind":"header","framework":"python"}]}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid descriptor kind",
			body:       `{"language":"python","content":{"default":"1"},"libraries":[{"kind":"plugin","uri":"x.js"}]}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/render", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			if tt.wantError != "" {
				var body map[string]string
				decode(t, w, &body)
				assert.Equal(t, tt.wantError, body["error"])
			}
		})
	}
}

func TestRenderUnknownLanguageNamesIt(t *testing.T) {
	s := newTestServer(t, sandbox.DefaultConfig())

	w := s.do(http.MethodPost, "/render", `{"language":"brainfuck","content":{"default":"+"}}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"no renderer registered","language":"brainfuck"}`, w.Body.String())
	assert.Equal(t, int64(1), s.metrics.Snapshot().FailedRenders)
}

func TestRenderJavaScriptResponse(t *testing.T) {
	s := newTestServer(t, sandbox.DefaultConfig())

	w := s.do(http.MethodPost, "/render", `{"language":"javascript","content":{"default":"run()"}}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp RenderResponse
	decode(t, w, &resp)
	assert.Equal(t, renderer.JavaScript, resp.Language)
	assert.Contains(t, resp.Document, "<body>\n<script>run()</script>\n</body>")
	assert.Equal(t, 1, resp.Summary.Scripts)
	assert.Equal(t, len(resp.Document), resp.Summary.Bytes)
}

func TestRenderWithCatalogFramework(t *testing.T) {
	s := newTestServer(t, sandbox.DefaultConfig())

	w := s.do(http.MethodPost, "/render", `{
		"language": "python",
		"content": {"default": "print('hi')"},
		"catalog_frameworks": ["brython"],
		"frameworks": [{"kind": "header", "framework": "python", "content": "var runner = {};"}]
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp RenderResponse
	decode(t, w, &resp)
	assert.Contains(t, resp.Document,
		"<script src=\"https://cdn.example/brython.js\"></script>\n<script>\nvar runner = {};\n</script>\n<script type=\"text/python\">")
	assert.Equal(t, []string{"https://cdn.example/brython.js"}, resp.Summary.ExternalScripts)
	assert.Equal(t, 3, resp.Summary.Scripts)
}

func TestRenderAsHTML(t *testing.T) {
	s := newTestServer(t, sandbox.DefaultConfig())

	w := s.do(http.MethodPost, "/render?format=html", `{"language":"javascript","content":{"default":"run()"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "<!DOCTYPE html>"))
}

func TestRenderContentTooLarge(t *testing.T) {
	s := newTestServer(t, sandbox.DefaultConfig())

	big := strings.Repeat("a", MaxContentSize+1)
	body, err := json.Marshal(RenderRequest{
		Language: renderer.JavaScript,
		Content:  resource.EditorContent{resource.SlotDefault: big},
	})
	require.NoError(t, err)

	w := s.do(http.MethodPost, "/render", string(body))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRenderBodyTooLarge(t *testing.T) {
	s := newTestServer(t, sandbox.DefaultConfig())

	var b bytes.Buffer
	b.WriteString(`{"language":"javascript","libraries":[`)
	for b.Len() <= MaxBodySize {
		b.WriteString(`{"kind":"library","uri":"lib.js"},`)
	}
	b.WriteString(`{"kind":"library","uri":"lib.js"}]}`)

	w := s.do(http.MethodPost, "/render", b.String())
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestPreview(t *testing.T) {
	s := newTestServer(t, sandbox.DefaultConfig())

	w := s.do(http.MethodPost, "/render/preview", `{
		"language": "html",
		"content": {"default": "<p onclick=\"boom()\">hello</p>", "javascript": "boom()"}
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp map[string]string
	decode(t, w, &resp)
	assert.Equal(t, "html", resp["language"])
	assert.Contains(t, resp["preview"], "<p>hello</p>")
	assert.NotContains(t, resp["preview"], "<script")
	assert.NotContains(t, resp["preview"], "onclick")
}

func TestMetricsEndpoints(t *testing.T) {
	s := newTestServer(t, sandbox.DefaultConfig())

	s.do(http.MethodPost, "/render", `{"language":"javascript","content":{"default":"run()"}}`)

	w := s.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `runner_renders_total{language="javascript",status="ok"} 1`)

	w = s.do(http.MethodGet, "/metrics/json", "")
	require.Equal(t, http.StatusOK, w.Code)

	var snap MetricsSnapshot
	decode(t, w, &snap)
	assert.Equal(t, int64(1), snap.Runner.TotalRenders)
	assert.Zero(t, snap.Summary.RenderFailureRate)
	assert.Empty(t, snap.Breakers)
}
