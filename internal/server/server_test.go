package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/loopviz/internal/analyzer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type failingParser struct{ err error }

func (p failingParser) Parse(ctx context.Context, code string) (*analyzer.Response, error) {
	return nil, p.err
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestParse_ReturnsAnalysis(t *testing.T) {
	s := New(":0", analyzer.New())
	body := `{"code": "arr = [1, 2]\nfor x in arr:\n    y = x + 1\n    print(y)\n"}`

	w := do(t, s.Handler(), http.MethodPost, "/api/parse", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp, err := analyzer.Decode(w.Body.Bytes())
	require.NoError(t, err)
	assert.True(t, resp.HasLoop)
	assert.Equal(t, "arr", resp.Target)
	assert.Equal(t, map[string][]string{"0": {"2"}, "1": {"3"}}, resp.IterationOutputs)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestParse_EmptyCode(t *testing.T) {
	s := New(":0", analyzer.New())
	w := do(t, s.Handler(), http.MethodPost, "/api/parse", `{}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"structures": [], "hasLoop": false}`, w.Body.String())
}

func TestParse_SyntaxErrorIsOK(t *testing.T) {
	s := New(":0", analyzer.New())
	w := do(t, s.Handler(), http.MethodPost, "/api/parse", `{"code": "x = ("}`)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "Syntax Error")
}

func TestParse_BadRequest(t *testing.T) {
	s := New(":0", analyzer.New())
	for _, body := range []string{"", "not json", `{"code": 5}`} {
		w := do(t, s.Handler(), http.MethodPost, "/api/parse", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %q", body)
	}
}

func TestParse_AnalyzerFailure(t *testing.T) {
	s := New(":0", failingParser{err: errors.New("boom")})
	w := do(t, s.Handler(), http.MethodPost, "/api/parse", `{"code": "x = 1"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error": "boom"}`, w.Body.String())
}

func TestParse_TooLarge(t *testing.T) {
	s := New(":0", analyzer.New(analyzer.WithMaxSize(16)), WithMaxSourceSize(16))
	w := do(t, s.Handler(), http.MethodPost, "/api/parse", `{"code": "x = 12345678901234567890"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestHealth(t *testing.T) {
	s := New(":0", analyzer.New())
	w := do(t, s.Handler(), http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "ok", "message": "Server is running"}`, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
}

func TestRequestID_Propagated(t *testing.T) {
	s := New(":0", analyzer.New())
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestRateLimit(t *testing.T) {
	s := New(":0", analyzer.New(), WithRateLimit(0.001, 2))
	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, do(t, s.Handler(), http.MethodGet, "/api/health", "").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, do(t, s.Handler(), http.MethodGet, "/api/health", "").Code)
}

func TestCORSPreflight(t *testing.T) {
	s := New(":0", analyzer.New())
	w := do(t, s.Handler(), http.MethodOptions, "/api/parse", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetrics(t *testing.T) {
	s := New(":0", analyzer.New())
	do(t, s.Handler(), http.MethodPost, "/api/parse", `{"code": "x = 1"}`)
	do(t, s.Handler(), http.MethodGet, "/api/health", "")

	w := do(t, s.Handler(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `loopviz_http_requests_total{method="POST",route="/api/parse",status="200"} 1`)
	assert.Contains(t, body, `loopviz_analyzer_parse_duration_seconds_count{outcome="ok"} 1`)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := New(ln.Addr().String(), analyzer.New())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	client := analyzer.NewClient("http://"+ln.Addr().String(), time.Second)
	require.Eventually(t, func() bool {
		return client.Health(context.Background()) == nil
	}, 2*time.Second, 20*time.Millisecond)

	resp, err := client.Parse(context.Background(), "arr = [1, 2, 3]")
	require.NoError(t, err)
	require.Len(t, resp.Structures, 1)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
