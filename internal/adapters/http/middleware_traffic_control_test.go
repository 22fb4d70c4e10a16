package httpadapter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/knowledge-assistant/internal/config"
)

func decodeErrorBody(t *testing.T, res *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", res.Body.String(), err)
	}
	return body
}

func TestRateLimitedAskIsTagged(t *testing.T) {
	handler := newTestHandler(config.Config{HTTPRateLimitRPS: 0.5, HTTPRateLimitBurst: 1})

	ask := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"query":"What is Python?"}`))
		req.Header.Set("Content-Type", "application/json")
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		return res
	}

	if res := ask(); res.Code != http.StatusOK {
		t.Fatalf("first ask expected 200, got %d: %s", res.Code, res.Body.String())
	}
	res := ask()
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("second ask expected 429, got %d", res.Code)
	}
	if got := res.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("Retry-After = %q, want 2", got)
	}
	if body := decodeErrorBody(t, res); body["code"] != "rate_limited" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestBackpressureRejectsWhileSaturated(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	first := make(chan int, 1)

	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusNoContent)
	})
	handler := backpressureMiddleware(slow, 1, 20*time.Millisecond)

	go func() {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/ingest", nil))
		first <- res.Code
	}()
	<-entered

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/query?q=python", nil))
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while the only slot is held, got %d", res.Code)
	}
	if body := decodeErrorBody(t, res); body["code"] != "overloaded" {
		t.Fatalf("unexpected body %v", body)
	}

	close(release)
	select {
	case code := <-first:
		if code != http.StatusNoContent {
			t.Fatalf("held request expected 204, got %d", code)
		}
	case <-time.After(time.Second):
		t.Fatalf("held request never finished")
	}
}

func TestRequestIDIsEchoedOrGenerated(t *testing.T) {
	handler := newTestHandler(config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-42")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if got := res.Header().Get(requestIDHeader); got != "req-42" {
		t.Fatalf("expected echoed request id, got %q", got)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}
}
