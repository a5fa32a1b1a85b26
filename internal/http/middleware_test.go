package http

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	var sawLogger bool
	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawLogger = LoggerFromContext(r.Context()) != nil
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	req.Header.Set(requestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !sawLogger {
		t.Fatalf("expected request logger in handler context")
	}
	if got := rec.Header().Get(requestIDHeader); got != "req-1" {
		t.Fatalf("expected request id to be echoed, got %q", got)
	}
	line := buf.String()
	for _, want := range []string{"request_id=req-1", "status=418", "path=/sessions"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in log output %q", want, line)
		}
	}
}

func TestRequestLoggerDefaultsStatus(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler := RequestLogger(slog.New(slog.NewTextHandler(&buf, nil)))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}
	if !strings.Contains(buf.String(), "status=200") {
		t.Fatalf("expected implicit 200 in log output %q", buf.String())
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	handler := RateLimit(0.5, 1, quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	serveFrom := func(remote, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}
	serve := func(path string) *httptest.ResponseRecorder {
		return serveFrom("192.0.2.10:5000", path)
	}

	if rec := serve("/sessions"); rec.Code != http.StatusNoContent {
		t.Fatalf("expected first request to pass, got %d", rec.Code)
	}
	rec := serve("/sessions")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("expected Retry-After 2, got %q", got)
	}
	if !strings.Contains(rec.Body.String(), "RATE_LIMITED") {
		t.Fatalf("expected error code in body %q", rec.Body.String())
	}
	if rec := serve("/healthz"); rec.Code != http.StatusNoContent {
		t.Fatalf("expected health check to bypass the limiter, got %d", rec.Code)
	}
	if rec := serveFrom("192.0.2.11:5000", "/sessions"); rec.Code != http.StatusNoContent {
		t.Fatalf("expected other clients to keep their own budget, got %d", rec.Code)
	}
}
