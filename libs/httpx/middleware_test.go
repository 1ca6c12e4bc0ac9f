package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWithCORS_Preflight(t *testing.T) {
	h := WithCORS(CORSPolicy{
		AllowedOrigins: []string{"https://book.example.com"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type", " Idempotency-Key "},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight must not reach handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/public/book", nil)
	req.Header.Set("Origin", "https://book.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://book.example.com" {
		t.Fatalf("unexpected allow origin %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, Idempotency-Key" {
		t.Fatalf("unexpected allow headers %q", got)
	}
}

func TestWithCORS_UnknownOriginPassesThrough(t *testing.T) {
	called := false
	h := WithCORS(CORSPolicy{AllowedOrigins: []string{"https://book.example.com"}})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if !called || rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("expected passthrough without CORS headers")
	}
}

func TestWithRequestID(t *testing.T) {
	var seen string
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}), WithRequestID)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if seen != "req-42" || rr.Header().Get(RequestIDHeader) != "req-42" {
		t.Fatalf("expected request id echo, got ctx=%q header=%q", seen, rr.Header().Get(RequestIDHeader))
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || seen == "req-42" {
		t.Fatalf("expected generated request id, got %q", seen)
	}
}

func TestWriteError_IncludesRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(ContextWithRequestID(req.Context(), "req-7"))
	rr := httptest.NewRecorder()
	WriteError(rr, req, http.StatusBadRequest, "bad date")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if body := rr.Body.String(); body != "{\"error\":\"bad date\",\"request_id\":\"req-7\"}\n" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestWithCORS_ExposesHeadersOnSimpleRequest(t *testing.T) {
	h := WithCORS(CORSPolicy{
		AllowedOrigins: []string{"*"},
		ExposedHeaders: []string{"X-Request-Id", "Retry-After"},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/slots", nil)
	req.Header.Set("Origin", "https://Any.Example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard origin, got %q", got)
	}
	if got := rr.Header().Get("Access-Control-Expose-Headers"); got != "X-Request-Id, Retry-After" {
		t.Fatalf("unexpected expose headers %q", got)
	}
	if rr.Header().Get("Access-Control-Allow-Methods") != "" {
		t.Fatal("allow methods belongs to preflight responses only")
	}
}

func TestWithRecover(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}), WithRequestID, WithRecover(logger))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/public/book", nil)
	req.Header.Set(RequestIDHeader, "req-panic")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "internal error" || body["request_id"] != "req-panic" {
		t.Fatalf("unexpected body %v", body)
	}
	if !strings.Contains(logs.String(), "handler panic") {
		t.Fatalf("expected panic to be logged, got %q", logs.String())
	}
}

func TestWithAccessLog_LevelFollowsStatus(t *testing.T) {
	cases := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusConflict, "WARN"},
		{http.StatusBadGateway, "ERROR"},
	}
	for _, tc := range cases {
		var logs bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&logs, nil))
		h := WithAccessLog(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = io.WriteString(w, "x")
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/quota", nil))

		var entry map[string]any
		if err := json.Unmarshal(logs.Bytes(), &entry); err != nil {
			t.Fatalf("decode log: %v", err)
		}
		if entry["level"] != tc.level {
			t.Fatalf("status %d: expected level %s, got %v", tc.status, tc.level, entry["level"])
		}
		if entry["status"] != float64(tc.status) || entry["bytes"] != float64(1) {
			t.Fatalf("unexpected entry %v", entry)
		}
	}
}

func TestWithBodyLimit(t *testing.T) {
	h := WithBodyLimit(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err == nil {
			t.Fatal("expected body limit error")
		}
	}))
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"date":"2026-03-02"}`))
	h.ServeHTTP(httptest.NewRecorder(), req)
}
