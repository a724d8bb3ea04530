package httpserver

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/helixir/arxiv-collector/internal/observability"
)

func TestRequestIDMiddleware_GeneratesID(t *testing.T) {
	var captured string

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestIDMiddleware)
	r.Get("/test", func(w http.ResponseWriter, r *http.Request) {
		captured = observability.RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/test", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if captured == "" {
		t.Fatal("expected a request ID in context")
	}
	if got := rr.Header().Get(requestIDHeader); got != captured {
		t.Errorf("expected header %q, got %q", captured, got)
	}
}

func TestRequestIDMiddleware_HonoursIncomingID(t *testing.T) {
	var captured string

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestIDMiddleware)
	r.Get("/test", func(w http.ResponseWriter, r *http.Request) {
		captured = observability.RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set(requestIDHeader, "caller-42")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if captured != "caller-42" {
		t.Errorf("expected caller-42, got %q", captured)
	}
	if rr.Header().Get(requestIDHeader) != "caller-42" {
		t.Errorf("expected echoed request ID")
	}
}

func TestRequestLogMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	r := chi.NewRouter()
	r.Use(requestLogMiddleware(logger))
	r.Get("/teapot", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest("GET", "/teapot", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	line := buf.String()
	if !strings.Contains(line, `"status":418`) {
		t.Errorf("expected status in log line, got %s", line)
	}
	if !strings.Contains(line, `"path":"/teapot"`) {
		t.Errorf("expected path in log line, got %s", line)
	}
}

func TestJSONContentTypeMiddleware(t *testing.T) {
	handler := jsonContentTypeMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %s", ct)
	}
}
