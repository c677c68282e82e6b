package httpapi

import (
	"net/http/httptest"
	"testing"

	"github.com/picahq/pica-gateway/internal/config"
)

func newTestServer() *Server {
	return &Server{Config: &config.Config{
		EventAccessPassword:       "pw",
		AuthHeader:                "x-pica-secret",
		ShowAllEnvironmentsHeader: "x-pica-show-all-environments",
		ConnectionKeyHeader:       "x-pica-connection-key",
		PassthroughActionIdHeader: "x-pica-action-id",
	}}
}

func TestRoutes_Healthz(t *testing.T) {
	s := newTestServer()
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/healthz", nil)

	s.Routes().ServeHTTP(w, r)

	if w.Code != 200 {
		t.Fatalf("want 200, got %d", w.Code)
	}
}

func TestRoutes_UnknownPathIsNotFound(t *testing.T) {
	s := newTestServer()
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/does-not-exist", nil)

	s.Routes().ServeHTTP(w, r)

	if w.Code != 404 {
		t.Fatalf("want 404, got %d", w.Code)
	}
}

func TestRoutes_ProtectedRouteRejectsMissingAccessKey(t *testing.T) {
	s := newTestServer()
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/connections", nil)

	s.Routes().ServeHTTP(w, r)

	if w.Code != 401 {
		t.Fatalf("want 401 without an auth header, got %d", w.Code)
	}
}

func TestRoutes_ProtectedPassthroughRejectsMissingAccessKeyBeforeConnectionLookup(t *testing.T) {
	s := newTestServer()
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/passthrough/some/path", nil)

	s.Routes().ServeHTTP(w, r)

	if w.Code != 401 {
		t.Fatalf("want 401 without an auth header, got %d", w.Code)
	}
}

func TestRoutes_EventCallbackCatchAllAcknowledgesUnauthenticated(t *testing.T) {
	s := newTestServer()
	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/v1/event-callbacks/some-source", nil)

	s.Routes().ServeHTTP(w, r)

	if w.Code != 200 {
		t.Fatalf("want 200, got %d", w.Code)
	}
}
