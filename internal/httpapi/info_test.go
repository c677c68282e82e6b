package httpapi

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func TestHealthz_ReturnsOkStatus(t *testing.T) {
	s := &Server{}
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/healthz", nil)

	s.Healthz(w, r)

	if w.Code != 200 {
		t.Fatalf("want 200, got %d", w.Code)
	}
	var body healthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if body.Status != "ok" {
		t.Fatalf("want status ok, got %q", body.Status)
	}
	if body.ServerTime == "" {
		t.Fatal("want a non-empty server time")
	}
}

func TestNotFound_RendersApperrShape(t *testing.T) {
	s := &Server{}
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/nope", nil)

	s.NotFound(w, r)

	if w.Code != 404 {
		t.Fatalf("want 404, got %d", w.Code)
	}
}
