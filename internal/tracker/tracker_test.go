package tracker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/picahq/pica-gateway/internal/entities"
)

func TestLoggerTracker_NeverErrors(t *testing.T) {
	ea := entities.EventAccess{Platform: "slack", Ownership: entities.Ownership{Id: "ea1", ClientId: "client1"}}
	m := entities.NewRateLimitedMetric(&ea, "conn-key")

	if err := (LoggerTracker{}).Track(context.Background(), m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPosthogTracker_PostsCapturePayload(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := NewPosthogTracker("phc_test_key", srv.URL, 2*time.Second)

	conn := entities.Connection{
		Id:              entities.Id("conn::1"),
		Key:             "test::slack::default::abc",
		Platform:        "slack",
		PlatformVersion: "v1",
		Environment:     entities.EnvironmentTest,
		Ownership:       entities.Ownership{Id: "ea1", ClientId: "client1"},
		RecordMetadata:  entities.RecordMetadata{Version: 1},
	}
	m := entities.NewPassthroughMetric(&conn)

	if err := tr.Track(context.Background(), m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotBody["api_key"] != "phc_test_key" {
		t.Fatalf("want api_key phc_test_key, got %v", gotBody["api_key"])
	}
	if gotBody["event"] != "Called Passthrough API" {
		t.Fatalf("want event name, got %v", gotBody["event"])
	}
}

func TestLoggerTracker_TrackManyNeverErrors(t *testing.T) {
	ea := entities.EventAccess{Platform: "slack", Ownership: entities.Ownership{Id: "ea1", ClientId: "client1"}}
	ms := []entities.Metric{entities.NewRateLimitedMetric(&ea, "a"), entities.NewRateLimitedMetric(&ea, "b")}

	if err := (LoggerTracker{}).TrackMany(context.Background(), ms); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPosthogTracker_TrackManyPostsBatchPayload(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := NewPosthogTracker("phc_test_key", srv.URL, 2*time.Second)

	ea := entities.EventAccess{Platform: "slack", Ownership: entities.Ownership{Id: "ea1", ClientId: "client1"}}
	ms := []entities.Metric{entities.NewRateLimitedMetric(&ea, "a"), entities.NewRateLimitedMetric(&ea, "b")}

	if err := tr.TrackMany(context.Background(), ms); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotBody["api_key"] != "phc_test_key" {
		t.Fatalf("want api_key phc_test_key, got %v", gotBody["api_key"])
	}
	batch, ok := gotBody["batch"].([]any)
	if !ok || len(batch) != 2 {
		t.Fatalf("want a 2-element batch, got %v", gotBody["batch"])
	}
}

func TestPosthogTracker_TrackManyNoopOnEmptySlice(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := NewPosthogTracker("key", srv.URL, 2*time.Second)
	if err := tr.TrackMany(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Fatal("expected no HTTP call for an empty batch")
	}
}

func TestPosthogTracker_PropagatesNon2xxAsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := NewPosthogTracker("key", srv.URL, 2*time.Second)
	ea := entities.EventAccess{Platform: "slack", Ownership: entities.Ownership{Id: "ea1", ClientId: "client1"}}
	m := entities.NewRateLimitedMetric(&ea, "")

	if err := tr.Track(context.Background(), m); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
