package template

import (
	"testing"

	"github.com/picahq/pica-gateway/internal/entities"
)

func TestRenderOAuthDefinition_LeavesNonTemplatedStringsAlone(t *testing.T) {
	e := New()
	def := entities.ConnectionOAuthDefinition{
		Compute: map[string]any{"url": "https://example.com/authorize"},
	}
	out, err := e.RenderOAuthDefinition(def, map[string]any{"clientId": "abc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Compute["url"] != "https://example.com/authorize" {
		t.Fatalf("unexpected rendered value: %v", out.Compute["url"])
	}
}

func TestRenderOAuthDefinition_RendersTopLevelField(t *testing.T) {
	e := New()
	def := entities.ConnectionOAuthDefinition{
		Compute: map[string]any{"url": "https://example.com?client_id={{.clientId}}"},
	}
	out, err := e.RenderOAuthDefinition(def, map[string]any{"clientId": "abc123"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "https://example.com?client_id=abc123"
	if out.Compute["url"] != want {
		t.Fatalf("want %q, got %q", want, out.Compute["url"])
	}
}

func TestRenderOAuthDefinition_PayloadHelperReachesNestedField(t *testing.T) {
	e := New()
	def := entities.ConnectionOAuthDefinition{
		Compute: map[string]any{"env": "{{ payload \"metadata.environment\" }}"},
	}
	payload := map[string]any{"metadata": map[string]any{"environment": "test"}}
	out, err := e.RenderOAuthDefinition(def, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Compute["env"] != "test" {
		t.Fatalf("want \"test\", got %v", out.Compute["env"])
	}
}

func TestRenderOAuthDefinition_RendersNestedMapsAndSlices(t *testing.T) {
	e := New()
	def := entities.ConnectionOAuthDefinition{
		Compute: map[string]any{
			"headers": map[string]any{"Authorization": "Bearer {{.token}}"},
			"scopes":  []any{"read", "{{.extraScope}}"},
		},
	}
	payload := map[string]any{"token": "tok", "extraScope": "write"}
	out, err := e.RenderOAuthDefinition(def, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	headers := out.Compute["headers"].(map[string]any)
	if headers["Authorization"] != "Bearer tok" {
		t.Fatalf("unexpected header: %v", headers["Authorization"])
	}
	scopes := out.Compute["scopes"].([]any)
	if scopes[1] != "write" {
		t.Fatalf("unexpected scope: %v", scopes[1])
	}
}

func TestRenderOAuthDefinition_EmptyComputeIsNoop(t *testing.T) {
	e := New()
	def := entities.ConnectionOAuthDefinition{Id: "cod::1"}
	out, err := e.RenderOAuthDefinition(def, map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Id != def.Id {
		t.Fatalf("definition identity should be preserved")
	}
}
