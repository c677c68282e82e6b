// Package template renders a ConnectionOAuthDefinition's compute body
// against the request-time OAuth payload, for platforms that set
// isFullTemplateEnabled. Each string leaf in the Compute map that contains
// a "{{ ... }}" placeholder is treated as a Go template referencing the
// payload tree; gjson backs a small "payload.some.path" helper for
// platforms whose compute scripts reach into nested payload fields by
// dotted path instead of a plain template field.
package template

import (
	"bytes"
	"encoding/json"
	"strings"
	"text/template"

	"github.com/tidwall/gjson"

	"github.com/picahq/pica-gateway/internal/entities"
)

func marshalForGjson(payload map[string]any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Engine renders compute templates. It carries no state; New exists for
// symmetry with the rest of the package constructors and to leave room for
// a future cache of parsed templates.
type Engine struct{}

// New builds an Engine.
func New() *Engine { return &Engine{} }

// RenderOAuthDefinition returns a copy of def whose Compute map has every
// templated string leaf rendered against payload. Non-string leaves and
// leaves with no "{{" are returned unchanged.
func (e *Engine) RenderOAuthDefinition(def entities.ConnectionOAuthDefinition, payload map[string]any) (entities.ConnectionOAuthDefinition, error) {
	if len(def.Compute) == 0 {
		return def, nil
	}
	payloadJSON, err := marshalForGjson(payload)
	if err != nil {
		return def, err
	}
	rendered, err := e.renderValue(def.Compute, payload, payloadJSON)
	if err != nil {
		return def, err
	}
	out := def
	out.Compute, _ = rendered.(map[string]any)
	return out, nil
}

func (e *Engine) renderValue(v any, payload map[string]any, payloadJSON string) (any, error) {
	switch val := v.(type) {
	case string:
		if !strings.Contains(val, "{{") {
			return val, nil
		}
		return e.renderString(val, payload, payloadJSON)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			rv, err := e.renderValue(inner, payload, payloadJSON)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			rv, err := e.renderValue(inner, payload, payloadJSON)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}

func (e *Engine) renderString(tmplSrc string, payload map[string]any, payloadJSON string) (string, error) {
	funcs := template.FuncMap{
		"payload": func(path string) string {
			return gjson.Get(payloadJSON, path).String()
		},
	}
	tmpl, err := template.New("compute").Funcs(funcs).Parse(tmplSrc)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, payload); err != nil {
		return "", err
	}
	return buf.String(), nil
}
