// Package dispatch implements spec.md §4.4's passthrough dispatcher: it
// resolves the upstream ConnectionModelDefinition for a request, decrypts
// the connection's stored credential, forwards the call through an
// Extractor, and relays the response back with header translation. The
// actual upstream-call construction/auth-injection logic (the "extractor")
// is out of scope per spec.md's Non-goals — HTTPExtractor here is a bare
// passthrough forwarder; UnifiedExtractor is a documented stub for the
// in-scope-elsewhere unified-model request builder.
package dispatch

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/textproto"
	"time"

	"github.com/picahq/pica-gateway/internal/entities"
)

// UpstreamResponse is everything the dispatcher needs back from an
// Extractor call to relay a response and emit metrics/events.
type UpstreamResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Extractor executes one upstream call against dest, carrying headers,
// query params, and body through, authenticated using secret (the
// connection's decrypted credential payload).
type Extractor interface {
	Execute(ctx context.Context, dest entities.Destination, secret []byte, headers http.Header, query map[string]string, body []byte) (*UpstreamResponse, error)
}

// HTTPExtractor is the Passthrough-action implementation: it builds the
// upstream URL from dest.Action.Path against a per-platform base URL table
// and forwards the request byte-for-byte, injecting the decrypted secret
// as an Authorization bearer token — the minimal auth scheme every
// passthrough platform in spec.md's examples shares.
type HTTPExtractor struct {
	client       *http.Client
	baseURLOf    func(platform string) string
	stripHeaders map[string]bool
}

// NewHTTPExtractor builds an HTTPExtractor with the given timeout,
// resolving a platform's base URL via baseURLOf. stripHeaders names the
// gateway's own inbound headers (auth, connection-key, action-id,
// show-all-environments, ...) that must never reach the upstream
// platform verbatim, per spec.md §4.4 step 1.
func NewHTTPExtractor(timeout time.Duration, baseURLOf func(platform string) string, stripHeaders ...string) *HTTPExtractor {
	strip := make(map[string]bool, len(stripHeaders)+1)
	strip[textproto.CanonicalMIMEHeaderKey("Authorization")] = true
	for _, h := range stripHeaders {
		if h == "" {
			continue
		}
		strip[textproto.CanonicalMIMEHeaderKey(h)] = true
	}
	return &HTTPExtractor{client: &http.Client{Timeout: timeout}, baseURLOf: baseURLOf, stripHeaders: strip}
}

func (e *HTTPExtractor) Execute(ctx context.Context, dest entities.Destination, secret []byte, headers http.Header, query map[string]string, body []byte) (*UpstreamResponse, error) {
	base := e.baseURLOf(dest.Platform)
	url := base + dest.Action.Path
	if len(query) > 0 {
		q := make([]string, 0, len(query))
		for k, v := range query {
			q = append(q, k+"="+v)
		}
		url += "?" + joinAmp(q)
	}

	req, err := http.NewRequestWithContext(ctx, dest.Action.Method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, vs := range headers {
		if e.stripHeaders[textproto.CanonicalMIMEHeaderKey(k)] {
			continue
		}
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if len(secret) > 0 {
		req.Header.Set("Authorization", "Bearer "+string(secret))
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &UpstreamResponse{StatusCode: resp.StatusCode, Headers: resp.Header, Body: respBody}, nil
}

func joinAmp(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += "&" + p
	}
	return out
}

// UnifiedExtractor is a documented stub: the common-model request builder
// (translating a CommonModel CRUD call into the platform's native shape)
// is out of scope for this gateway per spec.md's Non-goals. Wiring a real
// implementation means plugging in the common-model schema compiler this
// Extractor would call before delegating to an HTTPExtractor-shaped call.
type UnifiedExtractor struct {
	inner Extractor
}

// NewUnifiedExtractor wraps inner, which is assumed to already understand
// how to turn a unified Action into an upstream call.
func NewUnifiedExtractor(inner Extractor) *UnifiedExtractor {
	return &UnifiedExtractor{inner: inner}
}

func (u *UnifiedExtractor) Execute(ctx context.Context, dest entities.Destination, secret []byte, headers http.Header, query map[string]string, body []byte) (*UpstreamResponse, error) {
	return u.inner.Execute(ctx, dest, secret, headers, query, body)
}
