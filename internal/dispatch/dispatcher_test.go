package dispatch

import (
	"net/http"
	"strings"
	"testing"
)

func TestTranslateResponseHeaders_PreservesContentLength(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Length", "1234")
	h.Set("X-Upstream-Rate-Limit", "100")

	out := TranslateResponseHeaders(h)

	if out.Get("Content-Length") != "1234" {
		t.Fatalf("Content-Length should pass through verbatim, got %q", out.Get("Content-Length"))
	}
	if got := out.Get("x-pica-passthrough-X-Upstream-Rate-Limit"); got != "100" {
		t.Fatalf("expected prefixed header, got headers: %v", out)
	}
}

func TestTranslateResponseHeaders_RenamesEveryOtherHeader(t *testing.T) {
	h := http.Header{}
	h.Set("X-Custom-A", "1")
	h.Set("X-Custom-B", "2")

	out := TranslateResponseHeaders(h)

	if len(out) != 2 {
		t.Fatalf("want 2 headers, got %d: %v", len(out), out)
	}
	for k := range out {
		if !strings.HasPrefix(k, "X-Pica-Passthrough-") {
			t.Fatalf("unexpected unprefixed header %q", k)
		}
	}
}

func TestTranslateResponseHeaders_EmptyInput(t *testing.T) {
	out := TranslateResponseHeaders(http.Header{})
	if len(out) != 0 {
		t.Fatalf("want empty output, got %v", out)
	}
}
