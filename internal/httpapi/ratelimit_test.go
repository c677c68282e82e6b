package httpapi

import "testing"

func TestParseLimitParam_EmptyUsesDefault(t *testing.T) {
	if got := parseLimitParam("", 20, 100); got != 20 {
		t.Fatalf("want default 20, got %d", got)
	}
}

func TestParseLimitParam_InvalidOrNonPositiveUsesDefault(t *testing.T) {
	if got := parseLimitParam("not-a-number", 20, 100); got != 20 {
		t.Fatalf("want default 20 for unparsable input, got %d", got)
	}
	if got := parseLimitParam("0", 20, 100); got != 20 {
		t.Fatalf("want default 20 for zero, got %d", got)
	}
	if got := parseLimitParam("-5", 20, 100); got != 20 {
		t.Fatalf("want default 20 for negative, got %d", got)
	}
}

func TestParseLimitParam_ClampsAboveMax(t *testing.T) {
	if got := parseLimitParam("500", 20, 100); got != 100 {
		t.Fatalf("want clamped to max 100, got %d", got)
	}
}

func TestParseLimitParam_PassesThroughValidValue(t *testing.T) {
	if got := parseLimitParam("42", 20, 100); got != 42 {
		t.Fatalf("want 42, got %d", got)
	}
}
