package httpapi

import (
	"net/http/httptest"
	"testing"

	"github.com/picahq/pica-gateway/internal/auth"
	"github.com/picahq/pica-gateway/internal/entities"
)

func TestOwnershipOf_ReadsBuildableIdFromContext(t *testing.T) {
	ea := entities.EventAccess{Ownership: entities.Ownership{Id: "buildable-42"}}
	r := httptest.NewRequest("GET", "/connections", nil)
	r = r.WithContext(auth.WithEventAccess(r.Context(), ea))

	if got := ownershipOf(r); got != "buildable-42" {
		t.Fatalf("want buildable-42, got %q", got)
	}
}

func TestParseListQuery_DefaultsWhenNoParams(t *testing.T) {
	r := httptest.NewRequest("GET", "/connections", nil)
	q := parseListQuery(r, "x-pica-show-all-environments")

	if q.Limit != 20 {
		t.Fatalf("want default limit 20, got %d", q.Limit)
	}
	if q.Skip != 0 {
		t.Fatalf("want default skip 0, got %d", q.Skip)
	}
	if q.ShowAllEnvironments {
		t.Fatal("want ShowAllEnvironments false without the header")
	}
	if len(q.Equals) != 0 || len(q.Contains) != 0 || len(q.Regex) != 0 {
		t.Fatalf("want empty filter maps, got %+v", q)
	}
}

func TestParseListQuery_ReadsShowAllEnvironmentsHeaderCaseInsensitive(t *testing.T) {
	r := httptest.NewRequest("GET", "/connections", nil)
	r.Header.Set("X-PICA-SHOW-ALL-ENVIRONMENTS", "TRUE")
	q := parseListQuery(r, "X-PICA-SHOW-ALL-ENVIRONMENTS")

	if !q.ShowAllEnvironments {
		t.Fatal("want ShowAllEnvironments true for a case-insensitive \"TRUE\" header value")
	}
}

func TestParseListQuery_ConfiguredHeaderNameOnly(t *testing.T) {
	r := httptest.NewRequest("GET", "/connections", nil)
	r.Header.Set("X-PICA-SHOW-ALL-ENVIRONMENTS", "true")
	q := parseListQuery(r, "X-Some-Other-Header")

	if q.ShowAllEnvironments {
		t.Fatal("want ShowAllEnvironments false when the configured header name doesn't match what's set")
	}
}

func TestParseListQuery_TopLevelParamsBecomeEqualsFilters(t *testing.T) {
	r := httptest.NewRequest("GET", "/connections?platform=stripe&environment=test", nil)
	q := parseListQuery(r, "x-pica-show-all-environments")

	if q.Equals["platform"] != "stripe" {
		t.Fatalf("want platform=stripe, got %+v", q.Equals)
	}
	if q.Equals["environment"] != "test" {
		t.Fatalf("want environment=test, got %+v", q.Equals)
	}
}

func TestParseListQuery_ReservedParamsNeverBecomeEqualsFilters(t *testing.T) {
	r := httptest.NewRequest("GET", "/connections?limit=5&skip=10&contains=platform,stripe,hubspot&regex=name,^acme", nil)
	q := parseListQuery(r, "x-pica-show-all-environments")

	if _, ok := q.Equals["limit"]; ok {
		t.Fatal("limit must not leak into Equals")
	}
	if _, ok := q.Equals["contains"]; ok {
		t.Fatal("contains must not leak into Equals")
	}
	if q.Limit != 5 || q.Skip != 10 {
		t.Fatalf("want limit=5 skip=10, got limit=%d skip=%d", q.Limit, q.Skip)
	}
}

func TestParseListQuery_ContainsBecomesFieldAndValues(t *testing.T) {
	r := httptest.NewRequest("GET", "/connections?contains=platform,stripe,hubspot", nil)
	q := parseListQuery(r, "x-pica-show-all-environments")

	values := q.Contains["platform"]
	if len(values) != 2 || values[0] != "stripe" || values[1] != "hubspot" {
		t.Fatalf("want [stripe hubspot], got %v", values)
	}
}

func TestParseListQuery_RegexBecomesFieldAndPattern(t *testing.T) {
	r := httptest.NewRequest("GET", "/connections?regex=name,^acme", nil)
	q := parseListQuery(r, "x-pica-show-all-environments")

	if q.Regex["name"] != "^acme" {
		t.Fatalf("want pattern ^acme, got %q", q.Regex["name"])
	}
}

func TestParseListQuery_MalformedContainsAndRegexAreIgnored(t *testing.T) {
	r := httptest.NewRequest("GET", "/connections?contains=onlyfield&regex=onlyfield", nil)
	q := parseListQuery(r, "x-pica-show-all-environments")

	if len(q.Contains) != 0 {
		t.Fatalf("want no contains filter from a field-only value, got %+v", q.Contains)
	}
	if len(q.Regex) != 0 {
		t.Fatalf("want no regex filter from a field-only value, got %+v", q.Regex)
	}
}

func TestAtoiOr_ParsesValidInt(t *testing.T) {
	if got := atoiOr("42", 0); got != 42 {
		t.Fatalf("want 42, got %d", got)
	}
}

func TestAtoiOr_FallsBackOnEmptyOrInvalid(t *testing.T) {
	if got := atoiOr("", 7); got != 7 {
		t.Fatalf("want fallback 7 for empty string, got %d", got)
	}
	if got := atoiOr("not-a-number", 7); got != 7 {
		t.Fatalf("want fallback 7 for invalid input, got %d", got)
	}
}

func TestRecordMetadataDoc_StampsFreshActiveVersionOne(t *testing.T) {
	doc := recordMetadataDoc()

	if doc["active"] != true {
		t.Fatalf("want active=true, got %v", doc["active"])
	}
	if doc["version"] != 1 {
		t.Fatalf("want version=1, got %v", doc["version"])
	}
	if doc["updated"] != false {
		t.Fatalf("want updated=false for a fresh record, got %v", doc["updated"])
	}
	if doc["deleted"] != false || doc["deprecated"] != false {
		t.Fatalf("want deleted=false and deprecated=false, got %+v", doc)
	}
}
