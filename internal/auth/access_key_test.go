package auth

import (
	"net/http"
	"testing"

	"github.com/picahq/pica-gateway/internal/apperr"
	"github.com/picahq/pica-gateway/internal/entities"
)

func TestAccessKey_RoundTrips(t *testing.T) {
	payload := entities.AccessKeyPayload{
		Id:          entities.Now(entities.IdPrefixEventAccess),
		OwnershipId: "buildable-1",
		Environment: entities.EnvironmentLive,
		Version:     "1",
		EventType:   "api-key",
	}

	key, err := EncodeAccessKey(payload, "correct horse battery staple")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	decoded, err := DecodeAccessKey(key, "correct horse battery staple")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded != payload {
		t.Fatalf("round trip mismatch: want %+v, got %+v", payload, decoded)
	}
}

func TestAccessKey_WrongPasswordFails(t *testing.T) {
	payload := entities.AccessKeyPayload{Id: entities.Now(entities.IdPrefixEventAccess), OwnershipId: "b1"}
	key, err := EncodeAccessKey(payload, "password-one")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := DecodeAccessKey(key, "password-two"); err == nil {
		t.Fatal("expected decode with wrong password to fail")
	}
}

func TestAccessKey_TamperedCiphertextFails(t *testing.T) {
	payload := entities.AccessKeyPayload{Id: entities.Now(entities.IdPrefixEventAccess), OwnershipId: "b1"}
	key, err := EncodeAccessKey(payload, "pw")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tampered := []byte(key)
	tampered[len(tampered)-1] ^= 0x01
	if _, err := DecodeAccessKey(string(tampered), "pw"); err == nil {
		t.Fatal("expected decode of tampered access key to fail")
	}
}

func TestAccessKey_MalformedInputIsUnauthorizedNotPanic(t *testing.T) {
	_, err := DecodeAccessKey("not-valid-base64!!!", "pw")
	if err == nil {
		t.Fatal("expected error for malformed access key")
	}
	if got := apperr.StatusOf(err); got != http.StatusUnauthorized {
		t.Fatalf("want status %d for malformed access key, got %d", http.StatusUnauthorized, got)
	}
}

func TestDecodeAccessKey_EmptyPasswordErrors(t *testing.T) {
	if _, err := DecodeAccessKey("anything", ""); err == nil {
		t.Fatal("expected error for empty password")
	}
}
