// Package auth resolves the EventAccess/Connection pair behind an inbound
// request and attaches both to the request context, replacing the
// teacher's JWT-subject resolution (internal/auth/jwt.go) with spec.md
// §4.2's access-key scheme: every request carries an AccessKey that
// decrypts (AES-GCM in this package, keyed by the SHA-256 of
// EVENT_ACCESS_PASSWORD) to an AccessKeyPayload identifying the EventAccess.
package auth

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	cryptorand "crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"

	"github.com/picahq/pica-gateway/internal/apperr"
	"github.com/picahq/pica-gateway/internal/entities"
)

var randReader io.Reader = cryptorand.Reader

// EncodeAccessKey encrypts payload with a key derived from password
// (SHA-256, same derivation DecodeAccessKey reverses) and returns the
// base64 ciphertext handed back to the caller as an EventAccess.AccessKey.
func EncodeAccessKey(payload entities.AccessKeyPayload, password string) (string, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", apperr.Wrap(apperr.KindIOErr, "failed to marshal access key payload", err)
	}

	block, err := newAESCipher(password)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", apperr.Wrap(apperr.KindEncryptionError, "failed to build cipher", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(randReader, nonce); err != nil {
		return "", apperr.Wrap(apperr.KindEncryptionError, "failed to generate nonce", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(ciphertext), nil
}

// DecodeAccessKey reverses EncodeAccessKey, returning apperr
// Kind=unauthorized on any malformed or tampered input — a bad access key
// is an auth failure, not a server error.
func DecodeAccessKey(accessKey, password string) (entities.AccessKeyPayload, error) {
	var out entities.AccessKeyPayload

	raw, err := base64.RawURLEncoding.DecodeString(accessKey)
	if err != nil {
		return out, apperr.New(apperr.KindUnauthorized, "malformed access key")
	}

	block, err := newAESCipher(password)
	if err != nil {
		return out, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return out, apperr.Wrap(apperr.KindEncryptionError, "failed to build cipher", err)
	}

	if len(raw) < gcm.NonceSize() {
		return out, apperr.New(apperr.KindUnauthorized, "malformed access key")
	}
	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return out, apperr.New(apperr.KindUnauthorized, "invalid access key")
	}

	if err := json.Unmarshal(plaintext, &out); err != nil {
		return out, apperr.New(apperr.KindUnauthorized, "invalid access key payload")
	}
	return out, nil
}

func newAESCipher(password string) (cipher.Block, error) {
	if password == "" {
		return nil, errors.New("auth: empty access key password")
	}
	key := sha256.Sum256([]byte(password))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, apperr.Wrap(apperr.KindEncryptionError, "failed to build access key cipher", err)
	}
	return block, nil
}

// ctxKey namespaces this package's context values.
type ctxKey string

const (
	ctxEventAccess ctxKey = "pica_event_access"
	ctxConnection  ctxKey = "pica_connection"
)

// WithEventAccess attaches ea to ctx.
func WithEventAccess(ctx context.Context, ea entities.EventAccess) context.Context {
	return context.WithValue(ctx, ctxEventAccess, ea)
}

// EventAccessFromContext retrieves the EventAccess attached by the
// resolution middleware, panicking if absent — a handler reached past the
// middleware always has one.
func EventAccessFromContext(ctx context.Context) entities.EventAccess {
	ea, ok := ctx.Value(ctxEventAccess).(entities.EventAccess)
	if !ok {
		panic("auth: EventAccess missing from context — was the resolution middleware skipped?")
	}
	return ea
}

// WithConnection attaches conn to ctx.
func WithConnection(ctx context.Context, conn entities.Connection) context.Context {
	return context.WithValue(ctx, ctxConnection, conn)
}

// ConnectionFromContext retrieves the Connection attached for passthrough
// and unified routes. ok is false for routes that never resolve a
// Connection (e.g. admin CRUD endpoints).
func ConnectionFromContext(ctx context.Context) (entities.Connection, bool) {
	conn, ok := ctx.Value(ctxConnection).(entities.Connection)
	return conn, ok
}
