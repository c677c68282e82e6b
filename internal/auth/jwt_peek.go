package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/picahq/pica-gateway/internal/apperr"
)

// PeekJWTExpiry reads the exp claim out of an OAuth-provider id_token
// without verifying its signature — the gateway never issues or trusts
// this token for authorization, it only needs the expiry to compute
// Connection.OAuth.ExpiresAt the way spec.md §4.5 step 6 describes.
func PeekJWTExpiry(idToken string) (int64, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(idToken, claims); err != nil {
		return 0, apperr.Wrap(apperr.KindDeserializeError, "failed to parse id_token", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0, apperr.New(apperr.KindDeserializeError, "id_token missing exp claim")
	}
	return exp.Unix(), nil
}
