package token

import (
	"strconv"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Introspection is what the client can learn from a bearer token without the signing key.
// The server stays the authority on validity; these values only drive local scheduling.
type Introspection struct {
	IsJWT     bool      // False for opaque tokens
	Subject   string    // "sub" claim, the club user id
	IssuedAt  time.Time // Zero when absent
	ExpiresAt time.Time // Zero when absent
}

// Inspect parses the token unverified. Opaque (non JWT) tokens are not an error.
func Inspect(rawToken string) (Introspection, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return Introspection{}, errors.New("[token.Inspect] empty token")
	}
	if strings.Count(rawToken, ".") != 2 {
		return Introspection{}, nil
	}

	claims := jwtlib.MapClaims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(rawToken, claims); err != nil {
		return Introspection{}, errors.Wrap(err, "[token.Inspect] ParseUnverified")
	}

	result := Introspection{IsJWT: true}
	if sub, err := claims.GetSubject(); err == nil {
		result.Subject = sub
	}
	if sub, ok := claims["sub"].(float64); ok && result.Subject == "" {
		result.Subject = strconv.FormatFloat(sub, 'f', -1, 64)
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		result.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		result.ExpiresAt = exp.Time
	}
	return result, nil
}

// Expired reports whether the token carries an expiry that is already behind now.
func (i Introspection) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}
