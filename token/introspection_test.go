package token_test

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/club-booking-client/token"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func TestInspect_JWT(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	raw := signed(t, jwtlib.MapClaims{
		"sub": "12",
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	})

	in, err := token.Inspect(raw)
	require.NoError(t, err)
	require.True(t, in.IsJWT)
	require.Equal(t, "12", in.Subject)
	require.True(t, in.IssuedAt.Equal(now))
	require.True(t, in.ExpiresAt.Equal(now.Add(time.Hour)))
	require.False(t, in.Expired(now))
	require.True(t, in.Expired(now.Add(2*time.Hour)))
}

func TestInspect_NumericSubject(t *testing.T) {
	in, err := token.Inspect(signed(t, jwtlib.MapClaims{"sub": 7}))
	require.NoError(t, err)
	require.Equal(t, "7", in.Subject)
	require.True(t, in.ExpiresAt.IsZero())
	require.False(t, in.Expired(time.Now()))
}

func TestInspect_OpaqueToken(t *testing.T) {
	in, err := token.Inspect("opaque-session-token")
	require.NoError(t, err)
	require.False(t, in.IsJWT)
}

func TestInspect_Errors(t *testing.T) {
	_, err := token.Inspect("  ")
	require.Error(t, err)

	_, err = token.Inspect("not.a.jwt")
	require.Error(t, err)
}
