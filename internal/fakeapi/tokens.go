package fakeapi

import (
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// IssueToken signs an access token for userID
func (s *Server) IssueToken(userID string) (string, error) {
	now := s.nowTime()
	claims := jwtlib.MapClaims{
		"sub":  userID,                     // The user the token was issued to
		"iat":  now.Unix(),                 // Issued At
		"exp":  now.Add(s.tokenTTL).Unix(), // Expiry
		"jti":  uuid.New().String(),        // Unique token ID for revocation
		"type": "access",                   // Token kind
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, "[fakeapi.IssueToken]")
	}
	return signed, nil
}

// Revoke invalidates a token
func (s *Server) Revoke(tok string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.revoked[tok] = true
}

func (s *Server) validateToken(tok string) (string, error) {
	s.lock.Lock()
	revoked := s.revoked[tok]
	s.lock.Unlock()
	if revoked {
		return "", errors.New("token revoked")
	}

	parsed, err := jwtlib.Parse(tok, func(t *jwtlib.Token) (interface{}, error) {
		return s.secret, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}), jwtlib.WithTimeFunc(s.nowTime))
	if err != nil {
		return "", errors.Wrap(err, "[fakeapi.validateToken]")
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("token has no subject")
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	if _, ok := s.accounts[sub]; !ok {
		return "", errors.New("unknown user")
	}
	return sub, nil
}
