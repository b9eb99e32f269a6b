package sessions

import (
	"time"

	"github.com/jrsteele09/club-booking-client/users"
	"golang.org/x/oauth2"
)

// Session is the authenticated state of the client.
// At most one exists per Store; it is created on login, verification or
// auto-refresh, replaced on refresh and destroyed on logout.
type Session struct {
	Identity    users.Identity // Account the credential belongs to
	Token       string         // Opaque bearer credential
	LastRefresh time.Time      // When the credential was last issued, not persisted
	ExpiresAt   time.Time      // From the JWT exp claim, zero when unknown
}

// Valid reports whether the session carries a credential
func (s Session) Valid() bool {
	return s.Token != ""
}

// OAuth2Token exposes the credential as a bearer oauth2.Token
func (s Session) OAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken: s.Token,
		TokenType:   "Bearer",
		Expiry:      s.ExpiresAt,
	}
}
