package auth

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/club-booking-client/gateway"
	clienterrors "github.com/jrsteele09/club-booking-client/internal/errors"
	"github.com/jrsteele09/club-booking-client/users"
)

// classifyLoginError maps a failed login or verification call onto the typed errors.
// Transport failures pass through untouched.
func classifyLoginError(err error) error {
	var apiErr *clienterrors.APIError
	if !clienterrors.As(err, &apiErr) {
		return err
	}
	if apiErr.Status == http.StatusForbidden {
		if pending, ok := unverifiedFrom(apiErr); ok {
			return pending
		}
	}
	if apiErr.Status >= 500 {
		return err
	}
	return &clienterrors.AuthenticationError{Message: apiErr.Message}
}

// unverifiedFrom recognises {userId, email, emailVerified: false} in a 403 body
func unverifiedFrom(apiErr *clienterrors.APIError) (*clienterrors.UnverifiedEmailError, bool) {
	res := gateway.Normalize(apiErr.Status, apiErr.Data)
	var body struct {
		UserID        json.RawMessage `json:"userId"`
		Email         string          `json:"email"`
		EmailVerified *bool           `json:"emailVerified"`
	}
	if json.Unmarshal(res.Data, &body) != nil || body.EmailVerified == nil || *body.EmailVerified {
		return nil, false
	}
	id, err := users.CanonicalID(body.UserID)
	if err != nil {
		return nil, false
	}
	return &clienterrors.UnverifiedEmailError{UserID: id, Email: body.Email}, true
}

// credentialPayload is the {token, user} pair login-like endpoints return
type credentialPayload struct {
	Token string
	User  *users.Identity
}

func parseCredential(res *gateway.Result) (credentialPayload, error) {
	var p credentialPayload
	for _, key := range []string{"token", "access_token"} {
		found, err := res.Field(key, &p.Token)
		if err != nil {
			return p, err
		}
		if found && p.Token != "" {
			break
		}
	}
	var identity users.Identity
	found, err := res.Field("user", &identity)
	if err != nil {
		return p, err
	}
	if found {
		p.User = &identity
	}
	return p, nil
}

// registrationFrom reads {userId, email, emailVerified} from a register or resend response
func registrationFrom(res *gateway.Result) Registration {
	var body struct {
		UserID        json.RawMessage `json:"userId"`
		Email         string          `json:"email"`
		EmailVerified bool            `json:"emailVerified"`
	}
	_ = json.Unmarshal(res.Data, &body)
	id, _ := users.CanonicalID(body.UserID)
	return Registration{UserID: id, Email: body.Email, EmailVerified: body.EmailVerified}
}
