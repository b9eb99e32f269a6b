package gateway

import (
	"net/http"

	clienterrors "github.com/jrsteele09/club-booking-client/internal/errors"
)

// Statuses with which the refresh endpoints explicitly reject a credential
var rejectionStatuses = []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity}

// IsRejection reports whether err is an explicit credential rejection
func IsRejection(err error) bool {
	return clienterrors.IsStatus(err, rejectionStatuses...)
}

// Class decides how an authorization failure on an endpoint is handled.
type Class int

const (
	// Public endpoints need no credential; a 401 is an ordinary API error.
	Public Class = iota

	// Soft endpoints are per entity lookups. A 401 means not authenticated
	// and never touches the session.
	Soft

	// Critical endpoints get one refresh and one replay. A second 401
	// expires the session.
	Critical

	// RefreshFlow endpoints belong to the credential lifecycle itself and
	// never trigger a refresh.
	RefreshFlow
)

func (c Class) String() string {
	switch c {
	case Public:
		return "public"
	case Soft:
		return "soft"
	case Critical:
		return "critical"
	case RefreshFlow:
		return "refresh_flow"
	}
	return "unknown"
}

func (c Class) sendsCredential() bool {
	return c != Public
}
