package errors

import (
	"errors"
	"fmt"
)

// Common error values for the booking client
var (
	// Session errors
	ErrNoSession        = errors.New("no active session")
	ErrNotAuthenticated = errors.New("not authenticated")

	// Booking errors
	ErrMutationInFlight = errors.New("a booking change for this course is already in progress")
	ErrNotPermitted     = errors.New("role is not permitted to book courses")
	ErrAlreadyBooked    = errors.New("course already booked")
	ErrNotBooked        = errors.New("course is not booked")
	ErrUnknownCourse    = errors.New("unknown course")
	ErrViewClosed       = errors.New("course view closed")
)

// ValidationError reports malformed or empty input rejected before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AuthenticationError reports rejected credentials.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	if e.Message == "" {
		return "authentication failed"
	}
	return "authentication failed: " + e.Message
}

// UnverifiedEmailError is returned when the account exists but the email has not been verified yet.
type UnverifiedEmailError struct {
	UserID string
	Email  string
}

func (e *UnverifiedEmailError) Error() string {
	return fmt.Sprintf("email %s for user %s is not verified", e.Email, e.UserID)
}

// AuthorizationExpiredError means the credential was rejected and could not be renewed.
type AuthorizationExpiredError struct {
	Endpoint string
}

func (e *AuthorizationExpiredError) Error() string {
	return fmt.Sprintf("authorization expired calling %s", e.Endpoint)
}

// CapacityExceededError is a booking rejected from local occupancy alone.
type CapacityExceededError struct {
	CourseID string
	Booked   int
	Capacity int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("course %s is full (%d/%d)", e.CourseID, e.Booked, e.Capacity)
}

// NetworkError wraps transport level failures.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// DecodeError wraps a response body that could not be mapped onto the expected type.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// APIError is a non-successful response from the server.
type APIError struct {
	Status  int
	Message string
	Data    []byte
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// IsStatus reports whether err carries an APIError with one of the given statuses.
func IsStatus(err error, statuses ...int) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, s := range statuses {
		if apiErr.Status == s {
			return true
		}
	}
	return false
}
