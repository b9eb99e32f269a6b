package fakeapi

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyUserID stores the authenticated user ID
	ContextKeyUserID ContextKey = "user_id"
	// ContextKeyToken stores the presented bearer token
	ContextKeyToken ContextKey = "token"
)

// Fault is an injected failure for the next matching requests
type Fault struct {
	Status int           // Response status, ignored when Drop is set
	Body   string        // Raw response body
	Delay  time.Duration // Wait before handling; the request still succeeds when Status is zero
	Drop   bool          // Close the connection without a response
	Times  int           // How many requests are affected, at least one
}

// Fail queues f for route ("METHOD /path" as registered)
func (s *Server) Fail(route string, f Fault) {
	if f.Times <= 0 {
		f.Times = 1
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.faults[route] = append(s.faults[route], f)
}

func (s *Server) nextFault(route string) (Fault, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	queue := s.faults[route]
	if len(queue) == 0 {
		return Fault{}, false
	}
	f := queue[0]
	queue[0].Times--
	if queue[0].Times <= 0 {
		s.faults[route] = queue[1:]
	}
	return f, true
}

func (s *Server) recordHit(route string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			s.lock.Lock()
			s.hits[route]++
			s.lock.Unlock()
			s.log.Debug().Str("route", route).Str("request_id", r.Header.Get("X-Request-ID")).Msg("fake api hit")
			next(w, r)
		}
	}
}

func (s *Server) injectFaults(route string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			f, ok := s.nextFault(route)
			if !ok {
				next(w, r)
				return
			}
			if f.Delay > 0 {
				select {
				case <-time.After(f.Delay):
				case <-r.Context().Done():
					return
				}
			}
			switch {
			case f.Drop:
				if hj, ok := w.(http.Hijacker); ok {
					if conn, _, err := hj.Hijack(); err == nil {
						conn.Close()
						return
					}
				}
				w.WriteHeader(http.StatusBadGateway)
			case f.Status != 0:
				w.WriteHeader(f.Status)
				w.Write([]byte(f.Body))
			default:
				next(w, r)
			}
		}
	}
}

// RequireAuth validates the bearer token and stores the user id in the context
func (s *Server) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		tok, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found || tok == "" {
			writeFailure(w, http.StatusUnauthorized, "Missing Authorization Header")
			return
		}
		userID, err := s.validateToken(tok)
		if err != nil {
			writeFailure(w, http.StatusUnauthorized, "Token has expired")
			return
		}
		ctx := context.WithValue(r.Context(), ContextKeyUserID, userID)
		ctx = context.WithValue(ctx, ContextKeyToken, tok)
		next(w, r.WithContext(ctx))
	}
}

// RequireRole rejects callers whose account role is not one of roles.
// It must run after RequireAuth.
func (s *Server) RequireRole(roles ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			a, ok := s.Account(userIDFrom(r))
			if !ok || !slices.Contains(roles, a.Role) {
				writeFailure(w, http.StatusForbidden, "permission denied")
				return
			}
			next(w, r)
		}
	}
}

func userIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(ContextKeyUserID).(string)
	return id
}

func tokenFrom(r *http.Request) string {
	tok, _ := r.Context().Value(ContextKeyToken).(string)
	return tok
}
