package fakeapi

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type loginBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerBody struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyBody struct {
	UserID json.RawMessage `json:"userId"`
	Code   string          `json:"code"`
}

type emailBody struct {
	Email string `json:"email"`
}

type resetBody struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body loginBody
		if !decodeBody(r, &body) || body.Username == "" || body.Password == "" {
			writeFailure(w, http.StatusBadRequest, "username and password are required")
			return
		}

		s.lock.Lock()
		a := s.accountByUsername(body.Username)
		var cp Account
		if a != nil {
			cp = *a
		}
		s.lock.Unlock()

		if a == nil || !CheckPasswordHash(body.Password, cp.PasswordHash) {
			writeFailure(w, http.StatusUnauthorized, "invalid username or password")
			return
		}
		if cp.Role == "member" && !cp.Verified {
			writeJSON(w, http.StatusForbidden, map[string]interface{}{
				"success": false,
				"data": map[string]interface{}{
					"userId":        numericID(cp.ID),
					"email":         cp.Email,
					"emailVerified": false,
				},
				"message": "email not verified",
			})
			return
		}
		s.writeCredential(w, &cp, "")
	}
}

func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body registerBody
		if !decodeBody(r, &body) {
			writeFailure(w, http.StatusBadRequest, "invalid request body")
			return
		}
		for field, v := range map[string]string{"username": body.Username, "name": body.Name, "email": body.Email, "password": body.Password} {
			if strings.TrimSpace(v) == "" {
				writeFailure(w, http.StatusBadRequest, "missing field: "+field)
				return
			}
		}
		hash, err := HashPassword(body.Password)
		if err != nil {
			writeFailure(w, http.StatusInternalServerError, err.Error())
			return
		}

		s.lock.Lock()
		if s.accountByUsername(body.Username) != nil {
			s.lock.Unlock()
			writeFailure(w, http.StatusConflict, "username already exists")
			return
		}
		if s.accountByEmail(body.Email) != nil {
			s.lock.Unlock()
			writeFailure(w, http.StatusConflict, "email already registered")
			return
		}
		id := s.newID()
		a := &Account{ID: id, Username: body.Username, Name: body.Name, Email: body.Email, Role: "member", PasswordHash: hash}
		s.accounts[id] = a
		s.verifyCodes[id] = newVerificationCode()
		s.lock.Unlock()

		writeSuccess(w, http.StatusCreated, map[string]interface{}{
			"userId":        numericID(id),
			"email":         a.Email,
			"emailVerified": false,
		}, "registered, check your email for the verification code")
	}
}

func (s *Server) VerifyEmailHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body verifyBody
		if !decodeBody(r, &body) || len(body.UserID) == 0 || body.Code == "" {
			writeFailure(w, http.StatusBadRequest, "userId and code are required")
			return
		}
		id := strings.Trim(string(body.UserID), `"`)

		s.lock.Lock()
		a, ok := s.accounts[id]
		if !ok {
			s.lock.Unlock()
			writeFailure(w, http.StatusNotFound, "user not found")
			return
		}
		if a.Role != "member" {
			cp := *a
			s.lock.Unlock()
			s.writeCredential(w, &cp, "no verification required")
			return
		}
		if a.Verified {
			s.lock.Unlock()
			writeSuccess(w, http.StatusOK, nil, "email already verified")
			return
		}
		if s.verifyCodes[id] == "" || s.verifyCodes[id] != body.Code {
			s.lock.Unlock()
			writeFailure(w, http.StatusBadRequest, "wrong verification code")
			return
		}
		a.Verified = true
		delete(s.verifyCodes, id)
		cp := *a
		s.lock.Unlock()

		s.writeCredential(w, &cp, "email verified")
	}
}

func (s *Server) ResendVerificationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body emailBody
		if !decodeBody(r, &body) || body.Email == "" {
			writeFailure(w, http.StatusBadRequest, "email is required")
			return
		}

		s.lock.Lock()
		a := s.accountByEmail(body.Email)
		if a == nil {
			s.lock.Unlock()
			writeFailure(w, http.StatusNotFound, "email not registered")
			return
		}
		if a.Role != "member" {
			cp := *a
			s.lock.Unlock()
			s.writeCredential(w, &cp, "no verification required")
			return
		}
		if a.Verified {
			s.lock.Unlock()
			writeSuccess(w, http.StatusOK, nil, "email already verified")
			return
		}
		s.verifyCodes[a.ID] = newVerificationCode()
		id, email := a.ID, a.Email
		s.lock.Unlock()

		writeSuccess(w, http.StatusOK, map[string]interface{}{"userId": numericID(id), "email": email}, "verification code sent")
	}
}

func (s *Server) ForgotPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body emailBody
		if !decodeBody(r, &body) || body.Email == "" {
			writeFailure(w, http.StatusBadRequest, "email is required")
			return
		}
		s.lock.Lock()
		if a := s.accountByEmail(body.Email); a != nil {
			s.resetTokens[uuid.New().String()] = a.ID
		}
		s.lock.Unlock()
		// Unknown addresses get the same answer
		writeSuccess(w, http.StatusOK, nil, "if the address is registered a reset link was sent")
	}
}

func (s *Server) ResetPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body resetBody
		if !decodeBody(r, &body) || body.Token == "" || body.Password == "" {
			writeFailure(w, http.StatusBadRequest, "token and password are required")
			return
		}
		hash, err := HashPassword(body.Password)
		if err != nil {
			writeFailure(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.lock.Lock()
		defer s.lock.Unlock()
		userID, ok := s.resetTokens[body.Token]
		a := s.accounts[userID]
		if !ok || a == nil {
			writeFailure(w, http.StatusBadRequest, "invalid or expired reset token")
			return
		}
		a.PasswordHash = hash
		delete(s.resetTokens, body.Token)
		writeSuccess(w, http.StatusOK, nil, "password reset")
	}
}

func (s *Server) RefreshTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := s.Account(userIDFrom(r))
		if !ok {
			writeFailure(w, http.StatusUnauthorized, "user not found")
			return
		}
		s.writeCredential(w, &a, "")
	}
}

func (s *Server) AutoRefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.autoRefreshEnabled() {
			writeFailure(w, http.StatusNotFound, "not found")
			return
		}
		a, ok := s.Account(userIDFrom(r))
		if !ok {
			writeFailure(w, http.StatusUnauthorized, "user not found")
			return
		}
		s.writeCredential(w, &a, "")
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Revoke(tokenFrom(r))
		writeSuccess(w, http.StatusOK, nil, "logged out")
	}
}

func (s *Server) ValidateTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := s.Account(userIDFrom(r))
		if !ok {
			writeSuccess(w, http.StatusOK, map[string]interface{}{"valid": false}, "")
			return
		}
		writeSuccess(w, http.StatusOK, map[string]interface{}{"valid": true, "user": userJSON(&a)}, "")
	}
}

func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := s.Account(userIDFrom(r))
		if !ok {
			writeFailure(w, http.StatusNotFound, "user not found")
			return
		}
		writeSuccess(w, http.StatusOK, userJSON(&a), "")
	}
}

// writeCredential answers with {user, token} for a
func (s *Server) writeCredential(w http.ResponseWriter, a *Account, message string) {
	tok, err := s.IssueToken(a.ID)
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"user": userJSON(a), "token": tok}, message)
}

func (s *Server) autoRefreshEnabled() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.autoRefreshOn
}

func newVerificationCode() string {
	return fmt.Sprintf("%06d", rand.IntN(1000000))
}
