package fakeapi

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

type createUserBody struct {
	Username  string `json:"username"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"`
	DanceType string `json:"dance_type"`
}

type roleBody struct {
	Role      string  `json:"role"`
	DanceType *string `json:"dance_type"`
}

type profileBody struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

type passwordBody struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type courseBody struct {
	Name        *string         `json:"name"`
	Instructor  *string         `json:"instructor"`
	Location    *string         `json:"location"`
	Weekday     *string         `json:"weekday"`
	TimeSlot    *string         `json:"timeSlot"`
	CourseDate  *string         `json:"courseDate"`
	Capacity    *int            `json:"maxCapacity"`
	Description *string         `json:"description"`
	DanceType   *string         `json:"danceType"`
	LeaderID    json.RawMessage `json:"leaderId"`
}

type assignBody struct {
	DanceType string          `json:"danceType"`
	LeaderID  json.RawMessage `json:"leaderId"`
}

var validRoles = map[string]bool{"member": true, "leader": true, "admin": true}

func (s *Server) UsersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.lock.Lock()
		out := s.usersJSON(func(*Account) bool { return true })
		s.lock.Unlock()
		writeSuccess(w, http.StatusOK, out, "")
	}
}

func (s *Server) CreateUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createUserBody
		if !decodeBody(r, &body) || body.Username == "" || body.Password == "" || body.Email == "" {
			writeFailure(w, http.StatusBadRequest, "username, email and password are required")
			return
		}
		if body.Role == "" {
			body.Role = "member"
		}
		if !validRoles[body.Role] {
			writeFailure(w, http.StatusBadRequest, "invalid role")
			return
		}
		s.lock.Lock()
		taken := s.accountByUsername(body.Username) != nil || s.accountByEmail(body.Email) != nil
		s.lock.Unlock()
		if taken {
			writeFailure(w, http.StatusConflict, "username or email already exists")
			return
		}
		id := s.AddAccount(AccountSpec{
			Username:  body.Username,
			Password:  body.Password,
			Name:      body.Name,
			Email:     body.Email,
			Role:      body.Role,
			DanceType: body.DanceType,
			Verified:  true,
		})
		a, _ := s.Account(id)
		writeSuccess(w, http.StatusCreated, userJSON(&a), "user created")
	}
}

func (s *Server) DeleteUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == userIDFrom(r) {
			writeFailure(w, http.StatusBadRequest, "cannot delete yourself")
			return
		}
		s.lock.Lock()
		defer s.lock.Unlock()
		if _, ok := s.accounts[id]; !ok {
			writeFailure(w, http.StatusNotFound, "user not found")
			return
		}
		delete(s.accounts, id)
		for _, byUser := range s.bookings {
			delete(byUser, id)
		}
		writeSuccess(w, http.StatusOK, nil, "user deleted")
	}
}

func (s *Server) UsersByRoleHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := r.PathValue("role")
		if !validRoles[role] {
			writeFailure(w, http.StatusBadRequest, "invalid role")
			return
		}
		s.lock.Lock()
		out := s.usersJSON(func(a *Account) bool { return a.Role == role })
		s.lock.Unlock()
		writeSuccess(w, http.StatusOK, out, "")
	}
}

func (s *Server) UpdateRoleHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body roleBody
		if !decodeBody(r, &body) || !validRoles[body.Role] {
			writeFailure(w, http.StatusBadRequest, "invalid role")
			return
		}
		s.lock.Lock()
		defer s.lock.Unlock()
		a, ok := s.accounts[r.PathValue("id")]
		if !ok {
			writeFailure(w, http.StatusNotFound, "user not found")
			return
		}
		a.Role = body.Role
		if body.DanceType != nil {
			a.DanceType = *body.DanceType
		}
		writeSuccess(w, http.StatusOK, userJSON(a), "role updated")
	}
}

func (s *Server) UsersByDanceTypeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		danceType := r.PathValue("danceType")
		s.lock.Lock()
		out := s.usersJSON(func(a *Account) bool { return a.DanceType == danceType })
		s.lock.Unlock()
		writeSuccess(w, http.StatusOK, out, "")
	}
}

func (s *Server) UpdateProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body profileBody
		if !decodeBody(r, &body) {
			writeFailure(w, http.StatusBadRequest, "invalid request body")
			return
		}
		s.lock.Lock()
		defer s.lock.Unlock()
		a, ok := s.accounts[userIDFrom(r)]
		if !ok {
			writeFailure(w, http.StatusNotFound, "user not found")
			return
		}
		if body.Email != nil && !strings.EqualFold(*body.Email, a.Email) {
			if other := s.accountByEmail(*body.Email); other != nil {
				writeFailure(w, http.StatusConflict, "email already registered")
				return
			}
			a.Email = *body.Email
		}
		if body.Name != nil {
			a.Name = *body.Name
		}
		writeSuccess(w, http.StatusOK, userJSON(a), "profile updated")
	}
}

func (s *Server) ChangePasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body passwordBody
		if !decodeBody(r, &body) || body.CurrentPassword == "" || body.NewPassword == "" {
			writeFailure(w, http.StatusBadRequest, "currentPassword and newPassword are required")
			return
		}
		a, ok := s.Account(userIDFrom(r))
		if !ok {
			writeFailure(w, http.StatusNotFound, "user not found")
			return
		}
		if !CheckPasswordHash(body.CurrentPassword, a.PasswordHash) {
			writeFailure(w, http.StatusBadRequest, "current password is wrong")
			return
		}
		hash, err := HashPassword(body.NewPassword)
		if err != nil {
			writeFailure(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.lock.Lock()
		if acc, ok := s.accounts[a.ID]; ok {
			acc.PasswordHash = hash
		}
		s.lock.Unlock()
		writeSuccess(w, http.StatusOK, nil, "password changed")
	}
}

func (s *Server) LeadersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.lock.Lock()
		out := s.usersJSON(func(a *Account) bool { return a.Role == "leader" })
		s.lock.Unlock()
		writeSuccess(w, http.StatusOK, out, "")
	}
}

func (s *Server) LeaderByDanceTypeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		danceType := r.PathValue("danceType")
		s.lock.Lock()
		out := s.usersJSON(func(a *Account) bool { return a.Role == "leader" && a.DanceType == danceType })
		s.lock.Unlock()
		if len(out) == 0 {
			writeFailure(w, http.StatusNotFound, "no leader for "+danceType)
			return
		}
		writeSuccess(w, http.StatusOK, out[0], "")
	}
}

// AdminCoursesHandler lists every course for admins and the leader's own courses for leaders
func (s *Server) AdminCoursesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.lock.Lock()
		defer s.lock.Unlock()
		caller := s.accounts[userIDFrom(r)]
		out := s.coursesJSON(func(c *Course) bool { return s.manages(caller, c) })
		writeSuccess(w, http.StatusOK, out, "")
	}
}

func (s *Server) AdminCreateCourseHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body courseBody
		if !decodeBody(r, &body) || body.Name == nil || *body.Name == "" {
			writeFailure(w, http.StatusBadRequest, "name is required")
			return
		}
		s.lock.Lock()
		defer s.lock.Unlock()
		c := &Course{DanceType: "public"}
		body.apply(c)
		if caller := s.accounts[userIDFrom(r)]; caller != nil && caller.Role == "leader" {
			c.DanceType = caller.DanceType
			c.LeaderID = caller.ID
		}
		if c.Capacity <= 0 {
			writeFailure(w, http.StatusBadRequest, "maxCapacity must be positive")
			return
		}
		c.ID = s.newID()
		s.courses[c.ID] = c
		writeSuccess(w, http.StatusCreated, s.courseJSON(c), "course created")
	}
}

func (s *Server) AdminUpdateCourseHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body courseBody
		if !decodeBody(r, &body) {
			writeFailure(w, http.StatusBadRequest, "invalid request body")
			return
		}
		s.lock.Lock()
		defer s.lock.Unlock()
		c, ok := s.courses[r.PathValue("id")]
		if !ok {
			writeFailure(w, http.StatusNotFound, "course not found")
			return
		}
		caller := s.accounts[userIDFrom(r)]
		if !s.manages(caller, c) {
			writeFailure(w, http.StatusForbidden, "permission denied")
			return
		}
		updated := *c
		body.apply(&updated)
		if updated.Capacity < s.confirmedCount(c.ID) {
			writeFailure(w, http.StatusBadRequest, "maxCapacity below current bookings")
			return
		}
		if caller.Role == "leader" {
			updated.DanceType, updated.LeaderID = c.DanceType, c.LeaderID
		}
		*c = updated
		writeSuccess(w, http.StatusOK, s.courseJSON(c), "course updated")
	}
}

func (s *Server) AdminDeleteCourseHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		s.lock.Lock()
		defer s.lock.Unlock()
		c, ok := s.courses[id]
		if !ok {
			writeFailure(w, http.StatusNotFound, "course not found")
			return
		}
		if !s.manages(s.accounts[userIDFrom(r)], c) {
			writeFailure(w, http.StatusForbidden, "permission denied")
			return
		}
		delete(s.courses, id)
		delete(s.bookings, id)
		writeSuccess(w, http.StatusOK, nil, "course deleted")
	}
}

func (s *Server) AdminAssignmentsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.lock.Lock()
		defer s.lock.Unlock()
		out := make([]map[string]interface{}, 0, len(s.courses))
		for _, course := range s.coursesJSON(func(*Course) bool { return true }) {
			entry := map[string]interface{}{
				"courseId":   course["id"],
				"courseName": course["name"],
				"danceType":  course["danceType"],
				"leaderId":   nil,
			}
			if leader, ok := course["leaderId"]; ok {
				entry["leaderId"] = leader
			}
			out = append(out, entry)
		}
		writeSuccess(w, http.StatusOK, out, "")
	}
}

func (s *Server) AdminAssignCourseHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body assignBody
		if !decodeBody(r, &body) || body.DanceType == "" {
			writeFailure(w, http.StatusBadRequest, "danceType is required")
			return
		}
		s.lock.Lock()
		defer s.lock.Unlock()
		c, ok := s.courses[r.PathValue("id")]
		if !ok {
			writeFailure(w, http.StatusNotFound, "course not found")
			return
		}
		leaderID := rawID(body.LeaderID)
		if leaderID != "" {
			leader, ok := s.accounts[leaderID]
			if !ok || leader.Role != "leader" {
				writeFailure(w, http.StatusBadRequest, "leaderId is not a leader")
				return
			}
		}
		c.DanceType = body.DanceType
		c.LeaderID = leaderID
		writeSuccess(w, http.StatusOK, s.courseJSON(c), "course assigned")
	}
}

// manages reports whether caller may administer c. Callers hold the lock.
func (s *Server) manages(caller *Account, c *Course) bool {
	if caller == nil {
		return false
	}
	switch caller.Role {
	case "admin":
		return true
	case "leader":
		return c.LeaderID == caller.ID || (caller.DanceType != "" && c.DanceType == caller.DanceType)
	}
	return false
}

// usersJSON renders matching accounts ordered by id. Callers hold the lock.
func (s *Server) usersJSON(match func(*Account) bool) []map[string]interface{} {
	var accounts []*Account
	for _, a := range s.accounts {
		if match(a) {
			accounts = append(accounts, a)
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		a, _ := strconv.Atoi(accounts[i].ID)
		b, _ := strconv.Atoi(accounts[j].ID)
		return a < b
	})
	out := make([]map[string]interface{}, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, userJSON(a))
	}
	return out
}

func (b courseBody) apply(c *Course) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&c.Name, b.Name)
	set(&c.Instructor, b.Instructor)
	set(&c.Location, b.Location)
	set(&c.Weekday, b.Weekday)
	set(&c.TimeSlot, b.TimeSlot)
	set(&c.CourseDate, b.CourseDate)
	set(&c.Description, b.Description)
	set(&c.DanceType, b.DanceType)
	if b.Capacity != nil {
		c.Capacity = *b.Capacity
	}
	if len(b.LeaderID) > 0 {
		c.LeaderID = rawID(b.LeaderID)
	}
}

// rawID reads a numeric, string or null JSON id
func rawID(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	return strings.Trim(s, `"`)
}
