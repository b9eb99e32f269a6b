package fakeapi

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Account is a club member, leader or admin
type Account struct {
	ID           string
	Username     string
	Name         string
	Email        string
	Role         string
	DanceType    string
	Verified     bool
	PasswordHash []byte
}

// AccountSpec seeds an account
type AccountSpec struct {
	Username  string
	Password  string
	Name      string
	Email     string
	Role      string // defaults to member
	DanceType string
	Verified  bool
}

// Course is a scheduled class
type Course struct {
	ID          string
	Name        string
	Instructor  string
	Location    string
	Weekday     string
	TimeSlot    string
	CourseDate  string
	Capacity    int
	Description string
	DanceType   string
	LeaderID    string
}

type bookingRecord struct {
	ID        string
	Status    string
	CreatedAt time.Time
}

// StatusShape selects how /users/booking-status answers
type StatusShape int

const (
	ShapeEnvelope       StatusShape = iota // {"success":true,"data":{"status":...}}
	ShapeBare                              // {"status":...}
	ShapeData                              // {"data":{"status":...}}
	ShapeString                            // "confirmed"
	ShapeStringEnvelope                    // the envelope serialized into a JSON string
	ShapeText                              // confirmed, as text/plain
)

// HashPassword hashes a password with bcrypt
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
}

// CheckPasswordHash compares a password with a bcrypt hash
func CheckPasswordHash(password string, hash []byte) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

// AddAccount seeds an account and returns its id
func (s *Server) AddAccount(spec AccountSpec) string {
	hash, err := HashPassword(spec.Password)
	if err != nil {
		panic(err)
	}
	if spec.Role == "" {
		spec.Role = "member"
	}
	if spec.Email == "" {
		spec.Email = spec.Username + "@club.example.com"
	}
	if spec.Name == "" {
		spec.Name = spec.Username
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	id := s.newID()
	s.accounts[id] = &Account{
		ID:           id,
		Username:     spec.Username,
		Name:         spec.Name,
		Email:        spec.Email,
		Role:         spec.Role,
		DanceType:    spec.DanceType,
		Verified:     spec.Verified,
		PasswordHash: hash,
	}
	return id
}

// AddCourse seeds a course and returns its id
func (s *Server) AddCourse(c Course) string {
	s.lock.Lock()
	defer s.lock.Unlock()
	if c.ID == "" {
		c.ID = s.newID()
	}
	if c.DanceType == "" {
		c.DanceType = "public"
	}
	s.courses[c.ID] = &c
	return c.ID
}

// SetBooking forces the booking status of a user for a course
func (s *Server) SetBooking(courseID, userID, status string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.setBooking(courseID, userID, status)
}

// BookingStatus returns the stored status, not_booked when there is none
func (s *Server) BookingStatus(courseID, userID string) string {
	s.lock.Lock()
	defer s.lock.Unlock()
	if b, ok := s.bookings[courseID][userID]; ok {
		return b.Status
	}
	return "not_booked"
}

// Occupancy returns the confirmed bookings of a course
func (s *Server) Occupancy(courseID string) int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.confirmedCount(courseID)
}

// SetStatusShape changes the booking status response format
func (s *Server) SetStatusShape(shape StatusShape) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.statusShape = shape
}

// VerificationCode returns the code emailed to a user
func (s *Server) VerificationCode(userID string) string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.verifyCodes[userID]
}

// ResetToken returns the password reset token mailed for an email address
func (s *Server) ResetToken(email string) string {
	s.lock.Lock()
	defer s.lock.Unlock()
	for tok, userID := range s.resetTokens {
		if a := s.accounts[userID]; a != nil && strings.EqualFold(a.Email, email) {
			return tok
		}
	}
	return ""
}

// Account returns a copy of the account with the given id
func (s *Server) Account(id string) (Account, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return Account{}, false
	}
	return *a, true
}

func (s *Server) newID() string {
	s.nextID++
	return strconv.Itoa(s.nextID)
}

func (s *Server) setBooking(courseID, userID, status string) *bookingRecord {
	if s.bookings[courseID] == nil {
		s.bookings[courseID] = make(map[string]*bookingRecord)
	}
	b, ok := s.bookings[courseID][userID]
	if !ok {
		b = &bookingRecord{ID: s.newID(), CreatedAt: s.nowTime().UTC()}
		s.bookings[courseID][userID] = b
	}
	b.Status = status
	return b
}

func (s *Server) confirmedCount(courseID string) int {
	n := 0
	for _, b := range s.bookings[courseID] {
		if b.Status == "confirmed" {
			n++
		}
	}
	return n
}

func (s *Server) accountByUsername(username string) *Account {
	for _, a := range s.accounts {
		if a.Username == username {
			return a
		}
	}
	return nil
}

func (s *Server) accountByEmail(email string) *Account {
	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, email) {
			return a
		}
	}
	return nil
}

// userJSON renders an account the way the server does, with a numeric id
func userJSON(a *Account) map[string]interface{} {
	out := map[string]interface{}{
		"id":            numericID(a.ID),
		"username":      a.Username,
		"name":          a.Name,
		"email":         a.Email,
		"role":          a.Role,
		"emailVerified": a.Verified,
		"canBookCourse": a.Role == "member",
	}
	if a.DanceType != "" {
		out["dance_type"] = a.DanceType
	}
	return out
}

// courseJSON renders a course with numeric ids and the bookedBy list
func (s *Server) courseJSON(c *Course) map[string]interface{} {
	bookedBy := []int{}
	for userID, b := range s.bookings[c.ID] {
		if b.Status == "confirmed" {
			n, _ := strconv.Atoi(userID)
			bookedBy = append(bookedBy, n)
		}
	}
	sort.Ints(bookedBy)
	out := map[string]interface{}{
		"id":          numericID(c.ID),
		"name":        c.Name,
		"instructor":  c.Instructor,
		"location":    c.Location,
		"weekday":     c.Weekday,
		"timeSlot":    c.TimeSlot,
		"courseDate":  c.CourseDate,
		"maxCapacity": c.Capacity,
		"bookedCount": len(bookedBy),
		"bookedBy":    bookedBy,
		"description": c.Description,
		"danceType":   c.DanceType,
	}
	if c.LeaderID != "" {
		out["leaderId"] = numericID(c.LeaderID)
	}
	return out
}

func bookingJSON(b *bookingRecord, courseID, userID string) map[string]interface{} {
	return map[string]interface{}{
		"id":        numericID(b.ID),
		"userId":    numericID(userID),
		"courseId":  numericID(courseID),
		"status":    b.Status,
		"createdAt": b.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// numericID renders ids the way the server stores them
func numericID(id string) interface{} {
	if n, err := strconv.Atoi(id); err == nil {
		return n
	}
	return id
}
