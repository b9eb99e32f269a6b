package users

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// RoleType is the club role of an account
type RoleType string

const (
	RoleMember RoleType = "member" // Can book and cancel courses
	RoleLeader RoleType = "leader" // Leads a dance type, manages its courses
	RoleAdmin  RoleType = "admin"  // Manages accounts and every course
)

// Valid reports whether r is one of the known roles
func (r RoleType) Valid() bool {
	switch r {
	case RoleMember, RoleLeader, RoleAdmin:
		return true
	}
	return false
}

// DanceTypePublic marks a course that belongs to no dance type
const DanceTypePublic = "public"

// DanceTypes known to the club
var DanceTypes = []string{"breaking", "popping", "locking", "hiphop", "house", DanceTypePublic}

// Identity is the account record cached alongside the credential.
type Identity struct {
	ID            string   `json:"id"`                  // Canonical string form, the server may send a number
	Username      string   `json:"username"`            // Login name
	Name          string   `json:"name"`                // Display name
	Email         string   `json:"email"`               // Email address
	Role          RoleType `json:"role"`                // member, leader or admin
	DanceType     string   `json:"danceType,omitempty"` // Leader affiliation
	EmailVerified bool     `json:"emailVerified"`       // Set once the verification code was accepted
	CanBookCourse bool     `json:"canBookCourse"`       // Server side booking permission hint
}

// UnmarshalJSON accepts numeric or string ids and both danceType spellings.
func (i *Identity) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID            json.RawMessage `json:"id"`
		Username      string          `json:"username"`
		Name          string          `json:"name"`
		Email         string          `json:"email"`
		Role          RoleType        `json:"role"`
		DanceType     string          `json:"danceType"`
		DanceTypeAlt  string          `json:"dance_type"`
		EmailVerified *bool           `json:"emailVerified"`
		CanBookCourse *bool           `json:"canBookCourse"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	id, err := CanonicalID(wire.ID)
	if err != nil {
		return errors.Wrap(err, "identity id")
	}
	*i = Identity{
		ID:        id,
		Username:  wire.Username,
		Name:      wire.Name,
		Email:     wire.Email,
		Role:      RoleType(strings.ToLower(string(wire.Role))),
		DanceType: wire.DanceType,
	}
	if i.DanceType == "" {
		i.DanceType = wire.DanceTypeAlt
	}
	if wire.EmailVerified != nil {
		i.EmailVerified = *wire.EmailVerified
	}
	if wire.CanBookCourse != nil {
		i.CanBookCourse = *wire.CanBookCourse
	} else {
		i.CanBookCourse = i.Role == RoleMember
	}
	return nil
}

// CanBook reports whether the identity may book courses
func (i Identity) CanBook() bool {
	return i.Role == RoleMember
}

// IsAdmin returns true if the identity has admin privileges
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// LeadsDanceType reports whether the identity is the leader of the given dance type
func (i Identity) LeadsDanceType(danceType string) bool {
	return i.Role == RoleLeader && i.DanceType != "" && strings.EqualFold(i.DanceType, danceType)
}

// CanonicalID converts a JSON id (number, string or null) into its string form.
func CanonicalID(raw json.RawMessage) (string, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return "", nil
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return "", err
		}
		return str, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	return n.String(), nil
}
