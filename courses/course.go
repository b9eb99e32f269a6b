package courses

import (
	"encoding/json"
	"strings"

	"github.com/jrsteele09/club-booking-client/users"
	"github.com/pkg/errors"
)

// Course is a scheduled class as the server describes it.
type Course struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Instructor  string   `json:"instructor"`
	Location    string   `json:"location"`
	Weekday     string   `json:"weekday,omitempty"`
	TimeSlot    string   `json:"timeSlot"`             // "HH:MM-HH:MM"
	CourseDate  string   `json:"courseDate,omitempty"` // YYYY-MM-DD
	Capacity    int      `json:"maxCapacity"`
	Booked      int      `json:"bookedCount"`
	BookedBy    []string `json:"bookedBy,omitempty"`
	Description string   `json:"description,omitempty"`
	DanceType   string   `json:"danceType"`
	LeaderID    string   `json:"leaderId,omitempty"`
}

// UnmarshalJSON accepts numeric or string ids, both dance type spellings and
// derives the booked count from bookedBy when the count is absent.
func (c *Course) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID           json.RawMessage   `json:"id"`
		Name         string            `json:"name"`
		Instructor   string            `json:"instructor"`
		Location     string            `json:"location"`
		Weekday      string            `json:"weekday"`
		TimeSlot     string            `json:"timeSlot"`
		CourseDate   string            `json:"courseDate"`
		Capacity     int               `json:"maxCapacity"`
		BookedCount  *int              `json:"bookedCount"`
		BookedBy     []json.RawMessage `json:"bookedBy"`
		Description  string            `json:"description"`
		DanceType    string            `json:"danceType"`
		DanceTypeAlt string            `json:"dance_type"`
		LeaderID     json.RawMessage   `json:"leaderId"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	id, err := users.CanonicalID(wire.ID)
	if err != nil {
		return errors.Wrap(err, "course id")
	}
	leaderID, err := users.CanonicalID(wire.LeaderID)
	if err != nil {
		return errors.Wrap(err, "course leaderId")
	}

	*c = Course{
		ID:          id,
		Name:        wire.Name,
		Instructor:  wire.Instructor,
		Location:    wire.Location,
		Weekday:     wire.Weekday,
		TimeSlot:    wire.TimeSlot,
		CourseDate:  wire.CourseDate,
		Capacity:    wire.Capacity,
		Description: wire.Description,
		DanceType:   wire.DanceType,
		LeaderID:    leaderID,
	}
	if c.DanceType == "" {
		c.DanceType = wire.DanceTypeAlt
	}
	if c.DanceType == "" {
		c.DanceType = users.DanceTypePublic
	}
	for _, raw := range wire.BookedBy {
		userID, err := users.CanonicalID(raw)
		if err != nil {
			return errors.Wrap(err, "course bookedBy")
		}
		c.BookedBy = append(c.BookedBy, userID)
	}
	if wire.BookedCount != nil {
		c.Booked = *wire.BookedCount
	} else {
		c.Booked = len(c.BookedBy)
	}
	return nil
}

// Full reports whether no seat is left
func (c Course) Full() bool {
	return c.Capacity > 0 && c.Booked >= c.Capacity
}

// IsPublic reports whether the course belongs to no dance type
func (c Course) IsPublic() bool {
	return strings.EqualFold(c.DanceType, users.DanceTypePublic)
}

// Booking is a reservation record returned by the book endpoint.
type Booking struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	CourseID  string `json:"courseId"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt,omitempty"`
}

func (b *Booking) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID        json.RawMessage `json:"id"`
		UserID    json.RawMessage `json:"userId"`
		CourseID  json.RawMessage `json:"courseId"`
		Status    string          `json:"status"`
		CreatedAt string          `json:"createdAt"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	var err error
	*b = Booking{Status: wire.Status, CreatedAt: wire.CreatedAt}
	if b.ID, err = users.CanonicalID(wire.ID); err != nil {
		return errors.Wrap(err, "booking id")
	}
	if b.UserID, err = users.CanonicalID(wire.UserID); err != nil {
		return errors.Wrap(err, "booking userId")
	}
	if b.CourseID, err = users.CanonicalID(wire.CourseID); err != nil {
		return errors.Wrap(err, "booking courseId")
	}
	return nil
}
