package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/club-booking-client/courses"
	"github.com/jrsteele09/club-booking-client/gateway"
	clienterrors "github.com/jrsteele09/club-booking-client/internal/errors"
	"github.com/jrsteele09/club-booking-client/users"
	"github.com/pkg/errors"
)

// CourseInput creates or updates a course. Nil fields are left unchanged on update.
type CourseInput struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1"`
	Instructor  *string `json:"instructor,omitempty"`
	Location    *string `json:"location,omitempty"`
	Weekday     *string `json:"weekday,omitempty"`
	TimeSlot    *string `json:"timeSlot,omitempty" validate:"omitempty,timeslot"`
	CourseDate  *string `json:"courseDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Capacity    *int    `json:"maxCapacity,omitempty" validate:"omitempty,gt=0"`
	Description *string `json:"description,omitempty"`
	DanceType   *string `json:"danceType,omitempty"`
	LeaderID    *string `json:"leaderId,omitempty"`
}

// Assignment is the dance type and leader a course belongs to
type Assignment struct {
	CourseID   string `json:"courseId"`
	CourseName string `json:"courseName"`
	DanceType  string `json:"danceType"`
	LeaderID   string `json:"leaderId,omitempty"`
}

func (a *Assignment) UnmarshalJSON(data []byte) error {
	var wire struct {
		CourseID     json.RawMessage `json:"courseId"`
		CourseName   string          `json:"courseName"`
		DanceType    string          `json:"danceType"`
		DanceTypeAlt string          `json:"dance_type"`
		LeaderID     json.RawMessage `json:"leaderId"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	courseID, err := users.CanonicalID(wire.CourseID)
	if err != nil {
		return errors.Wrap(err, "assignment courseId")
	}
	leaderID, err := users.CanonicalID(wire.LeaderID)
	if err != nil {
		return errors.Wrap(err, "assignment leaderId")
	}
	*a = Assignment{CourseID: courseID, CourseName: wire.CourseName, DanceType: wire.DanceType, LeaderID: leaderID}
	if a.DanceType == "" {
		a.DanceType = wire.DanceTypeAlt
	}
	return nil
}

type assignRequest struct {
	DanceType string  `json:"danceType" validate:"required"`
	LeaderID  *string `json:"leaderId"`
}

// Courses administers course records. Leaders only see and change the
// courses of their own dance type.
type Courses struct {
	gw       gateway.Executor
	validate *validator.Validate
}

func NewCourses(gw gateway.Executor) (*Courses, error) {
	if gw == nil {
		return nil, errors.New("[admin.NewCourses] gateway is required")
	}
	return &Courses{gw: gw, validate: newValidator()}, nil
}

// List returns the courses the caller may administer
func (c *Courses) List(ctx context.Context) ([]courses.Course, error) {
	res, err := c.gw.Execute(ctx, gateway.Request{Method: http.MethodGet, Path: "/admin/courses", Class: gateway.Soft})
	if err != nil {
		return nil, errors.Wrap(err, "[Courses.List]")
	}
	var list []courses.Course
	if found, err := res.Field("courses", &list); err != nil || found {
		return list, errors.Wrap(err, "[Courses.List]")
	}
	if err := res.Decode(&list); err != nil {
		return nil, errors.Wrap(err, "[Courses.List]")
	}
	return list, nil
}

// Create adds a course. Name and capacity are required.
func (c *Courses) Create(ctx context.Context, in CourseInput) (*courses.Course, error) {
	if in.Name == nil {
		return nil, &clienterrors.ValidationError{Field: "name", Reason: "is required"}
	}
	if in.Capacity == nil {
		return nil, &clienterrors.ValidationError{Field: "maxCapacity", Reason: "is required"}
	}
	if err := validateInput(c.validate, in); err != nil {
		return nil, err
	}
	res, err := c.gw.Execute(ctx, gateway.Request{Method: http.MethodPost, Path: "/admin/courses", Body: in, Class: gateway.Critical})
	if err != nil {
		return nil, errors.Wrap(err, "[Courses.Create]")
	}
	return decodeCourse(res, "[Courses.Create]")
}

// Update changes the given fields of a course
func (c *Courses) Update(ctx context.Context, id string, in CourseInput) (*courses.Course, error) {
	if err := requireValue("id", id); err != nil {
		return nil, err
	}
	if err := validateInput(c.validate, in); err != nil {
		return nil, err
	}
	res, err := c.gw.Execute(ctx, gateway.Request{Method: http.MethodPut, Path: "/admin/courses/" + url.PathEscape(id), Body: in, Class: gateway.Critical})
	if err != nil {
		return nil, errors.Wrapf(err, "[Courses.Update] %s", id)
	}
	return decodeCourse(res, "[Courses.Update]")
}

// Delete removes a course and its bookings
func (c *Courses) Delete(ctx context.Context, id string) error {
	if err := requireValue("id", id); err != nil {
		return err
	}
	_, err := c.gw.Execute(ctx, gateway.Request{Method: http.MethodDelete, Path: "/admin/courses/" + url.PathEscape(id), Class: gateway.Critical})
	return errors.Wrapf(err, "[Courses.Delete] %s", id)
}

// Assignments lists the dance type and leader of every course
func (c *Courses) Assignments(ctx context.Context) ([]Assignment, error) {
	res, err := c.gw.Execute(ctx, gateway.Request{Method: http.MethodGet, Path: "/admin/courses/assignments", Class: gateway.Soft})
	if err != nil {
		return nil, errors.Wrap(err, "[Courses.Assignments]")
	}
	var out []Assignment
	if err := res.Decode(&out); err != nil {
		return nil, errors.Wrap(err, "[Courses.Assignments]")
	}
	return out, nil
}

// Assign moves a course to danceType. An empty leaderID leaves it without a leader.
func (c *Courses) Assign(ctx context.Context, id, danceType, leaderID string) (*courses.Course, error) {
	if err := requireValue("id", id); err != nil {
		return nil, err
	}
	body := assignRequest{DanceType: danceType}
	if leaderID != "" {
		body.LeaderID = &leaderID
	}
	if err := validateInput(c.validate, body); err != nil {
		return nil, err
	}
	res, err := c.gw.Execute(ctx, gateway.Request{Method: http.MethodPut, Path: "/admin/courses/" + url.PathEscape(id) + "/assign", Body: body, Class: gateway.Critical})
	if err != nil {
		return nil, errors.Wrapf(err, "[Courses.Assign] %s", id)
	}
	return decodeCourse(res, "[Courses.Assign]")
}

func decodeCourse(res *gateway.Result, op string) (*courses.Course, error) {
	var course courses.Course
	if err := res.Decode(&course); err != nil {
		return nil, errors.Wrap(err, op)
	}
	return &course, nil
}
