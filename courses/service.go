package courses

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/club-booking-client/gateway"
	clienterrors "github.com/jrsteele09/club-booking-client/internal/errors"
	"github.com/pkg/errors"
)

const dateLayout = "2006-01-02"

// Service wraps the course and booking endpoints.
type Service struct {
	gw gateway.Executor
}

func NewService(gw gateway.Executor) (*Service, error) {
	if gw == nil {
		return nil, errors.New("[courses.NewService] gateway is required")
	}
	return &Service{gw: gw}, nil
}

// List returns every course
func (s *Service) List(ctx context.Context) ([]Course, error) {
	res, err := s.gw.Execute(ctx, gateway.Request{Method: http.MethodGet, Path: "/courses", Class: gateway.Public})
	if err != nil {
		return nil, errors.Wrap(err, "[Service.List]")
	}
	return decodeCourses(res)
}

// Get returns one course
func (s *Service) Get(ctx context.Context, id string) (*Course, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}
	res, err := s.gw.Execute(ctx, gateway.Request{Method: http.MethodGet, Path: "/courses/" + url.PathEscape(id), Class: gateway.Public})
	if err != nil {
		return nil, errors.Wrapf(err, "[Service.Get] %s", id)
	}
	var c Course
	if err := res.Decode(&c); err != nil {
		return nil, errors.Wrapf(err, "[Service.Get] %s", id)
	}
	return &c, nil
}

// Week returns the courses of the week containing date
func (s *Service) Week(ctx context.Context, date time.Time) ([]Course, error) {
	q := url.Values{}
	q.Set("date", date.Format(dateLayout))
	res, err := s.gw.Execute(ctx, gateway.Request{Method: http.MethodGet, Path: "/courses/week", Query: q, Class: gateway.Public})
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Week]")
	}
	return decodeCourses(res)
}

// Book reserves a seat for the current user
func (s *Service) Book(ctx context.Context, id string) (*Booking, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}
	res, err := s.gw.Execute(ctx, gateway.Request{Method: http.MethodPost, Path: "/courses/" + url.PathEscape(id) + "/book", Class: gateway.Critical})
	if err != nil {
		return nil, errors.Wrapf(err, "[Service.Book] %s", id)
	}
	var b Booking
	if len(res.Data) > 0 && res.Data[0] == '{' {
		if err := res.Decode(&b); err != nil {
			return nil, errors.Wrapf(err, "[Service.Book] %s", id)
		}
	}
	if b.CourseID == "" {
		b.CourseID = id
	}
	if b.Status == "" {
		b.Status = "confirmed"
	}
	return &b, nil
}

// Cancel releases the current user's seat
func (s *Service) Cancel(ctx context.Context, id string) error {
	if err := requireID(id); err != nil {
		return err
	}
	_, err := s.gw.Execute(ctx, gateway.Request{Method: http.MethodDelete, Path: "/courses/" + url.PathEscape(id) + "/cancel", Class: gateway.Critical})
	return errors.Wrapf(err, "[Service.Cancel] %s", id)
}

// BookingStatus returns the raw status payload for one course. Lookups are
// soft: a 401 comes back as ErrNotAuthenticated without touching the session.
func (s *Service) BookingStatus(ctx context.Context, id string) (json.RawMessage, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}
	res, err := s.gw.Execute(ctx, gateway.Request{Method: http.MethodGet, Path: "/users/booking-status/" + url.PathEscape(id), Class: gateway.Soft})
	if err != nil {
		return nil, errors.Wrapf(err, "[Service.BookingStatus] %s", id)
	}
	return res.Data, nil
}

// UserBookings lists the courses the current user has confirmed
func (s *Service) UserBookings(ctx context.Context) ([]Course, error) {
	res, err := s.gw.Execute(ctx, gateway.Request{Method: http.MethodGet, Path: "/users/bookings", Class: gateway.Soft})
	if err != nil {
		return nil, errors.Wrap(err, "[Service.UserBookings]")
	}
	return decodeCourses(res)
}

// decodeCourses accepts a bare array or an object holding one under "courses"
func decodeCourses(res *gateway.Result) ([]Course, error) {
	var list []Course
	if found, err := res.Field("courses", &list); err != nil || found {
		return list, err
	}
	if err := res.Decode(&list); err != nil {
		return nil, err
	}
	return list, nil
}

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return &clienterrors.ValidationError{Field: "courseId", Reason: "is required"}
	}
	return nil
}
