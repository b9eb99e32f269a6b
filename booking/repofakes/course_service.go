package repofakes

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jrsteele09/club-booking-client/booking"
	"github.com/jrsteele09/club-booking-client/courses"
	clienterrors "github.com/jrsteele09/club-booking-client/internal/errors"
)

// FakeCourseService is an in-memory course service. Book and Cancel can be
// held open with Hold to observe a view while a change is outstanding.
type FakeCourseService struct {
	mu         sync.Mutex
	order      []string
	courses    map[string]courses.Course
	statuses   map[string]json.RawMessage
	statusErrs map[string]error
	lookups    map[string]int
	bookErr    error
	cancelErr  error
	getErr     error
	calls      map[string]int
	gate       chan struct{}
	started    chan string
}

var _ booking.CourseService = (*FakeCourseService)(nil)

func NewFakeCourseService(list ...courses.Course) *FakeCourseService {
	f := &FakeCourseService{
		courses:    make(map[string]courses.Course),
		statuses:   make(map[string]json.RawMessage),
		statusErrs: make(map[string]error),
		lookups:    make(map[string]int),
		calls:      make(map[string]int),
		started:    make(chan string, 16),
	}
	for _, c := range list {
		f.order = append(f.order, c.ID)
		f.courses[c.ID] = c
	}
	return f
}

// SetCourse replaces or adds a course
func (f *FakeCourseService) SetCourse(c courses.Course) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.courses[c.ID]; !ok {
		f.order = append(f.order, c.ID)
	}
	f.courses[c.ID] = c
}

// SetStatus sets the raw status payload returned for a course
func (f *FakeCourseService) SetStatus(id, raw string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = json.RawMessage(raw)
}

// FailStatus makes the status lookup of one course fail
func (f *FakeCourseService) FailStatus(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusErrs[id] = err
}

func (f *FakeCourseService) FailBook(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookErr = err
}

func (f *FakeCourseService) FailCancel(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelErr = err
}

func (f *FakeCourseService) FailGet(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErr = err
}

// Hold blocks Book and Cancel until the returned release is called
func (f *FakeCourseService) Hold() (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gate = gate
	f.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() { close(gate) })
	}
}

// Started receives the course id of every Book or Cancel call as it begins
func (f *FakeCourseService) Started() <-chan string {
	return f.started
}

// Lookups is how many status lookups were made for a course
func (f *FakeCourseService) Lookups(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookups[id]
}

// Calls is how many times a method ("book", "cancel", "get", "list") ran
func (f *FakeCourseService) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *FakeCourseService) List(ctx context.Context) ([]courses.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["list"]++
	out := make([]courses.Course, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.courses[id])
	}
	return out, nil
}

func (f *FakeCourseService) Get(ctx context.Context, id string) (*courses.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["get"]++
	if f.getErr != nil {
		return nil, f.getErr
	}
	c, ok := f.courses[id]
	if !ok {
		return nil, &clienterrors.APIError{Status: 404, Message: "course not found"}
	}
	return &c, nil
}

func (f *FakeCourseService) Book(ctx context.Context, id string) (*courses.Booking, error) {
	if err := f.wait(ctx, "book", id); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	c := f.courses[id]
	c.Booked++
	f.courses[id] = c
	return &courses.Booking{CourseID: id, Status: "confirmed"}, nil
}

func (f *FakeCourseService) Cancel(ctx context.Context, id string) error {
	if err := f.wait(ctx, "cancel", id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return f.cancelErr
	}
	c := f.courses[id]
	if c.Booked > 0 {
		c.Booked--
	}
	f.courses[id] = c
	return nil
}

func (f *FakeCourseService) BookingStatus(ctx context.Context, id string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups[id]++
	if err := f.statusErrs[id]; err != nil {
		return nil, err
	}
	if raw, ok := f.statuses[id]; ok {
		return raw, nil
	}
	return json.RawMessage(`{"status":"not_booked"}`), nil
}

func (f *FakeCourseService) wait(ctx context.Context, method, id string) error {
	f.mu.Lock()
	f.calls[method]++
	gate := f.gate
	f.mu.Unlock()

	select {
	case f.started <- id:
	default:
	}
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
