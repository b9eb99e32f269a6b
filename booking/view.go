package booking

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/club-booking-client/courses"
)

// Op is a booking mutation kind
type Op string

const (
	OpBook   Op = "book"
	OpCancel Op = "cancel"
)

// CourseState is a snapshot of one course in a View
type CourseState struct {
	Course   courses.Course
	Status   Status
	Booked   int
	Capacity int
	InFlight Op        // Empty when no mutation is outstanding
	Since    time.Time // When the outstanding mutation started
}

// Full reports whether every seat is taken
func (c CourseState) Full() bool {
	return c.Capacity > 0 && c.Booked >= c.Capacity
}

// ChangeObserver is called after a course in a view changed
type ChangeObserver func(CourseState)

type entry struct {
	course courses.Course
	status Status
	booked int
}

// marker records the one outstanding mutation of a course
type marker struct {
	op        Op
	startedAt time.Time
}

// View is the local, optimistically updated state of a list of courses.
// It is safe for concurrent use. Close it when the screen showing it goes away:
// outstanding calls are canceled and their late results are dropped.
type View struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	closed    bool
	order     []string
	entries   map[string]*entry
	markers   map[string]marker
	observers []ChangeObserver
}

type ViewOption func(*View)

func WithObserver(o ChangeObserver) ViewOption {
	return func(v *View) {
		v.observers = append(v.observers, o)
	}
}

// NewView tracks list with every status NotBooked. A course listed twice keeps its first entry.
func NewView(list []courses.Course, opts ...ViewOption) *View {
	ctx, cancel := context.WithCancel(context.Background())
	v := &View{
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]*entry, len(list)),
		markers: make(map[string]marker),
	}
	for _, opt := range opts {
		opt(v)
	}
	for _, c := range list {
		if _, dup := v.entries[c.ID]; dup || c.ID == "" {
			continue
		}
		v.order = append(v.order, c.ID)
		v.entries[c.ID] = &entry{course: c, status: NotBooked, booked: clampBooked(c.Booked, c.Capacity)}
	}
	return v
}

// Context is canceled when the view is closed
func (v *View) Context() context.Context {
	return v.ctx
}

// Close tears the view down. It is safe to call more than once.
func (v *View) Close() {
	v.mu.Lock()
	v.closed = true
	v.markers = make(map[string]marker)
	v.mu.Unlock()
	v.cancel()
}

func (v *View) Closed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

// IDs returns the course ids in list order
func (v *View) IDs() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.order...)
}

// Course returns the current state of one course
func (v *View) Course(id string) (CourseState, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	e, ok := v.entries[id]
	if !ok {
		return CourseState{}, false
	}
	return v.stateLocked(id, e), true
}

// Courses returns every course in list order
func (v *View) Courses() []CourseState {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]CourseState, 0, len(v.order))
	for _, id := range v.order {
		out = append(out, v.stateLocked(id, v.entries[id]))
	}
	return out
}

// ApplyStatuses merges server statuses. Courses with an outstanding
// mutation and ids the view does not track are left alone.
func (v *View) ApplyStatuses(statuses map[string]Status) {
	var changed []CourseState
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	for _, id := range v.order {
		status, ok := statuses[id]
		if !ok {
			continue
		}
		if _, busy := v.markers[id]; busy {
			continue
		}
		e := v.entries[id]
		if e.status == status {
			continue
		}
		e.status = status
		changed = append(changed, v.stateLocked(id, e))
	}
	v.mu.Unlock()
	v.notify(changed...)
}

// ApplyCourse replaces a course's details and occupancy with the server's
// copy unless a mutation on it is outstanding. Returns whether it was applied.
func (v *View) ApplyCourse(c courses.Course) bool {
	v.mu.Lock()
	e, ok := v.entries[c.ID]
	if v.closed || !ok {
		v.mu.Unlock()
		return false
	}
	if _, busy := v.markers[c.ID]; busy {
		v.mu.Unlock()
		return false
	}
	e.course = c
	e.booked = clampBooked(c.Booked, c.Capacity)
	state := v.stateLocked(c.ID, e)
	v.mu.Unlock()
	v.notify(state)
	return true
}

func (v *View) stateLocked(id string, e *entry) CourseState {
	m := v.markers[id]
	return CourseState{
		Course:   e.course,
		Status:   e.status,
		Booked:   e.booked,
		Capacity: e.course.Capacity,
		InFlight: m.op,
		Since:    m.startedAt,
	}
}

func (v *View) notify(states ...CourseState) {
	for _, s := range states {
		for _, o := range v.observers {
			o(s)
		}
	}
}

// clampBooked keeps 0 <= booked <= capacity; a zero capacity is unbounded
func clampBooked(booked, capacity int) int {
	if booked < 0 {
		return 0
	}
	if capacity > 0 && booked > capacity {
		return capacity
	}
	return booked
}
