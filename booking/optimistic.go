package booking

import (
	"time"

	clienterrors "github.com/jrsteele09/club-booking-client/internal/errors"
)

// change is an optimistic edit of one entry. It returns the edit that undoes it.
type change func(e *entry) (undo func(e *entry))

// guard inspects the current state before a change is applied
type guard func(CourseState) error

// pending is an applied, unconfirmed change. Exactly one of confirm or
// rollback takes effect; later calls are ignored.
type pending struct {
	view    *View
	id      string
	undo    func(e *entry)
	settled bool
}

// begin applies c to course id and marks it in flight. It fails without
// touching the view when the view is closed, the course is unknown, another
// change is outstanding or check rejects the current state.
func (v *View) begin(id string, op Op, startedAt time.Time, check guard, c change) (*pending, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil, clienterrors.ErrViewClosed
	}
	e, ok := v.entries[id]
	if !ok {
		v.mu.Unlock()
		return nil, clienterrors.ErrUnknownCourse
	}
	if _, busy := v.markers[id]; busy {
		v.mu.Unlock()
		return nil, clienterrors.ErrMutationInFlight
	}
	if check != nil {
		if err := check(v.stateLocked(id, e)); err != nil {
			v.mu.Unlock()
			return nil, err
		}
	}
	undo := c(e)
	v.markers[id] = marker{op: op, startedAt: startedAt}
	state := v.stateLocked(id, e)
	v.mu.Unlock()

	v.notify(state)
	return &pending{view: v, id: id, undo: undo}, nil
}

// confirm keeps the change and clears the marker
func (p *pending) confirm() {
	p.settle(false)
}

// rollback reverts the change and clears the marker
func (p *pending) rollback() {
	p.settle(true)
}

func (p *pending) settle(revert bool) {
	v := p.view
	v.mu.Lock()
	if p.settled || v.closed {
		p.settled = true
		v.mu.Unlock()
		return
	}
	p.settled = true
	e := v.entries[p.id]
	if revert && p.undo != nil {
		p.undo(e)
	}
	delete(v.markers, p.id)
	state := v.stateLocked(p.id, e)
	v.mu.Unlock()

	v.notify(state)
}

// setStatus moves an entry to status and shifts its occupancy by delta,
// keeping it within [0, capacity]. The undo restores the status and removes
// exactly the shift that was applied.
func setStatus(status Status, delta int) change {
	return func(e *entry) func(*entry) {
		prev := e.status
		before := e.booked
		e.status = status
		e.booked = clampBooked(e.booked+delta, e.course.Capacity)
		applied := e.booked - before
		return func(e *entry) {
			e.status = prev
			e.booked = clampBooked(e.booked-applied, e.course.Capacity)
		}
	}
}
