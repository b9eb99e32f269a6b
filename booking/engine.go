package booking

import (
	"context"
	"time"

	"github.com/jrsteele09/club-booking-client/courses"
	clienterrors "github.com/jrsteele09/club-booking-client/internal/errors"
	"github.com/jrsteele09/club-booking-client/internal/metrics"
	"github.com/jrsteele09/club-booking-client/sessions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Mutation outcomes recorded in metrics
const (
	outcomeConfirmed  = "confirmed"
	outcomeRolledBack = "rolled_back"
	outcomeRejected   = "rejected"
	outcomeDiscarded  = "discarded"
)

// CourseService is the subset of courses.Service the engine drives
type CourseService interface {
	StatusLookup
	List(ctx context.Context) ([]courses.Course, error)
	Get(ctx context.Context, id string) (*courses.Course, error)
	Book(ctx context.Context, id string) (*courses.Booking, error)
	Cancel(ctx context.Context, id string) error
}

var _ CourseService = (*courses.Service)(nil)

type settings struct {
	log               zerolog.Logger
	metrics           *metrics.Metrics
	nowTime           func() time.Time
	reconcileAfter    bool
	statusConcurrency int
	observers         []ChangeObserver
}

func newSettings(options []Option) settings {
	s := settings{
		log:               zerolog.Nop(),
		nowTime:           time.Now,
		reconcileAfter:    true,
		statusConcurrency: defaultStatusConcurrency,
	}
	for _, opt := range options {
		opt(&s)
	}
	return s
}

// Option configures an Engine or a Reconciler
type Option func(*settings)

func WithLogger(log zerolog.Logger) Option {
	return func(s *settings) {
		s.log = log
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(s *settings) {
		s.metrics = mt
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *settings) {
		s.nowTime = nowFunc
	}
}

// WithReconcileAfterMutation re-fetches a course after a confirmed change
func WithReconcileAfterMutation(enabled bool) Option {
	return func(s *settings) {
		s.reconcileAfter = enabled
	}
}

// WithStatusConcurrency bounds parallel status lookups. Values below 1 are ignored.
func WithStatusConcurrency(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.statusConcurrency = n
		}
	}
}

// WithChangeObserver is attached to every view the engine creates
func WithChangeObserver(o ChangeObserver) Option {
	return func(s *settings) {
		s.observers = append(s.observers, o)
	}
}

// Engine loads course views and applies booking changes to them optimistically.
type Engine struct {
	svc        CourseService
	session    sessions.Reader
	reconciler *Reconciler
	settings
}

// NewEngine creates the optimistic mutation engine
func NewEngine(svc CourseService, session sessions.Reader, options ...Option) (*Engine, error) {
	if svc == nil {
		return nil, errors.New("[NewEngine] course service is required")
	}
	if session == nil {
		return nil, errors.New("[NewEngine] session reader is required")
	}
	reconciler, err := NewReconciler(svc, options...)
	if err != nil {
		return nil, errors.Wrap(err, "[NewEngine]")
	}
	return &Engine{
		svc:        svc,
		session:    session,
		reconciler: reconciler,
		settings:   newSettings(options),
	}, nil
}

// LoadView lists every course and tracks them in a new view
func (e *Engine) LoadView(ctx context.Context) (*View, error) {
	list, err := e.svc.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "[Engine.LoadView]")
	}
	return e.Track(ctx, list), nil
}

// Track creates a view over list. When signed in, statuses are fetched in one batch.
func (e *Engine) Track(ctx context.Context, list []courses.Course) *View {
	opts := make([]ViewOption, 0, len(e.observers))
	for _, o := range e.observers {
		opts = append(opts, WithObserver(o))
	}
	v := NewView(list, opts...)
	if e.session.Token() != "" {
		v.ApplyStatuses(e.reconciler.FetchStatuses(ctx, v.IDs()))
	}
	return v
}

// Reconcile refreshes occupancy and statuses of a view from the server.
// Courses with an outstanding change are left as they are.
func (e *Engine) Reconcile(ctx context.Context, v *View) error {
	ctx, done := bind(ctx, v)
	defer done()

	list, err := e.svc.List(ctx)
	if err != nil {
		return errors.Wrap(err, "[Engine.Reconcile]")
	}
	for _, c := range list {
		v.ApplyCourse(c)
	}
	if e.session.Token() != "" {
		v.ApplyStatuses(e.reconciler.FetchStatuses(ctx, v.IDs()))
	}
	return nil
}

// RequestBooking books courseID. The view shows the booking and the extra
// seat at once; both are reverted if the server refuses it.
func (e *Engine) RequestBooking(ctx context.Context, v *View, courseID string) error {
	if err := e.requireMember(); err != nil {
		e.metrics.RecordMutation(string(OpBook), outcomeRejected)
		return err
	}
	check := func(s CourseState) error {
		if s.Status.Held() {
			return clienterrors.ErrAlreadyBooked
		}
		if s.Full() {
			return &clienterrors.CapacityExceededError{CourseID: courseID, Booked: s.Booked, Capacity: s.Capacity}
		}
		return nil
	}
	return e.mutate(ctx, v, courseID, OpBook, check, setStatus(Confirmed, 1), func(ctx context.Context) error {
		_, err := e.svc.Book(ctx, courseID)
		return err
	})
}

// RequestCancellation cancels a confirmed booking of courseID, releasing
// its seat in the view until the server answers.
func (e *Engine) RequestCancellation(ctx context.Context, v *View, courseID string) error {
	if err := e.requireMember(); err != nil {
		e.metrics.RecordMutation(string(OpCancel), outcomeRejected)
		return err
	}
	check := func(s CourseState) error {
		if s.Status != Confirmed {
			return clienterrors.ErrNotBooked
		}
		return nil
	}
	return e.mutate(ctx, v, courseID, OpCancel, check, setStatus(Canceled, -1), func(ctx context.Context) error {
		return e.svc.Cancel(ctx, courseID)
	})
}

func (e *Engine) mutate(ctx context.Context, v *View, courseID string, op Op, check guard, c change, call func(context.Context) error) error {
	if v == nil {
		return errors.New("[Engine.mutate] view is required")
	}
	p, err := v.begin(courseID, op, e.nowTime(), check, c)
	if err != nil {
		e.metrics.RecordMutation(string(op), outcomeRejected)
		return errors.Wrapf(err, "[Engine.%s] %s", op, courseID)
	}

	callCtx, done := bind(ctx, v)
	defer done()

	if err := call(callCtx); err != nil {
		p.rollback()
		outcome := outcomeRolledBack
		if v.Closed() {
			outcome = outcomeDiscarded
		}
		e.metrics.RecordMutation(string(op), outcome)
		e.log.Warn().Err(err).Str("course_id", courseID).Str("op", string(op)).Msg("booking change rolled back")
		return errors.Wrapf(err, "[Engine.%s] %s", op, courseID)
	}

	p.confirm()
	e.metrics.RecordMutation(string(op), outcomeConfirmed)
	e.log.Debug().Str("course_id", courseID).Str("op", string(op)).Msg("booking change confirmed")

	if e.reconcileAfter {
		e.refetch(callCtx, v, courseID)
	}
	return nil
}

// refetch replaces the course with the server's copy. Failures keep the optimistic state.
func (e *Engine) refetch(ctx context.Context, v *View, courseID string) {
	c, err := e.svc.Get(ctx, courseID)
	if err != nil {
		e.log.Debug().Err(err).Str("course_id", courseID).Msg("course re-fetch failed")
		return
	}
	if c.ID == "" {
		c.ID = courseID
	}
	v.ApplyCourse(*c)
}

func (e *Engine) requireMember() error {
	if e.session.Token() == "" {
		return clienterrors.ErrNotAuthenticated
	}
	ident, ok := e.session.Identity()
	if !ok {
		return clienterrors.ErrNotAuthenticated
	}
	if !ident.CanBook() {
		return clienterrors.ErrNotPermitted
	}
	return nil
}

// bind derives a context that is also canceled when the view closes
func bind(ctx context.Context, v *View) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(v.Context(), cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
