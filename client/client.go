// Package client assembles the booking client from configuration: the
// session store and its backend, the gateway, the credential manager and
// the course, booking and administration services.
package client

import (
	"context"
	"net/http"

	"github.com/jrsteele09/club-booking-client/admin"
	"github.com/jrsteele09/club-booking-client/auth"
	"github.com/jrsteele09/club-booking-client/booking"
	"github.com/jrsteele09/club-booking-client/courses"
	"github.com/jrsteele09/club-booking-client/gateway"
	"github.com/jrsteele09/club-booking-client/internal/config"
	clienterrors "github.com/jrsteele09/club-booking-client/internal/errors"
	"github.com/jrsteele09/club-booking-client/internal/logging"
	"github.com/jrsteele09/club-booking-client/internal/metrics"
	"github.com/jrsteele09/club-booking-client/sessions"
	"github.com/jrsteele09/club-booking-client/sessions/filestore"
	"github.com/jrsteele09/club-booking-client/sessions/sqlitestore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Client holds every wired component
type Client struct {
	Log     zerolog.Logger
	Metrics *metrics.Metrics

	Store   *sessions.Store
	Gateway *gateway.Gateway
	Auth    *auth.Manager
	Courses *courses.Service
	Booking *booking.Engine

	Users        *admin.Users
	AdminCourses *admin.Courses
	Leaders      *admin.Leaders

	config  config.Config
	closeKV func() error
}

type options struct {
	log        *zerolog.Logger
	kv         sessions.KV
	httpClient *http.Client
	redirect   auth.LoginRedirect
	observers  []booking.ChangeObserver
}

type Option func(*options)

// WithLogger replaces the logger built from LOG_LEVEL and ENV
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) {
		o.log = &log
	}
}

// WithKV bypasses SESSION_BACKEND
func WithKV(kv sessions.KV) Option {
	return func(o *options) {
		o.kv = kv
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithLoginRedirect is called when a session is lost for good
func WithLoginRedirect(r auth.LoginRedirect) Option {
	return func(o *options) {
		o.redirect = r
	}
}

// WithChangeObserver sees every change to course views
func WithChangeObserver(ob booking.ChangeObserver) Option {
	return func(o *options) {
		o.observers = append(o.observers, ob)
	}
}

func New(c config.Config, opts ...Option) (*Client, error) {
	if c == nil {
		return nil, errors.New("[client.New] config is required")
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	cl := &Client{config: c, Metrics: metrics.New(), closeKV: func() error { return nil }}
	if o.log != nil {
		cl.Log = *o.log
	} else {
		cl.Log = logging.New(c.GetLogLevel(), c.GetEnv())
	}

	kv := o.kv
	if kv == nil {
		var err error
		if kv, cl.closeKV, err = openKV(c); err != nil {
			return nil, errors.Wrap(err, "[client.New]")
		}
	}
	if err := cl.wire(kv, o); err != nil {
		_ = cl.closeKV()
		return nil, errors.Wrap(err, "[client.New]")
	}
	return cl, nil
}

func (cl *Client) wire(kv sessions.KV, o *options) error {
	var err error
	c := cl.config

	if cl.Store, err = sessions.NewStore(kv, sessions.WithLogger(cl.Log)); err != nil {
		return err
	}

	gwOpts := []gateway.Option{
		gateway.WithTimeout(c.GetRequestTimeout()),
		gateway.WithUserAgent(c.GetAppName()),
		gateway.WithLogger(cl.Log),
		gateway.WithMetrics(cl.Metrics),
	}
	if o.httpClient != nil {
		gwOpts = append(gwOpts, gateway.WithHTTPClient(o.httpClient))
	}
	if cl.Gateway, err = gateway.New(c.GetAPIBaseURL(), cl.Store, gwOpts...); err != nil {
		return err
	}

	authOpts := []auth.ManagerOption{
		auth.WithLogger(cl.Log),
		auth.WithMetrics(cl.Metrics),
		auth.WithMinRefreshInterval(c.GetMinRefreshInterval()),
	}
	if o.redirect != nil {
		authOpts = append(authOpts, auth.WithLoginRedirect(o.redirect))
	}
	if cl.Auth, err = auth.NewManager(cl.Gateway, cl.Store, authOpts...); err != nil {
		return err
	}
	cl.Gateway.AttachRefresher(cl.Auth)

	if cl.Courses, err = courses.NewService(cl.Gateway); err != nil {
		return err
	}
	bookingOpts := []booking.Option{
		booking.WithLogger(cl.Log),
		booking.WithMetrics(cl.Metrics),
		booking.WithStatusConcurrency(c.GetStatusLookupConcurrency()),
		booking.WithReconcileAfterMutation(c.GetReconcileAfterMutation()),
	}
	for _, ob := range o.observers {
		bookingOpts = append(bookingOpts, booking.WithChangeObserver(ob))
	}
	if cl.Booking, err = booking.NewEngine(cl.Courses, cl.Store, bookingOpts...); err != nil {
		return err
	}

	if cl.Users, err = admin.NewUsers(cl.Gateway); err != nil {
		return err
	}
	if cl.AdminCourses, err = admin.NewCourses(cl.Gateway); err != nil {
		return err
	}
	cl.Leaders, err = admin.NewLeaders(cl.Gateway)
	return err
}

// Start restores a persisted session and schedules periodic refreshes.
// Having nothing to restore is not an error.
func (cl *Client) Start(ctx context.Context) (*sessions.Session, error) {
	sess, err := cl.Auth.AutoRefreshOnStartup(ctx)
	if err != nil && !clienterrors.Is(err, clienterrors.ErrNoSession) {
		cl.Log.Warn().Err(err).Msg("session not restored")
	}
	if err := cl.Auth.SchedulePeriodicRefresh(cl.config.GetPeriodicRefreshInterval()); err != nil {
		return sess, errors.Wrap(err, "[Client.Start]")
	}
	return sess, nil
}

// Close stops background refreshes and releases the session backend
func (cl *Client) Close() error {
	cl.Auth.StopPeriodicRefresh()
	return cl.closeKV()
}

// openKV opens the session backend chosen by SESSION_BACKEND
func openKV(c config.StorageConfig) (sessions.KV, func() error, error) {
	switch backend := c.GetSessionBackend(); backend {
	case config.SessionBackendFile:
		kv, err := filestore.New(c.GetDataFolder(), filestore.WithPassphrase(c.GetSessionPassphrase()))
		if err != nil {
			return nil, nil, err
		}
		return kv, func() error { return nil }, nil
	case config.SessionBackendSQLite:
		kv, err := sqlitestore.Open(c.GetDataFolder())
		if err != nil {
			return nil, nil, err
		}
		return kv, kv.Close, nil
	case config.SessionBackendMemory:
		kv, err := sqlitestore.OpenDSN(":memory:")
		if err != nil {
			return nil, nil, err
		}
		return kv, kv.Close, nil
	default:
		return nil, nil, errors.Errorf("unknown session backend %q", backend)
	}
}
