package auth

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/club-booking-client/gateway"
	clienterrors "github.com/jrsteele09/club-booking-client/internal/errors"
	"github.com/jrsteele09/club-booking-client/internal/logging"
	"github.com/jrsteele09/club-booking-client/internal/metrics"
	"github.com/jrsteele09/club-booking-client/sessions"
	"github.com/jrsteele09/club-booking-client/token"
	"github.com/jrsteele09/club-booking-client/users"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const defaultMinRefreshInterval = 5 * time.Minute

// LoginRedirect is called once each time a session is lost to an
// unrecoverable authorization failure
type LoginRedirect func(reason string)

// Registration is the outcome of Register or ResendVerification
type Registration struct {
	UserID        string
	Email         string
	EmailVerified bool
	Session       *sessions.Session // Set when the server already issued a credential
}

// Manager owns the session: it is the only writer of the Store.
type Manager struct {
	gw       gateway.Executor
	store    *sessions.Store
	validate *validator.Validate
	log      zerolog.Logger
	metrics  *metrics.Metrics
	nowTime  func() time.Time

	minRefreshInterval time.Duration
	refreshGroup       singleflight.Group

	stateMu   sync.Mutex
	state     State
	observers []StateObserver
	redirect  LoginRedirect
	pending   *clienterrors.UnverifiedEmailError

	cronMu    sync.Mutex
	scheduler *cron.Cron
}

var _ gateway.Refresher = (*Manager)(nil)

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

func WithLogger(log zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = log
	}
}

func WithMetrics(mt *metrics.Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// WithMinRefreshInterval sets the throttle window shared by every refresh trigger
func WithMinRefreshInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.minRefreshInterval = d
	}
}

func WithStateObserver(o StateObserver) ManagerOption {
	return func(m *Manager) {
		m.observers = append(m.observers, o)
	}
}

func WithLoginRedirect(r LoginRedirect) ManagerOption {
	return func(m *Manager) {
		m.redirect = r
	}
}

// NewManager creates the credential lifecycle manager
func NewManager(gw gateway.Executor, store *sessions.Store, options ...ManagerOption) (*Manager, error) {
	if gw == nil {
		return nil, errors.New("[NewManager] gateway is required")
	}
	if store == nil {
		return nil, errors.New("[NewManager] session store is required")
	}
	m := &Manager{
		gw:                 gw,
		store:              store,
		validate:           newValidator(),
		log:                zerolog.Nop(),
		nowTime:            time.Now,
		minRefreshInterval: defaultMinRefreshInterval,
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// State returns the current lifecycle state
func (m *Manager) State() State {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.state
}

// PendingVerification returns the account waiting for email verification, if any
func (m *Manager) PendingVerification() (*clienterrors.UnverifiedEmailError, bool) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	if m.pending == nil {
		return nil, false
	}
	cp := *m.pending
	return &cp, true
}

// Session returns the current session
func (m *Manager) Session() (sessions.Session, bool) {
	return m.store.Current()
}

// Login exchanges credentials for a session
func (m *Manager) Login(ctx context.Context, username, password string) (*sessions.Session, error) {
	creds := Credentials{Username: strings.TrimSpace(username), Password: password}
	if err := validateInput(m.validate, creds); err != nil {
		return nil, err
	}

	m.transition(Authenticating)
	res, err := m.gw.Execute(ctx, gateway.Request{Method: http.MethodPost, Path: "/auth/login", Body: creds, Class: gateway.Public})
	if err != nil {
		return nil, m.failAuthentication(err)
	}
	sess, err := m.establish(ctx, res)
	if err != nil {
		m.settle()
		return nil, errors.Wrap(err, "[Manager.Login]")
	}
	m.log.Info().Str("user", sess.Identity.Username).Msg("logged in")
	return sess, nil
}

// Register creates an account. The server usually asks for email verification
// first; when it issues a credential straight away the session is established.
func (m *Manager) Register(ctx context.Context, req RegisterRequest) (*Registration, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := validateInput(m.validate, req); err != nil {
		return nil, err
	}

	m.transition(Authenticating)
	res, err := m.gw.Execute(ctx, gateway.Request{Method: http.MethodPost, Path: "/auth/register", Body: req, Class: gateway.Public})
	if err != nil {
		m.settle()
		return nil, errors.Wrap(err, "[Manager.Register]")
	}
	return m.registrationOutcome(ctx, res, req.Email)
}

// VerifyEmail submits the emailed code. A response carrying a credential
// is equivalent to a login; otherwise the caller must log in.
func (m *Manager) VerifyEmail(ctx context.Context, userID, code string) (*sessions.Session, error) {
	body := verifyEmailRequest{UserID: wireUserID(userID), Code: strings.TrimSpace(code)}
	if strings.TrimSpace(userID) == "" {
		return nil, &clienterrors.ValidationError{Field: "userId", Reason: "is required"}
	}
	if err := validateInput(m.validate, body); err != nil {
		return nil, err
	}

	m.transition(Authenticating)
	res, err := m.gw.Execute(ctx, gateway.Request{Method: http.MethodPost, Path: "/auth/verify-email", Body: body, Class: gateway.Public})
	if err != nil {
		return nil, m.failAuthentication(err)
	}

	cred, err := parseCredential(res)
	if err != nil {
		m.settle()
		return nil, errors.Wrap(err, "[Manager.VerifyEmail]")
	}
	if cred.Token == "" {
		m.clearPending()
		m.settle()
		return nil, nil
	}
	sess, err := m.establish(ctx, res)
	if err != nil {
		m.settle()
		return nil, errors.Wrap(err, "[Manager.VerifyEmail]")
	}
	return sess, nil
}

// ResendVerification asks for a new code. Without a credential in the
// response the pending account is returned.
func (m *Manager) ResendVerification(ctx context.Context, email string) (*Registration, error) {
	body := emailRequest{Email: strings.TrimSpace(email)}
	if err := validateInput(m.validate, body); err != nil {
		return nil, err
	}
	res, err := m.gw.Execute(ctx, gateway.Request{Method: http.MethodPost, Path: "/auth/resend-verification", Body: body, Class: gateway.Public})
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.ResendVerification]")
	}
	cred, err := parseCredential(res)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.ResendVerification]")
	}
	if cred.Token != "" {
		m.transition(Authenticating)
	}
	return m.registrationOutcome(ctx, res, body.Email)
}

// ForgotPassword requests a password reset email
func (m *Manager) ForgotPassword(ctx context.Context, email string) error {
	body := emailRequest{Email: strings.TrimSpace(email)}
	if err := validateInput(m.validate, body); err != nil {
		return err
	}
	_, err := m.gw.Execute(ctx, gateway.Request{Method: http.MethodPost, Path: "/auth/forgot-password", Body: body, Class: gateway.Public})
	return errors.Wrap(err, "[Manager.ForgotPassword]")
}

// ResetPassword sets a new password using the emailed reset token
func (m *Manager) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	body := resetPasswordRequest{Token: strings.TrimSpace(resetToken), Password: newPassword}
	if err := validateInput(m.validate, body); err != nil {
		return err
	}
	_, err := m.gw.Execute(ctx, gateway.Request{Method: http.MethodPost, Path: "/auth/reset-password", Body: body, Class: gateway.Public})
	return errors.Wrap(err, "[Manager.ResetPassword]")
}

// FetchIdentity reloads the account from /users/me and updates the session
func (m *Manager) FetchIdentity(ctx context.Context) (users.Identity, error) {
	current, ok := m.store.Current()
	if !ok {
		return users.Identity{}, errors.Wrap(clienterrors.ErrNoSession, "[Manager.FetchIdentity]")
	}
	identity, err := m.getMe(ctx, gateway.Critical)
	if err != nil {
		return users.Identity{}, errors.Wrap(err, "[Manager.FetchIdentity]")
	}
	// The credential may have been refreshed while the call was in flight
	if latest, ok := m.store.Current(); ok {
		current = latest
	}
	current.Identity = identity
	if _, err := m.store.Replace(current.Token, current); err != nil {
		m.log.Warn().Err(err).Msg("persisting identity")
	}
	return identity, nil
}

// Logout ends the session. The server call is best effort; the local
// session is always cleared and a second call is a no-op.
func (m *Manager) Logout(ctx context.Context) error {
	m.StopPeriodicRefresh()
	if tok := m.store.Token(); tok != "" {
		_, err := m.gw.Execute(ctx, gateway.Request{Method: http.MethodPost, Path: "/auth/logout", Class: gateway.RefreshFlow})
		if err != nil {
			m.log.Debug().Err(err).Msg("server logout failed, clearing locally")
		}
	}
	if m.store.Clear() {
		m.log.Info().Msg("logged out")
	}
	m.clearPending()
	m.transition(Anonymous)
	return nil
}

// Expire clears the session if its credential is still token.
// Returns true when this call cleared it.
func (m *Manager) Expire(rejected string) bool {
	if rejected == "" || !m.store.ClearIfToken(rejected) {
		return false
	}
	m.sessionLost("authorization expired")
	return true
}

func (m *Manager) sessionLost(reason string) {
	m.metrics.RecordSessionExpired()
	m.log.Warn().Str("reason", reason).Msg("session lost")
	m.transition(Anonymous)
	if m.redirect != nil {
		m.redirect(reason)
	}
}

// establish installs the credential carried by res as the current session
func (m *Manager) establish(ctx context.Context, res *gateway.Result) (*sessions.Session, error) {
	cred, err := parseCredential(res)
	if err != nil {
		return nil, err
	}
	if cred.Token == "" {
		return nil, &clienterrors.DecodeError{Err: errors.New("response carries no token")}
	}

	sess := m.newSession(cred.Token)
	if cred.User != nil {
		sess.Identity = *cred.User
	} else if cached, ok := m.store.LoadCachedIdentity(); ok {
		sess.Identity = cached
	}
	m.put(sess)

	if cred.User == nil {
		identity, err := m.getMe(ctx, gateway.RefreshFlow)
		if err != nil {
			m.log.Warn().Err(err).Msg("identity lookup after login failed, using cached identity")
		} else {
			sess.Identity = identity
			m.put(sess)
		}
	}

	m.clearPending()
	m.transition(Authenticated)
	return &sess, nil
}

func (m *Manager) registrationOutcome(ctx context.Context, res *gateway.Result, email string) (*Registration, error) {
	reg := registrationFrom(res)
	cred, err := parseCredential(res)
	if err != nil {
		m.settle()
		return nil, err
	}
	if cred.User != nil {
		if reg.UserID == "" {
			reg.UserID = cred.User.ID
		}
		if reg.Email == "" {
			reg.Email = cred.User.Email
		}
		reg.EmailVerified = reg.EmailVerified || cred.User.EmailVerified
	}
	if reg.Email == "" {
		reg.Email = email
	}

	if cred.Token != "" {
		sess, err := m.establish(ctx, res)
		if err != nil {
			m.settle()
			return nil, err
		}
		reg.Session = sess
		return &reg, nil
	}

	m.setPending(&clienterrors.UnverifiedEmailError{UserID: reg.UserID, Email: reg.Email})
	if m.store.Token() != "" {
		m.settle()
		return &reg, nil
	}
	m.transition(EmailPendingVerification)
	return &reg, nil
}

func (m *Manager) failAuthentication(err error) error {
	classified := classifyLoginError(err)
	var unverified *clienterrors.UnverifiedEmailError
	if clienterrors.As(classified, &unverified) {
		m.setPending(unverified)
		if m.store.Token() == "" {
			m.transition(EmailPendingVerification)
			return classified
		}
	}
	m.settle()
	return classified
}

// settle ends a failed sign-in attempt. A session that was already active
// stays authoritative, so the state follows the store.
func (m *Manager) settle() {
	if m.store.Token() != "" {
		m.transition(Authenticated)
		return
	}
	m.transition(Anonymous)
}

func (m *Manager) getMe(ctx context.Context, class gateway.Class) (users.Identity, error) {
	res, err := m.gw.Execute(ctx, gateway.Request{Method: http.MethodGet, Path: "/users/me", Class: class})
	if err != nil {
		return users.Identity{}, err
	}
	var identity users.Identity
	if found, err := res.Field("user", &identity); err != nil || found {
		return identity, err
	}
	if err := res.Decode(&identity); err != nil {
		return users.Identity{}, err
	}
	return identity, nil
}

func (m *Manager) newSession(tok string) sessions.Session {
	sess := sessions.Session{Token: tok, LastRefresh: m.nowTime()}
	info, err := token.Inspect(tok)
	if err != nil {
		m.log.Debug().Err(err).Str("token", logging.MaskToken(tok)).Msg("token claims unreadable")
		return sess
	}
	sess.ExpiresAt = info.ExpiresAt
	return sess
}

// put stores the session; a persistence failure leaves the in-memory session usable
func (m *Manager) put(sess sessions.Session) {
	if err := m.store.Put(sess); err != nil {
		m.log.Warn().Err(err).Msg("session not persisted")
	}
}

func (m *Manager) transition(to State) {
	m.stateMu.Lock()
	from := m.state
	if !CanTransition(from, to) {
		m.stateMu.Unlock()
		m.log.Warn().Stringer("from", from).Stringer("to", to).Msg("illegal state transition ignored")
		return
	}
	m.state = to
	observers := m.observers
	m.stateMu.Unlock()

	if from == to {
		return
	}
	m.log.Debug().Stringer("from", from).Stringer("to", to).Msg("state")
	for _, o := range observers {
		o(from, to)
	}
}

func (m *Manager) setPending(p *clienterrors.UnverifiedEmailError) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.pending = p
}

func (m *Manager) clearPending() {
	m.setPending(nil)
}

// wireUserID sends numeric ids as JSON numbers
func wireUserID(id string) interface{} {
	id = strings.TrimSpace(id)
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}
