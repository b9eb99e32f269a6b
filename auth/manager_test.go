package auth_test

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/club-booking-client/auth"
	"github.com/jrsteele09/club-booking-client/courses"
	"github.com/jrsteele09/club-booking-client/gateway"
	clienterrors "github.com/jrsteele09/club-booking-client/internal/errors"
	"github.com/jrsteele09/club-booking-client/internal/fakeapi"
	"github.com/jrsteele09/club-booking-client/internal/logging"
	"github.com/jrsteele09/club-booking-client/internal/metrics"
	"github.com/jrsteele09/club-booking-client/sessions"
	"github.com/jrsteele09/club-booking-client/sessions/repofakes"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUsername = "alice"
	testPassword = "secret123"
	testEmail    = "alice@club.example.com"
)

// fakeClock is a settable clock safe for use from scheduler goroutines
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testFixture struct {
	srv       *fakeapi.Server
	kv        *repofakes.FakeKV
	clock     *fakeClock
	metrics   *metrics.Metrics
	store     *sessions.Store
	gw        *gateway.Gateway
	manager   *auth.Manager
	userID    string
	redirects atomic.Int32
}

// setupTestFixture starts a fake API with one verified member and builds a manager over it
func setupTestFixture(t *testing.T, srvOpts ...fakeapi.Option) *testFixture {
	t.Helper()

	srv := fakeapi.New(srvOpts...)
	t.Cleanup(srv.Close)

	f := &testFixture{
		srv:     srv,
		kv:      repofakes.NewFakeKV(),
		clock:   &fakeClock{now: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)},
		metrics: metrics.New(),
	}
	f.userID = srv.AddAccount(fakeapi.AccountSpec{Username: testUsername, Password: testPassword, Email: testEmail, Verified: true})
	f.manager = f.newManager(t)
	t.Cleanup(f.manager.StopPeriodicRefresh)
	return f
}

// newManager builds a store, gateway and manager over the fixture's KV
func (f *testFixture) newManager(t *testing.T, opts ...auth.ManagerOption) *auth.Manager {
	t.Helper()

	store, err := sessions.NewStore(f.kv)
	require.NoError(t, err)
	gw, err := gateway.New(f.srv.URL(), store, gateway.WithMetrics(f.metrics), gateway.WithTimeout(2*time.Second))
	require.NoError(t, err)

	defaults := []auth.ManagerOption{
		auth.WithNowTime(f.clock.Now),
		auth.WithMetrics(f.metrics),
		auth.WithLoginRedirect(func(string) { f.redirects.Add(1) }),
	}
	manager, err := auth.NewManager(gw, store, append(defaults, opts...)...)
	require.NoError(t, err)
	gw.AttachRefresher(manager)

	f.store, f.gw = store, gw
	return manager
}

func (f *testFixture) login(t *testing.T) *sessions.Session {
	t.Helper()
	sess, err := f.manager.Login(context.Background(), testUsername, testPassword)
	require.NoError(t, err)
	return sess
}

func TestNewManagerRequiresDependencies(t *testing.T) {
	store, err := sessions.NewStore(repofakes.NewFakeKV())
	require.NoError(t, err)
	gw, err := gateway.New("http://localhost", store)
	require.NoError(t, err)

	_, err = auth.NewManager(nil, store)
	require.Error(t, err)
	_, err = auth.NewManager(gw, nil)
	require.Error(t, err)
}

func TestLogin(t *testing.T) {
	f := setupTestFixture(t)

	sess := f.login(t)
	require.Equal(t, auth.Authenticated, f.manager.State())
	require.Equal(t, f.userID, sess.Identity.ID)
	require.Equal(t, testUsername, sess.Identity.Username)
	require.True(t, sess.Identity.CanBook())
	require.Equal(t, f.clock.Now(), sess.LastRefresh)
	require.False(t, sess.ExpiresAt.IsZero())

	// Persisted for the next start
	tok, err := f.kv.Get(sessions.TokenKey)
	require.NoError(t, err)
	require.Equal(t, sess.Token, tok)
	_, err = f.kv.Get(sessions.IdentityKey)
	require.NoError(t, err)
}

func TestLoginValidatesWithoutNetwork(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.manager.Login(context.Background(), "  ", testPassword)
	var verr *clienterrors.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "username", verr.Field)

	_, err = f.manager.Login(context.Background(), testUsername, "")
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "password", verr.Field)

	require.Zero(t, f.srv.Hits(fakeapi.RouteLogin))
	require.Equal(t, auth.Anonymous, f.manager.State())
}

func TestLoginWrongPassword(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.manager.Login(context.Background(), testUsername, "wrong-password")
	var authErr *clienterrors.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, auth.Anonymous, f.manager.State())
	_, ok := f.manager.Session()
	require.False(t, ok)
}

func TestLoginServerErrorIsNotAuthenticationError(t *testing.T) {
	f := setupTestFixture(t)
	f.srv.Fail(fakeapi.RouteLogin, fakeapi.Fault{Status: http.StatusInternalServerError, Body: `{"success":false,"message":"boom"}`})

	_, err := f.manager.Login(context.Background(), testUsername, testPassword)
	var authErr *clienterrors.AuthenticationError
	require.False(t, clienterrors.As(err, &authErr))
	require.True(t, clienterrors.IsStatus(err, http.StatusInternalServerError))
}

func TestFailedReloginKeepsActiveSession(t *testing.T) {
	f := setupTestFixture(t)
	first := f.login(t)
	ctx := context.Background()

	_, err := f.manager.Login(ctx, testUsername, "wrong-password")
	var authErr *clienterrors.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, auth.Authenticated, f.manager.State())
	sess, ok := f.manager.Session()
	require.True(t, ok)
	require.Equal(t, first.Token, sess.Token)

	// The lifecycle carries on with the surviving session
	f.clock.Advance(10 * time.Minute)
	refreshed, err := f.manager.Refresh(ctx)
	require.NoError(t, err)
	require.NotEqual(t, first.Token, refreshed.Token)
	require.Equal(t, auth.Authenticated, f.manager.State())
	require.Zero(t, f.redirects.Load())
}

func TestRegisterWhileSignedInKeepsSession(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	reg, err := f.manager.Register(context.Background(), auth.RegisterRequest{Username: "carol", Name: "Carol", Email: "carol@club.example.com", Password: "secret1"})
	require.NoError(t, err)
	require.Nil(t, reg.Session)
	require.Equal(t, auth.Authenticated, f.manager.State())
	sess, ok := f.manager.Session()
	require.True(t, ok)
	require.Equal(t, testUsername, sess.Identity.Username)
}

func TestUnverifiedLoginThenVerify(t *testing.T) {
	f := setupTestFixture(t)
	bobID := f.srv.AddAccount(fakeapi.AccountSpec{Username: "bob", Password: testPassword, Email: "bob@club.example.com"})
	ctx := context.Background()

	_, err := f.manager.Login(ctx, "bob", testPassword)
	var unverified *clienterrors.UnverifiedEmailError
	require.ErrorAs(t, err, &unverified)
	require.Equal(t, bobID, unverified.UserID)
	require.Equal(t, "bob@club.example.com", unverified.Email)
	require.Equal(t, auth.EmailPendingVerification, f.manager.State())

	pending, ok := f.manager.PendingVerification()
	require.True(t, ok)
	require.Equal(t, bobID, pending.UserID)

	// Request a fresh code first
	reg, err := f.manager.ResendVerification(ctx, "bob@club.example.com")
	require.NoError(t, err)
	require.Equal(t, bobID, reg.UserID)
	require.Nil(t, reg.Session)

	_, err = f.manager.VerifyEmail(ctx, bobID, "000000-wrong")
	var authErr *clienterrors.AuthenticationError
	require.ErrorAs(t, err, &authErr)

	sess, err := f.manager.VerifyEmail(ctx, bobID, f.srv.VerificationCode(bobID))
	require.NoError(t, err)
	require.NotNil(t, sess)
	require.Equal(t, "bob", sess.Identity.Username)
	require.Equal(t, auth.Authenticated, f.manager.State())
	_, ok = f.manager.PendingVerification()
	require.False(t, ok)
}

func TestRegister(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	_, err := f.manager.Register(ctx, auth.RegisterRequest{Username: "carol", Name: "Carol", Email: "not-an-email", Password: "secret1"})
	var verr *clienterrors.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "email", verr.Field)
	require.Zero(t, f.srv.Hits(fakeapi.RouteRegister))

	reg, err := f.manager.Register(ctx, auth.RegisterRequest{Username: "carol", Name: "Carol", Email: "carol@club.example.com", Password: "secret1"})
	require.NoError(t, err)
	require.NotEmpty(t, reg.UserID)
	require.False(t, reg.EmailVerified)
	require.Nil(t, reg.Session)
	require.Equal(t, auth.EmailPendingVerification, f.manager.State())

	sess, err := f.manager.VerifyEmail(ctx, reg.UserID, f.srv.VerificationCode(reg.UserID))
	require.NoError(t, err)
	require.Equal(t, "carol", sess.Identity.Username)
	require.True(t, sess.Identity.EmailVerified)
}

func TestPasswordReset(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.manager.ForgotPassword(ctx, testEmail))
	resetToken := f.srv.ResetToken(testEmail)
	require.NotEmpty(t, resetToken)

	require.NoError(t, f.manager.ResetPassword(ctx, resetToken, "brand-new-pass"))
	_, err := f.manager.Login(ctx, testUsername, "brand-new-pass")
	require.NoError(t, err)

	err = f.manager.ResetPassword(ctx, resetToken, "another-pass")
	require.True(t, clienterrors.IsStatus(err, http.StatusBadRequest))
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	ctx := context.Background()

	require.NoError(t, f.manager.Logout(ctx))
	require.NoError(t, f.manager.Logout(ctx))

	require.Equal(t, auth.Anonymous, f.manager.State())
	require.Equal(t, 1, f.srv.Hits(fakeapi.RouteLogout))
	require.Zero(t, f.kv.Len())
	require.Zero(t, f.redirects.Load())
}

func TestLogoutClearsLocallyWhenServerUnreachable(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	f.srv.Fail(fakeapi.RouteLogout, fakeapi.Fault{Drop: true})

	require.NoError(t, f.manager.Logout(context.Background()))
	_, ok := f.manager.Session()
	require.False(t, ok)
	require.Zero(t, f.kv.Len())
}

func TestRefreshIsSingleFlight(t *testing.T) {
	f := setupTestFixture(t)
	first := f.login(t)
	f.clock.Advance(10 * time.Minute)
	f.srv.Fail(fakeapi.RouteRefreshToken, fakeapi.Fault{Delay: 200 * time.Millisecond})

	const callers = 8
	var (
		wg     sync.WaitGroup
		start  = make(chan struct{})
		tokens = make([]string, callers)
		errs   = make([]error, callers)
	)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			sess, err := f.manager.Refresh(context.Background())
			errs[i] = err
			if sess != nil {
				tokens[i] = sess.Token
			}
		}()
	}
	close(start)
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		require.Equal(t, tokens[0], tokens[i])
	}
	require.NotEqual(t, first.Token, tokens[0])
	require.Equal(t, 1, f.srv.Hits(fakeapi.RouteRefreshToken))
	require.Equal(t, auth.Authenticated, f.manager.State())
}

func TestRefreshIsThrottled(t *testing.T) {
	f := setupTestFixture(t)
	first := f.login(t)

	f.clock.Advance(time.Minute)
	sess, err := f.manager.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, first.Token, sess.Token)
	require.Zero(t, f.srv.Hits(fakeapi.RouteRefreshToken))
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RefreshTotal().WithLabelValues("throttled")))

	f.clock.Advance(5 * time.Minute)
	sess, err = f.manager.Refresh(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, first.Token, sess.Token)
	require.Equal(t, 1, f.srv.Hits(fakeapi.RouteRefreshToken))
	require.Equal(t, f.clock.Now(), sess.LastRefresh)
}

func TestRefreshWithoutSession(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.manager.Refresh(context.Background())
	require.ErrorIs(t, err, clienterrors.ErrNoSession)
}

func TestRefreshRejectionClearsSession(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	f.clock.Advance(10 * time.Minute)
	f.srv.Fail(fakeapi.RouteRefreshToken, fakeapi.Fault{Status: http.StatusUnauthorized, Body: `{"success":false,"message":"Token has expired"}`})

	_, err := f.manager.Refresh(context.Background())
	require.Error(t, err)
	require.Equal(t, auth.Anonymous, f.manager.State())
	_, ok := f.manager.Session()
	require.False(t, ok)
	require.Zero(t, f.kv.Len())
	require.Equal(t, int32(1), f.redirects.Load())
}

func TestRefreshTransientFailureKeepsSession(t *testing.T) {
	f := setupTestFixture(t)
	first := f.login(t)
	f.clock.Advance(10 * time.Minute)
	f.srv.Fail(fakeapi.RouteRefreshToken, fakeapi.Fault{Status: http.StatusServiceUnavailable, Body: "maintenance"})

	_, err := f.manager.Refresh(context.Background())
	require.Error(t, err)
	require.Equal(t, auth.Authenticated, f.manager.State())
	sess, ok := f.manager.Session()
	require.True(t, ok)
	require.Equal(t, first.Token, sess.Token)
	require.Zero(t, f.redirects.Load())
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RefreshTotal().WithLabelValues("failed")))
}

func TestRefreshCallerStopsWaitingWhenCanceled(t *testing.T) {
	f := setupTestFixture(t)
	first := f.login(t)
	f.clock.Advance(10 * time.Minute)
	f.srv.Fail(fakeapi.RouteRefreshToken, fakeapi.Fault{Delay: 300 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	started := time.Now()
	_, err := f.manager.Refresh(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(started), 250*time.Millisecond)

	// The shared call was not abandoned
	sess, err := f.manager.Refresh(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, first.Token, sess.Token)
	require.Equal(t, 1, f.srv.Hits(fakeapi.RouteRefreshToken))
	require.Equal(t, auth.Authenticated, f.manager.State())
}

func TestCriticalCallRefreshServerErrorKeepsSession(t *testing.T) {
	f := setupTestFixture(t)
	first := f.login(t)
	f.clock.Advance(10 * time.Minute)
	f.srv.Fail(fakeapi.RouteMe, fakeapi.Fault{Status: http.StatusUnauthorized, Body: `{"success":false,"message":"Token has expired"}`})
	f.srv.Fail(fakeapi.RouteRefreshToken, fakeapi.Fault{Status: http.StatusServiceUnavailable, Body: "maintenance"})

	_, err := f.manager.FetchIdentity(context.Background())
	var expired *clienterrors.AuthorizationExpiredError
	require.False(t, clienterrors.As(err, &expired))
	require.True(t, clienterrors.IsStatus(err, http.StatusServiceUnavailable))
	sess, ok := f.manager.Session()
	require.True(t, ok)
	require.Equal(t, first.Token, sess.Token)
	require.Equal(t, auth.Authenticated, f.manager.State())
	require.Zero(t, f.redirects.Load())
}

func TestCriticalCallWithRevokedCredential(t *testing.T) {
	f := setupTestFixture(t)
	first := f.login(t)
	f.clock.Advance(10 * time.Minute)
	courseID := f.srv.AddCourse(fakeapi.Course{Name: "Salsa", Capacity: 5})
	f.srv.Revoke(first.Token)

	svc, err := courses.NewService(f.gw)
	require.NoError(t, err)
	_, err = svc.Book(context.Background(), courseID)

	// The revoked credential cannot be refreshed either
	var expired *clienterrors.AuthorizationExpiredError
	require.ErrorAs(t, err, &expired)
	require.Equal(t, auth.Anonymous, f.manager.State())
	require.Equal(t, int32(1), f.redirects.Load())
}

func TestCriticalCallSucceedsAfterRefresh(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	f.clock.Advance(10 * time.Minute)
	courseID := f.srv.AddCourse(fakeapi.Course{Name: "Salsa", Capacity: 5})
	f.srv.Fail(fakeapi.RouteBook, fakeapi.Fault{Status: http.StatusUnauthorized, Body: `{"success":false,"message":"Token has expired"}`})

	svc, err := courses.NewService(f.gw)
	require.NoError(t, err)
	b, err := svc.Book(context.Background(), courseID)
	require.NoError(t, err)
	require.Equal(t, "confirmed", b.Status)
	require.Equal(t, 1, f.srv.Hits(fakeapi.RouteRefreshToken))
	require.Equal(t, 2, f.srv.Hits(fakeapi.RouteBook))
	require.Equal(t, auth.Authenticated, f.manager.State())
}

func TestCriticalDoubleFailureClearsExactlyOnce(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	courseID := f.srv.AddCourse(fakeapi.Course{Name: "Salsa", Capacity: 5})
	f.srv.Fail(fakeapi.RouteBook, fakeapi.Fault{Status: http.StatusUnauthorized, Body: `{"success":false}`, Times: 10})

	svc, err := courses.NewService(f.gw)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Book(context.Background(), courseID)
			assert.Error(t, err)
		}()
	}
	wg.Wait()

	require.Equal(t, auth.Anonymous, f.manager.State())
	require.Equal(t, int32(1), f.redirects.Load())
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SessionExpired()))
}

func TestSoft401NeverClearsSession(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	courseID := f.srv.AddCourse(fakeapi.Course{Name: "Salsa", Capacity: 5})
	f.srv.Fail(fakeapi.RouteBookingStatus, fakeapi.Fault{Status: http.StatusUnauthorized, Body: `{"success":false}`, Times: 3})

	svc, err := courses.NewService(f.gw)
	require.NoError(t, err)
	for range 3 {
		_, err := svc.BookingStatus(context.Background(), courseID)
		require.ErrorIs(t, err, clienterrors.ErrNotAuthenticated)
	}
	require.Equal(t, auth.Authenticated, f.manager.State())
	require.Zero(t, f.redirects.Load())
	require.Zero(t, f.srv.Hits(fakeapi.RouteRefreshToken))
}

func TestExpireIgnoresStaleToken(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	require.False(t, f.manager.Expire("some-older-token"))
	require.False(t, f.manager.Expire(""))
	require.Equal(t, auth.Authenticated, f.manager.State())

	require.True(t, f.manager.Expire(f.store.Token()))
	require.Equal(t, auth.Anonymous, f.manager.State())
	require.Equal(t, int32(1), f.redirects.Load())
}

func TestFetchIdentity(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	identity, err := f.manager.FetchIdentity(context.Background())
	require.NoError(t, err)
	require.Equal(t, f.userID, identity.ID)
	require.Equal(t, 1, f.srv.Hits(fakeapi.RouteMe))

	require.NoError(t, f.manager.Logout(context.Background()))
	_, err = f.manager.FetchIdentity(context.Background())
	require.ErrorIs(t, err, clienterrors.ErrNoSession)
}

func TestAutoRefreshOnStartup(t *testing.T) {
	f := setupTestFixture(t)
	first := f.login(t)

	restarted := f.newManager(t)
	sess, err := restarted.AutoRefreshOnStartup(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, first.Token, sess.Token)
	require.Equal(t, testUsername, sess.Identity.Username)
	require.Equal(t, auth.Authenticated, restarted.State())
	require.Equal(t, 1, f.srv.Hits(fakeapi.RouteAutoRefresh))
	require.Zero(t, f.srv.Hits(fakeapi.RouteValidateToken))
}

func TestAutoRefreshFallsBackToValidateToken(t *testing.T) {
	f := setupTestFixture(t, fakeapi.WithoutAutoRefresh())
	first := f.login(t)

	restarted := f.newManager(t)
	sess, err := restarted.AutoRefreshOnStartup(context.Background())
	require.NoError(t, err)
	require.Equal(t, first.Token, sess.Token)
	require.Equal(t, f.userID, sess.Identity.ID)
	require.Equal(t, auth.Authenticated, restarted.State())
	require.Equal(t, 1, f.srv.Hits(fakeapi.RouteValidateToken))
	require.Equal(t, 1, f.srv.Hits(fakeapi.RouteMe))
}

func TestAutoRefreshWithoutTokenFallsBack(t *testing.T) {
	f := setupTestFixture(t)
	first := f.login(t)
	f.srv.Fail(fakeapi.RouteAutoRefresh, fakeapi.Fault{Status: http.StatusOK, Body: `{"success":true,"data":{}}`})

	var logs bytes.Buffer
	restarted := f.newManager(t, auth.WithLogger(logging.NewWithWriter(&logs, "debug", "TEST")))
	sess, err := restarted.AutoRefreshOnStartup(context.Background())
	require.NoError(t, err)
	require.Equal(t, first.Token, sess.Token)
	require.Equal(t, auth.Authenticated, restarted.State())
	require.Equal(t, 1, f.srv.Hits(fakeapi.RouteValidateToken))
	require.Contains(t, logs.String(), "response carries no token")
}

func TestAutoRefreshKeepsIdentityWhenOffline(t *testing.T) {
	f := setupTestFixture(t)
	first := f.login(t)
	for _, route := range []string{fakeapi.RouteAutoRefresh, fakeapi.RouteValidateToken} {
		f.srv.Fail(route, fakeapi.Fault{Drop: true})
	}

	restarted := f.newManager(t)
	sess, err := restarted.AutoRefreshOnStartup(context.Background())
	require.NoError(t, err)
	require.Equal(t, first.Token, sess.Token)
	require.Equal(t, testUsername, sess.Identity.Username)
	require.Equal(t, auth.Authenticated, restarted.State())
	require.Zero(t, f.redirects.Load())
}

func TestAutoRefreshRejectedTokenLogsOut(t *testing.T) {
	f := setupTestFixture(t)
	first := f.login(t)
	f.srv.Revoke(first.Token)

	restarted := f.newManager(t)
	_, err := restarted.AutoRefreshOnStartup(context.Background())
	require.Error(t, err)
	require.Equal(t, auth.Anonymous, restarted.State())
	require.Zero(t, f.kv.Len())
	require.Equal(t, int32(1), f.redirects.Load())
}

func TestAutoRefreshWithoutPersistedToken(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.manager.AutoRefreshOnStartup(context.Background())
	require.ErrorIs(t, err, clienterrors.ErrNoSession)
	require.Zero(t, f.srv.Hits(fakeapi.RouteAutoRefresh))
}

func TestPeriodicRefresh(t *testing.T) {
	f := setupTestFixture(t)
	f.manager = f.newManager(t, auth.WithMinRefreshInterval(0))
	t.Cleanup(f.manager.StopPeriodicRefresh)
	f.login(t)

	require.Error(t, f.manager.SchedulePeriodicRefresh(0))
	require.NoError(t, f.manager.SchedulePeriodicRefresh(time.Second))
	require.Eventually(t, func() bool {
		return f.srv.Hits(fakeapi.RouteRefreshToken) >= 1
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, f.manager.Logout(context.Background()))
	hits := f.srv.Hits(fakeapi.RouteRefreshToken)
	time.Sleep(1500 * time.Millisecond)
	require.Equal(t, hits, f.srv.Hits(fakeapi.RouteRefreshToken))
}

func TestStateObserver(t *testing.T) {
	f := setupTestFixture(t)
	type move struct{ from, to auth.State }
	var (
		mu    sync.Mutex
		moves []move
	)
	f.manager = f.newManager(t, auth.WithStateObserver(func(from, to auth.State) {
		mu.Lock()
		defer mu.Unlock()
		moves = append(moves, move{from, to})
	}))

	f.login(t)
	require.NoError(t, f.manager.Logout(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []move{
		{auth.Anonymous, auth.Authenticating},
		{auth.Authenticating, auth.Authenticated},
		{auth.Authenticated, auth.Anonymous},
	}, moves)
}
