package gateway_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jrsteele09/club-booking-client/gateway"
	clienterrors "github.com/jrsteele09/club-booking-client/internal/errors"
	"github.com/jrsteele09/club-booking-client/internal/metrics"
	"github.com/jrsteele09/club-booking-client/sessions"
	"github.com/jrsteele09/club-booking-client/sessions/repofakes"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// fakeRefresher swaps the credential on Refresh and clears it on Expire
type fakeRefresher struct {
	mu          sync.Mutex
	store       *sessions.Store
	next        string
	refreshErr  error
	refreshes   int
	expireCalls int
}

func (f *fakeRefresher) Refresh(context.Context) (*sessions.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	sess, _ := f.store.Current()
	sess.Token = f.next
	if err := f.store.Put(sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (f *fakeRefresher) Expire(token string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expireCalls++
	return f.store.ClearIfToken(token)
}

type testFixture struct {
	store     *sessions.Store
	refresher *fakeRefresher
	metrics   *metrics.Metrics
	gw        *gateway.Gateway
}

func setupTestFixture(t *testing.T, handler http.HandlerFunc) testFixture {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store, err := sessions.NewStore(repofakes.NewFakeKV())
	require.NoError(t, err)
	require.NoError(t, store.Put(sessions.Session{Token: "old"}))

	m := metrics.New()
	gw, err := gateway.New(srv.URL+"/api/", store, gateway.WithMetrics(m))
	require.NoError(t, err)
	refresher := &fakeRefresher{store: store, next: "new"}
	gw.AttachRefresher(refresher)
	return testFixture{store: store, refresher: refresher, metrics: m, gw: gw}
}

func bearer(r *http.Request) string {
	return r.Header.Get("Authorization")
}

func TestNewValidates(t *testing.T) {
	store, err := sessions.NewStore(repofakes.NewFakeKV())
	require.NoError(t, err)
	_, err = gateway.New("", store)
	require.Error(t, err)
	_, err = gateway.New("http://localhost", nil)
	require.Error(t, err)
}

func TestExecuteAttachesHeaders(t *testing.T) {
	f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/users/me", r.URL.Path)
		require.Equal(t, "Bearer old", bearer(r))
		require.NotEmpty(t, r.Header.Get("X-Request-ID"))
		w.Write([]byte(`{"success":true,"data":{"id":4}}`))
	})

	res, err := f.gw.Execute(context.Background(), gateway.Request{Method: http.MethodGet, Path: "/users/me", Class: gateway.Critical})
	require.NoError(t, err)
	require.JSONEq(t, `{"id":4}`, string(res.Data))
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RequestsTotal().WithLabelValues("critical", "ok")))
}

func TestPublicRequestsCarryNoCredential(t *testing.T) {
	f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, bearer(r))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"bad credentials"}`))
	})

	_, err := f.gw.Execute(context.Background(), gateway.Request{
		Method: http.MethodPost, Path: "/auth/login", Body: map[string]string{"username": "u"}, Class: gateway.Public,
	})
	var apiErr *clienterrors.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "bad credentials", apiErr.Message)
	require.Equal(t, 0, f.refresher.refreshes)
	require.Equal(t, "old", f.store.Token())
}

func TestSoftUnauthorizedNeverTouchesSession(t *testing.T) {
	f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	for i := 0; i < 3; i++ {
		_, err := f.gw.Execute(context.Background(), gateway.Request{Method: http.MethodGet, Path: "/users/booking-status/1", Class: gateway.Soft})
		require.ErrorIs(t, err, clienterrors.ErrNotAuthenticated)
	}
	require.Equal(t, "old", f.store.Token())
	require.Equal(t, 0, f.refresher.refreshes)
	require.Equal(t, 0, f.refresher.expireCalls)
}

func TestCriticalRefreshesAndReplaysOnce(t *testing.T) {
	var calls atomic.Int32
	f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if bearer(r) != "Bearer new" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"message":"booked"}`))
	})

	res, err := f.gw.Execute(context.Background(), gateway.Request{Method: http.MethodPost, Path: "/courses/1/book", Class: gateway.Critical})
	require.NoError(t, err)
	require.Equal(t, "booked", res.Message)
	require.Equal(t, int32(2), calls.Load())
	require.Equal(t, 1, f.refresher.refreshes)
	require.Equal(t, "new", f.store.Token())
}

func TestCriticalDoubleFailureExpiresOnce(t *testing.T) {
	var calls atomic.Int32
	f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := f.gw.Execute(context.Background(), gateway.Request{Method: http.MethodPost, Path: "/courses/1/book", Class: gateway.Critical})
	var expired *clienterrors.AuthorizationExpiredError
	require.ErrorAs(t, err, &expired)
	require.Equal(t, "POST /courses/1/book", expired.Endpoint)
	require.Equal(t, int32(2), calls.Load())
	require.Equal(t, 1, f.refresher.expireCalls)
	_, ok := f.store.Current()
	require.False(t, ok)
}

func TestCriticalRefreshRejected(t *testing.T) {
	f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	f.refresher.refreshErr = &clienterrors.APIError{Status: http.StatusUnauthorized}

	_, err := f.gw.Execute(context.Background(), gateway.Request{Method: http.MethodGet, Path: "/users/me", Class: gateway.Critical})
	var expired *clienterrors.AuthorizationExpiredError
	require.ErrorAs(t, err, &expired)
	require.Equal(t, 0, f.refresher.expireCalls)
}

func TestCriticalRefreshNetworkFailureKeepsSession(t *testing.T) {
	f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	f.refresher.refreshErr = &clienterrors.NetworkError{Op: "POST /auth/refresh-token", Err: errors.New("connection reset")}

	_, err := f.gw.Execute(context.Background(), gateway.Request{Method: http.MethodGet, Path: "/users/me", Class: gateway.Critical})
	var netErr *clienterrors.NetworkError
	require.ErrorAs(t, err, &netErr)
	require.Equal(t, "old", f.store.Token())
}

func TestCriticalRefreshServerErrorPassesThrough(t *testing.T) {
	for name, refreshErr := range map[string]error{
		"unavailable": &clienterrors.APIError{Status: http.StatusServiceUnavailable, Message: "maintenance"},
		"undecodable": &clienterrors.DecodeError{Err: errors.New("refresh response carries no token")},
	} {
		t.Run(name, func(t *testing.T) {
			f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			})
			f.refresher.refreshErr = refreshErr

			_, err := f.gw.Execute(context.Background(), gateway.Request{Method: http.MethodGet, Path: "/users/me", Class: gateway.Critical})
			var expired *clienterrors.AuthorizationExpiredError
			require.False(t, errors.As(err, &expired))
			require.ErrorIs(t, err, refreshErr)
			require.Equal(t, "old", f.store.Token())
			require.Equal(t, 0, f.refresher.expireCalls)
		})
	}
}

func TestCriticalRefreshWithoutSessionExpires(t *testing.T) {
	f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	f.refresher.refreshErr = clienterrors.Wrapf(clienterrors.ErrNoSession, "[Manager.Refresh]")

	_, err := f.gw.Execute(context.Background(), gateway.Request{Method: http.MethodGet, Path: "/users/me", Class: gateway.Critical})
	var expired *clienterrors.AuthorizationExpiredError
	require.ErrorAs(t, err, &expired)
}

func TestRefreshFlowNeverRefreshes(t *testing.T) {
	f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := f.gw.Execute(context.Background(), gateway.Request{Method: http.MethodPost, Path: "/auth/refresh-token", Class: gateway.RefreshFlow})
	require.True(t, clienterrors.IsStatus(err, http.StatusUnauthorized))
	require.Equal(t, 0, f.refresher.refreshes)
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {})
	gw, err := gateway.New("http://127.0.0.1:1", f.store)
	require.NoError(t, err)

	_, err = gw.Execute(context.Background(), gateway.Request{Method: http.MethodGet, Path: "/courses", Class: gateway.Public})
	var netErr *clienterrors.NetworkError
	require.ErrorAs(t, err, &netErr)
	require.Equal(t, "GET /courses", netErr.Op)
}

func TestServerErrorIsAPIError(t *testing.T) {
	f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"database down"}`))
	})

	_, err := f.gw.Execute(context.Background(), gateway.Request{Method: http.MethodGet, Path: "/courses", Class: gateway.Public})
	require.True(t, clienterrors.IsStatus(err, http.StatusInternalServerError))
	var apiErr *clienterrors.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "database down", apiErr.Message)
}
