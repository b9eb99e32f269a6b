package auth

import (
	"context"
	"net/http"

	"github.com/jrsteele09/club-booking-client/gateway"
	clienterrors "github.com/jrsteele09/club-booking-client/internal/errors"
	"github.com/jrsteele09/club-booking-client/sessions"
	"github.com/pkg/errors"
)

const refreshKey = "refresh"

// Refresh renews the credential. Concurrent callers share a single call and
// its result, and calls within the minimum refresh interval of the last
// refresh return the current session without touching the network.
// An explicit rejection clears the session; a transient failure keeps it.
// A caller whose ctx ends stops waiting while the shared call carries on.
func (m *Manager) Refresh(ctx context.Context) (*sessions.Session, error) {
	// The shared call must not fail because the first caller gave up
	shared := context.WithoutCancel(ctx)
	ch := m.refreshGroup.DoChan(refreshKey, func() (interface{}, error) {
		return m.refresh(shared)
	})
	select {
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "[Manager.Refresh]")
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*sessions.Session), nil
	}
}

func (m *Manager) refresh(ctx context.Context) (*sessions.Session, error) {
	current, ok := m.store.Current()
	if !ok {
		return nil, errors.Wrap(clienterrors.ErrNoSession, "[Manager.Refresh]")
	}
	if m.throttled(current) {
		m.metrics.RecordRefresh("throttled")
		return &current, nil
	}

	m.transition(Refreshing)
	res, err := m.gw.Execute(ctx, gateway.Request{Method: http.MethodPost, Path: "/auth/refresh-token", Class: gateway.RefreshFlow})
	if err != nil {
		if gateway.IsRejection(err) {
			m.metrics.RecordRefresh("rejected")
			m.expireOrSettle(current.Token, "refresh rejected")
			return nil, errors.Wrap(err, "[Manager.Refresh] credential rejected")
		}
		m.metrics.RecordRefresh("failed")
		m.transition(Authenticated)
		m.log.Warn().Err(err).Msg("refresh failed, keeping session")
		return nil, errors.Wrap(err, "[Manager.Refresh]")
	}

	cred, err := parseCredential(res)
	if err == nil && cred.Token == "" {
		err = &clienterrors.DecodeError{Err: errors.New("refresh response carries no token")}
	}
	if err != nil {
		m.metrics.RecordRefresh("failed")
		m.transition(Authenticated)
		return nil, errors.Wrap(err, "[Manager.Refresh]")
	}

	next := m.newSession(cred.Token)
	next.Identity = current.Identity
	if cred.User != nil {
		next.Identity = *cred.User
	}
	replaced, err := m.store.Replace(current.Token, next)
	if err != nil {
		m.log.Warn().Err(err).Msg("refreshed session not persisted")
	}
	if !replaced {
		// Logged out or replaced while the call was in flight
		m.metrics.RecordRefresh("discarded")
		if latest, ok := m.store.Current(); ok {
			return &latest, nil
		}
		return nil, errors.Wrap(clienterrors.ErrNoSession, "[Manager.Refresh]")
	}

	m.metrics.RecordRefresh("ok")
	m.transition(Authenticated)
	m.log.Debug().Time("expires_at", next.ExpiresAt).Msg("credential refreshed")
	return &next, nil
}

func (m *Manager) throttled(sess sessions.Session) bool {
	if sess.LastRefresh.IsZero() || m.minRefreshInterval <= 0 {
		return false
	}
	return m.nowTime().Sub(sess.LastRefresh) < m.minRefreshInterval
}

// AutoRefreshOnStartup restores a persisted session and revalidates it.
// It tries the combined auto-refresh endpoint first, then validate-token
// followed by /users/me. When the server cannot be reached the persisted
// identity is kept; only an explicit rejection logs the user out.
func (m *Manager) AutoRefreshOnStartup(ctx context.Context) (*sessions.Session, error) {
	persisted, ok, err := m.store.Load()
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.AutoRefreshOnStartup]")
	}
	if !ok {
		return nil, errors.Wrap(clienterrors.ErrNoSession, "[Manager.AutoRefreshOnStartup]")
	}
	m.transition(Authenticating)

	res, err := m.gw.Execute(ctx, gateway.Request{Method: http.MethodPost, Path: "/auth/auto-refresh", Class: gateway.RefreshFlow})
	if err == nil {
		var sess *sessions.Session
		if sess, err = m.establish(ctx, res); err == nil {
			m.metrics.RecordRefresh("ok")
			return sess, nil
		}
	}
	m.log.Debug().Err(err).Msg("auto-refresh unavailable, validating token")

	res, err = m.gw.Execute(ctx, gateway.Request{Method: http.MethodGet, Path: "/auth/validate-token", Class: gateway.RefreshFlow})
	switch {
	case err != nil && gateway.IsRejection(err), err == nil && explicitlyInvalid(res):
		m.metrics.RecordRefresh("rejected")
		m.expireOrSettle(persisted.Token, "persisted credential rejected")
		if err == nil {
			err = &clienterrors.APIError{Status: http.StatusUnauthorized, Message: "token invalid"}
		}
		return nil, errors.Wrap(err, "[Manager.AutoRefreshOnStartup] credential rejected")
	case err != nil:
		return m.keepPersisted(persisted, err), nil
	}

	identity, err := m.getMe(ctx, gateway.RefreshFlow)
	if err != nil {
		if gateway.IsRejection(err) {
			m.expireOrSettle(persisted.Token, "persisted credential rejected")
			return nil, errors.Wrap(err, "[Manager.AutoRefreshOnStartup] credential rejected")
		}
		return m.keepPersisted(persisted, err), nil
	}
	persisted.Identity = identity
	if _, err := m.store.Replace(persisted.Token, persisted); err != nil {
		m.log.Warn().Err(err).Msg("identity not persisted")
	}
	m.transition(Authenticated)
	return &persisted, nil
}

// expireOrSettle clears the session if it still holds rejected, otherwise
// leaves the state matching whatever session replaced it
func (m *Manager) expireOrSettle(rejected, reason string) {
	if m.store.ClearIfToken(rejected) {
		m.sessionLost(reason)
		return
	}
	if m.store.Token() == "" {
		m.transition(Anonymous)
		return
	}
	m.transition(Authenticated)
}

func (m *Manager) keepPersisted(sess sessions.Session, cause error) *sessions.Session {
	m.log.Warn().Err(cause).Msg("could not revalidate session, keeping cached identity")
	m.transition(Authenticated)
	return &sess
}

// explicitlyInvalid recognises {"valid": false} from validate-token
func explicitlyInvalid(res *gateway.Result) bool {
	var valid bool
	found, err := res.Field("valid", &valid)
	return err == nil && found && !valid
}
