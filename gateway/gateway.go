package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	clienterrors "github.com/jrsteele09/club-booking-client/internal/errors"
	"github.com/jrsteele09/club-booking-client/internal/metrics"
	"github.com/jrsteele09/club-booking-client/sessions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	maxBodyBytes     = 10 << 20
	defaultUserAgent = "clubctl/1.0"
	requestIDHeader  = "X-Request-ID"
)

// Refresher renews or expires the credential on behalf of the gateway.
type Refresher interface {
	// Refresh renews the credential; a rejection clears the session before returning
	Refresh(ctx context.Context) (*sessions.Session, error)

	// Expire clears the session if its credential is still token
	Expire(token string) bool
}

// Executor runs requests against the club API
type Executor interface {
	Execute(ctx context.Context, req Request) (*Result, error)
}

var _ Executor = (*Gateway)(nil)

// Request is one call against the club API.
type Request struct {
	Method string
	Path   string // Relative to the base URL, e.g. /courses/3/book
	Query  url.Values
	Body   interface{}
	Class  Class
}

func (r Request) endpoint() string {
	return r.Method + " " + r.Path
}

// Gateway attaches the credential to every call, decodes the response
// envelope and applies the per-class authorization failure policy.
type Gateway struct {
	baseURL    string
	httpClient *http.Client
	session    sessions.Reader
	timeout    time.Duration
	userAgent  string
	log        zerolog.Logger
	metrics    *metrics.Metrics

	mu        sync.RWMutex
	refresher Refresher
}

type Option func(*Gateway)

func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) {
		g.httpClient = c
	}
}

// WithTimeout bounds every attempt; zero disables the bound
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		g.timeout = d
	}
}

func WithUserAgent(ua string) Option {
	return func(g *Gateway) {
		g.userAgent = ua
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(g *Gateway) {
		g.log = log
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

func New(baseURL string, session sessions.Reader, opts ...Option) (*Gateway, error) {
	if baseURL == "" {
		return nil, errors.New("[gateway.New] base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, errors.Wrap(err, "[gateway.New] invalid base URL")
	}
	if session == nil {
		return nil, errors.New("[gateway.New] session reader is required")
	}
	g := &Gateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		session:    session,
		timeout:    15 * time.Second,
		userAgent:  defaultUserAgent,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// AttachRefresher installs the component consulted on Critical authorization failures
func (g *Gateway) AttachRefresher(r Refresher) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refresher = r
}

func (g *Gateway) getRefresher() Refresher {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.refresher
}

// Execute performs the request. There are no automatic retries apart from
// the single replay of a Critical call after a successful refresh.
func (g *Gateway) Execute(ctx context.Context, req Request) (*Result, error) {
	res, token, err := g.attempt(ctx, req)
	if err == nil {
		return res, nil
	}
	if !clienterrors.IsStatus(err, http.StatusUnauthorized) {
		return nil, err
	}

	switch req.Class {
	case Soft:
		g.log.Debug().Str("endpoint", req.endpoint()).Msg("lookup not authenticated")
		return nil, clienterrors.Wrapf(clienterrors.ErrNotAuthenticated, "[Gateway.Execute] %s", req.endpoint())
	case Critical:
		return g.refreshAndReplay(ctx, req, token)
	default:
		return nil, err
	}
}

func (g *Gateway) refreshAndReplay(ctx context.Context, req Request, rejected string) (*Result, error) {
	refresher := g.getRefresher()
	if refresher == nil || rejected == "" {
		return nil, clienterrors.Wrapf(clienterrors.ErrNotAuthenticated, "[Gateway.Execute] %s", req.endpoint())
	}

	if _, err := refresher.Refresh(ctx); err != nil {
		g.log.Info().Err(err).Str("endpoint", req.endpoint()).Msg("refresh after 401 failed")
		// Only a rejected or missing credential means the session is gone
		if IsRejection(err) || clienterrors.Is(err, clienterrors.ErrNoSession) {
			return nil, &clienterrors.AuthorizationExpiredError{Endpoint: req.endpoint()}
		}
		return nil, err
	}

	res, token, err := g.attempt(ctx, req)
	if err == nil {
		return res, nil
	}
	if !clienterrors.IsStatus(err, http.StatusUnauthorized) {
		return nil, err
	}
	refresher.Expire(token)
	return nil, &clienterrors.AuthorizationExpiredError{Endpoint: req.endpoint()}
}

// attempt performs one HTTP exchange and returns the token it was sent with
func (g *Gateway) attempt(ctx context.Context, req Request) (*Result, string, error) {
	start := time.Now()
	res, token, err := g.roundTrip(ctx, req)
	g.metrics.ObserveRequest(req.Class.String(), outcomeOf(err), time.Since(start).Seconds())
	return res, token, err
}

func (g *Gateway) roundTrip(ctx context.Context, req Request) (*Result, string, error) {
	u := g.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, "", errors.Wrapf(err, "[Gateway.roundTrip] encode body for %s", req.endpoint())
		}
		body = bytes.NewReader(data)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return nil, "", errors.Wrapf(err, "[Gateway.roundTrip] build %s", req.endpoint())
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", g.userAgent)
	httpReq.Header.Set(requestIDHeader, uuid.NewString())
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	var token string
	if req.Class.sendsCredential() {
		if sess, ok := g.session.Current(); ok && sess.Valid() {
			token = sess.Token
			sess.OAuth2Token().SetAuthHeader(httpReq)
		}
	}

	g.log.Debug().
		Str("endpoint", req.endpoint()).
		Str("class", req.Class.String()).
		Str("request_id", httpReq.Header.Get(requestIDHeader)).
		Bool("credential", token != "").
		Msg("request")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, token, &clienterrors.NetworkError{Op: req.endpoint(), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, token, &clienterrors.NetworkError{Op: req.endpoint(), Err: err}
	}

	res := Normalize(resp.StatusCode, raw)
	if !res.Success {
		return res, token, errorFor(res, raw)
	}
	return res, token, nil
}

func outcomeOf(err error) string {
	var netErr *clienterrors.NetworkError
	var apiErr *clienterrors.APIError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &netErr):
		return "network_error"
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized:
		return "unauthorized"
	case errors.As(err, &apiErr):
		return "api_error"
	}
	return "error"
}
