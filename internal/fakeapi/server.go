// Package fakeapi is an in-process stand-in for the club API used by tests.
// It keeps accounts, courses and bookings in memory, signs HS256 bearer
// tokens and can inject faults per route.
package fakeapi

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Server is a fake club API listening on a loopback port
type Server struct {
	mux     *http.ServeMux
	routes  []string
	httpSrv *httptest.Server
	log     zerolog.Logger

	secret   []byte
	nowTime  func() time.Time
	tokenTTL time.Duration

	lock          sync.Mutex
	nextID        int
	accounts      map[string]*Account
	courses       map[string]*Course
	bookings      map[string]map[string]*bookingRecord // courseID -> userID
	revoked       map[string]bool
	verifyCodes   map[string]string // userID -> code
	resetTokens   map[string]string // reset token -> userID
	hits          map[string]int
	faults        map[string][]Fault
	statusShape   StatusShape
	autoRefreshOn bool
}

type Option func(*Server)

// WithNowTime sets the clock used for token issue and expiry
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Server) {
		s.nowTime = nowFunc
	}
}

func WithTokenTTL(d time.Duration) Option {
	return func(s *Server) {
		s.tokenTTL = d
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithoutAutoRefresh makes /auth/auto-refresh answer 404 like older servers
func WithoutAutoRefresh() Option {
	return func(s *Server) {
		s.autoRefreshOn = false
	}
}

// New starts the fake API. Call Close when done.
func New(opts ...Option) *Server {
	s := &Server{
		mux:           http.NewServeMux(),
		log:           zerolog.Nop(),
		secret:        []byte("club-fake-api-secret"),
		nowTime:       time.Now,
		tokenTTL:      time.Hour,
		accounts:      make(map[string]*Account),
		courses:       make(map[string]*Course),
		bookings:      make(map[string]map[string]*bookingRecord),
		revoked:       make(map[string]bool),
		verifyCodes:   make(map[string]string),
		resetTokens:   make(map[string]string),
		hits:          make(map[string]int),
		faults:        make(map[string][]Fault),
		statusShape:   ShapeEnvelope,
		autoRefreshOn: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.initRoutes()
	s.httpSrv = httptest.NewServer(s)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// URL is the API base URL, including the /api prefix
func (s *Server) URL() string {
	return s.httpSrv.URL + apiPrefix
}

func (s *Server) Close() {
	s.httpSrv.Close()
}

// Routes lists the registered patterns
func (s *Server) Routes() []string {
	out := append([]string{}, s.routes...)
	sort.Strings(out)
	return out
}

// RegisterRouteFunc mounts handler under the /api prefix. route is "METHOD /path".
func (s *Server) RegisterRouteFunc(route string, handler http.HandlerFunc) {
	method, path, _ := strings.Cut(route, " ")
	s.routes = append(s.routes, route)
	s.mux.HandleFunc(method+" "+apiPrefix+path, ChainMiddleware(handler, s.recordHit(route), s.injectFaults(route)))
}

// ChainMiddleware wraps routeFunction so that mw[0] runs first
func ChainMiddleware(routeFunction http.HandlerFunc, mw ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	chainedHandler := routeFunction
	for i := len(mw) - 1; i >= 0; i-- {
		chainedHandler = mw[i](chainedHandler)
	}
	return chainedHandler
}

// Hits returns how many requests reached route ("METHOD /path" as registered)
func (s *Server) Hits(route string) int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.hits[route]
}

// ResetHits zeroes every counter
func (s *Server) ResetHits() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.hits = make(map[string]int)
}
