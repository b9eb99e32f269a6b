package sessions

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/jrsteele09/club-booking-client/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Reader is the read-only view of the session handed to every component
// other than the credential manager.
type Reader interface {
	Current() (Session, bool)
	Token() string
	Identity() (users.Identity, bool)
}

var _ Reader = (*Store)(nil)

// Store holds the single current session in memory and mirrors it to a KV backend.
type Store struct {
	kv      KV
	log     zerolog.Logger
	mu      sync.RWMutex
	current *Session
}

type StoreOption func(*Store)

func WithLogger(log zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.log = log
	}
}

func NewStore(kv KV, opts ...StoreOption) (*Store, error) {
	if kv == nil {
		return nil, errors.New("[NewStore] missing KV backend")
	}
	s := &Store{kv: kv, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Current returns a copy of the session, if any
func (s *Store) Current() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Session{}, false
	}
	return *s.current, true
}

// Token returns the current credential or an empty string
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.Token
}

// Identity returns the identity of the current session
func (s *Store) Identity() (users.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return users.Identity{}, false
	}
	return s.current.Identity, true
}

// Put replaces the session and persists it. The in-memory session is
// updated even when persistence fails; the error reports the failed write.
func (s *Store) Put(sess Session) error {
	if !sess.Valid() {
		return errors.New("[Store.Put] session without token")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := sess
	s.current = &cp
	return s.persist(sess)
}

// Replace swaps in next only while the current credential is still old.
// A session cleared or replaced in the meantime is left alone.
func (s *Store) Replace(old string, next Session) (bool, error) {
	if !next.Valid() {
		return false, errors.New("[Store.Replace] session without token")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.current.Token != old {
		return false, nil
	}
	cp := next
	s.current = &cp
	return true, s.persist(next)
}

// Touch records a refresh of the current credential
func (s *Store) Touch(lastRefresh time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.LastRefresh = lastRefresh
	}
}

// Clear removes the session from memory and storage.
// Returns true if a session existed.
func (s *Store) Clear() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	existed := s.current != nil
	s.current = nil
	s.wipe()
	return existed
}

// ClearIfToken clears the session only if its credential is still the given token.
// A session that was already replaced by a refresh is left alone.
func (s *Store) ClearIfToken(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.current.Token != token {
		return false
	}
	s.current = nil
	s.wipe()
	return true
}

// Load restores the persisted session into memory.
// Returns false when no credential is stored. A credential whose cached
// identity is missing or corrupt is still restored with an empty identity.
func (s *Store) Load() (Session, bool, error) {
	tok, err := s.kv.Get(TokenKey)
	if errors.Is(err, ErrKeyNotFound) || (err == nil && tok == "") {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, errors.Wrap(err, "[Store.Load] read token")
	}

	sess := Session{Token: tok}
	if identity, ok := s.LoadCachedIdentity(); ok {
		sess.Identity = identity
	}

	s.mu.Lock()
	cp := sess
	s.current = &cp
	s.mu.Unlock()
	return sess, true, nil
}

// LoadCachedIdentity reads the persisted identity without touching the in-memory session
func (s *Store) LoadCachedIdentity() (users.Identity, bool) {
	raw, err := s.kv.Get(IdentityKey)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			s.log.Warn().Err(err).Msg("reading cached identity")
		}
		return users.Identity{}, false
	}
	var identity users.Identity
	if err := json.Unmarshal([]byte(raw), &identity); err != nil {
		s.log.Warn().Err(err).Msg("cached identity is corrupt")
		return users.Identity{}, false
	}
	return identity, true
}

func (s *Store) persist(sess Session) error {
	data, err := json.Marshal(sess.Identity)
	if err != nil {
		return errors.Wrap(err, "[Store.persist] encode identity")
	}
	if err := s.kv.Set(TokenKey, sess.Token); err != nil {
		return errors.Wrap(err, "[Store.persist] write token")
	}
	if err := s.kv.Set(IdentityKey, string(data)); err != nil {
		return errors.Wrap(err, "[Store.persist] write identity")
	}
	return nil
}

func (s *Store) wipe() {
	for _, key := range []string{TokenKey, IdentityKey} {
		if err := s.kv.Delete(key); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("removing persisted session")
		}
	}
}
