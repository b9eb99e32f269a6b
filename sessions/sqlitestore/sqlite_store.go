package sqlitestore

import (
	"database/sql"
	"os"
	"path/filepath"

	"github.com/jrsteele09/club-booking-client/sessions"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS session_kv (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TEXT NOT NULL DEFAULT (datetime('now'))
)`

// DatabaseFileName inside the data folder
const DatabaseFileName = "session.db"

var _ sessions.KV = (*Store)(nil)

// Store persists session keys in a single sqlite table
type Store struct {
	db *sql.DB
}

// Open creates (or reuses) the database file in folder
func Open(folder string) (*Store, error) {
	if err := os.MkdirAll(folder, 0o700); err != nil {
		return nil, errors.Wrap(err, "[sqlitestore.Open] create data folder")
	}
	dsn := filepath.Join(folder, DatabaseFileName) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	return OpenDSN(dsn)
}

// OpenDSN opens any modernc sqlite DSN, ":memory:" included
func OpenDSN(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "[sqlitestore.Open]")
	}
	// A single connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "[sqlitestore.Open] ping")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "[sqlitestore.Open] migrate")
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM session_kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", sessions.ErrKeyNotFound
	}
	if err != nil {
		return "", errors.Wrapf(err, "[sqlitestore.Get] %s", key)
	}
	return value, nil
}

func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO session_kv (key, value, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value)
	return errors.Wrapf(err, "[sqlitestore.Set] %s", key)
}

func (s *Store) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM session_kv WHERE key = ?`, key)
	return errors.Wrapf(err, "[sqlitestore.Delete] %s", key)
}

func (s *Store) Close() error {
	return s.db.Close()
}
