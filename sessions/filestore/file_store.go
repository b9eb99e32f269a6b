package filestore

import (
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrsteele09/club-booking-client/sessions"
	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	plainFileName     = "session.json"
	encryptedFileName = "session.enc"

	saltSize = 16
	keySize  = chacha20poly1305.KeySize

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

var _ sessions.KV = (*Store)(nil)

// Store keeps the persisted session keys in a single file under the data folder.
// With a passphrase the file is sealed with XChaCha20-Poly1305 using an Argon2id derived key.
type Store struct {
	path       string
	passphrase []byte
	lock       sync.Mutex
	salt       []byte
}

type Option func(*Store)

// WithPassphrase enables at-rest encryption
func WithPassphrase(passphrase string) Option {
	return func(s *Store) {
		if passphrase != "" {
			s.passphrase = []byte(passphrase)
		}
	}
}

func New(folder string, opts ...Option) (*Store, error) {
	if folder == "" {
		return nil, errors.New("[filestore.New] missing data folder")
	}
	if err := os.MkdirAll(folder, 0o700); err != nil {
		return nil, errors.Wrap(err, "[filestore.New] create data folder")
	}
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	name := plainFileName
	if s.passphrase != nil {
		name = encryptedFileName
	}
	s.path = filepath.Join(folder, name)
	return s, nil
}

// Path of the backing file
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Get(key string) (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	values, err := s.read()
	if err != nil {
		return "", err
	}
	v, ok := values[key]
	if !ok {
		return "", sessions.ErrKeyNotFound
	}
	return v, nil
}

func (s *Store) Set(key, value string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	values, err := s.read()
	if err != nil {
		return err
	}
	values[key] = value
	return s.write(values)
}

func (s *Store) Delete(key string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	values, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	if len(values) == 0 {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "[filestore.Delete] remove file")
		}
		return nil
	}
	return s.write(values)
}

func (s *Store) read() (map[string]string, error) {
	values := make(map[string]string)
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return values, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[filestore.read]")
	}
	if s.passphrase != nil {
		if data, err = s.open(data); err != nil {
			return nil, err
		}
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, errors.Wrap(err, "[filestore.read] decode")
	}
	return values, nil
}

func (s *Store) write(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return errors.Wrap(err, "[filestore.write] encode")
	}
	if s.passphrase != nil {
		if data, err = s.seal(data); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*")
	if err != nil {
		return errors.Wrap(err, "[filestore.write] temp file")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "[filestore.write]")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "[filestore.write]")
	}
	return errors.Wrap(os.Rename(tmp.Name(), s.path), "[filestore.write] rename")
}

// File layout: salt | nonce | ciphertext
func (s *Store) seal(plain []byte) ([]byte, error) {
	if s.salt == nil {
		s.salt = make([]byte, saltSize)
		if _, err := rand.Read(s.salt); err != nil {
			return nil, errors.Wrap(err, "[filestore.seal] salt")
		}
	}
	aead, err := chacha20poly1305.NewX(s.key(s.salt))
	if err != nil {
		return nil, errors.Wrap(err, "[filestore.seal]")
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "[filestore.seal] nonce")
	}
	out := append([]byte{}, s.salt...)
	return append(out, aead.Seal(nonce, nonce, plain, nil)...), nil
}

func (s *Store) open(data []byte) ([]byte, error) {
	if len(data) < saltSize+chacha20poly1305.NonceSizeX {
		return nil, errors.New("[filestore.open] file too short")
	}
	salt := data[:saltSize]
	aead, err := chacha20poly1305.NewX(s.key(salt))
	if err != nil {
		return nil, errors.Wrap(err, "[filestore.open]")
	}
	nonce := data[saltSize : saltSize+aead.NonceSize()]
	plain, err := aead.Open(nil, nonce, data[saltSize+aead.NonceSize():], nil)
	if err != nil {
		return nil, errors.Wrap(err, "[filestore.open] wrong passphrase or corrupt file")
	}
	s.salt = append([]byte{}, salt...)
	return plain, nil
}

func (s *Store) key(salt []byte) []byte {
	return argon2.IDKey(s.passphrase, salt, argonTime, argonMemory, argonThreads, keySize)
}
