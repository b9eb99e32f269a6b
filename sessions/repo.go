package sessions

import "errors"

// Persisted keys
const (
	TokenKey    = "auth_token"
	IdentityKey = "user_info"
)

// ErrKeyNotFound is returned by a KV backend when the key has never been stored
var ErrKeyNotFound = errors.New("key not found")

// KV is the durable key/value storage a Store persists through.
type KV interface {
	// Get returns the stored value or ErrKeyNotFound
	Get(key string) (string, error)

	// Set stores the value under key
	Set(key, value string) error

	// Delete removes the key; deleting a missing key is not an error
	Delete(key string) error
}
