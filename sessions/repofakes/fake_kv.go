package repofakes

import (
	"sync"

	"github.com/jrsteele09/club-booking-client/sessions"
)

var _ sessions.KV = (*FakeKV)(nil)

// FakeKV is an in-memory KV backend. It can be told to fail writes.
type FakeKV struct {
	values   map[string]string
	lock     sync.RWMutex
	failSets error
}

func NewFakeKV() *FakeKV {
	return &FakeKV{
		values: make(map[string]string),
	}
}

func (kv *FakeKV) Get(key string) (string, error) {
	kv.lock.RLock()
	defer kv.lock.RUnlock()

	v, ok := kv.values[key]
	if !ok {
		return "", sessions.ErrKeyNotFound
	}
	return v, nil
}

func (kv *FakeKV) Set(key, value string) error {
	kv.lock.Lock()
	defer kv.lock.Unlock()

	if kv.failSets != nil {
		return kv.failSets
	}
	kv.values[key] = value
	return nil
}

func (kv *FakeKV) Delete(key string) error {
	kv.lock.Lock()
	defer kv.lock.Unlock()

	delete(kv.values, key)
	return nil
}

// FailWrites makes every subsequent Set return err; nil restores normal behaviour
func (kv *FakeKV) FailWrites(err error) {
	kv.lock.Lock()
	defer kv.lock.Unlock()
	kv.failSets = err
}

// Len returns the number of stored keys
func (kv *FakeKV) Len() int {
	kv.lock.RLock()
	defer kv.lock.RUnlock()
	return len(kv.values)
}
