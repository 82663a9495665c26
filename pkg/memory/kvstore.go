package memory

import "sync"

// KVStore is a thread-safe, in-memory key/value store, following the same
// mutex-guarded-map shape as InMemory. It backs any caller that needs a
// plain get/set surface rather than InMemory's conversation-message one —
// GoGrid's skill-scheduler host layer uses it as the default store behind
// its manage_config tool.
type KVStore struct {
	mu   sync.RWMutex
	data map[string]any
}

// NewKVStore creates an empty key/value store, optionally seeded with
// initial values.
func NewKVStore(initial map[string]any) *KVStore {
	data := make(map[string]any, len(initial))
	for k, v := range initial {
		data[k] = v
	}
	return &KVStore{data: data}
}

// Get returns the value stored under key, and whether it was present.
func (s *KVStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Set stores value under key, replacing any existing entry. It never
// fails; the error return exists only to satisfy callers (such as
// pkg/session.ConfigStore) that model a config backend as fallible.
func (s *KVStore) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

// ReadOnlyKVStore wraps a KVStore, permitting Get but rejecting Set — the
// same wrapping idiom ReadOnly applies to a conversational Memory, applied
// here to the get/set config-store shape instead.
type ReadOnlyKVStore struct {
	inner *KVStore
}

// NewReadOnlyKVStore wraps store as read-only.
func NewReadOnlyKVStore(store *KVStore) *ReadOnlyKVStore {
	return &ReadOnlyKVStore{inner: store}
}

// Get delegates to the wrapped store.
func (r *ReadOnlyKVStore) Get(key string) (any, bool) {
	return r.inner.Get(key)
}

// Set always returns ErrReadOnly.
func (r *ReadOnlyKVStore) Set(key string, value any) error {
	return ErrReadOnly
}
