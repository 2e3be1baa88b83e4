package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrSessionExists is returned by View.Create when the key already has a
// session; callers must Get first.
var ErrSessionExists = errors.New("session already exists")

// Store is the process-wide session map. It owns the only shared mutable
// state in the system, so it also owns the serialization rule: all reads and
// writes for one contact key happen under that key's lock, held for the full
// duration of With. Handling an event for one contact therefore never
// interleaves with another event for the same contact, while unrelated
// contacts proceed concurrently. This is a correctness contract, not an
// optimization: two in-flight events reading the same stale state would lose
// or duplicate a transition.
type Store struct {
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	locks    map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewStore creates an empty session store.
func NewStore(log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		logger:   log.With(slog.String("service", "session")),
		sessions: make(map[string]*Session),
		locks:    make(map[string]*keyLock),
	}
}

// View is a key-scoped handle valid only inside the With callback.
type View struct {
	store *Store
	key   string
}

// With runs fn holding the contact key's lock. fn may call the view's Get,
// Create, and Delete in any combination; no other goroutine observes the key
// mid-update.
func (s *Store) With(key string, fn func(v View) error) error {
	lock := s.acquire(key)
	defer s.release(key, lock)

	lock.mu.Lock()
	defer lock.mu.Unlock()

	return fn(View{store: s, key: key})
}

func (s *Store) acquire(key string) *keyLock {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &keyLock{}
		s.locks[key] = lock
	}
	lock.refs++
	return lock
}

func (s *Store) release(key string, lock *keyLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		if _, active := s.sessions[key]; !active {
			delete(s.locks, key)
		}
	}
}

// Get returns the session for the view's key. Absence is not an error: it
// means the conversation starts fresh.
func (v View) Get() (*Session, bool) {
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	sess, ok := v.store.sessions[v.key]
	return sess, ok
}

// Create makes a new session in StateInit. It fails with ErrSessionExists
// when the key is already present.
func (v View) Create() (*Session, error) {
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	if _, ok := v.store.sessions[v.key]; ok {
		return nil, ErrSessionExists
	}
	now := time.Now()
	sess := &Session{
		ContactKey:  v.key,
		State:       StateInit,
		CreatedAt:   now,
		LastEventAt: now,
	}
	v.store.sessions[v.key] = sess
	return sess, nil
}

// Delete removes the view's session. Deleting an absent key is a no-op.
func (v View) Delete() {
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	delete(v.store.sessions, v.key)
}

// Len reports how many conversations are active.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep deletes sessions idle longer than ttl and returns how many were
// removed. A ttl of zero disables expiry and Sweep does nothing.
func (s *Store) Sweep(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-ttl)

	s.mu.Lock()
	expired := make([]string, 0)
	for key, sess := range s.sessions {
		if sess.LastEventAt.Before(cutoff) {
			expired = append(expired, key)
		}
	}
	s.mu.Unlock()

	removed := 0
	for _, key := range expired {
		// Re-check under the key lock: the contact may have spoken since.
		err := s.With(key, func(v View) error {
			sess, ok := v.Get()
			if !ok || !sess.LastEventAt.Before(cutoff) {
				return nil
			}
			v.Delete()
			removed++
			s.logger.Info("expired idle session",
				slog.String("contact", key),
				slog.String("state", sess.State.String()))
			return nil
		})
		if err != nil {
			s.logger.Error("sweep session", slog.String("contact", key), slog.Any("error", err))
		}
	}
	return removed
}
