package state

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps consumed nonces in memory.
// Suitable for a single emulator process.
type MemoryStore struct {
	mu     sync.Mutex
	nonces map[string]time.Time
	now    func() time.Time
	done   chan struct{}
	once   sync.Once
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	store := &MemoryStore{
		nonces: make(map[string]time.Time),
		now:    time.Now,
		done:   make(chan struct{}),
	}
	go store.cleanup()
	return store
}

// Consume marks nonce as used.
func (s *MemoryStore) Consume(_ context.Context, nonce string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if exp, ok := s.nonces[nonce]; ok && s.now().Before(exp) {
		return ErrNonceReused
	}
	s.nonces[nonce] = expiresAt
	return nil
}

// Len returns the number of tracked nonces.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nonces)
}

// Close stops the cleanup goroutine
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// Name returns the store type name
func (s *MemoryStore) Name() string {
	return "memory"
}

func (s *MemoryStore) purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for nonce, exp := range s.nonces {
		if !now.Before(exp) {
			delete(s.nonces, nonce)
		}
	}
}

// cleanup removes expired nonces
func (s *MemoryStore) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.purge()
		}
	}
}
