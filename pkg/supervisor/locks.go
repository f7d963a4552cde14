package supervisor

import (
	"context"
	"fmt"
	"sync"
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock entry.mu, and then call release(name) after unlocking.
func (s *Supervisor) acquire(name string) *lockEntry {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()

	entry, exists := s.locks[name]
	if !exists {
		entry = &lockEntry{}
		s.locks[name] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (s *Supervisor) release(name string) {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()

	entry, exists := s.locks[name]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(s.locks, name)
	}
}

// withLock runs fn while holding the lock for the deployment name.
func (s *Supervisor) withLock(ctx context.Context, name string, fn func(context.Context) error) error {
	entry := s.acquire(name)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		s.release(name)
	}()

	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, name, s.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"deployment", name,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
