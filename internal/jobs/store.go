// Package jobs holds the transient state that bridges stateless request
// handlers with asynchronous external processing: a TTL-bounded keyed store
// for in-flight job results and a cancellable poller that watches them.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maxionmain321/podcast-automation-caio-internal/internal/domain"
)

// Terminable is implemented by job values so the store can enforce that only
// the first terminal write takes effect.
type Terminable interface {
	JobStatus() domain.JobStatus
}

type entry[T Terminable] struct {
	value    T
	storedAt time.Time
}

// Store is an in-memory keyed store with bounded retention. Put overwrites by
// key; Complete and Fail refuse to replace an already-terminal value, which
// makes a late callback or a stale poll a safe no-op. A zero TTL disables
// eviction (useful in tests that control time themselves).
type Store[T Terminable] struct {
	mu      sync.Mutex
	entries map[string]entry[T]
	ttl     time.Duration
	now     func() time.Time
}

func NewStore[T Terminable](ttl time.Duration) *Store[T] {
	return &Store[T]{
		entries: map[string]entry[T]{},
		ttl:     ttl,
		now:     time.Now,
	}
}

// SetClock replaces the store's time source. Tests use this to drive eviction.
func (s *Store[T]) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Put overwrites the value for key unconditionally.
func (s *Store[T]) Put(key string, value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry[T]{value: value, storedAt: s.now()}
}

// SetTerminal writes value only if the current value for key is non-terminal
// (or absent). It reports whether the write took effect; callers use the
// result to decide whether this observation is the authoritative one.
func (s *Store[T]) SetTerminal(key string, value T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[key]; ok && existing.value.JobStatus().Terminal() {
		return false
	}

	s.entries[key] = entry[T]{value: value, storedAt: s.now()}
	return true
}

func (s *Store[T]) Get(key string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		var zero T
		return zero, false
	}
	if s.expiredLocked(e) {
		delete(s.entries, key)
		var zero T
		return zero, false
	}
	return e.value, true
}

func (s *Store[T]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Sweep drops every expired entry and returns how many were removed.
func (s *Store[T]) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		if s.expiredLocked(e) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store[T]) expiredLocked(e entry[T]) bool {
	return s.ttl > 0 && s.now().Sub(e.storedAt) > s.ttl
}

// Janitor periodically sweeps a store until its context is cancelled.
type Janitor struct {
	interval time.Duration
	sweep    func() int
	log      logrus.FieldLogger
}

func NewJanitor(interval time.Duration, log logrus.FieldLogger, sweep func() int) *Janitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Janitor{interval: interval, sweep: sweep, log: log}
}

// Start blocks until ctx is done, sweeping on a fixed cadence. Run it in its
// own goroutine.
func (j *Janitor) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := j.sweep(); removed > 0 && j.log != nil {
				j.log.WithField("removed", removed).Debug("swept expired job entries")
			}
		}
	}
}
