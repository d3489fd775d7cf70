// Package cache provides an in-process keyed store with TTL expiry and stale-while-revalidate reads.
// One Store is constructed at startup per cached concern and passed to the components that need it.
package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultTTL is used when a Store is built without WithDefaultTTL.
const DefaultTTL = 6 * time.Hour

// FetchFunc produces a fresh value for a key.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Entry is a cached value with its lifetime.
type Entry[T any] struct {
	Data      T
	CreatedAt time.Time
	ExpiresAt time.Time
}

// valid reports whether the entry may still be served at now. An entry is valid up to and including ExpiresAt.
func (e Entry[T]) valid(now time.Time) bool {
	return !now.After(e.ExpiresAt)
}

// Result is returned by StaleWhileRevalidate.
type Result[T any] struct {
	Data    T
	IsStale bool
}

// Stats is a point-in-time view of a Store.
type Stats struct {
	Size           int           `json:"size"`
	Keys           []string      `json:"keys"`
	OldestEntryAge time.Duration `json:"-"`
}

// Recorder receives cache events, typically Prometheus counters.
type Recorder interface {
	Hit(cache string)
	Miss(cache string)
	Evict(cache string, n int)
}

type nopRecorder struct{}

func (nopRecorder) Hit(string) {}
func (nopRecorder) Miss(string) {}
func (nopRecorder) Evict(string, int) {}

// Option configures a Store.
type Option func(*options)

type options struct {
	defaultTTL        time.Duration
	now               func() time.Time
	logger            *zap.Logger
	recorder          Recorder
	revalidateTimeout time.Duration
}

// WithDefaultTTL sets the TTL applied when Set is called with ttl <= 0.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.defaultTTL = ttl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger used for background revalidation and sweep messages.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRecorder sets the hit/miss/eviction recorder.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithRevalidateTimeout bounds a detached background refresh.
func WithRevalidateTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.revalidateTimeout = d
		}
	}
}

// Store is a concurrency-safe TTL cache. Concurrent writers to the same key are last-writer-wins.
type Store[T any] struct {
	name string
	opts options

	mu      sync.RWMutex
	entries map[string]Entry[T]

	// bg tracks the janitor and in-flight revalidations so Close can wait for them.
	bg       sync.WaitGroup
	stopOnce sync.Once
	stop     chan struct{}
}

// New returns an empty Store. name labels metrics and logs (e.g. "metrics", "routing").
func New[T any](name string, opts ...Option) *Store[T] {
	o := options{
		defaultTTL:        DefaultTTL,
		now:               time.Now,
		logger:            zap.NewNop(),
		recorder:          nopRecorder{},
		revalidateTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[T]{
		name:    name,
		opts:    o,
		entries: make(map[string]Entry[T]),
		stop:    make(chan struct{}),
	}
}

// Name returns the store's label.
func (s *Store[T]) Name() string { return s.name }

// Set stores data under key for ttl. ttl <= 0 uses the store default.
func (s *Store[T]) Set(key string, data T, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.opts.defaultTTL
	}
	now := s.opts.now()
	s.mu.Lock()
	s.entries[key] = Entry[T]{Data: data, CreatedAt: now, ExpiresAt: now.Add(ttl)}
	s.mu.Unlock()
}

// GetEntry returns the entry for key if present and not expired. An expired entry is evicted.
func (s *Store[T]) GetEntry(key string) (Entry[T], bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		s.opts.recorder.Miss(s.name)
		return Entry[T]{}, false
	}
	if !e.valid(s.opts.now()) {
		s.mu.Lock()
		// Re-check under the write lock: a concurrent Set may have refreshed the key.
		if cur, still := s.entries[key]; still && !cur.valid(s.opts.now()) {
			delete(s.entries, key)
			s.opts.recorder.Evict(s.name, 1)
		}
		s.mu.Unlock()
		s.opts.recorder.Miss(s.name)
		return Entry[T]{}, false
	}
	s.opts.recorder.Hit(s.name)
	return e, true
}

// Get returns the data for key if present and not expired.
func (s *Store[T]) Get(key string) (T, bool) {
	e, ok := s.GetEntry(key)
	return e.Data, ok
}

// Has reports whether Get would return a value for key at this instant. It neither records a hit or
// miss nor evicts.
func (s *Store[T]) Has(key string) bool {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	return ok && e.valid(s.opts.now())
}

// Delete removes key.
func (s *Store[T]) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// DeleteMatching removes every key for which match returns true and returns how many were removed.
func (s *Store[T]) DeleteMatching(match func(key string) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.entries {
		if match(k) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

// Clear removes every entry.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]Entry[T])
	s.mu.Unlock()
}

// Cleanup removes all expired entries and returns the number removed.
func (s *Store[T]) Cleanup() int {
	now := s.opts.now()
	s.mu.Lock()
	removed := 0
	for k, e := range s.entries {
		if !e.valid(now) {
			delete(s.entries, k)
			removed++
		}
	}
	s.mu.Unlock()
	if removed > 0 {
		s.opts.recorder.Evict(s.name, removed)
	}
	return removed
}

// Stats reports size, sorted keys and the age of the oldest entry (expired entries included until swept).
func (s *Store[T]) Stats() Stats {
	now := s.opts.now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{Size: len(s.entries), Keys: make([]string, 0, len(s.entries))}
	for k, e := range s.entries {
		st.Keys = append(st.Keys, k)
		if age := now.Sub(e.CreatedAt); age > st.OldestEntryAge {
			st.OldestEntryAge = age
		}
	}
	sort.Strings(st.Keys)
	return st
}

// CachedFetch returns the cached value for key, or calls fetch, stores its result for ttl and returns it.
// Fetch errors are returned and nothing is stored.
func (s *Store[T]) CachedFetch(ctx context.Context, key string, fetch FetchFunc[T], ttl time.Duration) (T, error) {
	if v, ok := s.Get(key); ok {
		return v, nil
	}
	v, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	s.Set(key, v, ttl)
	return v, nil
}

// StaleWhileRevalidate returns the cached value for key immediately, marked stale, and refreshes it in the
// background. The refresh is detached from ctx and bounded by the revalidate timeout; its errors are
// logged, never returned. With no cached value the fetch runs synchronously.
func (s *Store[T]) StaleWhileRevalidate(ctx context.Context, key string, fetch FetchFunc[T], ttl time.Duration) (Result[T], error) {
	if v, ok := s.Get(key); ok {
		s.revalidate(key, fetch, ttl)
		return Result[T]{Data: v, IsStale: true}, nil
	}
	v, err := fetch(ctx)
	if err != nil {
		return Result[T]{}, err
	}
	s.Set(key, v, ttl)
	return Result[T]{Data: v}, nil
}

func (s *Store[T]) revalidate(key string, fetch FetchFunc[T], ttl time.Duration) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.revalidateTimeout)
		defer cancel()
		v, err := fetch(ctx)
		if err != nil {
			s.opts.logger.Warn("cache revalidation failed",
				zap.String("cache", s.name),
				zap.String("key", key),
				zap.Error(err),
			)
			return
		}
		s.Set(key, v, ttl)
	}()
}

// StartJanitor runs Cleanup every interval until ctx is done or Close is called.
func (s *Store[T]) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				if n := s.Cleanup(); n > 0 {
					s.opts.logger.Debug("cache sweep", zap.String("cache", s.name), zap.Int("removed", n))
				}
			}
		}
	}()
}

// Close stops the janitor and waits for in-flight revalidations.
func (s *Store[T]) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.bg.Wait()
}
