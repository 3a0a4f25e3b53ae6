package cooldown

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

// DefaultTTL is the suppression window applied after a notification.
const DefaultTTL = 24 * time.Hour

const shardCount = 16

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Key identifies a biotope metric pair.
type Key struct {
	BiotopeID  string
	MetricCode string
}

type shard struct {
	mu      sync.Mutex
	entries map[Key]time.Time
}

// Tracker holds the live suppression windows in process memory. State is
// not persisted and is lost on restart. Pairs are spread over independently
// locked shards; acquisition for one pair is atomic.
type Tracker struct {
	shards [shardCount]*shard
	clock  Clock
}

// Option configures the tracker.
type Option func(*Tracker)

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(t *Tracker) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// NewTracker constructs an empty tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{clock: systemClock{}}
	for i := range t.shards {
		t.shards[i] = &shard{entries: make(map[Key]time.Time)}
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TryAcquire opens a window of ttl for the pair. It returns false without
// touching the live entry when one exists. A non-positive ttl uses DefaultTTL.
func (t *Tracker) TryAcquire(biotopeID, metricCode string, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	key := Key{BiotopeID: biotopeID, MetricCode: metricCode}
	s := t.shardFor(key)
	now := t.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if expiresAt, ok := s.entries[key]; ok {
		if now.Before(expiresAt) {
			return false
		}
		delete(s.entries, key)
	}
	s.entries[key] = now.Add(ttl)
	return true
}

// Release drops the window of the pair. It reports whether a live entry was removed.
func (t *Tracker) Release(biotopeID, metricCode string) bool {
	key := Key{BiotopeID: biotopeID, MetricCode: metricCode}
	s := t.shardFor(key)
	now := t.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	expiresAt, ok := s.entries[key]
	if !ok {
		return false
	}
	delete(s.entries, key)
	return now.Before(expiresAt)
}

// Active reports whether the pair has a live window.
func (t *Tracker) Active(biotopeID, metricCode string) bool {
	key := Key{BiotopeID: biotopeID, MetricCode: metricCode}
	s := t.shardFor(key)
	now := t.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	expiresAt, ok := s.entries[key]
	return ok && now.Before(expiresAt)
}

// Sweep removes every expired entry and returns how many were dropped.
func (t *Tracker) Sweep() int {
	now := t.clock.Now()
	removed := 0
	for _, s := range t.shards {
		s.mu.Lock()
		for key, expiresAt := range s.entries {
			if !now.Before(expiresAt) {
				delete(s.entries, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Len returns the number of stored entries, expired ones included until swept.
func (t *Tracker) Len() int {
	total := 0
	for _, s := range t.shards {
		s.mu.Lock()
		total += len(s.entries)
		s.mu.Unlock()
	}
	return total
}

// Run sweeps on every interval until ctx is done.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Sweep()
		}
	}
}

func (t *Tracker) shardFor(key Key) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key.BiotopeID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(key.MetricCode))
	return t.shards[h.Sum32()%shardCount]
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
