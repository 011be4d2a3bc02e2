package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/skypro1111/silencesense/internal/report"
)

const defaultTTL = time.Hour

type memoryEntry struct {
	analysis  *report.Analysis
	expiresAt time.Time
}

// MemoryStore holds analyses in process memory until their TTL passes.
type MemoryStore struct {
	entries map[string]memoryEntry
	byKey   map[string]string // cache key -> id
	mu      sync.RWMutex
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewMemory creates an in-memory store and starts its expiry sweeper.
func NewMemory(ttl time.Duration, logger *slog.Logger) *MemoryStore {
	return newMemory(ttl, logger, time.Now)
}

func newMemory(ttl time.Duration, logger *slog.Logger, now func() time.Time) *MemoryStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		byKey:   make(map[string]string),
		ttl:     ttl,
		logger:  logger,
		now:     now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	go s.cleanupRoutine(sweepInterval(ttl))

	return s
}

func sweepInterval(ttl time.Duration) time.Duration {
	interval := ttl / 2
	if interval > 30*time.Second {
		interval = 30 * time.Second
	}
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}

func (s *MemoryStore) cleanupRoutine(interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if removed := s.sweep(); removed > 0 {
				s.logger.Debug("Expired analyses removed",
					slog.Int("removed", removed),
				)
			}
		}
	}
}

// sweep drops expired entries and returns how many were removed.
func (s *MemoryStore) sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.entries {
		if now.After(e.expiresAt) {
			s.deleteLocked(id, e)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) deleteLocked(id string, e memoryEntry) {
	delete(s.entries, id)
	key := e.analysis.CacheKey()
	if s.byKey[key] == id {
		delete(s.byKey, key)
	}
}

// Save stores a copy of a.
func (s *MemoryStore) Save(_ context.Context, a *report.Analysis) error {
	if err := validate(a); err != nil {
		return err
	}
	stored := *a

	s.mu.Lock()
	s.entries[a.ID] = memoryEntry{analysis: &stored, expiresAt: s.now().Add(s.ttl)}
	s.byKey[stored.CacheKey()] = a.ID
	s.mu.Unlock()
	return nil
}

// Get returns the analysis with the given id.
func (s *MemoryStore) Get(_ context.Context, id string) (*report.Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(id)
}

func (s *MemoryStore) getLocked(id string) (*report.Analysis, error) {
	e, ok := s.entries[id]
	if !ok || s.now().After(e.expiresAt) {
		return nil, ErrNotFound
	}
	out := *e.analysis
	return &out, nil
}

// FindByKey returns the analysis indexed under key.
func (s *MemoryStore) FindByKey(_ context.Context, key string) (*report.Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byKey[key]
	if !ok {
		return nil, ErrNotFound
	}
	return s.getLocked(id)
}

// List returns unexpired analyses, newest first.
func (s *MemoryStore) List(_ context.Context) ([]*report.Analysis, error) {
	now := s.now()

	s.mu.RLock()
	items := make([]*report.Analysis, 0, len(s.entries))
	for _, e := range s.entries {
		if now.After(e.expiresAt) {
			continue
		}
		out := *e.analysis
		items = append(items, &out)
	}
	s.mu.RUnlock()

	newestFirst(items)
	return items, nil
}

// Stats reports the number of unexpired analyses.
func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	items, err := s.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Backend:    BackendMemory,
		Count:      len(items),
		TTLSeconds: ttlSeconds(s.ttl),
	}, nil
}

// Close stops the sweeper. It is safe to call more than once.
func (s *MemoryStore) Close(_ context.Context) error {
	s.stopOnce.Do(func() {
		close(s.stop)
		<-s.done
	})
	return nil
}
