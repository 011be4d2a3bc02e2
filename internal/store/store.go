package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/skypro1111/silencesense/internal/config"
	"github.com/skypro1111/silencesense/internal/report"
)

// ErrNotFound is returned for unknown or expired analyses.
var ErrNotFound = errors.New("analysis not found")

// Backend identifiers.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Store keeps analysis results for later retrieval and duplicate detection.
type Store interface {
	Save(ctx context.Context, a *report.Analysis) error
	Get(ctx context.Context, id string) (*report.Analysis, error)
	// FindByKey looks an analysis up by its report.Params cache key.
	FindByKey(ctx context.Context, key string) (*report.Analysis, error)
	// List returns stored analyses, newest first.
	List(ctx context.Context) ([]*report.Analysis, error)
	Stats(ctx context.Context) (Stats, error)
	Close(ctx context.Context) error
}

// Stats describes the contents of a store.
type Stats struct {
	Backend    string `json:"backend"`
	Count      int    `json:"count"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// New creates a store for the configured backend.
func New(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemory(cfg.GetTTLDuration(), logger), nil
	case BackendRedis:
		return NewRedis(ctx, cfg.Redis, cfg.GetTTLDuration())
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}

func validate(a *report.Analysis) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("analysis id required")
	}
	return nil
}

func newestFirst(items []*report.Analysis) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}

func ttlSeconds(ttl time.Duration) int {
	return int(ttl / time.Second)
}
