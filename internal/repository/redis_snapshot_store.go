package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Agentomics/internal/domain/models"
	drepo "Agentomics/internal/domain/repository"
	"Agentomics/pkg/cache"
)

// ErrRunNotFound is returned when no snapshot exists for a run.
var ErrRunNotFound = drepo.ErrRunNotFound

const latestRunKey = "runs:latest"

// RedisSnapshotStore keeps the latest full table and round event of each run
// under run:<id>:table and run:<id>:latest. The cache adds its own prefix.
type RedisSnapshotStore struct {
	c   cache.Service
	ttl time.Duration
}

var (
	_ drepo.SnapshotSink = (*RedisSnapshotStore)(nil)
	_ drepo.QuarterStore = (*RedisSnapshotStore)(nil)
)

func NewRedisSnapshotStore(c cache.Service, ttl time.Duration) *RedisSnapshotStore {
	return &RedisSnapshotStore{c: c, ttl: ttl}
}

func (s *RedisSnapshotStore) Name() string { return "redis" }

func tableKey(runID string) string { return cache.Key("run", runID, "table") }
func eventKey(runID string) string { return cache.Key("run", runID, "latest") }

func (s *RedisSnapshotStore) Save(ctx context.Context, runID string, state *models.GlobalState, ev *models.RoundCommitted) error {
	t, err := state.ToTable()
	if err != nil {
		return err
	}
	values := map[string]interface{}{
		tableKey(runID): t,
		latestRunKey:    runID,
	}
	if ev != nil {
		values[eventKey(runID)] = ev
	}
	if err := s.c.MSet(ctx, values, s.ttl); err != nil {
		return fmt.Errorf("redis snapshot %s: %w", runID, err)
	}
	return nil
}

// Quarters returns the stored table of a run.
func (s *RedisSnapshotStore) Quarters(ctx context.Context, runID string) (*models.Table, error) {
	var t models.Table
	if err := s.c.Get(ctx, tableKey(runID), &t); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	return &t, nil
}

// LatestEvent returns the last committed round of a run.
func (s *RedisSnapshotStore) LatestEvent(ctx context.Context, runID string) (*models.RoundCommitted, error) {
	var ev models.RoundCommitted
	if err := s.c.Get(ctx, eventKey(runID), &ev); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	return &ev, nil
}

// LatestRun returns the id of the most recently saved run.
func (s *RedisSnapshotStore) LatestRun(ctx context.Context) (string, error) {
	var id string
	if err := s.c.Get(ctx, latestRunKey, &id); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return "", ErrRunNotFound
		}
		return "", err
	}
	return id, nil
}

func (s *RedisSnapshotStore) Close() error { return s.c.Close() }
