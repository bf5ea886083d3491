package fred

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"Agentomics/internal/domain/models"
	"Agentomics/pkg/cache"
)

type countingSource struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func (s *countingSource) Fetch(_ context.Context, seriesID, label string) (*models.Indicator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[seriesID]++
	if s.err != nil {
		return nil, s.err
	}
	return &models.Indicator{Label: label, Observations: []models.Observation{
		{Date: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), Value: 3.8},
		{Date: time.Date(2020, 4, 1, 0, 0, 0, 0, time.UTC), Missing: true},
	}}, nil
}

func TestCachedSourceServesRepeatsFromCache(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := &countingSource{calls: map[string]int{}}
	cs := NewCachedSource(src, cache.NewMemoryCache(), time.Hour, nil, "q", "2015-01-01")
	defer cs.Close()
	ctx := context.Background()

	first, err := cs.Fetch(ctx, "UNRATE", "unemployment_rate")
	require.NoError(t, err)
	second, err := cs.Fetch(ctx, "UNRATE", "other_label")
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls["UNRATE"])
	assert.Equal(t, "other_label", second.Label)
	assert.Equal(t, first.Observations, second.Observations)
	assert.True(t, second.Observations[1].Missing)
}

func TestCachedSourceKeysByWindow(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := &countingSource{calls: map[string]int{}}
	mc := cache.NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	_, err := NewCachedSource(src, mc, time.Hour, nil, "q").Fetch(ctx, "GDP", "")
	require.NoError(t, err)
	_, err = NewCachedSource(src, mc, time.Hour, nil, "m").Fetch(ctx, "GDP", "")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls["GDP"])
}

func TestCachedSourceDoesNotCacheErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := &countingSource{calls: map[string]int{}, err: errors.New("boom")}
	cs := NewCachedSource(src, cache.NewMemoryCache(), time.Hour, nil)
	defer cs.Close()

	_, err := cs.Fetch(context.Background(), "UNRATE", "")
	require.Error(t, err)
	_, err = cs.Fetch(context.Background(), "UNRATE", "")
	require.Error(t, err)
	assert.Equal(t, 2, src.calls["UNRATE"])
}
