package fred

import (
	"context"
	"errors"
	"time"

	"Agentomics/internal/domain/models"
	drepo "Agentomics/internal/domain/repository"
	"Agentomics/pkg/cache"
	applogger "Agentomics/pkg/logger"
)

// CachedSource keeps downloaded series in a cache so repeated runs and
// `align` calls do not hit FRED again. Entries are keyed by series id and the
// query window; the label is applied on the way out.
type CachedSource struct {
	src    drepo.IndicatorSource
	c      cache.Service
	ttl    time.Duration
	window []interface{}
	log    *applogger.Logger
}

var _ drepo.IndicatorSource = (*CachedSource)(nil)

// NewCachedSource wraps src. window distinguishes otherwise identical series
// ids, e.g. frequency and observation range.
func NewCachedSource(src drepo.IndicatorSource, c cache.Service, ttl time.Duration, log *applogger.Logger, window ...interface{}) *CachedSource {
	if log == nil {
		log = applogger.NewNop()
	}
	return &CachedSource{src: src, c: c, ttl: ttl, window: window, log: log}
}

func (s *CachedSource) key(seriesID string) string {
	return cache.Key(append([]interface{}{"fred", seriesID}, s.window...)...)
}

func (s *CachedSource) Fetch(ctx context.Context, seriesID, label string) (*models.Indicator, error) {
	key := s.key(seriesID)

	var ind models.Indicator
	err := s.c.Get(ctx, key, &ind)
	switch {
	case err == nil:
		s.log.Debug("fred cache hit", applogger.String("series_id", seriesID))
		if label == "" {
			label = seriesID
		}
		ind.Label = label
		return &ind, nil
	case !errors.Is(err, cache.ErrCacheMiss):
		s.log.Warn("fred cache read failed", applogger.String("series_id", seriesID), applogger.Error(err))
	}

	fetched, err := s.src.Fetch(ctx, seriesID, label)
	if err != nil {
		return nil, err
	}
	if err := s.c.Set(ctx, key, fetched, s.ttl); err != nil {
		s.log.Warn("fred cache write failed", applogger.String("series_id", seriesID), applogger.Error(err))
	}
	return fetched, nil
}

// Close releases the cache.
func (s *CachedSource) Close() error { return s.c.Close() }
