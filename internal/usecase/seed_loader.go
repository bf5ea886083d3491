package usecase

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"Agentomics/internal/domain/models"
	drepo "Agentomics/internal/domain/repository"
	"Agentomics/internal/services/indicators"
	applogger "Agentomics/pkg/logger"
	"Agentomics/pkg/util"
)

// SeedMapping binds an external series to a state field.
type SeedMapping struct {
	SeriesID string
	Field    string
	// Scale converts source units, e.g. 0.01 for values published in percent.
	Scale float64
}

// SeedLoader builds an initialization seed from real indicator history.
type SeedLoader struct {
	src drepo.IndicatorSource
	log *applogger.Logger
}

func NewSeedLoader(src drepo.IndicatorSource, log *applogger.Logger) *SeedLoader {
	if log == nil {
		log = applogger.NewNop()
	}
	return &SeedLoader{src: src, log: log}
}

// Align downloads every mapped series concurrently and returns their longest
// common date range, with columns labeled by field id.
func (l *SeedLoader) Align(ctx context.Context, mappings []SeedMapping) (*models.AlignedRange, error) {
	if len(mappings) == 0 {
		return nil, fmt.Errorf("no series to align")
	}
	for _, m := range mappings {
		if _, ok := models.LookupField(m.Field); !ok {
			return nil, fmt.Errorf("series %s maps to unknown field %q", m.SeriesID, m.Field)
		}
	}

	fetched := make([]*models.Indicator, len(mappings))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range mappings {
		g.Go(func() error {
			ind, err := l.src.Fetch(gctx, m.SeriesID, m.Field)
			if err != nil {
				return err
			}
			l.log.Debug("indicator downloaded",
				applogger.String("series_id", m.SeriesID),
				applogger.Int("observations", len(ind.Observations)))
			fetched[i] = ind
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rng, ok := indicators.LongestCommonRange(fetched...)
	if !ok {
		return nil, fmt.Errorf("indicators share no common date range")
	}
	for i, m := range mappings {
		scale := m.Scale
		if scale == 0 {
			scale = 1
		}
		for _, row := range rng.Rows {
			row[i] *= scale
		}
	}
	l.log.Info("indicators aligned",
		applogger.Int("quarters", rng.Len()),
		applogger.String("from", util.QuarterLabel(rng.Dates[0])),
		applogger.String("to", util.QuarterLabel(rng.Dates[rng.Len()-1])))
	return rng, nil
}

// Load replaces the mapped fields of base with the last quarters of aligned
// history. Unmapped fields keep their own most recent values, left-padded with
// their earliest value when base is shorter.
func (l *SeedLoader) Load(ctx context.Context, mappings []SeedMapping, quarters int, base models.Seed) (models.Seed, error) {
	if quarters < 1 {
		return nil, fmt.Errorf("quarters must be >= 1, got %d", quarters)
	}
	rng, err := l.Align(ctx, mappings)
	if err != nil {
		return nil, err
	}
	if rng.Len() < quarters {
		return nil, fmt.Errorf("aligned history has %d quarters, need %d", rng.Len(), quarters)
	}

	seed := make(models.Seed, len(models.FieldOrder()))
	for _, id := range models.FieldOrder() {
		if col, ok := rng.Column(id); ok {
			seed[id] = col[len(col)-quarters:]
			continue
		}
		vals, ok := base[id]
		if !ok || len(vals) == 0 {
			return nil, fmt.Errorf("no history for unmapped field %s", id)
		}
		seed[id] = resize(vals, quarters)
	}
	return seed, nil
}

func resize(vals []float64, n int) []float64 {
	if len(vals) >= n {
		return append([]float64(nil), vals[len(vals)-n:]...)
	}
	out := make([]float64, 0, n)
	for i := len(vals); i < n; i++ {
		out = append(out, vals[0])
	}
	return append(out, vals...)
}
