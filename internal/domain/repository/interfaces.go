package repository

import (
	"context"
	"errors"

	"Agentomics/internal/domain/models"
)

// ErrRunNotFound is returned by a QuarterStore that holds nothing for a run.
var ErrRunNotFound = errors.New("run not found")

// SnapshotSink persists the flat table after each committed round.
type SnapshotSink interface {
	Name() string
	Save(ctx context.Context, runID string, state *models.GlobalState, ev *models.RoundCommitted) error
	Close() error
}

// RoundPublisher broadcasts committed rounds to downstream consumers.
type RoundPublisher interface {
	PublishRound(ctx context.Context, ev *models.RoundCommitted) error
	Close() error
}

// QuarterStore reads back exported quarters.
type QuarterStore interface {
	Quarters(ctx context.Context, runID string) (*models.Table, error)
}

// IndicatorSource downloads external economic indicators.
type IndicatorSource interface {
	Fetch(ctx context.Context, seriesID, label string) (*models.Indicator, error)
}

// Metrics records simulation activity.
type Metrics interface {
	RecordDecision(role, result string)
	RecordDecisionLatency(role string, seconds float64)
	RecordRoundCommitted(mode string)
	RecordSeriesValue(series string, value float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
