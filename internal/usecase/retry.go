package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Agentomics/internal/domain/models"
)

// ErrRetriesExhausted is returned when a role keeps failing past the attempt cap.
var ErrRetriesExhausted = errors.New("retries exhausted")

// RetriesExhaustedError carries the role and the last failure.
type RetriesExhaustedError struct {
	Role     models.Role
	Quarter  int
	Attempts int
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("%v: %s gave no valid result for quarter %d after %d attempts: %v",
		ErrRetriesExhausted, e.Role, e.Quarter, e.Attempts, e.Last)
}

func (e *RetriesExhaustedError) Is(target error) bool { return target == ErrRetriesExhausted }

func (e *RetriesExhaustedError) Unwrap() error { return e.Last }

// RetryPolicy bounds how often a failing role is asked again.
type RetryPolicy struct {
	// MaxAttempts of 0 means unlimited.
	MaxAttempts int
	BackoffMin  time.Duration
	// BackoffMax of 0 caps the wait at backoffCeiling.
	BackoffMax time.Duration
}

const backoffCeiling = 5 * time.Minute

// DefaultRetryPolicy keeps retrying quickly, with a cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 10, BackoffMin: 250 * time.Millisecond, BackoffMax: 10 * time.Second}
}

// Exhausted reports whether attempt (1-based) was the last allowed one.
func (p RetryPolicy) Exhausted(attempt int) bool {
	return p.MaxAttempts > 0 && attempt >= p.MaxAttempts
}

// Backoff returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if p.BackoffMin <= 0 {
		return 0
	}
	ceiling := p.BackoffMax
	if ceiling <= 0 {
		ceiling = backoffCeiling
	}
	d := p.BackoffMin
	for i := 1; i < attempt && d < ceiling; i++ {
		d *= 2
	}
	return min(d, ceiling)
}

// permanentError stops the retry loop.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func isPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
