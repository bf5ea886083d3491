package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"Agentomics/internal/domain/models"
	drepo "Agentomics/internal/domain/repository"
	applogger "Agentomics/pkg/logger"
)

// CHQuarterStore writes one row per committed quarter into ClickHouse and
// reads a run back as a table. The first save of a run also writes the seed
// quarters, so every run is complete in the table.
type CHQuarterStore struct {
	db       *sql.DB
	database string
	table    string
	l        *applogger.Logger

	mu      sync.Mutex
	written map[string]int // run id -> quarters already inserted
}

var (
	_ drepo.SnapshotSink = (*CHQuarterStore)(nil)
	_ drepo.QuarterStore = (*CHQuarterStore)(nil)
)

func NewCHQuarterStore(db *sql.DB, database, table string) *CHQuarterStore {
	return &CHQuarterStore{
		db:       db,
		database: database,
		table:    table,
		l:        applogger.NewNop(),
		written:  make(map[string]int),
	}
}

// SetLogger injects a structured logger.
func (s *CHQuarterStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

func (s *CHQuarterStore) Name() string { return "clickhouse" }

func (s *CHQuarterStore) qualified() string { return s.database + "." + s.table }

// SchemaStatements returns the idempotent DDL for the quarters table.
func (s *CHQuarterStore) SchemaStatements() []string {
	cols := make([]string, 0, len(models.FieldOrder()))
	for _, id := range models.FieldOrder() {
		cols = append(cols, fmt.Sprintf("    %s Float64", id))
	}
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", s.database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    run_id String,
    quarter UInt32,
    mode LowCardinality(String),
    committed_at DateTime64(3, 'UTC'),
%s
) ENGINE = ReplacingMergeTree(committed_at)
ORDER BY (run_id, quarter)`, s.qualified(), strings.Join(cols, ",\n")),
	}
}

func (s *CHQuarterStore) Save(ctx context.Context, runID string, state *models.GlobalState, ev *models.RoundCommitted) error {
	start := time.Now()
	t, err := state.ToTable()
	if err != nil {
		return err
	}

	s.mu.Lock()
	from := s.written[runID]
	s.mu.Unlock()
	if from >= t.Len() {
		return nil
	}

	mode, at := "", time.Now().UTC()
	if ev != nil {
		mode, at = ev.Mode, ev.CommittedAt
	}

	ids := models.FieldOrder()
	values := make([]string, 0, t.Len()-from)
	args := make([]interface{}, 0, (t.Len()-from)*(4+len(ids)))
	placeholders := "(" + strings.TrimSuffix(strings.Repeat("?, ", 4+len(ids)), ", ") + ")"
	for i := from; i < t.Len(); i++ {
		rec, err := t.Record(i)
		if err != nil {
			return err
		}
		values = append(values, placeholders)
		args = append(args, runID, uint32(i+1), mode, at)
		for _, id := range ids {
			args = append(args, rec[id])
		}
	}

	q := fmt.Sprintf("INSERT INTO %s (run_id, quarter, mode, committed_at, %s) VALUES %s",
		s.qualified(), strings.Join(ids, ", "), strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		s.l.Error("clickhouse insert quarters error",
			applogger.String("run_id", runID),
			applogger.Int("from", from+1),
			applogger.Int("to", t.Len()),
			applogger.Error(err),
		)
		return fmt.Errorf("insert quarters: %w", err)
	}

	s.mu.Lock()
	s.written[runID] = t.Len()
	s.mu.Unlock()
	s.l.Debug("clickhouse insert quarters ok",
		applogger.String("run_id", runID),
		applogger.Int("rows", len(values)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

// Quarters reads a run back in quarter order.
func (s *CHQuarterStore) Quarters(ctx context.Context, runID string) (*models.Table, error) {
	ids := models.FieldOrder()
	q := fmt.Sprintf("SELECT %s FROM %s FINAL WHERE run_id = ? ORDER BY quarter ASC",
		strings.Join(ids, ", "), s.qualified())
	rows, err := s.db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, fmt.Errorf("get quarters: %w", err)
	}
	defer rows.Close()

	t := &models.Table{Columns: ids}
	for rows.Next() {
		row := make([]float64, len(ids))
		dest := make([]interface{}, len(ids))
		for j := range row {
			dest[j] = &row[j]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan quarter: %w", err)
		}
		t.Rows = append(t.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if t.Len() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return t, nil
}

// Close is a no-op; the pool belongs to pkg/clickhouse.Client.
func (s *CHQuarterStore) Close() error { return nil }
