package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Agentomics/internal/domain/models"
	"Agentomics/pkg/cache"
)

func seeded(t *testing.T) *models.GlobalState {
	t.Helper()
	st := models.NewGlobalState(2)
	require.NoError(t, st.Seed(models.DefaultSeed()))
	return st
}

func commitOne(t *testing.T, st *models.GlobalState, q int) *models.RoundCommitted {
	t.Helper()
	r := &models.Round{Quarter: q}
	require.NoError(t, r.Put(models.NewCentralBankDecision(0.035, 0.01)))
	require.NoError(t, r.Put(models.NewBigBankDecision(0.72, 0.021)))
	require.NoError(t, r.Put(models.NewSmallBankDecision(0.055, 0.68)))
	require.NoError(t, r.Put(models.NewEconomicForecast(0.018, 0.052, 0.033)))
	require.NoError(t, st.CommitRound(r))
	require.NoError(t, st.DecrementRound())
	return &models.RoundCommitted{
		RunID:       "run-1",
		Quarter:     q,
		Remaining:   st.RemainingRounds(),
		Mode:        "sequential",
		Values:      r.Values(),
		CommittedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCSVSinkRewritesWholeTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "quarters.csv")
	sink := NewCSVSink(path)
	st := seeded(t)
	ctx := context.Background()

	require.NoError(t, sink.Save(ctx, "run-1", st, nil))
	ev := commitOne(t, st, 4)
	require.NoError(t, sink.Save(ctx, "run-1", st, ev))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, strings.Join(models.FieldOrder(), ","), lines[0])
	assert.Equal(t, "0.018,0.052,0.033,0.035,0.01,0.72,0.021,0.055,0.68", lines[4])

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
	assert.Equal(t, "csv", sink.Name())
}

func TestRedisSnapshotStoreRoundTrip(t *testing.T) {
	mc := cache.NewMemoryCache()
	store := NewRedisSnapshotStore(mc, time.Hour)
	defer store.Close()
	ctx := context.Background()

	_, err := store.Quarters(ctx, "run-1")
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = store.LatestRun(ctx)
	assert.ErrorIs(t, err, ErrRunNotFound)

	st := seeded(t)
	ev := commitOne(t, st, 4)
	require.NoError(t, store.Save(ctx, "run-1", st, ev))

	tbl, err := store.Quarters(ctx, "run-1")
	require.NoError(t, err)
	want, err := st.ToTable()
	require.NoError(t, err)
	assert.Equal(t, want, tbl)

	got, err := store.LatestEvent(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 4, got.Quarter)
	assert.Equal(t, ev.Values, got.Values)

	id, err := store.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-1", id)
}

type fakeProducer struct {
	topic string
	key   []byte
	value interface{}
	err   error
}

func (p *fakeProducer) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	p.topic, p.key, p.value = topic, key, value
	return p.err
}

func TestKafkaRoundPublisherKeysByRun(t *testing.T) {
	p := &fakeProducer{}
	pub := NewKafkaRoundPublisher(p, "agentomics.rounds")
	ev := &models.RoundCommitted{RunID: "run-9", Quarter: 5}

	require.NoError(t, pub.PublishRound(context.Background(), ev))
	assert.Equal(t, "agentomics.rounds", p.topic)
	assert.Equal(t, []byte("run-9"), p.key)
	assert.Same(t, ev, p.value)

	p.err = errors.New("broker down")
	assert.Error(t, pub.PublishRound(context.Background(), ev))
	assert.NoError(t, pub.Close())
}

// recordingConnector is a minimal database/sql driver that records statements
// and serves canned rows.
type recordingConnector struct {
	mu    sync.Mutex
	execs []recordedExec
	rows  [][]driver.Value
	cols  []string
}

type recordedExec struct {
	query string
	args  []driver.Value
}

func (c *recordingConnector) Connect(context.Context) (driver.Conn, error) { return &recordingConn{c}, nil }
func (c *recordingConnector) Driver() driver.Driver                         { return recordingDriver{c} }

type recordingDriver struct{ c *recordingConnector }

func (d recordingDriver) Open(string) (driver.Conn, error) { return &recordingConn{d.c}, nil }

type recordingConn struct{ c *recordingConnector }

func (c *recordingConn) Prepare(q string) (driver.Stmt, error) { return &recordingStmt{c.c, q}, nil }
func (c *recordingConn) Close() error                          { return nil }
func (c *recordingConn) Begin() (driver.Tx, error)             { return nil, errors.New("no transactions") }

type recordingStmt struct {
	c *recordingConnector
	q string
}

func (s *recordingStmt) Close() error  { return nil }
func (s *recordingStmt) NumInput() int { return -1 }

func (s *recordingStmt) Exec(args []driver.Value) (driver.Result, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	s.c.execs = append(s.c.execs, recordedExec{query: s.q, args: args})
	return driver.RowsAffected(1), nil
}

func (s *recordingStmt) Query(args []driver.Value) (driver.Rows, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return &cannedRows{cols: s.c.cols, data: s.c.rows}, nil
}

type cannedRows struct {
	cols []string
	data [][]driver.Value
	i    int
}

func (r *cannedRows) Columns() []string { return r.cols }
func (r *cannedRows) Close() error      { return nil }

func (r *cannedRows) Next(dest []driver.Value) error {
	if r.i >= len(r.data) {
		return io.EOF
	}
	copy(dest, r.data[r.i])
	r.i++
	return nil
}

func TestCHQuarterStoreInsertsSeedThenIncrements(t *testing.T) {
	conn := &recordingConnector{}
	db := sql.OpenDB(conn)
	defer db.Close()

	store := NewCHQuarterStore(db, "agentomics", "quarters")
	st := seeded(t)
	ctx := context.Background()

	ev := commitOne(t, st, 4)
	require.NoError(t, store.Save(ctx, "run-1", st, ev))
	ev = commitOne(t, st, 5)
	require.NoError(t, store.Save(ctx, "run-1", st, ev))
	require.NoError(t, store.Save(ctx, "run-1", st, ev), "saving the same quarter twice is a no-op")

	require.Len(t, conn.execs, 2)
	first := conn.execs[0]
	assert.True(t, strings.HasPrefix(first.query, "INSERT INTO agentomics.quarters (run_id, quarter, mode, committed_at, gdp_growth_rate"))
	perRow := 4 + len(models.FieldOrder())
	require.Len(t, first.args, 4*perRow)
	assert.Equal(t, "run-1", first.args[0])
	assert.EqualValues(t, 1, first.args[1])
	assert.EqualValues(t, 4, first.args[3*perRow+1])

	second := conn.execs[1]
	require.Len(t, second.args, perRow)
	assert.EqualValues(t, 5, second.args[1])
	assert.Equal(t, "sequential", second.args[2])
}

func TestCHQuarterStoreReadsRunBack(t *testing.T) {
	ids := models.FieldOrder()
	row := func(base float64) []driver.Value {
		out := make([]driver.Value, len(ids))
		for j := range out {
			out[j] = base + float64(j)/100
		}
		return out
	}
	conn := &recordingConnector{cols: ids, rows: [][]driver.Value{row(0.1), row(0.2)}}
	db := sql.OpenDB(conn)
	defer db.Close()

	store := NewCHQuarterStore(db, "agentomics", "quarters")
	tbl, err := store.Quarters(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, ids, tbl.Columns)
	require.Equal(t, 2, tbl.Len())
	assert.InDelta(t, 0.21, tbl.Rows[1][1], 1e-9)

	conn.rows = nil
	_, err = store.Quarters(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestCHQuarterStoreSchema(t *testing.T) {
	stmts := NewCHQuarterStore(nil, "agentomics", "quarters").SchemaStatements()
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE DATABASE IF NOT EXISTS agentomics", stmts[0])
	assert.Contains(t, stmts[1], "agentomics.quarters")
	assert.Contains(t, stmts[1], "consumer_loan_focus Float64")
	assert.Contains(t, stmts[1], "ORDER BY (run_id, quarter)")
}
