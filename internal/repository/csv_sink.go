package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"Agentomics/internal/domain/models"
	drepo "Agentomics/internal/domain/repository"
)

// CSVSink rewrites the whole table to a file after every round. The file is
// replaced by rename, so readers never see a partial table.
type CSVSink struct {
	path string
}

var _ drepo.SnapshotSink = (*CSVSink)(nil)

func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

func (s *CSVSink) Name() string { return "csv" }

func (s *CSVSink) Save(_ context.Context, _ string, state *models.GlobalState, _ *models.RoundCommitted) error {
	t, err := state.ToTable()
	if err != nil {
		return err
	}
	return WriteTableCSV(s.path, t)
}

func (s *CSVSink) Close() error { return nil }

// WriteTableCSV writes t to path atomically, creating parent directories.
func WriteTableCSV(path string, t *models.Table) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("csv mkdir: %w", err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("csv create: %w", err)
	}
	tmp := f.Name()
	if err := t.WriteCSV(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("csv write: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("csv close: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("csv rename: %w", err)
	}
	return nil
}
