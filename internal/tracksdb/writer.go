package tracksdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/google/uuid"
)

// Row is one particle in one frame.
type Row struct {
	Frame     float64 `json:"frame"`
	Particle  int64   `json:"particle"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Intensity float64 `json:"intensity"`
	Rg2       float64 `json:"rg2"`
}

// Writer appends tracks to a new database.
type Writer struct {
	db    *DB
	runID string
}

// Create makes a new tracks database at path with the current schema. It
// fails with ErrExists if anything is already at path.
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrExists, path)
		}
		return nil, err
	}
	f.Close()

	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return &Writer{db: db}, nil
}

// DB exposes the underlying connection.
func (w *Writer) DB() *DB { return w.db }

// RunID returns the id recorded by StartRun, or "".
func (w *Writer) RunID() string { return w.runID }

// StartRun records the parameters and software version of this tracking
// run and returns its id.
func (w *Writer) StartRun(ctx context.Context, params any, version string, started time.Time) (string, error) {
	b, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encode run parameters: %w", err)
	}
	id := uuid.NewString()
	_, err = w.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, params_json, version, started_at) VALUES (?, ?, ?, ?)`,
		id, string(b), version, started.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	w.runID = id
	return id, nil
}

// FinishRun stamps the current run as finished after nframes frames.
func (w *Writer) FinishRun(ctx context.Context, finished time.Time, nframes int) error {
	if w.runID == "" {
		return nil
	}
	_, err := w.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, nframes = ? WHERE run_id = ?`,
		finished.UTC().Format(time.RFC3339Nano), nframes, w.runID)
	return err
}

// AppendFrame writes rows in one transaction.
func (w *Writer) AppendFrame(ctx context.Context, rows []Row) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO bigtracks (frame, particle, x, y, intensity, rg2) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.Frame, r.Particle,
			nullable(r.X), nullable(r.Y), nullable(r.Intensity), nullable(r.Rg2)); err != nil {
			tx.Rollback()
			return fmt.Errorf("append frame %v: %w", r.Frame, err)
		}
	}
	return tx.Commit()
}

// CreateIndices indexes the frame and particle columns.
func (w *Writer) CreateIndices() error { return w.db.createIndices() }

// Close closes the database.
func (w *Writer) Close() error { return w.db.Close() }

// nullable maps NaN to NULL.
func nullable(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v)}
}
