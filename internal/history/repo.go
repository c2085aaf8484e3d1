package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

var ErrNoRuns = errors.New("no ingestion runs recorded")

type Repository interface {
	StartRun(ctx context.Context, run *Run) error
	FinishRun(ctx context.Context, run *Run) error
	SaveFailedBatch(ctx context.Context, fb *FailedBatch) error
	ListFailedBatches(ctx context.Context, runID string) ([]FailedBatch, error)
	LastRun(ctx context.Context) (*Run, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) StartRun(ctx context.Context, run *Run) error {
	query := `INSERT INTO ingest_runs (id, index_name, status, total) VALUES ($1, $2, $3, $4) RETURNING started_at`
	return r.db.QueryRowContext(ctx, query, run.ID, run.IndexName, run.Status, run.Total).Scan(&run.StartedAt)
}

func (r *PostgresRepo) FinishRun(ctx context.Context, run *Run) error {
	query := `UPDATE ingest_runs SET status = $2, uploaded = $3, duplicates = $4, batches = $5, error = $6, finished_at = NOW() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, run.ID, run.Status, run.Uploaded, run.Duplicates, run.Batches, run.Error)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *PostgresRepo) SaveFailedBatch(ctx context.Context, fb *FailedBatch) error {
	ids, err := json.Marshal(fb.RecordIDs)
	if err != nil {
		return err
	}
	query := `INSERT INTO failed_batches (run_id, batch_index, record_ids, error) VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, query, fb.RunID, fb.BatchIndex, ids, fb.Error).Scan(&fb.ID, &fb.CreatedAt)
}

func (r *PostgresRepo) ListFailedBatches(ctx context.Context, runID string) ([]FailedBatch, error) {
	query := `SELECT id, run_id, batch_index, record_ids, error, created_at FROM failed_batches WHERE run_id = $1 ORDER BY batch_index`
	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []FailedBatch
	for rows.Next() {
		var fb FailedBatch
		var ids []byte
		if err := rows.Scan(&fb.ID, &fb.RunID, &fb.BatchIndex, &ids, &fb.Error, &fb.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(ids, &fb.RecordIDs); err != nil {
			return nil, err
		}
		batches = append(batches, fb)
	}
	return batches, rows.Err()
}

func (r *PostgresRepo) LastRun(ctx context.Context) (*Run, error) {
	run := &Run{}
	query := `SELECT id, index_name, status, total, uploaded, duplicates, batches, error, started_at, finished_at FROM ingest_runs ORDER BY started_at DESC LIMIT 1`
	var finished sql.NullTime
	err := r.db.QueryRowContext(ctx, query).Scan(&run.ID, &run.IndexName, &run.Status, &run.Total,
		&run.Uploaded, &run.Duplicates, &run.Batches, &run.Error, &run.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	return run, nil
}
