package pgcheckpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/specialistvlad/pipegrid/internal/checkpoint"
)

// DB is the subset of *sql.DB the store needs.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is a checkpoint.Store backed by the pipeline_checkpoints table.
// Appends are single UPDATE statements, so concurrent writers never lose
// hashes.
type Store struct {
	db DB
}

// New returns a store using db. Call Migrate first on a fresh database.
func New(db DB) *Store {
	return &Store{db: db}
}

func handleNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return checkpoint.ErrNotFound
	}
	return err
}

// FindLatest returns the newest record for pipelineName.
func (s *Store) FindLatest(ctx context.Context, pipelineName string) (*checkpoint.Record, error) {
	const q = `
SELECT id, pipeline_name, created_at, is_completed, array_to_json(completed_tasks)::text
FROM pipeline_checkpoints
WHERE pipeline_name = $1
ORDER BY created_at DESC, id DESC
LIMIT 1`

	var (
		rec   checkpoint.Record
		tasks string
	)
	err := s.db.QueryRowContext(ctx, q, pipelineName).
		Scan(&rec.ID, &rec.PipelineName, &rec.CreatedAt, &rec.IsCompleted, &tasks)
	if err != nil {
		return nil, fmt.Errorf("pgcheckpoint: find latest %s: %w", pipelineName, handleNotFound(err))
	}
	if err := json.Unmarshal([]byte(tasks), &rec.CompletedTasks); err != nil {
		return nil, fmt.Errorf("pgcheckpoint: decode completed tasks of %s: %w", rec.ID, err)
	}
	if rec.CompletedTasks == nil {
		rec.CompletedTasks = []string{}
	}
	return &rec, nil
}

// CreateIfAbsent inserts rec unless its id exists.
func (s *Store) CreateIfAbsent(ctx context.Context, rec *checkpoint.Record) (bool, error) {
	const q = `
INSERT INTO pipeline_checkpoints (id, pipeline_name, created_at, is_completed)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO NOTHING`

	res, err := s.db.ExecContext(ctx, q, rec.ID, rec.PipelineName, rec.CreatedAt, rec.IsCompleted)
	if err != nil {
		return false, fmt.Errorf("pgcheckpoint: create %s: %w", rec.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgcheckpoint: create %s: %w", rec.ID, err)
	}
	if n == 1 {
		for _, hash := range rec.CompletedTasks {
			if err := s.AppendCompletedTask(ctx, rec.ID, hash); err != nil {
				return true, err
			}
		}
	}
	return n == 1, nil
}

func (s *Store) exec(ctx context.Context, op, id, q string, args ...any) error {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("pgcheckpoint: %s %s: %w", op, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("pgcheckpoint: %s %s: %w", op, id, err)
	}
	if n == 0 {
		return fmt.Errorf("pgcheckpoint: %s %s: %w", op, id, checkpoint.ErrNotFound)
	}
	return nil
}

// MarkCompleted sets the completed flag of the record.
func (s *Store) MarkCompleted(ctx context.Context, id string) error {
	return s.exec(ctx, "mark completed", id,
		`UPDATE pipeline_checkpoints SET is_completed = TRUE WHERE id = $1`, id)
}

// AppendCompletedTask appends hash to the record's completed tasks.
func (s *Store) AppendCompletedTask(ctx context.Context, id, hash string) error {
	return s.exec(ctx, "append task to", id,
		`UPDATE pipeline_checkpoints SET completed_tasks = array_append(completed_tasks, $2) WHERE id = $1`, id, hash)
}

// IsTaskCompleted reports whether hash was recorded for the run.
func (s *Store) IsTaskCompleted(ctx context.Context, id, hash string) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx,
		`SELECT $2 = ANY(completed_tasks) FROM pipeline_checkpoints WHERE id = $1`, id, hash).Scan(&ok)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("pgcheckpoint: is task completed %s: %w", id, err)
	}
	return ok, nil
}
