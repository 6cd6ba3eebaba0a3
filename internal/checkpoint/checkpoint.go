// Package checkpoint defines the document store that records the progress of
// pipeline runs so an interrupted run can be resumed.
//
// A Record is keyed by run id. It is created lazily the first time a run id
// is bound, flipped to completed once at the end of a successful run, and
// collects the hashes of the tasks that finished. Records are never deleted.
package checkpoint

import (
	"context"
	"errors"
	"slices"
	"time"
)

// ErrNotFound is returned when no record matches a lookup.
var ErrNotFound = errors.New("checkpoint: record not found")

// Record is the checkpoint document of one run.
type Record struct {
	ID             string    `json:"id"`
	PipelineName   string    `json:"pipeline_name"`
	CreatedAt      time.Time `json:"created_at"`
	IsCompleted    bool      `json:"is_completed"`
	CompletedTasks []string  `json:"completed_tasks"`
}

// HasTask reports whether hash is among the completed tasks.
func (r *Record) HasTask(hash string) bool {
	return slices.Contains(r.CompletedTasks, hash)
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	c := *r
	c.CompletedTasks = slices.Clone(r.CompletedTasks)
	return &c
}

// Store is the narrow interface the engine needs from a checkpoint backend.
// Implementations must be safe for concurrent use: fan-out workers append
// task hashes in parallel.
type Store interface {
	// FindLatest returns the most recently created record for the pipeline
	// name, or ErrNotFound.
	FindLatest(ctx context.Context, pipelineName string) (*Record, error)
	// CreateIfAbsent stores rec unless a record with the same id exists.
	// It reports whether a record was created.
	CreateIfAbsent(ctx context.Context, rec *Record) (bool, error)
	// MarkCompleted sets the completed flag of the record. Returns
	// ErrNotFound for an unknown id.
	MarkCompleted(ctx context.Context, id string) error
	// AppendCompletedTask adds hash to the record's completed tasks. The list
	// is append-only and not de-duplicated. Returns ErrNotFound for an
	// unknown id.
	AppendCompletedTask(ctx context.Context, id, hash string) error
	// IsTaskCompleted reports whether hash was appended to the record. An
	// unknown id reports false.
	IsTaskCompleted(ctx context.Context, id, hash string) (bool, error)
}

// Latest returns the record that FindLatest should report among recs:
// greatest CreatedAt, ties broken by the greatest id. It returns nil for an
// empty slice.
func Latest(recs []*Record) *Record {
	var latest *Record
	for _, r := range recs {
		if latest == nil ||
			r.CreatedAt.After(latest.CreatedAt) ||
			(r.CreatedAt.Equal(latest.CreatedAt) && r.ID > latest.ID) {
			latest = r
		}
	}
	return latest
}
