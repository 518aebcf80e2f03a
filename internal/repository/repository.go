// Package repository is the durable job-store boundary: job records,
// results payloads and masking-log audit rows.
package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/filestodata/filestodata/constants"
	"github.com/filestodata/filestodata/internal/entity"
)

// JobFilter narrows List results. Nil fields match everything.
type JobFilter struct {
	Status *constants.JobStatus
	Mode   *constants.JobMode
	Limit  int
	Offset int
}

// DefaultListLimit caps List when the caller does not set one.
const DefaultListLimit = 50

// JobRepository is the durable record of jobs. Implementations provide
// atomic per-key reads and writes; concurrent status updates for the same
// id resolve last-write-wins.
type JobRepository interface {
	// Create inserts a new job row.
	Create(ctx context.Context, job *entity.Job) error
	// Get returns the job with its results attached, or a
	// common.ErrNotFound-wrapped error.
	Get(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	// List returns jobs matching f ordered by creation time descending.
	// Results payloads are not attached.
	List(ctx context.Context, f JobFilter) ([]*entity.Job, error)
	// UpdateStatus sets status and error message. Updating an id with no
	// row is not an error: the pipeline sets PROCESSING before it knows
	// whether the record survived.
	UpdateStatus(ctx context.Context, id uuid.UUID, status constants.JobStatus, errorMessage string) error
	// UpsertResults overwrites the job's results payload without touching
	// status.
	UpsertResults(ctx context.Context, id uuid.UUID, results json.RawMessage) error
}

// MaskingLogRepository persists the per-entity audit trail of a masking run.
type MaskingLogRepository interface {
	Create(ctx context.Context, log *entity.MaskingLog) error
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]*entity.MaskingLog, error)
}
