package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/filestodata/filestodata/constants"
	"github.com/filestodata/filestodata/internal/common"
	"github.com/filestodata/filestodata/internal/entity"
)

// PostgresJobRepository implements JobRepository on a pgx pool.
type PostgresJobRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresJobRepository(pool *pgxpool.Pool, logger *slog.Logger) *PostgresJobRepository {
	return &PostgresJobRepository{pool: pool, logger: logger}
}

func (r *PostgresJobRepository) Create(ctx context.Context, job *entity.Job) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO jobs (id, mode, file_path, file_name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID, string(job.Mode), job.FilePath, job.FileName, string(job.Status),
		job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("job create failed", "job_id", job.ID, "error", err)
		return common.WrapError(err, "insert job")
	}
	r.logger.Info("job created", "job_id", job.ID, "mode", job.Mode)
	return nil
}

func (r *PostgresJobRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, mode, file_path, file_name, status, error_message, results, created_at, updated_at
		FROM jobs WHERE id = $1`, id)

	var (
		job     entity.Job
		mode    string
		status  string
		errMsg  *string
		results []byte
	)
	err := row.Scan(&job.ID, &mode, &job.FilePath, &job.FileName, &status,
		&errMsg, &results, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewAppError("JOB_GET", fmt.Sprintf("job %s", id), common.ErrNotFound)
	}
	if err != nil {
		return nil, common.WrapError(err, "select job")
	}

	job.Mode = constants.JobMode(mode)
	job.Status = constants.JobStatus(status)
	if errMsg != nil {
		job.ErrorMessage = *errMsg
	}
	if len(results) > 0 {
		job.Results = json.RawMessage(results)
	}
	return &job, nil
}

func (r *PostgresJobRepository) List(ctx context.Context, f JobFilter) ([]*entity.Job, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var (
		where []string
		args  []any
	)
	if f.Status != nil {
		args = append(args, string(*f.Status))
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}
	if f.Mode != nil {
		args = append(args, string(*f.Mode))
		where = append(where, "mode = $"+strconv.Itoa(len(args)))
	}

	q := `SELECT id, mode, file_path, file_name, status, error_message, created_at, updated_at FROM jobs`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit)
	q += " ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args))
	args = append(args, offset)
	q += " OFFSET $" + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, common.WrapError(err, "list jobs")
	}
	defer rows.Close()

	jobs := make([]*entity.Job, 0, limit)
	for rows.Next() {
		var (
			job    entity.Job
			mode   string
			status string
			errMsg *string
		)
		if err := rows.Scan(&job.ID, &mode, &job.FilePath, &job.FileName, &status,
			&errMsg, &job.CreatedAt, &job.UpdatedAt); err != nil {
			return nil, common.WrapError(err, "scan job")
		}
		job.Mode = constants.JobMode(mode)
		job.Status = constants.JobStatus(status)
		if errMsg != nil {
			job.ErrorMessage = *errMsg
		}
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}

func (r *PostgresJobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status constants.JobStatus, errorMessage string) error {
	var errMsg *string
	if errorMessage != "" {
		errMsg = &errorMessage
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE jobs SET status = $2, error_message = $3, updated_at = $4 WHERE id = $1`,
		id, string(status), errMsg, time.Now().UTC(),
	)
	if err != nil {
		r.logger.Error("job status update failed", "job_id", id, "status", status, "error", err)
		return common.WrapError(err, "update job status")
	}
	if tag.RowsAffected() == 0 {
		r.logger.Debug("job status update matched no rows", "job_id", id, "status", status)
	}
	return nil
}

func (r *PostgresJobRepository) UpsertResults(ctx context.Context, id uuid.UUID, results json.RawMessage) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE jobs SET results = $2, updated_at = $3 WHERE id = $1`,
		id, []byte(results), time.Now().UTC(),
	)
	if err != nil {
		r.logger.Error("job results upsert failed", "job_id", id, "error", err)
		return common.WrapError(err, "upsert job results")
	}
	if tag.RowsAffected() == 0 {
		return common.NewAppError("JOB_RESULTS", fmt.Sprintf("job %s", id), common.ErrNotFound)
	}
	return nil
}

// PostgresMaskingLogRepository implements MaskingLogRepository on a pgx pool.
type PostgresMaskingLogRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresMaskingLogRepository(pool *pgxpool.Pool, logger *slog.Logger) *PostgresMaskingLogRepository {
	return &PostgresMaskingLogRepository{pool: pool, logger: logger}
}

func (r *PostgresMaskingLogRepository) Create(ctx context.Context, log *entity.MaskingLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO masking_logs (id, job_id, token, original_value, type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		log.ID, log.JobID, log.Token, log.OriginalValue, log.Type, log.CreatedAt,
	)
	if err != nil {
		r.logger.Error("masking log create failed", "job_id", log.JobID, "token", log.Token, "error", err)
		return common.WrapError(err, "insert masking log")
	}
	return nil
}

func (r *PostgresMaskingLogRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*entity.MaskingLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, job_id, token, original_value, type, created_at
		FROM masking_logs WHERE job_id = $1 ORDER BY created_at`, jobID)
	if err != nil {
		return nil, common.WrapError(err, "list masking logs")
	}
	defer rows.Close()

	var logs []*entity.MaskingLog
	for rows.Next() {
		var l entity.MaskingLog
		if err := rows.Scan(&l.ID, &l.JobID, &l.Token, &l.OriginalValue, &l.Type, &l.CreatedAt); err != nil {
			return nil, common.WrapError(err, "scan masking log")
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}
