package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/filestodata/filestodata/constants"
	"github.com/filestodata/filestodata/internal/common"
	"github.com/filestodata/filestodata/internal/entity"
)

// OpenSQLite opens (and bootstraps) the embedded store. Used for local
// single-node runs and tests; the Postgres implementations are the
// production path.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := initSQLiteSchema(db); err != nil {
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return db, nil
}

func initSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		file_path TEXT NOT NULL,
		file_name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		error_message TEXT,
		results TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
	CREATE INDEX IF NOT EXISTS idx_jobs_mode ON jobs(mode);
	CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);

	CREATE TABLE IF NOT EXISTS masking_logs (
		id TEXT PRIMARY KEY,
		job_id TEXT NOT NULL,
		token TEXT NOT NULL,
		original_value TEXT NOT NULL,
		type TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_masking_logs_job_id ON masking_logs(job_id);
	`
	_, err := db.Exec(schema)
	return err
}

// Fixed-width layout: RFC3339Nano trims trailing fractional zeros, which
// breaks the lexicographic ORDER BY created_at for sub-second-adjacent rows.
const sqliteTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteJobRepository implements JobRepository on the embedded store.
type SQLiteJobRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteJobRepository(db *sql.DB, logger *slog.Logger) *SQLiteJobRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteJobRepository{db: db, logger: logger}
}

func (r *SQLiteJobRepository) Create(ctx context.Context, job *entity.Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, mode, file_path, file_name, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.ID.String(), string(job.Mode), job.FilePath, job.FileName, string(job.Status),
		job.CreatedAt.UTC().Format(sqliteTimeFormat), job.UpdatedAt.UTC().Format(sqliteTimeFormat),
	)
	if err != nil {
		r.logger.Error("job create failed", "job_id", job.ID, "error", err)
		return common.WrapError(err, "insert job")
	}
	r.logger.Info("job created", "job_id", job.ID, "mode", job.Mode)
	return nil
}

func (r *SQLiteJobRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, mode, file_path, file_name, status, error_message, results, created_at, updated_at
		FROM jobs WHERE id = ?`, id.String())

	job, err := scanSQLiteJob(row.Scan, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError("JOB_GET", fmt.Sprintf("job %s", id), common.ErrNotFound)
	}
	if err != nil {
		return nil, common.WrapError(err, "select job")
	}
	return job, nil
}

func (r *SQLiteJobRepository) List(ctx context.Context, f JobFilter) ([]*entity.Job, error) {
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
		where = append(where, "status = ?")
		args = append(args, string(*f.Status))
	}
	if f.Mode != nil {
		where = append(where, "mode = ?")
		args = append(args, string(*f.Mode))
	}

	q := `SELECT id, mode, file_path, file_name, status, error_message, created_at, updated_at FROM jobs`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, common.WrapError(err, "list jobs")
	}
	defer rows.Close()

	jobs := make([]*entity.Job, 0, limit)
	for rows.Next() {
		job, err := scanSQLiteJob(rows.Scan, false)
		if err != nil {
			return nil, common.WrapError(err, "scan job")
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *SQLiteJobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status constants.JobStatus, errorMessage string) error {
	var errMsg any
	if errorMessage != "" {
		errMsg = errorMessage
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		string(status), errMsg, time.Now().UTC().Format(sqliteTimeFormat), id.String(),
	)
	if err != nil {
		r.logger.Error("job status update failed", "job_id", id, "status", status, "error", err)
		return common.WrapError(err, "update job status")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		r.logger.Debug("job status update matched no rows", "job_id", id, "status", status)
	}
	return nil
}

func (r *SQLiteJobRepository) UpsertResults(ctx context.Context, id uuid.UUID, results json.RawMessage) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET results = ?, updated_at = ? WHERE id = ?`,
		string(results), time.Now().UTC().Format(sqliteTimeFormat), id.String(),
	)
	if err != nil {
		r.logger.Error("job results upsert failed", "job_id", id, "error", err)
		return common.WrapError(err, "upsert job results")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.NewAppError("JOB_RESULTS", fmt.Sprintf("job %s", id), common.ErrNotFound)
	}
	return nil
}

// scanSQLiteJob decodes one jobs row; withResults matches the wider SELECT
// used by Get.
func scanSQLiteJob(scan func(...any) error, withResults bool) (*entity.Job, error) {
	var (
		job        entity.Job
		idStr      string
		mode       string
		status     string
		errMsg     sql.NullString
		results    sql.NullString
		createdStr string
		updatedStr string
	)

	var err error
	if withResults {
		err = scan(&idStr, &mode, &job.FilePath, &job.FileName, &status,
			&errMsg, &results, &createdStr, &updatedStr)
	} else {
		err = scan(&idStr, &mode, &job.FilePath, &job.FileName, &status,
			&errMsg, &createdStr, &updatedStr)
	}
	if err != nil {
		return nil, err
	}

	job.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse job id: %w", err)
	}
	job.Mode = constants.JobMode(mode)
	job.Status = constants.JobStatus(status)
	if errMsg.Valid {
		job.ErrorMessage = errMsg.String
	}
	if results.Valid && results.String != "" {
		job.Results = json.RawMessage(results.String)
	}
	if job.CreatedAt, err = time.Parse(sqliteTimeFormat, createdStr); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if job.UpdatedAt, err = time.Parse(sqliteTimeFormat, updatedStr); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &job, nil
}

// SQLiteMaskingLogRepository implements MaskingLogRepository on the
// embedded store.
type SQLiteMaskingLogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteMaskingLogRepository(db *sql.DB, logger *slog.Logger) *SQLiteMaskingLogRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteMaskingLogRepository{db: db, logger: logger}
}

func (r *SQLiteMaskingLogRepository) Create(ctx context.Context, log *entity.MaskingLog) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO masking_logs (id, job_id, token, original_value, type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		log.ID.String(), log.JobID.String(), log.Token, log.OriginalValue, log.Type,
		log.CreatedAt.UTC().Format(sqliteTimeFormat),
	)
	if err != nil {
		r.logger.Error("masking log create failed", "job_id", log.JobID, "token", log.Token, "error", err)
		return common.WrapError(err, "insert masking log")
	}
	return nil
}

func (r *SQLiteMaskingLogRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*entity.MaskingLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, job_id, token, original_value, type, created_at
		FROM masking_logs WHERE job_id = ? ORDER BY created_at`, jobID.String())
	if err != nil {
		return nil, common.WrapError(err, "list masking logs")
	}
	defer rows.Close()

	var logs []*entity.MaskingLog
	for rows.Next() {
		var (
			l          entity.MaskingLog
			idStr      string
			jobIDStr   string
			createdStr string
		)
		if err := rows.Scan(&idStr, &jobIDStr, &l.Token, &l.OriginalValue, &l.Type, &createdStr); err != nil {
			return nil, common.WrapError(err, "scan masking log")
		}
		if l.ID, err = uuid.Parse(idStr); err != nil {
			return nil, fmt.Errorf("parse masking log id: %w", err)
		}
		if l.JobID, err = uuid.Parse(jobIDStr); err != nil {
			return nil, fmt.Errorf("parse masking log job id: %w", err)
		}
		if l.CreatedAt, err = time.Parse(sqliteTimeFormat, createdStr); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}
