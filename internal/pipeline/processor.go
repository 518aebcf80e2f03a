// Package pipeline runs the async document and design processing flows:
// queue message in, terminal job status out.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/filestodata/filestodata/constants"
	"github.com/filestodata/filestodata/internal/ai"
	"github.com/filestodata/filestodata/internal/entity"
	"github.com/filestodata/filestodata/internal/extract"
	"github.com/filestodata/filestodata/internal/masking"
	"github.com/filestodata/filestodata/internal/metrics"
	"github.com/filestodata/filestodata/internal/repository"
	"github.com/filestodata/filestodata/internal/storage"
)

// Processor consumes job messages and drives each job to a terminal status.
// All processing failures end in FAILED with an error message; the only
// errors returned to the queue are malformed payloads, which cannot be tied
// to a job at all.
type Processor struct {
	jobs     repository.JobRepository
	maskLogs repository.MaskingLogRepository
	store    storage.ObjectStore
	extract  extract.TextExtractor
	masker   *masking.Engine
	ai       ai.DocumentExtractor
	logger   *slog.Logger
}

func NewProcessor(
	jobs repository.JobRepository,
	maskLogs repository.MaskingLogRepository,
	store storage.ObjectStore,
	extractor extract.TextExtractor,
	masker *masking.Engine,
	extractorAI ai.DocumentExtractor,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		jobs:     jobs,
		maskLogs: maskLogs,
		store:    store,
		extract:  extractor,
		masker:   masker,
		ai:       extractorAI,
		logger:   logger,
	}
}

// HandleDocumentMessage is the queue handler for the document-jobs queue.
func (p *Processor) HandleDocumentMessage(ctx context.Context, payload []byte) error {
	return p.handle(ctx, payload, constants.JobModeDocument)
}

// HandleDesignMessage is the queue handler for the design-jobs queue.
func (p *Processor) HandleDesignMessage(ctx context.Context, payload []byte) error {
	return p.handle(ctx, payload, constants.JobModeDesign)
}

func (p *Processor) handle(ctx context.Context, payload []byte, mode constants.JobMode) error {
	var msg entity.QueueMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		p.logger.Error("pipeline.message.malformed", "mode", mode, "error", err)
		return fmt.Errorf("decode queue message: %w", err)
	}
	if msg.JobID == uuid.Nil {
		p.logger.Error("pipeline.message.missing_job_id", "mode", mode)
		return fmt.Errorf("queue message has no job_id")
	}

	start := time.Now()
	p.logger.Info("pipeline.job.start", "job_id", msg.JobID, "mode", mode)

	// PROCESSING is set before the existence check: the update is a no-op
	// for ids with no row, and the ordering keeps status honest when the
	// record does exist.
	if err := p.jobs.UpdateStatus(ctx, msg.JobID, constants.JobStatusProcessing, ""); err != nil {
		p.logger.Error("pipeline.job.mark_processing_failed", "job_id", msg.JobID, "error", err)
	}

	job, err := p.jobs.Get(ctx, msg.JobID)
	if err != nil {
		// A message pointing at a missing record is dropped, not retried:
		// there is no job to fail.
		p.logger.Warn("pipeline.job.not_found", "job_id", msg.JobID, "error", err)
		return nil
	}

	if mode == constants.JobModeDocument {
		err = p.runDocument(ctx, job)
	} else {
		err = p.runDesign(ctx, job)
	}
	elapsed := time.Since(start)

	if err != nil {
		p.logger.Error("pipeline.job.failed",
			"job_id", job.ID, "mode", mode, "error", err,
			"elapsed_ms", elapsed.Milliseconds(),
		)
		metrics.JobFailed(string(mode))
		if uErr := p.jobs.UpdateStatus(ctx, job.ID, constants.JobStatusFailed, err.Error()); uErr != nil {
			p.logger.Error("pipeline.job.mark_failed_failed", "job_id", job.ID, "error", uErr)
		}
		return nil
	}

	metrics.JobCompleted(string(mode))
	metrics.ObservePipeline(string(mode), elapsed)
	if uErr := p.jobs.UpdateStatus(ctx, job.ID, constants.JobStatusCompleted, ""); uErr != nil {
		p.logger.Error("pipeline.job.mark_completed_failed", "job_id", job.ID, "error", uErr)
	}
	p.logger.Info("pipeline.job.ok",
		"job_id", job.ID, "mode", mode,
		"elapsed_ms", elapsed.Milliseconds(),
	)
	return nil
}

// runDocument: download, extract text, mask, send masked text to the AI,
// unmask the structured result, persist it.
func (p *Processor) runDocument(ctx context.Context, job *entity.Job) error {
	content, err := p.store.Download(ctx, job.FilePath)
	if err != nil {
		return fmt.Errorf("download file: %w", err)
	}

	text, err := p.extract.Extract(ctx, content, job.FileName)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}

	maskedText, maskingMap := p.masker.Mask(text)
	p.persistMaskingLogs(ctx, job.ID, maskingMap)

	results, err := p.ai.ExtractDocumentData(ctx, maskedText)
	if err != nil {
		return fmt.Errorf("ai extraction: %w", err)
	}

	unmasked, err := p.masker.Unmask(results, maskingMap)
	if err != nil {
		return fmt.Errorf("unmask results: %w", err)
	}

	if err := p.jobs.UpsertResults(ctx, job.ID, unmasked); err != nil {
		return fmt.Errorf("persist results: %w", err)
	}
	return nil
}

// runDesign: download and send the raw image to the AI. Design analysis is
// visual; no text extraction or masking applies.
func (p *Processor) runDesign(ctx context.Context, job *entity.Job) error {
	content, err := p.store.Download(ctx, job.FilePath)
	if err != nil {
		return fmt.Errorf("download file: %w", err)
	}

	results, err := p.ai.AnalyzeDesignImage(ctx, content, job.FileName)
	if err != nil {
		return fmt.Errorf("ai analysis: %w", err)
	}

	if err := p.jobs.UpsertResults(ctx, job.ID, results); err != nil {
		return fmt.Errorf("persist results: %w", err)
	}
	return nil
}

// persistMaskingLogs writes the audit rows for one masking run. Log failures
// are reported but never fail the job.
func (p *Processor) persistMaskingLogs(ctx context.Context, jobID uuid.UUID, maskingMap map[string]masking.Info) {
	byType := make(map[string]int)
	for token, info := range maskingMap {
		byType[string(info.Type)]++
		row := &entity.MaskingLog{
			ID:            uuid.New(),
			JobID:         jobID,
			Token:         token,
			OriginalValue: info.Original,
			Type:          string(info.Type),
			CreatedAt:     time.Now().UTC(),
		}
		if err := p.maskLogs.Create(ctx, row); err != nil {
			p.logger.Error("pipeline.masking_log.create_failed",
				"job_id", jobID, "token", token, "error", err)
		}
	}
	for t, n := range byType {
		metrics.MaskedEntity(t, n)
	}
}
