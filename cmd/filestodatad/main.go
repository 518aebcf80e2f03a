// filestodatad runs the whole service in one process: the job API plus the
// queue consumers. The queue is in-process, so the API and the workers must
// share a process for messages to reach their handlers.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/filestodata/filestodata/constants"
	"github.com/filestodata/filestodata/internal/ai/openai"
	"github.com/filestodata/filestodata/internal/common"
	"github.com/filestodata/filestodata/internal/extract"
	"github.com/filestodata/filestodata/internal/masking"
	"github.com/filestodata/filestodata/internal/pipeline"
	"github.com/filestodata/filestodata/internal/queue"
	"github.com/filestodata/filestodata/internal/repository"
	"github.com/filestodata/filestodata/internal/server"
	"github.com/filestodata/filestodata/internal/storage"
)

func main() {
	logger, closeLog := common.SetupLogger(os.Getenv("LOG_FILE"), parseLevel(os.Getenv("LOG_LEVEL")))
	defer func() {
		if err := closeLog(); err != nil {
			logger.Warn("log file close error", "error", err)
		}
	}()
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("config invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		jobs     repository.JobRepository
		maskLogs repository.MaskingLogRepository
	)
	switch cfg.Database.Driver {
	case "sqlite":
		db, err := repository.OpenSQLite(cfg.Database.DSN)
		if err != nil {
			logger.Error("open sqlite", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		jobs = repository.NewSQLiteJobRepository(db, logger)
		maskLogs = repository.NewSQLiteMaskingLogRepository(db, logger)
	default:
		pool, err := repository.OpenPool(ctx, cfg.Database, logger)
		if err != nil {
			logger.Error("open db pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := repository.HealthCheck(ctx, pool, logger); err != nil {
			logger.Error("db health failed", "error", err)
			os.Exit(1)
		}
		if err := repository.Migrate(pool, logger); err != nil {
			logger.Error("db migrate failed", "error", err)
			os.Exit(1)
		}
		jobs = repository.NewPostgresJobRepository(pool, logger)
		maskLogs = repository.NewPostgresMaskingLogRepository(pool, logger)
	}

	store, err := storage.NewFSStore(cfg.Storage.RootDir, logger)
	if err != nil {
		logger.Error("open storage", "error", err)
		os.Exit(1)
	}

	q := queue.NewMemoryQueue(logger,
		queue.WithWorkers(cfg.Queue.Workers),
		queue.WithBufferSize(cfg.Queue.BufferSize),
		queue.WithProcessTimeout(cfg.Queue.ProcessTimeout),
	)

	ocr := extract.NewOCRClient(cfg.OCR.Endpoint, cfg.OCR.APIKey, cfg.OCR.Timeout, logger)
	extractor := extract.NewExtractor(extract.Config{
		Pdftotext: cfg.Extract.Pdftotext,
		MaxPages:  cfg.Extract.MaxPages,
	}, ocr, logger)

	masker := masking.NewEngine(logger)

	aiClient := openai.NewClient(openai.Config{
		APIKey:      cfg.AI.APIKey,
		BaseURL:     cfg.AI.BaseURL,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		Timeout:     cfg.AI.Timeout,
	}, logger)

	processor := pipeline.NewProcessor(jobs, maskLogs, store, extractor, masker, aiClient, logger)
	q.Subscribe(constants.QueueDocumentJobs, processor.HandleDocumentMessage)
	q.Subscribe(constants.QueueDesignJobs, processor.HandleDesignMessage)

	handler := server.NewHandler(jobs, store, q, logger)
	srv := server.New(cfg.Server.HTTPAddr, cfg.Server.ShutdownTimeout, handler, logger)

	logger.Info("filestodatad starting",
		"version", common.Version,
		"addr", cfg.Server.HTTPAddr,
		"db_driver", cfg.Database.Driver,
		"queue_workers", cfg.Queue.Workers,
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("http server error", "error", err)
	}

	// HTTP is down; let in-flight jobs finish before the process exits.
	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Queue.ProcessTimeout)
	defer cancel()
	q.Shutdown(drainCtx)

	logger.Info("filestodatad stopped")
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug", "DEBUG":
		return slog.LevelDebug
	case "warn", "WARN":
		return slog.LevelWarn
	case "error", "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
