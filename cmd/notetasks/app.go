package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/notetasks/constants"
	"github.com/joseph-ayodele/notetasks/internal/common"
	"github.com/joseph-ayodele/notetasks/internal/core"
	"github.com/joseph-ayodele/notetasks/internal/core/async"
	"github.com/joseph-ayodele/notetasks/internal/engine"
	"github.com/joseph-ayodele/notetasks/internal/ingest"
	"github.com/joseph-ayodele/notetasks/internal/normalize"
	"github.com/joseph-ayodele/notetasks/internal/ocr"
	repo "github.com/joseph-ayodele/notetasks/internal/repository"
	"github.com/joseph-ayodele/notetasks/internal/server"
	"github.com/joseph-ayodele/notetasks/internal/storage"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg    *common.Config
	logger *slog.Logger

	db        *repo.DB
	jobs      repo.JobRepository
	store     storage.Store
	engine    *engine.Engine
	processor *core.Processor
	queue     async.Queue
	ingest    *ingest.Usecase
}

// newApp connects the database and storage. Workers are started by startWorkers.
func newApp(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*app, error) {
	db, err := server.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	store, err := openStore(ctx, cfg.Storage, logger)
	if err != nil {
		db.Close(logger)
		return nil, err
	}
	return &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		jobs:   repo.NewJobRepository(db, logger),
		store:  store,
	}, nil
}

// startWorkers builds the engine, the lifecycle processor and the queue feeding it.
func (a *app) startWorkers(ctx context.Context) error {
	preferred, err := constants.ParseBackendKind(a.cfg.OCR.Backend)
	if err != nil {
		return common.NewInvalidInputError(err.Error())
	}
	a.engine = newEngine(a.cfg.OCR, preferred, a.logger)

	a.processor = core.NewProcessor(a.logger, a.jobs, a.store, a.engine, nil,
		core.WithMaxAttempts(a.cfg.Jobs.MaxAttempts),
		core.WithRetryDelay(a.cfg.Jobs.RetryDelay),
		core.WithReviewThreshold(a.cfg.OCR.ConfidenceThreshold),
	)

	switch a.cfg.Jobs.QueueDriver {
	case "river":
		if a.db.Pool == nil {
			return fmt.Errorf("river queue requires a postgres database")
		}
		if err := async.MigrateRiver(ctx, a.db.Pool); err != nil {
			return fmt.Errorf("migrate river: %w", err)
		}
		q, err := async.NewRiverQueue(ctx, a.db.Pool, a.processor, async.RiverConfig{
			Workers:        a.cfg.Jobs.QueueWorkers,
			ProcessTimeout: a.cfg.Jobs.TimeLimit,
		}, a.logger)
		if err != nil {
			return err
		}
		a.queue = q
	default:
		a.queue = async.NewProcessorQueue(a.processor, a.logger,
			async.WithWorkers(a.cfg.Jobs.QueueWorkers),
			async.WithQueueSize(a.cfg.Jobs.QueueSize),
			async.WithProcessTimeout(a.cfg.Jobs.TimeLimit),
		)
	}
	a.processor.SetScheduler(a.queue)
	a.ingest = ingest.NewUsecase(a.jobs, a.store, a.queue, a.cfg.Storage.MaxUploadBytes, a.logger)
	return nil
}

func (a *app) close(ctx context.Context) {
	if a.queue != nil {
		a.queue.Shutdown(ctx)
	}
	a.db.Close(a.logger)
}

func openStore(ctx context.Context, cfg common.StorageConfig, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Driver {
	case "minio":
		s, err := storage.NewMinioStore(logger,
			storage.WithEndpoint(cfg.MinioEndpoint),
			storage.WithBucket(cfg.MinioBucket),
			storage.WithAccessKey(cfg.MinioAccessKey),
			storage.WithSecretKey(cfg.MinioSecretKey),
			storage.WithPrefix(cfg.MinioPrefix),
			storage.WithSSL(cfg.MinioUseSSL),
		)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return storage.NewFSStore(cfg.Dir, logger)
	}
}

// newEngine wires the preference chain structured > region > wordcluster with mock fallback.
func newEngine(cfg common.OCRConfig, preferred constants.BackendKind, logger *slog.Logger) *engine.Engine {
	runner := ocr.NewExecRunner(logger)
	candidates := []engine.Candidate{
		{Kind: constants.BackendStructured, New: func(ctx context.Context) (ocr.Backend, error) {
			b, err := ocr.OpenStructured(ctx, ocr.StructuredConfig{
				Provider:     cfg.StructuredProvider,
				Model:        cfg.StructuredModel,
				BaseURL:      cfg.StructuredBaseURL,
				APIKey:       cfg.StructuredAPIKey,
				GeminiAPIKey: cfg.GeminiAPIKey,
				GeminiModel:  cfg.GeminiModel,
				MaxTokens:    cfg.StructuredMaxTokens,
				MaxImageSide: cfg.StructuredMaxImageSide,
				Timeout:      cfg.StructuredTimeout,
			}, logger)
			if err != nil {
				return nil, err
			}
			return b, nil
		}},
		{Kind: constants.BackendRegion, New: func(context.Context) (ocr.Backend, error) {
			b, err := ocr.NewRegionBackend(cfg.RegionCommand, runner, logger)
			if err != nil {
				return nil, err
			}
			return b, nil
		}},
		{Kind: constants.BackendWordCluster, New: func(ctx context.Context) (ocr.Backend, error) {
			b, err := ocr.NewTesseractBackend(ctx, ocr.TesseractConfig{
				Binary:      cfg.TesseractBin,
				Lang:        cfg.TesseractLang,
				TessdataDir: cfg.TessdataPrefix,
				PSM:         cfg.TesseractPSM,
			}, runner, logger)
			if err != nil {
				return nil, err
			}
			return b, nil
		}},
	}
	sel := engine.NewSelector(logger, candidates,
		engine.WithNormalizeOptions(normalize.WithLineThreshold(cfg.LineClusterThreshold)),
	)
	return engine.New(sel, preferred, logger)
}
