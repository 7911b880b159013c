package main

import (
	"fmt"
	"log/slog"

	"github.com/officekit/mailroom/internal/domain/invoices"
	invoiceshandler "github.com/officekit/mailroom/internal/domain/invoices/handler"
	"github.com/officekit/mailroom/internal/domain/statements"
	statementshandler "github.com/officekit/mailroom/internal/domain/statements/handler"
	"github.com/officekit/mailroom/internal/domain/statements/reference"
	"github.com/officekit/mailroom/internal/pdf"
	"github.com/officekit/mailroom/pkg/config"
	"github.com/officekit/mailroom/pkg/cron"
	"github.com/officekit/mailroom/pkg/middleware"
	"github.com/officekit/mailroom/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	Logger *slog.Logger

	// PDF tooling
	Extractor *pdf.TextExtractor
	Splitter  *pdf.PageSplitter

	// Storage
	FileStorage *storage.LocalStorage

	// Services
	SessionStore      *statements.SessionStore
	ReferenceLoader   *reference.Loader
	Materializer      *statements.Materializer
	StatementsService *statements.Service
	InvoicesService   *invoices.Service

	// Background jobs
	Scheduler   *cron.Scheduler
	RateLimiter *middleware.RateLimiter

	// Handlers
	StatementsHandler *statementshandler.StatementsHandler
	InvoicesHandler   *invoiceshandler.InvoicesHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}
	deps.initServices()
	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

func (d *Dependencies) initStorage() error {
	fileStorage, err := storage.NewLocalStorage(d.Config.Storage.UploadPath)
	if err != nil {
		return err
	}
	d.FileStorage = fileStorage

	d.Logger.Info("file storage initialized",
		slog.String("upload_path", d.Config.Storage.UploadPath),
		slog.String("result_path", d.Config.Storage.ResultPath),
	)
	return nil
}

func (d *Dependencies) initServices() {
	d.Extractor = pdf.NewTextExtractor()
	d.Splitter = pdf.NewPageSplitter()

	d.SessionStore = statements.NewSessionStore(d.Config.Processing.SessionTTL)
	d.ReferenceLoader = reference.NewLoader(d.Logger)
	d.Materializer = statements.NewMaterializer(d.Splitter, d.Config.Storage.ResultPath, d.Logger)

	thresholds := statements.Thresholds{
		Auto: d.Config.Processing.FuzzyAutoThreshold,
		Ask:  d.Config.Processing.FuzzyAskThreshold,
	}
	d.StatementsService = statements.NewService(
		d.SessionStore,
		d.FileStorage,
		d.Extractor,
		d.ReferenceLoader,
		d.Splitter,
		d.Materializer,
		thresholds,
		d.Logger,
	)

	d.InvoicesService = invoices.NewService(d.Extractor, d.Splitter, d.Logger)

	// The sweeper works on the storage root rather than re-reading the
	// config so it always matches where files actually land.
	d.Scheduler = cron.NewScheduler(
		d.Config.Retention,
		[]string{d.FileStorage.BasePath(), d.Config.Storage.ResultPath},
		d.StatementsService,
		d.Logger,
	)

	d.RateLimiter = middleware.NewRateLimiter(
		d.Config.Server.RateLimitPerSecond,
		d.Config.Server.RateLimitBurst,
	)

	d.Logger.Info("services initialized")
}

func (d *Dependencies) initHandlers() {
	d.StatementsHandler = statementshandler.NewStatementsHandler(d.StatementsService, d.Logger)
	d.InvoicesHandler = invoiceshandler.NewInvoicesHandler(d.InvoicesService, d.Logger)

	d.Logger.Info("handlers initialized")
}

// Cleanup stops background jobs and releases resources
func (d *Dependencies) Cleanup() {
	if d.Scheduler != nil {
		<-d.Scheduler.Stop().Done()
	}
	if d.RateLimiter != nil {
		d.RateLimiter.Stop()
	}
	d.Logger.Info("cleanup completed")
}
