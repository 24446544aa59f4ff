// -----------------------------------------------------------------------
// App - dependency wiring for the audit server
// -----------------------------------------------------------------------

package app

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/percipio/internal/common"
	"github.com/ternarybob/percipio/internal/handlers"
	"github.com/ternarybob/percipio/internal/interfaces"
	"github.com/ternarybob/percipio/internal/services/analysis"
	"github.com/ternarybob/percipio/internal/services/audit"
	"github.com/ternarybob/percipio/internal/services/checker"
	"github.com/ternarybob/percipio/internal/services/crawler"
	"github.com/ternarybob/percipio/internal/services/llm"
	"github.com/ternarybob/percipio/internal/services/snapshot"
	"github.com/ternarybob/percipio/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Pipeline services
	LLMService     interfaces.LLMService
	CrawlerService crawler.Service
	AuditService   *audit.Service

	// HTTP handlers
	APIHandler    *handlers.APIHandler
	AuditHandler  *handlers.AuditHandler
	StatusHandler *handlers.StatusHandler

	fetcher crawler.Fetcher
}

// New initializes the application with all dependencies
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: config,
		Logger: logger,
	}

	storageManager, err := badger.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.StorageManager = storageManager

	llmService, err := llm.NewLLMService(config, logger)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize LLM service: %w", err)
	}
	app.LLMService = llmService

	// JavaScript rendering swaps the plain HTTP fetcher for headless Chrome
	if config.Crawler.EnableJavaScript {
		fetcher, err := crawler.NewChromedpFetcher(config.Crawler, logger)
		if err != nil {
			llmService.Close()
			storageManager.Close()
			return nil, fmt.Errorf("failed to initialize chromedp fetcher: %w", err)
		}
		app.fetcher = fetcher
	} else {
		app.fetcher = crawler.NewHTTPFetcher(config.Crawler, logger)
	}
	app.CrawlerService = crawler.NewService(app.fetcher, config.Crawler, logger)

	orchestrator := analysis.NewOrchestrator(
		app.CrawlerService,
		snapshot.NewExtractor(logger),
		checker.NewChecker(logger),
		analysis.NewDispatcher(llmService, storageManager.ResultStorage(), &config.Dispatcher, logger),
		analysis.NewReducer(logger),
		storageManager,
		config,
		logger,
	)

	app.AuditService = audit.NewService(storageManager, orchestrator, config, logger)
	if err := app.AuditService.Start(); err != nil {
		llmService.Close()
		storageManager.Close()
		return nil, fmt.Errorf("failed to start audit service: %w", err)
	}

	app.APIHandler = handlers.NewAPIHandler(logger)
	app.AuditHandler = handlers.NewAuditHandler(app.AuditService, logger)
	app.StatusHandler = handlers.NewStatusHandler(app.AuditService, storageManager, logger)

	logger.Info().Msg("Application initialized")
	return app, nil
}

// Close shuts the application down in reverse dependency order.
func (a *App) Close() {
	if a.AuditService != nil {
		a.AuditService.Stop()
	}
	if closer, ok := a.fetcher.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Fetcher close failed")
		}
	}
	if a.LLMService != nil {
		if err := a.LLMService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("LLM service close failed")
		}
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Storage close failed")
		}
	}
	a.Logger.Info().Msg("Application closed")
}
