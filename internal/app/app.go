package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"WebResearcher/internal/config"
	"WebResearcher/internal/infrastructure/browser"
	"WebResearcher/internal/infrastructure/fetch"
	"WebResearcher/internal/infrastructure/llm"
	"WebResearcher/internal/infrastructure/search"
	"WebResearcher/internal/infrastructure/storage"
	"WebResearcher/internal/logging"
	"WebResearcher/internal/ports"
	"WebResearcher/internal/processor"
	"WebResearcher/internal/synth"
	"WebResearcher/internal/usecase"
)

// Application wires configs to use cases and owns adapter lifecycles.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	engine   *usecase.Engine
	router   *search.Router
	capturer *browser.Capturer

	mu      sync.Mutex
	repo    *storage.SQLiteRepository
	history *usecase.History
}

// New builds the research engine and its adapters from cfg.
func New(cfg config.Config, baseLogger *slog.Logger) *Application {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	registry := search.NewRegistry()
	search.RegisterDefaults(registry, cfg.Search, search.Options{
		Client:     &http.Client{Timeout: cfg.Search.Timeout},
		RetryDelay: cfg.Search.RetryDelay,
		UserAgent:  cfg.Fetch.UserAgent,
	})
	router := search.NewRouter(registry, cfg.Search.Provider, cfg.Search.Fallbacks,
		search.KeysFromConfig(cfg.Search), baseLogger.With("component", "search"))

	fetcher := fetch.NewFetcher(cfg.Fetch, nil, baseLogger.With("component", "fetch"))

	var model ports.LanguageModel
	var summarizer ports.Summarizer
	if cfg.Synthesis.APIKey != "" {
		model = llm.NewClient(cfg.Synthesis, cfg.Synthesis.Model, baseLogger.With("component", "llm"))
		if cfg.Processing.SummariesEnabled() {
			summaryModel := llm.NewClient(cfg.Synthesis, cfg.Synthesis.SummaryModel, baseLogger.With("component", "llm.summary"))
			summarizer = llm.NewSummarizer(summaryModel, 0)
		}
	} else {
		baseLogger.Warn("no language model API key configured, answers cannot be generated")
	}

	a := &Application{cfg: cfg, logger: baseLogger, router: router}

	var capturer ports.ScreenshotCapturer
	if cfg.Processing.Screenshots {
		a.capturer = browser.NewCapturer(cfg.Browser, baseLogger.With("component", "browser"))
		capturer = a.capturer
	}

	proc := processor.New(fetcher, summarizer, capturer, processor.Options{
		Concurrency:    cfg.Processing.Concurrency,
		PerHostCap:     cfg.Processing.PerHostCap,
		FetchTimeout:   cfg.Fetch.Timeout,
		SummaryTimeout: cfg.Synthesis.FollowUpTimeout,
		CaptureTimeout: cfg.Browser.Timeout,
	}, baseLogger.With("component", "processor"))

	synthesizer := synth.New(model, synth.Options{
		SystemPrompt:    cfg.Synthesis.SystemPrompt,
		FollowUpCount:   cfg.Synthesis.FollowUpCount,
		MaxSourceChars:  cfg.Synthesis.MaxSourceChars,
		FollowUpTimeout: cfg.Synthesis.FollowUpTimeout,
	}, baseLogger.With("component", "synth"))

	a.engine = usecase.NewEngine(usecase.Deps{
		Providers:   router,
		Processor:   proc,
		Synthesizer: synthesizer,
		Logger:      baseLogger,
	}, usecase.SettingsFromConfig(cfg))

	return a
}

// Engine returns the research orchestrator.
func (a *Application) Engine() *usecase.Engine { return a.engine }

// Providers returns the configured provider order.
func (a *Application) Providers() []string { return a.router.Order() }

// History opens the conversation store on first use.
func (a *Application) History(ctx context.Context) (*usecase.History, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.history != nil {
		return a.history, nil
	}

	path := a.cfg.Database.Path
	if path == "" {
		var err error
		if path, err = DefaultDatabasePath(); err != nil {
			return nil, err
		}
	}
	repo, err := storage.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open conversation store: %w", err)
	}
	a.repo = repo
	a.history = usecase.NewHistory(repo, a.logger.With("component", "history"))
	a.logger.Debug("conversation store opened", "path", path)
	return a.history, nil
}

// Close releases the browser and the database.
func (a *Application) Close() error {
	var errs []error
	if a.capturer != nil {
		errs = append(errs, a.capturer.Close())
	}
	a.mu.Lock()
	if a.repo != nil {
		errs = append(errs, a.repo.Close())
		a.repo = nil
		a.history = nil
	}
	a.mu.Unlock()
	return errors.Join(errs...)
}

// DefaultDatabasePath places the store under the user config directory.
func DefaultDatabasePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "webresearcher", "history.db"), nil
}
