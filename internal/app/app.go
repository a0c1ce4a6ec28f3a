package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/notesummarizer/internal/config"
	"github.com/notesummarizer/internal/crypto"
	"github.com/notesummarizer/internal/handler"
	"github.com/notesummarizer/internal/mailer"
	"github.com/notesummarizer/internal/metrics"
	"github.com/notesummarizer/internal/prompts"
	"github.com/notesummarizer/internal/store"
	"github.com/notesummarizer/internal/summarize"
	"github.com/notesummarizer/internal/workspace"
)

const maxSweepInterval = time.Minute

// sender is a workspace.Sender whose backend can be health checked.
type sender interface {
	workspace.Sender
	Ping(ctx context.Context) error
}

type App struct {
	config      *config.Config
	logger      *slog.Logger
	store       *store.WorkspaceStore
	sealer      *crypto.Sealer
	prompts     *prompts.Set
	metrics     *metrics.Metrics
	cache       *summarize.Cache
	sender      sender
	maintenance atomic.Bool
}

func (app *App) Close() {
	app.store.Close()
	if app.cache != nil {
		if err := app.cache.Close(); err != nil {
			app.logger.Warn("summary cache: close failed", "err", err)
		}
	}
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return NewWithConfig(cfg, newLogger(cfg))
}

// NewWithConfig wires the app from an already loaded configuration.
func NewWithConfig(cfg *config.Config, logger *slog.Logger) (*App, error) {
	sealer, err := crypto.NewSealer(cfg.SessionSecret)
	if err != nil {
		return nil, fmt.Errorf("cookie sealer: %w", err)
	}

	set, err := prompts.Load(cfg.PromptTemplatesFile)
	if err != nil {
		return nil, err
	}

	app := &App{
		config:  cfg,
		logger:  logger,
		sealer:  sealer,
		prompts: set,
	}
	app.maintenance.Store(cfg.MaintenanceMode)
	app.metrics = metrics.New(func() int { return app.store.Len() })

	summarizer, err := app.newSummarizer()
	if err != nil {
		return nil, err
	}

	snd, err := newSender(cfg, logger)
	if err != nil {
		app.closeCache()
		return nil, err
	}
	app.sender = snd
	shared := app.metrics.InstrumentSender(snd)

	app.store = store.NewWorkspaceStore(cfg.WorkspaceTTL, func(id string) *workspace.Workspace {
		return workspace.New(id, summarizer, shared)
	})

	return app, nil
}

// newSummarizer builds the backend chain: backend, logging, cache, metrics.
func (app *App) newSummarizer() (workspace.Summarizer, error) {
	cfg := app.config
	base, err := summarize.New(summarize.Config{
		Backend:    cfg.SummarizerBackend,
		Delay:      cfg.GenerateDelay,
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		Model:      cfg.OpenAIModel,
		MaxRetries: cfg.OpenAIMaxRetries,
		MaxTokens:  cfg.OpenAIMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	s := summarize.Logged(base, app.logger)
	if cfg.CacheEnabled {
		cache, err := summarize.OpenCache(cfg.CacheDir, cfg.CacheTTL)
		if err != nil {
			return nil, err
		}
		app.cache = cache
		s = summarize.Cached(s, cache)
	}

	app.logger.Info("summarizer ready", "backend", summarize.NameOf(base), "cache", cfg.CacheEnabled)
	return app.metrics.InstrumentSummarizer(s, summarize.NameOf(base)), nil
}

func (app *App) closeCache() {
	if app.cache != nil {
		_ = app.cache.Close()
	}
}

// newSender returns the SMTP mailer, or a logging stand-in when no SMTP
// host is configured.
func newSender(cfg *config.Config, logger *slog.Logger) (sender, error) {
	if cfg.SMTPHost == "" {
		logger.Info("SMTP_HOST not set, summaries will be logged instead of emailed")
		return mailer.NewLogSender(cfg.ShareDelay, logger), nil
	}

	var keyring string
	if cfg.PGPKeyringPath != "" {
		data, err := os.ReadFile(cfg.PGPKeyringPath)
		if err != nil {
			return nil, fmt.Errorf("read PGP keyring: %w", err)
		}
		keyring = string(data)
	}

	m := mailer.New(&mailer.Config{
		Host:        cfg.SMTPHost,
		Port:        cfg.SMTPPort,
		User:        cfg.SMTPUser,
		Pass:        cfg.SMTPPass,
		FromAddress: cfg.SMTPFromEmail,
		FromName:    cfg.SMTPFromName,
		Keyring:     keyring,
		MaxRetry:    cfg.SMTPMaxRetries,
	})
	return m, nil
}

func (app *App) healthChecks() map[string]handler.Pinger {
	checks := map[string]handler.Pinger{"mailer": app.sender}
	if app.cache != nil {
		checks["cache"] = app.cache
	}
	return checks
}

// SetMaintenance toggles maintenance mode at runtime.
func (app *App) SetMaintenance(on bool) {
	app.maintenance.Store(on)
	app.logger.Info("maintenance mode changed", "enabled", on)
}

func (app *App) Start(ctx context.Context) error {
	// Create an errgroup derived from the parent context
	g, gctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", app.config.Port),
		Handler:      app.routes(gctx),
		IdleTimeout:  time.Minute,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		ErrorLog:     slog.NewLogLogger(app.logger.Handler(), slog.LevelError),
	}

	// Start the server in a goroutine
	g.Go(func() error {
		app.logger.Info("starting server", "addr", srv.Addr, "env", app.config.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	// Expire idle workspaces
	g.Go(func() error {
		app.sweep(gctx)
		return nil
	})

	// Start shutdown listener
	g.Go(func() error {
		<-gctx.Done() // Wait for OS signal or parent context to fail

		app.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	app.logger.Info("stopped server")
	return nil
}

func (app *App) sweep(ctx context.Context) {
	interval := app.config.WorkspaceTTL / 4
	if interval > maxSweepInterval || interval <= 0 {
		interval = maxSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := app.store.DeleteExpired(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				app.logger.Warn("workspace sweep failed", "err", err)
				continue
			}
			if removed > 0 {
				app.logger.Debug("expired idle workspaces", "removed", removed, "active", app.store.Len())
			}
		}
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	logLevel := slog.LevelInfo

	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))

	slog.SetDefault(logger)
	return logger
}
