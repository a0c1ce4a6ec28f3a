package app

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/notesummarizer/internal/handler"
	"github.com/notesummarizer/internal/middleware"
	"github.com/notesummarizer/internal/security"
	"github.com/notesummarizer/internal/web"
)

func (app *App) routes(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders(app.config.SecureCookies))

	// Static files
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(web.StaticFS)))

	// Health check and metrics
	r.Get("/api/health", handler.Health(app.healthChecks()))
	r.Handle("/metrics", app.metrics.Handler())

	wh := handler.NewWorkspaceHandler(app.logger, app.prompts, app.metrics, web.Templates, handler.WorkspaceOptions{
		MaxUploadBytes:  app.config.MaxUploadBytes(),
		GenerateTimeout: app.config.GenerateTimeout,
		ShareTimeout:    app.config.ShareTimeout,
		GenerateLimiter: security.NewRateLimiter(app.config.GeneratePerMinute),
		BaseContext:     ctx,
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.MaintenanceMode(app.maintenance.Load, web.Templates))
		r.Use(middleware.Workspace(app.store, app.sealer, app.config.SecureCookies))

		// The page polls these and saves edits through them as the user types;
		// not rate limited.
		r.Get("/", wh.Page)
		r.Get("/api/workspace", wh.Get)
		r.Get("/api/notices", wh.Notices)
		r.Get("/api/prompts", wh.Prompts)
		r.Put("/api/prompt", wh.SetPrompt)
		r.Put("/api/summary", wh.EditSummary)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(app.config.RateLimitPerMinute))

			r.Post("/api/transcript", wh.Upload)
			r.Delete("/api/transcript", wh.Remove)
			r.Post("/api/prompt/template", wh.ApplyTemplate)
			r.Post("/api/generate", wh.Generate)
			r.Post("/api/generate/cancel", wh.CancelGenerate)
			r.Post("/api/preview", wh.Preview)
			r.Post("/api/share", wh.Share)
		})
	})
	return r
}
