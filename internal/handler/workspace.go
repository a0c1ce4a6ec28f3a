package handler

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	appmw "github.com/notesummarizer/internal/middleware"
	"github.com/notesummarizer/internal/model"
	"github.com/notesummarizer/internal/preview"
	"github.com/notesummarizer/internal/workspace"
)

type promptTemplates interface {
	All() []string
	Get(i int) (string, bool)
}

type uploadObserver interface {
	ObserveUpload(accepted bool, size int64)
}

type limiter interface {
	Allow() bool
	Release()
	RetryAfter() time.Duration
}

// WorkspaceOptions tunes the workspace API.
type WorkspaceOptions struct {
	// MaxUploadBytes caps the upload request body. Zero means uncapped.
	MaxUploadBytes  int64
	GenerateTimeout time.Duration
	ShareTimeout    time.Duration

	// GenerateLimiter, when set, caps generations across all workspaces.
	GenerateLimiter limiter

	// BaseContext bounds background generations and shares. It is
	// cancelled on shutdown.
	BaseContext context.Context
}

// WorkspaceHandler serves the page and the JSON API for the caller's
// workspace, which the Workspace middleware puts in the request context.
type WorkspaceHandler struct {
	BaseHandler
	prompts   promptTemplates
	uploads   uploadObserver
	templates *template.Template
	opts      WorkspaceOptions
}

func NewWorkspaceHandler(logger *slog.Logger, prompts promptTemplates, uploads uploadObserver, tmpl *template.Template, opts WorkspaceOptions) *WorkspaceHandler {
	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}
	if opts.GenerateTimeout <= 0 {
		opts.GenerateTimeout = 2 * time.Minute
	}
	if opts.ShareTimeout <= 0 {
		opts.ShareTimeout = time.Minute
	}
	return &WorkspaceHandler{
		BaseHandler: BaseHandler{Logger: logger},
		prompts:     prompts,
		uploads:     uploads,
		templates:   tmpl,
		opts:        opts,
	}
}

type pageData struct {
	model.Snapshot
	Preview     template.HTML
	Templates   []string
	FileSize    string
	MaxUploadMB int64
}

// Page renders the single page of the app.
func (h *WorkspaceHandler) Page(w http.ResponseWriter, r *http.Request) {
	ws := appmw.WorkspaceFromContext(r.Context())
	if ws == nil {
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return
	}

	snap := ws.Snapshot()
	html, err := preview.Render(snap.Summary)
	if err != nil {
		h.Logger.Error("page: preview render failed", "err", err)
	}

	data := pageData{
		Snapshot:    snap,
		Preview:     html,
		Templates:   h.prompts.All(),
		MaxUploadMB: h.opts.MaxUploadBytes >> 20,
	}
	if snap.Transcript != nil {
		data.FileSize = snap.Transcript.SizeKB()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		h.Logger.Error("page: template error", "err", err)
	}
}

// Get returns the workspace snapshot with the rendered preview.
func (h *WorkspaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	h.writeState(w, r, http.StatusOK, ws, nil)
}

// Notices drains the queued notices.
func (h *WorkspaceHandler) Notices(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	notices := ws.DrainNotices()
	if notices == nil {
		notices = []model.Notice{}
	}
	if err := h.writeJSON(w, http.StatusOK, envelope{"notices": notices}, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

func (h *WorkspaceHandler) workspace(w http.ResponseWriter, r *http.Request) (*workspace.Workspace, bool) {
	ws := appmw.WorkspaceFromContext(r.Context())
	if ws == nil {
		h.serverErrorResponse(w, r, errors.New("workspace missing from request context"))
		return nil, false
	}
	return ws, true
}

// writeState responds with the current snapshot plus any extra fields.
func (h *WorkspaceHandler) writeState(w http.ResponseWriter, r *http.Request, status int, ws *workspace.Workspace, extra envelope) {
	snap := ws.Snapshot()
	html, err := preview.Render(snap.Summary)
	if err != nil {
		h.serverErrorResponse(w, r, err)
		return
	}

	env := envelope{"workspace": snap, "preview": string(html)}
	if snap.Transcript != nil {
		env["fileSize"] = snap.Transcript.SizeKB()
	}
	for k, v := range extra {
		env[k] = v
	}
	if err := h.writeJSON(w, status, env, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

// workspaceErrorResponse maps workspace errors to status codes.
func (h *WorkspaceHandler) workspaceErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var fileType *workspace.FileTypeError
	var emailFormat *workspace.EmailFormatError

	switch {
	case errors.As(err, &fileType):
		h.errorResponse(w, r, http.StatusUnsupportedMediaType, msgInvalidFile)
	case errors.As(err, &emailFormat):
		h.errorResponse(w, r, http.StatusBadRequest, emailFormat.Error())
	case errors.Is(err, workspace.ErrMissingFile):
		h.errorResponse(w, r, http.StatusBadRequest, "Please upload a transcript first")
	case errors.Is(err, workspace.ErrEmptyInstruction):
		h.errorResponse(w, r, http.StatusBadRequest, "Please enter instructions for the summary")
	case errors.Is(err, workspace.ErrEmptySummary):
		h.errorResponse(w, r, http.StatusBadRequest, msgNoSummary)
	case errors.Is(err, workspace.ErrNoRecipients):
		h.errorResponse(w, r, http.StatusBadRequest, "Please enter at least one email address")
	case errors.Is(err, workspace.ErrBusy):
		h.errorResponse(w, r, http.StatusConflict, "Another operation is already in progress")
	default:
		h.serverErrorResponse(w, r, err)
	}
}
