package handler

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/notesummarizer/internal/model"
	"github.com/notesummarizer/internal/preview"
	"github.com/notesummarizer/internal/workspace"
)

const (
	msgGenerated        = "Summary generated successfully!"
	msgGenerateFailed   = "Failed to generate summary. Please try again."
	msgGenerateCanceled = "Summary generation cancelled"
	msgGenerateLimited  = "Too many summaries are being generated right now. Please try again shortly."
)

// Generate starts a summary generation in the background and returns 202.
// The page learns the result from the snapshot and the notice queue.
func (h *WorkspaceHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	if err := workspace.CanGenerate(ws.Snapshot()); err != nil {
		h.workspaceErrorResponse(w, r, err)
		return
	}
	limiter := h.opts.GenerateLimiter
	if limiter != nil && !limiter.Allow() {
		secs := int(math.Ceil(limiter.RetryAfter().Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
		h.errorResponse(w, r, http.StatusTooManyRequests, msgGenerateLimited)
		return
	}

	ctx, cancel := context.WithTimeout(h.opts.BaseContext, h.opts.GenerateTimeout)
	err := ws.StartGenerate(ctx, func(_ string, err error) {
		defer cancel()
		switch {
		case err == nil:
			ws.Notify(model.NoticeSuccess, msgGenerated)
		case errors.Is(err, workspace.ErrCancelled):
			ws.Notify(model.NoticeInfo, msgGenerateCanceled)
		default:
			h.Logger.Error("generate: summarizer failed", "workspace_id", ws.ID(), "err", err)
			ws.Notify(model.NoticeError, msgGenerateFailed)
		}
	})
	if err != nil {
		cancel()
		if limiter != nil {
			limiter.Release()
		}
		h.workspaceErrorResponse(w, r, err)
		return
	}

	h.writeState(w, r, http.StatusAccepted, ws, nil)
}

// CancelGenerate aborts the in-flight generation.
func (h *WorkspaceHandler) CancelGenerate(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	if !ws.CancelGeneration() {
		h.errorResponse(w, r, http.StatusConflict, "No summary is being generated")
		return
	}
	h.writeState(w, r, http.StatusAccepted, ws, nil)
}

// EditSummary overwrites the summary with the editor contents.
func (h *WorkspaceHandler) EditSummary(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	var req struct {
		Summary string `json:"summary"`
	}
	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	ws.EditSummary(req.Summary)
	h.writeState(w, r, http.StatusOK, ws, nil)
}

// Preview renders arbitrary markdown without touching the workspace.
func (h *WorkspaceHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Markdown string `json:"markdown"`
	}
	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	html, err := preview.Render(req.Markdown)
	if err != nil {
		h.serverErrorResponse(w, r, err)
		return
	}
	if err := h.writeJSON(w, http.StatusOK, envelope{"html": string(html)}, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}
