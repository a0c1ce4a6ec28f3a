package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/notesummarizer/internal/model"
)

const (
	msgNoSummary   = "Please generate a summary before sharing"
	msgShareFailed = "Failed to share summary. Please try again."
)

// Share validates the recipients and sends the summary in the background.
func (h *WorkspaceHandler) Share(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	var req struct {
		Recipients string `json:"recipients"`
	}
	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(h.opts.BaseContext, h.opts.ShareTimeout)
	recipients, err := ws.StartShare(ctx, req.Recipients, func(outcome model.Outcome, err error) {
		defer cancel()
		h.notifyShared(ws.ID(), ws.Notify, outcome, err)
	})
	if err != nil {
		cancel()
		h.workspaceErrorResponse(w, r, err)
		return
	}

	h.writeState(w, r, http.StatusAccepted, ws, envelope{"recipients": recipients})
}

func (h *WorkspaceHandler) notifyShared(id string, notify func(model.NoticeKind, string), outcome model.Outcome, err error) {
	if len(outcome.Delivered) > 0 {
		notify(model.NoticeSuccess, "Summary shared successfully with: "+strings.Join(outcome.Delivered, ", "))
	}
	if failed := outcome.FailedRecipients(); len(failed) > 0 {
		notify(model.NoticeError, fmt.Sprintf("Could not deliver to: %s", strings.Join(failed, ", ")))
	}
	if err != nil {
		h.Logger.Error("share: send failed", "workspace_id", id, "err", err)
		if len(outcome.Failed) == 0 {
			notify(model.NoticeError, msgShareFailed)
		}
	}
}
