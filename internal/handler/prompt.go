package handler

import (
	"net/http"
)

// Prompts lists the quick templates.
func (h *WorkspaceHandler) Prompts(w http.ResponseWriter, r *http.Request) {
	if err := h.writeJSON(w, http.StatusOK, envelope{"templates": h.prompts.All()}, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

// SetPrompt overwrites the instruction text.
func (h *WorkspaceHandler) SetPrompt(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	ws.SetPrompt(req.Prompt)
	h.writeState(w, r, http.StatusOK, ws, nil)
}

// ApplyTemplate replaces the instruction with the template at the given index.
func (h *WorkspaceHandler) ApplyTemplate(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	var req struct {
		Index *int `json:"index"`
	}
	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	if req.Index == nil {
		h.errorResponse(w, r, http.StatusBadRequest, "index is required")
		return
	}

	tmpl, found := h.prompts.Get(*req.Index)
	if !found {
		h.errorResponse(w, r, http.StatusBadRequest, "unknown template")
		return
	}

	ws.SetPrompt(tmpl)
	h.writeState(w, r, http.StatusOK, ws, nil)
}
