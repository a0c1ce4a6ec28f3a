package handler

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"github.com/notesummarizer/internal/model"
)

const (
	uploadField     = "transcript"
	multipartMemory = 32 << 20

	msgUploaded    = "File uploaded successfully!"
	msgInvalidFile = "Please select a valid text file (.txt)"
	msgTooLarge    = "File is too large"
)

// Upload selects the transcript sent as the "transcript" multipart field.
func (h *WorkspaceHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	if h.opts.MaxUploadBytes > 0 {
		if r.ContentLength > h.opts.MaxUploadBytes {
			h.errorResponse(w, r, http.StatusRequestEntityTooLarge, msgTooLarge)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytesError *http.MaxBytesError
		if errors.As(err, &maxBytesError) {
			h.errorResponse(w, r, http.StatusRequestEntityTooLarge, msgTooLarge)
			return
		}
		h.errorResponse(w, r, http.StatusBadRequest, "Form too large or invalid")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		h.errorResponse(w, r, http.StatusBadRequest, "No file received")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		h.serverErrorResponse(w, r, err)
		return
	}

	t := model.Transcript{
		Name:      filepath.Base(header.Filename),
		SizeBytes: header.Size,
		MimeType:  header.Header.Get("Content-Type"),
		Content:   content,
	}

	if err := ws.SelectFile(t); err != nil {
		h.uploads.ObserveUpload(false, t.SizeBytes)
		ws.Notify(model.NoticeError, msgInvalidFile)
		h.workspaceErrorResponse(w, r, err)
		return
	}

	h.uploads.ObserveUpload(true, t.SizeBytes)
	ws.Notify(model.NoticeSuccess, msgUploaded)
	h.Logger.Debug("transcript selected", "workspace_id", ws.ID(), "name", t.Name, "bytes", t.SizeBytes)
	h.writeState(w, r, http.StatusOK, ws, nil)
}

// Remove clears the transcript and the summary.
func (h *WorkspaceHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	ws.RemoveFile()
	h.writeState(w, r, http.StatusOK, ws, nil)
}
