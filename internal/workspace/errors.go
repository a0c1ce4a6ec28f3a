package workspace

import (
	"errors"
	"fmt"
)

var (
	ErrMissingFile      = errors.New("workspace: no transcript selected")
	ErrEmptyInstruction = errors.New("workspace: instruction is empty")
	ErrEmptySummary     = errors.New("workspace: no summary to share")
	ErrNoRecipients     = errors.New("workspace: no recipients given")
	ErrBusy             = errors.New("workspace: operation already in progress")
	ErrCancelled        = errors.New("workspace: generation cancelled")
)

// FileTypeError is returned when a selected file is not plain text.
type FileTypeError struct {
	Name     string
	MimeType string
}

func (e *FileTypeError) Error() string {
	return fmt.Sprintf("workspace: %q has type %q, want text/plain", e.Name, e.MimeType)
}

// EmailFormatError names the first recipient entry that failed validation.
type EmailFormatError struct {
	Entry string
}

func (e *EmailFormatError) Error() string {
	return "Invalid email format: " + e.Entry
}
