package workspace

import (
	"mime"

	"github.com/notesummarizer/internal/model"
)

// ValidateTranscript accepts a transcript by metadata only: its declared media
// type must be text/plain. Parameters such as charset are ignored.
func ValidateTranscript(t model.Transcript) error {
	mediaType, _, err := mime.ParseMediaType(t.MimeType)
	if err != nil || mediaType != model.PlainText {
		return &FileTypeError{Name: t.Name, MimeType: t.MimeType}
	}
	return nil
}
