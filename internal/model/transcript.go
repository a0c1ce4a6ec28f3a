package model

import "fmt"

// PlainText is the only media type accepted for transcripts.
const PlainText = "text/plain"

// Transcript is an uploaded meeting transcript. Content is kept as-is and
// handed to the summarizer untouched.
type Transcript struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"sizeBytes"`
	MimeType  string `json:"mimeType"`
	Content   []byte `json:"-"`
}

// SizeKB formats the size the way the page displays it, e.g. "12.4 KB".
func (t Transcript) SizeKB() string {
	return fmt.Sprintf("%.1f KB", float64(t.SizeBytes)/1024)
}
