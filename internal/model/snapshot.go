package model

// Snapshot is a point-in-time copy of a workspace, safe to hand to views.
type Snapshot struct {
	ID         string      `json:"id"`
	Transcript *Transcript `json:"transcript,omitempty"`
	Prompt     string      `json:"prompt"`
	Summary    string      `json:"summary"`
	Generating bool        `json:"generating"`
	Sharing    bool        `json:"sharing"`

	CanGenerate bool   `json:"canGenerate"`
	CanShare    bool   `json:"canShare"`
	Hint        string `json:"hint,omitempty"`
}

// ShowEditor reports whether the editor pane is visible.
func (s Snapshot) ShowEditor() bool {
	return s.Summary != ""
}

// ShowShare reports whether the share form is visible.
func (s Snapshot) ShowShare() bool {
	return s.Summary != ""
}
