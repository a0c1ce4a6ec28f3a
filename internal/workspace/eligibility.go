package workspace

import (
	"strings"

	"github.com/notesummarizer/internal/model"
)

// GenerateHint is shown while generation is unavailable for lack of input.
const GenerateHint = "Please upload a file and enter instructions to continue"

// CanGenerate is the single guard for generation. Both the enabled state shown
// to the user and Generate itself consult it.
func CanGenerate(s model.Snapshot) error {
	if s.Transcript == nil {
		return ErrMissingFile
	}
	if strings.TrimSpace(s.Prompt) == "" {
		return ErrEmptyInstruction
	}
	if s.Generating {
		return ErrBusy
	}
	return nil
}

// CanShare is the single guard for sharing, recipients aside.
func CanShare(s model.Snapshot) error {
	if strings.TrimSpace(s.Summary) == "" {
		return ErrEmptySummary
	}
	if s.Sharing {
		return ErrBusy
	}
	return nil
}

func withEligibility(s model.Snapshot) model.Snapshot {
	s.CanGenerate = CanGenerate(s) == nil
	s.CanShare = CanShare(s) == nil
	if !s.CanGenerate && !s.Generating {
		s.Hint = GenerateHint
	}
	return s
}
