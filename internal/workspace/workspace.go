// Package workspace holds the state of one summarizing session: the selected
// transcript, the instruction, the generated summary and the two busy flags.
// All mutation goes through the transition methods on Workspace.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/notesummarizer/internal/model"
)

// Summarizer turns a transcript and an instruction into markdown.
type Summarizer interface {
	Summarize(ctx context.Context, transcript []byte, instruction string) (string, error)
}

// Sender delivers a markdown summary to a list of recipients.
type Sender interface {
	Send(ctx context.Context, markdown string, recipients []string) (model.Outcome, error)
}

const maxNotices = 20

type Workspace struct {
	id         string
	summarizer Summarizer
	sender     Sender

	mu         sync.Mutex
	transcript *model.Transcript
	prompt     string
	summary    string
	generating bool
	sharing    bool
	cancelGen  context.CancelCauseFunc
	notices    []model.Notice
	lastSeen   time.Time
}

// New returns an empty workspace using the given collaborators.
func New(id string, summarizer Summarizer, sender Sender) *Workspace {
	return &Workspace{
		id:         id,
		summarizer: summarizer,
		sender:     sender,
		lastSeen:   time.Now(),
	}
}

func (w *Workspace) ID() string { return w.id }

// Snapshot returns a copy of the current state with derived eligibility.
func (w *Workspace) Snapshot() model.Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *Workspace) snapshotLocked() model.Snapshot {
	s := model.Snapshot{
		ID:         w.id,
		Prompt:     w.prompt,
		Summary:    w.summary,
		Generating: w.generating,
		Sharing:    w.sharing,
	}
	if w.transcript != nil {
		t := *w.transcript
		s.Transcript = &t
	}
	return withEligibility(s)
}

// SelectFile replaces the transcript and clears the summary. A file that is
// not plain text is rejected and nothing changes.
func (w *Workspace) SelectFile(t model.Transcript) error {
	if err := ValidateTranscript(t); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.transcript = &t
	w.summary = ""
	return nil
}

// RemoveFile clears the transcript and the summary.
func (w *Workspace) RemoveFile() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.transcript = nil
	w.summary = ""
}

// SetPrompt overwrites the instruction.
func (w *Workspace) SetPrompt(p string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prompt = p
}

// EditSummary overwrites the summary text.
func (w *Workspace) EditSummary(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.summary = text
}

// Generate runs the summarizer and stores its result.
func (w *Workspace) Generate(ctx context.Context) (string, error) {
	run, err := w.beginGenerate(ctx)
	if err != nil {
		return "", err
	}
	return run()
}

// StartGenerate checks eligibility and marks the workspace as generating,
// then runs the summarizer in the background. done receives the result.
func (w *Workspace) StartGenerate(ctx context.Context, done func(summary string, err error)) error {
	run, err := w.beginGenerate(ctx)
	if err != nil {
		return err
	}
	go func() {
		summary, err := run()
		if done != nil {
			done(summary, err)
		}
	}()
	return nil
}

// beginGenerate captures the inputs and flips the busy flag under the lock.
// The returned func performs the call without holding it.
func (w *Workspace) beginGenerate(ctx context.Context) (func() (string, error), error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := CanGenerate(w.snapshotLocked()); err != nil {
		return nil, err
	}

	content := w.transcript.Content
	instruction := w.prompt
	ctx, cancel := context.WithCancelCause(ctx)
	w.generating = true
	w.cancelGen = cancel

	return func() (string, error) {
		defer cancel(nil)
		summary, err := w.summarizer.Summarize(ctx, content, instruction)

		w.mu.Lock()
		defer w.mu.Unlock()
		w.generating = false
		w.cancelGen = nil

		if errors.Is(context.Cause(ctx), ErrCancelled) {
			return "", ErrCancelled
		}
		if err != nil {
			return "", fmt.Errorf("summarize: %w", err)
		}
		w.summary = summary
		return summary, nil
	}, nil
}

// CancelGeneration aborts an in-flight generation. Its result, if any, is
// discarded. It reports whether a generation was running.
func (w *Workspace) CancelGeneration() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancelGen == nil {
		return false
	}
	w.cancelGen(ErrCancelled)
	return true
}

// Share validates the recipient field and sends the current summary.
func (w *Workspace) Share(ctx context.Context, rawRecipients string) (model.Outcome, error) {
	run, _, err := w.beginShare(ctx, rawRecipients)
	if err != nil {
		return model.Outcome{}, err
	}
	return run()
}

// StartShare validates synchronously and sends in the background. It returns
// the parsed recipient list.
func (w *Workspace) StartShare(ctx context.Context, rawRecipients string, done func(model.Outcome, error)) ([]string, error) {
	run, recipients, err := w.beginShare(ctx, rawRecipients)
	if err != nil {
		return nil, err
	}
	go func() {
		outcome, err := run()
		if done != nil {
			done(outcome, err)
		}
	}()
	return recipients, nil
}

func (w *Workspace) beginShare(ctx context.Context, rawRecipients string) (func() (model.Outcome, error), []string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if strings.TrimSpace(w.summary) == "" {
		return nil, nil, ErrEmptySummary
	}
	recipients, err := ParseRecipients(rawRecipients)
	if err != nil {
		return nil, nil, err
	}
	if err := CanShare(w.snapshotLocked()); err != nil {
		return nil, nil, err
	}

	text := w.summary
	w.sharing = true

	return func() (model.Outcome, error) {
		outcome, err := w.sender.Send(ctx, text, recipients)

		w.mu.Lock()
		w.sharing = false
		w.mu.Unlock()

		if err != nil {
			return outcome, fmt.Errorf("send: %w", err)
		}
		return outcome, nil
	}, recipients, nil
}

// Notify queues a notice for the page. The oldest notices are dropped once
// the queue is full.
func (w *Workspace) Notify(kind model.NoticeKind, message string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notices = append(w.notices, model.Notice{Kind: kind, Message: message, At: time.Now().UTC()})
	if len(w.notices) > maxNotices {
		w.notices = w.notices[len(w.notices)-maxNotices:]
	}
}

// DrainNotices returns and clears the queued notices.
func (w *Workspace) DrainNotices() []model.Notice {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.notices
	w.notices = nil
	return out
}

// Touch records activity for idle expiry.
func (w *Workspace) Touch(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastSeen = now
}

// IdleSince reports the last recorded activity and whether an operation is
// in flight.
func (w *Workspace) IdleSince() (time.Time, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen, w.generating || w.sharing
}
