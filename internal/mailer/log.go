package mailer

import (
	"context"
	"log/slog"
	"time"

	"github.com/notesummarizer/internal/model"
)

// DefaultLogDelay approximates a real send so the page shows its busy state.
const DefaultLogDelay = 1500 * time.Millisecond

// LogSender stands in for SMTP when no host is configured. It logs each
// message and reports every recipient as delivered.
type LogSender struct {
	Delay  time.Duration
	Logger *slog.Logger
}

func NewLogSender(delay time.Duration, logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{Delay: delay, Logger: logger}
}

func (l *LogSender) Send(ctx context.Context, markdown string, recipients []string) (model.Outcome, error) {
	if l.Delay > 0 {
		t := time.NewTimer(l.Delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return model.Outcome{}, ctx.Err()
		}
	}

	for _, to := range recipients {
		l.Logger.Info("email would be sent",
			"to", to,
			"subject", SubjectFromMarkdown(markdown),
			"bytes", len(markdown),
		)
	}
	return model.Outcome{Delivered: append([]string(nil), recipients...)}, nil
}

func (l *LogSender) Ping(context.Context) error { return nil }
