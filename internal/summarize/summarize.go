// Package summarize provides the summarization backends: a canned document
// for development, an OpenAI chat model, and a badger-backed result cache.
package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Summarizer turns a transcript and an instruction into markdown.
type Summarizer interface {
	Summarize(ctx context.Context, transcript []byte, instruction string) (string, error)
}

// Backend names accepted by New.
const (
	BackendCanned = "canned"
	BackendOpenAI = "openai"
)

// Config selects and configures a backend.
type Config struct {
	Backend string

	// Canned
	Delay time.Duration

	// OpenAI
	APIKey     string
	BaseURL    string
	Model      string
	MaxRetries int
	MaxTokens  int
}

// New returns the Summarizer for cfg.Backend.
func New(cfg Config) (Summarizer, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendCanned:
		return NewCanned(cfg.Delay), nil
	case BackendOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("summarize: openai backend needs an API key")
		}
		return NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model, OpenAIOptions{
			MaxRetries: cfg.MaxRetries,
			MaxTokens:  cfg.MaxTokens,
		}), nil
	default:
		return nil, fmt.Errorf("summarize: unknown backend %q", cfg.Backend)
	}
}

// Named is implemented by backends that report a stable name, used in cache
// keys and metrics labels.
type Named interface {
	Name() string
}

// NameOf returns s.Name() when available.
func NameOf(s Summarizer) string {
	if n, ok := s.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", s)
}

// Logged wraps a Summarizer with debug logging of sizes and latency.
func Logged(s Summarizer, logger *slog.Logger) Summarizer {
	return &logged{next: s, logger: logger}
}

type logged struct {
	next   Summarizer
	logger *slog.Logger
}

func (l *logged) Name() string { return NameOf(l.next) }

func (l *logged) Summarize(ctx context.Context, transcript []byte, instruction string) (string, error) {
	start := time.Now()
	out, err := l.next.Summarize(ctx, transcript, instruction)
	if err != nil {
		l.logger.Warn("summarize: backend failed", "backend", NameOf(l.next), "elapsed", time.Since(start), "err", err)
		return "", err
	}
	l.logger.Debug("summarize: done",
		"backend", NameOf(l.next),
		"transcript_bytes", len(transcript),
		"summary_bytes", len(out),
		"elapsed", time.Since(start),
	)
	return out, nil
}
