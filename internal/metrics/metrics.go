// Package metrics exposes Prometheus counters for generations, shares and
// uploads, plus instrumented wrappers for the summarizer and sender.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/notesummarizer/internal/model"
)

// Status label values.
const (
	StatusOK        = "ok"
	StatusError     = "error"
	StatusCancelled = "cancelled"
	StatusPartial   = "partial"
)

// Metrics holds all Prometheus metrics for the app.
type Metrics struct {
	GenerationsTotal  *prometheus.CounterVec
	GenerationSeconds *prometheus.HistogramVec
	SharesTotal       *prometheus.CounterVec
	RecipientsTotal   *prometheus.CounterVec
	UploadsTotal      *prometheus.CounterVec
	UploadBytes       prometheus.Histogram

	registry *prometheus.Registry
}

// New registers the metrics on a fresh registry. activeWorkspaces, when not
// nil, backs the workspace gauge.
func New(activeWorkspaces func() int) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		GenerationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notes_generations_total",
				Help: "Summary generations by backend and result",
			},
			[]string{"backend", "status"},
		),
		GenerationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "notes_generation_seconds",
				Help:    "Summary generation latency",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 15, 30, 60, 120},
			},
			[]string{"backend"},
		),
		SharesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notes_shares_total",
				Help: "Share operations by result",
			},
			[]string{"status"},
		),
		RecipientsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notes_share_recipients_total",
				Help: "Recipients by delivery result",
			},
			[]string{"result"},
		),
		UploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notes_uploads_total",
				Help: "Transcript uploads by result",
			},
			[]string{"result"},
		),
		UploadBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "notes_upload_bytes",
				Help:    "Size of accepted transcripts",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
			},
		),
		registry: reg,
	}

	if activeWorkspaces != nil {
		factory.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "notes_workspaces_active",
				Help: "Workspaces currently held in memory",
			},
			func() float64 { return float64(activeWorkspaces()) },
		)
	}
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry, mostly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// ObserveUpload records an upload attempt.
func (m *Metrics) ObserveUpload(accepted bool, size int64) {
	if !accepted {
		m.UploadsTotal.WithLabelValues("rejected").Inc()
		return
	}
	m.UploadsTotal.WithLabelValues("accepted").Inc()
	m.UploadBytes.Observe(float64(size))
}

type summarizer interface {
	Summarize(ctx context.Context, transcript []byte, instruction string) (string, error)
}

type sender interface {
	Send(ctx context.Context, markdown string, recipients []string) (model.Outcome, error)
}

// InstrumentSummarizer counts and times calls to s under the backend label.
func (m *Metrics) InstrumentSummarizer(s summarizer, backend string) *Summarizer {
	return &Summarizer{next: s, backend: backend, m: m}
}

type Summarizer struct {
	next    summarizer
	backend string
	m       *Metrics
}

func (s *Summarizer) Name() string { return s.backend }

func (s *Summarizer) Summarize(ctx context.Context, transcript []byte, instruction string) (string, error) {
	start := time.Now()
	out, err := s.next.Summarize(ctx, transcript, instruction)
	s.m.GenerationSeconds.WithLabelValues(s.backend).Observe(time.Since(start).Seconds())

	status := StatusOK
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		status = StatusCancelled
	default:
		status = StatusError
	}
	s.m.GenerationsTotal.WithLabelValues(s.backend, status).Inc()
	return out, err
}

// InstrumentSender counts share results and per-recipient outcomes.
func (m *Metrics) InstrumentSender(s sender) *Sender {
	return &Sender{next: s, m: m}
}

type Sender struct {
	next sender
	m    *Metrics
}

func (s *Sender) Send(ctx context.Context, markdown string, recipients []string) (model.Outcome, error) {
	outcome, err := s.next.Send(ctx, markdown, recipients)

	s.m.RecipientsTotal.WithLabelValues("delivered").Add(float64(len(outcome.Delivered)))
	s.m.RecipientsTotal.WithLabelValues("failed").Add(float64(len(outcome.Failed)))

	status := StatusOK
	switch {
	case err != nil:
		status = StatusError
	case !outcome.OK():
		status = StatusPartial
	}
	s.m.SharesTotal.WithLabelValues(status).Inc()
	return outcome, err
}
