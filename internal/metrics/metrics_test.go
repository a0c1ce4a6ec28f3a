package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notesummarizer/internal/model"
)

type stubSummarizer struct{ err error }

func (s stubSummarizer) Summarize(context.Context, []byte, string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "# ok", nil
}

type stubSender struct {
	outcome model.Outcome
	err     error
}

func (s stubSender) Send(context.Context, string, []string) (model.Outcome, error) {
	return s.outcome, s.err
}

func TestInstrumentSummarizer(t *testing.T) {
	m := New(nil)
	ctx := context.Background()

	_, err := m.InstrumentSummarizer(stubSummarizer{}, "canned").Summarize(ctx, nil, "")
	require.NoError(t, err)
	_, err = m.InstrumentSummarizer(stubSummarizer{err: errors.New("boom")}, "canned").Summarize(ctx, nil, "")
	require.Error(t, err)
	_, err = m.InstrumentSummarizer(stubSummarizer{err: context.Canceled}, "canned").Summarize(ctx, nil, "")
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GenerationsTotal.WithLabelValues("canned", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GenerationsTotal.WithLabelValues("canned", StatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GenerationsTotal.WithLabelValues("canned", StatusCancelled)))
}

func TestInstrumentSender(t *testing.T) {
	m := New(nil)
	partial := model.Outcome{
		Delivered: []string{"a@example.org"},
		Failed:    map[string]string{"b@example.org": "mailbox unavailable"},
	}

	_, err := m.InstrumentSender(stubSender{outcome: partial}).Send(context.Background(), "x", nil)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SharesTotal.WithLabelValues(StatusPartial)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecipientsTotal.WithLabelValues("delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecipientsTotal.WithLabelValues("failed")))
}

func TestObserveUpload(t *testing.T) {
	m := New(nil)
	m.ObserveUpload(true, 2048)
	m.ObserveUpload(false, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.UploadsTotal.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UploadsTotal.WithLabelValues("rejected")))
}

func TestHandlerExposesWorkspaceGauge(t *testing.T) {
	m := New(func() int { return 3 })

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "notes_workspaces_active 3")
}
