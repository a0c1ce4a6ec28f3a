package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appmw "github.com/notesummarizer/internal/middleware"
	"github.com/notesummarizer/internal/model"
	"github.com/notesummarizer/internal/prompts"
	"github.com/notesummarizer/internal/security"
	"github.com/notesummarizer/internal/workspace"
)

type echoSummarizer struct {
	release chan struct{}
	err     error
}

func (e *echoSummarizer) Summarize(ctx context.Context, transcript []byte, instruction string) (string, error) {
	if e.release != nil {
		select {
		case <-e.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if e.err != nil {
		return "", e.err
	}
	return "# Meeting Summary\n\n" + instruction, nil
}

type recordingSender struct {
	mu    sync.Mutex
	calls int
	fail  map[string]bool
}

func (s *recordingSender) Send(_ context.Context, _ string, recipients []string) (model.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	out := model.Outcome{}
	for _, r := range recipients {
		if s.fail[r] {
			if out.Failed == nil {
				out.Failed = map[string]string{}
			}
			out.Failed[r] = "rejected"
			continue
		}
		out.Delivered = append(out.Delivered, r)
	}
	return out, nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type uploadCounter struct {
	accepted, rejected int
}

func (u *uploadCounter) ObserveUpload(accepted bool, _ int64) {
	if accepted {
		u.accepted++
		return
	}
	u.rejected++
}

type fixture struct {
	h       *WorkspaceHandler
	ws      *workspace.Workspace
	sum     *echoSummarizer
	sender  *recordingSender
	uploads *uploadCounter
}

func newFixture(t *testing.T, maxUpload int64) *fixture {
	t.Helper()
	sum := &echoSummarizer{}
	snd := &recordingSender{}
	up := &uploadCounter{}
	tmpl := template.Must(template.New("index.html").Parse(
		`{{if .Transcript}}{{.Transcript.Name}} {{.FileSize}}{{end}}|{{.Hint}}|{{.Preview}}|{{range .Templates}}[{{.}}]{{end}}`))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := NewWorkspaceHandler(logger, prompts.Default(), up, tmpl, WorkspaceOptions{
		MaxUploadBytes:  maxUpload,
		GenerateTimeout: time.Second,
		ShareTimeout:    time.Second,
	})
	return &fixture{h: h, ws: workspace.New("ws-test", sum, snd), sum: sum, sender: snd, uploads: up}
}

func (f *fixture) do(handler http.HandlerFunc, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req = req.WithContext(appmw.WithWorkspace(req.Context(), f.ws))
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func (f *fixture) doJSON(handler http.HandlerFunc, method, target string, payload any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(payload)
	return f.do(handler, method, target, bytes.NewReader(b), "application/json")
}

// buildUpload creates a multipart body with one file part.
func buildUpload(name, contentType, content string) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="transcript"; filename="`+name+`"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, _ := writer.CreatePart(h)
	part.Write([]byte(content))
	writer.Close()
	return body, writer.FormDataContentType()
}

func (f *fixture) upload(name, contentType, content string) *httptest.ResponseRecorder {
	body, ct := buildUpload(name, contentType, content)
	return f.do(f.h.Upload, http.MethodPost, "/api/transcript", body, ct)
}

type stateResponse struct {
	Workspace  model.Snapshot `json:"workspace"`
	Preview    string         `json:"preview"`
	FileSize   string         `json:"fileSize"`
	Recipients []string       `json:"recipients"`
	Error      string         `json:"error"`
}

func decodeState(t *testing.T, rr *httptest.ResponseRecorder) stateResponse {
	t.Helper()
	var s stateResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &s), rr.Body.String())
	return s
}

func (f *fixture) waitIdle(t *testing.T) model.Snapshot {
	t.Helper()
	require.Eventually(t, func() bool {
		s := f.ws.Snapshot()
		return !s.Generating && !s.Sharing
	}, 2*time.Second, 5*time.Millisecond)
	return f.ws.Snapshot()
}

func (f *fixture) ready(t *testing.T) {
	t.Helper()
	require.Equal(t, http.StatusOK, f.upload("minutes.txt", "text/plain", "Alice: ship it").Code)
	require.Equal(t, http.StatusOK, f.doJSON(f.h.SetPrompt, http.MethodPut, "/api/prompt",
		map[string]string{"prompt": "Summarize in bullet points for executives"}).Code)
}

func TestUploadAcceptsPlainText(t *testing.T) {
	f := newFixture(t, 0)

	rr := f.upload("minutes.txt", "text/plain; charset=utf-8", strings.Repeat("a", 2048))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	s := decodeState(t, rr)
	require.NotNil(t, s.Workspace.Transcript)
	assert.Equal(t, "minutes.txt", s.Workspace.Transcript.Name)
	assert.Equal(t, "2.0 KB", s.FileSize)
	assert.Equal(t, 1, f.uploads.accepted)

	notices := f.ws.DrainNotices()
	require.Len(t, notices, 1)
	assert.Equal(t, model.NoticeSuccess, notices[0].Kind)
}

func TestUploadRejectsOtherTypes(t *testing.T) {
	f := newFixture(t, 0)

	rr := f.upload("deck.pdf", "application/pdf", "%PDF-1.4")
	assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)
	assert.Equal(t, msgInvalidFile, decodeState(t, rr).Error)
	assert.Nil(t, f.ws.Snapshot().Transcript)
	assert.Equal(t, 1, f.uploads.rejected)

	notices := f.ws.DrainNotices()
	require.Len(t, notices, 1)
	assert.Equal(t, model.NoticeError, notices[0].Kind)
}

func TestUploadUsesDeclaredTypeOnly(t *testing.T) {
	for _, ct := range []string{"application/octet-stream", ""} {
		f := newFixture(t, 0)
		rr := f.upload("minutes.txt", ct, "hello")
		assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code, "content type %q", ct)
		assert.Nil(t, f.ws.Snapshot().Transcript)
	}
}

func TestUploadRespectsCap(t *testing.T) {
	f := newFixture(t, 512)
	rr := f.upload("minutes.txt", "text/plain", strings.Repeat("a", 4096))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Equal(t, msgTooLarge, decodeState(t, rr).Error)
	assert.Nil(t, f.ws.Snapshot().Transcript)
}

func TestUploadRespectsCapWithoutContentLength(t *testing.T) {
	f := newFixture(t, 512)
	body, ct := buildUpload("minutes.txt", "text/plain", strings.Repeat("a", 4096))
	req := httptest.NewRequest(http.MethodPost, "/api/transcript", io.NopCloser(body))
	req.ContentLength = -1
	req.Header.Set("Content-Type", ct)
	req = req.WithContext(appmw.WithWorkspace(req.Context(), f.ws))
	rr := httptest.NewRecorder()

	f.h.Upload(rr, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Nil(t, f.ws.Snapshot().Transcript)
}

func TestUploadMissingFile(t *testing.T) {
	f := newFixture(t, 0)
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	writer.WriteField("other", "x")
	writer.Close()

	rr := f.do(f.h.Upload, http.MethodPost, "/api/transcript", body, writer.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRemoveClearsTranscriptAndSummary(t *testing.T) {
	f := newFixture(t, 0)
	f.ready(t)
	f.ws.EditSummary("# draft")

	rr := f.do(f.h.Remove, http.MethodDelete, "/api/transcript", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	s := decodeState(t, rr)
	assert.Nil(t, s.Workspace.Transcript)
	assert.Empty(t, s.Workspace.Summary)
	assert.Equal(t, workspace.GenerateHint, s.Workspace.Hint)
}

func TestApplyTemplate(t *testing.T) {
	f := newFixture(t, 0)

	rr := f.doJSON(f.h.ApplyTemplate, http.MethodPost, "/api/prompt/template", map[string]int{"index": 1})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Highlight only action items and deadlines", decodeState(t, rr).Workspace.Prompt)

	rr = f.doJSON(f.h.ApplyTemplate, http.MethodPost, "/api/prompt/template", map[string]int{"index": 99})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.doJSON(f.h.ApplyTemplate, http.MethodPost, "/api/prompt/template", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSetPromptRejectsUnknownFields(t *testing.T) {
	f := newFixture(t, 0)
	rr := f.doJSON(f.h.SetPrompt, http.MethodPut, "/api/prompt", map[string]string{"instruction": "x"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPrompts(t *testing.T) {
	f := newFixture(t, 0)
	rr := f.do(f.h.Prompts, http.MethodGet, "/api/prompts", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Templates []string `json:"templates"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Len(t, body.Templates, 4)
}

func TestGenerateRequiresInputs(t *testing.T) {
	f := newFixture(t, 0)

	rr := f.do(f.h.Generate, http.MethodPost, "/api/generate", nil, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	require.Equal(t, http.StatusOK, f.upload("minutes.txt", "text/plain", "x").Code)
	f.doJSON(f.h.SetPrompt, http.MethodPut, "/api/prompt", map[string]string{"prompt": "   "})

	rr = f.do(f.h.Generate, http.MethodPost, "/api/generate", nil, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGenerateRunsInBackground(t *testing.T) {
	f := newFixture(t, 0)
	f.ready(t)
	f.ws.DrainNotices()
	f.sum.release = make(chan struct{})

	rr := f.do(f.h.Generate, http.MethodPost, "/api/generate", nil, "")
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.True(t, decodeState(t, rr).Workspace.Generating)

	rr = f.do(f.h.Generate, http.MethodPost, "/api/generate", nil, "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	close(f.sum.release)
	snap := f.waitIdle(t)
	assert.Contains(t, snap.Summary, "Summarize in bullet points for executives")

	require.Eventually(t, func() bool {
		n := f.ws.DrainNotices()
		return len(n) == 1 && n[0].Message == msgGenerated
	}, time.Second, 5*time.Millisecond)
}

func TestGenerateFailureNotifies(t *testing.T) {
	f := newFixture(t, 0)
	f.ready(t)
	f.ws.DrainNotices()
	f.sum.err = errors.New("backend down")

	require.Equal(t, http.StatusAccepted, f.do(f.h.Generate, http.MethodPost, "/api/generate", nil, "").Code)
	snap := f.waitIdle(t)
	assert.Empty(t, snap.Summary)

	require.Eventually(t, func() bool {
		n := f.ws.DrainNotices()
		return len(n) == 1 && n[0].Message == msgGenerateFailed
	}, time.Second, 5*time.Millisecond)
}

func TestCancelGenerate(t *testing.T) {
	f := newFixture(t, 0)
	f.ready(t)
	f.sum.release = make(chan struct{})

	rr := f.do(f.h.CancelGenerate, http.MethodPost, "/api/generate/cancel", nil, "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	require.Equal(t, http.StatusAccepted, f.do(f.h.Generate, http.MethodPost, "/api/generate", nil, "").Code)
	rr = f.do(f.h.CancelGenerate, http.MethodPost, "/api/generate/cancel", nil, "")
	assert.Equal(t, http.StatusAccepted, rr.Code)

	snap := f.waitIdle(t)
	assert.Empty(t, snap.Summary)
}

func TestEditSummaryAndPreview(t *testing.T) {
	f := newFixture(t, 0)

	rr := f.doJSON(f.h.EditSummary, http.MethodPut, "/api/summary", map[string]string{"summary": "# Title\n\n- one"})
	require.Equal(t, http.StatusOK, rr.Code)
	s := decodeState(t, rr)
	assert.Equal(t, "# Title\n\n- one", s.Workspace.Summary)
	assert.Contains(t, s.Preview, "<h1>Title</h1>")
	assert.True(t, s.Workspace.CanShare)

	rr = f.doJSON(f.h.Preview, http.MethodPost, "/api/preview", map[string]string{"markdown": ""})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Preview will appear here...")
}

func TestShareValidation(t *testing.T) {
	f := newFixture(t, 0)

	rr := f.doJSON(f.h.Share, http.MethodPost, "/api/share", map[string]string{"recipients": "a@b.com"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, msgNoSummary, decodeState(t, rr).Error)

	f.ws.EditSummary("# Summary")

	rr = f.doJSON(f.h.Share, http.MethodPost, "/api/share", map[string]string{"recipients": "a@b.com, not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid email format: not-an-email", decodeState(t, rr).Error)

	rr = f.doJSON(f.h.Share, http.MethodPost, "/api/share", map[string]string{"recipients": "   "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	assert.Zero(t, f.sender.count())
}

func TestShareSendsAndNotifies(t *testing.T) {
	f := newFixture(t, 0)
	f.ws.EditSummary("# Summary")

	rr := f.doJSON(f.h.Share, http.MethodPost, "/api/share", map[string]string{"recipients": " a@b.com , c@d.org "})
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	assert.Equal(t, []string{"a@b.com", "c@d.org"}, decodeState(t, rr).Recipients)

	f.waitIdle(t)
	require.Eventually(t, func() bool {
		n := f.ws.DrainNotices()
		return len(n) == 1 && n[0].Message == "Summary shared successfully with: a@b.com, c@d.org"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.sender.count())
}

func TestSharePartialFailure(t *testing.T) {
	f := newFixture(t, 0)
	f.ws.EditSummary("# Summary")
	f.sender.fail = map[string]bool{"c@d.org": true}

	require.Equal(t, http.StatusAccepted,
		f.doJSON(f.h.Share, http.MethodPost, "/api/share", map[string]string{"recipients": "a@b.com, c@d.org"}).Code)

	f.waitIdle(t)
	var notices []model.Notice
	require.Eventually(t, func() bool {
		notices = append(notices, f.ws.DrainNotices()...)
		return len(notices) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, model.NoticeSuccess, notices[0].Kind)
	assert.Equal(t, "Could not deliver to: c@d.org", notices[1].Message)
}

func TestNoticesDrain(t *testing.T) {
	f := newFixture(t, 0)
	f.ws.Notify(model.NoticeInfo, "hello")

	rr := f.do(f.h.Notices, http.MethodGet, "/api/notices", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "hello")

	rr = f.do(f.h.Notices, http.MethodGet, "/api/notices", nil, "")
	assert.JSONEq(t, `{"notices":[]}`, rr.Body.String())
}

func TestPageRendersState(t *testing.T) {
	f := newFixture(t, 0)

	rr := f.do(f.h.Page, http.MethodGet, "/", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), workspace.GenerateHint)
	assert.Contains(t, rr.Body.String(), "Preview will appear here...")
	assert.Contains(t, rr.Body.String(), "[Create a detailed technical summary]")

	f.ready(t)
	rr = f.do(f.h.Page, http.MethodGet, "/", nil, "")
	assert.Contains(t, rr.Body.String(), "minutes.txt 0.0 KB")
}

func TestGetWithoutWorkspace(t *testing.T) {
	f := newFixture(t, 0)
	rr := httptest.NewRecorder()
	f.h.Get(rr, httptest.NewRequest(http.MethodGet, "/api/workspace", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestGenerateGlobalLimit(t *testing.T) {
	f := newFixture(t, 0)
	f.h.opts.GenerateLimiter = security.NewRateLimiter(1)
	f.ready(t)

	require.Equal(t, http.StatusAccepted, f.do(f.h.Generate, http.MethodPost, "/api/generate", nil, "").Code)
	f.waitIdle(t)

	rr := f.do(f.h.Generate, http.MethodPost, "/api/generate", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, msgGenerateLimited, decodeState(t, rr).Error)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
}

type hookLimiter struct {
	onAllow  func()
	released int
}

func (l *hookLimiter) Allow() bool {
	if l.onAllow != nil {
		l.onAllow()
	}
	return true
}

func (l *hookLimiter) Release()                  { l.released++ }
func (l *hookLimiter) RetryAfter() time.Duration { return 0 }

func TestGenerateReleasesSlotWhenBusy(t *testing.T) {
	f := newFixture(t, 0)
	f.ready(t)
	f.sum.release = make(chan struct{})

	// Another trigger wins the race between the guard and the start.
	lim := &hookLimiter{onAllow: func() {
		require.NoError(t, f.ws.StartGenerate(context.Background(), nil))
	}}
	f.h.opts.GenerateLimiter = lim

	rr := f.do(f.h.Generate, http.MethodPost, "/api/generate", nil, "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, 1, lim.released)

	close(f.sum.release)
	f.waitIdle(t)
}

func TestPageLogsThroughHandlerLogger(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	tmpl := template.Must(template.New("index.html").Parse(`{{.Missing}}`))
	h := NewWorkspaceHandler(logger, prompts.Default(), &uploadCounter{}, tmpl, WorkspaceOptions{})
	ws := workspace.New("ws-log", &echoSummarizer{}, &recordingSender{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(appmw.WithWorkspace(req.Context(), ws))
	h.Page(httptest.NewRecorder(), req)

	assert.Contains(t, logs.String(), "page: template error")
}
