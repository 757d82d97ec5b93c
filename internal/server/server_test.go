package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus"

	apperrors "github.com/GriffinCanCode/scribe/internal/errors"
	"github.com/GriffinCanCode/scribe/internal/metrics"
	"github.com/GriffinCanCode/scribe/internal/summarize"
	"github.com/GriffinCanCode/scribe/internal/transcript"
)

type mockStopper struct {
	path  string
	err   error
	calls int
}

func (m *mockStopper) Stop(context.Context) (string, error) {
	m.calls++
	return m.path, m.err
}

type mockSummarizer struct {
	got string
	err error
}

func (m *mockSummarizer) Summarize(_ context.Context, text string) (summarize.Result, error) {
	m.got = text
	if m.err != nil {
		return summarize.Result{}, m.err
	}
	return summarize.Result{Summary: "short: " + text, Chunks: 1}, nil
}

func newTestServer(t *testing.T, stop Stopper, sum Summarizer) (*Server, *transcript.Store) {
	t.Helper()
	store := transcript.NewStore(16)
	reg := prometheus.NewRegistry()
	metrics.New(reg).ClipEmitted(2)
	s := New(store, stop, sum, reg)
	t.Cleanup(s.Close)
	return s, store
}

func TestCORSMiddleware(t *testing.T) {
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/test", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("OPTIONS status = %d, want %d", rec.Code, http.StatusOK)
	}
	if v := rec.Header().Get("Access-Control-Allow-Origin"); v != "*" {
		t.Errorf("CORS origin = %q, want %q", v, "*")
	}
	if v := rec.Header().Get("Access-Control-Allow-Methods"); v != "GET, POST, OPTIONS" {
		t.Errorf("CORS methods = %q, want %q", v, "GET, POST, OPTIONS")
	}
}

func TestTranscriptEndpoint(t *testing.T) {
	s, store := newTestServer(t, nil, nil)
	store.Add("hello")
	store.Add("world")

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/transcript", http.NoBody))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp transcriptResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Text != "hello\nworld\n" {
		t.Errorf("text = %q", resp.Text)
	}
	if len(resp.Fragments) != 2 || resp.Fragments[1].Seq != 1 {
		t.Errorf("fragments = %+v", resp.Fragments)
	}
}

func TestSummarizeEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantText string
	}{
		{"live transcript", "", nil, http.StatusOK, "live\n"},
		{"explicit text", `{"text":"given"}`, nil, http.StatusOK, "given"},
		{"bad json", `{`, nil, http.StatusBadRequest, ""},
		{"upstream failure", "", apperrors.New(apperrors.CodeUnavailable, "down"), http.StatusServiceUnavailable, "live\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum := &mockSummarizer{err: tt.err}
			s, store := newTestServer(t, nil, sum)
			store.Add("live")

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/summarize", strings.NewReader(tt.body))
			s.Handler().ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if sum.got != tt.wantText {
				t.Errorf("summarized %q, want %q", sum.got, tt.wantText)
			}
		})
	}
}

func TestSummarizeNotConfigured(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/summarize", http.NoBody))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	var msg ErrorMessage
	_ = json.Unmarshal(rec.Body.Bytes(), &msg)
	if msg.Code != "UNAVAILABLE" {
		t.Errorf("code = %q, want UNAVAILABLE", msg.Code)
	}
}

func TestStopEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		stop     *mockStopper
		wantCode int
		wantPath string
	}{
		{"saved", &mockStopper{path: ".output/2024-05-06-07-08.wav"}, http.StatusOK, ".output/2024-05-06-07-08.wav"},
		{"nothing captured", &mockStopper{err: apperrors.EmptyBuffer("no frames")}, http.StatusOK, ""},
		{"save failed", &mockStopper{err: apperrors.New(apperrors.CodeInternal, "disk full")}, http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, tt.stop, nil)
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/session/stop", http.NoBody))

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode == http.StatusOK {
				var resp map[string]string
				_ = json.Unmarshal(rec.Body.Bytes(), &resp)
				if resp["artifact"] != tt.wantPath {
					t.Errorf("artifact = %q, want %q", resp["artifact"], tt.wantPath)
				}
			}
			if tt.stop.calls != 1 {
				t.Errorf("Stop called %d times, want 1", tt.stop.calls)
			}
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	if !strings.Contains(rec.Body.String(), "scribe_clips_emitted_total 1") {
		t.Errorf("metrics output missing clip counter:\n%s", rec.Body.String())
	}
}

func TestRateLimiter(t *testing.T) {
	l := newIPLimiter()
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }

	for i := 0; i < IPRateLimitMessages; i++ {
		if !l.allow("10.0.0.1") {
			t.Fatalf("message %d rejected inside the limit", i)
		}
	}
	if l.allow("10.0.0.1") {
		t.Error("message over the limit allowed")
	}
	if !l.allow("10.0.0.2") {
		t.Error("other IP rejected")
	}

	now = now.Add(IPRateLimitWindow + time.Millisecond)
	if !l.allow("10.0.0.1") {
		t.Error("message rejected after the window passed")
	}

	now = now.Add(IPRateLimitEntryTTL + time.Second)
	if removed := l.cleanup(); removed != 2 {
		t.Errorf("cleanup() removed %d, want 2", removed)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperrors.New(apperrors.CodeInvalidArgument, "x"), http.StatusBadRequest},
		{apperrors.DeviceUnavailable(nil, "x"), http.StatusBadRequest},
		{apperrors.New(apperrors.CodeRateLimited, "x"), http.StatusTooManyRequests},
		{apperrors.New(apperrors.CodeTimeout, "x"), http.StatusGatewayTimeout},
		{apperrors.CompletionFailure(nil), http.StatusInternalServerError},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := httpStatus(tt.err); got != tt.want {
			t.Errorf("httpStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestWebSocket(t *testing.T) {
	sum := &mockSummarizer{}
	s, store := newTestServer(t, nil, sum)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	for {
		s.mu.RLock()
		n := len(s.conns)
		s.mu.RUnlock()
		if n == 1 {
			break
		}
		if ctx.Err() != nil {
			t.Fatal("connection never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	store.Add("first words")
	var tm TranscriptMessage
	if err := wsjson.Read(ctx, conn, &tm); err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	if tm.Type != "transcript" || tm.Text != "first words" || tm.Seq != 0 {
		t.Errorf("transcript message = %+v", tm)
	}

	if err := wsjson.Write(ctx, conn, SummarizeRequest{Type: "summarize", TraceID: "abc"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var sm SummaryMessage
	if err := wsjson.Read(ctx, conn, &sm); err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if sm.Type != "summary" || sm.Text != "short: first words\n" {
		t.Errorf("summary message = %+v", sm)
	}
}
