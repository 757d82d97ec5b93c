package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc/codes"

	apperrors "github.com/GriffinCanCode/scribe/internal/errors"
	"github.com/GriffinCanCode/scribe/internal/summarize"
	"github.com/GriffinCanCode/scribe/internal/trace"
	"github.com/GriffinCanCode/scribe/internal/transcript"
)

// Message types.
type Message struct {
	Type string `json:"type"`
}

// SummarizeRequest asks for a summary over WebSocket. Text defaults to the live transcript.
type SummarizeRequest struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

type TranscriptMessage struct {
	Type string `json:"type"`
	Seq  int    `json:"seq"`
	Text string `json:"text"`
}

type SummaryMessage struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Chunks   int    `json:"chunks"`
	Failures int    `json:"failures"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Stopper ends the live session and returns the saved artifact path.
type Stopper interface {
	Stop(ctx context.Context) (string, error)
}

// Summarizer folds text into a summary.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (summarize.Result, error)
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	store    *transcript.Store
	session  Stopper
	sum      Summarizer
	gatherer prometheus.Gatherer
	limiter  *ipLimiter

	mu    sync.RWMutex
	conns map[*websocket.Conn]struct{}
	done  chan struct{}
	once  sync.Once
}

// New creates a server and starts broadcasting store events. session and sum may be nil,
// in which case their endpoints answer 503.
func New(store *transcript.Store, session Stopper, sum Summarizer, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		store:    store,
		session:  session,
		sum:      sum,
		gatherer: gatherer,
		limiter:  newIPLimiter(),
		conns:    make(map[*websocket.Conn]struct{}),
		done:     make(chan struct{}),
	}

	go s.broadcastTranscripts()
	go s.limiter.runCleanup(s.done)

	return s
}

// Close stops the background goroutines. Open connections are left to the HTTP server.
func (s *Server) Close() {
	s.once.Do(func() { close(s.done) })
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("GET /api/transcript", s.handleTranscript)
	mux.HandleFunc("POST /api/summarize", s.rateLimited(s.handleSummarize))
	mux.HandleFunc("POST /api/session/stop", s.handleStop)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	// trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientIP(r)) {
			writeError(w, apperrors.New(apperrors.CodeRateLimited, "rate limit exceeded"))
			return
		}
		next(w, r)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	baseCtx := r.Context()
	log := trace.Logger(baseCtx)
	ip := clientIP(r)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	for {
		var raw json.RawMessage
		if err := wsjson.Read(baseCtx, conn, &raw); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		if !s.limiter.allow(ip) {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			s.write(baseCtx, conn, ErrorMessage{Type: "error", Code: apperrors.CodeRateLimited.String(), Message: "rate limit exceeded"})
			continue
		}

		var base Message
		if err := json.Unmarshal(raw, &base); err != nil {
			continue
		}

		switch base.Type {
		case "summarize":
			var req SummarizeRequest
			if err := json.Unmarshal(raw, &req); err != nil {
				continue
			}
			ctx := baseCtx
			if tc, ok := trace.ExtractFromJSON(raw); ok {
				ctx = trace.WithContext(ctx, tc)
			}
			s.handleSummarizeMessage(ctx, conn, req.Text)
		default:
			log.Debug("ignoring websocket message", "type", base.Type)
		}
	}
}

func (s *Server) handleSummarizeMessage(ctx context.Context, conn *websocket.Conn, text string) {
	ctx, span := trace.StartSpan(ctx, "ws_summarize")
	defer span.End()

	res, err := s.summarize(ctx, text)
	if err != nil {
		span.SetAttr("error", err.Error())
		trace.Logger(ctx).Error("summarize error", "error", err)
		s.write(ctx, conn, errorMessage(err))
		return
	}
	s.write(ctx, conn, SummaryMessage{Type: "summary", Text: res.Summary, Chunks: res.Chunks, Failures: res.Failures})
}

func (s *Server) summarize(ctx context.Context, text string) (summarize.Result, error) {
	if s.sum == nil {
		return summarize.Result{}, apperrors.New(apperrors.CodeUnavailable, "summarization is not configured")
	}
	if text == "" {
		text = s.store.Text()
	}
	return s.sum.Summarize(ctx, text)
}

func (s *Server) write(ctx context.Context, conn *websocket.Conn, msg any) {
	ctx, cancel := context.WithTimeout(ctx, WriteTimeout)
	defer cancel()
	_ = wsjson.Write(ctx, conn, msg)
}

func (s *Server) broadcastTranscripts() {
	events := s.store.Events()
	for {
		select {
		case <-s.done:
			return
		case evt := <-events:
			msg := TranscriptMessage{Type: "transcript", Seq: evt.Seq, Text: evt.Text}

			s.mu.RLock()
			for conn := range s.conns {
				go s.write(context.Background(), conn, msg)
			}
			s.mu.RUnlock()
		}
	}
}

type transcriptResponse struct {
	Text      string                `json:"text"`
	Fragments []transcript.Fragment `json:"fragments"`
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, transcriptResponse{
		Text:      s.store.Text(),
		Fragments: s.store.Fragments(),
	})
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	ctx, span := trace.StartSpan(r.Context(), "http_summarize")
	defer span.End()

	var req SummarizeRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxSummarizeBody))
	if err != nil {
		writeError(w, apperrors.Wrap(err, apperrors.CodeInvalidArgument, "failed to read request body"))
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, apperrors.Wrap(err, apperrors.CodeInvalidArgument, "invalid JSON body"))
			return
		}
	}

	res, err := s.summarize(ctx, req.Text)
	if err != nil {
		span.SetAttr("error", err.Error())
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SummaryMessage{Type: "summary", Text: res.Summary, Chunks: res.Chunks, Failures: res.Failures})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if s.session == nil {
		writeError(w, apperrors.New(apperrors.CodeUnavailable, "no live session"))
		return
	}
	path, err := s.session.Stop(r.Context())
	if err != nil && !apperrors.IsCode(err, apperrors.CodeEmptyBuffer) {
		trace.Logger(r.Context()).Error("session stop failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped", "artifact": path})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, httpStatus(err), errorMessage(err))
}

func errorMessage(err error) ErrorMessage {
	msg := ErrorMessage{Type: "error", Code: apperrors.CodeUnknown.String(), Message: err.Error()}
	var appErr *apperrors.AppError
	if stderrors.As(err, &appErr) {
		msg.Code = appErr.Code.String()
		msg.Message = appErr.Message
	}
	return msg
}

func httpStatus(err error) int {
	var appErr *apperrors.AppError
	if !stderrors.As(err, &appErr) {
		return http.StatusInternalServerError
	}
	switch appErr.GRPCCode() {
	case codes.InvalidArgument, codes.FailedPrecondition:
		return http.StatusBadRequest
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
