package trace

import (
	"bytes"
	"context"
	"encoding/hex"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func isHex(s string, n int) bool {
	if len(s) != n {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

func TestGeneratedIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tc := New()
		if !isHex(tc.TraceID, 32) {
			t.Fatalf("TraceID = %q, want 32 hex chars", tc.TraceID)
		}
		if !isHex(tc.SpanID, 16) {
			t.Fatalf("SpanID = %q, want 16 hex chars", tc.SpanID)
		}
		if seen[tc.TraceID] {
			t.Fatal("generated duplicate trace ID")
		}
		seen[tc.TraceID] = true
	}
}

func TestNewChild(t *testing.T) {
	parent := New()
	child := NewChild(parent)

	if child.TraceID != parent.TraceID {
		t.Errorf("child TraceID = %q, want %q", child.TraceID, parent.TraceID)
	}
	if child.SpanID == parent.SpanID {
		t.Error("child reused the parent's span ID")
	}
	if child.ParentSpanID != parent.SpanID {
		t.Errorf("child ParentSpanID = %q, want %q", child.ParentSpanID, parent.SpanID)
	}
}

func TestEnsureContext(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Fatal("found a trace in an empty context")
	}

	ctx, tc := EnsureContext(context.Background())
	_, again := EnsureContext(ctx)
	if again != tc {
		t.Errorf("EnsureContext() = %+v, want existing %+v", again, tc)
	}
}

func TestMapRoundTrip(t *testing.T) {
	caller := Context{TraceID: "trace123", SpanID: "span456", ParentSpanID: "parent789"}
	m := caller.ToMap()
	if m[ParentSpanIDKey] != "parent789" {
		t.Errorf("ToMap() parent = %q, want parent789", m[ParentSpanIDKey])
	}

	tc := FromMap(m)
	if tc.TraceID != "trace123" {
		t.Errorf("TraceID = %q, want trace123", tc.TraceID)
	}
	if tc.ParentSpanID != "span456" {
		t.Errorf("ParentSpanID = %q, want the caller's span", tc.ParentSpanID)
	}
	if !isHex(tc.SpanID, 16) {
		t.Errorf("SpanID = %q, want a fresh span", tc.SpanID)
	}

	if fresh := FromMap(map[string]string{}); !isHex(fresh.TraceID, 32) {
		t.Errorf("FromMap(empty) TraceID = %q, want a generated one", fresh.TraceID)
	}
}

func TestSpans(t *testing.T) {
	ctx, parent := StartSpan(context.Background(), "parent")
	if parent.Ctx.ParentSpanID != "" {
		t.Errorf("root span has parent %q", parent.Ctx.ParentSpanID)
	}
	_, child := StartSpan(ctx, "child")

	if child.Ctx.TraceID != parent.Ctx.TraceID {
		t.Error("child span did not inherit the trace ID")
	}
	if child.Ctx.ParentSpanID != parent.Ctx.SpanID {
		t.Error("child span is not parented to the enclosing span")
	}

	if child.Duration() != 0 {
		t.Errorf("Duration() before End = %v, want 0", child.Duration())
	}
	child.SetAttr("frames", 12)
	child.End()
	end := child.EndTime
	child.End()

	if child.EndTime != end {
		t.Error("second End moved the end time")
	}
	if child.EndTime.Before(child.StartTime) {
		t.Error("span ended before it started")
	}
	if child.Attrs["frames"] != 12 {
		t.Errorf("Attrs[frames] = %v, want 12", child.Attrs["frames"])
	}
}

func TestLoggerCarriesIDs(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	tc := Context{TraceID: "t1", SpanID: "s1", ParentSpanID: "p1"}
	Logger(WithContext(context.Background(), tc)).Info("hello")

	for _, want := range []string{"trace_id=t1", "span_id=s1", "parent_span_id=p1"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("log line %q missing %q", buf.String(), want)
		}
	}
}

func TestMiddleware(t *testing.T) {
	var got Context
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/transcript", nil)
	req.Header.Set(TraceIDKey, "abc")
	req.Header.Set(SpanIDKey, "def")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got.TraceID != "abc" || got.ParentSpanID != "def" {
		t.Errorf("handler context = %+v, want trace abc parented to def", got)
	}
	if rec.Header().Get(TraceIDKey) != "abc" {
		t.Errorf("response %s = %q, want abc", TraceIDKey, rec.Header().Get(TraceIDKey))
	}
}

func TestExtractFromJSON(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		found bool
	}{
		{"with trace", `{"type":"summarize","trace_id":"abc"}`, true},
		{"without trace", `{"type":"summarize"}`, false},
		{"invalid", `{`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc, ok := ExtractFromJSON([]byte(tt.data))
			if ok != tt.found {
				t.Errorf("found = %v, want %v", ok, tt.found)
			}
			if tt.found && tc.TraceID != "abc" {
				t.Errorf("TraceID = %q, want abc", tc.TraceID)
			}
			if !tt.found && !isHex(tc.TraceID, 32) {
				t.Errorf("TraceID = %q, want a generated one", tc.TraceID)
			}
		})
	}
}

func TestUnaryServerInterceptor(t *testing.T) {
	md := metadata.Pairs(TraceIDKey, "remote", SpanIDKey, "caller")
	ctx := metadata.NewIncomingContext(context.Background(), md)

	var got Context
	handler := func(ctx context.Context, req any) (any, error) {
		got, _ = FromContext(ctx)
		return "ok", nil
	}
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	resp, err := UnaryServerInterceptor()(ctx, nil, info, handler)
	if err != nil || resp != "ok" {
		t.Fatalf("interceptor = %v, %v", resp, err)
	}
	if got.TraceID != "remote" {
		t.Errorf("TraceID = %q, want remote", got.TraceID)
	}
	// the handler runs in the call's span, whose parent is the caller
	if got.ParentSpanID == "" || got.ParentSpanID == "caller" {
		t.Errorf("handler ParentSpanID = %q, want the call span", got.ParentSpanID)
	}
}
