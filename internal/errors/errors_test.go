package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestAppErrorMessage(t *testing.T) {
	err := Wrap(fmt.Errorf("boom"), CodeSourceUnreadable, "cannot probe").WithMetadata("path", "a.mp3")

	msg := err.Error()
	for _, want := range []string{"[SOURCE_UNREADABLE]", "cannot probe", "a.mp3", "caused by: boom"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}

func TestIsCodeThroughWrapping(t *testing.T) {
	base := EmptyBuffer("no frames")
	wrapped := fmt.Errorf("convert: %w", base)

	if !IsCode(wrapped, CodeEmptyBuffer) {
		t.Error("IsCode should see through fmt wrapping")
	}
	if IsCode(wrapped, CodePromptTooLong) {
		t.Error("IsCode matched the wrong code")
	}
	if IsCode(stderrors.New("plain"), CodeEmptyBuffer) {
		t.Error("IsCode matched a plain error")
	}
}

func TestGRPCCodeMapping(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want codes.Code
	}{
		{CodeDeviceUnavailable, codes.FailedPrecondition},
		{CodeEmptyBuffer, codes.InvalidArgument},
		{CodePromptTooLong, codes.InvalidArgument},
		{CodeRateLimited, codes.ResourceExhausted},
		{CodeTranscriptionFailed, codes.Internal},
		{CodeUnavailable, codes.Unavailable},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			if got := New(tt.code, "x").GRPCCode(); got != tt.want {
				t.Errorf("GRPCCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatusRoundTrip(t *testing.T) {
	orig := PromptTooLong(300, 225)

	st, ok := status.FromError(orig)
	if !ok {
		t.Fatal("status.FromError should recognize AppError")
	}
	if st.Code() != codes.InvalidArgument {
		t.Errorf("status code = %v, want %v", st.Code(), codes.InvalidArgument)
	}

	back := FromGRPCError(st.Err())
	if back.Code != CodePromptTooLong {
		t.Errorf("FromGRPCError code = %v, want %v", back.Code, CodePromptTooLong)
	}
}

func TestFromGRPCErrorFallback(t *testing.T) {
	err := status.Error(codes.Unavailable, "down")
	if got := FromGRPCError(err).Code; got != CodeUnavailable {
		t.Errorf("code = %v, want %v", got, CodeUnavailable)
	}

	plain := FromGRPCError(stderrors.New("plain"))
	if plain.Code != CodeUnknown {
		t.Errorf("plain code = %v, want %v", plain.Code, CodeUnknown)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limited", New(CodeRateLimited, "slow down"), true},
		{"unavailable", New(CodeUnavailable, "down"), true},
		{"prompt too long", PromptTooLong(1, 0), false},
		{"plain", stderrors.New("x"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}
