// Package errors provides unified error handling with a structured ErrorCode.
// Codes map onto gRPC status codes so domain failures travel through status.FromError,
// the retry classifier, and the health surface unchanged.
package errors

import (
	stderrors "errors"
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorDomain tags ErrorInfo details produced by this module.
const ErrorDomain = "scribe"

// ErrorCode classifies an AppError.
type ErrorCode int32

const (
	CodeUnknown ErrorCode = iota
	CodeInternal
	CodeInvalidArgument
	CodeUnavailable
	CodeTimeout
	CodeCancelled
	CodeRateLimited
	CodeConfigInvalid

	CodeDeviceUnavailable   // no default input device, fatal at session start
	CodeEmptyBuffer         // conversion attempted on zero frames
	CodeSourceUnreadable    // duration probe failed
	CodePromptTooLong       // priming prompt exceeds the token ceiling
	CodeTranscriptionFailed // speech-to-text call failed
	CodeCompletionFailed    // chat completion call failed
)

var codeNames = map[ErrorCode]string{
	CodeUnknown:             "UNKNOWN",
	CodeInternal:            "INTERNAL",
	CodeInvalidArgument:     "INVALID_ARGUMENT",
	CodeUnavailable:         "UNAVAILABLE",
	CodeTimeout:             "TIMEOUT",
	CodeCancelled:           "CANCELLED",
	CodeRateLimited:         "RATE_LIMITED",
	CodeConfigInvalid:       "CONFIG_INVALID",
	CodeDeviceUnavailable:   "DEVICE_UNAVAILABLE",
	CodeEmptyBuffer:         "EMPTY_BUFFER",
	CodeSourceUnreadable:    "SOURCE_UNREADABLE",
	CodePromptTooLong:       "PROMPT_TOO_LONG",
	CodeTranscriptionFailed: "TRANSCRIPTION_FAILED",
	CodeCompletionFailed:    "COMPLETION_FAILED",
}

func (c ErrorCode) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return codeNames[CodeUnknown]
}

// codeFromName is the inverse of codeNames.
func codeFromName(name string) ErrorCode {
	for c, n := range codeNames {
		if n == name {
			return c
		}
	}
	return CodeUnknown
}

// grpcCodeMap maps ErrorCode to gRPC status codes.
var grpcCodeMap = map[ErrorCode]codes.Code{
	CodeUnknown:             codes.Unknown,
	CodeInternal:            codes.Internal,
	CodeInvalidArgument:     codes.InvalidArgument,
	CodeUnavailable:         codes.Unavailable,
	CodeTimeout:             codes.DeadlineExceeded,
	CodeCancelled:           codes.Canceled,
	CodeRateLimited:         codes.ResourceExhausted,
	CodeConfigInvalid:       codes.InvalidArgument,
	CodeDeviceUnavailable:   codes.FailedPrecondition,
	CodeEmptyBuffer:         codes.InvalidArgument,
	CodeSourceUnreadable:    codes.InvalidArgument,
	CodePromptTooLong:       codes.InvalidArgument,
	CodeTranscriptionFailed: codes.Internal,
	CodeCompletionFailed:    codes.Internal,
}

// AppError is the base error type with structured error code and metadata.
type AppError struct {
	Code     ErrorCode
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code.String(), e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// GRPCCode returns the corresponding gRPC status code.
func (e *AppError) GRPCCode() codes.Code {
	if c, ok := grpcCodeMap[e.Code]; ok {
		return c
	}
	return codes.Unknown
}

// ToDetail converts to an ErrorInfo status detail.
func (e *AppError) ToDetail() *errdetails.ErrorInfo {
	info := &errdetails.ErrorInfo{Reason: e.Code.String(), Domain: ErrorDomain}
	if len(e.Metadata) > 0 {
		info.Metadata = e.Metadata
	}
	return info
}

// GRPCStatus returns a gRPC status with the ErrorInfo attached.
func (e *AppError) GRPCStatus() *status.Status {
	st := status.New(e.GRPCCode(), e.Error())
	if withDetail, err := st.WithDetails(e.ToDetail()); err == nil {
		st = withDetail
	}
	return st
}

// New creates a new AppError with the given code and message.
func New(code ErrorCode, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code ErrorCode, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code ErrorCode, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// DeviceUnavailable reports a missing or unusable default input device.
func DeviceUnavailable(cause error, msg string) *AppError {
	return Wrap(cause, CodeDeviceUnavailable, msg)
}

// EmptyBuffer reports a conversion attempted on no audio.
func EmptyBuffer(msg string) *AppError {
	return New(CodeEmptyBuffer, msg)
}

// SourceUnreadable reports a recording whose duration cannot be probed.
func SourceUnreadable(cause error, path string) *AppError {
	return Wrap(cause, CodeSourceUnreadable, "cannot probe source duration").WithMetadata("path", path)
}

// PromptTooLong reports a priming prompt above the token ceiling.
func PromptTooLong(tokens, limit int) *AppError {
	return Newf(CodePromptTooLong, "prompt is %d tokens, limit is %d", tokens, limit)
}

// TranscriptionFailure wraps a failed speech-to-text call.
func TranscriptionFailure(cause error) *AppError {
	return Wrap(cause, CodeTranscriptionFailed, "transcription failed")
}

// CompletionFailure wraps a failed chat completion call.
func CompletionFailure(cause error) *AppError {
	return Wrap(cause, CodeCompletionFailed, "completion failed")
}

// FromGRPCError extracts AppError from a gRPC error if present.
func FromGRPCError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	st, ok := status.FromError(err)
	if !ok {
		return &AppError{Code: CodeUnknown, Message: err.Error(), Cause: err}
	}

	for _, detail := range st.Details() {
		if info, ok := detail.(*errdetails.ErrorInfo); ok && info.Domain == ErrorDomain {
			return &AppError{Code: codeFromName(info.Reason), Message: st.Message(), Metadata: info.Metadata}
		}
	}

	// Fallback: map gRPC code to our error code
	return &AppError{Code: grpcToErrorCode(st.Code()), Message: st.Message()}
}

// grpcToErrorCode maps gRPC codes back to our error codes (best effort).
func grpcToErrorCode(c codes.Code) ErrorCode {
	switch c {
	case codes.InvalidArgument:
		return CodeInvalidArgument
	case codes.Unavailable:
		return CodeUnavailable
	case codes.DeadlineExceeded:
		return CodeTimeout
	case codes.Canceled:
		return CodeCancelled
	case codes.Internal:
		return CodeInternal
	case codes.ResourceExhausted:
		return CodeRateLimited
	default:
		return CodeUnknown
	}
}

// IsCode checks if an error chain carries a specific error code.
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsRetryable returns true if the error is potentially retryable.
func IsRetryable(err error) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	switch appErr.Code {
	case CodeUnavailable, CodeTimeout, CodeRateLimited:
		return true
	default:
		return false
	}
}
