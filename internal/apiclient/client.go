// Package apiclient provides the transport for the hosted speech-to-text and chat APIs.
package apiclient

import (
	"context"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	apperrors "github.com/GriffinCanCode/scribe/internal/errors"
	"github.com/GriffinCanCode/scribe/internal/resilience"
	"github.com/GriffinCanCode/scribe/internal/trace"
)

// Options configures a Client.
type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Breaker    resilience.Config
	Retry      resilience.RetryConfig
}

// Client wraps an OpenAI-compatible API with retry and a circuit breaker.
type Client struct {
	api     *openai.Client
	breaker *resilience.Breaker
	retry   resilience.RetryConfig
}

// New creates a client. Zero-valued options fall back to package defaults.
func New(opts Options) *Client {
	cfg := openai.DefaultConfig(opts.APIKey)
	cfg.BaseURL = DefaultBaseURL
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	cfg.HTTPClient = opts.HTTPClient
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}

	retry := opts.Retry
	if retry.MaxRetries == 0 && retry.BaseDelay == 0 {
		retry = resilience.TransportRetryConfig()
	}

	return &Client{
		api:     openai.NewClientWithConfig(cfg),
		breaker: resilience.New(opts.Breaker),
		retry:   retry,
	}
}

// Breaker exposes the circuit breaker for health reporting.
func (c *Client) Breaker() *resilience.Breaker { return c.breaker }

// Do runs fn under the breaker, retrying transient failures. Errors come back classified.
func Do[T any](ctx context.Context, c *Client, op string, fn func(context.Context, *openai.Client) (T, error)) (T, error) {
	var out T
	attempt := 0
	err := resilience.Retry(ctx, c.retry, func() error {
		attempt++
		if err := c.breaker.Allow(); err != nil {
			return err
		}
		res, err := fn(ctx, c.api)
		if err != nil {
			err = Classify(err)
			if resilience.IsRetryable(err) {
				c.breaker.Failure()
			} else {
				// the service answered, so it is up
				c.breaker.Success()
			}
			trace.Logger(ctx).Debug("api call failed", "op", op, "attempt", attempt, "error", err)
			return err
		}
		c.breaker.Success()
		out = res
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Classify maps API and transport errors onto application error codes.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, resilience.ErrOpen) {
		return err
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fromHTTPStatus(apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fromHTTPStatus(reqErr.HTTPStatusCode, err)
	}
	return apperrors.Wrap(err, apperrors.CodeUnavailable, "request failed")
}

func fromHTTPStatus(code int, err error) error {
	switch {
	case code == http.StatusTooManyRequests:
		return apperrors.Wrap(err, apperrors.CodeRateLimited, "rate limited")
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return apperrors.Wrap(err, apperrors.CodeTimeout, "request timed out")
	case code >= 500 || code == 0:
		return apperrors.Wrap(err, apperrors.CodeUnavailable, "service unavailable")
	default:
		return apperrors.Wrap(err, apperrors.CodeInvalidArgument, "request rejected")
	}
}
