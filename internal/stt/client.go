// Package stt sends encoded audio to a hosted speech-to-text endpoint.
package stt

import (
	"bytes"
	"context"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/GriffinCanCode/scribe/internal/apiclient"
	"github.com/GriffinCanCode/scribe/internal/audio"
	apperrors "github.com/GriffinCanCode/scribe/internal/errors"
	"github.com/GriffinCanCode/scribe/internal/trace"
)

// Limits of the hosted service.
const (
	DefaultModel           = "whisper-1"
	DefaultMaxPromptTokens = 225
	DefaultMaxPayload      = 25 << 20
)

// TokenCounter counts tokens in a prompt.
type TokenCounter interface {
	Count(text string) int
}

// Options configures a Client.
type Options struct {
	Model           string
	Prompt          string // priming text, bounded by MaxPromptTokens
	Language        string // ISO-639-1 hint, empty for auto-detect
	Translate       bool   // translate to English instead of transcribing
	MaxPromptTokens int
	MaxPayload      int
}

// Client transcribes clips. It is safe for concurrent use.
type Client struct {
	api  *apiclient.Client
	opts Options
}

// New validates the priming prompt against the token ceiling before any audio is sent.
func New(api *apiclient.Client, tok TokenCounter, opts Options) (*Client, error) {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.MaxPromptTokens <= 0 {
		opts.MaxPromptTokens = DefaultMaxPromptTokens
	}
	if opts.MaxPayload <= 0 {
		opts.MaxPayload = DefaultMaxPayload
	}
	if opts.Prompt != "" {
		if n := tok.Count(opts.Prompt); n > opts.MaxPromptTokens {
			return nil, apperrors.PromptTooLong(n, opts.MaxPromptTokens)
		}
	}
	return &Client{api: api, opts: opts}, nil
}

// Transcribe uploads one clip and returns its text.
func (c *Client) Transcribe(ctx context.Context, clip audio.Clip) (string, error) {
	ctx, span := trace.StartSpan(ctx, "stt.transcribe")
	defer span.End()
	span.SetAttr("bytes", len(clip.Data))

	if len(clip.Data) > c.opts.MaxPayload {
		err := apperrors.Newf(apperrors.CodeInvalidArgument, "clip is %d bytes, limit is %d", len(clip.Data), c.opts.MaxPayload)
		return "", apperrors.TranscriptionFailure(err)
	}

	ext := clip.Ext
	if ext == "" {
		ext = "wav"
	}
	name := uuid.NewString() + "." + ext

	op := "transcription"
	if c.opts.Translate {
		op = "translation"
	}

	resp, err := apiclient.Do(ctx, c.api, op, func(ctx context.Context, api *openai.Client) (openai.AudioResponse, error) {
		req := openai.AudioRequest{
			Model:    c.opts.Model,
			FilePath: name,
			Reader:   bytes.NewReader(clip.Data),
			Prompt:   c.opts.Prompt,
			Format:   openai.AudioResponseFormatJSON,
		}
		if c.opts.Translate {
			return api.CreateTranslation(ctx, req)
		}
		req.Language = c.opts.Language
		return api.CreateTranscription(ctx, req)
	})
	if err != nil {
		return "", apperrors.TranscriptionFailure(err).WithMetadata("file", name)
	}

	trace.Logger(ctx).Debug("clip transcribed",
		"file", name,
		"duration", clip.Duration,
		"chars", len(resp.Text))
	return resp.Text, nil
}
