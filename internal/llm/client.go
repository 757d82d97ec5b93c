package llm

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/GriffinCanCode/scribe/internal/apiclient"
	apperrors "github.com/GriffinCanCode/scribe/internal/errors"
	"github.com/GriffinCanCode/scribe/internal/summarize"
	"github.com/GriffinCanCode/scribe/internal/trace"
)

// Client implements summarize.Completer over the chat completion API.
type Client struct {
	api *apiclient.Client
}

// New creates a completion client on top of a shared transport.
func New(api *apiclient.Client) *Client {
	return &Client{api: api}
}

// Complete sends messages to model and returns the first reply.
// Any failure, including an empty choice list, is a COMPLETION_FAILED error.
func (c *Client) Complete(ctx context.Context, model string, messages []summarize.Message) (summarize.Message, error) {
	ctx, span := trace.StartSpan(ctx, "llm.complete")
	defer span.End()
	span.SetAttr("model", model)
	span.SetAttr("messages", len(messages))

	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: make([]openai.ChatCompletionMessage, len(messages)),
	}
	for i, m := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}

	resp, err := apiclient.Do(ctx, c.api, "chat", func(ctx context.Context, api *openai.Client) (openai.ChatCompletionResponse, error) {
		return api.CreateChatCompletion(ctx, req)
	})
	if err != nil {
		return summarize.Message{}, apperrors.CompletionFailure(err).WithMetadata("model", model)
	}
	if len(resp.Choices) == 0 {
		return summarize.Message{}, apperrors.CompletionFailure(nil).WithMetadata("model", model)
	}

	choice := resp.Choices[0].Message
	trace.Logger(ctx).Debug("completion received", "model", model, "total_tokens", resp.Usage.TotalTokens)
	return summarize.Message{Role: summarize.RoleAssistant, Content: choice.Content}, nil
}
