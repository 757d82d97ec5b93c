// Package summarize folds token-bounded chunks into a running summary through serial
// chat completions that carry the model's earlier replies forward.
package summarize

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/GriffinCanCode/scribe/internal/chunker"
	apperrors "github.com/GriffinCanCode/scribe/internal/errors"
	"github.com/GriffinCanCode/scribe/internal/trace"
)

// DefaultSystemPrompt is the standing instruction when the caller supplies none.
const DefaultSystemPrompt = "Summarize the following text and extract the next actions."

// Role tags a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged entry of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Completer returns one reply for an ordered message list.
type Completer interface {
	Complete(ctx context.Context, model string, messages []Message) (Message, error)
}

// Reducer holds the conversation context of one summarization. It is not safe for
// concurrent use; each step depends on the previous step's reply.
type Reducer struct {
	completer Completer
	model     string
	messages  []Message
	steps     int
	failures  int
}

// NewReducer seeds the context with a single system message.
func NewReducer(c Completer, model, system string) *Reducer {
	if system == "" {
		system = DefaultSystemPrompt
	}
	return &Reducer{
		completer: c,
		model:     model,
		messages:  []Message{{Role: RoleSystem, Content: system}},
	}
}

// request builds the per-call list: every system and assistant message plus the new chunk.
// Earlier user messages are not resent.
func (r *Reducer) request(chunk string) []Message {
	out := make([]Message, 0, len(r.messages)/2+2)
	for _, m := range r.messages {
		if m.Role == RoleSystem || m.Role == RoleAssistant {
			out = append(out, m)
		}
	}
	return append(out, Message{Role: RoleUser, Content: chunk})
}

// Fold submits one chunk. On success the chunk and the reply are appended to the context;
// on failure the context is left unchanged and the error is returned.
func (r *Reducer) Fold(ctx context.Context, chunk string) error {
	ctx, span := trace.StartSpan(ctx, "summarize.fold")
	defer span.End()
	span.SetAttr("step", r.steps)
	r.steps++

	user := Message{Role: RoleUser, Content: chunk}
	reply, err := r.completer.Complete(ctx, r.model, r.request(chunk))
	if err != nil {
		r.failures++
		trace.Logger(ctx).Warn("summary step failed, skipping chunk", "step", r.steps-1, "error", err)
		return err
	}
	reply.Role = RoleAssistant
	r.messages = append(r.messages, user, reply)
	return nil
}

// Messages returns a copy of the conversation context.
func (r *Reducer) Messages() []Message {
	return append([]Message(nil), r.messages...)
}

// Failures returns the number of steps whose completion failed.
func (r *Reducer) Failures() int { return r.failures }

// Summary joins every assistant reply in order, one per line.
func (r *Reducer) Summary() string {
	var parts []string
	for _, m := range r.messages {
		if m.Role == RoleAssistant {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n")
}

// Options configures Summarize.
type Options struct {
	Model  string
	System string
	Budget int // tokens per chunk
}

// Result is the outcome of a whole summarization.
type Result struct {
	Summary  string
	Chunks   int
	Failures int
	Messages []Message
}

// Summarize chunks text and folds every non-empty chunk in order. Failed steps are skipped;
// only cancellation of ctx aborts the fold. Text that is not valid UTF-8 is rejected.
func Summarize(ctx context.Context, c Completer, tok chunker.Tokenizer, text string, opts Options) (Result, error) {
	if !utf8.ValidString(text) {
		return Result{}, apperrors.New(apperrors.CodeInvalidArgument, "text is not valid UTF-8")
	}

	ctx, span := trace.StartSpan(ctx, "summarize")
	defer span.End()

	r := NewReducer(c, opts.Model, opts.System)
	var folded int
	for _, chunk := range chunker.Split(text, opts.Budget, tok) {
		if chunk == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		_ = r.Fold(ctx, chunk)
		folded++
	}

	span.SetAttr("chunks", folded)
	span.SetAttr("failures", r.Failures())
	trace.Logger(ctx).Info("summarization finished", "chunks", folded, "failures", r.Failures())

	return Result{
		Summary:  r.Summary(),
		Chunks:   folded,
		Failures: r.Failures(),
		Messages: r.Messages(),
	}, nil
}
