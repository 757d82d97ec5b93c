package summarize

import (
	"context"

	"github.com/GriffinCanCode/scribe/internal/chunker"
	"github.com/GriffinCanCode/scribe/internal/metrics"
)

// Summarizer binds a completion boundary and tokenizer for repeated summarization.
type Summarizer struct {
	c       Completer
	tok     chunker.Tokenizer
	opts    Options
	metrics *metrics.Metrics
}

func NewSummarizer(c Completer, tok chunker.Tokenizer, opts Options, m *metrics.Metrics) *Summarizer {
	return &Summarizer{c: c, tok: tok, opts: opts, metrics: m}
}

// Summarize runs Summarize with the bound options and counts skipped chunks.
func (s *Summarizer) Summarize(ctx context.Context, text string) (Result, error) {
	res, err := Summarize(ctx, s.c, s.tok, text, s.opts)
	if err != nil {
		return Result{}, err
	}
	s.metrics.CompletionFailed(res.Failures)
	return res, nil
}
