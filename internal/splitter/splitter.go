package splitter

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/scribe/internal/audio"
	"github.com/GriffinCanCode/scribe/internal/metrics"
	"github.com/GriffinCanCode/scribe/internal/trace"
)

// Transcriber turns one encoded segment into text.
type Transcriber interface {
	Transcribe(ctx context.Context, clip audio.Clip) (string, error)
}

type Options struct {
	MaxPayload  int    // bytes per segment upload
	BitrateKbps int    // segment encoding bitrate
	Format      string // segment container, e.g. "mp3"
	Concurrency int    // segments in flight at once
}

// Splitter cuts a recording into payload-sized segments and transcribes them concurrently.
type Splitter struct {
	tc      Transcoder
	stt     Transcriber
	opts    Options
	metrics *metrics.Metrics
}

func New(tc Transcoder, stt Transcriber, opts Options, m *metrics.Metrics) *Splitter {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Format == "" {
		opts.Format = "mp3"
	}
	return &Splitter{tc: tc, stt: stt, opts: opts, metrics: m}
}

// Plan probes path and sizes its segments.
func (s *Splitter) Plan(ctx context.Context, path string) (Plan, error) {
	total, err := s.tc.Duration(ctx, path)
	if err != nil {
		return Plan{}, err
	}
	return NewPlan(total, s.opts.MaxPayload, s.opts.BitrateKbps)
}

// Transcribe returns the transcript of path, segments joined in time order.
// Any segment failure fails the whole call; no partial transcript is returned.
func (s *Splitter) Transcribe(ctx context.Context, path string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "splitter.transcribe")
	defer span.End()
	log := trace.Logger(ctx)

	plan, err := s.Plan(ctx, path)
	if err != nil {
		return "", err
	}
	span.SetAttr("segments", plan.Count)
	log.Info("splitting recording",
		"path", path,
		"duration", plan.Total,
		"segments", plan.Count,
		"segment_duration", plan.SegmentDuration)

	texts := make([]string, plan.Count)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i := range plan.Count {
		g.Go(func() error {
			text, err := s.segment(gctx, path, plan, i)
			if err != nil {
				return err
			}
			texts[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return strings.Join(texts, "\n"), nil
}

func (s *Splitter) segment(ctx context.Context, path string, plan Plan, i int) (string, error) {
	ctx, span := trace.StartSpan(ctx, "splitter.segment")
	defer span.End()
	span.SetAttr("index", i)

	data, err := s.tc.Segment(ctx, path, plan.Offset(i), plan.SegmentDuration, s.opts.BitrateKbps, s.opts.Format)
	if err != nil {
		return "", err
	}
	text, err := s.stt.Transcribe(ctx, audio.Clip{
		Data:     data,
		Ext:      s.opts.Format,
		Duration: plan.SegmentDuration,
	})
	if err != nil {
		return "", err
	}
	s.metrics.OfflineSegment()
	trace.Logger(ctx).Debug("segment transcribed", "index", i, "bytes", len(data))
	return text, nil
}
