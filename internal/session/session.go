package session

import (
	"context"
	"sync"
	"time"

	"github.com/GriffinCanCode/scribe/internal/artifact"
	"github.com/GriffinCanCode/scribe/internal/audio"
	apperrors "github.com/GriffinCanCode/scribe/internal/errors"
	"github.com/GriffinCanCode/scribe/internal/metrics"
	"github.com/GriffinCanCode/scribe/internal/trace"
	"github.com/GriffinCanCode/scribe/internal/transcript"
)

// Clip queue policies when the transcription worker falls behind.
const (
	PolicyDrop  = "drop"
	PolicyBlock = "block"
)

// Transcriber turns one clip into text.
type Transcriber interface {
	Transcribe(ctx context.Context, clip audio.Clip) (string, error)
}

// Config configures a Session.
type Config struct {
	Segmenter   SegmenterConfig
	QueueSize   int
	QueuePolicy string
}

// Session wires a capture source through the segmenter to transcription.
type Session struct {
	src     audio.Source
	stt     Transcriber
	sink    artifact.Sink
	store   *transcript.Store
	metrics *metrics.Metrics
	cfg     Config
	now     func() time.Time

	mu       sync.Mutex
	started  bool
	stopped  bool
	format   audio.Format
	seg      *Segmenter
	clips    chan audio.Clip
	cancel   context.CancelFunc
	loopDone chan struct{}
	workDone chan struct{}
}

// New creates a session. The store receives every transcribed fragment.
func New(src audio.Source, stt Transcriber, sink artifact.Sink, store *transcript.Store, cfg Config, m *metrics.Metrics) *Session {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if cfg.QueuePolicy == "" {
		cfg.QueuePolicy = PolicyDrop
	}
	return &Session{
		src:     src,
		stt:     stt,
		sink:    sink,
		store:   store,
		metrics: m,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Transcript returns the session's transcript store.
func (s *Session) Transcript() *transcript.Store { return s.store }

// Events announces each transcribed fragment.
func (s *Session) Events() <-chan transcript.Event { return s.store.Events() }

// Format returns the capture format once the session has started.
func (s *Session) Format() audio.Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

// Start opens the source and begins segmenting. A missing input device fails here.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	format, err := s.src.Open()
	if err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	if err := s.src.Start(loopCtx); err != nil {
		cancel()
		_ = s.src.Close()
		return err
	}

	s.format = format
	s.seg = NewSegmenter(format, s.cfg.Segmenter, s.metrics)
	s.clips = make(chan audio.Clip, s.cfg.QueueSize)
	s.cancel = cancel
	s.loopDone = make(chan struct{})
	s.workDone = make(chan struct{})
	s.started = true

	// in-flight transcriptions finish on their own terms after Stop
	go s.work(context.WithoutCancel(ctx))
	go s.loop(loopCtx)

	trace.Logger(ctx).Info("session started",
		"sample_rate", format.SampleRate,
		"channels", format.Channels,
		"window_frames", s.seg.Window(),
		"min_frames", s.seg.MinFrames())
	return nil
}

func (s *Session) loop(ctx context.Context) {
	defer close(s.loopDone)

	ticker := time.NewTicker(s.cfg.Segmenter.Interval)
	defer ticker.Stop()

	frames := s.src.Frames()
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				frames = nil
				continue
			}
			s.seg.OnFrame(f)
		case <-ticker.C:
			s.emit(ctx)
		}
	}
}

// emit converts a ready active buffer into a clip and queues it for transcription.
func (s *Session) emit(ctx context.Context) {
	frames, ok := s.seg.Tick()
	if !ok {
		return
	}

	ctx, span := trace.StartSpan(ctx, "session.emit")
	defer span.End()
	span.SetAttr("frames", len(frames))
	log := trace.Logger(ctx)

	clip, err := audio.Encode(frames, s.format)
	if err != nil {
		log.Warn("clip conversion failed", "error", err)
		return
	}

	if s.cfg.QueuePolicy == PolicyBlock {
		select {
		case s.clips <- clip:
		case <-ctx.Done():
			log.Warn("session stopping, clip discarded")
			return
		}
	} else {
		select {
		case s.clips <- clip:
		default:
			s.metrics.ClipDropped()
			log.Warn("transcription queue full, dropping clip", "duration", clip.Duration)
			return
		}
	}
	s.metrics.ClipEmitted(clip.Duration.Seconds())
	s.metrics.SetQueueDepth(len(s.clips))
}

func (s *Session) work(ctx context.Context) {
	defer close(s.workDone)
	for clip := range s.clips {
		s.metrics.SetQueueDepth(len(s.clips))
		s.transcribe(ctx, clip)
	}
}

func (s *Session) transcribe(ctx context.Context, clip audio.Clip) {
	ctx, span := trace.StartSpan(ctx, "session.transcribe")
	defer span.End()

	text, err := s.stt.Transcribe(ctx, clip)
	if err != nil {
		// the audio is already drained; this fragment is lost
		s.metrics.TranscriptionFailed()
		span.SetAttr("error", err.Error())
		trace.Logger(ctx).Warn("transcription failed, fragment dropped", "error", err)
		return
	}
	f := s.store.Add(text)
	trace.Logger(ctx).Info("transcribed", "seq", f.Seq, "text", f.Text)
}

// Stop ends capture, cancels the tick, saves the session audio and waits for queued
// clips to be transcribed. A pending active-buffer remainder is not transcribed.
// When nothing was captured the path is empty and the error is EMPTY_BUFFER.
func (s *Session) Stop(ctx context.Context) (string, error) {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return "", nil
	}
	s.stopped = true
	s.mu.Unlock()

	ctx, span := trace.StartSpan(ctx, "session.stop")
	defer span.End()
	log := trace.Logger(ctx)

	s.src.Stop()
	s.cancel()
	<-s.loopDone

	path, saveErr := s.save(ctx)

	close(s.clips)
	<-s.workDone

	if err := s.src.Close(); err != nil {
		log.Warn("closing audio source failed", "error", err)
	}
	log.Info("session stopped", "artifact", path, "fragments", s.store.Len())
	return path, saveErr
}

func (s *Session) save(ctx context.Context) (string, error) {
	frames := s.seg.DrainSession()
	clip, err := audio.Encode(frames, s.format)
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeEmptyBuffer) {
			trace.Logger(ctx).Info("no speech captured, nothing to save")
		}
		return "", err
	}
	return s.sink.Save(ctx, clip.Data, clip.Ext, s.now())
}
