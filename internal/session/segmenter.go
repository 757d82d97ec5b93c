// Package session runs a live capture session: voice-activity gating, periodic clip
// emission, transcription, and saving the session audio on stop.
package session

import (
	"sync"
	"time"

	"github.com/GriffinCanCode/scribe/internal/audio"
	"github.com/GriffinCanCode/scribe/internal/metrics"
	"github.com/GriffinCanCode/scribe/internal/syncx"
)

// SegmenterConfig controls silence gating and emission timing.
type SegmenterConfig struct {
	Threshold     float64       // peak amplitude below which a frame counts as quiet
	WindowSeconds float64       // trailing window that must be entirely quiet
	FillRatio     float64       // fraction of an interval's frames required to emit
	Interval      time.Duration // emission tick period
}

// DefaultSegmenterConfig returns the stock gating parameters.
func DefaultSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{
		Threshold:     0.02,
		WindowSeconds: 1.5,
		FillRatio:     0.8,
		Interval:      30 * time.Second,
	}
}

// Segmenter classifies frames as silent or active and decides when the active buffer
// is full enough to emit.
//
// Active frames go to two independent buffers: the active buffer, drained on each
// emission, and the session buffer, drained once when the session stops. Silent frames
// are stored in neither.
type Segmenter struct {
	cfg       SegmenterConfig
	format    audio.Format
	window    int
	minFrames float64
	metrics   *metrics.Metrics

	mu      sync.Mutex // guards history
	history *audio.VolumeHistory

	active  *syncx.Guard[[]audio.Frame]
	session *syncx.Guard[[]audio.Frame]
}

// NewSegmenter creates a segmenter for frames of the given format.
func NewSegmenter(f audio.Format, cfg SegmenterConfig, m *metrics.Metrics) *Segmenter {
	window := audio.WindowFrames(f, cfg.WindowSeconds)
	return &Segmenter{
		cfg:       cfg,
		format:    f,
		window:    window,
		minFrames: cfg.FillRatio * f.FramesPerSecond() * cfg.Interval.Seconds(),
		metrics:   m,
		history:   audio.NewVolumeHistory(window),
		active:    syncx.NewGuard[[]audio.Frame](nil),
		session:   syncx.NewGuard[[]audio.Frame](nil),
	}
}

// Window returns the number of trailing frames considered for silence.
func (s *Segmenter) Window() int { return s.window }

// MinFrames returns the active-buffer size an emission requires.
func (s *Segmenter) MinFrames() float64 { return s.minFrames }

// OnFrame records the frame's peak and keeps it unless the trailing window is silent.
// It reports whether the frame was kept.
func (s *Segmenter) OnFrame(f audio.Frame) bool {
	s.metrics.FrameReceived()

	s.mu.Lock()
	s.history.Push(f.Peak())
	silent := s.history.AllBelow(s.window, s.cfg.Threshold)
	s.mu.Unlock()

	if silent {
		s.metrics.FrameSilent()
		return false
	}
	syncx.Append(s.active, f)
	syncx.Append(s.session, f)
	return true
}

// Pending returns the number of frames waiting in the active buffer.
func (s *Segmenter) Pending() int { return syncx.Len(s.active) }

// Ready reports whether the active buffer holds enough frames to emit.
func (s *Segmenter) Ready() bool {
	return float64(s.Pending()) >= s.minFrames
}

// Tick drains the active buffer when it is ready. Below the threshold the buffer is
// left to accumulate and ok is false.
func (s *Segmenter) Tick() (frames []audio.Frame, ok bool) {
	if !s.Ready() {
		s.metrics.TickSkipped()
		return nil, false
	}
	return syncx.Drain(s.active), true
}

// DrainSession takes every frame kept since the session began.
func (s *Segmenter) DrainSession() []audio.Frame {
	return syncx.Drain(s.session)
}
