// Package metrics defines the Prometheus metrics exported by scribe.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/GriffinCanCode/scribe/internal/resilience"
)

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Capture and segmentation
	FramesReceived prometheus.Counter
	FramesSilent   prometheus.Counter
	FramesDropped  prometheus.Counter
	TicksSkipped   prometheus.Counter

	// Clips
	ClipsEmitted prometheus.Counter
	ClipsDropped prometheus.Counter
	ClipDuration prometheus.Histogram
	QueueDepth   prometheus.Gauge

	// External calls
	TranscriptionFailures prometheus.Counter
	CompletionFailures    prometheus.Counter
	OfflineSegments       prometheus.Counter
	BreakerState          *prometheus.GaugeVec
}

// New creates and registers all metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FramesReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "scribe_frames_received_total",
			Help: "Total number of capture frames delivered to the segmenter",
		}),
		FramesSilent: f.NewCounter(prometheus.CounterOpts{
			Name: "scribe_frames_silent_total",
			Help: "Total number of frames discarded as silence",
		}),
		FramesDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "scribe_frames_dropped_total",
			Help: "Total number of frames dropped because the consumer fell behind",
		}),
		TicksSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "scribe_ticks_skipped_total",
			Help: "Total number of emission ticks below the fill threshold",
		}),
		ClipsEmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "scribe_clips_emitted_total",
			Help: "Total number of clips queued for transcription",
		}),
		ClipsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "scribe_clips_dropped_total",
			Help: "Total number of clips dropped because the transcription queue was full",
		}),
		ClipDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "scribe_clip_duration_seconds",
			Help:    "Duration of emitted clips",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8), // 1s to ~2 minutes
		}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "scribe_clip_queue_depth",
			Help: "Current number of clips waiting for transcription",
		}),
		TranscriptionFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "scribe_transcription_failures_total",
			Help: "Total number of clips whose transcription failed",
		}),
		CompletionFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "scribe_completion_failures_total",
			Help: "Total number of summary steps whose completion failed",
		}),
		OfflineSegments: f.NewCounter(prometheus.CounterOpts{
			Name: "scribe_offline_segments_total",
			Help: "Total number of recording segments transcribed offline",
		}),
		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "scribe_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		}, []string{"breaker"}),
	}
}

func (m *Metrics) FrameReceived() {
	if m != nil {
		m.FramesReceived.Inc()
	}
}

func (m *Metrics) FrameSilent() {
	if m != nil {
		m.FramesSilent.Inc()
	}
}

func (m *Metrics) FrameDropped() {
	if m != nil {
		m.FramesDropped.Inc()
	}
}

func (m *Metrics) TickSkipped() {
	if m != nil {
		m.TicksSkipped.Inc()
	}
}

// ClipEmitted records a queued clip of the given length in seconds.
func (m *Metrics) ClipEmitted(seconds float64) {
	if m != nil {
		m.ClipsEmitted.Inc()
		m.ClipDuration.Observe(seconds)
	}
}

func (m *Metrics) ClipDropped() {
	if m != nil {
		m.ClipsDropped.Inc()
	}
}

func (m *Metrics) SetQueueDepth(n int) {
	if m != nil {
		m.QueueDepth.Set(float64(n))
	}
}

func (m *Metrics) TranscriptionFailed() {
	if m != nil {
		m.TranscriptionFailures.Inc()
	}
}

// CompletionFailed adds n failed summary steps.
func (m *Metrics) CompletionFailed(n int) {
	if m != nil {
		m.CompletionFailures.Add(float64(n))
	}
}

func (m *Metrics) OfflineSegment() {
	if m != nil {
		m.OfflineSegments.Inc()
	}
}

// BreakerHook returns a state-change callback for a named breaker.
func (m *Metrics) BreakerHook(name string) func(from, to resilience.State) {
	return func(_, to resilience.State) {
		if m != nil {
			m.BreakerState.WithLabelValues(name).Set(float64(to))
		}
	}
}
