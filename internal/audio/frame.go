// Package audio handles capture, sample conversion, and clip encoding.
package audio

import (
	"math"
	"time"
)

// pcmScale converts signed 16-bit samples to [-1,1].
const pcmScale = 32768.0

// Format describes the stream a Source delivers.
type Format struct {
	SampleRate      int
	Channels        int
	FramesPerBuffer int
}

// FramesPerSecond is how many Frames the source delivers each second.
func (f Format) FramesPerSecond() float64 {
	if f.FramesPerBuffer <= 0 {
		return 0
	}
	return float64(f.SampleRate) / float64(f.FramesPerBuffer)
}

// Frame is one capture callback's worth of interleaved signed 16-bit PCM.
// Frames are not mutated after they are produced.
type Frame struct {
	Samples   []int16
	Channels  int
	Timestamp int64
}

// NewFrame copies buf so the capture buffer can be reused.
func NewFrame(buf []int16, channels int) Frame {
	return Frame{
		Samples:   append([]int16(nil), buf...),
		Channels:  channels,
		Timestamp: time.Now().UnixNano(),
	}
}

// Len returns the number of samples per channel.
func (f Frame) Len() int {
	if f.Channels <= 0 {
		return 0
	}
	return len(f.Samples) / f.Channels
}

// Peak returns the largest absolute sample across every channel, normalized to [0,1].
func (f Frame) Peak() float64 {
	var peak float64
	for _, s := range f.Samples {
		if v := math.Abs(float64(s)) / pcmScale; v > peak {
			peak = v
		}
	}
	return min(peak, 1)
}
