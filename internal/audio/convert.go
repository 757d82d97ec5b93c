package audio

import (
	"math"
	"strconv"
	"time"

	apperrors "github.com/GriffinCanCode/scribe/internal/errors"
)

// Clip is an encoded mono audio payload ready for the transcription service or storage.
type Clip struct {
	Data       []byte
	Ext        string
	SampleRate int
	Duration   time.Duration
}

// Downmix converts interleaved frames into one mono stream in [-1,1].
//
// Each channel is RMS gain-matched to the loudest channel before averaging so a quiet
// microphone is not drowned by a loud one. The gain is unclamped: a mostly silent channel
// with a brief burst can be amplified past full scale.
func Downmix(frames []Frame, channels int) ([]float32, error) {
	if len(frames) == 0 || channels <= 0 {
		return nil, apperrors.EmptyBuffer("no frames to convert")
	}

	perChannel := make([][]float32, channels)
	for _, f := range frames {
		for i, s := range f.Samples {
			ch := i % channels
			perChannel[ch] = append(perChannel[ch], float32(float64(s)/pcmScale))
		}
	}

	n := len(perChannel[0])
	rms := make([]float64, channels)
	var maxRMS float64
	for ch, samples := range perChannel {
		if len(samples) == 0 {
			return nil, apperrors.EmptyBuffer("channel has no samples").WithMetadata("channel", strconv.Itoa(ch))
		}
		n = min(n, len(samples))
		rms[ch] = rootMeanSquare(samples)
		maxRMS = max(maxRMS, rms[ch])
	}

	mono := make([]float32, n)
	for ch, samples := range perChannel {
		gain := 1.0
		if rms[ch] > 0 {
			gain = maxRMS / rms[ch]
		}
		for i := 0; i < n; i++ {
			mono[i] += float32(float64(samples[i]) * gain / float64(channels))
		}
	}
	return mono, nil
}

// Encode downmixes frames and wraps the result as a WAV clip.
func Encode(frames []Frame, f Format) (Clip, error) {
	mono, err := Downmix(frames, f.Channels)
	if err != nil {
		return Clip{}, err
	}
	data, err := EncodeWAV(mono, f.SampleRate)
	if err != nil {
		return Clip{}, err
	}
	return Clip{
		Data:       data,
		Ext:        "wav",
		SampleRate: f.SampleRate,
		Duration:   time.Duration(len(mono)) * time.Second / time.Duration(f.SampleRate),
	}, nil
}

func rootMeanSquare(samples []float32) float64 {
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
