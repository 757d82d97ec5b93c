package audio

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"

	apperrors "github.com/GriffinCanCode/scribe/internal/errors"
)

// Source delivers captured Frames. Frames arrive in capture order on the channel
// returned by Frames, which is closed once the source stops.
type Source interface {
	Open() (Format, error)
	Start(ctx context.Context) error
	Frames() <-chan Frame
	Stop()
	Close() error
}

// PortAudioSource captures from an input device using the device's own sample rate
// and channel count.
type PortAudioSource struct {
	deviceName   string
	framesPerBuf int
	outCh        chan Frame
	onDrop       func()

	mu       sync.Mutex
	stream   *portaudio.Stream
	buf      []int16
	format   Format
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// NewPortAudioSource creates a source. An empty deviceName selects the system default input.
func NewPortAudioSource(deviceName string, framesPerBuf, bufferSize int) *PortAudioSource {
	return &PortAudioSource{
		deviceName:   deviceName,
		framesPerBuf: framesPerBuf,
		outCh:        make(chan Frame, bufferSize),
	}
}

// SetDropHook registers fn to run whenever a frame is dropped. Call before Start.
func (s *PortAudioSource) SetDropHook(fn func()) { s.onDrop = fn }

// Frames returns the channel for receiving captured frames.
func (s *PortAudioSource) Frames() <-chan Frame { return s.outCh }

// Open initializes the audio host and opens the input stream.
func (s *PortAudioSource) Open() (Format, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != nil {
		return s.format, nil
	}

	if err := portaudio.Initialize(); err != nil {
		return Format{}, apperrors.DeviceUnavailable(err, "audio host initialization failed")
	}

	dev, err := s.selectDevice()
	if err != nil {
		_ = portaudio.Terminate()
		return Format{}, err
	}

	channels := dev.MaxInputChannels
	s.buf = make([]int16, s.framesPerBuf*channels)
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: channels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      dev.DefaultSampleRate,
		FramesPerBuffer: s.framesPerBuf,
	}

	stream, err := portaudio.OpenStream(params, s.buf)
	if err != nil {
		_ = portaudio.Terminate()
		return Format{}, apperrors.DeviceUnavailable(err, "open input stream").WithMetadata("device", dev.Name)
	}

	s.stream = stream
	s.format = Format{
		SampleRate:      int(dev.DefaultSampleRate),
		Channels:        channels,
		FramesPerBuffer: s.framesPerBuf,
	}
	slog.Info("opened audio input",
		"device", dev.Name,
		"sample_rate", s.format.SampleRate,
		"channels", channels,
		"frames_per_buffer", s.framesPerBuf)
	return s.format, nil
}

func (s *PortAudioSource) selectDevice() (*portaudio.DeviceInfo, error) {
	if s.deviceName == "" {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, apperrors.DeviceUnavailable(err, "no default input device")
		}
		if dev.MaxInputChannels < 1 {
			return nil, apperrors.DeviceUnavailable(nil, "default device has no input channels").WithMetadata("device", dev.Name)
		}
		return dev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, apperrors.DeviceUnavailable(err, "enumerate devices")
	}
	if dev := matchDevice(devices, s.deviceName); dev != nil {
		return dev, nil
	}
	return nil, apperrors.DeviceUnavailable(nil, "input device not found").WithMetadata("device", s.deviceName)
}

// matchDevice returns the first input-capable device whose name contains name, ignoring case.
func matchDevice(devices []*portaudio.DeviceInfo, name string) *portaudio.DeviceInfo {
	want := strings.ToLower(name)
	for _, dev := range devices {
		if dev.MaxInputChannels < 1 {
			continue
		}
		if strings.Contains(strings.ToLower(dev.Name), want) {
			return dev
		}
	}
	return nil
}

// Start begins delivering frames. Frames are dropped when the consumer falls behind.
func (s *PortAudioSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return apperrors.DeviceUnavailable(nil, "source not open")
	}
	if s.running {
		return nil
	}
	if err := s.stream.Start(); err != nil {
		return apperrors.DeviceUnavailable(err, "start input stream")
	}

	readCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.readLoop(readCtx, s.stream, s.buf, s.format.Channels, s.done)
	return nil
}

func (s *PortAudioSource) readLoop(ctx context.Context, stream *portaudio.Stream, buf []int16, channels int, done chan struct{}) {
	defer close(done)
	defer close(s.outCh)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := stream.Read(); err != nil {
			if ctx.Err() == nil {
				slog.Warn("audio read error", "error", err)
			}
			return
		}

		select {
		case s.outCh <- NewFrame(buf, channels):
		default:
			slog.Debug("audio buffer full, dropping frame")
			if s.onDrop != nil {
				s.onDrop()
			}
		}
	}
}

// Stop halts the stream and waits for the read loop to exit. Safe to call more than once.
func (s *PortAudioSource) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		cancel, done, stream := s.cancel, s.done, s.stream
		s.running = false
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if stream != nil {
			_ = stream.Stop()
		}
		if done != nil {
			<-done
		} else {
			close(s.outCh)
		}
	})
}

// Close releases the stream and the audio host.
func (s *PortAudioSource) Close() error {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return nil
	}
	err := s.stream.Close()
	s.stream = nil
	_ = portaudio.Terminate()
	return err
}
