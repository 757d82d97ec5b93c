package session

import (
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/scribe/internal/audio"
)

// 10 frames per second, mono.
var testFormat = audio.Format{SampleRate: 1000, Channels: 1, FramesPerBuffer: 100}

func frameAt(amplitude int16) audio.Frame {
	s := make([]int16, testFormat.FramesPerBuffer)
	for i := range s {
		s[i] = amplitude
	}
	return audio.Frame{Samples: s, Channels: 1}
}

var (
	loud  = frameAt(10000) // ~0.3
	quiet = frameAt(100)   // ~0.003
)

func newTestSegmenter() *Segmenter {
	return NewSegmenter(testFormat, SegmenterConfig{
		Threshold:     0.02,
		WindowSeconds: 0.5, // 5 frames
		FillRatio:     0.8,
		Interval:      time.Second, // 8 frames to emit
	}, nil)
}

func TestSegmenterDerivedSizes(t *testing.T) {
	s := newTestSegmenter()
	if s.Window() != 5 {
		t.Errorf("Window() = %d, want 5", s.Window())
	}
	if s.MinFrames() != 8 {
		t.Errorf("MinFrames() = %v, want 8", s.MinFrames())
	}
}

func TestSegmenterSilenceGating(t *testing.T) {
	s := newTestSegmenter()

	var kept []bool
	kept = append(kept, s.OnFrame(loud))
	for i := 0; i < 6; i++ {
		kept = append(kept, s.OnFrame(quiet))
	}
	kept = append(kept, s.OnFrame(loud))

	// the first quiet frames ride on the loud frame still in the window;
	// once five quiet frames fill the window they are discarded
	want := []bool{true, true, true, true, true, false, false, true}
	for i := range want {
		if kept[i] != want[i] {
			t.Errorf("frame %d kept = %v, want %v", i, kept[i], want[i])
		}
	}

	if got := s.Pending(); got != 6 {
		t.Errorf("Pending() = %d, want 6", got)
	}
	if got := len(s.DrainSession()); got != 6 {
		t.Errorf("session frames = %d, want 6", got)
	}
}

func TestSegmenterQuietStartIsKeptUntilWindowFills(t *testing.T) {
	s := newTestSegmenter()
	for i := 0; i < 4; i++ {
		if !s.OnFrame(quiet) {
			t.Errorf("frame %d dropped before the window filled", i)
		}
	}
	if s.OnFrame(quiet) {
		t.Error("fifth quiet frame should be dropped")
	}
}

func TestSegmenterLongSilenceNeverBuffered(t *testing.T) {
	s := newTestSegmenter()
	for i := 0; i < 5; i++ {
		s.OnFrame(quiet)
	}
	before := s.Pending()
	for i := 0; i < 100; i++ {
		if s.OnFrame(quiet) {
			t.Fatalf("quiet frame %d kept after a full quiet window", i)
		}
	}
	if s.Pending() != before {
		t.Errorf("Pending() = %d, want %d", s.Pending(), before)
	}
}

func TestSegmenterTickThreshold(t *testing.T) {
	s := newTestSegmenter()
	for i := 0; i < 7; i++ {
		s.OnFrame(loud)
	}

	if _, ok := s.Tick(); ok {
		t.Fatal("Tick() emitted below the fill threshold")
	}
	if s.Pending() != 7 {
		t.Errorf("Pending() = %d after skipped tick, want 7", s.Pending())
	}

	s.OnFrame(loud)
	frames, ok := s.Tick()
	if !ok || len(frames) != 8 {
		t.Fatalf("Tick() = %d frames, %v, want 8, true", len(frames), ok)
	}
	if s.Pending() != 0 {
		t.Errorf("Pending() = %d after emit, want 0", s.Pending())
	}

	// emission leaves the session buffer alone
	if got := len(s.DrainSession()); got != 8 {
		t.Errorf("session frames = %d, want 8", got)
	}
}

func TestSegmenterDrainIsAtomic(t *testing.T) {
	s := NewSegmenter(testFormat, SegmenterConfig{
		Threshold:     0.02,
		WindowSeconds: 0.1,
		FillRatio:     0.01,
		Interval:      time.Second,
	}, nil)

	const total = 2000
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			f := frameAt(10000)
			f.Timestamp = int64(i)
			s.OnFrame(f)
		}
	}()

	seen := make(map[int64]int)
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
		}
		if frames, ok := s.Tick(); ok {
			for _, f := range frames {
				seen[f.Timestamp]++
			}
		}
	}
	for _, f := range s.active.Get() {
		seen[f.Timestamp]++
	}

	if len(seen) != total {
		t.Errorf("saw %d distinct frames, want %d", len(seen), total)
	}
	for ts, n := range seen {
		if n != 1 {
			t.Errorf("frame %d seen %d times", ts, n)
		}
	}
}
