package audio

import "testing"

func TestWindowFrames(t *testing.T) {
	tests := []struct {
		rate, frames int
		seconds      float64
		want         int
	}{
		{48000, 1920, 1.5, 38},
		{44100, 1024, 1.5, 65},
		{16000, 1600, 1.0, 10},
		{16000, 0, 1.0, 1},
	}

	for _, tt := range tests {
		f := Format{SampleRate: tt.rate, FramesPerBuffer: tt.frames}
		if got := WindowFrames(f, tt.seconds); got != tt.want {
			t.Errorf("WindowFrames(%d/%d, %v) = %d, want %d", tt.rate, tt.frames, tt.seconds, got, tt.want)
		}
	}
}

func TestVolumeHistoryEviction(t *testing.T) {
	h := NewVolumeHistory(3)
	for _, v := range []float64{0.5, 0.01, 0.01} {
		h.Push(v)
	}

	if h.Len() != 3 || h.Cap() != 3 {
		t.Fatalf("Len/Cap = %d/%d, want 3/3", h.Len(), h.Cap())
	}
	if h.AllBelow(3, 0.02) {
		t.Error("AllBelow should see the loud oldest entry")
	}

	h.Push(0.01)
	if h.Len() != 3 {
		t.Errorf("Len() = %d, want 3 after eviction", h.Len())
	}
	if !h.AllBelow(3, 0.02) {
		t.Error("AllBelow should be true once the loud entry is evicted")
	}
}

func TestVolumeHistoryRequiresFullWindow(t *testing.T) {
	h := NewVolumeHistory(4)
	h.Push(0)
	h.Push(0)

	if h.AllBelow(4, 0.02) {
		t.Error("AllBelow should be false with fewer entries than the window")
	}
	if !h.AllBelow(2, 0.02) {
		t.Error("AllBelow(2) should be true for two quiet entries")
	}
	if h.AllBelow(0, 0.02) {
		t.Error("AllBelow(0) should be false")
	}
}

func TestVolumeHistoryThresholdIsStrict(t *testing.T) {
	h := NewVolumeHistory(2)
	h.Push(0.02)
	h.Push(0.0)
	if h.AllBelow(2, 0.02) {
		t.Error("a value equal to the threshold is not below it")
	}
}
