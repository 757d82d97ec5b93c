package audio

import "math"

// WindowFrames returns ceil(framesPerSecond * seconds), at least 1.
func WindowFrames(f Format, seconds float64) int {
	n := int(math.Ceil(f.FramesPerSecond() * seconds))
	return max(n, 1)
}

// VolumeHistory is a fixed-capacity FIFO of per-frame peak amplitudes.
type VolumeHistory struct {
	values []float64
	start  int
	size   int
}

// NewVolumeHistory creates a history holding at most capacity entries.
func NewVolumeHistory(capacity int) *VolumeHistory {
	return &VolumeHistory{values: make([]float64, max(capacity, 1))}
}

// Push appends v, evicting the oldest entry once full.
func (h *VolumeHistory) Push(v float64) {
	if h.size < len(h.values) {
		h.values[(h.start+h.size)%len(h.values)] = v
		h.size++
		return
	}
	h.values[h.start] = v
	h.start = (h.start + 1) % len(h.values)
}

// Len returns the number of stored entries.
func (h *VolumeHistory) Len() int { return h.size }

// Cap returns the capacity.
func (h *VolumeHistory) Cap() int { return len(h.values) }

// AllBelow reports whether at least n entries exist and the newest n are all below threshold.
func (h *VolumeHistory) AllBelow(n int, threshold float64) bool {
	if n <= 0 || h.size < n {
		return false
	}
	for i := h.size - n; i < h.size; i++ {
		if h.values[(h.start+i)%len(h.values)] >= threshold {
			return false
		}
	}
	return true
}
