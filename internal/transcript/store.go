// Package transcript holds the ordered, append-only text produced by a session.
package transcript

import (
	"strings"
	"sync"
	"time"
)

// Event announces a newly appended fragment.
type Event struct {
	Seq  int    `json:"seq"`
	Text string `json:"text"`
}

// Fragment is one transcribed clip.
type Fragment struct {
	Seq       int       `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
}

// Store is an in-memory transcript. Fragments keep the order in which they were added.
type Store struct {
	mu        sync.RWMutex
	fragments []Fragment
	eventsCh  chan Event
}

// NewStore creates a store whose event channel buffers eventBuffer events.
func NewStore(eventBuffer int) *Store {
	return &Store{eventsCh: make(chan Event, eventBuffer)}
}

// Add appends the text exactly as given, blank included, and announces it.
// Each transcribed clip is one fragment.
func (s *Store) Add(text string) Fragment {
	s.mu.Lock()
	f := Fragment{Seq: len(s.fragments), Timestamp: time.Now(), Text: text}
	s.fragments = append(s.fragments, f)
	s.mu.Unlock()

	s.Emit(Event{Seq: f.Seq, Text: f.Text})
	return f
}

// Text returns every fragment terminated by a newline.
func (s *Store) Text() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var b strings.Builder
	for _, f := range s.fragments {
		b.WriteString(f.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

// Len returns the number of fragments.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.fragments)
}

// Fragments returns a copy of all fragments.
func (s *Store) Fragments() []Fragment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]Fragment, len(s.fragments))
	copy(result, s.fragments)
	return result
}

// Events returns the channel for transcript events.
func (s *Store) Events() <-chan Event {
	return s.eventsCh
}

// Emit sends an event without blocking; it is dropped when nobody keeps up.
func (s *Store) Emit(event Event) {
	select {
	case s.eventsCh <- event:
	default:
	}
}
