// Package caption implements a text-only [tts.Synthesizer].
//
// Instead of producing audio, each utterance is written to a live region on
// the page, where screen readers pick it up, and cleared again shortly after.
// It is used when the browser has no speech synthesis or when synthesis keeps
// failing.
package caption

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/saalsai1/SER598-Group2-ma/pkg/provider/tts"
)

var _ tts.Synthesizer = (*Synthesizer)(nil)

// Priority is the politeness of the live region.
type Priority string

const (
	Polite    Priority = "polite"
	Assertive Priority = "assertive"
)

// DefaultClearAfter is how long a caption stays visible.
const DefaultClearAfter = time.Second

// Display renders captions. An empty text clears the region. Implementations
// must not block.
type Display interface {
	ShowCaption(ctx context.Context, text string, priority Priority) error
}

// Option configures a [Synthesizer].
type Option func(*Synthesizer)

// WithClearAfter sets how long a caption stays before it is cleared and the
// utterance reported as finished.
func WithClearAfter(d time.Duration) Option {
	return func(s *Synthesizer) {
		if d > 0 {
			s.clearAfter = d
		}
	}
}

// WithPriority sets the live region politeness. Default: [Polite].
func WithPriority(p Priority) Option {
	return func(s *Synthesizer) { s.priority = p }
}

// Synthesizer shows one caption at a time.
type Synthesizer struct {
	display    Display
	clearAfter time.Duration
	priority   Priority

	mu       sync.Mutex
	listener tts.Listener
	current  string
	timer    *time.Timer
}

// New returns a Synthesizer that writes to d.
func New(d Display, opts ...Option) *Synthesizer {
	s := &Synthesizer{display: d, clearAfter: DefaultClearAfter, priority: Polite}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SetListener sets where utterance events are reported.
func (s *Synthesizer) SetListener(l tts.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = l
}

// Speak shows u.Text. A caption still on screen is replaced and its
// utterance reported as cancelled. The end of u is reported once the caption
// has been cleared.
func (s *Synthesizer) Speak(ctx context.Context, u tts.Utterance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	if err := s.display.ShowCaption(ctx, u.Text, s.priority); err != nil {
		return fmt.Errorf("caption: show: %w", err)
	}
	s.current = u.ID
	s.timer = time.AfterFunc(s.clearAfter, func() { s.finish(u.ID) })
	return nil
}

// Cancel clears the caption on screen, if any.
func (s *Synthesizer) Cancel(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == "" {
		return nil
	}
	s.stopLocked()
	if err := s.display.ShowCaption(ctx, "", s.priority); err != nil {
		return fmt.Errorf("caption: clear: %w", err)
	}
	return nil
}

// Voices returns no voices.
func (s *Synthesizer) Voices(context.Context) ([]tts.Voice, error) {
	return nil, nil
}

// stopLocked drops the current utterance and reports it as cancelled.
func (s *Synthesizer) stopLocked() {
	if s.current == "" {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	id, l := s.current, s.listener
	s.current, s.timer = "", nil
	if l != nil {
		go l.OnUtteranceError(id, tts.ErrCanceled)
	}
}

func (s *Synthesizer) finish(id string) {
	s.mu.Lock()
	if s.current != id {
		s.mu.Unlock()
		return
	}
	s.current, s.timer = "", nil
	l := s.listener
	_ = s.display.ShowCaption(context.Background(), "", s.priority)
	s.mu.Unlock()

	if l != nil {
		l.OnUtteranceEnd(id)
	}
}
