// Package mock provides a test double for the tts.Synthesizer interface.
//
// Use Synthesizer to capture the utterances the session speaks and to verify
// that in-flight synthesis is cancelled before a new utterance starts.
//
// Example:
//
//	synth := &mock.Synthesizer{
//	    VoicesResult: []tts.Voice{{Name: "Samantha", Lang: "en-US"}},
//	}
//	sess := handsfree.New(ctx, rec, synth)
//	sess.Enable(ctx)
//	u := synth.LastUtterance()
package mock

import (
	"context"
	"sync"

	"github.com/saalsai1/SER598-Group2-ma/pkg/provider/tts"
)

// Synthesizer is a mock implementation of tts.Synthesizer.
type Synthesizer struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// SpeakErr, if non-nil, is returned by every Speak call. The utterance is
	// still recorded.
	SpeakErr error

	// CancelErr, if non-nil, is returned by every Cancel call.
	CancelErr error

	// VoicesResult is returned by Voices.
	VoicesResult []tts.Voice

	// VoicesErr, if non-nil, is returned by Voices.
	VoicesErr error

	// --- Call records ---

	// Utterances records every utterance passed to Speak in order.
	Utterances []tts.Utterance

	// Calls records method names in invocation order ("Speak", "Cancel",
	// "Voices").
	Calls []string
}

// Speak records the utterance and returns SpeakErr.
func (s *Synthesizer) Speak(_ context.Context, u tts.Utterance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Utterances = append(s.Utterances, u)
	s.Calls = append(s.Calls, "Speak")
	return s.SpeakErr
}

// Cancel records the call and returns CancelErr.
func (s *Synthesizer) Cancel(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, "Cancel")
	return s.CancelErr
}

// Voices records the call and returns VoicesResult, VoicesErr.
func (s *Synthesizer) Voices(_ context.Context) ([]tts.Voice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, "Voices")
	return s.VoicesResult, s.VoicesErr
}

// LastUtterance returns the most recent spoken utterance, or the zero value.
// Thread-safe.
func (s *Synthesizer) LastUtterance() tts.Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Utterances) == 0 {
		return tts.Utterance{}
	}
	return s.Utterances[len(s.Utterances)-1]
}

// SpeakCount returns the number of Speak calls. Thread-safe.
func (s *Synthesizer) SpeakCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Utterances)
}

// CallCount returns how many times method was called. Thread-safe.
func (s *Synthesizer) CallCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.Calls {
		if c == method {
			n++
		}
	}
	return n
}

// SetSpeakErr replaces SpeakErr. Thread-safe.
func (s *Synthesizer) SetSpeakErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SpeakErr = err
}

// Reset clears all recorded calls. Thread-safe.
func (s *Synthesizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Utterances = nil
	s.Calls = nil
}

// Ensure Synthesizer implements tts.Synthesizer at compile time.
var _ tts.Synthesizer = (*Synthesizer)(nil)
