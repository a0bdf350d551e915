// Package tts defines the Synthesizer interface for text-to-speech engines.
//
// A Synthesizer speaks one [Utterance] at a time. Completion and failure are
// reported asynchronously through a [Listener], keyed by the utterance ID so
// that callers can ignore events for utterances they already cancelled.
//
// Synthesizer methods are called while the hands-free session holds its lock;
// implementations must not invoke Listener methods synchronously from inside
// Speak or Cancel.
package tts

import (
	"context"
	"errors"
)

// ErrUnsupported is returned by Speak when the platform has no synthesis
// engine.
var ErrUnsupported = errors.New("tts: speech synthesis not supported")

// ErrCanceled is reported through [Listener.OnUtteranceError] for utterances
// stopped by Cancel or replaced by a newer utterance.
var ErrCanceled = errors.New("tts: utterance canceled")

// Synthesizer is the abstraction over a speech synthesis engine.
type Synthesizer interface {
	// Speak queues u for playback. Implementations that can only play one
	// utterance at a time may assume the caller has already called Cancel.
	Speak(ctx context.Context, u Utterance) error

	// Cancel stops the current utterance and drops anything queued. Cancelled
	// utterances may still report OnUtteranceError; callers match by ID.
	Cancel(ctx context.Context) error

	// Voices returns the voices currently offered by the engine. The list can
	// be empty while the engine is still loading its catalogue.
	Voices(ctx context.Context) ([]Voice, error)
}

// Listener receives synthesis engine events. Implementations must be safe for
// concurrent use.
type Listener interface {
	// OnUtteranceEnd is called when the utterance with the given ID finished
	// playing.
	OnUtteranceEnd(id string)

	// OnUtteranceError is called when the utterance with the given ID failed
	// or was interrupted.
	OnUtteranceError(id string, err error)
}
