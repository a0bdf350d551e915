// Package stt defines the Recognizer interface for speech-to-text engines.
//
// A Recognizer wraps a continuous speech recognition engine (in production the
// browser's recognition API reached over the shell websocket) and exposes a
// uniform start/stop/abort surface. Results and lifecycle notifications flow
// back asynchronously through a [Listener].
//
// Recognizer methods are called while the hands-free session holds its lock;
// implementations must not invoke Listener methods synchronously from inside
// Start, Stop or Abort.
package stt

import (
	"context"
	"errors"
)

// ErrAlreadyStarted is returned (or reported through [Listener.OnStartFailed])
// when Start is called while the engine is already running. Callers treat it
// as success.
var ErrAlreadyStarted = errors.New("stt: recognition already started")

// ErrUnsupported is returned by Start when the platform has no recognition
// engine.
var ErrUnsupported = errors.New("stt: speech recognition not supported")

// Config describes how the recognition engine should run.
type Config struct {
	// Language is the BCP-47 tag used for recognition (e.g., "en-US").
	Language string

	// Continuous keeps the engine running across pauses instead of stopping
	// after the first result.
	Continuous bool

	// InterimResults requests non-final results while the user is speaking.
	InterimResults bool
}

// DefaultConfig returns continuous, interim-enabled recognition in en-US.
func DefaultConfig() Config {
	return Config{
		Language:       "en-US",
		Continuous:     true,
		InterimResults: true,
	}
}

// Recognizer is the abstraction over a speech recognition engine.
type Recognizer interface {
	// Start begins recognition. Returns [ErrAlreadyStarted] (possibly wrapped)
	// when the engine is already running. Other errors mean the engine could
	// not be started.
	Start(ctx context.Context) error

	// Stop ends recognition gracefully. The engine may still deliver a final
	// result before [Listener.OnEnd].
	Stop(ctx context.Context) error

	// Abort terminates recognition immediately. No further results are
	// delivered for the aborted run.
	Abort(ctx context.Context) error
}

// Listener receives recognition engine events. Implementations must be safe
// for concurrent use.
type Listener interface {
	// OnStart is called when the engine reports that audio capture began.
	OnStart()

	// OnResult is called for every interim and final result.
	OnResult(t Result)

	// OnError is called with the engine's error code.
	OnError(code ErrorCode)

	// OnEnd is called when a recognition run ends, whatever the cause.
	OnEnd()

	// OnStartFailed is called when an asynchronous start attempt fails.
	// err wraps [ErrAlreadyStarted] for the idempotent case.
	OnStartFailed(err error)
}
