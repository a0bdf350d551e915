package stt

import (
	"errors"
	"strings"

	"github.com/saalsai1/SER598-Group2-ma/pkg/types"
)

// Result is a single recognition result.
type Result = types.Transcript

// ErrorCode is an engine error code as reported by the recognition engine.
type ErrorCode string

// Error codes emitted by browser recognition engines.
const (
	ErrorNotAllowed          ErrorCode = "not-allowed"
	ErrorServiceNotAllowed   ErrorCode = "service-not-allowed"
	ErrorNoSpeech            ErrorCode = "no-speech"
	ErrorAborted             ErrorCode = "aborted"
	ErrorNetwork             ErrorCode = "network"
	ErrorAudioCapture        ErrorCode = "audio-capture"
	ErrorLanguageUnsupported ErrorCode = "language-not-supported"
)

// Severity groups error codes by how the session reacts to them.
type Severity int

const (
	// SeverityExpected covers normal conditions of continuous listening
	// (silence, intentional abort). Logged only.
	SeverityExpected Severity = iota

	// SeverityPermission means the microphone is unavailable to us. The
	// session stays enabled but inert until the user retries.
	SeverityPermission

	// SeverityTransient covers engine hiccups that the next natural restart
	// retries.
	SeverityTransient

	// SeverityOther is any code not covered above.
	SeverityOther
)

// Classify maps an error code to its [Severity].
func (c ErrorCode) Classify() Severity {
	switch c {
	case ErrorNotAllowed, ErrorServiceNotAllowed:
		return SeverityPermission
	case ErrorNoSpeech, ErrorAborted:
		return SeverityExpected
	case ErrorNetwork:
		return SeverityTransient
	default:
		return SeverityOther
	}
}

// StatusMessage returns the user-facing status text for the code, or "" for
// codes that are never surfaced.
func (c ErrorCode) StatusMessage() string {
	switch c.Classify() {
	case SeverityPermission:
		return "Microphone access denied. Please allow microphone access."
	case SeverityTransient:
		return "Network error. Please check your connection."
	case SeverityExpected:
		return ""
	default:
		return "Error: " + string(c)
	}
}

// StartError converts the message of a failed engine start into an error,
// wrapping [ErrAlreadyStarted] when the engine said it was already running.
func StartError(msg string) error {
	if strings.Contains(strings.ToLower(msg), "already started") {
		return ErrAlreadyStarted
	}
	if msg == "" {
		msg = "unknown failure"
	}
	return errors.New("stt: start failed: " + msg)
}
