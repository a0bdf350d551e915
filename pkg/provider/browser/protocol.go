package browser

import (
	"encoding/json"
	"fmt"

	"github.com/saalsai1/SER598-Group2-ma/pkg/provider/tts"
	"github.com/saalsai1/SER598-Group2-ma/pkg/types"
)

// Every websocket frame is a JSON object {"type": ..., "data": ...}. Frames
// from the browser are [Message]s; frames to the browser are [Directive]s.

// Message types sent by the browser.
const (
	MsgHello       = "hello"
	MsgVoices      = "voices"
	MsgRecognition = "recognition"
	MsgSynthesis   = "synthesis"
)

// Directive types sent to the browser.
const (
	DirRecognition = "recognition"
	DirSpeak       = "speak"
	DirCancel      = "cancel"
	DirCaption     = "caption"
)

// Message is one frame received from the browser. Data is decoded by
// whoever handles Type.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("browser: %s message has no data", m.Type)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("browser: decode %s: %w", m.Type, err)
	}
	return nil
}

// Directive is one frame sent to the browser.
type Directive struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Hello is the first message of a connection.
type Hello struct {
	// ClientID identifies the browser across reconnects. Empty for a new
	// browser; the server then assigns one.
	ClientID string        `json:"client_id,omitempty"`
	Support  types.Support `json:"support"`
	Voices   []tts.Voice   `json:"voices,omitempty"`
}

// Voices carries the synthesis voice list, which browsers load lazily.
type Voices struct {
	Voices []tts.Voice `json:"voices"`
}

// Recognition event names.
const (
	EventStart       = "start"
	EventResult      = "result"
	EventError       = "error"
	EventEnd         = "end"
	EventStartFailed = "start_failed"
)

// RecognitionEvent is a speech recognition engine event.
type RecognitionEvent struct {
	Event      string  `json:"event"`
	Transcript string  `json:"transcript,omitempty"`
	Final      bool    `json:"final,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`

	// Error is the engine error code for EventError.
	Error string `json:"error,omitempty"`

	// Message is the exception text for EventStartFailed.
	Message string `json:"message,omitempty"`
}

// Synthesis event names.
const (
	EventUtteranceEnd   = "end"
	EventUtteranceError = "error"
)

// SynthesisEvent is a speech synthesis engine event for one utterance.
type SynthesisEvent struct {
	Event string `json:"event"`
	ID    string `json:"id"`

	// Error is the engine error code, e.g. "interrupted" or
	// "synthesis-failed".
	Error string `json:"error,omitempty"`
}

// Recognition commands.
const (
	CommandStart = "start"
	CommandStop  = "stop"
	CommandAbort = "abort"
)

// RecognitionCommand asks the browser to start, stop or abort recognition.
type RecognitionCommand struct {
	Command    string `json:"command"`
	Language   string `json:"language,omitempty"`
	Continuous bool   `json:"continuous,omitempty"`
	Interim    bool   `json:"interim,omitempty"`
}

// Caption writes text into the page's live region. Empty text clears it.
type Caption struct {
	Text     string `json:"text"`
	Priority string `json:"priority"`
}

// synthesisError maps a browser synthesis error code to an error.
// "interrupted" and "canceled" mean the utterance was replaced or cancelled.
func synthesisError(code string) error {
	switch code {
	case "interrupted", "canceled":
		return fmt.Errorf("%w (%s)", tts.ErrCanceled, code)
	case "":
		return fmt.Errorf("browser: synthesis failed")
	default:
		return fmt.Errorf("browser: synthesis failed: %s", code)
	}
}
