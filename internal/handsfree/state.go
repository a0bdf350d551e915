package handsfree

// State is the hands-free session's position in its lifecycle.
//
// Speaking is implied by [StateAnnouncing] and [StateSpeaking]; recognition
// can only be running in [StateListening]. A session therefore cannot listen
// and speak at the same time.
type State int

const (
	// StateDisabled means hands-free mode is off.
	StateDisabled State = iota

	// StateAnnouncing means the activation announcement is playing (or its
	// trailing buffer has not elapsed yet).
	StateAnnouncing

	// StateListening means recognition was started and results are accepted.
	StateListening

	// StateSpeaking means a response utterance is playing (or its settle
	// buffer has not elapsed yet).
	StateSpeaking

	// StateRestarting is the debounce window before recognition resumes.
	StateRestarting

	// StateIdle means hands-free mode is on but recognition is not running
	// and no restart is pending: the user stopped the microphone, access was
	// denied, or the engine refused to start.
	StateIdle
)

// String returns the lower-case name of the state.
func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateAnnouncing:
		return "announcing"
	case StateListening:
		return "listening"
	case StateSpeaking:
		return "speaking"
	case StateRestarting:
		return "restarting"
	case StateIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// MarshalText implements [encoding.TextMarshaler] so states appear by name in
// JSON status messages.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// speaking reports whether the system owns the audio channel in this state.
func (s State) speaking() bool {
	return s == StateAnnouncing || s == StateSpeaking
}

// Snapshot is a point-in-time copy of the session's observable state.
type Snapshot struct {
	State          State  `json:"state"`
	Enabled        bool   `json:"enabled"`
	Listening      bool   `json:"listening"`
	Speaking       bool   `json:"speaking"`
	StatusMessage  string `json:"status"`
	LastTranscript string `json:"last_transcript"`
}
