package shell

import (
	"github.com/saalsai1/SER598-Group2-ma/internal/handsfree"
	"github.com/saalsai1/SER598-Group2-ma/internal/voicecmd"
)

// Indicator labels shown next to the listening light.
const (
	IndicatorListening = "Listening..."
	IndicatorIdle      = "Idle"
)

// Panel is the render model of the hands-free control panel. The browser
// draws exactly what it is given.
type Panel struct {
	// Visible is false while hands-free mode is off; the panel is hidden.
	Visible   bool   `json:"visible"`
	Listening bool   `json:"listening"`
	Indicator string `json:"indicator"`

	// MicEnabled is false when the browser cannot recognize speech.
	MicEnabled bool   `json:"mic_enabled"`
	MicLabel   string `json:"mic_label"`

	Status     string `json:"status,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Shortcut   string `json:"shortcut"`

	Reference []voicecmd.Section `json:"reference"`

	// AutoScroll allows animated scrolling of the reference list.
	AutoScroll bool `json:"auto_scroll"`

	// Reset asks the browser to scroll the reference list back to the top.
	Reset bool `json:"reset,omitempty"`
}

// panelInput collects what the panel is derived from.
type panelInput struct {
	snap          handsfree.Snapshot
	sttSupported  bool
	reducedMotion bool
	reset         bool
	shortcut      string
}

func buildPanel(in panelInput) Panel {
	p := Panel{
		Visible:    in.snap.Enabled,
		Listening:  in.snap.Listening,
		Indicator:  IndicatorIdle,
		MicEnabled: in.sttSupported,
		MicLabel:   "Start Mic",
		Status:     in.snap.StatusMessage,
		Transcript: in.snap.LastTranscript,
		Shortcut:   in.shortcut,
		Reference:  voicecmd.Reference(),
		AutoScroll: !in.reducedMotion,
		Reset:      in.reset,
	}
	if in.snap.Listening {
		p.Indicator = IndicatorListening
		p.MicLabel = "Stop Mic"
	}
	return p
}
