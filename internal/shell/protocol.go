package shell

import (
	"github.com/saalsai1/SER598-Group2-ma/internal/handsfree"
	"github.com/saalsai1/SER598-Group2-ma/internal/voicecmd"
)

// Message types the shell handles. Speech engine events are consumed by the
// bridge before they get here.
const (
	MsgHello   = "hello"
	MsgIntent  = "intent"
	MsgKey     = "key"
	MsgContext = "context"
)

// Directive types the shell sends in addition to the bridge's speech
// directives.
const (
	DirWelcome  = "welcome"
	DirNavigate = "navigate"
	DirScroll   = "scroll"
	DirStatus   = "status"
	DirPanel    = "panel"
)

// Intent actions triggered by the panel buttons.
const (
	IntentToggle = "toggle"
	IntentStart  = "start"
	IntentStop   = "stop"
	IntentHelp   = "help"
	IntentClose  = "close"
)

// Intent is a panel button press.
type Intent struct {
	Action string `json:"action"`
}

// Welcome is sent in reply to hello.
type Welcome struct {
	// ClientID is the identifier the browser should present on later
	// connections and to the preference API.
	ClientID      string `json:"client_id"`
	Shortcut      string `json:"shortcut"`
	ResetShortcut string `json:"reset_shortcut"`
}

// Navigate asks the browser to route to Path.
type Navigate struct {
	Path string `json:"path"`
}

// Status mirrors the session snapshot.
type Status = handsfree.Snapshot

// Context is the application state the browser reports.
type Context = voicecmd.AppState
