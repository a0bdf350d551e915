package handsfree

import (
	"fmt"
	"time"
)

// Default debounce windows. These values were tuned against browser speech
// engines and are heuristics, not protocol guarantees.
const (
	DefaultSettleDelay        = 300 * time.Millisecond
	DefaultRestartDelay       = 500 * time.Millisecond
	DefaultAnnouncementBuffer = 500 * time.Millisecond
	DefaultAnnouncementDelay  = 800 * time.Millisecond
)

// Timings holds the named delays used to re-arm recognition after the system
// has spoken. A zero field means "use the default".
type Timings struct {
	// SettleDelay is how long the session keeps treating itself as speaking
	// after a response utterance ends.
	SettleDelay time.Duration

	// RestartDelay is the wait before recognition is restarted after a
	// response settles, after a synthesis error, or after the engine ended a
	// recognition run on its own.
	RestartDelay time.Duration

	// AnnouncementBuffer is how long the session keeps treating itself as
	// speaking after the activation announcement ends.
	AnnouncementBuffer time.Duration

	// AnnouncementDelay is the wait after AnnouncementBuffer before the first
	// recognition run starts.
	AnnouncementDelay time.Duration
}

// DefaultTimings returns the tuned default delays.
func DefaultTimings() Timings {
	return Timings{
		SettleDelay:        DefaultSettleDelay,
		RestartDelay:       DefaultRestartDelay,
		AnnouncementBuffer: DefaultAnnouncementBuffer,
		AnnouncementDelay:  DefaultAnnouncementDelay,
	}
}

// WithDefaults returns t with every zero field replaced by its default.
func (t Timings) WithDefaults() Timings {
	d := DefaultTimings()
	if t.SettleDelay == 0 {
		t.SettleDelay = d.SettleDelay
	}
	if t.RestartDelay == 0 {
		t.RestartDelay = d.RestartDelay
	}
	if t.AnnouncementBuffer == 0 {
		t.AnnouncementBuffer = d.AnnouncementBuffer
	}
	if t.AnnouncementDelay == 0 {
		t.AnnouncementDelay = d.AnnouncementDelay
	}
	return t
}

// Validate rejects negative delays.
func (t Timings) Validate() error {
	for name, d := range map[string]time.Duration{
		"settle_delay":        t.SettleDelay,
		"restart_delay":       t.RestartDelay,
		"announcement_buffer": t.AnnouncementBuffer,
		"announcement_delay":  t.AnnouncementDelay,
	} {
		if d < 0 {
			return fmt.Errorf("handsfree: %s must not be negative, got %s", name, d)
		}
	}
	return nil
}
