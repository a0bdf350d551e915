// Package chord parses and matches keyboard shortcuts such as "ctrl+alt+a".
package chord

import (
	"errors"
	"fmt"
	"strings"
)

var errMissingKey = errors.New("missing key")

// Chord is a key plus the modifiers that must be held with it.
type Chord struct {
	Ctrl  bool
	Alt   bool
	Shift bool
	Meta  bool
	Key   string
}

// KeyEvent is a key press as reported by the browser.
type KeyEvent struct {
	Key   string `json:"key"`
	Ctrl  bool   `json:"ctrl"`
	Alt   bool   `json:"alt"`
	Shift bool   `json:"shift"`
	Meta  bool   `json:"meta"`
}

// Parse reads a chord written as "+"-separated modifiers followed by one key,
// e.g. "ctrl+alt+a". Case and surrounding spaces are ignored.
func Parse(s string) (Chord, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")
	if len(parts) < 2 {
		return Chord{}, fmt.Errorf("chord %q: need at least one modifier and a key", s)
	}
	var c Chord
	for _, p := range parts[:len(parts)-1] {
		switch strings.TrimSpace(p) {
		case "ctrl", "control":
			c.Ctrl = true
		case "alt", "option":
			c.Alt = true
		case "shift":
			c.Shift = true
		case "meta", "cmd", "super":
			c.Meta = true
		default:
			return Chord{}, fmt.Errorf("chord %q: unknown modifier %q", s, p)
		}
	}
	c.Key = strings.TrimSpace(parts[len(parts)-1])
	if c.Key == "" {
		return Chord{}, fmt.Errorf("chord %q: %w", s, errMissingKey)
	}
	return c, nil
}

// MustParse is like [Parse] but panics on error. For package-level defaults.
func MustParse(s string) Chord {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Matches reports whether ev presses c. Every modifier in c must be held;
// extra modifiers are ignored.
func (c Chord) Matches(ev KeyEvent) bool {
	if !strings.EqualFold(ev.Key, c.Key) {
		return false
	}
	return (!c.Ctrl || ev.Ctrl) && (!c.Alt || ev.Alt) && (!c.Shift || ev.Shift) && (!c.Meta || ev.Meta)
}

// String returns the chord in the form accepted by [Parse].
func (c Chord) String() string {
	var parts []string
	if c.Ctrl {
		parts = append(parts, "ctrl")
	}
	if c.Alt {
		parts = append(parts, "alt")
	}
	if c.Shift {
		parts = append(parts, "shift")
	}
	if c.Meta {
		parts = append(parts, "meta")
	}
	return strings.Join(append(parts, c.Key), "+")
}
