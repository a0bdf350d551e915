// Package preference persists per-client speech preferences.
//
// The only preference today is the synthesis voice, stored under the key
// [PreferredVoiceKey]. Three backends implement [Store]: an in-memory map
// ([NewMemory]), a JSON file ([OpenFile]) and PostgreSQL (package postgres).
package preference

import (
	"context"
	"errors"
	"strings"
)

// PreferredVoiceKey is the storage key of the preferred synthesis voice.
const PreferredVoiceKey = "preferredVoice"

// ErrNotFound is returned when a client has no stored preference.
var ErrNotFound = errors.New("preference: not found")

// Store reads and writes voice preferences keyed by client ID.
// Implementations must be safe for concurrent use.
type Store interface {
	// PreferredVoice returns the stored voice name for clientID, or
	// [ErrNotFound].
	PreferredVoice(ctx context.Context, clientID string) (string, error)

	// SetPreferredVoice stores voice for clientID. An empty voice clears the
	// preference.
	SetPreferredVoice(ctx context.Context, clientID, voice string) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}

// VoiceOrDefault returns the stored voice for clientID, or "" when none is
// stored or the store fails. It suits callers that fall back to automatic
// voice selection.
func VoiceOrDefault(ctx context.Context, s Store, clientID string) string {
	if s == nil {
		return ""
	}
	v, err := s.PreferredVoice(ctx, clientID)
	if err != nil {
		return ""
	}
	return v
}

func checkClientID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("preference: client id is required")
	}
	return nil
}
