package preference

import (
	"context"
	"sync"
)

var _ Store = (*Memory)(nil)

// Memory is a [Store] that lives only as long as the process.
type Memory struct {
	mu     sync.RWMutex
	voices map[string]string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{voices: make(map[string]string)}
}

// PreferredVoice implements [Store].
func (m *Memory) PreferredVoice(_ context.Context, clientID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.voices[clientID]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// SetPreferredVoice implements [Store].
func (m *Memory) SetPreferredVoice(_ context.Context, clientID, voice string) error {
	if err := checkClientID(clientID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if voice == "" {
		delete(m.voices, clientID)
		return nil
	}
	m.voices[clientID] = voice
	return nil
}

// Ping implements [Store]. It always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

// Close implements [Store]. It is a no-op.
func (m *Memory) Close() error { return nil }
