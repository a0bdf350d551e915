// Package mock provides a test double for preference.Store.
//
//	store := &mock.Store{Voices: map[string]string{"c1": "Samantha"}}
//	v, _ := store.PreferredVoice(ctx, "c1")
//	calls := store.Calls()
package mock

import (
	"context"
	"sync"

	"github.com/saalsai1/SER598-Group2-ma/pkg/preference"
)

var _ preference.Store = (*Store)(nil)

// Call records a single method invocation.
type Call struct {
	Method string
	Args   []any
}

// Store is a mock implementation of preference.Store. The zero value is an
// empty store.
type Store struct {
	mu    sync.Mutex
	calls []Call

	// Voices holds stored preferences keyed by client ID. Set before use or
	// let SetPreferredVoice populate it.
	Voices map[string]string

	// GetErr, if non-nil, is returned by PreferredVoice.
	GetErr error

	// SetErr, if non-nil, is returned by SetPreferredVoice and nothing is
	// stored.
	SetErr error

	// PingErr, if non-nil, is returned by Ping.
	PingErr error
}

func (s *Store) record(method string, args ...any) {
	s.calls = append(s.calls, Call{Method: method, Args: args})
}

// PreferredVoice records the call and returns the stored voice, GetErr or
// preference.ErrNotFound.
func (s *Store) PreferredVoice(_ context.Context, clientID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("PreferredVoice", clientID)
	if s.GetErr != nil {
		return "", s.GetErr
	}
	v, ok := s.Voices[clientID]
	if !ok {
		return "", preference.ErrNotFound
	}
	return v, nil
}

// SetPreferredVoice records the call and stores voice unless SetErr is set.
func (s *Store) SetPreferredVoice(_ context.Context, clientID, voice string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("SetPreferredVoice", clientID, voice)
	if s.SetErr != nil {
		return s.SetErr
	}
	if s.Voices == nil {
		s.Voices = make(map[string]string)
	}
	if voice == "" {
		delete(s.Voices, clientID)
	} else {
		s.Voices[clientID] = voice
	}
	return nil
}

// Ping records the call and returns PingErr.
func (s *Store) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Ping")
	return s.PingErr
}

// Close records the call.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Close")
	return nil
}

// SetPingErr replaces PingErr. Thread-safe.
func (s *Store) SetPingErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PingErr = err
}

// Calls returns a copy of the recorded calls.
func (s *Store) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns how many times method was called.
func (s *Store) CallCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}
