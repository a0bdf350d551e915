package preference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

var _ Store = (*File)(nil)

// File is a [Store] backed by a single JSON document on disk:
//
//	{"clients": {"<client id>": {"preferredVoice": "Samantha"}}}
//
// Every write rewrites the whole file through a temporary file and rename,
// so a crash never leaves a truncated document behind.
type File struct {
	path string

	mu      sync.Mutex
	clients map[string]map[string]string
}

type fileDocument struct {
	Clients map[string]map[string]string `json:"clients"`
}

// OpenFile loads the store at path. A missing file is treated as empty and is
// created on the first write.
func OpenFile(path string) (*File, error) {
	f := &File{path: path, clients: make(map[string]map[string]string)}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return f, nil
	case err != nil:
		return nil, fmt.Errorf("preference: read %q: %w", path, err)
	}
	if len(data) == 0 {
		return f, nil
	}
	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("preference: decode %q: %w", path, err)
	}
	if doc.Clients != nil {
		f.clients = doc.Clients
	}
	return f, nil
}

// PreferredVoice implements [Store].
func (f *File) PreferredVoice(_ context.Context, clientID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.clients[clientID][PreferredVoiceKey]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// SetPreferredVoice implements [Store]. The file is written before the call
// returns; on a write error the in-memory state is rolled back.
func (f *File) SetPreferredVoice(_ context.Context, clientID, voice string) error {
	if err := checkClientID(clientID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, had := f.clients[clientID][PreferredVoiceKey]
	f.set(clientID, voice)
	if err := f.flushLocked(); err != nil {
		if had {
			f.set(clientID, prev)
		} else {
			f.set(clientID, "")
		}
		return err
	}
	return nil
}

func (f *File) set(clientID, voice string) {
	if voice == "" {
		delete(f.clients[clientID], PreferredVoiceKey)
		if len(f.clients[clientID]) == 0 {
			delete(f.clients, clientID)
		}
		return
	}
	prefs := f.clients[clientID]
	if prefs == nil {
		prefs = make(map[string]string)
		f.clients[clientID] = prefs
	}
	prefs[PreferredVoiceKey] = voice
}

func (f *File) flushLocked() error {
	data, err := json.MarshalIndent(fileDocument{Clients: f.clients}, "", "  ")
	if err != nil {
		return fmt.Errorf("preference: encode: %w", err)
	}
	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".preferences-*.json")
	if err != nil {
		return fmt.Errorf("preference: write %q: %w", f.path, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("preference: write %q: %w", f.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("preference: write %q: %w", f.path, err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("preference: write %q: %w", f.path, err)
	}
	return nil
}

// Ping implements [Store]. It checks that the directory holding the file is
// still accessible.
func (f *File) Ping(context.Context) error {
	if _, err := os.Stat(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("preference: %w", err)
	}
	return nil
}

// Close implements [Store]. It is a no-op; writes are never buffered.
func (f *File) Close() error { return nil }
