package caption_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/saalsai1/SER598-Group2-ma/pkg/provider/tts"
	"github.com/saalsai1/SER598-Group2-ma/pkg/provider/tts/caption"
)

type display struct {
	mu       sync.Mutex
	captions []string
	err      error
}

func (d *display) ShowCaption(_ context.Context, text string, p caption.Priority) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.captions = append(d.captions, string(p)+":"+text)
	return nil
}

func (d *display) shown() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.captions...)
}

type events struct {
	ended  chan string
	failed chan string
}

func newEvents() *events {
	return &events{ended: make(chan string, 4), failed: make(chan string, 4)}
}

func (e *events) OnUtteranceEnd(id string) { e.ended <- id }

func (e *events) OnUtteranceError(id string, err error) {
	if errors.Is(err, tts.ErrCanceled) {
		e.failed <- id
	}
}

func waitFor(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("event for %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no event for %q", want)
	}
}

func TestSpeak_ShowsThenClears(t *testing.T) {
	t.Parallel()
	d := &display{}
	ev := newEvents()
	s := caption.New(d, caption.WithClearAfter(20*time.Millisecond))
	s.SetListener(ev)

	if err := s.Speak(context.Background(), tts.Utterance{ID: "u1", Text: "Navigating to store."}); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	waitFor(t, ev.ended, "u1")

	got := d.shown()
	want := []string{"polite:Navigating to store.", "polite:"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("captions = %q, want %q", got, want)
	}
}

func TestSpeak_ReplacesCurrent(t *testing.T) {
	t.Parallel()
	d := &display{}
	ev := newEvents()
	s := caption.New(d, caption.WithClearAfter(50*time.Millisecond))
	s.SetListener(ev)
	ctx := context.Background()

	_ = s.Speak(ctx, tts.Utterance{ID: "u1", Text: "first"})
	_ = s.Speak(ctx, tts.Utterance{ID: "u2", Text: "second"})

	waitFor(t, ev.failed, "u1")
	waitFor(t, ev.ended, "u2")
	select {
	case id := <-ev.ended:
		t.Errorf("replaced utterance %q must not end", id)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCancel_ClearsAndReports(t *testing.T) {
	t.Parallel()
	d := &display{}
	ev := newEvents()
	s := caption.New(d, caption.WithClearAfter(time.Hour), caption.WithPriority(caption.Assertive))
	s.SetListener(ev)
	ctx := context.Background()

	_ = s.Speak(ctx, tts.Utterance{ID: "u1", Text: "hello"})
	if err := s.Cancel(ctx); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	waitFor(t, ev.failed, "u1")

	got := d.shown()
	if len(got) != 2 || got[1] != "assertive:" {
		t.Errorf("captions = %q, want a clear after the caption", got)
	}
	if err := s.Cancel(ctx); err != nil {
		t.Errorf("Cancel when idle: %v", err)
	}
	if n := len(d.shown()); n != 2 {
		t.Errorf("idle Cancel touched the display, %d captions", n)
	}
}

func TestSpeak_DisplayError(t *testing.T) {
	t.Parallel()
	d := &display{err: errors.New("closed")}
	s := caption.New(d)
	if err := s.Speak(context.Background(), tts.Utterance{ID: "u1", Text: "x"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestVoices_Empty(t *testing.T) {
	t.Parallel()
	v, err := caption.New(&display{}).Voices(context.Background())
	if err != nil || len(v) != 0 {
		t.Errorf("Voices() = %v, %v; want none", v, err)
	}
}
