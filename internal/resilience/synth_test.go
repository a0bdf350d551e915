package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/saalsai1/SER598-Group2-ma/internal/observe"
	"github.com/saalsai1/SER598-Group2-ma/pkg/provider/tts"
	ttsmock "github.com/saalsai1/SER598-Group2-ma/pkg/provider/tts/mock"
)

// eventLog records forwarded utterance events.
type eventLog struct {
	mu     sync.Mutex
	ended  []string
	failed []string
}

func (l *eventLog) OnUtteranceEnd(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ended = append(l.ended, id)
}

func (l *eventLog) OnUtteranceError(id string, _ error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failed = append(l.failed, id)
}

func (l *eventLog) snapshot() (ended, failed []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.ended...), append([]string(nil), l.failed...)
}

func newSynthFallback(t *testing.T, cfg FallbackConfig) (*SynthFallback, *ttsmock.Synthesizer, *ttsmock.Synthesizer, *eventLog) {
	t.Helper()
	speech := &ttsmock.Synthesizer{VoicesResult: []tts.Voice{{Name: "Samantha", Lang: "en-US"}}}
	caption := &ttsmock.Synthesizer{}
	f := NewSynthFallback(speech, "speech", cfg, WithSynthMetrics(observe.DefaultMetrics()))
	f.AddFallback("caption", caption)
	log := &eventLog{}
	f.SetListener(log)
	return f, speech, caption, log
}

func TestSynthFallback_SpeaksOnPrimary(t *testing.T) {
	t.Parallel()
	f, speech, caption, log := newSynthFallback(t, FallbackConfig{})
	ctx := context.Background()

	if err := f.Speak(ctx, tts.Utterance{ID: "u1", Text: "hello"}); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if speech.SpeakCount() != 1 || caption.SpeakCount() != 0 {
		t.Fatalf("speak counts = %d/%d, want 1/0", speech.SpeakCount(), caption.SpeakCount())
	}

	f.OnUtteranceEnd("u1")
	ended, failed := log.snapshot()
	if len(ended) != 1 || ended[0] != "u1" || len(failed) != 0 {
		t.Errorf("forwarded ended=%v failed=%v", ended, failed)
	}
}

func TestSynthFallback_SyncErrorUsesNextEngine(t *testing.T) {
	t.Parallel()
	f, speech, caption, _ := newSynthFallback(t, FallbackConfig{})
	speech.SetSpeakErr(tts.ErrUnsupported)

	if err := f.Speak(context.Background(), tts.Utterance{ID: "u1", Text: "hello"}); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if got := caption.LastUtterance(); got.ID != "u1" {
		t.Errorf("caption utterance = %+v, want u1", got)
	}
}

func TestSynthFallback_AsyncErrorMovesUtterance(t *testing.T) {
	t.Parallel()
	f, _, caption, log := newSynthFallback(t, FallbackConfig{})

	if err := f.Speak(context.Background(), tts.Utterance{ID: "u1", Text: "hello"}); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	f.OnUtteranceError("u1", errors.New("synthesis-failed"))

	if got := caption.LastUtterance(); got.ID != "u1" || got.Text != "hello" {
		t.Fatalf("caption utterance = %+v, want u1/hello", got)
	}
	if _, failed := log.snapshot(); len(failed) != 0 {
		t.Fatalf("moved utterance must not be reported as failed, got %v", failed)
	}

	f.OnUtteranceEnd("u1")
	if ended, _ := log.snapshot(); len(ended) != 1 || ended[0] != "u1" {
		t.Errorf("ended = %v, want [u1]", ended)
	}
}

func TestSynthFallback_LastEngineErrorIsForwarded(t *testing.T) {
	t.Parallel()
	f, _, caption, log := newSynthFallback(t, FallbackConfig{})
	ctx := context.Background()

	_ = f.Speak(ctx, tts.Utterance{ID: "u1"})
	caption.SetSpeakErr(errors.New("no display"))
	f.OnUtteranceError("u1", errors.New("synthesis-failed"))

	if _, failed := log.snapshot(); len(failed) != 1 || failed[0] != "u1" {
		t.Errorf("failed = %v, want [u1]", failed)
	}
}

func TestSynthFallback_CancelIsNotAFailure(t *testing.T) {
	t.Parallel()
	f, speech, caption, log := newSynthFallback(t, FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour},
	})
	ctx := context.Background()

	_ = f.Speak(ctx, tts.Utterance{ID: "u1"})
	f.OnUtteranceError("u1", tts.ErrCanceled)

	if st := f.Breaker("speech").State(); st != StateClosed {
		t.Errorf("speech breaker = %v after cancellation, want closed", st)
	}
	if caption.SpeakCount() != 0 {
		t.Error("cancelled utterance must not move to the caption engine")
	}
	if _, failed := log.snapshot(); len(failed) != 1 {
		t.Errorf("cancellation should be forwarded, failed = %v", failed)
	}
	if speech.CallCount("Speak") != 1 {
		t.Errorf("speech Speak calls = %d, want 1", speech.CallCount("Speak"))
	}
}

func TestSynthFallback_OpenBreakerRoutesToCaption(t *testing.T) {
	t.Parallel()
	f, speech, caption, _ := newSynthFallback(t, FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour},
	})
	ctx := context.Background()

	_ = f.Speak(ctx, tts.Utterance{ID: "u1"})
	f.OnUtteranceError("u1", errors.New("synthesis-failed"))
	if st := f.Breaker("speech").State(); st != StateOpen {
		t.Fatalf("speech breaker = %v, want open", st)
	}

	_ = f.Speak(ctx, tts.Utterance{ID: "u2"})
	if speech.SpeakCount() != 1 {
		t.Errorf("speech Speak calls = %d, want 1 (breaker open)", speech.SpeakCount())
	}
	if got := caption.LastUtterance(); got.ID != "u2" {
		t.Errorf("caption utterance = %+v, want u2", got)
	}
}

func TestSynthFallback_CancelReachesAllEngines(t *testing.T) {
	t.Parallel()
	f, speech, caption, _ := newSynthFallback(t, FallbackConfig{})
	if err := f.Cancel(context.Background()); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if speech.CallCount("Cancel") != 1 || caption.CallCount("Cancel") != 1 {
		t.Errorf("Cancel calls = %d/%d, want 1/1", speech.CallCount("Cancel"), caption.CallCount("Cancel"))
	}
}

func TestSynthFallback_StaleEventsAreForwarded(t *testing.T) {
	t.Parallel()
	f, _, _, log := newSynthFallback(t, FallbackConfig{})
	f.OnUtteranceError("unknown", errors.New("x"))
	f.OnUtteranceEnd("unknown")
	ended, failed := log.snapshot()
	if len(ended) != 1 || len(failed) != 1 {
		t.Errorf("ended=%v failed=%v, want one of each", ended, failed)
	}
}

func TestSynthFallback_Voices(t *testing.T) {
	t.Parallel()
	f, _, _, _ := newSynthFallback(t, FallbackConfig{})
	voices, err := f.Voices(context.Background())
	if err != nil {
		t.Fatalf("Voices: %v", err)
	}
	if len(voices) != 1 || voices[0].Name != "Samantha" {
		t.Errorf("voices = %+v", voices)
	}
}
