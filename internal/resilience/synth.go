package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/saalsai1/SER598-Group2-ma/internal/observe"
	"github.com/saalsai1/SER598-Group2-ma/pkg/provider/tts"
)

var (
	_ tts.Synthesizer = (*SynthFallback)(nil)
	_ tts.Listener    = (*SynthFallback)(nil)
)

// SynthFallback is a [tts.Synthesizer] that speaks through the first healthy
// engine of a group and moves an utterance to the next engine when the
// current one reports a failure for it.
//
// Every engine must report its utterance events to the SynthFallback, which
// forwards them to the listener set with [SynthFallback.SetListener]. Events
// for an utterance that was moved to another engine are not forwarded; the
// listener sees only the final outcome under the original utterance ID.
type SynthFallback struct {
	group   *FallbackGroup[tts.Synthesizer]
	metrics *observe.Metrics

	mu       sync.Mutex
	pending  map[string]inflight
	listener tts.Listener
}

type inflight struct {
	ctx    context.Context
	entry  int
	ticket Ticket
	u      tts.Utterance
}

// SynthOption configures a [SynthFallback].
type SynthOption func(*SynthFallback)

// WithSynthMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithSynthMetrics(m *observe.Metrics) SynthOption {
	return func(f *SynthFallback) { f.metrics = m }
}

// NewSynthFallback creates a SynthFallback with primary as the preferred
// engine.
func NewSynthFallback(primary tts.Synthesizer, primaryName string, cfg FallbackConfig, opts ...SynthOption) *SynthFallback {
	f := &SynthFallback{
		group:   NewFallbackGroup(primary, primaryName, cfg),
		pending: make(map[string]inflight),
	}
	for _, o := range opts {
		o(f)
	}
	if f.metrics == nil {
		f.metrics = observe.DefaultMetrics()
	}
	return f
}

// AddFallback registers another engine. Call before first use.
func (f *SynthFallback) AddFallback(name string, s tts.Synthesizer) {
	f.group.AddFallback(name, s)
}

// SetListener sets where utterance events are forwarded.
func (f *SynthFallback) SetListener(l tts.Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listener = l
}

// Breaker returns the circuit breaker of the named engine, or nil.
func (f *SynthFallback) Breaker(name string) *CircuitBreaker {
	return f.group.Breaker(name)
}

// Speak implements [tts.Synthesizer].
func (f *SynthFallback) Speak(ctx context.Context, u tts.Utterance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startLocked(ctx, 0, u)
}

func (f *SynthFallback) startLocked(ctx context.Context, from int, u tts.Utterance) error {
	i, t, err := f.group.admit(from, func(name string, s tts.Synthesizer) error {
		if err := s.Speak(ctx, u); err != nil {
			f.metrics.RecordSynthesisError(ctx, name)
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	f.pending[u.ID] = inflight{ctx: ctx, entry: i, ticket: t, u: u}
	return nil
}

// Cancel implements [tts.Synthesizer]. Every engine is cancelled.
func (f *SynthFallback) Cancel(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, p := range f.pending {
		f.group.entries[p.entry].breaker.Release(p.ticket)
		delete(f.pending, id)
	}
	var errs []error
	for _, e := range f.group.entries {
		if err := e.value.Cancel(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Voices implements [tts.Synthesizer] using the first healthy engine.
func (f *SynthFallback) Voices(ctx context.Context) ([]tts.Voice, error) {
	return ExecuteWithResult(f.group, func(s tts.Synthesizer) ([]tts.Voice, error) {
		return s.Voices(ctx)
	})
}

// OnUtteranceEnd implements [tts.Listener].
func (f *SynthFallback) OnUtteranceEnd(id string) {
	f.mu.Lock()
	if p, ok := f.pending[id]; ok {
		delete(f.pending, id)
		f.group.entries[p.entry].breaker.Done(p.ticket, nil)
	}
	l := f.listener
	f.mu.Unlock()

	if l != nil {
		l.OnUtteranceEnd(id)
	}
}

// OnUtteranceError implements [tts.Listener]. Cancellations are forwarded
// as is; other failures count against the engine and move the utterance to
// the next engine that accepts it.
func (f *SynthFallback) OnUtteranceError(id string, err error) {
	f.mu.Lock()
	p, ok := f.pending[id]
	if ok {
		delete(f.pending, id)
		entry := f.group.entries[p.entry]
		if errors.Is(err, tts.ErrCanceled) {
			entry.breaker.Release(p.ticket)
		} else {
			entry.breaker.Done(p.ticket, err)
			f.metrics.RecordSynthesisError(p.ctx, entry.name)
			if f.startLocked(p.ctx, p.entry+1, p.u) == nil {
				slog.Info("fallback: utterance moved to next engine", "id", id, "from", entry.name, "err", err)
				f.mu.Unlock()
				return
			}
		}
	}
	l := f.listener
	f.mu.Unlock()

	if l != nil {
		l.OnUtteranceError(id, err)
	}
}
