package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every entry of a [FallbackGroup] failed or
// was skipped because its breaker was open.
var ErrAllFailed = errors.New("resilience: all engines failed")

// FallbackConfig configures the breaker created for each entry.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup holds a primary and ordered fallbacks of the same type, each
// with its own [CircuitBreaker]. Entries are fixed before first use.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     FallbackConfig
}

// NewFallbackGroup creates a group with primary as its first entry.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{cfg: cfg}
	fg.AddFallback(primaryName, primary)
	return fg
}

// AddFallback appends an entry. Entries are tried in the order added.
func (fg *FallbackGroup[T]) AddFallback(name string, value T) {
	bc := fg.cfg.CircuitBreaker
	bc.Name = name
	fg.entries = append(fg.entries, fallbackEntry[T]{name: name, value: value, breaker: NewCircuitBreaker(bc)})
}

// Names returns the entry names in order.
func (fg *FallbackGroup[T]) Names() []string {
	out := make([]string, len(fg.entries))
	for i, e := range fg.entries {
		out[i] = e.name
	}
	return out
}

// Breaker returns the breaker of the named entry, or nil.
func (fg *FallbackGroup[T]) Breaker(name string) *CircuitBreaker {
	for i := range fg.entries {
		if fg.entries[i].name == name {
			return fg.entries[i].breaker
		}
	}
	return nil
}

// admit walks the entries from index from and returns the first one whose
// breaker admits the call and for which start succeeds. The caller owns the
// returned ticket and must settle it with Done or Release.
func (fg *FallbackGroup[T]) admit(from int, start func(name string, v T) error) (int, Ticket, error) {
	var lastErr error
	for i := from; i < len(fg.entries); i++ {
		e := &fg.entries[i]
		t, err := e.breaker.Allow()
		if err != nil {
			slog.Debug("fallback: skipping engine, circuit open", "engine", e.name)
			lastErr = err
			continue
		}
		if err := start(e.name, e.value); err != nil {
			e.breaker.Done(t, err)
			slog.Warn("fallback: engine failed, trying next", "engine", e.name, "err", err)
			lastErr = err
			continue
		}
		return i, t, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no entries")
	}
	return -1, Ticket{}, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}

// Execute runs fn against each entry in turn until one succeeds.
func (fg *FallbackGroup[T]) Execute(fn func(T) error) error {
	i, t, err := fg.admit(0, func(_ string, v T) error { return fn(v) })
	if err != nil {
		return err
	}
	fg.entries[i].breaker.Done(t, nil)
	return nil
}

// ExecuteWithResult is [FallbackGroup.Execute] for calls that return a value.
func ExecuteWithResult[T, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var out R
	err := fg.Execute(func(v T) error {
		r, err := fn(v)
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	return out, err
}
