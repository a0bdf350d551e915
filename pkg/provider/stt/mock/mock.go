// Package mock provides test doubles for the stt package interfaces.
//
// Use Recognizer to verify that the session starts and aborts recognition at
// the right moments, and to simulate start failures such as
// [stt.ErrAlreadyStarted].
//
// Example:
//
//	rec := &mock.Recognizer{StartErr: stt.ErrAlreadyStarted}
//	sess := handsfree.New(ctx, rec, synth)
package mock

import (
	"context"
	"sync"

	"github.com/saalsai1/SER598-Group2-ma/pkg/provider/stt"
)

// Recognizer is a mock implementation of stt.Recognizer.
type Recognizer struct {
	mu sync.Mutex

	// StartErr, if non-nil, is returned by every Start call.
	StartErr error

	// StopErr, if non-nil, is returned by every Stop call.
	StopErr error

	// AbortErr, if non-nil, is returned by every Abort call.
	AbortErr error

	// --- Call records ---

	// Calls records the method names in invocation order ("Start", "Stop",
	// "Abort").
	Calls []string
}

// Start records the call and returns StartErr.
func (r *Recognizer) Start(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, "Start")
	return r.StartErr
}

// Stop records the call and returns StopErr.
func (r *Recognizer) Stop(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, "Stop")
	return r.StopErr
}

// Abort records the call and returns AbortErr.
func (r *Recognizer) Abort(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, "Abort")
	return r.AbortErr
}

// CallCount returns how many times method was called. Thread-safe.
func (r *Recognizer) CallCount(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.Calls {
		if c == method {
			n++
		}
	}
	return n
}

// LastCall returns the most recent method name, or "" if none. Thread-safe.
func (r *Recognizer) LastCall() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Calls) == 0 {
		return ""
	}
	return r.Calls[len(r.Calls)-1]
}

// SetStartErr replaces StartErr. Thread-safe.
func (r *Recognizer) SetStartErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.StartErr = err
}

// Reset clears all recorded calls. Thread-safe.
func (r *Recognizer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = nil
}

// Ensure Recognizer implements stt.Recognizer at compile time.
var _ stt.Recognizer = (*Recognizer)(nil)

// Listener is a mock stt.Listener that records every event.
type Listener struct {
	mu sync.Mutex

	Starts        int
	Results       []stt.Result
	Errors        []stt.ErrorCode
	Ends          int
	StartFailures []error
}

func (l *Listener) OnStart() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Starts++
}

func (l *Listener) OnResult(t stt.Result) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Results = append(l.Results, t)
}

func (l *Listener) OnError(code stt.ErrorCode) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, code)
}

func (l *Listener) OnEnd() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Ends++
}

func (l *Listener) OnStartFailed(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.StartFailures = append(l.StartFailures, err)
}

// Snapshot returns copies of the recorded results and errors. Thread-safe.
func (l *Listener) Snapshot() (results []stt.Result, errs []stt.ErrorCode) {
	l.mu.Lock()
	defer l.mu.Unlock()
	results = append(results, l.Results...)
	errs = append(errs, l.Errors...)
	return results, errs
}

// Counts returns the number of OnStart and OnEnd calls. Thread-safe.
func (l *Listener) Counts() (starts, ends int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Starts, l.Ends
}

// Failures returns a copy of the errors passed to OnStartFailed. Thread-safe.
func (l *Listener) Failures() []error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]error(nil), l.StartFailures...)
}

var _ stt.Listener = (*Listener)(nil)
