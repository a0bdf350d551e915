// Package handsfree implements the hands-free voice session: the state machine
// that decides when the microphone listens, when the system speaks, and how
// recognition is re-armed after the system has finished talking.
//
// A [Session] drives an [stt.Recognizer] and a [tts.Synthesizer] and receives
// their events through the [stt.Listener] and [tts.Listener] interfaces. The
// session never listens while it speaks: entering a speaking state aborts
// recognition, and final transcripts that arrive while speaking are dropped.
// This keeps the system from hearing and acting on its own voice.
//
// All methods are safe for concurrent use. Adapter methods are invoked while
// the session lock is held, so adapters must deliver their events
// asynchronously and never call back into the session from Start, Stop,
// Abort, Speak or Cancel.
package handsfree

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saalsai1/SER598-Group2-ma/internal/observe"
	"github.com/saalsai1/SER598-Group2-ma/pkg/provider/stt"
	"github.com/saalsai1/SER598-Group2-ma/pkg/provider/tts"
)

// Phrases spoken or shown by the session itself.
const (
	ActivationAnnouncement = "Hands-free mode activated. You can control the site with your voice. Say help to hear available commands."
	DeactivationPhrase     = "Hands-free mode deactivated."

	StatusActivated = "Hands-free mode activated"
	StatusListening = "Listening..."
)

// Utterance kinds, used as the metric label.
const (
	kindAnnouncement = "announcement"
	kindResponse     = "response"
	kindDetached     = "detached"
)

// CommandHandler receives each accepted final transcript. It is called
// without the session lock held and may call back into the session.
type CommandHandler func(ctx context.Context, transcript string)

// Option configures a [Session].
type Option func(*Session)

// WithTimings overrides the debounce windows. Zero fields keep their defaults.
func WithTimings(t Timings) Option {
	return func(s *Session) { s.timings = t.WithDefaults() }
}

// WithClock substitutes the clock used for debounce timers.
func WithClock(c Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithCommandHandler sets the function that receives accepted transcripts.
func WithCommandHandler(h CommandHandler) Option {
	return func(s *Session) { s.onCommand = h }
}

// WithLocale sets the recognition language and the locale used to pick a
// synthesis voice. Default: "en-US".
func WithLocale(locale string) Option {
	return func(s *Session) { s.locale = locale }
}

// WithPreferredVoice sets a lookup for the user's preferred voice name. It is
// consulted before every utterance; an empty result means no preference.
func WithPreferredVoice(f func(ctx context.Context) string) Option {
	return func(s *Session) { s.preferredVoice = f }
}

// WithOnChange registers a callback that receives a snapshot whenever the
// observable state changes. It is called without the session lock held.
func WithOnChange(f func(Snapshot)) Option {
	return func(s *Session) { s.onChange = f }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithLogger sets the logger. Default: [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// Session is one client's hands-free voice session.
type Session struct {
	rec   stt.Recognizer
	synth tts.Synthesizer

	// ctx is the lifetime context used for adapter calls made from timers
	// and engine events.
	ctx context.Context

	clock          Clock
	locale         string
	onCommand      CommandHandler
	onChange       func(Snapshot)
	preferredVoice func(context.Context) string
	metrics        *observe.Metrics
	log            *slog.Logger

	mu             sync.Mutex
	timings        Timings
	state          State
	listening      bool
	status         string
	lastTranscript string

	// blocked is set when the user stopped the microphone or denied access
	// to it, and cleared by an explicit start. While set, nothing restarts
	// recognition: the end of a run or of an utterance leaves the session
	// idle.
	blocked bool

	// utterance is the ID of the utterance whose end or error the session
	// is waiting for. Events for any other ID are stale.
	utterance string

	// timer is the single pending debounce timer. timerGen is bumped every
	// time the slot is cleared so a callback that already left the runtime
	// timer heap can tell it was superseded.
	timer    Timer
	timerGen uint64

	notified Snapshot
}

// New creates a disabled session. ctx bounds the session's lifetime and is
// used for adapter calls that do not originate from a caller.
func New(ctx context.Context, rec stt.Recognizer, synth tts.Synthesizer, opts ...Option) *Session {
	s := &Session{
		rec:     rec,
		synth:   synth,
		ctx:     ctx,
		clock:   realClock{},
		locale:  "en-US",
		timings: DefaultTimings(),
		state:   StateDisabled,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// RecognitionConfig returns the recognition settings the session expects the
// engine to use.
func (s *Session) RecognitionConfig() stt.Config {
	cfg := stt.DefaultConfig()
	cfg.Language = s.locale
	return cfg
}

// Snapshot returns the current observable state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Enabled reports whether hands-free mode is on.
func (s *Session) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != StateDisabled
}

// SetTimings replaces the debounce windows. Timers already pending keep their
// original deadline.
func (s *Session) SetTimings(t Timings) {
	s.mu.Lock()
	s.timings = t.WithDefaults()
	s.mu.Unlock()
}

// Toggle enables the session when it is disabled and disables it otherwise.
// It returns the new enabled state.
func (s *Session) Toggle(ctx context.Context) bool {
	if s.Enabled() {
		s.Disable(ctx)
		return false
	}
	s.Enable(ctx)
	return true
}

// Enable turns hands-free mode on and speaks the activation announcement.
// Recognition starts once the announcement has finished and its buffers have
// elapsed. Enabling an enabled session does nothing.
func (s *Session) Enable(ctx context.Context) {
	voice := s.resolveVoice(ctx)

	s.mu.Lock()
	if s.state != StateDisabled {
		s.mu.Unlock()
		return
	}
	s.clearTimerLocked()
	s.blocked = false
	s.state = StateAnnouncing
	s.status = StatusActivated
	s.abortLocked(ctx)
	s.metrics.ActiveSessions.Add(ctx, 1)
	s.log.Info("handsfree: enabled")
	s.speakLocked(ctx, ActivationAnnouncement, voice, kindAnnouncement)
	s.unlockAndNotify()
}

// Disable turns hands-free mode off. It cancels any pending timer, aborts
// recognition and cancels speech. Disabling a disabled session does nothing.
func (s *Session) Disable(ctx context.Context) {
	s.mu.Lock()
	if s.state == StateDisabled {
		s.mu.Unlock()
		return
	}
	s.metrics.ActiveSessions.Add(ctx, -1)
	s.log.Info("handsfree: disabled")
	s.shutdownLocked(ctx)
	s.unlockAndNotify()
}

// Close releases the engines regardless of state. It is used when the client
// goes away.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	if s.state != StateDisabled {
		s.metrics.ActiveSessions.Add(ctx, -1)
	}
	s.shutdownLocked(ctx)
	s.mu.Unlock()
}

// Speak says text. While enabled, recognition is aborted first and resumes
// after the utterance ends and the settle and restart windows have elapsed.
// While disabled, the text is spoken without touching recognition.
func (s *Session) Speak(ctx context.Context, text string) {
	voice := s.resolveVoice(ctx)

	s.mu.Lock()
	if s.state == StateDisabled {
		s.speakLocked(ctx, text, voice, kindDetached)
		s.unlockAndNotify()
		return
	}
	s.clearTimerLocked()
	s.abortLocked(ctx)
	s.state = StateSpeaking
	s.speakLocked(ctx, text, voice, kindResponse)
	s.unlockAndNotify()
}

// StartListening starts recognition on user request. It does nothing while
// disabled. While the system is speaking, recognition is not started
// immediately but resumes once the utterance has settled.
func (s *Session) StartListening(ctx context.Context) {
	s.mu.Lock()
	switch {
	case s.state == StateDisabled:
		s.log.Debug("handsfree: start ignored, disabled")
	case s.state.speaking():
		s.log.Debug("handsfree: start deferred until speech ends")
		s.blocked = false
	default:
		s.clearTimerLocked()
		s.blocked = false
		s.startLocked(ctx)
	}
	s.unlockAndNotify()
}

// StopListening stops recognition on user request. The session stays enabled
// but does not restart recognition until asked to. An utterance in progress
// finishes normally and then leaves the session idle.
func (s *Session) StopListening(ctx context.Context) {
	s.mu.Lock()
	s.abortLocked(ctx)
	if s.state != StateDisabled {
		s.blocked = true
		s.idleUnlessSpeakingLocked()
	}
	s.unlockAndNotify()
}

// OnStart implements [stt.Listener].
func (s *Session) OnStart() {
	s.mu.Lock()
	switch s.state {
	case StateListening:
		s.listening = true
		s.blocked = false
		s.status = StatusListening
	case StateIdle:
		if s.blocked {
			s.log.Debug("handsfree: aborting recognition after stop")
			s.abortLocked(s.ctx)
			break
		}
		fallthrough
	case StateRestarting:
		// The engine came up without a pending start; adopt it.
		s.clearTimerLocked()
		s.state = StateListening
		s.listening = true
		s.blocked = false
		s.status = StatusListening
	default:
		s.log.Debug("handsfree: aborting stray recognition", "state", s.state)
		s.abortLocked(s.ctx)
	}
	s.unlockAndNotify()
}

// OnResult implements [stt.Listener]. Final, non-empty transcripts received
// while enabled and not speaking are passed to the command handler.
func (s *Session) OnResult(r stt.Result) {
	if !r.IsFinal {
		return
	}
	text := strings.TrimSpace(r.Text)

	s.mu.Lock()
	if s.state == StateDisabled || text == "" {
		s.mu.Unlock()
		return
	}
	if s.state.speaking() {
		s.metrics.DiscardedTranscripts.Add(s.ctx, 1)
		s.log.Debug("handsfree: ignoring transcript while speaking", "transcript", text)
		s.mu.Unlock()
		return
	}
	s.lastTranscript = text
	s.status = `Heard: "` + text + `"`
	handler := s.onCommand
	s.unlockAndNotify()

	s.log.Info("handsfree: transcript", "transcript", text)
	if handler != nil {
		handler(s.ctx, text)
	}
}

// OnError implements [stt.Listener].
func (s *Session) OnError(code stt.ErrorCode) {
	s.mu.Lock()
	if s.state == StateDisabled {
		s.mu.Unlock()
		return
	}
	s.metrics.RecordRecognitionError(s.ctx, string(code))

	switch code.Classify() {
	case stt.SeverityExpected:
		s.log.Debug("handsfree: recognition ended quietly", "code", code)
	case stt.SeverityPermission:
		s.log.Warn("handsfree: microphone access denied", "code", code)
		s.status = code.StatusMessage()
		s.listening = false
		s.blocked = true
		s.idleUnlessSpeakingLocked()
	case stt.SeverityTransient:
		s.log.Warn("handsfree: recognition network error", "code", code)
		s.status = code.StatusMessage()
		s.listening = false
	default:
		s.log.Warn("handsfree: recognition error", "code", code)
		s.status = code.StatusMessage()
	}
	s.unlockAndNotify()
}

// OnEnd implements [stt.Listener]. When the engine ends a run on its own
// while the session is listening, recognition restarts after RestartDelay.
func (s *Session) OnEnd() {
	s.mu.Lock()
	s.listening = false
	if s.state == StateListening && !s.blocked {
		s.state = StateRestarting
		s.scheduleLocked(s.timings.RestartDelay, s.restartLocked)
	}
	s.unlockAndNotify()
}

// OnStartFailed implements [stt.Listener]. It is handled like a synchronous
// start error.
func (s *Session) OnStartFailed(err error) {
	s.mu.Lock()
	if s.state == StateListening {
		s.handleStartLocked(err)
	}
	s.unlockAndNotify()
}

// OnUtteranceEnd implements [tts.Listener].
func (s *Session) OnUtteranceEnd(id string) {
	s.mu.Lock()
	if id == "" || id != s.utterance {
		s.mu.Unlock()
		return
	}
	s.utterance = ""
	switch s.state {
	case StateAnnouncing:
		s.scheduleLocked(s.timings.AnnouncementBuffer, s.announcementSettledLocked)
	case StateSpeaking:
		s.scheduleLocked(s.timings.SettleDelay, s.responseSettledLocked)
	}
	s.unlockAndNotify()
}

// OnUtteranceError implements [tts.Listener]. A failed utterance is treated
// as finished without the settle window: recognition restarts after
// RestartDelay.
func (s *Session) OnUtteranceError(id string, err error) {
	s.mu.Lock()
	if id == "" || id != s.utterance {
		s.mu.Unlock()
		return
	}
	s.utterance = ""
	s.log.Warn("handsfree: utterance failed", "id", id, "err", err)
	s.failUtteranceLocked()
	s.unlockAndNotify()
}

// --- locked helpers ---

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		State:          s.state,
		Enabled:        s.state != StateDisabled,
		Listening:      s.listening,
		Speaking:       s.state.speaking(),
		StatusMessage:  s.status,
		LastTranscript: s.lastTranscript,
	}
}

// unlockAndNotify releases the lock and reports the new snapshot if it
// differs from the last one reported.
func (s *Session) unlockAndNotify() {
	snap := s.snapshotLocked()
	changed := snap != s.notified
	s.notified = snap
	cb := s.onChange
	s.mu.Unlock()
	if changed && cb != nil {
		cb(snap)
	}
}

func (s *Session) shutdownLocked(ctx context.Context) {
	s.clearTimerLocked()
	s.abortLocked(ctx)
	if err := s.synth.Cancel(ctx); err != nil {
		s.log.Debug("handsfree: cancel synthesis", "err", err)
	}
	s.state = StateDisabled
	s.status = ""
	s.lastTranscript = ""
	s.utterance = ""
	s.blocked = false
}

func (s *Session) abortLocked(ctx context.Context) {
	if err := s.rec.Abort(ctx); err != nil {
		s.log.Debug("handsfree: abort recognition", "err", err)
	}
	s.listening = false
}

func (s *Session) speakLocked(ctx context.Context, text, voice, kind string) {
	if err := s.synth.Cancel(ctx); err != nil {
		s.log.Debug("handsfree: cancel synthesis", "err", err)
	}
	u := tts.Utterance{
		ID:    uuid.NewString(),
		Text:  text,
		Voice: voice,
		Rate:  1,
		Pitch: 1,
	}
	s.utterance = u.ID
	s.metrics.RecordUtterance(ctx, kind)
	if err := s.synth.Speak(ctx, u); err != nil {
		s.log.Warn("handsfree: speak failed", "kind", kind, "err", err)
		s.utterance = ""
		s.failUtteranceLocked()
	}
}

// failUtteranceLocked moves a speaking session straight to the restart
// window.
func (s *Session) failUtteranceLocked() {
	if !s.state.speaking() {
		return
	}
	s.restartAfterLocked(s.timings.RestartDelay)
}

// restartAfterLocked schedules recognition to resume after d, or parks the
// session in StateIdle when the user stopped the microphone.
func (s *Session) restartAfterLocked(d time.Duration) {
	if s.blocked {
		s.clearTimerLocked()
		s.state = StateIdle
		return
	}
	s.state = StateRestarting
	s.scheduleLocked(d, s.restartLocked)
}

// idleUnlessSpeakingLocked drops any pending restart. A speaking session
// keeps its settle timer so it can leave the speaking state.
func (s *Session) idleUnlessSpeakingLocked() {
	if s.state.speaking() {
		return
	}
	s.clearTimerLocked()
	s.state = StateIdle
}

func (s *Session) startLocked(ctx context.Context) {
	if s.state == StateDisabled || s.state.speaking() {
		return
	}
	s.state = StateListening
	s.handleStartLocked(s.rec.Start(ctx))
}

// handleStartLocked applies the outcome of a start request to a session in
// StateListening.
func (s *Session) handleStartLocked(err error) {
	switch {
	case err == nil:
	case errors.Is(err, stt.ErrAlreadyStarted):
		s.log.Debug("handsfree: recognition already running")
		s.listening = true
		s.status = StatusListening
	default:
		s.log.Warn("handsfree: failed to start recognition", "err", err)
		s.listening = false
		s.state = StateIdle
	}
}

func (s *Session) clearTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerGen++
}

// scheduleLocked replaces the pending timer with one that runs fn under the
// lock after d, unless the slot is cleared or replaced first.
func (s *Session) scheduleLocked(d time.Duration, fn func()) {
	s.clearTimerLocked()
	gen := s.timerGen
	s.timer = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		if gen != s.timerGen {
			s.mu.Unlock()
			return
		}
		s.timer = nil
		fn()
		s.unlockAndNotify()
	})
}

func (s *Session) announcementSettledLocked() {
	if s.state != StateAnnouncing {
		return
	}
	s.restartAfterLocked(s.timings.AnnouncementDelay)
}

func (s *Session) responseSettledLocked() {
	if s.state != StateSpeaking {
		return
	}
	s.restartAfterLocked(s.timings.RestartDelay)
}

func (s *Session) restartLocked() {
	if s.state != StateRestarting {
		return
	}
	s.metrics.RecognitionRestarts.Add(s.ctx, 1)
	s.startLocked(s.ctx)
}

// resolveVoice picks the voice for the next utterance. It runs without the
// lock because both lookups may block.
func (s *Session) resolveVoice(ctx context.Context) string {
	voices, err := s.synth.Voices(ctx)
	if err != nil {
		s.log.Debug("handsfree: list voices", "err", err)
		return ""
	}
	var preferred string
	if s.preferredVoice != nil {
		preferred = s.preferredVoice(ctx)
	}
	v, ok := tts.SelectVoice(voices, preferred, s.locale)
	if !ok {
		return ""
	}
	return v.Name
}
