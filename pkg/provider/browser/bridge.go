// Package browser connects the speech engines of a web browser to the
// server over a websocket.
//
// The browser runs the actual recognition and synthesis engines. A [Bridge]
// turns method calls on the [stt.Recognizer] and [tts.Synthesizer]
// interfaces into directives for the browser, and engine events coming back
// from the browser into [stt.Listener] and [tts.Listener] calls. Messages it
// does not handle itself go to a [Handler].
//
// Outbound directives go through a bounded queue drained by a single writer
// goroutine, so the methods of Bridge never block on the network and are safe
// to call while holding a lock.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/time/rate"

	"github.com/saalsai1/SER598-Group2-ma/pkg/provider/stt"
	"github.com/saalsai1/SER598-Group2-ma/pkg/provider/tts"
	"github.com/saalsai1/SER598-Group2-ma/pkg/provider/tts/caption"
	"github.com/saalsai1/SER598-Group2-ma/pkg/types"
)

var (
	_ stt.Recognizer  = (*Bridge)(nil)
	_ tts.Synthesizer = (*Bridge)(nil)
	_ caption.Display = (*Bridge)(nil)
)

// ErrQueueFull is returned when the outbound queue is full.
var ErrQueueFull = errors.New("browser: outbound queue full")

// ErrClosed is returned after the connection has ended.
var ErrClosed = errors.New("browser: connection closed")

const (
	defaultQueueSize = 64
	readLimit        = 64 << 10
	writeTimeout     = 5 * time.Second
)

// Handler receives the messages the bridge does not consume itself.
type Handler func(ctx context.Context, msg Message)

// Option configures a [Bridge].
type Option func(*Bridge)

// WithQueueSize sets the outbound queue capacity. Default: 64.
func WithQueueSize(n int) Option {
	return func(b *Bridge) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// WithRecognitionConfig sets the config sent with every start directive.
// Default: [stt.DefaultConfig].
func WithRecognitionConfig(c stt.Config) Option {
	return func(b *Bridge) { b.recCfg = c }
}

// WithLimiter drops inbound messages that exceed l.
func WithLimiter(l *rate.Limiter) Option {
	return func(b *Bridge) { b.limiter = l }
}

// WithHandler sets the handler for unconsumed messages.
func WithHandler(h Handler) Option {
	return func(b *Bridge) { b.handler = h }
}

// WithLogger sets the logger. Default: [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) { b.log = l }
}

// Bridge is the browser end of one websocket connection.
type Bridge struct {
	conn      *websocket.Conn
	queueSize int
	recCfg    stt.Config
	limiter   *rate.Limiter
	handler   Handler
	log       *slog.Logger

	out  chan Directive
	done chan struct{}
	once sync.Once

	mu       sync.RWMutex
	clientID string
	support  types.Support
	voices   []tts.Voice
	recL     stt.Listener
	synthL   tts.Listener
	dropped  int
}

// New wraps an accepted websocket connection. Call [Bridge.Run] to start
// exchanging messages.
func New(conn *websocket.Conn, opts ...Option) *Bridge {
	b := &Bridge{
		conn:      conn,
		queueSize: defaultQueueSize,
		recCfg:    stt.DefaultConfig(),
		log:       slog.Default(),
		done:      make(chan struct{}),
	}
	for _, o := range opts {
		o(b)
	}
	b.out = make(chan Directive, b.queueSize)
	conn.SetReadLimit(readLimit)
	return b
}

// SetRecognitionListener sets where recognition events go.
func (b *Bridge) SetRecognitionListener(l stt.Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recL = l
}

// SetSynthesisListener sets where synthesis events go.
func (b *Bridge) SetSynthesisListener(l tts.Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.synthL = l
}

// SetHandler replaces the handler for unconsumed messages.
func (b *Bridge) SetHandler(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = h
}

// SetRecognitionConfig replaces the config sent with start directives.
func (b *Bridge) SetRecognitionConfig(c stt.Config) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recCfg = c
}

// IsSupported reports the capabilities announced in the browser's hello.
// Before the hello both are false.
func (b *Bridge) IsSupported() types.Support {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.support
}

// ClientID returns the ID from the browser's hello, or "".
func (b *Bridge) ClientID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.clientID
}

// Dropped returns the number of inbound messages dropped by the limiter.
func (b *Bridge) Dropped() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}

// Done is closed when the connection has ended.
func (b *Bridge) Done() <-chan struct{} { return b.done }

// Send queues d for the browser without blocking.
func (b *Bridge) Send(d Directive) error {
	select {
	case <-b.done:
		return ErrClosed
	default:
	}
	select {
	case b.out <- d:
		return nil
	case <-b.done:
		return ErrClosed
	default:
		return ErrQueueFull
	}
}

// Run reads messages until the connection fails or ctx is cancelled, then
// closes the connection. It returns nil for a normal closure.
func (b *Bridge) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer b.shutdown()

	writeErr := make(chan error, 1)
	go func() { writeErr <- b.writeLoop(ctx) }()

	for {
		var msg Message
		if err := wsjson.Read(ctx, b.conn, &msg); err != nil {
			stopped := ctx.Err() != nil
			cancel()
			werr := <-writeErr
			switch {
			case websocket.CloseStatus(err) == websocket.StatusNormalClosure,
				websocket.CloseStatus(err) == websocket.StatusGoingAway,
				stopped:
				b.conn.Close(websocket.StatusNormalClosure, "")
				if werr != nil && !errors.Is(werr, context.Canceled) {
					return werr
				}
				return nil
			default:
				b.conn.Close(websocket.StatusInternalError, "read failed")
				return fmt.Errorf("browser: read: %w", err)
			}
		}
		if b.limiter != nil && !b.limiter.Allow() {
			b.mu.Lock()
			b.dropped++
			b.mu.Unlock()
			b.log.Debug("browser: message dropped by rate limit", "type", msg.Type)
			continue
		}
		b.dispatch(ctx, msg)
	}
}

func (b *Bridge) shutdown() {
	b.once.Do(func() { close(b.done) })
}

func (b *Bridge) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d := <-b.out:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, b.conn, d)
			cancel()
			if err != nil {
				b.log.Warn("browser: write failed", "type", d.Type, "err", err)
				b.conn.Close(websocket.StatusInternalError, "write failed")
				return fmt.Errorf("browser: write: %w", err)
			}
		}
	}
}

func (b *Bridge) dispatch(ctx context.Context, msg Message) {
	var err error
	switch msg.Type {
	case MsgHello:
		var h Hello
		if err = msg.Decode(&h); err == nil {
			b.mu.Lock()
			b.clientID, b.support = h.ClientID, h.Support
			if h.Voices != nil {
				b.voices = h.Voices
			}
			b.mu.Unlock()
			b.forward(ctx, msg)
		}
	case MsgVoices:
		var v Voices
		if err = msg.Decode(&v); err == nil {
			b.mu.Lock()
			b.voices = v.Voices
			b.mu.Unlock()
		}
	case MsgRecognition:
		var ev RecognitionEvent
		if err = msg.Decode(&ev); err == nil {
			b.recognition(ev)
		}
	case MsgSynthesis:
		var ev SynthesisEvent
		if err = msg.Decode(&ev); err == nil {
			b.synthesis(ev)
		}
	default:
		b.forward(ctx, msg)
	}
	if err != nil {
		b.log.Warn("browser: bad message", "type", msg.Type, "err", err)
	}
}

func (b *Bridge) forward(ctx context.Context, msg Message) {
	b.mu.RLock()
	h := b.handler
	b.mu.RUnlock()
	if h != nil {
		h(ctx, msg)
	}
}

func (b *Bridge) recognition(ev RecognitionEvent) {
	b.mu.RLock()
	l := b.recL
	b.mu.RUnlock()
	if l == nil {
		return
	}
	switch ev.Event {
	case EventStart:
		l.OnStart()
	case EventResult:
		l.OnResult(stt.Result{Text: ev.Transcript, IsFinal: ev.Final, Confidence: ev.Confidence})
	case EventError:
		l.OnError(stt.ErrorCode(ev.Error))
	case EventEnd:
		l.OnEnd()
	case EventStartFailed:
		l.OnStartFailed(stt.StartError(ev.Message))
	default:
		b.log.Warn("browser: unknown recognition event", "event", ev.Event)
	}
}

func (b *Bridge) synthesis(ev SynthesisEvent) {
	b.mu.RLock()
	l := b.synthL
	b.mu.RUnlock()
	if l == nil {
		return
	}
	switch ev.Event {
	case EventUtteranceEnd:
		l.OnUtteranceEnd(ev.ID)
	case EventUtteranceError:
		l.OnUtteranceError(ev.ID, synthesisError(ev.Error))
	default:
		b.log.Warn("browser: unknown synthesis event", "event", ev.Event)
	}
}

// --- stt.Recognizer ---

// Start implements [stt.Recognizer]. "Already started" is reported later
// through [stt.Listener.OnStartFailed].
func (b *Bridge) Start(context.Context) error {
	b.mu.RLock()
	supported, cfg := b.support.STT, b.recCfg
	b.mu.RUnlock()
	if !supported {
		return stt.ErrUnsupported
	}
	return b.Send(Directive{Type: DirRecognition, Data: RecognitionCommand{
		Command:    CommandStart,
		Language:   cfg.Language,
		Continuous: cfg.Continuous,
		Interim:    cfg.InterimResults,
	}})
}

// Stop implements [stt.Recognizer].
func (b *Bridge) Stop(context.Context) error {
	return b.recognitionCommand(CommandStop)
}

// Abort implements [stt.Recognizer].
func (b *Bridge) Abort(context.Context) error {
	return b.recognitionCommand(CommandAbort)
}

func (b *Bridge) recognitionCommand(cmd string) error {
	if !b.IsSupported().STT {
		return nil
	}
	return b.Send(Directive{Type: DirRecognition, Data: RecognitionCommand{Command: cmd}})
}

// --- tts.Synthesizer ---

// Speak implements [tts.Synthesizer].
func (b *Bridge) Speak(_ context.Context, u tts.Utterance) error {
	if !b.IsSupported().TTS {
		return tts.ErrUnsupported
	}
	return b.Send(Directive{Type: DirSpeak, Data: u})
}

// Cancel implements [tts.Synthesizer].
func (b *Bridge) Cancel(context.Context) error {
	if !b.IsSupported().TTS {
		return nil
	}
	return b.Send(Directive{Type: DirCancel})
}

// Voices implements [tts.Synthesizer]. It returns the most recent list the
// browser reported.
func (b *Bridge) Voices(context.Context) ([]tts.Voice, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]tts.Voice, len(b.voices))
	copy(out, b.voices)
	return out, nil
}

// --- caption.Display ---

// ShowCaption implements [caption.Display].
func (b *Bridge) ShowCaption(_ context.Context, text string, p caption.Priority) error {
	return b.Send(Directive{Type: DirCaption, Data: Caption{Text: text, Priority: string(p)}})
}
