package shell

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/saalsai1/SER598-Group2-ma/internal/handsfree"
	"github.com/saalsai1/SER598-Group2-ma/internal/resilience"
	"github.com/saalsai1/SER598-Group2-ma/internal/shell/chord"
	"github.com/saalsai1/SER598-Group2-ma/internal/voicecmd"
	"github.com/saalsai1/SER598-Group2-ma/pkg/preference"
	"github.com/saalsai1/SER598-Group2-ma/pkg/provider/browser"
	"github.com/saalsai1/SER598-Group2-ma/pkg/provider/tts/caption"
)

var _ voicecmd.Effects = (*Client)(nil)

// Engine names used for the synthesis fallback chain and its metrics.
const (
	engineSpeech  = "speech"
	engineCaption = "caption"
)

// maxClientIDLen bounds the identifier a browser may present.
const maxClientIDLen = 128

// Client is one connected browser. It owns the bridge to the browser's
// speech engines, the hands-free session driving them, and the application
// state last reported by the page.
type Client struct {
	g       *Gateway
	connID  string
	bridge  *browser.Bridge
	synth   *resilience.SynthFallback
	session *handsfree.Session
	log     *slog.Logger

	mu       sync.Mutex
	clientID string
	state    voicecmd.AppState
}

func newClient(ctx context.Context, g *Gateway, conn *websocket.Conn) *Client {
	c := &Client{g: g, connID: uuid.NewString()}
	c.log = g.log.With("conn", c.connID)

	var limiter *rate.Limiter
	if g.cfg.EventsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(g.cfg.EventsPerSecond), max(g.cfg.Burst, 1))
	}
	c.bridge = browser.New(conn,
		browser.WithQueueSize(g.cfg.SendQueue),
		browser.WithLimiter(limiter),
		browser.WithHandler(c.handle),
		browser.WithLogger(c.log),
	)

	c.synth = resilience.NewSynthFallback(c.bridge, engineSpeech, resilience.FallbackConfig{},
		resilience.WithSynthMetrics(g.metrics))
	if g.cfg.Captions {
		cs := caption.New(c.bridge)
		cs.SetListener(c.synth)
		c.synth.AddFallback(engineCaption, cs)
	}
	c.bridge.SetSynthesisListener(c.synth)

	g.mu.Lock()
	timings := g.timings
	g.mu.Unlock()

	opts := []handsfree.Option{
		handsfree.WithTimings(timings),
		handsfree.WithLocale(g.cfg.Locale),
		handsfree.WithPreferredVoice(c.preferredVoice),
		handsfree.WithCommandHandler(c.command),
		handsfree.WithOnChange(c.publish),
		handsfree.WithMetrics(g.metrics),
		handsfree.WithLogger(c.log),
	}
	c.session = handsfree.New(ctx, c.bridge, c.synth, append(opts, g.sessionOpts...)...)
	c.synth.SetListener(c.session)
	c.bridge.SetRecognitionListener(c.session)
	c.bridge.SetRecognitionConfig(c.session.RecognitionConfig())
	return c
}

// run exchanges messages until the connection ends, then releases the
// speech engines.
func (c *Client) run(ctx context.Context) error {
	c.g.metrics.ConnectedClients.Add(ctx, 1)
	defer c.g.metrics.ConnectedClients.Add(context.WithoutCancel(ctx), -1)

	c.log.Info("shell: client connected")
	err := c.bridge.Run(ctx)
	c.session.Close(context.WithoutCancel(ctx))
	c.log.Info("shell: client disconnected", "dropped", c.bridge.Dropped())
	return err
}

// ClientID returns the identifier the browser presented or was assigned.
func (c *Client) ClientID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientID
}

// Session returns the client's hands-free session.
func (c *Client) Session() *handsfree.Session { return c.session }

func (c *Client) preferredVoice(ctx context.Context) string {
	return preference.VoiceOrDefault(ctx, c.g.prefs, c.ClientID())
}

// handle receives the messages the bridge does not consume.
func (c *Client) handle(ctx context.Context, msg browser.Message) {
	var err error
	switch msg.Type {
	case MsgHello:
		var h browser.Hello
		if err = msg.Decode(&h); err == nil {
			c.hello(h)
		}
	case MsgIntent:
		var in Intent
		if err = msg.Decode(&in); err == nil {
			c.intent(ctx, in)
		}
	case MsgKey:
		var ev chord.KeyEvent
		if err = msg.Decode(&ev); err == nil {
			c.key(ctx, ev)
		}
	case MsgContext:
		var st Context
		if err = msg.Decode(&st); err == nil {
			err = st.Cart.Validate()
		}
		// A rejected update keeps the last good state.
		if err == nil {
			c.mu.Lock()
			c.state = st
			c.mu.Unlock()
		}
	default:
		c.log.Debug("shell: unhandled message", "type", msg.Type)
	}
	if err != nil {
		c.log.Warn("shell: bad message", "type", msg.Type, "err", err)
	}
}

func (c *Client) hello(h browser.Hello) {
	id := strings.TrimSpace(h.ClientID)
	if id == "" || len(id) > maxClientIDLen {
		id = uuid.NewString()
	}
	c.mu.Lock()
	c.clientID = id
	c.mu.Unlock()

	sup := c.bridge.IsSupported()
	c.log.Info("shell: hello", "client_id", id, "stt", sup.STT, "tts", sup.TTS, "voices", len(h.Voices))

	c.send(browser.Directive{Type: DirWelcome, Data: Welcome{
		ClientID:      id,
		Shortcut:      c.g.cfg.Shortcut.String(),
		ResetShortcut: c.g.cfg.ResetShortcut.String(),
	}})
	c.publish(c.session.Snapshot())
}

func (c *Client) intent(ctx context.Context, in Intent) {
	switch in.Action {
	case IntentToggle:
		c.session.Toggle(ctx)
	case IntentStart:
		c.session.StartListening(ctx)
	case IntentStop:
		c.session.StopListening(ctx)
	case IntentHelp:
		c.session.Speak(ctx, voicecmd.PanelHelpText)
	case IntentClose:
		c.session.Disable(ctx)
		c.session.Speak(ctx, handsfree.DeactivationPhrase)
	default:
		c.log.Warn("shell: unknown intent", "action", in.Action)
	}
}

func (c *Client) key(ctx context.Context, ev chord.KeyEvent) {
	switch {
	case c.g.cfg.Shortcut.Matches(ev):
		on := c.session.Toggle(ctx)
		c.log.Debug("shell: toggled by shortcut", "enabled", on)
	case c.g.cfg.ResetShortcut.Matches(ev):
		c.sendPanel(c.session.Snapshot(), true)
	}
}

// command interprets a final transcript and speaks the result.
func (c *Client) command(ctx context.Context, transcript string) {
	c.mu.Lock()
	st := c.state
	c.mu.Unlock()

	res, err := c.g.interp.Interpret(ctx, transcript, st, c)
	if err != nil {
		c.log.Warn("shell: command side effect failed", "action", res.Action, "err", err)
	}
	if res.Announcement != "" {
		c.session.Speak(ctx, res.Announcement)
	}
}

// publish sends the session snapshot and the panel derived from it.
func (c *Client) publish(s handsfree.Snapshot) {
	c.send(browser.Directive{Type: DirStatus, Data: Status(s)})
	c.sendPanel(s, false)
}

func (c *Client) sendPanel(s handsfree.Snapshot, reset bool) {
	c.mu.Lock()
	reduced := c.state.ReducedMotion
	c.mu.Unlock()

	c.send(browser.Directive{Type: DirPanel, Data: buildPanel(panelInput{
		snap:          s,
		sttSupported:  c.bridge.IsSupported().STT,
		reducedMotion: reduced,
		reset:         reset,
		shortcut:      c.g.cfg.Shortcut.String(),
	})})
}

func (c *Client) send(d browser.Directive) {
	if err := c.bridge.Send(d); err != nil {
		c.log.Debug("shell: directive not sent", "type", d.Type, "err", err)
	}
}

// Navigate implements [voicecmd.Effects].
func (c *Client) Navigate(_ context.Context, path string) error {
	if err := c.bridge.Send(browser.Directive{Type: DirNavigate, Data: Navigate{Path: path}}); err != nil {
		return err
	}
	c.mu.Lock()
	c.state.Path = path
	c.mu.Unlock()
	return nil
}

// Scroll implements [voicecmd.Effects].
func (c *Client) Scroll(_ context.Context, s voicecmd.Scroll) error {
	return c.bridge.Send(browser.Directive{Type: DirScroll, Data: s})
}

// DisableHandsFree implements [voicecmd.Effects].
func (c *Client) DisableHandsFree(ctx context.Context) error {
	c.session.Disable(ctx)
	return nil
}
