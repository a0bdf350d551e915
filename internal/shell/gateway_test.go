package shell_test

import (
	"context"
	"encoding/json"
	"errors"
	"html"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/saalsai1/SER598-Group2-ma/internal/handsfree"
	"github.com/saalsai1/SER598-Group2-ma/internal/observe"
	"github.com/saalsai1/SER598-Group2-ma/internal/shell"
	"github.com/saalsai1/SER598-Group2-ma/internal/voicecmd"
	"github.com/saalsai1/SER598-Group2-ma/pkg/preference"
	prefmock "github.com/saalsai1/SER598-Group2-ma/pkg/preference/mock"
	"github.com/saalsai1/SER598-Group2-ma/pkg/provider/browser"
	"github.com/saalsai1/SER598-Group2-ma/pkg/provider/tts"
	"github.com/saalsai1/SER598-Group2-ma/pkg/types"
)

const waitTimeout = 3 * time.Second

// fastTimings keeps the re-arm windows short so tests wait on real timers.
var fastTimings = handsfree.Timings{
	SettleDelay:        time.Millisecond,
	RestartDelay:       time.Millisecond,
	AnnouncementBuffer: time.Millisecond,
	AnnouncementDelay:  time.Millisecond,
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func newServer(t *testing.T, cfg shell.Config, prefs preference.Store) (*shell.Gateway, *httptest.Server) {
	t.Helper()
	if cfg.Timings == (handsfree.Timings{}) {
		cfg.Timings = fastTimings
	}
	cfg.Captions = true
	metrics := testMetrics(t)
	g := shell.New(cfg, voicecmd.New(voicecmd.WithMetrics(metrics)), prefs, shell.WithMetrics(metrics))
	mux := http.NewServeMux()
	g.Register(mux)
	srv := httptest.NewServer(observe.Middleware(metrics)(mux))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		_ = g.Close(ctx)
		srv.Close()
	})
	return g, srv
}

// fakeBrowser is the client side of a shell connection.
type fakeBrowser struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, srv *httptest.Server) *fakeBrowser {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return &fakeBrowser{t: t, conn: conn}
}

func (b *fakeBrowser) send(typ string, data any) {
	b.t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		b.t.Fatalf("marshal: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, b.conn, browser.Message{Type: typ, Data: raw}); err != nil {
		b.t.Fatalf("write %s: %v", typ, err)
	}
}

type directive struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// await reads directives until one of type typ satisfies match, decoding it
// into v. Other directives are skipped.
func (b *fakeBrowser) await(typ string, v any, match func() bool) {
	b.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	for {
		var d directive
		if err := wsjson.Read(ctx, b.conn, &d); err != nil {
			b.t.Fatalf("waiting for %s: %v", typ, err)
		}
		if d.Type != typ {
			continue
		}
		if err := json.Unmarshal(d.Data, v); err != nil {
			b.t.Fatalf("decode %s: %v", typ, err)
		}
		if match == nil || match() {
			return
		}
	}
}

func (b *fakeBrowser) hello(h browser.Hello) shell.Welcome {
	b.t.Helper()
	b.send(shell.MsgHello, h)
	var w shell.Welcome
	b.await(shell.DirWelcome, &w, nil)
	return w
}

// awaitSpeak waits for an utterance with the given text.
func (b *fakeBrowser) awaitSpeak(text string) tts.Utterance {
	b.t.Helper()
	var u tts.Utterance
	b.await(browser.DirSpeak, &u, func() bool { return u.Text == text })
	return u
}

// awaitListening waits for recognition to be requested, reports that it
// started and waits for the panel to show it.
func (b *fakeBrowser) awaitListening() {
	b.t.Helper()
	var cmd browser.RecognitionCommand
	b.await(browser.DirRecognition, &cmd, func() bool { return cmd.Command == browser.CommandStart })
	b.send(browser.MsgRecognition, browser.RecognitionEvent{Event: browser.EventStart})
	var p shell.Panel
	b.await(shell.DirPanel, &p, func() bool { return p.Listening })
}

// enable turns hands-free mode on with the keyboard shortcut and plays the
// activation announcement through to the first recognition run.
func (b *fakeBrowser) enable() {
	b.t.Helper()
	b.send(shell.MsgKey, map[string]any{"key": "a", "ctrl": true, "alt": true})
	u := b.awaitSpeak(handsfree.ActivationAnnouncement)
	b.send(browser.MsgSynthesis, browser.SynthesisEvent{Event: browser.EventUtteranceEnd, ID: u.ID})
	b.awaitListening()
}

func (b *fakeBrowser) say(text string) {
	b.t.Helper()
	b.send(browser.MsgRecognition, browser.RecognitionEvent{Event: browser.EventResult, Transcript: text, Final: true})
}

var fullSupport = types.Support{STT: true, TTS: true}

func TestGateway_HelloAssignsClientID(t *testing.T) {
	t.Parallel()
	_, srv := newServer(t, shell.Config{}, preference.NewMemory())

	w := dial(t, srv).hello(browser.Hello{Support: fullSupport})
	if w.ClientID == "" {
		t.Error("ClientID is empty, want an assigned ID")
	}
	if w.Shortcut != "ctrl+alt+a" || w.ResetShortcut != "ctrl+alt+r" {
		t.Errorf("shortcuts = %q, %q", w.Shortcut, w.ResetShortcut)
	}

	w = dial(t, srv).hello(browser.Hello{ClientID: "returning", Support: fullSupport})
	if w.ClientID != "returning" {
		t.Errorf("ClientID = %q, want %q", w.ClientID, "returning")
	}
}

func TestGateway_HelloPublishesHiddenPanel(t *testing.T) {
	t.Parallel()
	_, srv := newServer(t, shell.Config{}, preference.NewMemory())

	b := dial(t, srv)
	b.hello(browser.Hello{Support: types.Support{TTS: true}})
	var p shell.Panel
	b.await(shell.DirPanel, &p, nil)
	if p.Visible {
		t.Error("panel visible before hands-free mode is on")
	}
	if p.MicEnabled {
		t.Error("mic enabled without recognition support")
	}
}

func TestGateway_VoiceCommandNavigates(t *testing.T) {
	t.Parallel()
	_, srv := newServer(t, shell.Config{}, preference.NewMemory())

	b := dial(t, srv)
	b.hello(browser.Hello{Support: fullSupport, Voices: []tts.Voice{{Name: "Alice", Lang: "en-US"}}})
	b.enable()

	b.say("Go to store")
	var nav shell.Navigate
	b.await(shell.DirNavigate, &nav, nil)
	if nav.Path != "/store" {
		t.Errorf("navigate path = %q, want /store", nav.Path)
	}
	u := b.awaitSpeak("Navigating to store.")
	if u.Voice != "Alice" {
		t.Errorf("voice = %q, want Alice", u.Voice)
	}

	// Recognition resumes once the response has been spoken.
	b.send(browser.MsgSynthesis, browser.SynthesisEvent{Event: browser.EventUtteranceEnd, ID: u.ID})
	b.awaitListening()

	b.say("read this page")
	b.awaitSpeak(voicecmd.PageDescription("/store"))
}

func TestGateway_ScrollHonoursReducedMotion(t *testing.T) {
	t.Parallel()
	_, srv := newServer(t, shell.Config{}, preference.NewMemory())

	b := dial(t, srv)
	b.hello(browser.Hello{Support: fullSupport})
	b.send(shell.MsgContext, shell.Context{Path: "/", ReducedMotion: true})
	b.enable()

	b.say("scroll down")
	var s voicecmd.Scroll
	b.await(shell.DirScroll, &s, nil)
	if s.Mode != voicecmd.ScrollBy || s.Top != voicecmd.ScrollStep {
		t.Errorf("scroll = %+v, want by %d", s, voicecmd.ScrollStep)
	}
	if s.Behavior != voicecmd.ScrollInstant {
		t.Errorf("behavior = %q, want %q", s.Behavior, voicecmd.ScrollInstant)
	}
	b.awaitSpeak("Scrolling down.")
}

func TestGateway_CartSummaryUsesReportedCart(t *testing.T) {
	t.Parallel()
	_, srv := newServer(t, shell.Config{}, preference.NewMemory())

	b := dial(t, srv)
	b.hello(browser.Hello{Support: fullSupport})
	b.send(shell.MsgContext, shell.Context{Path: "/store", Cart: types.Cart{Items: []types.CartItem{
		{ID: "1", Name: "Apples", Price: 1.25, Quantity: 2},
	}}})
	b.enable()

	b.say("show my cart")
	b.awaitSpeak("You have 2 items in your cart, total 2 dollars and 50 cents.")
}

func TestGateway_InvalidCartIsRejected(t *testing.T) {
	t.Parallel()
	_, srv := newServer(t, shell.Config{}, preference.NewMemory())

	b := dial(t, srv)
	b.hello(browser.Hello{Support: fullSupport})
	b.send(shell.MsgContext, shell.Context{Path: "/store", Cart: types.Cart{Items: []types.CartItem{
		{ID: "1", Name: "Apples", Price: 1.25, Quantity: 2},
	}}})
	b.send(shell.MsgContext, shell.Context{Path: "/cart", Cart: types.Cart{Items: []types.CartItem{
		{ID: "1", Name: "Apples", Price: 1.25, Quantity: -1},
		{ID: "2", Name: "Pears", Price: -0.5, Quantity: 1},
	}}})
	b.enable()

	b.say("show my cart")
	b.awaitSpeak("You have 2 items in your cart, total 2 dollars and 50 cents.")
}

func TestGateway_ExitByVoice(t *testing.T) {
	t.Parallel()
	_, srv := newServer(t, shell.Config{}, preference.NewMemory())

	b := dial(t, srv)
	b.hello(browser.Hello{Support: fullSupport})
	b.enable()

	b.say("exit hands free mode")
	var p shell.Panel
	b.await(shell.DirPanel, &p, func() bool { return !p.Visible })
	b.awaitSpeak(voicecmd.ExitAnnouncement)
}

func TestGateway_CloseIntent(t *testing.T) {
	t.Parallel()
	_, srv := newServer(t, shell.Config{}, preference.NewMemory())

	b := dial(t, srv)
	b.hello(browser.Hello{Support: fullSupport})
	b.enable()

	b.send(shell.MsgIntent, shell.Intent{Action: shell.IntentClose})
	var p shell.Panel
	b.await(shell.DirPanel, &p, func() bool { return !p.Visible })
	b.awaitSpeak(handsfree.DeactivationPhrase)
}

func TestGateway_MicIntents(t *testing.T) {
	t.Parallel()
	_, srv := newServer(t, shell.Config{}, preference.NewMemory())

	b := dial(t, srv)
	b.hello(browser.Hello{Support: fullSupport})
	b.enable()

	b.send(shell.MsgIntent, shell.Intent{Action: shell.IntentStop})
	var cmd browser.RecognitionCommand
	b.await(browser.DirRecognition, &cmd, func() bool { return cmd.Command == browser.CommandAbort })
	var p shell.Panel
	b.await(shell.DirPanel, &p, func() bool { return !p.Listening && p.Visible })
	if p.Indicator != shell.IndicatorIdle {
		t.Errorf("indicator = %q, want %q", p.Indicator, shell.IndicatorIdle)
	}

	b.send(shell.MsgIntent, shell.Intent{Action: shell.IntentStart})
	b.awaitListening()

	b.send(shell.MsgIntent, shell.Intent{Action: shell.IntentHelp})
	b.awaitSpeak(voicecmd.PanelHelpText)
}

func TestGateway_ResetShortcut(t *testing.T) {
	t.Parallel()
	_, srv := newServer(t, shell.Config{}, preference.NewMemory())

	b := dial(t, srv)
	b.hello(browser.Hello{Support: fullSupport})
	b.send(shell.MsgKey, map[string]any{"key": "R", "ctrl": true, "alt": true, "shift": true})
	var p shell.Panel
	b.await(shell.DirPanel, &p, func() bool { return p.Reset })
}

func TestGateway_PreferredVoice(t *testing.T) {
	t.Parallel()
	prefs := preference.NewMemory()
	if err := prefs.SetPreferredVoice(context.Background(), "c1", "Bob"); err != nil {
		t.Fatalf("SetPreferredVoice: %v", err)
	}
	_, srv := newServer(t, shell.Config{}, prefs)

	b := dial(t, srv)
	b.hello(browser.Hello{ClientID: "c1", Support: fullSupport, Voices: []tts.Voice{
		{Name: "Alice", Lang: "en-US"},
		{Name: "Bob", Lang: "en-GB"},
	}})
	b.send(shell.MsgIntent, shell.Intent{Action: shell.IntentToggle})
	u := b.awaitSpeak(handsfree.ActivationAnnouncement)
	if u.Voice != "Bob" {
		t.Errorf("voice = %q, want Bob", u.Voice)
	}
}

func TestGateway_CaptionWhenSynthesisUnsupported(t *testing.T) {
	t.Parallel()
	_, srv := newServer(t, shell.Config{}, preference.NewMemory())

	b := dial(t, srv)
	b.hello(browser.Hello{Support: types.Support{STT: true}})
	b.send(shell.MsgIntent, shell.Intent{Action: shell.IntentToggle})

	var c browser.Caption
	b.await(browser.DirCaption, &c, func() bool { return c.Text == handsfree.ActivationAnnouncement })
	if c.Priority != "polite" {
		t.Errorf("priority = %q, want polite", c.Priority)
	}
	// The caption engine reports the end once the caption is cleared, which
	// re-arms recognition.
	var cmd browser.RecognitionCommand
	b.await(browser.DirRecognition, &cmd, func() bool { return cmd.Command == browser.CommandStart })
}

func TestGateway_SetTimingsAndClose(t *testing.T) {
	t.Parallel()
	g, srv := newServer(t, shell.Config{}, preference.NewMemory())

	b := dial(t, srv)
	b.hello(browser.Hello{Support: fullSupport})

	deadline := time.Now().Add(waitTimeout)
	for g.Clients() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("Clients() = %d, want 1", g.Clients())
		}
		time.Sleep(5 * time.Millisecond)
	}
	g.SetTimings(handsfree.Timings{RestartDelay: 2 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	if err := g.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if n := g.Clients(); n != 0 {
		t.Errorf("Clients() after Close = %d, want 0", n)
	}

	rctx, rcancel := context.WithTimeout(context.Background(), waitTimeout)
	defer rcancel()
	for {
		var d directive
		if err := wsjson.Read(rctx, b.conn, &d); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				t.Fatal("connection still open after Close")
			}
			break
		}
	}

	if _, _, err := websocket.Dial(rctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil); err == nil {
		t.Error("Dial after Close succeeded, want refusal")
	}
}

// --- HTTP API ---

func TestGateway_Index(t *testing.T) {
	t.Parallel()
	_, srv := newServer(t, shell.Config{}, preference.NewMemory())

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	// html/template escapes '+' in text, so compare against the decoded page.
	body := html.UnescapeString(string(raw))
	for _, want := range []string{"<kbd>ctrl+alt+a</kbd>", "<kbd>ctrl+alt+r</kbd>", "Scroll to bottom", `aria-label="Hands-free voice control"`} {
		if !strings.Contains(body, want) {
			t.Errorf("index page missing %q", want)
		}
	}
}

func TestGateway_Commands(t *testing.T) {
	t.Parallel()
	_, srv := newServer(t, shell.Config{}, preference.NewMemory())

	resp, err := http.Get(srv.URL + "/api/commands")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var body struct {
		Shortcut  string             `json:"shortcut"`
		Help      string             `json:"help"`
		Reference []voicecmd.Section `json:"reference"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Help != voicecmd.HelpText {
		t.Errorf("help = %q", body.Help)
	}
	if len(body.Reference) != len(voicecmd.Reference()) {
		t.Errorf("reference sections = %d, want %d", len(body.Reference), len(voicecmd.Reference()))
	}
}

func doJSON(t *testing.T, method, url string, header http.Header, body string) (*http.Response, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, string(b)
}

func TestGateway_VoicePreferenceRoundTrip(t *testing.T) {
	t.Parallel()
	_, srv := newServer(t, shell.Config{}, preference.NewMemory())
	url := srv.URL + "/api/preferences/voice"

	resp, body := doJSON(t, http.MethodGet, url+"?client_id=c1", nil, "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"voice":""`) {
		t.Fatalf("GET unset = %d %s", resp.StatusCode, body)
	}

	hdr := http.Header{shell.ClientIDHeader: {"c1"}}
	resp, body = doJSON(t, http.MethodPut, url, hdr, `{"voice":"Samantha"}`)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("PUT = %d %s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodGet, url+"?client_id=c1", nil, "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"voice":"Samantha"`) {
		t.Errorf("GET = %d %s", resp.StatusCode, body)
	}
}

func TestGateway_VoicePreferenceErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefs  preference.Store
		method string
		query  string
		body   string
		want   int
	}{
		{"missing client id", preference.NewMemory(), http.MethodGet, "", "", http.StatusBadRequest},
		{"bad body", preference.NewMemory(), http.MethodPut, "?client_id=c1", `{"voice":`, http.StatusBadRequest},
		{"unknown field", preference.NewMemory(), http.MethodPut, "?client_id=c1", `{"colour":"red"}`, http.StatusBadRequest},
		{"no store", nil, http.MethodGet, "?client_id=c1", "", http.StatusServiceUnavailable},
		{"read failure", &prefmock.Store{GetErr: errors.New("down")}, http.MethodGet, "?client_id=c1", "", http.StatusInternalServerError},
		{"write failure", &prefmock.Store{SetErr: errors.New("down")}, http.MethodPut, "?client_id=c1", `{"voice":"x"}`, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, srv := newServer(t, shell.Config{}, tt.prefs)
			resp, body := doJSON(t, tt.method, srv.URL+"/api/preferences/voice"+tt.query, nil, tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d (%s)", resp.StatusCode, tt.want, body)
			}
		})
	}
}
