// Package shell is the presentation shell of the hands-free subsystem. It
// serves the thin browser client, accepts its websocket, and connects every
// browser to its own hands-free session and to the shared command
// interpreter.
//
// The browser executes directives (speak, start recognition, navigate,
// scroll, render the panel) and reports engine events and page state. No
// decision is taken in the browser.
package shell

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/coder/websocket"

	"github.com/saalsai1/SER598-Group2-ma/internal/handsfree"
	"github.com/saalsai1/SER598-Group2-ma/internal/observe"
	"github.com/saalsai1/SER598-Group2-ma/internal/shell/chord"
	"github.com/saalsai1/SER598-Group2-ma/internal/voicecmd"
	"github.com/saalsai1/SER598-Group2-ma/pkg/preference"
)

//go:embed static/index.html
var indexHTML string

var indexTmpl = template.Must(template.New("index").Parse(indexHTML))

// ClientIDHeader carries the client identifier on preference API requests
// when it is not given as the client_id query parameter.
const ClientIDHeader = "X-Client-ID"

// maxPreferenceBody bounds PUT /api/preferences/voice bodies.
const maxPreferenceBody = 4 << 10

// ErrClosed is returned by operations on a closed gateway.
var ErrClosed = errors.New("shell: gateway closed")

// Config holds the settings shared by every connection.
type Config struct {
	// Locale is the recognition language. Default: "en-US".
	Locale string

	Timings handsfree.Timings

	// Shortcut toggles hands-free mode. Default: ctrl+alt+a.
	Shortcut chord.Chord

	// ResetShortcut scrolls the command reference back to the top.
	// Default: ctrl+alt+r.
	ResetShortcut chord.Chord

	// Captions adds the text-only caption engine behind speech synthesis.
	Captions bool

	// EventsPerSecond and Burst limit inbound messages per connection. Zero
	// EventsPerSecond disables the limit.
	EventsPerSecond float64
	Burst           int

	// SendQueue is the outbound directive queue size per connection.
	SendQueue int
}

func (c Config) withDefaults() Config {
	if c.Locale == "" {
		c.Locale = "en-US"
	}
	if c.Shortcut == (chord.Chord{}) {
		c.Shortcut = chord.MustParse("ctrl+alt+a")
	}
	if c.ResetShortcut == (chord.Chord{}) {
		c.ResetShortcut = chord.MustParse("ctrl+alt+r")
	}
	c.Timings = c.Timings.WithDefaults()
	return c
}

// Option configures a [Gateway].
type Option func(*Gateway)

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithLogger sets the logger. Default: [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.log = l }
}

// WithSessionOptions appends options to every session the gateway creates.
func WithSessionOptions(opts ...handsfree.Option) Option {
	return func(g *Gateway) { g.sessionOpts = append(g.sessionOpts, opts...) }
}

// Gateway serves the shell's HTTP routes and owns the connected clients.
type Gateway struct {
	cfg         Config
	interp      *voicecmd.Interpreter
	prefs       preference.Store
	metrics     *observe.Metrics
	log         *slog.Logger
	sessionOpts []handsfree.Option

	mu      sync.Mutex
	timings handsfree.Timings
	clients map[*Client]context.CancelFunc
	closed  bool
	wg      sync.WaitGroup
}

// New creates a Gateway. prefs may be nil, in which case no voice is ever
// preferred and the preference API answers 503.
func New(cfg Config, interp *voicecmd.Interpreter, prefs preference.Store, opts ...Option) *Gateway {
	cfg = cfg.withDefaults()
	g := &Gateway{
		cfg:     cfg,
		interp:  interp,
		prefs:   prefs,
		timings: cfg.Timings,
		clients: make(map[*Client]context.CancelFunc),
	}
	for _, o := range opts {
		o(g)
	}
	if g.metrics == nil {
		g.metrics = observe.DefaultMetrics()
	}
	if g.log == nil {
		g.log = slog.Default()
	}
	return g
}

// Register adds the shell routes to mux.
func (g *Gateway) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", g.serveIndex)
	mux.HandleFunc("GET /ws", g.serveWS)
	mux.HandleFunc("GET /api/commands", g.serveCommands)
	mux.HandleFunc("GET /api/preferences/voice", g.getVoice)
	mux.HandleFunc("PUT /api/preferences/voice", g.putVoice)
}

// Clients returns the number of connected clients.
func (g *Gateway) Clients() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.clients)
}

// SetTimings applies new session delays to every connected client and to
// clients that connect later.
func (g *Gateway) SetTimings(t handsfree.Timings) {
	t = t.WithDefaults()
	g.mu.Lock()
	g.timings = t
	clients := make([]*Client, 0, len(g.clients))
	for c := range g.clients {
		clients = append(clients, c)
	}
	g.mu.Unlock()

	for _, c := range clients {
		c.session.SetTimings(t)
	}
	g.log.Info("shell: session timings updated", "clients", len(clients))
}

// Close disconnects every client and waits for their sessions to be
// released or for ctx to end. New connections are refused afterwards.
func (g *Gateway) Close(ctx context.Context) error {
	g.mu.Lock()
	g.closed = true
	for _, cancel := range g.clients {
		cancel()
	}
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gateway) serveWS(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	closed := g.closed
	if !closed {
		g.wg.Add(1)
	}
	g.mu.Unlock()
	if closed {
		http.Error(w, ErrClosed.Error(), http.StatusServiceUnavailable)
		return
	}
	defer g.wg.Done()

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		g.log.Warn("shell: websocket accept failed", "err", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := newClient(ctx, g, conn)
	g.mu.Lock()
	if g.closed {
		cancel()
	}
	g.clients[c] = cancel
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		delete(g.clients, c)
		g.mu.Unlock()
	}()

	if err := c.run(ctx); err != nil {
		c.log.Warn("shell: connection ended with error", "err", err)
	}
}

type indexData struct {
	Shortcut      string
	ResetShortcut string
	Reference     []voicecmd.Section
}

func (g *Gateway) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := indexTmpl.Execute(w, indexData{
		Shortcut:      g.cfg.Shortcut.String(),
		ResetShortcut: g.cfg.ResetShortcut.String(),
		Reference:     voicecmd.Reference(),
	})
	if err != nil {
		observe.Logger(r.Context()).Error("shell: render index", "err", err)
	}
}

// commandsResponse is the body of GET /api/commands.
type commandsResponse struct {
	Shortcut      string             `json:"shortcut"`
	ResetShortcut string             `json:"reset_shortcut"`
	Help          string             `json:"help"`
	Reference     []voicecmd.Section `json:"reference"`
}

func (g *Gateway) serveCommands(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, commandsResponse{
		Shortcut:      g.cfg.Shortcut.String(),
		ResetShortcut: g.cfg.ResetShortcut.String(),
		Help:          voicecmd.HelpText,
		Reference:     voicecmd.Reference(),
	})
}

// voicePreference is the body of the voice preference API.
type voicePreference struct {
	ClientID string `json:"client_id,omitempty"`
	Voice    string `json:"voice"`
}

func (g *Gateway) getVoice(w http.ResponseWriter, r *http.Request) {
	id, ok := g.preferenceClient(w, r)
	if !ok {
		return
	}
	voice, err := g.prefs.PreferredVoice(r.Context(), id)
	if err != nil && !errors.Is(err, preference.ErrNotFound) {
		observe.Logger(r.Context()).Error("shell: read voice preference", "client_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "preference store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, voicePreference{ClientID: id, Voice: voice})
}

func (g *Gateway) putVoice(w http.ResponseWriter, r *http.Request) {
	id, ok := g.preferenceClient(w, r)
	if !ok {
		return
	}
	var body voicePreference
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPreferenceBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	voice := strings.TrimSpace(body.Voice)
	if err := g.prefs.SetPreferredVoice(r.Context(), id, voice); err != nil {
		observe.Logger(r.Context()).Error("shell: write voice preference", "client_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "preference store unavailable")
		return
	}
	observe.Logger(r.Context()).Info("shell: voice preference saved", "client_id", id, "voice", voice)
	w.WriteHeader(http.StatusNoContent)
}

// preferenceClient extracts the client ID of a preference request and
// writes the error response when it cannot be served.
func (g *Gateway) preferenceClient(w http.ResponseWriter, r *http.Request) (string, bool) {
	if g.prefs == nil {
		writeError(w, http.StatusServiceUnavailable, "no preference store configured")
		return "", false
	}
	id := strings.TrimSpace(r.URL.Query().Get("client_id"))
	if id == "" {
		id = strings.TrimSpace(r.Header.Get(ClientIDHeader))
	}
	if id == "" || len(id) > maxClientIDLen {
		writeError(w, http.StatusBadRequest, "client_id is required")
		return "", false
	}
	return id, true
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("shell: encode response", "err", err)
	}
}
