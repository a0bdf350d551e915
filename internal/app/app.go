// Package app wires the hands-free voice subsystem into a running server.
//
// New builds every component from the configuration, Run serves HTTP until
// its context ends, and Shutdown releases what New acquired.
//
// For tests, inject doubles with functional options such as
// [WithPreferenceStore]. When an option is not given, New creates the real
// implementation from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/saalsai1/SER598-Group2-ma/internal/catalog"
	"github.com/saalsai1/SER598-Group2-ma/internal/config"
	"github.com/saalsai1/SER598-Group2-ma/internal/handsfree"
	"github.com/saalsai1/SER598-Group2-ma/internal/health"
	"github.com/saalsai1/SER598-Group2-ma/internal/observe"
	"github.com/saalsai1/SER598-Group2-ma/internal/shell"
	"github.com/saalsai1/SER598-Group2-ma/internal/shell/chord"
	"github.com/saalsai1/SER598-Group2-ma/internal/voicecmd"
	"github.com/saalsai1/SER598-Group2-ma/internal/voicecmd/phonetic"
	"github.com/saalsai1/SER598-Group2-ma/pkg/preference"
	"github.com/saalsai1/SER598-Group2-ma/pkg/preference/postgres"
)

const readHeaderTimeout = 10 * time.Second

// App owns the server and the components behind it.
type App struct {
	cfg      *config.Config
	registry *config.Registry
	metrics  *observe.Metrics
	level    *slog.LevelVar
	watcher  *config.Watcher
	products []catalog.Product

	prefs   preference.Store
	gateway *shell.Gateway
	health  *health.Handler
	handler http.Handler
	server  *http.Server

	// closers run in reverse order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option configures an [App].
type Option func(*App)

// WithPreferenceStore injects the voice preference store instead of creating
// one from config. The app does not close an injected store.
func WithPreferenceStore(s preference.Store) Option {
	return func(a *App) { a.prefs = s }
}

// WithRegistry replaces the preference store registry. Default:
// [NewRegistry].
func WithRegistry(r *config.Registry) Option {
	return func(a *App) { a.registry = r }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevel hands the app the level of the process logger so config
// reloads can change it.
func WithLogLevel(l *slog.LevelVar) Option {
	return func(a *App) { a.level = l }
}

// WithWatcher makes Run poll w and apply changed settings.
func WithWatcher(w *config.Watcher) Option {
	return func(a *App) { a.watcher = w }
}

// WithProducts replaces the catalog instead of loading it from config.
func WithProducts(ps []catalog.Product) Option {
	return func(a *App) { a.products = ps }
}

// NewRegistry returns a registry with the built-in preference backends.
func NewRegistry() *config.Registry {
	reg := config.NewRegistry()
	reg.RegisterStore(config.BackendMemory, func(context.Context, config.PreferencesConfig) (preference.Store, error) {
		return preference.NewMemory(), nil
	})
	reg.RegisterStore(config.BackendFile, func(_ context.Context, c config.PreferencesConfig) (preference.Store, error) {
		return preference.OpenFile(c.Path)
	})
	reg.RegisterStore(config.BackendPostgres, func(ctx context.Context, c config.PreferencesConfig) (preference.Store, error) {
		return postgres.NewStore(ctx, c.PostgresDSN)
	})
	return reg
}

// New builds the application from cfg.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.registry == nil {
		a.registry = NewRegistry()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initPreferences(ctx); err != nil {
		return nil, fmt.Errorf("app: init preferences: %w", err)
	}
	if err := a.initCatalog(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init catalog: %w", err)
	}
	if err := a.initShell(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init shell: %w", err)
	}

	a.health = health.New(health.PingChecker("preferences", a.prefs))

	mux := http.NewServeMux()
	a.gateway.Register(mux)
	a.health.Register(mux)
	mux.Handle("GET /metrics", observe.MetricsHandler())
	a.handler = observe.Middleware(a.metrics)(mux)

	a.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return a, nil
}

func (a *App) initPreferences(ctx context.Context) error {
	if a.prefs != nil {
		return nil
	}
	s, err := a.registry.CreateStore(ctx, a.cfg.Preferences)
	if err != nil {
		return err
	}
	a.prefs = s
	a.closers = append(a.closers, s.Close)
	slog.Info("preference store ready", "backend", a.cfg.Preferences.Backend)
	return nil
}

func (a *App) initCatalog() error {
	if a.products != nil {
		return nil
	}
	if a.cfg.Catalog.File == "" {
		a.products = catalog.Default()
		return nil
	}
	ps, err := catalog.LoadFile(a.cfg.Catalog.File)
	if err != nil {
		return err
	}
	a.products = ps
	slog.Info("catalog loaded", "file", a.cfg.Catalog.File, "products", len(ps))
	return nil
}

func (a *App) initShell() error {
	sc, err := ShellConfig(a.cfg)
	if err != nil {
		return err
	}
	iopts := []voicecmd.Option{
		voicecmd.WithProducts(a.products),
		voicecmd.WithMetrics(a.metrics),
	}
	if a.cfg.Voice.FuzzyTargets {
		iopts = append(iopts, voicecmd.WithTargetMatcher(phonetic.New(voicecmd.NavigationTargets())))
	}
	a.gateway = shell.New(sc, voicecmd.New(iopts...), a.prefs, shell.WithMetrics(a.metrics))
	return nil
}

// ShellConfig derives the per-connection settings from cfg.
func ShellConfig(cfg *config.Config) (shell.Config, error) {
	toggle, err := chord.Parse(cfg.Voice.Shortcut)
	if err != nil {
		return shell.Config{}, fmt.Errorf("voice.shortcut: %w", err)
	}
	reset, err := chord.Parse(cfg.Voice.ResetShortcut)
	if err != nil {
		return shell.Config{}, fmt.Errorf("voice.reset_shortcut: %w", err)
	}
	return shell.Config{
		Locale:          cfg.Voice.Language,
		Timings:         SessionTimings(cfg.Voice.Timings),
		Shortcut:        toggle,
		ResetShortcut:   reset,
		Captions:        cfg.Voice.CaptionsEnabled(),
		EventsPerSecond: cfg.Shell.EventsPerSecond,
		Burst:           cfg.Shell.Burst,
		SendQueue:       cfg.Shell.SendQueue,
	}, nil
}

// SessionTimings converts configured delays. Zero fields keep the session
// defaults.
func SessionTimings(t config.TimingsConfig) handsfree.Timings {
	return handsfree.Timings{
		SettleDelay:        t.SettleDelay,
		RestartDelay:       t.RestartDelay,
		AnnouncementBuffer: t.AnnouncementBuffer,
		AnnouncementDelay:  t.AnnouncementDelay,
	}.WithDefaults()
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Gateway returns the websocket gateway.
func (a *App) Gateway() *shell.Gateway { return a.gateway }

// Run serves HTTP on the configured address until ctx ends.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve is [App.Run] on an existing listener. When ctx ends, readiness
// fails, connected browsers are released and in-flight requests get
// server.shutdown_timeout to complete.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", "addr", ln.Addr().String(), "tls", a.cfg.Server.TLS != nil)
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.server.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	})

	g.Go(func() error {
		<-gctx.Done()
		a.health.SetDraining()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := a.gateway.Close(sctx); err != nil {
			slog.Warn("websocket clients did not close in time", "err", err)
		}
		return a.server.Shutdown(sctx)
	})

	if a.watcher != nil {
		g.Go(func() error { return a.watcher.Run(gctx) })
	}

	return g.Wait()
}

// ApplyConfig hot-applies the settings that can change without a restart
// and logs the ones that cannot.
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(SlogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.TimingsChanged {
		a.gateway.SetTimings(SessionTimings(d.NewTimings))
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes need a restart to take effect", "fields", d.RestartRequired)
	}
}

// SlogLevel maps a config level to its slog level.
func SlogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Shutdown releases what New created. Call it after Run has returned.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		if a.watcher != nil {
			a.watcher.Stop()
		}
		if gerr := a.gateway.Close(ctx); gerr != nil {
			slog.Warn("gateway close", "err", gerr)
		}
		err = a.closeAll()
	})
	return err
}

func (a *App) closeAll() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
