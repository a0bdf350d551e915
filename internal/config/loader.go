package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/saalsai1/SER598-Group2-ma/internal/shell/chord"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. An empty document yields the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadBytes(data []byte) (*Config, error) {
	return LoadFromReader(bytes.NewReader(data))
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}
	if cfg.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout %s must not be negative", cfg.Server.ShutdownTimeout))
	}

	// Voice
	t := cfg.Voice.Timings
	for _, d := range []struct {
		name string
		val  time.Duration
	}{
		{"settle_delay", t.SettleDelay},
		{"restart_delay", t.RestartDelay},
		{"announcement_buffer", t.AnnouncementBuffer},
		{"announcement_delay", t.AnnouncementDelay},
	} {
		if d.val < 0 {
			errs = append(errs, fmt.Errorf("voice.timings.%s %s must not be negative", d.name, d.val))
		}
	}
	if cfg.Voice.Shortcut != "" {
		if _, err := chord.Parse(cfg.Voice.Shortcut); err != nil {
			errs = append(errs, fmt.Errorf("voice.shortcut: %w", err))
		}
	}
	if cfg.Voice.ResetShortcut != "" {
		if _, err := chord.Parse(cfg.Voice.ResetShortcut); err != nil {
			errs = append(errs, fmt.Errorf("voice.reset_shortcut: %w", err))
		}
	}
	if cfg.Voice.Shortcut != "" && cfg.Voice.Shortcut == cfg.Voice.ResetShortcut {
		errs = append(errs, fmt.Errorf("voice.reset_shortcut %q duplicates voice.shortcut", cfg.Voice.ResetShortcut))
	}

	// Preferences
	p := cfg.Preferences
	if p.Backend != "" && !p.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("preferences.backend %q is invalid; valid values: memory, file, postgres", p.Backend))
	}
	if p.Backend == BackendFile && p.Path == "" {
		errs = append(errs, errors.New("preferences.path is required when backend is file"))
	}
	if p.Backend == BackendPostgres && p.PostgresDSN == "" {
		errs = append(errs, errors.New("preferences.postgres_dsn is required when backend is postgres"))
	}
	if p.Backend == BackendMemory && (p.Path != "" || p.PostgresDSN != "") {
		slog.Warn("preferences.backend is memory; path and postgres_dsn are ignored")
	}

	// Shell
	if cfg.Shell.EventsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("shell.events_per_second %.2f must not be negative", cfg.Shell.EventsPerSecond))
	}
	if cfg.Shell.Burst < 0 {
		errs = append(errs, fmt.Errorf("shell.burst %d must not be negative", cfg.Shell.Burst))
	}
	if cfg.Shell.SendQueue < 0 {
		errs = append(errs, fmt.Errorf("shell.send_queue %d must not be negative", cfg.Shell.SendQueue))
	}

	if r := cfg.Observe.TraceSampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("observe.trace_sample_ratio %.2f must be between 0 and 1", r))
	}

	return errors.Join(errs...)
}
