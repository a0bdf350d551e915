package config_test

import (
	"slices"
	"testing"
	"time"

	"github.com/saalsai1/SER598-Group2-ma/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Server: config.ServerConfig{LogLevel: config.LogInfo}}
	config.ApplyDefaults(cfg)
	if d := config.Diff(cfg, cfg); d.Changed() {
		t.Errorf("identical configs reported changes: %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{LogLevel: config.LogInfo}}
	new := &config.Config{Server: config.ServerConfig{LogLevel: config.LogDebug}}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("log level is hot-reloadable, got RestartRequired=%v", d.RestartRequired)
	}
}

func TestDiff_TimingsChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{}
	new := &config.Config{Voice: config.VoiceConfig{Timings: config.TimingsConfig{SettleDelay: 400 * time.Millisecond}}}

	d := config.Diff(old, new)
	if !d.TimingsChanged {
		t.Fatal("expected TimingsChanged=true")
	}
	if d.NewTimings.SettleDelay != 400*time.Millisecond {
		t.Errorf("NewTimings.SettleDelay = %s, want 400ms", d.NewTimings.SettleDelay)
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()
	off := false
	old := &config.Config{}
	new := &config.Config{
		Server:      config.ServerConfig{ListenAddr: ":9999", TLS: &config.TLSConfig{CertFile: "c", KeyFile: "k"}},
		Voice:       config.VoiceConfig{FuzzyTargets: true, CaptionFallback: &off},
		Preferences: config.PreferencesConfig{Backend: config.BackendFile, Path: "p.json"},
		Observe:     config.ObserveConfig{TraceSampleRatio: 0.25},
	}

	d := config.Diff(old, new)
	for _, field := range []string{"server.listen_addr", "server.tls", "voice.fuzzy_targets", "voice.caption_fallback", "preferences", "observe"} {
		if !slices.Contains(d.RestartRequired, field) {
			t.Errorf("RestartRequired missing %q: %v", field, d.RestartRequired)
		}
	}
	if d.LogLevelChanged || d.TimingsChanged {
		t.Errorf("unexpected hot changes: %+v", d)
	}
}

func TestDiff_SameTLSContents(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{TLS: &config.TLSConfig{CertFile: "c", KeyFile: "k"}}}
	new := &config.Config{Server: config.ServerConfig{TLS: &config.TLSConfig{CertFile: "c", KeyFile: "k"}}}
	if d := config.Diff(old, new); d.Changed() {
		t.Errorf("equal TLS blocks reported as changed: %+v", d)
	}
}
