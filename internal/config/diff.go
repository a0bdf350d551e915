package config

// ConfigDiff describes what changed between two configs. Hot-reloadable
// fields are reported with their new values; anything else that changed is
// listed in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	TimingsChanged bool
	NewTimings     TimingsConfig

	// RestartRequired names the changed settings that only take effect after
	// a restart (e.g., "server.listen_addr").
	RestartRequired []string
}

// Changed reports whether anything differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.TimingsChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Voice.Timings != new.Voice.Timings {
		d.TimingsChanged = true
		d.NewTimings = new.Voice.Timings
	}

	restart := func(field string, changed bool) {
		if changed {
			d.RestartRequired = append(d.RestartRequired, field)
		}
	}
	restart("server.listen_addr", old.Server.ListenAddr != new.Server.ListenAddr)
	restart("server.tls", !sameTLS(old.Server.TLS, new.Server.TLS))
	restart("voice.language", old.Voice.Language != new.Voice.Language)
	restart("voice.shortcut", old.Voice.Shortcut != new.Voice.Shortcut)
	restart("voice.reset_shortcut", old.Voice.ResetShortcut != new.Voice.ResetShortcut)
	restart("voice.fuzzy_targets", old.Voice.FuzzyTargets != new.Voice.FuzzyTargets)
	restart("voice.caption_fallback", old.Voice.CaptionsEnabled() != new.Voice.CaptionsEnabled())
	restart("preferences", old.Preferences != new.Preferences)
	restart("catalog.file", old.Catalog.File != new.Catalog.File)
	restart("shell", old.Shell != new.Shell)
	restart("observe", old.Observe != new.Observe)

	return d
}

func sameTLS(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
