package tts

import "strings"

// Voice describes one synthesis voice offered by the engine.
type Voice struct {
	// Name is the engine's display name and the key used for preferences.
	Name string `json:"name"`

	// Lang is the BCP-47 language tag of the voice (e.g., "en-GB").
	Lang string `json:"lang"`

	// Default is true for the engine's default voice.
	Default bool `json:"default,omitempty"`
}

// Utterance is one unit of synthesized speech.
type Utterance struct {
	// ID identifies the utterance in Listener callbacks.
	ID string `json:"id"`

	// Text is what to say.
	Text string `json:"text"`

	// Voice is the voice name to use. Empty lets the engine choose.
	Voice string `json:"voice,omitempty"`

	// Rate is the speaking rate (1 = normal).
	Rate float64 `json:"rate"`

	// Pitch is the voice pitch (1 = normal).
	Pitch float64 `json:"pitch"`
}

// SelectVoice picks the voice to speak with. The preferred voice wins when the
// engine offers it; otherwise the first voice whose language matches the
// language part of locale ("en" for "en-US") is used, then the engine's
// default voice, then the first voice overall. ok is false when voices is
// empty.
func SelectVoice(voices []Voice, preferred, locale string) (v Voice, ok bool) {
	if len(voices) == 0 {
		return Voice{}, false
	}
	if preferred != "" {
		for _, v := range voices {
			if v.Name == preferred {
				return v, true
			}
		}
	}
	lang := languagePrefix(locale)
	if lang != "" {
		for _, v := range voices {
			if strings.HasPrefix(strings.ToLower(v.Lang), lang) {
				return v, true
			}
		}
	}
	for _, v := range voices {
		if v.Default {
			return v, true
		}
	}
	return voices[0], true
}

// languagePrefix returns the lowercase primary language subtag of a BCP-47
// tag ("en" for "en-US", "pt" for "pt_BR").
func languagePrefix(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(locale, "-_"); i >= 0 {
		locale = locale[:i]
	}
	return locale
}
