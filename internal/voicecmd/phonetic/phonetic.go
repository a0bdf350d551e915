// Package phonetic resolves mis-heard words to a fixed vocabulary of targets
// using Double Metaphone codes and Jaro-Winkler similarity.
//
// Resolution runs in two passes. A target whose phonetic codes overlap the
// input's codes is a phonetic candidate and is accepted above the phonetic
// threshold. If no phonetic candidate qualifies, every target is scored by
// plain Jaro-Winkler similarity against the stricter fuzzy threshold.
//
// Recognition engines often return "recipies" for "recipes" or "stor" for
// "store"; the voice interpreter uses this package to rescue such commands
// when nothing else matched.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option configures a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a phonetic
// candidate. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) { m.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score used when no
// phonetic candidate qualifies. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) { m.fuzzyThreshold = threshold }
}

type target struct {
	name   string
	lower  string
	tokens []string
	codes  map[string]struct{}
}

// Matcher resolves words against a vocabulary fixed at construction. It is
// read-only after New and safe for concurrent use.
type Matcher struct {
	targets           []target
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a Matcher for the given targets. Blank targets are skipped.
func New(targets []string, opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	for _, name := range targets {
		lower := strings.ToLower(strings.TrimSpace(name))
		if lower == "" {
			continue
		}
		tokens := strings.Fields(lower)
		m.targets = append(m.targets, target{
			name:   name,
			lower:  lower,
			tokens: tokens,
			codes:  codesFor(tokens),
		})
	}
	return m
}

// Targets returns the vocabulary in construction order.
func (m *Matcher) Targets() []string {
	out := make([]string, len(m.targets))
	for i, t := range m.targets {
		out[i] = t.name
	}
	return out
}

// Resolve returns the target closest to word. When ok is false, name is ""
// and score is 0.
func (m *Matcher) Resolve(word string) (name string, score float64, ok bool) {
	lower := strings.ToLower(strings.TrimSpace(word))
	if lower == "" || len(m.targets) == 0 {
		return "", 0, false
	}
	tokens := strings.Fields(lower)
	codes := codesFor(tokens)

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)
	for _, t := range m.targets {
		s := similarity(tokens, t.tokens, lower, t.lower)
		if overlaps(codes, t.codes) {
			if s >= m.phoneticThreshold && (!bestPhonetic || s > bestScore) {
				best, bestScore, bestPhonetic = t.name, s, true
			}
			continue
		}
		if !bestPhonetic && s >= m.fuzzyThreshold && s > bestScore {
			best, bestScore = t.name, s
		}
	}
	if best == "" {
		return "", 0, false
	}
	return best, bestScore, true
}

func codesFor(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func overlaps(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for c := range a {
		if _, ok := b[c]; ok {
			return true
		}
	}
	return false
}

// similarity is the best Jaro-Winkler score across the full strings, the
// space-stripped strings and every token pair.
func similarity(in, tgt []string, inFull, tgtFull string) float64 {
	score := matchr.JaroWinkler(inFull, tgtFull, false)
	if len(in) > 1 || len(tgt) > 1 {
		if s := matchr.JaroWinkler(strings.Join(in, ""), strings.Join(tgt, ""), false); s > score {
			score = s
		}
	}
	for _, a := range in {
		for _, b := range tgt {
			if s := matchr.JaroWinkler(a, b, false); s > score {
				score = s
			}
		}
	}
	return score
}
