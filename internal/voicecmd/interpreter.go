// Package voicecmd maps recognized transcripts to site actions and the
// sentence spoken back to the user.
//
// Matching is deliberately permissive: transcripts are normalized and tested
// against an ordered list of substring and regex rules, and the first rule
// that matches wins. Side effects such as navigation and scrolling are
// performed through an injected [Effects] so the interpreter itself holds no
// state and is safe for concurrent use.
package voicecmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/saalsai1/SER598-Group2-ma/internal/catalog"
	"github.com/saalsai1/SER598-Group2-ma/internal/observe"
	"github.com/saalsai1/SER598-Group2-ma/internal/voicecmd/phonetic"
	"github.com/saalsai1/SER598-Group2-ma/pkg/types"
)

// Action categorizes an interpreted command.
type Action string

const (
	ActionNavigate Action = "navigate"
	ActionSearch   Action = "search"
	ActionScroll   Action = "scroll"
	ActionRead     Action = "read"
	ActionCart     Action = "cart"
	ActionHelp     Action = "help"
	ActionExit     Action = "exit"
	ActionUnknown  Action = "unknown"
)

// Result is the outcome of interpreting one transcript.
type Result struct {
	Action       Action `json:"action"`
	Announcement string `json:"announcement"`
	Executed     bool   `json:"executed"`
}

// ScrollMode says whether a scroll is relative or absolute.
type ScrollMode string

const (
	ScrollBy ScrollMode = "by"
	ScrollTo ScrollMode = "to"
)

// ScrollBehavior is the animation style of a scroll.
type ScrollBehavior string

const (
	ScrollInstant ScrollBehavior = "instant"
	ScrollSmooth  ScrollBehavior = "smooth"
)

// ScrollStep is the distance in pixels moved by "scroll up" and "scroll down".
const ScrollStep = 400

// Scroll describes a page scroll.
type Scroll struct {
	Mode ScrollMode `json:"mode"`

	// Left and Top are a pixel delta for ScrollBy and a position for
	// ScrollTo.
	Left int `json:"left"`
	Top  int `json:"top"`

	// ToBottom asks for the bottom of the page; Top is ignored. Only the
	// client knows the page height.
	ToBottom bool `json:"to_bottom,omitempty"`

	Behavior ScrollBehavior `json:"behavior"`
}

// Effects performs the side effects of interpreted commands.
type Effects interface {
	Navigate(ctx context.Context, path string) error
	Scroll(ctx context.Context, s Scroll) error
	DisableHandsFree(ctx context.Context) error
}

// AppState is the application state a command may read. It is supplied by
// the caller for every transcript and never modified.
type AppState struct {
	Path          string     `json:"path"`
	ReducedMotion bool       `json:"reduced_motion"`
	Cart          types.Cart `json:"cart"`
}

// Option configures an [Interpreter].
type Option func(*Interpreter)

// WithProducts sets the catalog read by "read products". Default:
// [catalog.Default].
func WithProducts(ps []catalog.Product) Option {
	return func(in *Interpreter) { in.products = ps }
}

// WithTargetMatcher enables the phonetic fallback for navigation commands.
// m's vocabulary must use the names returned by [NavigationTargets].
func WithTargetMatcher(m *phonetic.Matcher) Option {
	return func(in *Interpreter) { in.targets = m }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(in *Interpreter) { in.metrics = m }
}

// Interpreter turns transcripts into actions.
type Interpreter struct {
	rules    []rule
	products []catalog.Product
	targets  *phonetic.Matcher
	metrics  *observe.Metrics
}

// New returns an Interpreter with the built-in rule set.
func New(opts ...Option) *Interpreter {
	in := &Interpreter{rules: defaultRules()}
	for _, o := range opts {
		o(in)
	}
	if in.products == nil {
		in.products = catalog.Default()
	}
	if in.metrics == nil {
		in.metrics = observe.DefaultMetrics()
	}
	return in
}

// Interpret matches transcript against the rules, performs the matching
// command's side effect once and returns the result. An error from fx is
// returned together with a result whose Executed is false; the announcement
// is still usable.
func (in *Interpreter) Interpret(ctx context.Context, transcript string, state AppState, fx Effects) (Result, error) {
	ctx, span := observe.StartSpan(ctx, "voicecmd.interpret")
	defer span.End()
	start := time.Now()

	res, name, err := in.interpret(ctx, transcript, state, fx)

	in.metrics.InterpretDuration.Record(ctx, time.Since(start).Seconds())
	in.metrics.RecordCommand(ctx, string(res.Action), res.Executed)

	log := observe.Logger(ctx)
	switch {
	case err != nil:
		log.Warn("voicecmd: command failed", "rule", name, "text", transcript, "err", err)
	case res.Executed:
		log.Info("voicecmd: command executed", "rule", name, "action", res.Action, "text", transcript)
	default:
		log.Info("voicecmd: command not recognized", "text", transcript)
	}
	return res, err
}

func (in *Interpreter) interpret(ctx context.Context, transcript string, state AppState, fx Effects) (Result, string, error) {
	text := Normalize(transcript)
	req := &request{in: in, state: state, fx: fx}

	if text != "" {
		for _, r := range in.rules {
			m := r.match(text)
			if m == nil {
				continue
			}
			return in.run(ctx, r, req, m)
		}
		if r, m, ok := in.phoneticFallback(ctx, text); ok {
			return in.run(ctx, r, req, m)
		}
	}

	return Result{
		Action:       ActionUnknown,
		Announcement: `Sorry, I didn't understand "` + strings.TrimSpace(transcript) + `". Say help to hear available commands.`,
		Executed:     false,
	}, "", nil
}

func (in *Interpreter) run(ctx context.Context, r rule, req *request, m []string) (Result, string, error) {
	announcement, err := r.exec(ctx, req, m)
	res := Result{Action: r.action, Announcement: announcement, Executed: err == nil}
	if err != nil {
		return res, r.name, fmt.Errorf("voicecmd: %s: %w", r.name, err)
	}
	return res, r.name, nil
}

// navPrefixes are stripped before the phonetic fallback looks at what is
// left of the transcript.
var navPrefixes = []string{"please ", "go to the ", "go to ", "navigate to ", "take me to ", "open ", "show ", "go "}

// phoneticFallback resolves a short, mis-heard navigation phrase to its
// navigation rule.
func (in *Interpreter) phoneticFallback(ctx context.Context, text string) (rule, []string, bool) {
	if in.targets == nil {
		return rule{}, nil, false
	}
	rest := text
	for _, p := range navPrefixes {
		rest = strings.TrimPrefix(rest, p)
	}
	rest = strings.Trim(rest, " .!?")
	if n := len(strings.Fields(rest)); n == 0 || n > 2 {
		return rule{}, nil, false
	}
	name, score, ok := in.targets.Resolve(rest)
	if !ok {
		return rule{}, nil, false
	}
	for _, r := range in.rules {
		if r.action == ActionNavigate && r.name == name {
			observe.Logger(ctx).Debug("voicecmd: phonetic match", "heard", rest, "target", name, "score", score)
			return r, []string{rest}, true
		}
	}
	return rule{}, nil, false
}

// NavigationTargets returns the vocabulary used by the phonetic fallback.
func NavigationTargets() []string {
	out := make([]string, len(navTargets))
	for i, t := range navTargets {
		out[i] = t.name
	}
	return out
}
