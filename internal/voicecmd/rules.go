package voicecmd

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// rule pairs a matcher with the command it triggers.
type rule struct {
	// name labels the rule in logs.
	name   string
	action Action

	// match returns nil when the normalized text does not match. Otherwise
	// it returns the captured groups, with the full match at index 0.
	match func(text string) []string

	// exec performs the side effect and returns the announcement.
	exec func(ctx context.Context, req *request, m []string) (string, error)
}

// request carries the per-transcript inputs to a rule.
type request struct {
	in    *Interpreter
	state AppState
	fx    Effects
}

func (r *request) behavior() ScrollBehavior {
	if r.state.ReducedMotion {
		return ScrollInstant
	}
	return ScrollSmooth
}

// --- matchers ---

// phrase matches when text contains any of contains or equals any of equals.
func phrase(contains []string, equals ...string) func(string) []string {
	return func(text string) []string {
		for _, c := range contains {
			if strings.Contains(text, c) {
				return []string{c}
			}
		}
		for _, e := range equals {
			if text == e {
				return []string{e}
			}
		}
		return nil
	}
}

func pattern(re *regexp.Regexp) func(string) []string {
	return re.FindStringSubmatch
}

// --- navigation ---

type navTarget struct {
	name         string
	path         string
	announcement string
	contains     []string
	equals       []string
}

var navTargets = []navTarget{
	{"home", "/", "Navigating to home page.", []string{"go to home", "go home"}, []string{"home"}},
	{"store", "/store", "Navigating to store.", []string{"go to store", "open store"}, []string{"store"}},
	{"recipes", "/recipes", "Navigating to recipes.", []string{"go to recipes", "open recipes"}, []string{"recipes"}},
	{"cart", "/cart", "Navigating to cart.", []string{"go to cart", "open cart", "checkout"}, []string{"cart"}},
	{"order history", "/order-history", "Navigating to order history.", []string{"order history", "orders", "my orders"}, nil},
	{"accessibility", "/accessibility", "Opening accessibility settings.", []string{"accessibility", "accessibility settings"}, nil},
	{"about", "/about", "Navigating to about page.", []string{"about", "about us"}, nil},
	{"login", "/login", "Navigating to login.", []string{"login", "sign in"}, nil},
	{"register", "/register", "Navigating to registration.", []string{"register", "sign up"}, nil},
}

func navigate(t navTarget) rule {
	return rule{
		name:   t.name,
		action: ActionNavigate,
		match:  phrase(t.contains, t.equals...),
		exec: func(ctx context.Context, req *request, _ []string) (string, error) {
			return t.announcement, req.fx.Navigate(ctx, t.path)
		},
	}
}

var searchPattern = regexp.MustCompile(`search (?:for )?(.+)`)

// defaultRules returns the built-in rules in priority order.
func defaultRules() []rule {
	rules := make([]rule, 0, len(navTargets)+10)
	for _, t := range navTargets {
		rules = append(rules, navigate(t))
	}

	return append(rules,
		rule{
			name:   "search",
			action: ActionSearch,
			match:  pattern(searchPattern),
			exec: func(ctx context.Context, req *request, m []string) (string, error) {
				q := strings.TrimSpace(m[1])
				return "Searching for " + q + ".", req.fx.Navigate(ctx, "/store?search="+url.QueryEscape(q))
			},
		},
		rule{
			name:   "scroll down",
			action: ActionScroll,
			match:  phrase([]string{"scroll down"}),
			exec: func(ctx context.Context, req *request, _ []string) (string, error) {
				return "Scrolling down.", req.fx.Scroll(ctx, Scroll{Mode: ScrollBy, Top: ScrollStep, Behavior: req.behavior()})
			},
		},
		rule{
			name:   "scroll up",
			action: ActionScroll,
			match:  phrase([]string{"scroll up"}),
			exec: func(ctx context.Context, req *request, _ []string) (string, error) {
				return "Scrolling up.", req.fx.Scroll(ctx, Scroll{Mode: ScrollBy, Top: -ScrollStep, Behavior: req.behavior()})
			},
		},
		rule{
			name:   "scroll to top",
			action: ActionScroll,
			match:  phrase([]string{"scroll to top", "go to top"}),
			exec: func(ctx context.Context, req *request, _ []string) (string, error) {
				return "Scrolling to top.", req.fx.Scroll(ctx, Scroll{Mode: ScrollTo, Behavior: req.behavior()})
			},
		},
		rule{
			name:   "scroll to bottom",
			action: ActionScroll,
			match:  phrase([]string{"scroll to bottom", "go to bottom"}),
			exec: func(ctx context.Context, req *request, _ []string) (string, error) {
				return "Scrolling to bottom.", req.fx.Scroll(ctx, Scroll{Mode: ScrollTo, ToBottom: true, Behavior: req.behavior()})
			},
		},
		rule{
			name:   "read page",
			action: ActionRead,
			match:  phrase([]string{"read this page", "read page"}),
			exec: func(_ context.Context, req *request, _ []string) (string, error) {
				return PageDescription(req.state.Path), nil
			},
		},
		rule{
			name:   "read products",
			action: ActionRead,
			match:  phrase([]string{"read products", "list products"}),
			exec: func(_ context.Context, req *request, _ []string) (string, error) {
				return req.in.describeProducts(), nil
			},
		},
		rule{
			name:   "cart summary",
			action: ActionCart,
			match:  phrase([]string{"show my cart", "cart summary", "what's in my cart"}),
			exec: func(ctx context.Context, req *request, _ []string) (string, error) {
				return cartSummary(req.state), req.fx.Navigate(ctx, "/cart")
			},
		},
		rule{
			name:   "help",
			action: ActionHelp,
			match:  phrase([]string{"what can i say", "commands"}, "help"),
			exec: func(context.Context, *request, []string) (string, error) {
				return HelpText, nil
			},
		},
		rule{
			name:   "exit",
			action: ActionExit,
			match:  phrase([]string{"exit hands-free", "stop hands-free", "disable hands-free", "turn off hands-free"}),
			exec: func(ctx context.Context, req *request, _ []string) (string, error) {
				return ExitAnnouncement, req.fx.DisableHandsFree(ctx)
			},
		},
	)
}

// featuredCount is how many products "read products" lists by name.
const featuredCount = 5

func (in *Interpreter) describeProducts() string {
	if len(in.products) == 0 {
		return "There are no products available."
	}
	n := min(featuredCount, len(in.products))
	parts := make([]string, n)
	for i, p := range in.products[:n] {
		parts[i] = fmt.Sprintf("%d. %s, %.2f dollars", i+1, p.Name, p.Price)
	}
	out := "Featured products: " + strings.Join(parts, ". ") + "."
	if rest := len(in.products) - n; rest > 0 {
		out += fmt.Sprintf(" And %d more products available.", rest)
	}
	return out
}

func cartSummary(state AppState) string {
	count := state.Cart.ItemCount()
	if count == 0 {
		return "Your cart is empty."
	}
	noun := "items"
	if count == 1 {
		noun = "item"
	}
	dollars, cents := state.Cart.DollarsAndCents()
	return fmt.Sprintf("You have %d %s in your cart, total %d dollars and %d cents.", count, noun, dollars, cents)
}
