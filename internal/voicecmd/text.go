package voicecmd

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// HelpText is spoken for the help command.
const HelpText = "Available commands: " +
	"Navigation: Say go to home, go to store, go to recipes, go to cart, or open accessibility settings. " +
	"Search: Say search for, followed by your query. " +
	"Scrolling: Say scroll up, scroll down, scroll to top, or scroll to bottom. " +
	"Reading: Say read this page, or read products on the store page. " +
	"Cart: Say show my cart to hear your cart summary. " +
	"Exit: Say exit hands-free mode to deactivate voice control. " +
	"For help anytime, say help."

// PanelHelpText is spoken by the panel's help button.
const PanelHelpText = "Available commands: Go to home, store, recipes, cart, or accessibility. " +
	"Say search for, followed by your query. " +
	"Say scroll up, scroll down, scroll to top, or scroll to bottom. " +
	"Say read this page, or read products. " +
	"Say show my cart. " +
	"Say exit hands-free mode to deactivate."

// ExitAnnouncement is spoken after hands-free mode is turned off by voice.
const ExitAnnouncement = "Hands-free mode deactivated."

// fallbackPageDescription is read for paths missing from pageDescriptions.
const fallbackPageDescription = "Page content."

var pageDescriptions = map[string]string{
	"/":              "Home page. Featured organic products and quick links to store and recipes.",
	"/store":         "Store page. Browse organic groceries with search and category filters.",
	"/recipes":       "Recipes page. Search recipes and view step-by-step instructions.",
	"/cart":          "Cart page. Review your items before checkout.",
	"/checkout":      "Checkout page. Review your cart, enter address, and place your order.",
	"/accessibility": "Accessibility page. Configure visual settings and speech tools.",
	"/order-history": "Order history page. View your past orders and their status.",
	"/login":         "Login page. Sign in to your account.",
	"/register":      "Registration page. Create a new account.",
	"/about":         "About page. Learn about Orange Sulphur organic grocery.",
}

// PageDescription returns the spoken description of the page at path.
// Query strings and trailing slashes are ignored.
func PageDescription(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	if d, ok := pageDescriptions[path]; ok {
		return d
	}
	return fallbackPageDescription
}

// Section is one group of the command reference shown in the panel.
type Section struct {
	Title   string   `json:"title"`
	Phrases []string `json:"phrases"`
}

// Reference returns the command reference shown in the hands-free panel.
func Reference() []Section {
	return []Section{
		{"Navigation", []string{"Go to home", "Go to store", "Go to recipes", "Go to cart", "Open accessibility settings", "Order history", "About", "Login", "Register"}},
		{"Search", []string{"Search for <query>"}},
		{"Scrolling", []string{"Scroll up", "Scroll down", "Scroll to top", "Scroll to bottom"}},
		{"Reading", []string{"Read this page", "Read products"}},
		{"Cart", []string{"Show my cart", "What's in my cart"}},
		{"Help", []string{"Help", "What can I say"}},
		{"Exit", []string{"Exit hands-free mode"}},
	}
}

var replacer = strings.NewReplacer(
	"‘", "'",
	"’", "'",
	"ʼ", "'",
	"hands free", "hands-free",
	"handsfree", "hands-free",
)

// Normalize prepares a transcript for matching: NFKC folding, lower case,
// straight apostrophes, collapsed whitespace and a canonical "hands-free".
func Normalize(transcript string) string {
	s := norm.NFKC.String(transcript)
	s = strings.ToLower(s)
	s = strings.Join(strings.Fields(s), " ")
	return replacer.Replace(s)
}
