// Package types defines the shared types used across the hands-free packages.
//
// These types are the common vocabulary between the speech adapters, the
// session state machine, the command interpreter and the presentation shell.
// Each package defines its own domain types; cross-cutting data lives here to
// avoid circular imports.
package types

import (
	"errors"
	"fmt"
	"math"
)

// Support reports which speech capabilities the client platform offers.
type Support struct {
	// STT is true when a speech recognition engine is available.
	STT bool `json:"stt"`

	// TTS is true when a speech synthesis engine is available.
	TTS bool `json:"tts"`
}

// Transcript is a single recognition result delivered by a speech engine.
// Both interim and final results use this type.
type Transcript struct {
	// Text is the recognised speech content, as reported by the engine.
	Text string `json:"transcript"`

	// IsFinal is true when the engine has committed to this result.
	IsFinal bool `json:"final"`

	// Confidence is the engine-reported confidence (0.0–1.0). Zero when the
	// engine does not report one.
	Confidence float64 `json:"confidence,omitempty"`
}

// CartItem is one line in the shopper's cart.
type CartItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Category string  `json:"category,omitempty"`
}

// Cart is the shopper's cart as reported by the storefront.
type Cart struct {
	Items []CartItem `json:"items"`
}

// ErrInvalidCart is wrapped by [Cart.Validate] failures.
var ErrInvalidCart = errors.New("types: invalid cart")

// Validate rejects carts that cannot be summarised: negative quantities and
// negative or non-finite prices.
func (c Cart) Validate() error {
	var errs []error
	for i, it := range c.Items {
		if it.Quantity < 0 {
			errs = append(errs, fmt.Errorf("%w: item %d (%s) has quantity %d", ErrInvalidCart, i, it.ID, it.Quantity))
		}
		if it.Price < 0 || math.IsNaN(it.Price) || math.IsInf(it.Price, 0) {
			errs = append(errs, fmt.Errorf("%w: item %d (%s) has price %v", ErrInvalidCart, i, it.ID, it.Price))
		}
	}
	return errors.Join(errs...)
}

// ItemCount returns the number of units in the cart (quantities summed).
func (c Cart) ItemCount() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// Total returns the sum of price × quantity over all items.
func (c Cart) Total() float64 {
	var total float64
	for _, it := range c.Items {
		total += it.Price * float64(it.Quantity)
	}
	return total
}

// DollarsAndCents splits the cart total into whole dollars and cents.
// The total is rounded to the nearest cent first so that a sum like 2.999
// yields 3 dollars and 0 cents instead of 2 dollars and 100 cents.
func (c Cart) DollarsAndCents() (dollars, cents int) {
	totalCents := int(math.Round(c.Total() * 100))
	return totalCents / 100, totalCents % 100
}
