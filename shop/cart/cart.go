// Package cart holds the pure cart operations applied to a session.
package cart

import (
	"github.com/shopspring/decimal"

	"github.com/m3rciful/shopbot/shop/catalog"
	"github.com/m3rciful/shopbot/shop/session"
)

const (
	// Precision is the number of decimal places totals are rounded to.
	Precision = 2
	// MaxLines is the most lines one cart holds.
	MaxLines = 50
)

// Add appends a copy of p. Identical products become separate lines.
func Add(s *session.Session, p catalog.Product) {
	s.Cart = append(s.Cart, p.Clone())
}

// Total sums the cart and rounds half away from zero to Precision places.
func Total(s *session.Session) decimal.Decimal {
	return Sum(s.Cart)
}

// Sum is Total over an arbitrary list of lines.
func Sum(items []catalog.Product) decimal.Decimal {
	total := decimal.Zero
	for _, p := range items {
		total = total.Add(p.Price)
	}
	return total.Round(Precision)
}

// Clear empties the cart and leaves every other field alone.
func Clear(s *session.Session) {
	s.Cart = nil
}

// IsEmpty reports whether the cart has no lines.
func IsEmpty(s *session.Session) bool {
	return len(s.Cart) == 0
}

// Full reports whether the cart already holds MaxLines lines.
func Full(s *session.Session) bool {
	return len(s.Cart) >= MaxLines
}

// Count returns the number of lines.
func Count(s *session.Session) int {
	return len(s.Cart)
}
