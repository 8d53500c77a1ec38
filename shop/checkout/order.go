// Package checkout builds orders from carts and forwards them to operators.
package checkout

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/m3rciful/shopbot/shop/cart"
	"github.com/m3rciful/shopbot/shop/catalog"
	"github.com/m3rciful/shopbot/shop/render"
	"github.com/m3rciful/shopbot/shop/session"
)

// TimestampLayout is the fixed format used in operator notifications.
const TimestampLayout = "2006-01-02 15:04:05"

// ErrEmptyCart is returned by BuildOrder when there is nothing to order.
var ErrEmptyCart = errors.New("checkout: cart is empty")

// Customer identifies who placed an order.
type Customer struct {
	ID     int64
	Handle string // username without '@', may be empty
	Name   string // display name, may be empty
}

// Order is a read-only projection of a cart at checkout time. It is never
// stored; it lives for the duration of formatting and forwarding.
type Order struct {
	ID        string
	Customer  Customer
	Items     []catalog.Product
	Total     decimal.Decimal
	Locality  string
	Currency  string
	Timestamp time.Time
}

// BuildOrder snapshots the session's cart. locality is the display form of
// the chosen delivery place and may be empty.
func BuildOrder(c Customer, s session.Session, locality, currency string, now time.Time) (Order, error) {
	if cart.IsEmpty(&s) {
		return Order{}, ErrEmptyCart
	}
	items := make([]catalog.Product, len(s.Cart))
	for i, p := range s.Cart {
		items[i] = p.Clone()
	}
	return Order{
		ID:        uuid.NewString(),
		Customer:  c,
		Items:     items,
		Total:     cart.Sum(items),
		Locality:  locality,
		Currency:  currency,
		Timestamp: now,
	}, nil
}

// FormatNotification renders the plain-text message sent to operators.
func FormatNotification(o Order) string {
	money := func(d decimal.Decimal) string {
		if o.Currency == "" {
			return render.FormatPrice(d)
		}
		return render.FormatPrice(d) + " " + o.Currency
	}

	var b strings.Builder
	b.WriteString("🆕 NEW ORDER\n")
	fmt.Fprintf(&b, "Order: %s\n", o.ID)
	fmt.Fprintf(&b, "Customer: %s\n", customerLine(o.Customer))
	if o.Locality != "" {
		fmt.Fprintf(&b, "Locality: %s\n", o.Locality)
	}
	b.WriteString("\n")
	for i, p := range o.Items {
		fmt.Fprintf(&b, "%d. %s — %s\n", i+1, p.Name, money(p.Price))
	}
	fmt.Fprintf(&b, "\nTotal: %s\n", money(o.Total))
	fmt.Fprintf(&b, "Time: %s", o.Timestamp.Format(TimestampLayout))
	return b.String()
}

func customerLine(c Customer) string {
	parts := make([]string, 0, 3)
	if name := strings.TrimSpace(c.Name); name != "" {
		parts = append(parts, name)
	}
	if c.Handle != "" {
		parts = append(parts, "@"+c.Handle)
	}
	parts = append(parts, fmt.Sprintf("(id %d)", c.ID))
	return strings.Join(parts, " ")
}
