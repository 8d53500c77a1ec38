// Package render turns catalog nodes and sessions into screens of plain
// text and buttons, each fitting one Telegram message. Every function here
// is pure: the same inputs always produce the same Screen, so a failed
// delivery can be retried by rendering again.
package render

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	tghelpers "github.com/m3rciful/shopbot/core/telegram/helpers"
	"github.com/m3rciful/shopbot/shop/action"
	"github.com/m3rciful/shopbot/shop/cart"
	"github.com/m3rciful/shopbot/shop/catalog"
	"github.com/m3rciful/shopbot/shop/session"
)

// Button is one selectable action. Exactly one of Token or URL is set.
type Button struct {
	Label string
	Token string
	URL   string
}

// Screen is what gets shown to the user.
type Screen struct {
	Text    string
	Buttons []Button
}

// Tokens returns the action tokens carried by the screen's buttons.
func (s Screen) Tokens() []string {
	out := make([]string, 0, len(s.Buttons))
	for _, b := range s.Buttons {
		if b.Token != "" {
			out = append(out, b.Token)
		}
	}
	return out
}

// Notices shown alongside a screen when an event could not be honoured.
const (
	NoticeUnknown       = "Sorry, that action is not recognized."
	NoticeNotFound      = "That item is no longer available."
	NoticeCartEmpty     = "Your cart is empty."
	NoticeCartCleared   = "Cart cleared."
	NoticeAdded         = "Added to cart."
	NoticeCartFull      = "Your cart is full. Check out or clear it first."
	NoticePickLocality  = "Please choose a delivery locality first."
	NoticeLocalityEmpty = "Please type a locality name."
)

// Options carries presentation settings that are fixed for the process.
type Options struct {
	Currency   string
	ContactURL string
}

// Renderer builds screens for one catalog.
type Renderer struct {
	cat  *catalog.Catalog
	opts Options
}

// New returns a Renderer. Options.Currency falls back to the catalog currency.
func New(cat *catalog.Catalog, opts Options) *Renderer {
	if opts.Currency == "" {
		opts.Currency = cat.Currency
	}
	return &Renderer{cat: cat, opts: opts}
}

// Currency is the currency code prices are shown in.
func (r *Renderer) Currency() string { return r.opts.Currency }

// Welcome is the root screen.
func (r *Renderer) Welcome(s session.Session) Screen {
	title := r.cat.Title
	if title == "" {
		title = "our shop"
	}
	sc := Screen{
		Text: fmt.Sprintf("Welcome to %s!\nBrowse the catalog and build your order.", title),
		Buttons: []Button{
			{Label: "📦 Catalog", Token: action.Navigate{}.Token()},
		},
	}
	if len(r.cat.Localities) > 0 {
		sc.Buttons = append(sc.Buttons, Button{Label: r.localityLabel(s), Token: action.Localities{}.Token()})
	}
	if !cart.IsEmpty(&s) {
		sc.Buttons = append(sc.Buttons, Button{
			Label: fmt.Sprintf("🛒 Cart (%d)", cart.Count(&s)),
			Token: action.Cart{}.Token(),
		})
	}
	if r.opts.ContactURL != "" {
		sc.Buttons = append(sc.Buttons, Button{Label: "💬 Contact us", URL: r.opts.ContactURL})
	}
	return sc
}

// Node renders a category or a leaf depending on the node kind.
func (r *Renderer) Node(path []string, n *catalog.Node, s session.Session) Screen {
	var sc Screen
	if n.IsLeaf() {
		sc = r.leaf(path, n)
	} else {
		sc = r.category(path, n)
	}
	sc.Buttons = append(sc.Buttons, r.back(path), r.cartShortcut(s))
	return sc
}

func (r *Renderer) category(path []string, n *catalog.Node) Screen {
	heading := n.Title
	if len(path) == 0 {
		heading = "Catalog"
	}
	sc := Screen{Text: heading + "\nChoose a category:"}
	for _, child := range n.Children {
		sc.Buttons = append(sc.Buttons, Button{
			Label: child.Title,
			Token: action.Navigate{Path: childPath(path, child.Key)}.Token(),
		})
	}
	return sc
}

func (r *Renderer) leaf(path []string, n *catalog.Node) Screen {
	var b strings.Builder
	b.WriteString(n.Title)
	b.WriteString("\nChoose a product:")
	for _, p := range n.Items {
		if len(p.Attributes) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n• %s: %s", p.Name, formatAttributes(p.Attributes))
	}

	sc := Screen{Text: b.String()}
	for i, p := range n.Items {
		sc.Buttons = append(sc.Buttons, Button{
			Label: r.productLabel(p),
			Token: action.Add{Path: path, Index: i}.Token(),
		})
	}
	return sc
}

// moreLineReserve is kept free for the "… and N more" line.
const moreLineReserve = 32

// Cart lists the cart lines and the total. Lines that would push the text
// past one Telegram message are summarized as "… and N more".
func (r *Renderer) Cart(s session.Session) Screen {
	if cart.IsEmpty(&s) {
		return Screen{
			Text:    "🛒 " + NoticeCartEmpty,
			Buttons: []Button{{Label: "📦 Browse catalog", Token: action.Navigate{}.Token()}},
		}
	}

	footer := "\n\nTotal: " + r.Money(cart.Total(&s))
	if loc := r.localityTitle(s.Locality()); loc != "" {
		footer += "\nDelivery: " + loc
	}

	var b strings.Builder
	b.WriteString("🛒 Your cart:")
	used := tghelpers.TextLen(b.String())
	budget := tghelpers.MaxMessageLen - tghelpers.TextLen(footer) - moreLineReserve
	for i, p := range s.Cart {
		line := fmt.Sprintf("\n%d. %s", i+1, r.productLabel(p))
		if used+tghelpers.TextLen(line) > budget {
			fmt.Fprintf(&b, "\n… and %d more", len(s.Cart)-i)
			break
		}
		b.WriteString(line)
		used += tghelpers.TextLen(line)
	}
	b.WriteString(footer)

	buttons := []Button{
		{Label: "➕ Add more", Token: action.Navigate{}.Token()},
		{Label: "✅ Checkout", Token: action.Checkout{}.Token()},
		{Label: "🗑 Clear cart", Token: action.ClearCart{}.Token()},
	}
	if len(r.cat.Localities) > 0 {
		buttons = append(buttons, Button{Label: r.localityLabel(s), Token: action.Localities{}.Token()})
	}
	return Screen{Text: b.String(), Buttons: buttons}
}

// Localities is the picker of predefined delivery places.
func (r *Renderer) Localities(s session.Session) Screen {
	sc := Screen{Text: "📍 Where should we deliver?"}
	if current := r.localityTitle(s.Locality()); current != "" {
		sc.Text += "\nCurrently: " + current
	}
	for _, l := range r.cat.Localities {
		sc.Buttons = append(sc.Buttons, Button{
			Label: l.Title,
			Token: action.SetLocality{Key: l.Key}.Token(),
		})
	}
	sc.Buttons = append(sc.Buttons,
		Button{Label: "✏️ Other (type it)", Token: action.AwaitLocalityText{}.Token()},
		Button{Label: "⬅️ Back", Token: action.Home{}.Token()},
	)
	return sc
}

// LocalityPrompt asks for a typed locality.
func (r *Renderer) LocalityPrompt() Screen {
	return Screen{
		Text:    "✏️ Type the name of your locality in a message.",
		Buttons: []Button{{Label: "✖️ Cancel", Token: action.Home{}.Token()}},
	}
}

// Confirmation acknowledges a submitted order.
func (r *Renderer) Confirmation(orderID string, lines int, total decimal.Decimal) Screen {
	return Screen{
		Text: fmt.Sprintf("✅ Order accepted!\nReference: %s\nItems: %d\nTotal: %s\nWe will contact you shortly.",
			shortID(orderID), lines, r.Money(total)),
		Buttons: []Button{{Label: "🏠 Home", Token: action.Home{}.Token()}},
	}
}

// Fallback is shown for tokens the router rejected.
func (r *Renderer) Fallback() Screen {
	return Screen{
		Text: NoticeUnknown + "\nPlease use the menu below.",
		Buttons: []Button{
			{Label: "🏠 Home", Token: action.Home{}.Token()},
			{Label: "📦 Catalog", Token: action.Navigate{}.Token()},
		},
	}
}

// Money formats an amount with the currency code. Whole amounts drop the
// fractional part, everything else is shown with two decimals.
func (r *Renderer) Money(d decimal.Decimal) string {
	if r.opts.Currency == "" {
		return FormatPrice(d)
	}
	return FormatPrice(d) + " " + r.opts.Currency
}

// FormatPrice prints a price without currency.
func FormatPrice(d decimal.Decimal) string {
	d = d.Round(cart.Precision)
	if d.Equal(d.Truncate(0)) {
		return d.StringFixed(0)
	}
	return d.StringFixed(cart.Precision)
}

func (r *Renderer) productLabel(p catalog.Product) string {
	return fmt.Sprintf("%s — %s", p.Name, r.Money(p.Price))
}

func (r *Renderer) back(path []string) Button {
	if len(path) == 0 {
		return Button{Label: "⬅️ Back", Token: action.Home{}.Token()}
	}
	return Button{Label: "⬅️ Back", Token: action.Navigate{Path: path[:len(path)-1]}.Token()}
}

func (r *Renderer) cartShortcut(s session.Session) Button {
	label := "🛒 Cart"
	if n := cart.Count(&s); n > 0 {
		label = fmt.Sprintf("🛒 Cart (%d)", n)
	}
	return Button{Label: label, Token: action.Cart{}.Token()}
}

func (r *Renderer) localityLabel(s session.Session) string {
	if t := r.localityTitle(s.Locality()); t != "" {
		return "📍 " + t
	}
	return "📍 Choose locality"
}

// localityTitle resolves a stored locality. Predefined keys map to their
// title; free text is shown as typed.
func (r *Renderer) localityTitle(value string) string {
	if value == "" {
		return ""
	}
	if l, ok := r.cat.Locality(value); ok {
		return l.Title
	}
	return value
}

// LocalityTitle is the exported form used by checkout formatting.
func (r *Renderer) LocalityTitle(value string) string { return r.localityTitle(value) }

func childPath(parent []string, key string) []string {
	out := make([]string, 0, len(parent)+1)
	out = append(out, parent...)
	return append(out, key)
}

func formatAttributes(attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+attrs[k])
	}
	return strings.Join(parts, ", ")
}

func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
