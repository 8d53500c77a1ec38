// Package catalog holds the immutable product tree the bot lets users browse.
//
// The tree is loaded once at startup and never mutated afterwards, so a
// *Catalog may be shared by any number of goroutines without locking.
package catalog

import (
	"errors"
	"maps"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a path or product index no longer resolves.
var ErrNotFound = errors.New("catalog: not found")

// Product is a purchasable item of a leaf node.
type Product struct {
	Name       string
	Price      decimal.Decimal
	Attributes map[string]string
}

// Clone returns a copy that shares no memory with p.
func (p Product) Clone() Product {
	p.Attributes = maps.Clone(p.Attributes)
	return p
}

// Node is one level of the hierarchy. Exactly one of Children or Items is set.
type Node struct {
	Key      string
	Title    string
	Children []*Node
	Items    []Product
}

// IsLeaf reports whether the node lists products rather than sub-nodes.
func (n *Node) IsLeaf() bool {
	return len(n.Items) > 0
}

// Child returns the direct child with the given key.
func (n *Node) Child(key string) (*Node, bool) {
	for _, c := range n.Children {
		if c.Key == key {
			return c, true
		}
	}
	return nil, false
}

// Locality is a predefined delivery place the user may pick before checkout.
type Locality struct {
	Key   string
	Title string
}

// Catalog is the loaded tree together with document-level settings.
type Catalog struct {
	Title      string
	Currency   string
	Localities []Locality

	root *Node
}

// New wraps an already validated root node. It is meant for tests and
// programmatic construction; files go through Load.
func New(title, currency string, root *Node, localities ...Locality) (*Catalog, error) {
	c := &Catalog{Title: title, Currency: currency, Localities: localities, root: root}
	if err := validate(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Root returns the top of the tree.
func (c *Catalog) Root() *Node {
	return c.root
}

// Lookup walks path from the root.
func (c *Catalog) Lookup(path []string) (*Node, error) {
	node := c.root
	for _, key := range path {
		next, ok := node.Child(key)
		if !ok {
			return nil, ErrNotFound
		}
		node = next
	}
	return node, nil
}

// Product resolves the index-th item of the leaf at path.
func (c *Catalog) Product(path []string, index int) (Product, error) {
	node, err := c.Lookup(path)
	if err != nil {
		return Product{}, err
	}
	if index < 0 || index >= len(node.Items) {
		return Product{}, ErrNotFound
	}
	return node.Items[index], nil
}

// Locality finds a predefined locality by key.
func (c *Catalog) Locality(key string) (Locality, bool) {
	for _, l := range c.Localities {
		if l.Key == key {
			return l, true
		}
	}
	return Locality{}, false
}

// Walk visits every node depth-first, parents before children. The path
// passed to fn must not be retained.
func (c *Catalog) Walk(fn func(path []string, n *Node)) {
	var visit func(path []string, n *Node)
	visit = func(path []string, n *Node) {
		fn(path, n)
		for _, child := range n.Children {
			visit(append(path, child.Key), child)
		}
	}
	visit(nil, c.root)
}
