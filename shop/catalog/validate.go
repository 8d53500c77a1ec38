package catalog

import (
	"regexp"
	"strings"

	"github.com/m3rciful/shopbot/shop/action"
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func validate(c *Catalog) error {
	var p problems
	check(&p, c)
	return p.err()
}

// check appends every structural problem of c to p. Keys are restricted to
// characters that survive token encoding, and every token the catalog can
// produce must fit into a callback button.
func check(p *problems, c *Catalog) {
	if c.root == nil {
		p.add("", 0, "catalog has no root")
		return
	}
	checkNode(p, nil, c.root)

	seen := make(map[string]bool, len(c.Localities))
	for _, l := range c.Localities {
		switch {
		case !keyPattern.MatchString(l.Key):
			p.add("", 0, "locality key %q must match %s", l.Key, keyPattern)
		case seen[l.Key]:
			p.add("", 0, "duplicate locality key %q", l.Key)
		}
		seen[l.Key] = true
		if tok := (action.SetLocality{Key: l.Key}).Token(); len(tok) > action.MaxTokenLen {
			p.add("", 0, "locality token %q exceeds %d bytes", tok, action.MaxTokenLen)
		}
	}
}

func checkNode(p *problems, path []string, n *Node) {
	where, line := strings.Join(path, "/"), p.lines[n]
	hasChildren, hasItems := len(n.Children) > 0, len(n.Items) > 0

	if hasChildren == hasItems {
		if hasChildren {
			p.add(where, line, "node has both children and items")
		} else {
			p.add(where, line, "node has neither children nor items")
		}
	}

	if len(path) > 0 {
		if tok := (action.Navigate{Path: path}).Token(); len(tok) > action.MaxTokenLen {
			p.add(where, line, "navigate token exceeds %d bytes", action.MaxTokenLen)
		}
	}

	for i, item := range n.Items {
		if item.Name == "" {
			p.add(where, line, "item %d has no name", i)
		}
		if item.Price.IsNegative() {
			p.add(where, line, "item %d (%q) has a negative price", i, item.Name)
		}
		if tok := (action.Add{Path: path, Index: i}).Token(); len(path) > 0 && len(tok) > action.MaxTokenLen {
			p.add(where, line, "add token for item %d exceeds %d bytes", i, action.MaxTokenLen)
		}
	}
	if hasItems && len(path) == 0 {
		p.add(where, line, "products must live below a category")
	}

	seen := make(map[string]bool, len(n.Children))
	for _, child := range n.Children {
		switch {
		case !keyPattern.MatchString(child.Key):
			p.add(where, line, "child key %q must match %s", child.Key, keyPattern)
		case seen[child.Key]:
			p.add(where, line, "duplicate child key %q", child.Key)
		}
		seen[child.Key] = true
		checkNode(p, append(append([]string(nil), path...), child.Key), child)
	}
}
