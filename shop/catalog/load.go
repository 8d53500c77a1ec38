package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type document struct {
	Title      string        `yaml:"title"`
	Currency   string        `yaml:"currency"`
	Localities []rawLocality `yaml:"localities"`
	Children   []rawNode     `yaml:"children"`
	Items      []rawProduct  `yaml:"items"`
}

type rawLocality struct {
	Key   string `yaml:"key"`
	Title string `yaml:"title"`
}

type rawNode struct {
	Key      string       `yaml:"key"`
	Title    string       `yaml:"title"`
	Children []rawNode    `yaml:"children"`
	Items    []rawProduct `yaml:"items"`

	line int
}

func (n *rawNode) UnmarshalYAML(value *yaml.Node) error {
	type plain rawNode
	if err := value.Decode((*plain)(n)); err != nil {
		return err
	}
	n.line = value.Line
	return nil
}

type rawProduct struct {
	Name       string            `yaml:"name"`
	Price      yaml.Node         `yaml:"price"`
	Attributes map[string]string `yaml:"attributes"`

	line int
}

func (p *rawProduct) UnmarshalYAML(value *yaml.Node) error {
	type plain rawProduct
	if err := value.Decode((*plain)(p)); err != nil {
		return err
	}
	p.line = value.Line
	return nil
}

// LoadFile reads and validates a catalog document from disk.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a YAML catalog document. Any structural problem yields an
// error wrapping ErrMalformedCatalog; a partially valid tree is never returned.
func Load(r io.Reader) (*Catalog, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ValidationError{Problems: []Problem{{Reason: "empty document"}}}
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedCatalog, err)
	}

	p := problems{lines: make(map[*Node]int)}
	root := &Node{
		Title:    strings.TrimSpace(doc.Title),
		Children: buildNodes(&p, nil, doc.Children),
		Items:    buildProducts(&p, nil, doc.Items),
	}

	localities := make([]Locality, 0, len(doc.Localities))
	for _, l := range doc.Localities {
		loc := Locality{Key: strings.TrimSpace(l.Key), Title: strings.TrimSpace(l.Title)}
		if loc.Title == "" {
			loc.Title = loc.Key
		}
		localities = append(localities, loc)
	}

	c := &Catalog{
		Title:      root.Title,
		Currency:   strings.TrimSpace(doc.Currency),
		Localities: localities,
		root:       root,
	}
	check(&p, c)
	if err := p.err(); err != nil {
		return nil, err
	}
	return c, nil
}

func buildNodes(p *problems, parent []string, raws []rawNode) []*Node {
	if len(raws) == 0 {
		return nil
	}
	nodes := make([]*Node, 0, len(raws))
	for _, raw := range raws {
		key := strings.TrimSpace(raw.Key)
		path := append(append([]string(nil), parent...), key)
		title := strings.TrimSpace(raw.Title)
		if title == "" {
			title = key
		}
		n := &Node{
			Key:      key,
			Title:    title,
			Children: buildNodes(p, path, raw.Children),
			Items:    buildProducts(p, path, raw.Items),
		}
		p.lines[n] = raw.line
		nodes = append(nodes, n)
	}
	return nodes
}

func buildProducts(p *problems, path []string, raws []rawProduct) []Product {
	if len(raws) == 0 {
		return nil
	}
	where := strings.Join(path, "/")
	items := make([]Product, 0, len(raws))
	for i, raw := range raws {
		price, err := parsePrice(raw.Price)
		if err != nil {
			p.add(where, raw.line, "item %d (%q): %v", i, raw.Name, err)
		}
		items = append(items, Product{
			Name:       strings.TrimSpace(raw.Name),
			Price:      price,
			Attributes: raw.Attributes,
		})
	}
	return items
}

func parsePrice(n yaml.Node) (decimal.Decimal, error) {
	if n.Kind == 0 {
		return decimal.Zero, errors.New("price is required")
	}
	if n.Kind != yaml.ScalarNode {
		return decimal.Zero, errors.New("price must be a number")
	}
	d, err := decimal.NewFromString(strings.TrimSpace(n.Value))
	if err != nil {
		return decimal.Zero, fmt.Errorf("price %q is not numeric", n.Value)
	}
	return d, nil
}
