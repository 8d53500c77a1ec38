package app

import (
	"fmt"
	"io"

	"github.com/m3rciful/shopbot/shop/catalog"
)

// CatalogSummary counts what a catalog file defines.
type CatalogSummary struct {
	Title      string
	Currency   string
	Categories int
	Leaves     int
	Products   int
	Localities int
}

// CheckCatalog validates the catalog at path and writes a short summary to w.
func CheckCatalog(path string, w io.Writer) (CatalogSummary, error) {
	cat, err := catalog.LoadFile(path)
	if err != nil {
		return CatalogSummary{}, err
	}
	sum := CatalogSummary{
		Title:      cat.Title,
		Currency:   cat.Currency,
		Localities: len(cat.Localities),
	}
	cat.Walk(func(path []string, n *catalog.Node) {
		switch {
		case len(path) == 0:
		case n.IsLeaf():
			sum.Leaves++
			sum.Products += len(n.Items)
		default:
			sum.Categories++
		}
	})
	_, err = fmt.Fprintf(w, "%s: ok (%q, %s) categories=%d leaves=%d products=%d localities=%d\n",
		path, sum.Title, sum.Currency, sum.Categories, sum.Leaves, sum.Products, sum.Localities)
	return sum, err
}
