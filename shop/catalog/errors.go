package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedCatalog is the sentinel every load/validation failure wraps.
var ErrMalformedCatalog = errors.New("catalog: malformed")

// Problem is a single validation failure.
type Problem struct {
	Path   string // '/'-joined keys of the offending node; empty for the root
	Line   int    // YAML line when known
	Reason string
}

func (p Problem) String() string {
	where := p.Path
	if where == "" {
		where = "<root>"
	}
	if p.Line > 0 {
		return fmt.Sprintf("%s (line %d): %s", where, p.Line, p.Reason)
	}
	return fmt.Sprintf("%s: %s", where, p.Reason)
}

// ValidationError aggregates every problem found in a catalog document.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "catalog: malformed: " + e.Problems[0].String()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "catalog: malformed: %d problems:", len(e.Problems))
	for i, p := range e.Problems {
		fmt.Fprintf(&b, "\n  %d. %s", i+1, p)
	}
	return b.String()
}

// Unwrap lets errors.Is(err, ErrMalformedCatalog) match.
func (e *ValidationError) Unwrap() error { return ErrMalformedCatalog }

type problems struct {
	list  []Problem
	lines map[*Node]int
}

func (p *problems) add(path string, line int, format string, args ...any) {
	p.list = append(p.list, Problem{Path: path, Line: line, Reason: fmt.Sprintf(format, args...)})
}

func (p *problems) err() error {
	if len(p.list) == 0 {
		return nil
	}
	return &ValidationError{Problems: p.list}
}
