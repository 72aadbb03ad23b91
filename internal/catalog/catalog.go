// Package catalog loads the static reading catalog: a text file of
// "Label=Count" lines mapping each book to its total chapter count.
//
// The catalog is read once at startup and is immutable for the process
// lifetime.
package catalog

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

var ErrUnknownLabel = errors.New("label not in catalog")

type Catalog struct {
	sizes  map[string]int
	labels []string // sorted, for stable menus
}

// Load reads a catalog file. Blank lines and lines starting with '#' are
// skipped; anything else must be "Label=Count" with a positive count.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	sizes := map[string]int{}
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		label, raw, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("catalog line %d: missing '=': %q", lineNo, line)
		}
		label = strings.TrimSpace(label)
		if label == "" {
			return nil, fmt.Errorf("catalog line %d: empty label", lineNo)
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("catalog line %d: invalid count %q", lineNo, strings.TrimSpace(raw))
		}
		if _, dup := sizes[label]; dup {
			return nil, fmt.Errorf("catalog line %d: duplicate label %q", lineNo, label)
		}
		sizes[label] = n
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	if len(sizes) == 0 {
		return nil, errors.New("catalog is empty")
	}
	return New(sizes), nil
}

// New builds a catalog from an in-memory mapping. Used by tests and by
// callers that already parsed a catalog elsewhere.
func New(sizes map[string]int) *Catalog {
	cp := make(map[string]int, len(sizes))
	labels := make([]string, 0, len(sizes))
	for k, v := range sizes {
		cp[k] = v
		labels = append(labels, k)
	}
	sort.Strings(labels)
	return &Catalog{sizes: cp, labels: labels}
}

// Size returns the total addressable units for a label.
func (c *Catalog) Size(label string) (int, error) {
	n, ok := c.sizes[label]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLabel, label)
	}
	return n, nil
}

func (c *Catalog) Has(label string) bool {
	_, ok := c.sizes[label]
	return ok
}

// Labels returns all labels in sorted order.
func (c *Catalog) Labels() []string {
	return append([]string(nil), c.labels...)
}

func (c *Catalog) Len() int { return len(c.sizes) }
