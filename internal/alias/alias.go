// Package alias maps alternate structure names onto canonical ones and
// resolves a requested structure against a structure catalog.
package alias

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mrsinham/dvhgrab/internal/rt"
)

// ErrMalformedAlias is returned for alias commands not of the form
// alias=structure.
var ErrMalformedAlias = errors.New("format should be: alias=structure")

// Table holds the aliases registered for each canonical structure name.
// The zero value is ready to use.
type Table struct {
	order   []string
	aliases map[string][]string
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{}
}

// Add appends alias to the list of canonical. Duplicates and aliases shared
// between canonical names are accepted as is.
func (t *Table) Add(canonical, alias string) {
	if t.aliases == nil {
		t.aliases = make(map[string][]string)
	}
	if _, ok := t.aliases[canonical]; !ok {
		t.order = append(t.order, canonical)
	}
	t.aliases[canonical] = append(t.aliases[canonical], alias)
}

// Aliases returns a copy of the aliases registered for canonical.
func (t *Table) Aliases(canonical string) []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.aliases[canonical]...)
}

// Candidates returns the names to try for canonical: the canonical name
// itself, then its aliases in registration order.
func (t *Table) Candidates(canonical string) []string {
	return append([]string{canonical}, t.Aliases(canonical)...)
}

// Len returns the number of canonical names with aliases.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.order)
}

// Lines renders the table as alias=structure lines, grouped by canonical
// name in the order the names were first registered.
func (t *Table) Lines() []string {
	if t == nil {
		return nil
	}
	var lines []string
	for _, canonical := range t.order {
		for _, a := range t.aliases[canonical] {
			lines = append(lines, a+"="+canonical)
		}
	}
	return lines
}

// Clone returns an independent copy of the table.
func (t *Table) Clone() *Table {
	c := NewTable()
	if t == nil {
		return c
	}
	for _, canonical := range t.order {
		for _, a := range t.aliases[canonical] {
			c.Add(canonical, a)
		}
	}
	return c
}

// ParseCommand splits an "alias=structure" command. Both sides are trimmed
// and must be non-empty, and exactly one '=' is allowed.
func ParseCommand(text string) (alias, canonical string, err error) {
	left, right, ok := strings.Cut(text, "=")
	if !ok || strings.Contains(right, "=") {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedAlias, text)
	}
	alias = strings.TrimSpace(left)
	canonical = strings.TrimSpace(right)
	if alias == "" || canonical == "" {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedAlias, text)
	}
	return alias, canonical, nil
}

// Resolve returns the ROI number of the structure matching name. Candidates
// are tried in priority order, each against the whole catalog, so a higher
// priority candidate wins even if a lower one appears earlier in the catalog.
// When several structures share a name the first in catalog order wins.
func Resolve(catalog rt.Catalog, name string, table *Table) (int, bool) {
	for _, candidate := range table.Candidates(name) {
		for _, entry := range catalog {
			if entry.Name == candidate {
				return entry.Number, true
			}
		}
	}
	return 0, false
}
