package campaign

import (
	"fmt"
	"strings"
)

const (
	selectionSeparator = ";"
	indexSeparator     = "="
	unitListSeparator  = ","
)

// CatalogSelection restricts a run to some units of one catalog index. Index is
// either a full index image reference or a catalog alias resolved by the catalog
// package.
type CatalogSelection struct {
	Index string   `json:"index" yaml:"index"`
	Units []string `json:"operators" yaml:"operators"`
}

// Selection is a user supplied override for a custom run.
type Selection struct {
	Catalogs []CatalogSelection `json:"catalogs" yaml:"catalogs"`
}

// Normalize trims names, drops duplicate units within a catalog and catalogs with
// no units. It returns ErrNoUnitsSpecified when nothing is left.
func (s Selection) Normalize() (Selection, error) {
	out := Selection{Catalogs: make([]CatalogSelection, 0, len(s.Catalogs))}
	for _, c := range s.Catalogs {
		seen := make(map[string]bool, len(c.Units))
		units := make([]string, 0, len(c.Units))
		for _, u := range c.Units {
			u = strings.TrimSpace(u)
			if u == "" || seen[u] {
				continue
			}
			seen[u] = true
			units = append(units, u)
		}
		if len(units) == 0 {
			continue
		}
		out.Catalogs = append(out.Catalogs, CatalogSelection{
			Index: strings.TrimSpace(c.Index),
			Units: units,
		})
	}
	if len(out.Catalogs) == 0 {
		return Selection{}, ErrNoUnitsSpecified
	}
	return out, nil
}

// UnitCount returns the number of units across all catalogs.
func (s Selection) UnitCount() int {
	n := 0
	for _, c := range s.Catalogs {
		n += len(c.Units)
	}
	return n
}

// ParseSelection parses the compact form used on the command line and in cron
// triggers:
//
//	redhat=operator-a,operator-b;registry.example.com/index:v4.20=operator-c
//
// The index may be omitted ("=operator-a") to use the default catalog.
func ParseSelection(spec string) (Selection, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return Selection{}, ErrNoUnitsSpecified
	}

	var sel Selection
	for _, part := range strings.Split(spec, selectionSeparator) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue // trailing separator
		}
		index, units, ok := strings.Cut(part, indexSeparator)
		if !ok {
			return Selection{}, fmt.Errorf("invalid selection %q: expected format 'index=unit,unit'", part)
		}
		sel.Catalogs = append(sel.Catalogs, CatalogSelection{
			Index: strings.TrimSpace(index),
			Units: strings.Split(units, unitListSeparator),
		})
	}
	return sel.Normalize()
}

// String renders the selection in the compact form accepted by ParseSelection.
func (s Selection) String() string {
	parts := make([]string, 0, len(s.Catalogs))
	for _, c := range s.Catalogs {
		parts = append(parts, c.Index+indexSeparator+strings.Join(c.Units, unitListSeparator))
	}
	return strings.Join(parts, selectionSeparator)
}
