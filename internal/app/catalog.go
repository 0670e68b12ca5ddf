package app

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"ski_homes/internal/domain"
)

// Catalog is the immutable in-memory resort table.
type Catalog struct {
	resorts []domain.Resort
	byName  map[string]int
}

func NewCatalog(rs []domain.Resort) (*Catalog, error) {
	c := &Catalog{resorts: make([]domain.Resort, 0, len(rs)), byName: make(map[string]int, len(rs))}
	for i, r := range rs {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return nil, fmt.Errorf("resort at row %d has no name", i+1)
		}
		if _, dup := c.byName[name]; dup {
			return nil, fmt.Errorf("duplicate resort %q", name)
		}
		r.Name = name
		c.byName[name] = len(c.resorts)
		c.resorts = append(c.resorts, r)
	}
	return c, nil
}

// LoadCatalog reads every resort from src once.
func LoadCatalog(ctx context.Context, src domain.ResortSource) (*Catalog, error) {
	rs, err := src.ListResorts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load resorts: %w", err)
	}
	return NewCatalog(rs)
}

func (c *Catalog) All() []domain.Resort {
	out := make([]domain.Resort, len(c.resorts))
	copy(out, c.resorts)
	return out
}

func (c *Catalog) Len() int { return len(c.resorts) }

func (c *Catalog) Lookup(name string) (domain.Resort, bool) {
	i, ok := c.byName[name]
	if !ok {
		return domain.Resort{}, false
	}
	return c.resorts[i], true
}

// Matching returns resorts in a region of regions OR named in names, in catalog order.
// Both empty selects everything.
func (c *Catalog) Matching(regions, names []string) []domain.Resort {
	if len(regions) == 0 && len(names) == 0 {
		return c.All()
	}
	regionSet := toSet(regions)
	nameSet := toSet(names)
	var out []domain.Resort
	for _, r := range c.resorts {
		_, inRegion := regionSet[r.Region]
		_, named := nameSet[r.Name]
		if inRegion || named {
			out = append(out, r)
		}
	}
	return out
}

// Regions returns the distinct non-empty regions, sorted.
func (c *Catalog) Regions() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, r := range c.resorts {
		if r.Region == "" {
			continue
		}
		if _, ok := seen[r.Region]; ok {
			continue
		}
		seen[r.Region] = struct{}{}
		out = append(out, r.Region)
	}
	sort.Strings(out)
	return out
}

func toSet(xs []string) map[string]struct{} {
	set := make(map[string]struct{}, len(xs))
	for _, x := range xs {
		if t := strings.TrimSpace(x); t != "" {
			set[t] = struct{}{}
		}
	}
	return set
}
