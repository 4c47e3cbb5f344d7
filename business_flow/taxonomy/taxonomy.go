// Package taxonomy loads the IAB content category tree used by segment filters
package taxonomy

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed iab_categories.yaml
var iabYAML []byte

// Taxonomy is a two-tier category tree; both tiers are valid filter values
type Taxonomy struct {
	tiers map[string][]string
	index map[string]string
}

var (
	defaultOnce sync.Once
	defaultTax  *Taxonomy
	defaultErr  error
)

// Default returns the embedded IAB taxonomy
func Default() (*Taxonomy, error) {
	defaultOnce.Do(func() {
		defaultTax, defaultErr = Parse(iabYAML)
	})
	return defaultTax, defaultErr
}

// MustDefault panics when the embedded taxonomy is malformed
func MustDefault() *Taxonomy {
	t, err := Default()
	if err != nil {
		panic(err)
	}
	return t
}

// Parse reads a tier1 -> [tier2] YAML mapping
func Parse(data []byte) (*Taxonomy, error) {
	var tiers map[string][]string
	if err := yaml.Unmarshal(data, &tiers); err != nil {
		return nil, fmt.Errorf("failed to parse category taxonomy: %w", err)
	}
	t := &Taxonomy{tiers: tiers, index: make(map[string]string)}
	for tier1, children := range tiers {
		t.index[strings.ToLower(tier1)] = tier1
		for _, c := range children {
			t.index[strings.ToLower(c)] = c
		}
	}
	return t, nil
}

// Canonical returns the stored spelling of name, matched case-insensitively
func (t *Taxonomy) Canonical(name string) (string, bool) {
	c, ok := t.index[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// Unknown returns the sorted, de-duplicated names that are not in the tree
func (t *Taxonomy) Unknown(names ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range names {
		for _, n := range list {
			if _, ok := t.Canonical(n); ok {
				continue
			}
			if _, dup := seen[n]; dup {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// Tier1 returns the top-level categories sorted by name
func (t *Taxonomy) Tier1() []string {
	out := make([]string, 0, len(t.tiers))
	for k := range t.tiers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
