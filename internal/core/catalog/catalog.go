// Package catalog lists the kinds the host knows about and searches them by
// substring for the selection screens.
package catalog

import (
	"sort"
	"strings"
	"sync"

	"github.com/zeusync/glowline/internal/core/kind"
)

// Catalog is safe for concurrent use.
type Catalog struct {
	mu    sync.RWMutex
	kinds map[kind.Category][]kind.Kind
	seen  map[kind.Kind]struct{}
	cache map[cacheKey][]kind.Kind
}

type cacheKey struct {
	cat   kind.Category
	query string
}

func New() *Catalog {
	return &Catalog{
		kinds: make(map[kind.Category][]kind.Kind),
		seen:  make(map[kind.Kind]struct{}),
		cache: make(map[cacheKey][]kind.Kind),
	}
}

// Add registers kinds. Duplicates are ignored. The search cache is dropped.
func (c *Catalog) Add(kinds ...kind.Kind) {
	c.mu.Lock()
	defer c.mu.Unlock()

	touched := make(map[kind.Category]struct{})
	for _, k := range kinds {
		if k.IsZero() {
			continue
		}
		if _, ok := c.seen[k]; ok {
			continue
		}
		c.seen[k] = struct{}{}
		c.kinds[k.Category] = append(c.kinds[k.Category], k)
		touched[k.Category] = struct{}{}
	}
	for cat := range touched {
		list := c.kinds[cat]
		sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	}
	if len(touched) > 0 {
		clear(c.cache)
	}
}

// Kinds returns every known kind of cat in name order.
func (c *Catalog) Kinds(cat kind.Category) []kind.Kind {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]kind.Kind(nil), c.kinds[cat]...)
}

func (c *Catalog) Len(cat kind.Category) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.kinds[cat])
}

// Search returns the kinds of cat whose identifier contains query. Matching is case-insensitive. An empty query returns everything.
func (c *Catalog) Search(cat kind.Category, query string) []kind.Kind {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return c.Kinds(cat)
	}
	key := cacheKey{cat: cat, query: q}

	c.mu.RLock()
	hit, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return append([]kind.Kind(nil), hit...)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Every match of q also matches a prefix of q, so a cached prefix
	// result narrows the candidates.
	candidates := c.kinds[cat]
	for n := len(q) - 1; n > 0; n-- {
		if prev, ok := c.cache[cacheKey{cat: cat, query: q[:n]}]; ok {
			candidates = prev
			break
		}
	}
	var found []kind.Kind
	for _, k := range candidates {
		if Matches(k, q) {
			found = append(found, k)
		}
	}
	c.cache[key] = found
	return append([]kind.Kind(nil), found...)
}

// Reset drops every kind and the search cache.
func (c *Catalog) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.kinds)
	clear(c.seen)
	clear(c.cache)
}

// Matches reports whether the identifier of k contains the lowercase query.
func Matches(k kind.Kind, query string) bool {
	return strings.Contains(strings.ToLower(k.Name), query)
}
