package element

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheKey struct {
	dims  Dimensionality
	order int
}

// Operators bundles the reference element and mortar operators of one
// dimension/order pair
type Operators struct {
	Element *LGLElement
	Mortar  *MortarOperators
}

// Cache memoizes Operators across reinitializations. It is safe for
// concurrent use.
type Cache struct {
	entries *lru.Cache[cacheKey, *Operators]
}

// NewCache creates a cache holding at most size operator sets
func NewCache(size int) (*Cache, error) {
	entries, err := lru.New[cacheKey, *Operators](size)
	if err != nil {
		return nil, fmt.Errorf("operator cache: %w", err)
	}
	return &Cache{entries: entries}, nil
}

// Get returns the cached operators, building them on a miss
func (c *Cache) Get(dims Dimensionality, order int) (*Operators, error) {
	key := cacheKey{dims: dims, order: order}
	if ops, ok := c.entries.Get(key); ok {
		return ops, nil
	}
	el, err := NewLGLElement(dims, order)
	if err != nil {
		return nil, err
	}
	mo, err := NewMortarOperators(el)
	if err != nil {
		return nil, err
	}
	ops := &Operators{Element: el, Mortar: mo}
	c.entries.Add(key, ops)
	return ops, nil
}

// Len returns the number of cached entries
func (c *Cache) Len() int { return c.entries.Len() }
