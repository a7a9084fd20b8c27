// Package query carries the per-query context the plan layer consumes: the
// catalog of collections a query touches and the access mode it needs on each.
package query

import "fmt"

// AccessMode is how a query touches a collection.
type AccessMode uint8

const (
	AccessRead AccessMode = iota
	AccessWrite
)

func (m AccessMode) String() string {
	if m == AccessWrite {
		return "write"
	}
	return "read"
}

// ParseAccessMode parses the persisted access mode string.
func ParseAccessMode(s string) (AccessMode, error) {
	switch s {
	case "read":
		return AccessRead, nil
	case "write":
		return AccessWrite, nil
	default:
		return AccessRead, fmt.Errorf("unknown collection access mode %q", s)
	}
}

// Collection is one catalog entry.
type Collection struct {
	Name   string
	Access AccessMode
}

// Collections tracks the distinct set of collections a query references,
// in first-mention order. Registering a name twice keeps one entry and
// upgrades read access to write if either registration asked for write.
type Collections struct {
	byName map[string]*Collection
	order  []string
}

func NewCollections() *Collections {
	return &Collections{byName: make(map[string]*Collection)}
}

// Add registers a collection reference and returns the catalog entry.
func (c *Collections) Add(name string, access AccessMode) *Collection {
	if existing, ok := c.byName[name]; ok {
		if access == AccessWrite {
			existing.Access = AccessWrite
		}
		return existing
	}
	col := &Collection{Name: name, Access: access}
	c.byName[name] = col
	c.order = append(c.order, name)
	return col
}

// Get returns the entry for name, or nil if the query never registered it.
func (c *Collections) Get(name string) *Collection {
	return c.byName[name]
}

// All returns every entry in first-mention order.
func (c *Collections) All() []*Collection {
	out := make([]*Collection, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.byName[name])
	}
	return out
}
