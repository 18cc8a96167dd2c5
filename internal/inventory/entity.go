// Package inventory holds the read-only inventory snapshot that queries run
// against: the entity model, the in-memory store, and snapshot file I/O.
package inventory

import "github.com/hostgrid/rackq/internal/pkg/rackql"

// Attribute is one key[/subkey]-addressed value attached to an entity.
// Multiple values may exist for one key; Subkey and Number disambiguate
// them. Value is a string, int64 or float64 after decoding.
type Attribute struct {
	Key    string `json:"key"`
	Subkey string `json:"subkey,omitempty"`
	Number int    `json:"number"`
	Value  any    `json:"value"`
}

// Entity is one inventory object: a host, pool, datacenter or anything else
// the backend tracks. Children point at directly contained entities and
// drive the hierarchy traversal.
type Entity struct {
	Type     string             `json:"type"`
	Name     string             `json:"name"`
	Children []rackql.EntityKey `json:"children,omitempty"`
	Attrs    []Attribute        `json:"attrs,omitempty"`
}

// Key returns the entity's (type, name) identity.
func (e *Entity) Key() rackql.EntityKey {
	return rackql.EntityKey{Type: e.Type, Name: e.Name}
}
