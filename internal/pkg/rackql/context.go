package rackql

import "sort"

// EntityKey uniquely identifies an inventory object by (type, name). It is
// the universal handle flowing through lexing, evaluation and output.
type EntityKey struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// Inventory is the read-only view of the inventory backend that queries run
// against. Absent fields and attributes are empty results, not errors;
// error signaling is reserved for genuine backend failures upstream of
// evaluation. Implementations must be safe for concurrent reads.
type Inventory interface {
	// Keys lists every entity in the snapshot.
	Keys() []EntityKey
	// OfType lists the entities of one entity type.
	OfType(entityType string) []EntityKey
	// Children lists the direct children of an entity.
	Children(key EntityKey) []EntityKey
	// Attrs returns the values of every attribute matching key and, when
	// subkey is non-empty, subkey. Multi-valued attributes return multiple
	// values.
	Attrs(key EntityKey, attrKey, subkey string) []any
	// Field looks up a named field on the entity record itself.
	Field(key EntityKey, field string) (string, bool)
}

// HierarchyKinds are the entity types resolved through the membership
// context rather than per-entity attribute lookup.
var HierarchyKinds = []string{"pool", "datacenter"}

// Context is the precomputed hierarchical membership index: for each
// hierarchy kind, the set of containers of that kind that transitively hold
// each entity. It is built once per invocation and read-only afterwards, so
// concurrent evaluation may share it freely.
type Context struct {
	membership map[string]map[EntityKey]map[EntityKey]struct{}
}

// BuildContext walks the child graph under every root of each hierarchy
// kind and records transitive membership. Every entity in the snapshot is
// present in the index; entities with no ancestor of a kind map to the
// empty set. The traversal keeps a visited set per root, so diamond shapes
// and cycles in the child graph terminate.
func BuildContext(inv Inventory) *Context {
	ctx := &Context{membership: make(map[string]map[EntityKey]map[EntityKey]struct{}, len(HierarchyKinds))}
	keys := inv.Keys()

	for _, kind := range HierarchyKinds {
		m := make(map[EntityKey]map[EntityKey]struct{}, len(keys))
		for _, key := range keys {
			m[key] = make(map[EntityKey]struct{})
		}

		for _, root := range inv.OfType(kind) {
			visited := map[EntityKey]struct{}{root: {}}
			queue := inv.Children(root)
			for len(queue) > 0 {
				cur := queue[0]
				queue = queue[1:]
				if _, seen := visited[cur]; seen {
					continue
				}
				visited[cur] = struct{}{}

				set, ok := m[cur]
				if !ok {
					set = make(map[EntityKey]struct{})
					m[cur] = set
				}
				set[root] = struct{}{}

				queue = append(queue, inv.Children(cur)...)
			}
		}
		ctx.membership[kind] = m
	}
	return ctx
}

// IsHierarchy reports whether kind is resolved through the context.
func (c *Context) IsHierarchy(kind string) bool {
	_, ok := c.membership[kind]
	return ok
}

// Containers returns the ancestor containers of the given kind holding key,
// sorted for deterministic output. The result is empty both for entities
// with no such ancestor and for kinds the context does not index.
func (c *Context) Containers(kind string, key EntityKey) []EntityKey {
	set := c.membership[kind][key]
	out := make([]EntityKey, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ContainerNames returns the name component of each ancestor container of
// the given kind holding key.
func (c *Context) ContainerNames(kind string, key EntityKey) []string {
	containers := c.Containers(kind, key)
	names := make([]string, len(containers))
	for i, k := range containers {
		names[i] = k.Name
	}
	return names
}
