package rackql

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// testInventory implements Inventory for tests, mirroring how the real
// store resolves children, attributes and fields.
type testInventory struct {
	order    []EntityKey
	children map[EntityKey][]EntityKey
	attrs    map[EntityKey][]testAttr
}

type testAttr struct {
	key    string
	subkey string
	value  any
}

func newTestInventory() *testInventory {
	return &testInventory{
		children: make(map[EntityKey][]EntityKey),
		attrs:    make(map[EntityKey][]testAttr),
	}
}

func (ti *testInventory) add(entityType, name string) EntityKey {
	key := EntityKey{Type: entityType, Name: name}
	ti.order = append(ti.order, key)
	return key
}

func (ti *testInventory) contain(parent EntityKey, children ...EntityKey) {
	ti.children[parent] = append(ti.children[parent], children...)
}

func (ti *testInventory) attr(key EntityKey, attrKey, subkey string, value any) {
	ti.attrs[key] = append(ti.attrs[key], testAttr{key: attrKey, subkey: subkey, value: value})
}

func (ti *testInventory) Keys() []EntityKey {
	return append([]EntityKey(nil), ti.order...)
}

func (ti *testInventory) OfType(entityType string) []EntityKey {
	var keys []EntityKey
	for _, k := range ti.order {
		if k.Type == entityType {
			keys = append(keys, k)
		}
	}
	return keys
}

func (ti *testInventory) Children(key EntityKey) []EntityKey {
	return ti.children[key]
}

func (ti *testInventory) Attrs(key EntityKey, attrKey, subkey string) []any {
	var values []any
	for _, a := range ti.attrs[key] {
		if a.key != attrKey {
			continue
		}
		if subkey != "" && a.subkey != subkey {
			continue
		}
		values = append(values, a.value)
	}
	return values
}

func (ti *testInventory) Field(key EntityKey, field string) (string, bool) {
	switch field {
	case "name":
		return key.Name, true
	case "type":
		return key.Type, true
	default:
		return "", false
	}
}

func TestContextTransitiveMembership(t *testing.T) {
	ti := newTestInventory()
	outer := ti.add("pool", "outer")
	inner := ti.add("pool", "inner")
	web01 := ti.add("host", "web01")
	web02 := ti.add("host", "web02")
	ti.contain(outer, inner)
	ti.contain(inner, web01)
	ti.contain(outer, web02)

	ctx := BuildContext(ti)

	// web01 is in inner directly and in outer transitively.
	got := ctx.ContainerNames("pool", web01)
	if diff := cmp.Diff([]string{"inner", "outer"}, got); diff != "" {
		t.Errorf("web01 pools (-want +got):\n%s", diff)
	}

	// inner is itself contained in outer.
	got = ctx.ContainerNames("pool", inner)
	if diff := cmp.Diff([]string{"outer"}, got); diff != "" {
		t.Errorf("inner pools (-want +got):\n%s", diff)
	}

	got = ctx.ContainerNames("pool", web02)
	if diff := cmp.Diff([]string{"outer"}, got); diff != "" {
		t.Errorf("web02 pools (-want +got):\n%s", diff)
	}
}

func TestContextNoAncestorMapsToEmpty(t *testing.T) {
	ti := newTestInventory()
	ti.add("pool", "lonely")
	stray := ti.add("host", "stray")

	ctx := BuildContext(ti)

	// Present with an empty set, not absent.
	if got := ctx.Containers("pool", stray); len(got) != 0 {
		t.Errorf("expected no pool ancestors, got %v", got)
	}
	if got := ctx.Containers("datacenter", stray); len(got) != 0 {
		t.Errorf("expected no datacenter ancestors, got %v", got)
	}
}

func TestContextMultipleRoots(t *testing.T) {
	ti := newTestInventory()
	a := ti.add("pool", "a")
	b := ti.add("pool", "b")
	shared := ti.add("host", "shared")
	ti.contain(a, shared)
	ti.contain(b, shared)

	ctx := BuildContext(ti)
	got := ctx.ContainerNames("pool", shared)
	if diff := cmp.Diff([]string{"a", "b"}, got); diff != "" {
		t.Errorf("shared pools (-want +got):\n%s", diff)
	}
}

func TestContextCycleTerminates(t *testing.T) {
	ti := newTestInventory()
	p := ti.add("pool", "p")
	x := ti.add("host", "x")
	y := ti.add("host", "y")
	// x and y point at each other; the traversal must still terminate.
	ti.contain(p, x)
	ti.contain(x, y)
	ti.contain(y, x)

	ctx := BuildContext(ti)
	if got := ctx.ContainerNames("pool", x); len(got) != 1 || got[0] != "p" {
		t.Errorf("x pools = %v, want [p]", got)
	}
	if got := ctx.ContainerNames("pool", y); len(got) != 1 || got[0] != "p" {
		t.Errorf("y pools = %v, want [p]", got)
	}
}

func TestContextSeparatesKinds(t *testing.T) {
	ti := newTestInventory()
	dc := ti.add("datacenter", "dc1")
	pool := ti.add("pool", "frontend")
	host := ti.add("host", "web01")
	ti.contain(dc, pool)
	ti.contain(pool, host)

	ctx := BuildContext(ti)

	if got := ctx.ContainerNames("datacenter", host); len(got) != 1 || got[0] != "dc1" {
		t.Errorf("host datacenters = %v, want [dc1]", got)
	}
	if got := ctx.ContainerNames("pool", host); len(got) != 1 || got[0] != "frontend" {
		t.Errorf("host pools = %v, want [frontend]", got)
	}
	// The pool is in the datacenter but not in any pool.
	if got := ctx.ContainerNames("pool", pool); len(got) != 0 {
		t.Errorf("pool pools = %v, want none", got)
	}
}
