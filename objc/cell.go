package objc

import (
	"sync"
	"sync/atomic"
)

// cell is a lazily published address. Once a non-zero value is stored it
// never changes.
type cell struct {
	v atomic.Uintptr
}

func (c *cell) load() uintptr {
	return c.v.Load()
}

// publish stores v unless another value won first, and returns the value
// that is now published. Zero is never stored.
func (c *cell) publish(v uintptr) uintptr {
	if v == 0 {
		return c.v.Load()
	}
	if c.v.CompareAndSwap(0, v) {
		return v
	}
	return c.v.Load()
}

// internTable maps names to published cells. Racing lookups of the same
// name may all compute; exactly one result is kept.
type internTable struct {
	cells sync.Map // string -> *cell
}

// get returns the published value for name, computing it with resolve
// if nothing is published yet. A zero result is returned as-is and
// leaves the table untouched, so names that do not resolve now can
// still resolve later.
func (t *internTable) get(name string, resolve func(string) uintptr) (v uintptr, fresh bool) {
	if c, ok := t.cells.Load(name); ok {
		if v := c.(*cell).load(); v != 0 {
			return v, false
		}
	}
	v = resolve(name)
	if v == 0 {
		return 0, false
	}
	c, _ := t.cells.LoadOrStore(name, new(cell))
	won := c.(*cell).publish(v)
	return won, won == v
}

// peek returns the published value for name, if any.
func (t *internTable) peek(name string) (uintptr, bool) {
	c, ok := t.cells.Load(name)
	if !ok {
		return 0, false
	}
	v := c.(*cell).load()
	return v, v != 0
}

func (t *internTable) len() int {
	n := 0
	t.cells.Range(func(_, c any) bool {
		if c.(*cell).load() != 0 {
			n++
		}
		return true
	})
	return n
}
