package objctest

import "sync"

// SelectorTable interns selector names to fake addresses.
//
// The table is append-only: a name keeps its address for the life of the
// runtime, and concurrent registrations of one name agree on it.
type SelectorTable struct {
	mu     sync.RWMutex
	alloc  func() uintptr
	byName map[string]uintptr
	byAddr map[uintptr]string
}

// NewSelectorTable creates an empty table drawing addresses from alloc.
func NewSelectorTable(alloc func() uintptr) *SelectorTable {
	return &SelectorTable{
		alloc:  alloc,
		byName: make(map[string]uintptr),
		byAddr: make(map[uintptr]string),
	}
}

// Intern returns the address for a selector name, registering it if
// needed.
func (st *SelectorTable) Intern(name string) uintptr {
	st.mu.RLock()
	if addr, ok := st.byName[name]; ok {
		st.mu.RUnlock()
		return addr
	}
	st.mu.RUnlock()

	st.mu.Lock()
	defer st.mu.Unlock()

	// Double-check after acquiring write lock
	if addr, ok := st.byName[name]; ok {
		return addr
	}

	addr := st.alloc()
	st.byName[name] = addr
	st.byAddr[addr] = name
	return addr
}

// Name returns the selector name at addr, or "" if none is registered.
func (st *SelectorTable) Name(addr uintptr) string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.byAddr[addr]
}

// Len returns the number of interned selectors.
func (st *SelectorTable) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.byName)
}
