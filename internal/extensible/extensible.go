// Package extensible implements the typed metadata bag attached to Users
// and Channels so modules can stash their own state without the core
// knowing about it (Design Notes §9: capability interfaces over deep
// inheritance, no "friend" module pointers baked into core types).
package extensible

import "sync"

// Key namespaces a cell by the owning module name plus a field name, so
// two modules can use the same field name without colliding.
type Key struct {
	Module string
	Name   string
}

// Bag is a typed metadata store. Zero value is usable.
type Bag struct {
	mu    sync.RWMutex
	cells map[Key]interface{}
}

func (b *Bag) Set(k Key, v interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cells == nil {
		b.cells = make(map[Key]interface{})
	}
	b.cells[k] = v
}

func (b *Bag) Get(k Key) (interface{}, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.cells[k]
	return v, ok
}

func (b *Bag) Delete(k Key) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.cells, k)
}

// RevokeModule deletes every cell owned by module. Called when a module is
// unloaded so its attachments are revoked atomically per §4.I.
func (b *Bag) RevokeModule(module string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k := range b.cells {
		if k.Module == module {
			delete(b.cells, k)
		}
	}
}
