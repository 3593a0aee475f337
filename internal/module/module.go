// Package module implements the module/extension surface from spec.md
// §4.I: named interfaces retrievable by capability name, a fixed event
// enumeration modules subscribe to, and atomic revocation on unload.
// Compile-time registration only (Design Notes §9) -- there is no
// shared-object loader here, just an in-process registry that every
// built-in and "third-party-shaped" module goes through the same way.
package module

import "fmt"

type Event uint8

const (
	EventConnect Event = iota
	EventDisconnect
	EventPreCommand
	EventPostCommand
	EventModeChange
	EventChannelDelete
	EventRehash
	EventOper
	EventKill
	EventSync
	EventRequest
)

// Veto lets a subscriber short-circuit an event; any handler returning
// true for a vetoable event stops further subscribers from running.
type Veto = bool

// Subscriber is a module-owned callback attached to one Event.
type Subscriber func(payload interface{}) Veto

// Module is the minimal descriptor every built-in or plugin-shaped
// extension provides.
type Module struct {
	Name         string
	Version      string
	Capabilities []string
}

type attachment struct {
	module string
	fn     Subscriber
}

// Registry is the single place modules are looked up from -- call sites
// must never cache a module-provided interface in a package-level var
// (spec.md §9 open question), they fetch by capability name each time.
type Registry struct {
	modules    map[string]*Module
	interfaces map[string]interfaceEntry
	hooks      map[Event][]attachment
	faulty     map[string]string // module name -> fault reason
}

type interfaceEntry struct {
	module string
	vtable interface{}
}

func NewRegistry() *Registry {
	return &Registry{
		modules:    make(map[string]*Module),
		interfaces: make(map[string]interfaceEntry),
		hooks:      make(map[Event][]attachment),
		faulty:     make(map[string]string),
	}
}

func (r *Registry) Load(m *Module) error {
	if _, exists := r.modules[m.Name]; exists {
		return fmt.Errorf("module: %q already loaded", m.Name)
	}
	r.modules[m.Name] = m
	return nil
}

// Unload removes name's module record, fault mark, published interfaces
// and event attachments -- everything this registry itself tracks. It does
// not touch commands, modes or Extensible cells, which the registry does
// not track; UNLOADMODULE calls nothing else, so those stay in place.
func (r *Registry) Unload(name string) {
	delete(r.modules, name)
	delete(r.faulty, name)
	for cap_, entry := range r.interfaces {
		if entry.module == name {
			delete(r.interfaces, cap_)
		}
	}
	for ev, attachments := range r.hooks {
		kept := attachments[:0]
		for _, a := range attachments {
			if a.module != name {
				kept = append(kept, a)
			}
		}
		r.hooks[ev] = kept
	}
}

func (r *Registry) MarkFaulty(name, reason string) {
	r.faulty[name] = reason
}

func (r *Registry) IsFaulty(name string) (string, bool) {
	reason, ok := r.faulty[name]
	return reason, ok
}

// PublishInterface registers a named capability vtable owned by module.
func (r *Registry) PublishInterface(module, capability string, vtable interface{}) {
	r.interfaces[capability] = interfaceEntry{module: module, vtable: vtable}
}

// Capability retrieves a published interface by name, fresh from the
// registry on every call (never cached by the caller).
func (r *Registry) Capability(name string) (interface{}, bool) {
	entry, ok := r.interfaces[name]
	if !ok {
		return nil, false
	}
	return entry.vtable, true
}

// Attach subscribes module to ev. Ordering of attachments for one event is
// registration order (§4.I); a subscriber may veto by returning true.
func (r *Registry) Attach(module string, ev Event, fn Subscriber) {
	r.hooks[ev] = append(r.hooks[ev], attachment{module: module, fn: fn})
}

// Fire runs every subscriber attached to ev in registration order,
// recovering from subscriber panics so one faulty hook can't take down
// the loop (§7: "runtime exception in a hook is caught, logged, and the
// module is marked faulty"). Returns true if any subscriber vetoed.
func (r *Registry) Fire(ev Event, payload interface{}) (vetoed bool) {
	for _, a := range r.hooks[ev] {
		if r.fireOne(a, payload) {
			return true
		}
	}
	return false
}

func (r *Registry) fireOne(a attachment, payload interface{}) (vetoed bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.MarkFaulty(a.module, fmt.Sprintf("panic in hook: %v", rec))
		}
	}()
	return a.fn(payload)
}
