// Package modes implements the per-letter mode handler system from
// spec.md §4.H: USER/CHANNEL scoped handlers, PARAM_NONE/ON_SET/ALWAYS/
// LIST parameter rules, ALLOW/DENY/PARAM_REJECTED outcomes, and the
// 20-changes-per-line overflow/spillover rule.
package modes

import "fmt"

type Scope uint8

const (
	ScopeUser Scope = iota
	ScopeChannel
)

// ParamRule says when a mode letter consumes a parameter.
type ParamRule uint8

const (
	ParamNone   ParamRule = iota // never takes a parameter
	ParamOnSet                  // takes a parameter only when being set (+k key)
	ParamAlways                 // takes a parameter on both set and unset (+o nick / -o nick)
	ParamList                   // takes a parameter, and bare query lists entries (+b)
)

type Outcome uint8

const (
	Allow Outcome = iota
	Deny
	ParamRejected
)

// Change is one parsed (+/-, letter, optional parameter) item from a MODE
// line, in the order it appeared.
type Change struct {
	Add    bool
	Letter byte
	Param  string
}

// Handler is registered per (scope, letter). Apply mutates state (the
// concrete channel/user is whatever E the caller's Registry is
// instantiated with) and returns whether -- and with what resulting
// parameter -- the change was applied.
type Handler[E any] struct {
	Rule ParamRule
	// Apply performs the change. appliedParam is what should appear in the
	// outgoing canonical mode string for this item (may differ from the
	// requested param, e.g. a ban mask gets normalized).
	Apply func(env E, add bool, param string, bySelf bool) (Outcome, appliedParam string)
	// List, for ParamList handlers queried with no parameter, enumerates
	// current entries (used for MODE #chan +b with no argument).
	List func(env E) []string
}

// Registry holds every registered (scope, letter) handler.
type Registry[E any] struct {
	handlers map[key]*Handler[E]
}

type key struct {
	scope  Scope
	letter byte
}

func NewRegistry[E any]() *Registry[E] {
	return &Registry[E]{handlers: make(map[key]*Handler[E])}
}

func (r *Registry[E]) Register(scope Scope, letter byte, h *Handler[E]) error {
	k := key{scope, letter}
	if _, exists := r.handlers[k]; exists {
		return fmt.Errorf("modes: letter %q already registered for scope %d", letter, scope)
	}
	r.handlers[k] = h
	return nil
}

func (r *Registry[E]) Unregister(scope Scope, letter byte) {
	delete(r.handlers, key{scope, letter})
}

func (r *Registry[E]) Lookup(scope Scope, letter byte) (*Handler[E], bool) {
	h, ok := r.handlers[key{scope, letter}]
	return h, ok
}

// MaxChangesPerLine bounds how many mode items are applied from one MODE
// line before the remainder spills to a follow-up line (§4.H).
const MaxChangesPerLine = 20

// ParseChanges turns MODE params (e.g. ["+ovb", "alice", "bob", "*!*@h"])
// into Changes, consuming one trailing parameter per letter whose rule
// requires one under the given lookup. Items beyond MaxChangesPerLine are
// returned separately as "overflow" for the caller to requeue.
func ParseChanges[E any](reg *Registry[E], scope Scope, params []string) (applied []Change, overflow []Change) {
	if len(params) == 0 {
		return nil, nil
	}

	modeStr := params[0]
	args := params[1:]
	argIdx := 0

	add := true
	count := 0
	for i := 0; i < len(modeStr); i++ {
		c := modeStr[i]
		switch c {
		case '+':
			add = true
			continue
		case '-':
			add = false
			continue
		}

		var param string
		if h, ok := reg.Lookup(scope, c); ok {
			needsParam := h.Rule == ParamAlways ||
				(h.Rule == ParamOnSet && add) ||
				(h.Rule == ParamList && argIdx < len(args))
			if needsParam && argIdx < len(args) {
				param = args[argIdx]
				argIdx++
			}
		}

		ch := Change{Add: add, Letter: c, Param: param}
		if count < MaxChangesPerLine {
			applied = append(applied, ch)
			count++
		} else {
			overflow = append(overflow, ch)
		}
	}

	return applied, overflow
}
