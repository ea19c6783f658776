package evaluator

type binding struct {
	value   Value
	mutable bool
}

// Env is the interpreter's stack of scopes, innermost last.
// Lookup scans from the innermost scope outwards; the first hit wins.
type Env struct {
	scopes []map[string]binding
}

// NewEnv creates an environment holding a single global scope.
func NewEnv() *Env {
	return &Env{scopes: []map[string]binding{make(map[string]binding)}}
}

// Push opens a new innermost scope.
func (e *Env) Push() {
	e.scopes = append(e.scopes, make(map[string]binding))
}

// Pop discards the innermost scope. The global scope is never popped.
func (e *Env) Pop() {
	if len(e.scopes) > 1 {
		e.scopes = e.scopes[:len(e.scopes)-1]
	}
}

// Depth returns the number of active scopes.
func (e *Env) Depth() int {
	return len(e.scopes)
}

// Get looks up a name, innermost scope first.
func (e *Env) Get(name string) (Value, bool) {
	for i := len(e.scopes) - 1; i >= 0; i-- {
		if b, ok := e.scopes[i][name]; ok {
			return b.value, true
		}
	}
	return nil, false
}

// Set binds a mutable name in the innermost scope. It reports false, leaving
// the scope untouched, when the name is already bound immutably there.
func (e *Env) Set(name string, val Value) bool {
	return e.bind(name, val, true)
}

// SetConst binds an immutable name in the innermost scope, with the same
// rebinding rule as Set.
func (e *Env) SetConst(name string, val Value) bool {
	return e.bind(name, val, false)
}

func (e *Env) bind(name string, val Value, mutable bool) bool {
	scope := e.scopes[len(e.scopes)-1]
	if b, ok := scope[name]; ok && !b.mutable {
		return false
	}
	scope[name] = binding{value: val, mutable: mutable}
	return true
}

// Has checks whether a name is bound in any scope.
func (e *Env) Has(name string) bool {
	_, ok := e.Get(name)
	return ok
}

// Names returns the names bound in the global scope.
func (e *Env) Names() []string {
	names := make([]string, 0, len(e.scopes[0]))
	for name := range e.scopes[0] {
		names = append(names, name)
	}
	return names
}
