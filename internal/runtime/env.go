package runtime

// Environment represents a lexical variable scope with a parent chain.
// Unlike a statically-checked language, lookups and assignments never
// fail on an unknown name: a miss during assignment silently creates the
// binding rather than reporting an undefined-variable error.
type Environment struct {
	values  map[string]Value
	parent  *Environment
	sandbox *Table // non-nil only on the program's root scope
}

// NewEnvironment creates a new child scope under parent.
func NewEnvironment(parent *Environment) *Environment {
	return &Environment{
		values: make(map[string]Value),
		parent: parent,
	}
}

// NewRootEnvironment creates the top-level scope of a program run. Every
// binding made directly in this scope (by local declaration, assignment,
// or an implicit global creation) is mirrored into sandbox, so the
// caller can inspect or seed globals through a plain Table.
func NewRootEnvironment(sandbox *Table) *Environment {
	return &Environment{
		values:  make(map[string]Value),
		sandbox: sandbox,
	}
}

// Define introduces name as a new binding in this exact scope, shadowing
// any binding of the same name in an ancestor scope. A local declaration
// always takes this path: redeclaring a name already local to this scope
// simply overwrites it, no error.
func (e *Environment) Define(name string, value Value) {
	e.values[name] = value
	if e.sandbox != nil {
		e.sandbox.Set(StringVal(name), value)
	}
}

// Get looks up a variable by walking the scope chain outward and, at the
// root scope, falling back to its sandbox table. It returns ok=false if
// neither binds the name (a sandbox entry is absent when it holds nil).
func (e *Environment) Get(name string) (Value, bool) {
	for env := e; env != nil; env = env.parent {
		if val, exists := env.values[name]; exists {
			return val, true
		}
		if env.sandbox != nil {
			if val := env.sandbox.Get(StringVal(name)); val != Value(Nil) {
				return val, true
			}
		}
	}
	return nil, false
}

// Set assigns to an existing binding, searching this scope and then each
// ancestor in turn and updating the first scope where the name is
// already bound. If no scope has ever bound the name, Set creates it in
// the scope Set was called on (not necessarily the root scope).
func (e *Environment) Set(name string, value Value) {
	for env := e; env != nil; env = env.parent {
		if _, exists := env.values[name]; exists {
			env.values[name] = value
			if env.sandbox != nil {
				env.sandbox.Set(StringVal(name), value)
			}
			return
		}
	}
	e.values[name] = value
	if e.sandbox != nil {
		e.sandbox.Set(StringVal(name), value)
	}
}
