// Package runtime implements the interpreter and runtime value system for
// lumen-lang.
package runtime

import (
	"fmt"
	"lumen-lang/internal/ast"
	"strconv"
	"strings"
)

// Value is the interface for all runtime values. Every concrete
// implementation is comparable in the Go sense, so Value can be used
// directly as a map key — this is what gives Table structural equality on
// primitives and identity equality on tables/functions for free.
type Value interface {
	TypeName() string
	String() string
}

// ---- Primitive values ----

// NumberVal represents a numeric value. The language makes no
// integer/float distinction beyond the host's native float64.
type NumberVal float64

func (v NumberVal) TypeName() string { return "number" }
func (v NumberVal) String() string {
	f := float64(v)
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// StringVal represents a string value.
type StringVal string

func (v StringVal) TypeName() string { return "string" }
func (v StringVal) String() string   { return string(v) }

// BoolVal represents a boolean value.
type BoolVal bool

func (v BoolVal) TypeName() string { return "boolean" }
func (v BoolVal) String() string   { return fmt.Sprintf("%t", bool(v)) }

// NilVal represents nil, the absence of a value.
type NilVal struct{}

func (v NilVal) TypeName() string { return "nil" }
func (v NilVal) String() string   { return "nil" }

// Nil is the single nil value every absent binding and lookup miss
// resolves to.
var Nil = NilVal{}

// ---- Callable values ----

// Function represents a user-defined function (closure): its parameter
// names, its body, and the environment it was defined in.
type Function struct {
	Name    string // for display only; may be empty for anonymous functions
	Params  []string
	Body    *ast.Block
	Closure *Environment
}

func (v *Function) TypeName() string { return "function" }
func (v *Function) String() string {
	if v.Name == "" {
		return "<function>"
	}
	return fmt.Sprintf("<function %s>", v.Name)
}

// BuiltinFn is the Go signature for native (host-provided) functions.
type BuiltinFn func(args []Value) (Value, error)

// Builtin represents a native function supplied by the base library or an
// embedding host.
type Builtin struct {
	Name string
	Fn   BuiltinFn
}

func (v *Builtin) TypeName() string { return "function" }
func (v *Builtin) String() string   { return fmt.Sprintf("<builtin %s>", v.Name) }

// ---- Table value ----

// Table is the language's sole compound data structure: an arbitrary-key
// mutable map that also serves as the positional-array type. Keys are
// kept in insertion order so iteration through next() is predictable.
type Table struct {
	data map[Value]Value
	keys []Value
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{data: make(map[Value]Value)}
}

func (t *Table) TypeName() string { return "table" }
func (t *Table) String() string   { return fmt.Sprintf("<table %p>", t) }

// Get returns the value stored at key, or Nil if key has never been set
// (or was last set to Nil).
func (t *Table) Get(key Value) Value {
	if v, ok := t.data[key]; ok {
		return v
	}
	return Nil
}

// Set stores value at key. Setting a key to Nil removes it from the
// table entirely, matching the language's "absence is nil" rule.
func (t *Table) Set(key Value, value Value) {
	_, existed := t.data[key]
	if value == Value(Nil) {
		if existed {
			delete(t.data, key)
			for i, k := range t.keys {
				if k == key {
					t.keys = append(t.keys[:i], t.keys[i+1:]...)
					break
				}
			}
		}
		return
	}
	if !existed {
		t.keys = append(t.keys, key)
	}
	t.data[key] = value
}

// Len implements the # length operator: the count of a contiguous run of
// positive integer keys starting at 1 (a "border", in Lua's terms).
func (t *Table) Len() int {
	n := 0
	for {
		key := NumberVal(n + 1)
		if _, ok := t.data[key]; !ok {
			break
		}
		n++
	}
	return n
}

// Next returns the key/value pair following key in insertion order, for
// the supplemented next() base-library function. When key is Nil it
// returns the first pair. found is false once iteration is exhausted.
func (t *Table) Next(key Value) (nextKey Value, nextVal Value, found bool) {
	if key == Value(Nil) {
		if len(t.keys) == 0 {
			return Nil, Nil, false
		}
		k := t.keys[0]
		return k, t.data[k], true
	}
	for i, k := range t.keys {
		if k == key {
			if i+1 >= len(t.keys) {
				return Nil, Nil, false
			}
			nk := t.keys[i+1]
			return nk, t.data[nk], true
		}
	}
	return Nil, Nil, false
}

// ---- Truthiness ----

// IsTruthy reports the truthiness of a value: only nil and false are
// falsy, every other value (including 0 and "") is truthy.
func IsTruthy(v Value) bool {
	switch val := v.(type) {
	case NilVal:
		return false
	case BoolVal:
		return bool(val)
	default:
		return true
	}
}

// ---- Helpers ----

// ValuesString formats a slice of values with a separator.
func ValuesString(vals []Value, sep string) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.String()
	}
	return strings.Join(parts, sep)
}

// ToFloat64 attempts to read a numeric value as a float64.
func ToFloat64(v Value) (float64, bool) {
	n, ok := v.(NumberVal)
	if !ok {
		return 0, false
	}
	return float64(n), true
}

// TypeOf returns the language-level type name used by type().
func TypeOf(v Value) string {
	if v == nil {
		return "nil"
	}
	return v.TypeName()
}
