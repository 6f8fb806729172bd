package runtime

import (
	"fmt"
	"io"
	"lumen-lang/internal/span"
	"math"
	"strconv"
	"strings"
)

// RegisterBuiltins installs the base library into env: the global
// print/type/tostring/tonumber/error/assert/pcall/next functions plus
// the string and math tables. interp is used by pcall, which must be
// able to invoke an arbitrary callable value.
func RegisterBuiltins(interp *Interpreter, env *Environment, w io.Writer) {
	env.Define("print", &Builtin{
		Name: "print",
		Fn: func(args []Value) (Value, error) {
			fmt.Fprintln(w, ValuesString(args, "\t"))
			return Nil, nil
		},
	})

	env.Define("type", &Builtin{
		Name: "type",
		Fn: func(args []Value) (Value, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("type() expects 1 argument, got %d", len(args))
			}
			return StringVal(TypeOf(args[0])), nil
		},
	})

	env.Define("tostring", &Builtin{
		Name: "tostring",
		Fn: func(args []Value) (Value, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("tostring() expects 1 argument, got %d", len(args))
			}
			return StringVal(args[0].String()), nil
		},
	})

	env.Define("tonumber", &Builtin{
		Name: "tonumber",
		Fn: func(args []Value) (Value, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("tonumber() expects 1 argument, got %d", len(args))
			}
			switch v := args[0].(type) {
			case NumberVal:
				return v, nil
			case StringVal:
				f, err := strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
				if err != nil {
					return Nil, nil
				}
				return NumberVal(f), nil
			default:
				return Nil, nil
			}
		},
	})

	env.Define("error", &Builtin{
		Name: "error",
		Fn: func(args []Value) (Value, error) {
			var v Value = StringVal("")
			if len(args) > 0 {
				v = args[0]
			}
			return nil, &ScriptError{Value: v}
		},
	})

	env.Define("assert", &Builtin{
		Name: "assert",
		Fn: func(args []Value) (Value, error) {
			if len(args) == 0 || !IsTruthy(args[0]) {
				var msg Value = StringVal("assertion failed!")
				if len(args) > 1 {
					msg = args[1]
				}
				return nil, &ScriptError{Value: msg}
			}
			return args[0], nil
		},
	})

	env.Define("pcall", &Builtin{
		Name: "pcall",
		Fn: func(args []Value) (Value, error) {
			if len(args) == 0 {
				return nil, fmt.Errorf("pcall() expects at least 1 argument")
			}
			result, err := interp.callValue(args[0], args[1:], span.Span{})
			out := NewTable()
			if err != nil {
				out.Set(StringVal("ok"), BoolVal(false))
				out.Set(StringVal("error"), errorToValue(err))
				return out, nil
			}
			out.Set(StringVal("ok"), BoolVal(true))
			out.Set(StringVal("value"), result)
			return out, nil
		},
	})

	env.Define("next", &Builtin{
		Name: "next",
		Fn: func(args []Value) (Value, error) {
			if len(args) == 0 {
				return nil, fmt.Errorf("next() expects at least 1 argument")
			}
			tbl, ok := args[0].(*Table)
			if !ok {
				return nil, fmt.Errorf("next() expects a table, got '%s'", args[0].TypeName())
			}
			var key Value = Nil
			if len(args) > 1 {
				key = args[1]
			}
			nextKey, _, found := tbl.Next(key)
			if !found {
				return Nil, nil
			}
			return nextKey, nil
		},
	})

	env.Define("string", buildStringLibrary())
	env.Define("math", buildMathLibrary())
}

func errorToValue(err error) Value {
	if se, ok := err.(*ScriptError); ok {
		return se.Value
	}
	return StringVal(err.Error())
}

// ---- string library ----

func buildStringLibrary() *Table {
	lib := NewTable()

	lib.Set(StringVal("len"), &Builtin{Name: "string.len", Fn: func(args []Value) (Value, error) {
		s, err := stringArg(args, 0, "string.len")
		if err != nil {
			return nil, err
		}
		return NumberVal(len(s)), nil
	}})

	lib.Set(StringVal("upper"), &Builtin{Name: "string.upper", Fn: func(args []Value) (Value, error) {
		s, err := stringArg(args, 0, "string.upper")
		if err != nil {
			return nil, err
		}
		return StringVal(strings.ToUpper(s)), nil
	}})

	lib.Set(StringVal("lower"), &Builtin{Name: "string.lower", Fn: func(args []Value) (Value, error) {
		s, err := stringArg(args, 0, "string.lower")
		if err != nil {
			return nil, err
		}
		return StringVal(strings.ToLower(s)), nil
	}})

	lib.Set(StringVal("rep"), &Builtin{Name: "string.rep", Fn: func(args []Value) (Value, error) {
		s, err := stringArg(args, 0, "string.rep")
		if err != nil {
			return nil, err
		}
		n, err := numberArg(args, 1, "string.rep")
		if err != nil {
			return nil, err
		}
		if n < 0 {
			n = 0
		}
		return StringVal(strings.Repeat(s, int(n))), nil
	}})

	lib.Set(StringVal("sub"), &Builtin{Name: "string.sub", Fn: func(args []Value) (Value, error) {
		s, err := stringArg(args, 0, "string.sub")
		if err != nil {
			return nil, err
		}
		i, err := numberArg(args, 1, "string.sub")
		if err != nil {
			return nil, err
		}
		j := float64(len(s))
		if len(args) > 2 {
			j, err = numberArg(args, 2, "string.sub")
			if err != nil {
				return nil, err
			}
		}
		start, end := luaSubRange(len(s), int(i), int(j))
		if start >= end {
			return StringVal(""), nil
		}
		return StringVal(s[start:end]), nil
	}})

	lib.Set(StringVal("byte"), &Builtin{Name: "string.byte", Fn: func(args []Value) (Value, error) {
		s, err := stringArg(args, 0, "string.byte")
		if err != nil {
			return nil, err
		}
		idx := 1.0
		if len(args) > 1 {
			idx, err = numberArg(args, 1, "string.byte")
			if err != nil {
				return nil, err
			}
		}
		pos := int(idx)
		if pos < 1 || pos > len(s) {
			return Nil, nil
		}
		return NumberVal(s[pos-1]), nil
	}})

	lib.Set(StringVal("char"), &Builtin{Name: "string.char", Fn: func(args []Value) (Value, error) {
		var sb strings.Builder
		for idx, a := range args {
			n, ok := a.(NumberVal)
			if !ok {
				return nil, fmt.Errorf("string.char() argument %d must be a number", idx+1)
			}
			sb.WriteByte(byte(n))
		}
		return StringVal(sb.String()), nil
	}})

	return lib
}

// luaSubRange converts Lua-style (possibly negative, 1-based, inclusive)
// start/end indices into Go-style [start,end) byte offsets. start is
// clamped to at least 0 and end to at most length; start may still exceed
// length and end may be negative, so callers treat start >= end as empty.
func luaSubRange(length, i, j int) (int, int) {
	if i < 0 {
		i = length + i + 1
	}
	if j < 0 {
		j = length + j + 1
	}
	if i < 1 {
		i = 1
	}
	if j > length {
		j = length
	}
	return i - 1, j
}

// ---- math library ----

func buildMathLibrary() *Table {
	lib := NewTable()

	lib.Set(StringVal("floor"), &Builtin{Name: "math.floor", Fn: func(args []Value) (Value, error) {
		n, err := numberArg(args, 0, "math.floor")
		if err != nil {
			return nil, err
		}
		return NumberVal(math.Floor(n)), nil
	}})

	lib.Set(StringVal("ceil"), &Builtin{Name: "math.ceil", Fn: func(args []Value) (Value, error) {
		n, err := numberArg(args, 0, "math.ceil")
		if err != nil {
			return nil, err
		}
		return NumberVal(math.Ceil(n)), nil
	}})

	lib.Set(StringVal("abs"), &Builtin{Name: "math.abs", Fn: func(args []Value) (Value, error) {
		n, err := numberArg(args, 0, "math.abs")
		if err != nil {
			return nil, err
		}
		return NumberVal(math.Abs(n)), nil
	}})

	lib.Set(StringVal("sqrt"), &Builtin{Name: "math.sqrt", Fn: func(args []Value) (Value, error) {
		n, err := numberArg(args, 0, "math.sqrt")
		if err != nil {
			return nil, err
		}
		return NumberVal(math.Sqrt(n)), nil
	}})

	lib.Set(StringVal("max"), &Builtin{Name: "math.max", Fn: func(args []Value) (Value, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("math.max() expects at least 1 argument")
		}
		best, err := numberArg(args, 0, "math.max")
		if err != nil {
			return nil, err
		}
		for idx := 1; idx < len(args); idx++ {
			n, err := numberArg(args, idx, "math.max")
			if err != nil {
				return nil, err
			}
			if n > best {
				best = n
			}
		}
		return NumberVal(best), nil
	}})

	lib.Set(StringVal("min"), &Builtin{Name: "math.min", Fn: func(args []Value) (Value, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("math.min() expects at least 1 argument")
		}
		best, err := numberArg(args, 0, "math.min")
		if err != nil {
			return nil, err
		}
		for idx := 1; idx < len(args); idx++ {
			n, err := numberArg(args, idx, "math.min")
			if err != nil {
				return nil, err
			}
			if n < best {
				best = n
			}
		}
		return NumberVal(best), nil
	}})

	lib.Set(StringVal("huge"), NumberVal(math.Inf(1)))

	return lib
}

// ---- argument helpers ----

func stringArg(args []Value, idx int, fnName string) (string, error) {
	if idx >= len(args) {
		return "", fmt.Errorf("%s() expects at least %d arguments", fnName, idx+1)
	}
	s, ok := args[idx].(StringVal)
	if !ok {
		return "", fmt.Errorf("%s() argument %d must be a string, got '%s'", fnName, idx+1, args[idx].TypeName())
	}
	return string(s), nil
}

func numberArg(args []Value, idx int, fnName string) (float64, error) {
	if idx >= len(args) {
		return 0, fmt.Errorf("%s() expects at least %d arguments", fnName, idx+1)
	}
	n, ok := args[idx].(NumberVal)
	if !ok {
		return 0, fmt.Errorf("%s() argument %d must be a number, got '%s'", fnName, idx+1, args[idx].TypeName())
	}
	return float64(n), nil
}
