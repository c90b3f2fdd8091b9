package ir

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// ValueKind identifies which variant a Value holds.
type ValueKind uint8

// Value variants.
const (
	ValueInvalid ValueKind = iota
	ValueString
	ValueInt
	ValueFloat
	ValueBool
	ValueList
	ValueMap
)

// String returns the lowercase variant name.
func (k ValueKind) String() string {
	switch k {
	case ValueString:
		return "string"
	case ValueInt:
		return "int"
	case ValueFloat:
		return "float"
	case ValueBool:
		return "bool"
	case ValueList:
		return "list"
	case ValueMap:
		return "map"
	default:
		return "invalid"
	}
}

// Value is an immutable property value: text, 64-bit integer, 64-bit float,
// boolean, an ordered list of values, or a string-keyed map of values.
//
// List and map constructors copy their input and the accessors return copies,
// so a Value can never reach itself.
type Value struct {
	kind ValueKind
	s    string
	i    int64
	f    float64
	b    bool
	list []Value
	m    map[string]Value
}

// String builds a text value.
func String(s string) Value { return Value{kind: ValueString, s: s} }

// Int builds an integer value.
func Int(i int64) Value { return Value{kind: ValueInt, i: i} }

// Float builds a floating point value.
func Float(f float64) Value { return Value{kind: ValueFloat, f: f} }

// Bool builds a boolean value.
func Bool(b bool) Value { return Value{kind: ValueBool, b: b} }

// List builds an ordered list value.
func List(items ...Value) Value {
	return Value{kind: ValueList, list: slices.Clone(items)}
}

// Map builds a string-keyed map value.
func Map(m map[string]Value) Value {
	return Value{kind: ValueMap, m: maps.Clone(m)}
}

// ValueOf converts common Go values into a Value. It returns false for
// unsupported types.
func ValueOf(v any) (Value, bool) {
	switch x := v.(type) {
	case Value:
		return x, true
	case string:
		return String(x), true
	case int:
		return Int(int64(x)), true
	case int32:
		return Int(int64(x)), true
	case int64:
		return Int(x), true
	case uint32:
		return Int(int64(x)), true
	case float32:
		return Float(float64(x)), true
	case float64:
		return Float(x), true
	case bool:
		return Bool(x), true
	case []string:
		items := make([]Value, len(x))
		for i, s := range x {
			items[i] = String(s)
		}
		return Value{kind: ValueList, list: items}, true
	case []Value:
		return List(x...), true
	case []any:
		items := make([]Value, 0, len(x))
		for _, e := range x {
			ev, ok := ValueOf(e)
			if !ok {
				return Value{}, false
			}
			items = append(items, ev)
		}
		return Value{kind: ValueList, list: items}, true
	case map[string]Value:
		return Map(x), true
	case map[string]any:
		m := make(map[string]Value, len(x))
		for k, e := range x {
			ev, ok := ValueOf(e)
			if !ok {
				return Value{}, false
			}
			m[k] = ev
		}
		return Value{kind: ValueMap, m: m}, true
	}
	return Value{}, false
}

// Kind reports the variant held by v.
func (v Value) Kind() ValueKind { return v.kind }

// IsValid reports whether v holds any variant.
func (v Value) IsValid() bool { return v.kind != ValueInvalid }

// AsString returns the text held by v.
func (v Value) AsString() (string, bool) {
	return v.s, v.kind == ValueString
}

// AsInt returns the integer held by v.
func (v Value) AsInt() (int64, bool) {
	return v.i, v.kind == ValueInt
}

// AsFloat returns the float held by v.
func (v Value) AsFloat() (float64, bool) {
	return v.f, v.kind == ValueFloat
}

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == ValueBool
}

// AsList returns a copy of the list held by v.
func (v Value) AsList() ([]Value, bool) {
	if v.kind != ValueList {
		return nil, false
	}
	return slices.Clone(v.list), true
}

// AsMap returns a copy of the map held by v.
func (v Value) AsMap() (map[string]Value, bool) {
	if v.kind != ValueMap {
		return nil, false
	}
	return maps.Clone(v.m), true
}

// Len returns the number of elements of a list or map value, zero otherwise.
func (v Value) Len() int {
	switch v.kind {
	case ValueList:
		return len(v.list)
	case ValueMap:
		return len(v.m)
	}
	return 0
}

// Equal reports deep equality of two values. Int and Float never compare equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case ValueString:
		return v.s == o.s
	case ValueInt:
		return v.i == o.i
	case ValueFloat:
		return v.f == o.f
	case ValueBool:
		return v.b == o.b
	case ValueList:
		return slices.EqualFunc(v.list, o.list, Value.Equal)
	case ValueMap:
		return maps.EqualFunc(v.m, o.m, Value.Equal)
	}
	return true
}

// Interface converts v back to plain Go values (string, int64, float64, bool,
// []any, map[string]any). Used for JSON encoding.
func (v Value) Interface() any {
	switch v.kind {
	case ValueString:
		return v.s
	case ValueInt:
		return v.i
	case ValueFloat:
		return v.f
	case ValueBool:
		return v.b
	case ValueList:
		out := make([]any, len(v.list))
		for i, e := range v.list {
			out[i] = e.Interface()
		}
		return out
	case ValueMap:
		out := make(map[string]any, len(v.m))
		for k, e := range v.m {
			out[k] = e.Interface()
		}
		return out
	}
	return nil
}

// Text renders v as display text: strings verbatim, numbers in shortest form,
// lists and maps in a compact bracketed form.
func (v Value) Text() string {
	switch v.kind {
	case ValueString:
		return v.s
	case ValueInt:
		return strconv.FormatInt(v.i, 10)
	case ValueFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case ValueBool:
		return strconv.FormatBool(v.b)
	case ValueList:
		parts := make([]string, len(v.list))
		for i, e := range v.list {
			parts[i] = e.Text()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case ValueMap:
		keys := slices.Sorted(maps.Keys(v.m))
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + v.m[k].Text()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return ""
}

// GoString implements fmt.GoStringer for debugging output.
func (v Value) GoString() string {
	if v.kind == ValueString {
		return fmt.Sprintf("ir.String(%q)", v.s)
	}
	return fmt.Sprintf("ir.%s(%s)", v.kind, v.Text())
}
