package ir

import (
	"encoding/json"
	"maps"
	"slices"
)

// Properties is an unordered bag of named values attached to a node,
// resource, or document. Keys are unique and the last write wins. The zero
// value is an empty bag ready for use.
//
// The typed getters are soft: they report false both when the key is absent
// and when the stored variant differs from the one requested.
type Properties struct {
	m map[string]Value
}

// NewProperties returns an empty bag.
func NewProperties() Properties {
	return Properties{}
}

// Set stores v under key, replacing any previous value.
func (p *Properties) Set(key string, v Value) {
	if p.m == nil {
		p.m = make(map[string]Value)
	}
	p.m[key] = v
}

// Get returns the value stored under key.
func (p Properties) Get(key string) (Value, bool) {
	v, ok := p.m[key]
	return v, ok
}

// Has reports whether key is present.
func (p Properties) Has(key string) bool {
	_, ok := p.m[key]
	return ok
}

// Delete removes key from the bag.
func (p *Properties) Delete(key string) {
	delete(p.m, key)
}

// Len returns the number of entries.
func (p Properties) Len() int {
	return len(p.m)
}

// Keys returns the keys in sorted order.
func (p Properties) Keys() []string {
	return slices.Sorted(maps.Keys(p.m))
}

// GetString returns the text stored under key.
func (p Properties) GetString(key string) (string, bool) {
	return p.m[key].AsString()
}

// GetInt returns the integer stored under key.
func (p Properties) GetInt(key string) (int64, bool) {
	return p.m[key].AsInt()
}

// GetFloat returns the float stored under key.
func (p Properties) GetFloat(key string) (float64, bool) {
	return p.m[key].AsFloat()
}

// GetBool returns the boolean stored under key.
func (p Properties) GetBool(key string) (bool, bool) {
	return p.m[key].AsBool()
}

// GetList returns a copy of the list stored under key.
func (p Properties) GetList(key string) ([]Value, bool) {
	return p.m[key].AsList()
}

// GetMap returns a copy of the map stored under key.
func (p Properties) GetMap(key string) (map[string]Value, bool) {
	return p.m[key].AsMap()
}

// StringOr returns the text under key or def.
func (p Properties) StringOr(key, def string) string {
	if s, ok := p.GetString(key); ok {
		return s
	}
	return def
}

// IntOr returns the integer under key or def.
func (p Properties) IntOr(key string, def int64) int64 {
	if i, ok := p.GetInt(key); ok {
		return i
	}
	return def
}

// BoolOr returns the boolean under key or def.
func (p Properties) BoolOr(key string, def bool) bool {
	if b, ok := p.GetBool(key); ok {
		return b
	}
	return def
}

// Clone returns an independent copy of the bag.
func (p Properties) Clone() Properties {
	return Properties{m: maps.Clone(p.m)}
}

// Merge copies every entry of other into p, overwriting existing keys.
func (p *Properties) Merge(other Properties) {
	for k, v := range other.m {
		p.Set(k, v)
	}
}

// All iterates the entries in key order.
func (p Properties) All() func(yield func(string, Value) bool) {
	return func(yield func(string, Value) bool) {
		for _, k := range p.Keys() {
			if !yield(k, p.m[k]) {
				return
			}
		}
	}
}

// Equal reports whether both bags hold the same keys with equal values.
func (p Properties) Equal(o Properties) bool {
	return maps.EqualFunc(p.m, o.m, Value.Equal)
}

// MarshalJSON encodes the bag as a plain JSON object.
func (p Properties) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.m))
	for k, v := range p.m {
		out[k] = v.Interface()
	}
	return json.Marshal(out)
}
