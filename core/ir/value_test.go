package ir

import (
	"encoding/json"
	"testing"
)

func TestValueAccessors(t *testing.T) {
	if s, ok := String("hi").AsString(); !ok || s != "hi" {
		t.Errorf("AsString() = %q, %v", s, ok)
	}
	if _, ok := String("1").AsInt(); ok {
		t.Error("AsInt() on string should report false")
	}
	if i, ok := Int(-7).AsInt(); !ok || i != -7 {
		t.Errorf("AsInt() = %d, %v", i, ok)
	}
	if _, ok := Int(1).AsFloat(); ok {
		t.Error("AsFloat() on int should report false")
	}
	if f, ok := Float(2.5).AsFloat(); !ok || f != 2.5 {
		t.Errorf("AsFloat() = %v, %v", f, ok)
	}
	if b, ok := Bool(true).AsBool(); !ok || !b {
		t.Errorf("AsBool() = %v, %v", b, ok)
	}
	if (Value{}).IsValid() {
		t.Error("zero Value should be invalid")
	}
}

func TestListCopiesInput(t *testing.T) {
	items := []Value{Int(1), Int(2)}
	v := List(items...)
	items[0] = Int(99)

	got, _ := v.AsList()
	if i, _ := got[0].AsInt(); i != 1 {
		t.Errorf("list element changed through caller slice: %d", i)
	}

	got[1] = Int(42)
	again, _ := v.AsList()
	if i, _ := again[1].AsInt(); i != 2 {
		t.Errorf("list element changed through accessor copy: %d", i)
	}
}

func TestMapCopiesInput(t *testing.T) {
	m := map[string]Value{"a": String("x")}
	v := Map(m)
	m["a"] = String("y")
	m["b"] = Bool(true)

	got, ok := v.AsMap()
	if !ok || len(got) != 1 {
		t.Fatalf("AsMap() = %v, %v", got, ok)
	}
	if s, _ := got["a"].AsString(); s != "x" {
		t.Errorf("map entry = %q, want x", s)
	}
}

func TestValueEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"same string", String("a"), String("a"), true},
		{"int vs float", Int(1), Float(1), false},
		{"nested list", List(Int(1), List(String("x"))), List(Int(1), List(String("x"))), true},
		{"list order", List(Int(1), Int(2)), List(Int(2), Int(1)), false},
		{"map", Map(map[string]Value{"k": Bool(true)}), Map(map[string]Value{"k": Bool(true)}), true},
		{"map value", Map(map[string]Value{"k": Bool(true)}), Map(map[string]Value{"k": Bool(false)}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValueOf(t *testing.T) {
	v, ok := ValueOf(map[string]any{"n": 3, "tags": []any{"a", true}})
	if !ok {
		t.Fatal("ValueOf() reported unsupported type")
	}
	want := Map(map[string]Value{
		"n":    Int(3),
		"tags": List(String("a"), Bool(true)),
	})
	if !v.Equal(want) {
		t.Errorf("ValueOf() = %#v, want %#v", v, want)
	}

	if _, ok := ValueOf(struct{}{}); ok {
		t.Error("ValueOf(struct{}) should report false")
	}
}

func TestValueText(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{String("x"), "x"},
		{Int(42), "42"},
		{Float(0.5), "0.5"},
		{Bool(false), "false"},
		{List(Int(1), String("a")), "[1, a]"},
		{Map(map[string]Value{"b": Int(2), "a": Int(1)}), "{a: 1, b: 2}"},
	}

	for _, tt := range tests {
		if got := tt.v.Text(); got != tt.want {
			t.Errorf("Text() = %q, want %q", got, tt.want)
		}
	}
}

func TestPropertiesJSON(t *testing.T) {
	var p Properties
	p.Set("level", Int(2))
	p.Set("tags", List(String("a")))

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("json.Marshal failed: %v", err)
	}
	if string(data) != `{"level":2,"tags":["a"]}` {
		t.Errorf("json = %s", data)
	}
}
