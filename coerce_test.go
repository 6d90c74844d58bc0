package docmap

import (
	"errors"
	"math"
	"testing"
)

func TestCoerce(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		typ     FieldType
		want    Value
		wantErr bool
	}{
		{"nil passes", nil, IntType, Null(), false},
		{"int from string", "42", IntType, Int(42), false},
		{"int truncates float", 3.9, IntType, Int(3), false},
		{"int from bool", true, IntType, Int(1), false},
		{"int bad string", "abc", IntType, Value{}, true},
		{"int from NaN", math.NaN(), IntType, Value{}, true},
		{"bool from int", 1, BoolType, Bool(true), false},
		{"bool from zero float", 0.0, BoolType, Bool(false), false},
		{"bool from string", "true", BoolType, Bool(true), false},
		{"bool bad string", "yes", BoolType, Value{}, true},
		{"string from int", 7, StringType, String("7"), false},
		{"string from float", 1.5, StringType, String("1.5"), false},
		{"float from bool", true, FloatType, Float(1), false},
		{"float from string", "2.25", FloatType, Float(2.25), false},
		{"list elements cast", []any{1, "2"}, ListOf(IntType), List(Int(1), Int(2)), false},
		{"list element fails", []any{"x"}, ListOf(IntType), Value{}, true},
		{"dict to list takes keys", M{"b": 1, "a": 2}, ListType, List(String("a"), String("b")), false},
		{"pairs to dict", []any{[]any{"k", 1}}, MapType, Map(map[string]Value{"k": Int(1)}), false},
		{"bad pair", []any{[]any{"k"}}, MapType, Value{}, true},
		{"list to primitive", []any{1}, IntType, Value{}, true},
		{"dict to primitive", M{}, StringType, Value{}, true},
		{"primitive to list", 5, ListType, Value{}, true},
		{"any keeps kind", 5, AnyType, Int(5), false},
		{"value unwrapped", String("9"), IntType, Int(9), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.in, tt.typ)
			if tt.wantErr {
				if !errors.Is(err, ErrTypeMismatch) {
					t.Fatalf("err = %v, want ErrTypeMismatch", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Kind() != tt.want.Kind() || !got.Equal(tt.want) {
				t.Errorf("Coerce(%v, %s) = %v (%s), want %v (%s)", tt.in, tt.typ, got, got.Kind(), tt.want, tt.want.Kind())
			}
		})
	}
}

func TestCoerce_Object(t *testing.T) {
	c, _ := newTestClient(t)
	addr := c.MustModel("Address").New()
	tag := c.MustModel("Tag").New()

	v, err := Coerce(addr, ObjectOf("Address"))
	if err != nil {
		t.Fatalf("Coerce: %v", err)
	}
	if v.AsObject() != addr {
		t.Error("expected the same entity back")
	}

	if _, err := Coerce(tag, ObjectOf("Address")); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("err = %v, want ErrTypeMismatch", err)
	}
	if _, err := Coerce("Berlin", ObjectOf("Address")); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("err = %v, want ErrTypeMismatch", err)
	}
}

func TestCoerce_ErrorMessage(t *testing.T) {
	_, err := Coerce("abc", IntType)
	if err == nil || err.Error() != "docmap: type mismatch: 'abc' is not a valid int" {
		t.Errorf("err = %v", err)
	}
}
