package docmap

import (
	"errors"
	"reflect"
	"testing"
)

func TestValueOf(t *testing.T) {
	v, err := ValueOf(M{"n": 1, "tags": []string{"a", "b"}, "nested": map[string]any{"ok": true}})
	if err != nil {
		t.Fatalf("ValueOf: %v", err)
	}
	if v.Kind() != KindMap {
		t.Fatalf("kind = %s, want dict", v.Kind())
	}
	want := Document{"n": int64(1), "tags": []any{"a", "b"}, "nested": Document{"ok": true}}
	if got := v.Interface(); !reflect.DeepEqual(got, want) {
		t.Errorf("Interface() = %#v, want %#v", got, want)
	}

	if _, err := ValueOf(struct{}{}); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("err = %v, want ErrTypeMismatch", err)
	}
}

func TestValue_Accessors(t *testing.T) {
	if i, ok := Int(3).AsInt(); !ok || i != 3 {
		t.Errorf("AsInt = %d, %v", i, ok)
	}
	if f, ok := Int(3).AsFloat(); !ok || f != 3 {
		t.Errorf("AsFloat on int = %v, %v", f, ok)
	}
	if _, ok := String("x").AsInt(); ok {
		t.Error("AsInt on string should report false")
	}
	if !Object(nil).IsNull() {
		t.Error("Object(nil) should be null")
	}
	if got := List().Interface(); !reflect.DeepEqual(got, []any{}) {
		t.Errorf("empty list = %#v", got)
	}
	if Null().String() != "null" {
		t.Errorf("Null().String() = %q", Null().String())
	}
	if KindMap.String() != "dict" || Kind(42).String() != "kind(42)" {
		t.Error("unexpected kind names")
	}
}

func TestPlainValue_ConvertsEntities(t *testing.T) {
	c, _ := newTestClient(t)
	addr := c.MustModel("Address").New()
	mustSet(t, addr, "street", "Main")

	got := plainValue([]any{String("a"), addr})
	want := []any{"a", Document{ClassKey: "Address", "street": "Main", "city": "Berlin"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("plainValue = %#v, want %#v", got, want)
	}
}
