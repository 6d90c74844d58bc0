package docmap

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"

	"github.com/kailas-cloud/docmap/internal/db"
)

// Document is the serialization boundary between entities and the store.
type Document = db.Document

// M is shorthand for filters and update values.
type M = db.Document

// Kind tags the variant held by a Value.
type Kind uint8

// Value kinds.
const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindObject
	KindList
	KindMap
)

var kindNames = [...]string{"null", "bool", "int", "float", "str", "object", "list", "dict"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a field value: a primitive, a nested entity, or a list or map of values.
// The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	obj  *Entity
	list []Value
	m    map[string]Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool wraps b.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int wraps i.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float wraps f.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String wraps s.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Object wraps a nested entity. A nil entity is null.
func Object(e *Entity) Value {
	if e == nil {
		return Value{}
	}
	return Value{kind: KindObject, obj: e}
}

// List wraps items.
func List(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindList, list: items}
}

// Map wraps m.
func Map(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{kind: KindMap, m: m}
}

// Kind reports the variant.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the bool and whether v holds one.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt returns the integer and whether v holds one.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsFloat returns v as float64; integers convert.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

// AsString returns the string and whether v holds one.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsObject returns the nested entity, or nil.
func (v Value) AsObject() *Entity { return v.obj }

// AsList returns the list items, or nil.
func (v Value) AsList() []Value { return v.list }

// AsMap returns the map entries, or nil.
func (v Value) AsMap() map[string]Value { return v.m }

// Interface converts v to plain Go values as stored in a Document.
// Nested entities serialize through ToDocument.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindObject:
		return v.obj.ToDocument()
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case KindMap:
		out := make(Document, len(v.m))
		for k, item := range v.m {
			out[k] = item.Interface()
		}
		return out
	}
	return nil
}

// Equal compares serialized forms.
func (v Value) Equal(o Value) bool {
	return reflect.DeepEqual(v.Interface(), o.Interface())
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindString:
		return v.s
	case KindObject:
		return v.obj.String()
	}
	return fmt.Sprint(v.Interface())
}

// ValueOf wraps a plain Go value. Documents become maps, slices become lists.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case *Entity:
		return Object(t), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case Document:
		return mapOf(t)
	case map[string]any:
		return mapOf(Document(t))
	case map[string]Value:
		return Map(t), nil
	case []Value:
		return List(t...), nil
	}
	if i, ok := toInt64(x); ok {
		return Int(i), nil
	}
	if items, ok := sliceOf(x); ok {
		out := make([]Value, len(items))
		for i, item := range items {
			v, err := ValueOf(item)
			if err != nil {
				return Value{}, err
			}
			out[i] = v
		}
		return List(out...), nil
	}
	return Value{}, fmt.Errorf("%w: unsupported value %T", ErrTypeMismatch, x)
}

func mapOf(d Document) (Value, error) {
	out := make(map[string]Value, len(d))
	for k, item := range d {
		v, err := ValueOf(item)
		if err != nil {
			return Value{}, fmt.Errorf("key %s: %w", k, err)
		}
		out[k] = v
	}
	return Map(out), nil
}

func toInt64(x any) (int64, bool) {
	switch t := x.(type) {
	case int:
		return int64(t), true
	case int8:
		return int64(t), true
	case int16:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint:
		return int64(t), true
	case uint8:
		return int64(t), true
	case uint16:
		return int64(t), true
	case uint32:
		return int64(t), true
	case uint64:
		return int64(t), true
	}
	return 0, false
}

// sliceOf normalizes any slice or array except []byte into []any.
func sliceOf(x any) ([]any, bool) {
	switch t := x.(type) {
	case nil, []byte:
		return nil, false
	case []any:
		return t, true
	}
	rv := reflect.ValueOf(x)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// plainValue converts Values and entities inside x to stored form and
// deep-copies documents and lists.
func plainValue(x any) any {
	switch t := x.(type) {
	case nil:
		return nil
	case Value:
		return t.Interface()
	case *Entity:
		if t == nil {
			return nil
		}
		return t.ToDocument()
	case Document:
		return plainDocument(t)
	case map[string]any:
		return plainDocument(Document(t))
	case string, []byte:
		return t
	}
	if list, ok := sliceOf(x); ok {
		out := make([]any, len(list))
		for i, item := range list {
			out[i] = plainValue(item)
		}
		return out
	}
	return x
}

func plainDocument(d Document) Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = plainValue(v)
	}
	return out
}
