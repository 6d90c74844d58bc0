package docmap

import (
	"fmt"
	"math"
	"strconv"
)

// Coerce converts x to a Value of type t. Null passes through. A value of
// the right kind is kept; a list of the wrong element type is converted
// element by element. Primitives cast to primitives and collections to
// collections; anything else is ErrTypeMismatch.
func Coerce(x any, t FieldType) (Value, error) {
	if x == nil {
		return Null(), nil
	}
	if v, ok := x.(Value); ok {
		if v.IsNull() {
			return v, nil
		}
		x = v.rawForCoerce()
	}

	switch t.Kind {
	case FieldAny:
		return ValueOf(x)
	case FieldBool, FieldInt, FieldFloat, FieldString:
		return coercePrimitive(x, t)
	case FieldList:
		return coerceList(x, t)
	case FieldMap:
		return coerceMap(x, t)
	case FieldObject:
		return coerceObject(x, t)
	}
	return Value{}, fmt.Errorf("%w: unknown field type %v", ErrTypeMismatch, t)
}

// rawForCoerce unwraps v one level so Coerce can re-tag it.
func (v Value) rawForCoerce() any {
	switch v.kind {
	case KindObject:
		return v.obj
	case KindList:
		return v.list
	case KindMap:
		return v.m
	}
	return v.Interface()
}

func mismatch(x any, t FieldType) error {
	return fmt.Errorf("%w: expected value of type %s but got %T", ErrTypeMismatch, t, x)
}

func invalidCast(x any, t FieldType) error {
	return fmt.Errorf("%w: '%v' is not a valid %s", ErrTypeMismatch, x, t)
}

func isPrimitive(x any) bool {
	switch x.(type) {
	case bool, string, float32, float64:
		return true
	}
	_, ok := toInt64(x)
	return ok
}

func coercePrimitive(x any, t FieldType) (Value, error) {
	if !isPrimitive(x) {
		return Value{}, mismatch(x, t)
	}
	switch t.Kind {
	case FieldBool:
		return castBool(x, t)
	case FieldInt:
		return castInt(x, t)
	case FieldFloat:
		return castFloat(x, t)
	default:
		return castString(x), nil
	}
}

func castBool(x any, t FieldType) (Value, error) {
	switch v := x.(type) {
	case bool:
		return Bool(v), nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Value{}, invalidCast(x, t)
		}
		return Bool(b), nil
	case float32:
		return Bool(v != 0), nil
	case float64:
		return Bool(v != 0), nil
	}
	i, _ := toInt64(x)
	return Bool(i != 0), nil
}

func castInt(x any, t FieldType) (Value, error) {
	switch v := x.(type) {
	case bool:
		if v {
			return Int(1), nil
		}
		return Int(0), nil
	case string:
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Value{}, invalidCast(x, t)
		}
		return Int(i), nil
	case float32:
		return truncate(float64(v), x, t)
	case float64:
		return truncate(v, x, t)
	case uint64:
		if v > math.MaxInt64 {
			return Value{}, invalidCast(x, t)
		}
	case uint:
		if uint64(v) > math.MaxInt64 {
			return Value{}, invalidCast(x, t)
		}
	}
	i, _ := toInt64(x)
	return Int(i), nil
}

func truncate(f float64, x any, t FieldType) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return Value{}, invalidCast(x, t)
	}
	return Int(int64(f)), nil
}

func castFloat(x any, t FieldType) (Value, error) {
	switch v := x.(type) {
	case bool:
		if v {
			return Float(1), nil
		}
		return Float(0), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Value{}, invalidCast(x, t)
		}
		return Float(f), nil
	case float32:
		return Float(float64(v)), nil
	case float64:
		return Float(v), nil
	}
	i, _ := toInt64(x)
	return Float(float64(i)), nil
}

func castString(x any) Value {
	switch v := x.(type) {
	case string:
		return String(v)
	case bool:
		return String(strconv.FormatBool(v))
	case float32:
		return String(strconv.FormatFloat(float64(v), 'g', -1, 32))
	case float64:
		return String(strconv.FormatFloat(v, 'g', -1, 64))
	}
	i, _ := toInt64(x)
	return String(strconv.FormatInt(i, 10))
}

func coerceList(x any, t FieldType) (Value, error) {
	var items []any
	switch v := x.(type) {
	case []Value:
		items = make([]any, len(v))
		for i, item := range v {
			items[i] = item
		}
	case map[string]Value:
		items = keysAsItems(sortedKeys(v))
	case Document:
		items = keysAsItems(sortedKeys(v))
	case map[string]any:
		items = keysAsItems(sortedKeys(v))
	default:
		var ok bool
		if items, ok = sliceOf(x); !ok {
			return Value{}, mismatch(x, t)
		}
	}

	elem := FieldType{Kind: FieldAny}
	if t.Elem != nil {
		elem = *t.Elem
	}
	out := make([]Value, len(items))
	for i, item := range items {
		v, err := Coerce(item, elem)
		if err != nil {
			return Value{}, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = v
	}
	return List(out...), nil
}

func keysAsItems(keys []string) []any {
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out
}

// coerceMap accepts documents as-is and lists of [key, value] pairs.
func coerceMap(x any, t FieldType) (Value, error) {
	switch v := x.(type) {
	case map[string]Value:
		return Map(v), nil
	case Document, map[string]any:
		return ValueOf(v)
	}
	items, ok := sliceOf(x)
	if !ok {
		return Value{}, mismatch(x, t)
	}
	out := make(map[string]Value, len(items))
	for _, item := range items {
		if v, isValue := item.(Value); isValue {
			item = v.Interface()
		}
		pair, isPair := sliceOf(item)
		if !isPair || len(pair) != 2 {
			return Value{}, invalidCast(x, t)
		}
		key, isStr := pair[0].(string)
		if !isStr {
			return Value{}, invalidCast(x, t)
		}
		v, err := ValueOf(pair[1])
		if err != nil {
			return Value{}, err
		}
		out[key] = v
	}
	return Map(out), nil
}

func coerceObject(x any, t FieldType) (Value, error) {
	e, ok := x.(*Entity)
	if !ok {
		return Value{}, mismatch(x, t)
	}
	if e == nil {
		return Null(), nil
	}
	if e.schema.Name != t.Class {
		return Value{}, fmt.Errorf("%w: expected instance of %s, but got %s", ErrTypeMismatch, t.Class, e.schema.Name)
	}
	return Object(e), nil
}
