// Package match evaluates store operator documents in process. Backends
// without a native query language (memory, redis JSON) share it.
package match

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/kailas-cloud/docmap/internal/db"
)

// ErrUnsupportedOperator is returned for operators the evaluator does not know.
var ErrUnsupportedOperator = errors.New("match: unsupported operator")

// Matches reports whether doc satisfies filter. A nil or empty filter matches everything.
func Matches(doc, filter db.Document) (bool, error) {
	for key, cond := range filter {
		ok, err := matchKey(doc, key, cond)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchKey(doc db.Document, key string, cond any) (bool, error) {
	switch key {
	case "$and":
		subs, err := subFilters(key, cond)
		if err != nil {
			return false, err
		}
		for _, sub := range subs {
			ok, err := Matches(doc, sub)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case "$or", "$nor":
		subs, err := subFilters(key, cond)
		if err != nil {
			return false, err
		}
		hit := false
		for _, sub := range subs {
			ok, err := Matches(doc, sub)
			if err != nil {
				return false, err
			}
			if ok {
				hit = true
				break
			}
		}
		if key == "$nor" {
			return !hit, nil
		}
		return hit, nil
	}
	if strings.HasPrefix(key, "$") {
		return false, fmt.Errorf("%w: %s", ErrUnsupportedOperator, key)
	}

	val, present := Lookup(doc, key)
	if ops, ok := operatorDoc(cond); ok {
		return matchOperators(val, present, ops)
	}
	return equals(val, present, cond), nil
}

func subFilters(op string, cond any) ([]db.Document, error) {
	list, ok := toList(cond)
	if !ok {
		return nil, fmt.Errorf("match: %s expects an array, got %T", op, cond)
	}
	out := make([]db.Document, 0, len(list))
	for _, item := range list {
		d, ok := toDocument(item)
		if !ok {
			return nil, fmt.Errorf("match: %s entries must be documents, got %T", op, item)
		}
		out = append(out, d)
	}
	return out, nil
}

// operatorDoc returns cond as an operator document when all its keys start with "$".
func operatorDoc(cond any) (db.Document, bool) {
	d, ok := toDocument(cond)
	if !ok || len(d) == 0 {
		return nil, false
	}
	for k := range d {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return d, true
}

func matchOperators(val any, present bool, ops db.Document) (bool, error) {
	for op, arg := range ops {
		var ok bool
		switch op {
		case "$eq":
			ok = equals(val, present, arg)
		case "$ne":
			ok = !equals(val, present, arg)
		case "$gt", "$gte", "$lt", "$lte":
			ok = present && compareAny(val, arg, op)
		case "$in", "$nin":
			list, isList := toList(arg)
			if !isList {
				return false, fmt.Errorf("match: %s expects an array, got %T", op, arg)
			}
			in := false
			for _, candidate := range list {
				if equals(val, present, candidate) {
					in = true
					break
				}
			}
			ok = in == (op == "$in")
		case "$exists":
			want, _ := arg.(bool)
			ok = present == want
		case "$regex":
			re, err := compileRegex(arg, ops["$options"])
			if err != nil {
				return false, err
			}
			ok = present && matchRegex(re, val)
		case "$options":
			ok = true
		case "$not":
			sub, isDoc := operatorDoc(arg)
			if !isDoc {
				return false, fmt.Errorf("match: $not expects an operator document, got %T", arg)
			}
			inner, err := matchOperators(val, present, sub)
			if err != nil {
				return false, err
			}
			ok = !inner
		default:
			return false, fmt.Errorf("%w: %s", ErrUnsupportedOperator, op)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// equals follows store semantics: an array field matches when any element equals.
func equals(val any, present bool, want any) bool {
	if !present {
		return want == nil
	}
	if Compare(val, want) == 0 && sameClass(val, want) {
		return true
	}
	if list, ok := toList(val); ok {
		if _, wantList := toList(want); !wantList {
			for _, item := range list {
				if Compare(item, want) == 0 && sameClass(item, want) {
					return true
				}
			}
		}
	}
	return false
}

func compareAny(val, arg any, op string) bool {
	if list, ok := toList(val); ok {
		for _, item := range list {
			if compareAny(item, arg, op) {
				return true
			}
		}
		return false
	}
	if !sameClass(val, arg) {
		return false
	}
	c := Compare(val, arg)
	switch op {
	case "$gt":
		return c > 0
	case "$gte":
		return c >= 0
	case "$lt":
		return c < 0
	default:
		return c <= 0
	}
}

func compileRegex(pattern, options any) (*regexp.Regexp, error) {
	var p string
	switch t := pattern.(type) {
	case string:
		p = t
	case *regexp.Regexp:
		return t, nil
	default:
		return nil, fmt.Errorf("match: $regex expects a string, got %T", pattern)
	}
	if opts, ok := options.(string); ok && opts != "" {
		flags := strings.Map(func(r rune) rune {
			if strings.ContainsRune("imsU", r) {
				return r
			}
			return -1
		}, opts)
		if flags != "" {
			p = "(?" + flags + ")" + p
		}
	}
	re, err := regexp.Compile(p)
	if err != nil {
		return nil, fmt.Errorf("match: invalid $regex %q: %w", p, err)
	}
	return re, nil
}

func matchRegex(re *regexp.Regexp, val any) bool {
	if list, ok := toList(val); ok {
		for _, item := range list {
			if matchRegex(re, item) {
				return true
			}
		}
		return false
	}
	s, ok := val.(string)
	return ok && re.MatchString(s)
}

// Lookup resolves a dotted path ("address.city") in doc.
func Lookup(doc db.Document, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		d, ok := toDocument(cur)
		if !ok {
			return nil, false
		}
		cur, ok = d[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func toDocument(v any) (db.Document, bool) {
	switch t := v.(type) {
	case db.Document:
		return t, true
	case map[string]any:
		return db.Document(t), true
	}
	return nil, false
}

// toList normalizes any slice or array (except []byte) into []any.
func toList(v any) ([]any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case []any:
		return t, true
	case []byte:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
