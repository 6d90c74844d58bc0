package match

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/docmap/internal/db"
)

// Apply mutates doc with the $set, $unset and $inc operators of ops.
func Apply(doc, ops db.Document) error {
	for op, arg := range ops {
		fields, ok := toDocument(arg)
		if !ok {
			return fmt.Errorf("match: %s expects a document, got %T", op, arg)
		}
		switch op {
		case "$set":
			for path, v := range fields {
				if path == db.IDAlias {
					continue
				}
				setPath(doc, path, Clone(v))
			}
		case "$unset":
			for path := range fields {
				unsetPath(doc, path)
			}
		case "$inc":
			for path, delta := range fields {
				if err := incPath(doc, path, delta); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("%w: %s", ErrUnsupportedOperator, op)
		}
	}
	return nil
}

func parent(doc db.Document, path string, create bool) (db.Document, string) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, p := range parts[:len(parts)-1] {
		next, ok := toDocument(cur[p])
		if !ok {
			if !create {
				return nil, ""
			}
			next = db.Document{}
			cur[p] = next
		}
		cur = next
	}
	return cur, parts[len(parts)-1]
}

func setPath(doc db.Document, path string, v any) {
	p, leaf := parent(doc, path, true)
	p[leaf] = v
}

func unsetPath(doc db.Document, path string) {
	if p, leaf := parent(doc, path, false); p != nil {
		delete(p, leaf)
	}
}

func incPath(doc db.Document, path string, delta any) error {
	d, ok := toFloat(delta)
	if !ok {
		return fmt.Errorf("match: $inc on %s expects a number, got %T", path, delta)
	}
	p, leaf := parent(doc, path, true)
	cur, exists := p[leaf]
	if !exists || cur == nil {
		p[leaf] = delta
		return nil
	}
	switch n := cur.(type) {
	case int:
		if di, isInt := delta.(int); isInt {
			p[leaf] = n + di
			return nil
		}
	case int64:
		if di, isInt := delta.(int64); isInt {
			p[leaf] = n + di
			return nil
		}
		if di, isInt := delta.(int); isInt {
			p[leaf] = n + int64(di)
			return nil
		}
	}
	c, ok := toFloat(cur)
	if !ok {
		return fmt.Errorf("match: cannot $inc non-numeric field %s (%T)", path, cur)
	}
	if isIntegral(cur) && isIntegral(delta) {
		p[leaf] = int64(c + d)
		return nil
	}
	p[leaf] = c + d
	return nil
}

func isIntegral(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

// Project keeps only fields (plus the identity); nil fields keeps everything.
func Project(doc db.Document, fields []string) db.Document {
	if len(fields) == 0 {
		return doc
	}
	out := db.Document{}
	if id, ok := doc[db.IDAlias]; ok {
		out[db.IDAlias] = id
	}
	for _, f := range fields {
		if v, ok := Lookup(doc, f); ok {
			setPath(out, f, v)
		}
	}
	return out
}

// Clone deep-copies documents and lists so stored state never aliases caller state.
func Clone(v any) any {
	switch t := v.(type) {
	case db.Document:
		return CloneDocument(t)
	case map[string]any:
		return CloneDocument(db.Document(t))
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Clone(item)
		}
		return out
	}
	if list, ok := toList(v); ok {
		return Clone(list)
	}
	return v
}

// CloneDocument deep-copies a document.
func CloneDocument(d db.Document) db.Document {
	if d == nil {
		return nil
	}
	out := make(db.Document, len(d))
	for k, v := range d {
		out[k] = Clone(v)
	}
	return out
}
