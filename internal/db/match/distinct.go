package match

import "github.com/kailas-cloud/docmap/internal/db"

// Distinct collects unique values of field over docs in first-seen order.
// Array values contribute their elements.
func Distinct(docs []db.Document, field string) []any {
	var out []any
	add := func(v any) {
		for _, seen := range out {
			if Compare(seen, v) == 0 {
				return
			}
		}
		out = append(out, v)
	}
	for _, d := range docs {
		v, ok := Lookup(d, field)
		if !ok {
			continue
		}
		if list, isList := toList(v); isList {
			for _, item := range list {
				add(item)
			}
			continue
		}
		add(v)
	}
	return out
}

// Shape sorts, limits and projects docs in place, the way a find cursor does.
func Shape(docs []db.Document, sortField string, dir db.Direction, limit int, projection []string) []db.Document {
	if sortField != "" {
		SortDocuments(docs, sortField, dir)
	}
	if limit > 0 && limit < len(docs) {
		docs = docs[:limit]
	}
	for i := range docs {
		docs[i] = Project(docs[i], projection)
	}
	return docs
}
