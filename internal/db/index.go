package db

import (
	"errors"
	"strconv"
	"strings"
)

// IndexKind is the key type of an indexed field.
type IndexKind string

const (
	// IndexAscending is an ascending key (1).
	IndexAscending IndexKind = "1"
	// IndexDescending is a descending key (-1).
	IndexDescending IndexKind = "-1"
	// IndexGeo2D is a legacy planar geospatial key.
	IndexGeo2D IndexKind = "2d"
)

// ParseIndexKind maps model-file index markers (1, -1, "2d", true) to a kind.
func ParseIndexKind(v any) (IndexKind, bool) {
	switch t := v.(type) {
	case bool:
		if t {
			return IndexAscending, true
		}
	case int:
		return parseIndexNumber(int64(t))
	case int64:
		return parseIndexNumber(t)
	case float64:
		return parseIndexNumber(int64(t))
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "asc", "ascending":
			return IndexAscending, true
		case "-1", "desc", "descending":
			return IndexDescending, true
		case "2d", "geo":
			return IndexGeo2D, true
		}
	}
	return "", false
}

func parseIndexNumber(n int64) (IndexKind, bool) {
	switch {
	case n < 0:
		return IndexDescending, true
	case n > 0:
		return IndexAscending, true
	}
	return "", false
}

// IndexField is a single key of an index.
type IndexField struct {
	Name string
	Kind IndexKind
}

// IndexDefinition describes an index on one collection.
type IndexDefinition struct {
	Collection string
	Name       string
	Fields     []IndexField
	Unique     bool
}

// Validate checks that the index definition is well-formed.
func (idx *IndexDefinition) Validate() error {
	if idx.Collection == "" {
		return errors.New("index collection is required")
	}
	if len(idx.Fields) == 0 {
		return errors.New("at least one field is required")
	}

	seen := make(map[string]bool)
	for i := range idx.Fields {
		f := &idx.Fields[i]
		if f.Name == "" {
			return errors.New("field name is required at index " + strconv.Itoa(i))
		}
		if seen[f.Name] {
			return errors.New("duplicate field name: " + f.Name)
		}
		seen[f.Name] = true
		switch f.Kind {
		case IndexAscending, IndexDescending, IndexGeo2D:
		default:
			return errors.New("unknown index kind " + strconv.Quote(string(f.Kind)) + " on " + f.Name)
		}
	}
	return nil
}

// DefaultName derives the conventional name "<field>_<kind>[_...]".
func (idx *IndexDefinition) DefaultName() string {
	parts := make([]string, 0, len(idx.Fields)*2)
	for _, f := range idx.Fields {
		parts = append(parts, f.Name, string(f.Kind))
	}
	return strings.Join(parts, "_")
}
