package db

import "strings"

// IndexBuilder is a fluent builder for index definitions.
type IndexBuilder struct {
	def IndexDefinition
}

// NewIndex starts building an index on the given collection.
func NewIndex(collection string) *IndexBuilder {
	return &IndexBuilder{def: IndexDefinition{Collection: collection}}
}

// Named overrides the derived index name.
func (b *IndexBuilder) Named(name string) *IndexBuilder {
	b.def.Name = name
	return b
}

// Ascending adds an ascending key.
func (b *IndexBuilder) Ascending(name string) *IndexBuilder {
	return b.Key(name, IndexAscending)
}

// Descending adds a descending key.
func (b *IndexBuilder) Descending(name string) *IndexBuilder {
	return b.Key(name, IndexDescending)
}

// Geo2D adds a planar geospatial key.
func (b *IndexBuilder) Geo2D(name string) *IndexBuilder {
	return b.Key(name, IndexGeo2D)
}

// Key adds a key of the given kind.
func (b *IndexBuilder) Key(name string, kind IndexKind) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, IndexField{Name: name, Kind: kind})
	return b
}

// Unique marks the index as unique.
func (b *IndexBuilder) Unique() *IndexBuilder {
	b.def.Unique = true
	return b
}

// Build validates and returns the index definition.
func (b *IndexBuilder) Build() (*IndexDefinition, error) {
	if err := b.def.Validate(); err != nil {
		return nil, err
	}
	def := b.def
	def.Fields = append([]IndexField(nil), b.def.Fields...)
	if def.Name == "" {
		def.Name = def.DefaultName()
	}
	return &def, nil
}

// MustBuild calls Build and panics on error.
func (b *IndexBuilder) MustBuild() *IndexDefinition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}

// String returns a debug representation resembling createIndex.
func (idx *IndexDefinition) String() string {
	keys := make([]string, len(idx.Fields))
	for i, f := range idx.Fields {
		kind := string(f.Kind)
		if f.Kind == IndexGeo2D {
			kind = `"2d"`
		}
		keys[i] = f.Name + ": " + kind
	}
	s := idx.Collection + ".createIndex({" + strings.Join(keys, ", ") + "}"
	if idx.Unique {
		s += ", {unique: true}"
	}
	return s + ")"
}
