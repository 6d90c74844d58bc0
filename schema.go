package docmap

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/docmap/internal/db"
)

// Reserved field names maintained by the mapper.
const (
	FieldID      = "id"
	FieldCreated = "created"
	FieldUpdated = "updated"
	FieldDeleted = "deleted"

	// ClassKey names the concrete schema inside a serialized document.
	ClassKey = "_class"
)

// IndexKind is the key type of an indexed field.
type IndexKind = db.IndexKind

// Index kinds.
const (
	IndexAscending  = db.IndexAscending
	IndexDescending = db.IndexDescending
	IndexGeo2D      = db.IndexGeo2D
)

// FieldKind is the declared kind of a field.
type FieldKind uint8

// Field kinds.
const (
	FieldAny FieldKind = iota
	FieldBool
	FieldInt
	FieldFloat
	FieldString
	FieldList
	FieldMap
	FieldObject
)

// FieldType is a declared field type. Elem applies to lists, Class to objects.
type FieldType struct {
	Kind  FieldKind
	Elem  *FieldType
	Class string
}

// Common field types.
var (
	AnyType    = FieldType{Kind: FieldAny}
	BoolType   = FieldType{Kind: FieldBool}
	IntType    = FieldType{Kind: FieldInt}
	FloatType  = FieldType{Kind: FieldFloat}
	StringType = FieldType{Kind: FieldString}
	ListType   = FieldType{Kind: FieldList}
	MapType    = FieldType{Kind: FieldMap}
)

// ListOf declares a list whose elements have type elem.
func ListOf(elem FieldType) FieldType {
	return FieldType{Kind: FieldList, Elem: &elem}
}

// ObjectOf declares a nested entity of the named schema.
func ObjectOf(class string) FieldType {
	return FieldType{Kind: FieldObject, Class: class}
}

func (t FieldType) String() string {
	switch t.Kind {
	case FieldAny:
		return "any"
	case FieldBool:
		return "bool"
	case FieldInt:
		return "int"
	case FieldFloat:
		return "float"
	case FieldString:
		return "str"
	case FieldList:
		if t.Elem != nil {
			return "list[" + t.Elem.String() + "]"
		}
		return "list"
	case FieldMap:
		return "dict"
	case FieldObject:
		return t.Class
	}
	return fmt.Sprintf("FieldKind(%d)", t.Kind)
}

// ParseFieldType parses the model file notation: bool, int, long, float,
// str, list, list[T], dict, or a schema name.
func ParseFieldType(s string) (FieldType, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "bool":
		return BoolType, nil
	case "int", "long":
		return IntType, nil
	case "float":
		return FloatType, nil
	case "str":
		return StringType, nil
	case "list":
		return ListType, nil
	case "dict":
		return MapType, nil
	case "":
		return FieldType{}, fmt.Errorf("%w: empty field type", ErrInvalidUsage)
	}
	if inner, ok := strings.CutPrefix(s, "list["); ok {
		inner, ok = strings.CutSuffix(inner, "]")
		if !ok {
			return FieldType{}, fmt.Errorf("%w: malformed field type %q", ErrInvalidUsage, s)
		}
		elem, err := ParseFieldType(inner)
		if err != nil {
			return FieldType{}, err
		}
		return ListOf(elem), nil
	}
	if !isIdentifier(s) {
		return FieldType{}, fmt.Errorf("%w: malformed field type %q", ErrInvalidUsage, s)
	}
	return ObjectOf(s), nil
}

func isIdentifier(s string) bool {
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return s != ""
}

// FieldSpec declares one field.
type FieldSpec struct {
	Name     string
	Type     FieldType
	Default  any
	Required bool
	// Index is empty when the field is not indexed.
	Index IndexKind
}

// RelationSpec declares a reference from Local to Foreign on Class.
// Foreign defaults to the identity field.
type RelationSpec struct {
	Name    string
	Class   string
	Local   string
	Foreign string
	Many    bool
}

// Schema describes a mapped type. The collection name is the schema name.
type Schema struct {
	Name          string
	Fields        []FieldSpec
	Relations     []RelationSpec
	Timestamped   bool
	SoftDeletable bool
	Embedded      bool

	fieldIdx    map[string]int
	relationIdx map[string]int
}

// SchemaOption configures a Schema.
type SchemaOption func(*Schema)

// FieldOption configures a FieldSpec.
type FieldOption func(*FieldSpec)

// Required marks a field that must be non-null on save.
func Required() FieldOption {
	return func(f *FieldSpec) { f.Required = true }
}

// Default sets the value assigned at construction.
func Default(v any) FieldOption {
	return func(f *FieldSpec) { f.Default = v }
}

// Indexed declares an index of the given kind on the field.
func Indexed(kind IndexKind) FieldOption {
	return func(f *FieldSpec) { f.Index = kind }
}

// Field adds a field.
func Field(name string, t FieldType, opts ...FieldOption) SchemaOption {
	return func(s *Schema) {
		f := FieldSpec{Name: name, Type: t}
		for _, o := range opts {
			o(&f)
		}
		s.Fields = append(s.Fields, f)
	}
}

// Relation adds a single-valued reference stored in local.
func Relation(name, class, local, foreign string) SchemaOption {
	return func(s *Schema) {
		s.Relations = append(s.Relations, RelationSpec{Name: name, Class: class, Local: local, Foreign: foreign})
	}
}

// RelationMany adds an array reference stored in local.
func RelationMany(name, class, local, foreign string) SchemaOption {
	return func(s *Schema) {
		s.Relations = append(s.Relations, RelationSpec{Name: name, Class: class, Local: local, Foreign: foreign, Many: true})
	}
}

// Timestamped adds created/updated epoch-second fields set at construction.
func Timestamped() SchemaOption {
	return func(s *Schema) { s.Timestamped = true }
}

// SoftDeletable makes Delete set a deleted timestamp instead of removing.
func SoftDeletable() SchemaOption {
	return func(s *Schema) { s.SoftDeletable = true }
}

// Embedded declares a value type without identity or persistence.
func Embedded() SchemaOption {
	return func(s *Schema) { s.Embedded = true }
}

// NewSchema builds a schema and adds the reserved fields its flags imply.
func NewSchema(name string, opts ...SchemaOption) *Schema {
	s := &Schema{Name: name}
	for _, o := range opts {
		o(s)
	}
	s.finalize()
	return s
}

func (s *Schema) finalize() {
	var reserved []FieldSpec
	if !s.Embedded {
		reserved = append(reserved, FieldSpec{Name: FieldID, Type: AnyType})
	}
	if s.Timestamped {
		reserved = append(reserved,
			FieldSpec{Name: FieldCreated, Type: IntType},
			FieldSpec{Name: FieldUpdated, Type: IntType})
	}
	if s.SoftDeletable {
		reserved = append(reserved, FieldSpec{Name: FieldDeleted, Type: IntType})
	}
	fields := make([]FieldSpec, 0, len(reserved)+len(s.Fields))
	for _, r := range reserved {
		if !s.declares(r.Name) {
			fields = append(fields, r)
		}
	}
	s.Fields = append(fields, s.Fields...)

	s.fieldIdx = make(map[string]int, len(s.Fields))
	for i, f := range s.Fields {
		if _, dup := s.fieldIdx[f.Name]; !dup {
			s.fieldIdx[f.Name] = i
		}
	}
	s.relationIdx = make(map[string]int, len(s.Relations))
	for i := range s.Relations {
		r := &s.Relations[i]
		if r.Foreign == "" || r.Foreign == db.IDAlias {
			r.Foreign = FieldID
		}
		if _, dup := s.relationIdx[r.Name]; !dup {
			s.relationIdx[r.Name] = i
		}
	}
}

func (s *Schema) declares(name string) bool {
	for _, f := range s.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Collection returns the collection the schema maps to.
func (s *Schema) Collection() string { return s.Name }

// FieldByName looks up a declared field.
func (s *Schema) FieldByName(name string) (FieldSpec, bool) {
	i, ok := s.fieldIdx[name]
	if !ok {
		return FieldSpec{}, false
	}
	return s.Fields[i], true
}

// RelationByName looks up a declared relation.
func (s *Schema) RelationByName(name string) (RelationSpec, bool) {
	i, ok := s.relationIdx[name]
	if !ok {
		return RelationSpec{}, false
	}
	return s.Relations[i], true
}

// Validate checks names and internal consistency. References to other
// schemas are checked by the Registry.
func (s *Schema) Validate() error {
	if !isIdentifier(s.Name) {
		return fmt.Errorf("%w: invalid schema name %q", ErrInvalidUsage, s.Name)
	}
	seen := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" || strings.HasPrefix(f.Name, "_") {
			return fmt.Errorf("%w: %s: invalid field name %q", ErrInvalidUsage, s.Name, f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("%w: %s: duplicate field %q", ErrInvalidUsage, s.Name, f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.Default != nil && f.Type.Kind != FieldObject {
			if _, err := Coerce(f.Default, f.Type); err != nil {
				return fmt.Errorf("%s.%s default: %w", s.Name, f.Name, err)
			}
		}
		if f.Index != "" {
			if s.Embedded {
				return fmt.Errorf("%w: %s: embedded schema cannot declare index on %q", ErrInvalidUsage, s.Name, f.Name)
			}
			if _, ok := db.ParseIndexKind(string(f.Index)); !ok {
				return fmt.Errorf("%w: %s.%s: unknown index kind %q", ErrInvalidUsage, s.Name, f.Name, f.Index)
			}
		}
	}
	if s.Embedded && (s.Timestamped || s.SoftDeletable || len(s.Relations) > 0) {
		return fmt.Errorf("%w: %s: embedded schema cannot be timestamped, soft-deletable or have relations", ErrInvalidUsage, s.Name)
	}
	rels := make(map[string]struct{}, len(s.Relations))
	for _, r := range s.Relations {
		if r.Name == "" || r.Class == "" {
			return fmt.Errorf("%w: %s: relation needs a name and a class", ErrInvalidUsage, s.Name)
		}
		if _, dup := rels[r.Name]; dup {
			return fmt.Errorf("%w: %s: duplicate relation %q", ErrInvalidUsage, s.Name, r.Name)
		}
		rels[r.Name] = struct{}{}
		local, ok := s.FieldByName(r.Local)
		if !ok {
			return fmt.Errorf("%w: %s.%s: local field %q is not declared", ErrInvalidUsage, s.Name, r.Name, r.Local)
		}
		if r.Many && local.Type.Kind != FieldList && local.Type.Kind != FieldAny {
			return fmt.Errorf("%w: %s.%s: array relation needs a list field, %q is %s", ErrInvalidUsage, s.Name, r.Name, r.Local, local.Type)
		}
	}
	return nil
}

// Indexes returns the index definitions declared by fields.
func (s *Schema) Indexes() []*db.IndexDefinition {
	var out []*db.IndexDefinition
	for _, f := range s.Fields {
		if f.Index == "" {
			continue
		}
		b := db.NewIndex(s.Collection()).Key(storageKey(f.Name), f.Index)
		def, err := b.Build()
		if err != nil {
			continue
		}
		out = append(out, def)
	}
	return out
}

// storageKey maps a field name to the stored key.
func storageKey(name string) string {
	if name == FieldID {
		return db.IDAlias
	}
	return name
}
