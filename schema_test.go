package docmap

import (
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/docmap/internal/db"
)

func TestParseFieldType(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"bool", "bool", false},
		{"int", "int", false},
		{"long", "int", false},
		{"float", "float", false},
		{"str", "str", false},
		{"list", "list", false},
		{"list[int]", "list[int]", false},
		{"list[Address]", "list[Address]", false},
		{"dict", "dict", false},
		{"Address", "Address", false},
		{"", "", true},
		{"list[int", "", true},
		{"no spaces", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFieldType(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidUsage) {
					t.Fatalf("err = %v, want ErrInvalidUsage", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseFieldType(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewSchema_ReservedFields(t *testing.T) {
	s := NewSchema("Post", Timestamped(), SoftDeletable(), Field("title", StringType))
	var names []string
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	if got := strings.Join(names, ","); got != "id,created,updated,deleted,title" {
		t.Errorf("fields = %s", got)
	}

	emb := NewSchema("Point", Embedded(), Field("x", FloatType))
	if _, ok := emb.FieldByName(FieldID); ok {
		t.Error("embedded schema must not have an identity")
	}
}

func TestSchema_Validate(t *testing.T) {
	tests := []struct {
		name   string
		schema *Schema
	}{
		{"bad name", NewSchema("has space")},
		{"underscore field", NewSchema("A", Field("_secret", StringType))},
		{"duplicate field", NewSchema("A", Field("x", IntType), Field("x", StringType))},
		{"embedded index", NewSchema("A", Embedded(), Field("x", IntType, Indexed(IndexAscending)))},
		{"embedded timestamps", NewSchema("A", Embedded(), Timestamped())},
		{"unknown index", NewSchema("A", Field("x", IntType, Indexed("hashed")))},
		{"missing local", NewSchema("A", Relation("r", "B", "nope", ""))},
		{"array on scalar", NewSchema("A", Field("ref", StringType), RelationMany("r", "B", "ref", ""))},
		{"bad default", NewSchema("A", Field("n", IntType, Default("many")))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.schema.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}

	for _, s := range testSchemas() {
		if err := s.Validate(); err != nil {
			t.Errorf("%s: %v", s.Name, err)
		}
	}
}

func TestSchema_RelationForeignDefaultsToID(t *testing.T) {
	s := NewSchema("A", Field("ref", AnyType), Relation("r", "B", "ref", "_id"))
	rel, ok := s.RelationByName("r")
	if !ok || rel.Foreign != FieldID {
		t.Errorf("relation = %+v", rel)
	}
}

func TestSchema_Indexes(t *testing.T) {
	s := NewSchema("Tag",
		Field("id", AnyType, Indexed(IndexDescending)),
		Field("name", StringType, Indexed(IndexAscending)),
		Field("where", ListType, Indexed(IndexGeo2D)),
	)
	defs := s.Indexes()
	if len(defs) != 3 {
		t.Fatalf("len = %d, want 3", len(defs))
	}
	want := []db.IndexField{
		{Name: "_id", Kind: IndexDescending},
		{Name: "name", Kind: IndexAscending},
		{Name: "where", Kind: IndexGeo2D},
	}
	for i, def := range defs {
		if def.Collection != "Tag" || len(def.Fields) != 1 || def.Fields[0] != want[i] {
			t.Errorf("index %d = %+v", i, def)
		}
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(testSchemas()...); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := r.Register(NewSchema("Tag")); !errors.Is(err, ErrInvalidUsage) {
		t.Errorf("duplicate err = %v", err)
	}
	if _, err := r.Lookup("Nope"); !errors.Is(err, ErrUnknownType) {
		t.Errorf("Lookup err = %v, want ErrUnknownType", err)
	}

	var names []string
	for _, s := range r.Schemas() {
		names = append(names, s.Name)
	}
	if got := strings.Join(names, ","); got != "Address,Note,Tag,User" {
		t.Errorf("Schemas() = %s", got)
	}
}

func TestRegistry_ValidateReferences(t *testing.T) {
	tests := []struct {
		name    string
		schemas []*Schema
	}{
		{"unknown object class", []*Schema{NewSchema("A", Field("b", ObjectOf("B")))}},
		{"unknown list class", []*Schema{NewSchema("A", Field("b", ListOf(ObjectOf("B"))))}},
		{"unknown relation class", []*Schema{NewSchema("A", Field("b", AnyType), Relation("r", "B", "b", ""))}},
		{"embedded target", []*Schema{
			NewSchema("A", Field("b", AnyType), Relation("r", "B", "b", "")),
			NewSchema("B", Embedded()),
		}},
		{"missing foreign", []*Schema{
			NewSchema("A", Field("b", AnyType), Relation("r", "B", "b", "code")),
			NewSchema("B"),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			if err := r.Register(tt.schemas...); err != nil {
				t.Fatalf("Register: %v", err)
			}
			if err := r.Validate(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
