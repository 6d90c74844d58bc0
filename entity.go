package docmap

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/kailas-cloud/docmap/internal/db"
)

// Entity is an instance of a schema. Persistent entities have an identity
// and track which fields changed once they are no longer new; embedded
// entities only live inside another entity's document.
type Entity struct {
	model  *Model
	schema *Schema
	values map[string]Value
	isNew  bool
	dirty  map[string]struct{}
}

// Schema returns the entity's schema.
func (e *Entity) Schema() *Schema { return e.schema }

// Collection returns the collection the entity maps to.
func (e *Entity) Collection() string { return e.schema.Collection() }

// IsNew reports whether the entity was never saved.
func (e *Entity) IsNew() bool { return e.isNew }

// ID returns the identity; null for embedded entities.
func (e *Entity) ID() Value { return e.values[FieldID] }

// Set coerces x to the field's declared type and assigns it. On a saved
// entity the field is recorded as changed.
func (e *Entity) Set(name string, x any) error {
	f, ok := e.schema.FieldByName(name)
	if !ok {
		return fmt.Errorf("%w: %s has no field %q", ErrInvalidUsage, e.schema.Name, name)
	}
	v, err := Coerce(x, f.Type)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", e.schema.Name, name, err)
	}
	e.values[name] = v
	if !e.isNew && !e.schema.Embedded {
		e.dirty[name] = struct{}{}
	}
	return nil
}

// Get returns the field value; unknown or unset fields are null.
func (e *Entity) Get(name string) Value { return e.values[name] }

// GetString returns a string field or "".
func (e *Entity) GetString(name string) string {
	s, _ := e.values[name].AsString()
	return s
}

// GetInt returns an integer field or 0.
func (e *Entity) GetInt(name string) int64 {
	i, _ := e.values[name].AsInt()
	return i
}

// GetFloat returns a numeric field as float64 or 0.
func (e *Entity) GetFloat(name string) float64 {
	f, _ := e.values[name].AsFloat()
	return f
}

// GetBool returns a bool field or false.
func (e *Entity) GetBool(name string) bool {
	b, _ := e.values[name].AsBool()
	return b
}

// GetObject returns a nested entity or nil.
func (e *Entity) GetObject(name string) *Entity { return e.values[name].AsObject() }

// GetList returns list items or nil.
func (e *Entity) GetList(name string) []Value { return e.values[name].AsList() }

// Dirty returns the changed field names, sorted.
func (e *Entity) Dirty() []string {
	out := make([]string, 0, len(e.dirty))
	for name := range e.dirty {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// IsDirty reports whether name changed since the entity was loaded or saved.
func (e *Entity) IsDirty(name string) bool {
	_, ok := e.dirty[name]
	return ok
}

// ResetChanges clears the dirty set. Update does not do this itself.
func (e *Entity) ResetChanges() {
	e.dirty = make(map[string]struct{})
}

// ToDocument serializes every public non-null field, nested entities
// included, and stamps the class key.
func (e *Entity) ToDocument() Document {
	doc := Document{ClassKey: e.schema.Name}
	for name, v := range e.values {
		if strings.HasPrefix(name, "_") || v.IsNull() {
			continue
		}
		doc[name] = v.Interface()
	}
	return doc
}

// storedDocument is the form written to the collection: no class key and
// the identity under its alias.
func (e *Entity) storedDocument() Document {
	doc := e.ToDocument()
	delete(doc, ClassKey)
	if id, ok := doc[FieldID]; ok {
		doc[db.IDAlias] = id
		delete(doc, FieldID)
	}
	return doc
}

// Validate checks required fields.
func (e *Entity) Validate() error {
	for _, f := range e.schema.Fields {
		if f.Required && e.values[f.Name].IsNull() {
			return fmt.Errorf("%w: %s.%s is required", ErrValidation, e.schema.Name, f.Name)
		}
	}
	return nil
}

// Save inserts a new entity, or updates the changed fields of a saved one.
func (e *Entity) Save(ctx context.Context) error {
	if err := e.model.persistent(); err != nil {
		return err
	}
	if err := e.Validate(); err != nil {
		return err
	}
	if !e.isNew {
		return e.Update(ctx)
	}
	if _, err := e.model.Query().Insert(e.storedDocument()).Execute(ctx); err != nil {
		return err
	}
	e.isNew = false
	return nil
}

// Update writes only the changed fields, filtered by identity. The dirty
// set is kept; call ResetChanges to clear it.
func (e *Entity) Update(ctx context.Context) error {
	if err := e.model.persistent(); err != nil {
		return err
	}
	values := make(Document, len(e.dirty))
	for name := range e.dirty {
		if name == FieldID {
			continue
		}
		values[name] = e.values[name].Interface()
	}
	if len(values) == 0 {
		return nil
	}
	_, err := e.model.Query().Where(M{db.IDAlias: e.ID()}).Update(ctx, values)
	return err
}

// Delete removes the stored document, or sets the deleted timestamp on a
// soft-deletable entity. Deleting a new entity does nothing.
func (e *Entity) Delete(ctx context.Context) error {
	if err := e.model.persistent(); err != nil {
		return err
	}
	if e.isNew {
		return nil
	}
	if e.schema.SoftDeletable {
		if err := e.Set(FieldDeleted, time.Now().Unix()); err != nil {
			return err
		}
		return e.Save(ctx)
	}
	_, err := e.model.Query().Where(M{db.IDAlias: e.ID()}).Delete(ctx)
	return err
}

// Refresh overwrites the fields present in the stored document and clears
// the dirty set. Local fields the store does not have are kept.
func (e *Entity) Refresh(ctx context.Context) error {
	if err := e.model.persistent(); err != nil {
		return err
	}
	if e.isNew {
		return nil
	}
	doc, err := e.model.FindRaw(ctx, e.ID())
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("%w: %s", ErrStale, e)
	}
	fresh, err := e.model.FromDocument(doc, false)
	if err != nil {
		return err
	}
	for k := range doc {
		name := k
		if k == db.IDAlias {
			name = FieldID
		}
		if v, ok := fresh.values[name]; ok {
			e.values[name] = v
		}
	}
	e.ResetChanges()
	return nil
}

// Equals reports whether other has the same schema and serializes identically.
func (e *Entity) Equals(other *Entity) bool {
	if other == nil || e.schema.Name != other.schema.Name {
		return false
	}
	return reflect.DeepEqual(e.ToDocument(), other.ToDocument())
}

// Copy returns a new, unsaved entity with the same field values and a fresh identity.
func (e *Entity) Copy() (*Entity, error) {
	return e.model.FromDocument(e.ToDocument(), true)
}

// ToJSON encodes the entity. Persistent entities omit the class key.
func (e *Entity) ToJSON() ([]byte, error) {
	return json.Marshal(e.jsonDocument())
}

func (e *Entity) jsonDocument() Document {
	doc := e.ToDocument()
	if !e.schema.Embedded {
		delete(doc, ClassKey)
	}
	return doc
}

// Hash is the hex MD5 of identity and creation time.
func (e *Entity) Hash() string {
	sum := md5.Sum([]byte(e.ID().String() + e.Get(FieldCreated).String()))
	return hex.EncodeToString(sum[:])
}

func (e *Entity) String() string {
	if e.schema.Embedded {
		return e.schema.Name
	}
	return e.schema.Name + " #" + e.ID().String()
}
