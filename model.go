package docmap

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/docmap/internal/db"
)

// Model binds a schema to a client. It constructs entities and runs the
// collection-level finders.
type Model struct {
	client *Client
	schema *Schema
}

// Name returns the schema name.
func (m *Model) Name() string { return m.schema.Name }

// Schema returns the bound schema.
func (m *Model) Schema() *Schema { return m.schema }

// Query starts a query on the model's collection.
func (m *Model) Query() *Query {
	return m.client.Query(m.schema.Collection())
}

// New constructs an unsaved entity with a fresh identity, defaults and timestamps.
func (m *Model) New() *Entity {
	return m.construct(true)
}

func (m *Model) construct(isNew bool) *Entity {
	e := &Entity{
		model:  m,
		schema: m.schema,
		values: make(map[string]Value, len(m.schema.Fields)),
		isNew:  isNew,
		dirty:  make(map[string]struct{}),
	}
	for _, f := range m.schema.Fields {
		if f.Default == nil {
			continue
		}
		if v, err := Coerce(f.Default, f.Type); err == nil {
			e.values[f.Name] = v
		}
	}
	if !isNew {
		return e
	}
	if !m.schema.Embedded {
		e.values[FieldID] = String(uuid.NewString())
	}
	if m.schema.Timestamped {
		now := Int(time.Now().Unix())
		e.values[FieldCreated] = now
		e.values[FieldUpdated] = now
	}
	return e
}

// FromDocument hydrates an entity. The stored identity is taken only when
// isNew is false. Nested documents carrying a class key become entities of
// that schema. Values are not coerced to the declared field types, apart
// from ints read into float fields. The dirty set is empty afterwards.
func (m *Model) FromDocument(d Document, isNew bool) (*Entity, error) {
	e := m.construct(isNew)
	for k, raw := range d {
		switch k {
		case ClassKey:
			continue
		case db.IDAlias, FieldID:
			if isNew || m.schema.Embedded {
				continue
			}
			v, err := ValueOf(raw)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", m.schema.Name, FieldID, err)
			}
			e.values[FieldID] = v
			continue
		}
		v, err := m.client.hydrate(raw)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", m.schema.Name, k, err)
		}
		if f, ok := m.schema.FieldByName(k); ok {
			v = widen(v, f.Type)
		}
		e.values[k] = v
	}
	e.ResetChanges()
	return e, nil
}

// widen applies the lossless int to float conversion for float fields and
// float list elements. Stored values are otherwise kept as they are.
func widen(v Value, t FieldType) Value {
	switch {
	case t.Kind == FieldFloat && v.Kind() == KindInt:
		i, _ := v.AsInt()
		return Float(float64(i))
	case t.Kind == FieldList && t.Elem != nil && v.Kind() == KindList:
		items := v.AsList()
		out := make([]Value, len(items))
		for i, item := range items {
			out[i] = widen(item, *t.Elem)
		}
		return List(out...)
	}
	return v
}

// hydrate converts a stored value, turning class-keyed documents into entities.
func (c *Client) hydrate(raw any) (Value, error) {
	switch t := raw.(type) {
	case Document:
		return c.hydrateDocument(t)
	case map[string]any:
		return c.hydrateDocument(Document(t))
	}
	if items, ok := sliceOf(raw); ok {
		out := make([]Value, len(items))
		for i, item := range items {
			v, err := c.hydrate(item)
			if err != nil {
				return Value{}, err
			}
			out[i] = v
		}
		return List(out...), nil
	}
	return ValueOf(raw)
}

func (c *Client) hydrateDocument(d Document) (Value, error) {
	class, ok := d[ClassKey].(string)
	if !ok {
		out := make(map[string]Value, len(d))
		for k, item := range d {
			v, err := c.hydrate(item)
			if err != nil {
				return Value{}, err
			}
			out[k] = v
		}
		return Map(out), nil
	}
	m, err := c.Model(class)
	if err != nil {
		return Value{}, err
	}
	e, err := m.FromDocument(d, false)
	if err != nil {
		return Value{}, err
	}
	return Object(e), nil
}

func (m *Model) hydrateAll(docs []Document) ([]*Entity, error) {
	out := make([]*Entity, 0, len(docs))
	for _, d := range docs {
		e, err := m.FromDocument(d, false)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *Model) persistent() error {
	if m.schema.Embedded {
		return fmt.Errorf("%w: %s is embedded and cannot be persisted", ErrInvalidUsage, m.schema.Name)
	}
	return nil
}

// storageFilter maps the identity field to its stored alias.
func storageFilter(filter M) M {
	if _, ok := filter[FieldID]; !ok {
		return filter
	}
	out := make(M, len(filter))
	for k, v := range filter {
		out[storageKey(k)] = v
	}
	return out
}

// Find returns the entity with identity id, or nil.
func (m *Model) Find(ctx context.Context, id any) (*Entity, error) {
	doc, err := m.FindRaw(ctx, id)
	if err != nil || doc == nil {
		return nil, err
	}
	return m.FromDocument(doc, false)
}

// FindRaw returns the stored document with identity id, or nil.
func (m *Model) FindRaw(ctx context.Context, id any) (Document, error) {
	if err := m.persistent(); err != nil {
		return nil, err
	}
	id = plainValue(id)
	if id == nil || id == "" {
		return nil, nil
	}
	return m.Query().Where(M{db.IDAlias: id}).FetchOne(ctx)
}

// FindBy returns the entities matching filter.
func (m *Model) FindBy(ctx context.Context, filter M) ([]*Entity, error) {
	docs, err := m.FindByRaw(ctx, filter)
	if err != nil {
		return nil, err
	}
	return m.hydrateAll(docs)
}

// FindByRaw returns the stored documents matching filter.
func (m *Model) FindByRaw(ctx context.Context, filter M) ([]Document, error) {
	if err := m.persistent(); err != nil {
		return nil, err
	}
	res, err := m.Query().Where(storageFilter(filter)).Execute(ctx)
	if err != nil {
		return nil, err
	}
	return res.Cursor.All(ctx)
}

// FindOneBy returns the first entity matching filter, or nil.
func (m *Model) FindOneBy(ctx context.Context, filter M) (*Entity, error) {
	doc, err := m.FindOneByRaw(ctx, filter)
	if err != nil || doc == nil {
		return nil, err
	}
	return m.FromDocument(doc, false)
}

// FindOneByRaw returns the first stored document matching filter, or nil.
func (m *Model) FindOneByRaw(ctx context.Context, filter M) (Document, error) {
	if err := m.persistent(); err != nil {
		return nil, err
	}
	return m.Query().Where(storageFilter(filter)).FetchOne(ctx)
}

// FindAll returns every entity of the collection.
func (m *Model) FindAll(ctx context.Context) ([]*Entity, error) {
	return m.FindBy(ctx, nil)
}

// FindAllRaw returns every stored document of the collection.
func (m *Model) FindAllRaw(ctx context.Context) ([]Document, error) {
	return m.FindByRaw(ctx, nil)
}

// Count counts entities matching filter; a nil filter counts all.
func (m *Model) Count(ctx context.Context, filter M) (int64, error) {
	if err := m.persistent(); err != nil {
		return 0, err
	}
	return m.Query().Where(storageFilter(filter)).Count(ctx)
}

// DeleteAll removes every document of the collection.
func (m *Model) DeleteAll(ctx context.Context) (int64, error) {
	if err := m.persistent(); err != nil {
		return 0, err
	}
	return m.Query().Delete(ctx)
}
