package docmap

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/docmap/internal/db"
)

// Resolver loads related entities through the schema registry. Resolution
// is always on demand.
type Resolver struct {
	client *Client
}

// Resolver returns a relation resolver bound to c.
func (c *Client) Resolver() *Resolver {
	return &Resolver{client: c}
}

func isIdentity(field string) bool {
	return field == "" || field == FieldID || field == db.IDAlias
}

// ResolveOne finds the class entity whose foreign field equals value.
// An absent value resolves to nil.
func (r *Resolver) ResolveOne(ctx context.Context, class string, value any, foreign string) (*Entity, error) {
	value = plainValue(value)
	if value == nil {
		return nil, nil
	}
	m, err := r.client.Model(class)
	if err != nil {
		return nil, err
	}
	if isIdentity(foreign) {
		return m.Find(ctx, value)
	}
	return m.FindOneBy(ctx, M{foreign: value})
}

// ResolveMany finds every class entity whose foreign field is in values,
// with a single query. Empty values resolve to nil.
func (r *Resolver) ResolveMany(ctx context.Context, class string, values any, foreign string) ([]*Entity, error) {
	refs := listOf(plainValue(values))
	if values == nil || len(refs) == 0 {
		return nil, nil
	}
	m, err := r.client.Model(class)
	if err != nil {
		return nil, err
	}
	if err := m.persistent(); err != nil {
		return nil, err
	}
	if isIdentity(foreign) {
		foreign = db.IDAlias
	}
	res, err := m.Query().WhereIn(foreign, refs).Execute(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := res.Cursor.All(ctx)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return m.hydrateAll(docs)
}

func (e *Entity) relation(name string, many bool) (RelationSpec, error) {
	rel, ok := e.schema.RelationByName(name)
	if !ok {
		return RelationSpec{}, fmt.Errorf("%w: %s has no relation %q", ErrInvalidUsage, e.schema.Name, name)
	}
	if rel.Many != many {
		kind := "single"
		if rel.Many {
			kind = "array"
		}
		return RelationSpec{}, fmt.Errorf("%w: %s.%s is an %s relation", ErrInvalidUsage, e.schema.Name, name, kind)
	}
	return rel, nil
}

// Related resolves a single-valued relation.
func (e *Entity) Related(ctx context.Context, name string) (*Entity, error) {
	rel, err := e.relation(name, false)
	if err != nil {
		return nil, err
	}
	return e.model.client.Resolver().ResolveOne(ctx, rel.Class, e.Get(rel.Local), rel.Foreign)
}

// RelatedMany resolves an array relation in one query.
func (e *Entity) RelatedMany(ctx context.Context, name string) ([]*Entity, error) {
	rel, err := e.relation(name, true)
	if err != nil {
		return nil, err
	}
	local := e.Get(rel.Local)
	if local.IsNull() {
		return nil, nil
	}
	return e.model.client.Resolver().ResolveMany(ctx, rel.Class, local, rel.Foreign)
}

// SetRelated stores other's foreign value in the local field. A nil other clears it.
func (e *Entity) SetRelated(name string, other *Entity) error {
	rel, err := e.relation(name, false)
	if err != nil {
		return err
	}
	if other == nil {
		return e.Set(rel.Local, nil)
	}
	ref, err := foreignValue(rel, other)
	if err != nil {
		return err
	}
	return e.Set(rel.Local, ref)
}

// SetRelatedMany stores the foreign values of others in the local list field.
func (e *Entity) SetRelatedMany(name string, others []*Entity) error {
	rel, err := e.relation(name, true)
	if err != nil {
		return err
	}
	if len(others) == 0 {
		return e.Set(rel.Local, nil)
	}
	refs := make([]Value, 0, len(others))
	for _, o := range others {
		if o == nil {
			return fmt.Errorf("%w: nil entity in %s.%s", ErrInvalidUsage, e.schema.Name, name)
		}
		ref, err := foreignValue(rel, o)
		if err != nil {
			return err
		}
		refs = append(refs, ref)
	}
	return e.Set(rel.Local, List(refs...))
}

func foreignValue(rel RelationSpec, other *Entity) (Value, error) {
	if other.schema.Name != rel.Class {
		return Value{}, fmt.Errorf("%w: relation %s expects %s, got %s", ErrTypeMismatch, rel.Name, rel.Class, other.schema.Name)
	}
	if _, ok := other.schema.FieldByName(rel.Foreign); !ok {
		return Value{}, fmt.Errorf("%w: %s has no field %q", ErrInvalidUsage, other.schema.Name, rel.Foreign)
	}
	return other.Get(rel.Foreign), nil
}
