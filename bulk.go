package docmap

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docmap/internal/db"
)

// Bulk is a homogeneous batch of persistent entities saved or deleted in
// one round trip. It bypasses dirty tracking and is meant for initial loads.
type Bulk struct {
	model *Model
	items []*Entity
}

// NewBulk checks that items are persistent entities of one schema.
func NewBulk(items ...*Entity) (*Bulk, error) {
	b := &Bulk{items: items}
	for i, e := range items {
		if e == nil {
			return nil, fmt.Errorf("%w: bulk item %d is nil", ErrInvalidUsage, i)
		}
		if e.schema.Embedded {
			return nil, fmt.Errorf("%w: bulk item %d: %s is embedded", ErrInvalidUsage, i, e.schema.Name)
		}
		if b.model == nil {
			b.model = e.model
			continue
		}
		if e.schema.Name != b.model.schema.Name {
			return nil, fmt.Errorf("%w: bulk mixes %s and %s", ErrInvalidUsage, b.model.schema.Name, e.schema.Name)
		}
	}
	return b, nil
}

// Len returns the number of entities.
func (b *Bulk) Len() int { return len(b.items) }

// Items returns the entities.
func (b *Bulk) Items() []*Entity { return b.items }

// Save inserts every entity with one bulk insert and marks them saved.
func (b *Bulk) Save(ctx context.Context) (err error) {
	if len(b.items) == 0 {
		return nil
	}
	collection := b.model.schema.Collection()
	mon := b.model.client.monitor(ctx, "insert_many", collection, zap.Int("documents", len(b.items)))
	defer func() { mon.done(err) }()

	docs := make([]db.Document, len(b.items))
	for i, e := range b.items {
		docs[i] = e.storedDocument()
	}
	coll, err := b.model.client.collection(ctx, collection)
	if err != nil {
		return err
	}
	if _, err = coll.Insert(ctx, docs...); err != nil {
		return err
	}
	for _, e := range b.items {
		e.isNew = false
	}
	return nil
}

// Delete removes every entity with one membership-filtered removal.
func (b *Bulk) Delete(ctx context.Context) (int64, error) {
	if len(b.items) == 0 {
		return 0, nil
	}
	ids := make([]any, len(b.items))
	for i, e := range b.items {
		ids[i] = e.ID().Interface()
	}
	return b.model.Query().WhereIn(db.IDAlias, ids).Delete(ctx)
}

// ToJSON encodes the batch as a JSON array.
func (b *Bulk) ToJSON() ([]byte, error) {
	docs := make([]Document, len(b.items))
	for i, e := range b.items {
		docs[i] = e.jsonDocument()
	}
	return json.Marshal(docs)
}
