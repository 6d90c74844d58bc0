package docmap

import (
	"context"
	"sync"
	"testing"

	"github.com/kailas-cloud/docmap/internal/db"
	"github.com/kailas-cloud/docmap/internal/db/memory"
)

// --- Fixtures ---

func testSchemas() []*Schema {
	return []*Schema{
		NewSchema("Address", Embedded(),
			Field("street", StringType),
			Field("city", StringType, Default("Berlin")),
		),
		NewSchema("Tag",
			Field("name", StringType, Indexed(IndexAscending)),
		),
		NewSchema("User", Timestamped(),
			Field("name", StringType, Required(), Indexed(IndexAscending)),
			Field("age", IntType, Default(18)),
			Field("address", ObjectOf("Address")),
			Field("aliases", ListOf(StringType)),
			Field("tag_ids", ListType),
			Field("best_tag", AnyType),
			RelationMany("tags", "Tag", "tag_ids", ""),
			Relation("best", "Tag", "best_tag", "name"),
		),
		NewSchema("Note", SoftDeletable(),
			Field("text", StringType),
		),
	}
}

// spyCollection records calls and forwards them to the wrapped collection.
type spyCollection struct {
	db.Collection

	mu      sync.Mutex
	finds   []db.Document
	inserts [][]db.Document
	updates []db.Document
	removes []db.Document

	removeResult *db.RemoveResult
}

func (c *spyCollection) Find(ctx context.Context, filter db.Document, projection []string) (db.Cursor, error) {
	c.mu.Lock()
	c.finds = append(c.finds, filter)
	c.mu.Unlock()
	return c.Collection.Find(ctx, filter, projection)
}

func (c *spyCollection) Insert(ctx context.Context, docs ...db.Document) ([]any, error) {
	c.mu.Lock()
	c.inserts = append(c.inserts, docs)
	c.mu.Unlock()
	return c.Collection.Insert(ctx, docs...)
}

func (c *spyCollection) Update(ctx context.Context, filter, ops db.Document) (int64, error) {
	c.mu.Lock()
	c.updates = append(c.updates, ops)
	c.mu.Unlock()
	return c.Collection.Update(ctx, filter, ops)
}

func (c *spyCollection) UpdateOne(ctx context.Context, filter, ops db.Document) (int64, error) {
	c.mu.Lock()
	c.updates = append(c.updates, ops)
	c.mu.Unlock()
	return c.Collection.UpdateOne(ctx, filter, ops)
}

func (c *spyCollection) Remove(ctx context.Context, filter db.Document) (db.RemoveResult, error) {
	c.mu.Lock()
	c.removes = append(c.removes, filter)
	c.mu.Unlock()
	if c.removeResult != nil {
		return *c.removeResult, nil
	}
	return c.Collection.Remove(ctx, filter)
}

type spyGateway struct {
	*memory.Store

	mu       sync.Mutex
	connects int
	colls    map[string]*spyCollection
}

func (g *spyGateway) Collection(name string) db.Collection {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.colls[name]; ok {
		return c
	}
	c := &spyCollection{Collection: g.Store.Collection(name)}
	g.colls[name] = c
	return c
}

func (g *spyGateway) spy(name string) *spyCollection {
	return g.Collection(name).(*spyCollection)
}

func (g *spyGateway) connector() db.Connector {
	return db.ConnectorFunc(func(context.Context) (db.Gateway, error) {
		g.mu.Lock()
		g.connects++
		g.mu.Unlock()
		return g, nil
	})
}

func newSpyGateway() *spyGateway {
	return &spyGateway{Store: memory.New("test"), colls: make(map[string]*spyCollection)}
}

func newTestClient(t *testing.T) (*Client, *spyGateway) {
	t.Helper()
	gw := newSpyGateway()
	c, err := New(WithConnector(gw.connector()), WithSchemas(testSchemas()...))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Registry().Validate(); err != nil {
		t.Fatalf("registry: %v", err)
	}
	return c, gw
}

func mustSet(t *testing.T, e *Entity, field string, v any) {
	t.Helper()
	if err := e.Set(field, v); err != nil {
		t.Fatalf("Set(%s): %v", field, err)
	}
}

func saveUser(t *testing.T, c *Client, name string, age int) *Entity {
	t.Helper()
	u := c.MustModel("User").New()
	mustSet(t, u, "name", name)
	mustSet(t, u, "age", age)
	if err := u.Save(context.Background()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return u
}
