// Package memory is an in-process document store. It backs tests and the
// "memory" driver of cmd/docmap.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/docmap/internal/db"
	"github.com/kailas-cloud/docmap/internal/db/match"
)

// Compile-time check: Store implements db.Gateway.
var _ db.Gateway = (*Store)(nil)

// Store keeps collections in memory. Safe for concurrent use.
type Store struct {
	name string

	mu          sync.RWMutex
	collections map[string]*collectionData
}

type collectionData struct {
	docs    []db.Document
	indexes map[string]*db.IndexDefinition
}

// New creates an empty store for the named database.
func New(name string) *Store {
	return &Store{name: name, collections: make(map[string]*collectionData)}
}

// Connector returns a db.Connector that always yields s.
func (s *Store) Connector() db.Connector {
	return db.ConnectorFunc(func(context.Context) (db.Gateway, error) { return s, nil })
}

// Collection returns a handle for name. The collection is created lazily on first write.
func (s *Store) Collection(name string) db.Collection {
	return &Collection{store: s, name: name}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// WaitForReady returns immediately.
func (s *Store) WaitForReady(context.Context, time.Duration) error { return nil }

// Close is a no-op; data stays available until Drop.
func (s *Store) Close(context.Context) error { return nil }

// Drop removes every collection.
func (s *Store) Drop(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections = make(map[string]*collectionData)
	return nil
}

// Stats reports collection and object counts.
func (s *Store) Stats(context.Context) (db.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	objects := 0
	indexes := 0
	for _, c := range s.collections {
		objects += len(c.docs)
		indexes += len(c.indexes)
	}
	return db.Document{
		"db":          s.name,
		"collections": len(s.collections),
		"objects":     objects,
		"indexes":     indexes,
	}, nil
}

// Indexes lists index definitions recorded for a collection, sorted by name.
func (s *Store) Indexes(collection string) []*db.IndexDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[collection]
	if !ok {
		return nil
	}
	out := make([]*db.IndexDefinition, 0, len(c.indexes))
	for _, def := range c.indexes {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Store) data(name string, create bool) *collectionData {
	c, ok := s.collections[name]
	if !ok && create {
		c = &collectionData{indexes: make(map[string]*db.IndexDefinition)}
		s.collections[name] = c
	}
	return c
}

// Collection is a handle on one in-memory collection.
type Collection struct {
	store *Store
	name  string
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Find returns a lazy cursor; documents are matched when the cursor is read.
func (c *Collection) Find(_ context.Context, filter db.Document, projection []string) (db.Cursor, error) {
	return &cursor{coll: c, filter: match.CloneDocument(filter), projection: projection}, nil
}

// Insert stores copies of docs, generating an identity where none is set.
func (c *Collection) Insert(_ context.Context, docs ...db.Document) ([]any, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	data := c.store.data(c.name, true)
	seen := make(map[any]struct{}, len(data.docs)+len(docs))
	for _, d := range data.docs {
		seen[idKey(d[db.IDAlias])] = struct{}{}
	}

	staged := make([]db.Document, 0, len(docs))
	ids := make([]any, 0, len(docs))
	for _, d := range docs {
		cp := match.CloneDocument(d)
		if cp == nil {
			cp = db.Document{}
		}
		if cp[db.IDAlias] == nil {
			cp[db.IDAlias] = uuid.NewString()
		}
		key := idKey(cp[db.IDAlias])
		if _, dup := seen[key]; dup {
			return nil, &db.Error{Op: db.OpInsert, Err: fmt.Errorf("%w: %s %v", db.ErrDuplicateKey, c.name, cp[db.IDAlias])}
		}
		seen[key] = struct{}{}
		staged = append(staged, cp)
		ids = append(ids, cp[db.IDAlias])
	}
	data.docs = append(data.docs, staged...)
	return ids, nil
}

// Update applies ops to every matching document and returns the matched count.
func (c *Collection) Update(_ context.Context, filter, ops db.Document) (int64, error) {
	return c.update(filter, ops, true)
}

// UpdateOne applies ops to the first matching document in insertion order.
func (c *Collection) UpdateOne(_ context.Context, filter, ops db.Document) (int64, error) {
	return c.update(filter, ops, false)
}

func (c *Collection) update(filter, ops db.Document, many bool) (int64, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	data := c.store.data(c.name, false)
	if data == nil {
		return 0, nil
	}
	var n int64
	for i, d := range data.docs {
		ok, err := match.Matches(d, filter)
		if err != nil {
			return n, &db.Error{Op: db.OpUpdate, Err: err}
		}
		if !ok {
			continue
		}
		cp := match.CloneDocument(d)
		if err := match.Apply(cp, ops); err != nil {
			return n, &db.Error{Op: db.OpUpdate, Err: err}
		}
		data.docs[i] = cp
		n++
		if !many {
			break
		}
	}
	return n, nil
}

// Remove deletes matching documents. Evaluation failures are reported in
// RemoveResult.Err, the way a store reports a processed-but-failed request.
func (c *Collection) Remove(_ context.Context, filter db.Document) (db.RemoveResult, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	data := c.store.data(c.name, false)
	if data == nil {
		return db.RemoveResult{}, nil
	}
	kept := data.docs[:0:0]
	var removed int64
	for _, d := range data.docs {
		ok, err := match.Matches(d, filter)
		if err != nil {
			return db.RemoveResult{Err: err.Error()}, nil
		}
		if ok {
			removed++
			continue
		}
		kept = append(kept, d)
	}
	data.docs = kept
	return db.RemoveResult{Removed: removed}, nil
}

// Count counts matching documents; a nil filter counts all.
func (c *Collection) Count(_ context.Context, filter db.Document) (int64, error) {
	docs, err := c.matching(filter, db.OpCount)
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

// EnsureIndex records def; re-ensuring the same name is a no-op.
func (c *Collection) EnsureIndex(_ context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return &db.Error{Op: db.OpEnsureIndex, Err: err}
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	data := c.store.data(c.name, true)
	name := def.Name
	if name == "" {
		name = def.DefaultName()
	}
	if _, ok := data.indexes[name]; !ok {
		cp := *def
		cp.Name = name
		data.indexes[name] = &cp
	}
	return nil
}

// matching returns clones of the documents that satisfy filter, in insertion order.
func (c *Collection) matching(filter db.Document, op string) ([]db.Document, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	data := c.store.data(c.name, false)
	if data == nil {
		return nil, nil
	}
	var out []db.Document
	for _, d := range data.docs {
		ok, err := match.Matches(d, filter)
		if err != nil {
			return nil, &db.Error{Op: op, Err: err}
		}
		if ok {
			out = append(out, match.CloneDocument(d))
		}
	}
	return out, nil
}

func idKey(id any) any {
	switch t := id.(type) {
	case int:
		return int64(t)
	case int32:
		return int64(t)
	}
	return fmt.Sprint(id)
}
