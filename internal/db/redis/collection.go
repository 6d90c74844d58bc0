package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/rueidis"

	"github.com/kailas-cloud/docmap/internal/db"
	"github.com/kailas-cloud/docmap/internal/db/match"
)

const indexSetPrefix = "__indexes:"

// Collection is a handle on the keys "<prefix><name>:*".
// Filters are evaluated client-side after the documents are loaded.
type Collection struct {
	store *Store
	name  string
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

func (c *Collection) key(id any) string {
	return c.store.prefix + c.name + ":" + fmt.Sprint(id)
}

// collectionOf extracts the collection name from a document key.
func (s *Store) collectionOf(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, s.prefix)
	if !ok || strings.HasPrefix(rest, "__") {
		return "", false
	}
	coll, _, ok := strings.Cut(rest, ":")
	return coll, ok
}

// Find returns a lazy cursor.
func (c *Collection) Find(_ context.Context, filter db.Document, projection []string) (db.Cursor, error) {
	return &cursor{coll: c, filter: match.CloneDocument(filter), projection: projection}, nil
}

// Insert writes each document with JSON.SET NX. An existing key fails the
// insert with db.ErrDuplicateKey; documents before it stay written.
func (c *Collection) Insert(ctx context.Context, docs ...db.Document) ([]any, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	ids := make([]any, 0, len(docs))
	cmds := make(rueidis.Commands, 0, len(docs))
	for _, d := range docs {
		cp := match.CloneDocument(d)
		if cp == nil {
			cp = db.Document{}
		}
		if cp[db.IDAlias] == nil {
			cp[db.IDAlias] = uuid.NewString()
		}
		cmd, err := c.store.jsonSet(c.key(cp[db.IDAlias]), cp, true)
		if err != nil {
			return nil, &db.Error{Op: db.OpInsert, Err: err}
		}
		cmds = append(cmds, cmd)
		ids = append(ids, cp[db.IDAlias])
	}

	for i, res := range c.store.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			if rueidis.IsRedisNil(err) {
				return ids[:i], &db.Error{Op: db.OpInsert, Err: fmt.Errorf("%w: %s %v", db.ErrDuplicateKey, c.name, ids[i])}
			}
			return ids[:i], &db.Error{Op: db.OpInsert, Err: moduleErr(err)}
		}
	}
	return ids, nil
}

// Update rewrites every matching document with ops applied.
func (c *Collection) Update(ctx context.Context, filter, ops db.Document) (int64, error) {
	return c.update(ctx, filter, ops, true)
}

// UpdateOne rewrites the first matching document in scan order.
func (c *Collection) UpdateOne(ctx context.Context, filter, ops db.Document) (int64, error) {
	return c.update(ctx, filter, ops, false)
}

func (c *Collection) update(ctx context.Context, filter, ops db.Document, many bool) (int64, error) {
	docs, err := c.matching(ctx, filter, db.OpUpdate)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}
	if !many {
		docs = docs[:1]
	}

	cmds := make(rueidis.Commands, 0, len(docs))
	for _, d := range docs {
		if err := match.Apply(d, ops); err != nil {
			return 0, &db.Error{Op: db.OpUpdate, Err: err}
		}
		cmd, err := c.store.jsonSet(c.key(d[db.IDAlias]), d, false)
		if err != nil {
			return 0, &db.Error{Op: db.OpUpdate, Err: err}
		}
		cmds = append(cmds, cmd)
	}
	for _, res := range c.store.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return 0, &db.Error{Op: db.OpUpdate, Err: moduleErr(err)}
		}
	}
	return int64(len(docs)), nil
}

// Remove deletes matching documents. A filter the store cannot evaluate and
// server-side failures are reported in RemoveResult.Err.
func (c *Collection) Remove(ctx context.Context, filter db.Document) (db.RemoveResult, error) {
	docs, err := c.matching(ctx, filter, db.OpRemove)
	if err != nil {
		if isEvalErr(err) {
			return db.RemoveResult{Err: err.Error()}, nil
		}
		return db.RemoveResult{}, err
	}
	if len(docs) == 0 {
		return db.RemoveResult{}, nil
	}

	keys := make([]string, len(docs))
	for i, d := range docs {
		keys[i] = c.key(d[db.IDAlias])
	}
	n, err := c.store.do(ctx, c.store.b().Del().Key(keys...).Build()).AsInt64()
	if err != nil {
		if _, ok := rueidis.IsRedisErr(err); ok {
			return db.RemoveResult{Err: err.Error()}, nil
		}
		return db.RemoveResult{}, &db.Error{Op: db.OpRemove, Err: err}
	}
	return db.RemoveResult{Removed: n}, nil
}

// Count counts matching documents; a nil filter counts all keys of the collection.
func (c *Collection) Count(ctx context.Context, filter db.Document) (int64, error) {
	if filter == nil {
		keys, err := c.store.scan(ctx, c.key("*"))
		if err != nil {
			return 0, &db.Error{Op: db.OpCount, Err: err}
		}
		return int64(len(keys)), nil
	}
	docs, err := c.matching(ctx, filter, db.OpCount)
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

// EnsureIndex records the index name in a set per collection. Redis has no
// secondary indexes over plain JSON keys; the record keeps BuildIndexes idempotent.
func (c *Collection) EnsureIndex(ctx context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return &db.Error{Op: db.OpEnsureIndex, Err: err}
	}
	name := def.Name
	if name == "" {
		name = def.DefaultName()
	}
	cmd := c.store.b().Sadd().Key(c.store.prefix + indexSetPrefix + c.name).Member(name).Build()
	if err := c.store.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpEnsureIndex, Err: err}
	}
	return nil
}

// evalError marks a filter the matcher rejected.
type evalError struct{ err error }

func (e *evalError) Error() string { return e.err.Error() }
func (e *evalError) Unwrap() error { return e.err }

func isEvalErr(err error) bool {
	var ee *evalError
	return errors.As(err, &ee)
}

// matching loads the collection and returns documents satisfying filter.
func (c *Collection) matching(ctx context.Context, filter db.Document, op string) ([]db.Document, error) {
	keys, err := c.store.scan(ctx, c.key("*"))
	if err != nil {
		return nil, &db.Error{Op: op, Err: err}
	}
	docs, err := c.store.jsonGetMulti(ctx, keys)
	if err != nil {
		return nil, &db.Error{Op: op, Err: err}
	}
	out := docs[:0]
	for _, d := range docs {
		ok, err := match.Matches(d, filter)
		if err != nil {
			return nil, &db.Error{Op: op, Err: &evalError{err: err}}
		}
		if ok {
			out = append(out, d)
		}
	}
	return out, nil
}
