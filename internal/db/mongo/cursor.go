package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mopt "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kailas-cloud/docmap/internal/db"
)

type cursor struct {
	coll       *mongo.Collection
	filter     db.Document
	projection []string
	sortField  string
	sortDir    db.Direction
	limit      int
}

func (c *cursor) Sort(field string, dir db.Direction) db.Cursor {
	cp := *c
	cp.sortField = field
	cp.sortDir = dir
	return &cp
}

func (c *cursor) Limit(n int) db.Cursor {
	cp := *c
	cp.limit = n
	return &cp
}

func (c *cursor) Count(ctx context.Context, limited bool) (int64, error) {
	opts := mopt.Count()
	if limited && c.limit > 0 {
		opts.SetLimit(int64(c.limit))
	}
	n, err := c.coll.CountDocuments(ctx, c.filter, opts)
	if err != nil {
		return 0, &db.Error{Op: db.OpCount, Err: err}
	}
	return n, nil
}

func (c *cursor) findOptions() *mopt.FindOptions {
	opts := mopt.Find()
	if p := projectionDoc(c.projection); p != nil {
		opts.SetProjection(p)
	}
	if c.sortField != "" {
		opts.SetSort(bson.D{{Key: c.sortField, Value: int(c.sortDir)}})
	}
	if c.limit > 0 {
		opts.SetLimit(int64(c.limit))
	}
	return opts
}

func (c *cursor) All(ctx context.Context) ([]db.Document, error) {
	cur, err := c.coll.Find(ctx, c.filter, c.findOptions())
	if err != nil {
		return nil, &db.Error{Op: db.OpFind, Err: err}
	}
	defer cur.Close(ctx)

	var rows []bson.M
	if err := cur.All(ctx, &rows); err != nil {
		return nil, &db.Error{Op: db.OpFind, Err: err}
	}
	out := make([]db.Document, len(rows))
	for i, row := range rows {
		out[i] = normalizeDocument(row)
	}
	return out, nil
}

func (c *cursor) Distinct(ctx context.Context, field string) ([]any, error) {
	vals, err := c.coll.Distinct(ctx, field, c.filter)
	if err != nil {
		return nil, &db.Error{Op: db.OpDistinct, Err: err}
	}
	for i, v := range vals {
		vals[i] = normalizeValue(v)
	}
	return vals, nil
}

func projectionDoc(fields []string) bson.D {
	if len(fields) == 0 {
		return nil
	}
	p := make(bson.D, len(fields))
	for i, f := range fields {
		p[i] = bson.E{Key: f, Value: 1}
	}
	return p
}
