package redis

import (
	"context"

	"github.com/kailas-cloud/docmap/internal/db"
	"github.com/kailas-cloud/docmap/internal/db/match"
)

type cursor struct {
	coll       *Collection
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
	docs, err := c.coll.matching(ctx, c.filter, db.OpCount)
	if err != nil {
		return 0, err
	}
	n := int64(len(docs))
	if limited && c.limit > 0 && int64(c.limit) < n {
		n = int64(c.limit)
	}
	return n, nil
}

func (c *cursor) All(ctx context.Context) ([]db.Document, error) {
	docs, err := c.coll.matching(ctx, c.filter, db.OpFind)
	if err != nil {
		return nil, err
	}
	return match.Shape(docs, c.sortField, c.sortDir, c.limit, c.projection), nil
}

func (c *cursor) Distinct(ctx context.Context, field string) ([]any, error) {
	docs, err := c.coll.matching(ctx, c.filter, db.OpDistinct)
	if err != nil {
		return nil, err
	}
	return match.Distinct(docs, field), nil
}
