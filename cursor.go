package docmap

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/docmap/internal/db"
)

// Cursor is a lazy find result. Documents are fetched on first access and
// kept, so the cursor can be indexed and iterated repeatedly.
type Cursor struct {
	cur     db.Cursor
	docs    []Document
	fetched bool
}

func newCursor(cur db.Cursor) *Cursor {
	return &Cursor{cur: cur}
}

func (c *Cursor) load(ctx context.Context) error {
	if c.fetched {
		return nil
	}
	docs, err := c.cur.All(ctx)
	if err != nil {
		return err
	}
	c.docs = docs
	c.fetched = true
	return nil
}

// Count asks the store for the number of matches. With limited set the
// count respects Limit.
func (c *Cursor) Count(ctx context.Context, limited bool) (int64, error) {
	return c.cur.Count(ctx, limited)
}

// Len returns the number of fetched documents.
func (c *Cursor) Len(ctx context.Context) (int, error) {
	if err := c.load(ctx); err != nil {
		return 0, err
	}
	return len(c.docs), nil
}

// At returns the i-th document.
func (c *Cursor) At(ctx context.Context, i int) (Document, error) {
	if err := c.load(ctx); err != nil {
		return nil, err
	}
	if i < 0 || i >= len(c.docs) {
		return nil, fmt.Errorf("%w: index %d out of range [0, %d)", ErrInvalidUsage, i, len(c.docs))
	}
	return c.docs[i], nil
}

// All returns every document.
func (c *Cursor) All(ctx context.Context) ([]Document, error) {
	if err := c.load(ctx); err != nil {
		return nil, err
	}
	return c.docs, nil
}

// Each calls fn for every document in order and stops at the first error.
func (c *Cursor) Each(ctx context.Context, fn func(i int, doc Document) error) error {
	if err := c.load(ctx); err != nil {
		return err
	}
	for i, d := range c.docs {
		if err := fn(i, d); err != nil {
			return err
		}
	}
	return nil
}
