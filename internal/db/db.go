// Package db defines the document store gateway the mapper runs against.
// Backends live in sub-packages (mongo, redis, memory).
package db

import (
	"context"
	"fmt"
	"time"
)

// IDAlias is the field under which stores keep a document identity.
const IDAlias = "_id"

// Document is the generic serialization boundary: field name to value.
// Nested objects are Documents, ordered collections are []any.
type Document map[string]any

// Direction is a sort direction understood by every backend.
type Direction int

const (
	// Ascending sorts smallest first.
	Ascending Direction = 1
	// Descending sorts largest first.
	Descending Direction = -1
)

// RemoveResult reports what a remove did. Err is set when the store
// processed the request but flagged it as failed.
type RemoveResult struct {
	Removed int64
	Err     string
}

// Connector establishes a Gateway.
type Connector interface {
	Connect(ctx context.Context) (Gateway, error)
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context) (Gateway, error)

// Connect calls f.
func (f ConnectorFunc) Connect(ctx context.Context) (Gateway, error) { return f(ctx) }

// Gateway owns the connection and hands out collection handles.
//
//nolint:interfacebloat // facade by design -- the mapper only needs Collection on hot paths
type Gateway interface {
	Collection(name string) Collection
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (Document, error)
	Drop(ctx context.Context) error
	Close(ctx context.Context) error
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Collection is a handle scoped to one named collection.
type Collection interface {
	Name() string
	Find(ctx context.Context, filter Document, projection []string) (Cursor, error)
	Insert(ctx context.Context, docs ...Document) ([]any, error)
	// Update applies ops to every match; UpdateOne to the first match only.
	// Both return the matched count.
	Update(ctx context.Context, filter, ops Document) (int64, error)
	UpdateOne(ctx context.Context, filter, ops Document) (int64, error)
	Remove(ctx context.Context, filter Document) (RemoveResult, error)
	// Count with a nil filter counts the whole collection.
	Count(ctx context.Context, filter Document) (int64, error)
	EnsureIndex(ctx context.Context, def *IndexDefinition) error
}

// Cursor is a pending find. Sort and Limit return the narrowed cursor;
// nothing is fetched before Count, All or Distinct.
type Cursor interface {
	Sort(field string, dir Direction) Cursor
	Limit(n int) Cursor
	// Count reports the matched total, or the limited count when limited is true.
	Count(ctx context.Context, limited bool) (int64, error)
	All(ctx context.Context) ([]Document, error)
	Distinct(ctx context.Context, field string) ([]any, error)
}

// WaitForReady polls ping until it succeeds or timeout expires.
func WaitForReady(ctx context.Context, timeout time.Duration, ping func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if err := ping(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
