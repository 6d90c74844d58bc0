// Package docmap is an object-document mapper: schemas map entity types to
// collections, entities track their own changes, and a fluent Query
// compiles to the store's operator documents.
package docmap

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docmap/internal/db"
	"github.com/kailas-cloud/docmap/internal/metrics"
)

const defaultReadinessTimeout = 10 * time.Second

// Client is the docmap entry point. It connects lazily on the first
// operation that needs the store. A failed connect is not remembered, so the
// next operation tries again; an established gateway is never replaced.
type Client struct {
	cfg      clientConfig
	registry *Registry
	logger   *zap.Logger

	mu     sync.Mutex
	gw     db.Gateway
	closed bool
}

// New creates a Client. No connection is made until first use.
func New(opts ...Option) (*Client, error) {
	cfg := clientConfig{readinessTimeout: defaultReadinessTimeout}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.registry == nil {
		cfg.registry = NewRegistry()
	}
	if cfg.metrics {
		metrics.RegisterQueryMetrics()
	}

	c := &Client{cfg: cfg, registry: cfg.registry, logger: cfg.logger}
	if len(cfg.schemas) > 0 {
		if err := c.Register(cfg.schemas...); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// gateway returns the shared store handle, connecting if no earlier call
// succeeded.
func (c *Client) gateway(ctx context.Context) (db.Gateway, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.closed:
		return nil, fmt.Errorf("%w: client is closed", ErrConfiguration)
	case c.gw != nil:
		return c.gw, nil
	case c.cfg.connector == nil:
		return nil, fmt.Errorf("%w: no connection parameters (use WithMongo, WithRedis or WithMemory)", ErrConfiguration)
	}

	gw, err := c.cfg.connector.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("docmap: connect: %w", err)
	}
	if err := gw.WaitForReady(ctx, c.cfg.readinessTimeout); err != nil {
		_ = gw.Close(ctx)
		return nil, fmt.Errorf("docmap: database not ready: %w", err)
	}
	c.gw = gw
	return gw, nil
}

func (c *Client) collection(ctx context.Context, name string) (db.Collection, error) {
	gw, err := c.gateway(ctx)
	if err != nil {
		return nil, err
	}
	return gw.Collection(name), nil
}

// Registry returns the schema registry.
func (c *Client) Registry() *Registry { return c.registry }

// Register adds schemas to the registry.
func (c *Client) Register(schemas ...*Schema) error {
	return c.registry.Register(schemas...)
}

// Model binds a registered schema to this client.
func (c *Client) Model(name string) (*Model, error) {
	s, err := c.registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	return &Model{client: c, schema: s}, nil
}

// MustModel is like Model but panics for unknown names.
func (c *Client) MustModel(name string) *Model {
	m, err := c.Model(name)
	if err != nil {
		panic(err)
	}
	return m
}

// Query starts a query on a collection.
func (c *Client) Query(collection string) *Query {
	return newQuery(c, collection)
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) error {
	gw, err := c.gateway(ctx)
	if err != nil {
		return err
	}
	if err := gw.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// BuildIndexes ensures every index declared by a registered schema.
func (c *Client) BuildIndexes(ctx context.Context) error {
	gw, err := c.gateway(ctx)
	if err != nil {
		return err
	}
	for _, s := range c.registry.Schemas() {
		if s.Embedded {
			continue
		}
		for _, def := range s.Indexes() {
			mon := c.monitor(ctx, "ensure_index", s.Collection(), zap.String("index", def.Name))
			err := gw.Collection(s.Collection()).EnsureIndex(ctx, def)
			mon.done(err)
			if err != nil {
				return fmt.Errorf("build index %s on %s: %w", def.Name, s.Name, err)
			}
		}
	}
	return nil
}

// Stats returns store statistics.
func (c *Client) Stats(ctx context.Context) (Document, error) {
	gw, err := c.gateway(ctx)
	if err != nil {
		return nil, err
	}
	return gw.Stats(ctx)
}

// Drop deletes the whole database.
func (c *Client) Drop(ctx context.Context) error {
	gw, err := c.gateway(ctx)
	if err != nil {
		return err
	}
	c.logger.Warn("dropping database")
	return gw.Drop(ctx)
}

// Close releases the connection. A closed client never connects again.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.gw == nil {
		return nil
	}
	gw := c.gw
	c.gw = nil
	return gw.Close(ctx)
}
