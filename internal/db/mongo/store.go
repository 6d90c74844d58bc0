// Package mongo implements the gateway on MongoDB via the official driver.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mopt "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kailas-cloud/docmap/internal/db"
)

// Compile-time check: Store implements db.Gateway.
var _ db.Gateway = (*Store)(nil)

const (
	// DefaultHost and DefaultPort are used when Config leaves them empty.
	DefaultHost = "localhost"
	DefaultPort = 27017

	defaultConnectTimeout = 10 * time.Second
)

// Config holds connection parameters. URI, when set, wins over Host/Port/User/Password.
type Config struct {
	URI            string
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	ConnectTimeout time.Duration
}

// ConnectionURI builds the mongodb:// URI for cfg.
func (cfg Config) ConnectionURI() string {
	if cfg.URI != "" {
		return cfg.URI
	}
	host := cfg.Host
	if host == "" {
		host = DefaultHost
	}
	port := cfg.Port
	if port <= 0 {
		port = DefaultPort
	}
	u := url.URL{Scheme: "mongodb", Host: net.JoinHostPort(host, strconv.Itoa(port))}
	if cfg.User != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
		if cfg.Database != "" {
			u.RawQuery = "authSource=" + url.QueryEscape(cfg.Database)
		}
	}
	return u.String()
}

// Connect implements db.Connector.
func (cfg Config) Connect(ctx context.Context) (db.Gateway, error) {
	return NewStore(ctx, cfg)
}

// Store is a MongoDB-backed gateway bound to one database.
type Store struct {
	client   *mongo.Client
	database *mongo.Database
}

// NewStore connects and pings the server.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Database == "" {
		return nil, &db.Error{Op: db.OpConnect, Err: db.ErrNoDatabase}
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	opts := mopt.Client().ApplyURI(cfg.ConnectionURI())
	opts.SetConnectTimeout(timeout).SetServerSelectionTimeout(timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, &db.Error{Op: db.OpConnect, Err: err}
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, &db.Error{Op: db.OpPing, Err: err}
	}
	return &Store{client: client, database: client.Database(cfg.Database)}, nil
}

// Collection returns a handle on the named collection.
func (s *Store) Collection(name string) db.Collection {
	return &Collection{coll: s.database.Collection(name)}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// WaitForReady polls Ping until the server responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	return db.WaitForReady(ctx, timeout, s.Ping)
}

// Stats runs dbStats.
func (s *Store) Stats(ctx context.Context) (db.Document, error) {
	var out bson.M
	if err := s.database.RunCommand(ctx, bson.D{{Key: "dbStats", Value: 1}}).Decode(&out); err != nil {
		return nil, &db.Error{Op: db.OpStats, Err: err}
	}
	return normalizeDocument(out), nil
}

// Drop drops the whole database.
func (s *Store) Drop(ctx context.Context) error {
	if err := s.database.Drop(ctx); err != nil {
		return &db.Error{Op: db.OpDrop, Err: err}
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Collection wraps a driver collection.
type Collection struct {
	coll *mongo.Collection
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.coll.Name() }

// Find returns a cursor; the query runs when the cursor is read.
func (c *Collection) Find(_ context.Context, filter db.Document, projection []string) (db.Cursor, error) {
	return &cursor{coll: c.coll, filter: filterOrEmpty(filter), projection: projection}, nil
}

// Insert inserts docs in one round trip.
func (c *Collection) Insert(ctx context.Context, docs ...db.Document) ([]any, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	list := make([]any, len(docs))
	for i, d := range docs {
		list[i] = d
	}
	res, err := c.coll.InsertMany(ctx, list)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, &db.Error{Op: db.OpInsert, Err: fmt.Errorf("%w: %w", db.ErrDuplicateKey, err)}
		}
		return nil, &db.Error{Op: db.OpInsert, Err: err}
	}
	ids := make([]any, len(res.InsertedIDs))
	for i, id := range res.InsertedIDs {
		ids[i] = normalizeValue(id)
	}
	return ids, nil
}

// Update applies ops to every matching document.
func (c *Collection) Update(ctx context.Context, filter, ops db.Document) (int64, error) {
	res, err := c.coll.UpdateMany(ctx, filterOrEmpty(filter), ops)
	if err != nil {
		return 0, &db.Error{Op: db.OpUpdate, Err: err}
	}
	return res.MatchedCount, nil
}

// UpdateOne applies ops to the first matching document.
func (c *Collection) UpdateOne(ctx context.Context, filter, ops db.Document) (int64, error) {
	res, err := c.coll.UpdateOne(ctx, filterOrEmpty(filter), ops)
	if err != nil {
		return 0, &db.Error{Op: db.OpUpdate, Err: err}
	}
	return res.MatchedCount, nil
}

// Remove deletes matching documents. Server-side write errors are reported
// in RemoveResult.Err; anything else is a transport failure.
func (c *Collection) Remove(ctx context.Context, filter db.Document) (db.RemoveResult, error) {
	res, err := c.coll.DeleteMany(ctx, filterOrEmpty(filter))
	return removeResult(res, err)
}

func removeResult(res *mongo.DeleteResult, err error) (db.RemoveResult, error) {
	if err != nil {
		var we mongo.WriteException
		if errors.As(err, &we) {
			return db.RemoveResult{Err: we.Error()}, nil
		}
		var cmdErr mongo.CommandError
		if errors.As(err, &cmdErr) {
			return db.RemoveResult{Err: cmdErr.Error()}, nil
		}
		return db.RemoveResult{}, &db.Error{Op: db.OpRemove, Err: err}
	}
	if res == nil {
		return db.RemoveResult{}, nil
	}
	return db.RemoveResult{Removed: res.DeletedCount}, nil
}

// Count counts matching documents; a nil filter uses the collection metadata count.
func (c *Collection) Count(ctx context.Context, filter db.Document) (int64, error) {
	var (
		n   int64
		err error
	)
	if filter == nil {
		n, err = c.coll.EstimatedDocumentCount(ctx)
	} else {
		n, err = c.coll.CountDocuments(ctx, filter)
	}
	if err != nil {
		return 0, &db.Error{Op: db.OpCount, Err: err}
	}
	return n, nil
}

// EnsureIndex creates the index if it does not exist (createIndexes is idempotent).
func (c *Collection) EnsureIndex(ctx context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return &db.Error{Op: db.OpEnsureIndex, Err: err}
	}
	opts := mopt.Index()
	if def.Name != "" {
		opts.SetName(def.Name)
	}
	if def.Unique {
		opts.SetUnique(true)
	}
	model := mongo.IndexModel{Keys: indexKeys(def), Options: opts}
	if _, err := c.coll.Indexes().CreateOne(ctx, model); err != nil {
		return &db.Error{Op: db.OpEnsureIndex, Err: err}
	}
	return nil
}

func indexKeys(def *db.IndexDefinition) bson.D {
	keys := make(bson.D, 0, len(def.Fields))
	for _, f := range def.Fields {
		var v any
		switch f.Kind {
		case db.IndexDescending:
			v = -1
		case db.IndexGeo2D:
			v = "2d"
		default:
			v = 1
		}
		keys = append(keys, bson.E{Key: f.Name, Value: v})
	}
	return keys
}

func filterOrEmpty(filter db.Document) db.Document {
	if filter == nil {
		return db.Document{}
	}
	return filter
}
