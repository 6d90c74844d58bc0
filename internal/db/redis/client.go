// Package redis implements the gateway on Redis/Valkey with the JSON module:
// every document is a JSON value under "<prefix><collection>:<id>".
package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/docmap/internal/db"
)

// Compile-time check: Store implements db.Gateway.
var _ db.Gateway = (*Store)(nil)

const defaultKeyPrefix = "docmap:"

// Config holds connection parameters for a Redis store.
type Config struct {
	Addrs     []string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
}

// Connect implements db.Connector.
func (cfg Config) Connect(_ context.Context) (db.Gateway, error) {
	return NewStore(cfg)
}

// Store implements db.Gateway via rueidis.
type Store struct {
	client rueidis.Client
	prefix string
}

// NewStore creates a Redis store via rueidis.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, &db.Error{Op: db.OpConnect, Err: fmt.Errorf("addrs is required")}
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, &db.Error{Op: db.OpConnect, Err: fmt.Errorf("failed to create client: %w", err)}
	}

	return newStore(client, cfg.KeyPrefix), nil
}

func newStore(client rueidis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// Collection returns a handle on the named collection.
func (s *Store) Collection(name string) db.Collection {
	return &Collection{store: s, name: name}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	return db.WaitForReady(ctx, timeout, s.Ping)
}

// Close shuts down the client.
func (s *Store) Close(context.Context) error {
	s.client.Close()
	return nil
}

// Stats reports the number of documents and collections under the prefix.
func (s *Store) Stats(ctx context.Context) (db.Document, error) {
	keys, err := s.scan(ctx, s.prefix+"*")
	if err != nil {
		return nil, &db.Error{Op: db.OpStats, Err: err}
	}
	collections := make(map[string]struct{})
	objects := 0
	for _, k := range keys {
		coll, ok := s.collectionOf(k)
		if !ok {
			continue
		}
		collections[coll] = struct{}{}
		objects++
	}
	return db.Document{
		"prefix":      s.prefix,
		"collections": len(collections),
		"objects":     objects,
	}, nil
}

// Drop deletes every key under the prefix.
func (s *Store) Drop(ctx context.Context) error {
	keys, err := s.scan(ctx, s.prefix+"*")
	if err != nil {
		return &db.Error{Op: db.OpDrop, Err: err}
	}
	if len(keys) == 0 {
		return nil
	}
	cmd := s.client.B().Del().Key(keys...).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpDrop, Err: err}
	}
	return nil
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

// scan iterates keys matching a pattern.
func (s *Store) scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64

	for {
		cmd := s.b().Scan().Cursor(cursor).Match(pattern).Count(100).Build()
		res, err := s.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, err
		}
		keys = append(keys, res.Elements...)
		cursor = res.Cursor
		if cursor == 0 {
			break
		}
	}

	return keys, nil
}

// isRedisErr checks if err is a Redis server error containing substr (case-insensitive).
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}

// moduleErr explains an unknown JSON.* command: the server lacks the JSON module.
func moduleErr(err error) error {
	if isRedisErr(err, "unknown command") {
		return fmt.Errorf("%w: JSON module not loaded: %w", db.ErrUnsupported, err)
	}
	return err
}
