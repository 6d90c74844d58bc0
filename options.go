package docmap

import (
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docmap/internal/db"
	"github.com/kailas-cloud/docmap/internal/db/memory"
	dbMongo "github.com/kailas-cloud/docmap/internal/db/mongo"
	dbRedis "github.com/kailas-cloud/docmap/internal/db/redis"
)

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	connector        db.Connector
	logger           *zap.Logger
	queryLogging     bool
	metrics          bool
	readinessTimeout time.Duration
	registry         *Registry
	schemas          []*Schema
}

// WithMongo connects to MongoDB with a connection URI and database name.
func WithMongo(uri, database string) Option {
	return func(c *clientConfig) {
		c.connector = dbMongo.Config{URI: uri, Database: database}
	}
}

// WithMongoHost connects to MongoDB by host and port; user may be empty.
func WithMongoHost(host string, port int, database, user, password string) Option {
	return func(c *clientConfig) {
		c.connector = dbMongo.Config{
			Host: host, Port: port, Database: database,
			User: user, Password: password,
		}
	}
}

// WithRedis stores documents as JSON values in Redis or Valkey.
func WithRedis(keyPrefix string, addrs ...string) Option {
	return func(c *clientConfig) {
		c.connector = dbRedis.Config{Addrs: addrs, KeyPrefix: keyPrefix}
	}
}

// WithRedisAuth is WithRedis with ACL credentials; user may be empty.
func WithRedisAuth(keyPrefix, user, password string, addrs ...string) Option {
	return func(c *clientConfig) {
		c.connector = dbRedis.Config{Addrs: addrs, Username: user, Password: password, KeyPrefix: keyPrefix}
	}
}

// WithMemory uses a process-local store, mainly for tests.
func WithMemory(name string) Option {
	return func(c *clientConfig) {
		c.connector = memory.New(name).Connector()
	}
}

// WithConnector sets the gateway connector directly.
func WithConnector(conn db.Connector) Option {
	return func(c *clientConfig) { c.connector = conn }
}

// WithLogger sets the logger used by the query monitor.
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}

// WithQueryLogging logs every query at info level instead of debug.
func WithQueryLogging(enabled bool) Option {
	return func(c *clientConfig) { c.queryLogging = enabled }
}

// WithMetrics records query metrics in the docmap Prometheus collectors.
func WithMetrics() Option {
	return func(c *clientConfig) { c.metrics = true }
}

// WithReadinessTimeout bounds the wait for the store on first connect.
func WithReadinessTimeout(d time.Duration) Option {
	return func(c *clientConfig) { c.readinessTimeout = d }
}

// WithRegistry shares a schema registry between clients.
func WithRegistry(r *Registry) Option {
	return func(c *clientConfig) { c.registry = r }
}

// WithSchemas registers schemas when the client is created.
func WithSchemas(schemas ...*Schema) Option {
	return func(c *clientConfig) { c.schemas = append(c.schemas, schemas...) }
}
