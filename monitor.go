package docmap

import (
	"context"
	"time"

	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/docmap/internal/logger"
	"github.com/kailas-cloud/docmap/internal/metrics"
)

// queryMonitor times one store operation. done must run on every exit path.
type queryMonitor struct {
	client     *Client
	logger     *zap.Logger
	op         string
	collection string
	fields     []zap.Field
	start      time.Time
}

// monitor prefers a request-scoped logger carried by ctx over the client's.
func (c *Client) monitor(ctx context.Context, op, collection string, fields ...zap.Field) *queryMonitor {
	return &queryMonitor{
		client:     c,
		logger:     logpkg.FromContext(ctx, c.logger),
		op:         op,
		collection: collection,
		fields:     fields,
		start:      time.Now(),
	}
}

// done logs the operation and records metrics.
func (m *queryMonitor) done(err error) {
	d := time.Since(m.start)
	if m.client.cfg.metrics {
		metrics.ObserveQuery(m.op, m.collection, err != nil, d)
	}

	fields := make([]zap.Field, 0, len(m.fields)+4)
	fields = append(fields,
		zap.String("op", m.op),
		zap.String("collection", m.collection),
		zap.Duration("duration", d),
	)
	fields = append(fields, m.fields...)
	if err != nil {
		fields = append(fields, zap.Error(err))
	}

	log := m.logger
	if m.client.cfg.queryLogging {
		log.Info("query", fields...)
		return
	}
	log.Debug("query", fields...)
}
