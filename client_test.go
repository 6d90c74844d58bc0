package docmap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/docmap/internal/db"
	"github.com/kailas-cloud/docmap/internal/db/memory"
	logpkg "github.com/kailas-cloud/docmap/internal/logger"
	"github.com/kailas-cloud/docmap/internal/metrics"
)

func TestClient_NoConnector(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Ping(context.Background()); !errors.Is(err, ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
	if _, err := c.Query("x").Count(context.Background()); !errors.Is(err, ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
}

func TestClient_ConnectsLazilyOnce(t *testing.T) {
	ctx := context.Background()
	c, gw := newTestClient(t)

	u := c.MustModel("User").New()
	mustSet(t, u, "name", "ann")
	_ = c.Query("User").Where(M{"name": "ann"}).String()
	if gw.connects != 0 {
		t.Fatalf("connected before first store operation")
	}

	if err := u.Save(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := c.MustModel("User").Count(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if err := c.Ping(ctx); err != nil {
		t.Fatal(err)
	}
	if gw.connects != 1 {
		t.Errorf("connects = %d, want 1", gw.connects)
	}
}

type notReadyGateway struct {
	*memory.Store
	closed bool
}

func (g *notReadyGateway) WaitForReady(context.Context, time.Duration) error {
	return errors.New("still starting")
}

func (g *notReadyGateway) Close(context.Context) error {
	g.closed = true
	return nil
}

func TestClient_ConnectFailures(t *testing.T) {
	ctx := context.Background()

	failing, _ := New(WithConnector(db.ConnectorFunc(func(context.Context) (db.Gateway, error) {
		return nil, errors.New("refused")
	})))
	if err := failing.Ping(ctx); err == nil {
		t.Error("expected connect error")
	}

	gw := &notReadyGateway{Store: memory.New("x")}
	slow, _ := New(
		WithConnector(db.ConnectorFunc(func(context.Context) (db.Gateway, error) { return gw, nil })),
		WithReadinessTimeout(time.Millisecond),
	)
	if err := slow.Ping(ctx); err == nil {
		t.Error("expected readiness error")
	}
	if !gw.closed {
		t.Error("gateway not closed after readiness failure")
	}
}

func TestClient_RetriesFailedConnect(t *testing.T) {
	store := memory.New("retry")
	attempts := 0
	c, err := New(WithConnector(db.ConnectorFunc(func(ctx context.Context) (db.Gateway, error) {
		attempts++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return store, nil
	})))
	if err != nil {
		t.Fatal(err)
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Query("items").Count(cancelled); !errors.Is(err, context.Canceled) {
		t.Fatalf("first Count err = %v, want context.Canceled", err)
	}
	if _, err := c.Query("items").Count(context.Background()); err != nil {
		t.Fatalf("second Count err = %v", err)
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2 (no reconnect once established)", attempts)
	}
}

func TestClient_CloseAfterUse(t *testing.T) {
	c, gw := newTestClient(t)
	ctx := context.Background()
	if err := c.Ping(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.Ping(ctx); !errors.Is(err, ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
	if gw.connects != 1 {
		t.Errorf("connects = %d, want 1", gw.connects)
	}
}

func TestClient_CloseBeforeUse(t *testing.T) {
	c, gw := newTestClient(t)
	if err := c.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.Ping(context.Background()); !errors.Is(err, ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
	if gw.connects != 0 {
		t.Error("closed client connected")
	}
}

func TestClient_RegisterAndModel(t *testing.T) {
	c, _ := newTestClient(t)
	if _, err := c.Model("Ghost"); !errors.Is(err, ErrUnknownType) {
		t.Errorf("err = %v", err)
	}
	if err := c.Register(NewSchema("Tag")); !errors.Is(err, ErrInvalidUsage) {
		t.Errorf("duplicate register err = %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Error("MustModel should panic for unknown names")
		}
	}()
	c.MustModel("Ghost")
}

func TestClient_SharedRegistry(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(testSchemas()...)
	a, _ := New(WithRegistry(r), WithMemory("a"))
	b, _ := New(WithRegistry(r), WithMemory("b"))
	if a.Registry() != b.Registry() {
		t.Error("registry not shared")
	}
	if _, err := b.Model("User"); err != nil {
		t.Error(err)
	}
}

func TestClient_BuildIndexes(t *testing.T) {
	ctx := context.Background()
	c, gw := newTestClient(t)
	if err := c.BuildIndexes(ctx); err != nil {
		t.Fatal(err)
	}

	for coll, want := range map[string]string{"User": "name_1", "Tag": "name_1"} {
		defs := gw.Store.Indexes(coll)
		if len(defs) != 1 || defs[0].Name != want {
			t.Errorf("%s indexes = %v", coll, defs)
		}
	}
	if defs := gw.Store.Indexes("Address"); len(defs) != 0 {
		t.Errorf("embedded schema got indexes: %v", defs)
	}

	// Re-running is a no-op.
	if err := c.BuildIndexes(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestClient_StatsAndDrop(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	saveUser(t, c, "ann", 1)

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats["objects"] != 1 {
		t.Errorf("stats = %v", stats)
	}
	if err := c.Drop(ctx); err != nil {
		t.Fatal(err)
	}
	if n, _ := c.MustModel("User").Count(ctx, nil); n != 0 {
		t.Errorf("count after drop = %d", n)
	}
}

func TestClient_QueryLogging(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.InfoLevel)
	c, err := New(WithMemory("log"), WithLogger(zap.New(core)), WithQueryLogging(true))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Query("things").Where(M{"a": 1}).Sort("a", Ascending).Limit(2).Execute(ctx); err != nil {
		t.Fatal(err)
	}

	entries := logs.FilterMessage("query").All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["op"] != "find" || fields["collection"] != "things" || fields["sort"] != "a" || fields["limit"] != int64(2) {
		t.Errorf("fields = %v", fields)
	}

	quiet, _ := New(WithMemory("quiet"), WithLogger(zap.New(core)))
	if _, err := quiet.Query("things").Count(ctx); err != nil {
		t.Fatal(err)
	}
	if n := logs.FilterMessage("query").Len(); n != 1 {
		t.Errorf("query logged at info without query logging: %d entries", n)
	}
}

func TestClient_QueryLoggingUsesContextLogger(t *testing.T) {
	clientCore, clientLogs := observer.New(zapcore.InfoLevel)
	reqCore, reqLogs := observer.New(zapcore.InfoLevel)
	c, err := New(WithMemory("ctxlog"), WithLogger(zap.New(clientCore)), WithQueryLogging(true))
	if err != nil {
		t.Fatal(err)
	}

	ctx := logpkg.ContextWithLogger(context.Background(), zap.New(reqCore).With(zap.String("request_id", "r1")))
	if _, err := c.Query("things").Count(ctx); err != nil {
		t.Fatal(err)
	}
	if clientLogs.Len() != 0 || reqLogs.Len() != 1 {
		t.Fatalf("client entries = %d, request entries = %d", clientLogs.Len(), reqLogs.Len())
	}
	if got := reqLogs.All()[0].ContextMap()["request_id"]; got != "r1" {
		t.Errorf("request_id = %v", got)
	}
}

func TestClient_Metrics(t *testing.T) {
	ctx := context.Background()
	c, err := New(WithMemory("metrics"), WithMetrics())
	if err != nil {
		t.Fatal(err)
	}
	ok := metrics.QueriesTotal.WithLabelValues("count", "metered", metrics.StatusOK)
	before := testutil.ToFloat64(ok)

	if _, err := c.Query("metered").Count(ctx); err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(ok) - before; got != 1 {
		t.Errorf("ok count delta = %v, want 1", got)
	}

	if _, err := c.Query("metered").Insert(M{"a": 1}).Execute(ctx); err != nil {
		t.Fatal(err)
	}
	failed := metrics.QueriesTotal.WithLabelValues("count", "metered", metrics.StatusError)
	beforeErr := testutil.ToFloat64(failed)
	if _, err := c.Query("metered").Where(M{"a": M{"$bogus": 1}}).Count(ctx); err == nil {
		t.Fatal("expected an evaluation error")
	}
	if got := testutil.ToFloat64(failed) - beforeErr; got != 1 {
		t.Errorf("error count delta = %v, want 1", got)
	}
}
