package mongo

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/kailas-cloud/docmap/internal/db"
)

func TestConnectionURI(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"defaults", Config{}, "mongodb://localhost:27017"},
		{"host and port", Config{Host: "db.internal", Port: 27018}, "mongodb://db.internal:27018"},
		{
			"credentials",
			Config{Host: "h", Port: 1, User: "app", Password: "p@ss", Database: "shop"},
			"mongodb://app:p%40ss@h:1?authSource=shop",
		},
		{"explicit uri", Config{URI: "mongodb://x:1/?replicaSet=rs0", Host: "ignored"}, "mongodb://x:1/?replicaSet=rs0"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cfg.ConnectionURI(); got != tc.want {
				t.Errorf("ConnectionURI() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNewStore_RequiresDatabase(t *testing.T) {
	_, err := NewStore(context.Background(), Config{})
	if !errors.Is(err, db.ErrNoDatabase) {
		t.Fatalf("err = %v, want ErrNoDatabase", err)
	}
}

func TestIndexKeys(t *testing.T) {
	def := db.NewIndex("Place").Ascending("a").Descending("b").Geo2D("loc").MustBuild()
	keys := indexKeys(def)
	want := bson.D{{Key: "a", Value: 1}, {Key: "b", Value: -1}, {Key: "loc", Value: "2d"}}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v", keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %v, want %v", i, keys[i], want[i])
		}
	}
}

func TestFindOptions(t *testing.T) {
	c := &cursor{projection: []string{"a", "b"}}
	narrowed := c.Sort("a", db.Descending).Limit(5).(*cursor)

	opts := narrowed.findOptions()
	if opts.Limit == nil || *opts.Limit != 5 {
		t.Errorf("limit = %v, want 5", opts.Limit)
	}
	sortDoc, ok := opts.Sort.(bson.D)
	if !ok || len(sortDoc) != 1 || sortDoc[0].Key != "a" || sortDoc[0].Value != -1 {
		t.Errorf("sort = %#v", opts.Sort)
	}
	proj, ok := opts.Projection.(bson.D)
	if !ok || len(proj) != 2 {
		t.Errorf("projection = %#v", opts.Projection)
	}
	if c.limit != 0 || c.sortField != "" {
		t.Error("Sort/Limit must not mutate the original cursor")
	}
	if projectionDoc(nil) != nil {
		t.Error("empty projection should be nil")
	}
}

func TestNormalizeValue(t *testing.T) {
	oid := primitive.NewObjectID()
	when := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	raw := bson.M{
		"_id":   oid,
		"n":     int32(7),
		"when":  primitive.NewDateTimeFromTime(when),
		"tags":  bson.A{"a", bson.M{"x": int32(1)}},
		"inner": bson.D{{Key: "k", Value: "v"}},
	}
	got := normalizeDocument(raw)

	if got["_id"] != oid.Hex() {
		t.Errorf("_id = %v, want hex", got["_id"])
	}
	if got["n"] != int64(7) {
		t.Errorf("n = %#v, want int64(7)", got["n"])
	}
	if got["when"] != when.Unix() {
		t.Errorf("when = %v, want %d", got["when"], when.Unix())
	}
	tags, ok := got["tags"].([]any)
	if !ok || len(tags) != 2 {
		t.Fatalf("tags = %#v", got["tags"])
	}
	if nested, ok := tags[1].(db.Document); !ok || nested["x"] != int64(1) {
		t.Errorf("tags[1] = %#v", tags[1])
	}
	if inner, ok := got["inner"].(db.Document); !ok || inner["k"] != "v" {
		t.Errorf("inner = %#v", got["inner"])
	}
}

func TestRemoveResult(t *testing.T) {
	res, err := removeResult(&mongo.DeleteResult{DeletedCount: 3}, nil)
	if err != nil || res.Removed != 3 || res.Err != "" {
		t.Errorf("success = (%+v, %v)", res, err)
	}

	we := mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 2, Message: "bad filter"}}}
	res, err = removeResult(nil, we)
	if err != nil {
		t.Fatalf("write exception must not be a transport error: %v", err)
	}
	if res.Err == "" {
		t.Error("expected RemoveResult.Err for write exception")
	}

	res, err = removeResult(nil, context.DeadlineExceeded)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
	if res.Err != "" {
		t.Errorf("res = %+v", res)
	}
}
