package match

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/docmap/internal/db"
)

func TestMatches(t *testing.T) {
	doc := db.Document{
		"_id":   "a1",
		"n":     int64(5),
		"name":  "alice",
		"tags":  []any{"x", "y"},
		"ok":    true,
		"home":  db.Document{"city": "Paris"},
		"score": 2.5,
	}

	tests := []struct {
		name   string
		filter db.Document
		want   bool
	}{
		{"empty", nil, true},
		{"equality", db.Document{"name": "alice"}, true},
		{"equality miss", db.Document{"name": "bob"}, false},
		{"int vs float equality", db.Document{"n": 5.0}, true},
		{"array contains", db.Document{"tags": "y"}, true},
		{"dotted path", db.Document{"home.city": "Paris"}, true},
		{"missing equals nil", db.Document{"gone": nil}, true},
		{"gt", db.Document{"n": db.Document{"$gt": 4}}, true},
		{"gte boundary", db.Document{"n": db.Document{"$gte": 5}}, true},
		{"lt miss", db.Document{"n": db.Document{"$lt": 5}}, false},
		{"lte", db.Document{"score": db.Document{"$lte": 2.5}}, true},
		{"range both", db.Document{"n": db.Document{"$gt": 1, "$lt": 10}}, true},
		{"gt across types never matches", db.Document{"name": db.Document{"$gt": 1}}, false},
		{"in", db.Document{"n": db.Document{"$in": []any{1, 5}}}, true},
		{"in typed slice", db.Document{"name": db.Document{"$in": []string{"bob", "alice"}}}, true},
		{"nin", db.Document{"n": db.Document{"$nin": []any{1, 5}}}, false},
		{"exists", db.Document{"home": db.Document{"$exists": true}}, true},
		{"not exists", db.Document{"gone": db.Document{"$exists": false}}, true},
		{"ne", db.Document{"name": db.Document{"$ne": "bob"}}, true},
		{"regex", db.Document{"name": db.Document{"$regex": "^al"}}, true},
		{"regex options", db.Document{"name": db.Document{"$regex": "^AL", "$options": "i"}}, true},
		{"and", db.Document{"$and": []any{db.Document{"n": int64(5)}, db.Document{"ok": true}}}, true},
		{"and miss", db.Document{"$and": []any{db.Document{"n": int64(5)}, db.Document{"ok": false}}}, false},
		{"or", db.Document{"$or": []any{db.Document{"n": 1}, db.Document{"name": "alice"}}}, true},
		{"or miss", db.Document{"$or": []db.Document{{"n": 1}, {"name": "bob"}}}, false},
		{"nor", db.Document{"$nor": []any{db.Document{"n": 1}}}, true},
		{"not", db.Document{"n": db.Document{"$not": db.Document{"$gt": 10}}}, true},
		{"literal subdocument", db.Document{"home": db.Document{"city": "Paris"}}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Matches(doc, tc.filter)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("Matches(%v) = %v, want %v", tc.filter, got, tc.want)
			}
		})
	}
}

func TestMatches_Errors(t *testing.T) {
	doc := db.Document{"n": 1}
	tests := []db.Document{
		{"n": db.Document{"$near": 1}},
		{"$where": "this.n > 1"},
		{"$and": "nope"},
		{"n": db.Document{"$in": 3}},
		{"n": db.Document{"$regex": "("}},
	}
	for _, f := range tests {
		if _, err := Matches(doc, f); err == nil {
			t.Errorf("Matches(%v): expected error", f)
		}
	}
	_, err := Matches(doc, db.Document{"n": db.Document{"$near": 1}})
	if !errors.Is(err, ErrUnsupportedOperator) {
		t.Errorf("err = %v, want ErrUnsupportedOperator", err)
	}
}

func TestApply(t *testing.T) {
	doc := db.Document{"_id": "a", "n": int64(1), "f": 1.5, "gone": "x"}
	err := Apply(doc, db.Document{
		"$set":   db.Document{"name": "bob", "home.city": "Oslo", "_id": "hijack"},
		"$unset": db.Document{"gone": 1},
		"$inc":   db.Document{"n": 2, "f": 1, "fresh": -1},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if doc["_id"] != "a" {
		t.Errorf("_id changed to %v", doc["_id"])
	}
	if doc["name"] != "bob" {
		t.Errorf("name = %v", doc["name"])
	}
	if city, _ := Lookup(doc, "home.city"); city != "Oslo" {
		t.Errorf("home.city = %v", city)
	}
	if _, ok := doc["gone"]; ok {
		t.Error("gone should be unset")
	}
	if doc["n"] != int64(3) {
		t.Errorf("n = %#v, want int64(3)", doc["n"])
	}
	if doc["f"] != 2.5 {
		t.Errorf("f = %#v, want 2.5", doc["f"])
	}
	if doc["fresh"] != -1 {
		t.Errorf("fresh = %#v, want -1", doc["fresh"])
	}
}

func TestApply_Errors(t *testing.T) {
	doc := db.Document{"s": "text"}
	if err := Apply(doc, db.Document{"$inc": db.Document{"s": 1}}); err == nil {
		t.Error("expected error incrementing a string")
	}
	if err := Apply(doc, db.Document{"$push": db.Document{"s": 1}}); !errors.Is(err, ErrUnsupportedOperator) {
		t.Errorf("err = %v, want ErrUnsupportedOperator", err)
	}
	if err := Apply(doc, db.Document{"$set": 1}); err == nil {
		t.Error("expected error for non-document $set")
	}
}

func TestSortDocuments(t *testing.T) {
	docs := []db.Document{
		{"k": 2}, {"k": "b"}, {"k": 10.5}, {}, {"k": int64(1)},
	}
	SortDocuments(docs, "k", db.Ascending)
	want := []any{nil, int64(1), 2, 10.5, "b"}
	for i, d := range docs {
		if Compare(d["k"], want[i]) != 0 {
			t.Fatalf("asc[%d] = %v, want %v", i, d["k"], want[i])
		}
	}

	SortDocuments(docs, "k", db.Descending)
	if docs[0]["k"] != "b" {
		t.Errorf("desc[0] = %v, want b", docs[0]["k"])
	}
}

func TestProject(t *testing.T) {
	doc := db.Document{"_id": 1, "a": 1, "b": 2, "c": db.Document{"d": 3, "e": 4}}
	got := Project(doc, []string{"a", "c.d"})
	if len(got) != 3 || got["a"] != 1 || got["_id"] != 1 {
		t.Errorf("Project = %v", got)
	}
	if d, _ := Lookup(got, "c.d"); d != 3 {
		t.Errorf("c.d = %v", d)
	}
	if _, ok := Lookup(got, "c.e"); ok {
		t.Error("c.e should be projected out")
	}
	if all := Project(doc, nil); len(all) != 4 {
		t.Errorf("nil projection should keep everything, got %v", all)
	}
}

func TestCloneDocument(t *testing.T) {
	src := db.Document{"list": []any{db.Document{"x": 1}}, "m": map[string]any{"y": 2}}
	cp := CloneDocument(src)
	cp["list"].([]any)[0].(db.Document)["x"] = 99
	cp["m"].(db.Document)["y"] = 99
	if src["list"].([]any)[0].(db.Document)["x"] != 1 {
		t.Error("clone aliases nested list document")
	}
	if src["m"].(map[string]any)["y"] != 2 {
		t.Error("clone aliases nested map")
	}
}
