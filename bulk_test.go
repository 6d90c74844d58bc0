package docmap

import (
	"context"
	"errors"
	"testing"

	"github.com/goccy/go-json"
)

func TestBulk_SaveAndDelete(t *testing.T) {
	ctx := context.Background()
	c, gw := newTestClient(t)
	m := c.MustModel("Tag")

	items := make([]*Entity, 3)
	for i, n := range []string{"a", "b", "c"} {
		items[i] = m.New()
		mustSet(t, items[i], "name", n)
	}
	b, err := NewBulk(items...)
	if err != nil {
		t.Fatal(err)
	}
	if b.Len() != 3 {
		t.Errorf("Len() = %d", b.Len())
	}
	if err := b.Save(ctx); err != nil {
		t.Fatal(err)
	}

	spy := gw.spy("Tag")
	if len(spy.inserts) != 1 || len(spy.inserts[0]) != 3 {
		t.Fatalf("inserts = %v, want one call with 3 documents", spy.inserts)
	}
	stored := spy.inserts[0][0]
	if _, ok := stored[ClassKey]; ok || stored["_id"] == nil {
		t.Errorf("stored = %v", stored)
	}
	for _, e := range b.Items() {
		if e.IsNew() {
			t.Error("saved entity still new")
		}
		loaded, err := m.Find(ctx, e.ID())
		if err != nil || loaded == nil || !loaded.Equals(e) {
			t.Errorf("Find(%v) = %v, %v", e.ID(), loaded, err)
		}
	}

	n, err := b.Delete(ctx)
	if err != nil || n != 3 {
		t.Fatalf("Delete = %d, %v", n, err)
	}
	if len(spy.removes) != 1 {
		t.Errorf("removes = %d, want 1", len(spy.removes))
	}
	if left, _ := m.Count(ctx, nil); left != 0 {
		t.Errorf("left = %d", left)
	}
}

func TestBulk_RejectsMixedInput(t *testing.T) {
	c, _ := newTestClient(t)
	tag := c.MustModel("Tag").New()
	note := c.MustModel("Note").New()
	addr := c.MustModel("Address").New()

	tests := []struct {
		name  string
		items []*Entity
	}{
		{"mixed schemas", []*Entity{tag, note}},
		{"nil item", []*Entity{tag, nil}},
		{"embedded", []*Entity{addr}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewBulk(tt.items...); !errors.Is(err, ErrInvalidUsage) {
				t.Errorf("err = %v, want ErrInvalidUsage", err)
			}
		})
	}
}

func TestBulk_Empty(t *testing.T) {
	ctx := context.Background()
	_, gw := newTestClient(t)
	b, err := NewBulk()
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Save(ctx); err != nil {
		t.Error(err)
	}
	if n, err := b.Delete(ctx); n != 0 || err != nil {
		t.Errorf("Delete = %d, %v", n, err)
	}
	if gw.connects != 0 {
		t.Error("empty bulk connected to the store")
	}
}

func TestBulk_ToJSON(t *testing.T) {
	c, _ := newTestClient(t)
	a := c.MustModel("Tag").New()
	mustSet(t, a, "name", "a")
	b, _ := NewBulk(a, c.MustModel("Tag").New())

	data, err := b.ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	var got []map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0]["name"] != "a" {
		t.Errorf("json = %s", data)
	}
	if _, ok := got[0][ClassKey]; ok {
		t.Errorf("persistent items must omit %s: %s", ClassKey, data)
	}
}
