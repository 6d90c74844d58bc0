package redis

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/redis/rueidis"

	"github.com/kailas-cloud/docmap/internal/db"
)

// jsonSet builds a JSON.SET of doc at the document root. With nx the write
// only happens when the key is absent.
func (s *Store) jsonSet(key string, doc db.Document, nx bool) (rueidis.Completed, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return rueidis.Completed{}, fmt.Errorf("encode %s: %w", key, err)
	}
	args := []string{"$", string(data)}
	if nx {
		args = append(args, "NX")
	}
	return s.b().Arbitrary("JSON.SET").Keys(key).Args(args...).Build(), nil
}

// jsonGetMulti fetches documents for keys in one round trip. Keys deleted
// between SCAN and JSON.GET are skipped.
func (s *Store) jsonGetMulti(ctx context.Context, keys []string) ([]db.Document, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make(rueidis.Commands, 0, len(keys))
	for _, k := range keys {
		cmds = append(cmds, s.b().Arbitrary("JSON.GET").Keys(k).Build())
	}

	docs := make([]db.Document, 0, len(keys))
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		raw, err := res.ToString()
		if err != nil {
			if rueidis.IsRedisNil(err) {
				continue
			}
			return nil, moduleErr(err)
		}
		doc, err := decodeDocument([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// decodeDocument parses a stored document. Numbers stay integral when they
// have no fractional part.
func decodeDocument(raw []byte) (db.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	doc, _ := normalize(m).(db.Document)
	return doc, nil
}

func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(db.Document, len(t))
		for k, item := range t {
			out[k] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		f, _ := t.Float64()
		return f
	}
	return v
}
