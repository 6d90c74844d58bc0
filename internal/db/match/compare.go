package match

import (
	"reflect"
	"sort"
	"strings"

	"github.com/kailas-cloud/docmap/internal/db"
)

// Type brackets in store sort order.
const (
	rankNull = iota
	rankNumber
	rankString
	rankDocument
	rankArray
	rankBool
	rankOther
)

func rank(v any) int {
	switch v.(type) {
	case nil:
		return rankNull
	case string:
		return rankString
	case bool:
		return rankBool
	case db.Document, map[string]any:
		return rankDocument
	}
	if _, ok := toFloat(v); ok {
		return rankNumber
	}
	if _, ok := toList(v); ok {
		return rankArray
	}
	return rankOther
}

func sameClass(a, b any) bool {
	return rank(a) == rank(b)
}

// Compare orders two values: by type bracket first, then by value.
func Compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}
	switch ra {
	case rankNull:
		return 0
	case rankNumber:
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case rankString:
		return strings.Compare(a.(string), b.(string))
	case rankBool:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		}
		return 1
	case rankDocument:
		da, _ := toDocument(a)
		db2, _ := toDocument(b)
		return compareDocuments(da, db2)
	case rankArray:
		la, _ := toList(a)
		lb, _ := toList(b)
		for i := 0; i < len(la) && i < len(lb); i++ {
			if c := Compare(la[i], lb[i]); c != 0 {
				return c
			}
		}
		return cmpInt(len(la), len(lb))
	}
	if reflect.DeepEqual(a, b) {
		return 0
	}
	return strings.Compare(reflect.TypeOf(a).String(), reflect.TypeOf(b).String())
}

func compareDocuments(a, b db.Document) int {
	keys := func(d db.Document) []string {
		out := make([]string, 0, len(d))
		for k := range d {
			out = append(out, k)
		}
		sort.Strings(out)
		return out
	}
	ka, kb := keys(a), keys(b)
	for i := 0; i < len(ka) && i < len(kb); i++ {
		if c := strings.Compare(ka[i], kb[i]); c != 0 {
			return c
		}
		if c := Compare(a[ka[i]], b[kb[i]]); c != 0 {
			return c
		}
	}
	return cmpInt(len(ka), len(kb))
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// SortDocuments stably sorts docs by one field. Missing fields sort as null.
func SortDocuments(docs []db.Document, field string, dir db.Direction) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, _ := Lookup(docs[i], field)
		b, _ := Lookup(docs[j], field)
		c := Compare(a, b)
		if dir == db.Descending {
			return c > 0
		}
		return c < 0
	})
}
