package docmap

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docmap/internal/db"
	"github.com/kailas-cloud/docmap/internal/db/match"
)

// Direction is a sort direction. Unspecified sorts descending.
type Direction int

// Sort directions.
const (
	Unspecified Direction = 0
	Ascending   Direction = 1
	Descending  Direction = -1
)

func (d Direction) store() db.Direction {
	if d == Ascending {
		return db.Ascending
	}
	return db.Descending
}

// Query accumulates one request against a collection. Builder methods
// return the same Query. Not safe for concurrent use; Copy it instead.
type Query struct {
	client     *Client
	collection string

	conditions   Document
	selected     []string
	sortField    string
	sortDir      Direction
	limit        int
	distinct     string
	rules        Document
	insertValues Document
}

// Result is the outcome of Execute: a cursor for finds, the distinct
// values when Distinct was set, or the new identity for inserts.
type Result struct {
	Cursor     *Cursor
	Values     []any
	InsertedID any
}

func newQuery(c *Client, collection string) *Query {
	q := &Query{client: c, collection: collection}
	return q.Reset()
}

// Collection returns the target collection name.
func (q *Query) Collection() string { return q.collection }

// Where replaces the conditions. It does not merge with earlier calls.
func (q *Query) Where(conditions M) *Query {
	q.conditions = plainDocument(conditions)
	if q.conditions == nil {
		q.conditions = Document{}
	}
	return q
}

// AndWhere appends each pair as {k: v} to the $and group.
func (q *Query) AndWhere(conditions M) *Query {
	return q.appendGroup("$and", conditions)
}

// OrWhere appends each pair as {k: v} to the $or group.
func (q *Query) OrWhere(conditions M) *Query {
	return q.appendGroup("$or", conditions)
}

func (q *Query) appendGroup(op string, conditions M) *Query {
	group, _ := q.conditions[op].([]any)
	for _, k := range sortedKeys(conditions) {
		group = append(group, Document{k: plainValue(conditions[k])})
	}
	q.conditions[op] = group
	return q
}

// WhereIn matches field against any of values. A non-slice value is
// treated as a one-element list.
func (q *Query) WhereIn(field string, values any) *Query {
	q.conditions[field] = Document{"$in": listOf(values)}
	return q
}

// WhereNotIn matches field against none of values.
func (q *Query) WhereNotIn(field string, values any) *Query {
	q.conditions[field] = Document{"$nin": listOf(values)}
	return q
}

// WhereExists requires the fields to be present.
func (q *Query) WhereExists(fields ...string) *Query {
	for _, f := range fields {
		q.conditions[f] = Document{"$exists": true}
	}
	return q
}

// WhereNotExists requires the fields to be absent.
func (q *Query) WhereNotExists(fields ...string) *Query {
	for _, f := range fields {
		q.conditions[f] = Document{"$exists": false}
	}
	return q
}

// WhereNot sets an inequality per key.
func (q *Query) WhereNot(conditions M) *Query { return q.setOperator("$ne", conditions) }

// WhereGt sets field > value per key.
func (q *Query) WhereGt(conditions M) *Query { return q.setOperator("$gt", conditions) }

// WhereGte sets field >= value per key.
func (q *Query) WhereGte(conditions M) *Query { return q.setOperator("$gte", conditions) }

// WhereLt sets field < value per key.
func (q *Query) WhereLt(conditions M) *Query { return q.setOperator("$lt", conditions) }

// WhereLte sets field <= value per key.
func (q *Query) WhereLte(conditions M) *Query { return q.setOperator("$lte", conditions) }

func (q *Query) setOperator(op string, conditions M) *Query {
	for k, v := range conditions {
		q.conditions[k] = Document{op: plainValue(v)}
	}
	return q
}

// WhereRegex matches field against a regular expression.
func (q *Query) WhereRegex(field, pattern string) *Query {
	q.conditions[field] = Document{"$regex": pattern}
	return q
}

// Select restricts returned fields. No fields means all.
func (q *Query) Select(fields ...string) *Query {
	q.selected = append([]string(nil), fields...)
	return q
}

// Distinct requests the distinct values of field instead of documents.
func (q *Query) Distinct(field string) *Query {
	q.distinct = field
	return q
}

// Sort orders results by one field.
func (q *Query) Sort(field string, dir Direction) *Query {
	q.sortField = field
	q.sortDir = dir
	return q
}

// Limit caps the number of results; 0 means no limit.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Insert switches the query to insert mode; Execute then ignores everything else.
func (q *Query) Insert(values Document) *Query {
	q.insertValues = plainDocument(values)
	if q.insertValues == nil {
		q.insertValues = Document{}
	}
	return q
}

// Incr adds amount to field on the next Update.
func (q *Query) Incr(field string, amount int64) *Query {
	q.rule("$inc")[field] = amount
	return q
}

// Decr subtracts one from field on the next Update.
func (q *Query) Decr(field string) *Query {
	return q.Incr(field, -1)
}

// Unset removes field on the next Update.
func (q *Query) Unset(field string) *Query {
	q.rule("$unset")[field] = 1
	return q
}

func (q *Query) rule(op string) Document {
	d, ok := q.rules[op].(Document)
	if !ok {
		d = Document{}
		q.rules[op] = d
	}
	return d
}

// Filter returns a copy of the compiled conditions.
func (q *Query) Filter() Document {
	return match.CloneDocument(q.conditions)
}

// UpdateDocument returns the operator document Update would send for values.
func (q *Query) UpdateDocument(values M) Document {
	ops := match.CloneDocument(q.rules)
	if len(values) > 0 {
		ops["$set"] = plainDocument(values)
	}
	return ops
}

// Update applies values with $set plus any Incr/Decr/Unset operators to
// the first document matching the conditions and returns the matched count.
func (q *Query) Update(ctx context.Context, values M) (int64, error) {
	return q.update(ctx, values, false)
}

// UpdateAll is Update applied to every matching document.
func (q *Query) UpdateAll(ctx context.Context, values M) (int64, error) {
	return q.update(ctx, values, true)
}

func (q *Query) update(ctx context.Context, values M, many bool) (n int64, err error) {
	ops := q.UpdateDocument(values)
	if len(ops) == 0 {
		return 0, nil
	}
	mon := q.monitor(ctx, "update", zap.Int("fields", len(values)), zap.Bool("multi", many))
	defer func() { mon.done(err) }()

	coll, err := q.client.collection(ctx, q.collection)
	if err != nil {
		return 0, err
	}
	if many {
		return coll.Update(ctx, q.Filter(), ops)
	}
	return coll.UpdateOne(ctx, q.Filter(), ops)
}

// Count counts matching documents, or the whole collection without conditions.
func (q *Query) Count(ctx context.Context) (n int64, err error) {
	mon := q.monitor(ctx, "count")
	defer func() { mon.done(err) }()

	coll, err := q.client.collection(ctx, q.collection)
	if err != nil {
		return 0, err
	}
	if len(q.conditions) == 0 {
		return coll.Count(ctx, nil)
	}
	return coll.Count(ctx, q.Filter())
}

// Delete removes matching documents. A removal the store reports as
// failed returns ErrStoreOperation.
func (q *Query) Delete(ctx context.Context) (n int64, err error) {
	mon := q.monitor(ctx, "remove")
	defer func() { mon.done(err) }()

	coll, err := q.client.collection(ctx, q.collection)
	if err != nil {
		return 0, err
	}
	res, err := coll.Remove(ctx, q.Filter())
	if err != nil {
		return 0, err
	}
	if res.Err != "" {
		return 0, fmt.Errorf("%w: remove from %s: %s", ErrStoreOperation, q.collection, res.Err)
	}
	return res.Removed, nil
}

// Execute runs the insert, or the find described by the accumulated state.
func (q *Query) Execute(ctx context.Context) (res *Result, err error) {
	if q.insertValues != nil {
		return q.executeInsert(ctx)
	}

	mon := q.monitor(ctx, "find", q.logFields()...)
	defer func() { mon.done(err) }()

	coll, err := q.client.collection(ctx, q.collection)
	if err != nil {
		return nil, err
	}
	cur, err := coll.Find(ctx, q.Filter(), q.selected)
	if err != nil {
		return nil, err
	}
	if q.distinct != "" {
		values, err := cur.Distinct(ctx, q.distinct)
		if err != nil {
			return nil, err
		}
		return &Result{Values: values}, nil
	}
	if q.sortField != "" {
		cur = cur.Sort(q.sortField, q.sortDir.store())
	}
	if q.limit > 0 {
		cur = cur.Limit(q.limit)
	}
	return &Result{Cursor: newCursor(cur)}, nil
}

func (q *Query) executeInsert(ctx context.Context) (res *Result, err error) {
	doc := match.CloneDocument(q.insertValues)
	if id, ok := doc[FieldID]; ok {
		doc[db.IDAlias] = id
		delete(doc, FieldID)
	}

	mon := q.monitor(ctx, "insert", zap.Int("fields", len(doc)))
	defer func() { mon.done(err) }()

	coll, err := q.client.collection(ctx, q.collection)
	if err != nil {
		return nil, err
	}
	ids, err := coll.Insert(ctx, doc)
	if err != nil {
		return nil, err
	}
	res = &Result{}
	if len(ids) > 0 {
		res.InsertedID = ids[0]
	}
	return res, nil
}

// FetchOne returns the first matching document, or nil when none match.
// Distinct and insert queries do not yield documents and are rejected.
func (q *Query) FetchOne(ctx context.Context) (Document, error) {
	switch {
	case q.distinct != "":
		return nil, fmt.Errorf("%w: FetchOne on a distinct query; use Execute for the values", ErrInvalidUsage)
	case q.insertValues != nil:
		return nil, fmt.Errorf("%w: FetchOne on an insert query", ErrInvalidUsage)
	}
	one := q.Copy()
	if one.limit == 0 || one.limit > 1 {
		one.limit = 1
	}
	res, err := one.Execute(ctx)
	if err != nil {
		return nil, err
	}
	if res.Cursor == nil {
		return nil, nil
	}
	n, err := res.Cursor.Len(ctx)
	if err != nil || n == 0 {
		return nil, err
	}
	return res.Cursor.At(ctx, 0)
}

// Reset clears all accumulated state; the collection is kept.
func (q *Query) Reset() *Query {
	q.conditions = Document{}
	q.selected = nil
	q.sortField = ""
	q.sortDir = Unspecified
	q.limit = 0
	q.distinct = ""
	q.rules = Document{}
	q.insertValues = nil
	return q
}

// Copy returns an independent query with the same accumulated state.
func (q *Query) Copy() *Query {
	cp := *q
	cp.conditions = match.CloneDocument(q.conditions)
	cp.rules = match.CloneDocument(q.rules)
	cp.insertValues = match.CloneDocument(q.insertValues)
	cp.selected = append([]string(nil), q.selected...)
	return &cp
}

func (q *Query) monitor(ctx context.Context, op string, fields ...zap.Field) *queryMonitor {
	return q.client.monitor(ctx, op, q.collection, fields...)
}

func (q *Query) logFields() []zap.Field {
	var fields []zap.Field
	if len(q.selected) > 0 {
		fields = append(fields, zap.Strings("select", q.selected))
	}
	if q.distinct != "" {
		fields = append(fields, zap.String("distinct", q.distinct))
	}
	if q.sortField != "" {
		fields = append(fields, zap.String("sort", q.sortField))
	}
	if q.limit > 0 {
		fields = append(fields, zap.Int("limit", q.limit))
	}
	return fields
}

// String renders the intent for logs.
func (q *Query) String() string {
	var b strings.Builder
	if q.insertValues != nil {
		fmt.Fprintf(&b, "insert into %s %s", q.collection, renderJSON(q.insertValues))
		return b.String()
	}
	b.WriteString("find ")
	if q.distinct != "" {
		fmt.Fprintf(&b, "distinct %s ", q.distinct)
	} else if len(q.selected) > 0 {
		fmt.Fprintf(&b, "%s ", strings.Join(q.selected, ","))
	}
	fmt.Fprintf(&b, "from %s where %s", q.collection, renderJSON(q.conditions))
	if len(q.rules) > 0 {
		fmt.Fprintf(&b, " ops %s", renderJSON(q.rules))
	}
	if q.sortField != "" {
		dir := "desc"
		if q.sortDir == Ascending {
			dir = "asc"
		}
		fmt.Fprintf(&b, " sort %s %s", q.sortField, dir)
	}
	if q.limit > 0 {
		fmt.Fprintf(&b, " limit %d", q.limit)
	}
	return b.String()
}

func renderJSON(d Document) string {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Sprint(map[string]any(d))
	}
	return string(data)
}

// listOf normalizes values into a list.
func listOf(values any) []any {
	if v, ok := values.(Value); ok && v.Kind() == KindList {
		values = v.Interface()
	}
	if list, ok := sliceOf(values); ok {
		out := make([]any, len(list))
		for i, v := range list {
			out[i] = plainValue(v)
		}
		return out
	}
	return []any{values}
}
