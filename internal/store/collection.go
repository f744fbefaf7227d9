package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-autoreply-backend/internal/model"
	"github.com/tbourn/go-autoreply-backend/internal/oid"
	"github.com/tbourn/go-autoreply-backend/internal/outcome"
	"github.com/tbourn/go-autoreply-backend/internal/worker"
)

// Index declares a secondary index on storage paths.
type Index struct {
	Name   string
	Keys   []string
	Unique bool
	// Where makes the index partial: only rows whose path equals the literal
	// are covered. Values must be bool, int or string.
	Where map[string]any
	// TTL marks Keys[0] as an expiry timestamp; the sweeper deletes rows
	// whose value is at or before now.
	TTL bool
}

// Collection binds a schema to a table.
type Collection struct {
	db      *gorm.DB
	name    string
	schema  *model.Schema
	pool    *worker.Pool
	indexes []Index
	cols    []column
	byName  map[string]column
}

// NewCollection binds schema to the table name. pool runs the async update
// variants; when nil they run inline.
func NewCollection(db *gorm.DB, name string, schema *model.Schema, pool *worker.Pool, indexes ...Index) *Collection {
	cols := flatten(schema, nil)
	byName := make(map[string]column, len(cols))
	for _, col := range cols {
		byName[col.name] = col
	}
	return &Collection{
		db:      db,
		name:    name,
		schema:  schema,
		pool:    pool,
		indexes: indexes,
		cols:    cols,
		byName:  byName,
	}
}

// Name returns the table name.
func (c *Collection) Name() string { return c.name }

// Schema returns the bound schema.
func (c *Collection) Schema() *model.Schema { return c.schema }

// Migrate creates the table and its indexes if they do not exist.
func (c *Collection) Migrate(ctx context.Context) error {
	pg := isPostgres(c.db)
	defs := make([]string, 0, len(c.cols)+1)
	defs = append(defs, quote(model.KeyID)+" TEXT PRIMARY KEY")
	for _, col := range c.cols {
		defs = append(defs, quote(col.name)+" "+sqlType(col.field.Kind(), pg))
	}
	db := c.db.WithContext(ctx)
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(c.name), strings.Join(defs, ", "))
	if err := db.Exec(stmt).Error; err != nil {
		return fmt.Errorf("store: migrate %s: %w", c.name, err)
	}
	for _, idx := range c.indexes {
		stmt, err := c.indexSQL(idx)
		if err != nil {
			return err
		}
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("store: index on %s: %w", c.name, err)
		}
	}
	return nil
}

func (c *Collection) indexSQL(idx Index) (string, error) {
	cols := make([]string, 0, len(idx.Keys))
	names := make([]string, 0, len(idx.Keys))
	for _, k := range idx.Keys {
		col, err := c.columnFor(k)
		if err != nil {
			return "", err
		}
		cols = append(cols, quote(col.name))
		names = append(names, col.name)
	}
	name := idx.Name
	if name == "" {
		name = c.name + "_" + strings.Join(names, "_") + "_idx"
	}
	kind := "INDEX"
	if idx.Unique {
		kind = "UNIQUE INDEX"
	}
	stmt := fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON %s (%s)", kind, quote(name), quote(c.name), strings.Join(cols, ", "))
	if len(idx.Where) > 0 {
		var conds []string
		for path, v := range idx.Where {
			col, err := c.columnFor(path)
			if err != nil {
				return "", err
			}
			lit, err := literal(v)
			if err != nil {
				return "", err
			}
			conds = append(conds, quote(col.name)+" = "+lit)
		}
		stmt += " WHERE " + strings.Join(conds, " AND ")
	}
	return stmt, nil
}

func literal(v any) (string, error) {
	switch x := v.(type) {
	case bool:
		if x {
			return "TRUE", nil
		}
		return "FALSE", nil
	case int:
		return strconv.Itoa(x), nil
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'", nil
	}
	return "", fmt.Errorf("store: unsupported partial index literal %T", v)
}

// WithTx returns a view of c whose reads and writes run on tx.
func (c *Collection) WithTx(tx *gorm.DB) *Collection {
	cp := *c
	cp.db = tx
	return &cp
}

// Transaction runs fn against a view of c bound to one database
// transaction. Every write made through the view is rolled back when fn
// returns an error.
func (c *Collection) Transaction(ctx context.Context, fn func(tx *Collection) error) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(c.WithTx(tx))
	})
}

// ---- writes ----

// InsertOneModel commits m. A unique-key conflict is reported as
// O_DATA_EXISTS with the identifier of the existing document stamped on m.
func (c *Collection) InsertOneModel(ctx context.Context, m *model.Model) Result {
	if m == nil || m.Schema() != c.schema {
		return failed(fmt.Errorf("%w: model for %s", model.ErrUncastable, c.name), outcome.XConstructUnknown)
	}
	assigned := false
	if !m.HasID() {
		m.SetID(oid.New())
		assigned = true
	}
	names, vals, err := c.encodeRow(m.ToDocument())
	if err != nil {
		if assigned {
			m.SetID(oid.Nil)
		}
		return failed(err, outcome.XNotSerializable)
	}
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quote(n)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quote(c.name), strings.Join(quoted, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(vals)), ", "))

	if err := c.db.WithContext(ctx).Exec(stmt, vals...).Error; err != nil {
		if assigned {
			m.SetID(oid.Nil)
		}
		if isDuplicate(err) {
			return c.resolveConflict(ctx, m)
		}
		return failed(err, outcome.XInsertUnknown)
	}
	return Result{Outcome: outcome.OInserted, Model: m}
}

// resolveConflict finds the document that holds the unique key m collided
// on and stamps its identifier on m.
func (c *Collection) resolveConflict(ctx context.Context, m *model.Model) Result {
	doc := m.ToDocument()
	for _, idx := range c.indexes {
		if !idx.Unique {
			continue
		}
		parts := make([]Filter, 0, len(idx.Keys)+len(idx.Where))
		for _, k := range idx.Keys {
			parts = append(parts, Eq(k, lookup(doc, strings.Split(k, "."))))
		}
		for path, v := range idx.Where {
			parts = append(parts, Eq(path, v))
		}
		existing, err := c.FindOneCasted(ctx, And(parts...))
		if err != nil || existing == nil {
			continue
		}
		m.SetID(existing.ID())
		return Result{Outcome: outcome.ODataExists, Model: m}
	}
	return Result{Outcome: outcome.ODataExists, Model: m, Err: ErrDuplicate}
}

// InsertOneData builds a model from application values and inserts it.
func (c *Collection) InsertOneData(ctx context.Context, vals model.Values) Result {
	m, err := c.schema.FromApp(vals)
	if err != nil {
		return failed(err, outcome.XConstructUnknown)
	}
	return c.InsertOneModel(ctx, m)
}

// Update describes a write. Set assigns, Inc adds and Max keeps the larger
// of the stored and given value; Inc and Max commute across writers.
type Update struct {
	Set map[string]any
	Inc map[string]int
	Max map[string]any
}

// Set is shorthand for an Update that only assigns.
func Set(kv map[string]any) Update { return Update{Set: kv} }

// compile turns u into column assignments plus a predicate that is true only
// for rows the update would change.
func (c *Collection) compile(u Update) (map[string]any, Filter, error) {
	assign := map[string]any{}
	var changes []Filter
	always := false

	for path, v := range u.Set {
		col, err := c.writable(path)
		if err != nil {
			return nil, nil, err
		}
		ev, err := encodeUpdateValue(col.field, v)
		if err != nil {
			return nil, nil, err
		}
		q := quote(col.name)
		assign[col.name] = ev
		if ev == nil {
			changes = append(changes, raw{q + " IS NOT NULL", nil})
		} else {
			changes = append(changes, raw{"(" + q + " IS NULL OR " + q + " <> ?)", []any{ev}})
		}
	}
	for path, n := range u.Inc {
		col, err := c.writable(path)
		if err != nil {
			return nil, nil, err
		}
		if col.field.Kind() != model.KindInt && col.field.Kind() != model.KindFloat {
			return nil, nil, fmt.Errorf("%w: inc on %s", model.ErrTypeMismatch, path)
		}
		if n == 0 {
			continue
		}
		q := quote(col.name)
		assign[col.name] = gorm.Expr("COALESCE("+q+", 0) + ?", n)
		always = true
	}
	for path, v := range u.Max {
		col, err := c.writable(path)
		if err != nil {
			return nil, nil, err
		}
		ev, err := encodeUpdateValue(col.field, v)
		if err != nil {
			return nil, nil, err
		}
		if ev == nil {
			continue
		}
		q := quote(col.name)
		assign[col.name] = gorm.Expr("CASE WHEN "+q+" IS NULL OR "+q+" < ? THEN ? ELSE "+q+" END", ev, ev)
		changes = append(changes, raw{"(" + q + " IS NULL OR " + q + " < ?)", []any{ev}})
	}
	if len(assign) == 0 {
		return nil, nil, fmt.Errorf("store: empty update on %s", c.name)
	}
	if always {
		return assign, nil, nil
	}
	return assign, Or(changes...), nil
}

func (c *Collection) writable(path string) (column, error) {
	if path == model.KeyID {
		return column{}, fmt.Errorf("%w: %s", model.ErrReadOnly, model.KeyID)
	}
	return c.columnFor(path)
}

// encodeUpdateValue runs the full field pipeline, including validators.
func encodeUpdateValue(field *model.Field, v any) (any, error) {
	x, err := field.Process(v)
	if err != nil {
		return nil, err
	}
	return encodeValue(field.Encode(x))
}

type raw struct {
	s    string
	args []any
}

func (r raw) sql(*Collection) (string, []any, error) { return r.s, r.args, nil }

// UpdateManyOutcome applies u to every matching document. It reports
// X_NOT_FOUND when nothing matched, O_FOUND when documents matched but none
// changed and O_DATA_UPDATED otherwise.
func (c *Collection) UpdateManyOutcome(ctx context.Context, f Filter, u Update) Result {
	assign, changed, err := c.compile(u)
	if err != nil {
		return failed(err, outcome.XUpdateUnknown)
	}
	matched, err := c.Count(ctx, f)
	if err != nil {
		return failed(err, outcome.XUpdateUnknown)
	}
	if matched == 0 {
		return Result{Outcome: outcome.XNotFound, Err: ErrNotFound}
	}
	q, err := c.scope(ctx, And(f, changed))
	if err != nil {
		return failed(err, outcome.XUpdateUnknown)
	}
	res := q.UpdateColumns(assign)
	if res.Error != nil {
		if isDuplicate(res.Error) {
			return Result{Outcome: outcome.ODataExists, Err: res.Error}
		}
		return failed(res.Error, outcome.XUpdateUnknown)
	}
	if res.RowsAffected == 0 {
		return Result{Outcome: outcome.OFound}
	}
	return Result{Outcome: outcome.ODataUpdated}
}

// UpdateOneOutcome applies u to the first matching document in id order.
func (c *Collection) UpdateOneOutcome(ctx context.Context, f Filter, u Update) Result {
	q, err := c.scope(ctx, f)
	if err != nil {
		return failed(err, outcome.XUpdateUnknown)
	}
	var ids []string
	if err := q.Order(quote(model.KeyID)).Limit(1).Pluck(model.KeyID, &ids).Error; err != nil {
		return failed(err, outcome.XUpdateUnknown)
	}
	if len(ids) == 0 {
		return Result{Outcome: outcome.XNotFound, Err: ErrNotFound}
	}
	return c.UpdateManyOutcome(ctx, Eq(model.KeyID, ids[0]), u)
}

// UpdateOneAsync runs UpdateOneOutcome on the pool without reporting back.
func (c *Collection) UpdateOneAsync(f Filter, u Update) {
	c.async(c.name+".update_one", func(ctx context.Context) Result { return c.UpdateOneOutcome(ctx, f, u) })
}

// UpdateManyAsync runs UpdateManyOutcome on the pool without reporting back.
func (c *Collection) UpdateManyAsync(f Filter, u Update) {
	c.async(c.name+".update_many", func(ctx context.Context) Result { return c.UpdateManyOutcome(ctx, f, u) })
}

func (c *Collection) async(name string, fn func(ctx context.Context) Result) {
	task := func(ctx context.Context) error {
		r := fn(ctx)
		if r.OK() || r.Outcome == outcome.XNotFound {
			return nil
		}
		if r.Err != nil {
			return fmt.Errorf("%s: %w", r.Outcome, r.Err)
		}
		return errors.New(r.Outcome.String())
	}
	if c.pool == nil {
		_ = task(context.Background())
		return
	}
	c.pool.Go(name, task)
}

// Delete removes every matching document and returns how many were removed.
func (c *Collection) Delete(ctx context.Context, f Filter) (int64, error) {
	w, args, err := where(c, f)
	if err != nil {
		return 0, err
	}
	res := c.db.WithContext(ctx).Exec("DELETE FROM "+quote(c.name)+" WHERE "+w, args...)
	return res.RowsAffected, res.Error
}

// ---- reads ----

// Sort orders results by a storage path.
type Sort struct {
	Path string
	Desc bool
}

// Asc sorts ascending on path.
func Asc(path string) Sort { return Sort{Path: path} }

// Desc sorts descending on path.
func Desc(path string) Sort { return Sort{Path: path, Desc: true} }

// FindOptions shapes a find.
type FindOptions struct {
	Sort  []Sort
	Limit int
	Skip  int
}

// Query returns a table-scoped query restricted to f, for aggregations the
// collection API does not cover. Use Column to name columns.
func (c *Collection) Query(ctx context.Context, f Filter) (*gorm.DB, error) {
	return c.scope(ctx, f)
}

func (c *Collection) scope(ctx context.Context, f Filter) (*gorm.DB, error) {
	w, args, err := where(c, f)
	if err != nil {
		return nil, err
	}
	return c.db.WithContext(ctx).Table(c.name).Where(w, args...), nil
}

func (c *Collection) shaped(ctx context.Context, f Filter, opts FindOptions) (*gorm.DB, error) {
	q, err := c.scope(ctx, f)
	if err != nil {
		return nil, err
	}
	for _, s := range opts.Sort {
		col, err := c.columnFor(s.Path)
		if err != nil {
			return nil, err
		}
		dir := " ASC"
		if s.Desc {
			dir = " DESC"
		}
		q = q.Order(quote(col.name) + dir)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Skip > 0 {
		q = q.Offset(opts.Skip)
	}
	return q, nil
}

func (c *Collection) rows(ctx context.Context, f Filter, opts FindOptions) ([]map[string]any, error) {
	q, err := c.shaped(ctx, f, opts)
	if err != nil {
		return nil, err
	}
	var rows []map[string]any
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Collection) parse(row map[string]any) (*model.Model, error) {
	doc, err := c.decodeRow(row)
	if err != nil {
		return nil, err
	}
	return c.schema.FromStorage(doc)
}

// FindAll returns every matching document as a model.
func (c *Collection) FindAll(ctx context.Context, f Filter, opts FindOptions) ([]*model.Model, error) {
	rows, err := c.rows(ctx, f, opts)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Model, 0, len(rows))
	for _, r := range rows {
		m, err := c.parse(r)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// FindOneCasted returns the first matching document, or nil when nothing
// matches. Without an explicit sort the first document in id order wins.
func (c *Collection) FindOneCasted(ctx context.Context, f Filter, sort ...Sort) (*model.Model, error) {
	if len(sort) == 0 {
		sort = []Sort{Asc(model.KeyID)}
	}
	ms, err := c.FindAll(ctx, f, FindOptions{Sort: sort, Limit: 1})
	if err != nil || len(ms) == 0 {
		return nil, err
	}
	return ms[0], nil
}

// Count returns how many documents match f.
func (c *Collection) Count(ctx context.Context, f Filter) (int64, error) {
	q, err := c.scope(ctx, f)
	if err != nil {
		return 0, err
	}
	var n int64
	err = q.Count(&n).Error
	return n, err
}

// FindCursorWithCount returns a cursor over matching documents together with
// the total match count. A non-nil tr restricts results to documents created
// within the range.
func (c *Collection) FindCursorWithCount(ctx context.Context, f Filter, opts FindOptions, tr *TimeRange) (*Cursor, error) {
	if tr != nil {
		f = AttachTimeRange(f, *tr)
	}
	n, err := c.Count(ctx, f)
	if err != nil {
		return nil, err
	}
	rows, err := c.rows(ctx, f, opts)
	if err != nil {
		return nil, err
	}
	return &Cursor{Count: n, c: c, rows: rows, pos: -1}, nil
}
