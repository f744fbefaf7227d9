package store

import (
	"time"

	"github.com/tbourn/go-autoreply-backend/internal/model"
	"github.com/tbourn/go-autoreply-backend/internal/oid"
)

// Cursor iterates over the result of FindCursorWithCount. Count is the total
// number of matches, independent of any limit. Rows are fetched up front so
// a cursor never pins a database connection.
type Cursor struct {
	Count int64

	c    *Collection
	rows []map[string]any
	pos  int
	err  error
}

// Len is the number of rows held by the cursor.
func (k *Cursor) Len() int { return len(k.rows) }

// Next advances to the next row.
func (k *Cursor) Next() bool {
	if k.err != nil || k.pos+1 >= len(k.rows) {
		return false
	}
	k.pos++
	return true
}

// Model parses the current row.
func (k *Cursor) Model() (*model.Model, error) {
	m, err := k.c.parse(k.rows[k.pos])
	if err != nil {
		k.err = err
	}
	return m, err
}

// Err returns the first parse error seen.
func (k *Cursor) Err() error { return k.err }

// All parses every remaining row.
func (k *Cursor) All() ([]*model.Model, error) {
	out := make([]*model.Model, 0, len(k.rows)-k.pos-1)
	for k.Next() {
		m, err := k.Model()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// TimeRange restricts a find to documents created in a window. Creation time
// is read from the identifier, so the range becomes an id range.
//
// Start and End bound the window directly (End is exclusive). When Start is
// zero and HoursWithin is positive, the window opens HoursWithin*RangeMult
// hours before Now. A zero RangeMult counts as 1 and a zero Now as the
// current time.
type TimeRange struct {
	Start       time.Time
	End         time.Time
	HoursWithin float64
	RangeMult   float64
	Now         time.Time
}

// Bounds resolves the window. Zero times mean unbounded.
func (tr TimeRange) Bounds() (lower, upper time.Time) {
	lower, upper = tr.Start, tr.End
	if lower.IsZero() && tr.HoursWithin > 0 {
		mult := tr.RangeMult
		if mult == 0 {
			mult = 1
		}
		now := tr.Now
		if now.IsZero() {
			now = time.Now()
		}
		lower = now.Add(-time.Duration(tr.HoursWithin * mult * float64(time.Hour)))
	}
	return lower, upper
}

type idRange struct {
	lower, upper time.Time
}

func (r idRange) sql(c *Collection) (string, []any, error) {
	parts := make([]Filter, 0, 2)
	if !r.lower.IsZero() {
		parts = append(parts, Gte(model.KeyID, oid.Lower(r.lower)))
	}
	if !r.upper.IsZero() {
		parts = append(parts, Lt(model.KeyID, oid.Lower(r.upper)))
	}
	return And(parts...).sql(c)
}

// AttachTimeRange adds the id range for tr to f. A filter that already
// carries a time range is returned unchanged.
func AttachTimeRange(f Filter, tr TimeRange) Filter {
	if hasIDRange(f) {
		return f
	}
	lower, upper := tr.Bounds()
	if lower.IsZero() && upper.IsZero() {
		return f
	}
	return And(f, idRange{lower: lower, upper: upper})
}

func hasIDRange(f Filter) bool {
	switch x := f.(type) {
	case idRange:
		return true
	case group:
		for _, p := range x.parts {
			if hasIDRange(p) {
				return true
			}
		}
	}
	return false
}
