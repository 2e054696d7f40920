package table

import (
	"fmt"
	"slices"
	"time"
)

// Row is one record. Values are nil, string, int64, float64, decimal.Decimal, bool or
// time.Time, matching the column kinds of the owning table.
type Row []any

// Table is an ordered, typed, in-memory relation.
type Table struct {
	Name   string
	Schema Schema
	// Grain is the set of columns that uniquely identify a row. Empty for
	// pass-through tables.
	Grain []string
	Rows  []Row
}

// New creates an empty table.
func New(name string, schema Schema, grain ...string) *Table {
	return &Table{Name: name, Schema: schema, Grain: grain}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	return t.Schema.Index(name)
}

// Append adds a row. The row must match the schema width.
func (t *Table) Append(row Row) {
	t.Rows = append(t.Rows, row)
}

// Get returns the value of a column for row i.
func (t *Table) Get(i int, col string) any {
	idx := t.Index(col)
	if idx < 0 {
		return nil
	}
	return t.Rows[i][idx]
}

// Column returns every value of the named column.
func (t *Table) Column(name string) ([]any, error) {
	idx := t.Index(name)
	if idx < 0 {
		return nil, fmt.Errorf("table %s: unknown column %q", t.Name, name)
	}
	out := make([]any, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[idx]
	}
	return out, nil
}

// Filter returns a table holding the rows for which keep returns true, and
// the number of rows dropped.
func (t *Table) Filter(keep func(Row) bool) (*Table, int) {
	out := New(t.Name, t.Schema, t.Grain...)
	dropped := 0
	for _, r := range t.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, r)
		} else {
			dropped++
		}
	}
	return out, dropped
}

// Project returns a table with only the named columns, in the given order.
func (t *Table) Project(name string, cols ...string) (*Table, error) {
	schema, err := t.Schema.Select(cols...)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", t.Name, err)
	}
	idx := make([]int, len(cols))
	for i, c := range cols {
		idx[i] = t.Index(c)
	}
	out := New(name, schema)
	out.Rows = make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		nr := make(Row, len(idx))
		for j, k := range idx {
			nr[j] = r[k]
		}
		out.Rows[i] = nr
	}
	return out, nil
}

// Distinct returns the distinct combinations of the named columns in
// first-seen order.
func (t *Table) Distinct(name string, cols ...string) (*Table, error) {
	p, err := t.Project(name, cols...)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(p.Rows))
	rows := p.Rows[:0]
	for _, r := range p.Rows {
		k := p.key(r, allIndexes(len(cols)))
		if seen[k] {
			continue
		}
		seen[k] = true
		rows = append(rows, r)
	}
	p.Rows = rows
	return p, nil
}

// SortBy sorts rows ascending by the named columns. Nulls sort first and the
// sort is stable.
func (t *Table) SortBy(cols ...string) error {
	idx := make([]int, len(cols))
	for i, c := range cols {
		idx[i] = t.Index(c)
		if idx[i] < 0 {
			return fmt.Errorf("table %s: cannot sort by unknown column %q", t.Name, c)
		}
	}
	slices.SortStableFunc(t.Rows, func(a, b Row) int {
		for _, k := range idx {
			if c := Compare(a[k], b[k]); c != 0 {
				return c
			}
		}
		return 0
	})
	return nil
}

// SortByGrain sorts rows by the table's grain.
func (t *Table) SortByGrain() error {
	return t.SortBy(t.Grain...)
}

// DateRange returns the minimum and maximum non-null time values of a
// column. ok is false when the column has no values.
func (t *Table) DateRange(col string) (lo, hi time.Time, ok bool) {
	idx := t.Index(col)
	if idx < 0 {
		return lo, hi, false
	}
	for _, r := range t.Rows {
		v, isTime := r[idx].(time.Time)
		if !isTime {
			continue
		}
		if !ok || v.Before(lo) {
			lo = v
		}
		if !ok || v.After(hi) {
			hi = v
		}
		ok = true
	}
	return lo, hi, ok
}

// Concat unions tables that share the given schema, in argument order.
func Concat(name string, schema Schema, tables ...*Table) (*Table, error) {
	out := New(name, schema)
	for _, t := range tables {
		if !slices.Equal(t.Schema.Names(), schema.Names()) {
			return nil, fmt.Errorf("concat %s: table %s has columns %v, want %v",
				name, t.Name, t.Schema.Names(), schema.Names())
		}
		out.Rows = append(out.Rows, t.Rows...)
	}
	return out, nil
}

// key builds a composite key string for the given column positions.
func (t *Table) key(r Row, idx []int) string {
	b := make([]byte, 0, 64)
	for i, k := range idx {
		if i > 0 {
			b = append(b, 0x1f)
		}
		if r[k] == nil {
			b = append(b, 0x00)
			continue
		}
		b = append(b, Format(t.Schema[k].Kind, r[k])...)
	}
	return string(b)
}

func allIndexes(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
