package source

import (
	"errors"
	"fmt"
	"time"

	"github.com/leapstack-labs/mktwh/internal/table"
	"github.com/leapstack-labs/mktwh/pkg/core"
)

// Conform converts an extract into a table with the canonical schema. A
// required column that is absent yields a *core.SchemaError; an absent
// optional column is filled with null. Extra columns are ignored.
func Conform(e *Extract, schema table.Schema) (*table.Table, error) {
	idx := make([]int, len(schema))
	var missing []string
	for i, c := range schema {
		idx[i] = e.Index(c.Name)
		if idx[i] < 0 && !c.Optional {
			missing = append(missing, c.Name)
		}
	}
	if len(missing) > 0 {
		return nil, &core.SchemaError{Source: e.Source.ID, File: e.Source.File, Missing: missing}
	}

	t := table.New(e.Source.ID, schema)
	t.Rows = make([]table.Row, 0, len(e.Records))
	for n, rec := range e.Records {
		row := make(table.Row, len(schema))
		for i, c := range schema {
			if idx[i] < 0 {
				continue
			}
			v, err := table.Parse(c.Kind, rec[idx[i]])
			if err != nil {
				return nil, fmt.Errorf("source %s line %d column %s: %w", e.Source.ID, n+2, c.Name, err)
			}
			if v == nil && !c.Nullable && !c.Optional {
				return nil, fmt.Errorf("source %s line %d column %s: unexpected null", e.Source.ID, n+2, c.Name)
			}
			row[i] = v
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// ApplyExclusions drops rows matching the descriptor's exclusions and
// returns the number dropped. Exclusions on columns outside the table's
// schema are skipped, so projections that omit the date column keep every row.
func ApplyExclusions(d Descriptor, t *table.Table) (*table.Table, int, error) {
	total := 0
	for _, ex := range d.Exclude {
		idx := t.Index(ex.Column)
		if idx < 0 {
			continue
		}
		if c := t.Schema[idx]; c.Kind != table.Date && c.Kind != table.Timestamp {
			return nil, 0, fmt.Errorf("source %s: exclusion column %q is %s, not a date", d.ID, ex.Column, c.Kind)
		}
		var dropped int
		t, dropped = t.Filter(func(r table.Row) bool {
			ts, ok := r[idx].(time.Time)
			return !ok || !ex.Window.Contains(ts)
		})
		total += dropped
	}
	return t, total, nil
}

// Batch is one conformed extract.
type Batch struct {
	Source   Descriptor
	Table    *table.Table
	RowsRead int
	Excluded int
	Applied  []Op
}

// LoadStream discovers, reads, conforms and filters every extract of a
// stream. Per-file failures are joined; any failure fails the stream.
func LoadStream(reg *Registry, dir string, s core.Stream, schema table.Schema) ([]*Batch, error) {
	files, err := reg.Discover(dir, s)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("stream %s: no files match %s in %s", s, reg.Glob(s), dir)
	}

	var batches []*Batch
	var errs []error
	for _, f := range files {
		b, err := loadFile(f, schema)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		batches = append(batches, b)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return batches, nil
}

func loadFile(f File, schema table.Schema) (*Batch, error) {
	e, err := ReadExtract(f)
	if err != nil {
		return nil, err
	}
	t, err := Conform(e, schema)
	if err != nil {
		return nil, err
	}
	t, excluded, err := ApplyExclusions(f.Descriptor, t)
	if err != nil {
		return nil, err
	}
	return &Batch{Source: f.Descriptor, Table: t, RowsRead: e.Len(), Excluded: excluded, Applied: e.Applied}, nil
}

// Union concatenates batches into one table.
func Union(name string, schema table.Schema, batches []*Batch) (*table.Table, error) {
	tables := make([]*table.Table, len(batches))
	for i, b := range batches {
		tables[i] = b.Table
	}
	return table.Concat(name, schema, tables...)
}

// Totals sums rows read and rows excluded over batches.
func Totals(batches []*Batch) (read, excluded int) {
	for _, b := range batches {
		read += b.RowsRead
		excluded += b.Excluded
	}
	return read, excluded
}
