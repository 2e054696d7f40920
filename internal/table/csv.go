package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strings"
)

// WriteCSV writes the header and every row with fixed formatting.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Schema.Names()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	rec := make([]string, len(t.Schema))
	for n, r := range t.Rows {
		if len(r) != len(t.Schema) {
			return fmt.Errorf("table %s: row %d has %d values, want %d", t.Name, n, len(r), len(t.Schema))
		}
		for i, c := range t.Schema {
			rec[i] = Format(c.Kind, r[i])
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", n, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Raw is an untyped CSV file: a header and string records.
type Raw struct {
	Header  []string
	Records [][]string
}

// ReadCSV reads a CSV file with a header row. Every record is made as wide
// as the header: short records are padded with empty cells and trailing
// empty cells past the header are trimmed. A record with values past the
// header is an error.
func ReadCSV(r io.Reader) (*Raw, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty file: no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	raw := &Raw{Header: header}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		if len(rec) > len(header) {
			if slices.ContainsFunc(rec[len(header):], func(c string) bool { return strings.TrimSpace(c) != "" }) {
				line, _ := cr.FieldPos(0)
				return nil, fmt.Errorf("line %d: %d fields, header has %d", line, len(rec), len(header))
			}
			rec = rec[:len(header)]
		}
		for len(rec) < len(header) {
			rec = append(rec, "")
		}
		raw.Records = append(raw.Records, rec)
	}
	return raw, nil
}

// Index returns the position of the named header column, or -1.
func (r *Raw) Index(name string) int {
	for i, h := range r.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Values returns every cell of the named column.
func (r *Raw) Values(name string) ([]string, bool) {
	idx := r.Index(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]string, len(r.Records))
	for i, rec := range r.Records {
		out[i] = rec[idx]
	}
	return out, true
}
