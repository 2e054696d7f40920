package source

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/leapstack-labs/mktwh/internal/table"
)

// Extract is a raw file with a normalized header and drift ops applied.
// Cells are still untyped strings.
type Extract struct {
	Source  Descriptor
	Path    string
	Header  []string
	Records [][]string
	// Applied lists the ops that changed the header.
	Applied []Op
}

// ReadExtract reads a raw file, normalizes its header (trim, lowercase) and
// applies the descriptor's drift ops.
func ReadExtract(f File) (*Extract, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open extract: %w", err)
	}
	defer fh.Close()

	raw, err := table.ReadCSV(fh)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Path, err)
	}
	e := &Extract{Source: f.Descriptor, Path: f.Path, Header: NormalizeHeader(raw.Header), Records: raw.Records}
	for _, op := range f.Descriptor.Ops {
		changed, err := e.apply(op)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", f.Descriptor.ID, err)
		}
		if changed {
			e.Applied = append(e.Applied, op)
		}
	}
	return e, nil
}

// NormalizeHeader trims and lowercases column names.
func NormalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return out
}

// Index returns the position of a column, or -1.
func (e *Extract) Index(name string) int {
	return slices.Index(e.Header, name)
}

// Len returns the number of records.
func (e *Extract) Len() int {
	return len(e.Records)
}

// apply runs one op. Ops whose input column is absent are no-ops.
func (e *Extract) apply(op Op) (bool, error) {
	switch op.Op {
	case OpRename:
		i := e.Index(op.From)
		if i < 0 {
			return false, nil
		}
		if e.Index(op.To) >= 0 {
			return false, fmt.Errorf("rename %s -> %s: target column already present", op.From, op.To)
		}
		e.Header[i] = op.To
		return true, nil
	case OpDrop:
		i := e.Index(op.Column)
		if i < 0 {
			return false, nil
		}
		e.Header = slices.Delete(e.Header, i, i+1)
		for n, rec := range e.Records {
			e.Records[n] = slices.Delete(rec, i, i+1)
		}
		return true, nil
	case OpFillNull:
		if e.Index(op.Column) >= 0 {
			return false, nil
		}
		width := len(e.Header)
		e.Header = append(e.Header, op.Column)
		for n, rec := range e.Records {
			e.Records[n] = append(fit(rec, width), "")
		}
		return true, nil
	}
	return false, fmt.Errorf("unknown op %q", op.Op)
}

// fit pads or truncates a record to n cells.
func fit(rec []string, n int) []string {
	if len(rec) >= n {
		return rec[:n:n]
	}
	return append(rec, make([]string, n-len(rec))...)
}
