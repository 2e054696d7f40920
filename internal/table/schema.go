// Package table provides the in-memory typed tables that flow through a
// warehouse build: column kinds, value parsing and formatting, grouping with
// an explicit aggregation policy, grain checks and deterministic CSV output.
package table

import "fmt"

// Kind is the logical type of a column.
type Kind int

// Column kinds.
const (
	String Kind = iota
	Int
	Float
	Money
	Date
	Timestamp
	Bool
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Int:
		return "int"
	case Float:
		return "float"
	case Money:
		return "money"
	case Date:
		return "date"
	case Timestamp:
		return "timestamp"
	case Bool:
		return "bool"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Column describes one column of a table.
type Column struct {
	Name string
	Kind Kind
	// Nullable columns may hold nulls.
	Nullable bool
	// Optional columns may be absent from a raw extract; they are filled with null.
	Optional bool
}

// Schema is an ordered list of columns. The order is the output order.
type Schema []Column

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of the named column, or -1.
func (s Schema) Index(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Lookup returns the named column.
func (s Schema) Lookup(name string) (Column, bool) {
	if i := s.Index(name); i >= 0 {
		return s[i], true
	}
	return Column{}, false
}

// Select returns the sub-schema with the given columns, in the given order.
func (s Schema) Select(names ...string) (Schema, error) {
	out := make(Schema, 0, len(names))
	for _, n := range names {
		c, ok := s.Lookup(n)
		if !ok {
			return nil, fmt.Errorf("unknown column %q", n)
		}
		out = append(out, c)
	}
	return out, nil
}
