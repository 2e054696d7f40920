package table

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Op is an aggregation function.
type Op string

// Aggregation functions. Sum, Max, First, Mean and CountDistinct ignore
// nulls; Count counts rows. Money sums are exact and a Money mean is
// rounded to cents.
const (
	Sum           Op = "sum"
	Count         Op = "count"
	CountDistinct Op = "count_distinct"
	Max           Op = "max"
	First         Op = "first"
	Mean          Op = "mean"
)

// Agg declares how one output column is derived from a group of rows.
type Agg struct {
	Name   string
	Op     Op
	Source string
}

// Policy is an ordered list of aggregations.
type Policy []Agg

// outputKind returns the kind of the aggregate column.
func (a Agg) outputKind(src Column) Kind {
	switch a.Op {
	case Count, CountDistinct:
		return Int
	case Sum:
		if src.Kind == Bool {
			return Int
		}
		return src.Kind
	case Mean:
		if src.Kind == Money {
			return Money
		}
		return Float
	default:
		return src.Kind
	}
}

type accumulator struct {
	agg      Agg
	kind     Kind
	count    int64
	n        int64
	sumI     int64
	sumF     float64
	sumD     decimal.Decimal
	value    any
	distinct map[string]struct{}
}

func (acc *accumulator) add(v any, srcKind Kind) {
	acc.count++
	if v == nil {
		return
	}
	switch acc.agg.Op {
	case Sum, Mean:
		acc.n++
		switch x := v.(type) {
		case int64:
			acc.sumI += x
			acc.sumF += float64(x)
		case decimal.Decimal:
			acc.sumD = acc.sumD.Add(x)
		case bool:
			if x {
				acc.sumI++
				acc.sumF++
			}
		case float64:
			acc.sumF += x
		}
	case CountDistinct:
		acc.distinct[Format(srcKind, v)] = struct{}{}
	case Max:
		if acc.value == nil || Compare(v, acc.value) > 0 {
			acc.value = v
		}
	case First:
		if acc.value == nil {
			acc.value = v
		}
	}
}

func (acc *accumulator) result() any {
	switch acc.agg.Op {
	case Count:
		return acc.count
	case CountDistinct:
		return int64(len(acc.distinct))
	case Sum:
		if acc.n == 0 {
			return nil
		}
		switch acc.kind {
		case Int:
			return acc.sumI
		case Money:
			return acc.sumD
		default:
			return acc.sumF
		}
	case Mean:
		if acc.n == 0 {
			return nil
		}
		if acc.kind == Money {
			return RoundMoney(acc.sumD.Div(decimal.NewFromInt(acc.n)))
		}
		return acc.sumF / float64(acc.n)
	default:
		return acc.value
	}
}

// GroupBy groups rows on keys and applies the policy to each group. The
// output has the key columns followed by one column per aggregation, with
// groups in first-seen order and Grain set to keys.
func GroupBy(t *Table, name string, keys []string, policy Policy) (*Table, error) {
	keyIdx := make([]int, len(keys))
	schema := make(Schema, 0, len(keys)+len(policy))
	for i, k := range keys {
		keyIdx[i] = t.Index(k)
		if keyIdx[i] < 0 {
			return nil, fmt.Errorf("group %s: unknown key column %q", name, k)
		}
		schema = append(schema, t.Schema[keyIdx[i]])
	}

	srcIdx := make([]int, len(policy))
	srcKinds := make([]Kind, len(policy))
	for i, a := range policy {
		src := Column{Name: a.Source, Kind: Int}
		srcIdx[i] = -1
		if a.Op != Count {
			srcIdx[i] = t.Index(a.Source)
			if srcIdx[i] < 0 {
				return nil, fmt.Errorf("group %s: aggregation %s reads unknown column %q", name, a.Name, a.Source)
			}
			src = t.Schema[srcIdx[i]]
		}
		srcKinds[i] = src.Kind
		schema = append(schema, Column{
			Name:     a.Name,
			Kind:     a.outputKind(src),
			Nullable: a.Op != Count && a.Op != CountDistinct && src.Nullable,
		})
	}

	type group struct {
		key  Row
		accs []*accumulator
	}
	groups := make(map[string]*group)
	var order []string

	for _, r := range t.Rows {
		k := t.key(r, keyIdx)
		g, ok := groups[k]
		if !ok {
			g = &group{key: make(Row, len(keys)), accs: make([]*accumulator, len(policy))}
			for i, ki := range keyIdx {
				g.key[i] = r[ki]
			}
			for i, a := range policy {
				g.accs[i] = &accumulator{agg: a, kind: schema[len(keys)+i].Kind}
				if a.Op == CountDistinct {
					g.accs[i].distinct = make(map[string]struct{})
				}
			}
			groups[k] = g
			order = append(order, k)
		}
		for i, acc := range g.accs {
			var v any
			if srcIdx[i] >= 0 {
				v = r[srcIdx[i]]
			}
			acc.add(v, srcKinds[i])
		}
	}

	out := New(name, schema, keys...)
	out.Rows = make([]Row, 0, len(order))
	for _, k := range order {
		g := groups[k]
		row := make(Row, 0, len(schema))
		row = append(row, g.key...)
		for _, acc := range g.accs {
			row = append(row, acc.result())
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}
