package validate

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/mktwh/internal/warehouse"
)

// MonthCount is the number of rows of a table dated in one month.
type MonthCount struct {
	Table string `json:"table"`
	Month string `json:"month"`
	Rows  int    `json:"rows"`
}

// ByMonth counts rows per calendar month for every dated table present in
// the warehouse, ordered by table then month.
func ByMonth(layout warehouse.Layout) ([]MonthCount, error) {
	var out []MonthCount
	for _, e := range warehouse.Catalog {
		if e.DateColumn == "" {
			continue
		}
		raw, err := layout.Read(e.Name)
		if err != nil {
			return nil, fmt.Errorf("monthly counts: %w", err)
		}
		vals, ok := raw.Values(e.DateColumn)
		if !ok {
			return nil, fmt.Errorf("monthly counts: %s has no %s column", e.Name, e.DateColumn)
		}
		counts := map[string]int{}
		for _, v := range vals {
			if len(v) < 7 {
				continue
			}
			counts[v[:7]]++
		}
		months := make([]string, 0, len(counts))
		for m := range counts {
			months = append(months, m)
		}
		sort.Strings(months)
		for _, m := range months {
			out = append(out, MonthCount{Table: e.Name, Month: m, Rows: counts[m]})
		}
	}
	return out, nil
}
