package table

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/mktwh/pkg/core"
)

// DuplicateRows counts the rows that share their grain key with at least one
// other row, and returns the first such key in row order.
func DuplicateRows(t *Table, grain []string) (int, string, error) {
	idx := make([]int, len(grain))
	for i, g := range grain {
		idx[i] = t.Index(g)
		if idx[i] < 0 {
			return 0, "", fmt.Errorf("table %s: unknown grain column %q", t.Name, g)
		}
	}
	counts := make(map[string]int, len(t.Rows))
	keys := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		keys[i] = t.key(r, idx)
		counts[keys[i]]++
	}
	dups := 0
	sample := ""
	for _, k := range keys {
		if counts[k] > 1 {
			dups++
			if sample == "" {
				sample = strings.ReplaceAll(strings.ReplaceAll(k, "\x1f", "|"), "\x00", "<null>")
			}
		}
	}
	return dups, sample, nil
}

// CheckGrain returns a *core.GrainError when the table has duplicate grain keys.
func CheckGrain(t *Table) error {
	if len(t.Grain) == 0 {
		return nil
	}
	dups, sample, err := DuplicateRows(t, t.Grain)
	if err != nil {
		return err
	}
	if dups > 0 {
		return &core.GrainError{Table: t.Name, Grain: t.Grain, Duplicates: dups, SampleKey: sample}
	}
	return nil
}
