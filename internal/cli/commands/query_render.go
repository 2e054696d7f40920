package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/leapstack-labs/mktwh/internal/cli/output"
	"github.com/leapstack-labs/mktwh/internal/query"
)

func renderResult(r *output.Renderer, res *query.Result) error {
	if r.EffectiveMode() == output.ModeJSON {
		out := output.QueryOutput{
			Columns:   res.Columns,
			Rows:      make([]map[string]string, 0, len(res.Rows)),
			RowCount:  len(res.Rows),
			ElapsedMS: res.Elapsed.Milliseconds(),
		}
		for _, row := range res.Rows {
			m := make(map[string]string, len(row))
			for i, col := range res.Columns {
				m[col] = row[i]
			}
			out.Rows = append(out.Rows, m)
		}
		return r.JSON(out)
	}

	if len(res.Rows) == 0 {
		r.Println("(0 rows)")
		return nil
	}
	r.Table(res.Columns, res.Rows)
	r.Muted(fmt.Sprintf("(%s rows, %s)", r.Count(int64(len(res.Rows))), res.Elapsed.Round(time.Millisecond)))
	return nil
}

func listTables(r *output.Renderer, sess *query.Session) {
	for _, name := range sess.Tables() {
		r.Println(name)
	}
}

// showSchema describes one warehouse view.
func showSchema(ctx context.Context, r *output.Renderer, sess *query.Session, name string) error {
	known := false
	for _, t := range sess.Tables() {
		if t == name {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("table '%s' not found", name)
	}
	res, err := sess.Query(ctx, "DESCRIBE "+name)
	if err != nil {
		return err
	}
	// column_name, column_type and null are the first three DESCRIBE columns.
	rows := make([][]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		if len(row) >= 3 {
			rows = append(rows, row[:3])
		}
	}
	r.Header(2, name)
	r.Table([]string{"column", "type", "nullable"}, rows)
	return nil
}
