package fact

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/leapstack-labs/mktwh/internal/table"
	"github.com/leapstack-labs/mktwh/internal/warehouse"
	"github.com/leapstack-labs/mktwh/pkg/core"
)

// daysPerWeek is the expansion factor of weekly OOH rows.
const daysPerWeek = 7

// OOHWeeklySchema is the canonical weekly airport media row.
var OOHWeeklySchema = table.Schema{
	{Name: "week_start_date", Kind: table.Date},
	{Name: "airport_code", Kind: table.String},
	{Name: "airport_name", Kind: table.String, Nullable: true},
	{Name: "format", Kind: table.String, Nullable: true},
	{Name: "audience_segment", Kind: table.String, Nullable: true},
	{Name: "spend", Kind: table.Money},
	{Name: "impressions", Kind: table.Int},
	{Name: "placements", Kind: table.Int, Nullable: true},
}

// OOHDailySchema is the column layout of fact_ooh_daily.
var OOHDailySchema = table.Schema{
	{Name: "date", Kind: table.Date},
	{Name: "airport_code", Kind: table.String},
	{Name: "airport_name", Kind: table.String, Nullable: true},
	{Name: "state", Kind: table.String, Nullable: true},
	{Name: "format", Kind: table.String, Nullable: true},
	{Name: "audience_segment", Kind: table.String, Nullable: true},
	{Name: "spend", Kind: table.Money},
	{Name: "impressions", Kind: table.Int},
	{Name: "placements", Kind: table.Int, Nullable: true},
}

// OOH expands each weekly row into seven daily rows. Spend and impressions
// are flows, apportioned in whole minor units so each week sums exactly to
// its source; placements is a stock and is copied.
func OOH(env Env) (*Result, error) {
	weekly, res, err := load(env, core.StreamOOH, OOHWeeklySchema)
	if err != nil {
		return nil, err
	}

	daily := table.New(warehouse.FactOOHDaily, OOHDailySchema, grainOf(warehouse.FactOOHDaily)...)
	daily.Rows = make([]table.Row, 0, weekly.Len()*daysPerWeek)
	misses := map[string]bool{}
	for _, r := range weekly.Rows {
		start := r[0].(time.Time)
		code := r[1].(string)
		var state any
		if env.Lookup != nil {
			if s, ok := env.Lookup.State(code); ok {
				state = s
			}
		}
		if state == nil && !misses[code] {
			misses[code] = true
			env.logger().Warn("airport not in reference lookup", "table", warehouse.FactOOHDaily, "airport_code", code)
		}

		spend := ApportionMoney(r[5].(decimal.Decimal), daysPerWeek)
		impressions := Apportion(r[6].(int64), daysPerWeek)
		for d := 0; d < daysPerWeek; d++ {
			daily.Append(table.Row{
				start.AddDate(0, 0, d), code, r[2], state, r[3], r[4],
				spend[d], impressions[d], r[7],
			})
		}
	}

	res.Actions = append(res.Actions,
		fmt.Sprintf("expanded %d weekly rows to %d daily rows", weekly.Len(), daily.Len()),
		"spend and impressions apportioned across 7 days",
		"placements copied to every day",
		fmt.Sprintf("airport state lookup misses: %d", len(misses)))
	res.Tables = []*table.Table{daily}
	return res, nil
}
