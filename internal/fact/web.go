package fact

import (
	"fmt"

	"github.com/leapstack-labs/mktwh/internal/table"
	"github.com/leapstack-labs/mktwh/internal/warehouse"
	"github.com/leapstack-labs/mktwh/pkg/core"
)

// WebEventSchema is the canonical web analytics event.
var WebEventSchema = table.Schema{
	{Name: "event_datetime", Kind: table.Timestamp},
	{Name: "session_id", Kind: table.String},
	{Name: "user_id", Kind: table.String, Nullable: true},
	{Name: "traffic_source", Kind: table.String, Nullable: true},
	{Name: "traffic_medium", Kind: table.String, Nullable: true},
	{Name: "campaign", Kind: table.String, Nullable: true},
	{Name: "device_category", Kind: table.String, Nullable: true},
	{Name: "dma_name", Kind: table.String, Nullable: true},
	{Name: "state", Kind: table.String, Nullable: true},
}

var webDailyPolicy = table.Policy{
	{Name: "pageviews", Op: table.Count},
	{Name: "sessions", Op: table.CountDistinct, Source: "session_id"},
	{Name: "users", Op: table.CountDistinct, Source: "user_id"},
}

// WebAnalytics unions the web extracts after their exclusions, derives the
// event date, and aggregates events to the daily grain. The post-exclusion
// events are kept as fact_web_analytics_events.
func WebAnalytics(env Env) (*Result, error) {
	all, res, err := load(env, core.StreamWebAnalytics, WebEventSchema)
	if err != nil {
		return nil, err
	}

	events := derive(all, warehouse.FactWebAnalyticsEvents,
		prepend(table.Column{Name: "date", Kind: table.Date}, WebEventSchema),
		func(r table.Row) table.Row {
			return append(table.Row{dayOf(r[0])}, r...)
		})

	daily, err := table.GroupBy(events, warehouse.FactWebAnalyticsDaily,
		grainOf(warehouse.FactWebAnalyticsDaily), webDailyPolicy)
	if err != nil {
		return nil, err
	}

	res.Actions = append(res.Actions,
		fmt.Sprintf("rows after dedup: %d", events.Len()),
		fmt.Sprintf("aggregated %d events to %d daily rows", events.Len(), daily.Len()))
	res.Tables = []*table.Table{daily, events}
	return res, nil
}
