package fact

import (
	"github.com/leapstack-labs/mktwh/internal/table"
	"github.com/leapstack-labs/mktwh/internal/warehouse"
	"github.com/leapstack-labs/mktwh/pkg/core"
)

// PaidSocialSchema is the canonical paid social row and the column layout
// of fact_paid_social_daily.
var PaidSocialSchema = table.Schema{
	{Name: "date", Kind: table.Date},
	{Name: "channel", Kind: table.String},
	{Name: "campaign_name", Kind: table.String, Nullable: true},
	{Name: "campaign_id", Kind: table.String},
	{Name: "dma_name", Kind: table.String, Nullable: true},
	{Name: "state", Kind: table.String, Nullable: true},
	{Name: "spend", Kind: table.Money},
	{Name: "impressions", Kind: table.Int, Nullable: true},
	{Name: "clicks", Kind: table.Int, Nullable: true},
	{Name: "video_views", Kind: table.Int, Nullable: true},
	{Name: "video_25pct", Kind: table.Int, Nullable: true},
	{Name: "video_50pct", Kind: table.Int, Nullable: true},
	{Name: "video_75pct", Kind: table.Int, Nullable: true},
	{Name: "video_completes", Kind: table.Int, Nullable: true},
	{Name: "optimization_goal", Kind: table.String, Nullable: true},
	{Name: "age_target", Kind: table.String, Nullable: true, Optional: true},
	{Name: "audience_segment", Kind: table.String, Nullable: true, Optional: true},
}

// PaidSocial unions the paid social extracts. Extracts are already at
// daily grain, so no aggregation happens; duplicates surface as a grain error.
func PaidSocial(env Env) (*Result, error) {
	all, res, err := load(env, core.StreamPaidSocial, PaidSocialSchema)
	if err != nil {
		return nil, err
	}
	all.Name = warehouse.FactPaidSocialDaily
	all.Grain = grainOf(warehouse.FactPaidSocialDaily)
	res.Tables = []*table.Table{all}
	return res, nil
}
