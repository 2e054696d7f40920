package fact

import (
	"fmt"

	"github.com/leapstack-labs/mktwh/internal/table"
	"github.com/leapstack-labs/mktwh/internal/warehouse"
	"github.com/leapstack-labs/mktwh/pkg/core"
)

// OrganicPostSchema is the canonical owned-channel post snapshot.
var OrganicPostSchema = table.Schema{
	{Name: "date", Kind: table.Date},
	{Name: "post_id", Kind: table.String},
	{Name: "followers", Kind: table.Int, Nullable: true},
	{Name: "impressions", Kind: table.Int, Nullable: true},
	{Name: "video_views", Kind: table.Int, Nullable: true},
	{Name: "video_completes", Kind: table.Int, Nullable: true},
	{Name: "likes", Kind: table.Int, Nullable: true},
	{Name: "comments", Kind: table.Int, Nullable: true},
	{Name: "shares", Kind: table.Int, Nullable: true},
	{Name: "clicks", Kind: table.Int, Nullable: true},
	{Name: "saves", Kind: table.Int, Nullable: true},
}

// Followers is a stock measure, so the day's value is the maximum snapshot.
var organicDailyPolicy = table.Policy{
	{Name: "posts", Op: table.CountDistinct, Source: "post_id"},
	{Name: "followers_eod", Op: table.Max, Source: "followers"},
	{Name: "impressions", Op: table.Sum, Source: "impressions"},
	{Name: "video_views", Op: table.Sum, Source: "video_views"},
	{Name: "video_completes", Op: table.Sum, Source: "video_completes"},
	{Name: "likes", Op: table.Sum, Source: "likes"},
	{Name: "comments", Op: table.Sum, Source: "comments"},
	{Name: "shares", Op: table.Sum, Source: "shares"},
	{Name: "clicks", Op: table.Sum, Source: "clicks"},
	{Name: "saves", Op: table.Sum, Source: "saves"},
}

// OrganicSocial aggregates post-level rows to one row per day.
func OrganicSocial(env Env) (*Result, error) {
	all, res, err := load(env, core.StreamOrganicSocial, OrganicPostSchema)
	if err != nil {
		return nil, err
	}
	daily, err := table.GroupBy(all, warehouse.FactOrganicSocialDaily,
		grainOf(warehouse.FactOrganicSocialDaily), organicDailyPolicy)
	if err != nil {
		return nil, err
	}
	res.Actions = append(res.Actions, fmt.Sprintf("aggregated %d post rows to %d daily rows", all.Len(), daily.Len()))
	res.Tables = []*table.Table{daily}
	return res, nil
}
