package fact

import (
	"fmt"

	"github.com/leapstack-labs/mktwh/internal/table"
	"github.com/leapstack-labs/mktwh/internal/warehouse"
	"github.com/leapstack-labs/mktwh/pkg/core"
)

// PodcastMentionSchema is the canonical podcast mention.
var PodcastMentionSchema = table.Schema{
	{Name: "mention_datetime", Kind: table.Timestamp},
	{Name: "episode_release_date", Kind: table.Date, Nullable: true},
	{Name: "podcast_name", Kind: table.String},
	{Name: "episode_title", Kind: table.String, Nullable: true},
	{Name: "host_name", Kind: table.String, Nullable: true},
	{Name: "mentions_brand", Kind: table.Bool, Nullable: true},
	{Name: "mentions_founder", Kind: table.Bool, Nullable: true},
	{Name: "sentiment", Kind: table.String, Nullable: true},
	{Name: "estimated_impressions", Kind: table.Int, Nullable: true},
	{Name: "episode_rating", Kind: table.Float, Nullable: true},
}

var podcastDailyPolicy = table.Policy{
	{Name: "host_name", Op: table.First, Source: "host_name"},
	{Name: "mentions_brand", Op: table.Max, Source: "mentions_brand"},
	{Name: "mentions_founder", Op: table.Max, Source: "mentions_founder"},
	{Name: "sentiment", Op: table.First, Source: "sentiment"},
	{Name: "estimated_impressions", Op: table.Sum, Source: "estimated_impressions"},
	{Name: "episode_rating", Op: table.First, Source: "episode_rating"},
	{Name: "mentions", Op: table.Count},
}

// Podcast groups mentions by day, podcast and episode.
func Podcast(env Env) (*Result, error) {
	all, res, err := load(env, core.StreamPodcast, PodcastMentionSchema)
	if err != nil {
		return nil, err
	}
	mentions := derive(all, "podcast_mentions",
		prepend(table.Column{Name: "date", Kind: table.Date}, PodcastMentionSchema),
		func(r table.Row) table.Row {
			return append(table.Row{dayOf(r[0])}, r...)
		})
	daily, err := table.GroupBy(mentions, warehouse.FactPodcastDaily,
		grainOf(warehouse.FactPodcastDaily), podcastDailyPolicy)
	if err != nil {
		return nil, err
	}

	multi := 0
	for i := range daily.Rows {
		if daily.Get(i, "mentions").(int64) > 1 {
			multi++
		}
	}
	res.Actions = append(res.Actions,
		fmt.Sprintf("grouped %d mentions to %d episode-date rows", mentions.Len(), daily.Len()),
		fmt.Sprintf("multi-mention episodes: %d", multi))
	res.Tables = []*table.Table{daily}
	return res, nil
}
