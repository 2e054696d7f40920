package dimension

import (
	"github.com/leapstack-labs/mktwh/internal/table"
	"github.com/leapstack-labs/mktwh/internal/warehouse"
)

// ChannelSchema is the column layout of dim_channel.
var ChannelSchema = table.Schema{
	{Name: "channel_key", Kind: table.Int},
	{Name: "channel_name", Kind: table.String},
	{Name: "channel_group", Kind: table.String},
	{Name: "is_paid", Kind: table.Bool},
}

var channels = []table.Row{
	{int64(1), "instagram", "paid_social", true},
	{int64(2), "pinterest", "paid_social", true},
	{int64(3), "tiktok", "paid_social", true},
	{int64(4), "organic_tiktok", "organic_social", false},
	{int64(5), "web", "web_analytics", false},
	{int64(6), "podcast", "earned_media", false},
	{int64(7), "ooh_airport", "ooh", true},
}

// BuildChannel returns the static channel dimension.
func BuildChannel() *table.Table {
	entry := warehouse.MustLookup(warehouse.DimChannel)
	t := table.New(entry.Name, ChannelSchema, entry.Grain...)
	for _, r := range channels {
		t.Append(append(table.Row(nil), r...))
	}
	return t
}

// CampaignInitiativeSchema is the column layout of dim_campaign_initiative.
var CampaignInitiativeSchema = table.Schema{
	{Name: "initiative_key", Kind: table.Int},
	{Name: "initiative_name", Kind: table.String},
	{Name: "paid_social_campaign_pattern", Kind: table.String, Nullable: true},
	{Name: "web_analytics_campaign_value", Kind: table.String, Nullable: true},
	{Name: "notes", Kind: table.String},
}

// initiatives bridge paid social campaign names and web campaign values.
// "None" is a literal web campaign value, not a null.
var initiatives = []table.Row{
	{int64(1), "Always On",
		"Instagram Always On, Pinterest Always On, TikTok Always On",
		"Always On",
		"Direct theme match across both streams"},
	{int64(2), "BTS",
		"Instagram BTS Moms, Pinterest BTS Moms, TikTok BTS Moms",
		"BTS 2023, BTS 2024",
		"Web uses year-suffixed variants"},
	{int64(3), "Teen Trends",
		"Instagram Teen Trends, Pinterest Teen Trends, TikTok Teen Trends",
		nil,
		"No web analytics counterpart found"},
	{int64(4), "Black Friday", nil, "Black Friday 2023", "Web/promo only - no paid social campaign"},
	{int64(5), "Email Promo", nil, "Email Promo", "Web/promo only - no paid social campaign"},
	{int64(6), "Unattributed", nil, "None", "Web traffic with explicit 'None' campaign value"},
}

// BuildCampaignInitiative returns the static campaign initiative bridge.
func BuildCampaignInitiative() *table.Table {
	entry := warehouse.MustLookup(warehouse.DimCampaignInitiative)
	t := table.New(entry.Name, CampaignInitiativeSchema, entry.Grain...)
	for _, r := range initiatives {
		t.Append(append(table.Row(nil), r...))
	}
	return t
}
