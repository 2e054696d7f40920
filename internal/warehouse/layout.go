// Package warehouse defines the output catalog and layout of the warehouse
// directory and writes tables to it atomically.
package warehouse

import (
	"fmt"
	"os"
	"path/filepath"
)

// Table names.
const (
	DimDate               = "dim_date"
	DimGeography          = "dim_geography"
	DimChannel            = "dim_channel"
	DimCampaignInitiative = "dim_campaign_initiative"
	DimPodcast            = "dim_podcast"

	FactPaidSocialDaily      = "fact_paid_social_daily"
	FactWebAnalyticsDaily    = "fact_web_analytics_daily"
	FactWebAnalyticsEvents   = "fact_web_analytics_events"
	FactEcommerceDaily       = "fact_ecommerce_daily"
	FactEcommerceTransaction = "fact_ecommerce_transactions"
	FactOrganicSocialDaily   = "fact_organic_social_daily"
	FactPodcastDaily         = "fact_podcast_daily"
	FactOOHDaily             = "fact_ooh_daily"
)

// Entry describes one produced table.
type Entry struct {
	Name string
	Dir  string
	// Grain is empty for pass-through tables.
	Grain []string
	// DateColumn is empty for tables without a date.
	DateColumn string
	// NullableByDesign columns are exempt from the non-empty check.
	NullableByDesign []string
}

// File returns the table's path relative to the warehouse root.
func (e Entry) File() string {
	return filepath.Join(e.Dir, e.Name+".csv")
}

// Catalog lists every produced table in build order.
var Catalog = []Entry{
	{Name: DimDate, Dir: "dimensions", Grain: []string{"date"}, DateColumn: "date"},
	{Name: DimGeography, Dir: "dimensions", Grain: []string{"geo_key"}, NullableByDesign: []string{"zip_code"}},
	{Name: DimChannel, Dir: "dimensions", Grain: []string{"channel_key"}},
	{Name: DimCampaignInitiative, Dir: "dimensions", Grain: []string{"initiative_key"}},
	{Name: DimPodcast, Dir: "dimensions", Grain: []string{"podcast_key"}},

	{Name: FactPaidSocialDaily, Dir: "fact_paid_social", DateColumn: "date",
		Grain: []string{"date", "channel", "campaign_id", "dma_name"}},
	{Name: FactWebAnalyticsDaily, Dir: "fact_web_analytics", DateColumn: "date",
		Grain: []string{"date", "traffic_source", "traffic_medium", "campaign", "device_category", "dma_name", "state"}},
	{Name: FactWebAnalyticsEvents, Dir: "fact_web_analytics", DateColumn: "date"},
	{Name: FactEcommerceDaily, Dir: "fact_ecommerce", DateColumn: "date",
		Grain: []string{"date", "dma_name", "state", "product_category", "size", "promo_flag"}},
	{Name: FactEcommerceTransaction, Dir: "fact_ecommerce", DateColumn: "date"},
	{Name: FactOrganicSocialDaily, Dir: "fact_organic_social", DateColumn: "date",
		Grain: []string{"date"}},
	{Name: FactPodcastDaily, Dir: "fact_podcast", DateColumn: "date",
		Grain: []string{"date", "podcast_name", "episode_title"}},
	{Name: FactOOHDaily, Dir: "fact_ooh", DateColumn: "date",
		Grain: []string{"date", "airport_code", "format", "audience_segment"}},
}

// Lookup returns the catalog entry for a table.
func Lookup(name string) (Entry, bool) {
	for _, e := range Catalog {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// MustLookup is like Lookup but panics for unknown tables.
func MustLookup(name string) Entry {
	e, ok := Lookup(name)
	if !ok {
		panic(fmt.Sprintf("warehouse: unknown table %q", name))
	}
	return e
}

// Layout resolves catalog entries under a root directory.
type Layout struct {
	Root string
}

// Path returns the absolute-or-root-relative path of a table.
func (l Layout) Path(name string) (string, error) {
	e, ok := Lookup(name)
	if !ok {
		return "", fmt.Errorf("unknown warehouse table %q", name)
	}
	return filepath.Join(l.Root, e.File()), nil
}

// Prepare creates every output directory.
func (l Layout) Prepare() error {
	seen := map[string]bool{}
	for _, e := range Catalog {
		if seen[e.Dir] {
			continue
		}
		seen[e.Dir] = true
		if err := os.MkdirAll(filepath.Join(l.Root, e.Dir), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", e.Dir, err)
		}
	}
	return nil
}
