package dimension

import (
	"slices"

	"github.com/leapstack-labs/mktwh/internal/table"
	"github.com/leapstack-labs/mktwh/internal/warehouse"
)

// geo_inferred values.
const (
	GeoExplicit = "explicit"
	GeoUnknown  = "unknown"
)

// PodcastSchema is the column layout of dim_podcast.
var PodcastSchema = table.Schema{
	{Name: "podcast_key", Kind: table.Int},
	{Name: "podcast_name", Kind: table.String},
	{Name: "geo_inferred", Kind: table.String},
	{Name: "geo_state", Kind: table.String, Nullable: true},
}

// BuildPodcast returns one row per distinct podcast name, sorted, with the
// state inferred from the name when a keyword matches.
func BuildPodcast(names []string, inf *Inferrer) *table.Table {
	entry := warehouse.MustLookup(warehouse.DimPodcast)
	t := table.New(entry.Name, PodcastSchema, entry.Grain...)
	sorted := slices.Clone(names)
	slices.Sort(sorted)
	for i, name := range slices.Compact(sorted) {
		row := table.Row{int64(i + 1), name, GeoUnknown, nil}
		if s, ok := inf.Infer(name); ok {
			row[2], row[3] = GeoExplicit, s
		}
		t.Append(row)
	}
	return t
}
