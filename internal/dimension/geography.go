package dimension

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/leapstack-labs/mktwh/internal/reference"
	"github.com/leapstack-labs/mktwh/internal/source"
	"github.com/leapstack-labs/mktwh/internal/table"
	"github.com/leapstack-labs/mktwh/internal/warehouse"
	"github.com/leapstack-labs/mktwh/pkg/core"
)

// Geography scopes.
const (
	ScopeLocal    = "local"
	ScopeNational = "national"
	ScopeInferred = "inferred"
)

// GeographySchema is the column layout of dim_geography.
var GeographySchema = table.Schema{
	{Name: "geo_key", Kind: table.Int},
	{Name: "dma_name", Kind: table.String, Nullable: true},
	{Name: "state", Kind: table.String, Nullable: true},
	{Name: "zip_code", Kind: table.String, Nullable: true},
	{Name: "airport_code", Kind: table.String, Nullable: true},
	{Name: "airport_name", Kind: table.String, Nullable: true},
	{Name: "geo_scope", Kind: table.String},
}

var (
	localGeoSchema = table.Schema{
		{Name: "dma_name", Kind: table.String, Nullable: true},
		{Name: "state", Kind: table.String, Nullable: true},
	}
	airportSchema = table.Schema{
		{Name: "airport_code", Kind: table.String},
		{Name: "airport_name", Kind: table.String, Nullable: true},
	}
	podcastNameSchema = table.Schema{
		{Name: "podcast_name", Kind: table.String},
	}
)

// localStreams carry a (dma_name, state) pair on every row.
var localStreams = []core.Stream{core.StreamPaidSocial, core.StreamWebAnalytics, core.StreamEcommerce}

// GeographyInput holds the source values the geography dimension is built from.
type GeographyInput struct {
	// Local has dma_name and state columns.
	Local *table.Table
	// Airports has airport_code and airport_name columns in extract order.
	Airports *table.Table
	// PodcastNames may contain duplicates.
	PodcastNames []string
	// RowsRead counts raw rows scanned.
	RowsRead int
}

// LoadGeographyInput scans the local, OOH and podcast extracts.
func LoadGeographyInput(reg *source.Registry, dataDir string) (GeographyInput, error) {
	var in GeographyInput

	var locals []*table.Table
	for _, s := range localStreams {
		batches, err := source.LoadStream(reg, dataDir, s, localGeoSchema)
		if err != nil {
			return in, fmt.Errorf("dim_geography: %w", err)
		}
		for _, b := range batches {
			locals = append(locals, b.Table)
			in.RowsRead += b.RowsRead
		}
	}
	local, err := table.Concat("local_geo", localGeoSchema, locals...)
	if err != nil {
		return in, err
	}
	in.Local = local

	batches, err := source.LoadStream(reg, dataDir, core.StreamOOH, airportSchema)
	if err != nil {
		return in, fmt.Errorf("dim_geography: %w", err)
	}
	if in.Airports, err = source.Union("ooh_airports", airportSchema, batches); err != nil {
		return in, err
	}
	read, _ := source.Totals(batches)
	in.RowsRead += read

	names, read, err := LoadPodcastNames(reg, dataDir)
	if err != nil {
		return in, fmt.Errorf("dim_geography: %w", err)
	}
	in.PodcastNames = names
	in.RowsRead += read
	return in, nil
}

// LoadPodcastNames returns the sorted distinct podcast names and the number
// of rows scanned.
func LoadPodcastNames(reg *source.Registry, dataDir string) ([]string, int, error) {
	batches, err := source.LoadStream(reg, dataDir, core.StreamPodcast, podcastNameSchema)
	if err != nil {
		return nil, 0, err
	}
	var names []string
	for _, b := range batches {
		for _, r := range b.Table.Rows {
			names = append(names, r[0].(string))
		}
	}
	slices.Sort(names)
	read, _ := source.Totals(batches)
	return slices.Compact(names), read, nil
}

// BuildGeography concatenates the local, national and inferred scopes and
// assigns dense keys. A name that appears in more than one scope yields one
// row per scope.
func BuildGeography(in GeographyInput, lookup *reference.Lookup, inf *Inferrer, logger *slog.Logger) (*table.Table, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	entry := warehouse.MustLookup(warehouse.DimGeography)
	t := table.New(entry.Name, GeographySchema, entry.Grain...)
	next := int64(1)
	add := func(dma, state, code, name any, scope string) {
		t.Append(table.Row{next, dma, state, nil, code, name, scope})
		next++
	}

	local, err := in.Local.Distinct("local", "dma_name", "state")
	if err != nil {
		return nil, err
	}
	if err := local.SortBy("dma_name", "state"); err != nil {
		return nil, err
	}
	for _, r := range local.Rows {
		add(r[0], r[1], nil, nil, ScopeLocal)
	}

	airports, err := in.Airports.Distinct("national", "airport_code", "airport_name")
	if err != nil {
		return nil, err
	}
	for _, r := range airports.Rows {
		code := r[0].(string)
		var state any
		if s, ok := lookup.State(code); ok {
			state = s
		} else {
			logger.Warn("airport not in reference lookup", "table", entry.Name, "airport_code", code)
		}
		add(nil, state, code, r[1], ScopeNational)
	}

	names := slices.Clone(in.PodcastNames)
	slices.Sort(names)
	for _, name := range slices.Compact(names) {
		var state any
		if s, ok := inf.Infer(name); ok {
			state = s
		}
		add(nil, state, nil, nil, ScopeInferred)
	}

	logger.Info("built dimension", "table", entry.Name, "rows_in", in.RowsRead, "rows_out", t.Len(),
		"local", local.Len(), "national", airports.Len(), "inferred", t.Len()-local.Len()-airports.Len())
	return t, nil
}
