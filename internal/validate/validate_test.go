package validate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/mktwh/internal/dimension"
	"github.com/leapstack-labs/mktwh/internal/fact"
	"github.com/leapstack-labs/mktwh/internal/reference"
	"github.com/leapstack-labs/mktwh/internal/source"
	"github.com/leapstack-labs/mktwh/internal/table"
	"github.com/leapstack-labs/mktwh/internal/testutil"
	"github.com/leapstack-labs/mktwh/internal/warehouse"
	"github.com/leapstack-labs/mktwh/pkg/core"
)

var testWindow = core.MustWindow("2023-01-01", "2024-06-30")

// buildWarehouse writes the raw fixtures, applies edits to the data
// directory and builds every table from the result.
func buildWarehouse(t *testing.T, edits ...func(dataDir string)) Config {
	t.Helper()
	dir := t.TempDir()
	dataDir, refDir := filepath.Join(dir, "data"), filepath.Join(dir, "ref")
	testutil.WriteRawFixtures(t, dataDir, refDir)
	for _, edit := range edits {
		edit(dataDir)
	}
	layout := warehouse.Layout{Root: filepath.Join(dir, "wh")}
	reg := source.Default()
	logger := testutil.NewTestLogger(t)

	lookup, err := reference.LoadLookup(filepath.Join(refDir, "airport_lookup.csv"))
	require.NoError(t, err)

	dimDate, err := dimension.BuildDate(testWindow, dimension.DefaultSeasons)
	require.NoError(t, err)
	in, err := dimension.LoadGeographyInput(reg, dataDir)
	require.NoError(t, err)
	geo, err := dimension.BuildGeography(in, lookup, dimension.DefaultInferrer(), logger)
	require.NoError(t, err)
	names, _, err := dimension.LoadPodcastNames(reg, dataDir)
	require.NoError(t, err)

	for _, tbl := range []*table.Table{
		dimDate, geo, dimension.BuildChannel(), dimension.BuildCampaignInitiative(),
		dimension.BuildPodcast(names, dimension.DefaultInferrer()),
	} {
		_, err := layout.Write(tbl)
		require.NoError(t, err)
	}

	env := fact.Env{Registry: reg, DataDir: dataDir, Window: testWindow, Lookup: lookup, Logger: logger}
	for _, tr := range fact.Transforms {
		_, err := fact.Run(tr, env, layout)
		require.NoError(t, err, tr.Name)
	}

	return Config{
		Layout:    layout,
		Registry:  reg,
		DataDir:   dataDir,
		Window:    testWindow,
		Tolerance: 0.01,
		Logger:    logger,
	}
}

func find(r *Report, tbl, check string) core.CheckResult {
	for _, c := range r.Checks {
		if c.Table == tbl && c.Check == check {
			return c
		}
	}
	return core.CheckResult{}
}

func TestRun_AllPass(t *testing.T) {
	cfg := buildWarehouse(t)
	report, err := Run(cfg)
	require.NoError(t, err)

	for _, c := range report.Failed() {
		t.Errorf("unexpected failure: %+v", c)
	}
	assert.True(t, report.Passed())
	assert.NoError(t, report.Err())

	spine := find(report, warehouse.DimDate, core.CheckDateSpine)
	assert.Equal(t, "547 days", spine.Observed)

	dedup := find(report, warehouse.FactWebAnalyticsEvents, core.CheckDedupAccounting)
	assert.Equal(t, core.CheckPass, dedup.Status)
	assert.Equal(t, "raw 5 - excluded 1", dedup.Detail)

	require.Len(t, report.Deltas, 3)
	for _, d := range report.Deltas {
		assert.True(t, d.Delta.IsZero(), "%s delta %s", d.Table, d.Delta)
	}
	assert.Equal(t, testutil.FixturePaidSpend, table.FormatMoney(report.Deltas[0].Raw))
	assert.Equal(t, 547, report.Rows[warehouse.DimDate])

	geo := find(report, warehouse.DimGeography, core.CheckNonEmptyColumns)
	assert.Equal(t, core.CheckPass, geo.Status)
	assert.Contains(t, geo.Detail, "zip_code")
}

func TestRun_ReconcileFailure(t *testing.T) {
	cfg := buildWarehouse(t)
	path, err := cfg.Layout.Path(warehouse.FactOOHDaily)
	require.NoError(t, err)
	body, err := os.ReadFile(path)
	require.NoError(t, err)
	// Inflate one day of ATL spend by a dollar.
	tampered := strings.Replace(string(body), ",142.86,", ",143.86,", 1)
	require.NotEqual(t, string(body), tampered)
	require.NoError(t, os.WriteFile(path, []byte(tampered), 0o644))

	report, err := Run(cfg)
	require.NoError(t, err)
	assert.False(t, report.Passed())

	c := find(report, warehouse.FactOOHDaily, core.CheckReconcile)
	assert.Equal(t, core.CheckFail, c.Status)
	assert.Contains(t, c.Observed, "raw 1100.00, warehouse 1101.00")
	require.Error(t, report.Err())
	assert.Contains(t, report.Err().Error(), "reconcile on fact_ooh_daily")

	assert.Len(t, report.Failed(), 1)
}

// subCentInstagram replaces the first Instagram extract with three rows
// whose spend carries a tenth of a cent.
func subCentInstagram(t *testing.T) func(string) {
	return func(dataDir string) {
		testutil.WriteFile(t, filepath.Join(dataDir, "sBelles_paid_instagram_part1.csv"),
			"date,channel,campaign_name,campaign_id,dma_name,state,spend,impressions,clicks,"+
				"video_views,video_25pct,video_50pct,video_75pct,video_completes,optimization_goal\n"+
				"2023-01-01,instagram,Instagram Always On,IG-AO-1,Atlanta,GA,1.004,10,1,1,1,1,1,1,reach\n"+
				"2023-01-02,instagram,Instagram Always On,IG-AO-1,Atlanta,GA,1.004,10,1,1,1,1,1,1,reach\n"+
				"2023-01-03,instagram,Instagram Always On,IG-AO-1,Atlanta,GA,1.004,10,1,1,1,1,1,1,reach\n")
	}
}

func TestRun_ReconcileSubCentSpend(t *testing.T) {
	cfg := buildWarehouse(t, subCentInstagram(t))

	report, err := Run(cfg)
	require.NoError(t, err)

	c := find(report, warehouse.FactPaidSocialDaily, core.CheckReconcile)
	assert.Equal(t, core.CheckPass, c.Status, c.Observed)
	assert.Equal(t, "raw 63.352, warehouse 63.352, delta 0.00", c.Observed)
	assert.True(t, report.Passed())
}

func TestRun_ReconcileWithinTolerance(t *testing.T) {
	cfg := buildWarehouse(t, subCentInstagram(t))
	path, err := cfg.Layout.Path(warehouse.FactPaidSocialDaily)
	require.NoError(t, err)
	body, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := strings.Replace(string(body), ",1.004,", ",1.000,", 1)
	require.NotEqual(t, string(body), tampered)
	require.NoError(t, os.WriteFile(path, []byte(tampered), 0o644))

	report, err := Run(cfg)
	require.NoError(t, err)
	c := find(report, warehouse.FactPaidSocialDaily, core.CheckReconcile)
	assert.Equal(t, core.CheckPass, c.Status, c.Observed)
	assert.Equal(t, "raw 63.352, warehouse 63.348, delta 0.004", c.Observed)

	cfg.Tolerance = 0.003
	report, err = Run(cfg)
	require.NoError(t, err)
	c = find(report, warehouse.FactPaidSocialDaily, core.CheckReconcile)
	assert.Equal(t, core.CheckFail, c.Status)
}

func TestRun_MissingTable(t *testing.T) {
	cfg := buildWarehouse(t)
	path, err := cfg.Layout.Path(warehouse.FactWebAnalyticsEvents)
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	report, err := Run(cfg)
	require.NoError(t, err)

	assert.Equal(t, core.CheckFail, find(report, warehouse.FactWebAnalyticsEvents, core.CheckFileExists).Status)
	assert.Equal(t, core.CheckFail, find(report, warehouse.FactWebAnalyticsEvents, core.CheckDedupAccounting).Status)
	_, fail := report.Counts()
	assert.Equal(t, 2, fail)
}

func TestRun_DuplicateGrainAndEmptyColumn(t *testing.T) {
	cfg := buildWarehouse(t)
	path, err := cfg.Layout.Path(warehouse.FactOrganicSocialDaily)
	require.NoError(t, err)
	body, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	dup := append(lines, lines[1])
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(dup, "\n")+"\n"), 0o644))

	report, err := Run(cfg)
	require.NoError(t, err)
	grain := find(report, warehouse.FactOrganicSocialDaily, core.CheckGrainUnique)
	assert.Equal(t, core.CheckFail, grain.Status)
	assert.Equal(t, "2 duplicates", grain.Observed)
}

func TestRun_DateSpineGap(t *testing.T) {
	cfg := buildWarehouse(t)
	short, err := dimension.BuildDate(core.MustWindow("2023-01-01", "2024-06-29"), dimension.DefaultSeasons)
	require.NoError(t, err)
	_, err = cfg.Layout.Write(short)
	require.NoError(t, err)

	report, err := Run(cfg)
	require.NoError(t, err)
	spine := find(report, warehouse.DimDate, core.CheckDateSpine)
	assert.Equal(t, core.CheckFail, spine.Status)
	assert.Equal(t, "546 days", spine.Observed)
}

func TestRun_DateRangeViolation(t *testing.T) {
	cfg := buildWarehouse(t)
	cfg.Window = core.MustWindow("2023-01-01", "2023-12-31")

	report, err := Run(cfg)
	require.NoError(t, err)
	c := find(report, warehouse.FactOrganicSocialDaily, core.CheckDateRange)
	assert.Equal(t, core.CheckFail, c.Status)
	assert.Equal(t, "2023-05-01..2024-02-01", c.Observed)
}

func TestRun_InvalidConfig(t *testing.T) {
	_, err := Run(Config{Window: testWindow, Tolerance: -1})
	assert.Error(t, err)
	_, err = Run(Config{})
	assert.Error(t, err)
}

func TestByMonth(t *testing.T) {
	cfg := buildWarehouse(t)
	counts, err := ByMonth(cfg.Layout)
	require.NoError(t, err)

	got := map[string]int{}
	for _, c := range counts {
		got[c.Table+"/"+c.Month] = c.Rows
	}
	assert.Equal(t, 31, got["dim_date/2023-01"])
	assert.Equal(t, 29, got["dim_date/2024-02"])
	assert.Equal(t, 14, got["fact_ooh_daily/2023-01"])
	assert.Equal(t, 3, got["fact_web_analytics_events/2023-12"])
	assert.Equal(t, 1, got["fact_web_analytics_events/2024-01"])
}
