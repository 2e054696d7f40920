package source

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/mktwh/internal/table"
	"github.com/leapstack-labs/mktwh/internal/testutil"
	"github.com/leapstack-labs/mktwh/pkg/core"
)

var paidSchema = table.Schema{
	{Name: "date", Kind: table.Date},
	{Name: "channel", Kind: table.String},
	{Name: "campaign_id", Kind: table.String},
	{Name: "spend", Kind: table.Money},
	{Name: "clicks", Kind: table.Int, Nullable: true},
	{Name: "video_views", Kind: table.Int, Nullable: true},
	{Name: "video_25pct", Kind: table.Int, Nullable: true},
	{Name: "optimization_goal", Kind: table.String, Nullable: true},
	{Name: "age_target", Kind: table.String, Nullable: true, Optional: true},
}

func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteRawFixtures(t, filepath.Join(dir, "data"), filepath.Join(dir, "ref"))
	return filepath.Join(dir, "data")
}

func TestDefaultRegistry(t *testing.T) {
	reg := Default()

	for _, s := range core.Streams {
		assert.NotEmpty(t, reg.Glob(s), "stream %s has no glob", s)
		assert.NotEmpty(t, reg.Sources(s), "stream %s has no sources", s)
	}
	assert.Len(t, reg.Sources(core.StreamPaidSocial), 9)
	assert.Len(t, reg.Sources(core.StreamWebAnalytics), 4)
	assert.Equal(t, "sBelles_web_*.csv", reg.Glob(core.StreamWebAnalytics))

	d := reg.Describe(core.StreamWebAnalytics, "sBelles_web_traffic_2024_Q1.csv")
	assert.Equal(t, "web_2024_q1", d.ID)
	assert.True(t, d.Registered)
	require.Len(t, d.Exclude, 1)
	assert.Equal(t, "2023-12-01..2023-12-31", d.Exclude[0].Window.String())
}

func TestDescribe_Unregistered(t *testing.T) {
	d := Default().Describe(core.StreamPaidSocial, "sBelles_paid_snapchat_part1.csv")
	assert.False(t, d.Registered)
	assert.Equal(t, "sbelles_paid_snapchat_part1", d.ID)
	assert.Empty(t, d.Ops)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown stream", "streams:\n  - {stream: radio, glob: '*.csv'}\n"},
		{"source without glob", "sources:\n  - {id: a, stream: ooh, file: a.csv}\n"},
		{"bad op", "streams:\n  - {stream: ooh, glob: '*.csv'}\nsources:\n  - id: a\n    stream: ooh\n    file: a.csv\n    ops: [{op: explode, column: x}]\n"},
		{"rename without target", "streams:\n  - {stream: ooh, glob: '*.csv'}\nsources:\n  - id: a\n    stream: ooh\n    file: a.csv\n    ops: [{op: rename, from: x}]\n"},
		{"duplicate id", "streams:\n  - {stream: ooh, glob: '*.csv'}\nsources:\n  - {id: a, stream: ooh, file: a.csv}\n  - {id: a, stream: ooh, file: b.csv}\n"},
		{"bad exclusion", "streams:\n  - {stream: ooh, glob: '*.csv'}\nsources:\n  - id: a\n    stream: ooh\n    file: a.csv\n    exclude: [{column: d, from: 2023-12-31, to: 2023-12-01}]\n"},
		{"unknown field", "streamz: []\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadStream_PaidSocialDrift(t *testing.T) {
	dir := fixtureDir(t)
	batches, err := LoadStream(Default(), dir, core.StreamPaidSocial, paidSchema)
	require.NoError(t, err)
	require.Len(t, batches, 4)

	byID := map[string]*Batch{}
	for _, b := range batches {
		byID[b.Source.ID] = b
	}

	ig := byID["instagram_part3"]
	require.NotNil(t, ig)
	assert.Len(t, ig.Applied, 2)
	assert.Equal(t, "20.00", table.Format(table.Money, ig.Table.Get(0, "spend")))

	pin := byID["pinterest_part1"]
	require.NotNil(t, pin)
	assert.Equal(t, int64(9), pin.Table.Get(0, "clicks"))
	assert.Nil(t, pin.Table.Get(0, "video_25pct"))
	assert.Nil(t, pin.Table.Get(0, "age_target"))

	tt := byID["tiktok_part2"]
	require.NotNil(t, tt)
	assert.Equal(t, int64(90), tt.Table.Get(0, "video_views"))
	assert.Nil(t, tt.Table.Get(0, "optimization_goal"))

	all, err := Union("paid", paidSchema, batches)
	require.NoError(t, err)
	read, excluded := Totals(batches)
	assert.Equal(t, testutil.FixturePaidRows, all.Len())
	assert.Equal(t, testutil.FixturePaidRows, read)
	assert.Zero(t, excluded)
}

func TestLoadStream_WebExclusion(t *testing.T) {
	dir := fixtureDir(t)
	schema := table.Schema{
		{Name: "event_datetime", Kind: table.Timestamp},
		{Name: "session_id", Kind: table.String},
	}
	batches, err := LoadStream(Default(), dir, core.StreamWebAnalytics, schema)
	require.NoError(t, err)

	read, excluded := Totals(batches)
	assert.Equal(t, testutil.FixtureWebRawRows, read)
	assert.Equal(t, testutil.FixtureWebExcluded, excluded)

	for _, b := range batches {
		if b.Source.ID != "web_2024_q1" {
			continue
		}
		require.Equal(t, 1, b.Table.Len())
		assert.Equal(t, time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC), b.Table.Get(0, "event_datetime"))
	}
}

func TestLoadStream_WebExclusionUsesWallClockDate(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, "sBelles_web_traffic_2024_Q1.csv"),
		"event_datetime,session_id\n"+
			"2023-11-30T22:30:00-05:00,s1\n"+
			"2024-01-01T00:30:00+02:00,s2\n"+
			"2023-12-31T23:30:00-05:00,s3\n")
	schema := table.Schema{
		{Name: "event_datetime", Kind: table.Timestamp},
		{Name: "session_id", Kind: table.String},
	}
	batches, err := LoadStream(Default(), dir, core.StreamWebAnalytics, schema)
	require.NoError(t, err)
	require.Len(t, batches, 1)

	b := batches[0]
	assert.Equal(t, 1, b.Excluded)
	ids := make([]string, 0, b.Table.Len())
	for i := range b.Table.Rows {
		ids = append(ids, b.Table.Get(i, "session_id").(string))
	}
	assert.Equal(t, []string{"s1", "s2"}, ids)
}

func TestLoadStream_MissingRequiredColumn(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, "sBelles_tiktok_owned_2023.csv"), "date,post_id\n2023-01-01,p1\n")

	schema := table.Schema{
		{Name: "date", Kind: table.Date},
		{Name: "post_id", Kind: table.String},
		{Name: "followers", Kind: table.Int},
	}
	_, err := LoadStream(Default(), dir, core.StreamOrganicSocial, schema)

	var schemaErr *core.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, "tiktok_owned_2023", schemaErr.Source)
	assert.Equal(t, []string{"followers"}, schemaErr.Missing)
}

func TestLoadStream_NoFiles(t *testing.T) {
	_, err := LoadStream(Default(), t.TempDir(), core.StreamOOH, table.Schema{})
	assert.Error(t, err)
}

func TestConform_BadCell(t *testing.T) {
	e := &Extract{
		Source:  Descriptor{ID: "x", File: "x.csv"},
		Header:  []string{"n"},
		Records: [][]string{{"1"}, {"two"}},
	}
	_, err := Conform(e, table.Schema{{Name: "n", Kind: table.Int}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func TestExtractOps(t *testing.T) {
	e := &Extract{
		Header:  []string{"a", "b"},
		Records: [][]string{{"1", "2"}},
	}
	changed, err := e.apply(Op{Op: OpDrop, Column: "a"})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"b"}, e.Header)
	assert.Equal(t, [][]string{{"2"}}, e.Records)

	changed, err = e.apply(Op{Op: OpRename, From: "missing", To: "z"})
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = e.apply(Op{Op: OpFillNull, Column: "c"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"2", ""}}, e.Records)

	_, err = e.apply(Op{Op: OpRename, From: "b", To: "c"})
	assert.Error(t, err)
}

func TestExtractOps_FillNullOnRaggedRecords(t *testing.T) {
	e := &Extract{
		Header:  []string{"a", "b"},
		Records: [][]string{{"1", "2", ""}, {"3"}, {"5", "6"}},
	}
	_, err := e.apply(Op{Op: OpFillNull, Column: "c"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "2", ""}, {"3", "", ""}, {"5", "6", ""}}, e.Records)
	for _, rec := range e.Records {
		assert.Len(t, rec, len(e.Header))
	}
}

func TestReadExtract_TrailingEmptyCells(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sBelles_paid_tiktok_part2_schema_drift.csv")
	testutil.WriteFile(t, path,
		"date,channel,campaign_name,campaign_id,dma_name,state,spend,impressions,clicks,views\n"+
			"2023-01-01,tiktok,TikTok Teen Trends,TT-TT-1,Boston,MA,5.00,100,1,90,,\n")
	reg := Default()
	files, err := reg.Discover(dir, core.StreamPaidSocial)
	require.NoError(t, err)
	require.Len(t, files, 1)

	e, err := ReadExtract(files[0])
	require.NoError(t, err)
	require.Len(t, e.Records, 1)
	assert.Len(t, e.Records[0], len(e.Header))
	for _, op := range e.Applied {
		if op.Op == OpFillNull {
			assert.Empty(t, e.Records[0][e.Index(op.Column)], op.Column)
		}
	}
	assert.Equal(t, "90", e.Records[0][e.Index("video_views")])
}

func TestMissing(t *testing.T) {
	reg := Default()
	files, err := reg.Discover(fixtureDir(t), core.StreamPodcast)
	require.NoError(t, err)
	assert.Empty(t, reg.Missing(core.StreamPodcast, files))
	assert.Len(t, reg.Missing(core.StreamPaidSocial, nil), 9)
}
